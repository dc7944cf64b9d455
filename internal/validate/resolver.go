package validate

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/miekg/dns"
)

const (
	dnsTimeout      = 2 * time.Second
	dnsCacheMaxTTL  = 60 * time.Second
	dnsCacheEntries = 1024
)

var ErrNoRecords = errors.New("no dns records")

type dnsEntry struct {
	addrs  []netip.Addr
	expiry time.Time
}

// DNSResolver queries A/AAAA and PTR records from a single nameserver and
// caches forward answers for at most a minute.
type DNSResolver struct {
	server string
	client *dns.Client

	mu    sync.Mutex
	cache map[string]dnsEntry
	now   func() time.Time
}

// NewDNSResolver uses server ("host:port"); when empty the first nameserver
// from /etc/resolv.conf is used, falling back to the Go resolver.
func NewDNSResolver(server string) *DNSResolver {
	if server == "" {
		if conf, err := dns.ClientConfigFromFile("/etc/resolv.conf"); err == nil && len(conf.Servers) > 0 {
			server = net.JoinHostPort(conf.Servers[0], conf.Port)
		}
	}
	return &DNSResolver{
		server: server,
		client: &dns.Client{Net: "udp", Timeout: dnsTimeout},
		cache:  make(map[string]dnsEntry),
		now:    time.Now,
	}
}

// LookupIP returns the A and AAAA addresses of host.
func (r *DNSResolver) LookupIP(ctx context.Context, host string) ([]netip.Addr, error) {
	host = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(host)), ".")
	if host == "" {
		return nil, ErrNoRecords
	}
	now := r.now()
	r.mu.Lock()
	if ent, ok := r.cache[host]; ok && now.Before(ent.expiry) {
		r.mu.Unlock()
		return ent.addrs, nil
	}
	r.mu.Unlock()

	if r.server == "" {
		ips, err := net.DefaultResolver.LookupNetIP(ctx, "ip", host)
		if err != nil {
			return nil, err
		}
		r.store(host, ips, dnsCacheMaxTTL)
		return ips, nil
	}

	var addrs []netip.Addr
	ttl := dnsCacheMaxTTL
	var lastErr error
	for _, qt := range []uint16{dns.TypeA, dns.TypeAAAA} {
		msg := new(dns.Msg)
		msg.SetQuestion(dns.Fqdn(host), qt)
		resp, _, err := r.client.ExchangeContext(ctx, msg, r.server)
		if err != nil {
			lastErr = err
			continue
		}
		for _, ans := range resp.Answer {
			var ip net.IP
			switch rr := ans.(type) {
			case *dns.A:
				ip = rr.A
			case *dns.AAAA:
				ip = rr.AAAA
			default:
				continue
			}
			if a, ok := netip.AddrFromSlice(ip); ok {
				addrs = append(addrs, a.Unmap())
			}
			if d := time.Duration(ans.Header().Ttl) * time.Second; d < ttl {
				ttl = d
			}
		}
	}
	if len(addrs) == 0 {
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, ErrNoRecords
	}
	r.store(host, addrs, ttl)
	return addrs, nil
}

func (r *DNSResolver) store(host string, addrs []netip.Addr, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.cache) >= dnsCacheEntries {
		// evict the entry closest to expiry
		var oldestKey string
		var oldest time.Time
		for k, v := range r.cache {
			if oldestKey == "" || v.expiry.Before(oldest) {
				oldestKey, oldest = k, v.expiry
			}
		}
		delete(r.cache, oldestKey)
	}
	r.cache[host] = dnsEntry{addrs: addrs, expiry: r.now().Add(ttl)}
}

// LookupPTR returns the first PTR name of ip without the trailing dot.
func (r *DNSResolver) LookupPTR(ctx context.Context, ip string) (string, error) {
	if r.server == "" {
		names, err := net.DefaultResolver.LookupAddr(ctx, ip)
		if err != nil {
			return "", err
		}
		if len(names) == 0 {
			return "", ErrNoRecords
		}
		return strings.TrimSuffix(names[0], "."), nil
	}

	arpa, err := dns.ReverseAddr(ip)
	if err != nil {
		return "", err
	}
	msg := new(dns.Msg)
	msg.SetQuestion(arpa, dns.TypePTR)
	resp, _, err := r.client.ExchangeContext(ctx, msg, r.server)
	if err != nil {
		return "", err
	}
	for _, ans := range resp.Answer {
		if ptr, ok := ans.(*dns.PTR); ok {
			return strings.TrimSuffix(ptr.Ptr, "."), nil
		}
	}
	return "", ErrNoRecords
}
