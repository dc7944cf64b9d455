// Package validate rejects submitted URLs that are malformed or point at
// internal infrastructure before they are queued for analysis.
package validate

import (
	"context"
	"fmt"
	"net/netip"
	"net/url"
	"strconv"
	"strings"

	"github.com/Wikid82/phishguard/internal/config"
)

// ValidationError is returned for URLs rejected at intake.
type ValidationError struct {
	URL    string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func invalid(raw, format string, args ...interface{}) error {
	return &ValidationError{URL: raw, Reason: fmt.Sprintf(format, args...)}
}

// Resolver resolves hostnames to addresses.
type Resolver interface {
	LookupIP(ctx context.Context, host string) ([]netip.Addr, error)
}

// Validator checks scheme, host and port of submitted URLs. Hostnames are
// resolved and rejected when any address is internal.
type Validator struct {
	blockedHosts map[string]struct{}
	blockedPorts map[int]struct{}
	resolver     Resolver
}

// New builds a Validator. A nil resolver skips hostname resolution.
func New(rules config.ValidationRules, r Resolver) *Validator {
	v := &Validator{
		blockedHosts: make(map[string]struct{}, len(rules.BlockedHosts)),
		blockedPorts: make(map[int]struct{}, len(rules.BlockedPorts)),
		resolver:     r,
	}
	for _, h := range rules.BlockedHosts {
		v.blockedHosts[strings.ToLower(strings.Trim(h, "[]"))] = struct{}{}
	}
	for _, p := range rules.BlockedPorts {
		v.blockedPorts[p] = struct{}{}
	}
	return v
}

// Validate parses raw and applies the intake policy. The returned error is a
// *ValidationError for policy rejections.
func (v *Validator) Validate(ctx context.Context, raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, invalid(raw, "URL vazia")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, invalid(raw, "URL inválida: %v", err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, invalid(raw, "Protocolo não permitido: %s", u.Scheme)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return nil, invalid(raw, "URL sem hostname")
	}
	if _, ok := v.blockedHosts[host]; ok {
		return nil, invalid(raw, "Domínio bloqueado: %s", host)
	}

	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil || port < 1 || port > 65535 {
			return nil, invalid(raw, "Porta inválida: %s", p)
		}
		if _, ok := v.blockedPorts[port]; ok {
			return nil, invalid(raw, "Porta bloqueada: %d", port)
		}
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		if IsInternal(addr) {
			return nil, invalid(raw, "IP privado bloqueado: %s", host)
		}
		return u, nil
	}

	if v.resolver != nil {
		// unresolvable hosts are allowed through; the analysis reports them
		addrs, err := v.resolver.LookupIP(ctx, host)
		if err == nil {
			for _, a := range addrs {
				if IsInternal(a) {
					return nil, invalid(raw, "Hostname resolve para IP privado: %s -> %s", host, a)
				}
			}
		}
	}
	return u, nil
}

// IsInternal reports whether addr is private, loopback, link-local or unspecified.
func IsInternal(addr netip.Addr) bool {
	addr = addr.Unmap()
	return addr.IsPrivate() || addr.IsLoopback() || addr.IsLinkLocalUnicast() ||
		addr.IsLinkLocalMulticast() || addr.IsUnspecified()
}
