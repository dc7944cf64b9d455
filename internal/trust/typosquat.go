package trust

import (
	"fmt"
	"net"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// maxTyposquatDistance is the largest edit distance still reported as a lookalike.
const maxTyposquatDistance = 2

// TyposquatMatch describes a lookalike of a protected domain.
type TyposquatMatch struct {
	Domain    string `json:"domain"`
	Protected string `json:"protected"`
	Distance  int    `json:"distance"`
}

// Reason renders the match for a failing check.
func (m TyposquatMatch) Reason() string {
	return fmt.Sprintf("Domínio similar a %s (distância: %d)", m.Protected, m.Distance)
}

// Typosquatter compares domains against a fixed list of protected domains.
type Typosquatter struct {
	protected []string
	exact     map[string]struct{}
}

// NewTyposquatter lowercases and indexes the protected list.
func NewTyposquatter(protected []string) *Typosquatter {
	t := &Typosquatter{exact: make(map[string]struct{}, len(protected))}
	for _, p := range protected {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		t.protected = append(t.protected, p)
		t.exact[p] = struct{}{}
	}
	return t
}

// Check reports the first protected domain within edit distance (0, 2] of
// domain. A domain equal to any protected entry is never flagged.
func (t *Typosquatter) Check(domain string) (TyposquatMatch, bool) {
	domain = strings.ToLower(strings.TrimSuffix(domain, "."))
	if domain == "" {
		return TyposquatMatch{}, false
	}
	if _, ok := t.exact[domain]; ok {
		return TyposquatMatch{}, false
	}
	for _, p := range t.protected {
		d := Levenshtein(domain, p)
		if d > 0 && d <= maxTyposquatDistance {
			return TyposquatMatch{Domain: domain, Protected: p, Distance: d}, true
		}
	}
	return TyposquatMatch{}, false
}

// RegistrableDomain returns the eTLD+1 of host (e.g. "login.nubank.com.br" ->
// "nubank.com.br"). Literal IPs are returned unchanged; hosts the public
// suffix list cannot split fall back to their last two labels.
func RegistrableDomain(host string) string {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if host == "" || net.ParseIP(host) != nil {
		return host
	}
	if d, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		return d
	}
	labels := strings.Split(host, ".")
	if len(labels) <= 2 {
		return host
	}
	return strings.Join(labels[len(labels)-2:], ".")
}
