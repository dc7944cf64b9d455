// Package trust scores URLs for structure and domain reputation and runs the
// typosquatting and TLS sub-checks.
package trust

import (
	"fmt"
	"math"
	"net"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/Wikid82/phishguard/internal/config"
)

const (
	LevelTrusted    = "confiável"
	LevelModerate   = "moderadamente confiável"
	LevelSuspicious = "suspeito"
	LevelUntrusted  = "não confiável"

	// TrustedThreshold is the minimum final score reported as is_trusted.
	TrustedThreshold = 70.0
)

// Adjustments are signals computed outside the scorer.
type Adjustments struct {
	HasValidTLS          bool `json:"has_valid_tls"`
	HasTyposquatting     bool `json:"has_typosquatting"`
	HasSuspiciousContent bool `json:"has_suspicious_content"`
}

// Result is the trust verdict for one URL.
type Result struct {
	URL             string       `json:"url"`
	Domain          string       `json:"domain"`
	TrustScore      float64      `json:"trust_score"`
	Level           string       `json:"trust_level"`
	Icon            string       `json:"trust_icon"`
	StructureScore  int          `json:"structure_score"`
	ReputationScore int          `json:"reputation_score"`
	Issues          []string     `json:"issues"`
	Info            []string     `json:"info"`
	IsTrusted       bool         `json:"is_trusted"`
	Recommendation  string       `json:"recommendation"`
	Adjustments     *Adjustments `json:"additional_checks,omitempty"`
	AnalyzedAt      time.Time    `json:"analyzed_at"`
}

// Scorer is immutable after NewScorer and safe for concurrent use.
type Scorer struct {
	trustedDomains []string
	trustedTLDs    []string
	freeTLDs       []string
	hostPatterns   []*regexp.Regexp
	keywords       []string
	params         []string
	now            func() time.Time
}

// NewScorer compiles the trust rules.
func NewScorer(rules config.TrustRules) (*Scorer, error) {
	s := &Scorer{
		trustedDomains: lowerAll(rules.TrustedDomains),
		trustedTLDs:    lowerAll(rules.TrustedTLDs),
		freeTLDs:       lowerAll(rules.FreeTLDs),
		keywords:       lowerAll(rules.SuspiciousKeywords),
		params:         lowerAll(rules.SuspiciousParams),
		now:            time.Now,
	}
	for _, p := range rules.SuspiciousHostPatterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("compile host pattern %q: %w", p, err)
		}
		s.hostPatterns = append(s.hostPatterns, re)
	}
	return s, nil
}

// Verify scores rawURL with no external adjustments.
func (s *Scorer) Verify(rawURL string) Result {
	return s.score(rawURL, nil)
}

// Score scores rawURL and applies the supplied adjustments before clamping.
func (s *Scorer) Score(rawURL string, adj Adjustments) Result {
	return s.score(rawURL, &adj)
}

func (s *Scorer) score(rawURL string, adj *Adjustments) Result {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		u = &url.URL{}
	}
	host := strings.ToLower(u.Hostname())
	https := strings.EqualFold(u.Scheme, "https")

	structure, issues := s.structureScore(u, host, https)
	reputation, info := s.reputationScore(host)

	final := 0.4*float64(structure) + 0.6*float64(reputation)
	if https {
		final += 5
		info = append(info, "Usa HTTPS (seguro)")
	} else {
		final -= 10
	}

	if adj != nil {
		if adj.HasValidTLS {
			final += 5
		}
		if adj.HasTyposquatting {
			final -= 30
			issues = append(issues, "Domínio parecido com um domínio oficial")
		}
		if adj.HasSuspiciousContent {
			final -= 20
			issues = append(issues, "Conteúdo malicioso detectado")
		}
	}

	final = math.Round(clamp(final, 0, 100)*10) / 10
	level, icon := Classify(final)

	return Result{
		URL:             rawURL,
		Domain:          host,
		TrustScore:      final,
		Level:           level,
		Icon:            icon,
		StructureScore:  structure,
		ReputationScore: reputation,
		Issues:          nonNil(issues),
		Info:            nonNil(info),
		IsTrusted:       final >= TrustedThreshold,
		Recommendation:  Recommendation(final),
		Adjustments:     adj,
		AnalyzedAt:      s.now(),
	}
}

func (s *Scorer) structureScore(u *url.URL, host string, https bool) (int, []string) {
	score := 100
	var issues []string

	if !https {
		score -= 30
		issues = append(issues, "Não usa HTTPS")
	}

	if net.ParseIP(host) != nil {
		score -= 50
		issues = append(issues, "Usa IP direto em vez de domínio")
	}

	for _, re := range s.hostPatterns {
		if re.MatchString(host) {
			score -= 20
			issues = append(issues, "Usa encurtador de URL ou domínio suspeito")
			break
		}
	}

	if strings.Count(host, ".") > 3 {
		score -= 15
		issues = append(issues, "Muitos subdomínios")
	}

	path := strings.ToLower(u.Path)
	for _, kw := range s.keywords {
		if strings.Contains(path, kw) {
			score -= 10
			issues = append(issues, "Palavra-chave suspeita no caminho: "+kw)
		}
	}

	keys := make(map[string]struct{})
	for key := range u.Query() {
		keys[strings.ToLower(key)] = struct{}{}
	}
	for _, p := range s.params {
		if _, ok := keys[p]; ok {
			score -= 15
			issues = append(issues, "Parâmetro suspeito: "+p)
		}
	}

	if score < 0 {
		score = 0
	}
	return score, issues
}

func (s *Scorer) reputationScore(host string) (int, []string) {
	score := 50
	var info []string

	// matches anywhere in the host, so mygoogle.com and google.com.evil.xyz count
	for _, trusted := range s.trustedDomains {
		if strings.Contains(host, trusted) {
			return 100, []string{"Domínio confiável conhecido: " + trusted}
		}
	}

	if hasAnySuffix(host, s.trustedTLDs) {
		score += 20
		info = append(info, "Extensão de domínio confiável")
	} else {
		score -= 20
		info = append(info, "Extensão de domínio não comum")
	}

	if hasAnySuffix(host, s.freeTLDs) {
		score -= 30
		info = append(info, "Domínio gratuito (maior risco)")
	}

	if ok, msg := domainLooksEstablished(host); !ok {
		score -= 15
		info = append(info, msg)
	}

	return int(clamp(float64(score), 0, 100)), info
}

// domainLooksEstablished is a stand-in for a WHOIS age lookup: very short, very
// long or digit-heavy domains are flagged.
func domainLooksEstablished(domain string) (bool, string) {
	if len(domain) < 4 {
		return false, "Domínio muito curto"
	}
	if len(domain) > 50 {
		return false, "Domínio muito longo"
	}
	digits := 0
	for _, r := range domain {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	if float64(digits) > float64(len(domain))*0.5 {
		return false, "Domínio contém muitos números"
	}
	return true, ""
}

// Classify maps a final score to its level label and icon.
func Classify(score float64) (string, string) {
	switch {
	case score >= 80:
		return LevelTrusted, "✅"
	case score >= 60:
		return LevelModerate, "⚠️"
	case score >= 40:
		return LevelSuspicious, "⚠️"
	default:
		return LevelUntrusted, "❌"
	}
}

// Recommendation returns the user-facing advice for a score.
func Recommendation(score float64) string {
	switch {
	case score >= 80:
		return "Link parece confiável. Pode acessar com segurança."
	case score >= 60:
		return "Link moderadamente confiável. Tenha cuidado e verifique o conteúdo."
	case score >= 40:
		return "Link suspeito. Evite acessar ou fornecer informações pessoais."
	default:
		return "Link não confiável. NÃO acesse este link."
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func hasAnySuffix(s string, suffixes []string) bool {
	for _, suf := range suffixes {
		if strings.HasSuffix(s, suf) {
			return true
		}
	}
	return false
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
