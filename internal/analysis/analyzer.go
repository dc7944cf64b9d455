// Package analysis runs the per-URL checks of a job and aggregates them into
// a score, a level and user-facing tips.
package analysis

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Wikid82/phishguard/internal/config"
	"github.com/Wikid82/phishguard/internal/detector"
	"github.com/Wikid82/phishguard/internal/logger"
	"github.com/Wikid82/phishguard/internal/models"
	"github.com/Wikid82/phishguard/internal/render"
	"github.com/Wikid82/phishguard/internal/trust"
	"github.com/Wikid82/phishguard/internal/util"
)

// BlacklistLookup finds an active deny-list entry for any of the given values.
type BlacklistLookup interface {
	FindActive(values ...string) (*models.BlacklistEntry, error)
}

// ThreatHandler applies quarantine decisions for a URL with attack findings.
type ThreatHandler interface {
	HandleURLThreat(rawURL string, a detector.Analysis) (bool, error)
}

// Options wires the analyzer. Blacklist, Threats, TLS and Renderer may be nil;
// the corresponding checks are then skipped or degrade.
type Options struct {
	Rules     config.AnalysisRules
	Detector  *detector.Detector
	Scorer    *trust.Scorer
	Typosquat *trust.Typosquatter
	TLS       trust.TLSProbe
	Renderer  render.Provider
	Blacklist BlacklistLookup
	Threats   ThreatHandler
}

// Analyzer is safe for concurrent use.
type Analyzer struct {
	detector  *detector.Detector
	scorer    *trust.Scorer
	typosquat *trust.Typosquatter
	tls       trust.TLSProbe
	renderer  render.Provider
	blacklist BlacklistLookup
	threats   ThreatHandler

	sensitive   *regexp.Regexp
	autoSubmit  *regexp.Regexp
	loginTitle  *regexp.Regexp
	brandTitle  *regexp.Regexp
	obfuscation *regexp.Regexp

	log *logrus.Entry
}

func New(opts Options) (*Analyzer, error) {
	a := &Analyzer{
		detector:  opts.Detector,
		scorer:    opts.Scorer,
		typosquat: opts.Typosquat,
		tls:       opts.TLS,
		renderer:  opts.Renderer,
		blacklist: opts.Blacklist,
		threats:   opts.Threats,
		log:       logger.Component("analysis"),
	}
	if a.detector == nil || a.scorer == nil || a.typosquat == nil {
		return nil, fmt.Errorf("analysis: detector, scorer and typosquatter are required")
	}
	if a.renderer == nil {
		a.renderer = render.Disabled{}
	}
	for _, p := range []struct {
		dst  **regexp.Regexp
		expr string
	}{
		{&a.sensitive, opts.Rules.SensitiveFields},
		{&a.autoSubmit, opts.Rules.AutoSubmit},
		{&a.loginTitle, opts.Rules.LoginTitle},
		{&a.brandTitle, opts.Rules.BrandTitle},
		{&a.obfuscation, opts.Rules.Obfuscation},
	} {
		if p.expr == "" {
			continue
		}
		re, err := regexp.Compile("(?i)" + p.expr)
		if err != nil {
			return nil, fmt.Errorf("compile %q: %w", p.expr, err)
		}
		*p.dst = re
	}
	return a, nil
}

// report accumulates checks and the running score.
type report struct {
	checks []models.Check
	score  int
}

func (r *report) fail(name, reason string, details interface{}) {
	r.failWeight(name, Weights[name], reason, details)
}

func (r *report) failWeight(name string, weight int, reason string, details interface{}) {
	r.checks = append(r.checks, models.Check{Name: name, OK: false, Reason: reason, Details: details})
	r.score += weight
}

// Analyze runs every check against rawURL. Individual check failures are
// recorded and never abort the analysis; only ctx cancellation does.
func (a *Analyzer) Analyze(ctx context.Context, jobID, rawURL string) (*models.AnalysisResult, error) {
	r := &report{}
	log := a.log.WithFields(logrus.Fields{"job_id": jobID, "url": util.SanitizeForLog(rawURL)})

	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		r.fail(CheckInvalidURL, "URL inválida", nil)
		return a.finalize(jobID, rawURL, r, nil), nil
	}
	host := strings.ToLower(u.Hostname())
	domain := trust.RegistrableDomain(host)

	if a.blacklist != nil {
		entry, err := a.blacklist.FindActive(rawURL, host, domain)
		if err != nil {
			log.WithError(err).Warn("blacklist lookup failed")
		} else if entry != nil {
			r.fail(CheckBlacklisted, fmt.Sprintf("Item na blacklist: %s (%s)", entry.ItemValue, entry.ThreatType), map[string]string{
				"item_type":   entry.ItemType,
				"threat_type": entry.ThreatType,
			})
			trustResult := a.scorer.Verify(rawURL)
			return a.finalize(jobID, rawURL, r, &trustResult), nil
		}
	}

	var adj trust.Adjustments

	isolate(log, CheckTLS, func() {
		tc := trust.CheckTLS(ctx, a.tls, host)
		adj.HasValidTLS = tc.OK
		if !tc.OK {
			r.fail(CheckTLS, tc.Reason, nil)
		}
	})

	isolate(log, CheckTyposquatting, func() {
		if m, ok := a.typosquat.Check(domain); ok {
			adj.HasTyposquatting = true
			r.fail(CheckTyposquatting, m.Reason(), m)
		}
	})

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	page, err := a.renderer.Render(ctx, rawURL)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		r.fail(CheckRenderError, "Erro ao carregar página: "+util.Truncate(err.Error(), 100), nil)
	} else {
		isolate(log, "page", func() {
			adj.HasSuspiciousContent = a.inspectPage(log, rawURL, page, r)
		})
	}

	trustResult := a.scorer.Score(rawURL, adj)
	switch trustResult.Level {
	case trust.LevelUntrusted:
		r.failWeight(CheckLowTrust, lowTrustUntrusted, fmt.Sprintf("Baixa confiabilidade: %s (%.1f)", trustResult.Level, trustResult.TrustScore), nil)
	case trust.LevelSuspicious:
		r.failWeight(CheckLowTrust, lowTrustSuspicious, fmt.Sprintf("Baixa confiabilidade: %s (%.1f)", trustResult.Level, trustResult.TrustScore), nil)
	}

	return a.finalize(jobID, rawURL, r, &trustResult), nil
}

// inspectPage runs the content checks and reports whether any of them found
// attack code or credential harvesting.
func (a *Analyzer) inspectPage(log *logrus.Entry, rawURL string, page *render.Page, r *report) bool {
	suspicious := false

	content := page.HTML
	if content == "" {
		content = page.Text
	}
	attack := a.detector.AnalyzeURL(rawURL, content)
	if attack.IsMalicious {
		suspicious = true
		threats := attack.Threats
		if len(threats) > 10 {
			threats = threats[:10]
		}
		r.fail(CheckAttackDetected, "Ataques detectados: "+strings.Join(threatTypes(attack.Threats, 5), ", "), map[string]interface{}{
			"threats":    threats,
			"risk_level": attack.RiskLevel,
		})
		if a.threats != nil {
			if _, err := a.threats.HandleURLThreat(rawURL, attack); err != nil {
				log.WithError(err).Warn("failed to quarantine url")
			}
		}
	}

	if forms := a.suspiciousForms(page.Forms); len(forms) > 0 {
		suspicious = true
		r.fail(CheckSuspiciousForm, "Formulário solicita credenciais/dados sensíveis", forms)
	}

	if a.autoSubmit != nil && (a.autoSubmit.MatchString(page.HTML) || anyMatch(a.autoSubmit, page.Scripts) > 0) {
		r.fail(CheckAutoSubmit, "Formulário com possível envio automático via JavaScript", nil)
	}

	if page.Redirects > 2 {
		r.fail(CheckMultipleRedirects, fmt.Sprintf("Múltiplos redirecionamentos detectados (%d)", page.Redirects), nil)
	}

	title := strings.ToLower(page.Title)
	if a.loginTitle != nil && a.loginTitle.MatchString(title) && (a.brandTitle == nil || !a.brandTitle.MatchString(title)) {
		r.fail(CheckTitleLogin, fmt.Sprintf("Título sugere página de login: '%s'", page.Title), nil)
	}

	if a.obfuscation != nil {
		if n := anyMatch(a.obfuscation, page.Scripts); n > 0 {
			suspicious = true
			r.fail(CheckObfuscatedScripts, fmt.Sprintf("Scripts ofuscados detectados (%d)", n), nil)
		}
	}
	return suspicious
}

// SuspiciousField is a detail entry of the suspicious_form check.
type SuspiciousField struct {
	Field  string   `json:"field,omitempty"`
	Type   string   `json:"type,omitempty"`
	Fields []string `json:"fields,omitempty"`
}

func (a *Analyzer) suspiciousForms(forms []render.Form) []SuspiciousField {
	var out []SuspiciousField
	for _, f := range forms {
		names := make([]string, 0, len(f.Fields))
		for _, fld := range f.Fields {
			name := strings.ToLower(fld.Name)
			names = append(names, name)
			if strings.EqualFold(fld.Type, "password") {
				out = append(out, SuspiciousField{Field: fld.Name, Type: "password"})
			}
		}
		if a.sensitive != nil && a.sensitive.MatchString(strings.Join(names, " ")) {
			out = append(out, SuspiciousField{Fields: names})
		}
	}
	return out
}

func (a *Analyzer) finalize(jobID, rawURL string, r *report, tr *trust.Result) *models.AnalysisResult {
	res := &models.AnalysisResult{
		URL:    rawURL,
		JobID:  jobID,
		Score:  r.score,
		Level:  Level(r.score),
		Checks: r.checks,
		Tips:   Tips(r.checks),
	}
	if res.Checks == nil {
		res.Checks = []models.Check{}
	}
	if tr != nil {
		res.Trust = &models.TrustSummary{
			Score:          tr.TrustScore,
			Level:          tr.Level,
			IsTrusted:      tr.IsTrusted,
			Issues:         tr.Issues,
			Info:           tr.Info,
			Recommendation: tr.Recommendation,
		}
	}
	return res
}

// isolate runs one check, converting a panic into a logged, skipped check.
func isolate(log *logrus.Entry, name string, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			log.WithField("check", name).Errorf("check panicked: %v", rec)
		}
	}()
	fn()
}

func anyMatch(re *regexp.Regexp, blocks []string) int {
	n := 0
	for _, b := range blocks {
		if re.MatchString(b) {
			n++
		}
	}
	return n
}

// threatTypes returns the distinct categories among the first limit findings, sorted.
func threatTypes(findings []detector.Finding, limit int) []string {
	if len(findings) > limit {
		findings = findings[:limit]
	}
	seen := map[string]bool{}
	var out []string
	for _, f := range findings {
		c := string(f.Category)
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	sort.Strings(out)
	return out
}
