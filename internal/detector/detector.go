// Package detector classifies text against a table of attack signatures.
package detector

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/Wikid82/phishguard/internal/config"
	"github.com/Wikid82/phishguard/internal/util"
)

// Category names an attack family.
type Category string

const (
	SQLInjection       Category = "sql_injection"
	XSS                Category = "xss"
	CommandInjection   Category = "command_injection"
	PathTraversal      Category = "path_traversal"
	DangerousExtension Category = "dangerous_extension"
	KnownMalware       Category = "known_malware"
)

// categoryOrder fixes the scan order so findings are deterministic.
var categoryOrder = []Category{SQLInjection, XSS, CommandInjection, PathTraversal, DangerousExtension, KnownMalware}

// Severity of a finding.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank orders severities from low (0) to critical (3).
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityHigh:
		return 2
	case SeverityMedium:
		return 1
	default:
		return 0
	}
}

// BaselineSeverity maps a category to its fixed severity.
func BaselineSeverity(c Category) Severity {
	switch c {
	case CommandInjection:
		return SeverityCritical
	case SQLInjection, XSS, PathTraversal, KnownMalware, DangerousExtension:
		return SeverityHigh
	default:
		return SeverityMedium
	}
}

const maxExcerpt = 100

// Finding is a single pattern match.
type Finding struct {
	Category Category `json:"type"`
	Severity Severity `json:"severity"`
	Pattern  string   `json:"pattern,omitempty"`
	Match    string   `json:"match"`
	Offset   int      `json:"position"`
}

type rule struct {
	category Category
	pattern  string
	re       *regexp.Regexp
}

// Detector is immutable after New and safe for concurrent use.
type Detector struct {
	rules         []rule
	maxContent    int
	extensions    map[string]struct{}
	signatures    map[string]string
	maxFileSize   int64
	fileScanBytes int
}

// New compiles the pattern table. Every pattern is matched case-insensitively
// in multiline mode.
func New(cfg config.DetectorRules) (*Detector, error) {
	d := &Detector{
		maxContent:    cfg.MaxContent,
		extensions:    make(map[string]struct{}, len(cfg.DangerousExtensions)),
		signatures:    make(map[string]string, len(cfg.MalwareSignatures)),
		maxFileSize:   cfg.MaxFileSize,
		fileScanBytes: cfg.FileScanBytes,
	}
	if d.maxContent <= 0 {
		d.maxContent = 100000
	}

	for _, cat := range orderedCategories(cfg.Patterns) {
		for _, p := range cfg.Patterns[string(cat)] {
			re, err := regexp.Compile("(?im)" + p)
			if err != nil {
				return nil, fmt.Errorf("compile %s pattern %q: %w", cat, p, err)
			}
			d.rules = append(d.rules, rule{category: cat, pattern: p, re: re})
		}
	}
	for _, ext := range cfg.DangerousExtensions {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		d.extensions[ext] = struct{}{}
	}
	for hash, label := range cfg.MalwareSignatures {
		d.signatures[strings.ToLower(hash)] = label
	}
	return d, nil
}

// orderedCategories returns the known categories first, then any extra ones sorted.
func orderedCategories(patterns map[string][]string) []Category {
	known := make(map[string]bool, len(categoryOrder))
	var out []Category
	for _, c := range categoryOrder {
		known[string(c)] = true
		if _, ok := patterns[string(c)]; ok {
			out = append(out, c)
		}
	}
	var extra []string
	for name := range patterns {
		if !known[name] {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	for _, name := range extra {
		out = append(out, Category(name))
	}
	return out
}

// Detect runs the whole table against content.
func (d *Detector) Detect(content string) []Finding {
	return d.DetectCategories(content)
}

// DetectCategories runs only the rules of the given categories; with no
// categories it runs every rule. Content beyond the configured cap is ignored.
func (d *Detector) DetectCategories(content string, categories ...Category) []Finding {
	if content == "" {
		return nil
	}
	content = util.Truncate(content, d.maxContent)

	var allow map[Category]bool
	if len(categories) > 0 {
		allow = make(map[Category]bool, len(categories))
		for _, c := range categories {
			allow[c] = true
		}
	}

	var findings []Finding
	for _, r := range d.rules {
		if allow != nil && !allow[r.category] {
			continue
		}
		for _, loc := range r.re.FindAllStringIndex(content, -1) {
			findings = append(findings, Finding{
				Category: r.category,
				Severity: BaselineSeverity(r.category),
				Pattern:  r.pattern,
				Match:    util.Truncate(content[loc[0]:loc[1]], maxExcerpt),
				Offset:   loc[0],
			})
		}
	}
	return findings
}

// MaxSeverity returns the highest severity among findings, or low when empty.
func MaxSeverity(findings []Finding) Severity {
	max := SeverityLow
	for _, f := range findings {
		if f.Severity.Rank() > max.Rank() {
			max = f.Severity
		}
	}
	return max
}

// Analysis is the verdict for a URL and its rendered content.
type Analysis struct {
	URL         string    `json:"url,omitempty"`
	Threats     []Finding `json:"threats"`
	IsMalicious bool      `json:"is_malicious"`
	RiskLevel   Severity  `json:"risk_level"`
}

var (
	urlCategories     = []Category{SQLInjection, XSS, CommandInjection, PathTraversal}
	contentCategories = []Category{SQLInjection, XSS, CommandInjection}
	fileCategories    = []Category{SQLInjection, XSS, CommandInjection, PathTraversal}
)

// AnalyzeURL scans the URL for injection and traversal signatures and the
// rendered text for injection signatures.
func (d *Detector) AnalyzeURL(rawURL, content string) Analysis {
	a := Analysis{URL: rawURL, RiskLevel: SeverityLow}
	a.Threats = append(a.Threats, d.DetectCategories(rawURL, urlCategories...)...)
	a.Threats = append(a.Threats, d.DetectCategories(content, contentCategories...)...)
	if len(a.Threats) > 0 {
		a.IsMalicious = true
		a.RiskLevel = MaxSeverity(a.Threats)
	}
	if a.Threats == nil {
		a.Threats = []Finding{}
	}
	return a
}

// FileAnalysis is the verdict for an uploaded file.
type FileAnalysis struct {
	Filename    string    `json:"filename"`
	Hash        string    `json:"file_hash"`
	Size        int64     `json:"file_size"`
	Threats     []Finding `json:"threats"`
	IsMalicious bool      `json:"is_malicious"`
	RiskLevel   Severity  `json:"risk_level"`
	Signature   string    `json:"signature,omitempty"`
}

// AnalyzeFile checks the MD5 against known signatures, the extension against
// the dangerous list, and the leading bytes of small text files against the
// injection table.
func (d *Detector) AnalyzeFile(name string, data []byte) FileAnalysis {
	sum := md5.Sum(data)
	fa := FileAnalysis{
		Filename:  filepath.Base(name),
		Hash:      hex.EncodeToString(sum[:]),
		Size:      int64(len(data)),
		Threats:   []Finding{},
		RiskLevel: SeverityLow,
	}

	if label, ok := d.signatures[fa.Hash]; ok {
		fa.Threats = append(fa.Threats, Finding{
			Category: KnownMalware,
			Severity: SeverityCritical,
			Match:    util.Truncate(label, maxExcerpt),
		})
		fa.Signature = label
		fa.IsMalicious = true
		fa.RiskLevel = SeverityCritical
		return fa
	}

	ext := strings.ToLower(filepath.Ext(name))
	if _, ok := d.extensions[ext]; ok {
		fa.Threats = append(fa.Threats, Finding{
			Category: DangerousExtension,
			Severity: BaselineSeverity(DangerousExtension),
			Match:    ext,
		})
		fa.RiskLevel = SeverityHigh
	}

	if d.maxFileSize > 0 && fa.Size >= d.maxFileSize {
		return fa
	}

	head := data
	if d.fileScanBytes > 0 && len(head) > d.fileScanBytes {
		head = head[:d.fileScanBytes]
	}
	found := d.DetectCategories(toText(head), fileCategories...)
	if len(found) == 0 {
		return fa
	}

	fa.Threats = append(fa.Threats, found...)
	fa.IsMalicious = true
	switch {
	case hasCategory(found, CommandInjection):
		fa.RiskLevel = SeverityCritical
	case hasCategory(found, SQLInjection), hasCategory(found, XSS):
		fa.RiskLevel = SeverityHigh
	default:
		if fa.RiskLevel.Rank() < SeverityMedium.Rank() {
			fa.RiskLevel = SeverityMedium
		}
	}
	return fa
}

// toText drops invalid UTF-8 sequences.
func toText(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	return strings.ToValidUTF8(string(b), "")
}

func hasCategory(findings []Finding, c Category) bool {
	for _, f := range findings {
		if f.Category == c {
			return true
		}
	}
	return false
}
