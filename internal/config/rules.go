package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed default_rules.yaml
var defaultRules []byte

// Rules holds the fixed lists and pattern tables used by the detection engines.
type Rules struct {
	Detector   DetectorRules   `yaml:"detector"`
	Trust      TrustRules      `yaml:"trust"`
	Analysis   AnalysisRules   `yaml:"analysis"`
	Validation ValidationRules `yaml:"validation"`
}

// DetectorRules configures the pattern threat detector and file analysis.
type DetectorRules struct {
	MaxContent          int                 `yaml:"max_content"`
	MaxFileSize         int64               `yaml:"max_file_size"`
	FileScanBytes       int                 `yaml:"file_scan_bytes"`
	Patterns            map[string][]string `yaml:"patterns"`
	DangerousExtensions []string            `yaml:"dangerous_extensions"`
	MalwareSignatures   map[string]string   `yaml:"malware_signatures"`
}

// TrustRules configures the reputation and trust scorer.
type TrustRules struct {
	TrustedDomains         []string `yaml:"trusted_domains"`
	TrustedTLDs            []string `yaml:"trusted_tlds"`
	FreeTLDs               []string `yaml:"free_tlds"`
	SuspiciousHostPatterns []string `yaml:"suspicious_host_patterns"`
	SuspiciousKeywords     []string `yaml:"suspicious_keywords"`
	SuspiciousParams       []string `yaml:"suspicious_params"`
	ProtectedDomains       []string `yaml:"protected_domains"`
}

// AnalysisRules holds the regular expressions applied to rendered pages.
type AnalysisRules struct {
	SensitiveFields string `yaml:"sensitive_fields"`
	AutoSubmit      string `yaml:"auto_submit"`
	LoginTitle      string `yaml:"login_title"`
	BrandTitle      string `yaml:"brand_title"`
	Obfuscation     string `yaml:"obfuscation"`
}

// ValidationRules lists hosts and ports rejected at intake.
type ValidationRules struct {
	BlockedHosts []string `yaml:"blocked_hosts"`
	BlockedPorts []int    `yaml:"blocked_ports"`
}

// DefaultRules returns the embedded rule set.
func DefaultRules() Rules {
	var r Rules
	if err := yaml.Unmarshal(defaultRules, &r); err != nil {
		// embedded file is part of the build; a decode failure is a programming error
		panic(fmt.Sprintf("decode embedded rules: %v", err))
	}
	return r
}

// LoadRules decodes the rules file at path over the embedded defaults. An empty
// path returns the defaults unchanged.
func LoadRules(path string) (Rules, error) {
	rules := DefaultRules()
	if path == "" {
		return rules, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("read rules file: %w", err)
	}
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return Rules{}, fmt.Errorf("decode rules file %s: %w", path, err)
	}
	if rules.Detector.MaxContent <= 0 {
		return Rules{}, fmt.Errorf("detector.max_content must be positive")
	}
	return rules, nil
}
