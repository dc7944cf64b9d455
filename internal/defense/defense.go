// Package defense decides when analyzed items are quarantined and when
// attacking client IPs are blocked, and applies those decisions.
package defense

import (
	"fmt"
	"time"

	"github.com/Wikid82/phishguard/internal/detector"
	"github.com/Wikid82/phishguard/internal/models"
)

// BlockWindow is the sliding window of attack history considered by ShouldBlockIP.
const BlockWindow = 24 * time.Hour

const (
	criticalBlockThreshold = 3
	highBlockThreshold     = 5
	totalBlockThreshold    = 10
	quarantineFindings     = 3
)

// ShouldQuarantine reports whether an analysis warrants isolation: it is
// malicious, its risk is high or critical, or it has more than three findings.
func ShouldQuarantine(a detector.Analysis) bool {
	if a.IsMalicious {
		return true
	}
	if a.RiskLevel == detector.SeverityHigh || a.RiskLevel == detector.SeverityCritical {
		return true
	}
	return len(a.Threats) > quarantineFindings
}

// FileVerdict views a file analysis as an Analysis for ShouldQuarantine.
func FileVerdict(fa detector.FileAnalysis) detector.Analysis {
	return detector.Analysis{
		URL:         fa.Filename,
		Threats:     fa.Threats,
		IsMalicious: fa.IsMalicious,
		RiskLevel:   fa.RiskLevel,
	}
}

// ShouldBlockIP applies the auto-block policy to the attacks from ip within
// BlockWindow before now. Rules are checked in order: three or more critical
// attacks, five or more high attacks, ten or more attacks of any level.
func ShouldBlockIP(ip string, history []models.AttackLog, now time.Time) (bool, string) {
	cutoff := now.Add(-BlockWindow)
	var total, critical, high int
	for _, a := range history {
		if a.ClientIP != ip || !a.CreatedAt.After(cutoff) {
			continue
		}
		total++
		switch detector.Severity(a.RiskLevel) {
		case detector.SeverityCritical:
			critical++
		case detector.SeverityHigh:
			high++
		}
	}

	switch {
	case critical >= criticalBlockThreshold:
		return true, "3+ ataques críticos detectados"
	case high >= highBlockThreshold:
		return true, "5+ ataques de alta severidade"
	case total >= totalBlockThreshold:
		return true, fmt.Sprintf("%d ataques nas últimas 24h", total)
	}
	return false, ""
}
