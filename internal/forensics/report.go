package forensics

import (
	"strings"
	"time"

	"github.com/Wikid82/phishguard/internal/util"
)

const maxPayload = 500

// Recommendations is the fixed response checklist attached to every report.
var Recommendations = []string{
	"Bloquear IP imediatamente",
	"Adicionar à blacklist permanente",
	"Reportar às autoridades se necessário",
	"Monitorar padrões similares",
}

// AttackContext is the input to BuildReport and AnalyzePattern.
type AttackContext struct {
	ThreatType     string      `json:"threat_type"`
	RiskLevel      string      `json:"risk_level"`
	TargetURL      string      `json:"target_url"`
	Payload        string      `json:"payload"`
	Metadata       Metadata    `json:"metadata"`
	ThreatAnalysis interface{} `json:"threat_analysis,omitempty"`
	Time           time.Time   `json:"time"`
}

type AttackDetails struct {
	Type     string `json:"type"`
	Severity string `json:"severity"`
	Target   string `json:"target"`
	Payload  string `json:"payload"`
}

type AttackerInfo struct {
	IPAddress     string `json:"ip_address"`
	IPInformation IPInfo `json:"ip_information"`
	UserAgent     string `json:"user_agent"`
	Browser       string `json:"browser"`
	OS            string `json:"os"`
	IsBot         bool   `json:"is_bot"`
	IsProxied     bool   `json:"is_proxied"`
}

type NetworkInfo struct {
	Referer        string `json:"referer,omitempty"`
	XForwardedFor  string `json:"x_forwarded_for,omitempty"`
	ConnectionType string `json:"connection_type,omitempty"`
}

// Report is a structured incident record for audit and export.
type Report struct {
	ReportID        string        `json:"report_id"`
	Timestamp       time.Time     `json:"timestamp"`
	AttackDetails   AttackDetails `json:"attack_details"`
	AttackerInfo    AttackerInfo  `json:"attacker_info"`
	NetworkInfo     NetworkInfo   `json:"network_info"`
	ThreatAnalysis  interface{}   `json:"threat_analysis,omitempty"`
	Recommendations []string      `json:"recommendations"`
}

// BuildReport assembles the incident record. It performs no I/O.
func BuildReport(ac AttackContext) Report {
	at := ac.Time
	if at.IsZero() {
		at = ac.Metadata.Timestamp
	}
	m := ac.Metadata

	recs := make([]string, len(Recommendations))
	copy(recs, Recommendations)

	return Report{
		ReportID:  ReportID(at, m.ClientIP),
		Timestamp: at,
		AttackDetails: AttackDetails{
			Type:     orUnknown(ac.ThreatType),
			Severity: orUnknown(ac.RiskLevel),
			Target:   orUnknown(ac.TargetURL),
			Payload:  util.Truncate(ac.Payload, maxPayload),
		},
		AttackerInfo: AttackerInfo{
			IPAddress:     m.ClientIP,
			IPInformation: m.IPInfo,
			UserAgent:     m.UserAgent,
			Browser:       m.Browser,
			OS:            m.OS,
			IsBot:         m.IsBot,
			IsProxied:     m.IsProxied,
		},
		NetworkInfo: NetworkInfo{
			Referer:        m.Referer,
			XForwardedFor:  m.XForwardedFor,
			ConnectionType: m.Connection,
		},
		ThreatAnalysis:  ac.ThreatAnalysis,
		Recommendations: recs,
	}
}

// ReportID formats "ATK-YYYYMMDD-HHMMSS-<ip>" with dots and colons replaced by dashes.
func ReportID(at time.Time, ip string) string {
	if ip == "" {
		ip = "unknown"
	}
	ip = strings.NewReplacer(".", "-", ":", "-").Replace(ip)
	return "ATK-" + at.Format("20060102-150405") + "-" + ip
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
