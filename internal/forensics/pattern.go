package forensics

import "time"

// Pattern summarizes one or more attacks believed to share an origin.
type Pattern struct {
	AttackType  string    `json:"attack_type"`
	Frequency   int       `json:"frequency"`
	FirstSeen   time.Time `json:"first_seen"`
	LastSeen    time.Time `json:"last_seen"`
	IPAddresses []string  `json:"ip_addresses"`
	UserAgents  []string  `json:"user_agents"`
	Targets     []string  `json:"targets"`
	RiskScore   int       `json:"risk_score"`
}

// AnalyzePattern scores a group of attacks: +50 when any source is public
// (+10 when all are private), +30 for more than one source address, +20 when
// any request came from a bot, and +100/+50 for a critical/high attack.
func AnalyzePattern(attacks ...AttackContext) Pattern {
	p := Pattern{Frequency: len(attacks), AttackType: "unknown"}
	if len(attacks) == 0 {
		return p
	}
	if attacks[0].ThreatType != "" {
		p.AttackType = attacks[0].ThreatType
	}

	ips := newOrderedSet()
	uas := newOrderedSet()
	targets := newOrderedSet()
	public, bot := false, false
	worst := ""

	for _, a := range attacks {
		at := a.Time
		if at.IsZero() {
			at = a.Metadata.Timestamp
		}
		if p.FirstSeen.IsZero() || at.Before(p.FirstSeen) {
			p.FirstSeen = at
		}
		if at.After(p.LastSeen) {
			p.LastSeen = at
		}
		ips.add(a.Metadata.ClientIP)
		uas.add(orUnknown(a.Metadata.UserAgent))
		targets.add(orUnknown(a.TargetURL))

		if !a.Metadata.IPInfo.IsPrivate {
			public = true
		}
		if a.Metadata.IsBot {
			bot = true
		}
		if severityRank(a.RiskLevel) > severityRank(worst) {
			worst = a.RiskLevel
		}
	}

	p.IPAddresses, p.UserAgents, p.Targets = ips.items, uas.items, targets.items

	if public {
		p.RiskScore += 50
	} else {
		p.RiskScore += 10
	}
	if len(p.IPAddresses) > 1 {
		p.RiskScore += 30
	}
	if bot {
		p.RiskScore += 20
	}
	switch worst {
	case "critical":
		p.RiskScore += 100
	case "high":
		p.RiskScore += 50
	}
	return p
}

func severityRank(s string) int {
	switch s {
	case "critical":
		return 3
	case "high":
		return 2
	case "medium":
		return 1
	}
	return 0
}

type orderedSet struct {
	seen  map[string]bool
	items []string
}

func newOrderedSet() *orderedSet { return &orderedSet{seen: map[string]bool{}} }

func (s *orderedSet) add(v string) {
	if v == "" || s.seen[v] {
		return
	}
	s.seen[v] = true
	s.items = append(s.items, v)
}
