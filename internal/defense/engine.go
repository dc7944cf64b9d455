package defense

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Wikid82/phishguard/internal/detector"
	"github.com/Wikid82/phishguard/internal/forensics"
	"github.com/Wikid82/phishguard/internal/logger"
	"github.com/Wikid82/phishguard/internal/metrics"
	"github.com/Wikid82/phishguard/internal/models"
	"github.com/Wikid82/phishguard/internal/util"
)

// Store contracts the engine needs. The services package implements them.
type (
	Blacklist interface {
		Upsert(entry *models.BlacklistEntry) error
		IsBlacklisted(itemType, value string) (bool, error)
	}
	Quarantine interface {
		Quarantine(itemType, identifier string, analysis interface{}, riskLevel, notes string) (*models.QuarantineEntry, error)
	}
	AttackLog interface {
		Record(clientIP, attackType, riskLevel string, metadata, report interface{}) (*models.AttackLog, error)
		Since(ip string, since time.Time) ([]models.AttackLog, error)
	}
	DecisionLog interface {
		LogDecision(d *models.SecurityDecision) error
	}
	Notifier interface {
		Notify(event, title, message string)
	}
)

const (
	actorSystem     = "system"
	sourceEngine    = "engine"
	eventAutoBlock  = "auto_block"
	eventQuarantine = "quarantine"
	reviewQueueSize = 256
)

// Engine applies quarantine and blacklist decisions. IP auto-block reviews
// are deferred: RecordAttack enqueues the client IP and Run evaluates it off
// the request path.
type Engine struct {
	blacklist  Blacklist
	quarantine Quarantine
	attacks    AttackLog
	decisions  DecisionLog
	notifier   Notifier
	metrics    metrics.Sink
	log        *logrus.Entry

	reviews chan string
	now     func() time.Time
}

// Options wires the engine collaborators. Decisions, Notifier and Metrics may be nil.
type Options struct {
	Blacklist  Blacklist
	Quarantine Quarantine
	Attacks    AttackLog
	Decisions  DecisionLog
	Notifier   Notifier
	Metrics    metrics.Sink
}

func NewEngine(opts Options) *Engine {
	sink := opts.Metrics
	if sink == nil {
		sink = metrics.Nop{}
	}
	return &Engine{
		blacklist:  opts.Blacklist,
		quarantine: opts.Quarantine,
		attacks:    opts.Attacks,
		decisions:  opts.Decisions,
		notifier:   opts.Notifier,
		metrics:    sink,
		log:        logger.Component("defense"),
		reviews:    make(chan string, reviewQueueSize),
		now:        time.Now,
	}
}

// HandleURLThreat quarantines and blacklists a URL whose analysis warrants it.
func (e *Engine) HandleURLThreat(rawURL string, a detector.Analysis) (bool, error) {
	if !ShouldQuarantine(a) {
		return false, nil
	}
	risk := string(a.RiskLevel)
	if _, err := e.quarantine.Quarantine(models.ItemURL, rawURL, a, risk, "Ataque detectado durante análise"); err != nil {
		return false, err
	}
	e.metrics.IncQuarantined(models.ItemURL)

	if err := e.blacklist.Upsert(&models.BlacklistEntry{
		ItemType:   models.ItemURL,
		ItemValue:  rawURL,
		ThreatType: "attack_detected",
		AddedBy:    actorSystem,
	}); err != nil {
		return true, err
	}
	e.metrics.IncBlacklisted(models.ItemURL)

	e.logDecision("quarantine", "", hostOf(rawURL), "url_attack", categories(a.Threats))
	e.notify(eventQuarantine, "URL em quarentena", util.SanitizeForLog(rawURL)+" ("+risk+")")
	e.log.WithFields(logrus.Fields{"url": util.SanitizeForLog(rawURL), "risk_level": risk}).Warn("url quarantined")
	return true, nil
}

// HandleFileThreat quarantines and blacklists the hash of a file whose
// analysis warrants it.
func (e *Engine) HandleFileThreat(fa detector.FileAnalysis, actor string) (bool, error) {
	if !ShouldQuarantine(FileVerdict(fa)) {
		return false, nil
	}
	if actor == "" {
		actor = actorSystem
	}
	if _, err := e.quarantine.Quarantine(models.ItemHash, fa.Hash, fa, string(fa.RiskLevel), "Arquivo: "+fa.Filename); err != nil {
		return false, err
	}
	e.metrics.IncQuarantined(models.ItemHash)

	threat := "malicious_file"
	if len(fa.Threats) > 0 {
		threat = string(fa.Threats[0].Category)
	}
	if err := e.blacklist.Upsert(&models.BlacklistEntry{
		ItemType:   models.ItemHash,
		ItemValue:  fa.Hash,
		ThreatType: threat,
		AddedBy:    actor,
		Notes:      fa.Filename,
	}); err != nil {
		return true, err
	}
	e.metrics.IncBlacklisted(models.ItemHash)

	e.logDecision("quarantine", "", "", "file_"+threat, fa.Filename+" "+fa.Hash)
	e.notify(eventQuarantine, "Arquivo em quarentena", util.SanitizeForLog(fa.Filename)+" "+fa.Hash)
	return true, nil
}

// RecordAttack stores the attack with its forensic report and schedules a
// review of the client IP. The report is returned for the caller's response.
func (e *Engine) RecordAttack(ac forensics.AttackContext) (forensics.Report, error) {
	if ac.Time.IsZero() {
		ac.Time = e.now()
	}
	report := forensics.BuildReport(ac)
	ip := ac.Metadata.ClientIP
	if _, err := e.attacks.Record(ip, ac.ThreatType, ac.RiskLevel, ac.Metadata, report); err != nil {
		return report, err
	}
	e.metrics.IncAttacksDetected(ac.ThreatType)
	e.ScheduleReview(ip)
	return report, nil
}

// ScheduleReview enqueues ip for an auto-block review without blocking. When
// the queue is full the review is dropped; the next attack schedules it again.
func (e *Engine) ScheduleReview(ip string) bool {
	if ip == "" {
		return false
	}
	select {
	case e.reviews <- ip:
		return true
	default:
		e.log.WithField("ip", ip).Debug("review queue full, dropping")
		return false
	}
}

// Run evaluates scheduled reviews until ctx is done.
func (e *Engine) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ip := <-e.reviews:
			if _, _, err := e.ReviewIP(ip); err != nil {
				e.log.WithError(err).WithField("ip", ip).Warn("ip review failed")
			}
		}
	}
}

// ReviewIP applies ShouldBlockIP to the recent history of ip and blacklists
// it when the policy says so. Already blocked IPs are left alone.
func (e *Engine) ReviewIP(ip string) (bool, string, error) {
	blocked, err := e.blacklist.IsBlacklisted(models.ItemIP, ip)
	if err != nil {
		return false, "", err
	}
	if blocked {
		return false, "", nil
	}

	now := e.now()
	history, err := e.attacks.Since(ip, now.Add(-BlockWindow))
	if err != nil {
		return false, "", err
	}
	block, reason := ShouldBlockIP(ip, history, now)
	if !block {
		return false, "", nil
	}

	if err := e.blacklist.Upsert(&models.BlacklistEntry{
		ItemType:   models.ItemIP,
		ItemValue:  ip,
		ThreatType: eventAutoBlock,
		AddedBy:    actorSystem,
		Notes:      reason,
	}); err != nil {
		return false, "", err
	}
	e.metrics.IncIPBlocked()
	e.metrics.IncBlacklisted(models.ItemIP)
	e.logDecision("block", ip, "", eventAutoBlock, reason)
	e.notify(eventAutoBlock, "IP bloqueado automaticamente", ip+": "+reason)
	e.log.WithFields(logrus.Fields{"ip": ip, "reason": reason}).Warn("ip auto-blocked")
	return true, reason, nil
}

// IsBlocked reports whether ip is on the active blacklist.
func (e *Engine) IsBlocked(ip string) (bool, error) {
	return e.blacklist.IsBlacklisted(models.ItemIP, ip)
}

func (e *Engine) logDecision(action, ip, host, rule, details string) {
	if e.decisions == nil {
		return
	}
	if err := e.decisions.LogDecision(&models.SecurityDecision{
		Source:  sourceEngine,
		Action:  action,
		IP:      ip,
		Host:    host,
		RuleID:  rule,
		Details: details,
	}); err != nil {
		e.log.WithError(err).Warn("failed to log security decision")
	}
}

func (e *Engine) notify(event, title, message string) {
	if e.notifier != nil {
		e.notifier.Notify(event, title, message)
	}
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// categories lists the distinct finding categories in order of appearance.
func categories(findings []detector.Finding) string {
	seen := make(map[detector.Category]bool)
	var out []string
	for _, f := range findings {
		if !seen[f.Category] {
			seen[f.Category] = true
			out = append(out, string(f.Category))
		}
	}
	return strings.Join(out, ",")
}
