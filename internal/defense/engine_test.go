package defense

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/Wikid82/phishguard/internal/database"
	"github.com/Wikid82/phishguard/internal/detector"
	"github.com/Wikid82/phishguard/internal/forensics"
	"github.com/Wikid82/phishguard/internal/metrics"
	"github.com/Wikid82/phishguard/internal/models"
	"github.com/Wikid82/phishguard/internal/services"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) Notify(event, title, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *recordingNotifier) Events() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.events...)
}

type engineFixture struct {
	db       *gorm.DB
	engine   *Engine
	notifier *recordingNotifier
	metrics  *metrics.Atomic
}

func newEngineFixture(t *testing.T) engineFixture {
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { _ = sqlDB.Close() })

	n := &recordingNotifier{}
	m := &metrics.Atomic{}
	e := NewEngine(Options{
		Blacklist:  services.NewBlacklistService(db),
		Quarantine: services.NewQuarantineService(db),
		Attacks:    services.NewAttackLogService(db),
		Decisions:  services.NewSecurityService(db),
		Notifier:   n,
		Metrics:    m,
	})
	return engineFixture{db: db, engine: e, notifier: n, metrics: m}
}

func TestEngine_HandleURLThreat(t *testing.T) {
	f := newEngineFixture(t)

	clean := detector.Analysis{RiskLevel: detector.SeverityLow, Threats: []detector.Finding{}}
	done, err := f.engine.HandleURLThreat("https://example.com", clean)
	require.NoError(t, err)
	assert.False(t, done)

	bad := detector.Analysis{
		URL:         "http://evil.tk/?q=<script>",
		IsMalicious: true,
		RiskLevel:   detector.SeverityHigh,
		Threats:     []detector.Finding{{Category: detector.XSS, Severity: detector.SeverityHigh, Match: "<script>"}},
	}
	done, err = f.engine.HandleURLThreat(bad.URL, bad)
	require.NoError(t, err)
	assert.True(t, done)

	// repeated handling refreshes the same rows
	_, err = f.engine.HandleURLThreat(bad.URL, bad)
	require.NoError(t, err)

	var q []models.QuarantineEntry
	require.NoError(t, f.db.Find(&q).Error)
	require.Len(t, q, 1)
	assert.Equal(t, models.ItemURL, q[0].ItemType)
	assert.Equal(t, "high", q[0].RiskLevel)

	var bl []models.BlacklistEntry
	require.NoError(t, f.db.Find(&bl).Error)
	require.Len(t, bl, 1)
	assert.Equal(t, "attack_detected", bl[0].ThreatType)
	assert.True(t, bl[0].IsActive)

	var decisions []models.SecurityDecision
	require.NoError(t, f.db.Find(&decisions).Error)
	require.Len(t, decisions, 2)
	assert.Equal(t, "evil.tk", decisions[0].Host)
	assert.Equal(t, "xss", decisions[0].Details)

	assert.Equal(t, []string{eventQuarantine, eventQuarantine}, f.notifier.Events())
	assert.Equal(t, int64(2), f.metrics.Snapshot().Quarantined)
}

func TestEngine_HandleFileThreat(t *testing.T) {
	f := newEngineFixture(t)

	fa := detector.FileAnalysis{
		Filename:    "shell.php",
		Hash:        "0cc175b9c0f1b6a831c399e269772661",
		IsMalicious: false,
		RiskLevel:   detector.SeverityHigh,
		Threats:     []detector.Finding{{Category: detector.DangerousExtension, Severity: detector.SeverityHigh, Match: ".php"}},
	}
	done, err := f.engine.HandleFileThreat(fa, "admin@example.com")
	require.NoError(t, err)
	assert.True(t, done)

	var bl models.BlacklistEntry
	require.NoError(t, f.db.Where("item_type = ?", models.ItemHash).First(&bl).Error)
	assert.Equal(t, fa.Hash, bl.ItemValue)
	assert.Equal(t, "dangerous_extension", bl.ThreatType)
	assert.Equal(t, "admin@example.com", bl.AddedBy)

	benign := detector.FileAnalysis{Filename: "notes.txt", Hash: "abc", RiskLevel: detector.SeverityLow, Threats: []detector.Finding{}}
	done, err = f.engine.HandleFileThreat(benign, "")
	require.NoError(t, err)
	assert.False(t, done)
}

func TestEngine_RecordAttackAndReview(t *testing.T) {
	f := newEngineFixture(t)
	ip := "203.0.113.50"

	for i := 0; i < 3; i++ {
		report, err := f.engine.RecordAttack(forensics.AttackContext{
			ThreatType: "command_injection",
			RiskLevel:  "critical",
			TargetURL:  "/api/v1/verify",
			Payload:    "; cat /etc/passwd",
			Metadata:   forensics.Metadata{ClientIP: ip, UserAgent: "curl/8.0"},
		})
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(report.ReportID, "ATK-"))
		assert.True(t, strings.HasSuffix(report.ReportID, "203-0-113-50"))
	}
	assert.Len(t, f.engine.reviews, 3)

	blocked, err := f.engine.IsBlocked(ip)
	require.NoError(t, err)
	assert.False(t, blocked, "review is deferred")

	ok, reason, err := f.engine.ReviewIP(ip)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "3+ ataques críticos detectados", reason)

	blocked, err = f.engine.IsBlocked(ip)
	require.NoError(t, err)
	assert.True(t, blocked)

	// already blocked: no second decision
	ok, _, err = f.engine.ReviewIP(ip)
	require.NoError(t, err)
	assert.False(t, ok)

	snap := f.metrics.Snapshot()
	assert.Equal(t, int64(3), snap.Attacks)
	assert.Equal(t, int64(1), snap.IPBlocked)
	assert.Equal(t, []string{eventAutoBlock}, f.notifier.Events())
}

func TestEngine_RunDrainsReviews(t *testing.T) {
	f := newEngineFixture(t)
	ip := "198.51.100.77"
	for i := 0; i < 5; i++ {
		_, err := f.engine.RecordAttack(forensics.AttackContext{
			ThreatType: "sql_injection",
			RiskLevel:  "high",
			Metadata:   forensics.Metadata{ClientIP: ip},
		})
		require.NoError(t, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.engine.Run(ctx)

	assert.Eventually(t, func() bool {
		blocked, err := f.engine.IsBlocked(ip)
		return err == nil && blocked
	}, 2*time.Second, 10*time.Millisecond)
}

func TestEngine_ScheduleReviewNeverBlocks(t *testing.T) {
	e := NewEngine(Options{})
	assert.False(t, e.ScheduleReview(""))
	for i := 0; i < reviewQueueSize; i++ {
		require.True(t, e.ScheduleReview("192.0.2.1"))
	}
	assert.False(t, e.ScheduleReview("192.0.2.1"))
}

func TestEngine_HandleURLThreatKeepsAnalysisRisk(t *testing.T) {
	f := newEngineFixture(t)

	traversal := detector.Analysis{
		URL:         "http://files.example.com/?f=../../etc",
		IsMalicious: true,
		RiskLevel:   detector.SeverityMedium,
		Threats:     []detector.Finding{{Category: detector.PathTraversal, Severity: detector.SeverityMedium, Match: "../"}},
	}
	done, err := f.engine.HandleURLThreat(traversal.URL, traversal)
	require.NoError(t, err)
	assert.True(t, done)

	var q models.QuarantineEntry
	require.NoError(t, f.db.First(&q).Error)
	assert.Equal(t, "medium", q.RiskLevel)
}
