package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Wikid82/phishguard/internal/api/middleware"
	"github.com/Wikid82/phishguard/internal/config"
	"github.com/Wikid82/phishguard/internal/defense"
	"github.com/Wikid82/phishguard/internal/detector"
	"github.com/Wikid82/phishguard/internal/jobs"
	"github.com/Wikid82/phishguard/internal/metrics"
	"github.com/Wikid82/phishguard/internal/models"
	"github.com/Wikid82/phishguard/internal/queue"
	"github.com/Wikid82/phishguard/internal/services"
	"github.com/Wikid82/phishguard/internal/validate"
)

type env struct {
	db          *gorm.DB
	queue       *queue.MemoryQueue
	submissions *services.SubmissionService
	blacklist   *services.BlacklistService
	quarantine  *services.QuarantineService
	attacks     *services.AttackLogService
	security    *services.SecurityService
	engine      *defense.Engine
	detector    *detector.Detector
	coordinator *jobs.Coordinator
	metrics     *metrics.Atomic
}

type lowRiskAnalyzer struct{}

func (lowRiskAnalyzer) Analyze(_ context.Context, jobID, rawURL string) (*models.AnalysisResult, error) {
	return &models.AnalysisResult{URL: rawURL, JobID: jobID, Level: models.LevelLow, Checks: []models.Check{}, Tips: []string{}}, nil
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := OpenTestDB(t)
	rules := config.DefaultRules()

	det, err := detector.New(rules.Detector)
	require.NoError(t, err)

	e := &env{
		db:          db,
		queue:       queue.NewMemoryQueue(),
		submissions: services.NewSubmissionService(db),
		blacklist:   services.NewBlacklistService(db),
		quarantine:  services.NewQuarantineService(db),
		attacks:     services.NewAttackLogService(db),
		security:    services.NewSecurityService(db),
		detector:    det,
		metrics:     &metrics.Atomic{},
	}
	e.engine = defense.NewEngine(defense.Options{
		Blacklist:  e.blacklist,
		Quarantine: e.quarantine,
		Attacks:    e.attacks,
		Decisions:  e.security,
		Metrics:    e.metrics,
	})
	e.coordinator = jobs.NewCoordinator(jobs.Options{
		Submissions: e.submissions,
		Queue:       e.queue,
		Results:     e.queue,
		Analyzer:    lowRiskAnalyzer{},
		Validator:   validate.New(rules.Validation, nil),
		Metrics:     e.metrics,
	})
	t.Cleanup(func() { _ = e.queue.Close() })
	return e
}

// asUser stands in for AuthMiddleware.
func asUser(id uint, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextUserID, id)
		c.Set(middleware.ContextRole, role)
		c.Next()
	}
}

func doRequest(r http.Handler, method, target string, body interface{}) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}
