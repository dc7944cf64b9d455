package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/Wikid82/phishguard/internal/analysis"
	"github.com/Wikid82/phishguard/internal/config"
	"github.com/Wikid82/phishguard/internal/database"
	"github.com/Wikid82/phishguard/internal/defense"
	"github.com/Wikid82/phishguard/internal/detector"
	"github.com/Wikid82/phishguard/internal/jobs"
	"github.com/Wikid82/phishguard/internal/logger"
	"github.com/Wikid82/phishguard/internal/metrics"
	"github.com/Wikid82/phishguard/internal/queue"
	"github.com/Wikid82/phishguard/internal/render"
	"github.com/Wikid82/phishguard/internal/services"
	"github.com/Wikid82/phishguard/internal/trust"
	"github.com/Wikid82/phishguard/internal/validate"
	"github.com/Wikid82/phishguard/internal/version"
)

// app holds the components shared by the serve and worker commands.
type app struct {
	cfg   config.Config
	rules config.Rules
	db    *gorm.DB
	log   *logrus.Entry

	queue    queue.Queue
	registry *prometheus.Registry
	prom     *metrics.Prometheus
	counters *metrics.Atomic
	sink     metrics.Sink

	resolver      *validate.DNSResolver
	detector      *detector.Detector
	scorer        *trust.Scorer
	renderer      render.Provider
	notifications *services.NotificationService
	engine        *defense.Engine
	coordinator   *jobs.Coordinator
	sweeper       *jobs.Sweeper

	closers []func() error
}

func newApp(cfg config.Config) (*app, error) {
	a := &app{cfg: cfg, log: logger.Component("app")}
	if err := a.build(); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) build() error {
	rules, err := config.LoadRules(a.cfg.RulesPath)
	if err != nil {
		return err
	}
	a.rules = rules

	db, err := database.Connect(a.cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	a.db = db
	if sqlDB, err := db.DB(); err == nil {
		a.closers = append(a.closers, sqlDB.Close)
	}
	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	if added, err := services.NewTrainingService(db).Seed(); err != nil {
		return fmt.Errorf("seed training cases: %w", err)
	} else if added > 0 {
		a.log.WithField("added", added).Info("seeded training cases")
	}

	q, err := openQueue(a.cfg.Queue)
	if err != nil {
		return err
	}
	a.queue = q
	a.closers = append(a.closers, q.Close)

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.prom = metrics.NewPrometheus()
	a.prom.Register(a.registry)
	a.counters = &metrics.Atomic{}
	a.sink = metrics.Multi{a.prom, a.counters}

	if a.detector, err = detector.New(rules.Detector); err != nil {
		return fmt.Errorf("build detector: %w", err)
	}
	if a.scorer, err = trust.NewScorer(rules.Trust); err != nil {
		return fmt.Errorf("build trust scorer: %w", err)
	}
	a.resolver = validate.NewDNSResolver(a.cfg.Render.DNSServer)
	a.renderer = a.openRenderer()

	blacklist := services.NewBlacklistService(db)
	a.notifications = services.NewNotificationService(db, a.cfg.Notify.URLs)
	a.engine = defense.NewEngine(defense.Options{
		Blacklist:  blacklist,
		Quarantine: services.NewQuarantineService(db),
		Attacks:    services.NewAttackLogService(db),
		Decisions:  services.NewSecurityService(db),
		Notifier:   a.notifications,
		Metrics:    a.sink,
	})

	analyzer, err := analysis.New(analysis.Options{
		Rules:     rules.Analysis,
		Detector:  a.detector,
		Scorer:    a.scorer,
		Typosquat: trust.NewTyposquatter(rules.Trust.ProtectedDomains),
		TLS:       trust.NewNetTLSProbe(),
		Renderer:  a.renderer,
		Blacklist: blacklist,
		Threats:   a.engine,
	})
	if err != nil {
		return fmt.Errorf("build analyzer: %w", err)
	}

	submissions := services.NewSubmissionService(db)
	a.coordinator = jobs.NewCoordinator(jobs.Options{
		Submissions: submissions,
		Queue:       q,
		Results:     resultCache(q),
		Analyzer:    analyzer,
		Validator:   validate.New(rules.Validation, a.resolver),
		Metrics:     a.sink,
		Timeout:     a.cfg.Queue.JobTimeout,
		ResultTTL:   a.cfg.Queue.ResultTTL,
	})
	a.sweeper = jobs.NewSweeper(jobs.SweeperOptions{
		Submissions: submissions,
		Attacks:     services.NewAttackLogService(db),
		Queue:       q,
		JobTimeout:  a.cfg.Queue.JobTimeout,
		ResultTTL:   a.cfg.Queue.ResultTTL,
		Retention:   a.cfg.Queue.Retention,
	})
	return nil
}

func openQueue(cfg config.QueueConfig) (queue.Queue, error) {
	switch cfg.Backend {
	case "", "memory":
		return queue.NewMemoryQueue(), nil
	case "redis":
		q, err := queue.NewRedisQueue(cfg.RedisURL, cfg.Name)
		if err != nil {
			return nil, fmt.Errorf("open redis queue: %w", err)
		}
		return q, nil
	default:
		return nil, fmt.Errorf("unknown queue backend %q", cfg.Backend)
	}
}

func resultCache(q queue.Queue) queue.ResultCache {
	if rc, ok := q.(queue.ResultCache); ok {
		return rc
	}
	return nil
}

// openRenderer starts headless Chrome when enabled. A browser that fails to
// start downgrades analysis to the checks that need no page content.
func (a *app) openRenderer() render.Provider {
	if !a.cfg.Render.Enabled {
		return render.Disabled{}
	}
	cp, err := render.NewChromeProvider(a.cfg.Render.ChromePath, version.UserAgent(), a.cfg.Render.Timeout)
	if err != nil {
		a.log.WithError(err).Warn("page renderer unavailable, content checks disabled")
		return render.Disabled{}
	}
	a.closers = append(a.closers, cp.Close)
	return cp
}

// startBackground runs the engine review loop, the worker pool and the
// sweeper until ctx is done. The returned func waits for them to stop.
func (a *app) startBackground(ctx context.Context) (func(), error) {
	if err := a.sweeper.Start(a.cfg.Queue.SweepSpec, a.cfg.Queue.RetentionSpec); err != nil {
		return nil, fmt.Errorf("start sweeper: %w", err)
	}

	engineDone := make(chan struct{})
	go func() {
		defer close(engineDone)
		a.engine.Run(ctx)
	}()

	pool := jobs.NewPool(a.coordinator, a.queue, a.cfg.Queue.Workers)
	pool.Start(ctx)

	return func() {
		a.sweeper.Stop()
		pool.Wait()
		<-engineDone
		a.notifications.Wait()
		snap := a.counters.Snapshot()
		a.log.WithFields(logrus.Fields{
			"submissions":    snap.Submissions,
			"jobs_processed": snap.JobsProcessed,
			"jobs_failed":    snap.JobsFailed,
			"quarantined":    snap.Quarantined,
			"ip_blocked":     snap.IPBlocked,
		}).Info("background workers stopped")
	}, nil
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.WithError(err).Warn("close failed")
		}
	}
	a.closers = nil
}
