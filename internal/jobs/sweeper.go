package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/Wikid82/phishguard/internal/logger"
	"github.com/Wikid82/phishguard/internal/queue"
	"github.com/Wikid82/phishguard/internal/services"
)

const (
	abandonedMessage = "Análise abandonada: worker não concluiu o processamento"
	sweepBatch       = 100
)

type SweeperOptions struct {
	Submissions *services.SubmissionService
	Attacks     *services.AttackLogService
	Queue       queue.Queue
	JobTimeout  time.Duration
	ResultTTL   time.Duration
	// Retention is how long attack logs are kept. Zero disables pruning.
	Retention time.Duration
}

// Sweeper repairs jobs that fell out of the pipeline and prunes old attack
// logs on a cron schedule.
type Sweeper struct {
	Cron *cron.Cron

	subs       *services.SubmissionService
	attacks    *services.AttackLogService
	queue      queue.Queue
	jobTimeout time.Duration
	resultTTL  time.Duration
	retention  time.Duration
	now        func() time.Time
	log        *logrus.Entry
}

func NewSweeper(opts SweeperOptions) *Sweeper {
	s := &Sweeper{
		Cron:       cron.New(),
		subs:       opts.Submissions,
		attacks:    opts.Attacks,
		queue:      opts.Queue,
		jobTimeout: opts.JobTimeout,
		resultTTL:  opts.ResultTTL,
		retention:  opts.Retention,
		now:        time.Now,
		log:        logger.Component("sweeper"),
	}
	if s.jobTimeout <= 0 {
		s.jobTimeout = DefaultJobTimeout
	}
	if s.resultTTL <= 0 {
		s.resultTTL = DefaultResultTTL
	}
	return s
}

// Start schedules the sweep and the retention prune and starts the cron.
func (s *Sweeper) Start(sweepSpec, retentionSpec string) error {
	if _, err := s.Cron.AddFunc(sweepSpec, func() {
		if _, _, err := s.Sweep(context.Background()); err != nil {
			s.log.WithError(err).Error("sweep failed")
		}
	}); err != nil {
		return err
	}
	if s.attacks != nil && s.retention > 0 && retentionSpec != "" {
		if _, err := s.Cron.AddFunc(retentionSpec, func() {
			if _, err := s.Prune(); err != nil {
				s.log.WithError(err).Error("attack log prune failed")
			}
		}); err != nil {
			return err
		}
	}
	s.Cron.Start()
	return nil
}

// Stop stops the scheduler and waits for a running sweep.
func (s *Sweeper) Stop() {
	<-s.Cron.Stop().Done()
}

// Sweep fails jobs stuck in processing for twice the job timeout and, when
// the queue is empty, re-enqueues queued jobs older than the job timeout.
// An empty queue with old queued rows means their deliveries were lost.
func (s *Sweeper) Sweep(ctx context.Context) (requeued int, failed int64, err error) {
	now := s.now()

	failed, err = s.subs.FailAbandoned(now.Add(-2*s.jobTimeout), abandonedMessage)
	if err != nil {
		return 0, 0, err
	}
	if failed > 0 {
		s.log.WithField("count", failed).Warn("failed abandoned jobs")
	}

	pending, err := s.queue.Len(ctx)
	if err != nil {
		return 0, failed, err
	}
	if pending > 0 {
		return 0, failed, nil
	}

	stale, err := s.subs.StaleQueued(now.Add(-s.jobTimeout), sweepBatch)
	if err != nil {
		return 0, failed, err
	}
	for _, sub := range stale {
		job := queue.Job{
			ID:         sub.JobID,
			URL:        sub.URL,
			UserID:     sub.UserID,
			Timeout:    s.jobTimeout,
			ResultTTL:  s.resultTTL,
			EnqueuedAt: now,
		}
		if err := s.queue.Enqueue(ctx, job); err != nil {
			return requeued, failed, err
		}
		requeued++
	}
	if requeued > 0 {
		s.log.WithField("count", requeued).Info("re-enqueued stale jobs")
	}
	return requeued, failed, nil
}

// Prune deletes attack logs older than the retention window. It does nothing
// when retention is disabled.
func (s *Sweeper) Prune() (int64, error) {
	if s.attacks == nil || s.retention <= 0 {
		return 0, nil
	}
	n, err := s.attacks.PruneBefore(s.now().Add(-s.retention))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.WithField("count", n).Info("pruned attack logs")
	}
	return n, nil
}
