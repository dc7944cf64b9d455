// Package jobs drives submissions through their lifecycle: intake, dispatch
// to the worker pool, analysis and persistence of the result.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Wikid82/phishguard/internal/logger"
	"github.com/Wikid82/phishguard/internal/metrics"
	"github.com/Wikid82/phishguard/internal/models"
	"github.com/Wikid82/phishguard/internal/queue"
	"github.com/Wikid82/phishguard/internal/services"
	"github.com/Wikid82/phishguard/internal/util"
)

var (
	// ErrAnalysisTimeout is returned when an analysis exceeds its budget. The
	// job is marked failed and not retried.
	ErrAnalysisTimeout = errors.New("analysis timeout")
	// ErrPersistence wraps store and queue failures. The job is left in its
	// prior state so it can be dispatched again.
	ErrPersistence = errors.New("persistence failure")
)

const (
	DefaultJobTimeout = 300 * time.Second
	DefaultResultTTL  = time.Hour

	timeoutMessage = "Timeout na análise"
)

// Analyzer produces the result for one job.
type Analyzer interface {
	Analyze(ctx context.Context, jobID, rawURL string) (*models.AnalysisResult, error)
}

// Validator rejects URLs that must never reach the analyzer.
type Validator interface {
	Validate(ctx context.Context, raw string) (*url.URL, error)
}

type Options struct {
	Submissions *services.SubmissionService
	Queue       queue.Queue
	// Results caches finished submissions for status polling. Optional.
	Results   queue.ResultCache
	Analyzer  Analyzer
	Validator Validator
	Metrics   metrics.Sink
	Timeout   time.Duration
	ResultTTL time.Duration
}

// Coordinator owns every status transition of a submission.
type Coordinator struct {
	subs      *services.SubmissionService
	queue     queue.Queue
	results   queue.ResultCache
	analyzer  Analyzer
	validator Validator
	metrics   metrics.Sink
	timeout   time.Duration
	resultTTL time.Duration
	now       func() time.Time
	log       *logrus.Entry
}

func NewCoordinator(opts Options) *Coordinator {
	c := &Coordinator{
		subs:      opts.Submissions,
		queue:     opts.Queue,
		results:   opts.Results,
		analyzer:  opts.Analyzer,
		validator: opts.Validator,
		metrics:   opts.Metrics,
		timeout:   opts.Timeout,
		resultTTL: opts.ResultTTL,
		now:       time.Now,
		log:       logger.Component("jobs"),
	}
	if c.metrics == nil {
		c.metrics = &metrics.Atomic{}
	}
	if c.timeout <= 0 {
		c.timeout = DefaultJobTimeout
	}
	if c.resultTTL <= 0 {
		c.resultTTL = DefaultResultTTL
	}
	return c
}

// Submit validates rawURL, persists a queued submission and enqueues it.
// Validation failures are returned as *validate.ValidationError.
func (c *Coordinator) Submit(ctx context.Context, rawURL string, userID *uint) (string, error) {
	if c.validator != nil {
		if _, err := c.validator.Validate(ctx, rawURL); err != nil {
			return "", err
		}
	}

	sub, err := c.subs.Create(rawURL, userID)
	if err != nil {
		return "", fmt.Errorf("%w: create submission: %v", ErrPersistence, err)
	}

	job := queue.Job{
		ID:         sub.JobID,
		URL:        sub.URL,
		UserID:     userID,
		Timeout:    c.timeout,
		ResultTTL:  c.resultTTL,
		EnqueuedAt: c.now(),
	}
	if err := c.queue.Enqueue(ctx, job); err != nil {
		logger.Job(c.log, sub.JobID).WithError(err).Error("enqueue failed")
		// a queued row nobody will ever dispatch is worse than a failed one
		if ferr := c.subs.Fail(sub.JobID, "Falha ao enfileirar análise"); ferr != nil {
			logger.Job(c.log, sub.JobID).WithError(ferr).Warn("failed to mark unqueued job")
		}
		return "", fmt.Errorf("%w: enqueue: %v", ErrPersistence, err)
	}

	c.metrics.IncSubmissions()
	c.log.WithFields(logrus.Fields{"job_id": sub.JobID, "url": util.SanitizeForLog(rawURL)}).Info("submission queued")
	return sub.JobID, nil
}

// Status returns the submission for jobID, served from the result cache when
// the job has finished recently.
func (c *Coordinator) Status(ctx context.Context, jobID string) (*models.Submission, error) {
	if c.results != nil {
		payload, err := c.results.Result(ctx, jobID)
		if err != nil {
			c.log.WithError(err).Debug("result cache read failed")
		} else if payload != nil {
			var sub models.Submission
			if err := json.Unmarshal(payload, &sub); err == nil {
				return &sub, nil
			}
		}
	}

	sub, err := c.subs.Get(jobID)
	if err != nil {
		if errors.Is(err, services.ErrSubmissionNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return sub, nil
}

// Process runs one delivery end to end. A delivery for a job that is no
// longer queued is acknowledged without side effects. Once the job is
// claimed the analysis ignores cancellation of ctx; only its own timeout
// stops it.
func (c *Coordinator) Process(ctx context.Context, d *queue.Delivery) error {
	job := d.Job
	log := logger.Job(c.log, job.ID)

	claimed, err := c.subs.Claim(job.ID)
	if err != nil {
		c.nack(ctx, d, log)
		return fmt.Errorf("%w: claim %s: %v", ErrPersistence, job.ID, err)
	}
	if !claimed {
		log.Debug("job already claimed or finished, skipping")
		c.ack(ctx, d, log)
		return nil
	}

	timeout := job.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	start := c.now()
	result, err := c.analyzer.Analyze(actx, job.ID, job.URL)
	timedOut := actx.Err() == context.DeadlineExceeded
	cancel()
	c.metrics.ObserveAnalysisDuration(c.now().Sub(start))

	if err != nil || timedOut {
		return c.fail(ctx, d, log, err, timedOut)
	}

	if err := c.subs.Complete(job.ID, result); err != nil {
		if errors.Is(err, services.ErrInvalidTransition) {
			// failed by the sweeper while we were analyzing
			log.Warn("job left processing before completion, result dropped")
			c.ack(ctx, d, log)
			return nil
		}
		c.release(ctx, d, log)
		return fmt.Errorf("%w: complete %s: %v", ErrPersistence, job.ID, err)
	}

	c.metrics.IncJobsProcessed(result.Level)
	c.cacheResult(ctx, job, log)
	c.ack(ctx, d, log)
	log.WithFields(logrus.Fields{"score": result.Score, "level": result.Level}).Info("analysis done")
	return nil
}

func (c *Coordinator) fail(ctx context.Context, d *queue.Delivery, log *logrus.Entry, cause error, timedOut bool) error {
	job := d.Job
	msg, reason, ret := timeoutMessage, "timeout", ErrAnalysisTimeout
	if !timedOut {
		msg = "Erro na análise: " + util.Truncate(cause.Error(), 200)
		reason = "error"
		ret = fmt.Errorf("analyze %s: %w", job.ID, cause)
	}

	if err := c.subs.Fail(job.ID, msg); err != nil {
		if errors.Is(err, services.ErrInvalidTransition) {
			c.ack(ctx, d, log)
			return ret
		}
		c.release(ctx, d, log)
		return fmt.Errorf("%w: fail %s: %v", ErrPersistence, job.ID, err)
	}

	c.metrics.IncJobsFailed(reason)
	c.cacheResult(ctx, job, log)
	c.ack(ctx, d, log)
	log.WithField("reason", reason).Warn(msg)
	return ret
}

func (c *Coordinator) cacheResult(ctx context.Context, job queue.Job, log *logrus.Entry) {
	if c.results == nil {
		return
	}
	sub, err := c.subs.Get(job.ID)
	if err != nil {
		log.WithError(err).Debug("reload for result cache failed")
		return
	}
	payload, err := json.Marshal(sub)
	if err != nil {
		return
	}
	ttl := job.ResultTTL
	if ttl <= 0 {
		ttl = c.resultTTL
	}
	if err := c.results.SetResult(ctx, job.ID, payload, ttl); err != nil {
		log.WithError(err).Warn("failed to cache result")
	}
}

// release returns a claimed job to queued and redelivers it.
func (c *Coordinator) release(ctx context.Context, d *queue.Delivery, log *logrus.Entry) {
	if err := c.subs.Release(d.Job.ID); err != nil {
		log.WithError(err).Warn("failed to release job")
	}
	c.nack(ctx, d, log)
}

func (c *Coordinator) ack(ctx context.Context, d *queue.Delivery, log *logrus.Entry) {
	if err := c.queue.Ack(context.WithoutCancel(ctx), d); err != nil {
		log.WithError(err).Warn("ack failed")
	}
}

func (c *Coordinator) nack(ctx context.Context, d *queue.Delivery, log *logrus.Entry) {
	if err := c.queue.Nack(context.WithoutCancel(ctx), d); err != nil {
		log.WithError(err).Warn("nack failed")
	}
}
