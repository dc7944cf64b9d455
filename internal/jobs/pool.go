package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Wikid82/phishguard/internal/logger"
	"github.com/Wikid82/phishguard/internal/queue"
)

const DefaultWorkers = 4

// Pool runs N workers pulling deliveries from a shared queue. Each worker
// processes one job at a time.
type Pool struct {
	coord   *Coordinator
	queue   queue.Queue
	workers int
	backoff time.Duration

	wg  sync.WaitGroup
	log *logrus.Entry
}

func NewPool(coord *Coordinator, q queue.Queue, workers int) *Pool {
	if workers < 1 {
		workers = DefaultWorkers
	}
	return &Pool{
		coord:   coord,
		queue:   q,
		workers: workers,
		backoff: time.Second,
		log:     logger.Component("worker"),
	}
}

// Start redelivers jobs left in flight by a previous process and launches the
// workers. Workers stop taking new jobs when ctx is done; Wait blocks until
// the jobs they hold are finished.
func (p *Pool) Start(ctx context.Context) {
	if n, err := p.queue.Recover(ctx); err != nil {
		p.log.WithError(err).Warn("failed to recover in-flight jobs")
	} else if n > 0 {
		p.log.WithField("count", n).Info("recovered in-flight jobs")
	}

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.run(ctx, i)
	}
	p.log.WithField("workers", p.workers).Info("worker pool started")
}

func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) run(ctx context.Context, id int) {
	defer p.wg.Done()
	log := p.log.WithField("worker", id)

	for {
		d, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, queue.ErrClosed) {
				return
			}
			log.WithError(err).Warn("dequeue failed")
			if !p.sleep(ctx) {
				return
			}
			continue
		}

		if err := p.coord.Process(ctx, d); err != nil {
			logger.Job(log, d.Job.ID).WithError(err).Warn("job did not complete")
			if errors.Is(err, ErrPersistence) && !p.sleep(ctx) {
				return
			}
		}
	}
}

func (p *Pool) sleep(ctx context.Context) bool {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
