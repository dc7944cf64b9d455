package queue

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// MemoryQueue is an in-process FIFO for single-binary deployments and tests.
type MemoryQueue struct {
	mu       sync.Mutex
	pending  []string
	inflight map[string]int
	signal   chan struct{}
	closed   bool
	done     chan struct{}
	results  map[string]cachedResult
	now      func() time.Time
}

type cachedResult struct {
	payload []byte
	expiry  time.Time
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		inflight: make(map[string]int),
		signal:   make(chan struct{}, 1),
		done:     make(chan struct{}),
		results:  make(map[string]cachedResult),
		now:      time.Now,
	}
}

func (q *MemoryQueue) Enqueue(_ context.Context, job Job) error {
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now()
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.pending = append(q.pending, string(raw))
	q.mu.Unlock()
	q.wake()
	return nil
}

func (q *MemoryQueue) wake() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *MemoryQueue) Dequeue(ctx context.Context) (*Delivery, error) {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return nil, ErrClosed
		}
		if len(q.pending) > 0 {
			raw := q.pending[0]
			q.pending = q.pending[1:]
			q.inflight[raw]++
			more := len(q.pending) > 0
			q.mu.Unlock()
			if more {
				q.wake()
			}
			var job Job
			if err := json.Unmarshal([]byte(raw), &job); err != nil {
				return nil, err
			}
			return &Delivery{Job: job, raw: raw}, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-q.done:
			return nil, ErrClosed
		case <-q.signal:
		}
	}
}

func (q *MemoryQueue) Ack(_ context.Context, d *Delivery) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.release(d.raw)
	return nil
}

func (q *MemoryQueue) Nack(_ context.Context, d *Delivery) error {
	q.mu.Lock()
	q.release(d.raw)
	q.pending = append(q.pending, d.raw)
	q.mu.Unlock()
	q.wake()
	return nil
}

func (q *MemoryQueue) release(raw string) {
	if n := q.inflight[raw]; n > 1 {
		q.inflight[raw] = n - 1
	} else {
		delete(q.inflight, raw)
	}
}

// Recover moves every in-flight delivery back to the pending list.
func (q *MemoryQueue) Recover(_ context.Context) (int, error) {
	q.mu.Lock()
	n := 0
	for raw, count := range q.inflight {
		for i := 0; i < count; i++ {
			q.pending = append(q.pending, raw)
			n++
		}
	}
	q.inflight = make(map[string]int)
	q.mu.Unlock()
	if n > 0 {
		q.wake()
	}
	return n, nil
}

func (q *MemoryQueue) Len(_ context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.pending)), nil
}

func (q *MemoryQueue) Ping(context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	return nil
}

func (q *MemoryQueue) SetResult(_ context.Context, jobID string, payload []byte, ttl time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := q.now()
	for id, r := range q.results {
		if !now.Before(r.expiry) {
			delete(q.results, id)
		}
	}
	if ttl > 0 {
		q.results[jobID] = cachedResult{payload: payload, expiry: now.Add(ttl)}
	}
	return nil
}

func (q *MemoryQueue) Result(_ context.Context, jobID string) ([]byte, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	r, ok := q.results[jobID]
	if !ok || !q.now().Before(r.expiry) {
		return nil, nil
	}
	return r.payload, nil
}

func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.done)
	}
	return nil
}
