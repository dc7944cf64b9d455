// Package queue carries analysis jobs from intake to the worker pool with
// at-least-once delivery.
package queue

import (
	"context"
	"errors"
	"time"
)

var ErrClosed = errors.New("queue closed")

// Job is the unit of work handed to a worker.
type Job struct {
	ID         string        `json:"id"`
	URL        string        `json:"url"`
	UserID     *uint         `json:"user_id,omitempty"`
	Timeout    time.Duration `json:"timeout"`
	ResultTTL  time.Duration `json:"result_ttl"`
	EnqueuedAt time.Time     `json:"enqueued_at"`
}

// Delivery is a dequeued job awaiting Ack or Nack.
type Delivery struct {
	Job Job
	raw string
}

// Queue is implemented by MemoryQueue and RedisQueue. Dequeue blocks until
// a job is available or ctx is done. A delivery that is neither acked nor
// nacked stays in flight until Recover hands it out again. Recover only
// reclaims deliveries whose consumer is gone.
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Dequeue(ctx context.Context) (*Delivery, error)
	Ack(ctx context.Context, d *Delivery) error
	Nack(ctx context.Context, d *Delivery) error
	Recover(ctx context.Context) (int, error)
	Len(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}

// ResultCache stores finished job payloads for a bounded time so status
// polling does not hit the database. Both queues implement it.
type ResultCache interface {
	SetResult(ctx context.Context, jobID string, payload []byte, ttl time.Duration) error
	Result(ctx context.Context, jobID string) ([]byte, error)
}
