package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	blockTimeout   = 5 * time.Second
	heartbeatTTL   = 30 * time.Second
	heartbeatEvery = 10 * time.Second
)

// RedisQueue keeps pending jobs in a list and moves each dequeued job
// atomically to a processing list until it is acked. Every RedisQueue is a
// separate consumer with its own processing list, kept alive by a heartbeat
// key. Recover only reclaims the lists of consumers whose heartbeat expired.
type RedisQueue struct {
	client     *redis.Client
	consumer   string
	pending    string
	processing string
	consumers  string
	heartbeat  string
	prefix     string
	results    string

	ttl       time.Duration
	every     time.Duration
	beatOnce  sync.Once
	stopBeat  context.CancelFunc
	beatCtx   context.Context
	beatDone  chan struct{}
	closeOnce sync.Once
}

// NewRedisQueue connects to redisURL (redis://host:port/db) and uses name as the key prefix.
func NewRedisQueue(redisURL, name string) (*RedisQueue, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return NewRedisQueueWithClient(redis.NewClient(opts), name), nil
}

func NewRedisQueueWithClient(client *redis.Client, name string) *RedisQueue {
	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	return &RedisQueue{
		client:     client,
		consumer:   id,
		pending:    name,
		processing: name + ":processing:" + id,
		consumers:  name + ":consumers",
		heartbeat:  name + ":heartbeat:" + id,
		prefix:     name,
		results:    name + ":result:",
		ttl:        heartbeatTTL,
		every:      heartbeatEvery,
		stopBeat:   cancel,
		beatCtx:    ctx,
		beatDone:   make(chan struct{}),
	}
}

// register announces this consumer and keeps its heartbeat fresh until Close.
func (q *RedisQueue) register(ctx context.Context) error {
	var err error
	q.beatOnce.Do(func() {
		err = q.touch(ctx)
		go q.beat()
	})
	return err
}

func (q *RedisQueue) beat() {
	defer close(q.beatDone)
	t := time.NewTicker(q.every)
	defer t.Stop()
	for {
		select {
		case <-q.beatCtx.Done():
			return
		case <-t.C:
			_ = q.touch(q.beatCtx)
		}
	}
}

func (q *RedisQueue) touch(ctx context.Context) error {
	_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, q.consumers, q.consumer)
		pipe.Set(ctx, q.heartbeat, "1", q.ttl)
		return nil
	})
	return err
}

func (q *RedisQueue) Enqueue(ctx context.Context, job Job) error {
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now()
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return q.client.LPush(ctx, q.pending, raw).Err()
}

func (q *RedisQueue) Dequeue(ctx context.Context) (*Delivery, error) {
	if err := q.register(ctx); err != nil {
		return nil, err
	}
	for {
		raw, err := q.client.BLMove(ctx, q.pending, q.processing, "RIGHT", "LEFT", blockTimeout).Result()
		if errors.Is(err, redis.Nil) {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if errors.Is(err, redis.ErrClosed) {
				return nil, ErrClosed
			}
			return nil, err
		}
		var job Job
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			// drop undecodable payloads so they do not loop forever
			q.client.LRem(ctx, q.processing, 1, raw)
			return nil, err
		}
		return &Delivery{Job: job, raw: raw}, nil
	}
}

func (q *RedisQueue) Ack(ctx context.Context, d *Delivery) error {
	return q.client.LRem(ctx, q.processing, 1, d.raw).Err()
}

func (q *RedisQueue) Nack(ctx context.Context, d *Delivery) error {
	_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LRem(ctx, q.processing, 1, d.raw)
		pipe.LPush(ctx, q.pending, d.raw)
		return nil
	})
	return err
}

// Recover registers this consumer, then moves the jobs held by consumers
// whose heartbeat has expired back to pending. Jobs in the processing list
// of a live consumer are left alone.
func (q *RedisQueue) Recover(ctx context.Context) (int, error) {
	if err := q.register(ctx); err != nil {
		return 0, err
	}
	ids, err := q.client.SMembers(ctx, q.consumers).Result()
	if err != nil {
		return 0, err
	}
	n := 0
	for _, id := range ids {
		if id == q.consumer {
			continue
		}
		alive, err := q.client.Exists(ctx, q.prefix+":heartbeat:"+id).Result()
		if err != nil {
			return n, err
		}
		if alive > 0 {
			continue
		}
		moved, err := q.drain(ctx, q.prefix+":processing:"+id)
		n += moved
		if err != nil {
			return n, err
		}
		if err := q.client.SRem(ctx, q.consumers, id).Err(); err != nil {
			return n, err
		}
	}
	return n, nil
}

func (q *RedisQueue) drain(ctx context.Context, list string) (int, error) {
	n := 0
	for {
		err := q.client.LMove(ctx, list, q.pending, "RIGHT", "RIGHT").Err()
		if errors.Is(err, redis.Nil) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		n++
	}
}

func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.pending).Result()
}

func (q *RedisQueue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

// SetResult caches a finished job's payload for ttl.
func (q *RedisQueue) SetResult(ctx context.Context, jobID string, payload []byte, ttl time.Duration) error {
	return q.client.Set(ctx, q.results+jobID, payload, ttl).Err()
}

// Result returns a cached payload, or nil when absent or expired.
func (q *RedisQueue) Result(ctx context.Context, jobID string) ([]byte, error) {
	b, err := q.client.Get(ctx, q.results+jobID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return b, err
}

// Close stops the heartbeat and drops it, so the next Recover anywhere hands
// out whatever this consumer still held.
func (q *RedisQueue) Close() error {
	q.closeOnce.Do(q.stop)
	return q.client.Close()
}

func (q *RedisQueue) stop() {
	q.stopBeat()
	// a consumer that never registered has no heartbeat goroutine
	q.beatOnce.Do(func() { close(q.beatDone) })
	<-q.beatDone
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	q.client.Del(ctx, q.heartbeat)
}
