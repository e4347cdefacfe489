// Package notification delivers domain notifications after the business
// transaction commits. Delivery is asynchronous and best-effort: failures are
// retried a few times, logged, and never reported back to the caller.
package notification

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"onrent-backend/internal/domain"
	"onrent-backend/internal/logger"
)

// Channel is one delivery medium.
type Channel interface {
	Name() string
	Send(ctx context.Context, n domain.Notification) error
}

type job struct {
	ID           string
	Channel      Channel
	Notification domain.Notification
	Retries      int
	CreatedAt    time.Time
}

// Queue fans each notification out to every channel and processes the
// resulting jobs on a fixed pool of workers.
type Queue struct {
	channels    []Channel
	jobs        chan job
	workers     int
	maxRetries  int
	backoff     func(retry int) time.Duration
	sendTimeout time.Duration

	wg      sync.WaitGroup
	mu      sync.RWMutex
	stopped bool
}

func NewQueue(channels []Channel, workers, queueSize, maxRetries int) *Queue {
	if workers <= 0 {
		workers = 2
	}
	if queueSize <= 0 {
		queueSize = 100
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Queue{
		channels:   channels,
		jobs:       make(chan job, queueSize),
		workers:    workers,
		maxRetries: maxRetries,
		backoff: func(retry int) time.Duration {
			return time.Duration(retry*retry) * time.Second
		},
		sendTimeout: 10 * time.Second,
	}
}

// Start launches the workers. They exit when ctx is cancelled.
func (q *Queue) Start(ctx context.Context) {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, i)
	}
	logger.Info("Notification queue started", "workers", q.workers, "channels", len(q.channels))
}

// Wait blocks until every worker has exited.
func (q *Queue) Wait() {
	q.wg.Wait()
}

func (q *Queue) worker(ctx context.Context, id int) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			q.mu.Lock()
			q.stopped = true
			q.mu.Unlock()
			q.drain(id)
			return
		case j := <-q.jobs:
			q.process(ctx, j)
		}
	}
}

// drain delivers whatever is still buffered, without retries.
func (q *Queue) drain(id int) {
	ctx := context.Background()
	n := 0
	for {
		select {
		case j := <-q.jobs:
			j.Retries = q.maxRetries
			q.process(ctx, j)
			n++
		default:
			logger.Debug("Notification worker stopping", "worker", id, "drained", n)
			return
		}
	}
}

func (q *Queue) process(ctx context.Context, j job) {
	sendCtx, cancel := context.WithTimeout(ctx, q.sendTimeout)
	defer cancel()

	logger.ExternalServiceCall(j.Channel.Name(), "Send", "jobID", j.ID, "userID", j.Notification.UserID, "event", j.Notification.Event)
	err := j.Channel.Send(sendCtx, j.Notification)
	logger.ExternalServiceResult(j.Channel.Name(), "Send", err, "jobID", j.ID)
	if err == nil {
		return
	}

	if j.Retries >= q.maxRetries {
		logger.Error("Notification dropped after retries", "jobID", j.ID, "channel", j.Channel.Name(), "retries", j.Retries, "error", err)
		return
	}
	j.Retries++
	delay := q.backoff(j.Retries)
	logger.Warn("Retrying notification", "jobID", j.ID, "channel", j.Channel.Name(), "attempt", j.Retries, "delay", delay)
	time.AfterFunc(delay, func() {
		if err := q.enqueue(j); err != nil {
			logger.Error("Failed to requeue notification", "jobID", j.ID, "error", err)
		}
	})
}

func (q *Queue) enqueue(j job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.stopped {
		return fmt.Errorf("notification queue is stopped")
	}
	select {
	case q.jobs <- j:
		return nil
	default:
		return fmt.Errorf("notification queue is full")
	}
}

// Notify enqueues one job per channel. It never blocks.
func (q *Queue) Notify(ctx context.Context, n domain.Notification) {
	if n.UserID <= 0 {
		return
	}
	for _, ch := range q.channels {
		j := job{
			ID:           uuid.NewString(),
			Channel:      ch,
			Notification: n,
			CreatedAt:    time.Now(),
		}
		if err := q.enqueue(j); err != nil {
			logger.WarnContext(ctx, "Notification not queued", "channel", ch.Name(), "userID", n.UserID, "event", n.Event, "error", err)
		}
	}
}
