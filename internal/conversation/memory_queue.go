package conversation

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// MemoryQueue carries follow-up tasks over a buffered channel. It stands in
// for SQS during local development and tests; payloads never serialize.
type MemoryQueue struct {
	tasks chan leasedTask
}

// NewMemoryQueue creates a MemoryQueue with the provided buffer capacity.
func NewMemoryQueue(buffer int) *MemoryQueue {
	if buffer <= 0 {
		buffer = 128
	}
	return &MemoryQueue{tasks: make(chan leasedTask, buffer)}
}

// Enqueue publishes a payload or blocks until ctx is done.
func (q *MemoryQueue) Enqueue(ctx context.Context, payload taskPayload) error {
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case q.tasks <- leasedTask{payload: payload, receipt: uuid.NewString()}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dequeue blocks until a task arrives, ctx is done, or waitSeconds elapses.
// Once the first task arrives, whatever else is already buffered is drained
// up to limit without waiting again.
func (q *MemoryQueue) Dequeue(ctx context.Context, limit, waitSeconds int) ([]leasedTask, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if limit <= 0 {
		limit = 1
	}

	var first leasedTask
	if waitSeconds > 0 {
		timer := time.NewTimer(time.Duration(waitSeconds) * time.Second)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, nil
		case first = <-q.tasks:
		}
	} else {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case first = <-q.tasks:
		}
	}

	tasks := append(make([]leasedTask, 0, limit), first)
	for len(tasks) < limit {
		select {
		case task := <-q.tasks:
			tasks = append(tasks, task)
		default:
			return tasks, nil
		}
	}
	return tasks, nil
}

// Ack is a no-op; the channel read already consumed the task.
func (q *MemoryQueue) Ack(_ context.Context, _ string) error {
	return nil
}
