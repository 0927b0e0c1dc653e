package conversation

import (
	"context"
	"fmt"

	"github.com/urbanstyle/supportbot/pkg/logging"
)

// Publisher schedules deferred follow-up work for asynchronous processing.
// It is the only thing Phase 1 of the interactive channel does beyond the
// immediate acknowledgment.
type Publisher struct {
	queue  followupQueue
	logger *logging.Logger
}

// NewPublisher creates a queue-backed publisher.
func NewPublisher(queue followupQueue, logger *logging.Logger) *Publisher {
	if queue == nil {
		panic("conversation: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Publisher{
		queue:  queue,
		logger: logger,
	}
}

// EnqueueFollowup publishes a deferred-reply task.
func (p *Publisher) EnqueueFollowup(ctx context.Context, task DeferredTask) error {
	if ctx == nil {
		ctx = context.Background()
	}

	payload := newFollowupPayload(task)
	if err := p.queue.Enqueue(ctx, payload); err != nil {
		return fmt.Errorf("conversation: enqueue follow-up task: %w", err)
	}

	p.logger.Debug("follow-up task enqueued", "task_id", payload.ID, "user", logging.SenderHash(task.UserID))
	return nil
}
