package conversation

import (
	"context"

	"github.com/google/uuid"
)

// followupQueue moves typed follow-up tasks across the Phase 1 to Phase 2
// hop. Serialization is the queue's concern; the publisher and worker only
// ever see decoded payloads.
type followupQueue interface {
	Enqueue(ctx context.Context, payload taskPayload) error
	Dequeue(ctx context.Context, limit, waitSeconds int) ([]leasedTask, error)
	Ack(ctx context.Context, receipt string) error
}

// leasedTask is one dequeued payload plus the receipt needed to ack it.
type leasedTask struct {
	payload taskPayload
	receipt string
}

type taskKind string

const taskKindFollowup taskKind = "discord_followup"

// taskPayload is the unit of work crossing the hop. The transport does not
// guarantee automatic retry, so the consumer must be correct when run zero
// or one times.
type taskPayload struct {
	ID   string       `json:"id"`
	Kind taskKind     `json:"kind"`
	Task DeferredTask `json:"task"`
}

func newFollowupPayload(task DeferredTask) taskPayload {
	return taskPayload{
		ID:   uuid.NewString(),
		Kind: taskKindFollowup,
		Task: task,
	}
}
