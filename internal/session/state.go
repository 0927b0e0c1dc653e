// Package session owns per-sender conversation state. The pipeline holds only
// a transient read-then-overwrite copy per request; every write fully replaces
// the record and attaches a TTL so the backing store can reclaim idle sessions.
package session

import (
	"context"
	"time"
)

// DefaultTTL is how long a session record survives after its last write.
const DefaultTTL = 72 * time.Hour

// State is the single-turn summary persisted per sender.
type State struct {
	SenderID   string            `json:"sender_id" dynamodbav:"-"`
	LastIntent string            `json:"last_intent" dynamodbav:"last_intent"`
	LastReply  string            `json:"last_reply" dynamodbav:"last_reply"`
	UpdatedAt  time.Time         `json:"updated_at" dynamodbav:"-"`
	Escalation bool              `json:"escalation" dynamodbav:"escalation"`
	WindowOpen bool              `json:"window_open" dynamodbav:"window_open"`
	Attributes map[string]string `json:"attributes,omitempty" dynamodbav:"attributes,omitempty"`
}

// NewState returns a State with channel defaults applied.
func NewState(senderID string) State {
	return State{
		SenderID:   senderID,
		UpdatedAt:  time.Now().UTC(),
		WindowOpen: true,
	}
}

// Store is the Session Gateway contract. Get returns (nil, nil) when no
// record exists or it has expired; storage failures are returned, never
// swallowed. Put always fully replaces the record.
type Store interface {
	Get(ctx context.Context, senderID string) (*State, error)
	Put(ctx context.Context, senderID string, state State) error
}
