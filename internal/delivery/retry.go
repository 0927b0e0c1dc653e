// Package delivery holds the outbound send policy shared by every channel
// sender: bounded retry with doubling backoff, applied only to server-side
// failures of the delivery API.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	// DefaultBaseDelay is the first backoff interval; it doubles per attempt.
	DefaultBaseDelay = 500 * time.Millisecond
	// DefaultMaxAttempts bounds the total number of send attempts.
	DefaultMaxAttempts = 3
)

// StatusError is a non-2xx response from a delivery API.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("delivery: status %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether the failure is server-side. Client errors are
// permanent and never worth retrying.
func (e *StatusError) Retryable() bool {
	return e.StatusCode >= 500
}

// Policy controls WithRetry. The zero value is replaced by the defaults.
type Policy struct {
	BaseDelay   time.Duration
	MaxAttempts int
}

func (p Policy) withDefaults() Policy {
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultBaseDelay
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	return p
}

// WithRetry runs send, retrying only retryable StatusErrors with doubling
// backoff until the attempt budget runs out. Any other error returns
// immediately. The last error is returned when the budget is exhausted.
func WithRetry(ctx context.Context, policy Policy, send func(ctx context.Context) error) error {
	policy = policy.withDefaults()
	delay := policy.BaseDelay

	var err error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		err = send(ctx)
		if err == nil {
			return nil
		}

		var statusErr *StatusError
		if !errors.As(err, &statusErr) || !statusErr.Retryable() || attempt == policy.MaxAttempts {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}
