package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "session:"

// RedisStore is the Redis-backed session gateway used for local development
// and single-region deployments. Expiry is native Redis TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore wraps a redis client as a session store.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if client == nil {
		panic("session: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

// Get fetches the session for a sender. Absence is (nil, nil), not an error.
func (s *RedisStore) Get(ctx context.Context, senderID string) (*State, error) {
	if senderID == "" {
		return nil, errors.New("session: senderID required")
	}

	raw, err := s.client.Get(ctx, redisKeyPrefix+senderID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session: redis get: %w", err)
	}

	var state State
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("session: decode state: %w", err)
	}
	state.SenderID = senderID
	return &state, nil
}

// Put fully replaces the sender's record with a fresh TTL.
func (s *RedisStore) Put(ctx context.Context, senderID string, state State) error {
	if senderID == "" {
		return errors.New("session: senderID required")
	}
	if state.UpdatedAt.IsZero() {
		state.UpdatedAt = time.Now().UTC()
	}

	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("session: encode state: %w", err)
	}
	if err := s.client.Set(ctx, redisKeyPrefix+senderID, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("session: redis set: %w", err)
	}
	return nil
}
