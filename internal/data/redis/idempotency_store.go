// Package redis stores Idempotency-Key reservations and recorded responses.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const (
	keyPrefix = "loan-engine:idempotency:"
	// InProgressTTL bounds how long a crashed request can keep its key reserved.
	InProgressTTL = 60 * time.Second
)

// IdempotencyEntry is what is kept under one key: first a reservation, then the final response.
type IdempotencyEntry struct {
	InProgress  bool      `json:"in_progress"`
	RequestHash string    `json:"request_hash"`
	StatusCode  int       `json:"status_code,omitempty"`
	Body        []byte    `json:"body,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type IdempotencyStore struct {
	client *goredis.Client
	logger *slog.Logger
	ttl    time.Duration
}

// NewIdempotencyStore keeps final responses for ttl.
func NewIdempotencyStore(logger *slog.Logger, client *goredis.Client, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{
		client: client,
		logger: logger,
		ttl:    ttl,
	}
}

func storeKey(key string) string {
	return keyPrefix + key
}

// Reserve claims key for a request with the given body hash. ok is false when
// the key already exists; existing is then the stored entry, if still readable.
func (s *IdempotencyStore) Reserve(ctx context.Context, key, requestHash string) (ok bool, existing *IdempotencyEntry, err error) {
	raw, err := json.Marshal(IdempotencyEntry{
		InProgress:  true,
		RequestHash: requestHash,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		return false, nil, fmt.Errorf("failed to encode idempotency entry: %w", err)
	}

	ok, err = s.client.SetNX(ctx, storeKey(key), raw, InProgressTTL).Result()
	if err != nil {
		s.logger.Error("Failed to reserve idempotency key", "key", key, "error", err)
		return false, nil, fmt.Errorf("failed to reserve idempotency key: %w", err)
	}
	if ok {
		return true, nil, nil
	}

	existing, err = s.Load(ctx, key)
	if err != nil {
		return false, nil, err
	}
	return false, existing, nil
}

// Load returns the entry under key, or nil when it expired in between.
func (s *IdempotencyStore) Load(ctx context.Context, key string) (*IdempotencyEntry, error) {
	raw, err := s.client.Get(ctx, storeKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		s.logger.Error("Failed to load idempotency key", "key", key, "error", err)
		return nil, fmt.Errorf("failed to load idempotency key: %w", err)
	}

	var entry IdempotencyEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("failed to decode idempotency entry: %w", err)
	}
	return &entry, nil
}

// Complete replaces the reservation with the final response.
func (s *IdempotencyStore) Complete(ctx context.Context, key, requestHash string, statusCode int, body []byte) error {
	raw, err := json.Marshal(IdempotencyEntry{
		RequestHash: requestHash,
		StatusCode:  statusCode,
		Body:        body,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode idempotency entry: %w", err)
	}

	if err := s.client.Set(ctx, storeKey(key), raw, s.ttl).Err(); err != nil {
		s.logger.Error("Failed to store idempotent response", "key", key, "error", err)
		return fmt.Errorf("failed to store idempotent response: %w", err)
	}
	return nil
}

// Release drops a reservation so the client may retry, used when the handler
// failed in a way that should not be replayed.
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, storeKey(key)).Err(); err != nil {
		s.logger.Error("Failed to release idempotency key", "key", key, "error", err)
		return fmt.Errorf("failed to release idempotency key: %w", err)
	}
	return nil
}
