package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tailhaven/adoption-service/internal/core/domain"
	"github.com/tailhaven/adoption-service/internal/core/port"
)

const attemptUpdateRetries = 5

// AttemptStore persists attempt records as JSON values, using WATCH-based
// compare-and-swap so concurrent failures against the same key never
// under-count.
type AttemptStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewAttemptStore constructs a Redis-backed attempt store.
func NewAttemptStore(client *redis.Client, keyPrefix string) *AttemptStore {
	return &AttemptStore{client: client, keyPrefix: keyPrefix}
}

type attemptPayload struct {
	WindowStart time.Time  `json:"window_start"`
	Count       int        `json:"count"`
	LockedUntil *time.Time `json:"locked_until,omitempty"`
}

// Get returns the record for key, reporting whether one exists.
func (s *AttemptStore) Get(ctx context.Context, key string) (domain.AttemptRecord, bool, error) {
	raw, err := s.client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return domain.AttemptRecord{}, false, nil
	}
	if err != nil {
		return domain.AttemptRecord{}, false, fmt.Errorf("redis get: %w", err)
	}

	record, err := decodeAttempt(raw)
	if err != nil {
		return domain.AttemptRecord{}, false, err
	}

	return record, true, nil
}

// Update applies fn inside a WATCH transaction, retrying on contention.
func (s *AttemptStore) Update(ctx context.Context, key string, ttl time.Duration, fn port.AttemptMutator) (domain.AttemptRecord, error) {
	fullKey := s.key(key)

	var updated domain.AttemptRecord

	txn := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, fullKey).Result()

		var (
			current domain.AttemptRecord
			exists  bool
		)
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return fmt.Errorf("redis get: %w", err)
		default:
			current, err = decodeAttempt(raw)
			if err != nil {
				return err
			}
			exists = true
		}

		updated, err = fn(current, exists)
		if err != nil {
			return err
		}

		encoded, err := json.Marshal(attemptPayload{
			WindowStart: updated.WindowStart,
			Count:       updated.Count,
			LockedUntil: updated.LockedUntil,
		})
		if err != nil {
			return fmt.Errorf("marshal attempt record: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, fullKey, encoded, ttl)
			return nil
		})
		return err
	}

	for i := 0; i < attemptUpdateRetries; i++ {
		err := s.client.Watch(ctx, txn, fullKey)
		if err == nil {
			return updated, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return domain.AttemptRecord{}, fmt.Errorf("redis watch: %w", err)
	}

	return domain.AttemptRecord{}, fmt.Errorf("redis watch: exceeded %d retries for %s", attemptUpdateRetries, fullKey)
}

// Clear removes the record for key.
func (s *AttemptStore) Clear(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (s *AttemptStore) key(key string) string {
	if s.keyPrefix == "" {
		return key
	}
	return fmt.Sprintf("%s:%s", s.keyPrefix, key)
}

func decodeAttempt(raw string) (domain.AttemptRecord, error) {
	var payload attemptPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return domain.AttemptRecord{}, fmt.Errorf("unmarshal attempt record: %w", err)
	}

	return domain.AttemptRecord{
		WindowStart: payload.WindowStart,
		Count:       payload.Count,
		LockedUntil: payload.LockedUntil,
	}, nil
}

var _ port.AttemptStore = (*AttemptStore)(nil)
