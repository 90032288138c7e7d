package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/tailhaven/adoption-service/internal/core/domain"
	"github.com/tailhaven/adoption-service/internal/core/port"
)

type memoryEntry struct {
	record    domain.AttemptRecord
	expiresAt time.Time
}

// MemoryAttemptStore is a mutex-guarded in-process AttemptStore suitable for
// single-instance deployments. Expired entries are dropped opportunistically
// on access rather than by a background sweeper.
type MemoryAttemptStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryAttemptStore constructs an empty in-memory store.
func NewMemoryAttemptStore() *MemoryAttemptStore {
	return &MemoryAttemptStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// WithClock injects a custom clock (primarily for testing).
func (s *MemoryAttemptStore) WithClock(now func() time.Time) *MemoryAttemptStore {
	if now != nil {
		s.now = now
	}
	return s
}

// Get returns the record for key, reporting whether one exists.
func (s *MemoryAttemptStore) Get(_ context.Context, key string) (domain.AttemptRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return domain.AttemptRecord{}, false, nil
	}
	if s.expired(entry) {
		delete(s.entries, key)
		return domain.AttemptRecord{}, false, nil
	}

	return entry.record, true, nil
}

// Update applies fn under the store lock, making read-modify-write atomic for
// concurrent callers on the same key.
func (s *MemoryAttemptStore) Update(_ context.Context, key string, ttl time.Duration, fn port.AttemptMutator) (domain.AttemptRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if ok && s.expired(entry) {
		delete(s.entries, key)
		ok = false
	}

	updated, err := fn(entry.record, ok)
	if err != nil {
		return domain.AttemptRecord{}, err
	}

	next := memoryEntry{record: updated}
	if ttl > 0 {
		next.expiresAt = s.now().Add(ttl)
	}
	s.entries[key] = next

	return updated, nil
}

// Clear removes the record for key.
func (s *MemoryAttemptStore) Clear(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

func (s *MemoryAttemptStore) expired(entry memoryEntry) bool {
	return !entry.expiresAt.IsZero() && !entry.expiresAt.After(s.now())
}

var _ port.AttemptStore = (*MemoryAttemptStore)(nil)
