package port

import (
	"context"
	"time"

	"github.com/tailhaven/adoption-service/internal/core/domain"
)

// AttemptMutator receives the current record (zero value when absent) and
// returns the record to store. Returning an error aborts the update.
type AttemptMutator func(record domain.AttemptRecord, exists bool) (domain.AttemptRecord, error)

// AttemptStore persists per-key attempt records. Update must be atomic with
// respect to concurrent callers for the same key (per-key lock or CAS) so two
// concurrent failures never under-count.
type AttemptStore interface {
	Get(ctx context.Context, key string) (domain.AttemptRecord, bool, error)
	Update(ctx context.Context, key string, ttl time.Duration, fn AttemptMutator) (domain.AttemptRecord, error)
	Clear(ctx context.Context, key string) error
}
