package port

import (
	"context"
	"time"

	"github.com/tailhaven/adoption-service/internal/core/domain"
)

// PetCatalog is the slice of the pet catalog the lifecycle engine depends on.
// MarkPending and MarkAdopted must be idempotent: re-applying the same
// transition may call them again and must not double-apply.
type PetCatalog interface {
	GetByID(ctx context.Context, id string) (*domain.Pet, error)
	MarkPending(ctx context.Context, petID string) error
	MarkAdopted(ctx context.Context, petID, adopterID string, at time.Time) error
	RecordAdopter(ctx context.Context, petID, adopterID string, at time.Time) error
	IncrementInquiries(ctx context.Context, petID string) error
}
