package port

import (
	"context"
	"time"

	"github.com/tailhaven/adoption-service/internal/core/domain"
)

// IdentityRepository exposes persistence behavior for identities.
type IdentityRepository interface {
	Create(ctx context.Context, identity domain.Identity) error
	GetByID(ctx context.Context, id string) (*domain.Identity, error)
	GetByEmail(ctx context.Context, email string) (*domain.Identity, error)
	UpdateStatus(ctx context.Context, id string, status domain.IdentityStatus) error
	UpdateRole(ctx context.Context, id string, role domain.Role) error
	UpdatePassword(ctx context.Context, id string, passwordHash string, changedAt time.Time) error
	MarkEmailVerified(ctx context.Context, id string) error
	SetLock(ctx context.Context, id string, until *time.Time) error
	RecordLogin(ctx context.Context, id string, at time.Time) error
}
