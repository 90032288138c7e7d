package port

import (
	"context"
	"time"

	"github.com/tailhaven/adoption-service/internal/core/domain"
)

// RequestFilter narrows adoption request listings.
type RequestFilter struct {
	ApplicantID string
	PetID       string
	Status      domain.RequestStatus
	Limit       int
	Offset      int
}

// AdoptionRepository exposes persistence behavior for adoption requests.
//
// Insert must enforce the store-level uniqueness constraint over
// (applicant, pet) restricted to live statuses and surface violations as
// repository.ErrDuplicate. UpdateTransition must apply the update only when
// the stored status still equals expected and report repository.ErrConflict
// otherwise, so concurrent reviewers are re-validated against current state.
type AdoptionRepository interface {
	Insert(ctx context.Context, request domain.AdoptionRequest) error
	GetByID(ctx context.Context, id string) (*domain.AdoptionRequest, error)
	FindLive(ctx context.Context, applicantID, petID string) (*domain.AdoptionRequest, error)
	UpdateTransition(ctx context.Context, request domain.AdoptionRequest, expected domain.RequestStatus) error
	AppendCommunication(ctx context.Context, id string, entry domain.CommunicationEntry) error
	List(ctx context.Context, filter RequestFilter) ([]domain.AdoptionRequest, error)
	Count(ctx context.Context, filter RequestFilter) (int, error)
	ListDueFollowUps(ctx context.Context, before time.Time, limit int) ([]domain.AdoptionRequest, error)
}
