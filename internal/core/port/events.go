package port

import (
	"context"

	"github.com/tailhaven/adoption-service/internal/core/domain"
)

// EventPublisher publishes domain events to the message bus.
type EventPublisher interface {
	PublishIdentityRegistered(ctx context.Context, event domain.IdentityRegisteredEvent) error
	PublishIdentityLocked(ctx context.Context, event domain.IdentityLockedEvent) error
	PublishRequestSubmitted(ctx context.Context, event domain.RequestSubmittedEvent) error
	PublishRequestTransitioned(ctx context.Context, event domain.RequestTransitionedEvent) error
	PublishPetAdopted(ctx context.Context, event domain.PetAdoptedEvent) error
}
