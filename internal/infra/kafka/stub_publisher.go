package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/tailhaven/adoption-service/internal/core/domain"
	"github.com/tailhaven/adoption-service/internal/core/port"
)

// StubPublisher logs events instead of sending them to Kafka. Useful for
// development environments with no broker available.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) logEvent(eventType, subjectID string, at time.Time, payload any) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("stub event published",
		zap.String("event_type", eventType),
		zap.String("subject_id", subjectID),
		zap.Time("timestamp", at.UTC()),
		zap.Any("payload", payload),
	)
}

// PublishIdentityRegistered logs identity.registered events.
func (p *StubPublisher) PublishIdentityRegistered(_ context.Context, event domain.IdentityRegisteredEvent) error {
	payload := map[string]any{
		"identity_id":   event.IdentityID,
		"email":         event.Email,
		"role":          event.Role,
		"status":        event.Status,
		"registered_at": event.RegisteredAt,
	}
	p.logEvent("identity.registered", event.IdentityID, event.RegisteredAt, payload)
	return nil
}

// PublishIdentityLocked logs identity.locked events.
func (p *StubPublisher) PublishIdentityLocked(_ context.Context, event domain.IdentityLockedEvent) error {
	payload := map[string]any{
		"identity_id":  event.IdentityID,
		"locked_until": event.LockedUntil,
		"failed_count": event.FailedCount,
		"locked_at":    event.LockedAt,
	}
	p.logEvent("identity.locked", event.IdentityID, event.LockedAt, payload)
	return nil
}

// PublishRequestSubmitted logs request.submitted events.
func (p *StubPublisher) PublishRequestSubmitted(_ context.Context, event domain.RequestSubmittedEvent) error {
	payload := map[string]any{
		"request_id":   event.RequestID,
		"applicant_id": event.ApplicantID,
		"pet_id":       event.PetID,
		"submitted_at": event.SubmittedAt,
		"source":       event.Source,
	}
	p.logEvent("request.submitted", event.RequestID, event.SubmittedAt, payload)
	return nil
}

// PublishRequestTransitioned logs request.transitioned events.
func (p *StubPublisher) PublishRequestTransitioned(_ context.Context, event domain.RequestTransitionedEvent) error {
	payload := map[string]any{
		"request_id":  event.RequestID,
		"pet_id":      event.PetID,
		"from_status": event.FromStatus,
		"to_status":   event.ToStatus,
		"reviewer_id": event.ReviewerID,
		"occurred_at": event.OccurredAt,
	}
	p.logEvent("request.transitioned", event.RequestID, event.OccurredAt, payload)
	return nil
}

// PublishPetAdopted logs pet.adopted events.
func (p *StubPublisher) PublishPetAdopted(_ context.Context, event domain.PetAdoptedEvent) error {
	payload := map[string]any{
		"pet_id":     event.PetID,
		"adopter_id": event.AdopterID,
		"request_id": event.RequestID,
		"adopted_at": event.AdoptedAt,
	}
	p.logEvent("pet.adopted", event.PetID, event.AdoptedAt, payload)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
