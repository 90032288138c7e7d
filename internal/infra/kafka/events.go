package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tailhaven/adoption-service/internal/core/domain"
	"github.com/tailhaven/adoption-service/internal/core/port"
	"github.com/tailhaven/adoption-service/internal/infra/config"
)

const schemaVersion = "1.0"

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type envelopeMetadata map[string]string

type eventEnvelope struct {
	EventID   string           `json:"event_id"`
	EventType string           `json:"event_type"`
	SubjectID string           `json:"subject_id,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Version   string           `json:"version"`
	Payload   any              `json:"payload"`
	Metadata  envelopeMetadata `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, subjectID string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	id := eventID
	if id == "" {
		id = uuid.NewString()
	}

	metadata := envelopeMetadata{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}

	envelope := eventEnvelope{
		EventID:   id,
		EventType: eventType,
		SubjectID: subjectID,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata:  metadata,
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Key:   sarama.StringEncoder(subjectID),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case p.producer.Producer().Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishIdentityRegistered publishes adoption.identity.registered events.
func (p *EventPublisher) PublishIdentityRegistered(ctx context.Context, event domain.IdentityRegisteredEvent) error {
	payload := struct {
		IdentityID   string         `json:"identity_id"`
		Email        string         `json:"email"`
		Role         string         `json:"role"`
		Status       string         `json:"status"`
		RegisteredAt time.Time      `json:"registered_at"`
		Metadata     map[string]any `json:"metadata,omitempty"`
	}{
		IdentityID:   event.IdentityID,
		Email:        event.Email,
		Role:         event.Role,
		Status:       event.Status,
		RegisteredAt: event.RegisteredAt.UTC(),
		Metadata:     event.Metadata,
	}

	return p.publish(ctx, event.EventID, "identity.registered", event.IdentityID, event.RegisteredAt, payload)
}

// PublishIdentityLocked publishes adoption.identity.locked events.
func (p *EventPublisher) PublishIdentityLocked(ctx context.Context, event domain.IdentityLockedEvent) error {
	payload := struct {
		IdentityID  string         `json:"identity_id"`
		LockedUntil time.Time      `json:"locked_until"`
		FailedCount int            `json:"failed_count,omitempty"`
		LockedAt    time.Time      `json:"locked_at"`
		Metadata    map[string]any `json:"metadata,omitempty"`
	}{
		IdentityID:  event.IdentityID,
		LockedUntil: event.LockedUntil.UTC(),
		FailedCount: event.FailedCount,
		LockedAt:    event.LockedAt.UTC(),
		Metadata:    event.Metadata,
	}

	return p.publish(ctx, event.EventID, "identity.locked", event.IdentityID, event.LockedAt, payload)
}

// PublishRequestSubmitted publishes adoption.request.submitted events.
func (p *EventPublisher) PublishRequestSubmitted(ctx context.Context, event domain.RequestSubmittedEvent) error {
	payload := struct {
		RequestID   string         `json:"request_id"`
		ApplicantID string         `json:"applicant_id"`
		PetID       string         `json:"pet_id"`
		SubmittedAt time.Time      `json:"submitted_at"`
		Source      string         `json:"source,omitempty"`
		Metadata    map[string]any `json:"metadata,omitempty"`
	}{
		RequestID:   event.RequestID,
		ApplicantID: event.ApplicantID,
		PetID:       event.PetID,
		SubmittedAt: event.SubmittedAt.UTC(),
		Source:      event.Source,
		Metadata:    event.Metadata,
	}

	return p.publish(ctx, event.EventID, "request.submitted", event.RequestID, event.SubmittedAt, payload)
}

// PublishRequestTransitioned publishes adoption.request.transitioned events.
func (p *EventPublisher) PublishRequestTransitioned(ctx context.Context, event domain.RequestTransitionedEvent) error {
	payload := struct {
		RequestID  string         `json:"request_id"`
		PetID      string         `json:"pet_id"`
		FromStatus string         `json:"from_status"`
		ToStatus   string         `json:"to_status"`
		ReviewerID string         `json:"reviewer_id,omitempty"`
		Notes      *string        `json:"notes,omitempty"`
		OccurredAt time.Time      `json:"occurred_at"`
		Metadata   map[string]any `json:"metadata,omitempty"`
	}{
		RequestID:  event.RequestID,
		PetID:      event.PetID,
		FromStatus: event.FromStatus,
		ToStatus:   event.ToStatus,
		ReviewerID: event.ReviewerID,
		Notes:      event.Notes,
		OccurredAt: event.OccurredAt.UTC(),
		Metadata:   event.Metadata,
	}

	return p.publish(ctx, event.EventID, "request.transitioned", event.RequestID, event.OccurredAt, payload)
}

// PublishPetAdopted publishes adoption.pet.adopted events.
func (p *EventPublisher) PublishPetAdopted(ctx context.Context, event domain.PetAdoptedEvent) error {
	payload := struct {
		PetID     string         `json:"pet_id"`
		AdopterID string         `json:"adopter_id"`
		RequestID string         `json:"request_id"`
		AdoptedAt time.Time      `json:"adopted_at"`
		Metadata  map[string]any `json:"metadata,omitempty"`
	}{
		PetID:     event.PetID,
		AdopterID: event.AdopterID,
		RequestID: event.RequestID,
		AdoptedAt: event.AdoptedAt.UTC(),
		Metadata:  event.Metadata,
	}

	return p.publish(ctx, event.EventID, "pet.adopted", event.PetID, event.AdoptedAt, payload)
}

var _ port.EventPublisher = (*EventPublisher)(nil)
