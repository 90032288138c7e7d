package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tailhaven/adoption-service/internal/core/domain"
	"github.com/tailhaven/adoption-service/internal/core/port"
	"github.com/tailhaven/adoption-service/internal/ratelimit"
	"github.com/tailhaven/adoption-service/internal/repository"
)

var (
	// ErrRequestNotFound indicates the adoption request id does not resolve.
	ErrRequestNotFound = errors.New("adoption request not found")
	// ErrPetNotFound indicates the referenced pet does not exist.
	ErrPetNotFound = errors.New("pet not found")
	// ErrPetUnavailable indicates the referenced pet is not in an adoptable status.
	ErrPetUnavailable = errors.New("pet is not available for adoption")
	// ErrDuplicateApplication indicates a live request already exists for the (applicant, pet) pair.
	ErrDuplicateApplication = errors.New("a live application already exists for this pet")
	// ErrMissingRejectionReason indicates a rejection was attempted without an adequate reason.
	ErrMissingRejectionReason = errors.New("rejection reason is required")
)

// InvalidTransitionError reports a transition not present in the status table,
// carrying the current status and the allowed targets for a precise message.
type InvalidTransitionError struct {
	Current domain.RequestStatus
	Target  domain.RequestStatus
	Allowed []domain.RequestStatus
}

// Error implements error.
func (e *InvalidTransitionError) Error() string {
	allowed := make([]string, len(e.Allowed))
	for i, s := range e.Allowed {
		allowed[i] = string(s)
	}
	return fmt.Sprintf("cannot transition from %s to %s (allowed: %s)",
		e.Current, e.Target, strings.Join(allowed, ", "))
}

// FieldError describes one invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError aggregates field-level input problems.
type ValidationError struct {
	Fields []FieldError
}

// Error implements error.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = fmt.Sprintf("%s: %s", f.Field, f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

const (
	// minRejectionReasonLength is the shortest reason accepted on rejection.
	minRejectionReasonLength = 10
	// followUpLead is how far out a follow-up is scheduled when a request
	// enters review without one.
	followUpLead = 72 * time.Hour
	// transitionRetries bounds optimistic-concurrency retries when a
	// concurrent reviewer moved the document first.
	transitionRetries = 3

	requestSource = "website"
)

// CreateRequestInput carries the applicant-supplied fields of a new request.
type CreateRequestInput struct {
	PetID           string
	Phone           string
	Address         string
	City            string
	HousingType     string
	HasYard         bool
	ExperienceLevel string
	OtherPets       *string
}

// AdoptionService owns the adoption request lifecycle: creation with
// duplicate prevention, the status state machine, follow-up scheduling, and
// the append-only communication log.
type AdoptionService struct {
	requests      port.AdoptionRepository
	pets          port.PetCatalog
	events        port.EventPublisher
	createLimiter *ratelimit.Limiter
	updateLimiter *ratelimit.Limiter
	logger        *zap.Logger
	now           func() time.Time
}

// NewAdoptionService constructs an AdoptionService. The limiters throttle
// submissions per applicant and status updates per reviewer; either may be
// nil to disable that throttle.
func NewAdoptionService(requests port.AdoptionRepository, pets port.PetCatalog, events port.EventPublisher, createLimiter, updateLimiter *ratelimit.Limiter, log *zap.Logger) *AdoptionService {
	if log == nil {
		log = zap.NewNop()
	}

	return &AdoptionService{
		requests:      requests,
		pets:          pets,
		events:        events,
		createLimiter: createLimiter,
		updateLimiter: updateLimiter,
		logger:        log,
		now:           time.Now,
	}
}

// allow charges one attempt against the limiter for key. Every attempt counts
// toward the budget, successful or not: these limiters bound how fast one
// identity can hit the lifecycle, not how often it fails.
func (s *AdoptionService) allow(ctx context.Context, limiter *ratelimit.Limiter, key string) error {
	if limiter == nil || key == "" {
		return nil
	}

	decision, err := limiter.Check(ctx, key)
	if err != nil {
		return fmt.Errorf("check adoption limiter: %w", err)
	}
	if !decision.Allowed {
		return &RateLimitedError{RetryAfterSeconds: decision.RetryAfterSeconds}
	}

	if err := limiter.RecordFailure(ctx, key); err != nil {
		s.logger.Warn("record adoption attempt", zap.Error(err))
	}
	return nil
}

// WithClock injects a custom clock (primarily for testing).
func (s *AdoptionService) WithClock(now func() time.Time) *AdoptionService {
	if now != nil {
		s.now = now
	}
	return s
}

// CreateRequest validates input, checks pet availability, and inserts a new
// pending request. The in-process duplicate check is an optimization; the
// store's uniqueness constraint over live (applicant, pet) pairs is the
// actual guard, and its violation surfaces as ErrDuplicateApplication.
func (s *AdoptionService) CreateRequest(ctx context.Context, applicant domain.Identity, input CreateRequestInput) (*domain.AdoptionRequest, error) {
	if err := s.allow(ctx, s.createLimiter, applicant.ID); err != nil {
		return nil, err
	}

	if err := validateCreateInput(input); err != nil {
		return nil, err
	}

	pet, err := s.pets.GetByID(ctx, input.PetID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPetNotFound
		}
		return nil, fmt.Errorf("load pet: %w", err)
	}
	if !pet.Adoptable() {
		return nil, ErrPetUnavailable
	}

	existing, err := s.requests.FindLive(ctx, applicant.ID, input.PetID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("check live request: %w", err)
	}
	if existing != nil {
		return nil, ErrDuplicateApplication
	}

	now := s.now().UTC()
	request := domain.AdoptionRequest{
		ID:              uuid.NewString(),
		ApplicantID:     applicant.ID,
		PetID:           input.PetID,
		Phone:           strings.TrimSpace(input.Phone),
		Address:         strings.TrimSpace(input.Address),
		City:            strings.TrimSpace(input.City),
		HousingType:     strings.TrimSpace(input.HousingType),
		HasYard:         input.HasYard,
		ExperienceLevel: strings.TrimSpace(input.ExperienceLevel),
		OtherPets:       input.OtherPets,
		Status:          domain.RequestStatusPending,
		Source:          requestSource,
		Communications: []domain.CommunicationEntry{{
			Type:    domain.CommunicationStatusChange,
			Message: "application submitted",
			ActorID: applicant.ID,
			At:      now,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.requests.Insert(ctx, request); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrDuplicateApplication
		}
		return nil, fmt.Errorf("insert request: %w", err)
	}

	if err := s.pets.IncrementInquiries(ctx, input.PetID); err != nil {
		s.logger.Warn("increment pet inquiries", zap.String("pet_id", input.PetID), zap.Error(err))
	}

	s.publishSubmitted(ctx, request)

	return &request, nil
}

// Transition moves a request along an edge of the status table on behalf of
// the acting identity. The update is re-validated against the stored status,
// so a concurrent reviewer who moved the document first makes the second
// writer fail with InvalidTransitionError instead of silently racing past.
func (s *AdoptionService) Transition(ctx context.Context, actor domain.Identity, requestID string, target domain.RequestStatus, notes, rejectionReason *string) (*domain.AdoptionRequest, error) {
	if err := s.allow(ctx, s.updateLimiter, actor.ID); err != nil {
		return nil, err
	}

	if target == domain.RequestStatusRejected {
		reason := ""
		if rejectionReason != nil {
			reason = strings.TrimSpace(*rejectionReason)
		}
		if len(reason) < minRejectionReasonLength {
			return nil, ErrMissingRejectionReason
		}
	}

	for attempt := 0; attempt < transitionRetries; attempt++ {
		request, err := s.requests.GetByID(ctx, requestID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, ErrRequestNotFound
			}
			return nil, fmt.Errorf("load request: %w", err)
		}

		if !target.Valid() || !domain.CanTransition(request.Status, target) {
			return nil, &InvalidTransitionError{
				Current: request.Status,
				Target:  target,
				Allowed: domain.AllowedTargets(request.Status),
			}
		}

		updated := s.applyTransition(*request, actor, target, notes, rejectionReason)

		err = s.requests.UpdateTransition(ctx, updated, request.Status)
		if errors.Is(err, repository.ErrConflict) {
			// Someone else moved the document; re-read and re-validate.
			continue
		}
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, ErrRequestNotFound
			}
			if errors.Is(err, repository.ErrDuplicate) {
				// Re-opening a terminal request collided with a newer live
				// request for the same (applicant, pet) pair.
				return nil, ErrDuplicateApplication
			}
			return nil, fmt.Errorf("update request: %w", err)
		}

		if err := s.applySideEffects(ctx, updated); err != nil {
			return nil, err
		}

		s.publishTransitioned(ctx, request.Status, updated, actor.ID, notes)

		return &updated, nil
	}

	return nil, fmt.Errorf("transition request %s: %w", requestID, repository.ErrConflict)
}

func (s *AdoptionService) applyTransition(request domain.AdoptionRequest, actor domain.Identity, target domain.RequestStatus, notes, rejectionReason *string) domain.AdoptionRequest {
	now := s.now().UTC()

	request.Status = target
	reviewer := actor.ID
	request.ReviewerID = &reviewer
	reviewedAt := now
	request.ReviewedAt = &reviewedAt
	request.UpdatedAt = now

	if notes != nil && strings.TrimSpace(*notes) != "" {
		trimmed := strings.TrimSpace(*notes)
		request.AdminNotes = &trimmed
	}

	if target == domain.RequestStatusRejected && rejectionReason != nil {
		reason := strings.TrimSpace(*rejectionReason)
		request.RejectionReason = &reason
	}

	if (target == domain.RequestStatusUnderReview || target == domain.RequestStatusInterviewScheduled) &&
		!request.FollowUpNeeded && request.FollowUpDate == nil {
		request.FollowUpNeeded = true
		followUp := now.Add(followUpLead)
		request.FollowUpDate = &followUp
	}

	message := fmt.Sprintf("status changed to %s", target)
	if notes != nil && strings.TrimSpace(*notes) != "" {
		message = fmt.Sprintf("%s: %s", message, strings.TrimSpace(*notes))
	}
	request.Communications = append(request.Communications, domain.CommunicationEntry{
		Type:    domain.CommunicationStatusChange,
		Message: message,
		ActorID: actor.ID,
		At:      now,
	})

	return request
}

// applySideEffects propagates approved/completed transitions to the pet
// catalog. The catalog operations are idempotent, so re-applying the same
// transition never double-applies.
func (s *AdoptionService) applySideEffects(ctx context.Context, request domain.AdoptionRequest) error {
	switch request.Status {
	case domain.RequestStatusApproved:
		if err := s.pets.MarkPending(ctx, request.PetID); err != nil {
			return fmt.Errorf("mark pet pending: %w", err)
		}
	case domain.RequestStatusCompleted:
		now := s.now().UTC()
		if err := s.pets.MarkAdopted(ctx, request.PetID, request.ApplicantID, now); err != nil {
			return fmt.Errorf("mark pet adopted: %w", err)
		}
		if err := s.pets.RecordAdopter(ctx, request.PetID, request.ApplicantID, now); err != nil {
			return fmt.Errorf("record adopter: %w", err)
		}
		s.publishAdopted(ctx, request, now)
	}
	return nil
}

// AddCommunication appends a free-form note to the request's log.
func (s *AdoptionService) AddCommunication(ctx context.Context, actor domain.Identity, requestID, message string) (*domain.AdoptionRequest, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, &ValidationError{Fields: []FieldError{{Field: "message", Message: "is required"}}}
	}

	request, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, fmt.Errorf("load request: %w", err)
	}

	entry := domain.CommunicationEntry{
		Type:    domain.CommunicationNote,
		Message: message,
		ActorID: actor.ID,
		At:      s.now().UTC(),
	}

	if err := s.requests.AppendCommunication(ctx, requestID, entry); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, fmt.Errorf("append communication: %w", err)
	}

	request.Communications = append(request.Communications, entry)
	return request, nil
}

// GetRequest loads a single request.
func (s *AdoptionService) GetRequest(ctx context.Context, requestID string) (*domain.AdoptionRequest, error) {
	request, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, fmt.Errorf("load request: %w", err)
	}
	return request, nil
}

// List returns requests matching the filter plus the total count. Callers
// without view_all must pre-scope the filter to their own applicant id.
func (s *AdoptionService) List(ctx context.Context, filter port.RequestFilter) ([]domain.AdoptionRequest, int, error) {
	requests, err := s.requests.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list requests: %w", err)
	}

	total, err := s.requests.Count(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count requests: %w", err)
	}

	return requests, total, nil
}

// ListDueFollowUps returns requests whose scheduled follow-up date has
// passed. Discovery is on-demand; there is no background scheduler.
func (s *AdoptionService) ListDueFollowUps(ctx context.Context, limit int) ([]domain.AdoptionRequest, error) {
	requests, err := s.requests.ListDueFollowUps(ctx, s.now().UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("list due follow-ups: %w", err)
	}
	return requests, nil
}

func validateCreateInput(input CreateRequestInput) error {
	var fields []FieldError

	if strings.TrimSpace(input.PetID) == "" {
		fields = append(fields, FieldError{Field: "pet_id", Message: "is required"})
	}
	if strings.TrimSpace(input.Phone) == "" {
		fields = append(fields, FieldError{Field: "phone", Message: "is required"})
	}
	if strings.TrimSpace(input.Address) == "" {
		fields = append(fields, FieldError{Field: "address", Message: "is required"})
	}
	if strings.TrimSpace(input.City) == "" {
		fields = append(fields, FieldError{Field: "city", Message: "is required"})
	}
	if strings.TrimSpace(input.HousingType) == "" {
		fields = append(fields, FieldError{Field: "housing_type", Message: "is required"})
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func (s *AdoptionService) publishSubmitted(ctx context.Context, request domain.AdoptionRequest) {
	if s.events == nil {
		return
	}
	event := domain.RequestSubmittedEvent{
		EventID:     uuid.NewString(),
		RequestID:   request.ID,
		ApplicantID: request.ApplicantID,
		PetID:       request.PetID,
		SubmittedAt: request.CreatedAt,
		Source:      request.Source,
	}
	if err := s.events.PublishRequestSubmitted(ctx, event); err != nil {
		s.logger.Warn("publish request submitted event", zap.Error(err))
	}
}

func (s *AdoptionService) publishTransitioned(ctx context.Context, from domain.RequestStatus, request domain.AdoptionRequest, reviewerID string, notes *string) {
	if s.events == nil {
		return
	}
	event := domain.RequestTransitionedEvent{
		EventID:    uuid.NewString(),
		RequestID:  request.ID,
		PetID:      request.PetID,
		FromStatus: string(from),
		ToStatus:   string(request.Status),
		ReviewerID: reviewerID,
		Notes:      notes,
		OccurredAt: request.UpdatedAt,
	}
	if err := s.events.PublishRequestTransitioned(ctx, event); err != nil {
		s.logger.Warn("publish request transitioned event", zap.Error(err))
	}
}

func (s *AdoptionService) publishAdopted(ctx context.Context, request domain.AdoptionRequest, at time.Time) {
	if s.events == nil {
		return
	}
	event := domain.PetAdoptedEvent{
		EventID:   uuid.NewString(),
		PetID:     request.PetID,
		AdopterID: request.ApplicantID,
		RequestID: request.ID,
		AdoptedAt: at,
	}
	if err := s.events.PublishPetAdopted(ctx, event); err != nil {
		s.logger.Warn("publish pet adopted event", zap.Error(err))
	}
}
