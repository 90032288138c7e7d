package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tailhaven/adoption-service/internal/core/domain"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	traceID, _ := c.Get("trace_id")
	traceIDStr, _ := traceID.(string)

	return ErrorResponse{
		Error:   errorMsg,
		TraceID: traceIDStr,
	}
}

// ValidationErrorResponse carries field-level input problems.
type ValidationErrorResponse struct {
	Error   string       `json:"error"`
	Fields  []FieldIssue `json:"fields,omitempty"`
	TraceID string       `json:"trace_id,omitempty"`
}

// FieldIssue describes one invalid input field.
type FieldIssue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// IdentitySummary describes a minimal view of an identity returned by the API.
type IdentitySummary struct {
	ID            string                `json:"id"`
	Email         string                `json:"email"`
	Name          string                `json:"name"`
	Role          domain.Role           `json:"role"`
	Status        domain.IdentityStatus `json:"status"`
	EmailVerified bool                  `json:"email_verified"`
	RegisteredAt  time.Time             `json:"registered_at"`
}

func newIdentitySummary(identity *domain.Identity) IdentitySummary {
	return IdentitySummary{
		ID:            identity.ID,
		Email:         identity.Email,
		Name:          identity.Name,
		Role:          identity.Role,
		Status:        identity.Status,
		EmailVerified: identity.EmailVerified,
		RegisteredAt:  identity.RegisteredAt,
	}
}

// LoginRequest defines the payload for the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse describes the response returned for a successful login.
type LoginResponse struct {
	AccessToken string          `json:"access_token"`
	TokenType   string          `json:"token_type"`
	ExpiresIn   int             `json:"expires_in"`
	Identity    IdentitySummary `json:"identity"`
}

// RegisterRequest defines the payload for the registration endpoint.
type RegisterRequest struct {
	Email    string  `json:"email" binding:"required"`
	Name     string  `json:"name" binding:"required"`
	Phone    *string `json:"phone"`
	Password string  `json:"password" binding:"required"`
}

// RegisterResponse describes a successful registration.
type RegisterResponse struct {
	Identity             IdentitySummary `json:"identity"`
	RequiresVerification bool            `json:"requires_verification"`
	Message              string          `json:"message,omitempty"`
	// DevToken is only populated in development mode; real deployments
	// deliver the verification token by email.
	DevToken *string `json:"dev_token,omitempty"`
}

// VerifyEmailRequest defines the payload for email verification.
type VerifyEmailRequest struct {
	Token string `json:"token" binding:"required"`
}

// CreateAdoptionRequest defines the payload for submitting an application.
type CreateAdoptionRequest struct {
	PetID           string  `json:"pet_id" binding:"required"`
	Phone           string  `json:"phone" binding:"required"`
	Address         string  `json:"address" binding:"required"`
	City            string  `json:"city" binding:"required"`
	HousingType     string  `json:"housing_type" binding:"required"`
	HasYard         bool    `json:"has_yard"`
	ExperienceLevel string  `json:"experience_level"`
	OtherPets       *string `json:"other_pets"`
}

// TransitionRequest defines the payload for moving a request along the
// lifecycle.
type TransitionRequest struct {
	Status          string  `json:"status" binding:"required"`
	Notes           *string `json:"notes"`
	RejectionReason *string `json:"rejection_reason"`
}

// NoteRequest defines the payload for appending a communication entry.
type NoteRequest struct {
	Message string `json:"message" binding:"required"`
}

// CommunicationView is one communication log entry in API responses.
type CommunicationView struct {
	Type    string    `json:"type"`
	Message string    `json:"message"`
	ActorID string    `json:"actor_id"`
	At      time.Time `json:"at"`
}

// AdoptionRequestView is the API representation of an adoption request.
type AdoptionRequestView struct {
	ID              string              `json:"id"`
	ApplicantID     string              `json:"applicant_id"`
	PetID           string              `json:"pet_id"`
	Phone           string              `json:"phone"`
	Address         string              `json:"address"`
	City            string              `json:"city"`
	HousingType     string              `json:"housing_type"`
	HasYard         bool                `json:"has_yard"`
	ExperienceLevel string              `json:"experience_level,omitempty"`
	OtherPets       *string             `json:"other_pets,omitempty"`
	Status          string              `json:"status"`
	ReviewerID      *string             `json:"reviewer_id,omitempty"`
	ReviewedAt      *time.Time          `json:"reviewed_at,omitempty"`
	AdminNotes      *string             `json:"admin_notes,omitempty"`
	RejectionReason *string             `json:"rejection_reason,omitempty"`
	Communications  []CommunicationView `json:"communications"`
	FollowUpNeeded  bool                `json:"follow_up_needed"`
	FollowUpDate    *time.Time          `json:"follow_up_date,omitempty"`
	Source          string              `json:"source,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

func newAdoptionRequestView(request *domain.AdoptionRequest) AdoptionRequestView {
	comms := make([]CommunicationView, 0, len(request.Communications))
	for _, entry := range request.Communications {
		comms = append(comms, CommunicationView{
			Type:    string(entry.Type),
			Message: entry.Message,
			ActorID: entry.ActorID,
			At:      entry.At,
		})
	}

	return AdoptionRequestView{
		ID:              request.ID,
		ApplicantID:     request.ApplicantID,
		PetID:           request.PetID,
		Phone:           request.Phone,
		Address:         request.Address,
		City:            request.City,
		HousingType:     request.HousingType,
		HasYard:         request.HasYard,
		ExperienceLevel: request.ExperienceLevel,
		OtherPets:       request.OtherPets,
		Status:          string(request.Status),
		ReviewerID:      request.ReviewerID,
		ReviewedAt:      request.ReviewedAt,
		AdminNotes:      request.AdminNotes,
		RejectionReason: request.RejectionReason,
		Communications:  comms,
		FollowUpNeeded:  request.FollowUpNeeded,
		FollowUpDate:    request.FollowUpDate,
		Source:          request.Source,
		CreatedAt:       request.CreatedAt,
		UpdatedAt:       request.UpdatedAt,
	}
}

// ListAdoptionResponse wraps a page of requests with the total count.
type ListAdoptionResponse struct {
	Requests []AdoptionRequestView `json:"requests"`
	Total    int                   `json:"total"`
	Limit    int                   `json:"limit"`
	Offset   int                   `json:"offset"`
}

// UpdateRoleRequest defines the payload for role grants.
type UpdateRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

// UpdateStatusRequest defines the payload for account status changes.
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// ChangePasswordRequest defines the payload for password changes.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

// HealthResponse describes the liveness payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// ReadinessResponse describes the readiness payload with per-dependency state.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
