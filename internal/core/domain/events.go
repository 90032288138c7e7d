package domain

import "time"

// IdentityRegisteredEvent represents the payload for adoption.identity.registered messages.
type IdentityRegisteredEvent struct {
	EventID      string
	IdentityID   string
	Email        string
	Role         string
	Status       string
	RegisteredAt time.Time
	Metadata     map[string]any
}

// IdentityLockedEvent represents the payload for adoption.identity.locked messages.
type IdentityLockedEvent struct {
	EventID     string
	IdentityID  string
	LockedUntil time.Time
	FailedCount int
	LockedAt    time.Time
	Metadata    map[string]any
}

// RequestSubmittedEvent represents the payload for adoption.request.submitted messages.
type RequestSubmittedEvent struct {
	EventID     string
	RequestID   string
	ApplicantID string
	PetID       string
	SubmittedAt time.Time
	Source      string
	Metadata    map[string]any
}

// RequestTransitionedEvent represents the payload for adoption.request.transitioned messages.
type RequestTransitionedEvent struct {
	EventID    string
	RequestID  string
	PetID      string
	FromStatus string
	ToStatus   string
	ReviewerID string
	Notes      *string
	OccurredAt time.Time
	Metadata   map[string]any
}

// PetAdoptedEvent represents the payload for adoption.pet.adopted messages.
type PetAdoptedEvent struct {
	EventID   string
	PetID     string
	AdopterID string
	RequestID string
	AdoptedAt time.Time
	Metadata  map[string]any
}
