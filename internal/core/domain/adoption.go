package domain

import "time"

// RequestStatus enumerates the adoption request lifecycle states.
type RequestStatus string

const (
	RequestStatusPending            RequestStatus = "pending"
	RequestStatusUnderReview        RequestStatus = "under_review"
	RequestStatusInterviewScheduled RequestStatus = "interview_scheduled"
	RequestStatusApproved           RequestStatus = "approved"
	RequestStatusRejected           RequestStatus = "rejected"
	RequestStatusCompleted          RequestStatus = "completed"
	RequestStatusWithdrawn          RequestStatus = "withdrawn"
)

// transitions is the authoritative status transition table. A status absent
// from a source's target list is not reachable from it.
var transitions = map[RequestStatus][]RequestStatus{
	RequestStatusPending:            {RequestStatusUnderReview, RequestStatusApproved, RequestStatusRejected},
	RequestStatusUnderReview:        {RequestStatusInterviewScheduled, RequestStatusApproved, RequestStatusRejected},
	RequestStatusInterviewScheduled: {RequestStatusApproved, RequestStatusRejected},
	RequestStatusApproved:           {RequestStatusCompleted},
	RequestStatusRejected:           {RequestStatusUnderReview, RequestStatusPending},
	RequestStatusCompleted:          {},
	RequestStatusWithdrawn:          {},
}

// Valid reports whether the status belongs to the fixed enumeration.
func (s RequestStatus) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// AllowedTargets returns the set of statuses reachable from s.
func AllowedTargets(s RequestStatus) []RequestStatus {
	targets := transitions[s]
	out := make([]RequestStatus, len(targets))
	copy(out, targets)
	return out
}

// CanTransition reports whether the edge from -> to exists in the table.
func CanTransition(from, to RequestStatus) bool {
	for _, target := range transitions[from] {
		if target == to {
			return true
		}
	}
	return false
}

// IsLive reports whether the request still occupies the (applicant, pet)
// uniqueness slot: anything not rejected, withdrawn, or completed.
func (s RequestStatus) IsLive() bool {
	switch s {
	case RequestStatusRejected, RequestStatusWithdrawn, RequestStatusCompleted:
		return false
	default:
		return true
	}
}

// CommunicationType classifies communication log entries.
type CommunicationType string

const (
	CommunicationStatusChange CommunicationType = "status_change"
	CommunicationNote         CommunicationType = "note"
)

// CommunicationEntry is one element of a request's append-only communication log.
type CommunicationEntry struct {
	Type    CommunicationType `json:"type"`
	Message string            `json:"message"`
	ActorID string            `json:"actor_id"`
	At      time.Time         `json:"at"`
}

// AdoptionRequest mirrors the persisted representation in the adoption_requests table.
type AdoptionRequest struct {
	ID              string
	ApplicantID     string
	PetID           string
	Phone           string
	Address         string
	City            string
	HousingType     string
	HasYard         bool
	ExperienceLevel string
	OtherPets       *string
	Status          RequestStatus
	ReviewerID      *string
	ReviewedAt      *time.Time
	AdminNotes      *string
	RejectionReason *string
	Communications  []CommunicationEntry
	FollowUpNeeded  bool
	FollowUpDate    *time.Time
	Source          string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
