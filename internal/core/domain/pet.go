package domain

import "time"

// PetStatus enumerates catalog availability states.
type PetStatus string

const (
	PetStatusAvailable       PetStatus = "available"
	PetStatusPendingAdoption PetStatus = "pending_adoption"
	PetStatusAdopted         PetStatus = "adopted"
	PetStatusUnavailable     PetStatus = "unavailable"
)

// Pet mirrors the persisted representation in the pets table. Only the fields
// the lifecycle engine touches are modelled here; the catalog CRUD owns the rest.
type Pet struct {
	ID        string
	Name      string
	Species   string
	Breed     *string
	AgeMonths *int
	Status    PetStatus
	Inquiries int
	CreatedAt time.Time
}

// Adoptable reports whether an adoption request may target the pet.
func (p *Pet) Adoptable() bool {
	return p.Status == PetStatusAvailable
}
