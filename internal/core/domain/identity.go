package domain

import "time"

// Role enumerates account roles ordered from least to most privileged.
type Role string

const (
	RoleUser       Role = "user"
	RoleVolunteer  Role = "volunteer"
	RoleFoster     Role = "foster"
	RoleStaff      Role = "staff"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

var roleRank = map[Role]int{
	RoleUser:       0,
	RoleVolunteer:  1,
	RoleFoster:     2,
	RoleStaff:      3,
	RoleAdmin:      4,
	RoleSuperAdmin: 5,
}

// Valid reports whether the role is a member of the fixed role set.
func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// AtLeast reports whether the role carries at least the privileges of other.
func (r Role) AtLeast(other Role) bool {
	return roleRank[r] >= roleRank[other]
}

// IdentityStatus enumerates possible account states.
type IdentityStatus string

const (
	IdentityStatusActive              IdentityStatus = "active"
	IdentityStatusInactive            IdentityStatus = "inactive"
	IdentityStatusSuspended           IdentityStatus = "suspended"
	IdentityStatusBanned              IdentityStatus = "banned"
	IdentityStatusPendingVerification IdentityStatus = "pending_verification"
)

// Identity mirrors the persisted representation in the identities table.
type Identity struct {
	ID                string
	Email             string
	Name              string
	Phone             *string
	PasswordHash      string
	Role              Role
	Status            IdentityStatus
	EmailVerified     bool
	LockedUntil       *time.Time
	PasswordChangedAt *time.Time
	DeletionRequested bool
	RegisteredAt      time.Time
	LastLogin         *time.Time
}

// IsLocked reports whether a lockout is in effect at the supplied instant.
func (i *Identity) IsLocked(now time.Time) bool {
	return i.LockedUntil != nil && i.LockedUntil.After(now)
}
