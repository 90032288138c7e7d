package usecase

import (
	"errors"

	"github.com/tailhaven/adoption-service/internal/core/domain"
)

// ErrForbidden indicates the acting identity's role does not permit the operation.
var ErrForbidden = errors.New("operation not permitted")

// Operation enumerates the lifecycle operations subject to authorization.
type Operation string

const (
	OperationViewOwn          Operation = "view_own"
	OperationViewAll          Operation = "view_all"
	OperationCreate           Operation = "create"
	OperationTransition       Operation = "transition"
	OperationAddCommunication Operation = "add_communication"
)

// rolePermissions is the static role -> operation-set table. Authorization is
// decided here once per request, never ad hoc inside handlers.
var rolePermissions = map[domain.Role]map[Operation]struct{}{
	domain.RoleUser: {
		OperationViewOwn:          {},
		OperationCreate:           {},
		OperationAddCommunication: {},
	},
	domain.RoleVolunteer: {
		OperationViewOwn:          {},
		OperationCreate:           {},
		OperationAddCommunication: {},
	},
	domain.RoleFoster: {
		OperationViewOwn:          {},
		OperationViewAll:          {},
		OperationCreate:           {},
		OperationAddCommunication: {},
	},
	domain.RoleStaff: {
		OperationViewOwn:          {},
		OperationViewAll:          {},
		OperationCreate:           {},
		OperationTransition:       {},
		OperationAddCommunication: {},
	},
	domain.RoleAdmin: {
		OperationViewOwn:          {},
		OperationViewAll:          {},
		OperationCreate:           {},
		OperationTransition:       {},
		OperationAddCommunication: {},
	},
	domain.RoleSuperAdmin: {
		OperationViewOwn:          {},
		OperationViewAll:          {},
		OperationCreate:           {},
		OperationTransition:       {},
		OperationAddCommunication: {},
	},
}

// Authorizer maps an authenticated identity's role to the lifecycle
// operations it may invoke.
type Authorizer struct{}

// NewAuthorizer constructs an Authorizer.
func NewAuthorizer() *Authorizer {
	return &Authorizer{}
}

// Authorize checks the operation against the identity's role, and, for
// operations scoped to a specific request, against ownership: view_own and
// add_communication require the actor to be the applicant or staff-or-above,
// transition always requires staff-or-above.
func (a *Authorizer) Authorize(identity domain.Identity, op Operation, target *domain.AdoptionRequest) error {
	perms, ok := rolePermissions[identity.Role]
	if !ok {
		return ErrForbidden
	}
	if _, ok := perms[op]; !ok {
		return ErrForbidden
	}

	if target == nil {
		return nil
	}

	switch op {
	case OperationViewOwn, OperationAddCommunication:
		if target.ApplicantID != identity.ID && !identity.Role.AtLeast(domain.RoleStaff) {
			return ErrForbidden
		}
	case OperationTransition:
		if !identity.Role.AtLeast(domain.RoleStaff) {
			return ErrForbidden
		}
	}

	return nil
}

// CanGrantRole enforces the role-grant ordering: only super-admin may grant or
// revoke super-admin, and admin may grant any role strictly below admin.
func (a *Authorizer) CanGrantRole(actor, target domain.Role) bool {
	if !target.Valid() {
		return false
	}
	if actor == domain.RoleSuperAdmin {
		return true
	}
	if actor == domain.RoleAdmin {
		return !target.AtLeast(domain.RoleAdmin)
	}
	return false
}
