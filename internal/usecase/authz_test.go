package usecase

import (
	"testing"

	"github.com/tailhaven/adoption-service/internal/core/domain"
)

func TestAuthorizeOperationTable(t *testing.T) {
	authz := NewAuthorizer()

	cases := []struct {
		role    domain.Role
		op      Operation
		allowed bool
	}{
		{domain.RoleUser, OperationViewOwn, true},
		{domain.RoleUser, OperationCreate, true},
		{domain.RoleUser, OperationViewAll, false},
		{domain.RoleUser, OperationTransition, false},
		{domain.RoleVolunteer, OperationViewAll, false},
		{domain.RoleFoster, OperationViewAll, true},
		{domain.RoleFoster, OperationTransition, false},
		{domain.RoleStaff, OperationTransition, true},
		{domain.RoleAdmin, OperationTransition, true},
		{domain.RoleSuperAdmin, OperationViewAll, true},
	}

	for _, tc := range cases {
		err := authz.Authorize(domain.Identity{Role: tc.role}, tc.op, nil)
		if tc.allowed && err != nil {
			t.Errorf("%s should be allowed %s: %v", tc.role, tc.op, err)
		}
		if !tc.allowed && err == nil {
			t.Errorf("%s should not be allowed %s", tc.role, tc.op)
		}
	}
}

func TestAuthorizeUnknownRole(t *testing.T) {
	authz := NewAuthorizer()
	if err := authz.Authorize(domain.Identity{Role: domain.Role("wizard")}, OperationViewOwn, nil); err == nil {
		t.Fatal("unknown role should be forbidden")
	}
}

func TestAuthorizeOwnership(t *testing.T) {
	authz := NewAuthorizer()

	owner := domain.Identity{ID: "applicant-1", Role: domain.RoleUser}
	other := domain.Identity{ID: "applicant-2", Role: domain.RoleUser}
	staff := domain.Identity{ID: "staff-1", Role: domain.RoleStaff}

	request := &domain.AdoptionRequest{ID: "req-1", ApplicantID: "applicant-1"}

	if err := authz.Authorize(owner, OperationViewOwn, request); err != nil {
		t.Errorf("applicant should view own request: %v", err)
	}
	if err := authz.Authorize(other, OperationViewOwn, request); err == nil {
		t.Error("unrelated user should not view another applicant's request")
	}
	if err := authz.Authorize(staff, OperationViewOwn, request); err != nil {
		t.Errorf("staff should view any request: %v", err)
	}

	if err := authz.Authorize(owner, OperationAddCommunication, request); err != nil {
		t.Errorf("applicant should add communication to own request: %v", err)
	}
	if err := authz.Authorize(other, OperationAddCommunication, request); err == nil {
		t.Error("unrelated user should not add communication")
	}
}

func TestCanGrantRole(t *testing.T) {
	authz := NewAuthorizer()

	cases := []struct {
		actor, target domain.Role
		want          bool
	}{
		{domain.RoleSuperAdmin, domain.RoleSuperAdmin, true},
		{domain.RoleSuperAdmin, domain.RoleAdmin, true},
		{domain.RoleSuperAdmin, domain.RoleUser, true},
		{domain.RoleAdmin, domain.RoleStaff, true},
		{domain.RoleAdmin, domain.RoleFoster, true},
		{domain.RoleAdmin, domain.RoleAdmin, false},
		{domain.RoleAdmin, domain.RoleSuperAdmin, false},
		{domain.RoleStaff, domain.RoleUser, false},
		{domain.RoleUser, domain.RoleUser, false},
		{domain.RoleSuperAdmin, domain.Role("wizard"), false},
	}

	for _, tc := range cases {
		if got := authz.CanGrantRole(tc.actor, tc.target); got != tc.want {
			t.Errorf("CanGrantRole(%s, %s) = %v, want %v", tc.actor, tc.target, got, tc.want)
		}
	}
}
