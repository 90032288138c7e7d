package domain

import (
	"testing"
	"time"
)

func TestRoleAtLeast(t *testing.T) {
	if !RoleStaff.AtLeast(RoleUser) {
		t.Error("staff should outrank user")
	}
	if !RoleAdmin.AtLeast(RoleAdmin) {
		t.Error("a role should satisfy itself")
	}
	if RoleFoster.AtLeast(RoleStaff) {
		t.Error("foster should not outrank staff")
	}
	if RoleSuperAdmin.AtLeast(RoleUser) != true {
		t.Error("super_admin should outrank everything")
	}
}

func TestRoleValid(t *testing.T) {
	if Role("wizard").Valid() {
		t.Error("unknown role reported valid")
	}
	for _, role := range []Role{RoleUser, RoleVolunteer, RoleFoster, RoleStaff, RoleAdmin, RoleSuperAdmin} {
		if !role.Valid() {
			t.Errorf("%s reported invalid", role)
		}
	}
}

func TestIdentityIsLocked(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	identity := Identity{}
	if identity.IsLocked(now) {
		t.Error("identity without lock reported locked")
	}

	future := now.Add(10 * time.Minute)
	identity.LockedUntil = &future
	if !identity.IsLocked(now) {
		t.Error("identity with future lock reported unlocked")
	}

	past := now.Add(-time.Minute)
	identity.LockedUntil = &past
	if identity.IsLocked(now) {
		t.Error("expired lock still reported locked")
	}
}
