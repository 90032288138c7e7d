package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tailhaven/adoption-service/internal/core/domain"
	"github.com/tailhaven/adoption-service/internal/infra/security"
)

func newTestIdentityService(repo *fakeIdentityRepo) *IdentityService {
	return NewIdentityService(repo, security.DefaultPasswordValidator(), NewAuthorizer(), nil).
		WithClock(func() time.Time { return testTime })
}

func seedRoleIdentity(repo *fakeIdentityRepo, id string, role domain.Role) *domain.Identity {
	identity := &domain.Identity{
		ID:            id,
		Email:         id + "@example.com",
		Role:          role,
		Status:        domain.IdentityStatusActive,
		EmailVerified: true,
	}
	repo.identities[id] = identity
	return identity
}

func TestGrantRole(t *testing.T) {
	repo := newFakeIdentityRepo()
	seedRoleIdentity(repo, "target", domain.RoleUser)
	seedRoleIdentity(repo, "top", domain.RoleSuperAdmin)
	svc := newTestIdentityService(repo)

	admin := domain.Identity{ID: "admin", Role: domain.RoleAdmin}
	superAdmin := domain.Identity{ID: "root", Role: domain.RoleSuperAdmin}

	if err := svc.GrantRole(context.Background(), admin, "target", domain.RoleStaff); err != nil {
		t.Fatalf("admin granting staff: %v", err)
	}
	if repo.identities["target"].Role != domain.RoleStaff {
		t.Errorf("role = %s, want staff", repo.identities["target"].Role)
	}

	if err := svc.GrantRole(context.Background(), admin, "target", domain.RoleAdmin); !errors.Is(err, ErrForbidden) {
		t.Errorf("admin granting admin: got %v, want ErrForbidden", err)
	}
	if err := svc.GrantRole(context.Background(), admin, "top", domain.RoleUser); !errors.Is(err, ErrForbidden) {
		t.Errorf("admin demoting super_admin: got %v, want ErrForbidden", err)
	}

	if err := svc.GrantRole(context.Background(), superAdmin, "top", domain.RoleAdmin); err != nil {
		t.Errorf("super_admin demoting super_admin: %v", err)
	}

	if err := svc.GrantRole(context.Background(), superAdmin, "missing", domain.RoleUser); !errors.Is(err, ErrIdentityNotFound) {
		t.Errorf("unknown target: got %v, want ErrIdentityNotFound", err)
	}
}

func TestUpdateStatus(t *testing.T) {
	repo := newFakeIdentityRepo()
	seedRoleIdentity(repo, "user-1", domain.RoleUser)
	seedRoleIdentity(repo, "admin-2", domain.RoleAdmin)
	svc := newTestIdentityService(repo)

	staff := domain.Identity{ID: "staff-1", Role: domain.RoleStaff}
	admin := domain.Identity{ID: "admin-1", Role: domain.RoleAdmin}
	self := domain.Identity{ID: "admin-2", Role: domain.RoleAdmin}

	if err := svc.UpdateStatus(context.Background(), staff, "user-1", domain.IdentityStatusSuspended); !errors.Is(err, ErrForbidden) {
		t.Errorf("staff actor: got %v, want ErrForbidden", err)
	}

	if err := svc.UpdateStatus(context.Background(), admin, "user-1", domain.IdentityStatusSuspended); err != nil {
		t.Fatalf("admin suspending user: %v", err)
	}
	if repo.identities["user-1"].Status != domain.IdentityStatusSuspended {
		t.Errorf("status = %s, want suspended", repo.identities["user-1"].Status)
	}

	if err := svc.UpdateStatus(context.Background(), admin, "admin-2", domain.IdentityStatusSuspended); !errors.Is(err, ErrForbidden) {
		t.Errorf("admin acting on a peer: got %v, want ErrForbidden", err)
	}

	if err := svc.UpdateStatus(context.Background(), self, "admin-2", domain.IdentityStatusInactive); err != nil {
		t.Errorf("admin deactivating own account: %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	repo := newFakeIdentityRepo()
	identity := seedIdentity(t, repo, "alice@example.com", strongPassword)
	svc := newTestIdentityService(repo)

	if err := svc.ChangePassword(context.Background(), identity.ID, "wrong-current", "tr4il-maple-otter-92"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong current password: got %v, want ErrInvalidCredentials", err)
	}

	var perr *security.PasswordValidationError
	if err := svc.ChangePassword(context.Background(), identity.ID, strongPassword, "short1"); !errors.As(err, &perr) {
		t.Errorf("weak new password: got %v, want PasswordValidationError", err)
	}

	if err := svc.ChangePassword(context.Background(), identity.ID, strongPassword, "tr4il-maple-otter-92"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}

	stored := repo.identities[identity.ID]
	if stored.PasswordChangedAt == nil || !stored.PasswordChangedAt.Equal(testTime) {
		t.Errorf("password_changed_at = %v, want %v", stored.PasswordChangedAt, testTime)
	}

	ok, err := security.VerifyPassword("tr4il-maple-otter-92", stored.PasswordHash)
	if err != nil || !ok {
		t.Errorf("new password should verify against the stored hash (ok=%v, err=%v)", ok, err)
	}
}

func TestUnlock(t *testing.T) {
	repo := newFakeIdentityRepo()
	identity := seedRoleIdentity(repo, "user-1", domain.RoleUser)
	until := testTime.Add(30 * time.Minute)
	identity.LockedUntil = &until
	svc := newTestIdentityService(repo)

	staff := domain.Identity{ID: "staff-1", Role: domain.RoleStaff}
	if err := svc.Unlock(context.Background(), staff, "user-1"); !errors.Is(err, ErrForbidden) {
		t.Errorf("staff actor: got %v, want ErrForbidden", err)
	}

	admin := domain.Identity{ID: "admin-1", Role: domain.RoleAdmin}
	if err := svc.Unlock(context.Background(), admin, "user-1"); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	if repo.identities["user-1"].LockedUntil != nil {
		t.Error("lock should be cleared")
	}

	if err := svc.Unlock(context.Background(), admin, "missing"); !errors.Is(err, ErrIdentityNotFound) {
		t.Errorf("unknown target: got %v, want ErrIdentityNotFound", err)
	}
}

func TestGetIdentitySanitizes(t *testing.T) {
	repo := newFakeIdentityRepo()
	identity := seedIdentity(t, repo, "alice@example.com", strongPassword)
	svc := newTestIdentityService(repo)

	loaded, err := svc.GetIdentity(context.Background(), identity.ID)
	if err != nil {
		t.Fatalf("GetIdentity: %v", err)
	}
	if loaded.PasswordHash != "" {
		t.Error("loaded identity must not carry the password hash")
	}

	if _, err := svc.GetIdentity(context.Background(), "missing"); !errors.Is(err, ErrIdentityNotFound) {
		t.Errorf("got %v, want ErrIdentityNotFound", err)
	}
}
