package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tailhaven/adoption-service/internal/core/domain"
	"github.com/tailhaven/adoption-service/internal/core/port"
	"github.com/tailhaven/adoption-service/internal/infra/security"
	"github.com/tailhaven/adoption-service/internal/repository"
)

// ErrIdentityNotFound indicates the identity id does not resolve.
var ErrIdentityNotFound = errors.New("identity not found")

// IdentityService handles administrative identity operations: role grants,
// status changes, and password changes with their invalidation side effect.
type IdentityService struct {
	identities port.IdentityRepository
	validator  *security.PasswordValidator
	authorizer *Authorizer
	logger     *zap.Logger
	now        func() time.Time
}

// NewIdentityService constructs an IdentityService.
func NewIdentityService(identities port.IdentityRepository, validator *security.PasswordValidator, authorizer *Authorizer, log *zap.Logger) *IdentityService {
	if log == nil {
		log = zap.NewNop()
	}

	return &IdentityService{
		identities: identities,
		validator:  validator,
		authorizer: authorizer,
		logger:     log,
		now:        time.Now,
	}
}

// WithClock injects a custom clock (primarily for testing).
func (s *IdentityService) WithClock(now func() time.Time) *IdentityService {
	if now != nil {
		s.now = now
	}
	return s
}

// GetIdentity loads a single identity with its password hash blanked.
func (s *IdentityService) GetIdentity(ctx context.Context, id string) (*domain.Identity, error) {
	identity, err := s.identities.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrIdentityNotFound
		}
		return nil, fmt.Errorf("load identity: %w", err)
	}

	sanitized := *identity
	sanitized.PasswordHash = ""
	return &sanitized, nil
}

// GrantRole assigns a new role subject to the grant ordering: super-admin may
// grant anything, admin may grant roles strictly below admin, everyone else
// may grant nothing.
func (s *IdentityService) GrantRole(ctx context.Context, actor domain.Identity, targetID string, role domain.Role) error {
	if !s.authorizer.CanGrantRole(actor.Role, role) {
		return ErrForbidden
	}

	target, err := s.identities.GetByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrIdentityNotFound
		}
		return fmt.Errorf("load identity: %w", err)
	}

	// Demoting a super-admin likewise takes a super-admin.
	if target.Role == domain.RoleSuperAdmin && actor.Role != domain.RoleSuperAdmin {
		return ErrForbidden
	}

	if err := s.identities.UpdateRole(ctx, targetID, role); err != nil {
		return fmt.Errorf("update role: %w", err)
	}

	s.logger.Info("role granted",
		zap.String("identity_id", targetID),
		zap.String("role", string(role)),
		zap.String("granted_by", actor.ID),
	)
	return nil
}

// UpdateStatus moves an account between active, inactive, suspended, and
// banned. Admins cannot act on identities at or above their own rank.
func (s *IdentityService) UpdateStatus(ctx context.Context, actor domain.Identity, targetID string, status domain.IdentityStatus) error {
	if !actor.Role.AtLeast(domain.RoleAdmin) {
		return ErrForbidden
	}

	target, err := s.identities.GetByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrIdentityNotFound
		}
		return fmt.Errorf("load identity: %w", err)
	}

	if target.Role.AtLeast(actor.Role) && actor.ID != target.ID {
		return ErrForbidden
	}

	if err := s.identities.UpdateStatus(ctx, targetID, status); err != nil {
		return fmt.Errorf("update status: %w", err)
	}

	s.logger.Info("account status updated",
		zap.String("identity_id", targetID),
		zap.String("status", string(status)),
		zap.String("updated_by", actor.ID),
	)
	return nil
}

// ChangePassword verifies the current password, stores the new hash, and
// stamps password_changed_at so every token issued before this instant stops
// validating.
func (s *IdentityService) ChangePassword(ctx context.Context, identityID, currentPassword, newPassword string) error {
	identity, err := s.identities.GetByID(ctx, identityID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrIdentityNotFound
		}
		return fmt.Errorf("load identity: %w", err)
	}

	ok, err := security.VerifyPassword(currentPassword, identity.PasswordHash)
	if err != nil {
		return fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return ErrInvalidCredentials
	}

	if s.validator != nil {
		if err := s.validator.Validate(newPassword); err != nil {
			return err
		}
	}

	hash, err := security.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	changedAt := s.now().UTC()
	if err := s.identities.UpdatePassword(ctx, identityID, hash, changedAt); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	s.logger.Info("password changed", zap.String("identity_id", identityID))
	return nil
}

// Unlock clears a lockout ahead of its natural expiry.
func (s *IdentityService) Unlock(ctx context.Context, actor domain.Identity, targetID string) error {
	if !actor.Role.AtLeast(domain.RoleAdmin) {
		return ErrForbidden
	}

	if err := s.identities.SetLock(ctx, targetID, nil); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrIdentityNotFound
		}
		return fmt.Errorf("clear lock: %w", err)
	}

	s.logger.Info("account unlocked",
		zap.String("identity_id", targetID),
		zap.String("unlocked_by", actor.ID),
	)
	return nil
}
