package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tailhaven/adoption-service/internal/core/domain"
	"github.com/tailhaven/adoption-service/internal/core/port"
	"github.com/tailhaven/adoption-service/internal/infra/config"
	"github.com/tailhaven/adoption-service/internal/infra/logger"
	"github.com/tailhaven/adoption-service/internal/infra/security"
	"github.com/tailhaven/adoption-service/internal/ratelimit"
	"github.com/tailhaven/adoption-service/internal/repository"
)

var (
	// ErrInvalidCredentials indicates the provided email or password are incorrect.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrStaleToken indicates the token was issued before the account's last password change.
	ErrStaleToken = errors.New("token predates password change")
)

// AccountInvalidReason classifies why an account may not authenticate.
type AccountInvalidReason string

const (
	AccountNotFound          AccountInvalidReason = "not_found"
	AccountLocked            AccountInvalidReason = "locked"
	AccountSuspended         AccountInvalidReason = "suspended"
	AccountBanned            AccountInvalidReason = "banned"
	AccountInactive          AccountInvalidReason = "inactive"
	AccountEmailNotVerified  AccountInvalidReason = "email_not_verified"
	AccountDeletionRequested AccountInvalidReason = "deletion_requested"
)

// AccountInvalidError reports an account-state rejection from the account gate.
type AccountInvalidError struct {
	Reason      AccountInvalidReason
	LockedUntil *time.Time
}

// Error implements error.
func (e *AccountInvalidError) Error() string {
	return fmt.Sprintf("account invalid: %s", e.Reason)
}

// RateLimitedError reports an attempt-limiter rejection with a retry hint.
type RateLimitedError struct {
	RetryAfterSeconds int
}

// Error implements error.
func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry in %ds", e.RetryAfterSeconds)
}

// AuthService composes the credential verifier, the account gate, and the
// attempt limiter into the single guard used by every protected route.
type AuthService struct {
	cfg          *config.AppConfig
	identities   port.IdentityRepository
	jwt          *security.JWTManager
	kid          string
	loginLimiter *ratelimit.Limiter
	authLimiter  *ratelimit.Limiter
	events       port.EventPublisher
	logger       *zap.Logger
	now          func() time.Time
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(
	cfg *config.AppConfig,
	identities port.IdentityRepository,
	jwtManager *security.JWTManager,
	kid string,
	loginLimiter *ratelimit.Limiter,
	authLimiter *ratelimit.Limiter,
	events port.EventPublisher,
	log *zap.Logger,
) *AuthService {
	if log == nil {
		log = zap.NewNop()
	}

	return &AuthService{
		cfg:          cfg,
		identities:   identities,
		jwt:          jwtManager,
		kid:          kid,
		loginLimiter: loginLimiter,
		authLimiter:  authLimiter,
		events:       events,
		logger:       log,
		now:          time.Now,
	}
}

// WithClock injects a custom clock (primarily for testing).
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	if now != nil {
		s.now = now
	}
	return s
}

// Authenticate validates a bearer credential end to end: verify signature and
// structure, load the account, run the account gate, and reject tokens issued
// before the last password change. clientKey scopes attempt bookkeeping.
func (s *AuthService) Authenticate(ctx context.Context, rawCredential, clientKey string) (*domain.Identity, error) {
	if s.authLimiter != nil && clientKey != "" {
		decision, err := s.authLimiter.Check(ctx, clientKey)
		if err != nil {
			return nil, fmt.Errorf("check auth limiter: %w", err)
		}
		if !decision.Allowed {
			return nil, &RateLimitedError{RetryAfterSeconds: decision.RetryAfterSeconds}
		}
	}

	identity, err := s.authenticate(ctx, rawCredential)
	if err != nil {
		if s.authLimiter != nil && clientKey != "" && isCredentialFailure(err) {
			if recordErr := s.authLimiter.RecordFailure(ctx, clientKey); recordErr != nil {
				s.logger.Warn("record auth failure", zap.Error(recordErr))
			}
		}
		return nil, err
	}

	if s.authLimiter != nil && clientKey != "" {
		if err := s.authLimiter.RecordSuccess(ctx, clientKey); err != nil {
			s.logger.Warn("clear auth attempts", zap.Error(err))
		}
	}

	return identity, nil
}

func (s *AuthService) authenticate(ctx context.Context, rawCredential string) (*domain.Identity, error) {
	token, err := security.ExtractBearer(rawCredential)
	if err != nil {
		return nil, err
	}

	claims, err := s.jwt.VerifyAccessToken(token, s.cfg.App.Name)
	if err != nil {
		return nil, err
	}

	// Purpose-scoped tokens (email verification) never grant access.
	if claims.Purpose != "" {
		return nil, security.ErrCredentialMalformed
	}

	identity, err := s.identities.GetByID(ctx, claims.IdentityID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &AccountInvalidError{Reason: AccountNotFound}
		}
		return nil, fmt.Errorf("load identity: %w", err)
	}

	if err := s.ValidateAccount(identity); err != nil {
		return nil, err
	}

	if !s.IsTokenFresh(claims, identity) {
		return nil, ErrStaleToken
	}

	return identity, nil
}

// ValidateAccount decides whether the account is currently allowed to
// authenticate. It runs on every request so a mid-session suspension takes
// effect on the next request rather than at token expiry.
func (s *AuthService) ValidateAccount(identity *domain.Identity) error {
	if identity == nil {
		return &AccountInvalidError{Reason: AccountNotFound}
	}

	now := s.now().UTC()
	if identity.IsLocked(now) {
		until := identity.LockedUntil.UTC()
		return &AccountInvalidError{Reason: AccountLocked, LockedUntil: &until}
	}

	switch identity.Status {
	case domain.IdentityStatusSuspended:
		return &AccountInvalidError{Reason: AccountSuspended}
	case domain.IdentityStatusBanned:
		return &AccountInvalidError{Reason: AccountBanned}
	case domain.IdentityStatusInactive:
		return &AccountInvalidError{Reason: AccountInactive}
	}

	if identity.DeletionRequested {
		return &AccountInvalidError{Reason: AccountDeletionRequested}
	}

	// Admins may operate before completing email verification.
	needsVerification := identity.Status == domain.IdentityStatusPendingVerification || !identity.EmailVerified
	if needsVerification && !identity.Role.AtLeast(domain.RoleAdmin) {
		return &AccountInvalidError{Reason: AccountEmailNotVerified}
	}

	return nil
}

// IsTokenFresh reports whether the claims postdate the identity's last
// password change. Comparison is in whole seconds, the unit of the iat claim.
func (s *AuthService) IsTokenFresh(claims *security.AccessTokenClaims, identity *domain.Identity) bool {
	if claims == nil || identity == nil {
		return false
	}
	if identity.PasswordChangedAt == nil || claims.IssuedAt == nil {
		return true
	}
	return claims.IssuedAt.Time.Unix() > identity.PasswordChangedAt.Unix()
}

// Login verifies email/password credentials, feeds the login attempt limiter,
// and issues an access token. Repeated failures for the same account escalate
// to a persisted lock on the identity.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, *domain.Identity, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return "", nil, ErrInvalidCredentials
	}

	if s.loginLimiter != nil {
		decision, err := s.loginLimiter.Check(ctx, email)
		if err != nil {
			return "", nil, fmt.Errorf("check login limiter: %w", err)
		}
		if !decision.Allowed {
			return "", nil, &RateLimitedError{RetryAfterSeconds: decision.RetryAfterSeconds}
		}
	}

	identity, err := s.identities.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.recordLoginFailure(ctx, email, nil)
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("lookup identity: %w", err)
	}

	ok, err := security.VerifyPassword(password, identity.PasswordHash)
	if err != nil {
		return "", nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		s.recordLoginFailure(ctx, email, identity)
		return "", nil, ErrInvalidCredentials
	}

	if err := s.ValidateAccount(identity); err != nil {
		return "", nil, err
	}

	if s.loginLimiter != nil {
		if err := s.loginLimiter.RecordSuccess(ctx, email); err != nil {
			s.logger.Warn("clear login attempts", zap.Error(err))
		}
	}

	now := s.now().UTC()
	if err := s.identities.RecordLogin(ctx, identity.ID, now); err != nil {
		s.logger.Warn("record login timestamp", zap.Error(err))
	}

	token, err := s.IssueToken(identity)
	if err != nil {
		return "", nil, err
	}

	sanitized := *identity
	sanitized.PasswordHash = ""

	return token, &sanitized, nil
}

// IssueToken signs an access token for the supplied identity.
func (s *AuthService) IssueToken(identity *domain.Identity) (string, error) {
	if identity == nil || identity.ID == "" {
		return "", fmt.Errorf("identity id is required")
	}

	claims, err := security.NewAccessTokenClaims(security.AccessTokenOptions{
		IdentityID: identity.ID,
		Role:       string(identity.Role),
		Issuer:     s.cfg.App.Name,
		TTL:        s.cfg.JWT.AccessTokenTTL,
		IssuedAt:   s.now().UTC(),
	})
	if err != nil {
		return "", err
	}

	return s.jwt.SignAccessToken(s.kid, claims)
}

// recordLoginFailure increments the limiter and, when the account just
// crossed the lockout threshold, persists the lock on the identity so the
// account gate sees it regardless of which node handled the failure.
func (s *AuthService) recordLoginFailure(ctx context.Context, email string, identity *domain.Identity) {
	if s.loginLimiter == nil {
		return
	}

	if err := s.loginLimiter.RecordFailure(ctx, email); err != nil {
		s.logger.Warn("record login failure", zap.String("email", logger.MaskEmail(email)), zap.Error(err))
		return
	}

	if identity == nil {
		return
	}

	decision, err := s.loginLimiter.Check(ctx, email)
	if err != nil || decision.Allowed {
		return
	}

	until := s.now().UTC().Add(time.Duration(decision.RetryAfterSeconds) * time.Second)
	if err := s.identities.SetLock(ctx, identity.ID, &until); err != nil {
		s.logger.Warn("persist account lock", zap.Error(err))
		return
	}

	s.logger.Info("account locked after repeated failures",
		zap.String("identity_id", identity.ID),
		zap.Time("locked_until", until),
	)

	if s.events != nil {
		event := domain.IdentityLockedEvent{
			EventID:     uuid.NewString(),
			IdentityID:  identity.ID,
			LockedUntil: until,
			LockedAt:    s.now().UTC(),
		}
		if err := s.events.PublishIdentityLocked(ctx, event); err != nil {
			s.logger.Warn("publish identity locked event", zap.Error(err))
		}
	}
}

// isCredentialFailure reports whether the error should count against the
// client's attempt budget. Account-state rejections and rate limits do not:
// lockout only escalates from authentication failures.
func isCredentialFailure(err error) bool {
	switch {
	case errors.Is(err, security.ErrCredentialMissing),
		errors.Is(err, security.ErrCredentialMalformed),
		errors.Is(err, security.ErrSignatureInvalid),
		errors.Is(err, security.ErrTokenExpired),
		errors.Is(err, security.ErrTokenNotYetValid),
		errors.Is(err, ErrStaleToken):
		return true
	default:
		return false
	}
}
