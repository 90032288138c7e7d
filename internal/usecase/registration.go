package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
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
	// ErrEmailTaken indicates an identity with the email already exists.
	ErrEmailTaken = errors.New("email already registered")
	// ErrVerificationInvalid indicates the verification token is not usable.
	ErrVerificationInvalid = errors.New("verification token invalid")
)

const verificationPurpose = "email_verify"
const verificationTokenTTL = 24 * time.Hour

// RegisterInput carries the fields of a registration request.
type RegisterInput struct {
	Email    string
	Name     string
	Phone    *string
	Password string
}

// RegistrationService creates identities and drives email verification via
// purpose-scoped tokens signed with the regular access-token key.
type RegistrationService struct {
	cfg        *config.AppConfig
	identities port.IdentityRepository
	validator  *security.PasswordValidator
	jwt        *security.JWTManager
	kid        string
	limiter    *ratelimit.Limiter
	events     port.EventPublisher
	logger     *zap.Logger
	now        func() time.Time
}

// NewRegistrationService constructs a RegistrationService.
func NewRegistrationService(
	cfg *config.AppConfig,
	identities port.IdentityRepository,
	validator *security.PasswordValidator,
	jwtManager *security.JWTManager,
	kid string,
	limiter *ratelimit.Limiter,
	events port.EventPublisher,
	log *zap.Logger,
) *RegistrationService {
	if log == nil {
		log = zap.NewNop()
	}

	return &RegistrationService{
		cfg:        cfg,
		identities: identities,
		validator:  validator,
		jwt:        jwtManager,
		kid:        kid,
		limiter:    limiter,
		events:     events,
		logger:     log,
		now:        time.Now,
	}
}

// WithClock injects a custom clock (primarily for testing).
func (s *RegistrationService) WithClock(now func() time.Time) *RegistrationService {
	if now != nil {
		s.now = now
	}
	return s
}

// Register validates input, hashes the password, and creates a
// pending-verification identity. The returned token proves control of the
// email address when presented to VerifyEmail. clientKey scopes the
// registration attempt limiter, which throttles abuse but never locks.
func (s *RegistrationService) Register(ctx context.Context, input RegisterInput, clientKey string) (*domain.Identity, string, error) {
	if s.limiter != nil && clientKey != "" {
		decision, err := s.limiter.Check(ctx, clientKey)
		if err != nil {
			return nil, "", fmt.Errorf("check registration limiter: %w", err)
		}
		if !decision.Allowed {
			return nil, "", &RateLimitedError{RetryAfterSeconds: decision.RetryAfterSeconds}
		}
	}

	email := strings.ToLower(strings.TrimSpace(input.Email))
	name := strings.TrimSpace(input.Name)

	var fields []FieldError
	if _, err := mail.ParseAddress(email); email == "" || err != nil {
		fields = append(fields, FieldError{Field: "email", Message: "must be a valid email address"})
	}
	if name == "" {
		fields = append(fields, FieldError{Field: "name", Message: "is required"})
	}
	if len(fields) > 0 {
		return nil, "", &ValidationError{Fields: fields}
	}

	if s.validator != nil {
		if err := s.validator.Validate(input.Password); err != nil {
			return nil, "", err
		}
	}

	hash, err := security.HashPassword(input.Password)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	identity := domain.Identity{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         name,
		Phone:        input.Phone,
		PasswordHash: hash,
		Role:         domain.RoleUser,
		Status:       domain.IdentityStatusPendingVerification,
		RegisteredAt: now,
	}

	if err := s.identities.Create(ctx, identity); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			if s.limiter != nil && clientKey != "" {
				if recordErr := s.limiter.RecordFailure(ctx, clientKey); recordErr != nil {
					s.logger.Warn("record registration attempt", zap.Error(recordErr))
				}
			}
			return nil, "", ErrEmailTaken
		}
		return nil, "", fmt.Errorf("create identity: %w", err)
	}

	token, err := s.issueVerificationToken(identity, now)
	if err != nil {
		return nil, "", err
	}

	s.logger.Info("identity registered",
		zap.String("identity_id", identity.ID),
		zap.String("email", logger.MaskEmail(email)),
	)

	if s.events != nil {
		event := domain.IdentityRegisteredEvent{
			EventID:      uuid.NewString(),
			IdentityID:   identity.ID,
			Email:        email,
			Role:         string(identity.Role),
			Status:       string(identity.Status),
			RegisteredAt: now,
		}
		if err := s.events.PublishIdentityRegistered(ctx, event); err != nil {
			s.logger.Warn("publish identity registered event", zap.Error(err))
		}
	}

	identity.PasswordHash = ""
	return &identity, token, nil
}

// VerifyEmail consumes a verification token and marks the identity verified.
func (s *RegistrationService) VerifyEmail(ctx context.Context, token string) error {
	claims, err := s.jwt.VerifyAccessToken(token, s.cfg.App.Name)
	if err != nil {
		return ErrVerificationInvalid
	}
	if claims.Purpose != verificationPurpose {
		return ErrVerificationInvalid
	}

	identity, err := s.identities.GetByID(ctx, claims.IdentityID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrVerificationInvalid
		}
		return fmt.Errorf("load identity: %w", err)
	}

	if identity.EmailVerified && identity.Status != domain.IdentityStatusPendingVerification {
		return nil
	}

	if err := s.identities.MarkEmailVerified(ctx, identity.ID); err != nil {
		return fmt.Errorf("mark email verified: %w", err)
	}

	s.logger.Info("email verified", zap.String("identity_id", identity.ID))
	return nil
}

func (s *RegistrationService) issueVerificationToken(identity domain.Identity, issuedAt time.Time) (string, error) {
	claims, err := security.NewAccessTokenClaims(security.AccessTokenOptions{
		IdentityID: identity.ID,
		Purpose:    verificationPurpose,
		Issuer:     s.cfg.App.Name,
		TTL:        verificationTokenTTL,
		IssuedAt:   issuedAt,
	})
	if err != nil {
		return "", err
	}
	return s.jwt.SignAccessToken(s.kid, claims)
}
