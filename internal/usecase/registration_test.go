package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tailhaven/adoption-service/internal/core/domain"
	"github.com/tailhaven/adoption-service/internal/infra/security"
	"github.com/tailhaven/adoption-service/internal/ratelimit"
)

const strongPassword = "tr4il-maple-otter-91"

func newTestRegistrationService(t *testing.T, repo *fakeIdentityRepo, events *eventRecorder, limiter *ratelimit.Limiter) *RegistrationService {
	t.Helper()
	return NewRegistrationService(testAuthConfig(), repo, security.DefaultPasswordValidator(), newTestJWTManager(t), "primary", limiter, events, nil)
}

func validRegisterInput() RegisterInput {
	return RegisterInput{
		Email:    "New.Adopter@Example.com",
		Name:     "New Adopter",
		Password: strongPassword,
	}
}

func TestRegisterAndVerifyEmail(t *testing.T) {
	repo := newFakeIdentityRepo()
	events := &eventRecorder{}
	svc := newTestRegistrationService(t, repo, events, nil)

	identity, token, err := svc.Register(context.Background(), validRegisterInput(), "203.0.113.9")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if identity.Email != "new.adopter@example.com" {
		t.Errorf("email = %s, want lowercased", identity.Email)
	}
	if identity.Role != domain.RoleUser {
		t.Errorf("role = %s, want user", identity.Role)
	}
	if identity.Status != domain.IdentityStatusPendingVerification {
		t.Errorf("status = %s, want pending_verification", identity.Status)
	}
	if identity.PasswordHash != "" {
		t.Error("returned identity must not carry the password hash")
	}
	if token == "" {
		t.Fatal("expected a verification token")
	}
	if len(events.registered) != 1 {
		t.Fatalf("registered events = %d, want 1", len(events.registered))
	}

	if err := svc.VerifyEmail(context.Background(), token); err != nil {
		t.Fatalf("VerifyEmail: %v", err)
	}

	stored := repo.identities[identity.ID]
	if !stored.EmailVerified || stored.Status != domain.IdentityStatusActive {
		t.Errorf("verification should activate the account: %+v", stored)
	}

	// Re-presenting the token is a no-op, not an error.
	if err := svc.VerifyEmail(context.Background(), token); err != nil {
		t.Errorf("repeat VerifyEmail: %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc := newTestRegistrationService(t, newFakeIdentityRepo(), &eventRecorder{}, nil)

	_, _, err := svc.Register(context.Background(), RegisterInput{Email: "not-an-email", Password: strongPassword}, "")
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(verr.Fields) != 2 {
		t.Errorf("field errors = %d, want email and name: %+v", len(verr.Fields), verr.Fields)
	}
}

func TestRegisterWeakPassword(t *testing.T) {
	svc := newTestRegistrationService(t, newFakeIdentityRepo(), &eventRecorder{}, nil)

	input := validRegisterInput()
	input.Password = "short1"

	_, _, err := svc.Register(context.Background(), input, "")
	var perr *security.PasswordValidationError
	if !errors.As(err, &perr) {
		t.Fatalf("expected PasswordValidationError, got %v", err)
	}
	if perr.Code != "too_short" {
		t.Errorf("code = %s, want too_short", perr.Code)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	repo := newFakeIdentityRepo()
	svc := newTestRegistrationService(t, repo, &eventRecorder{}, nil)

	if _, _, err := svc.Register(context.Background(), validRegisterInput(), ""); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	if _, _, err := svc.Register(context.Background(), validRegisterInput(), ""); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("got %v, want ErrEmailTaken", err)
	}
}

func TestRegisterThrottlesRepeatedDuplicates(t *testing.T) {
	repo := newFakeIdentityRepo()
	limiter := ratelimit.New(ratelimit.NewMemoryAttemptStore(), ratelimit.Config{
		Name:        "registration",
		Window:      time.Hour,
		MaxAttempts: 2,
		Lockout:     time.Minute,
	}, nil)
	svc := newTestRegistrationService(t, repo, &eventRecorder{}, limiter)

	if _, _, err := svc.Register(context.Background(), validRegisterInput(), "203.0.113.9"); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, _, err := svc.Register(context.Background(), validRegisterInput(), "203.0.113.9"); !errors.Is(err, ErrEmailTaken) {
			t.Fatalf("duplicate %d: got %v, want ErrEmailTaken", i+1, err)
		}
	}

	var rateErr *RateLimitedError
	_, _, err := svc.Register(context.Background(), validRegisterInput(), "203.0.113.9")
	if !errors.As(err, &rateErr) {
		t.Fatalf("got %v, want RateLimitedError", err)
	}
}

func TestVerifyEmailRejectsAccessToken(t *testing.T) {
	repo := newFakeIdentityRepo()
	identity := seedIdentity(t, repo, "alice@example.com", strongPassword)
	identity.EmailVerified = false
	identity.Status = domain.IdentityStatusPendingVerification

	jwtManager := newTestJWTManager(t)
	svc := NewRegistrationService(testAuthConfig(), repo, nil, jwtManager, "primary", nil, nil, nil)

	claims, err := security.NewAccessTokenClaims(security.AccessTokenOptions{
		IdentityID: identity.ID,
		Issuer:     "adoption-service",
		TTL:        time.Hour,
	})
	if err != nil {
		t.Fatalf("build claims: %v", err)
	}
	token, err := jwtManager.SignAccessToken("primary", claims)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	if err := svc.VerifyEmail(context.Background(), token); !errors.Is(err, ErrVerificationInvalid) {
		t.Errorf("got %v, want ErrVerificationInvalid", err)
	}
	if repo.identities[identity.ID].EmailVerified {
		t.Error("plain access token must not verify the email")
	}
}

func TestVerifyEmailGarbageToken(t *testing.T) {
	svc := newTestRegistrationService(t, newFakeIdentityRepo(), &eventRecorder{}, nil)
	if err := svc.VerifyEmail(context.Background(), "not.a.token"); !errors.Is(err, ErrVerificationInvalid) {
		t.Errorf("got %v, want ErrVerificationInvalid", err)
	}
}
