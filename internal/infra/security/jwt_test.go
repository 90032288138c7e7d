package security

import (
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"strings"
	"testing"
	"time"
)

type testKeyProvider struct {
	key *rsa.PrivateKey
}

func (p testKeyProvider) GetSigningKey() (*rsa.PrivateKey, error) {
	return p.key, nil
}

func (p testKeyProvider) GetVerificationKey(string) (*rsa.PublicKey, error) {
	return &p.key.PublicKey, nil
}

func newTestManager(t *testing.T) *JWTManager {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return NewJWTManager(testKeyProvider{key: key})
}

func TestSignAndVerifyAccessToken(t *testing.T) {
	mgr := newTestManager(t)

	claims, err := NewAccessTokenClaims(AccessTokenOptions{
		IdentityID: "identity-1",
		Role:       "staff",
		Issuer:     "adoption-service",
		TTL:        time.Hour,
	})
	if err != nil {
		t.Fatalf("NewAccessTokenClaims: %v", err)
	}

	token, err := mgr.SignAccessToken("primary", claims)
	if err != nil {
		t.Fatalf("SignAccessToken: %v", err)
	}
	if strings.Count(token, ".") != 2 {
		t.Fatalf("expected compact JWT, got %q", token)
	}

	verified, err := mgr.VerifyAccessToken(token, "adoption-service")
	if err != nil {
		t.Fatalf("VerifyAccessToken: %v", err)
	}
	if verified.IdentityID != "identity-1" || verified.Role != "staff" {
		t.Fatalf("unexpected claims: %+v", verified)
	}
	if verified.Purpose != "" {
		t.Fatalf("unexpected purpose: %q", verified.Purpose)
	}
}

func TestVerifyAccessTokenWrongIssuer(t *testing.T) {
	mgr := newTestManager(t)

	claims, err := NewAccessTokenClaims(AccessTokenOptions{
		IdentityID: "identity-1",
		Issuer:     "someone-else",
		TTL:        time.Hour,
	})
	if err != nil {
		t.Fatalf("NewAccessTokenClaims: %v", err)
	}
	token, err := mgr.SignAccessToken("primary", claims)
	if err != nil {
		t.Fatalf("SignAccessToken: %v", err)
	}

	if _, err := mgr.VerifyAccessToken(token, "adoption-service"); err == nil {
		t.Fatal("token with foreign issuer should not verify")
	}
}

func TestVerifyAccessTokenExpired(t *testing.T) {
	mgr := newTestManager(t)

	claims, err := NewAccessTokenClaims(AccessTokenOptions{
		IdentityID: "identity-1",
		Issuer:     "adoption-service",
		IssuedAt:   time.Now().UTC().Add(-2 * time.Hour),
		TTL:        time.Hour,
	})
	if err != nil {
		t.Fatalf("NewAccessTokenClaims: %v", err)
	}
	token, err := mgr.SignAccessToken("primary", claims)
	if err != nil {
		t.Fatalf("SignAccessToken: %v", err)
	}

	if _, err := mgr.VerifyAccessToken(token, "adoption-service"); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestVerifyAccessTokenTamperedSignature(t *testing.T) {
	mgr := newTestManager(t)

	claims, err := NewAccessTokenClaims(AccessTokenOptions{
		IdentityID: "identity-1",
		Issuer:     "adoption-service",
		TTL:        time.Hour,
	})
	if err != nil {
		t.Fatalf("NewAccessTokenClaims: %v", err)
	}
	token, err := mgr.SignAccessToken("primary", claims)
	if err != nil {
		t.Fatalf("SignAccessToken: %v", err)
	}

	other := newTestManager(t)
	if _, err := other.VerifyAccessToken(token, "adoption-service"); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected ErrSignatureInvalid, got %v", err)
	}
}

func TestVerifyAccessTokenMalformed(t *testing.T) {
	mgr := newTestManager(t)

	if _, err := mgr.VerifyAccessToken("", "adoption-service"); !errors.Is(err, ErrCredentialMissing) {
		t.Fatalf("empty token: expected ErrCredentialMissing, got %v", err)
	}
	if _, err := mgr.VerifyAccessToken("one.two", "adoption-service"); !errors.Is(err, ErrCredentialMalformed) {
		t.Fatalf("two segments: expected ErrCredentialMalformed, got %v", err)
	}
	if _, err := mgr.VerifyAccessToken("a..c", "adoption-service"); !errors.Is(err, ErrCredentialMalformed) {
		t.Fatalf("empty segment: expected ErrCredentialMalformed, got %v", err)
	}
}

func TestExtractBearer(t *testing.T) {
	longToken := strings.Repeat("a", minBareTokenLength)

	cases := []struct {
		name    string
		header  string
		want    string
		wantErr error
	}{
		{"standard", "Bearer token-value", "token-value", nil},
		{"case insensitive scheme", "bearer token-value", "token-value", nil},
		{"missing", "", "", ErrCredentialMissing},
		{"scheme only", "Bearer", "", ErrCredentialMalformed},
		{"wrong scheme", "Basic dXNlcg==", "", ErrCredentialMalformed},
		{"bare long token", longToken, longToken, nil},
		{"bare short token", "abc123", "", ErrCredentialMalformed},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ExtractBearer(tc.header)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("token = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestNewAccessTokenClaimsValidation(t *testing.T) {
	if _, err := NewAccessTokenClaims(AccessTokenOptions{Issuer: "adoption-service"}); err == nil {
		t.Fatal("missing identity id should be rejected")
	}
	if _, err := NewAccessTokenClaims(AccessTokenOptions{IdentityID: "identity-1"}); err == nil {
		t.Fatal("missing issuer should be rejected")
	}
}
