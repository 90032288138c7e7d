package security

import (
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	uuid "github.com/google/uuid"
)

var (
	// ErrCredentialMissing indicates no bearer credential was supplied.
	ErrCredentialMissing = errors.New("jwt: credential missing")
	// ErrCredentialMalformed indicates the supplied credential is not a well-formed compact JWT.
	ErrCredentialMalformed = errors.New("jwt: credential malformed")
	// ErrSignatureInvalid indicates signature verification failed.
	ErrSignatureInvalid = errors.New("jwt: signature invalid")
	// ErrTokenExpired indicates the token's expiry has passed.
	ErrTokenExpired = errors.New("jwt: token expired")
	// ErrTokenNotYetValid indicates the token's not-before is in the future.
	ErrTokenNotYetValid = errors.New("jwt: token not yet valid")
	// ErrKeyIDMissing indicates no kid is associated with the supplied key.
	ErrKeyIDMissing = errors.New("jwt: missing key identifier")
	// ErrKeyNotRegistered indicates a supplied kid is unknown to the JWT manager.
	ErrKeyNotRegistered = errors.New("jwt: key not registered")
)

// Bare tokens (no "Bearer " prefix) are only accepted above this length, so a
// stray short header value fails as malformed instead of being parsed.
const minBareTokenLength = 40

// AccessTokenClaims carries the identity context embedded in access tokens.
type AccessTokenClaims struct {
	IdentityID string `json:"uid"`
	Role       string `json:"role,omitempty"`
	Purpose    string `json:"purpose,omitempty"`
	jwt.RegisteredClaims
}

// AccessTokenOptions configures creation of access token claims.
type AccessTokenOptions struct {
	IdentityID string
	Role       string
	Purpose    string
	Issuer     string
	Audience   []string
	TTL        time.Duration
	IssuedAt   time.Time
	JTI        string
}

const defaultAccessTokenTTL = 15 * time.Minute

// NewAccessTokenClaims constructs standardized access token claims.
func NewAccessTokenClaims(opts AccessTokenOptions) (*AccessTokenClaims, error) {
	identityID := strings.TrimSpace(opts.IdentityID)
	if identityID == "" {
		return nil, fmt.Errorf("jwt: identity id is required")
	}
	issuer := strings.TrimSpace(opts.Issuer)
	if issuer == "" {
		return nil, fmt.Errorf("jwt: issuer is required")
	}

	now := opts.IssuedAt
	if now.IsZero() {
		now = time.Now().UTC()
	} else {
		now = now.UTC()
	}

	ttl := opts.TTL
	if ttl <= 0 {
		ttl = defaultAccessTokenTTL
	}

	jti := strings.TrimSpace(opts.JTI)
	if jti == "" {
		jti = uuid.NewString()
	}

	return &AccessTokenClaims{
		IdentityID: identityID,
		Role:       strings.TrimSpace(opts.Role),
		Purpose:    strings.TrimSpace(opts.Purpose),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identityID,
			Issuer:    issuer,
			Audience:  opts.Audience,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        jti,
		},
	}, nil
}

// ExtractBearer pulls the compact token out of an Authorization header value.
// The conventional "Bearer <token>" form is accepted, and, for compatibility
// with older clients, a bare token with no embedded whitespace when it is long
// enough to plausibly be a JWT.
func ExtractBearer(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", ErrCredentialMissing
	}

	if parts := strings.SplitN(header, " ", 2); len(parts) == 2 {
		if !strings.EqualFold(parts[0], "Bearer") {
			return "", ErrCredentialMalformed
		}
		token := strings.TrimSpace(parts[1])
		if token == "" {
			return "", ErrCredentialMissing
		}
		return token, nil
	}

	if len(header) < minBareTokenLength {
		return "", ErrCredentialMalformed
	}

	return header, nil
}

// CheckCompactForm validates the three dot-separated, non-empty,
// base64url-decodable segment structure without verifying the signature.
func CheckCompactForm(token string) error {
	segments := strings.Split(token, ".")
	if len(segments) != 3 {
		return ErrCredentialMalformed
	}
	for _, segment := range segments {
		if segment == "" {
			return ErrCredentialMalformed
		}
		if _, err := base64.RawURLEncoding.DecodeString(segment); err != nil {
			return ErrCredentialMalformed
		}
	}
	return nil
}

// JWTManager coordinates signing key retrieval and token verification.
type JWTManager struct {
	KeyProvider KeyProvider
	mu          sync.RWMutex
	publicKeys  map[string]*rsa.PublicKey
}

// NewJWTManager constructs a JWTManager for the supplied key provider.
func NewJWTManager(provider KeyProvider) *JWTManager {
	mgr := &JWTManager{
		KeyProvider: provider,
		publicKeys:  make(map[string]*rsa.PublicKey),
	}

	if enumerator, ok := provider.(interface {
		ListVerificationKeys() map[string]*rsa.PublicKey
	}); ok {
		for kid, key := range enumerator.ListVerificationKeys() {
			_ = mgr.RegisterPublicKey(kid, key)
		}
	}

	return mgr
}

// RegisterPublicKey associates a kid with a public key for future lookup.
func (m *JWTManager) RegisterPublicKey(kid string, key *rsa.PublicKey) error {
	kid = strings.TrimSpace(kid)
	if kid == "" {
		return ErrKeyIDMissing
	}
	if key == nil {
		return fmt.Errorf("jwt: public key for %s is nil", kid)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.publicKeys[kid] = key
	return nil
}

// GetVerificationKey retrieves a public key by kid.
func (m *JWTManager) GetVerificationKey(kid string) (*rsa.PublicKey, error) {
	kid = strings.TrimSpace(kid)
	if kid == "" {
		return nil, ErrKeyIDMissing
	}

	m.mu.RLock()
	key, ok := m.publicKeys[kid]
	m.mu.RUnlock()
	if ok {
		return key, nil
	}

	if m.KeyProvider != nil {
		fetched, err := m.KeyProvider.GetVerificationKey(kid)
		if err == nil {
			_ = m.RegisterPublicKey(kid, fetched)
			return fetched, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrKeyNotRegistered, kid)
}

// SignAccessToken signs the provided claims using the active signing key and kid.
func (m *JWTManager) SignAccessToken(kid string, claims *AccessTokenClaims) (string, error) {
	if claims == nil {
		return "", fmt.Errorf("jwt: access token claims required")
	}
	kid = strings.TrimSpace(kid)
	if kid == "" {
		return "", ErrKeyIDMissing
	}
	if m.KeyProvider == nil {
		return "", fmt.Errorf("jwt: key provider not configured")
	}

	signingKey, err := m.KeyProvider.GetSigningKey()
	if err != nil {
		return "", fmt.Errorf("jwt: get signing key: %w", err)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid

	signed, err := token.SignedString(signingKey)
	if err != nil {
		return "", fmt.Errorf("jwt: sign token: %w", err)
	}

	return signed, nil
}

// VerifyAccessToken decodes and verifies a compact token, returning its claims
// or a distinguished sentinel so callers can produce distinct user messages.
func (m *JWTManager) VerifyAccessToken(token string, issuer string) (*AccessTokenClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrCredentialMissing
	}
	if err := CheckCompactForm(token); err != nil {
		return nil, err
	}

	claims := &AccessTokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}

		kid, ok := t.Header["kid"].(string)
		if !ok {
			return nil, fmt.Errorf("kid header not found")
		}

		return m.GetVerificationKey(kid)
	}, jwt.WithIssuer(issuer))
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenNotValidYet), errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
			return nil, ErrTokenNotYetValid
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrSignatureInvalid
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, ErrCredentialMalformed
		default:
			return nil, ErrSignatureInvalid
		}
	}

	if parsed == nil || !parsed.Valid {
		return nil, ErrSignatureInvalid
	}
	if strings.TrimSpace(claims.IdentityID) == "" {
		return nil, ErrCredentialMalformed
	}

	return claims, nil
}
