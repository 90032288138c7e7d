package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// argonParams are the Argon2id cost settings, sized to the RFC 9106
// low-memory recommendation. Changing them does not invalidate stored
// credentials: Verify recomputes with the current settings against the
// stored salt, so old hashes simply fail and force a reset.
type argonParams struct {
	time    uint32
	memory  uint32
	threads uint8
	keyLen  uint32
	saltLen int
}

var defaultParams = argonParams{
	time:    3,
	memory:  64 * 1024,
	threads: 4,
	keyLen:  32,
	saltLen: 16,
}

var errMalformedHash = errors.New("malformed password hash")

// HashPassword derives an Argon2id hash of the password, encoded as
// "salt:hash" with both halves base64.
func HashPassword(password string) (string, error) {
	p := defaultParams

	salt := make([]byte, p.saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	digest := argon2.IDKey([]byte(password), salt, p.time, p.memory, p.threads, p.keyLen)

	return base64.StdEncoding.EncodeToString(salt) + ":" + base64.StdEncoding.EncodeToString(digest), nil
}

// VerifyPassword reports whether the password matches the stored hash. The
// comparison is constant time over the digest.
func VerifyPassword(password, encoded string) (bool, error) {
	if password == "" || encoded == "" {
		return false, nil
	}

	salt, stored, err := decodeHash(encoded)
	if err != nil {
		return false, err
	}

	p := defaultParams
	computed := argon2.IDKey([]byte(password), salt, p.time, p.memory, p.threads, uint32(len(stored)))

	return subtle.ConstantTimeCompare(computed, stored) == 1, nil
}

func decodeHash(encoded string) (salt, digest []byte, err error) {
	parts := strings.Split(encoded, ":")
	if len(parts) != 2 {
		return nil, nil, errMalformedHash
	}

	salt, err = base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, nil, fmt.Errorf("decode salt: %w", err)
	}

	digest, err = base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, nil, fmt.Errorf("decode hash: %w", err)
	}

	return salt, digest, nil
}
