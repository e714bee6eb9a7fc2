// Package ids mints the identifiers the favorites service hands out: ULIDs
// for lists and opaque capability tokens for public sharing.
package ids

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	ulidRegex = regexp.MustCompile(`(?i)^[0-9A-HJKMNP-TV-Z]{26}$`)

	ErrInvalidULID  = errors.New("invalid ULID")
	ErrInvalidToken = errors.New("invalid capability token")
)

// capabilityTokenBytes is the entropy of a capability token (256 bits).
const capabilityTokenBytes = 32

// NewULID generates a new ULID string.
func NewULID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// IsULID returns true when value is a valid ULID (case-insensitive Crockford Base32).
func IsULID(value string) bool {
	return ulidRegex.MatchString(strings.TrimSpace(value))
}

// ValidateULID validates a ULID string.
func ValidateULID(value string) error {
	if !IsULID(value) {
		return ErrInvalidULID
	}
	return nil
}

// NewCapabilityToken returns 32 random bytes encoded as unpadded URL-safe
// base64 (43 characters).
func NewCapabilityToken() (string, error) {
	b := make([]byte, capabilityTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// ValidateCapabilityToken rejects values that could not have been minted by
// NewCapabilityToken, so lookups of obviously bogus tokens skip the store.
func ValidateCapabilityToken(token string) error {
	decoded, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil || len(decoded) != capabilityTokenBytes {
		return ErrInvalidToken
	}
	return nil
}
