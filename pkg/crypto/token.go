package crypto

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/google/uuid"
)

// NewSessionID mints a random session identifier (UUIDv4, 122 random bits).
func NewSessionID() string {
	return uuid.NewString()
}

// IsSessionID reports whether a client-supplied identifier has the shape of
// one we mint. Anything else is replaced instead of being stored.
func IsSessionID(id string) bool {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return false
	}
	// uuid.Parse also accepts urn and braced forms
	return parsed.String() == id && parsed.Version() == 4
}

// HashToken is the value persisted in place of a raw session identifier.
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}
