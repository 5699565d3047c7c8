package core

import (
	"time"
)

// DefaultSessionMaxAge is the absolute lifetime of a session created without
// "keep me logged in".
const DefaultSessionMaxAge = 6 * time.Hour

type SessionConfig struct {
	// MaxAge is applied to sessions whose owner did not ask to stay logged in.
	MaxAge time.Duration

	// RotateOnLogin mints a new session identifier at login instead of binding
	// the one the client arrived with.
	RotateOnLogin bool
}

func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		MaxAge: DefaultSessionMaxAge,
	}
}
