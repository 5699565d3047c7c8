package core

import (
	"errors"
	"strings"
)

// Authentication Related Errors
var (
	ErrUnauthorized       = errors.New("not authorized")            // 401 Unauthorized
	ErrInvalidCredentials = errors.New("invalid email or password") // 401 Unauthorized
	ErrEmailTaken         = errors.New("email already registered")  // 400 Conflict
	ErrValidationFailed   = errors.New("validation failed")         // 400 Bad Request
	ErrAccountNotFound    = errors.New("account not found")
	ErrProfileNotFound    = errors.New("profile not found")
)

// Session errors
var (
	ErrSessionNotFound = errors.New("session not found")                   // 401
	ErrSessionExpired  = errors.New("session expired")                     // 401
	ErrSessionExists   = errors.New("session already bound to an account") // 409
	ErrCacheNotFound   = errors.New("session not found in cache")
)

// Config errors (server-side configuration)
var (
	ErrAccountStorageRequired = errors.New("account storage is required") // 500
	ErrSessionStorageRequired = errors.New("session storage is required") // 500
	ErrHTTPAdapterRequired    = errors.New("http adapter is required")    // 500
)

// Violation categories reported by registration validation
const (
	CategoryEmail                = "email"
	CategoryEmailTaken           = "email_taken"
	CategoryPassword             = "password"
	CategoryPasswordConfirmation = "password_confirmation"
	CategoryDisplayName          = "display_name"
	CategoryEULA                 = "eula"
)

// Violation is one failed registration check
type Violation struct {
	Category string `json:"category"`
	Detail   string `json:"detail"`
}

// ValidationError carries every violated registration policy, not just the first.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	details := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		details = append(details, v.Category+": "+v.Detail)
	}
	return ErrValidationFailed.Error() + ": " + strings.Join(details, "; ")
}

// Is lets callers match with errors.Is(err, ErrValidationFailed).
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}
