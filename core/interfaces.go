package core

import (
	"context"
	"time"
)

// Ports define interfaces for external dependencies

// ============================================
// STORAGE PORTS (Database operations)
// ============================================

// AccountStorage defines account-related database operations
type AccountStorage interface {
	// CreateAccount persists the account and its profile as one unit.
	// Implementations must enforce email uniqueness themselves and report a
	// duplicate with ErrEmailTaken.
	CreateAccount(ctx context.Context, account *Account, profile *Profile) error

	GetAccountByID(ctx context.Context, id string) (*Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*Account, error)
	GetProfileByOwner(ctx context.Context, accountID string) (*Profile, error)
}

// SessionStorage defines session-related database operations
type SessionStorage interface {
	// CreateSession inserts a session. A second insert for the same token hash
	// must fail with ErrSessionExists.
	CreateSession(ctx context.Context, session *Session) error

	// GetSessionByHash returns ErrSessionNotFound for unknown or expired sessions.
	GetSessionByHash(ctx context.Context, tokenHash string) (*Session, error)

	// DeleteSessionByHash is idempotent.
	DeleteSessionByHash(ctx context.Context, tokenHash string) error

	// Cleanup
	DeleteExpiredSessions(ctx context.Context) (int64, error)
}

// ============================================
// CACHE PORT
// ============================================

// Cache defines session caching operations
type Cache interface {
	Get(tokenHash string) (*Session, error)
	Set(tokenHash string, session *Session) error
	Delete(tokenHash string) error
	Clear() error
}

// CacheWithStats extends Cache with statistics tracking
type CacheWithStats interface {
	Cache
	Stats() CacheStats
}

// CacheConfig configures cache behavior
type CacheConfig struct {
	TTL     time.Duration
	MaxSize int
}

// CacheStats tracks cache performance metrics
type CacheStats struct {
	Hits      int64         `json:"hits"`
	Misses    int64         `json:"misses"`
	Sets      int64         `json:"sets"`
	Deletes   int64         `json:"deletes"`
	Evictions int64         `json:"evictions"`
	Size      int           `json:"size"`
	TTL       time.Duration `json:"ttl"`
}

// ============================================
// OBSERVER PORT
// ============================================

// Observer receives outcome events for metrics. Results are short labels such
// as "ok", "invalid", "conflict" or "error".
type Observer interface {
	ObserveRegistration(result string)
	ObserveLogin(result string)
	ObserveSessionLookup(result string)
	ObservePasswordHash(d time.Duration)
}

// NopObserver discards every event.
type NopObserver struct{}

func (NopObserver) ObserveRegistration(string)        {}
func (NopObserver) ObserveLogin(string)               {}
func (NopObserver) ObserveSessionLookup(string)       {}
func (NopObserver) ObservePasswordHash(time.Duration) {}

// ============================================
// AUTH HANDLER (for HTTP adapters)
// ============================================

// AuthHandler provides authentication operations for HTTP adapters
type AuthHandler interface {
	Register(ctx context.Context, input RegisterInput) (*ProfileView, error)
	Login(ctx context.Context, input LoginInput, sessionID string) (*LoginResult, error)
	Logout(ctx context.Context, sessionID string) error
	Profile(ctx context.Context, accountID string) (*ProfileView, error)
	Authenticate(ctx context.Context, sessionID string) (*Identity, error)
	VerifySession(ctx context.Context, sessionID string) bool
}

// ============================================
// HTTP PORT
// ============================================

type HTTPAdapter interface {
	RegisterRoutes(handler AuthHandler, basePath string) error
}
