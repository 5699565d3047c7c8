package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/lborres/warden/core"
	"github.com/lborres/warden/internal/logging"
	"github.com/lborres/warden/pkg/crypto"
)

// Session lookup outcomes reported to the observer.
const (
	LookupHit     = "cache_hit"
	LookupFound   = "found"
	LookupMissing = "missing"
	LookupExpired = "expired"
	LookupError   = "error"
)

type SessionManager struct {
	config   core.SessionConfig
	storage  core.SessionStorage
	cache    core.Cache // optional, nil disables caching
	observer core.Observer
	logger   *slog.Logger
	now      func() time.Time
}

type SessionOption func(*SessionManager)

func WithSessionObserver(o core.Observer) SessionOption {
	return func(sm *SessionManager) { sm.observer = o }
}

func WithSessionLogger(l *slog.Logger) SessionOption {
	return func(sm *SessionManager) { sm.logger = l }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) SessionOption {
	return func(sm *SessionManager) { sm.now = now }
}

func NewSessionManager(config core.SessionConfig, storage core.SessionStorage, cache core.Cache, opts ...SessionOption) *SessionManager {
	if config.MaxAge <= 0 {
		config.MaxAge = core.DefaultSessionMaxAge
	}
	sm := &SessionManager{
		config:   config,
		storage:  storage,
		cache:    cache,
		observer: core.NopObserver{},
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(sm)
	}
	return sm
}

func (sm *SessionManager) Config() core.SessionConfig {
	return sm.config
}

// Create binds sessionID to accountID. Without keepLoggedIn the session
// expires after MaxAge; with it the session has no absolute expiry.
func (sm *SessionManager) Create(ctx context.Context, sessionID, accountID string, keepLoggedIn bool) (*core.Session, error) {
	if sessionID == "" || accountID == "" {
		return nil, fmt.Errorf("session id and account id are required")
	}

	now := sm.now().UTC()
	session := &core.Session{
		ID:        ulid.Make().String(),
		AccountID: accountID,
		TokenHash: crypto.HashToken(sessionID),
		CreatedAt: now,
	}
	if !keepLoggedIn {
		expiresAt := now.Add(sm.config.MaxAge)
		session.ExpiresAt = &expiresAt
	}

	if err := sm.storage.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	if sm.cache != nil {
		_ = sm.cache.Set(session.TokenHash, session)
	}

	return session, nil
}

// Resolve returns the live session bound to sessionID. Unknown ids fail with
// ErrSessionNotFound and expired ones with ErrSessionExpired; an expired row
// is deleted on the way out.
func (sm *SessionManager) Resolve(ctx context.Context, sessionID string) (*core.Session, error) {
	if sessionID == "" {
		sm.observer.ObserveSessionLookup(LookupMissing)
		return nil, core.ErrSessionNotFound
	}

	tokenHash := crypto.HashToken(sessionID)
	now := sm.now()

	if sm.cache != nil {
		if session, err := sm.cache.Get(tokenHash); err == nil && !session.IsExpiredAt(now) {
			sm.observer.ObserveSessionLookup(LookupHit)
			return session, nil
		}
	}

	session, err := sm.storage.GetSessionByHash(ctx, tokenHash)
	switch {
	case errors.Is(err, core.ErrSessionNotFound):
		sm.observer.ObserveSessionLookup(LookupMissing)
		return nil, core.ErrSessionNotFound
	case err != nil:
		sm.observer.ObserveSessionLookup(LookupError)
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	if session.IsExpiredAt(now) {
		sm.observer.ObserveSessionLookup(LookupExpired)
		if err := sm.storage.DeleteSessionByHash(ctx, tokenHash); err != nil {
			logging.LogError(ctx, sm.logger, "failed to delete expired session", err)
		}
		if sm.cache != nil {
			_ = sm.cache.Delete(tokenHash)
		}
		return nil, core.ErrSessionExpired
	}

	sm.observer.ObserveSessionLookup(LookupFound)
	if sm.cache != nil {
		_ = sm.cache.Set(tokenHash, session)
	}

	return session, nil
}

// Destroy removes the session bound to sessionID. Destroying an unknown
// session is not an error.
func (sm *SessionManager) Destroy(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}

	tokenHash := crypto.HashToken(sessionID)

	// drop the cached copy first so a failed delete cannot leave it serving
	if sm.cache != nil {
		_ = sm.cache.Delete(tokenHash)
	}

	if err := sm.storage.DeleteSessionByHash(ctx, tokenHash); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	return nil
}

// PurgeExpired deletes every expired session from storage.
func (sm *SessionManager) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := sm.storage.DeleteExpiredSessions(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired sessions: %w", err)
	}
	return n, nil
}

// RunJanitor purges expired sessions every interval until ctx is done.
func (sm *SessionManager) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := sm.PurgeExpired(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logging.LogError(ctx, sm.logger, "session purge failed", err)
				continue
			}
			if n > 0 {
				sm.logger.InfoContext(ctx, "purged expired sessions", "count", n)
			}
		}
	}
}
