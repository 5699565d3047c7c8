// Package redis stores sessions in Redis. Each session is one key whose TTL
// is the session's remaining lifetime, so Redis enforces expiry itself.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/lborres/warden/core"
)

const DefaultPrefix = "warden:session:"

type SessionStore struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

var _ core.SessionStorage = (*SessionStore)(nil)

// record is the stored form; core.Session hides these fields from JSON.
type record struct {
	ID        string     `json:"id"`
	AccountID string     `json:"account_id"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func NewSessionStore(client redis.UniversalClient, prefix string) *SessionStore {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &SessionStore{client: client, prefix: prefix, now: time.Now}
}

func (s *SessionStore) key(tokenHash string) string {
	return s.prefix + tokenHash
}

// CreateSession uses SET NX, so of two concurrent creates for one token hash
// exactly one succeeds and the other gets core.ErrSessionExists.
func (s *SessionStore) CreateSession(ctx context.Context, session *core.Session) error {
	var ttl time.Duration
	if session.ExpiresAt != nil {
		ttl = session.ExpiresAt.Sub(s.now())
		if ttl <= 0 {
			return nil
		}
	}

	payload, err := json.Marshal(record{
		ID:        session.ID,
		AccountID: session.AccountID,
		ExpiresAt: session.ExpiresAt,
		CreatedAt: session.CreatedAt,
	})
	if err != nil {
		return oops.Code("SESSION_ENCODE_FAILED").Wrap(err)
	}

	ok, err := s.client.SetNX(ctx, s.key(session.TokenHash), payload, ttl).Result()
	if err != nil {
		return oops.Code("SESSION_CREATE_FAILED").With("session_id", session.ID).Wrap(err)
	}
	if !ok {
		return core.ErrSessionExists
	}
	return nil
}

func (s *SessionStore) GetSessionByHash(ctx context.Context, tokenHash string) (*core.Session, error) {
	payload, err := s.client.Get(ctx, s.key(tokenHash)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, core.ErrSessionNotFound
		}
		return nil, oops.Code("SESSION_GET_FAILED").Wrap(err)
	}

	var rec record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, oops.Code("SESSION_DECODE_FAILED").Wrap(err)
	}

	session := &core.Session{
		ID:        rec.ID,
		AccountID: rec.AccountID,
		TokenHash: tokenHash,
		ExpiresAt: rec.ExpiresAt,
		CreatedAt: rec.CreatedAt,
	}
	if session.IsExpiredAt(s.now()) {
		return nil, core.ErrSessionNotFound
	}
	return session, nil
}

func (s *SessionStore) DeleteSessionByHash(ctx context.Context, tokenHash string) error {
	if err := s.client.Del(ctx, s.key(tokenHash)).Err(); err != nil {
		return oops.Code("SESSION_DELETE_FAILED").Wrap(err)
	}
	return nil
}

// DeleteExpiredSessions has nothing to do; keys expire on their own.
func (s *SessionStore) DeleteExpiredSessions(context.Context) (int64, error) {
	return 0, nil
}
