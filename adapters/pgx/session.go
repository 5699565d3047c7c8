package pgx

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/lborres/warden/core"
)

// CreateSession takes over a row for the same token hash only when that row
// has expired and is still waiting to be purged.
func (a *Adapter) CreateSession(ctx context.Context, s *core.Session) error {
	tag, err := a.db.Exec(ctx,
		`INSERT INTO sessions (id, token_hash, account_id, expires_at, created_at) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (token_hash) DO UPDATE SET
		   id = EXCLUDED.id,
		   account_id = EXCLUDED.account_id,
		   expires_at = EXCLUDED.expires_at,
		   created_at = EXCLUDED.created_at
		 WHERE sessions.expires_at IS NOT NULL AND sessions.expires_at <= now()`,
		s.ID, s.TokenHash, s.AccountID, s.ExpiresAt, s.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return core.ErrSessionExists
		}
		return oops.Code("SESSION_CREATE_FAILED").With("session_id", s.ID).Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrSessionExists
	}
	return nil
}

// GetSessionByHash ignores rows whose expiry has passed.
func (a *Adapter) GetSessionByHash(ctx context.Context, tokenHash string) (*core.Session, error) {
	s := &core.Session{}
	err := a.db.QueryRow(ctx,
		`SELECT id, token_hash, account_id, expires_at, created_at FROM sessions
		 WHERE token_hash = $1 AND (expires_at IS NULL OR expires_at > now())`,
		tokenHash,
	).Scan(&s.ID, &s.TokenHash, &s.AccountID, &s.ExpiresAt, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrSessionNotFound
		}
		return nil, oops.Code("SESSION_GET_FAILED").Wrap(err)
	}
	return s, nil
}

func (a *Adapter) DeleteSessionByHash(ctx context.Context, tokenHash string) error {
	if _, err := a.db.Exec(ctx, `DELETE FROM sessions WHERE token_hash = $1`, tokenHash); err != nil {
		return oops.Code("SESSION_DELETE_FAILED").Wrap(err)
	}
	return nil
}

func (a *Adapter) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	tag, err := a.db.Exec(ctx, `DELETE FROM sessions WHERE expires_at IS NOT NULL AND expires_at <= now()`)
	if err != nil {
		return 0, oops.Code("SESSION_PURGE_FAILED").Wrap(err)
	}
	return tag.RowsAffected(), nil
}
