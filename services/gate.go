package services

import (
	"context"
	"errors"

	"github.com/lborres/warden/core"
)

// Gate turns a session identifier into an authenticated identity. It never
// creates sessions.
type Gate struct {
	sessions *SessionManager
}

func NewGate(sessions *SessionManager) *Gate {
	return &Gate{sessions: sessions}
}

// Authenticate fails with core.ErrUnauthorized when sessionID has no live
// session. Storage failures are returned as they are.
func (g *Gate) Authenticate(ctx context.Context, sessionID string) (*core.Identity, error) {
	session, err := g.sessions.Resolve(ctx, sessionID)
	if err != nil {
		if errors.Is(err, core.ErrSessionNotFound) || errors.Is(err, core.ErrSessionExpired) {
			return nil, core.ErrUnauthorized
		}
		return nil, err
	}

	return &core.Identity{AccountID: session.AccountID, SessionID: session.ID}, nil
}
