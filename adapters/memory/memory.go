// Package memory keeps accounts and sessions in process memory. It suits
// tests and single-instance development; nothing survives a restart.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/lborres/warden/core"
)

type Store struct {
	mu       sync.RWMutex
	accounts map[string]*core.Account // by id
	emails   map[string]string        // email -> account id
	profiles map[string]*core.Profile // by owner id
	sessions map[string]*core.Session // by token hash
	now      func() time.Time
}

var (
	_ core.AccountStorage = (*Store)(nil)
	_ core.SessionStorage = (*Store)(nil)
)

func New() *Store {
	return &Store{
		accounts: make(map[string]*core.Account),
		emails:   make(map[string]string),
		profiles: make(map[string]*core.Profile),
		sessions: make(map[string]*core.Session),
		now:      time.Now,
	}
}

// CreateAccount checks the email and inserts under one lock.
func (s *Store) CreateAccount(_ context.Context, account *core.Account, profile *core.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.emails[account.Email]; taken {
		return core.ErrEmailTaken
	}

	a := *account
	p := *profile
	s.accounts[a.ID] = &a
	s.emails[a.Email] = a.ID
	s.profiles[p.OwnerID] = &p
	return nil
}

func (s *Store) GetAccountByID(_ context.Context, id string) (*core.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[id]
	if !ok {
		return nil, core.ErrAccountNotFound
	}
	copied := *a
	return &copied, nil
}

func (s *Store) GetAccountByEmail(ctx context.Context, email string) (*core.Account, error) {
	s.mu.RLock()
	id, ok := s.emails[email]
	s.mu.RUnlock()
	if !ok {
		return nil, core.ErrAccountNotFound
	}
	return s.GetAccountByID(ctx, id)
}

func (s *Store) GetProfileByOwner(_ context.Context, accountID string) (*core.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[accountID]
	if !ok {
		return nil, core.ErrProfileNotFound
	}
	copied := *p
	return &copied, nil
}

func (s *Store) CreateSession(_ context.Context, session *core.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.sessions[session.TokenHash]; ok && !existing.IsExpiredAt(s.now()) {
		return core.ErrSessionExists
	}
	copied := *session
	s.sessions[session.TokenHash] = &copied
	return nil
}

func (s *Store) GetSessionByHash(_ context.Context, tokenHash string) (*core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[tokenHash]
	if !ok || session.IsExpiredAt(s.now()) {
		return nil, core.ErrSessionNotFound
	}
	copied := *session
	return &copied, nil
}

func (s *Store) DeleteSessionByHash(_ context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, tokenHash)
	return nil
}

func (s *Store) DeleteExpiredSessions(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var n int64
	for hash, session := range s.sessions {
		if session.IsExpiredAt(now) {
			delete(s.sessions, hash)
			n++
		}
	}
	return n, nil
}
