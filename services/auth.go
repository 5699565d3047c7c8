package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/lborres/warden/core"
	"github.com/lborres/warden/internal/logging"
	"github.com/lborres/warden/pkg/crypto"
)

// Outcome labels reported to the observer.
const (
	ResultOK       = "ok"
	ResultInvalid  = "invalid"
	ResultConflict = "conflict"
	ResultError    = "error"
)

// dummyPassword is hashed once and verified against when a login names an
// unknown account, so both paths spend the same hashing time.
const dummyPassword = "warden-timing-equalizer"

type AccountService struct {
	accounts  core.AccountStorage
	sessions  *SessionManager
	gate      *Gate
	hasher    *crypto.Limiter
	validator *core.Validator
	observer  core.Observer
	logger    *slog.Logger

	dummyOnce sync.Once
	dummyHash string
}

// Ensure AccountService implements AuthHandler
var _ core.AuthHandler = (*AccountService)(nil)

type AccountOption func(*accountOptions)

type accountOptions struct {
	policy    core.PasswordPolicy
	hashSlots int
	observer  core.Observer
	logger    *slog.Logger
}

func WithPasswordPolicy(p core.PasswordPolicy) AccountOption {
	return func(o *accountOptions) { o.policy = p }
}

// WithHashSlots caps concurrent password hashing. Zero means GOMAXPROCS.
func WithHashSlots(n int) AccountOption {
	return func(o *accountOptions) { o.hashSlots = n }
}

func WithObserver(obs core.Observer) AccountOption {
	return func(o *accountOptions) { o.observer = obs }
}

func WithLogger(l *slog.Logger) AccountOption {
	return func(o *accountOptions) { o.logger = l }
}

func NewAccountService(accounts core.AccountStorage, sessions *SessionManager, hasher crypto.PasswordHandler, opts ...AccountOption) *AccountService {
	o := accountOptions{
		policy:   core.DefaultPasswordPolicy(),
		observer: core.NopObserver{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &AccountService{
		accounts:  accounts,
		sessions:  sessions,
		gate:      NewGate(sessions),
		hasher:    crypto.NewLimiter(hasher, o.hashSlots),
		validator: &core.Validator{Policy: o.policy, Accounts: accounts},
		observer:  o.observer,
		logger:    o.logger,
	}
}

// Register validates input, then stores a new account and its profile.
// A lone email_taken violation is reported as core.ErrEmailTaken, anything
// else as a *core.ValidationError listing every violation.
func (s *AccountService) Register(ctx context.Context, input core.RegisterInput) (*core.ProfileView, error) {
	violations, err := s.validator.Validate(ctx, input)
	if err != nil {
		s.observer.ObserveRegistration(ResultError)
		return nil, err
	}
	if len(violations) == 1 && violations[0].Category == core.CategoryEmailTaken {
		s.observer.ObserveRegistration(ResultConflict)
		return nil, core.ErrEmailTaken
	}
	if len(violations) > 0 {
		s.observer.ObserveRegistration(ResultInvalid)
		return nil, &core.ValidationError{Violations: violations}
	}

	hash, err := s.hash(ctx, input.Password)
	if err != nil {
		s.observer.ObserveRegistration(ResultError)
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now().UTC()
	account := &core.Account{
		ID:           ulid.Make().String(),
		Email:        input.Email,
		PasswordHash: hash,
		CreatedAt:    now,
	}
	profile := &core.Profile{
		ID:          ulid.Make().String(),
		OwnerID:     account.ID,
		DisplayName: strings.TrimSpace(input.DisplayName),
		CreatedAt:   now,
	}

	// the store's unique constraint decides races the pre-check missed
	if err := s.accounts.CreateAccount(ctx, account, profile); err != nil {
		if errors.Is(err, core.ErrEmailTaken) {
			s.observer.ObserveRegistration(ResultConflict)
			return nil, core.ErrEmailTaken
		}
		s.observer.ObserveRegistration(ResultError)
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	s.observer.ObserveRegistration(ResultOK)
	s.logger.InfoContext(ctx, "account registered", "account_id", account.ID)

	return core.NewProfileView(account, profile), nil
}

// Login verifies credentials and binds a session to the account. The
// returned LoginResult.SessionID is the identifier the client must carry,
// which differs from sessionID when it was unusable or rotation is on.
// Repeating a login keeps the existing session unless KeepLoggedIn changes.
func (s *AccountService) Login(ctx context.Context, input core.LoginInput, sessionID string) (*core.LoginResult, error) {
	account, err := s.accounts.GetAccountByEmail(ctx, input.Email)
	if err != nil {
		if !errors.Is(err, core.ErrAccountNotFound) {
			s.observer.ObserveLogin(ResultError)
			return nil, fmt.Errorf("failed to find account: %w", err)
		}
		s.equalizeTiming(ctx, input.Password)
		s.observer.ObserveLogin(ResultInvalid)
		return nil, core.ErrInvalidCredentials
	}

	ok, err := s.hasher.Verify(ctx, input.Password, account.PasswordHash)
	if err != nil {
		s.observer.ObserveLogin(ResultError)
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}
	if !ok {
		s.observer.ObserveLogin(ResultInvalid)
		return nil, core.ErrInvalidCredentials
	}

	session, sessionID, err := s.bindSession(ctx, sessionID, account.ID, input.KeepLoggedIn)
	if err != nil {
		s.observer.ObserveLogin(ResultError)
		return nil, err
	}

	profile, err := s.accounts.GetProfileByOwner(ctx, account.ID)
	if err != nil {
		s.observer.ObserveLogin(ResultError)
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	s.observer.ObserveLogin(ResultOK)
	s.logger.InfoContext(ctx, "account logged in", "account_id", account.ID, "session", session.ID)

	return &core.LoginResult{
		Profile:   core.NewProfileView(account, profile),
		ExpiresAt: session.ExpiresAt,
		SessionID: sessionID,
	}, nil
}

// bindSession returns the session for accountID under sessionID. A live
// binding is reused when it belongs to the same account and has the requested
// expiry mode; otherwise it is replaced.
func (s *AccountService) bindSession(ctx context.Context, sessionID, accountID string, keepLoggedIn bool) (*core.Session, string, error) {
	rotate := s.sessions.Config().RotateOnLogin || !crypto.IsSessionID(sessionID)

	if rotate {
		if err := s.sessions.Destroy(ctx, sessionID); err != nil {
			return nil, "", err
		}
		sessionID = crypto.NewSessionID()
	} else {
		existing, err := s.sessions.Resolve(ctx, sessionID)
		switch {
		case err == nil && existing.AccountID == accountID && (existing.ExpiresAt == nil) == keepLoggedIn:
			return existing, sessionID, nil
		case err == nil:
			if err := s.sessions.Destroy(ctx, sessionID); err != nil {
				return nil, "", err
			}
		case errors.Is(err, core.ErrSessionNotFound), errors.Is(err, core.ErrSessionExpired):
		default:
			return nil, "", err
		}
	}

	session, err := s.sessions.Create(ctx, sessionID, accountID, keepLoggedIn)
	if errors.Is(err, core.ErrSessionExists) {
		// a concurrent login won the insert; accept it only for this account
		existing, rerr := s.sessions.Resolve(ctx, sessionID)
		if rerr == nil && existing.AccountID == accountID {
			return existing, sessionID, nil
		}
		return nil, "", core.ErrSessionExists
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to create session: %w", err)
	}

	return session, sessionID, nil
}

// Logout destroys the session. A session that does not exist is not an error.
func (s *AccountService) Logout(ctx context.Context, sessionID string) error {
	return s.sessions.Destroy(ctx, sessionID)
}

func (s *AccountService) Profile(ctx context.Context, accountID string) (*core.ProfileView, error) {
	account, err := s.accounts.GetAccountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, core.ErrAccountNotFound) {
			return nil, core.ErrUnauthorized
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	profile, err := s.accounts.GetProfileByOwner(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	return core.NewProfileView(account, profile), nil
}

func (s *AccountService) Authenticate(ctx context.Context, sessionID string) (*core.Identity, error) {
	return s.gate.Authenticate(ctx, sessionID)
}

// VerifySession reports whether sessionID has a live session. Storage
// failures are logged and reported as false.
func (s *AccountService) VerifySession(ctx context.Context, sessionID string) bool {
	_, err := s.sessions.Resolve(ctx, sessionID)
	if err == nil {
		return true
	}
	if !errors.Is(err, core.ErrSessionNotFound) && !errors.Is(err, core.ErrSessionExpired) {
		logging.LogError(ctx, s.logger, "session verification failed", err)
	}
	return false
}

func (s *AccountService) hash(ctx context.Context, password string) (string, error) {
	start := time.Now()
	defer func() { s.observer.ObservePasswordHash(time.Since(start)) }()

	return s.hasher.Hash(ctx, password)
}

func (s *AccountService) equalizeTiming(ctx context.Context, password string) {
	s.dummyOnce.Do(func() {
		hash, err := s.hash(context.WithoutCancel(ctx), dummyPassword)
		if err != nil {
			logging.LogError(ctx, s.logger, "failed to prepare dummy hash", err)
			return
		}
		s.dummyHash = hash
	})
	if s.dummyHash == "" {
		return
	}
	_, _ = s.hasher.Verify(ctx, password, s.dummyHash)
}
