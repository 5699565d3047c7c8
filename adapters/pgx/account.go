package pgx

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/lborres/warden/core"
)

const accountColumns = `id, email, password_hash, characters, campaigns, created_at`

// CreateAccount inserts the account and its profile in one transaction. The
// unique index on accounts.email turns a concurrent duplicate into
// core.ErrEmailTaken.
func (a *Adapter) CreateAccount(ctx context.Context, acc *core.Account, profile *core.Profile) error {
	tx, err := a.db.Begin(ctx)
	if err != nil {
		return oops.Code("ACCOUNT_CREATE_FAILED").With("operation", "begin").Wrap(err)
	}

	characters, campaigns := acc.Characters, acc.Campaigns
	if characters == nil {
		characters = []string{}
	}
	if campaigns == nil {
		campaigns = []string{}
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO accounts (`+accountColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		acc.ID, acc.Email, acc.PasswordHash, characters, campaigns, acc.CreatedAt)
	if err != nil {
		_ = tx.Rollback(ctx)
		if isUniqueViolation(err) {
			return core.ErrEmailTaken
		}
		return oops.Code("ACCOUNT_CREATE_FAILED").With("operation", "insert account").Wrap(err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO profiles (id, owner_id, display_name, created_at) VALUES ($1, $2, $3, $4)`,
		profile.ID, profile.OwnerID, profile.DisplayName, profile.CreatedAt)
	if err != nil {
		_ = tx.Rollback(ctx)
		return oops.Code("ACCOUNT_CREATE_FAILED").With("operation", "insert profile").Wrap(err)
	}

	if err := tx.Commit(ctx); err != nil {
		if isUniqueViolation(err) {
			return core.ErrEmailTaken
		}
		return oops.Code("ACCOUNT_CREATE_FAILED").With("operation", "commit").Wrap(err)
	}

	return nil
}

func (a *Adapter) GetAccountByID(ctx context.Context, id string) (*core.Account, error) {
	return a.getAccount(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
}

// GetAccountByEmail matches the address exactly as stored.
func (a *Adapter) GetAccountByEmail(ctx context.Context, email string) (*core.Account, error) {
	return a.getAccount(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = $1`, email)
}

func (a *Adapter) getAccount(ctx context.Context, query, arg string) (*core.Account, error) {
	acc := &core.Account{}
	err := a.db.QueryRow(ctx, query, arg).Scan(
		&acc.ID, &acc.Email, &acc.PasswordHash, &acc.Characters, &acc.Campaigns, &acc.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrAccountNotFound
		}
		return nil, oops.Code("ACCOUNT_GET_FAILED").Wrap(err)
	}
	return acc, nil
}

func (a *Adapter) GetProfileByOwner(ctx context.Context, accountID string) (*core.Profile, error) {
	p := &core.Profile{}
	err := a.db.QueryRow(ctx,
		`SELECT id, owner_id, display_name, created_at FROM profiles WHERE owner_id = $1`,
		accountID,
	).Scan(&p.ID, &p.OwnerID, &p.DisplayName, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrProfileNotFound
		}
		return nil, oops.Code("PROFILE_GET_FAILED").With("account_id", accountID).Wrap(err)
	}
	return p, nil
}
