package main

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/lborres/warden/adapters/memory"
	pgxadapter "github.com/lborres/warden/adapters/pgx"
	redisadapter "github.com/lborres/warden/adapters/redis"
	"github.com/lborres/warden/core"
	"github.com/lborres/warden/internal/config"
	"github.com/lborres/warden/pkg/crypto"
)

// stores holds the storage backends chosen by configuration.
type stores struct {
	accounts core.AccountStorage
	sessions core.SessionStorage
	closers  []func()
}

func (s *stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// openStores picks postgres when database.url is set and memory otherwise.
// redis.addr moves sessions to Redis regardless.
func openStores(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*stores, error) {
	s := &stores{}

	if cfg.Database.URL != "" {
		connectCtx, cancel := context.WithTimeout(ctx, cfg.Database.ConnectTimeout)
		defer cancel()

		pool, err := pgxadapter.Connect(connectCtx, cfg.Database.URL, cfg.Database.ConnectAttempts, logger)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, pool.Close)

		adapter := pgxadapter.New(pool)
		s.accounts = adapter
		s.sessions = adapter
	} else {
		logger.WarnContext(ctx, "no database configured, accounts and sessions live in memory")
		store := memory.New()
		s.accounts = store
		s.sessions = store
	}

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			s.Close()
			return nil, oops.Code("REDIS_CONNECT_FAILED").With("addr", cfg.Redis.Addr).Wrap(err)
		}
		s.closers = append(s.closers, func() { _ = client.Close() })
		s.sessions = redisadapter.NewSessionStore(client, cfg.Redis.Prefix)
	}

	return s, nil
}

func newHasher(cfg *config.Config) crypto.PasswordHandler {
	if cfg.Password.Algorithm == config.AlgorithmBcrypt {
		return crypto.NewBcrypt(cfg.Password.BcryptCost)
	}
	return crypto.NewArgon2()
}
