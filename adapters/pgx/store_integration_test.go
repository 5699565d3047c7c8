//go:build integration

package pgx_test

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/lborres/warden/adapters/pgx"
	"github.com/lborres/warden/core"
	"github.com/lborres/warden/internal/store"
)

func startPostgres(ctx context.Context) (*pgxpool.Pool, func()) {
	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("warden_test"),
		postgres.WithUsername("warden"),
		postgres.WithPassword("warden"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	Expect(err).NotTo(HaveOccurred())

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	Expect(err).NotTo(HaveOccurred())

	migrator, err := store.NewMigrator(url)
	Expect(err).NotTo(HaveOccurred())
	Expect(migrator.Up()).To(Succeed())
	Expect(migrator.Close()).To(Succeed())

	pool, err := pgx.Connect(ctx, url, 3, nil)
	Expect(err).NotTo(HaveOccurred())

	return pool, func() {
		pool.Close()
		_ = container.Terminate(ctx)
	}
}

func newAccount(email string) (*core.Account, *core.Profile) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	acc := &core.Account{ID: ulid.Make().String(), Email: email, PasswordHash: "hash", CreatedAt: now}
	return acc, &core.Profile{ID: ulid.Make().String(), OwnerID: acc.ID, DisplayName: "Ann", CreatedAt: now}
}

var _ = Describe("Adapter", Ordered, func() {
	var (
		ctx     context.Context
		adapter *pgx.Adapter
		cleanup func()
	)

	BeforeAll(func() {
		ctx = context.Background()
		var pool *pgxpool.Pool
		pool, cleanup = startPostgres(ctx)
		adapter = pgx.New(pool)
	})

	AfterAll(func() {
		cleanup()
	})

	Describe("accounts", func() {
		It("stores the account with its profile", func() {
			acc, profile := newAccount("ann@x.com")
			Expect(adapter.CreateAccount(ctx, acc, profile)).To(Succeed())

			got, err := adapter.GetAccountByEmail(ctx, "ann@x.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ID).To(Equal(acc.ID))
			Expect(got.Characters).To(BeEmpty())

			p, err := adapter.GetProfileByOwner(ctx, acc.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(p.DisplayName).To(Equal("Ann"))
		})

		It("treats email case as significant", func() {
			_, err := adapter.GetAccountByEmail(ctx, "ANN@x.com")
			Expect(err).To(MatchError(core.ErrAccountNotFound))
		})

		It("admits exactly one of many concurrent registrations", func() {
			var (
				wg        sync.WaitGroup
				mu        sync.Mutex
				successes int
				conflicts int
			)
			for i := 0; i < 10; i++ {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					acc, profile := newAccount("race@x.com")
					err := adapter.CreateAccount(ctx, acc, profile)
					mu.Lock()
					defer mu.Unlock()
					if err == nil {
						successes++
					} else {
						Expect(err).To(MatchError(core.ErrEmailTaken))
						conflicts++
					}
				}()
			}
			wg.Wait()

			Expect(successes).To(Equal(1))
			Expect(conflicts).To(Equal(9))
		})
	})

	Describe("sessions", func() {
		var account *core.Account

		BeforeAll(func() {
			var profile *core.Profile
			account, profile = newAccount("sessions@x.com")
			Expect(adapter.CreateAccount(ctx, account, profile)).To(Succeed())
		})

		It("rejects a second session for the same token hash", func() {
			s := &core.Session{ID: ulid.Make().String(), TokenHash: "dup", AccountID: account.ID, CreatedAt: time.Now()}
			Expect(adapter.CreateSession(ctx, s)).To(Succeed())

			again := &core.Session{ID: ulid.Make().String(), TokenHash: "dup", AccountID: account.ID, CreatedAt: time.Now()}
			Expect(adapter.CreateSession(ctx, again)).To(MatchError(core.ErrSessionExists))
		})

		It("hides expired sessions and purges them", func() {
			past := time.Now().Add(-time.Minute)
			expired := &core.Session{ID: ulid.Make().String(), TokenHash: "old", AccountID: account.ID, ExpiresAt: &past, CreatedAt: time.Now()}
			Expect(adapter.CreateSession(ctx, expired)).To(Succeed())

			_, err := adapter.GetSessionByHash(ctx, "old")
			Expect(err).To(MatchError(core.ErrSessionNotFound))

			n, err := adapter.DeleteExpiredSessions(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(BeNumerically(">=", 1))
		})

		It("reuses the token hash of an expired row that was never purged", func() {
			past := time.Now().Add(-time.Minute)
			stale := &core.Session{ID: ulid.Make().String(), TokenHash: "stale", AccountID: account.ID, ExpiresAt: &past, CreatedAt: time.Now()}
			Expect(adapter.CreateSession(ctx, stale)).To(Succeed())

			future := time.Now().Add(time.Hour).UTC().Truncate(time.Microsecond)
			fresh := &core.Session{ID: ulid.Make().String(), TokenHash: "stale", AccountID: account.ID, ExpiresAt: &future, CreatedAt: time.Now()}
			Expect(adapter.CreateSession(ctx, fresh)).To(Succeed())

			got, err := adapter.GetSessionByHash(ctx, "stale")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ID).To(Equal(fresh.ID))
			Expect(got.ExpiresAt).NotTo(BeNil())
			Expect(got.ExpiresAt.Equal(future)).To(BeTrue())

			again := &core.Session{ID: ulid.Make().String(), TokenHash: "stale", AccountID: account.ID, CreatedAt: time.Now()}
			Expect(adapter.CreateSession(ctx, again)).To(MatchError(core.ErrSessionExists))
		})

		It("deletes idempotently", func() {
			Expect(adapter.DeleteSessionByHash(ctx, "dup")).To(Succeed())
			Expect(adapter.DeleteSessionByHash(ctx, "dup")).To(Succeed())

			_, err := adapter.GetSessionByHash(ctx, "dup")
			Expect(err).To(MatchError(core.ErrSessionNotFound))
		})
	})
})
