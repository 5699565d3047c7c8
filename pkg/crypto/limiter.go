package crypto

import (
	"context"
	"runtime"

	"golang.org/x/sync/semaphore"
)

// Limiter bounds how many CPU-bound hash operations run at once. Callers
// waiting for a slot give up when their context is done.
type Limiter struct {
	hasher PasswordHandler
	sem    *semaphore.Weighted
}

// NewLimiter wraps hasher with at most slots concurrent operations.
// slots <= 0 means runtime.GOMAXPROCS(0).
func NewLimiter(hasher PasswordHandler, slots int) *Limiter {
	if slots <= 0 {
		slots = runtime.GOMAXPROCS(0)
	}
	return &Limiter{
		hasher: hasher,
		sem:    semaphore.NewWeighted(int64(slots)),
	}
}

func (l *Limiter) Hash(ctx context.Context, password string) (string, error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer l.sem.Release(1)

	return l.hasher.Hash(password)
}

func (l *Limiter) Verify(ctx context.Context, password, hash string) (bool, error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return false, err
	}
	defer l.sem.Release(1)

	return l.hasher.Verify(password, hash)
}
