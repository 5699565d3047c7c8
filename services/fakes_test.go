package services

import (
	"context"
	"sync"
	"time"

	"github.com/lborres/warden/core"
)

// fakeSessionStorage is a map-backed core.SessionStorage with error fields
// for behavior injection. Unlike real stores it returns expired rows, so the
// manager's own expiry check is exercised.
type fakeSessionStorage struct {
	mu        sync.RWMutex
	sessions  map[string]*core.Session
	createErr error
	getErr    error
	deleteErr error
	purgeErr  error
	gets      int
}

func newFakeSessionStorage() *fakeSessionStorage {
	return &fakeSessionStorage{sessions: make(map[string]*core.Session)}
}

func (f *fakeSessionStorage) CreateSession(_ context.Context, s *core.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if _, ok := f.sessions[s.TokenHash]; ok {
		return core.ErrSessionExists
	}
	copied := *s
	f.sessions[s.TokenHash] = &copied
	return nil
}

func (f *fakeSessionStorage) GetSessionByHash(_ context.Context, tokenHash string) (*core.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if f.getErr != nil {
		return nil, f.getErr
	}
	s, ok := f.sessions[tokenHash]
	if !ok {
		return nil, core.ErrSessionNotFound
	}
	copied := *s
	return &copied, nil
}

func (f *fakeSessionStorage) DeleteSessionByHash(_ context.Context, tokenHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.sessions, tokenHash)
	return nil
}

func (f *fakeSessionStorage) DeleteExpiredSessions(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.purgeErr != nil {
		return 0, f.purgeErr
	}
	var n int64
	for k, s := range f.sessions {
		if s.IsExpiredAt(time.Now()) {
			delete(f.sessions, k)
			n++
		}
	}
	return n, nil
}

func (f *fakeSessionStorage) put(s *core.Session) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[s.TokenHash] = s
}

func (f *fakeSessionStorage) len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.sessions)
}

func (f *fakeSessionStorage) getCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.gets
}

// fakeAccountStorage is a map-backed core.AccountStorage. CreateAccount
// enforces email uniqueness like the real stores.
type fakeAccountStorage struct {
	mu        sync.RWMutex
	accounts  map[string]*core.Account
	profiles  map[string]*core.Profile
	lookupErr error
	createErr error
}

func newFakeAccountStorage() *fakeAccountStorage {
	return &fakeAccountStorage{
		accounts: make(map[string]*core.Account),
		profiles: make(map[string]*core.Profile),
	}
}

func (f *fakeAccountStorage) CreateAccount(_ context.Context, a *core.Account, p *core.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	for _, existing := range f.accounts {
		if existing.Email == a.Email {
			return core.ErrEmailTaken
		}
	}
	f.accounts[a.ID] = a
	f.profiles[p.OwnerID] = p
	return nil
}

func (f *fakeAccountStorage) GetAccountByID(_ context.Context, id string) (*core.Account, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if a, ok := f.accounts[id]; ok {
		return a, nil
	}
	return nil, core.ErrAccountNotFound
}

func (f *fakeAccountStorage) GetAccountByEmail(_ context.Context, email string) (*core.Account, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	for _, a := range f.accounts {
		if a.Email == email {
			return a, nil
		}
	}
	return nil, core.ErrAccountNotFound
}

func (f *fakeAccountStorage) GetProfileByOwner(_ context.Context, accountID string) (*core.Profile, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if p, ok := f.profiles[accountID]; ok {
		return p, nil
	}
	return nil, core.ErrProfileNotFound
}

func (f *fakeAccountStorage) count() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.accounts)
}

// fakeCache is a map-backed core.Cache.
type fakeCache struct {
	mu    sync.Mutex
	items map[string]*core.Session
}

func newFakeCache() *fakeCache {
	return &fakeCache{items: make(map[string]*core.Session)}
}

func (f *fakeCache) Get(tokenHash string) (*core.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.items[tokenHash]; ok {
		return s, nil
	}
	return nil, core.ErrCacheNotFound
}

func (f *fakeCache) Set(tokenHash string, s *core.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[tokenHash] = s
	return nil
}

func (f *fakeCache) Delete(tokenHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, tokenHash)
	return nil
}

func (f *fakeCache) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = make(map[string]*core.Session)
	return nil
}

func (f *fakeCache) has(tokenHash string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.items[tokenHash]
	return ok
}

// plainHasher stores passwords with a prefix so service tests stay fast.
type plainHasher struct {
	mu       sync.Mutex
	verifies int
}

func (h *plainHasher) Hash(password string) (string, error) {
	return "plain$" + password, nil
}

func (h *plainHasher) Verify(password, hash string) (bool, error) {
	h.mu.Lock()
	h.verifies++
	h.mu.Unlock()
	return hash == "plain$"+password, nil
}

func (h *plainHasher) verifyCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.verifies
}

// recordingObserver counts observed outcomes by "kind:result".
type recordingObserver struct {
	mu     sync.Mutex
	counts map[string]int
	hashes int
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{counts: make(map[string]int)}
}

func (o *recordingObserver) inc(key string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.counts[key]++
}

func (o *recordingObserver) ObserveRegistration(result string)  { o.inc("register:" + result) }
func (o *recordingObserver) ObserveLogin(result string)         { o.inc("login:" + result) }
func (o *recordingObserver) ObserveSessionLookup(result string) { o.inc("lookup:" + result) }

func (o *recordingObserver) ObservePasswordHash(time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.hashes++
}

func (o *recordingObserver) count(key string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.counts[key]
}

// fixedClock is a manually advanced clock.
type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
