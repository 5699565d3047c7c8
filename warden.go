package warden

import (
	"log/slog"
	"time"

	"github.com/lborres/warden/core"
	"github.com/lborres/warden/pkg/cache"
	"github.com/lborres/warden/pkg/crypto"
	"github.com/lborres/warden/services"
)

// interfaces
type (
	AccountStorage = core.AccountStorage
	SessionStorage = core.SessionStorage
	Cache          = core.Cache
	Observer       = core.Observer

	HTTPAdapter = core.HTTPAdapter
	AuthHandler = core.AuthHandler

	PasswordHandler = crypto.PasswordHandler
)

// structs
type (
	SessionConfig  = core.SessionConfig
	CacheConfig    = core.CacheConfig
	PasswordPolicy = core.PasswordPolicy
)

type (
	Account       = core.Account
	Profile       = core.Profile
	Session       = core.Session
	Identity      = core.Identity
	ProfileView   = core.ProfileView
	RegisterInput = core.RegisterInput
	LoginInput    = core.LoginInput
	LoginResult   = core.LoginResult
	CacheStats    = core.CacheStats
)

const defaultBasePath = "/auth"

// Constructors & helpers (convenience re-exports)
var (
	NewInMemoryCache      = cache.NewInMemoryCache
	NewArgon2             = crypto.NewArgon2
	NewBcrypt             = crypto.NewBcrypt
	DefaultSessionConfig  = core.DefaultSessionConfig
	DefaultPasswordPolicy = core.DefaultPasswordPolicy
)

var (
	ErrUnauthorized       = core.ErrUnauthorized
	ErrInvalidCredentials = core.ErrInvalidCredentials
	ErrEmailTaken         = core.ErrEmailTaken
	ErrValidationFailed   = core.ErrValidationFailed
)

var (
	ErrSessionNotFound = core.ErrSessionNotFound
	ErrSessionExpired  = core.ErrSessionExpired
	ErrSessionExists   = core.ErrSessionExists
)

var (
	ErrAccountStorageRequired = core.ErrAccountStorageRequired
	ErrSessionStorageRequired = core.ErrSessionStorageRequired
	ErrHTTPAdapterRequired    = core.ErrHTTPAdapterRequired
)

type Config struct {
	Accounts AccountStorage
	Sessions SessionStorage
	HTTP     HTTPAdapter

	// Cache defaults to an in-memory cache unless DisableCache is set.
	Cache        Cache
	DisableCache bool

	SessionConfig  *SessionConfig
	PasswordHasher PasswordHandler
	PasswordPolicy *PasswordPolicy

	// HashSlots caps concurrent hashing. Zero means GOMAXPROCS.
	HashSlots int

	Observer Observer
	Logger   *slog.Logger

	// BasePath defaults to "/auth".
	BasePath string
}

// Warden is a wired account subsystem whose routes are already registered
// on the configured HTTP adapter.
type Warden struct {
	Accounts *services.AccountService
	Sessions *services.SessionManager
	BasePath string
}

func New(config Config) (*Warden, error) {
	if config.Accounts == nil {
		return nil, ErrAccountStorageRequired
	}
	if config.Sessions == nil {
		return nil, ErrSessionStorageRequired
	}
	if config.HTTP == nil {
		return nil, ErrHTTPAdapterRequired
	}

	// Set Defaults

	cacheAdapter := config.Cache
	if cacheAdapter == nil && !config.DisableCache {
		cacheAdapter = NewInMemoryCache(CacheConfig{
			TTL:     5 * time.Minute,
			MaxSize: 500,
		})
	}
	if config.DisableCache {
		cacheAdapter = nil
	}

	sessionConfig := DefaultSessionConfig()
	if config.SessionConfig != nil {
		sessionConfig = *config.SessionConfig
	}

	policy := DefaultPasswordPolicy()
	if config.PasswordPolicy != nil {
		policy = *config.PasswordPolicy
	}

	passwordHasher := config.PasswordHasher
	if passwordHasher == nil {
		passwordHasher = crypto.NewArgon2()
	}

	observer := config.Observer
	if observer == nil {
		observer = core.NopObserver{}
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	basePath := config.BasePath
	if basePath == "" {
		basePath = defaultBasePath
	}

	sessionManager := services.NewSessionManager(
		sessionConfig,
		config.Sessions,
		cacheAdapter,
		services.WithSessionObserver(observer),
		services.WithSessionLogger(logger),
	)

	accounts := services.NewAccountService(
		config.Accounts,
		sessionManager,
		passwordHasher,
		services.WithPasswordPolicy(policy),
		services.WithHashSlots(config.HashSlots),
		services.WithObserver(observer),
		services.WithLogger(logger),
	)

	w := &Warden{
		Accounts: accounts,
		Sessions: sessionManager,
		BasePath: basePath,
	}

	if err := config.HTTP.RegisterRoutes(accounts, basePath); err != nil {
		return nil, err
	}

	return w, nil
}
