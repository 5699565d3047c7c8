// Package config loads warden settings from defaults, an optional YAML file,
// WARDEN_* environment variables and command-line flags, in that order.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/lborres/warden/core"
)

// EnvPrefix marks the environment variables read by Load. Levels are
// separated by a double underscore: WARDEN_HTTP__BASE_PATH sets
// http.base_path.
const EnvPrefix = "WARDEN_"

const (
	AlgorithmArgon2 = "argon2"
	AlgorithmBcrypt = "bcrypt"
)

type Config struct {
	HTTP     HTTPConfig     `koanf:"http"`
	Database DatabaseConfig `koanf:"database"`
	Redis    RedisConfig    `koanf:"redis"`
	Session  SessionConfig  `koanf:"session"`
	Password PasswordConfig `koanf:"password"`
	Log      LogConfig      `koanf:"log"`
	Metrics  MetricsConfig  `koanf:"metrics"`
}

type HTTPConfig struct {
	Addr           string   `koanf:"addr"`
	BasePath       string   `koanf:"base_path"`
	AllowedOrigins []string `koanf:"allowed_origins"`
	CookieName     string   `koanf:"cookie_name"`
	CookieSecure   bool     `koanf:"cookie_secure"`
}

type DatabaseConfig struct {
	// URL selects the postgres store. Empty keeps everything in memory.
	URL             string        `koanf:"url"`
	ConnectTimeout  time.Duration `koanf:"connect_timeout"`
	ConnectAttempts uint64        `koanf:"connect_attempts"`
}

type RedisConfig struct {
	// Addr moves session storage to Redis when set.
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
	Prefix   string `koanf:"prefix"`
}

type SessionConfig struct {
	MaxAge        time.Duration `koanf:"max_age"`
	RotateOnLogin bool          `koanf:"rotate_on_login"`
	CacheTTL      time.Duration `koanf:"cache_ttl"`
	CacheSize     int           `koanf:"cache_size"`
	PurgeInterval time.Duration `koanf:"purge_interval"`
}

type PasswordConfig struct {
	Algorithm        string `koanf:"algorithm"`
	BcryptCost       int    `koanf:"bcrypt_cost"`
	HashSlots        int    `koanf:"hash_slots"`
	MinLength        int    `koanf:"min_length"`
	MaxLength        int    `koanf:"max_length"`
	RequireMixedCase bool   `koanf:"require_mixed_case"`
	RequireDigit     bool   `koanf:"require_digit"`
	RequireSymbol    bool   `koanf:"require_symbol"`
}

type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

func defaults() map[string]any {
	policy := core.DefaultPasswordPolicy()
	return map[string]any{
		"http.addr":                   ":8080",
		"http.base_path":              "/auth",
		"http.allowed_origins":        []string{},
		"http.cookie_name":            "session_id",
		"http.cookie_secure":          true,
		"database.url":                "",
		"database.connect_timeout":    "30s",
		"database.connect_attempts":   5,
		"redis.addr":                  "",
		"redis.password":              "",
		"redis.db":                    0,
		"redis.prefix":                "warden:session:",
		"session.max_age":             core.DefaultSessionMaxAge.String(),
		"session.rotate_on_login":     false,
		"session.cache_ttl":           "5m",
		"session.cache_size":          500,
		"session.purge_interval":      "10m",
		"password.algorithm":          AlgorithmArgon2,
		"password.bcrypt_cost":        12,
		"password.hash_slots":         0,
		"password.min_length":         policy.MinLength,
		"password.max_length":         policy.MaxLength,
		"password.require_mixed_case": policy.RequireMixedCase,
		"password.require_digit":      policy.RequireDigit,
		"password.require_symbol":     policy.RequireSymbol,
		"log.format":                  "json",
		"log.level":                   "info",
		"metrics.enabled":             true,
		"metrics.path":                "/metrics",
	}
}

// flagKeys maps command-line flags onto config keys. Flags not listed here
// are not configuration.
var flagKeys = map[string]string{
	"addr":         "http.addr",
	"base-path":    "http.base_path",
	"database-url": "database.url",
	"redis-addr":   "redis.addr",
	"log-format":   "log.format",
	"log-level":    "log.level",
}

// Load builds the configuration. path may be empty; flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").Wrapf(err, "load defaults")
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrapf(err, "load config file")
		}
	}

	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").Wrapf(err, "load environment")
	}

	if flags != nil {
		p := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		})
		if err := k.Load(p, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").Wrapf(err, "load flags")
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrapf(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func envKey(key, value string) (string, any) {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	key = strings.ReplaceAll(key, "__", ".")
	if key == "http.allowed_origins" {
		return key, splitList(value)
	}
	return key, value
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if c.HTTP.Addr == "" {
		errs = append(errs, errors.New("http.addr is required"))
	}
	if !strings.HasPrefix(c.HTTP.BasePath, "/") {
		errs = append(errs, fmt.Errorf("http.base_path %q must start with /", c.HTTP.BasePath))
	}
	if c.HTTP.CookieName == "" {
		errs = append(errs, errors.New("http.cookie_name is required"))
	}
	for _, origin := range c.HTTP.AllowedOrigins {
		// credentialed requests cannot use a wildcard origin
		if origin == "*" {
			errs = append(errs, errors.New("http.allowed_origins must list explicit origins, not *"))
		}
	}
	if c.Database.URL != "" && c.Database.ConnectTimeout <= 0 {
		errs = append(errs, errors.New("database.connect_timeout must be positive"))
	}
	if c.Session.MaxAge <= 0 {
		errs = append(errs, errors.New("session.max_age must be positive"))
	}
	if c.Session.CacheTTL < 0 || c.Session.CacheSize < 0 {
		errs = append(errs, errors.New("session cache settings must not be negative"))
	}
	switch c.Password.Algorithm {
	case AlgorithmArgon2:
	case AlgorithmBcrypt:
		if c.Password.BcryptCost < 4 || c.Password.BcryptCost > 31 {
			errs = append(errs, fmt.Errorf("password.bcrypt_cost %d out of range 4-31", c.Password.BcryptCost))
		}
	default:
		errs = append(errs, fmt.Errorf("password.algorithm %q is not argon2 or bcrypt", c.Password.Algorithm))
	}
	if c.Password.MinLength < 1 {
		errs = append(errs, errors.New("password.min_length must be at least 1"))
	}
	if c.Password.MaxLength > 0 && c.Password.MaxLength < c.Password.MinLength {
		errs = append(errs, errors.New("password.max_length must not be below password.min_length"))
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not json or text", c.Log.Format))
	}

	if len(errs) > 0 {
		return oops.Code("CONFIG_INVALID").Wrap(errors.Join(errs...))
	}
	return nil
}

// SessionSettings returns the session settings the services consume.
func (c *Config) SessionSettings() core.SessionConfig {
	return core.SessionConfig{
		MaxAge:        c.Session.MaxAge,
		RotateOnLogin: c.Session.RotateOnLogin,
	}
}

func (c *Config) CacheSettings() core.CacheConfig {
	return core.CacheConfig{
		TTL:     c.Session.CacheTTL,
		MaxSize: c.Session.CacheSize,
	}
}

func (c *Config) PasswordPolicy() core.PasswordPolicy {
	return core.PasswordPolicy{
		MinLength:        c.Password.MinLength,
		MaxLength:        c.Password.MaxLength,
		RequireMixedCase: c.Password.RequireMixedCase,
		RequireDigit:     c.Password.RequireDigit,
		RequireSymbol:    c.Password.RequireSymbol,
	}
}
