package messpass

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/MrEthical07/messpass/guard"
	"github.com/MrEthical07/messpass/password"
)

// EnvPrefix prefixes every environment variable read by LoadConfig.
const EnvPrefix = "MESSPASS_"

// Config is the full App configuration. Start from DefaultConfig or
// LoadConfig; treat it as immutable once passed to a Builder.
type Config struct {
	Storage StorageConfig `envPrefix:"STORAGE_"`
	Session SessionConfig `envPrefix:"SESSION_"`
	Auth    AuthConfig    `envPrefix:"AUTH_"`
	Stores  StoresConfig  `envPrefix:"STORES_"`
	Network NetworkConfig `envPrefix:"NETWORK_"`
	Backend BackendConfig `envPrefix:"BACKEND_"`
	Routes  RoutesConfig  `envPrefix:"ROUTES_"`
	Audit   AuditConfig   `envPrefix:"AUDIT_"`
	Metrics MetricsConfig `envPrefix:"METRICS_"`
	Log     LogConfig     `envPrefix:"LOG_"`
}

/*
====================================
STORAGE CONFIG
====================================
*/

// StorageConfig selects the device-side key-value store.
type StorageConfig struct {
	// Backend is "memory" or "redis".
	Backend     string        `env:"BACKEND"`
	RedisAddr   string        `env:"REDIS_ADDR"`
	RedisPrefix string        `env:"REDIS_PREFIX"`
	TTL         time.Duration `env:"TTL"`
	// EncryptionKey, when set, encrypts every stored value. 32 bytes, hex or
	// base64.
	EncryptionKey string `env:"ENCRYPTION_KEY"`
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls session caching and the server-side session table.
type SessionConfig struct {
	CacheKey    string        `env:"CACHE_KEY"`
	UserKey     string        `env:"USER_KEY"`
	RedisPrefix string        `env:"REDIS_PREFIX"`
	TTL         time.Duration `env:"TTL"`
}

/*
====================================
AUTH CONFIG
====================================
*/

// AuthConfig configures the built-in provider. It is ignored when a
// provider is supplied through Builder.WithProvider.
type AuthConfig struct {
	AccessTTL     time.Duration `env:"ACCESS_TTL"`
	SigningMethod string        `env:"SIGNING_METHOD"`
	// SigningKey is the HS256 secret or the Ed25519 private key (PEM or
	// base64 raw bytes).
	SigningKey        string          `env:"SIGNING_KEY"`
	Issuer            string          `env:"ISSUER"`
	Audience          string          `env:"AUDIENCE"`
	Leeway            time.Duration   `env:"LEEWAY"`
	MaxSignInAttempts int             `env:"MAX_SIGNIN_ATTEMPTS"`
	SignInWindow      time.Duration   `env:"SIGNIN_WINDOW"`
	ThrottleByIP      bool            `env:"THROTTLE_BY_IP"`
	Password          password.Config `envPrefix:"PASSWORD_"`
}

/*
====================================
STORES / NETWORK / BACKEND
====================================
*/

// StoresConfig tunes domain store loading.
type StoresConfig struct {
	LoadTimeout time.Duration `env:"LOAD_TIMEOUT"`
	MealDays    int           `env:"MEAL_DAYS"`
}

// NetworkConfig throttles connectivity probes.
type NetworkConfig struct {
	ProbeInterval time.Duration `env:"PROBE_INTERVAL"`
	ProbeBurst    int           `env:"PROBE_BURST"`
}

// BackendConfig wraps the data API in a circuit breaker.
type BackendConfig struct {
	BreakerEnabled      bool          `env:"BREAKER_ENABLED"`
	MaxRequests         uint32        `env:"BREAKER_MAX_REQUESTS"`
	Interval            time.Duration `env:"BREAKER_INTERVAL"`
	Timeout             time.Duration `env:"BREAKER_TIMEOUT"`
	ConsecutiveFailures uint32        `env:"BREAKER_FAILURES"`
}

/*
====================================
ROUTES
====================================
*/

// RoutesConfig names the guard redirect targets.
type RoutesConfig struct {
	SignIn      string `env:"SIGNIN"`
	MemberHome  string `env:"MEMBER_HOME"`
	AdminHome   string `env:"ADMIN_HOME"`
	RegularHome string `env:"REGULAR_HOME"`
	Root        string `env:"ROOT"`
	Renewal     string `env:"RENEWAL"`
}

// Paths converts the routes to guard paths.
func (r RoutesConfig) Paths() guard.Paths {
	return guard.Paths{
		SignIn:      r.SignIn,
		MemberHome:  r.MemberHome,
		AdminHome:   r.AdminHome,
		RegularHome: r.RegularHome,
		Root:        r.Root,
		Renewal:     r.Renewal,
	}
}

/*
====================================
AUDIT / METRICS / LOG
====================================
*/

// AuditConfig controls the audit dispatcher.
type AuditConfig struct {
	Enabled    bool `env:"ENABLED"`
	BufferSize int  `env:"BUFFER_SIZE"`
	DropIfFull bool `env:"DROP_IF_FULL"`
}

// MetricsConfig controls in-process metrics.
type MetricsConfig struct {
	Enabled                 bool `env:"ENABLED"`
	EnableLatencyHistograms bool `env:"LATENCY_HISTOGRAMS"`
}

// LogConfig builds the default logger when none is injected.
type LogConfig struct {
	Level  string `env:"LEVEL"`
	Format string `env:"FORMAT"`
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the stock configuration. It has no signing key, so
// a key must be added before the built-in provider can be used.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	paths := guard.DefaultPaths()
	return Config{
		Storage: StorageConfig{
			Backend:     "memory",
			RedisAddr:   "127.0.0.1:6379",
			RedisPrefix: "mp:kv",
		},
		Session: SessionConfig{
			CacheKey:    "session",
			UserKey:     "user",
			RedisPrefix: "mp:sess",
			TTL:         30 * 24 * time.Hour,
		},
		Auth: AuthConfig{
			AccessTTL:         15 * time.Minute,
			SigningMethod:     "hs256",
			Issuer:            "messpass",
			Leeway:            30 * time.Second,
			MaxSignInAttempts: 5,
			SignInWindow:      15 * time.Minute,
			Password:          password.DefaultConfig(),
		},
		Stores: StoresConfig{
			LoadTimeout: 15 * time.Second,
			MealDays:    7,
		},
		Network: NetworkConfig{
			ProbeInterval: 5 * time.Second,
			ProbeBurst:    1,
		},
		Backend: BackendConfig{
			BreakerEnabled:      true,
			MaxRequests:         1,
			Interval:            30 * time.Second,
			Timeout:             10 * time.Second,
			ConsecutiveFailures: 3,
		},
		Routes: RoutesConfig{
			SignIn:      paths.SignIn,
			MemberHome:  paths.MemberHome,
			AdminHome:   paths.AdminHome,
			RegularHome: paths.RegularHome,
			Root:        paths.Root,
			Renewal:     paths.Renewal,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Config holds no reference types today; cloneConfig keeps the Builder
// honest if that changes.
func cloneConfig(cfg Config) Config {
	return cfg
}

/*
====================================
LOADING
====================================
*/

// LoadConfig reads the given dotenv files (".env" when none are named;
// missing files are skipped), then overlays MESSPASS_* environment
// variables on DefaultConfig and validates the result.
func LoadConfig(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("%w: %s: %v", ErrConfigInvalid, f, err)
		}
	}

	cfg := defaultConfig()
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrConfigInvalid, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks every section. Signing key presence is checked by the
// Builder, since an injected provider does not need one.
func (c *Config) Validate() error {
	var problems []string
	fail := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	switch c.Storage.Backend {
	case "memory":
	case "redis":
		if c.Storage.RedisPrefix == "" {
			fail("Storage RedisPrefix must be set for the redis backend")
		}
	default:
		fail("Storage Backend must be memory or redis, got %q", c.Storage.Backend)
	}
	if c.Storage.TTL < 0 {
		fail("Storage TTL must be >= 0")
	}

	if c.Session.CacheKey == "" || c.Session.UserKey == "" {
		fail("Session CacheKey and UserKey must be set")
	}
	if c.Session.CacheKey == c.Session.UserKey {
		fail("Session CacheKey and UserKey must differ")
	}
	if c.Session.TTL <= 0 {
		fail("Session TTL must be > 0")
	}

	if c.Auth.AccessTTL <= 0 {
		fail("Auth AccessTTL must be > 0")
	}
	if c.Auth.AccessTTL > c.Session.TTL {
		fail("Auth AccessTTL must not exceed Session TTL")
	}
	if c.Auth.SigningMethod != "hs256" && c.Auth.SigningMethod != "ed25519" {
		fail("Auth SigningMethod must be hs256 or ed25519")
	}
	if c.Auth.MaxSignInAttempts < 0 {
		fail("Auth MaxSignInAttempts must be >= 0")
	}
	if c.Auth.MaxSignInAttempts > 0 && c.Auth.SignInWindow <= 0 {
		fail("Auth SignInWindow must be > 0 when throttling is enabled")
	}
	if err := c.Auth.Password.Validate(); err != nil {
		fail("Auth %v", err)
	}

	if c.Stores.LoadTimeout < 0 {
		fail("Stores LoadTimeout must be >= 0")
	}
	if c.Stores.MealDays <= 0 || c.Stores.MealDays > 31 {
		fail("Stores MealDays must be between 1 and 31")
	}
	if c.Network.ProbeInterval < 0 || c.Network.ProbeBurst < 1 {
		fail("Network ProbeInterval must be >= 0 and ProbeBurst >= 1")
	}
	if c.Backend.BreakerEnabled && (c.Backend.ConsecutiveFailures == 0 || c.Backend.Timeout <= 0) {
		fail("Backend breaker needs ConsecutiveFailures > 0 and Timeout > 0")
	}

	r := c.Routes
	for name, p := range map[string]string{
		"SignIn": r.SignIn, "MemberHome": r.MemberHome, "AdminHome": r.AdminHome,
		"RegularHome": r.RegularHome, "Root": r.Root, "Renewal": r.Renewal,
	} {
		if !strings.HasPrefix(p, "/") {
			fail("Routes %s must be an absolute path, got %q", name, p)
		}
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		fail("Audit BufferSize must be > 0")
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		fail("Log Level: %v", err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		fail("Log Format must be text or json")
	}

	if len(problems) > 0 {
		slices.Sort(problems)
		return fmt.Errorf("%w: %s", ErrConfigInvalid, strings.Join(problems, "; "))
	}
	return nil
}
