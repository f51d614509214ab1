package messpass

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "/signin", cfg.Routes.SignIn)
	assert.Equal(t, "memory", cfg.Storage.Backend)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name:      "redis backend valid",
			mutate:    func(c *Config) { c.Storage.Backend = "redis" },
			wantValid: true,
		},
		{
			name:      "storage backend unknown",
			mutate:    func(c *Config) { c.Storage.Backend = "sqlite" },
			wantValid: false,
		},
		{
			name:      "session keys collide",
			mutate:    func(c *Config) { c.Session.UserKey = c.Session.CacheKey },
			wantValid: false,
		},
		{
			name:      "access outlives session",
			mutate:    func(c *Config) { c.Auth.AccessTTL = c.Session.TTL + time.Hour },
			wantValid: false,
		},
		{
			name:      "ed25519 signing valid",
			mutate:    func(c *Config) { c.Auth.SigningMethod = "ed25519" },
			wantValid: true,
		},
		{
			name:      "rs256 signing invalid",
			mutate:    func(c *Config) { c.Auth.SigningMethod = "rs256" },
			wantValid: false,
		},
		{
			name: "throttle without window",
			mutate: func(c *Config) {
				c.Auth.MaxSignInAttempts = 3
				c.Auth.SignInWindow = 0
			},
			wantValid: false,
		},
		{
			name: "throttle disabled without window",
			mutate: func(c *Config) {
				c.Auth.MaxSignInAttempts = 0
				c.Auth.SignInWindow = 0
			},
			wantValid: true,
		},
		{
			name:      "weak argon2 memory",
			mutate:    func(c *Config) { c.Auth.Password.Memory = 1 },
			wantValid: false,
		},
		{
			name:      "meal window too long",
			mutate:    func(c *Config) { c.Stores.MealDays = 60 },
			wantValid: false,
		},
		{
			name:      "probe burst zero",
			mutate:    func(c *Config) { c.Network.ProbeBurst = 0 },
			wantValid: false,
		},
		{
			name:      "breaker without threshold",
			mutate:    func(c *Config) { c.Backend.ConsecutiveFailures = 0 },
			wantValid: false,
		},
		{
			name: "breaker disabled ignores threshold",
			mutate: func(c *Config) {
				c.Backend.BreakerEnabled = false
				c.Backend.ConsecutiveFailures = 0
			},
			wantValid: true,
		},
		{
			name:      "relative route",
			mutate:    func(c *Config) { c.Routes.Renewal = "renewal" },
			wantValid: false,
		},
		{
			name: "audit enabled without buffer",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.BufferSize = 0
			},
			wantValid: false,
		},
		{
			name:      "log level unknown",
			mutate:    func(c *Config) { c.Log.Level = "chatty" },
			wantValid: false,
		},
		{
			name:      "log format json",
			mutate:    func(c *Config) { c.Log.Format = "json" },
			wantValid: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantValid {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrConfigInvalid)
		})
	}
}

func TestConfigValidateReportsEveryProblem(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage.Backend = "sqlite"
	cfg.Log.Format = "xml"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Storage Backend")
	assert.Contains(t, err.Error(), "Log Format")
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("MESSPASS_STORAGE_BACKEND", "redis")
	t.Setenv("MESSPASS_AUTH_ACCESS_TTL", "5m")
	t.Setenv("MESSPASS_AUTH_PASSWORD_TIME", "4")
	t.Setenv("MESSPASS_ROUTES_SIGNIN", "/login")
	t.Setenv("MESSPASS_AUDIT_ENABLED", "true")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "redis", cfg.Storage.Backend)
	assert.Equal(t, 5*time.Minute, cfg.Auth.AccessTTL)
	assert.Equal(t, uint32(4), cfg.Auth.Password.Time)
	assert.Equal(t, "/login", cfg.Routes.SignIn)
	assert.True(t, cfg.Audit.Enabled)
	assert.Equal(t, 7, cfg.Stores.MealDays, "unset variables keep defaults")
}

func TestLoadConfigFromDotenv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("MESSPASS_STORES_MEAL_DAYS=14\nMESSPASS_LOG_FORMAT=json\n"), 0o600))
	t.Cleanup(func() {
		_ = os.Unsetenv("MESSPASS_STORES_MEAL_DAYS")
		_ = os.Unsetenv("MESSPASS_LOG_FORMAT")
	})

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 14, cfg.Stores.MealDays)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	t.Setenv("MESSPASS_LOG_LEVEL", "chatty")

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	assert.True(t, errors.Is(err, ErrConfigInvalid))
}
