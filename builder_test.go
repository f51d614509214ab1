package messpass

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/messpass/backend"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestBuilderRequiresBackend(t *testing.T) {
	_, err := New().WithConfig(testConfig()).WithRedis(newTestRedis(t)).Build()
	assert.ErrorIs(t, err, ErrBackendRequired)
}

func TestBuilderBuildsOnce(t *testing.T) {
	b := New().WithConfig(testConfig()).WithRedis(newTestRedis(t)).WithBackend(backend.NewMemory())
	app, err := b.Build()
	require.NoError(t, err)
	t.Cleanup(app.Close)

	_, err = b.Build()
	assert.ErrorIs(t, err, ErrBuilderUsed)
}

func TestBuilderBuiltinProviderNeedsRedisAndKey(t *testing.T) {
	_, err := New().WithConfig(testConfig()).WithBackend(backend.NewMemory()).Build()
	assert.ErrorIs(t, err, ErrRedisRequired)

	cfg := testConfig()
	cfg.Auth.SigningKey = ""
	_, err = New().WithConfig(cfg).WithRedis(newTestRedis(t)).WithBackend(backend.NewMemory()).Build()
	assert.ErrorIs(t, err, ErrSigningKeyRequired)
}

func TestBuilderShortSecretIsInvalid(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.SigningKey = "short"
	_, err := New().WithConfig(cfg).WithRedis(newTestRedis(t)).WithBackend(backend.NewMemory()).Build()
	assert.ErrorIs(t, err, ErrConfigInvalid)
}

func TestBuilderRedisStorageNeedsClient(t *testing.T) {
	cfg := testConfig()
	cfg.Storage.Backend = "redis"
	_, err := New().WithConfig(cfg).WithBackend(backend.NewMemory()).Build()
	assert.ErrorIs(t, err, ErrRedisRequired)
}

func TestBuilderRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Routes.SignIn = "signin"
	_, err := New().WithConfig(cfg).WithRedis(newTestRedis(t)).WithBackend(backend.NewMemory()).Build()
	assert.ErrorIs(t, err, ErrConfigInvalid)
}

func TestBuilderEncryptionKey(t *testing.T) {
	cfg := testConfig()
	cfg.Storage.EncryptionKey = "not-a-key"
	_, err := New().WithConfig(cfg).WithRedis(newTestRedis(t)).WithBackend(backend.NewMemory()).Build()
	assert.ErrorIs(t, err, ErrConfigInvalid)

	cfg.Storage.EncryptionKey = strings.Repeat("ab", 32)
	app, err := New().WithConfig(cfg).WithRedis(newTestRedis(t)).WithBackend(backend.NewMemory()).Build()
	require.NoError(t, err)
	app.Close()
}

func TestBuilderEd25519Key(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	cfg := testConfig()
	cfg.Auth.SigningMethod = "ed25519"
	cfg.Auth.SigningKey = base64.StdEncoding.EncodeToString(priv)
	app, err := New().WithConfig(cfg).WithRedis(newTestRedis(t)).WithBackend(backend.NewMemory()).Build()
	require.NoError(t, err)
	app.Close()

	cfg.Auth.SigningKey = "%%%"
	_, err = New().WithConfig(cfg).WithRedis(newTestRedis(t)).WithBackend(backend.NewMemory()).Build()
	assert.ErrorIs(t, err, ErrConfigInvalid)
}

func TestBuilderMetricsToggle(t *testing.T) {
	app, err := New().
		WithConfig(testConfig()).
		WithMetricsEnabled(false).
		WithRedis(newTestRedis(t)).
		WithBackend(backend.NewMemory()).
		Build()
	require.NoError(t, err)
	t.Cleanup(app.Close)

	app.Decide(MemberOnly())
	assert.Empty(t, app.MetricsSnapshot().Counters)
	assert.False(t, app.Config().Metrics.Enabled)
}
