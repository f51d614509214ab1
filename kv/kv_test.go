package kv

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	v, ok, err := s.GetString(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, v)

	require.NoError(t, s.Set(ctx, "session", `{"id":"s1"}`))
	v, ok, err = s.GetString(ctx, "session")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"id":"s1"}`, v)

	require.NoError(t, s.Set(ctx, "session", "replaced"))
	v, _, err = s.GetString(ctx, "session")
	require.NoError(t, err)
	assert.Equal(t, "replaced", v)

	require.NoError(t, s.Delete(ctx, "session"))
	require.NoError(t, s.Delete(ctx, "session"))
	_, ok, err = s.GetString(ctx, "session")
	require.NoError(t, err)
	assert.False(t, ok)
}

func newRedisStore(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedis(rdb, "mp", 0), mr
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestRedisStore(t *testing.T) {
	s, mr := newRedisStore(t)
	exerciseStore(t, s)

	require.NoError(t, s.Set(context.Background(), "user", "u1"))
	assert.True(t, mr.Exists("mp:user"))
}

func TestRedisStoreUnavailable(t *testing.T) {
	s, mr := newRedisStore(t)
	mr.Close()

	_, _, err := s.GetString(context.Background(), "user")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func testKey() []byte {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	return key
}

func TestEncryptedStore(t *testing.T) {
	inner := NewMemory()
	enc, err := NewEncrypted(inner, testKey())
	require.NoError(t, err)
	exerciseStore(t, enc)

	ctx := context.Background()
	require.NoError(t, enc.Set(ctx, "session", "secret-token"))
	raw, ok, err := inner.GetString(ctx, "session")
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotContains(t, raw, "secret-token")
}

func TestEncryptedStoreRejectsMovedValue(t *testing.T) {
	inner := NewMemory()
	enc, err := NewEncrypted(inner, testKey())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, enc.Set(ctx, "session", "secret-token"))
	raw, _, _ := inner.GetString(ctx, "session")
	require.NoError(t, inner.Set(ctx, "user", raw))

	_, _, err = enc.GetString(ctx, "user")
	assert.ErrorIs(t, err, ErrTampered)
}

func TestNewEncryptedRejectsShortKey(t *testing.T) {
	_, err := NewEncrypted(NewMemory(), []byte("short"))
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestParseKey(t *testing.T) {
	hexKey := "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"
	k, err := ParseKey(hexKey)
	require.NoError(t, err)
	assert.Equal(t, testKey(), k)

	k, err = ParseKey("AAECAwQFBgcICQoLDA0ODxAREhMUFRYXGBkaGxwdHh8=")
	require.NoError(t, err)
	assert.Equal(t, testKey(), k)

	_, err = ParseKey("nope")
	assert.ErrorIs(t, err, ErrInvalidKey)
}
