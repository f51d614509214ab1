package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("0123456789abcdef0123456789abcdef")

func TestCreateAndParseHS256(t *testing.T) {
	m, err := NewManager(Config{AccessTTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: secret, Issuer: "messpass", Audience: "app"})
	require.NoError(t, err)

	token, exp, err := m.CreateAccess("u1", "s1", "member")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Minute), exp, 2*time.Second)

	claims, err := m.ParseAccess(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UID)
	assert.Equal(t, "s1", claims.SID)
	assert.Equal(t, "member", claims.Role)
}

func TestCreateAndParseEd25519(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	signer, err := NewManager(Config{AccessTTL: time.Minute, SigningMethod: MethodEd25519, PrivateKey: priv})
	require.NoError(t, err)
	verifier, err := NewManager(Config{AccessTTL: time.Minute, SigningMethod: MethodEd25519, PublicKey: pub})
	require.NoError(t, err)

	token, _, err := signer.CreateAccess("u1", "s1", "admin")
	require.NoError(t, err)
	claims, err := verifier.ParseAccess(token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Role)

	_, _, err = verifier.CreateAccess("u1", "s1", "admin")
	assert.Error(t, err, "public-key-only manager cannot sign")
}

func TestParseRejectsExpired(t *testing.T) {
	m, err := NewManager(Config{AccessTTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: secret})
	require.NoError(t, err)
	m.now = func() time.Time { return time.Now().Add(-2 * time.Minute) }
	token, _, err := m.CreateAccess("u1", "s1", "")
	require.NoError(t, err)

	m.now = time.Now
	_, err = m.ParseAccess(token)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestParseRejectsWrongAlgorithm(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	m, err := NewManager(Config{AccessTTL: time.Minute, SigningMethod: MethodEd25519, PublicKey: pub})
	require.NoError(t, err)

	claims := Claims{UID: "u", SID: "s", RegisteredClaims: gjwt.RegisteredClaims{ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute))}}
	token, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString(secret)
	require.NoError(t, err)

	_, err = m.ParseAccess(token)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestParseRejectsWrongAudience(t *testing.T) {
	a, err := NewManager(Config{AccessTTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: secret, Audience: "app"})
	require.NoError(t, err)
	b, err := NewManager(Config{AccessTTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: secret, Audience: "admin"})
	require.NoError(t, err)

	token, _, err := a.CreateAccess("u", "s", "")
	require.NoError(t, err)
	_, err = b.ParseAccess(token)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestNewManagerValidation(t *testing.T) {
	_, err := NewManager(Config{SigningMethod: MethodHS256, PrivateKey: secret})
	assert.Error(t, err)
	_, err = NewManager(Config{AccessTTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: []byte("short")})
	assert.Error(t, err)
	_, err = NewManager(Config{AccessTTL: time.Minute, SigningMethod: MethodEd25519})
	assert.Error(t, err)
	_, err = NewManager(Config{AccessTTL: time.Minute, SigningMethod: "rs256"})
	assert.Error(t, err)
}
