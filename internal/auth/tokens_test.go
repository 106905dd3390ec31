package auth

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/Togather-Foundation/eventhub/internal/config"
	"github.com/Togather-Foundation/eventhub/internal/domain/entities"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTokensConfig() config.TokensConfig {
	return config.TokensConfig{
		Secret:            "12345678901234567890123456789012",
		Issuer:            "eventhub",
		Audience:          "eventhub-api",
		AccessTTL:         15 * time.Minute,
		RefreshTTL:        24 * time.Hour,
		RefreshTokenBytes: 32,
	}
}

func newTestProvider(t *testing.T) *TokenProvider {
	t.Helper()
	p, err := NewTokenProvider(testTokensConfig())
	require.NoError(t, err)
	return p
}

func TestTokenProvider_CreateAndValidate(t *testing.T) {
	p := newTestProvider(t)
	fixed := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return fixed }

	user := &entities.User{ID: 7, Email: "ada@example.com", Role: entities.RoleAdmin}
	token, expires, err := p.CreateAccessToken(user)
	require.NoError(t, err)
	assert.Equal(t, fixed.Add(15*time.Minute), expires)

	claims, err := p.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", claims.Name)
	assert.Equal(t, "Admin", claims.Role)
	id, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
}

func TestTokenProvider_RejectsExpired(t *testing.T) {
	p := newTestProvider(t)
	issued := time.Now().Add(-time.Hour)
	p.now = func() time.Time { return issued }
	token, _, err := p.CreateAccessToken(&entities.User{ID: 1, Email: "a@b.c", Role: entities.RoleDefaultUser})
	require.NoError(t, err)

	p.now = time.Now
	_, err = p.Validate(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenProvider_RejectsForeignTokens(t *testing.T) {
	p := newTestProvider(t)

	otherCfg := testTokensConfig()
	otherCfg.Secret = "abcdefghijklmnopqrstuvwxyz0123456789"
	other, err := NewTokenProvider(otherCfg)
	require.NoError(t, err)
	foreign, _, err := other.CreateAccessToken(&entities.User{ID: 1, Email: "a@b.c"})
	require.NoError(t, err)
	_, err = p.Validate(foreign)
	require.ErrorIs(t, err, ErrInvalidToken, "signed with another key")

	audCfg := testTokensConfig()
	audCfg.Audience = "someone-else"
	wrongAud, err := NewTokenProvider(audCfg)
	require.NoError(t, err)
	token, _, err := wrongAud.CreateAccessToken(&entities.User{ID: 1, Email: "a@b.c"})
	require.NoError(t, err)
	_, err = p.Validate(token)
	require.ErrorIs(t, err, ErrInvalidToken, "wrong audience")

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "1"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = p.Validate(unsigned)
	require.ErrorIs(t, err, ErrInvalidToken, "alg none")

	_, err = p.Validate("  ")
	require.ErrorIs(t, err, ErrMissingToken)
}

func TestTokenProvider_CreateAccessTokenNeedsUser(t *testing.T) {
	p := newTestProvider(t)
	_, _, err := p.CreateAccessToken(nil)
	require.ErrorIs(t, err, ErrInvalidToken)
	_, _, err = p.CreateAccessToken(&entities.User{Email: "a@b.c"})
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenProvider_RefreshTokens(t *testing.T) {
	p := newTestProvider(t)
	a, err := p.CreateRefreshToken()
	require.NoError(t, err)
	b, err := p.CreateRefreshToken()
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	raw, err := base64.StdEncoding.DecodeString(a)
	require.NoError(t, err)
	assert.Len(t, raw, 32)
}

func TestNewTokenProvider_RequiresSecret(t *testing.T) {
	cfg := testTokensConfig()
	cfg.Secret = ""
	_, err := NewTokenProvider(cfg)
	require.ErrorIs(t, err, ErrInvalidMasterSecret)
}

func TestTokenFromHeader(t *testing.T) {
	_, err := TokenFromHeader("nope")
	require.ErrorIs(t, err, ErrMissingToken)

	token, err := TokenFromHeader("Bearer abc.def")
	require.NoError(t, err)
	assert.Equal(t, "abc.def", token)
}

func TestClaims_UserID(t *testing.T) {
	c := &Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "x"}}
	_, err := c.UserID()
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestRBAC(t *testing.T) {
	assert.True(t, IsAdmin("admin"))
	assert.True(t, IsAdmin("Admin"))
	assert.False(t, IsAdmin("DefaultUser"))
	assert.Equal(t, entities.RoleDefaultUser, NormalizeRole("unknown"))
	assert.True(t, HasRole("DefaultUser", entities.RoleDefaultUser, entities.RoleAdmin))
	assert.False(t, HasRole("Admin"))
}
