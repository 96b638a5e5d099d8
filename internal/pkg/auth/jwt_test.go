package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/storefront-backend/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		JWT: config.JWTConfig{
			Secret:               "test-secret-that-is-at-least-32-characters",
			Issuer:               "storefront-test",
			AccessTokenExpiry:    15 * time.Minute,
			RefreshTokenExpiry:   time.Hour,
			RefreshTokenRotation: true,
		},
		Security: config.SecurityConfig{BcryptCost: 4},
	}
}

func TestGenerateTokenPair(t *testing.T) {
	m := NewJWTManager(testConfig())

	pair, err := m.GenerateTokenPair(42, "jane@example.com", RoleUser)
	require.NoError(t, err)
	assert.Equal(t, "Bearer", pair.TokenType)
	assert.Equal(t, int64(900), pair.ExpiresIn)

	claims, err := m.ValidateAccessToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.PrincipalID)
	assert.Equal(t, "jane@example.com", claims.Email)
	assert.Equal(t, RoleUser, claims.Role)
	assert.Equal(t, "user:42", claims.Subject)

	_, err = m.ValidateRefreshToken(pair.AccessToken)
	assert.Error(t, err, "access token must not pass as refresh token")

	_, err = m.ValidateAccessToken(pair.RefreshToken)
	assert.Error(t, err, "refresh token must not pass as access token")
}

func TestValidateTokenRejectsForeignTokens(t *testing.T) {
	m := NewJWTManager(testConfig())

	other := testConfig()
	other.JWT.Secret = "a-completely-different-secret-value-here"
	forged, err := NewJWTManager(other).GenerateAccessToken(1, "a@b.c", RoleAdmin)
	require.NoError(t, err)
	_, err = m.ValidateAccessToken(forged)
	assert.Error(t, err)

	other = testConfig()
	other.JWT.Issuer = "someone-else"
	foreign, err := NewJWTManager(other).GenerateAccessToken(1, "a@b.c", RoleAdmin)
	require.NoError(t, err)
	_, err = m.ValidateAccessToken(foreign)
	assert.Error(t, err)

	_, err = m.ValidateAccessToken("not-a-token")
	assert.Error(t, err)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	cfg := testConfig()
	cfg.JWT.AccessTokenExpiry = -time.Minute
	m := NewJWTManager(cfg)

	token, err := m.GenerateAccessToken(7, "late@example.com", RoleUser)
	require.NoError(t, err)

	_, err = m.ValidateAccessToken(token)
	assert.Error(t, err)
}

func TestRefresh(t *testing.T) {
	m := NewJWTManager(testConfig())
	pair, err := m.GenerateTokenPair(3, "admin@example.com", RoleAdmin)
	require.NoError(t, err)

	refreshed, err := m.Refresh(pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.RefreshToken)

	claims, err := m.ValidateAccessToken(refreshed.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, claims.Role)
	assert.Equal(t, uint(3), claims.PrincipalID)

	_, err = m.Refresh(pair.AccessToken)
	assert.Error(t, err)
}

func TestRefreshWithoutRotation(t *testing.T) {
	cfg := testConfig()
	cfg.JWT.RefreshTokenRotation = false
	m := NewJWTManager(cfg)

	pair, err := m.GenerateTokenPair(3, "jane@example.com", RoleUser)
	require.NoError(t, err)

	refreshed, err := m.Refresh(pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.AccessToken)
	assert.Empty(t, refreshed.RefreshToken)
}

func TestExtractTokenFromHeader(t *testing.T) {
	assert.Equal(t, "abc.def", ExtractTokenFromHeader("Bearer abc.def"))
	assert.Equal(t, "abc.def", ExtractTokenFromHeader("bearer abc.def"))
	assert.Empty(t, ExtractTokenFromHeader("Basic abc"))
	assert.Empty(t, ExtractTokenFromHeader("Bearer"))
	assert.Empty(t, ExtractTokenFromHeader(""))
}
