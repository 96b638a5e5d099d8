package admin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/storefront-backend/internal/pkg/apperror"
	"github.com/your-org/storefront-backend/internal/pkg/auth"
	"github.com/your-org/storefront-backend/internal/pkg/logger"
	"github.com/your-org/storefront-backend/internal/testutil"
)

func newTestService(t *testing.T, allowSignup bool) *Service {
	t.Helper()
	db := testutil.NewDB(t, &Admin{})
	cfg := testutil.Config()
	cfg.Security.AllowAdminSignup = allowSignup
	return NewService(db, cfg, logger.Discard())
}

func TestSignupIsGated(t *testing.T) {
	svc := newTestService(t, false)

	_, err := svc.Signup(context.Background(), &SignupRequest{Email: "ops@example.com", Password: "s3cretpass", Name: "Ops"})
	assert.True(t, apperror.Is(err, apperror.KindForbidden))
}

func TestSignupAndLogin(t *testing.T) {
	svc := newTestService(t, true)
	ctx := context.Background()

	signed, err := svc.Signup(ctx, &SignupRequest{Email: " Ops@Example.com", Password: "s3cretpass", Name: "Ops"})
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", signed.Admin.Email)
	assert.Equal(t, string(auth.RoleAdmin), signed.Admin.Role)

	claims, err := auth.NewJWTManager(testutil.Config()).ValidateAccessToken(signed.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleAdmin, claims.Role)
	assert.Equal(t, signed.Admin.ID, claims.PrincipalID)

	_, err = svc.Signup(ctx, &SignupRequest{Email: "ops@example.com", Password: "s3cretpass", Name: "Ops"})
	assert.True(t, apperror.Is(err, apperror.KindConflict))

	logged, err := svc.Login(ctx, &LoginRequest{Email: "ops@example.com", Password: "s3cretpass"})
	require.NoError(t, err)
	assert.NotNil(t, logged.Admin.LastLoginAt)

	_, err = svc.Login(ctx, &LoginRequest{Email: "ops@example.com", Password: "wrongpass1"})
	assert.True(t, apperror.Is(err, apperror.KindUnauthorized))
}

func TestRefreshTokenRequiresAdminRole(t *testing.T) {
	svc := newTestService(t, true)
	ctx := context.Background()

	signed, err := svc.Signup(ctx, &SignupRequest{Email: "ops@example.com", Password: "s3cretpass", Name: "Ops"})
	require.NoError(t, err)

	refreshed, err := svc.RefreshToken(ctx, signed.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, signed.Admin.ID, refreshed.Admin.ID)

	userPair, err := auth.NewJWTManager(testutil.Config()).GenerateTokenPair(signed.Admin.ID, "ops@example.com", auth.RoleUser)
	require.NoError(t, err)
	_, err = svc.RefreshToken(ctx, userPair.RefreshToken)
	assert.True(t, apperror.Is(err, apperror.KindUnauthorized))
}
