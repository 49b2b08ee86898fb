package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmokoena/escrow-backend/internal/auth"
	"github.com/tmokoena/escrow-backend/internal/models"
	"github.com/tmokoena/escrow-backend/internal/repository/memory"
	"github.com/tmokoena/escrow-backend/internal/services"
)

func newUserService(t *testing.T) *services.UserService {
	t.Helper()
	repos, _ := memory.NewRepositories()
	tm := auth.NewTokenManager("a", "r", "escrow-test", 15*time.Minute, 24*time.Hour)
	return services.NewUserService(repos.Users, tm)
}

func TestRegister(t *testing.T) {
	us := newUserService(t)
	ctx := context.Background()

	u, err := us.Register(ctx, "  Alice  ", "ALICE@Example.com", "password1")
	require.NoError(t, err)
	assert.Equal(t, "Alice", u.DisplayName)
	assert.Equal(t, "alice@example.com", u.Email)
	assert.True(t, u.HasRole(models.AppRoleBuyer))
	assert.NotEqual(t, "password1", u.PasswordHash)

	t.Run("duplicate email", func(t *testing.T) {
		_, err := us.Register(ctx, "Alice Two", "alice@example.com", "password1")
		var verrs models.ValidationErrors
		require.ErrorAs(t, err, &verrs)
	})

	t.Run("short password", func(t *testing.T) {
		_, err := us.Register(ctx, "Bob", "bob@example.com", "short")
		var verrs models.ValidationErrors
		require.ErrorAs(t, err, &verrs)
	})

	t.Run("bad email", func(t *testing.T) {
		_, err := us.Register(ctx, "Bob", "not-an-email", "password1")
		var verrs models.ValidationErrors
		require.ErrorAs(t, err, &verrs)
	})
}

func TestLoginAndRefresh(t *testing.T) {
	us := newUserService(t)
	ctx := context.Background()

	_, err := us.Register(ctx, "Alice", "alice@example.com", "password1")
	require.NoError(t, err)

	pair, err := us.Login(ctx, "Alice@Example.com ", "password1")
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)

	_, err = us.Login(ctx, "alice@example.com", "wrongpass")
	assert.ErrorIs(t, err, services.ErrInvalidCredentials)
	_, err = us.Login(ctx, "nobody@example.com", "password1")
	assert.ErrorIs(t, err, services.ErrInvalidCredentials)

	next, err := us.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, next.AccessToken)

	// an access token is not a refresh token
	_, err = us.Refresh(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, services.ErrInvalidCredentials)
}

func TestGrantAdmin(t *testing.T) {
	us := newUserService(t)
	ctx := context.Background()

	u, err := us.Register(ctx, "Ada", "ada@example.com", "password1")
	require.NoError(t, err)
	require.NoError(t, us.GrantAdmin(ctx, u.ID))

	u, err = us.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, u.HasRole(models.AppRoleAdmin))
}
