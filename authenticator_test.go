package identity_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskforge/identity"
)

func testUser(roles ...*identity.Role) *identity.User {
	return &identity.User{
		ID:    uuid.New(),
		Email: "test@example.com",
		Roles: roles,
	}
}

func userRole() *identity.Role {
	return &identity.Role{
		ID:   uuid.New(),
		Name: "USER",
		Permissions: []identity.RolePermission{
			{Resource: identity.ResourceTask, Action: identity.ActionRead},
		},
	}
}

func adminRole() *identity.Role {
	return &identity.Role{
		ID:   uuid.New(),
		Name: "ADMIN",
		Permissions: []identity.RolePermission{
			{Resource: identity.ResourceUser, Action: identity.ActionManage},
		},
	}
}

func TestLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("successful login issues a token pair", func(t *testing.T) {
		mockProvider := new(MockIdentityProvider)
		authenticator := identity.NewAuthenticator(mockProvider, newTestConfig())

		user := testUser(userRole())
		mockProvider.On("VerifyIdentity", ctx, "test@example.com", "password123").
			Return(user, nil).Once()

		result, err := authenticator.Login(ctx, "test@example.com", "password123")
		require.NoError(t, err)
		require.NotNil(t, result)

		assert.NotEmpty(t, result.AccessToken)
		assert.NotEmpty(t, result.RefreshToken)
		assert.NotEqual(t, result.AccessToken, result.RefreshToken)
		assert.Equal(t, identity.BearerTokenType, result.TokenType)
		assert.Equal(t, user.ID.String(), result.UserID)
		assert.Equal(t, int64(15*60), result.ExpiresIn)

		svc := authenticator.TokenService()

		access, err := svc.Validate(result.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, identity.TokenKindAccess, access.Kind())
		assert.Equal(t, []string{"ROLE_USER", "TASK:READ"}, access.Authorities())

		refresh, err := svc.Validate(result.RefreshToken)
		require.NoError(t, err)
		assert.Equal(t, identity.TokenKindRefresh, refresh.Kind())
		assert.Empty(t, refresh.Authorities())

		mockProvider.AssertExpectations(t)
	})

	t.Run("failed verification surfaces the error", func(t *testing.T) {
		mockProvider := new(MockIdentityProvider)
		authenticator := identity.NewAuthenticator(mockProvider, newTestConfig())

		mockProvider.On("VerifyIdentity", ctx, "bad@example.com", "wrong").
			Return(nil, identity.ErrInvalidCredentials).Once()

		result, err := authenticator.Login(ctx, "bad@example.com", "wrong")
		assert.Nil(t, result)
		assert.ErrorIs(t, err, identity.ErrInvalidCredentials)
	})
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()

	t.Run("refresh re-derives authorities from current roles", func(t *testing.T) {
		mockProvider := new(MockIdentityProvider)
		authenticator := identity.NewAuthenticator(mockProvider, newTestConfig())

		user := testUser(userRole())
		mockProvider.On("VerifyIdentity", ctx, "test@example.com", "password123").
			Return(user, nil).Once()

		login, err := authenticator.Login(ctx, "test@example.com", "password123")
		require.NoError(t, err)

		// grant a new role after login; the next refresh picks it up
		promoted := testUser(userRole(), adminRole())
		promoted.ID = user.ID
		mockProvider.On("FindIdentityByIdentifier", ctx, user.ID.String()).
			Return(promoted, nil).Once()

		refreshed, err := authenticator.Refresh(ctx, login.RefreshToken)
		require.NoError(t, err)

		access, err := authenticator.TokenService().Validate(refreshed.AccessToken)
		require.NoError(t, err)
		assert.Contains(t, access.Authorities(), "ROLE_ADMIN")
		assert.Contains(t, access.Authorities(), "USER:MANAGE")

		mockProvider.AssertExpectations(t)
	})

	t.Run("access token is not accepted for refresh", func(t *testing.T) {
		mockProvider := new(MockIdentityProvider)
		authenticator := identity.NewAuthenticator(mockProvider, newTestConfig())

		user := testUser(userRole())
		mockProvider.On("VerifyIdentity", ctx, "test@example.com", "password123").
			Return(user, nil).Once()

		login, err := authenticator.Login(ctx, "test@example.com", "password123")
		require.NoError(t, err)

		result, err := authenticator.Refresh(ctx, login.AccessToken)
		assert.Nil(t, result)
		assert.ErrorIs(t, err, identity.ErrInvalidRefreshToken)

		mockProvider.AssertNotCalled(t, "FindIdentityByIdentifier")
	})

	t.Run("malformed refresh token is rejected", func(t *testing.T) {
		mockProvider := new(MockIdentityProvider)
		authenticator := identity.NewAuthenticator(mockProvider, newTestConfig())

		result, err := authenticator.Refresh(ctx, "garbage")
		assert.Nil(t, result)
		assert.ErrorIs(t, err, identity.ErrInvalidRefreshToken)
	})

	t.Run("deleted account cannot refresh", func(t *testing.T) {
		mockProvider := new(MockIdentityProvider)
		authenticator := identity.NewAuthenticator(mockProvider, newTestConfig())

		user := testUser(userRole())
		mockProvider.On("VerifyIdentity", ctx, "test@example.com", "password123").
			Return(user, nil).Once()

		login, err := authenticator.Login(ctx, "test@example.com", "password123")
		require.NoError(t, err)

		mockProvider.On("FindIdentityByIdentifier", ctx, user.ID.String()).
			Return(nil, identity.ErrUserNotFound).Once()

		result, err := authenticator.Refresh(ctx, login.RefreshToken)
		assert.Nil(t, result)
		assert.ErrorIs(t, err, identity.ErrUserNotFound)
	})
}

func TestLogout(t *testing.T) {
	mockProvider := new(MockIdentityProvider)
	authenticator := identity.NewAuthenticator(mockProvider, newTestConfig())

	// logout acknowledges without touching the provider
	err := authenticator.Logout(context.Background(), "some-token")
	assert.NoError(t, err)
	mockProvider.AssertNotCalled(t, "VerifyIdentity")
	mockProvider.AssertNotCalled(t, "FindIdentityByIdentifier")
}
