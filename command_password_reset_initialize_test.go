package identity_test

import (
	"context"
	"testing"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/taskforge/identity"
)

func TestInitializePasswordResetHandler(t *testing.T) {
	ctx := context.Background()

	t.Run("known account gets a fresh single-use token", func(t *testing.T) {
		repo := newMockRepoManager()
		mailer := new(MockMailer)
		handler := identity.NewInitializePasswordResetHandler(repo, mailer).
			WithTokenTTL(30 * time.Minute).
			WithResetBaseURL("https://app.example.com/password-reset")

		user := testUser(userRole())
		repo.users.On("GetByEmail", mock.Anything, "test@example.com").Return(user, nil).Once()

		var secret string
		repo.resets.On("DeleteByUserIDTx", mock.Anything, mock.Anything, user.ID).Return(nil).Once()
		repo.resets.On("CreateTx", mock.Anything, mock.Anything, mock.MatchedBy(func(r *identity.PasswordResetToken) bool {
			secret = r.Token
			return r.UserID == user.ID &&
				r.Token != "" &&
				!r.Used &&
				time.Until(r.ExpiryAt) > 29*time.Minute
		})).Return(&identity.PasswordResetToken{UserID: user.ID}, nil).Once()

		mailer.On("SendPasswordResetEmail", mock.Anything, "test@example.com", mock.MatchedBy(func(link string) bool {
			return link == "https://app.example.com/password-reset?token="+secret
		})).Return(nil).Once()

		var resp *identity.InitializePasswordResetResponse
		err := handler.Execute(ctx, identity.InitializePasswordResetMessage{
			Email: "Test@Example.com",
			OnResponse: func(r *identity.InitializePasswordResetResponse) {
				resp = r
			},
		})

		require.NoError(t, err)
		require.NotNil(t, resp)
		assert.True(t, resp.Success)
		assert.NotNil(t, resp.Reset)

		repo.users.AssertExpectations(t)
		repo.resets.AssertExpectations(t)
		mailer.AssertExpectations(t)
	})

	t.Run("unknown account succeeds without touching anything", func(t *testing.T) {
		repo := newMockRepoManager()
		mailer := new(MockMailer)
		handler := identity.NewInitializePasswordResetHandler(repo, mailer).
			WithMaskDelay(0)

		repo.users.On("GetByEmail", mock.Anything, "ghost@example.com").
			Return(nil, repository.NewRecordNotFound()).Once()

		var resp *identity.InitializePasswordResetResponse
		err := handler.Execute(ctx, identity.InitializePasswordResetMessage{
			Email: "ghost@example.com",
			OnResponse: func(r *identity.InitializePasswordResetResponse) {
				resp = r
			},
		})

		require.NoError(t, err)
		require.NotNil(t, resp)
		assert.True(t, resp.Success)
		assert.Nil(t, resp.Reset)

		repo.resets.AssertNotCalled(t, "DeleteByUserIDTx")
		repo.resets.AssertNotCalled(t, "CreateTx")
		mailer.AssertNotCalled(t, "SendPasswordResetEmail")
	})

	t.Run("unknown account pays the masking delay", func(t *testing.T) {
		repo := newMockRepoManager()
		mailer := new(MockMailer)
		handler := identity.NewInitializePasswordResetHandler(repo, mailer).
			WithMaskDelay(50 * time.Millisecond)

		repo.users.On("GetByEmail", mock.Anything, "ghost@example.com").
			Return(nil, repository.NewRecordNotFound()).Once()

		start := time.Now()
		err := handler.Execute(ctx, identity.InitializePasswordResetMessage{Email: "ghost@example.com"})

		require.NoError(t, err)
		assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	})

	t.Run("mailer failure is swallowed so responses stay uniform", func(t *testing.T) {
		repo := newMockRepoManager()
		mailer := new(MockMailer)
		handler := identity.NewInitializePasswordResetHandler(repo, mailer)

		user := testUser(userRole())
		repo.users.On("GetByEmail", mock.Anything, "test@example.com").Return(user, nil).Once()
		repo.resets.On("DeleteByUserIDTx", mock.Anything, mock.Anything, user.ID).Return(nil).Once()
		repo.resets.On("CreateTx", mock.Anything, mock.Anything, mock.Anything).
			Return(&identity.PasswordResetToken{UserID: user.ID}, nil).Once()
		mailer.On("SendPasswordResetEmail", mock.Anything, "test@example.com", mock.Anything).
			Return(assert.AnError).Once()

		var resp *identity.InitializePasswordResetResponse
		err := handler.Execute(ctx, identity.InitializePasswordResetMessage{
			Email: "test@example.com",
			OnResponse: func(r *identity.InitializePasswordResetResponse) {
				resp = r
			},
		})

		// a known address with broken delivery must look exactly like an
		// unknown one to the caller
		require.NoError(t, err)
		require.NotNil(t, resp)
		assert.True(t, resp.Success)
		mailer.AssertExpectations(t)
	})
}
