package identity_test

import (
	"context"
	"testing"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/taskforge/identity"
)

func liveResetToken(userID uuid.UUID, secret string) *identity.PasswordResetToken {
	return &identity.PasswordResetToken{
		ID:       uuid.New(),
		UserID:   userID,
		Token:    secret,
		ExpiryAt: time.Now().Add(15 * time.Minute),
	}
}

func TestFinalizePasswordResetHandler(t *testing.T) {
	ctx := context.Background()

	t.Run("valid token resets the password and is consumed", func(t *testing.T) {
		repo := newMockRepoManager()
		handler := identity.NewFinalizePasswordResetHandler(repo)

		user := testUser(userRole())
		reset := liveResetToken(user.ID, "secret-abc")

		repo.resets.On("GetBySecret", mock.Anything, "secret-abc").Return(reset, nil).Once()
		repo.users.On("GetByID", mock.Anything, user.ID.String()).Return(user, nil).Once()
		repo.users.On("ResetPasswordTx", mock.Anything, mock.Anything, user.ID, mock.MatchedBy(func(hash string) bool {
			return identity.ComparePasswordAndHash("newPassword456", hash) == nil
		})).Return(nil).Once()
		repo.resets.On("MarkUsedTx", mock.Anything, mock.Anything, reset.ID).Return(nil).Once()

		var resp *identity.FinalizePasswordResetResponse
		err := handler.Execute(ctx, identity.FinalizePasswordResetMessage{
			Token:    "secret-abc",
			Password: "newPassword456",
			OnResponse: func(r *identity.FinalizePasswordResetResponse) {
				resp = r
			},
		})

		require.NoError(t, err)
		require.NotNil(t, resp)
		assert.True(t, resp.Success)
		assert.Equal(t, user.ID.String(), resp.UserID)

		repo.users.AssertExpectations(t)
		repo.resets.AssertExpectations(t)
	})

	t.Run("unknown token", func(t *testing.T) {
		repo := newMockRepoManager()
		handler := identity.NewFinalizePasswordResetHandler(repo)

		repo.resets.On("GetBySecret", mock.Anything, "nope").
			Return(nil, repository.NewRecordNotFound()).Once()

		err := handler.Execute(ctx, identity.FinalizePasswordResetMessage{Token: "nope", Password: "x"})
		assert.ErrorIs(t, err, identity.ErrResetTokenNotFound)
	})

	t.Run("token cannot be redeemed twice", func(t *testing.T) {
		repo := newMockRepoManager()
		handler := identity.NewFinalizePasswordResetHandler(repo)

		reset := liveResetToken(uuid.New(), "secret-abc")
		reset.Used = true

		repo.resets.On("GetBySecret", mock.Anything, "secret-abc").Return(reset, nil).Once()

		err := handler.Execute(ctx, identity.FinalizePasswordResetMessage{Token: "secret-abc", Password: "x"})
		assert.ErrorIs(t, err, identity.ErrResetTokenUsed)
		assert.Contains(t, err.Error(), "has already been used")

		repo.users.AssertNotCalled(t, "ResetPasswordTx")
	})

	t.Run("expired token", func(t *testing.T) {
		repo := newMockRepoManager()
		handler := identity.NewFinalizePasswordResetHandler(repo).
			WithClock(func() time.Time { return time.Now().Add(time.Hour) })

		reset := liveResetToken(uuid.New(), "secret-abc")

		repo.resets.On("GetBySecret", mock.Anything, "secret-abc").Return(reset, nil).Once()

		err := handler.Execute(ctx, identity.FinalizePasswordResetMessage{Token: "secret-abc", Password: "x"})
		assert.ErrorIs(t, err, identity.ErrResetTokenExpired)

		repo.resets.AssertNotCalled(t, "MarkUsedTx")
	})

	t.Run("orphaned token whose account is gone", func(t *testing.T) {
		repo := newMockRepoManager()
		handler := identity.NewFinalizePasswordResetHandler(repo)

		reset := liveResetToken(uuid.New(), "secret-abc")

		repo.resets.On("GetBySecret", mock.Anything, "secret-abc").Return(reset, nil).Once()
		repo.users.On("GetByID", mock.Anything, reset.UserID.String()).
			Return(nil, repository.NewRecordNotFound()).Once()

		err := handler.Execute(ctx, identity.FinalizePasswordResetMessage{Token: "secret-abc", Password: "x"})
		assert.ErrorIs(t, err, identity.ErrUserNotFound)
	})
}

func TestCleanupExpiredTokensHandler(t *testing.T) {
	ctx := context.Background()

	t.Run("sweeps expired rows", func(t *testing.T) {
		repo := newMockRepoManager()
		cutoff := time.Now()
		handler := identity.NewCleanupExpiredTokensHandler(repo).
			WithClock(func() time.Time { return cutoff })

		repo.resets.On("DeleteExpired", mock.Anything, cutoff).Return(int64(3), nil).Once()

		err := handler.Execute(ctx)
		assert.NoError(t, err)

		repo.resets.AssertExpectations(t)
	})

	t.Run("sweep failure is reported", func(t *testing.T) {
		repo := newMockRepoManager()
		handler := identity.NewCleanupExpiredTokensHandler(repo)

		repo.resets.On("DeleteExpired", mock.Anything, mock.Anything).
			Return(int64(0), assert.AnError).Once()

		err := handler.Execute(ctx)
		assert.Error(t, err)
	})

	t.Run("loop stops when the context is cancelled", func(t *testing.T) {
		repo := newMockRepoManager()
		handler := identity.NewCleanupExpiredTokensHandler(repo)

		repo.resets.On("DeleteExpired", mock.Anything, mock.Anything).Return(int64(0), nil)

		loopCtx, cancel := context.WithCancel(ctx)

		done := make(chan struct{})
		go func() {
			handler.RunEvery(loopCtx, 5*time.Millisecond)
			close(done)
		}()

		time.Sleep(20 * time.Millisecond)
		cancel()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("cleanup loop did not stop after cancel")
		}
	})
}
