package identity

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type FinalizePasswordResetMessage struct {
	Token      string `json:"token" doc:"Single use reset secret from the emailed link"`
	Password   string `json:"password" example:"some_secret_word" doc:"New password"`
	OnResponse func(resp *FinalizePasswordResetResponse)
}

func (p FinalizePasswordResetMessage) Type() string { return "user.password_reset_confirm" }

type FinalizePasswordResetResponse struct {
	UserID  string
	Success bool
}

type FinalizePasswordResetHandler struct {
	repo   RepositoryManager
	logger Logger
	now    func() time.Time
}

// NewFinalizePasswordResetHandler creates a handler with sane defaults.
func NewFinalizePasswordResetHandler(repo RepositoryManager) *FinalizePasswordResetHandler {
	return &FinalizePasswordResetHandler{
		repo:   repo,
		logger: defLogger{},
		now:    time.Now,
	}
}

// WithLogger overrides the logger used by the handler.
func (h *FinalizePasswordResetHandler) WithLogger(logger Logger) *FinalizePasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithClock overrides the time source, mostly for tests.
func (h *FinalizePasswordResetHandler) WithClock(now func() time.Time) *FinalizePasswordResetHandler {
	if now != nil {
		h.now = now
	}
	return h
}

func (h *FinalizePasswordResetHandler) Execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset finalization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *FinalizePasswordResetHandler) execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	resp := &FinalizePasswordResetResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	reset, err := h.repo.PasswordResetTokens().GetBySecret(ctx, event.Token)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return ErrResetTokenNotFound
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve password reset record")
	}

	if reset.Used {
		return ErrResetTokenUsed
	}

	if reset.IsExpired(h.now()) {
		return ErrResetTokenExpired
	}

	user, err := h.repo.Users().GetByID(ctx, reset.UserID.String())
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return ErrUserNotFound
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for password reset")
	}

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		hash, err := HashPassword(event.Password)
		if err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}

		if err := h.repo.Users().ResetPasswordTx(ctx, tx, user.ID, hash); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update password")
		}

		if err := h.repo.PasswordResetTokens().MarkUsedTx(ctx, tx, reset.ID); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to consume reset token")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "password reset transaction failed")
	}

	resetTokensRedeemed.Inc()
	h.logger.Info("password reset completed for user %s", user.ID)

	resp.UserID = user.ID.String()
	resp.Success = true

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}
