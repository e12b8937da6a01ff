package identity

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// DefaultResetTokenTTL bounds how long a reset link stays redeemable.
const DefaultResetTokenTTL = 15 * time.Minute

// DefaultMaskDelay is the fixed latency paid on unknown-account requests so
// response timing does not reveal whether an email is registered.
const DefaultMaskDelay = 500 * time.Millisecond

const resetSecretBytes = 32

// GenerateResetSecret returns a URL-safe, high-entropy single-use secret.
func GenerateResetSecret() (string, error) {
	buf := make([]byte, resetSecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate reset secret")
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

type InitializePasswordResetMessage struct {
	Email      string `json:"email" example:"pepe.rone@example.com" doc:"Account email."`
	OnResponse func(resp *InitializePasswordResetResponse)
}

func (p InitializePasswordResetMessage) Type() string { return "user.password_reset" }

type InitializePasswordResetResponse struct {
	Reset   *PasswordResetToken
	Success bool
}

type InitializePasswordResetHandler struct {
	repo         RepositoryManager
	mailer       Mailer
	logger       Logger
	tokenTTL     time.Duration
	resetBaseURL string
	maskDelay    time.Duration
	sleep        func(time.Duration)
}

func NewInitializePasswordResetHandler(repo RepositoryManager, mailer Mailer) *InitializePasswordResetHandler {
	return &InitializePasswordResetHandler{
		repo:         repo,
		mailer:       mailer,
		logger:       defLogger{},
		tokenTTL:     DefaultResetTokenTTL,
		resetBaseURL: "/password-reset",
		maskDelay:    DefaultMaskDelay,
		sleep:        time.Sleep,
	}
}

// WithLogger overrides the logger used by the handler.
func (h *InitializePasswordResetHandler) WithLogger(logger Logger) *InitializePasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithTokenTTL overrides the reset token lifetime.
func (h *InitializePasswordResetHandler) WithTokenTTL(ttl time.Duration) *InitializePasswordResetHandler {
	if ttl > 0 {
		h.tokenTTL = ttl
	}
	return h
}

// WithResetBaseURL sets the link prefix embedded in notification emails.
func (h *InitializePasswordResetHandler) WithResetBaseURL(base string) *InitializePasswordResetHandler {
	if base != "" {
		h.resetBaseURL = base
	}
	return h
}

// WithMaskDelay overrides the unknown-account latency floor.
func (h *InitializePasswordResetHandler) WithMaskDelay(d time.Duration) *InitializePasswordResetHandler {
	if d >= 0 {
		h.maskDelay = d
	}
	return h
}

func (h *InitializePasswordResetHandler) Execute(ctx context.Context, event InitializePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset initialization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *InitializePasswordResetHandler) execute(ctx context.Context, event InitializePasswordResetMessage) error {
	resp := &InitializePasswordResetResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	email := NormalizeEmail(event.Email)

	user, err := h.repo.Users().GetByEmail(ctx, email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			// unknown accounts get the same outcome as known ones, after a
			// fixed latency so timing does not leak registration status
			h.sleep(h.maskDelay)
			resp.Success = true
			if event.OnResponse != nil {
				event.OnResponse(resp)
			}
			return nil
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for password reset")
	}

	secret, err := GenerateResetSecret()
	if err != nil {
		return err
	}

	reset := &PasswordResetToken{
		UserID:   user.ID,
		Token:    secret,
		ExpiryAt: time.Now().Add(h.tokenTTL),
	}

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		// at most one live token per account
		if err := h.repo.PasswordResetTokens().DeleteByUserIDTx(ctx, tx, user.ID); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to discard prior reset tokens")
		}

		created, err := h.repo.PasswordResetTokens().CreateTx(ctx, tx, reset)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create password reset record")
		}

		resp.Reset = created
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to initialize password reset")
	}

	resetTokensCreated.Inc()

	// delivery failures never reach the caller: a known account that fails
	// to receive mail must answer the same as an unknown one
	link := fmt.Sprintf("%s?token=%s", h.resetBaseURL, secret)
	if err := h.mailer.SendPasswordResetEmail(ctx, user.Email, link); err != nil {
		h.logger.Error("failed to send password reset email to %s: %v", user.Email, err)
	}

	resp.Success = true
	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}
