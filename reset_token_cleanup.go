package identity

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// DefaultCleanupInterval is how often expired reset tokens are swept.
const DefaultCleanupInterval = time.Hour

// CleanupExpiredTokensHandler removes reset tokens past their expiry so the
// table only holds live or recently redeemed secrets.
type CleanupExpiredTokensHandler struct {
	repo   RepositoryManager
	logger Logger
	now    func() time.Time
}

func NewCleanupExpiredTokensHandler(repo RepositoryManager) *CleanupExpiredTokensHandler {
	return &CleanupExpiredTokensHandler{
		repo:   repo,
		logger: defLogger{},
		now:    time.Now,
	}
}

// WithLogger overrides the logger used by the handler.
func (h *CleanupExpiredTokensHandler) WithLogger(logger Logger) *CleanupExpiredTokensHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithClock overrides the time source, mostly for tests.
func (h *CleanupExpiredTokensHandler) WithClock(now func() time.Time) *CleanupExpiredTokensHandler {
	if now != nil {
		h.now = now
	}
	return h
}

func (h *CleanupExpiredTokensHandler) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during reset token cleanup",
		)
	default:
	}

	deleted, err := h.repo.PasswordResetTokens().DeleteExpired(ctx, h.now())
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sweep expired reset tokens")
	}

	if deleted > 0 {
		resetTokensSwept.Add(float64(deleted))
		h.logger.Info("swept %d expired password reset tokens", deleted)
	}

	return nil
}

// RunEvery sweeps on the given interval until the context is done. Sweep
// failures are logged and the loop keeps going.
func (h *CleanupExpiredTokensHandler) RunEvery(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := h.Execute(ctx); err != nil {
				h.logger.Error("reset token cleanup failed: %v", err)
			}
		}
	}
}
