package identity

import (
	"context"
	"fmt"

	"github.com/goliatone/go-print"
)

// LogMailer writes outgoing notifications to the log instead of a delivery
// provider. Swap it for a real Mailer in production wiring.
type LogMailer struct {
	logger Logger
}

var _ Mailer = (*LogMailer)(nil)

func NewLogMailer() *LogMailer {
	return &LogMailer{
		logger: defLogger{},
	}
}

func (m *LogMailer) WithLogger(logger Logger) *LogMailer {
	if logger != nil {
		m.logger = logger
	}
	return m
}

func (m *LogMailer) SendPasswordResetEmail(ctx context.Context, email, resetLink string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	m.logger.Info("sending password reset notification to %s", email)

	fmt.Println("====== SENDING EMAIL NOTIFICATION =======")
	fmt.Println(print.MaybePrettyJSON(map[string]string{
		"to":   email,
		"link": resetLink,
	}))

	return nil
}
