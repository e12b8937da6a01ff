package identity

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	loginSuccesses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "identity_login_success_total",
		Help: "Successful logins.",
	})

	loginFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "identity_login_failure_total",
		Help: "Failed logins (bad credentials or throttled).",
	})

	tokenRefreshes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "identity_token_refresh_total",
		Help: "Token pairs issued via refresh.",
	})

	resetTokensCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "identity_reset_tokens_created_total",
		Help: "Password reset tokens created.",
	})

	resetTokensRedeemed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "identity_reset_tokens_redeemed_total",
		Help: "Password reset tokens successfully redeemed.",
	})

	resetTokensSwept = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "identity_reset_tokens_swept_total",
		Help: "Expired password reset tokens removed by the cleanup sweep.",
	})
)

// RegisterMetrics registers the auth metrics with the default registry. Call
// once from the binary entrypoint.
func RegisterMetrics() {
	prometheus.MustRegister(
		loginSuccesses,
		loginFailures,
		tokenRefreshes,
		resetTokensCreated,
		resetTokensRedeemed,
		resetTokensSwept,
	)
}

// MetricsHandler exposes the default registry for a side listener
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
