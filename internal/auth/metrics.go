// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package auth

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for auth metrics.
const (
	OutcomeSuccess            = "success"
	OutcomeUnknownAccount     = "unknown_account"
	OutcomeInvalidCredentials = "invalid_credentials"
	OutcomeLocked             = "locked"
	OutcomeInvalidToken       = "invalid_token"
	OutcomeTokenNotFound      = "token_not_found"
	OutcomeExpired            = "expired"
	OutcomeError              = "error"
)

// LoginAttempts counts login attempts by outcome.
// Use RegisterMetrics to register this with a Prometheus registry.
var LoginAttempts = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "authcore_login_attempts_total",
		Help: "Total number of login attempts by outcome",
	},
	[]string{"outcome"},
)

// Lockouts counts accounts that crossed the failure threshold.
var Lockouts = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "authcore_lockouts_total",
		Help: "Total number of account lockouts triggered",
	},
)

// TokenRefreshes counts refresh token rotations by outcome.
var TokenRefreshes = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "authcore_token_refreshes_total",
		Help: "Total number of refresh token rotations by outcome",
	},
	[]string{"outcome"},
)

// PasswordResets counts password reset operations by stage and outcome.
var PasswordResets = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "authcore_password_resets_total",
		Help: "Total number of password reset operations by stage and outcome",
	},
	[]string{"stage", "outcome"},
)

// OperationDuration observes how long each orchestrator operation takes.
var OperationDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "authcore_operation_duration_seconds",
		Help:    "Auth operation duration in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"operation"},
)

// RegisterMetrics registers auth metrics with the given Prometheus registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(LoginAttempts)
	reg.MustRegister(Lockouts)
	reg.MustRegister(TokenRefreshes)
	reg.MustRegister(PasswordResets)
	reg.MustRegister(OperationDuration)
}

func recordLogin(outcome string) {
	LoginAttempts.WithLabelValues(outcome).Inc()
}

func recordRefresh(outcome string) {
	TokenRefreshes.WithLabelValues(outcome).Inc()
}

func recordReset(stage, outcome string) {
	PasswordResets.WithLabelValues(stage, outcome).Inc()
}

func observeDuration(operation string, start time.Time) {
	OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// outcomeFor maps an error returned by an operation to its metric label.
func outcomeFor(err error) string {
	switch ErrorCode(err) {
	case "":
		if err == nil {
			return OutcomeSuccess
		}
		return OutcomeError
	case CodeUnknownAccount:
		return OutcomeUnknownAccount
	case CodeInvalidCredentials:
		return OutcomeInvalidCredentials
	case CodeAccountLocked:
		return OutcomeLocked
	case CodeInvalidToken, CodeInvalidSignature, CodeMalformedToken:
		return OutcomeInvalidToken
	case CodeTokenNotFound:
		return OutcomeTokenNotFound
	case CodeExpiredToken:
		return OutcomeExpired
	default:
		return OutcomeError
	}
}
