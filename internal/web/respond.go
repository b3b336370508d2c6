// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package web

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"

	"github.com/getsentry/sentry-go"

	"github.com/stockevaluator/authcore/internal/auth"
)

const maxJSONBodyBytes = 1 << 20

var errInvalidJSON = errors.New("invalid json body")

type errorResponse struct {
	Error string `json:"error"`
}

// statusFor maps an auth error to its HTTP status.
func statusFor(err error) int {
	switch auth.ErrorCode(err) {
	case auth.CodeDuplicateEmail:
		return http.StatusConflict
	case auth.CodeUnknownAccount, auth.CodeInvalidCredentials,
		auth.CodeInvalidToken, auth.CodeInvalidSignature, auth.CodeMalformedToken,
		auth.CodeTokenNotFound, auth.CodeExpiredToken:
		return http.StatusUnauthorized
	case auth.CodeAccountLocked:
		return http.StatusLocked
	case auth.CodeMissingField, auth.CodeInvalidField, auth.CodeEmptyPassword:
		return http.StatusBadRequest
	case auth.CodeStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a single JSON object into dst, rejecting unknown fields
// and bodies over maxJSONBodyBytes.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return errInvalidJSON
	}
	if _, err := decoder.Token(); !errors.Is(err, io.EOF) {
		return errInvalidJSON
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeError renders err with auth.PublicMessage. Locked accounts get a
// Retry-After header; server-side failures are logged and reported.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)

	if until, ok := auth.LockedUntil(err); ok {
		w.Header().Set("Retry-After", retryAfterSeconds(until.Sub(h.now()).Seconds()))
	}
	if status == http.StatusUnauthorized && r.URL.Path == "/auth/me" {
		w.Header().Set("WWW-Authenticate", `Bearer realm="authcore"`)
	}
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed",
			"path", r.URL.Path,
			"code", auth.ErrorCode(err),
			"error", err,
		)
		if hub := sentry.GetHubFromContext(r.Context()); hub != nil {
			hub.CaptureException(err)
		}
	}

	writeJSONError(w, status, auth.PublicMessage(err))
}

// retryAfterSeconds renders a delay as whole seconds, rounded up, minimum 1.
func retryAfterSeconds(seconds float64) string {
	s := int64(math.Ceil(seconds))
	if s < 1 {
		s = 1
	}
	return strconv.FormatInt(s, 10)
}
