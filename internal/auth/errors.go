// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package auth

import (
	"errors"
	"time"

	"github.com/samber/oops"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned by repositories when a uniqueness constraint rejects a write.
var ErrDuplicate = errors.New("duplicate")

// Error codes surfaced by this package.
const (
	CodeDuplicateEmail     = "AUTH_DUPLICATE_EMAIL"
	CodeUnknownAccount     = "AUTH_UNKNOWN_ACCOUNT"
	CodeAccountLocked      = "AUTH_ACCOUNT_LOCKED"
	CodeInvalidCredentials = "AUTH_INVALID_CREDENTIALS"
	CodeInvalidToken       = "AUTH_INVALID_TOKEN"
	CodeTokenNotFound      = "AUTH_TOKEN_NOT_FOUND"
	CodeExpiredToken       = "AUTH_EXPIRED_TOKEN"
	CodeMissingField       = "AUTH_MISSING_FIELD"
	CodeInvalidField       = "AUTH_INVALID_FIELD"
	CodeCorruptDigest      = "AUTH_CORRUPT_DIGEST"
	CodeEmptyPassword      = "AUTH_EMPTY_PASSWORD"
	CodeInvalidSignature   = "AUTH_INVALID_SIGNATURE"
	CodeMalformedToken     = "AUTH_MALFORMED_TOKEN"
	CodeStoreUnavailable   = "AUTH_STORE_UNAVAILABLE"
	CodeInternal           = "AUTH_INTERNAL"
)

// ErrDuplicateEmail creates an error for a registration whose email is taken.
func ErrDuplicateEmail(email string) error {
	return oops.Code(CodeDuplicateEmail).
		With("email", email).
		Errorf("email already registered")
}

// ErrUnknownAccount creates an error for a login against an email with no account.
func ErrUnknownAccount(email string) error {
	return oops.Code(CodeUnknownAccount).
		With("email", email).
		Errorf("no account for email")
}

// ErrAccountLocked creates an error carrying the instant the lock expires.
func ErrAccountLocked(until time.Time) error {
	return oops.Code(CodeAccountLocked).
		With("locked_until", until).
		Errorf("account is temporarily locked")
}

// ErrInvalidCredentials creates an error for a password mismatch.
func ErrInvalidCredentials() error {
	return oops.Code(CodeInvalidCredentials).Errorf("invalid email or password")
}

// ErrInvalidToken creates an error for a token that must not be honored.
func ErrInvalidToken(reason string) error {
	return oops.Code(CodeInvalidToken).
		With("reason", reason).
		Errorf("invalid token")
}

// ErrTokenNotFound creates an error for a token with no live store record.
func ErrTokenNotFound() error {
	return oops.Code(CodeTokenNotFound).Errorf("token not found")
}

// ErrExpiredToken creates an error for a reset token past its expiry.
func ErrExpiredToken() error {
	return oops.Code(CodeExpiredToken).Errorf("token has expired")
}

// ErrMissingField creates an error for a required input left blank.
func ErrMissingField(field string) error {
	return oops.Code(CodeMissingField).
		With("field", field).
		Errorf("%s is required", field)
}

// ErrInvalidField creates an error for an input that fails validation.
func ErrInvalidField(field, reason string) error {
	return oops.Code(CodeInvalidField).
		With("field", field).
		Errorf("%s %s", field, reason)
}

// storeUnavailable wraps an infrastructure failure from a repository or
// transactor. oops reports the deepest code in a chain, so a cause that
// carries its own code is kept behind storeCause and recorded as cause_code.
func storeUnavailable(operation string, err error) error {
	builder := oops.Code(CodeStoreUnavailable).With("operation", operation)
	if code := ErrorCode(err); code != "" {
		return builder.With("cause_code", code).Wrap(&storeCause{err: err})
	}
	return builder.Wrap(err)
}

// storeCause hides a coded cause from errors.As while keeping errors.Is.
type storeCause struct {
	err error
}

func (c *storeCause) Error() string { return c.err.Error() }

func (c *storeCause) Is(target error) bool { return errors.Is(c.err, target) }

// ErrorCode returns the oops code attached to err, or "" if there is none.
func ErrorCode(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	code, _ := oopsErr.Code().(string)
	return code
}

// LockedUntil extracts the unlock instant from an AccountLocked error.
func LockedUntil(err error) (time.Time, bool) {
	if ErrorCode(err) != CodeAccountLocked {
		return time.Time{}, false
	}
	oopsErr, _ := oops.AsOops(err)
	until, ok := oopsErr.Context()["locked_until"].(time.Time)
	return until, ok
}

// PublicMessage returns the message an external caller may see for err.
// UnknownAccount and InvalidCredentials render identically.
func PublicMessage(err error) string {
	if err == nil {
		return ""
	}
	switch ErrorCode(err) {
	case CodeUnknownAccount, CodeInvalidCredentials:
		return "invalid email or password"
	case CodeAccountLocked:
		return "account is temporarily locked, try again later"
	case CodeDuplicateEmail:
		return "an account with this email already exists"
	case CodeInvalidToken, CodeInvalidSignature, CodeMalformedToken:
		return "invalid token"
	case CodeTokenNotFound:
		return "token not found"
	case CodeExpiredToken:
		return "token has expired"
	case CodeMissingField, CodeInvalidField, CodeEmptyPassword:
		oopsErr, _ := oops.AsOops(err)
		return oopsErr.Error()
	case CodeStoreUnavailable:
		return "service temporarily unavailable"
	default:
		return "something went wrong"
	}
}
