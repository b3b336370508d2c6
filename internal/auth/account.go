// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package auth

import (
	"context"
	"net/mail"
	"strings"
	"time"
	"unicode"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// RoleUser is the role granted to every registered account.
const RoleUser = "USER"

// MinPasswordLength is the shortest password accepted at registration or reset.
const MinPasswordLength = 8

// MaxEmailLength bounds the stored email column.
const MaxEmailLength = 254

// Account represents a registered principal.
type Account struct {
	ID             ulid.ULID
	Email          string
	PasswordHash   string
	FirstName      string
	LastName       string
	Roles          []string
	FailedAttempts int
	LockedUntil    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewAccount creates a validated Account with a zeroed failure counter and no lock.
func NewAccount(email, passwordHash, firstName, lastName string, now time.Time) (*Account, error) {
	normalized := NormalizeEmail(email)
	if normalized == "" {
		return nil, ErrMissingField("email")
	}
	if passwordHash == "" {
		return nil, oops.Code("AUTH_INVALID_PASSWORD").Errorf("password hash cannot be empty")
	}
	return &Account{
		ID:           ulid.Make(),
		Email:        normalized,
		PasswordHash: passwordHash,
		FirstName:    strings.TrimSpace(firstName),
		LastName:     strings.TrimSpace(lastName),
		Roles:        []string{RoleUser},
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// RecordFailure applies one failed login to the account using policy.
func (a *Account) RecordFailure(policy LockoutPolicy, now time.Time) {
	a.FailedAttempts, a.LockedUntil = policy.RecordFailure(a.FailedAttempts, now)
	a.UpdatedAt = now
}

// RecordSuccess clears the failure counter and any lock.
func (a *Account) RecordSuccess(policy LockoutPolicy, now time.Time) {
	a.FailedAttempts, a.LockedUntil = policy.RecordSuccess()
	a.UpdatedAt = now
}

// NormalizeEmail trims and lower-cases an email for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks that email is a bare, well-formed address.
func ValidateEmail(email string) error {
	normalized := NormalizeEmail(email)
	if normalized == "" {
		return ErrMissingField("email")
	}
	if len(normalized) > MaxEmailLength {
		return ErrInvalidField("email", "is too long")
	}
	addr, err := mail.ParseAddress(normalized)
	if err != nil || addr.Address != normalized || !strings.Contains(normalized[strings.LastIndex(normalized, "@")+1:], ".") {
		return ErrInvalidField("email", "is not a valid address")
	}
	return nil
}

// ValidatePassword enforces the password strength rules: at least
// MinPasswordLength characters with an upper-case letter, a lower-case
// letter, a digit and a special character.
func ValidatePassword(password string) error {
	if password == "" {
		return ErrMissingField("password")
	}
	if len(password) < MinPasswordLength {
		return ErrInvalidField("password", "must be at least 8 characters")
	}

	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			special = true
		}
	}
	if !upper || !lower || !digit || !special {
		return ErrInvalidField("password",
			"must contain an upper-case letter, a lower-case letter, a digit and a special character")
	}
	return nil
}

// AccountRepository manages account persistence.
//
// Implementations must give GetByEmailForUpdate per-account mutual exclusion
// for the lifetime of the enclosing transaction, so that concurrent logins
// against one account serialize their read-increment-write of the failure
// counter.
type AccountRepository interface {
	// Create stores a new account. Returns ErrDuplicate if the email is taken.
	Create(ctx context.Context, account *Account) error

	// GetByID retrieves an account by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*Account, error)

	// GetByEmail retrieves an account by normalized email.
	// Returns ErrNotFound if no account has the given email.
	GetByEmail(ctx context.Context, email string) (*Account, error)

	// GetByEmailForUpdate is GetByEmail holding a row lock until the
	// transaction in ctx ends. It must be called inside Transactor.InTransaction.
	GetByEmailForUpdate(ctx context.Context, email string) (*Account, error)

	// Update saves the counter, lock expiry, password hash and profile fields.
	Update(ctx context.Context, account *Account) error

	// UpdatePassword replaces the password hash and clears lockout state.
	UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error
}
