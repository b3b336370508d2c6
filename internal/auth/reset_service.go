// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"
)

// ResetServiceDeps are the collaborators required by PasswordResetService.
type ResetServiceDeps struct {
	Accounts      AccountRepository
	Resets        PasswordResetRepository
	RefreshTokens RefreshTokenRepository
	Transactor    Transactor
	Hasher        PasswordHasher
}

// PasswordResetService handles password reset operations.
type PasswordResetService struct {
	accounts AccountRepository
	resets   PasswordResetRepository
	refresh  RefreshTokenRepository
	tx       Transactor
	hasher   PasswordHasher
	ttl      time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// ResetOption configures a PasswordResetService.
type ResetOption func(*PasswordResetService)

// WithResetTTL sets how long a reset token stays valid.
func WithResetTTL(ttl time.Duration) ResetOption {
	return func(s *PasswordResetService) {
		s.ttl = ttl
	}
}

// WithResetClock sets the clock used for expiry decisions.
func WithResetClock(now func() time.Time) ResetOption {
	return func(s *PasswordResetService) {
		s.now = now
	}
}

// WithResetLogger sets the logger.
func WithResetLogger(logger *slog.Logger) ResetOption {
	return func(s *PasswordResetService) {
		s.logger = logger
	}
}

// NewPasswordResetService creates a PasswordResetService.
func NewPasswordResetService(deps ResetServiceDeps, opts ...ResetOption) (*PasswordResetService, error) {
	switch {
	case deps.Accounts == nil:
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("account repository is required")
	case deps.Resets == nil:
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("password reset repository is required")
	case deps.RefreshTokens == nil:
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("refresh token repository is required")
	case deps.Transactor == nil:
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("transactor is required")
	case deps.Hasher == nil:
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("password hasher is required")
	}

	s := &PasswordResetService{
		accounts: deps.Accounts,
		resets:   deps.Resets,
		refresh:  deps.RefreshTokens,
		tx:       deps.Transactor,
		hasher:   deps.Hasher,
		ttl:      ResetTokenExpiry,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.ttl <= 0 {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("reset token ttl must be positive")
	}
	return s, nil
}

// RequestReset creates a reset token for the account with the given email,
// superseding any earlier ones, and returns the plaintext token for delivery.
// Delivery is not this service's job. An unknown email returns "" and no
// error so callers cannot probe which emails are registered.
func (s *PasswordResetService) RequestReset(ctx context.Context, email string) (token string, err error) {
	defer func() { recordReset("request", outcomeFor(err)) }()

	email = NormalizeEmail(email)
	if email == "" {
		return "", ErrMissingField("email")
	}

	err = runInTransaction(ctx, s.tx, "request reset", func(ctx context.Context) error {
		account, err := s.accounts.GetByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil
			}
			return storeUnavailable("get account by email", err)
		}

		if err := s.resets.DeleteByAccount(ctx, account.ID); err != nil {
			return storeUnavailable("delete superseded resets", err)
		}

		plain, hash, err := GenerateResetToken()
		if err != nil {
			return err
		}

		now := s.now()
		reset, err := NewPasswordReset(account.ID, hash, now.Add(s.ttl), now)
		if err != nil {
			return err
		}
		if err := s.resets.Create(ctx, reset); err != nil {
			return storeUnavailable("create reset", err)
		}

		token = plain
		s.logger.InfoContext(ctx, "password reset requested",
			"account_id", account.ID.String(),
			"expires_at", reset.ExpiresAt,
		)
		return nil
	})
	if err != nil {
		return "", err
	}
	return token, nil
}

// CompletePasswordReset consumes a reset token, sets a new password and
// revokes every refresh token the account holds.
// An expired token is deleted and ExpiredToken is returned; a token that was
// already consumed or never issued yields InvalidToken.
func (s *PasswordResetService) CompletePasswordReset(ctx context.Context, token, newPassword string) (err error) {
	defer func() { recordReset("complete", outcomeFor(err)) }()

	if token == "" {
		return ErrMissingField("token")
	}
	if newPassword == "" {
		return ErrMissingField("new_password")
	}
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}

	// Hash outside the transaction; argon2 is slow and needs no row locks.
	hashed, err := s.hasher.Hash(newPassword)
	if err != nil {
		return oops.With("operation", "hash password").Wrap(err)
	}

	var expired bool
	err = runInTransaction(ctx, s.tx, "complete reset", func(ctx context.Context) error {
		reset, err := s.resets.GetByTokenHash(ctx, HashToken(token))
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return ErrInvalidToken("reset token not found")
			}
			return storeUnavailable("get reset by token hash", err)
		}

		if err := s.resets.Delete(ctx, reset.ID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return ErrInvalidToken("reset token already consumed")
			}
			return storeUnavailable("delete reset", err)
		}

		if reset.IsExpiredAt(s.now()) {
			// Commit the deletion, then report expiry.
			expired = true
			return nil
		}

		if err := s.accounts.UpdatePassword(ctx, reset.AccountID, hashed); err != nil {
			if errors.Is(err, ErrNotFound) {
				return ErrInvalidToken("account no longer exists")
			}
			return storeUnavailable("update password", err)
		}

		revoked, err := s.refresh.DeleteByAccount(ctx, reset.AccountID)
		if err != nil {
			return storeUnavailable("revoke refresh tokens", err)
		}

		s.logger.InfoContext(ctx, "password reset completed",
			"account_id", reset.AccountID.String(),
			"revoked_refresh_tokens", revoked,
		)
		return nil
	})
	if err != nil {
		return err
	}
	if expired {
		return ErrExpiredToken()
	}
	return nil
}

// PurgeExpired deletes every reset token that has expired.
func (s *PasswordResetService) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.resets.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, storeUnavailable("delete expired resets", err)
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "purged expired password resets", "count", n)
	}
	return n, nil
}
