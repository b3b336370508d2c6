// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockevaluator/authcore/internal/auth"
	"github.com/stockevaluator/authcore/internal/auth/authtest"
	"github.com/stockevaluator/authcore/pkg/errutil"
)

const newPassword = "N3w!Passw0rd"

func TestNewPasswordResetService(t *testing.T) {
	store := authtest.NewStore()
	full := auth.ResetServiceDeps{
		Accounts:      store.Accounts(),
		Resets:        store.Resets(),
		RefreshTokens: store.RefreshTokens(),
		Transactor:    store,
		Hasher:        authtest.CheapHasher(),
	}

	tests := []struct {
		name        string
		mutate      func(*auth.ResetServiceDeps)
		expectError string
	}{
		{name: "nil accounts", mutate: func(d *auth.ResetServiceDeps) { d.Accounts = nil }, expectError: "account repository is required"},
		{name: "nil resets", mutate: func(d *auth.ResetServiceDeps) { d.Resets = nil }, expectError: "password reset repository is required"},
		{name: "nil refresh tokens", mutate: func(d *auth.ResetServiceDeps) { d.RefreshTokens = nil }, expectError: "refresh token repository is required"},
		{name: "nil transactor", mutate: func(d *auth.ResetServiceDeps) { d.Transactor = nil }, expectError: "transactor is required"},
		{name: "nil hasher", mutate: func(d *auth.ResetServiceDeps) { d.Hasher = nil }, expectError: "password hasher is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := full
			tt.mutate(&deps)
			svc, err := auth.NewPasswordResetService(deps)
			require.Error(t, err)
			assert.Nil(t, svc)
			assert.Contains(t, err.Error(), tt.expectError)
		})
	}

	t.Run("rejects non-positive ttl", func(t *testing.T) {
		_, err := auth.NewPasswordResetService(full, auth.WithResetTTL(0))
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "AUTH_INVALID_CONFIG")
	})
}

func TestRequestReset(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown email yields no token and no error", func(t *testing.T) {
		f := newFixture(t)
		token, err := f.resets.RequestReset(ctx, "nobody@x.com")
		require.NoError(t, err)
		assert.Empty(t, token)
		assert.Zero(t, f.store.ResetCount())
	})

	t.Run("stores only the hash of the token", func(t *testing.T) {
		f := newFixture(t)
		account := f.register(t, testEmail, testPassword)

		token, err := f.resets.RequestReset(ctx, "A@X.com")
		require.NoError(t, err)
		assert.Len(t, token, auth.ResetTokenBytes*2)

		stored, err := f.store.Resets().ListByAccount(ctx, account.ID)
		require.NoError(t, err)
		require.Len(t, stored, 1)
		assert.Equal(t, auth.HashToken(token), stored[0].TokenHash)
		assert.NotEqual(t, token, stored[0].TokenHash)
		assert.Equal(t, testEpoch.Add(auth.ResetTokenExpiry), stored[0].ExpiresAt)
	})

	t.Run("a new request supersedes earlier tokens", func(t *testing.T) {
		f := newFixture(t)
		f.register(t, testEmail, testPassword)

		first, err := f.resets.RequestReset(ctx, testEmail)
		require.NoError(t, err)
		second, err := f.resets.RequestReset(ctx, testEmail)
		require.NoError(t, err)
		assert.NotEqual(t, first, second)
		assert.Equal(t, 1, f.store.ResetCount())

		err = f.resets.CompletePasswordReset(ctx, first, newPassword)
		errutil.AssertErrorCode(t, err, auth.CodeInvalidToken)
		assert.NoError(t, f.resets.CompletePasswordReset(ctx, second, newPassword))
	})

	t.Run("missing email", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.resets.RequestReset(ctx, "  ")
		errutil.AssertErrorCode(t, err, auth.CodeMissingField)
	})

	t.Run("store failure", func(t *testing.T) {
		f := newFixture(t)
		f.register(t, testEmail, testPassword)
		f.store.FailOn("resets.Create", errors.New("read-only replica"))

		token, err := f.resets.RequestReset(ctx, testEmail)
		require.Error(t, err)
		assert.Empty(t, token)
		errutil.AssertErrorCode(t, err, auth.CodeStoreUnavailable)
	})
}

func TestCompletePasswordReset(t *testing.T) {
	ctx := context.Background()

	t.Run("sets the new password and consumes the token", func(t *testing.T) {
		f := newFixture(t)
		f.register(t, testEmail, testPassword)
		token, err := f.resets.RequestReset(ctx, testEmail)
		require.NoError(t, err)

		require.NoError(t, f.resets.CompletePasswordReset(ctx, token, newPassword))
		assert.Zero(t, f.store.ResetCount())

		_, err = f.svc.Login(ctx, testEmail, testPassword)
		errutil.AssertErrorCode(t, err, auth.CodeInvalidCredentials)
		_, err = f.svc.Login(ctx, testEmail, newPassword)
		assert.NoError(t, err)
	})

	t.Run("a consumed token is invalid", func(t *testing.T) {
		f := newFixture(t)
		f.register(t, testEmail, testPassword)
		token, err := f.resets.RequestReset(ctx, testEmail)
		require.NoError(t, err)
		require.NoError(t, f.resets.CompletePasswordReset(ctx, token, newPassword))

		err = f.resets.CompletePasswordReset(ctx, token, "An0ther!Pass")
		errutil.AssertErrorCode(t, err, auth.CodeInvalidToken)
	})

	t.Run("an expired token is deleted and reported", func(t *testing.T) {
		f := newFixture(t)
		f.register(t, testEmail, testPassword)
		token, err := f.resets.RequestReset(ctx, testEmail)
		require.NoError(t, err)

		f.clock.Advance(auth.ResetTokenExpiry)
		err = f.resets.CompletePasswordReset(ctx, token, newPassword)
		errutil.AssertErrorCode(t, err, auth.CodeExpiredToken)
		assert.Zero(t, f.store.ResetCount())

		err = f.resets.CompletePasswordReset(ctx, token, newPassword)
		errutil.AssertErrorCode(t, err, auth.CodeInvalidToken)

		_, err = f.svc.Login(ctx, testEmail, testPassword)
		assert.NoError(t, err, "password is unchanged")
	})

	t.Run("clears an active lockout", func(t *testing.T) {
		f := newFixture(t)
		f.register(t, testEmail, testPassword)
		for i := 0; i < auth.DefaultLockoutThreshold; i++ {
			_, _ = f.svc.Login(ctx, testEmail, "wrong")
		}
		require.NotNil(t, f.account(t, testEmail).LockedUntil)

		token, err := f.resets.RequestReset(ctx, testEmail)
		require.NoError(t, err)
		require.NoError(t, f.resets.CompletePasswordReset(ctx, token, newPassword))

		_, err = f.svc.Login(ctx, testEmail, newPassword)
		assert.NoError(t, err)
	})

	t.Run("revokes the account's refresh tokens", func(t *testing.T) {
		f := newFixture(t)
		f.register(t, testEmail, testPassword)
		f.register(t, "b@x.com", testPassword)
		first, err := f.svc.Login(ctx, testEmail, testPassword)
		require.NoError(t, err)
		_, err = f.svc.Login(ctx, testEmail, testPassword)
		require.NoError(t, err)
		_, err = f.svc.Login(ctx, "b@x.com", testPassword)
		require.NoError(t, err)
		require.Equal(t, 3, f.store.RefreshTokenCount())

		token, err := f.resets.RequestReset(ctx, testEmail)
		require.NoError(t, err)
		require.NoError(t, f.resets.CompletePasswordReset(ctx, token, newPassword))

		assert.Equal(t, 1, f.store.RefreshTokenCount(), "other accounts keep their sessions")
		_, err = f.svc.Refresh(ctx, first.RefreshToken)
		assert.Error(t, err)
		assert.Contains(t, f.logs.String(), `"revoked_refresh_tokens":2`)
	})

	t.Run("revocation failure rolls the reset back", func(t *testing.T) {
		f := newFixture(t)
		f.register(t, testEmail, testPassword)
		token, err := f.resets.RequestReset(ctx, testEmail)
		require.NoError(t, err)

		f.store.FailOn("refresh.DeleteByAccount", errors.New("lock timeout"))
		err = f.resets.CompletePasswordReset(ctx, token, newPassword)
		errutil.AssertErrorCode(t, err, auth.CodeStoreUnavailable)
		assert.Equal(t, 1, f.store.ResetCount())

		_, err = f.svc.Login(ctx, testEmail, testPassword)
		assert.NoError(t, err, "password is unchanged")
	})

	t.Run("unknown token", func(t *testing.T) {
		f := newFixture(t)
		err := f.resets.CompletePasswordReset(ctx, "deadbeef", newPassword)
		errutil.AssertErrorCode(t, err, auth.CodeInvalidToken)
	})

	t.Run("validates input before touching the store", func(t *testing.T) {
		tests := []struct {
			name     string
			token    string
			password string
			code     string
		}{
			{name: "missing token", token: "", password: newPassword, code: auth.CodeMissingField},
			{name: "missing password", token: "abc", password: "", code: auth.CodeMissingField},
			{name: "weak password", token: "abc", password: "short", code: auth.CodeInvalidField},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				f := newFixture(t)
				f.store.FailOn("tx.Begin", errors.New("must not be reached"))
				err := f.resets.CompletePasswordReset(ctx, tt.token, tt.password)
				errutil.AssertErrorCode(t, err, tt.code)
			})
		}
	})

	t.Run("update failure keeps the token", func(t *testing.T) {
		f := newFixture(t)
		f.register(t, testEmail, testPassword)
		token, err := f.resets.RequestReset(ctx, testEmail)
		require.NoError(t, err)

		f.store.FailOn("accounts.UpdatePassword", errors.New("deadlock detected"))
		err = f.resets.CompletePasswordReset(ctx, token, newPassword)
		errutil.AssertErrorCode(t, err, auth.CodeStoreUnavailable)
		assert.Equal(t, 1, f.store.ResetCount())
	})
}

func TestPurgeExpired(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	first := f.register(t, testEmail, testPassword)
	second := f.register(t, "b@x.com", testPassword)

	old, err := auth.NewPasswordReset(first.ID, "hash-old", testEpoch.Add(time.Minute), testEpoch)
	require.NoError(t, err)
	fresh, err := auth.NewPasswordReset(second.ID, "hash-fresh", testEpoch.Add(time.Hour), testEpoch)
	require.NoError(t, err)
	f.store.PutReset(old)
	f.store.PutReset(fresh)

	f.clock.Advance(time.Minute)
	n, err := f.resets.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 1, f.store.ResetCount())

	f.store.FailOn("resets.DeleteExpired", errors.New("timeout"))
	_, err = f.resets.PurgeExpired(ctx)
	errutil.AssertErrorCode(t, err, auth.CodeStoreUnavailable)
}
