// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package auth_test

import (
	"bytes"
	"context"
	"log/slog"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stockevaluator/authcore/internal/auth"
	"github.com/stockevaluator/authcore/internal/auth/authtest"
)

const (
	testEmail    = "a@x.com"
	testPassword = "P@ssw0rd1"
)

var testEpoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// fixture wires both services over one in-memory store and a shared clock.
type fixture struct {
	store  *authtest.Store
	clock  *authtest.Clock
	codec  *auth.TokenCodec
	hasher auth.PasswordHasher
	svc    *auth.Service
	resets *auth.PasswordResetService
	logs   *bytes.Buffer
}

func newFixture(t authtest.T) *fixture {
	t.Helper()
	return newFixtureWithHasher(t, authtest.CheapHasher())
}

func newFixtureWithHasher(t authtest.T, hasher auth.PasswordHasher) *fixture {
	t.Helper()

	f := &fixture{
		store:  authtest.NewStore(),
		clock:  authtest.NewClock(testEpoch),
		hasher: hasher,
		logs:   &bytes.Buffer{},
	}
	f.codec = authtest.NewCodec(t, f.clock)
	logger := slog.New(slog.NewJSONHandler(f.logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	svc, err := auth.NewAuthService(auth.ServiceDeps{
		Accounts:      f.store.Accounts(),
		RefreshTokens: f.store.RefreshTokens(),
		Transactor:    f.store,
		Hasher:        hasher,
		Codec:         f.codec,
	}, auth.WithClock(f.clock.Now), auth.WithLogger(logger))
	require.NoError(t, err)
	f.svc = svc

	resets, err := auth.NewPasswordResetService(auth.ResetServiceDeps{
		Accounts:      f.store.Accounts(),
		Resets:        f.store.Resets(),
		RefreshTokens: f.store.RefreshTokens(),
		Transactor:    f.store,
		Hasher:        hasher,
	}, auth.WithResetClock(f.clock.Now), auth.WithResetLogger(logger))
	require.NoError(t, err)
	f.resets = resets

	return f
}

func (f *fixture) register(t authtest.T, email, password string) *auth.Account {
	t.Helper()
	account, err := f.svc.Register(context.Background(), auth.RegisterRequest{
		Email:     email,
		Password:  password,
		FirstName: "Ada",
		LastName:  "Lovelace",
	})
	require.NoError(t, err)
	return account
}

func (f *fixture) account(t authtest.T, email string) auth.Account {
	t.Helper()
	account, ok := f.store.Account(email)
	require.True(t, ok, "account %s not found", email)
	return account
}
