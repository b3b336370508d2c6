// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package authtest

import (
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/stockevaluator/authcore/internal/auth"
)

// TestKeyMaterial is a fixed HS256 key for tests.
const TestKeyMaterial = "authcore-test-signing-key-0123456789abcdef"

// CheapHasher returns an argon2id hasher with parameters small enough for
// unit tests. Never use it outside tests.
func CheapHasher() *auth.Argon2idHasher {
	return auth.NewArgon2idHasherWithParams(auth.Argon2Params{
		Time:    1,
		Memory:  8 * 1024,
		Threads: 1,
		SaltLen: 16,
		KeyLen:  32,
	})
}

// T is the subset of testing.TB the helpers need. Both *testing.T and
// GinkgoT() satisfy it.
type T interface {
	require.TestingT
	Helper()
}

// NewCodec creates a TokenCodec over TestKeyMaterial that reads time from clock.
func NewCodec(t T, clock *Clock) *auth.TokenCodec {
	t.Helper()
	key, err := auth.NewSigningKey([]byte(TestKeyMaterial))
	require.NoError(t, err)
	codec, err := auth.NewTokenCodec(key, auth.WithCodecClock(clock.Now), auth.WithIssuer("authcore-test"))
	require.NoError(t, err)
	return codec
}

// MockHasher is a testify mock of auth.PasswordHasher.
type MockHasher struct {
	mock.Mock
}

// NewMockHasher creates a MockHasher whose expectations are asserted at cleanup.
func NewMockHasher(t *testing.T) *MockHasher {
	m := &MockHasher{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Hash implements auth.PasswordHasher.
func (m *MockHasher) Hash(password string) (string, error) {
	args := m.Called(password)
	return args.String(0), args.Error(1)
}

// Verify implements auth.PasswordHasher.
func (m *MockHasher) Verify(password, hash string) (bool, error) {
	args := m.Called(password, hash)
	return args.Bool(0), args.Error(1)
}

// NeedsUpgrade implements auth.PasswordHasher.
func (m *MockHasher) NeedsUpgrade(hash string) bool {
	args := m.Called(hash)
	return args.Bool(0)
}

var _ auth.PasswordHasher = (*MockHasher)(nil)
