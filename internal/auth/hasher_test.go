// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package auth_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/stockevaluator/authcore/internal/auth"
	"github.com/stockevaluator/authcore/pkg/errutil"
)

func TestHashPassword(t *testing.T) {
	hasher := auth.NewArgon2idHasher()

	t.Run("produces PHC encoded argon2id digest", func(t *testing.T) {
		hash, err := hasher.Hash("P@ssw0rd1")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=65536,t=1,p=4$"))
	})

	t.Run("same password produces different hashes (salt)", func(t *testing.T) {
		hash1, err := hasher.Hash("samepassword")
		require.NoError(t, err)
		hash2, err := hasher.Hash("samepassword")
		require.NoError(t, err)
		assert.NotEqual(t, hash1, hash2)
	})

	t.Run("rejects empty password", func(t *testing.T) {
		_, err := hasher.Hash("")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, auth.CodeEmptyPassword)
	})

	t.Run("custom params are encoded", func(t *testing.T) {
		cheap := auth.NewArgon2idHasherWithParams(auth.Argon2Params{Time: 1, Memory: 1024, Threads: 1, SaltLen: 8, KeyLen: 16})
		hash, err := cheap.Hash("pw")
		require.NoError(t, err)
		assert.Contains(t, hash, "$m=1024,t=1,p=1$")

		ok, err := cheap.Verify("pw", hash)
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestVerifyPassword(t *testing.T) {
	hasher := auth.NewArgon2idHasher()

	t.Run("correct password verifies", func(t *testing.T) {
		hash, err := hasher.Hash("correctpassword")
		require.NoError(t, err)

		ok, err := hasher.Verify("correctpassword", hash)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("incorrect password fails without error", func(t *testing.T) {
		hash, err := hasher.Hash("correctpassword")
		require.NoError(t, err)

		ok, err := hasher.Verify("wrongpassword", hash)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	corrupt := []struct {
		name    string
		digest  string
		message string
	}{
		{name: "not a PHC string", digest: "not-a-valid-hash"},
		{name: "wrong algorithm", digest: "$argon2i$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA", message: "unsupported hash algorithm"},
		{name: "bad version segment", digest: "$argon2id$vXX$m=65536,t=1,p=4$c2FsdA$aGFzaA"},
		{name: "unknown version", digest: "$argon2id$v=16$m=65536,t=1,p=4$c2FsdA$aGFzaA", message: "unsupported argon2 version"},
		{name: "bad parameters", digest: "$argon2id$v=19$invalid$c2FsdA$aGFzaA"},
		{name: "bad salt base64", digest: "$argon2id$v=19$m=65536,t=1,p=4$!!!invalid!!!$aGFzaA"},
		{name: "bad key base64", digest: "$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$!!!invalid!!!"},
		{name: "threads overflow", digest: "$argon2id$v=19$m=65536,t=1,p=256$c2FsdA$aGFzaA", message: "threads value"},
		{name: "zero threads", digest: "$argon2id$v=19$m=65536,t=1,p=0$c2FsdA$aGFzaA", message: "threads value"},
		{name: "zero time", digest: "$argon2id$v=19$m=65536,t=0,p=4$c2FsdA$aGFzaA", message: "time value"},
		{name: "excessive time", digest: "$argon2id$v=19$m=65536,t=4294967295,p=4$c2FsdA$aGFzaA", message: "time value"},
		{name: "zero memory", digest: "$argon2id$v=19$m=0,t=1,p=4$c2FsdA$aGFzaA", message: "memory value"},
		{name: "excessive memory", digest: "$argon2id$v=19$m=4294967295,t=1,p=4$c2FsdA$aGFzaA", message: "memory value"},
		{name: "empty key", digest: "$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$", message: "key length"},
		{name: "truncated bcrypt", digest: "$2a$10$short"},
	}
	for _, tt := range corrupt {
		t.Run("corrupt digest: "+tt.name, func(t *testing.T) {
			var (
				ok  bool
				err error
			)
			require.NotPanics(t, func() { ok, err = hasher.Verify("password", tt.digest) })
			require.Error(t, err)
			assert.False(t, ok)
			errutil.AssertErrorCode(t, err, auth.CodeCorruptDigest)
			if tt.message != "" {
				assert.Contains(t, err.Error(), tt.message)
			}
		})
	}
}

func TestVerifyLegacyBcrypt(t *testing.T) {
	hasher := auth.NewArgon2idHasher()

	legacy, err := bcrypt.GenerateFromPassword([]byte("P@ssw0rd1"), bcrypt.MinCost)
	require.NoError(t, err)

	t.Run("matching password verifies", func(t *testing.T) {
		ok, err := hasher.Verify("P@ssw0rd1", string(legacy))
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("mismatch is false without error", func(t *testing.T) {
		ok, err := hasher.Verify("nope", string(legacy))
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("bcrypt digests need upgrade", func(t *testing.T) {
		assert.True(t, hasher.NeedsUpgrade(string(legacy)))
	})
}

func TestNeedsUpgrade(t *testing.T) {
	hasher := auth.NewArgon2idHasher()

	t.Run("current argon2id digest does not need upgrade", func(t *testing.T) {
		hash, err := hasher.Hash("password")
		require.NoError(t, err)
		assert.False(t, hasher.NeedsUpgrade(hash))
	})

	t.Run("weaker argon2id parameters need upgrade", func(t *testing.T) {
		weak := auth.NewArgon2idHasherWithParams(auth.Argon2Params{Time: 1, Memory: 1024, Threads: 1, SaltLen: 16, KeyLen: 32})
		hash, err := weak.Hash("password")
		require.NoError(t, err)
		assert.True(t, hasher.NeedsUpgrade(hash))
	})

	t.Run("garbage needs upgrade", func(t *testing.T) {
		assert.True(t, hasher.NeedsUpgrade("garbage"))
	})
}
