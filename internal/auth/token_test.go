// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package auth_test

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockevaluator/authcore/internal/auth"
	"github.com/stockevaluator/authcore/internal/auth/authtest"
	"github.com/stockevaluator/authcore/pkg/errutil"
)

var codecEpoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestNewSigningKey(t *testing.T) {
	t.Run("rejects short keys", func(t *testing.T) {
		_, err := auth.NewSigningKey([]byte("too-short"))
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "AUTH_SIGNING_KEY_INVALID")
	})

	t.Run("copies material so later mutation has no effect", func(t *testing.T) {
		material := []byte(authtest.TestKeyMaterial)
		key, err := auth.NewSigningKey(material)
		require.NoError(t, err)

		clock := authtest.NewClock(codecEpoch)
		codec, err := auth.NewTokenCodec(key, auth.WithCodecClock(clock.Now))
		require.NoError(t, err)
		issued, err := codec.Issue("a@x.com", nil, auth.TokenKindAccess, time.Minute)
		require.NoError(t, err)

		for i := range material {
			material[i] = 'x'
		}
		_, err = codec.Decode(issued.Token)
		assert.NoError(t, err)
	})

	t.Run("never prints its material", func(t *testing.T) {
		key, err := auth.NewSigningKey([]byte(authtest.TestKeyMaterial))
		require.NoError(t, err)

		for _, rendered := range []string{
			key.String(),
			fmt.Sprintf("%v", key),
			fmt.Sprintf("%+v", key),
			fmt.Sprintf("%#v", key),
			fmt.Sprintf("%s", key),
			fmt.Sprintf("%x", key),
		} {
			assert.NotContains(t, rendered, authtest.TestKeyMaterial)
			assert.NotContains(t, rendered, fmt.Sprintf("%x", authtest.TestKeyMaterial))
		}

		var buf bytes.Buffer
		slog.New(slog.NewJSONHandler(&buf, nil)).Info("config", "signing_key", key)
		assert.NotContains(t, buf.String(), authtest.TestKeyMaterial)
		assert.Contains(t, buf.String(), "[REDACTED]")
	})

	t.Run("codec requires a key", func(t *testing.T) {
		_, err := auth.NewTokenCodec(auth.SigningKey{})
		require.Error(t, err)
	})
}

func TestTokenCodec_IssueAndDecode(t *testing.T) {
	clock := authtest.NewClock(codecEpoch)
	codec := authtest.NewCodec(t, clock)

	issued, err := codec.Issue("a@x.com", []string{"USER"}, auth.TokenKindRefresh, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, codecEpoch.Add(time.Hour), issued.ExpiresAt)
	assert.Equal(t, 3, strings.Count(issued.Token, ".")+1)

	claims, err := codec.Decode(issued.Token)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", auth.SubjectOf(claims))
	assert.Equal(t, auth.TokenKindRefresh, auth.KindOf(claims))
	assert.Equal(t, []string{"USER"}, claims.Roles)
	assert.Equal(t, "authcore-test", claims.Issuer)
	assert.Equal(t, codecEpoch, claims.IssuedAt.Time.UTC())
	assert.Equal(t, codecEpoch.Add(time.Hour), claims.ExpiresAt.Time.UTC())
	assert.NotEmpty(t, claims.ID)
	assert.False(t, codec.IsExpired(claims))
}

func TestTokenCodec_TokensAreUniqueWithinASecond(t *testing.T) {
	clock := authtest.NewClock(codecEpoch)
	codec := authtest.NewCodec(t, clock)

	first, err := codec.Issue("a@x.com", nil, auth.TokenKindRefresh, time.Hour)
	require.NoError(t, err)
	second, err := codec.Issue("a@x.com", nil, auth.TokenKindRefresh, time.Hour)
	require.NoError(t, err)
	assert.NotEqual(t, first.Token, second.Token)
}

func TestTokenCodec_IsExpired(t *testing.T) {
	clock := authtest.NewClock(codecEpoch)
	codec := authtest.NewCodec(t, clock)

	issued, err := codec.Issue("a@x.com", nil, auth.TokenKindAccess, 15*time.Minute)
	require.NoError(t, err)
	claims, err := codec.Decode(issued.Token)
	require.NoError(t, err)

	clock.Advance(15*time.Minute - time.Second)
	assert.False(t, codec.IsExpired(claims))

	clock.Advance(time.Second)
	assert.True(t, codec.IsExpired(claims), "expiry instant itself is expired")

	// Decode does not check expiry.
	_, err = codec.Decode(issued.Token)
	assert.NoError(t, err)
}

func TestTokenCodec_IssueValidation(t *testing.T) {
	codec := authtest.NewCodec(t, authtest.NewClock(codecEpoch))

	tests := []struct {
		name    string
		subject string
		kind    auth.TokenKind
		ttl     time.Duration
	}{
		{name: "empty subject", subject: "", kind: auth.TokenKindAccess, ttl: time.Minute},
		{name: "unknown kind", subject: "a@x.com", kind: "ID", ttl: time.Minute},
		{name: "zero ttl", subject: "a@x.com", kind: auth.TokenKindAccess, ttl: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := codec.Issue(tt.subject, nil, tt.kind, tt.ttl)
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, "AUTH_TOKEN_ISSUE_FAILED")
		})
	}
}

func TestTokenCodec_DecodeRejects(t *testing.T) {
	clock := authtest.NewClock(codecEpoch)
	codec := authtest.NewCodec(t, clock)

	valid, err := codec.Issue("a@x.com", nil, auth.TokenKindAccess, time.Hour)
	require.NoError(t, err)

	otherKey, err := auth.NewSigningKey([]byte("another-signing-key-that-is-long-enough!"))
	require.NoError(t, err)
	otherCodec, err := auth.NewTokenCodec(otherKey, auth.WithCodecClock(clock.Now))
	require.NoError(t, err)
	foreign, err := otherCodec.Issue("a@x.com", nil, auth.TokenKindAccess, time.Hour)
	require.NoError(t, err)

	parts := strings.Split(valid.Token, ".")
	tamperedPayload := sign(t, jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "b@x.com", "token_type": "ACCESS", "exp": codecEpoch.Add(time.Hour).Unix(),
	}, []byte("not-the-key-not-the-key-not-the-key"))
	spliced := parts[0] + "." + strings.Split(tamperedPayload, ".")[1] + "." + parts[2]

	key := []byte(authtest.TestKeyMaterial)
	tests := []struct {
		name  string
		token string
		code  string
	}{
		{name: "empty", token: "", code: auth.CodeMalformedToken},
		{name: "garbage", token: "not-a-token", code: auth.CodeMalformedToken},
		{name: "signed with another key", token: foreign.Token, code: auth.CodeInvalidSignature},
		{name: "payload swapped under original signature", token: spliced, code: auth.CodeInvalidSignature},
		{
			name: "alg none",
			token: sign(t, jwt.SigningMethodNone, jwt.MapClaims{
				"sub": "a@x.com", "token_type": "ACCESS", "exp": codecEpoch.Add(time.Hour).Unix(),
			}, jwt.UnsafeAllowNoneSignatureType),
			code: auth.CodeInvalidSignature,
		},
		{
			name: "HS512 with the right key",
			token: sign(t, jwt.SigningMethodHS512, jwt.MapClaims{
				"sub": "a@x.com", "token_type": "ACCESS", "exp": codecEpoch.Add(time.Hour).Unix(),
			}, key),
			code: auth.CodeInvalidSignature,
		},
		{
			name: "missing kind",
			token: sign(t, jwt.SigningMethodHS256, jwt.MapClaims{
				"sub": "a@x.com", "exp": codecEpoch.Add(time.Hour).Unix(),
			}, key),
			code: auth.CodeMalformedToken,
		},
		{
			name: "unknown kind",
			token: sign(t, jwt.SigningMethodHS256, jwt.MapClaims{
				"sub": "a@x.com", "token_type": "ID", "exp": codecEpoch.Add(time.Hour).Unix(),
			}, key),
			code: auth.CodeMalformedToken,
		},
		{
			name: "missing expiry",
			token: sign(t, jwt.SigningMethodHS256, jwt.MapClaims{
				"sub": "a@x.com", "token_type": "REFRESH",
			}, key),
			code: auth.CodeMalformedToken,
		},
		{
			name: "missing subject",
			token: sign(t, jwt.SigningMethodHS256, jwt.MapClaims{
				"token_type": "REFRESH", "exp": codecEpoch.Add(time.Hour).Unix(),
			}, key),
			code: auth.CodeMalformedToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := codec.Decode(tt.token)
			require.Error(t, err)
			assert.Nil(t, claims)
			errutil.AssertErrorCode(t, err, tt.code)
			errutil.AssertNoSecret(t, err, authtest.TestKeyMaterial)
		})
	}
}

func sign(t *testing.T, method jwt.SigningMethod, claims jwt.MapClaims, key any) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}
