// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// MinSigningKeyLength is the shortest HMAC key accepted for HS256.
const MinSigningKeyLength = 32

const redacted = "[REDACTED]"

// TokenKind distinguishes access tokens from refresh tokens.
type TokenKind string

// Token kinds.
const (
	TokenKindAccess  TokenKind = "ACCESS"
	TokenKindRefresh TokenKind = "REFRESH"
)

// Valid reports whether k is a known kind.
func (k TokenKind) Valid() bool {
	return k == TokenKindAccess || k == TokenKindRefresh
}

// SigningKey is the HMAC key material used by TokenCodec. It is immutable once
// constructed and never prints its contents.
type SigningKey struct {
	material []byte
}

// NewSigningKey copies material into a SigningKey.
func NewSigningKey(material []byte) (SigningKey, error) {
	if len(material) < MinSigningKeyLength {
		return SigningKey{}, oops.Code("AUTH_SIGNING_KEY_INVALID").
			With("min_length", MinSigningKeyLength).
			Errorf("signing key must be at least %d bytes", MinSigningKeyLength)
	}
	key := make([]byte, len(material))
	copy(key, material)
	return SigningKey{material: key}, nil
}

// String implements fmt.Stringer.
func (SigningKey) String() string { return redacted }

// GoString implements fmt.GoStringer.
func (SigningKey) GoString() string { return redacted }

// LogValue implements slog.LogValuer.
func (SigningKey) LogValue() slog.Value { return slog.StringValue(redacted) }

// Format implements fmt.Formatter so that no verb reveals the key.
func (SigningKey) Format(f fmt.State, _ rune) {
	_, _ = f.Write([]byte(redacted))
}

// IsZero reports whether the key was never initialized.
func (k SigningKey) IsZero() bool { return len(k.material) == 0 }

// Claims is the fixed claim set carried by every session token.
type Claims struct {
	Roles []string  `json:"roles"`
	Kind  TokenKind `json:"token_type"`
	jwt.RegisteredClaims
}

// IssuedToken is an encoded token along with the claims it carries.
type IssuedToken struct {
	Token     string
	Claims    *Claims
	ExpiresAt time.Time
}

// KindOf returns the token kind carried by claims.
func KindOf(claims *Claims) TokenKind {
	return claims.Kind
}

// SubjectOf returns the subject carried by claims.
func SubjectOf(claims *Claims) string {
	return claims.Subject
}

// TokenCodec issues and decodes HS256-signed session tokens.
type TokenCodec struct {
	key    SigningKey
	issuer string
	now    func() time.Time
}

// CodecOption configures a TokenCodec.
type CodecOption func(*TokenCodec)

// WithCodecClock sets the clock used for issued-at and expiry checks.
func WithCodecClock(now func() time.Time) CodecOption {
	return func(c *TokenCodec) {
		c.now = now
	}
}

// WithIssuer sets the iss claim on issued tokens.
func WithIssuer(issuer string) CodecOption {
	return func(c *TokenCodec) {
		c.issuer = issuer
	}
}

// NewTokenCodec creates a TokenCodec signing with key.
func NewTokenCodec(key SigningKey, opts ...CodecOption) (*TokenCodec, error) {
	if key.IsZero() {
		return nil, oops.Code("AUTH_SIGNING_KEY_INVALID").Errorf("signing key is required")
	}
	c := &TokenCodec{
		key: key,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Issue encodes a signed token for subject with issued-at now and expiry now+ttl.
func (c *TokenCodec) Issue(subject string, roles []string, kind TokenKind, ttl time.Duration) (*IssuedToken, error) {
	if subject == "" {
		return nil, oops.Code("AUTH_TOKEN_ISSUE_FAILED").Errorf("subject is required")
	}
	if !kind.Valid() {
		return nil, oops.Code("AUTH_TOKEN_ISSUE_FAILED").With("kind", string(kind)).Errorf("unknown token kind")
	}
	if ttl <= 0 {
		return nil, oops.Code("AUTH_TOKEN_ISSUE_FAILED").With("ttl", ttl.String()).Errorf("ttl must be positive")
	}

	now := c.now()
	expiresAt := now.Add(ttl)
	if roles == nil {
		roles = []string{}
	}
	claims := &Claims{
		Roles: append([]string(nil), roles...),
		Kind:  kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        ulid.Make().String(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.key.material)
	if err != nil {
		return nil, oops.Code("AUTH_TOKEN_ISSUE_FAILED").With("kind", string(kind)).Wrap(err)
	}

	return &IssuedToken{
		Token:     signed,
		Claims:    claims,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Decode verifies the signature of token and returns its claims. Expiry and
// kind are left to the caller via IsExpired and KindOf.
func (c *TokenCodec) Decode(token string) (*Claims, error) {
	if token == "" {
		return nil, oops.Code(CodeMalformedToken).Errorf("token is empty")
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return c.key.material, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenSignatureInvalid) || errors.Is(err, jwt.ErrTokenUnverifiable) {
			return nil, oops.Code(CodeInvalidSignature).Errorf("token signature is invalid")
		}
		return nil, oops.Code(CodeMalformedToken).Errorf("token is malformed")
	}

	if !claims.Kind.Valid() {
		return nil, oops.Code(CodeMalformedToken).With("kind", string(claims.Kind)).Errorf("token kind is missing or unknown")
	}
	if claims.ExpiresAt == nil {
		return nil, oops.Code(CodeMalformedToken).Errorf("token has no expiry")
	}
	if claims.Subject == "" {
		return nil, oops.Code(CodeMalformedToken).Errorf("token has no subject")
	}

	return claims, nil
}

// IsExpired reports whether claims have reached their expiry.
func (c *TokenCodec) IsExpired(claims *Claims) bool {
	if claims.ExpiresAt == nil {
		return true
	}
	return !c.now().Before(claims.ExpiresAt.Time)
}
