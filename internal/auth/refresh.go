// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// RefreshToken is the store record backing one outstanding refresh token.
// Only the SHA-256 of the encoded token is persisted.
type RefreshToken struct {
	ID        ulid.ULID
	AccountID ulid.ULID
	TokenHash string
	CreatedAt time.Time
}

// NewRefreshToken creates a validated record for the encoded token.
func NewRefreshToken(accountID ulid.ULID, encoded string, now time.Time) (*RefreshToken, error) {
	if accountID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("REFRESH_INVALID_ACCOUNT").Errorf("account ID cannot be zero")
	}
	if encoded == "" {
		return nil, oops.Code("REFRESH_INVALID_TOKEN").Errorf("token cannot be empty")
	}
	return &RefreshToken{
		ID:        ulid.Make(),
		AccountID: accountID,
		TokenHash: HashToken(encoded),
		CreatedAt: now,
	}, nil
}

// HashToken computes the hex SHA-256 of a bearer token for storage and lookup.
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// RefreshTokenRepository manages refresh token persistence.
type RefreshTokenRepository interface {
	// Create stores a new refresh token record.
	Create(ctx context.Context, token *RefreshToken) error

	// GetByTokenHash retrieves a record by the hash of its encoded token.
	// Returns ErrNotFound if absent.
	GetByTokenHash(ctx context.Context, tokenHash string) (*RefreshToken, error)

	// Delete removes a record. Returns ErrNotFound if no row was deleted,
	// which is how a racing rotation observes that it lost.
	Delete(ctx context.Context, id ulid.ULID) error

	// DeleteByAccount removes every record owned by an account.
	DeleteByAccount(ctx context.Context, accountID ulid.ULID) (int64, error)
}
