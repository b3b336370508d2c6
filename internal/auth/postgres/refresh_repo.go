// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/stockevaluator/authcore/internal/auth"
)

// RefreshTokenRepository implements auth.RefreshTokenRepository using PostgreSQL.
type RefreshTokenRepository struct {
	db DB
}

// NewRefreshTokenRepository creates a new RefreshTokenRepository.
func NewRefreshTokenRepository(db DB) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

// Create stores a refresh token record.
func (r *RefreshTokenRepository) Create(ctx context.Context, token *auth.RefreshToken) error {
	_, err := conn(ctx, r.db).Exec(ctx, `
		INSERT INTO refresh_tokens (id, account_id, token_hash, created_at)
		VALUES ($1, $2, $3, $4)
	`, token.ID.String(), token.AccountID.String(), token.TokenHash, token.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return oops.Code("REFRESH_TOKEN_EXISTS").Wrap(auth.ErrDuplicate)
		}
		return oops.With("operation", "insert refresh token").
			With("account_id", token.AccountID.String()).
			Wrap(err)
	}
	return nil
}

// GetByTokenHash retrieves a refresh token record by the hash of its token.
func (r *RefreshTokenRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*auth.RefreshToken, error) {
	var (
		idStr        string
		accountIDStr string
		hash         string
		createdAt    time.Time
	)
	err := conn(ctx, r.db).QueryRow(ctx, `
		SELECT id, account_id, token_hash, created_at
		FROM refresh_tokens
		WHERE token_hash = $1
	`, tokenHash).Scan(&idStr, &accountIDStr, &hash, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("REFRESH_TOKEN_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.With("operation", "get refresh token by hash").Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.With("operation", "parse refresh token id").With("id", idStr).Wrap(err)
	}
	accountID, err := ulid.Parse(accountIDStr)
	if err != nil {
		return nil, oops.With("operation", "parse account id").With("account_id", accountIDStr).Wrap(err)
	}

	return &auth.RefreshToken{
		ID:        id,
		AccountID: accountID,
		TokenHash: hash,
		CreatedAt: createdAt,
	}, nil
}

// Delete removes a refresh token record. Returns auth.ErrNotFound if a
// concurrent rotation already removed it.
func (r *RefreshTokenRepository) Delete(ctx context.Context, id ulid.ULID) error {
	result, err := conn(ctx, r.db).Exec(ctx, `
		DELETE FROM refresh_tokens WHERE id = $1
	`, id.String())
	if err != nil {
		return oops.With("operation", "delete refresh token").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("REFRESH_TOKEN_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// DeleteByAccount removes every refresh token owned by an account.
func (r *RefreshTokenRepository) DeleteByAccount(ctx context.Context, accountID ulid.ULID) (int64, error) {
	result, err := conn(ctx, r.db).Exec(ctx, `
		DELETE FROM refresh_tokens WHERE account_id = $1
	`, accountID.String())
	if err != nil {
		return 0, oops.With("operation", "delete refresh tokens by account").
			With("account_id", accountID.String()).
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// Compile-time interface check.
var _ auth.RefreshTokenRepository = (*RefreshTokenRepository)(nil)
