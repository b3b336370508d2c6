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

const selectResets = `
	SELECT id, account_id, token_hash, expires_at, created_at
	FROM password_resets
`

// resetRow mirrors one password_resets row.
type resetRow struct {
	ID        string    `db:"id"`
	AccountID string    `db:"account_id"`
	TokenHash string    `db:"token_hash"`
	ExpiresAt time.Time `db:"expires_at"`
	CreatedAt time.Time `db:"created_at"`
}

func (row resetRow) reset() (*auth.PasswordReset, error) {
	id, err := ulid.Parse(row.ID)
	if err != nil {
		return nil, oops.With("operation", "parse reset id").With("id", row.ID).Wrap(err)
	}
	accountID, err := ulid.Parse(row.AccountID)
	if err != nil {
		return nil, oops.With("operation", "parse account id").With("account_id", row.AccountID).Wrap(err)
	}
	return &auth.PasswordReset{
		ID:        id,
		AccountID: accountID,
		TokenHash: row.TokenHash,
		ExpiresAt: row.ExpiresAt,
		CreatedAt: row.CreatedAt,
	}, nil
}

// PasswordResetRepository stores hashed reset tokens in password_resets.
type PasswordResetRepository struct {
	db DB
}

// NewPasswordResetRepository creates a PasswordResetRepository over db.
func NewPasswordResetRepository(db DB) *PasswordResetRepository {
	return &PasswordResetRepository{db: db}
}

// Create inserts reset. A token hash collision wraps auth.ErrDuplicate.
func (r *PasswordResetRepository) Create(ctx context.Context, reset *auth.PasswordReset) error {
	_, err := conn(ctx, r.db).Exec(ctx, `
		INSERT INTO password_resets (id, account_id, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, reset.ID.String(), reset.AccountID.String(), reset.TokenHash, reset.ExpiresAt, reset.CreatedAt)
	switch {
	case err == nil:
		return nil
	case isUniqueViolation(err):
		return oops.Code("RESET_TOKEN_EXISTS").Wrap(auth.ErrDuplicate)
	default:
		return oops.With("operation", "insert password reset").With("account_id", reset.AccountID.String()).Wrap(err)
	}
}

// GetByTokenHash returns the reset whose token hashes to tokenHash.
func (r *PasswordResetRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*auth.PasswordReset, error) {
	rows, err := conn(ctx, r.db).Query(ctx, selectResets+`WHERE token_hash = $1`, tokenHash)
	if err != nil {
		return nil, oops.With("operation", "get password reset by hash").Wrap(err)
	}
	row, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[resetRow])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("RESET_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.With("operation", "scan password reset").Wrap(err)
	}
	return row.reset()
}

// ListByAccount returns the account's resets, newest first.
func (r *PasswordResetRepository) ListByAccount(ctx context.Context, accountID ulid.ULID) ([]*auth.PasswordReset, error) {
	rows, err := conn(ctx, r.db).Query(ctx, selectResets+`WHERE account_id = $1 ORDER BY created_at DESC`, accountID.String())
	if err != nil {
		return nil, oops.With("operation", "list password resets").With("account_id", accountID.String()).Wrap(err)
	}
	collected, err := pgx.CollectRows(rows, pgx.RowToStructByName[resetRow])
	if err != nil {
		return nil, oops.With("operation", "scan password resets").With("account_id", accountID.String()).Wrap(err)
	}

	resets := make([]*auth.PasswordReset, 0, len(collected))
	for _, row := range collected {
		reset, err := row.reset()
		if err != nil {
			return nil, err
		}
		resets = append(resets, reset)
	}
	return resets, nil
}

// Delete removes one reset. A reset already gone wraps auth.ErrNotFound.
func (r *PasswordResetRepository) Delete(ctx context.Context, id ulid.ULID) error {
	tag, err := conn(ctx, r.db).Exec(ctx, `DELETE FROM password_resets WHERE id = $1`, id.String())
	if err != nil {
		return oops.With("operation", "delete password reset").With("id", id.String()).Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("RESET_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	return nil
}

// DeleteByAccount removes every reset the account owns. Removing none is
// not an error.
func (r *PasswordResetRepository) DeleteByAccount(ctx context.Context, accountID ulid.ULID) error {
	if _, err := conn(ctx, r.db).Exec(ctx, `DELETE FROM password_resets WHERE account_id = $1`, accountID.String()); err != nil {
		return oops.With("operation", "delete password resets by account").With("account_id", accountID.String()).Wrap(err)
	}
	return nil
}

// DeleteExpired removes resets with expires_at <= now and reports how many.
func (r *PasswordResetRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := conn(ctx, r.db).Exec(ctx, `DELETE FROM password_resets WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, oops.With("operation", "delete expired password resets").Wrap(err)
	}
	return tag.RowsAffected(), nil
}

var _ auth.PasswordResetRepository = (*PasswordResetRepository)(nil)
