// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockevaluator/authcore/internal/auth"
	"github.com/stockevaluator/authcore/internal/auth/postgres"
)

func TestRefreshTokenRepository_Create(t *testing.T) {
	ctx := context.Background()
	record, err := auth.NewRefreshToken(ulid.Make(), "header.payload.sig", time.Now())
	require.NoError(t, err)

	mock := newMock(t)
	mock.ExpectExec(`INSERT INTO refresh_tokens`).
		WithArgs(record.ID.String(), record.AccountID.String(), auth.HashToken("header.payload.sig"), record.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO refresh_tokens`).
		WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})

	repo := postgres.NewRefreshTokenRepository(mock)
	require.NoError(t, repo.Create(ctx, record))
	assert.ErrorIs(t, repo.Create(ctx, record), auth.ErrDuplicate)
}

func TestRefreshTokenRepository_GetByTokenHash(t *testing.T) {
	ctx := context.Background()
	id, accountID := ulid.Make(), ulid.Make()
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	cols := []string{"id", "account_id", "token_hash", "created_at"}

	mock := newMock(t)
	mock.ExpectQuery(`SELECT id, account_id, token_hash, created_at FROM refresh_tokens WHERE token_hash = \$1`).
		WithArgs("abc").
		WillReturnRows(pgxmock.NewRows(cols).AddRow(id.String(), accountID.String(), "abc", created))
	mock.ExpectQuery(`FROM refresh_tokens`).WithArgs("missing").WillReturnRows(pgxmock.NewRows(cols))
	mock.ExpectQuery(`FROM refresh_tokens`).WithArgs("broken").WillReturnError(errors.New("timeout"))

	repo := postgres.NewRefreshTokenRepository(mock)

	got, err := repo.GetByTokenHash(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, accountID, got.AccountID)
	assert.Equal(t, created, got.CreatedAt)

	_, err = repo.GetByTokenHash(ctx, "missing")
	assert.ErrorIs(t, err, auth.ErrNotFound)

	_, err = repo.GetByTokenHash(ctx, "broken")
	require.Error(t, err)
	assert.NotErrorIs(t, err, auth.ErrNotFound)
	assert.Empty(t, auth.ErrorCode(err))
}

func TestRefreshTokenRepository_Delete(t *testing.T) {
	ctx := context.Background()
	id := ulid.Make()

	mock := newMock(t)
	mock.ExpectExec(`DELETE FROM refresh_tokens WHERE id = \$1`).
		WithArgs(id.String()).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`DELETE FROM refresh_tokens WHERE id = \$1`).
		WithArgs(id.String()).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	repo := postgres.NewRefreshTokenRepository(mock)
	require.NoError(t, repo.Delete(ctx, id))
	assert.ErrorIs(t, repo.Delete(ctx, id), auth.ErrNotFound, "losing a rotation race reports not found")
}

func TestRefreshTokenRepository_DeleteByAccount(t *testing.T) {
	accountID := ulid.Make()

	mock := newMock(t)
	mock.ExpectExec(`DELETE FROM refresh_tokens WHERE account_id = \$1`).
		WithArgs(accountID.String()).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	n, err := postgres.NewRefreshTokenRepository(mock).DeleteByAccount(context.Background(), accountID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}
