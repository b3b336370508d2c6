// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockevaluator/authcore/internal/auth"
	"github.com/stockevaluator/authcore/internal/auth/postgres"
	"github.com/stockevaluator/authcore/pkg/errutil"
)

var resetCols = []string{"id", "account_id", "token_hash", "expires_at", "created_at"}

func TestPasswordResetRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	reset, err := auth.NewPasswordReset(ulid.Make(), "hash", now.Add(time.Hour), now)
	require.NoError(t, err)

	mock := newMock(t)
	mock.ExpectExec(`INSERT INTO password_resets`).
		WithArgs(reset.ID.String(), reset.AccountID.String(), "hash", reset.ExpiresAt, reset.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(`FROM password_resets WHERE token_hash = \$1`).
		WithArgs("hash").
		WillReturnRows(pgxmock.NewRows(resetCols).
			AddRow(reset.ID.String(), reset.AccountID.String(), "hash", reset.ExpiresAt, reset.CreatedAt))
	mock.ExpectQuery(`FROM password_resets WHERE token_hash = \$1`).
		WithArgs("other").
		WillReturnRows(pgxmock.NewRows(resetCols))

	repo := postgres.NewPasswordResetRepository(mock)
	require.NoError(t, repo.Create(ctx, reset))

	got, err := repo.GetByTokenHash(ctx, "hash")
	require.NoError(t, err)
	assert.Equal(t, reset.ID, got.ID)
	assert.Equal(t, reset.AccountID, got.AccountID)
	assert.Equal(t, reset.ExpiresAt, got.ExpiresAt)

	_, err = repo.GetByTokenHash(ctx, "other")
	assert.ErrorIs(t, err, auth.ErrNotFound)
}

func TestPasswordResetRepository_ListByAccount(t *testing.T) {
	ctx := context.Background()
	accountID := ulid.Make()
	newer, older := ulid.Make(), ulid.Make()
	now := time.Now().UTC()

	mock := newMock(t)
	mock.ExpectQuery(`FROM password_resets WHERE account_id = \$1 ORDER BY created_at DESC`).
		WithArgs(accountID.String()).
		WillReturnRows(pgxmock.NewRows(resetCols).
			AddRow(newer.String(), accountID.String(), "n", now.Add(time.Hour), now).
			AddRow(older.String(), accountID.String(), "o", now.Add(time.Hour), now.Add(-time.Minute)))

	resets, err := postgres.NewPasswordResetRepository(mock).ListByAccount(ctx, accountID)
	require.NoError(t, err)
	require.Len(t, resets, 2)
	assert.Equal(t, newer, resets[0].ID)
	assert.Equal(t, older, resets[1].ID)
}

func TestPasswordResetRepository_Deletes(t *testing.T) {
	ctx := context.Background()
	id, accountID := ulid.Make(), ulid.Make()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	mock := newMock(t)
	mock.ExpectExec(`DELETE FROM password_resets WHERE id = \$1`).
		WithArgs(id.String()).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec(`DELETE FROM password_resets WHERE account_id = \$1`).
		WithArgs(accountID.String()).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec(`DELETE FROM password_resets WHERE expires_at <= \$1`).
		WithArgs(now).
		WillReturnResult(pgxmock.NewResult("DELETE", 4))

	repo := postgres.NewPasswordResetRepository(mock)
	assert.ErrorIs(t, repo.Delete(ctx, id), auth.ErrNotFound)
	assert.NoError(t, repo.DeleteByAccount(ctx, accountID), "deleting nothing is not an error")

	n, err := repo.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

func TestPasswordResetRepository_CorruptRow(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	mock := newMock(t)
	mock.ExpectQuery(`FROM password_resets WHERE token_hash = \$1`).
		WithArgs("hash").
		WillReturnRows(pgxmock.NewRows(resetCols).
			AddRow("not-a-ulid", ulid.Make().String(), "hash", now, now))

	_, err := postgres.NewPasswordResetRepository(mock).GetByTokenHash(ctx, "hash")
	require.Error(t, err)
	assert.NotErrorIs(t, err, auth.ErrNotFound)
	errutil.AssertErrorContext(t, err, "id", "not-a-ulid")
}
