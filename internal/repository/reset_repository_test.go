package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twoem/portal-api/internal/models"
)

func newResetMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestResetRepositoryCreateStartsPending(t *testing.T) {
	db, mock, cleanup := newResetMock(t)
	defer cleanup()
	repo := NewResetRepository(db)

	mock.ExpectExec("INSERT INTO password_resets").
		WithArgs(sqlmock.AnyArg(), "user-1", "student@twoem.com", models.ResetPending, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	req := &models.PasswordResetRequest{UserID: "user-1", Email: "student@twoem.com"}
	err := repo.Create(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, models.ResetPending, req.Status)
	assert.NotEmpty(t, req.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResetRepositoryApproveGuardsTransition(t *testing.T) {
	db, mock, cleanup := newResetMock(t)
	defer cleanup()
	repo := NewResetRepository(db)

	now := time.Now().UTC()
	expires := now.Add(24 * time.Hour)

	mock.ExpectExec("UPDATE password_resets").
		WithArgs("req-1", models.ResetApproved, "482913", now, expires, models.ResetPending).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Approve(context.Background(), "req-1", "482913", now, expires)
	require.NoError(t, err)

	// A second approval matches zero rows and surfaces as no-rows.
	mock.ExpectExec("UPDATE password_resets").
		WithArgs("req-1", models.ResetApproved, "771204", now, expires, models.ResetPending).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = repo.Approve(context.Background(), "req-1", "771204", now, expires)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResetRepositoryMarkUsedOnlyFromApproved(t *testing.T) {
	db, mock, cleanup := newResetMock(t)
	defer cleanup()
	repo := NewResetRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE password_resets SET status = $2 WHERE id = $1 AND status = $3")).
		WithArgs("req-1", models.ResetUsed, models.ResetApproved).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkUsed(context.Background(), "req-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
