package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twoem/portal-api/internal/models"
)

func newArtifactMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestArtifactRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newArtifactMock(t)
	defer cleanup()
	repo := NewArtifactRepository(db)

	mock.ExpectExec("INSERT INTO artifacts").
		WithArgs(
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	artifact := &models.Artifact{
		Kind:       models.KindEulogy,
		Title:      "In Memoriam",
		Filename:   "john_doe_eulogy.pdf",
		MediaType:  "application/pdf",
		Payload:    []byte("%PDF-1.4"),
		Visibility: models.VisibilityPublic,
		UploadedBy: "admin-1",
		IsActive:   true,
	}
	err := repo.Create(context.Background(), artifact)
	require.NoError(t, err)
	assert.NotEmpty(t, artifact.ID)
	assert.False(t, artifact.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArtifactRepositoryIncrementDownloadCount(t *testing.T) {
	db, mock, cleanup := newArtifactMock(t)
	defer cleanup()
	repo := NewArtifactRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE artifacts SET download_count = download_count + 1 WHERE id = $1")).
		WithArgs("art-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.IncrementDownloadCount(context.Background(), "art-1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArtifactRepositoryPurgeExpired(t *testing.T) {
	db, mock, cleanup := newArtifactMock(t)
	defer cleanup()
	repo := NewArtifactRepository(db)

	now := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM artifacts WHERE expires_at IS NOT NULL AND expires_at < $1")).
		WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 3))

	count, err := repo.PurgeExpired(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArtifactRepositoryListUnexpired(t *testing.T) {
	db, mock, cleanup := newArtifactMock(t)
	defer cleanup()
	repo := NewArtifactRepository(db)

	now := time.Now().UTC()
	expires := now.Add(48 * time.Hour)
	rows := sqlmock.NewRows([]string{
		"id", "kind", "title", "deceased_name", "description", "filename", "media_type", "file_size",
		"visibility", "is_public", "uploaded_by", "created_at", "expires_at", "download_count",
	}).AddRow("art-1", "EULOGY", "In Memoriam", "John Doe", "", "john_doe_eulogy.pdf", "application/pdf", 8,
		"PUBLIC", true, "admin-1", now, expires, 2)

	mock.ExpectQuery("SELECT id, kind, title, deceased_name").
		WithArgs("EULOGY", now).
		WillReturnRows(rows)

	artifacts, err := repo.List(context.Background(), models.ArtifactFilter{
		Kind:      models.KindEulogy,
		Unexpired: &now,
	})
	require.NoError(t, err)
	require.Len(t, artifacts, 1)
	assert.Equal(t, "art-1", artifacts[0].ID)
	assert.Equal(t, 2, artifacts[0].DownloadCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArtifactRepositoryPatchMergesOnlyProvidedFields(t *testing.T) {
	db, mock, cleanup := newArtifactMock(t)
	defer cleanup()
	repo := NewArtifactRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE artifacts SET description = $2 WHERE id = $1")).
		WithArgs("art-1", "updated").
		WillReturnResult(sqlmock.NewResult(0, 1))

	desc := "updated"
	err := repo.Patch(context.Background(), "art-1", models.ArtifactPatch{Description: &desc})
	require.NoError(t, err)

	// Empty patch issues no statement at all.
	err = repo.Patch(context.Background(), "art-1", models.ArtifactPatch{})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArtifactRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newArtifactMock(t)
	defer cleanup()
	repo := NewArtifactRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM artifacts WHERE id = $1")).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	deleted, err := repo.Delete(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}
