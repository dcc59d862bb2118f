package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twoem/portal-api/internal/models"
	"github.com/twoem/portal-api/internal/service"
	"github.com/twoem/portal-api/pkg/response"
)

type fakeArtifactRepo struct {
	artifacts  map[string]models.Artifact
	increments map[string]int
}

func (f *fakeArtifactRepo) FindByID(ctx context.Context, id string) (*models.Artifact, error) {
	if a, ok := f.artifacts[id]; ok {
		return &a, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeArtifactRepo) List(ctx context.Context, filter models.ArtifactFilter) ([]models.ArtifactMeta, error) {
	return nil, nil
}

func (f *fakeArtifactRepo) Create(ctx context.Context, a *models.Artifact) error { return nil }

func (f *fakeArtifactRepo) Patch(ctx context.Context, id string, patch models.ArtifactPatch) error {
	return nil
}

func (f *fakeArtifactRepo) IncrementDownloadCount(ctx context.Context, id string) error {
	if f.increments == nil {
		f.increments = make(map[string]int)
	}
	f.increments[id]++
	return nil
}

func (f *fakeArtifactRepo) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	return 0, nil
}

func (f *fakeArtifactRepo) Delete(ctx context.Context, id string) (bool, error) { return false, nil }

type fakeStudentRepo struct{}

func (f *fakeStudentRepo) FindByUserID(ctx context.Context, userID string) (*models.StudentProfile, error) {
	return nil, sql.ErrNoRows
}

func (f *fakeStudentRepo) GetCertificate(ctx context.Context, studentID string) (*models.Certificate, error) {
	return nil, sql.ErrNoRows
}

func newDownloadRouter(repo *fakeArtifactRepo) *gin.Engine {
	gin.SetMode(gin.TestMode)
	release := service.NewReleaseService(repo, &fakeStudentRepo{}, service.NewExpiryPolicy(3, 24*time.Hour), nil, nil)
	handler := NewArtifactHandler(nil, release)

	r := gin.New()
	r.GET("/artifacts/:id/download", handler.Download)
	return r
}

func TestDownloadPublicArtifactAnonymous(t *testing.T) {
	repo := &fakeArtifactRepo{artifacts: map[string]models.Artifact{
		"art-1": {
			ID:         "art-1",
			Kind:       models.KindFile,
			Filename:   "notes.pdf",
			MediaType:  "application/pdf",
			Payload:    []byte("%PDF-1.4"),
			Visibility: models.VisibilityPublic,
			IsActive:   true,
		},
	}}
	router := newDownloadRouter(repo)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/artifacts/art-1/download", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "notes.pdf")
	assert.Equal(t, "%PDF-1.4", rec.Body.String())
	assert.Equal(t, 1, repo.increments["art-1"])
}

func TestDownloadPrivateArtifactAnonymousIsUnauthorized(t *testing.T) {
	repo := &fakeArtifactRepo{artifacts: map[string]models.Artifact{
		"art-1": {
			ID:         "art-1",
			Kind:       models.KindFile,
			Payload:    []byte("secret"),
			Visibility: models.VisibilityPrivate,
			IsActive:   true,
		},
	}}
	router := newDownloadRouter(repo)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/artifacts/art-1/download", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "UNAUTHORIZED", envelope.Error.Code)
	assert.Zero(t, repo.increments["art-1"])
}

func TestDownloadExpiredArtifactAnswersGone(t *testing.T) {
	expiresAt := time.Now().UTC().Add(-time.Hour)
	repo := &fakeArtifactRepo{artifacts: map[string]models.Artifact{
		"eul-1": {
			ID:         "eul-1",
			Kind:       models.KindEulogy,
			Payload:    []byte("%PDF-1.4"),
			Visibility: models.VisibilityPublic,
			ExpiresAt:  &expiresAt,
			IsActive:   true,
		},
	}}
	router := newDownloadRouter(repo)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/artifacts/eul-1/download", nil))

	assert.Equal(t, http.StatusGone, rec.Code)
	assert.Zero(t, repo.increments["eul-1"])
}

func TestDownloadUnknownArtifact(t *testing.T) {
	router := newDownloadRouter(&fakeArtifactRepo{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/artifacts/missing/download", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
