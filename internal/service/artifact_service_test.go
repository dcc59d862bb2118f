package service

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twoem/portal-api/internal/models"
	appErrors "github.com/twoem/portal-api/pkg/errors"
)

func newArtifactService(repo *mockArtifactRepo, now time.Time) *ArtifactService {
	policy := ArtifactsPolicy{
		MaxFileSizeBytes: 1024,
		AllowedTypes:     []string{"application/pdf", "image/png"},
	}
	svc := NewArtifactService(repo, NewCacheService(nil, nil, 0, nil, false), NewExpiryPolicy(3, 24*time.Hour), policy, nil, nil)
	svc.now = func() time.Time { return now }
	return svc
}

func encoded(payload string) string {
	return base64.StdEncoding.EncodeToString([]byte(payload))
}

func TestUploadFilePublic(t *testing.T) {
	repo := &mockArtifactRepo{}
	svc := newArtifactService(repo, time.Now().UTC())

	meta, err := svc.UploadFile(context.Background(), "admin-1", models.UploadFileRequest{
		Filename:  "handbook.pdf",
		MediaType: "application/pdf",
		Content:   encoded("%PDF-1.4"),
		IsPublic:  true,
	})

	require.NoError(t, err)
	assert.Equal(t, models.VisibilityPublic, meta.Visibility)
	assert.Nil(t, meta.ExpiresAt, "plain files never expire")

	stored := repo.artifacts[meta.ID]
	assert.Equal(t, []byte("%PDF-1.4"), stored.Payload)
	assert.True(t, stored.IsActive)
}

func TestUploadFilePrivateFallsUnderOwnerRule(t *testing.T) {
	repo := &mockArtifactRepo{}
	svc := newArtifactService(repo, time.Now().UTC())

	meta, err := svc.UploadFile(context.Background(), "user-1", models.UploadFileRequest{
		Filename:  "draft.pdf",
		MediaType: "application/pdf",
		Content:   encoded("%PDF-1.4"),
	})

	require.NoError(t, err)
	assert.Equal(t, models.VisibilityOwner, meta.Visibility)
	assert.False(t, meta.IsPublic)
}

func TestUploadFileRejectsDisallowedType(t *testing.T) {
	svc := newArtifactService(&mockArtifactRepo{}, time.Now().UTC())

	_, err := svc.UploadFile(context.Background(), "user-1", models.UploadFileRequest{
		Filename:  "script.sh",
		MediaType: "application/x-sh",
		Content:   encoded("#!/bin/sh"),
	})

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestUploadFileRejectsOversizedPayload(t *testing.T) {
	svc := newArtifactService(&mockArtifactRepo{}, time.Now().UTC())

	big := make([]byte, 2048)
	_, err := svc.UploadFile(context.Background(), "user-1", models.UploadFileRequest{
		Filename:  "big.pdf",
		MediaType: "application/pdf",
		Content:   base64.StdEncoding.EncodeToString(big),
	})

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestUploadFileRejectsBadBase64(t *testing.T) {
	svc := newArtifactService(&mockArtifactRepo{}, time.Now().UTC())

	_, err := svc.UploadFile(context.Background(), "user-1", models.UploadFileRequest{
		Filename:  "notes.pdf",
		MediaType: "application/pdf",
		Content:   "not base64!!",
	})

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestUploadEulogySetsExpiry(t *testing.T) {
	uploaded := time.Date(2026, 3, 7, 9, 0, 0, 0, time.UTC)
	repo := &mockArtifactRepo{}
	svc := newArtifactService(repo, uploaded)

	meta, err := svc.UploadEulogy(context.Background(), "admin-1", models.UploadEulogyRequest{
		Title:        "In Loving Memory",
		DeceasedName: "John Doe",
		Content:      encoded("%PDF-1.4"),
	})

	require.NoError(t, err)
	assert.Equal(t, models.KindEulogy, meta.Kind)
	assert.Equal(t, models.VisibilityPublic, meta.Visibility)
	require.NotNil(t, meta.ExpiresAt)
	assert.Equal(t, uploaded.Add(3*24*time.Hour), *meta.ExpiresAt)
	assert.Equal(t, "john_doe.pdf", meta.Filename)
}

func TestPatchArtifactOwnershipEnforced(t *testing.T) {
	repo := &mockArtifactRepo{artifacts: map[string]models.Artifact{
		"art-1": {ID: "art-1", Kind: models.KindFile, UploadedBy: "user-1", IsActive: true},
	}}
	svc := newArtifactService(repo, time.Now().UTC())

	otherUser := models.Caller{UserID: "user-2", Role: models.RoleUser, Authenticated: true}
	flag := false
	_, err := svc.Patch(context.Background(), otherUser, "art-1", models.ArtifactPatch{IsActive: &flag})

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestDeleteArtifactByUploader(t *testing.T) {
	repo := &mockArtifactRepo{artifacts: map[string]models.Artifact{
		"art-1": {ID: "art-1", Kind: models.KindFile, UploadedBy: "user-1", IsActive: true},
	}}
	svc := newArtifactService(repo, time.Now().UTC())

	owner := models.Caller{UserID: "user-1", Role: models.RoleUser, Authenticated: true}
	err := svc.Delete(context.Background(), owner, "art-1")

	require.NoError(t, err)
	assert.Empty(t, repo.artifacts)
}
