package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twoem/portal-api/internal/models"
	appErrors "github.com/twoem/portal-api/pkg/errors"
)

type mockArtifactRepo struct {
	artifacts  map[string]models.Artifact
	increments map[string]int
	failIncr   error
	purged     int
}

func (m *mockArtifactRepo) FindByID(ctx context.Context, id string) (*models.Artifact, error) {
	if a, ok := m.artifacts[id]; ok {
		return &a, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockArtifactRepo) List(ctx context.Context, filter models.ArtifactFilter) ([]models.ArtifactMeta, error) {
	return nil, nil
}

func (m *mockArtifactRepo) Create(ctx context.Context, a *models.Artifact) error {
	if m.artifacts == nil {
		m.artifacts = make(map[string]models.Artifact)
	}
	m.artifacts[a.ID] = *a
	return nil
}

func (m *mockArtifactRepo) Patch(ctx context.Context, id string, patch models.ArtifactPatch) error {
	return nil
}

func (m *mockArtifactRepo) IncrementDownloadCount(ctx context.Context, id string) error {
	if m.failIncr != nil {
		return m.failIncr
	}
	if m.increments == nil {
		m.increments = make(map[string]int)
	}
	m.increments[id]++
	return nil
}

func (m *mockArtifactRepo) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	count := 0
	for id, a := range m.artifacts {
		if a.ExpiresAt != nil && now.After(*a.ExpiresAt) {
			delete(m.artifacts, id)
			count++
		}
	}
	m.purged += count
	return count, nil
}

func (m *mockArtifactRepo) Delete(ctx context.Context, id string) (bool, error) {
	if _, ok := m.artifacts[id]; !ok {
		return false, nil
	}
	delete(m.artifacts, id)
	return true, nil
}

type mockReleaseStudentRepo struct {
	profiles     map[string]models.StudentProfile
	certificates map[string]models.Certificate
}

func (m *mockReleaseStudentRepo) FindByUserID(ctx context.Context, userID string) (*models.StudentProfile, error) {
	if p, ok := m.profiles[userID]; ok {
		return &p, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockReleaseStudentRepo) GetCertificate(ctx context.Context, studentID string) (*models.Certificate, error) {
	if c, ok := m.certificates[studentID]; ok {
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

func newReleaseService(artifacts *mockArtifactRepo, students *mockReleaseStudentRepo, now time.Time) *ReleaseService {
	svc := NewReleaseService(artifacts, students, NewExpiryPolicy(3, 24*time.Hour), nil, nil)
	svc.now = func() time.Time { return now }
	return svc
}

func TestReleasePublicFileToAnonymous(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	repo := &mockArtifactRepo{artifacts: map[string]models.Artifact{
		"art-1": {
			ID:         "art-1",
			Kind:       models.KindFile,
			Filename:   "notes.pdf",
			MediaType:  "application/pdf",
			Payload:    []byte("payload"),
			Visibility: models.VisibilityPublic,
			IsActive:   true,
		},
	}}
	svc := newReleaseService(repo, &mockReleaseStudentRepo{}, now)

	result, err := svc.Release(context.Background(), "art-1", models.Caller{})

	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), result.Payload)
	assert.Equal(t, "notes.pdf", result.Filename)
	assert.Equal(t, "application/pdf", result.MediaType)
	assert.Equal(t, 1, repo.increments["art-1"])
}

func TestReleasePrivateFileDeniedCounterUnchanged(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	repo := &mockArtifactRepo{artifacts: map[string]models.Artifact{
		"art-1": {
			ID:         "art-1",
			Kind:       models.KindFile,
			Payload:    []byte("payload"),
			Visibility: models.VisibilityPrivate,
			IsActive:   true,
		},
	}}
	svc := newReleaseService(repo, &mockReleaseStudentRepo{}, now)

	caller := models.Caller{UserID: "user-1", Role: models.RoleUser, Authenticated: true}
	_, err := svc.Release(context.Background(), "art-1", caller)

	assert.ErrorIs(t, err, appErrors.ErrForbidden)
	assert.Zero(t, repo.increments["art-1"])
}

func TestReleaseTargetedCertificateToNonTarget(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	repo := &mockArtifactRepo{artifacts: map[string]models.Artifact{
		"cert-1": {
			ID:         "cert-1",
			Kind:       models.KindCertificate,
			Payload:    []byte("cert"),
			Visibility: models.VisibilityTargeted,
			Targets:    []string{"stu-1"},
			IsActive:   true,
		},
	}}
	svc := newReleaseService(repo, &mockReleaseStudentRepo{}, now)

	caller := models.Caller{UserID: "user-2", StudentID: "stu-2", Role: models.RoleStudent, Authenticated: true}
	_, err := svc.Release(context.Background(), "cert-1", caller)

	assert.ErrorIs(t, err, appErrors.ErrForbidden)
	assert.Zero(t, repo.increments["cert-1"])
}

func certificateFixture(studentID string) models.Artifact {
	return models.Artifact{
		ID:         "cert-1",
		Kind:       models.KindCertificate,
		Filename:   "certificate.pdf",
		MediaType:  "application/pdf",
		Payload:    []byte("%PDF-1.4"),
		Visibility: models.VisibilityTargeted,
		Targets:    []string{studentID},
		IsActive:   true,
	}
}

func TestReleaseCertificateScoreBelowThreshold(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	repo := &mockArtifactRepo{artifacts: map[string]models.Artifact{"cert-1": certificateFixture("stu-1")}}
	students := &mockReleaseStudentRepo{profiles: map[string]models.StudentProfile{
		"user-1": {
			ID:          "stu-1",
			UserID:      "user-1",
			Finance:     models.FinanceRecord{TotalFees: 1000, PaidAmount: 1000},
			Scores:      []models.SubjectScore{{Subject: "Mathematics", Score: f64(55)}},
			Certificate: &models.Certificate{ArtifactID: "cert-1", Payload: []byte("%PDF-1.4")},
		},
	}}
	svc := newReleaseService(repo, students, now)

	caller := models.Caller{UserID: "user-1", StudentID: "stu-1", Role: models.RoleStudent, Authenticated: true}
	_, err := svc.Release(context.Background(), "cert-1", caller)

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
	assert.Equal(t, appErrors.ReasonScore, appErr.Reason)
	assert.Zero(t, repo.increments["cert-1"])
}

func TestReleaseCertificateOutstandingBalance(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	repo := &mockArtifactRepo{artifacts: map[string]models.Artifact{"cert-1": certificateFixture("stu-1")}}
	students := &mockReleaseStudentRepo{profiles: map[string]models.StudentProfile{
		"user-1": {
			ID:          "stu-1",
			UserID:      "user-1",
			Finance:     models.FinanceRecord{TotalFees: 1000, PaidAmount: 500},
			Scores:      []models.SubjectScore{{Subject: "Mathematics", Score: f64(75)}},
			Certificate: &models.Certificate{ArtifactID: "cert-1", Payload: []byte("%PDF-1.4")},
		},
	}}
	svc := newReleaseService(repo, students, now)

	caller := models.Caller{UserID: "user-1", StudentID: "stu-1", Role: models.RoleStudent, Authenticated: true}
	_, err := svc.Release(context.Background(), "cert-1", caller)

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ReasonFinance, appErr.Reason)
	assert.Zero(t, repo.increments["cert-1"])
}

func TestReleaseEligibleCertificateIncrementsOnce(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	repo := &mockArtifactRepo{artifacts: map[string]models.Artifact{"cert-1": certificateFixture("stu-1")}}
	students := &mockReleaseStudentRepo{profiles: map[string]models.StudentProfile{
		"user-1": {
			ID:          "stu-1",
			UserID:      "user-1",
			Finance:     models.FinanceRecord{TotalFees: 1000, PaidAmount: 1000},
			Scores:      []models.SubjectScore{{Subject: "Mathematics", Score: f64(75)}},
			Certificate: &models.Certificate{ArtifactID: "cert-1", Payload: []byte("%PDF-1.4")},
		},
	}}
	svc := newReleaseService(repo, students, now)

	caller := models.Caller{UserID: "user-1", StudentID: "stu-1", Role: models.RoleStudent, Authenticated: true}
	result, err := svc.Release(context.Background(), "cert-1", caller)

	require.NoError(t, err)
	assert.Equal(t, "certificate.pdf", result.Filename)
	assert.Equal(t, 1, repo.increments["cert-1"])
}

func TestReleaseOwnCertificateResolvesArtifact(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	repo := &mockArtifactRepo{artifacts: map[string]models.Artifact{"cert-1": certificateFixture("stu-1")}}
	students := &mockReleaseStudentRepo{
		profiles: map[string]models.StudentProfile{
			"user-1": {
				ID:          "stu-1",
				UserID:      "user-1",
				Finance:     models.FinanceRecord{TotalFees: 1000, PaidAmount: 1000},
				Scores:      []models.SubjectScore{{Subject: "Mathematics", Score: f64(80)}},
				Certificate: &models.Certificate{ArtifactID: "cert-1", Payload: []byte("%PDF-1.4")},
			},
		},
		certificates: map[string]models.Certificate{
			"stu-1": {StudentID: "stu-1", ArtifactID: "cert-1", Payload: []byte("%PDF-1.4")},
		},
	}
	svc := newReleaseService(repo, students, now)

	caller := models.Caller{UserID: "user-1", StudentID: "stu-1", Role: models.RoleStudent, Authenticated: true}
	result, err := svc.ReleaseOwnCertificate(context.Background(), caller)

	require.NoError(t, err)
	assert.Equal(t, "certificate.pdf", result.Filename)
	assert.Equal(t, 1, repo.increments["cert-1"])
}

func TestReleaseOwnCertificateWithoutUpload(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	repo := &mockArtifactRepo{}
	students := &mockReleaseStudentRepo{profiles: map[string]models.StudentProfile{
		"user-1": {ID: "stu-1", UserID: "user-1"},
	}}
	svc := newReleaseService(repo, students, now)

	caller := models.Caller{UserID: "user-1", StudentID: "stu-1", Role: models.RoleStudent, Authenticated: true}
	_, err := svc.ReleaseOwnCertificate(context.Background(), caller)

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestReleaseExpiredEulogyAnswersGoneThenPurged(t *testing.T) {
	uploaded := time.Date(2026, 3, 7, 12, 0, 0, 0, time.UTC)
	expiresAt := uploaded.Add(3 * 24 * time.Hour)
	now := expiresAt.Add(time.Second)

	repo := &mockArtifactRepo{artifacts: map[string]models.Artifact{
		"eul-1": {
			ID:         "eul-1",
			Kind:       models.KindEulogy,
			Payload:    []byte("%PDF-1.4"),
			Visibility: models.VisibilityPublic,
			IsPublic:   true,
			CreatedAt:  uploaded,
			ExpiresAt:  &expiresAt,
			IsActive:   true,
		},
	}}
	svc := newReleaseService(repo, &mockReleaseStudentRepo{}, now)

	_, err := svc.Release(context.Background(), "eul-1", models.Caller{})
	assert.ErrorIs(t, err, appErrors.ErrGone)
	assert.Zero(t, repo.increments["eul-1"])

	adminCaller := models.Caller{UserID: "admin-1", Role: models.RoleAdmin, Authenticated: true}
	count, err := svc.PurgeExpired(context.Background(), adminCaller)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Empty(t, repo.artifacts)
}

func TestReleaseAtExpiryBoundaryStillServed(t *testing.T) {
	expiresAt := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	repo := &mockArtifactRepo{artifacts: map[string]models.Artifact{
		"eul-1": {
			ID:         "eul-1",
			Kind:       models.KindEulogy,
			Payload:    []byte("%PDF-1.4"),
			Visibility: models.VisibilityPublic,
			ExpiresAt:  &expiresAt,
			IsActive:   true,
		},
	}}
	svc := newReleaseService(repo, &mockReleaseStudentRepo{}, expiresAt)

	_, err := svc.Release(context.Background(), "eul-1", models.Caller{})

	assert.NoError(t, err)
	assert.Equal(t, 1, repo.increments["eul-1"])
}

func TestReleaseUnknownArtifact(t *testing.T) {
	svc := newReleaseService(&mockArtifactRepo{}, &mockReleaseStudentRepo{}, time.Now().UTC())

	_, err := svc.Release(context.Background(), "missing", models.Caller{})

	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestReleaseCounterFailureBlocksRelease(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	repo := &mockArtifactRepo{
		artifacts: map[string]models.Artifact{
			"art-1": {
				ID:         "art-1",
				Kind:       models.KindFile,
				Payload:    []byte("payload"),
				Visibility: models.VisibilityPublic,
				IsActive:   true,
			},
		},
		failIncr:  errors.New("connection refused"),
	}
	svc := newReleaseService(repo, &mockReleaseStudentRepo{}, now)

	_, err := svc.Release(context.Background(), "art-1", models.Caller{})

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrUnavailable.Code, appErr.Code)
}

func TestPurgeExpiredRequiresAdmin(t *testing.T) {
	svc := newReleaseService(&mockArtifactRepo{}, &mockReleaseStudentRepo{}, time.Now().UTC())

	_, err := svc.PurgeExpired(context.Background(), models.Caller{})
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)

	student := models.Caller{UserID: "user-1", Role: models.RoleStudent, Authenticated: true}
	_, err = svc.PurgeExpired(context.Background(), student)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestReleaseAdminBypassesEligibility(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	cert := certificateFixture("stu-1")
	cert.Visibility = models.VisibilityPrivate
	cert.Targets = nil
	repo := &mockArtifactRepo{artifacts: map[string]models.Artifact{"cert-1": cert}}
	svc := newReleaseService(repo, &mockReleaseStudentRepo{}, now)

	adminCaller := models.Caller{UserID: "admin-1", Role: models.RoleAdmin, Authenticated: true}
	_, err := svc.Release(context.Background(), "cert-1", adminCaller)

	assert.NoError(t, err)
	assert.Equal(t, 1, repo.increments["cert-1"])
}
