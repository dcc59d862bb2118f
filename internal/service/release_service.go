package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/twoem/portal-api/internal/models"
	appErrors "github.com/twoem/portal-api/pkg/errors"
)

type releaseArtifactRepository interface {
	FindByID(ctx context.Context, id string) (*models.Artifact, error)
	List(ctx context.Context, filter models.ArtifactFilter) ([]models.ArtifactMeta, error)
	Create(ctx context.Context, a *models.Artifact) error
	Patch(ctx context.Context, id string, patch models.ArtifactPatch) error
	IncrementDownloadCount(ctx context.Context, id string) error
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
	Delete(ctx context.Context, id string) (bool, error)
}

type releaseStudentRepository interface {
	FindByUserID(ctx context.Context, userID string) (*models.StudentProfile, error)
	GetCertificate(ctx context.Context, studentID string) (*models.Certificate, error)
}

// ReleaseService orchestrates artifact retrieval: fetch, expiry check,
// access check, certificate eligibility, then the one side effect (the
// download counter) and the payload.
type ReleaseService struct {
	artifacts releaseArtifactRepository
	students  releaseStudentRepository
	policy    ExpiryPolicy
	metrics   *MetricsService
	logger    *zap.Logger
	now       func() time.Time
}

// NewReleaseService constructs a ReleaseService.
func NewReleaseService(artifacts releaseArtifactRepository, students releaseStudentRepository, policy ExpiryPolicy, metrics *MetricsService, logger *zap.Logger) *ReleaseService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReleaseService{
		artifacts: artifacts,
		students:  students,
		policy:    policy,
		metrics:   metrics,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Release runs the full gate sequence for an artifact. Each step
// short-circuits; the counter increments only after every check passed,
// exactly once per granted release.
func (s *ReleaseService) Release(ctx context.Context, artifactID string, caller models.Caller) (*models.ReleaseResult, error) {
	artifact, err := s.artifacts.FindByID(ctx, artifactID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.deny(artifactID, "not_found")
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "artifact store unavailable")
	}

	if artifact.ExpiresAt != nil && IsExpired(*artifact.ExpiresAt, s.now()) {
		s.deny(artifactID, "gone")
		return nil, appErrors.ErrGone
	}

	if err := Authorize(caller, artifact); err != nil {
		appErr := appErrors.FromError(err)
		s.deny(artifactID, appErr.Code)
		return nil, err
	}

	if artifact.Kind == models.KindCertificate {
		if err := s.checkEligibility(ctx, caller); err != nil {
			return nil, err
		}
	}

	if err := s.artifacts.IncrementDownloadCount(ctx, artifact.ID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "artifact store unavailable")
	}

	if s.metrics != nil {
		s.metrics.RecordRelease(string(artifact.Kind))
	}
	s.logger.Info("artifact released",
		zap.String("artifact_id", artifact.ID),
		zap.String("kind", string(artifact.Kind)),
		zap.String("caller", caller.UserID),
	)

	mediaType := artifact.MediaType
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}
	return &models.ReleaseResult{
		Payload:   artifact.Payload,
		Filename:  artifact.Filename,
		MediaType: mediaType,
	}, nil
}

// ReleaseOwnCertificate resolves the caller's certificate artifact and
// runs it through the release sequence.
func (s *ReleaseService) ReleaseOwnCertificate(ctx context.Context, caller models.Caller) (*models.ReleaseResult, error) {
	if !caller.Authenticated {
		return nil, appErrors.ErrUnauthorized
	}
	profile, err := s.students.FindByUserID(ctx, caller.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "student store unavailable")
	}
	cert, err := s.students.GetCertificate(ctx, profile.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.deny("certificate", "not_found")
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "student store unavailable")
	}
	return s.Release(ctx, cert.ArtifactID, caller)
}

func (s *ReleaseService) checkEligibility(ctx context.Context, caller models.Caller) error {
	if !caller.Authenticated {
		s.deny("certificate", appErrors.ErrUnauthorized.Code)
		return appErrors.ErrUnauthorized
	}
	if caller.Role == models.RoleAdmin {
		return nil
	}
	profile, err := s.students.FindByUserID(ctx, caller.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrForbidden
		}
		return appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "student store unavailable")
	}
	result := EvaluateEligibility(profile)
	if !result.Eligible {
		s.deny("certificate", result.Reason)
		return appErrors.Forbidden(result.Reason, "certificate not releasable")
	}
	return nil
}

// PurgeExpired deletes every expiry-bearing artifact whose expiry has
// passed. Admin only; returns the number removed.
func (s *ReleaseService) PurgeExpired(ctx context.Context, caller models.Caller) (int, error) {
	if !caller.Authenticated {
		return 0, appErrors.ErrUnauthorized
	}
	if caller.Role != models.RoleAdmin {
		return 0, appErrors.ErrForbidden
	}

	count, err := s.artifacts.PurgeExpired(ctx, s.now())
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "artifact store unavailable")
	}
	if s.metrics != nil {
		s.metrics.RecordPurge(count)
	}
	s.logger.Info("expired artifacts purged", zap.Int("count", count), zap.String("admin", caller.UserID))
	return count, nil
}

func (s *ReleaseService) deny(artifactID, reason string) {
	if s.metrics != nil {
		s.metrics.RecordDenial(reason)
	}
	s.logger.Debug("release denied", zap.String("artifact_id", artifactID), zap.String("reason", reason))
}
