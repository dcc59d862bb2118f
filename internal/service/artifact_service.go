package service

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/twoem/portal-api/internal/models"
	appErrors "github.com/twoem/portal-api/pkg/errors"
)

const (
	cacheKeyPublicFiles   = "artifacts:public:files"
	cacheKeyPublicEulogy  = "artifacts:public:eulogies"
	cacheInvalidatePrefix = "artifacts:public:*"
)

// ArtifactsPolicy bundles upload validation limits and listing cache TTL.
type ArtifactsPolicy struct {
	MaxFileSizeBytes int64
	AllowedTypes     []string
	ListingCacheTTL  time.Duration
}

// ArtifactService manages uploads, listings and metadata updates for
// files and eulogies. Payload retrieval goes through ReleaseService.
type ArtifactService struct {
	artifacts releaseArtifactRepository
	cache     *CacheService
	expiry    ExpiryPolicy
	policy    ArtifactsPolicy
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewArtifactService constructs an ArtifactService.
func NewArtifactService(artifacts releaseArtifactRepository, cache *CacheService, expiry ExpiryPolicy, policy ArtifactsPolicy, validate *validator.Validate, logger *zap.Logger) *ArtifactService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ArtifactService{
		artifacts: artifacts,
		cache:     cache,
		expiry:    expiry,
		policy:    policy,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// UploadFile stores a general download file. Public uploads are
// anonymous-retrievable; others fall under the owner rule.
func (s *ArtifactService) UploadFile(ctx context.Context, uploadedBy string, req models.UploadFileRequest) (*models.ArtifactMeta, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid file payload")
	}
	payload, err := s.decodePayload(req.Content, req.MediaType)
	if err != nil {
		return nil, err
	}

	artifact := &models.Artifact{
		ID:          uuid.NewString(),
		Kind:        models.KindFile,
		Title:       req.Filename,
		Description: req.Description,
		Filename:    req.Filename,
		MediaType:   req.MediaType,
		FileSize:    int64(len(payload)),
		Payload:     payload,
		Visibility:  models.VisibilityOwner,
		IsPublic:    req.IsPublic,
		UploadedBy:  uploadedBy,
		CreatedAt:   s.now(),
		IsActive:    true,
	}
	if req.IsPublic {
		artifact.Visibility = models.VisibilityPublic
	}

	if err := s.artifacts.Create(ctx, artifact); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to store file")
	}
	s.invalidateListings(ctx)
	s.logger.Info("file uploaded",
		zap.String("artifact_id", artifact.ID),
		zap.String("filename", artifact.Filename),
		zap.Bool("public", artifact.IsPublic))
	return metaOf(artifact), nil
}

// UploadEulogy publishes a memorial document that expires a fixed
// number of days after upload.
func (s *ArtifactService) UploadEulogy(ctx context.Context, uploadedBy string, req models.UploadEulogyRequest) (*models.ArtifactMeta, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid eulogy payload")
	}
	payload, err := s.decodePayload(req.Content, "application/pdf")
	if err != nil {
		return nil, err
	}

	createdAt := s.now()
	expiresAt := ComputeExpiry(createdAt, s.expiry.EulogyTTL)
	artifact := &models.Artifact{
		ID:           uuid.NewString(),
		Kind:         models.KindEulogy,
		Title:        req.Title,
		DeceasedName: req.DeceasedName,
		Description:  req.Description,
		Filename:     fmt.Sprintf("%s.pdf", strings.ReplaceAll(strings.ToLower(req.DeceasedName), " ", "_")),
		MediaType:    "application/pdf",
		FileSize:     int64(len(payload)),
		Payload:      payload,
		Visibility:   models.VisibilityPublic,
		IsPublic:     true,
		UploadedBy:   uploadedBy,
		CreatedAt:    createdAt,
		ExpiresAt:    &expiresAt,
		IsActive:     true,
	}

	if err := s.artifacts.Create(ctx, artifact); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to store eulogy")
	}
	s.invalidateListings(ctx)
	s.logger.Info("eulogy published",
		zap.String("artifact_id", artifact.ID),
		zap.String("deceased", artifact.DeceasedName),
		zap.Time("expires_at", expiresAt))
	return metaOf(artifact), nil
}

// ListPublicFiles returns unexpired public files, served from cache
// when possible.
func (s *ArtifactService) ListPublicFiles(ctx context.Context) ([]models.ArtifactMeta, error) {
	return s.listPublic(ctx, models.KindFile, cacheKeyPublicFiles)
}

// ListPublicEulogies returns unexpired public eulogies.
func (s *ArtifactService) ListPublicEulogies(ctx context.Context) ([]models.ArtifactMeta, error) {
	return s.listPublic(ctx, models.KindEulogy, cacheKeyPublicEulogy)
}

// ListAll returns every artifact of the given kind, expired included.
// Admin listings bypass the cache.
func (s *ArtifactService) ListAll(ctx context.Context, kind models.ArtifactKind) ([]models.ArtifactMeta, error) {
	items, err := s.artifacts.List(ctx, models.ArtifactFilter{Kind: kind})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to list artifacts")
	}
	return items, nil
}

// ListMine returns artifacts uploaded by the given user.
func (s *ArtifactService) ListMine(ctx context.Context, userID string) ([]models.ArtifactMeta, error) {
	items, err := s.artifacts.List(ctx, models.ArtifactFilter{UploadedBy: userID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to list artifacts")
	}
	return items, nil
}

// Patch applies a partial metadata update. Only the uploader or an
// admin may modify an artifact.
func (s *ArtifactService) Patch(ctx context.Context, caller models.Caller, id string, patch models.ArtifactPatch) (*models.ArtifactMeta, error) {
	artifact, err := s.findArtifact(ctx, id)
	if err != nil {
		return nil, err
	}
	if !caller.IsAdmin() && artifact.UploadedBy != caller.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot modify another user's artifact")
	}
	if err := s.artifacts.Patch(ctx, id, patch); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to update artifact")
	}
	s.invalidateListings(ctx)
	updated, err := s.findArtifact(ctx, id)
	if err != nil {
		return nil, err
	}
	return metaOf(updated), nil
}

// Delete removes an artifact row outright. Only the uploader or an
// admin may delete.
func (s *ArtifactService) Delete(ctx context.Context, caller models.Caller, id string) error {
	artifact, err := s.findArtifact(ctx, id)
	if err != nil {
		return err
	}
	if !caller.IsAdmin() && artifact.UploadedBy != caller.UserID {
		return appErrors.Clone(appErrors.ErrForbidden, "cannot delete another user's artifact")
	}
	deleted, err := s.artifacts.Delete(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to delete artifact")
	}
	if !deleted {
		return appErrors.Clone(appErrors.ErrNotFound, "artifact not found")
	}
	s.invalidateListings(ctx)
	s.logger.Info("artifact deleted", zap.String("artifact_id", id), zap.String("by", caller.UserID))
	return nil
}

func (s *ArtifactService) listPublic(ctx context.Context, kind models.ArtifactKind, cacheKey string) ([]models.ArtifactMeta, error) {
	var cached []models.ArtifactMeta
	if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
		return cached, nil
	}

	now := s.now()
	items, err := s.artifacts.List(ctx, models.ArtifactFilter{
		Kind:       kind,
		PublicOnly: true,
		Unexpired:  &now,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to list artifacts")
	}

	if err := s.cache.Set(ctx, cacheKey, items, s.policy.ListingCacheTTL); err != nil {
		s.logger.Debug("listing cache write failed", zap.Error(err))
	}
	return items, nil
}

func (s *ArtifactService) decodePayload(content, mediaType string) ([]byte, error) {
	if len(s.policy.AllowedTypes) > 0 && !s.typeAllowed(mediaType) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("media type %q is not allowed", mediaType))
	}
	payload, err := base64.StdEncoding.DecodeString(content)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "content must be base64 encoded")
	}
	if len(payload) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "content must not be empty")
	}
	if s.policy.MaxFileSizeBytes > 0 && int64(len(payload)) > s.policy.MaxFileSizeBytes {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds the %d byte limit", s.policy.MaxFileSizeBytes))
	}
	return payload, nil
}

func (s *ArtifactService) typeAllowed(mediaType string) bool {
	for _, t := range s.policy.AllowedTypes {
		if strings.EqualFold(t, mediaType) {
			return true
		}
	}
	return false
}

func (s *ArtifactService) invalidateListings(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, cacheInvalidatePrefix); err != nil {
		s.logger.Debug("listing cache invalidate failed", zap.Error(err))
	}
}

func (s *ArtifactService) findArtifact(ctx context.Context, id string) (*models.Artifact, error) {
	artifact, err := s.artifacts.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "artifact not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to load artifact")
	}
	return artifact, nil
}

func metaOf(a *models.Artifact) *models.ArtifactMeta {
	return &models.ArtifactMeta{
		ID:            a.ID,
		Kind:          a.Kind,
		Title:         a.Title,
		DeceasedName:  a.DeceasedName,
		Description:   a.Description,
		Filename:      a.Filename,
		MediaType:     a.MediaType,
		FileSize:      a.FileSize,
		Visibility:    a.Visibility,
		IsPublic:      a.IsPublic,
		UploadedBy:    a.UploadedBy,
		CreatedAt:     a.CreatedAt,
		ExpiresAt:     a.ExpiresAt,
		DownloadCount: a.DownloadCount,
	}
}
