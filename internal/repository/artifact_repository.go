package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/twoem/portal-api/internal/models"
)

// ArtifactRepository manages persistence for binary-bearing records.
// Payloads live in a BYTEA column next to their metadata so a release
// is a single fetch.
type ArtifactRepository struct {
	db *sqlx.DB
}

// NewArtifactRepository constructs an ArtifactRepository.
func NewArtifactRepository(db *sqlx.DB) *ArtifactRepository {
	return &ArtifactRepository{db: db}
}

// Create inserts a new artifact, generating the identifier when absent.
func (r *ArtifactRepository) Create(ctx context.Context, a *models.Artifact) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	query := `INSERT INTO artifacts
        (id, kind, title, deceased_name, description, filename, media_type, file_size, payload,
         visibility, is_public, targets, uploaded_by, created_at, expires_at, download_count, is_active)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`
	if _, err := r.db.ExecContext(ctx, query,
		a.ID, a.Kind, a.Title, a.DeceasedName, a.Description, a.Filename, a.MediaType, a.FileSize, a.Payload,
		a.Visibility, a.IsPublic, a.Targets, a.UploadedBy, a.CreatedAt, a.ExpiresAt, a.DownloadCount, a.IsActive,
	); err != nil {
		return fmt.Errorf("create artifact: %w", err)
	}
	return nil
}

// FindByID fetches a full artifact including its payload.
func (r *ArtifactRepository) FindByID(ctx context.Context, id string) (*models.Artifact, error) {
	var artifact models.Artifact
	query := "SELECT * FROM artifacts WHERE id = $1"
	if err := r.db.GetContext(ctx, &artifact, query, id); err != nil {
		return nil, err
	}
	return &artifact, nil
}

// List returns artifact metadata (payloads excluded) matching the filter.
func (r *ArtifactRepository) List(ctx context.Context, filter models.ArtifactFilter) ([]models.ArtifactMeta, error) {
	conditions := []string{"is_active = TRUE"}
	args := []interface{}{}

	if filter.Kind != "" {
		conditions = append(conditions, fmt.Sprintf("kind = $%d", len(args)+1))
		args = append(args, filter.Kind)
	}
	if filter.UploadedBy != "" {
		conditions = append(conditions, fmt.Sprintf("(uploaded_by = $%d OR is_public = TRUE)", len(args)+1))
		args = append(args, filter.UploadedBy)
	}
	if filter.PublicOnly {
		conditions = append(conditions, "(is_public = TRUE OR visibility = 'PUBLIC')")
	}
	if filter.Unexpired != nil {
		conditions = append(conditions, fmt.Sprintf("(expires_at IS NULL OR expires_at > $%d)", len(args)+1))
		args = append(args, *filter.Unexpired)
	}

	query := fmt.Sprintf(`SELECT id, kind, title, deceased_name, description, filename, media_type, file_size,
        visibility, is_public, uploaded_by, created_at, expires_at, download_count
        FROM artifacts WHERE %s ORDER BY created_at DESC`, strings.Join(conditions, " AND "))

	var artifacts []models.ArtifactMeta
	if err := r.db.SelectContext(ctx, &artifacts, query, args...); err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	return artifacts, nil
}

// Patch merges the provided fields into the stored record, leaving the
// rest untouched.
func (r *ArtifactRepository) Patch(ctx context.Context, id string, patch models.ArtifactPatch) error {
	sets := []string{}
	args := []interface{}{id}

	if patch.Description != nil {
		sets = append(sets, fmt.Sprintf("description = $%d", len(args)+1))
		args = append(args, *patch.Description)
	}
	if patch.IsPublic != nil {
		sets = append(sets, fmt.Sprintf("is_public = $%d", len(args)+1))
		args = append(args, *patch.IsPublic)
	}
	if patch.IsActive != nil {
		sets = append(sets, fmt.Sprintf("is_active = $%d", len(args)+1))
		args = append(args, *patch.IsActive)
	}
	if len(sets) == 0 {
		return nil
	}

	query := fmt.Sprintf("UPDATE artifacts SET %s WHERE id = $1", strings.Join(sets, ", "))
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("patch artifact: %w", err)
	}
	return nil
}

// IncrementDownloadCount bumps the counter by one in a single UPDATE so
// concurrent releases cannot lose an increment.
func (r *ArtifactRepository) IncrementDownloadCount(ctx context.Context, id string) error {
	query := "UPDATE artifacts SET download_count = download_count + 1 WHERE id = $1"
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("increment download count: %w", err)
	}
	return nil
}

// PurgeExpired deletes artifacts whose expiry has passed. Artifacts
// without an expiry are never touched.
func (r *ArtifactRepository) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	query := "DELETE FROM artifacts WHERE expires_at IS NOT NULL AND expires_at < $1"
	result, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("purge expired artifacts: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge expired artifacts: %w", err)
	}
	return int(rows), nil
}

// Delete removes an artifact outright.
func (r *ArtifactRepository) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM artifacts WHERE id = $1", id)
	if err != nil {
		return false, fmt.Errorf("delete artifact: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete artifact: %w", err)
	}
	return rows > 0, nil
}
