package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/twoem/portal-api/internal/models"
)

// CatalogRepository manages the public services catalog.
type CatalogRepository struct {
	db *sqlx.DB
}

// NewCatalogRepository constructs a CatalogRepository.
func NewCatalogRepository(db *sqlx.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// Count returns the number of catalog entries.
func (r *CatalogRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM service_catalog"); err != nil {
		return 0, fmt.Errorf("count catalog: %w", err)
	}
	return count, nil
}

// Create inserts a catalog entry.
func (r *CatalogRepository) Create(ctx context.Context, entry *models.ServiceEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	query := `INSERT INTO service_catalog (id, name, category, description, image_url, is_active, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := r.db.ExecContext(ctx, query,
		entry.ID, entry.Name, entry.Category, entry.Description, entry.ImageURL, entry.IsActive, entry.CreatedAt,
	); err != nil {
		return fmt.Errorf("create catalog entry: %w", err)
	}
	return nil
}

// ListActive returns entries visible on the public site.
func (r *CatalogRepository) ListActive(ctx context.Context) ([]models.ServiceEntry, error) {
	var entries []models.ServiceEntry
	query := "SELECT * FROM service_catalog WHERE is_active = TRUE ORDER BY name"
	if err := r.db.SelectContext(ctx, &entries, query); err != nil {
		return nil, fmt.Errorf("list catalog: %w", err)
	}
	return entries, nil
}

// Patch merges provided fields into a catalog entry.
func (r *CatalogRepository) Patch(ctx context.Context, id string, patch models.ServiceEntryPatch) error {
	sets := []string{}
	args := []interface{}{id}

	if patch.Name != nil {
		sets = append(sets, fmt.Sprintf("name = $%d", len(args)+1))
		args = append(args, *patch.Name)
	}
	if patch.Category != nil {
		sets = append(sets, fmt.Sprintf("category = $%d", len(args)+1))
		args = append(args, *patch.Category)
	}
	if patch.Description != nil {
		sets = append(sets, fmt.Sprintf("description = $%d", len(args)+1))
		args = append(args, *patch.Description)
	}
	if patch.ImageURL != nil {
		sets = append(sets, fmt.Sprintf("image_url = $%d", len(args)+1))
		args = append(args, *patch.ImageURL)
	}
	if patch.IsActive != nil {
		sets = append(sets, fmt.Sprintf("is_active = $%d", len(args)+1))
		args = append(args, *patch.IsActive)
	}
	if len(sets) == 0 {
		return nil
	}

	query := fmt.Sprintf("UPDATE service_catalog SET %s WHERE id = $1", strings.Join(sets, ", "))
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("patch catalog entry: %w", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
