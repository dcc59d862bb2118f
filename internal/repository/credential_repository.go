package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/twoem/portal-api/internal/models"
)

// CredentialRepository manages sealed credential vault entries.
type CredentialRepository struct {
	db *sqlx.DB
}

// NewCredentialRepository constructs a CredentialRepository.
func NewCredentialRepository(db *sqlx.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

// Create inserts a sealed entry; plaintext never reaches this layer.
func (r *CredentialRepository) Create(ctx context.Context, c *models.Credential) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	query := `INSERT INTO credentials
        (id, first_name, email, sealed_email_password, sealed_tax_pin, sealed_tax_password, created_by, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := r.db.ExecContext(ctx, query,
		c.ID, c.FirstName, c.Email, c.SealedEmailPassword, c.SealedTaxPIN, c.SealedTaxPassword, c.CreatedBy, c.CreatedAt,
	); err != nil {
		return fmt.Errorf("create credential: %w", err)
	}
	return nil
}

// List returns vault entries newest first.
func (r *CredentialRepository) List(ctx context.Context) ([]models.Credential, error) {
	var credentials []models.Credential
	query := "SELECT * FROM credentials ORDER BY created_at DESC"
	if err := r.db.SelectContext(ctx, &credentials, query); err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	return credentials, nil
}
