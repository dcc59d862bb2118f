package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/twoem/portal-api/internal/models"
)

// ContactRepository manages public contact submissions.
type ContactRepository struct {
	db *sqlx.DB
}

// NewContactRepository constructs a ContactRepository.
func NewContactRepository(db *sqlx.DB) *ContactRepository {
	return &ContactRepository{db: db}
}

// Create inserts a submission.
func (r *ContactRepository) Create(ctx context.Context, c *models.ContactSubmission) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.SubmittedAt.IsZero() {
		c.SubmittedAt = time.Now().UTC()
	}
	query := `INSERT INTO contact_submissions (id, name, email, message, submitted_at, is_read)
        VALUES ($1, $2, $3, $4, $5, FALSE)`
	if _, err := r.db.ExecContext(ctx, query, c.ID, c.Name, c.Email, c.Message, c.SubmittedAt); err != nil {
		return fmt.Errorf("create contact submission: %w", err)
	}
	return nil
}

// List returns submissions newest first.
func (r *ContactRepository) List(ctx context.Context) ([]models.ContactSubmission, error) {
	var submissions []models.ContactSubmission
	query := "SELECT * FROM contact_submissions ORDER BY submitted_at DESC"
	if err := r.db.SelectContext(ctx, &submissions, query); err != nil {
		return nil, fmt.Errorf("list contact submissions: %w", err)
	}
	return submissions, nil
}

// MarkRead flags a submission as handled.
func (r *ContactRepository) MarkRead(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "UPDATE contact_submissions SET is_read = TRUE WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("mark contact read: %w", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
