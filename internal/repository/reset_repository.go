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

// ResetRepository manages password reset requests.
type ResetRepository struct {
	db *sqlx.DB
}

// NewResetRepository constructs a ResetRepository.
func NewResetRepository(db *sqlx.DB) *ResetRepository {
	return &ResetRepository{db: db}
}

// Create inserts a pending reset request.
func (r *ResetRepository) Create(ctx context.Context, req *models.PasswordResetRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.RequestedAt.IsZero() {
		req.RequestedAt = time.Now().UTC()
	}
	req.Status = models.ResetPending

	query := `INSERT INTO password_resets (id, user_id, email, status, reset_code, requested_at)
        VALUES ($1, $2, $3, $4, '', $5)`
	if _, err := r.db.ExecContext(ctx, query, req.ID, req.UserID, req.Email, req.Status, req.RequestedAt); err != nil {
		return fmt.Errorf("create reset request: %w", err)
	}
	return nil
}

// FindByID fetches a reset request.
func (r *ResetRepository) FindByID(ctx context.Context, id string) (*models.PasswordResetRequest, error) {
	var req models.PasswordResetRequest
	if err := r.db.GetContext(ctx, &req, "SELECT * FROM password_resets WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &req, nil
}

// List returns reset requests, newest first, optionally scoped to a status.
func (r *ResetRepository) List(ctx context.Context, status models.ResetStatus) ([]models.PasswordResetRequest, error) {
	var requests []models.PasswordResetRequest
	if status == "" {
		if err := r.db.SelectContext(ctx, &requests, "SELECT * FROM password_resets ORDER BY requested_at DESC"); err != nil {
			return nil, fmt.Errorf("list reset requests: %w", err)
		}
		return requests, nil
	}
	if err := r.db.SelectContext(ctx, &requests,
		"SELECT * FROM password_resets WHERE status = $1 ORDER BY requested_at DESC", status,
	); err != nil {
		return nil, fmt.Errorf("list reset requests: %w", err)
	}
	return requests, nil
}

// Approve transitions a pending request to APPROVED, recording the code
// and its expiry. The WHERE clause guards the transition so a request
// can never be approved twice or approved after rejection.
func (r *ResetRepository) Approve(ctx context.Context, id, code string, decidedAt, expiresAt time.Time) error {
	query := `UPDATE password_resets
        SET status = $2, reset_code = $3, decided_at = $4, expires_at = $5
        WHERE id = $1 AND status = $6`
	result, err := r.db.ExecContext(ctx, query, id, models.ResetApproved, code, decidedAt, expiresAt, models.ResetPending)
	if err != nil {
		return fmt.Errorf("approve reset request: %w", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Reject transitions a pending request to REJECTED.
func (r *ResetRepository) Reject(ctx context.Context, id string, decidedAt time.Time) error {
	query := "UPDATE password_resets SET status = $2, decided_at = $3 WHERE id = $1 AND status = $4"
	result, err := r.db.ExecContext(ctx, query, id, models.ResetRejected, decidedAt, models.ResetPending)
	if err != nil {
		return fmt.Errorf("reject reset request: %w", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// FindApproved returns the approved, unused request for an email/code pair.
func (r *ResetRepository) FindApproved(ctx context.Context, email, code string) (*models.PasswordResetRequest, error) {
	var req models.PasswordResetRequest
	query := `SELECT * FROM password_resets
        WHERE email = $1 AND reset_code = $2 AND status = $3
        ORDER BY requested_at DESC LIMIT 1`
	if err := r.db.GetContext(ctx, &req, query, email, code, models.ResetApproved); err != nil {
		return nil, err
	}
	return &req, nil
}

// MarkUsed finalizes a redeemed request so the code cannot be replayed.
func (r *ResetRepository) MarkUsed(ctx context.Context, id string) error {
	query := "UPDATE password_resets SET status = $2 WHERE id = $1 AND status = $3"
	result, err := r.db.ExecContext(ctx, query, id, models.ResetUsed, models.ResetApproved)
	if err != nil {
		return fmt.Errorf("mark reset used: %w", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
