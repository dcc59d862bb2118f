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

// NotificationRepository manages announcements and recipient inboxes.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository constructs a NotificationRepository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create inserts the announcement record.
func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	query := `INSERT INTO notifications (id, title, body, attachment_id, created_by, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := r.db.ExecContext(ctx, query, n.ID, n.Title, n.Body, n.AttachmentID, n.CreatedBy, n.CreatedAt); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// Deliver writes one inbox row per recipient. Called from the fan-out
// worker, possibly in batches.
func (r *NotificationRepository) Deliver(ctx context.Context, notificationID string, userIDs []string) error {
	if len(userIDs) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin deliver: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	for _, userID := range userIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO notification_inbox (id, notification_id, user_id, created_at)
             VALUES ($1, $2, $3, $4) ON CONFLICT (notification_id, user_id) DO NOTHING`,
			uuid.NewString(), notificationID, userID, now,
		); err != nil {
			return fmt.Errorf("deliver notification: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit deliver: %w", err)
	}
	return nil
}

// ListInbox returns a user's notifications, newest first.
func (r *NotificationRepository) ListInbox(ctx context.Context, userID string) ([]models.Inbox, error) {
	query := `SELECT i.id, i.notification_id, i.user_id, i.read_at, i.created_at,
        n.title, n.body, n.attachment_id
        FROM notification_inbox i
        JOIN notifications n ON n.id = i.notification_id
        WHERE i.user_id = $1
        ORDER BY i.created_at DESC`
	var inbox []models.Inbox
	if err := r.db.SelectContext(ctx, &inbox, query, userID); err != nil {
		return nil, fmt.Errorf("list inbox: %w", err)
	}
	return inbox, nil
}

// MarkRead stamps the read instant on a recipient's copy.
func (r *NotificationRepository) MarkRead(ctx context.Context, inboxID, userID string, readAt time.Time) error {
	query := "UPDATE notification_inbox SET read_at = $3 WHERE id = $1 AND user_id = $2 AND read_at IS NULL"
	result, err := r.db.ExecContext(ctx, query, inboxID, userID, readAt)
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UnreadCount returns the number of unread inbox entries for a user.
func (r *NotificationRepository) UnreadCount(ctx context.Context, userID string) (int, error) {
	var count int
	query := "SELECT COUNT(*) FROM notification_inbox WHERE user_id = $1 AND read_at IS NULL"
	if err := r.db.GetContext(ctx, &count, query, userID); err != nil {
		return 0, fmt.Errorf("unread count: %w", err)
	}
	return count, nil
}
