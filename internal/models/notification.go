package models

import "time"

// Notification is an admin-authored announcement fanned out to
// recipient inboxes by the background queue.
type Notification struct {
	ID           string    `db:"id" json:"id"`
	Title        string    `db:"title" json:"title"`
	Body         string    `db:"body" json:"body"`
	AttachmentID *string   `db:"attachment_id" json:"attachment_id,omitempty"`
	CreatedBy    string    `db:"created_by" json:"created_by"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Inbox is one recipient's copy of a notification.
type Inbox struct {
	ID             string     `db:"id" json:"id"`
	NotificationID string     `db:"notification_id" json:"notification_id"`
	UserID         string     `db:"user_id" json:"-"`
	ReadAt         *time.Time `db:"read_at" json:"read_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`

	Title        string  `db:"title" json:"title"`
	Body         string  `db:"body" json:"body"`
	AttachmentID *string `db:"attachment_id" json:"attachment_id,omitempty"`
}

// CreateNotificationRequest targets specific users or, when Targets is
// empty, broadcasts to every active account.
type CreateNotificationRequest struct {
	Title        string   `json:"title" validate:"required"`
	Body         string   `json:"body" validate:"required"`
	Targets      []string `json:"targets,omitempty"`
	AttachmentID *string  `json:"attachment_id,omitempty"`
}
