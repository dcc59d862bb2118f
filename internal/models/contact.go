package models

import "time"

// ContactSubmission is an anonymous enquiry from the public site.
type ContactSubmission struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Email       string    `db:"email" json:"email"`
	Message     string    `db:"message" json:"message"`
	SubmittedAt time.Time `db:"submitted_at" json:"submitted_at"`
	IsRead      bool      `db:"is_read" json:"is_read"`
}

// CreateContactRequest is the public contact form payload.
type CreateContactRequest struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"required,email"`
	Message string `json:"message" validate:"required"`
}
