package models

import "time"

// ResetStatus tracks the password reset request lifecycle.
type ResetStatus string

const (
	ResetPending  ResetStatus = "PENDING"
	ResetApproved ResetStatus = "APPROVED"
	ResetRejected ResetStatus = "REJECTED"
	ResetUsed     ResetStatus = "USED"
)

// PasswordResetRequest is an admin-mediated reset. The code exists only
// after the approve transition and is valid until ExpiresAt or first use.
type PasswordResetRequest struct {
	ID          string      `db:"id" json:"id"`
	UserID      string      `db:"user_id" json:"user_id"`
	Email       string      `db:"email" json:"email"`
	Status      ResetStatus `db:"status" json:"status"`
	ResetCode   string      `db:"reset_code" json:"-"`
	RequestedAt time.Time   `db:"requested_at" json:"requested_at"`
	DecidedAt   *time.Time  `db:"decided_at" json:"decided_at,omitempty"`
	ExpiresAt   *time.Time  `db:"expires_at" json:"expires_at,omitempty"`
}

// RequestResetRequest initiates the flow for an account.
type RequestResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// CompleteResetRequest redeems an approved code for a new password.
type CompleteResetRequest struct {
	Email       string `json:"email" validate:"required,email"`
	ResetCode   string `json:"reset_code" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=6"`
}
