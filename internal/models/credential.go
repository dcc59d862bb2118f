package models

import "time"

// Credential stores externally-issued login material (Gmail, iTax) for
// a client. Sensitive fields are sealed with AES-GCM before persistence
// and never leave the service unsealed.
type Credential struct {
	ID                  string    `db:"id" json:"id"`
	FirstName           string    `db:"first_name" json:"first_name"`
	Email               string    `db:"email" json:"email"`
	SealedEmailPassword string    `db:"sealed_email_password" json:"-"`
	SealedTaxPIN        string    `db:"sealed_tax_pin" json:"-"`
	SealedTaxPassword   string    `db:"sealed_tax_password" json:"-"`
	CreatedBy           string    `db:"created_by" json:"created_by"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
}

// CredentialView is the unsealed admin-facing shape. It is built on
// demand and never stored.
type CredentialView struct {
	ID            string    `json:"id"`
	FirstName     string    `json:"first_name"`
	Email         string    `json:"email"`
	EmailPassword string    `json:"email_password"`
	TaxPIN        string    `json:"tax_pin"`
	TaxPassword   string    `json:"tax_password"`
	CreatedBy     string    `json:"created_by"`
	CreatedAt     time.Time `json:"created_at"`
}

// CreateCredentialRequest carries the plaintext secrets to seal.
type CreateCredentialRequest struct {
	FirstName     string `json:"first_name" validate:"required"`
	Email         string `json:"email" validate:"required,email"`
	EmailPassword string `json:"email_password" validate:"required"`
	TaxPIN        string `json:"tax_pin" validate:"required"`
	TaxPassword   string `json:"tax_password" validate:"required"`
}
