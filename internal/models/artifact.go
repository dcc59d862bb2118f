package models

import (
	"time"

	"github.com/lib/pq"
)

// ArtifactKind classifies stored binary records.
type ArtifactKind string

const (
	KindFile        ArtifactKind = "FILE"
	KindEulogy      ArtifactKind = "EULOGY"
	KindCertificate ArtifactKind = "CERTIFICATE"
	KindAttachment  ArtifactKind = "ATTACHMENT"
	KindResource    ArtifactKind = "RESOURCE"
)

// Visibility is the closed access-control class of an artifact. The
// access gate switches exhaustively over these values; there is no
// free-form string comparison anywhere downstream.
type Visibility string

const (
	// VisibilityPublic artifacts are retrievable without identity.
	VisibilityPublic Visibility = "PUBLIC"
	// VisibilityPrivate artifacts are admin-only.
	VisibilityPrivate Visibility = "PRIVATE"
	// VisibilityTargeted artifacts name their recipients explicitly.
	VisibilityTargeted Visibility = "TARGETED"
	// VisibilityOwner artifacts are retrievable by their uploader,
	// by admins, or by anyone when the public flag is set.
	VisibilityOwner Visibility = "OWNER"
)

// Valid reports whether v is a known visibility class.
func (v Visibility) Valid() bool {
	switch v {
	case VisibilityPublic, VisibilityPrivate, VisibilityTargeted, VisibilityOwner:
		return true
	}
	return false
}

// Artifact is a stored binary-bearing record subject to visibility and
// expiry rules. Payload lives in a BYTEA column alongside the metadata.
type Artifact struct {
	ID            string         `db:"id" json:"id"`
	Kind          ArtifactKind   `db:"kind" json:"kind"`
	Title         string         `db:"title" json:"title"`
	DeceasedName  string         `db:"deceased_name" json:"deceased_name,omitempty"`
	Description   string         `db:"description" json:"description,omitempty"`
	Filename      string         `db:"filename" json:"filename"`
	MediaType     string         `db:"media_type" json:"media_type"`
	FileSize      int64          `db:"file_size" json:"file_size"`
	Payload       []byte         `db:"payload" json:"-"`
	Visibility    Visibility     `db:"visibility" json:"visibility"`
	IsPublic      bool           `db:"is_public" json:"is_public"`
	Targets       pq.StringArray `db:"targets" json:"targets,omitempty"`
	UploadedBy    string         `db:"uploaded_by" json:"uploaded_by"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	ExpiresAt     *time.Time     `db:"expires_at" json:"expires_at,omitempty"`
	DownloadCount int            `db:"download_count" json:"download_count"`
	IsActive      bool           `db:"is_active" json:"is_active"`
}

// ArtifactMeta is the listing shape: everything but the payload.
type ArtifactMeta struct {
	ID            string       `db:"id" json:"id"`
	Kind          ArtifactKind `db:"kind" json:"kind"`
	Title         string       `db:"title" json:"title"`
	DeceasedName  string       `db:"deceased_name" json:"deceased_name,omitempty"`
	Description   string       `db:"description" json:"description,omitempty"`
	Filename      string       `db:"filename" json:"filename"`
	MediaType     string       `db:"media_type" json:"media_type"`
	FileSize      int64        `db:"file_size" json:"file_size"`
	Visibility    Visibility   `db:"visibility" json:"visibility"`
	IsPublic      bool         `db:"is_public" json:"is_public"`
	UploadedBy    string       `db:"uploaded_by" json:"uploaded_by"`
	CreatedAt     time.Time    `db:"created_at" json:"created_at"`
	ExpiresAt     *time.Time   `db:"expires_at" json:"expires_at,omitempty"`
	DownloadCount int          `db:"download_count" json:"download_count"`
}

// ArtifactFilter scopes artifact listings.
type ArtifactFilter struct {
	Kind       ArtifactKind
	UploadedBy string
	PublicOnly bool
	// Unexpired restricts results to artifacts whose expiry has not
	// passed as of the given instant (nil disables the check).
	Unexpired *time.Time
}

// ArtifactPatch updates only the provided metadata fields; the payload
// is never patched, only replaced through re-upload.
type ArtifactPatch struct {
	Description *string `json:"description,omitempty"`
	IsPublic    *bool   `json:"is_public,omitempty"`
	IsActive    *bool   `json:"is_active,omitempty"`
}

// UploadFileRequest creates a generic download file.
type UploadFileRequest struct {
	Filename    string `json:"filename" validate:"required"`
	MediaType   string `json:"media_type" validate:"required"`
	Content     string `json:"content" validate:"required"` // base64
	Description string `json:"description"`
	IsPublic    bool   `json:"is_public"`
}

// UploadEulogyRequest publishes a time-limited memorial document.
type UploadEulogyRequest struct {
	Title        string `json:"title" validate:"required"`
	DeceasedName string `json:"deceased_name" validate:"required"`
	Description  string `json:"description"`
	Content      string `json:"content" validate:"required"` // base64 PDF
}

// ReleaseResult carries the payload and metadata of a granted release.
type ReleaseResult struct {
	Payload   []byte
	Filename  string
	MediaType string
}
