// Package models defines the core data structures for users and lab reports.
package models

// Role identifies the authorization level of a user account.
type Role string

const (
	// RoleAdmin may manage every user's reports.
	RoleAdmin Role = "admin"
	// RoleUser may only view and download their own reports.
	RoleUser Role = "user"
)

// ParseRole maps an arbitrary string onto a valid Role.
// Anything outside the known set falls back to RoleUser.
func ParseRole(s string) Role {
	if Role(s) == RoleAdmin {
		return RoleAdmin
	}
	return RoleUser
}

// User represents a registered account.
type User struct {
	// ID is the unique identifier for the user.
	ID string `json:"id"`
	// Email is the login identity, unique across accounts.
	Email string `json:"email"`
	// PasswordHash is the bcrypt hash of the password. Never serialized.
	PasswordHash string `json:"-"`
	// Role is either RoleAdmin or RoleUser.
	Role Role `json:"role"`
	// CreatedAt is the RFC3339 creation timestamp.
	CreatedAt string `json:"created_at"`
}

// FileType classifies an uploaded report by its extension.
type FileType string

const (
	// FileTypePDF marks a .pdf report.
	FileTypePDF FileType = "pdf"
	// FileTypeImage marks any accepted image report.
	FileTypeImage FileType = "image"
)

// Report holds the metadata of one uploaded lab report.
// The binary content lives in the blob store under FileName.
type Report struct {
	// ID is the unique identifier for the report.
	ID string `json:"id"`
	// FileName is the generated name the blob is stored under.
	FileName string `json:"file_name"`
	// OriginalName is the file name as uploaded.
	OriginalName string `json:"original_name"`
	// FileType is pdf or image.
	FileType FileType `json:"file_type"`
	// FileSize is the blob size in bytes.
	FileSize int64 `json:"file_size"`
	// UserEmail is the owning patient's email.
	UserEmail string `json:"user_email"`
	// UserID is the owning patient's user ID.
	UserID string `json:"user_id,omitempty"`
	// UploadedBy is the uploading admin: the user ID in storage,
	// resolved to an email in API responses.
	UploadedBy string `json:"uploaded_by"`
	// CreatedAt is the RFC3339 upload timestamp.
	CreatedAt string `json:"created_at"`
}
