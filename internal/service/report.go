package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/balalab/portal/internal/models"
)

// MaxFileSize caps uploaded report files at 5 MiB.
const MaxFileSize = 5 << 20

var (
	// ErrReportNotFound is returned when the referenced report does not exist.
	ErrReportNotFound = errors.New("report not found")
	// ErrFileMissing is returned when a report row exists but its blob is gone.
	ErrFileMissing = errors.New("file not found on server")
	// ErrForbidden is returned when a user touches another user's report.
	ErrForbidden = errors.New("access denied")
	// ErrFileType is returned for extensions outside the accepted set.
	ErrFileType = errors.New("file type not allowed")
	// ErrFileTooLarge is returned for uploads over MaxFileSize.
	ErrFileTooLarge = errors.New("file size exceeds 5MB limit")
)

// allowedExtensions is the accepted set of report file extensions.
var allowedExtensions = map[string]models.FileType{
	".pdf":  models.FileTypePDF,
	".jpg":  models.FileTypeImage,
	".jpeg": models.FileTypeImage,
	".png":  models.FileTypeImage,
	".gif":  models.FileTypeImage,
}

// ReportRepository defines the metadata persistence needed by ReportService.
type ReportRepository interface {
	Insert(ctx context.Context, report *models.Report) error
	ListAll(ctx context.Context) ([]models.Report, error)
	ListByUser(ctx context.Context, userID string) ([]models.Report, error)
	GetByID(ctx context.Context, id string) (*models.Report, error)
	Delete(ctx context.Context, id string) error
}

// BlobStore defines the binary storage needed by ReportService.
type BlobStore interface {
	Save(ext string, content io.Reader) (string, error)
	Open(name string) (io.ReadCloser, error)
	Remove(name string) error
}

// ReportService implements upload, listing, retrieval, and deletion of
// lab reports.
type ReportService struct {
	reports ReportRepository
	users   UserRepository
	blobs   BlobStore
}

// NewReportService constructs a ReportService over the given repositories
// and blob store.
func NewReportService(reports ReportRepository, users UserRepository, blobs BlobStore) *ReportService {
	return &ReportService{reports: reports, users: users, blobs: blobs}
}

// Upload validates and stores a report on behalf of the target user.
// content must already be buffered or size-limited by the caller; size is
// the exact byte count. uploadedBy is the admin's user ID.
func (s *ReportService) Upload(ctx context.Context, uploadedBy, userEmail, originalName string, size int64, content io.Reader) (*models.Report, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	fileType, ok := allowedExtensions[ext]
	if !ok {
		return nil, ErrFileType
	}
	if size > MaxFileSize {
		return nil, ErrFileTooLarge
	}

	target, err := s.users.GetByEmail(ctx, userEmail)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	stored, err := s.blobs.Save(ext, content)
	if err != nil {
		return nil, err
	}

	report := &models.Report{
		ID:           uuid.NewString(),
		FileName:     stored,
		OriginalName: originalName,
		FileType:     fileType,
		FileSize:     size,
		UserEmail:    target.Email,
		UserID:       target.ID,
		UploadedBy:   uploadedBy,
		CreatedAt:    time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.reports.Insert(ctx, report); err != nil {
		// keep the store consistent with the metadata
		_ = s.blobs.Remove(stored)
		return nil, err
	}
	return report, nil
}

// List returns reports visible to the caller: everything for admins,
// own reports otherwise. UploadedBy is resolved from user ID to email,
// "unknown" when the uploader account no longer exists.
func (s *ReportService) List(ctx context.Context, callerID string, role models.Role) ([]models.Report, error) {
	var (
		reports []models.Report
		err     error
	)
	if role == models.RoleAdmin {
		reports, err = s.reports.ListAll(ctx)
	} else {
		reports, err = s.reports.ListByUser(ctx, callerID)
	}
	if err != nil {
		return nil, err
	}

	emails := make(map[string]string)
	for i := range reports {
		id := reports[i].UploadedBy
		email, ok := emails[id]
		if !ok {
			if u, err := s.users.GetByID(ctx, id); err == nil {
				email = u.Email
			} else {
				email = "unknown"
			}
			emails[id] = email
		}
		reports[i].UploadedBy = email
	}
	return reports, nil
}

// Open returns the report metadata and a reader over its content, for
// download and preview. Non-admins may only open their own reports.
func (s *ReportService) Open(ctx context.Context, callerID string, role models.Role, id string) (*models.Report, io.ReadCloser, error) {
	report, err := s.reports.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, ErrReportNotFound
		}
		return nil, nil, err
	}
	if role != models.RoleAdmin && report.UserID != callerID {
		return nil, nil, ErrForbidden
	}

	rc, err := s.blobs.Open(report.FileName)
	if err != nil {
		return nil, nil, ErrFileMissing
	}
	return report, rc, nil
}

// Delete removes the report's blob and metadata. Deleting an unknown ID
// returns ErrReportNotFound.
func (s *ReportService) Delete(ctx context.Context, id string) error {
	report, err := s.reports.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrReportNotFound
		}
		return err
	}
	if err := s.blobs.Remove(report.FileName); err != nil {
		return err
	}
	return s.reports.Delete(ctx, id)
}
