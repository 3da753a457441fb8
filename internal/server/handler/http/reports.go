package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/balalab/portal/internal/middleware"
	"github.com/balalab/portal/internal/models"
	"github.com/balalab/portal/internal/service"
)

// ReportService defines the report operations required by ReportHandler.
type ReportService interface {
	Upload(ctx context.Context, uploadedBy, userEmail, originalName string, size int64, content io.Reader) (*models.Report, error)
	List(ctx context.Context, callerID string, role models.Role) ([]models.Report, error)
	Open(ctx context.Context, callerID string, role models.Role, id string) (*models.Report, io.ReadCloser, error)
	Delete(ctx context.Context, id string) error
}

// ReportHandler handles upload, listing, download, preview, and deletion
// of lab reports.
type ReportHandler struct {
	ReportService ReportService
}

// previewContentTypes maps report extensions to inline media types.
var previewContentTypes = map[string]string{
	".pdf":  "application/pdf",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
}

// Upload handles POST /api/reports/upload (admin only).
// Expects multipart form fields "file" and "user_email".
func (h *ReportHandler) Upload(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())

	// a little headroom over the file cap for the multipart framing
	r.Body = http.MaxBytesReader(w, r.Body, service.MaxFileSize+1<<20)
	if err := r.ParseMultipartForm(service.MaxFileSize); err != nil {
		writeError(w, http.StatusBadRequest, "file size exceeds 5MB limit")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	userEmail := r.FormValue("user_email")
	if userEmail == "" {
		writeError(w, http.StatusBadRequest, "user_email is required")
		return
	}

	report, err := h.ReportService.Upload(r.Context(), claims.UserID, userEmail, header.Filename, header.Size, file)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrFileType):
			writeError(w, http.StatusBadRequest, "file type not allowed. Accepted: .jpg, .jpeg, .png, .gif, .pdf")
		case errors.Is(err, service.ErrFileTooLarge):
			writeError(w, http.StatusBadRequest, "file size exceeds 5MB limit")
		case errors.Is(err, service.ErrUserNotFound):
			writeError(w, http.StatusNotFound, "user with this email not found")
		default:
			writeError(w, http.StatusInternalServerError, "upload failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// List handles GET /api/reports, scoped by the caller's role.
func (h *ReportHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())

	reports, err := h.ReportService.List(r.Context(), claims.UserID, claims.Role)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list reports")
		return
	}
	if reports == nil {
		reports = []models.Report{}
	}
	writeJSON(w, http.StatusOK, reports)
}

// Download handles GET /api/reports/{id}/download, streaming the stored
// bytes as an attachment named after the original upload.
func (h *ReportHandler) Download(w http.ResponseWriter, r *http.Request) {
	report, rc, ok := h.open(w, r)
	if !ok {
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.OriginalName))
	_, _ = io.Copy(w, rc)
}

// Preview handles GET /api/reports/{id}/preview, serving the content inline
// with a media type derived from the stored extension. The auth middleware
// accepts the bearer token as a query parameter here.
func (h *ReportHandler) Preview(w http.ResponseWriter, r *http.Request) {
	report, rc, ok := h.open(w, r)
	if !ok {
		return
	}
	defer rc.Close()

	ext := strings.ToLower(filepath.Ext(report.FileName))
	contentType, found := previewContentTypes[ext]
	if !found {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	_, _ = io.Copy(w, rc)
}

// Delete handles DELETE /api/reports/{id} (admin only).
func (h *ReportHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.ReportService.Delete(r.Context(), id); err != nil {
		if errors.Is(err, service.ErrReportNotFound) {
			writeError(w, http.StatusNotFound, "report not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "delete failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "report deleted successfully"})
}

// open resolves and authorizes the report for download/preview, writing the
// error response itself when it returns ok=false.
func (h *ReportHandler) open(w http.ResponseWriter, r *http.Request) (*models.Report, io.ReadCloser, bool) {
	claims := middleware.GetClaimsFromContext(r.Context())
	id := chi.URLParam(r, "id")

	report, rc, err := h.ReportService.Open(r.Context(), claims.UserID, claims.Role, id)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrReportNotFound):
			writeError(w, http.StatusNotFound, "report not found")
		case errors.Is(err, service.ErrFileMissing):
			writeError(w, http.StatusNotFound, "file not found on server")
		case errors.Is(err, service.ErrForbidden):
			writeError(w, http.StatusForbidden, "access denied")
		default:
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return nil, nil, false
	}
	return report, rc, true
}
