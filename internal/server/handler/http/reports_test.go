package http

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/balalab/portal/internal/models"
	"github.com/balalab/portal/internal/service"
	"github.com/balalab/portal/internal/token"
)

// fakeReportService implements ReportService for testing.
type fakeReportService struct {
	uploadReport *models.Report
	uploadErr    error
	listReports  []models.Report
	listErr      error
	listRole     models.Role
	listCaller   string
	openReport   *models.Report
	openContent  string
	openErr      error
	deleteErr    error
}

func (f *fakeReportService) Upload(ctx context.Context, uploadedBy, userEmail, originalName string, size int64, content io.Reader) (*models.Report, error) {
	return f.uploadReport, f.uploadErr
}

func (f *fakeReportService) List(ctx context.Context, callerID string, role models.Role) ([]models.Report, error) {
	f.listCaller = callerID
	f.listRole = role
	return f.listReports, f.listErr
}

func (f *fakeReportService) Open(ctx context.Context, callerID string, role models.Role, id string) (*models.Report, io.ReadCloser, error) {
	if f.openErr != nil {
		return nil, nil, f.openErr
	}
	return f.openReport, io.NopCloser(strings.NewReader(f.openContent)), nil
}

func (f *fakeReportService) Delete(ctx context.Context, id string) error {
	return f.deleteErr
}

// fakeUserService implements UserService for testing.
type fakeUserService struct {
	users []models.User
	err   error
}

func (f *fakeUserService) ListPatients(ctx context.Context) ([]models.User, error) {
	return f.users, f.err
}

// fakeParser accepts "admin-token" and "user-token".
type fakeParser struct{}

func (fakeParser) Parse(tokenString string) (*token.Claims, error) {
	switch tokenString {
	case "admin-token":
		return &token.Claims{UserID: "a1", Email: "admin@example.com", Role: models.RoleAdmin}, nil
	case "user-token":
		return &token.Claims{UserID: "u1", Email: "patient@example.com", Role: models.RoleUser}, nil
	default:
		return nil, token.ErrInvalidToken
	}
}

func newTestRouter(reports *fakeReportService, users *fakeUserService) http.Handler {
	authHandler := &AuthHandler{AuthService: &fakeAuthService{}, Tokens: &fakeIssuer{}}
	reportHandler := &ReportHandler{ReportService: reports}
	userHandler := &UserHandler{UserService: users}
	return NewRouter(authHandler, reportHandler, userHandler, fakeParser{}, zap.NewNop())
}

func multipartBody(t *testing.T, fileName, fileContent, userEmail string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if fileName != "" {
		part, err := mw.CreateFormFile("file", fileName)
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		if _, err := part.Write([]byte(fileContent)); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	if userEmail != "" {
		if err := mw.WriteField("user_email", userEmail); err != nil {
			t.Fatalf("WriteField: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &body, mw.FormDataContentType()
}

func TestListReports_Authorization(t *testing.T) {
	tests := []struct {
		name         string
		authHeader   string
		expectedCode int
		expectedRole models.Role
	}{
		{"no token", "", http.StatusUnauthorized, ""},
		{"invalid token", "Bearer forged", http.StatusUnauthorized, ""},
		{"user token", "Bearer user-token", http.StatusOK, models.RoleUser},
		{"admin token", "Bearer admin-token", http.StatusOK, models.RoleAdmin},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reports := &fakeReportService{listReports: []models.Report{{ID: "r1"}}}
			router := newTestRouter(reports, &fakeUserService{})

			req := httptest.NewRequest("GET", "/api/reports", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tt.expectedCode {
				t.Fatalf("expected status %d, got %d", tt.expectedCode, rec.Code)
			}
			if tt.expectedCode == http.StatusOK && reports.listRole != tt.expectedRole {
				t.Errorf("service saw role %q; want %q", reports.listRole, tt.expectedRole)
			}
		})
	}
}

func TestListReports_EmptyListIsJSONArray(t *testing.T) {
	router := newTestRouter(&fakeReportService{}, &fakeUserService{})

	req := httptest.NewRequest("GET", "/api/reports", nil)
	req.Header.Set("Authorization", "Bearer user-token")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Errorf("body = %q; want empty JSON array", body)
	}
}

func TestListUsers_AdminOnly(t *testing.T) {
	users := &fakeUserService{users: []models.User{{ID: "u1", Email: "p@example.com"}}}

	t.Run("user is forbidden", func(t *testing.T) {
		router := newTestRouter(&fakeReportService{}, users)
		req := httptest.NewRequest("GET", "/api/users", nil)
		req.Header.Set("Authorization", "Bearer user-token")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected status 403, got %d", rec.Code)
		}
	})

	t.Run("admin succeeds", func(t *testing.T) {
		router := newTestRouter(&fakeReportService{}, users)
		req := httptest.NewRequest("GET", "/api/users", nil)
		req.Header.Set("Authorization", "Bearer admin-token")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "p@example.com") {
			t.Errorf("expected user list in body, got %q", rec.Body.String())
		}
	})
}

func TestUpload(t *testing.T) {
	tests := []struct {
		name           string
		token          string
		fileName       string
		userEmail      string
		service        *fakeReportService
		expectedCode   int
		expectedSubstr string
	}{
		{
			name:         "non-admin forbidden",
			token:        "user-token",
			fileName:     "scan.pdf",
			userEmail:    "patient@example.com",
			service:      &fakeReportService{},
			expectedCode: http.StatusForbidden,
		},
		{
			name:           "missing file",
			token:          "admin-token",
			userEmail:      "patient@example.com",
			service:        &fakeReportService{},
			expectedCode:   http.StatusBadRequest,
			expectedSubstr: "file is required",
		},
		{
			name:           "missing target user",
			token:          "admin-token",
			fileName:       "scan.pdf",
			service:        &fakeReportService{},
			expectedCode:   http.StatusBadRequest,
			expectedSubstr: "user_email is required",
		},
		{
			name:           "bad extension",
			token:          "admin-token",
			fileName:       "malware.exe",
			userEmail:      "patient@example.com",
			service:        &fakeReportService{uploadErr: service.ErrFileType},
			expectedCode:   http.StatusBadRequest,
			expectedSubstr: "file type not allowed",
		},
		{
			name:           "unknown target",
			token:          "admin-token",
			fileName:       "scan.pdf",
			userEmail:      "stranger@example.com",
			service:        &fakeReportService{uploadErr: service.ErrUserNotFound},
			expectedCode:   http.StatusNotFound,
			expectedSubstr: "user with this email not found",
		},
		{
			name:      "success",
			token:     "admin-token",
			fileName:  "lipid_panel.pdf",
			userEmail: "patient@example.com",
			service: &fakeReportService{uploadReport: &models.Report{
				ID: "r1", OriginalName: "lipid_panel.pdf", UserEmail: "patient@example.com",
			}},
			expectedCode:   http.StatusOK,
			expectedSubstr: "lipid_panel.pdf",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(tt.service, &fakeUserService{})

			body, contentType := multipartBody(t, tt.fileName, "content", tt.userEmail)
			req := httptest.NewRequest("POST", "/api/reports/upload", body)
			req.Header.Set("Content-Type", contentType)
			req.Header.Set("Authorization", "Bearer "+tt.token)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tt.expectedCode {
				t.Fatalf("expected status %d, got %d: %s", tt.expectedCode, rec.Code, rec.Body.String())
			}
			if tt.expectedSubstr != "" && !strings.Contains(rec.Body.String(), tt.expectedSubstr) {
				t.Errorf("expected body to contain %q, got %q", tt.expectedSubstr, rec.Body.String())
			}
		})
	}
}

func TestDeleteReport(t *testing.T) {
	t.Run("admin only", func(t *testing.T) {
		router := newTestRouter(&fakeReportService{}, &fakeUserService{})
		req := httptest.NewRequest("DELETE", "/api/reports/r1", nil)
		req.Header.Set("Authorization", "Bearer user-token")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected status 403, got %d", rec.Code)
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		router := newTestRouter(&fakeReportService{deleteErr: service.ErrReportNotFound}, &fakeUserService{})
		req := httptest.NewRequest("DELETE", "/api/reports/missing", nil)
		req.Header.Set("Authorization", "Bearer admin-token")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected status 404, got %d", rec.Code)
		}
	})

	t.Run("success", func(t *testing.T) {
		router := newTestRouter(&fakeReportService{}, &fakeUserService{})
		req := httptest.NewRequest("DELETE", "/api/reports/r1", nil)
		req.Header.Set("Authorization", "Bearer admin-token")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}
	})
}

func TestDownload(t *testing.T) {
	reports := &fakeReportService{
		openReport:  &models.Report{ID: "r1", FileName: "abc.pdf", OriginalName: "lipid_panel.pdf"},
		openContent: "pdf bytes",
	}
	router := newTestRouter(reports, &fakeUserService{})

	req := httptest.NewRequest("GET", "/api/reports/r1/download", nil)
	req.Header.Set("Authorization", "Bearer user-token")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "lipid_panel.pdf") {
		t.Errorf("Content-Disposition = %q; want original filename hint", cd)
	}
	if rec.Body.String() != "pdf bytes" {
		t.Errorf("body = %q; want file content", rec.Body.String())
	}
}

func TestDownload_Forbidden(t *testing.T) {
	router := newTestRouter(&fakeReportService{openErr: service.ErrForbidden}, &fakeUserService{})

	req := httptest.NewRequest("GET", "/api/reports/r1/download", nil)
	req.Header.Set("Authorization", "Bearer user-token")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", rec.Code)
	}
}

func TestPreview_QueryToken(t *testing.T) {
	reports := &fakeReportService{
		openReport:  &models.Report{ID: "r1", FileName: "abc.pdf", OriginalName: "lipid_panel.pdf"},
		openContent: "pdf bytes",
	}
	router := newTestRouter(reports, &fakeUserService{})

	req := httptest.NewRequest("GET", "/api/reports/r1/preview?token=user-token", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("Content-Type = %q; want application/pdf", ct)
	}
}

func TestRegister_RequiresJSONContentType(t *testing.T) {
	router := newTestRouter(&fakeReportService{}, &fakeUserService{})

	req := httptest.NewRequest("POST", "/api/auth/register", strings.NewReader("email=x"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected status 415, got %d", rec.Code)
	}
}
