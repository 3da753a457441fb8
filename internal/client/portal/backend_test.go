package portal

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/balalab/portal/internal/models"
)

// fakeBackend is an in-memory stand-in for the portal API, used by the
// session and dashboard tests.
type fakeBackend struct {
	mu        sync.Mutex
	users     map[string]*models.User // email -> account
	passwords map[string]string       // email -> password
	tokens    map[string]*models.User // token -> account
	reports   []models.Report

	requests    int // total requests served
	failReports bool
	failUsers   bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		users:     make(map[string]*models.User),
		passwords: make(map[string]string),
		tokens:    make(map[string]*models.User),
	}
}

func (b *fakeBackend) addUser(email, password string, role models.Role) *models.User {
	b.mu.Lock()
	defer b.mu.Unlock()
	u := &models.User{ID: uuid.NewString(), Email: email, Role: role}
	b.users[email] = u
	b.passwords[email] = password
	return u
}

func (b *fakeBackend) addReport(ownerEmail, originalName string) models.Report {
	b.mu.Lock()
	defer b.mu.Unlock()
	owner := b.users[ownerEmail]
	r := models.Report{
		ID:           uuid.NewString(),
		OriginalName: originalName,
		UserEmail:    ownerEmail,
		UserID:       owner.ID,
		FileType:     models.FileTypePDF,
	}
	b.reports = append(b.reports, r)
	return r
}

func (b *fakeBackend) tokenFor(email string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	tok := "tok-" + email
	b.tokens[tok] = b.users[email]
	return tok
}

func (b *fakeBackend) requestCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.requests
}

func (b *fakeBackend) caller(r *http.Request) *models.User {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tokens[strings.TrimPrefix(auth, "Bearer ")]
}

func (b *fakeBackend) fail(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	b.requests++
	b.mu.Unlock()

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/auth/login":
		var req struct{ Email, Password string }
		_ = json.NewDecoder(r.Body).Decode(&req)
		b.mu.Lock()
		u, ok := b.users[req.Email]
		pw := b.passwords[req.Email]
		b.mu.Unlock()
		if !ok || pw != req.Password {
			b.fail(w, http.StatusUnauthorized, "invalid email or password")
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"token": b.tokenFor(req.Email), "user": u})

	case r.Method == http.MethodPost && r.URL.Path == "/auth/register":
		var req struct{ Email, Password, Role string }
		_ = json.NewDecoder(r.Body).Decode(&req)
		b.mu.Lock()
		_, exists := b.users[req.Email]
		b.mu.Unlock()
		if exists {
			b.fail(w, http.StatusBadRequest, "email already registered")
			return
		}
		u := b.addUser(req.Email, req.Password, models.ParseRole(req.Role))
		_ = json.NewEncoder(w).Encode(map[string]any{"token": b.tokenFor(req.Email), "user": u})

	case r.Method == http.MethodGet && r.URL.Path == "/auth/me":
		u := b.caller(r)
		if u == nil {
			b.fail(w, http.StatusUnauthorized, "invalid token")
			return
		}
		_ = json.NewEncoder(w).Encode(u)

	case r.Method == http.MethodGet && r.URL.Path == "/reports":
		u := b.caller(r)
		if u == nil {
			b.fail(w, http.StatusUnauthorized, "authorization required")
			return
		}
		if b.failReports {
			b.fail(w, http.StatusInternalServerError, "failed to list reports")
			return
		}
		b.mu.Lock()
		out := make([]models.Report, 0)
		for _, rep := range b.reports {
			if u.Role == models.RoleAdmin || rep.UserID == u.ID {
				out = append(out, rep)
			}
		}
		b.mu.Unlock()
		_ = json.NewEncoder(w).Encode(out)

	case r.Method == http.MethodGet && r.URL.Path == "/users":
		u := b.caller(r)
		if u == nil || u.Role != models.RoleAdmin {
			b.fail(w, http.StatusForbidden, "admin access required")
			return
		}
		if b.failUsers {
			b.fail(w, http.StatusInternalServerError, "failed to list users")
			return
		}
		b.mu.Lock()
		out := make([]models.User, 0)
		for _, user := range b.users {
			if user.Role == models.RoleUser {
				out = append(out, *user)
			}
		}
		b.mu.Unlock()
		_ = json.NewEncoder(w).Encode(out)

	case r.Method == http.MethodPost && r.URL.Path == "/reports/upload":
		u := b.caller(r)
		if u == nil || u.Role != models.RoleAdmin {
			b.fail(w, http.StatusForbidden, "admin access required")
			return
		}
		_ = r.ParseMultipartForm(1 << 20)
		_, header, err := r.FormFile("file")
		if err != nil {
			b.fail(w, http.StatusBadRequest, "file is required")
			return
		}
		email := r.FormValue("user_email")
		b.mu.Lock()
		_, known := b.users[email]
		b.mu.Unlock()
		if !known {
			b.fail(w, http.StatusNotFound, "user with this email not found")
			return
		}
		rep := b.addReport(email, header.Filename)
		_ = json.NewEncoder(w).Encode(rep)

	case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/reports/"):
		u := b.caller(r)
		if u == nil || u.Role != models.RoleAdmin {
			b.fail(w, http.StatusForbidden, "admin access required")
			return
		}
		id := strings.TrimPrefix(r.URL.Path, "/reports/")
		b.mu.Lock()
		kept := b.reports[:0]
		found := false
		for _, rep := range b.reports {
			if rep.ID == id {
				found = true
				continue
			}
			kept = append(kept, rep)
		}
		b.reports = kept
		b.mu.Unlock()
		if !found {
			b.fail(w, http.StatusNotFound, "report not found")
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "report deleted successfully"})

	case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/download"):
		u := b.caller(r)
		if u == nil {
			b.fail(w, http.StatusUnauthorized, "authorization required")
			return
		}
		id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/reports/"), "/download")
		b.mu.Lock()
		defer b.mu.Unlock()
		for _, rep := range b.reports {
			if rep.ID == id {
				if u.Role != models.RoleAdmin && rep.UserID != u.ID {
					b.fail(w, http.StatusForbidden, "access denied")
					return
				}
				w.Header().Set("Content-Type", "application/octet-stream")
				_, _ = w.Write([]byte("content of " + rep.OriginalName))
				return
			}
		}
		b.fail(w, http.StatusNotFound, "report not found")

	default:
		b.fail(w, http.StatusNotFound, "no route")
	}
}

// newTestPortal starts the fake backend and returns a client bound to it.
func newTestPortal(t *testing.T) (*fakeBackend, *Client) {
	t.Helper()
	backend := newFakeBackend()
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)
	return backend, NewClient(srv.URL)
}
