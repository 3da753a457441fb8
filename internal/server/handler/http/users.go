package http

import (
	"context"
	"net/http"

	"github.com/balalab/portal/internal/models"
)

// UserService defines the user listing required by UserHandler.
type UserService interface {
	// ListPatients returns every account with the user role.
	ListPatients(ctx context.Context) ([]models.User, error)
}

// UserHandler serves the admin-facing user directory that upload targets
// are chosen from.
type UserHandler struct {
	UserService UserService
}

// List handles GET /api/users (admin only).
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.UserService.ListPatients(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	if users == nil {
		users = []models.User{}
	}
	writeJSON(w, http.StatusOK, users)
}
