// Package http provides the HTTP handlers and routing for the lab-report
// portal API.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/balalab/portal/internal/middleware"
	"github.com/balalab/portal/internal/models"
	"github.com/balalab/portal/internal/service"
)

// AuthService defines the account operations required by the HTTP handlers.
type AuthService interface {
	// Register creates a new account, ErrEmailTaken on duplicates.
	Register(ctx context.Context, email, password string, role models.Role) (*models.User, error)
	// Login verifies credentials, ErrInvalidCredentials on failure.
	Login(ctx context.Context, email, password string) (*models.User, error)
	// GetByID resolves an account from a token identity.
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// TokenIssuer creates a signed bearer token for a user.
type TokenIssuer interface {
	Issue(user *models.User) (string, error)
}

// AuthHandler handles HTTP requests for registration, login, and the
// current-user lookup backing session restoration.
type AuthHandler struct {
	// AuthService performs the underlying account operations.
	AuthService AuthService
	// Tokens signs bearer tokens for authenticated users.
	Tokens TokenIssuer
}

// credentialsRequest represents the JSON payload for login and registration.
type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// tokenResponse is the success payload for login and registration.
type tokenResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Register handles POST /api/auth/register.
// It expects a JSON body with non-empty email and password; role defaults
// to user. A fresh token is returned so a registered client is immediately
// authenticated without a separate login.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	user, err := h.AuthService.Register(r.Context(), req.Email, req.Password, models.Role(req.Role))
	if err != nil {
		if errors.Is(err, service.ErrEmailTaken) {
			writeError(w, http.StatusBadRequest, "email already registered")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.respondWithToken(w, user)
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	user, err := h.AuthService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid email or password")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.respondWithToken(w, user)
}

// Me handles GET /api/auth/me. It resolves the token identity back to the
// stored account, so a deleted user's token stops working.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "authorization required")
		return
	}

	user, err := h.AuthService.GetByID(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			writeError(w, http.StatusUnauthorized, "user not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, user)
}

func (h *AuthHandler) respondWithToken(w http.ResponseWriter, user *models.User) {
	tok, err := h.Tokens.Issue(user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: tok, User: user})
}
