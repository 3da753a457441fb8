package portal

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync"

	"github.com/balalab/portal/internal/models"
)

// tokenKey is the fixed key the bearer token is persisted under.
const tokenKey = "labportal_token"

// defaultSessionFile is where the session state lives unless overridden.
const defaultSessionFile = "session.json"

// Session owns the client's authentication state: the bearer token and the
// current user record. It is created unauthenticated, populated by Restore,
// Login, or Register, and torn down by Logout.
type Session struct {
	api  *Client
	path string

	mu   sync.Mutex
	user *models.User
}

// NewSession creates a session persisting its token at path. An empty path
// uses the default session file in the working directory.
func NewSession(api *Client, path string) *Session {
	if path == "" {
		path = defaultSessionFile
	}
	return &Session{api: api, path: path}
}

// Restore loads a persisted token, if any, and validates it against the
// server before any protected view is rendered. An invalid or stale token
// degrades to the unauthenticated state rather than failing; only transport
// errors are reported, so the caller can retry.
func (s *Session) Restore(ctx context.Context) error {
	tok, err := s.loadToken()
	if err != nil || tok == "" {
		return nil
	}

	s.api.SetToken(tok)
	user, err := s.api.Me(ctx)
	if err != nil {
		if errors.Is(err, ErrNetwork) {
			s.api.SetToken("")
			return err
		}
		// stale or rejected token: drop it and stay unauthenticated
		s.Logout()
		return nil
	}

	s.mu.Lock()
	s.user = user
	s.mu.Unlock()
	return nil
}

// Login authenticates and stores the issued token and user record.
func (s *Session) Login(ctx context.Context, email, password string) error {
	tok, user, err := s.api.Login(ctx, email, password)
	if err != nil {
		return err
	}
	return s.establish(tok, user)
}

// Register creates an account and establishes the session from the returned
// token, so no separate login is needed.
func (s *Session) Register(ctx context.Context, email, password string, role models.Role) error {
	tok, user, err := s.api.Register(ctx, email, password, role)
	if err != nil {
		return err
	}
	return s.establish(tok, user)
}

// Logout discards the token and user state unconditionally. No server
// round-trip is made; subsequent requests go out unauthenticated.
func (s *Session) Logout() {
	s.mu.Lock()
	s.user = nil
	s.mu.Unlock()

	s.api.SetToken("")
	_ = os.Remove(s.path)
}

// User returns the authenticated user record, nil when unauthenticated.
func (s *Session) User() *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// Authenticated reports whether a user identity is established.
func (s *Session) Authenticated() bool {
	return s.User() != nil
}

func (s *Session) establish(tok string, user *models.User) error {
	s.api.SetToken(tok)

	s.mu.Lock()
	s.user = user
	s.mu.Unlock()

	return s.saveToken(tok)
}

func (s *Session) loadToken() (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	state := make(map[string]string)
	if err := json.Unmarshal(data, &state); err != nil {
		return "", err
	}
	return state[tokenKey], nil
}

func (s *Session) saveToken(tok string) error {
	data, err := json.Marshal(map[string]string{tokenKey: tok})
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o600)
}
