// Package portal implements the terminal client for the lab-report portal:
// the API client, the persisted session, and the role-specific dashboards.
package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/balalab/portal/internal/models"
)

// DefaultBaseURL is used when neither the flag nor PORTAL_API_URL is set.
const DefaultBaseURL = "http://localhost:8080/api"

// Sentinel errors classifying request failures. Callers match with
// errors.Is and show the error text as a dismissible notice.
var (
	// ErrAuth marks rejected credentials or an invalid token.
	ErrAuth = errors.New("authentication failed")
	// ErrConflict marks registration with an already-used email.
	ErrConflict = errors.New("already registered")
	// ErrValidation marks a request rejected before or by server validation.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks operations on a missing report or user.
	ErrNotFound = errors.New("not found")
	// ErrServer marks 5xx and other unexpected server responses.
	ErrServer = errors.New("server error")
	// ErrNetwork marks requests that failed before reaching the server.
	ErrNetwork = errors.New("network error")
)

// APIError is a non-2xx server response carrying the server-provided
// message when present.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string { return e.Message }

// Unwrap maps the HTTP status onto the client error taxonomy.
func (e *APIError) Unwrap() error {
	switch {
	case e.Status == http.StatusBadRequest:
		return ErrValidation
	case e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden:
		return ErrAuth
	case e.Status == http.StatusNotFound:
		return ErrNotFound
	case e.Status == http.StatusConflict:
		return ErrConflict
	default:
		return ErrServer
	}
}

// Client issues portal API requests, attaching the current bearer token
// to every request when one is held.
type Client struct {
	// BaseURL is the API root, e.g. http://localhost:8080/api.
	BaseURL string
	// HTTP is the underlying transport client.
	HTTP *http.Client

	mu    sync.Mutex
	token string
}

// NewClient builds a Client for baseURL. An empty baseURL falls back to
// the PORTAL_API_URL environment variable, then DefaultBaseURL.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = os.Getenv("PORTAL_API_URL")
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{},
	}
}

// SetToken installs the bearer token attached to subsequent requests.
// An empty string sends requests unauthenticated.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// Token returns the currently held bearer token.
func (c *Client) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// authResponse is the payload of login and register.
type authResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Login exchanges credentials for a token and user record.
func (c *Client) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	var out authResponse
	err := c.postJSON(ctx, "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, &out)
	if err != nil {
		return "", nil, err
	}
	return out.Token, out.User, nil
}

// Register creates an account with the given role and returns a token,
// so a fresh registration is immediately authenticated.
func (c *Client) Register(ctx context.Context, email, password string, role models.Role) (string, *models.User, error) {
	var out authResponse
	err := c.postJSON(ctx, "/auth/register", map[string]string{
		"email":    email,
		"password": password,
		"role":     string(role),
	}, &out)
	if err != nil {
		// the server reports duplicate registration as a 400, sharing the
		// status with payload validation; only the duplicate is a conflict
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusBadRequest &&
			strings.Contains(apiErr.Message, "already registered") {
			return "", nil, fmt.Errorf("%w: %s", ErrConflict, apiErr.Message)
		}
		return "", nil, err
	}
	return out.Token, out.User, nil
}

// Me validates the held token and returns the account it identifies.
func (c *Client) Me(ctx context.Context) (*models.User, error) {
	var user models.User
	if err := c.getJSON(ctx, "/auth/me", &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Reports lists the reports visible to the caller, scoped by role
// server-side.
func (c *Client) Reports(ctx context.Context) ([]models.Report, error) {
	var reports []models.Report
	if err := c.getJSON(ctx, "/reports", &reports); err != nil {
		return nil, err
	}
	return reports, nil
}

// Users lists the patient accounts reports can be assigned to (admin only).
func (c *Client) Users(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := c.getJSON(ctx, "/users", &users); err != nil {
		return nil, err
	}
	return users, nil
}

// Upload sends a multipart report upload for the target user (admin only).
func (c *Client) Upload(ctx context.Context, fileName string, content io.Reader, targetEmail string) (*models.Report, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	part, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, err
	}
	if err := mw.WriteField("user_email", targetEmail); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/reports/upload", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}
	var report models.Report
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &report, nil
}

// DeleteReport removes a report by ID (admin only).
func (c *Client) DeleteReport(ctx context.Context, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.BaseURL+"/reports/"+url.PathEscape(id), nil)
	if err != nil {
		return err
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}
	return nil
}

// Download streams the report's binary content into dst.
func (c *Client) Download(ctx context.Context, id string, dst io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/reports/"+url.PathEscape(id)+"/download", nil)
	if err != nil {
		return err
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}
	if _, err := io.Copy(dst, resp.Body); err != nil {
		return fmt.Errorf("save download: %w", err)
	}
	return nil
}

// PreviewURL builds the preview address for a report. The bearer token
// rides along as a query parameter because the context the URL is opened
// in cannot set request headers.
func (c *Client) PreviewURL(id string) string {
	return c.BaseURL + "/reports/" + url.PathEscape(id) + "/preview?token=" + url.QueryEscape(c.Token())
}

func (c *Client) postJSON(ctx context.Context, path string, payload, out any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.roundTrip(req, out)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	return c.roundTrip(req, out)
}

func (c *Client) roundTrip(req *http.Request, out any) error {
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// do executes the request with the bearer token attached when present.
// Transport failures are classified as network errors.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	if tok := c.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	return resp, nil
}

// apiError builds an APIError from a non-2xx response, preferring the
// server-provided message.
func apiError(resp *http.Response) error {
	var payload struct {
		Error string `json:"error"`
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err := json.Unmarshal(body, &payload); err != nil || payload.Error == "" {
		payload.Error = strings.TrimSpace(string(body))
	}
	if payload.Error == "" {
		payload.Error = resp.Status
	}
	return &APIError{Status: resp.StatusCode, Message: payload.Error}
}
