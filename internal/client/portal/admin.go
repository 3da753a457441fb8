package portal

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/balalab/portal/internal/models"
)

// DashboardState tracks the load lifecycle of a dashboard.
type DashboardState int

const (
	// StateLoading means the first refresh has not completed yet.
	StateLoading DashboardState = iota
	// StateReady means the dashboard holds fetched data.
	StateReady
)

// AdminDashboard manages all users' reports: it lists every report,
// uploads on behalf of a chosen patient, and deletes by ID.
type AdminDashboard struct {
	api *Client

	mu      sync.Mutex
	state   DashboardState
	reports []models.Report
	users   []models.User
}

// NewAdminDashboard returns a dashboard in the loading state.
func NewAdminDashboard(api *Client) *AdminDashboard {
	return &AdminDashboard{api: api}
}

// Refresh fetches all reports and all patient accounts concurrently and
// waits for both. Either fetch failing fails the whole refresh and leaves
// the previously loaded data in place.
func (d *AdminDashboard) Refresh(ctx context.Context) error {
	var (
		wg      sync.WaitGroup
		reports []models.Report
		users   []models.User
		repErr  error
		userErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		reports, repErr = d.api.Reports(ctx)
	}()
	go func() {
		defer wg.Done()
		users, userErr = d.api.Users(ctx)
	}()
	wg.Wait()

	if repErr != nil {
		return repErr
	}
	if userErr != nil {
		return userErr
	}

	d.mu.Lock()
	d.reports = reports
	d.users = users
	d.state = StateReady
	d.mu.Unlock()
	return nil
}

// Upload stores a report for the patient with targetEmail. Both a file and
// a target must be chosen; otherwise a validation error is returned without
// any network request. On success the listing is refreshed.
func (d *AdminDashboard) Upload(ctx context.Context, fileName string, content io.Reader, targetEmail string) error {
	if fileName == "" || content == nil {
		return fmt.Errorf("%w: please select a file", ErrValidation)
	}
	if targetEmail == "" {
		return fmt.Errorf("%w: please select a user", ErrValidation)
	}

	if _, err := d.api.Upload(ctx, fileName, content, targetEmail); err != nil {
		return err
	}
	return d.Refresh(ctx)
}

// Delete removes a report after confirm approves it. Deletion is not
// undoable. A declined confirmation is a no-op. On success the listing is
// refreshed.
func (d *AdminDashboard) Delete(ctx context.Context, id string, confirm func(id string) bool) error {
	if confirm != nil && !confirm(id) {
		return nil
	}
	if err := d.api.DeleteReport(ctx, id); err != nil {
		return err
	}
	return d.Refresh(ctx)
}

// State returns the dashboard's load state.
func (d *AdminDashboard) State() DashboardState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Reports returns the last successfully fetched report list.
func (d *AdminDashboard) Reports() []models.Report {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reports
}

// Users returns the last successfully fetched patient list.
func (d *AdminDashboard) Users() []models.User {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.users
}
