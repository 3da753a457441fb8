package portal

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/balalab/portal/internal/models"
)

// ReportViewer shows the authenticated user their own reports and supports
// preview and download. Scoping to the caller happens server-side from the
// token identity; the viewer never filters client-side.
type ReportViewer struct {
	api *Client

	mu      sync.Mutex
	state   DashboardState
	reports []models.Report
}

// NewReportViewer returns a viewer in the loading state.
func NewReportViewer(api *Client) *ReportViewer {
	return &ReportViewer{api: api}
}

// Refresh fetches the caller's reports. On failure the previously loaded
// list stays visible.
func (v *ReportViewer) Refresh(ctx context.Context) error {
	reports, err := v.api.Reports(ctx)
	if err != nil {
		return err
	}

	v.mu.Lock()
	v.reports = reports
	v.state = StateReady
	v.mu.Unlock()
	return nil
}

// Download saves the report's content under suggestedName in destDir and
// returns the written path.
func (v *ReportViewer) Download(ctx context.Context, id, suggestedName, destDir string) (string, error) {
	if suggestedName == "" {
		suggestedName = id
	}
	path := filepath.Join(destDir, filepath.Base(suggestedName))

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	defer f.Close()

	if err := v.api.Download(ctx, id, f); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

// PreviewURL returns the address to open the report inline, with the
// bearer token carried as a query parameter.
func (v *ReportViewer) PreviewURL(id string) string {
	return v.api.PreviewURL(id)
}

// State returns the viewer's load state.
func (v *ReportViewer) State() DashboardState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Reports returns the last successfully fetched report list.
func (v *ReportViewer) Reports() []models.Report {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.reports
}
