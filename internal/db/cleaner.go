package db

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// StartOrphanFileCleaner removes files from the upload directory that no
// report row references. A crash between blob write and row insert, or
// between row delete and blob remove, leaves such orphans behind.
func StartOrphanFileCleaner(
	ctx context.Context,
	db *sql.DB,
	uploadDir string,
	interval time.Duration,
	log *zap.Logger,
) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := sweepOrphans(ctx, db, uploadDir, interval)
				if err != nil {
					log.Error("failed to clean orphaned upload files", zap.Error(err))
					continue
				}
				if removed > 0 {
					log.Info("cleaned orphaned upload files", zap.Int("removed", removed))
				}
			}
		}
	}()
}

// sweepOrphans removes unreferenced upload files older than grace. A blob
// is written before its metadata row commits, so files younger than grace
// may belong to an upload still in flight and are left alone.
func sweepOrphans(ctx context.Context, db *sql.DB, uploadDir string, grace time.Duration) (int, error) {
	entries, err := os.ReadDir(uploadDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	rows, err := db.QueryContext(ctx, `SELECT file_name FROM reports`)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	known := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return 0, err
		}
		known[name] = true
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-grace)
	removed := 0
	for _, e := range entries {
		if e.IsDir() || known[e.Name()] {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(uploadDir, e.Name())); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
