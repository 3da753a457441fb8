// Package storage keeps uploaded report files on local disk.
package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// DiskStore stores report blobs as flat files under a single directory.
// Stored names are generated, never derived from client input.
type DiskStore struct {
	// Dir is the upload directory.
	Dir string
}

// NewDiskStore creates the upload directory if needed and returns a store.
func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &DiskStore{Dir: dir}, nil
}

// Save writes content to a fresh uuid-named file carrying ext
// (".pdf", ".png", ...) and returns the stored name.
func (d *DiskStore) Save(ext string, content io.Reader) (string, error) {
	name := uuid.NewString() + strings.ToLower(ext)
	f, err := os.Create(filepath.Join(d.Dir, name))
	if err != nil {
		return "", fmt.Errorf("create blob: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, content); err != nil {
		// best effort: don't leave a partial blob behind
		os.Remove(f.Name())
		return "", fmt.Errorf("write blob: %w", err)
	}
	return name, nil
}

// Open returns a reader over the stored file. The caller closes it.
func (d *DiskStore) Open(name string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(d.Dir, filepath.Base(name)))
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Remove deletes the stored file. Removing an absent file is not an error.
func (d *DiskStore) Remove(name string) error {
	err := os.Remove(filepath.Join(d.Dir, filepath.Base(name)))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
