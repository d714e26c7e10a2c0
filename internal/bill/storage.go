package bill

import (
	"fmt"
	"os"
	"path/filepath"
)

// Storage defines the interface for receipt image storage. The original
// upload is kept next to its bill so history entries can show the photo.
type Storage interface {
	// Save saves an image and returns the stored filename
	Save(filename string, data []byte) (string, error)

	// Get retrieves an image by stored filename
	Get(path string) ([]byte, error)

	// Delete removes an image
	Delete(path string) error
}

// DiskStorage implements the Storage interface on the local filesystem
type DiskStorage struct {
	basePath string
}

// NewDiskStorage creates a DiskStorage rooted at basePath, creating the
// directory if needed
func NewDiskStorage(basePath string) (*DiskStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}

	return &DiskStorage{
		basePath: basePath,
	}, nil
}

// Save saves an image to disk
func (d *DiskStorage) Save(filename string, data []byte) (string, error) {
	path := filepath.Join(d.basePath, filename)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("writing file: %w", err)
	}
	return filename, nil
}

// Get retrieves an image from disk
func (d *DiskStorage) Get(path string) ([]byte, error) {
	fullPath := filepath.Join(d.basePath, path)
	data, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return data, nil
}

// Delete removes an image from disk
func (d *DiskStorage) Delete(path string) error {
	fullPath := filepath.Join(d.basePath, path)
	if err := os.Remove(fullPath); err != nil {
		return fmt.Errorf("deleting file: %w", err)
	}
	return nil
}
