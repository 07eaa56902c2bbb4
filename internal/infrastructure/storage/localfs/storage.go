// Package localfs resolves document source locators against a base
// directory. It is the default DocumentFetcher for deployments where the
// storage collaborator drops files on a shared volume.
package localfs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type Fetcher struct {
	basePath string
}

func New(basePath string) (*Fetcher, error) {
	if basePath == "" {
		basePath = "./data/storage"
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("resolve storage dir: %w", err)
	}
	return &Fetcher{basePath: abs}, nil
}

func (f *Fetcher) Fetch(_ context.Context, locator string) ([]byte, error) {
	path, err := f.resolve(locator)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read document %q: %w", locator, err)
	}
	return raw, nil
}

// resolve keeps locators inside the base directory.
func (f *Fetcher) resolve(locator string) (string, error) {
	cleaned := filepath.Clean(strings.TrimPrefix(locator, "file://"))
	if filepath.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("locator escapes storage root: %q", locator)
	}
	return filepath.Join(f.basePath, cleaned), nil
}
