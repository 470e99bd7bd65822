// Package storage is the persistent file store behind the module loader.
// Paths are device-style absolute paths ("/main.lua") resolved under a base
// location, which may be a local directory or any afs URL (file://, mem://, ...).
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"
)

// ErrNotFound is returned when a path does not exist in the store.
var ErrNotFound = errors.New("file not found")

// Store is the file access contract consumed by the module loader.
type Store interface {
	Read(ctx context.Context, path string) ([]byte, error)
	Write(ctx context.Context, path string, data []byte) error
	Remove(ctx context.Context, path string) error
	Exists(ctx context.Context, path string) (bool, error)
}

// Service implements Store on top of an afs.Service.
type Service struct {
	baseURL string
	fs      afs.Service
	mu      sync.RWMutex
}

// Ensure Service implements Store
var _ Store = (*Service)(nil)

// New creates a store rooted at base, creating the location if needed.
func New(ctx context.Context, base string) (*Service, error) {
	if base == "" {
		return nil, fmt.Errorf("storage base cannot be empty")
	}

	fs := afs.New()
	baseURL := url.Normalize(base, file.Scheme)

	exists, _ := fs.Exists(ctx, baseURL)
	if !exists {
		if err := fs.Create(ctx, baseURL, file.DefaultDirOsMode, true); err != nil {
			return nil, fmt.Errorf("failed to create storage location %s: %w", baseURL, err)
		}
	}

	return &Service{
		baseURL: baseURL,
		fs:      fs,
	}, nil
}

// BaseURL returns the normalized root location.
func (s *Service) BaseURL() string {
	return s.baseURL
}

// Read returns the whole content of path.
func (s *Service) Read(ctx context.Context, path string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	location := s.resolve(path)
	exists, err := s.fs.Exists(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("failed to check %s: %w", path, err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}

	data, err := s.fs.DownloadWithURL(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

// Write replaces the content of path with data.
func (s *Service) Write(ctx context.Context, path string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	location := s.resolve(path)
	if err := s.fs.Upload(ctx, location, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// Remove deletes path; removing a missing path is not an error.
func (s *Service) Remove(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	location := s.resolve(path)
	exists, err := s.fs.Exists(ctx, location)
	if err != nil {
		return fmt.Errorf("failed to check %s: %w", path, err)
	}
	if !exists {
		return nil
	}
	if err := s.fs.Delete(ctx, location); err != nil {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}
	return nil
}

// Exists reports whether path is present.
func (s *Service) Exists(ctx context.Context, path string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.fs.Exists(ctx, s.resolve(path))
}

func (s *Service) resolve(path string) string {
	return url.Join(s.baseURL, strings.TrimPrefix(path, "/"))
}
