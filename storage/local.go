package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalProvider implements Provider for the local filesystem. Removals are
// confined to the recovery folders it was created with.
type LocalProvider struct {
	roots []string
}

// NewLocalProvider creates a provider that may only delete files beneath
// the given recovery folders.
func NewLocalProvider(roots ...string) (*LocalProvider, error) {
	abs := make([]string, 0, len(roots))
	for _, r := range roots {
		p, err := filepath.Abs(r)
		if err != nil {
			return nil, fmt.Errorf("failed to get absolute path: %w", err)
		}
		abs = append(abs, filepath.Clean(p))
	}

	return &LocalProvider{
		roots: abs,
	}, nil
}

// OpenFile opens a file for reading
func (p *LocalProvider) OpenFile(ctx context.Context, path string) (Reader, error) {
	// Check context
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	return file, nil
}

// DeleteFile deletes a file
func (p *LocalProvider) DeleteFile(ctx context.Context, path string) error {
	// Check context
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if !p.Allowed(path) {
		return fmt.Errorf("refusing to delete %s: %w", path, ErrOutsideAllowedRoots)
	}

	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}

	return nil
}

// Allowed reports whether path lies strictly inside one of the recovery
// folders.
func (p *LocalProvider) Allowed(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	abs = filepath.Clean(abs)

	for _, root := range p.roots {
		rel, err := filepath.Rel(root, abs)
		if err != nil || rel == "." {
			continue
		}
		if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		return true
	}
	return false
}

// Name returns the provider name
func (p *LocalProvider) Name() string {
	return "local"
}

// Close cleans up provider resources (no-op for local)
func (p *LocalProvider) Close() error {
	return nil
}

// Ensure LocalProvider implements Provider interface
var _ Provider = (*LocalProvider)(nil)
