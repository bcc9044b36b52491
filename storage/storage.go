// Package storage provides the filesystem access used by the decision engine.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrOutsideAllowedRoots is returned when a removal targets a path that is
// not inside one of the provider's recovery folders.
var ErrOutsideAllowedRoots = errors.New("path is outside the recovery folders")

// Reader provides read access to a file
type Reader interface {
	io.ReadCloser
}

// Opener opens files for content hashing.
type Opener interface {
	OpenFile(ctx context.Context, path string) (Reader, error)
}

// Remover removes files the engine decided to delete.
type Remover interface {
	DeleteFile(ctx context.Context, path string) error
}

// Provider defines the interface for storage providers
type Provider interface {
	Opener
	Remover

	// Name returns the provider name
	Name() string

	// Close cleans up provider resources
	Close() error
}
