package tokenstore

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by Read when no record is stored.
	ErrNotFound = errors.New("no stored record")
	// ErrReadOnly is returned by Write and Delete on read-only backends.
	ErrReadOnly = errors.New("storage is read-only")
)

// Store reads and writes one opaque record to persistent storage.
type Store interface {
	// Read returns the stored record. Returns ErrNotFound if nothing is stored.
	Read(ctx context.Context) ([]byte, error)

	// Write replaces the stored record atomically: a concurrent or subsequent
	// Read observes either the previous or the new record, never a partial one.
	Write(ctx context.Context, data []byte) error

	// Delete removes the stored record. Deleting a missing record is not an error.
	Delete(ctx context.Context) error
}
