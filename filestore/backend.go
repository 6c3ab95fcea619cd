package filestore

import (
	"context"
	"errors"
	"io"
)

var (
	// ErrObjectNotFound is returned when a key does not exist in a backend.
	ErrObjectNotFound = errors.New("filetransfer filestore: object not found")
	// ErrInvalidKey is returned for empty keys or keys escaping the backend root.
	ErrInvalidKey = errors.New("filetransfer filestore: invalid key")
	// ErrUnknownService is returned when a request names an unregistered backend.
	ErrUnknownService = errors.New("filetransfer filestore: unknown service")
	// ErrUnsupportedType is returned by NewBackend for an unknown backend type.
	ErrUnsupportedType = errors.New("filetransfer filestore: unsupported backend type")
	// ErrBucketRequired is returned when an object store backend has no bucket.
	ErrBucketRequired = errors.New("filetransfer filestore: bucket is required")
)

// Backend is one file service files are moved out of or into.
type Backend interface {
	// Name identifies the backend in transfer requests.
	Name() string
	// Open returns the content stored under key. A missing key yields ErrObjectNotFound.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Put stores r under key, replacing any previous content.
	Put(ctx context.Context, key string, r io.Reader) error
	// Delete removes key. A missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)
}
