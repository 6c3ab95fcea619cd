//go:build gcp

package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
)

// GCSConfig configures a GCSBackend.
type GCSConfig struct {
	Bucket string
	Prefix string
}

// GCSBackend stores files as objects in one Cloud Storage bucket.
type GCSBackend struct {
	name   string
	client *storage.Client
	bucket string
	prefix string
}

var _ Backend = (*GCSBackend)(nil)

// NewGCSBackend creates a client using application default credentials.
func NewGCSBackend(ctx context.Context, name string, cfg GCSConfig) (*GCSBackend, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, ErrBucketRequired
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("filetransfer filestore: create gcs client failed: %w", err)
	}

	return &GCSBackend{name: name, client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

// Name implements Backend.
func (b *GCSBackend) Name() string {
	return b.name
}

// Close releases the underlying client.
func (b *GCSBackend) Close() error {
	return b.client.Close()
}

func (b *GCSBackend) object(key string) (*storage.ObjectHandle, error) {
	trimmed := strings.TrimLeft(key, "/")
	if strings.TrimSpace(trimmed) == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	return b.client.Bucket(b.bucket).Object(b.prefix + trimmed), nil
}

// Open implements Backend.
func (b *GCSBackend) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := b.object(key)
	if err != nil {
		return nil, err
	}

	reader, err := obj.NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, fmt.Errorf("%w: %s/%s", ErrObjectNotFound, b.name, key)
	}
	if err != nil {
		return nil, fmt.Errorf("filetransfer filestore: gcs get %s failed: %w", key, err)
	}

	return reader, nil
}

// Put implements Backend.
func (b *GCSBackend) Put(ctx context.Context, key string, r io.Reader) error {
	obj, err := b.object(key)
	if err != nil {
		return err
	}

	w := obj.NewWriter(ctx)
	w.ContentType = "application/octet-stream"
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return fmt.Errorf("filetransfer filestore: gcs write %s failed: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("filetransfer filestore: gcs close %s failed: %w", key, err)
	}

	return nil
}

// Delete implements Backend.
func (b *GCSBackend) Delete(ctx context.Context, key string) error {
	obj, err := b.object(key)
	if err != nil {
		return err
	}
	if err := obj.Delete(ctx); err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("filetransfer filestore: gcs delete %s failed: %w", key, err)
	}

	return nil
}

// Exists implements Backend.
func (b *GCSBackend) Exists(ctx context.Context, key string) (bool, error) {
	obj, err := b.object(key)
	if err != nil {
		return false, err
	}

	_, err = obj.Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("filetransfer filestore: gcs attrs %s failed: %w", key, err)
	}

	return true, nil
}
