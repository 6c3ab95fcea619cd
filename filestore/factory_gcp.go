//go:build gcp

package filestore

import "context"

func newGCSBackend(ctx context.Context, cfg BackendConfig) (Backend, error) {
	return NewGCSBackend(ctx, cfg.Name, GCSConfig{Bucket: cfg.Bucket, Prefix: cfg.Prefix})
}
