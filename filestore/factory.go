package filestore

import (
	"context"
	"fmt"
	"strings"
)

// Backend types accepted by NewBackend.
const (
	TypeLocal = "local"
	TypeS3    = "s3"
	TypeGCS   = "gcs"
)

// BackendConfig describes one named backend.
type BackendConfig struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Root     string `yaml:"root"`
	Bucket   string `yaml:"bucket"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
	Prefix   string `yaml:"prefix"`
}

// NewBackend builds the backend cfg.Type selects.
func NewBackend(ctx context.Context, cfg BackendConfig) (Backend, error) {
	if strings.TrimSpace(cfg.Name) == "" {
		return nil, fmt.Errorf("filetransfer filestore: backend name is required")
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Type)) {
	case TypeLocal, "":
		return NewLocalBackend(cfg.Name, cfg.Root)
	case TypeS3:
		return NewS3Backend(ctx, cfg.Name, S3Config{
			Bucket:   cfg.Bucket,
			Region:   cfg.Region,
			Endpoint: cfg.Endpoint,
			Prefix:   cfg.Prefix,
		})
	case TypeGCS:
		return newGCSBackend(ctx, cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, cfg.Type)
	}
}
