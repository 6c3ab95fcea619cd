//go:build !gcp

package filestore

import (
	"context"
	"errors"
)

func newGCSBackend(context.Context, BackendConfig) (Backend, error) {
	return nil, errors.New("filetransfer filestore: GCS storage is not enabled in this build (use -tags gcp)")
}
