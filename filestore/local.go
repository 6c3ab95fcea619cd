package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LocalBackend stores files below a root directory.
type LocalBackend struct {
	name string
	root string
}

var _ Backend = (*LocalBackend)(nil)

// NewLocalBackend creates root if needed and returns a backend serving it.
func NewLocalBackend(name, root string) (*LocalBackend, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("filetransfer filestore: local root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("filetransfer filestore: resolve root failed: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("filetransfer filestore: create root failed: %w", err)
	}

	return &LocalBackend{name: name, root: abs}, nil
}

// Name implements Backend.
func (b *LocalBackend) Name() string {
	return b.name
}

// Root returns the absolute root directory.
func (b *LocalBackend) Root() string {
	return b.root
}

// resolve maps key below root. Cleaning against "/" drops any ".." that would climb out.
func (b *LocalBackend) resolve(key string) (string, error) {
	clean := filepath.Clean("/" + filepath.FromSlash(key))
	if strings.TrimSpace(key) == "" || clean == string(filepath.Separator) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	return filepath.Join(b.root, clean), nil
}

// Open implements Backend.
func (b *LocalBackend) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := b.resolve(key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s/%s", ErrObjectNotFound, b.name, key)
	}
	if err != nil {
		return nil, fmt.Errorf("filetransfer filestore: open %s failed: %w", key, err)
	}

	return f, nil
}

// Put writes to a temporary file next to the target and renames it into place, so
// readers never see a partial file.
func (b *LocalBackend) Put(ctx context.Context, key string, r io.Reader) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := b.resolve(key)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("filetransfer filestore: create dir failed: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("filetransfer filestore: create temp failed: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err := io.Copy(tmp, r); err != nil {
		return errors.Join(fmt.Errorf("filetransfer filestore: write %s failed: %w", key, err), tmp.Close())
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("filetransfer filestore: close %s failed: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("filetransfer filestore: rename %s failed: %w", key, err)
	}

	return nil
}

// Delete implements Backend.
func (b *LocalBackend) Delete(_ context.Context, key string) error {
	path, err := b.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("filetransfer filestore: delete %s failed: %w", key, err)
	}

	return nil
}

// Exists implements Backend.
func (b *LocalBackend) Exists(_ context.Context, key string) (bool, error) {
	path, err := b.resolve(key)
	if err != nil {
		return false, err
	}

	_, err = os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("filetransfer filestore: stat %s failed: %w", key, err)
	}

	return true, nil
}
