package filetransfer

import (
	"errors"
	"fmt"
)

var (
	// ErrStorageFailure matches every error returned by an error record or request store
	// when the underlying database could not complete the operation.
	ErrStorageFailure = errors.New("filetransfer storage failure")
	// ErrFileKeyRequired is returned when Request.FileKey is empty.
	ErrFileKeyRequired = errors.New("filetransfer file key is required")
	// ErrServiceRequired is returned when the source or target service is empty.
	ErrServiceRequired = errors.New("filetransfer source and target services are required")
	// ErrSameService is returned when source and target services are equal.
	ErrSameService = errors.New("filetransfer source and target services must differ")
	// ErrInvalidStatus is returned when parsing an unknown request status.
	ErrInvalidStatus = errors.New("filetransfer request status is invalid")
)

// StorageError wraps a lower-level failure of a store operation.
type StorageError struct {
	// Op names the store operation, e.g. "insert" or "list by request".
	Op  string
	Err error
}

// NewStorageError wraps err for op. It returns nil when err is nil.
func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}

	return &StorageError{Op: op, Err: err}
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("filetransfer storage: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying cause.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrStorageFailure.
func (e *StorageError) Is(target error) bool {
	return target == ErrStorageFailure
}
