package filetransfer

import (
	"context"
	"time"
)

// RequestSelector provides the requests due for a cycle.
type RequestSelector interface {
	// SelectDue returns at most limit requests whose execution time is at or before asOf,
	// in the order they must be processed. A limit <= 0 means no limit.
	SelectDue(ctx context.Context, asOf time.Time, limit int) ([]Request, error)
}

// RequestSelectorFunc adapts a function to RequestSelector.
type RequestSelectorFunc func(ctx context.Context, asOf time.Time, limit int) ([]Request, error)

// SelectDue implements RequestSelector.
func (fn RequestSelectorFunc) SelectDue(ctx context.Context, asOf time.Time, limit int) ([]Request, error) {
	return fn(ctx, asOf, limit)
}

// ErrorRecorder persists error records produced by a cycle.
type ErrorRecorder interface {
	// RecordError inserts the record and sets record.ID to the assigned identifier.
	RecordError(ctx context.Context, record *ErrorRecord) error
}

// UnlockFunc releases a lease obtained from a Locker.
type UnlockFunc func(ctx context.Context) error

// Locker guards a cycle against overlapping runs in other processes.
type Locker interface {
	// TryLock attempts to take the lease without waiting. ok is false when another
	// holder owns it.
	TryLock(ctx context.Context) (unlock UnlockFunc, ok bool, err error)
}

// PendingCounter provides the number of pending requests.
type PendingCounter interface {
	// PendingCount returns the current number of pending requests.
	PendingCount(ctx context.Context) (int, error)
}
