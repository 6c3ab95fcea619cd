package filetransfer

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Failure codes assigned by DefaultClassifier when the transferer did not supply one.
// Transferers own every other code.
const (
	CodeUnclassified = 1
	CodeTimeout      = 2
	CodePanic        = 3
)

// TransferError is the typed failure a Transferer returns.
type TransferError struct {
	Code    int
	Message string
	Err     error
}

// NewTransferError builds a TransferError with an optional cause.
func NewTransferError(code int, message string, err error) *TransferError {
	return &TransferError{Code: code, Message: message, Err: err}
}

func (e *TransferError) Error() string {
	switch {
	case e.Err == nil:
		return e.Message
	case e.Message == "":
		return e.Err.Error()
	default:
		return e.Message + ": " + e.Err.Error()
	}
}

// Unwrap returns the underlying cause.
func (e *TransferError) Unwrap() error {
	return e.Err
}

// PanicError carries a value recovered from a panicking Transferer.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("transfer panic: %v", e.Value)
}

// Failure is the classified form of a transfer error, ready to be stored.
type Failure struct {
	Code    int
	Message string
	Trace   string
}

// FailureClassifier turns a transfer error into a Failure.
type FailureClassifier func(ctx context.Context, req Request, err error) Failure

// DefaultClassifier keeps the code and message of a *TransferError, maps panics and
// deadline errors to CodePanic and CodeTimeout, and falls back to CodeUnclassified.
// The trace is always the expanded cause chain.
func DefaultClassifier(_ context.Context, _ Request, err error) Failure {
	failure := Failure{Code: CodeUnclassified, Trace: CauseChain(err)}
	if err == nil {
		return failure
	}
	failure.Message = err.Error()

	var transferErr *TransferError
	var panicErr *PanicError
	switch {
	case errors.As(err, &transferErr):
		failure.Code = transferErr.Code
		if transferErr.Message != "" {
			failure.Message = transferErr.Message
		}
	case errors.As(err, &panicErr):
		failure.Code = CodePanic
		if len(panicErr.Stack) > 0 {
			failure.Trace += "\n" + string(panicErr.Stack)
		}
	case errors.Is(err, context.DeadlineExceeded):
		failure.Code = CodeTimeout
		failure.Message = "timeout"
	}

	return failure
}

// CauseChain renders err and every error it wraps, one per line. Joined errors are
// expanded with increasing indentation.
func CauseChain(err error) string {
	if err == nil {
		return ""
	}

	var b strings.Builder
	writeCause(&b, err, 0)

	return strings.TrimRight(b.String(), "\n")
}

func writeCause(b *strings.Builder, err error, depth int) {
	for err != nil {
		b.WriteString(strings.Repeat("  ", depth))
		if depth > 0 || b.Len() > 0 {
			b.WriteString("caused by: ")
		}
		b.WriteString(err.Error())
		b.WriteByte('\n')

		if joined, ok := err.(interface{ Unwrap() []error }); ok {
			for _, inner := range joined.Unwrap() {
				writeCause(b, inner, depth+1)
			}

			return
		}
		err = errors.Unwrap(err)
	}
}
