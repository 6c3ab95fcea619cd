package filetransfer

import "context"

// Transferer moves the file of a single request to its target service.
type Transferer interface {
	// Transfer returns nil on success. Failures are reported as errors, preferably
	// *TransferError so the code survives classification.
	Transfer(ctx context.Context, req Request) error
}

// TransferFunc adapts a function to Transferer.
type TransferFunc func(ctx context.Context, req Request) error

// Transfer implements Transferer.
func (fn TransferFunc) Transfer(ctx context.Context, req Request) error {
	return fn(ctx, req)
}
