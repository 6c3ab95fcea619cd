package filetransfer

import "time"

// Request is a pending move of one file from a source service to a target service.
// The daemon itself only reads ID and ExecutionTime; the remaining fields are consumed
// by the Transferer.
type Request struct {
	ID int64
	// FileKey locates the file inside SourceService.
	FileKey string
	// SourceService names the backend that currently holds the file ("old" service).
	SourceService string
	// TargetService names the backend the file must be moved to ("new" service).
	TargetService string
	// TargetKey is the key in TargetService, set once the transfer completed.
	TargetKey string
	Status    RequestStatus
	// ExecutionTime is the earliest time the request may run.
	ExecutionTime time.Time
	CreatedAt     time.Time
}

// Validate checks the fields required to enqueue a request.
func (r Request) Validate() error {
	if r.FileKey == "" {
		return ErrFileKeyRequired
	}
	if r.SourceService == "" || r.TargetService == "" {
		return ErrServiceRequired
	}
	if r.SourceService == r.TargetService {
		return ErrSameService
	}

	return nil
}
