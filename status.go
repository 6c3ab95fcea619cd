package filetransfer

// RequestStatus represents the lifecycle state of a transfer request.
type RequestStatus int16

const (
	// StatusPending marks a request that is eligible once its execution time is due.
	StatusPending RequestStatus = 0
	// StatusDone marks a request whose file now lives in the target service.
	StatusDone RequestStatus = 1
	// StatusCanceled marks a request withdrawn before it could complete.
	StatusCanceled RequestStatus = -1
)

// String returns the lower-case status name.
func (s RequestStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusDone:
		return "done"
	case StatusCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// ParseRequestStatus maps a status name back to its value.
func ParseRequestStatus(name string) (RequestStatus, error) {
	switch name {
	case "pending":
		return StatusPending, nil
	case "done":
		return StatusDone, nil
	case "canceled":
		return StatusCanceled, nil
	default:
		return 0, ErrInvalidStatus
	}
}
