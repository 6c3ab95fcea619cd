package filetransfer

import "time"

// ErrorRecord is one failed transfer attempt.
//
// ID is zero until the record is persisted; the store assigns it on insert and it never
// changes afterwards. Message and Trace may be empty. Several records may reference the
// same RequestID, one per failed attempt.
type ErrorRecord struct {
	ID            int64
	RequestID     int64
	Code          int
	Message       string
	Trace         string
	ExecutionTime time.Time
}

// ErrorReference is the short form of an ErrorRecord used for pick lists.
type ErrorReference struct {
	ID        int64
	RequestID int64
	Message   string
}

// Persisted reports whether the record already carries a store-assigned id.
func (r ErrorRecord) Persisted() bool {
	return r.ID != 0
}
