package filetransfer

import "github.com/google/uuid"

// newRunID returns a time-ordered UUID v7 for a cycle, falling back to v4 when the
// v7 generator cannot read randomness.
func newRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}

	return id.String()
}
