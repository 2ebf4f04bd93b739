package parley

import (
	"time"

	"github.com/google/uuid"
)

// NewID generates a globally unique, time-sortable UUIDv7 (RFC 9562).
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Timestamp returns the current time as an RFC 3339 string with nanosecond
// precision. Lexical order equals chronological order, which the memory
// layer relies on when merging reference chats.
func Timestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
