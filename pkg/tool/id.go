package tool

import "github.com/google/uuid"

// NewID returns a UUIDv7 string; ids sort by creation time.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}
