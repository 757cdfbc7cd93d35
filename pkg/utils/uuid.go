package utils

import "github.com/google/uuid"

// NewID returns a random version-4 UUID in its canonical string form,
// used as the stable identifier for songs.
func NewID() string {
	return uuid.NewString()
}
