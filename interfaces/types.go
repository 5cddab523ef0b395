package interfaces

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// PackID uniquely identifies an evidence pack. All integrity metadata,
// encrypted content, and custody events belong to exactly one pack.
type PackID string

// NewPackID generates a random pack identifier.
func NewPackID() PackID {
	return PackID(uuid.Must(uuid.NewRandom()).String())
}

// ParsePackID validates a pack identifier string.
func ParsePackID(s string) (PackID, error) {
	if s == "" {
		return "", errors.New("empty pack ID")
	}
	if _, err := uuid.Parse(s); err != nil {
		return "", fmt.Errorf("invalid pack ID %q: %w", s, err)
	}
	return PackID(s), nil
}

// String returns the identifier as a plain string.
func (id PackID) String() string {
	return string(id)
}

// ContentSnapshot maps relative file paths to raw content at one point in
// time. Paths are unique and case-sensitive. The engine never persists the
// plaintext itself; the snapshot is owned transiently by the caller.
type ContentSnapshot map[string][]byte
