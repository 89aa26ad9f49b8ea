// Package nsid defines the stable inode identifier used throughout the
// namespace engine: an opaque, 36-character uppercase token.
package nsid

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Length is the fixed width of an ID in its string form.
const Length = 36

// ID is a 36-character uppercase inode identifier. The zero value is not
// a valid ID; use Root for the well-known root inode or New to allocate
// a fresh one.
type ID string

// Root is the well-known ID of the filesystem root: 36 zero characters.
const Root ID = ID("000000000000000000000000000000000000")

// New allocates a fresh, randomly chosen ID. Collisions are astronomically
// unlikely (the value is derived from a UUIDv4) but callers that insert
// into t_inodes should still treat a unique-key violation on the ID
// column as a reason to retry with a new one.
func New() ID {
	u := uuid.New()
	digits := strings.ToUpper(strings.ReplaceAll(u.String(), "-", ""))
	// A UUID without dashes is 32 hex chars; pad to the fixed 36-char
	// width used throughout the schema with two more random bytes.
	var pad [2]byte
	if _, err := rand.Read(pad[:]); err != nil {
		panic(fmt.Sprintf("nsid: reading random padding: %v", err))
	}
	return ID(digits + strings.ToUpper(hex.EncodeToString(pad[:])))
}

// Valid reports whether id has the expected length. It does not validate
// character content; t_inodes is the source of truth for existence.
func (id ID) Valid() bool {
	return len(id) == Length
}

// IsRoot reports whether id is the well-known root ID.
func (id ID) IsRoot() bool {
	return id == Root
}

// String implements fmt.Stringer.
func (id ID) String() string {
	return string(id)
}
