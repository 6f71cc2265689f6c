package memory

import (
	"github.com/oklog/ulid/v2"
)

// newItemID returns a fresh ULID string for a memory item.
func newItemID() string {
	return ulid.Make().String()
}
