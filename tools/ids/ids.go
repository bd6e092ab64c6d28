package ids

import (
	"strings"

	"github.com/google/uuid"
)

// NewConnID returns a fresh physical-connection identifier.
// Connection IDs are opaque; nothing may parse them.
func NewConnID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
