package xid

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// New builds a human-readable identifier: prefix, UTC date stamp, and eight
// hex characters from a random UUID. Ids stay easy to read off a receipt
// while being collision resistant.
func New(prefix string) string {
	datePart := time.Now().UTC().Format("060102")
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s-%s-%s", strings.ToUpper(prefix), datePart, random)
}
