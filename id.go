package docbase

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// IDGenerator produces a new unique entity id.
type IDGenerator func() string

// NewID generates a UUIDv7 (time-ordered) identifier
// UUIDv7 benefits:
// - Sortable by creation time
// - Index friendly
// - Distributed system friendly (no coordination needed)
// - Can infer creation time from ID
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// Fall back to UUIDv4 if NewV7 fails (extremely rare)
		id = uuid.New()
	}
	return id.String()
}

// ParseID parses a UUID string
func ParseID(s string) (uuid.UUID, error) {
	return uuid.Parse(s)
}

// IsValidID checks if a string is a valid UUID
func IsValidID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// SequenceGenerator produces zero-padded monotonically increasing ids.
// The counter is owned by the generator instance, never process-global,
// so multiple engine instances do not interfere.
type SequenceGenerator struct {
	prefix  string
	counter atomic.Uint64
}

// NewSequenceGenerator creates a sequence generator with the given prefix.
func NewSequenceGenerator(prefix string) *SequenceGenerator {
	return &SequenceGenerator{prefix: prefix}
}

// Next returns the next id in the sequence, e.g. "order-00000000000000000042".
// Zero padding keeps sequence ids lexically monotonic, which matters for
// cursor pagination over id-sorted results.
func (g *SequenceGenerator) Next() string {
	n := g.counter.Add(1)
	return fmt.Sprintf("%s%020d", g.prefix, n)
}
