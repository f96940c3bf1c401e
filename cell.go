package docbase

import (
	"sync"
	"sync/atomic"
)

// StateCell holds the authoritative id->entity association for one
// collection behind an atomically swappable snapshot. Snapshots are
// immutable by convention: a Commit transform must build a replacement
// map rather than mutate the current one, so readers holding a snapshot
// never observe a half-applied write and an abandoned commit leaves no
// partial state behind.
type StateCell struct {
	mu      sync.Mutex
	snap    atomic.Value // map[string]Entity
	version atomic.Uint64
}

// NewStateCell creates a cell seeded with the given entities.
// The key for each entity is its id field.
func NewStateCell(initial []Entity) (*StateCell, error) {
	snap := make(map[string]Entity, len(initial))
	for _, e := range initial {
		id := e.ID()
		if id == "" {
			return nil, WithContext(ErrInvalidData, map[string]interface{}{
				"reason": "entity missing id",
			})
		}
		if _, exists := snap[id]; exists {
			return nil, WithContext(ErrDuplicateKey, map[string]interface{}{
				"id": id,
			})
		}
		snap[id] = e
	}
	c := &StateCell{}
	c.snap.Store(snap)
	return c, nil
}

// Snapshot returns the current snapshot. The returned map must be treated
// as read-only.
func (c *StateCell) Snapshot() map[string]Entity {
	return c.snap.Load().(map[string]Entity)
}

// Version returns the number of commits applied to this cell. Transaction
// overlays record the version at staging time and compare at commit time
// to detect conflicting writes.
func (c *StateCell) Version() uint64 {
	return c.version.Load()
}

// Commit applies transform to the current snapshot and atomically replaces
// it on success. The transform runs while holding the cell's lock, so any
// consistency check that must not race a concurrent write (uniqueness,
// foreign-key existence) belongs inside the transform, not before the
// Commit call. The transform must return a fresh map; returning an error
// leaves the cell untouched.
func (c *StateCell) Commit(transform func(current map[string]Entity) (map[string]Entity, error)) (map[string]Entity, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	current := c.snap.Load().(map[string]Entity)
	next, err := transform(current)
	if err != nil {
		return nil, err
	}
	c.snap.Store(next)
	c.version.Add(1)
	return next, nil
}

// replace swaps the snapshot only if the cell version still matches
// expected. Used by the transaction coordinator to apply a staged overlay;
// a version mismatch means a commit landed after the overlay was taken.
func (c *StateCell) replace(next map[string]Entity, expected uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.version.Load() != expected {
		return false
	}
	c.snap.Store(next)
	c.version.Add(1)
	return true
}

// withEntity returns a copy of snap with e inserted under its id.
func withEntity(snap map[string]Entity, e Entity) map[string]Entity {
	next := make(map[string]Entity, len(snap)+1)
	for k, v := range snap {
		next[k] = v
	}
	next[e.ID()] = e
	return next
}

// withoutEntity returns a copy of snap with id removed.
func withoutEntity(snap map[string]Entity, id string) map[string]Entity {
	next := make(map[string]Entity, len(snap))
	for k, v := range snap {
		if k != id {
			next[k] = v
		}
	}
	return next
}
