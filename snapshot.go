package docbase

import "context"

// SnapshotStore is the persistence contract. The engine treats it as a
// whole-collection document store: Load returns everything persisted for
// a collection (an absent collection is an empty slice, not an error) and
// Save replaces the persisted state wholesale. Incremental persistence is
// an adapter concern, not an engine one.
type SnapshotStore interface {
	Load(ctx context.Context, collection string) ([]Entity, error)
	Save(ctx context.Context, collection string, entities []Entity) error
}
