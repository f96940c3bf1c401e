package docbase

import "context"

// MigrationFunc transforms one entity during a data migration. Returning
// (nil, nil) leaves the entity untouched. The id is immutable; a
// transform that changes it fails the migration.
type MigrationFunc func(e Entity) (Entity, error)

// Migrate applies transform to every entity of a collection, including
// soft-deleted ones, as one atomic transaction: a transform or
// constraint failure on any entity leaves the collection unchanged.
// Returns how many entities were rewritten.
//
//	migrated, err := eng.Migrate(ctx, "products", func(e docbase.Entity) (docbase.Entity, error) {
//	    price, ok := e["price"].(float64)
//	    if !ok {
//	        return nil, nil
//	    }
//	    next := e.Clone()
//	    next["price_cents"] = price * 100
//	    delete(next, "price")
//	    return next, nil
//	})
func (eng *Engine) Migrate(ctx context.Context, collection string, transform MigrationFunc) (int, error) {
	migrated := 0
	err := eng.Transaction(ctx, func(tx *Tx) error {
		col, err := eng.Collection(collection)
		if err != nil {
			return err
		}
		o := tx.overlay(col)

		for _, id := range sortedIDs(o.entities) {
			if err := ctx.Err(); err != nil {
				return err
			}
			existing := o.entities[id]
			next, err := transform(existing.Clone())
			if err != nil {
				return WithContext(err, map[string]interface{}{
					"collection": collection,
					"id":         id,
				})
			}
			if next == nil || equalValues(map[string]interface{}(next), map[string]interface{}(existing)) {
				continue
			}
			if next.ID() != id {
				return WithContext(ErrOperation, map[string]interface{}{
					"collection": collection,
					"id":         id,
					"reason":     "id is immutable",
				})
			}
			next, err = col.validator.Validate(map[string]interface{}(next))
			if err != nil {
				return err
			}
			if err := col.validateUpdate(o.entities, id, next, tx); err != nil {
				return err
			}
			o.entities[id] = next
			o.indexUpdate(existing, next)
			tx.changes = append(tx.changes, Change{Collection: collection, Op: OpUpdate})
			migrated++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	eng.logger.Info("migration applied", "collection", collection, "migrated", migrated)
	return migrated, nil
}
