package docbase

import "context"

// DeleteManyOptions controls a filtered bulk delete. Limit caps the
// number of deletions, applied in stable id order; zero means no cap.
type DeleteManyOptions struct {
	Soft  bool
	Limit int
}

// CreateMany creates all entities or none. The whole batch is one
// transaction, so a constraint failure on the last item discards every
// earlier one.
func (c *Collection) CreateMany(ctx context.Context, raws []interface{}) ([]Entity, error) {
	out := make([]Entity, 0, len(raws))
	err := c.engine.Transaction(ctx, func(tx *Tx) error {
		tc, err := tx.Collection(c.name)
		if err != nil {
			return err
		}
		for _, raw := range raws {
			e, err := tc.Create(ctx, raw)
			if err != nil {
				return err
			}
			out = append(out, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateMany applies one update spec to every entity matching the
// filter, atomically. Returns the updated entities in stable id order.
func (c *Collection) UpdateMany(ctx context.Context, where Where, spec map[string]interface{}) ([]Entity, error) {
	var out []Entity
	err := c.engine.Transaction(ctx, func(tx *Tx) error {
		tc, err := tx.Collection(c.name)
		if err != nil {
			return err
		}
		ids, err := tc.matchingIDs(where, 0)
		if err != nil {
			return err
		}
		for _, id := range ids {
			e, err := tc.Update(ctx, id, spec)
			if err != nil {
				return err
			}
			out = append(out, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteMany deletes every entity matching the filter, atomically, each
// through the full cascade-aware delete path. Returns how many were
// deleted.
func (c *Collection) DeleteMany(ctx context.Context, where Where, opts DeleteManyOptions) (int, error) {
	deleted := 0
	err := c.engine.Transaction(ctx, func(tx *Tx) error {
		tc, err := tx.Collection(c.name)
		if err != nil {
			return err
		}
		ids, err := tc.matchingIDs(where, opts.Limit)
		if err != nil {
			return err
		}
		for _, id := range ids {
			// A cascade from an earlier deletion in this batch may have
			// already removed this entity.
			o := tc.tx.overlay(tc.col)
			if _, still := o.entities[id]; !still {
				continue
			}
			if err := tc.Delete(ctx, id, DeleteOptions{Soft: opts.Soft}); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// Upsert creates the entity, or updates the existing one matching it on
// the given fields. Exactly one entity may match; more than one is an
// ErrOperation, because the target of the update would be ambiguous.
func (c *Collection) Upsert(ctx context.Context, raw interface{}, matchFields []string) (Entity, error) {
	var out Entity
	err := c.engine.Transaction(ctx, func(tx *Tx) error {
		tc, err := tx.Collection(c.name)
		if err != nil {
			return err
		}
		e, err := tc.upsert(ctx, raw, matchFields)
		if err != nil {
			return err
		}
		out = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpsertMany upserts a batch atomically against the same match fields.
func (c *Collection) UpsertMany(ctx context.Context, raws []interface{}, matchFields []string) ([]Entity, error) {
	out := make([]Entity, 0, len(raws))
	err := c.engine.Transaction(ctx, func(tx *Tx) error {
		tc, err := tx.Collection(c.name)
		if err != nil {
			return err
		}
		for _, raw := range raws {
			e, err := tc.upsert(ctx, raw, matchFields)
			if err != nil {
				return err
			}
			out = append(out, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (tc *TxCollection) upsert(ctx context.Context, raw interface{}, matchFields []string) (Entity, error) {
	if len(matchFields) == 0 {
		return nil, WithContext(ErrOperation, map[string]interface{}{
			"collection": tc.col.name,
			"reason":     "upsert requires at least one match field",
		})
	}
	candidate, err := tc.col.validator.Validate(raw)
	if err != nil {
		return nil, err
	}

	where := Where{}
	for _, field := range matchFields {
		v, ok := fieldValue(candidate, field)
		if !ok {
			return nil, WithContext(ErrOperation, map[string]interface{}{
				"collection": tc.col.name,
				"field":      field,
				"reason":     "upsert match field absent from entity",
			})
		}
		where[field] = v
	}

	ids, err := tc.matchingIDs(where, 0)
	if err != nil {
		return nil, err
	}
	switch len(ids) {
	case 0:
		return tc.Create(ctx, raw)
	case 1:
		spec := make(map[string]interface{}, len(candidate))
		for k, v := range candidate {
			if k == "id" {
				continue
			}
			spec[k] = map[string]interface{}{uopSet: v}
		}
		return tc.Update(ctx, ids[0], spec)
	default:
		return nil, WithContext(ErrOperation, map[string]interface{}{
			"collection": tc.col.name,
			"fields":     matchFields,
			"reason":     "upsert matched more than one entity",
			"count":      len(ids),
		})
	}
}

// matchingIDs lists the live (not soft-deleted) entities in the overlay
// matching the filter, in stable id order, optionally capped.
func (tc *TxCollection) matchingIDs(where Where, limit int) ([]string, error) {
	o := tc.tx.overlay(tc.col)
	var out []string
	for _, id := range sortedIDs(o.entities) {
		e := o.entities[id]
		if tc.col.isSoftDeleted(e) {
			continue
		}
		ok, err := where.Matches(e, tc.col.engine.registry)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		out = append(out, id)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
