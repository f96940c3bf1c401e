package docbase

// stateView resolves collection snapshots for cross-collection constraint
// checks. The live engine resolves current cell snapshots; a transaction
// resolves its copy-on-write overlays first so cascaded work observes
// staged, not-yet-committed state.
type stateView interface {
	entitiesOf(name string) (map[string]Entity, bool)
}

// checkUniqueConstraints verifies the candidate entity against every
// declared uniqueness field set, scanning the snapshot it will be
// committed into. It must run inside the atomic commit step: an earlier
// advisory check can race a concurrent create across a suspension point.
//
// A candidate whose constrained field is null or absent is exempt from
// that constraint (NULL semantics). Soft-deleted entities still count as
// owners so a later restore cannot surface a duplicate.
func checkUniqueConstraints(snap map[string]Entity, uniqueSets [][]string, candidate Entity, excludeID string) error {
	for _, fields := range uniqueSets {
		values := make([]interface{}, len(fields))
		applicable := true
		for i, field := range fields {
			v, ok := fieldValue(candidate, field)
			if !ok || v == nil {
				applicable = false
				break
			}
			values[i] = v
		}
		if !applicable {
			continue
		}

		for id, other := range snap {
			if id == excludeID {
				continue
			}
			match := true
			for i, field := range fields {
				ov, ok := fieldValue(other, field)
				if !ok || !equalValues(ov, values[i]) {
					match = false
					break
				}
			}
			if match {
				return WithContext(ErrUniqueConstraint, map[string]interface{}{
					"fields":   fields,
					"values":   values,
					"owner_id": id,
				})
			}
		}
	}
	return nil
}

// checkForeignKeys verifies that every ref relationship's foreign-key
// field, if non-null, matches an existing id in the target collection.
// Like the uniqueness check, it runs inside the atomic commit step
// against current (or overlay) snapshots.
func checkForeignKeys(candidate Entity, rels []Relationship, view stateView) error {
	for _, rel := range rels {
		if rel.Kind != RelRef {
			continue
		}
		v, ok := fieldValue(candidate, rel.ForeignKey)
		if !ok || v == nil {
			continue
		}
		id, ok := v.(string)
		if !ok {
			return WithContext(ErrForeignKey, map[string]interface{}{
				"field":  rel.ForeignKey,
				"target": rel.Target,
				"reason": "foreign key must be a string id",
			})
		}
		target, ok := view.entitiesOf(rel.Target)
		if !ok {
			return WithContext(ErrUnknownCollection, map[string]interface{}{
				"collection": rel.Target,
			})
		}
		if _, exists := target[id]; !exists {
			return WithContext(ErrForeignKey, map[string]interface{}{
				"field":  rel.ForeignKey,
				"target": rel.Target,
				"id":     id,
			})
		}
	}
	return nil
}

// dependent describes one collection holding a ref relationship that
// points at a given collection.
type dependent struct {
	collection string
	rel        Relationship
}

// dependentsOf lists every (collection, relationship) pair whose ref
// points at target. Cascade policies on delete are evaluated over this
// set.
func dependentsOf(cfg Config, target string) []dependent {
	var out []dependent
	for _, col := range cfg.Collections {
		for _, rel := range col.Relationships {
			if rel.Kind == RelRef && rel.Target == target {
				out = append(out, dependent{collection: col.Name, rel: rel})
			}
		}
	}
	return out
}

// referencingIDs returns the ids of live entities in snap whose
// foreignKey field equals id, in stable id order. Soft-deleted entities
// do not block or cascade.
func referencingIDs(snap map[string]Entity, foreignKey, id, softDeleteField string) []string {
	var out []string
	for _, otherID := range sortedIDs(snap) {
		e := snap[otherID]
		if softDeleteField != "" {
			if marker, ok := fieldValue(e, softDeleteField); ok && marker != nil {
				continue
			}
		}
		v, ok := fieldValue(e, foreignKey)
		if !ok {
			continue
		}
		if s, isStr := v.(string); isStr && s == id {
			out = append(out, otherID)
		}
	}
	return out
}
