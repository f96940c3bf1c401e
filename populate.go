package docbase

// PopulateSpec selects which declared relationships to resolve, by name.
// A nil value resolves the relationship one level deep; a nested spec
// recurses into the resolved entities.
//
//	docbase.PopulateSpec{"author": nil}
//	docbase.PopulateSpec{"author": {"publisher": nil}}
type PopulateSpec map[string]PopulateSpec

// populateEntities resolves the requested relationships for each entity,
// returning clones with resolved targets attached under the relationship
// name. Source entities are never mutated.
func (eng *Engine) populateEntities(entities []Entity, cfg CollectionConfig, spec PopulateSpec) ([]Entity, error) {
	if len(spec) == 0 {
		return entities, nil
	}
	out := make([]Entity, len(entities))
	for i, e := range entities {
		populated, err := eng.populateEntity(e, cfg, spec)
		if err != nil {
			return nil, err
		}
		out[i] = populated
	}
	return out, nil
}

func (eng *Engine) populateEntity(e Entity, cfg CollectionConfig, spec PopulateSpec) (Entity, error) {
	out := e.Clone()
	for name, nested := range spec {
		rel, ok := cfg.relationship(name)
		if !ok {
			return nil, WithContext(ErrPopulation, map[string]interface{}{
				"collection":   cfg.Name,
				"relationship": name,
				"reason":       "relationship not declared",
			})
		}

		target, err := eng.Collection(rel.Target)
		if err != nil {
			return nil, err
		}
		snap := target.cell.Snapshot()

		switch rel.Kind {
		case RelRef:
			resolved, err := eng.resolveRef(out, rel, snap, target.cfg, nested)
			if err != nil {
				return nil, err
			}
			out[name] = resolved
		case RelInverse:
			resolved, err := eng.resolveInverse(out, rel, snap, target.cfg, nested)
			if err != nil {
				return nil, err
			}
			out[name] = resolved
		}
	}
	return out, nil
}

// resolveRef follows a forward foreign key to zero-or-one target entity.
// A null or dangling foreign key resolves to nil unless the relationship
// is declared Required, which makes it an error.
func (eng *Engine) resolveRef(e Entity, rel Relationship, snap map[string]Entity, targetCfg CollectionConfig, nested PopulateSpec) (interface{}, error) {
	v, ok := fieldValue(e, rel.ForeignKey)
	if !ok || v == nil {
		if rel.Required {
			return nil, WithContext(ErrPopulation, map[string]interface{}{
				"relationship": rel.Name,
				"reason":       "required relationship has no foreign key",
				"entity_id":    e.ID(),
			})
		}
		return nil, nil
	}
	id, _ := v.(string)
	found, exists := snap[id]
	if !exists {
		if rel.Required {
			return nil, WithContext(ErrPopulation, map[string]interface{}{
				"relationship": rel.Name,
				"reason":       "dangling reference",
				"entity_id":    e.ID(),
				"target_id":    id,
			})
		}
		return nil, nil
	}
	resolved, err := eng.populateEntity(found, targetCfg, nested)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}(resolved), nil
}

// resolveInverse collects the target entities whose foreign-key field
// equals this entity's id, in stable id order, excluding soft-deleted
// targets.
func (eng *Engine) resolveInverse(e Entity, rel Relationship, snap map[string]Entity, targetCfg CollectionConfig, nested PopulateSpec) (interface{}, error) {
	ids := referencingIDs(snap, rel.ForeignKey, e.ID(), targetCfg.SoftDeleteField)
	out := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		resolved, err := eng.populateEntity(snap[id], targetCfg, nested)
		if err != nil {
			return nil, err
		}
		out = append(out, map[string]interface{}(resolved))
	}
	return out, nil
}
