package docbase

import "sort"

// SortField is one component of a sort specification.
type SortField struct {
	Field string
	Desc  bool
}

// sortEntities orders entities by the given fields. Comparison walks
// dot-paths, including into populated sub-objects. The sort is stable, so
// ties keep the caller's base ordering.
func sortEntities(entities []Entity, fields []SortField) {
	if len(fields) == 0 {
		return
	}
	sort.SliceStable(entities, func(i, j int) bool {
		for _, f := range fields {
			a, _ := fieldValue(entities[i], f.Field)
			b, _ := fieldValue(entities[j], f.Field)
			cmp := compareValues(a, b)
			if cmp == 0 {
				continue
			}
			if f.Desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
}
