package docbase

// indexLookup decides whether a usable index exists for the clause and, if
// so, resolves candidate entity ids without a full scan. The result is a
// superset of the final match set only in the sense that the clause may
// carry extra non-equality conditions; the caller must still run the full
// filter over the candidates. A nil, false return means no index applies
// and the caller falls back to a full scan.
//
// Index lookup is a pure optimization: for any clause it accepts, the
// filtered candidate set is identical to the filtered full scan.
func indexLookup(indexes []*IndexMap, search *SearchIndex, w Where) (map[string]struct{}, bool) {
	if len(w) == 0 {
		return nil, false
	}
	// Combinators at the top level disqualify index use.
	for _, key := range []string{"$or", "$and", "$not"} {
		if _, ok := w[key]; ok {
			return nil, false
		}
	}

	if ids, ok := equalityLookup(indexes, w); ok {
		return ids, true
	}
	return searchLookup(search, w)
}

// equalityLookup selects the usable index with the most fields and
// resolves its candidate ids.
func equalityLookup(indexes []*IndexMap, w Where) (map[string]struct{}, bool) {
	var best *IndexMap
	for _, idx := range indexes {
		if !indexUsable(idx, w) {
			continue
		}
		if best == nil || len(idx.def.Fields) > len(best.def.Fields) {
			best = idx
		}
	}
	if best == nil {
		return nil, false
	}

	// Per-field candidate value lists, in definition order.
	candidates := make([][]interface{}, len(best.def.Fields))
	for i, field := range best.def.Fields {
		candidates[i], _ = equalityCandidates(w[field])
	}

	result := make(map[string]struct{})
	// Union of id sets across the cartesian product of candidate values.
	tuple := make([]interface{}, len(candidates))
	var walk func(depth int)
	walk = func(depth int) {
		if depth == len(candidates) {
			for id := range best.Lookup(tuple) {
				result[id] = struct{}{}
			}
			return
		}
		for _, v := range candidates[depth] {
			tuple[depth] = v
			walk(depth + 1)
		}
	}
	walk(0)
	return result, true
}

// indexUsable reports whether every field of the index has a pure-equality
// condition in the clause: a direct value, $eq, or $in.
func indexUsable(idx *IndexMap, w Where) bool {
	for _, field := range idx.def.Fields {
		condition, ok := w[field]
		if !ok {
			return false
		}
		if _, ok := equalityCandidates(condition); !ok {
			return false
		}
	}
	return true
}

// equalityCandidates extracts the candidate values a field condition pins
// the field to, if it pins it at all. A nil candidate disqualifies the
// condition: indexes hold no entries for null or absent fields, so nil
// equality resolves only through a full scan.
func equalityCandidates(condition interface{}) ([]interface{}, bool) {
	var values []interface{}
	ops, isOps := operatorObject(condition)
	switch {
	case !isOps:
		values = []interface{}{condition}
	default:
		if v, ok := ops[opEq]; ok {
			values = []interface{}{v}
		} else if list, isList := ops[opIn].([]interface{}); isList {
			values = list
		} else {
			return nil, false
		}
	}
	for _, v := range values {
		if v == nil {
			return nil, false
		}
	}
	return values, true
}

// searchLookup resolves candidates through the inverted token index when
// the clause constrains a searchable field with $search.
func searchLookup(search *SearchIndex, w Where) (map[string]struct{}, bool) {
	if search == nil {
		return nil, false
	}
	for field, condition := range w {
		ops, isOps := operatorObject(condition)
		if !isOps {
			continue
		}
		query, hasSearch := ops[opSearch].(string)
		if !hasSearch || !search.Covers(field) {
			continue
		}
		ids := search.Candidates(query)
		if ids == nil {
			// An empty query constrains nothing; leave it to the scan path.
			continue
		}
		return ids, true
	}
	return nil, false
}
