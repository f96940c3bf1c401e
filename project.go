package docbase

// applyProjection restricts an entity to the selected fields. The
// selection is either a flat allow-list ([]string of top-level fields) or
// a nested object (map[string]interface{} where a true value includes the
// field and a nested map recurses into a populated sub-object, or into
// each element of a sub-array). Fields not listed are omitted entirely,
// not nulled.
func applyProjection(e Entity, selection interface{}) Entity {
	if selection == nil {
		return e
	}
	switch sel := selection.(type) {
	case []string:
		out := make(Entity, len(sel))
		for _, field := range sel {
			if v, ok := e[field]; ok {
				out[field] = v
			}
		}
		return out
	default:
		obj, ok := asObject(selection)
		if !ok {
			return e
		}
		return Entity(projectObject(map[string]interface{}(e), obj))
	}
}

func projectObject(src, sel map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(sel))
	for field, rule := range sel {
		value, present := src[field]
		if !present {
			continue
		}
		if nested, ok := asObject(rule); ok {
			out[field] = projectValue(value, nested)
			continue
		}
		if include, ok := rule.(bool); !ok || include {
			out[field] = value
		}
	}
	return out
}

func projectValue(value interface{}, sel map[string]interface{}) interface{} {
	if obj, ok := asObject(value); ok {
		return projectObject(obj, sel)
	}
	if list, ok := value.([]interface{}); ok {
		out := make([]interface{}, len(list))
		for i, item := range list {
			out[i] = projectValue(item, sel)
		}
		return out
	}
	return value
}
