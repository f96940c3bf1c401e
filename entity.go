package docbase

import "strings"

// Entity is one schema-validated record of a collection. Every entity
// carries a unique string id under the "id" key. Field values follow JSON
// conventions: string, float64, bool, []interface{}, map[string]interface{}
// or nil.
type Entity map[string]interface{}

// ID returns the entity's id field, or "" if missing or not a string.
func (e Entity) ID() string {
	id, _ := e["id"].(string)
	return id
}

// Clone returns a deep copy of the entity.
func (e Entity) Clone() Entity {
	if e == nil {
		return nil
	}
	out := make(Entity, len(e))
	for k, v := range e {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, sub := range val {
			out[k] = deepCopyValue(sub)
		}
		return out
	case Entity:
		return map[string]interface{}(val.Clone())
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, sub := range val {
			out[i] = deepCopyValue(sub)
		}
		return out
	default:
		return v
	}
}

// fieldValue resolves a dot-notation path against the entity.
// The second return reports whether the full path was present.
func fieldValue(e Entity, path string) (interface{}, bool) {
	if e == nil {
		return nil, false
	}
	parts := strings.Split(path, ".")
	var current interface{} = map[string]interface{}(e)
	for _, part := range parts {
		obj, ok := asObject(current)
		if !ok {
			return nil, false
		}
		current, ok = obj[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// setFieldValue writes a dot-notation path, creating intermediate objects
// as needed.
func setFieldValue(e Entity, path string, value interface{}) {
	parts := strings.Split(path, ".")
	current := map[string]interface{}(e)
	for _, part := range parts[:len(parts)-1] {
		next, ok := asObject(current[part])
		if !ok {
			next = make(map[string]interface{})
			current[part] = next
		}
		current = next
	}
	current[parts[len(parts)-1]] = value
}

func asObject(v interface{}) (map[string]interface{}, bool) {
	switch obj := v.(type) {
	case map[string]interface{}:
		return obj, true
	case Entity:
		return obj, true
	case Where:
		return obj, true
	default:
		return nil, false
	}
}

// deepMerge merges src into a copy of dst. Nested objects merge
// recursively; any other value in src replaces the value in dst.
// Unspecified sibling fields in dst are preserved.
func deepMerge(dst, src map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(dst)+len(src))
	for k, v := range dst {
		out[k] = deepCopyValue(v)
	}
	for k, v := range src {
		srcObj, srcIsObj := asObject(v)
		dstObj, dstIsObj := asObject(out[k])
		if srcIsObj && dstIsObj {
			out[k] = deepMerge(dstObj, srcObj)
			continue
		}
		out[k] = deepCopyValue(v)
	}
	return out
}

// toEntity coerces raw input into an Entity without validation.
func toEntity(raw interface{}) (Entity, bool) {
	switch v := raw.(type) {
	case Entity:
		return v, true
	case map[string]interface{}:
		return Entity(v), true
	default:
		return nil, false
	}
}
