package docbase

import (
	"encoding/json"
	"strings"
)

// IndexDefinition is a declared index over one or more dot-notation field
// paths. Single-field definitions accelerate direct equality lookups;
// multi-field definitions accelerate compound equality lookups.
type IndexDefinition struct {
	Fields []string
}

// Name returns a stable identifier for the index, e.g. "userId+bookId".
func (d IndexDefinition) Name() string {
	return strings.Join(d.Fields, "+")
}

// NormalizeIndexes converts raw index declarations into IndexDefinitions.
// A plain string becomes a single-field definition; a string slice becomes
// a compound definition. Already-normalized definitions pass through.
func NormalizeIndexes(raw []interface{}) ([]IndexDefinition, error) {
	defs := make([]IndexDefinition, 0, len(raw))
	for _, r := range raw {
		switch v := r.(type) {
		case string:
			defs = append(defs, IndexDefinition{Fields: []string{v}})
		case []string:
			defs = append(defs, IndexDefinition{Fields: v})
		case IndexDefinition:
			defs = append(defs, v)
		default:
			return nil, WithContext(ErrInvalidConfig, map[string]interface{}{
				"field":  "Indexes",
				"reason": "index declaration must be a string, []string or IndexDefinition",
			})
		}
	}
	for _, d := range defs {
		if len(d.Fields) == 0 {
			return nil, WithContext(ErrInvalidConfig, map[string]interface{}{
				"field":  "Indexes",
				"reason": "index definition needs at least one field",
			})
		}
	}
	return defs, nil
}

// IndexMap is the materialized index for one definition: a mapping from
// encoded key to the set of entity ids carrying that key. Entities whose
// indexed path resolves to null or is absent on any component are excluded.
type IndexMap struct {
	def  IndexDefinition
	keys map[string]map[string]struct{}
}

// NewIndexMap builds an index over the given entities.
func NewIndexMap(def IndexDefinition, entities map[string]Entity) *IndexMap {
	m := &IndexMap{
		def:  def,
		keys: make(map[string]map[string]struct{}),
	}
	for _, e := range entities {
		m.Add(e)
	}
	return m
}

// Definition returns the index definition this map materializes.
func (m *IndexMap) Definition() IndexDefinition {
	return m.def
}

// keyFor derives the encoded index key for an entity. The second return is
// false when any component path resolves to null or is absent, in which
// case the entity is omitted from the index.
func (m *IndexMap) keyFor(e Entity) (string, bool) {
	values := make([]interface{}, len(m.def.Fields))
	for i, field := range m.def.Fields {
		v, ok := fieldValue(e, field)
		if !ok || v == nil {
			return "", false
		}
		values[i] = v
	}
	return encodeIndexKey(values), true
}

// Add inserts an entity into the index if its key derivation is defined.
func (m *IndexMap) Add(e Entity) {
	key, ok := m.keyFor(e)
	if !ok {
		return
	}
	set, exists := m.keys[key]
	if !exists {
		set = make(map[string]struct{})
		m.keys[key] = set
	}
	set[e.ID()] = struct{}{}
}

// Remove drops an entity from the index.
func (m *IndexMap) Remove(e Entity) {
	key, ok := m.keyFor(e)
	if !ok {
		return
	}
	set, exists := m.keys[key]
	if !exists {
		return
	}
	delete(set, e.ID())
	if len(set) == 0 {
		delete(m.keys, key)
	}
}

// Update re-indexes an entity after a change.
func (m *IndexMap) Update(old, new Entity) {
	m.Remove(old)
	m.Add(new)
}

// Lookup returns the set of entity ids stored under the encoded key for
// the given value tuple. The returned set must not be mutated.
func (m *IndexMap) Lookup(values []interface{}) map[string]struct{} {
	return m.keys[encodeIndexKey(values)]
}

// Len returns the number of distinct keys in the index.
func (m *IndexMap) Len() int {
	return len(m.keys)
}

// clone returns a deep copy for transaction overlays.
func (m *IndexMap) clone() *IndexMap {
	out := &IndexMap{
		def:  m.def,
		keys: make(map[string]map[string]struct{}, len(m.keys)),
	}
	for key, set := range m.keys {
		copied := make(map[string]struct{}, len(set))
		for id := range set {
			copied[id] = struct{}{}
		}
		out.keys[key] = copied
	}
	return out
}

// encodeIndexKey produces a canonical, order-preserving serialization of a
// value tuple. JSON array encoding is stable (object keys are sorted by
// encoding/json) and reversible for debugging. Numeric values are
// normalized to float64 first so that an int 5 and a float64 5 collide, in
// line with the loose equality used by the filter evaluator.
func encodeIndexKey(values []interface{}) string {
	normalized := make([]interface{}, len(values))
	for i, v := range values {
		if f, ok := toFloat(v); ok {
			normalized[i] = f
		} else {
			normalized[i] = v
		}
	}
	data, err := json.Marshal(normalized)
	if err != nil {
		// Unmarshalable values cannot come from schema-validated entities;
		// fall back to an empty key rather than panic.
		return ""
	}
	return string(data)
}
