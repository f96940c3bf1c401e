package docbase

import (
	"fmt"
	"sort"
)

// toFloat normalizes any numeric value to float64. JSON decoding produces
// float64, but entities constructed in Go code routinely carry ints.
func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

// equalValues implements loose equality over JSON-shaped values: numbers
// compare numerically regardless of Go type, objects and arrays compare
// structurally.
func equalValues(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	switch va := a.(type) {
	case string:
		vb, ok := b.(string)
		return ok && va == vb
	case bool:
		vb, ok := b.(bool)
		return ok && va == vb
	case []interface{}:
		vb, ok := b.([]interface{})
		if !ok || len(va) != len(vb) {
			return false
		}
		for i := range va {
			if !equalValues(va[i], vb[i]) {
				return false
			}
		}
		return true
	default:
		oa, aok := asObject(a)
		ob, bok := asObject(b)
		if aok && bok {
			if len(oa) != len(ob) {
				return false
			}
			for k, v := range oa {
				other, present := ob[k]
				if !present || !equalValues(v, other) {
					return false
				}
			}
			return true
		}
		return a == b
	}
}

// compareValues imposes a total order over primitive values for sorting
// and min/max accumulation: nil first, then booleans (false < true), then
// numbers, then strings, then everything else by formatted representation.
func compareValues(a, b interface{}) int {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		return ra - rb
	}
	switch ra {
	case 0: // both nil
		return 0
	case 1: // bool
		ba := a.(bool)
		bb := b.(bool)
		switch {
		case ba == bb:
			return 0
		case !ba:
			return -1
		default:
			return 1
		}
	case 2: // number
		fa, _ := toFloat(a)
		fb, _ := toFloat(b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		default:
			return 0
		}
	case 3: // string
		sa := a.(string)
		sb := b.(string)
		switch {
		case sa < sb:
			return -1
		case sa > sb:
			return 1
		default:
			return 0
		}
	default:
		sa := fmt.Sprint(a)
		sb := fmt.Sprint(b)
		switch {
		case sa < sb:
			return -1
		case sa > sb:
			return 1
		default:
			return 0
		}
	}
}

func typeRank(v interface{}) int {
	if v == nil {
		return 0
	}
	if _, ok := v.(bool); ok {
		return 1
	}
	if _, ok := toFloat(v); ok {
		return 2
	}
	if _, ok := v.(string); ok {
		return 3
	}
	return 4
}

// sortedIDs returns the ids of a snapshot in ascending order. Snapshot
// iteration order is random; id order is the engine's stable base order
// (time-ordered UUIDv7 ids make it insertion order).
func sortedIDs(snap map[string]Entity) []string {
	ids := make([]string, 0, len(snap))
	for id := range snap {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
