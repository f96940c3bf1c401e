package docbase

import (
	"errors"
	"testing"
)

func mustMatch(t *testing.T, w Where, e Entity, reg *Registry) bool {
	t.Helper()
	ok, err := w.Matches(e, reg)
	if err != nil {
		t.Fatalf("Matches(%v) failed: %v", w, err)
	}
	return ok
}

func TestWhere_Comparisons(t *testing.T) {
	e := Entity{"id": "1", "age": 30, "name": "mara", "tags": []interface{}{"a", "b"}}

	tests := []struct {
		name string
		w    Where
		want bool
	}{
		{"direct equality", Where{"age": 30}, true},
		{"direct inequality", Where{"age": 31}, false},
		{"eq operator", Where{"age": Where{"$eq": 30}}, true},
		{"ne", Where{"age": Where{"$ne": 31}}, true},
		{"gt", Where{"age": Where{"$gt": 29}}, true},
		{"gte boundary", Where{"age": Where{"$gte": 30}}, true},
		{"lt fails on equal", Where{"age": Where{"$lt": 30}}, false},
		{"range", Where{"age": Where{"$gte": 18, "$lt": 65}}, true},
		{"string ordering", Where{"name": Where{"$gt": "alice"}}, true},
		{"mixed types never match", Where{"name": Where{"$gt": 5}}, false},
		{"in", Where{"age": Where{"$in": []interface{}{10, 30}}}, true},
		{"nin", Where{"age": Where{"$nin": []interface{}{10, 30}}}, false},
		{"exists true", Where{"age": Where{"$exists": true}}, true},
		{"exists false on present", Where{"age": Where{"$exists": false}}, false},
		{"exists false on absent", Where{"missing": Where{"$exists": false}}, true},
		{"array equality", Where{"tags": []interface{}{"a", "b"}}, true},
	}
	for _, tt := range tests {
		if got := mustMatch(t, tt.w, e, nil); got != tt.want {
			t.Errorf("%s: got %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestWhere_AbsentField(t *testing.T) {
	e := Entity{"id": "1"}

	if !mustMatch(t, Where{"ghost": nil}, e, nil) {
		t.Error("absent field should equal nil")
	}
	if !mustMatch(t, Where{"ghost": Where{"$ne": "x"}}, e, nil) {
		t.Error("$ne against absent field should match")
	}
	if mustMatch(t, Where{"ghost": Where{"$gt": 0}}, e, nil) {
		t.Error("ordered comparison against absent field should not match")
	}
}

func TestWhere_DotPaths(t *testing.T) {
	e := Entity{"id": "1", "address": map[string]interface{}{"city": "berlin"}}
	if !mustMatch(t, Where{"address.city": "berlin"}, e, nil) {
		t.Error("dot path equality failed")
	}
}

func TestWhere_Combinators(t *testing.T) {
	e := Entity{"id": "1", "a": 1, "b": 2}

	or := Where{"$or": []Where{{"a": 9}, {"b": 2}}}
	if !mustMatch(t, or, e, nil) {
		t.Error("$or should match on second branch")
	}

	emptyOr := Where{"$or": []Where{}}
	if mustMatch(t, emptyOr, e, nil) {
		t.Error("empty $or should never match")
	}

	and := Where{"$and": []Where{{"a": 1}, {"b": 2}}}
	if !mustMatch(t, and, e, nil) {
		t.Error("$and should match when all branches do")
	}

	emptyAnd := Where{"$and": []Where{}}
	if !mustMatch(t, emptyAnd, e, nil) {
		t.Error("empty $and should match vacuously")
	}

	not := Where{"$not": Where{"a": 1}}
	if mustMatch(t, not, e, nil) {
		t.Error("$not should invert a match")
	}

	nested := Where{
		"a": 1,
		"$or": []Where{
			{"b": Where{"$gte": 2}},
			{"$not": Where{"a": 1}},
		},
	}
	if !mustMatch(t, nested, e, nil) {
		t.Error("nested combinator clause failed")
	}
}

func TestWhere_Search(t *testing.T) {
	e := Entity{"id": "1", "title": "The Go Programming Language"}

	if !mustMatch(t, Where{"title": Where{"$search": "go prog"}}, e, nil) {
		t.Error("prefix search should match")
	}
	if mustMatch(t, Where{"title": Where{"$search": "rust"}}, e, nil) {
		t.Error("unrelated search should not match")
	}
	if !mustMatch(t, Where{"title": Where{"$search": "  "}}, e, nil) {
		t.Error("empty query should match everything")
	}
}

func TestWhere_UnknownOperator(t *testing.T) {
	e := Entity{"id": "1", "n": 4}
	_, err := Where{"n": Where{"$mod": 2}}.Matches(e, NewRegistry())
	if !errors.Is(err, ErrUnknownOperator) {
		t.Fatalf("expected ErrUnknownOperator, got %v", err)
	}
}

func TestWhere_PluginOperator(t *testing.T) {
	reg := NewRegistry()
	reg.Operators["$mod"] = func(fieldValue, operand interface{}) (bool, error) {
		fv, ok1 := toFloat(fieldValue)
		op, ok2 := toFloat(operand)
		if !ok1 || !ok2 || op == 0 {
			return false, nil
		}
		return int64(fv)%int64(op) == 0, nil
	}

	e := Entity{"id": "1", "n": 4}
	if !mustMatch(t, Where{"n": Where{"$mod": 2}}, e, reg) {
		t.Error("plugin operator should match")
	}
	if mustMatch(t, Where{"n": Where{"$mod": 3}}, e, reg) {
		t.Error("plugin operator should not match")
	}
}
