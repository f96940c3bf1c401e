package docbase

import "testing"

func TestApplyUpdateSpec_Arithmetic(t *testing.T) {
	e := Entity{"id": "1", "n": 50}

	next, err := applyUpdateSpec(e, map[string]interface{}{
		"n": map[string]interface{}{"$increment": 10},
	})
	if err != nil {
		t.Fatalf("increment failed: %v", err)
	}
	next, err = applyUpdateSpec(next, map[string]interface{}{
		"n": map[string]interface{}{"$decrement": 5},
	})
	if err != nil {
		t.Fatalf("decrement failed: %v", err)
	}
	if v, _ := toFloat(next["n"]); v != 55 {
		t.Errorf("n = %v, want 55", next["n"])
	}
	if v, _ := toFloat(e["n"]); v != 50 {
		t.Error("source entity was mutated")
	}

	next, err = applyUpdateSpec(next, map[string]interface{}{
		"n": map[string]interface{}{"$multiply": 2},
	})
	if err != nil {
		t.Fatalf("multiply failed: %v", err)
	}
	if v, _ := toFloat(next["n"]); v != 110 {
		t.Errorf("n = %v, want 110", next["n"])
	}
}

func TestApplyUpdateSpec_IncrementMissingField(t *testing.T) {
	next, err := applyUpdateSpec(Entity{"id": "1"}, map[string]interface{}{
		"count": map[string]interface{}{"$increment": 3},
	})
	if err != nil {
		t.Fatalf("increment failed: %v", err)
	}
	if v, _ := toFloat(next["count"]); v != 3 {
		t.Errorf("count = %v, want 3 (missing treated as 0)", next["count"])
	}
}

func TestApplyUpdateSpec_Toggle(t *testing.T) {
	e := Entity{"id": "1"}
	spec := map[string]interface{}{"flag": map[string]interface{}{"$toggle": true}}

	once, err := applyUpdateSpec(e, spec)
	if err != nil {
		t.Fatalf("toggle failed: %v", err)
	}
	if once["flag"] != true {
		t.Errorf("first toggle = %v, want true (missing treated as false)", once["flag"])
	}

	twice, err := applyUpdateSpec(once, spec)
	if err != nil {
		t.Fatalf("toggle failed: %v", err)
	}
	if twice["flag"] != false {
		t.Errorf("second toggle = %v, want false", twice["flag"])
	}
}

func TestApplyUpdateSpec_ArrayOps(t *testing.T) {
	e := Entity{"id": "1", "tags": []interface{}{"b"}}

	next, err := applyUpdateSpec(e, map[string]interface{}{
		"tags": map[string]interface{}{"$append": "c"},
	})
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}
	next, err = applyUpdateSpec(next, map[string]interface{}{
		"tags": map[string]interface{}{"$prepend": "a"},
	})
	if err != nil {
		t.Fatalf("prepend failed: %v", err)
	}
	tags, _ := next["tags"].([]interface{})
	if len(tags) != 3 || tags[0] != "a" || tags[2] != "c" {
		t.Fatalf("tags = %v, want [a b c]", tags)
	}

	next, err = applyUpdateSpec(next, map[string]interface{}{
		"tags": map[string]interface{}{"$remove": "b"},
	})
	if err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	tags, _ = next["tags"].([]interface{})
	if len(tags) != 2 || tags[0] != "a" || tags[1] != "c" {
		t.Errorf("tags after remove = %v, want [a c]", tags)
	}
}

func TestApplyUpdateSpec_AppendToMissing(t *testing.T) {
	next, err := applyUpdateSpec(Entity{"id": "1"}, map[string]interface{}{
		"tags": map[string]interface{}{"$append": "x"},
	})
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}
	tags, _ := next["tags"].([]interface{})
	if len(tags) != 1 || tags[0] != "x" {
		t.Errorf("tags = %v, want [x]", tags)
	}
}

func TestApplyUpdateSpec_LiteralDeepMerge(t *testing.T) {
	e := Entity{
		"id": "1",
		"profile": map[string]interface{}{
			"name": "mara",
			"bio":  "old",
		},
	}
	next, err := applyUpdateSpec(e, map[string]interface{}{
		"profile": map[string]interface{}{"bio": "new"},
	})
	if err != nil {
		t.Fatalf("literal merge failed: %v", err)
	}
	profile, _ := next["profile"].(map[string]interface{})
	if profile["bio"] != "new" {
		t.Errorf("bio = %v, want new", profile["bio"])
	}
	if profile["name"] != "mara" {
		t.Errorf("deep merge dropped sibling field: %v", profile)
	}
}

func TestApplyUpdateSpec_SetAndTypeErrors(t *testing.T) {
	e := Entity{"id": "1", "n": "text"}

	next, err := applyUpdateSpec(e, map[string]interface{}{
		"n": map[string]interface{}{"$set": nil},
	})
	if err != nil {
		t.Fatalf("$set failed: %v", err)
	}
	if v, present := next["n"]; !present || v != nil {
		t.Errorf("$set nil should keep the field with a nil value, got %v", next)
	}

	if _, err := applyUpdateSpec(e, map[string]interface{}{
		"n": map[string]interface{}{"$increment": 1},
	}); err == nil {
		t.Error("incrementing a string should fail")
	}
}
