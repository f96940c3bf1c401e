package docbase

import (
	"context"
	"errors"
	"testing"
)

func TestCreateMany_AllOrNothing(t *testing.T) {
	ctx := context.Background()
	eng := openTestEngine(t, usersConfig())
	users := testCollection(t, eng, "users")

	created, err := users.CreateMany(ctx, []interface{}{
		map[string]interface{}{"email": "a@example.com"},
		map[string]interface{}{"email": "b@example.com"},
	})
	if err != nil {
		t.Fatalf("CreateMany failed: %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("created %d, want 2", len(created))
	}

	// Last item violates uniqueness: nothing from the batch lands.
	_, err = users.CreateMany(ctx, []interface{}{
		map[string]interface{}{"email": "c@example.com"},
		map[string]interface{}{"email": "a@example.com"},
	})
	if !errors.Is(err, ErrUniqueConstraint) {
		t.Fatalf("expected ErrUniqueConstraint, got %v", err)
	}
	count, _ := users.Query().Count(ctx)
	if count != 2 {
		t.Errorf("failed batch leaked entities: count = %d, want 2", count)
	}
}

func TestUpdateMany(t *testing.T) {
	ctx := context.Background()
	eng := openTestEngine(t, usersConfig())
	users := testCollection(t, eng, "users")

	users.CreateMany(ctx, []interface{}{
		map[string]interface{}{"email": "a@example.com", "plan": "free"},
		map[string]interface{}{"email": "b@example.com", "plan": "free"},
		map[string]interface{}{"email": "c@example.com", "plan": "pro"},
	})

	updated, err := users.UpdateMany(ctx, Where{"plan": "free"}, map[string]interface{}{
		"plan": map[string]interface{}{"$set": "trial"},
	})
	if err != nil {
		t.Fatalf("UpdateMany failed: %v", err)
	}
	if len(updated) != 2 {
		t.Fatalf("updated %d, want 2", len(updated))
	}

	n, _ := users.Query().Where(Where{"plan": "trial"}).Count(ctx)
	if n != 2 {
		t.Errorf("trial count = %d, want 2", n)
	}
}

func TestDeleteMany_WithLimit(t *testing.T) {
	ctx := context.Background()
	eng := openTestEngine(t, usersConfig())
	users := testCollection(t, eng, "users")

	for _, email := range []string{"a@x.com", "b@x.com", "c@x.com"} {
		if _, err := users.Create(ctx, map[string]interface{}{"email": email, "stale": true}); err != nil {
			t.Fatalf("seed failed: %v", err)
		}
	}

	deleted, err := users.DeleteMany(ctx, Where{"stale": true}, DeleteManyOptions{Limit: 2})
	if err != nil {
		t.Fatalf("DeleteMany failed: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("deleted = %d, want 2", deleted)
	}
	n, _ := users.Query().Count(ctx)
	if n != 1 {
		t.Errorf("remaining = %d, want 1", n)
	}
}

func TestDeleteMany_Soft(t *testing.T) {
	ctx := context.Background()
	eng := openTestEngine(t, usersConfig())
	users := testCollection(t, eng, "users")

	users.Create(ctx, map[string]interface{}{"email": "a@x.com"})
	users.Create(ctx, map[string]interface{}{"email": "b@x.com"})

	deleted, err := users.DeleteMany(ctx, Where{}, DeleteManyOptions{Soft: true})
	if err != nil {
		t.Fatalf("DeleteMany failed: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("deleted = %d, want 2", deleted)
	}
	if n, _ := users.Query().Count(ctx); n != 0 {
		t.Errorf("visible = %d, want 0", n)
	}
	if n, _ := users.Query().IncludeDeleted().Count(ctx); n != 2 {
		t.Errorf("retained = %d, want 2", n)
	}
}

func TestUpsert(t *testing.T) {
	ctx := context.Background()
	eng := openTestEngine(t, usersConfig())
	users := testCollection(t, eng, "users")

	first, err := users.Upsert(ctx, map[string]interface{}{
		"email": "a@example.com", "visits": 1,
	}, []string{"email"})
	if err != nil {
		t.Fatalf("insert-path upsert failed: %v", err)
	}

	second, err := users.Upsert(ctx, map[string]interface{}{
		"email": "a@example.com", "visits": 2,
	}, []string{"email"})
	if err != nil {
		t.Fatalf("update-path upsert failed: %v", err)
	}
	if second.ID() != first.ID() {
		t.Errorf("upsert created a new entity instead of updating")
	}
	if v, _ := toFloat(second["visits"]); v != 2 {
		t.Errorf("visits = %v, want 2", second["visits"])
	}

	count, _ := users.Query().Count(ctx)
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}

	if _, err := users.Upsert(ctx, map[string]interface{}{"email": "x"}, nil); !errors.Is(err, ErrOperation) {
		t.Errorf("upsert without match fields should fail, got %v", err)
	}
}

func TestUpsert_AmbiguousMatch(t *testing.T) {
	ctx := context.Background()
	eng := openTestEngine(t, Config{Collections: []CollectionConfig{{Name: "events"}}})
	events := testCollection(t, eng, "events")

	events.Create(ctx, map[string]interface{}{"kind": "click"})
	events.Create(ctx, map[string]interface{}{"kind": "click"})

	_, err := events.Upsert(ctx, map[string]interface{}{"kind": "click", "n": 1}, []string{"kind"})
	if !errors.Is(err, ErrOperation) {
		t.Fatalf("ambiguous upsert should fail, got %v", err)
	}
}

func TestUpsertMany(t *testing.T) {
	ctx := context.Background()
	eng := openTestEngine(t, usersConfig())
	users := testCollection(t, eng, "users")

	users.Create(ctx, map[string]interface{}{"email": "a@example.com", "seen": 1})

	out, err := users.UpsertMany(ctx, []interface{}{
		map[string]interface{}{"email": "a@example.com", "seen": 2},
		map[string]interface{}{"email": "b@example.com", "seen": 1},
	}, []string{"email"})
	if err != nil {
		t.Fatalf("UpsertMany failed: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("returned %d, want 2", len(out))
	}
	count, _ := users.Query().Count(ctx)
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
}
