package docbase

import (
	"context"
	"errors"
	"testing"
)

func libraryConfig(onDelete CascadePolicy) Config {
	return Config{Collections: []CollectionConfig{
		{
			Name:            "authors",
			SoftDeleteField: "deletedAt",
		},
		{
			Name:            "books",
			SoftDeleteField: "deletedAt",
			Relationships: []Relationship{{
				Name:       "author",
				Kind:       RelRef,
				Target:     "authors",
				ForeignKey: "authorId",
				OnDelete:   onDelete,
			}},
		},
	}}
}

func seedLibrary(t *testing.T, eng *Engine) (author Entity, books []Entity) {
	t.Helper()
	ctx := context.Background()
	authors := testCollection(t, eng, "authors")
	bookCol := testCollection(t, eng, "books")

	author, err := authors.Create(ctx, map[string]interface{}{"name": "le guin"})
	if err != nil {
		t.Fatalf("create author failed: %v", err)
	}
	for _, title := range []string{"dispossessed", "left hand"} {
		b, err := bookCol.Create(ctx, map[string]interface{}{
			"title": title, "authorId": author.ID(),
		})
		if err != nil {
			t.Fatalf("create book failed: %v", err)
		}
		books = append(books, b)
	}
	return author, books
}

func TestForeignKey_CreateRejectsDangling(t *testing.T) {
	ctx := context.Background()
	eng := openTestEngine(t, libraryConfig(CascadeRestrict))
	books := testCollection(t, eng, "books")

	_, err := books.Create(ctx, map[string]interface{}{
		"title": "orphan", "authorId": "nobody",
	})
	if !errors.Is(err, ErrForeignKey) {
		t.Fatalf("expected ErrForeignKey, got %v", err)
	}

	// A null foreign key is allowed.
	if _, err := books.Create(ctx, map[string]interface{}{"title": "anon"}); err != nil {
		t.Fatalf("create without foreign key failed: %v", err)
	}
}

func TestCascade_RestrictBlocksDelete(t *testing.T) {
	ctx := context.Background()
	eng := openTestEngine(t, libraryConfig(CascadeRestrict))
	author, _ := seedLibrary(t, eng)
	authors := testCollection(t, eng, "authors")

	err := authors.Delete(ctx, author.ID(), DeleteOptions{})
	if !errors.Is(err, ErrOperation) {
		t.Fatalf("expected restrict to block, got %v", err)
	}
	if _, err := authors.FindByID(ctx, author.ID()); err != nil {
		t.Errorf("blocked delete removed the author: %v", err)
	}
}

func TestCascade_DeleteRemovesDependents(t *testing.T) {
	ctx := context.Background()
	notifier := &recordingNotifier{}
	eng := openTestEngine(t, libraryConfig(CascadeDelete), WithNotifier(notifier))
	author, _ := seedLibrary(t, eng)
	authors := testCollection(t, eng, "authors")
	books := testCollection(t, eng, "books")
	notifier.reset()

	if err := authors.Delete(ctx, author.ID(), DeleteOptions{}); err != nil {
		t.Fatalf("cascade delete failed: %v", err)
	}

	count, _ := books.Query().IncludeDeleted().Count(ctx)
	if count != 0 {
		t.Errorf("cascade left %d books behind", count)
	}

	// One notification per deleted entity, cascaded ones included.
	if got := len(notifier.all()); got != 3 {
		t.Errorf("expected 3 delete notifications, got %d", got)
	}
}

func TestCascade_SoftDeleteMarksDependents(t *testing.T) {
	ctx := context.Background()
	eng := openTestEngine(t, libraryConfig(CascadeSoftDelete))
	author, _ := seedLibrary(t, eng)
	authors := testCollection(t, eng, "authors")
	books := testCollection(t, eng, "books")

	if err := authors.Delete(ctx, author.ID(), DeleteOptions{Soft: true}); err != nil {
		t.Fatalf("cascade soft delete failed: %v", err)
	}

	visible, _ := books.Query().Count(ctx)
	if visible != 0 {
		t.Errorf("%d books still visible after cascade soft delete", visible)
	}
	retained, _ := books.Query().IncludeDeleted().Count(ctx)
	if retained != 2 {
		t.Errorf("cascade soft delete removed books instead of marking: %d retained", retained)
	}
}

func TestCascade_SetNullClearsForeignKeys(t *testing.T) {
	ctx := context.Background()
	eng := openTestEngine(t, libraryConfig(CascadeSetNull))
	author, seeded := seedLibrary(t, eng)
	authors := testCollection(t, eng, "authors")
	books := testCollection(t, eng, "books")

	if err := authors.Delete(ctx, author.ID(), DeleteOptions{}); err != nil {
		t.Fatalf("set_null delete failed: %v", err)
	}

	for _, b := range seeded {
		got, err := books.FindByID(ctx, b.ID())
		if err != nil {
			t.Fatalf("book disappeared under set_null: %v", err)
		}
		if got["authorId"] != nil {
			t.Errorf("authorId = %v, want nil", got["authorId"])
		}
	}
}

func TestCascade_PreserveLeavesDependents(t *testing.T) {
	ctx := context.Background()
	eng := openTestEngine(t, libraryConfig(CascadePreserve))
	author, seeded := seedLibrary(t, eng)
	authors := testCollection(t, eng, "authors")
	books := testCollection(t, eng, "books")

	if err := authors.Delete(ctx, author.ID(), DeleteOptions{}); err != nil {
		t.Fatalf("preserve delete failed: %v", err)
	}

	got, err := books.FindByID(ctx, seeded[0].ID())
	if err != nil {
		t.Fatalf("book disappeared under preserve: %v", err)
	}
	if got["authorId"] != author.ID() {
		t.Errorf("preserve changed the foreign key: %v", got["authorId"])
	}
}

// Two collections referencing each other with cascade must not recurse
// forever.
func TestCascade_CycleTerminates(t *testing.T) {
	ctx := context.Background()
	eng := openTestEngine(t, Config{Collections: []CollectionConfig{
		{
			Name: "pairs_a",
			Relationships: []Relationship{{
				Name: "partner", Kind: RelRef, Target: "pairs_b",
				ForeignKey: "partnerId", OnDelete: CascadeDelete,
			}},
		},
		{
			Name: "pairs_b",
			Relationships: []Relationship{{
				Name: "partner", Kind: RelRef, Target: "pairs_a",
				ForeignKey: "partnerId", OnDelete: CascadeDelete,
			}},
		},
	}})
	as := testCollection(t, eng, "pairs_a")
	bs := testCollection(t, eng, "pairs_b")

	a, err := as.Create(ctx, map[string]interface{}{"n": 1})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	b, err := bs.Create(ctx, map[string]interface{}{"n": 2, "partnerId": a.ID()})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := as.Update(ctx, a.ID(), map[string]interface{}{
		"partnerId": map[string]interface{}{"$set": b.ID()},
	}); err != nil {
		t.Fatalf("linking failed: %v", err)
	}

	if err := as.Delete(ctx, a.ID(), DeleteOptions{}); err != nil {
		t.Fatalf("cyclic cascade failed: %v", err)
	}
	if n, _ := as.Query().Count(ctx); n != 0 {
		t.Errorf("pairs_a not empty after cascade")
	}
	if n, _ := bs.Query().Count(ctx); n != 0 {
		t.Errorf("pairs_b not empty after cascade")
	}
}
