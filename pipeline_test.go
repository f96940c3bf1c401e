package docbase

import (
	"fmt"
	"testing"
)

func TestSortEntities_MultiField(t *testing.T) {
	entities := []Entity{
		{"id": "1", "group": "b", "rank": 2},
		{"id": "2", "group": "a", "rank": 9},
		{"id": "3", "group": "b", "rank": 1},
		{"id": "4", "group": "a", "rank": 3},
	}
	sortEntities(entities, []SortField{
		{Field: "group"},
		{Field: "rank", Desc: true},
	})

	// Ascending group, then rank descending within each group.
	wantOrder := []string{"2", "4", "1", "3"}
	for i, want := range wantOrder {
		if entities[i].ID() != want {
			t.Fatalf("position %d: got %s, want %s", i, entities[i].ID(), want)
		}
	}
}

func TestSortEntities_MixedTypesRankStable(t *testing.T) {
	entities := []Entity{
		{"id": "1", "v": "text"},
		{"id": "2", "v": 5},
		{"id": "3", "v": nil},
		{"id": "4", "v": true},
	}
	sortEntities(entities, []SortField{{Field: "v"}})

	// nil < bool < number < string
	wantOrder := []string{"3", "4", "2", "1"}
	for i, want := range wantOrder {
		if entities[i].ID() != want {
			t.Fatalf("position %d: got %s, want %s", i, entities[i].ID(), want)
		}
	}
}

func TestApplyProjection(t *testing.T) {
	e := Entity{
		"id":   "1",
		"name": "mara",
		"address": map[string]interface{}{
			"city": "berlin",
			"zip":  "10115",
		},
		"secret": "x",
	}

	flat := applyProjection(e, []string{"id", "name"})
	if len(flat) != 2 || flat["name"] != "mara" {
		t.Errorf("flat projection wrong: %v", flat)
	}
	if _, ok := flat["secret"]; ok {
		t.Error("flat projection leaked unselected field")
	}

	nested := applyProjection(e, map[string]interface{}{
		"id": true,
		"address": map[string]interface{}{
			"city": true,
		},
	})
	addr, ok := nested["address"].(map[string]interface{})
	if !ok {
		t.Fatalf("nested projection lost address: %v", nested)
	}
	if addr["city"] != "berlin" {
		t.Errorf("nested projection wrong city: %v", addr)
	}
	if _, ok := addr["zip"]; ok {
		t.Error("nested projection leaked zip")
	}

	passthrough := applyProjection(e, nil)
	if len(passthrough) != len(e) {
		t.Error("nil selection should pass the entity through")
	}
}

func TestApplyOffsetLimit(t *testing.T) {
	entities := []Entity{{"id": "1"}, {"id": "2"}, {"id": "3"}}

	if got := applyOffsetLimit(entities, 1, 1); len(got) != 1 || got[0].ID() != "2" {
		t.Errorf("offset 1 limit 1: got %v", got)
	}
	if got := applyOffsetLimit(entities, 5, -1); got != nil {
		t.Errorf("offset past end should be empty, got %v", got)
	}
	if got := applyOffsetLimit(entities, 0, 0); len(got) != 0 {
		t.Errorf("limit 0 should be empty, got %v", got)
	}
	if got := applyOffsetLimit(entities, 0, -1); len(got) != 3 {
		t.Errorf("negative limit should be unlimited, got %v", got)
	}
}

// Walk 5 entities forward in pages of 2: 1-2, 3-4, 5.
func TestPaginateCursor_ForwardWalk(t *testing.T) {
	var sorted []Entity
	for i := 1; i <= 5; i++ {
		sorted = append(sorted, Entity{"id": fmt.Sprintf("%02d", i)})
	}

	page1 := paginateCursor(sorted, "id", false, PageSpec{Limit: 2})
	if len(page1.Items) != 2 || page1.Items[0].ID() != "01" {
		t.Fatalf("page 1 wrong: %v", page1.Items)
	}
	if !page1.PageInfo.HasNextPage || page1.PageInfo.HasPreviousPage {
		t.Errorf("page 1 flags wrong: %+v", page1.PageInfo)
	}

	page2 := paginateCursor(sorted, "id", false, PageSpec{Limit: 2, After: *page1.PageInfo.EndCursor})
	if len(page2.Items) != 2 || page2.Items[0].ID() != "03" {
		t.Fatalf("page 2 wrong: %v", page2.Items)
	}
	if !page2.PageInfo.HasNextPage || !page2.PageInfo.HasPreviousPage {
		t.Errorf("page 2 flags wrong: %+v", page2.PageInfo)
	}

	page3 := paginateCursor(sorted, "id", false, PageSpec{Limit: 2, After: *page2.PageInfo.EndCursor})
	if len(page3.Items) != 1 || page3.Items[0].ID() != "05" {
		t.Fatalf("page 3 wrong: %v", page3.Items)
	}
	if page3.PageInfo.HasNextPage || !page3.PageInfo.HasPreviousPage {
		t.Errorf("page 3 flags wrong: %+v", page3.PageInfo)
	}
}

func TestPaginateCursor_Backward(t *testing.T) {
	var sorted []Entity
	for i := 1; i <= 5; i++ {
		sorted = append(sorted, Entity{"id": fmt.Sprintf("%02d", i)})
	}

	page := paginateCursor(sorted, "id", false, PageSpec{Limit: 2, Before: "05"})
	if len(page.Items) != 2 || page.Items[0].ID() != "03" || page.Items[1].ID() != "04" {
		t.Fatalf("backward page wrong: %v", page.Items)
	}
	if !page.PageInfo.HasNextPage || !page.PageInfo.HasPreviousPage {
		t.Errorf("backward page flags wrong: %+v", page.PageInfo)
	}
}

// A descending sort pages forward through decreasing cursor values:
// 05-04, 03-02, 01.
func TestPaginateCursor_DescendingWalk(t *testing.T) {
	var sorted []Entity
	for i := 5; i >= 1; i-- {
		sorted = append(sorted, Entity{"id": fmt.Sprintf("%02d", i)})
	}

	page1 := paginateCursor(sorted, "id", true, PageSpec{Limit: 2})
	if len(page1.Items) != 2 || page1.Items[0].ID() != "05" || page1.Items[1].ID() != "04" {
		t.Fatalf("page 1 wrong: %v", page1.Items)
	}
	if !page1.PageInfo.HasNextPage || page1.PageInfo.HasPreviousPage {
		t.Errorf("page 1 flags wrong: %+v", page1.PageInfo)
	}

	page2 := paginateCursor(sorted, "id", true, PageSpec{Limit: 2, After: *page1.PageInfo.EndCursor})
	if len(page2.Items) != 2 || page2.Items[0].ID() != "03" || page2.Items[1].ID() != "02" {
		t.Fatalf("page 2 wrong: %v", page2.Items)
	}
	if !page2.PageInfo.HasNextPage || !page2.PageInfo.HasPreviousPage {
		t.Errorf("page 2 flags wrong: %+v", page2.PageInfo)
	}

	page3 := paginateCursor(sorted, "id", true, PageSpec{Limit: 2, After: *page2.PageInfo.EndCursor})
	if len(page3.Items) != 1 || page3.Items[0].ID() != "01" {
		t.Fatalf("page 3 wrong: %v", page3.Items)
	}
	if page3.PageInfo.HasNextPage || !page3.PageInfo.HasPreviousPage {
		t.Errorf("page 3 flags wrong: %+v", page3.PageInfo)
	}

	// Before walks back toward the head of the descending order.
	back := paginateCursor(sorted, "id", true, PageSpec{Limit: 2, Before: "01"})
	if len(back.Items) != 2 || back.Items[0].ID() != "03" || back.Items[1].ID() != "02" {
		t.Fatalf("backward page wrong: %v", back.Items)
	}
}

func TestPaginateCursor_Empty(t *testing.T) {
	page := paginateCursor(nil, "id", false, PageSpec{Limit: 2})
	if len(page.Items) != 0 {
		t.Fatalf("expected empty page")
	}
	if page.PageInfo.StartCursor != nil || page.PageInfo.EndCursor != nil {
		t.Error("empty page should have nil cursors")
	}
	if page.PageInfo.HasNextPage || page.PageInfo.HasPreviousPage {
		t.Error("empty page should have both flags false")
	}
}
