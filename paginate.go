package docbase

import "fmt"

// PageSpec requests cursor-based pagination over a sorted result set.
// After and Before are opaque cursors produced by a previous page.
type PageSpec struct {
	Limit  int
	After  string
	Before string
}

// PageInfo describes the boundaries of a returned page.
type PageInfo struct {
	HasNextPage     bool
	HasPreviousPage bool
	StartCursor     *string
	EndCursor       *string
}

// Page is one cursor-paginated slice of a result set.
type Page struct {
	Items    []Entity
	PageInfo PageInfo
}

// applyOffsetLimit is the simple slice form of pagination.
func applyOffsetLimit(entities []Entity, offset, limit int) []Entity {
	if offset > 0 {
		if offset >= len(entities) {
			return nil
		}
		entities = entities[offset:]
	}
	if limit >= 0 && limit < len(entities) {
		entities = entities[:limit]
	}
	return entities
}

// cursorFor derives the opaque cursor of an entity: the string coercion of
// its sort-key field. Cursors compare with plain string ordering, so they
// are only correct for fields that are lexically monotonic with their
// intended order (zero-padded sequences, RFC3339 timestamps, UUIDv7 ids).
// Numeric fields of varying digit width will paginate incorrectly; this is
// a known compatibility constraint, not a bug to fix here.
func cursorFor(e Entity, field string) string {
	v, _ := fieldValue(e, field)
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// paginateCursor slices a sorted result set by cursor. It fetches limit+1
// items past the cursor to decide HasNextPage, trims the overflow item,
// and derives Start/EndCursor from the trimmed page's boundary items. An
// empty result yields nil cursors and both flags false. desc is the
// direction of the primary sort; cursor comparisons follow it, so a
// descending walk pages forward through decreasing cursor values.
func paginateCursor(sorted []Entity, field string, desc bool, spec PageSpec) Page {
	limit := spec.Limit
	if limit <= 0 {
		limit = len(sorted)
	}

	// precedes reports whether cursor a comes before cursor b in the walk
	// order.
	precedes := func(a, b string) bool {
		if desc {
			return a > b
		}
		return a < b
	}

	var window []Entity
	skippedBefore := 0
	trimmedAfter := 0

	if spec.Before != "" {
		for _, e := range sorted {
			if precedes(cursorFor(e, field), spec.Before) {
				window = append(window, e)
			} else {
				trimmedAfter++
			}
		}
		// Keep the last limit items before the cursor; anything earlier
		// belongs to previous pages.
		if len(window) > limit {
			skippedBefore = len(window) - limit
			window = window[skippedBefore:]
		}
	} else {
		for _, e := range sorted {
			if spec.After != "" && !precedes(spec.After, cursorFor(e, field)) {
				skippedBefore++
				continue
			}
			window = append(window, e)
			if len(window) == limit+1 {
				break
			}
		}
		if len(window) > limit {
			window = window[:limit]
			trimmedAfter = 1
		}
	}

	page := Page{Items: window}
	if len(window) == 0 {
		return page
	}

	start := cursorFor(window[0], field)
	end := cursorFor(window[len(window)-1], field)
	page.PageInfo = PageInfo{
		HasNextPage:     trimmedAfter > 0,
		HasPreviousPage: skippedBefore > 0,
		StartCursor:     &start,
		EndCursor:       &end,
	}
	return page
}
