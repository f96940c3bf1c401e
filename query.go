package docbase

import (
	"context"
	"sort"
	"time"
)

// Query is a fluent, immutable-input read over one collection. Builder
// calls refine the receiver and return it for chaining; execution happens
// in All, First, Count or Page.
//
//	users.Query().
//		Where(docbase.Where{"age": docbase.Where{"$gte": 18}}).
//		Sort("name").
//		Limit(20).
//		All(ctx)
//
// The pipeline order is fixed: filter, populate, sort, paginate, project.
// Projection therefore cannot remove fields the sort depends on, and
// pagination counts post-filter entities.
type Query struct {
	col *Collection

	where          Where
	sorts          []SortField
	selection      interface{}
	populate       PopulateSpec
	limit          int
	offset         int
	includeDeleted bool
}

// Query starts a query over the collection.
func (c *Collection) Query() *Query {
	return &Query{col: c, limit: -1}
}

// Where sets the filter clause. Conditions on separate fields conjoin.
func (q *Query) Where(w Where) *Query {
	q.where = w
	return q
}

// Sort appends an ascending sort field. Later calls add tie-breakers.
func (q *Query) Sort(field string) *Query {
	q.sorts = append(q.sorts, SortField{Field: field})
	return q
}

// SortDesc appends a descending sort field.
func (q *Query) SortDesc(field string) *Query {
	q.sorts = append(q.sorts, SortField{Field: field, Desc: true})
	return q
}

// Select sets the projection: a []string of flat field names, or a
// nested map for partial sub-objects.
func (q *Query) Select(selection interface{}) *Query {
	q.selection = selection
	return q
}

// Populate requests relationship resolution on the results.
func (q *Query) Populate(spec PopulateSpec) *Query {
	q.populate = spec
	return q
}

// Limit caps the number of results. Negative means unlimited.
func (q *Query) Limit(n int) *Query {
	q.limit = n
	return q
}

// Offset skips the first n post-filter results.
func (q *Query) Offset(n int) *Query {
	q.offset = n
	return q
}

// IncludeDeleted lifts the default soft-delete filter.
func (q *Query) IncludeDeleted() *Query {
	q.includeDeleted = true
	return q
}

// All executes the query and returns matching entities. Results are
// clones; mutating them never touches committed state.
func (q *Query) All(ctx context.Context) ([]Entity, error) {
	start := time.Now()
	matched, err := q.filtered(ctx)
	if err != nil {
		return nil, err
	}

	matched, err = q.col.engine.populateEntities(matched, q.col.cfg, q.populate)
	if err != nil {
		return nil, err
	}
	if len(q.sorts) > 0 {
		sortEntities(matched, q.sorts)
	}
	matched = applyOffsetLimit(matched, q.offset, q.limit)
	out := q.finalize(matched)

	q.observe(start, len(out))
	return out, nil
}

// First returns the first matching entity in the query's order, or
// ErrNotFound.
func (q *Query) First(ctx context.Context) (Entity, error) {
	limit := q.limit
	q.limit = 1
	results, err := q.All(ctx)
	q.limit = limit
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, WithContext(ErrNotFound, map[string]interface{}{
			"collection": q.col.name,
		})
	}
	return results[0], nil
}

// Count returns the number of matching entities, skipping the populate,
// sort and projection stages.
func (q *Query) Count(ctx context.Context) (int, error) {
	start := time.Now()
	matched, err := q.filtered(ctx)
	if err != nil {
		return 0, err
	}
	q.observe(start, len(matched))
	return len(matched), nil
}

// Page executes the query with cursor pagination over the primary sort
// field (entity id when no sort is set). Offset and Limit on the builder
// are ignored; the page spec governs slicing.
func (q *Query) Page(ctx context.Context, spec PageSpec) (Page, error) {
	start := time.Now()
	matched, err := q.filtered(ctx)
	if err != nil {
		return Page{}, err
	}
	matched, err = q.col.engine.populateEntities(matched, q.col.cfg, q.populate)
	if err != nil {
		return Page{}, err
	}

	cursorField := "id"
	cursorDesc := false
	if len(q.sorts) > 0 {
		cursorField = q.sorts[0].Field
		cursorDesc = q.sorts[0].Desc
		sortEntities(matched, q.sorts)
	}
	page := paginateCursor(matched, cursorField, cursorDesc, spec)
	page.Items = q.finalize(page.Items)

	q.observe(start, len(page.Items))
	return page, nil
}

// filtered resolves candidates (through an index when one applies) and
// runs the full filter over them, in stable ascending-id order.
func (q *Query) filtered(ctx context.Context) ([]Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c := q.col

	c.mu.RLock()
	snap := c.cell.Snapshot()
	candidates, usedIndex := indexLookup(c.indexes, c.search, q.where)
	c.mu.RUnlock()

	var ids []string
	if usedIndex {
		c.metrics.Increment(MetricIndexHits, "collection", c.name)
		ids = make([]string, 0, len(candidates))
		for id := range candidates {
			ids = append(ids, id)
		}
		sort.Strings(ids)
	} else {
		c.metrics.Increment(MetricIndexMisses, "collection", c.name)
		ids = sortedIDs(snap)
	}

	var matched []Entity
	for _, id := range ids {
		e, ok := snap[id]
		if !ok {
			continue
		}
		if !q.includeDeleted && c.isSoftDeleted(e) {
			continue
		}
		ok, err := q.where.Matches(e, c.engine.registry)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, e)
		}
	}
	return matched, nil
}

// finalize applies the projection and clones each result.
func (q *Query) finalize(entities []Entity) []Entity {
	out := make([]Entity, len(entities))
	for i, e := range entities {
		projected := applyProjection(e, q.selection)
		out[i] = projected.Clone()
	}
	return out
}

func (q *Query) observe(start time.Time, results int) {
	elapsed := time.Since(start)
	q.col.metrics.Histogram(MetricQueryDuration, elapsed.Seconds(), "collection", q.col.name)
	q.col.metrics.Histogram(MetricQueryResults, float64(results), "collection", q.col.name)
	q.col.logger.Debug("query executed",
		"collection", q.col.name,
		"results", results,
		"duration", elapsed.String(),
	)
}

// Aggregate runs accumulators over the filtered entity set, grouped when
// the spec asks for it.
func (c *Collection) Aggregate(ctx context.Context, spec AggregateSpec) (AggregateResult, error) {
	q := c.Query().Where(spec.Where)
	matched, err := q.filtered(ctx)
	if err != nil {
		return AggregateResult{}, err
	}
	return aggregateEntities(matched, spec), nil
}
