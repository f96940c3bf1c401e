package docbase

import (
	"context"
	"sync"
	"time"
)

// Collection is the CRUD engine for one configured collection. It owns
// the collection's state cell, its materialized indexes and its search
// index, and keeps all three mutually consistent: every mutation
// re-checks declared constraints inside the cell's atomic commit step and
// updates the indexes under the collection's write lock before any other
// writer can run.
type Collection struct {
	name      string
	cfg       CollectionConfig
	engine    *Engine
	cell      *StateCell
	validator Validator

	// mu serializes mutations and guards index structures. The cell's
	// snapshot itself is lock-free for readers.
	mu      sync.RWMutex
	indexes []*IndexMap
	search  *SearchIndex

	logger  Logger
	metrics Metrics
}

// Name returns the collection name.
func (c *Collection) Name() string {
	return c.name
}

// DeleteOptions controls delete behavior. Soft marks the entity deleted
// via the configured soft-delete field instead of removing it.
type DeleteOptions struct {
	Soft bool
}

// FindByID returns the entity with the given id, or ErrNotFound. Soft-
// deleted entities are treated as absent, matching default query
// behavior; Restore reaches them through the maintenance path.
func (c *Collection) FindByID(ctx context.Context, id string) (Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	snap := c.cell.Snapshot()
	e, ok := snap[id]
	if !ok || c.isSoftDeleted(e) {
		return nil, WithContext(ErrNotFound, map[string]interface{}{
			"collection": c.name,
			"id":         id,
		})
	}
	return e.Clone(), nil
}

// Create validates, hooks and commits one new entity. The uniqueness and
// foreign-key re-checks run inside the atomic commit transform: the hook
// chain and the validator are suspension points, so an advisory check
// before them could race a concurrent create for the same unique value.
func (c *Collection) Create(ctx context.Context, raw interface{}) (Entity, error) {
	e, err := c.prepareCreate(ctx, raw)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	_, err = c.cell.Commit(func(snap map[string]Entity) (map[string]Entity, error) {
		if err := c.validateCreate(snap, e, c.engine); err != nil {
			return nil, err
		}
		return withEntity(snap, e), nil
	})
	if err != nil {
		c.mu.Unlock()
		c.metrics.Increment(MetricCommitError, "collection", c.name, "operation", string(OpCreate))
		return nil, err
	}
	c.indexAdd(e)
	c.mu.Unlock()

	c.metrics.Increment(MetricCommitSuccess, "collection", c.name, "operation", string(OpCreate))
	c.logger.Debug("entity created", "collection", c.name, "id", e.ID())
	c.afterCommit(ctx, OpCreate, e)
	return e.Clone(), nil
}

// Update applies an update spec to an existing entity and commits the
// replacement. The spec carries per-field operators or literal values
// that deep-merge into the current entity; the entity is replaced, never
// mutated in place. A conflicting write landing between the read and the
// commit surfaces as ErrConcurrency.
func (c *Collection) Update(ctx context.Context, id string, spec map[string]interface{}) (Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	snap := c.cell.Snapshot()
	existing, ok := snap[id]
	if !ok {
		return nil, WithContext(ErrNotFound, map[string]interface{}{
			"collection": c.name,
			"id":         id,
		})
	}

	next, err := c.prepareUpdate(ctx, existing, spec)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	_, err = c.cell.Commit(func(current map[string]Entity) (map[string]Entity, error) {
		latest, stillThere := current[id]
		if !stillThere {
			return nil, WithContext(ErrNotFound, map[string]interface{}{
				"collection": c.name,
				"id":         id,
			})
		}
		// The replacement was derived outside the lock; a write that
		// landed in between invalidates it.
		if !equalValues(map[string]interface{}(latest), map[string]interface{}(existing)) {
			return nil, WithContext(ErrConcurrency, map[string]interface{}{
				"collection": c.name,
				"id":         id,
			})
		}
		if err := c.validateUpdate(current, id, next, c.engine); err != nil {
			return nil, err
		}
		return withEntity(current, next), nil
	})
	if err != nil {
		c.mu.Unlock()
		c.metrics.Increment(MetricCommitError, "collection", c.name, "operation", string(OpUpdate))
		return nil, err
	}
	c.indexUpdate(existing, next)
	c.mu.Unlock()

	c.metrics.Increment(MetricCommitSuccess, "collection", c.name, "operation", string(OpUpdate))
	c.logger.Debug("entity updated", "collection", c.name, "id", id)
	c.afterCommit(ctx, OpUpdate, next)
	return next.Clone(), nil
}

// Delete removes an entity, hard or soft. Referential cascade policies of
// every collection pointing at this one are evaluated first; restrict
// (the default) blocks the delete, and cascading work joins the same
// atomic unit, so a failure anywhere leaves every collection untouched.
func (c *Collection) Delete(ctx context.Context, id string, opts DeleteOptions) error {
	return c.engine.Transaction(ctx, func(tx *Tx) error {
		tc, err := tx.Collection(c.name)
		if err != nil {
			return err
		}
		return tc.Delete(ctx, id, opts)
	})
}

// Restore clears the soft-delete marker of a soft-deleted entity.
func (c *Collection) Restore(ctx context.Context, id string) (Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.cfg.SoftDeleteField == "" {
		return nil, WithContext(ErrOperation, map[string]interface{}{
			"collection": c.name,
			"reason":     "collection has no soft-delete field",
		})
	}

	snap := c.cell.Snapshot()
	existing, ok := snap[id]
	if !ok || !c.isSoftDeleted(existing) {
		return nil, WithContext(ErrNotFound, map[string]interface{}{
			"collection": c.name,
			"id":         id,
			"reason":     "no soft-deleted entity with this id",
		})
	}

	next := existing.Clone()
	delete(next, c.cfg.SoftDeleteField)

	c.mu.Lock()
	_, err := c.cell.Commit(func(current map[string]Entity) (map[string]Entity, error) {
		if _, stillThere := current[id]; !stillThere {
			return nil, WithContext(ErrNotFound, map[string]interface{}{
				"collection": c.name,
				"id":         id,
			})
		}
		if err := c.validateUpdate(current, id, next, c.engine); err != nil {
			return nil, err
		}
		return withEntity(current, next), nil
	})
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	c.indexUpdate(existing, next)
	c.mu.Unlock()

	c.logger.Debug("entity restored", "collection", c.name, "id", id)
	c.afterCommit(ctx, OpUpdate, next)
	return next.Clone(), nil
}

// Purge hard-deletes entities that were soft-deleted before the cutoff.
// Each purge goes through the regular delete path so restrict constraints
// still apply; the whole batch is one atomic unit.
func (c *Collection) Purge(ctx context.Context, before time.Time) (int, error) {
	if c.cfg.SoftDeleteField == "" {
		return 0, WithContext(ErrOperation, map[string]interface{}{
			"collection": c.name,
			"reason":     "collection has no soft-delete field",
		})
	}

	snap := c.cell.Snapshot()
	var ids []string
	for _, id := range sortedIDs(snap) {
		marker, ok := fieldValue(snap[id], c.cfg.SoftDeleteField)
		if !ok || marker == nil {
			continue
		}
		stamp, ok := marker.(string)
		if !ok {
			continue
		}
		deletedAt, err := time.Parse(time.RFC3339Nano, stamp)
		if err != nil {
			continue
		}
		if deletedAt.Before(before) {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}

	err := c.engine.Transaction(ctx, func(tx *Tx) error {
		tc, err := tx.Collection(c.name)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if err := tc.Delete(ctx, id, DeleteOptions{}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// prepareCreate runs the pre-commit pipeline: schema validation, id
// assignment and the before-create hook chain (global hooks first).
func (c *Collection) prepareCreate(ctx context.Context, raw interface{}) (Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e, err := c.validator.Validate(raw)
	if err != nil {
		return nil, err
	}
	e = e.Clone()

	if e.ID() == "" {
		gen := c.engine.registry.Generator(c.cfg.IDGenerator)
		e["id"] = gen()
	}

	e, err = runBeforeHooks(ctx, c.engine.registry.GlobalHooks.BeforeCreate, e)
	if err != nil {
		return nil, err
	}
	e, err = runBeforeHooks(ctx, c.cfg.Hooks.BeforeCreate, e)
	if err != nil {
		return nil, err
	}

	// Hooks may have replaced the entity; it must still conform.
	e, err = c.validator.Validate(map[string]interface{}(e))
	if err != nil {
		return nil, err
	}
	if e.ID() == "" {
		return nil, WithContext(ErrInvalidData, map[string]interface{}{
			"collection": c.name,
			"reason":     "entity lost its id in a before hook",
		})
	}
	return e, nil
}

// prepareUpdate derives and validates the replacement entity for an
// update, running the before-update hook chain.
func (c *Collection) prepareUpdate(ctx context.Context, existing Entity, spec map[string]interface{}) (Entity, error) {
	next, err := applyUpdateSpec(existing, spec)
	if err != nil {
		return nil, err
	}
	if next.ID() != existing.ID() {
		return nil, WithContext(ErrOperation, map[string]interface{}{
			"collection": c.name,
			"reason":     "id is immutable",
		})
	}

	next, err = runBeforeHooks(ctx, c.engine.registry.GlobalHooks.BeforeUpdate, next)
	if err != nil {
		return nil, err
	}
	next, err = runBeforeHooks(ctx, c.cfg.Hooks.BeforeUpdate, next)
	if err != nil {
		return nil, err
	}

	next, err = c.validator.Validate(map[string]interface{}(next))
	if err != nil {
		return nil, err
	}
	if next.ID() != existing.ID() {
		return nil, WithContext(ErrOperation, map[string]interface{}{
			"collection": c.name,
			"reason":     "id is immutable",
		})
	}
	return next, nil
}

// validateCreate holds the commit-time checks for an insert: primary id
// collision, declared uniqueness, and ref foreign-key existence.
func (c *Collection) validateCreate(snap map[string]Entity, e Entity, view stateView) error {
	if _, exists := snap[e.ID()]; exists {
		return WithContext(ErrDuplicateKey, map[string]interface{}{
			"collection": c.name,
			"id":         e.ID(),
		})
	}
	if err := checkUniqueConstraints(snap, c.cfg.Unique, e, ""); err != nil {
		return err
	}
	return checkForeignKeys(e, c.cfg.Relationships, view)
}

// validateUpdate holds the commit-time checks for a replacement.
func (c *Collection) validateUpdate(snap map[string]Entity, id string, next Entity, view stateView) error {
	if err := checkUniqueConstraints(snap, c.cfg.Unique, next, id); err != nil {
		return err
	}
	return checkForeignKeys(next, c.cfg.Relationships, view)
}

// afterCommit runs the best-effort post-commit work: after hooks, the
// onChange hook set, and the change notification. Nothing here can fail
// the already-committed mutation.
func (c *Collection) afterCommit(ctx context.Context, op Operation, e Entity) {
	switch op {
	case OpCreate:
		runAfterHooks(ctx, c.engine.registry.GlobalHooks.AfterCreate, e, c.logger, c.metrics, c.name)
		runAfterHooks(ctx, c.cfg.Hooks.AfterCreate, e, c.logger, c.metrics, c.name)
	case OpUpdate:
		runAfterHooks(ctx, c.engine.registry.GlobalHooks.AfterUpdate, e, c.logger, c.metrics, c.name)
		runAfterHooks(ctx, c.cfg.Hooks.AfterUpdate, e, c.logger, c.metrics, c.name)
	case OpDelete:
		runAfterHooks(ctx, c.engine.registry.GlobalHooks.AfterDelete, e, c.logger, c.metrics, c.name)
		runAfterHooks(ctx, c.cfg.Hooks.AfterDelete, e, c.logger, c.metrics, c.name)
	}
	runAfterHooks(ctx, c.engine.registry.GlobalHooks.OnChange, e, c.logger, c.metrics, c.name)
	runAfterHooks(ctx, c.cfg.Hooks.OnChange, e, c.logger, c.metrics, c.name)

	c.engine.notifier.Notify(Change{Collection: c.name, Op: op})
}

func (c *Collection) isSoftDeleted(e Entity) bool {
	if c.cfg.SoftDeleteField == "" {
		return false
	}
	marker, ok := fieldValue(e, c.cfg.SoftDeleteField)
	return ok && marker != nil
}

// indexAdd/indexUpdate/indexRemove adjust every index structure. Callers
// hold the collection write lock.
func (c *Collection) indexAdd(e Entity) {
	for _, idx := range c.indexes {
		idx.Add(e)
	}
	if c.search != nil {
		c.search.Add(e)
	}
}

func (c *Collection) indexUpdate(old, new Entity) {
	for _, idx := range c.indexes {
		idx.Update(old, new)
	}
	if c.search != nil {
		c.search.Update(old, new)
	}
}

func (c *Collection) indexRemove(e Entity) {
	for _, idx := range c.indexes {
		idx.Remove(e)
	}
	if c.search != nil {
		c.search.Remove(e)
	}
}
