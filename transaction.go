package docbase

import (
	"context"
	"sort"
	"time"
)

// Tx stages a multi-collection atomic workflow. Every CRUD call made
// through a Tx collection handle lands in a per-transaction copy-on-write
// overlay of the touched collection's state cell and indexes, never in
// the live structures. If the workflow returns without error, every
// touched collection is swapped to its overlay in one atomic step per
// collection; change notifications queued during the workflow are emitted
// only after all swaps succeed. Any error discards every overlay.
//
// A Tx is single-goroutine: it is handed to one workflow function and
// must not escape it.
type Tx struct {
	eng      *Engine
	overlays map[string]*txOverlay
	changes  []Change
	after    []func()

	// reads records the cell version of every collection consulted
	// without being written (foreign-key targets, cascade dependents), so
	// a constraint decision based on live state joins the commit-time
	// conflict check.
	reads map[string]uint64

	// deleting tracks in-progress deletions per collection, so mutually
	// cascading relationships terminate instead of recursing forever.
	deleting map[string]map[string]struct{}
}

// markDeleting records an in-progress deletion. Returns false when the
// entity is already being deleted higher up the cascade.
func (tx *Tx) markDeleting(collection, id string) bool {
	if tx.deleting == nil {
		tx.deleting = make(map[string]map[string]struct{})
	}
	ids, ok := tx.deleting[collection]
	if !ok {
		ids = make(map[string]struct{})
		tx.deleting[collection] = ids
	}
	if _, busy := ids[id]; busy {
		return false
	}
	ids[id] = struct{}{}
	return true
}

// txOverlay is the staged replacement for one collection: a mutable copy
// of the entity map plus deep copies of the index structures, tagged with
// the cell version it was forked from so a conflicting live commit is
// detected at swap time.
type txOverlay struct {
	col         *Collection
	entities    map[string]Entity
	indexes     []*IndexMap
	search      *SearchIndex
	baseVersion uint64
}

// TxCollection is the collection-scoped proxy handle used inside a
// transactional workflow. It mirrors the Collection CRUD surface but
// redirects all reads and writes into the transaction's overlay.
type TxCollection struct {
	tx  *Tx
	col *Collection
}

// Transaction runs fn with a transaction handle and commits its staged
// work atomically. On any error the overlays are discarded, the live
// state is untouched, and no change notification is emitted for the
// attempt.
func (eng *Engine) Transaction(ctx context.Context, fn func(tx *Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &Tx{
		eng:      eng,
		overlays: make(map[string]*txOverlay),
	}

	if err := fn(tx); err != nil {
		eng.metrics.Increment(MetricTransactionRollback)
		eng.logger.Debug("transaction discarded", "error", err)
		return err
	}
	return tx.commit(ctx)
}

// Collection returns the proxy handle for a configured collection.
func (tx *Tx) Collection(name string) (*TxCollection, error) {
	col, err := tx.eng.Collection(name)
	if err != nil {
		return nil, err
	}
	return &TxCollection{tx: tx, col: col}, nil
}

// overlay forks the copy-on-write overlay for a collection on first
// touch.
func (tx *Tx) overlay(col *Collection) *txOverlay {
	if o, ok := tx.overlays[col.name]; ok {
		return o
	}

	col.mu.RLock()
	snap := col.cell.Snapshot()
	entities := make(map[string]Entity, len(snap))
	for id, e := range snap {
		entities[id] = e
	}
	indexes := make([]*IndexMap, len(col.indexes))
	for i, idx := range col.indexes {
		indexes[i] = idx.clone()
	}
	var search *SearchIndex
	if col.search != nil {
		search = col.search.clone()
	}
	baseVersion := col.cell.Version()
	col.mu.RUnlock()

	o := &txOverlay{
		col:         col,
		entities:    entities,
		indexes:     indexes,
		search:      search,
		baseVersion: baseVersion,
	}
	tx.overlays[col.name] = o
	return o
}

// entitiesOf implements stateView: constraint checks inside a transaction
// observe staged overlays first, then live snapshots. A live read pins the
// collection's cell version for verification at commit; a delete that saw
// no dependents must still fail if a dependent was created concurrently.
func (tx *Tx) entitiesOf(name string) (map[string]Entity, bool) {
	if o, ok := tx.overlays[name]; ok {
		return o.entities, true
	}
	col, ok := tx.eng.collections[name]
	if !ok {
		return nil, false
	}

	col.mu.RLock()
	snap := col.cell.Snapshot()
	version := col.cell.Version()
	col.mu.RUnlock()

	if tx.reads == nil {
		tx.reads = make(map[string]uint64)
	}
	if _, seen := tx.reads[name]; !seen {
		tx.reads[name] = version
	}
	return snap, true
}

// commit swaps every staged overlay into place. All touched collections
// are locked (in name order) before any swap, and every cell version is
// verified first, so the commit is all-or-nothing: either every
// collection advances to its overlay or none does.
func (tx *Tx) commit(ctx context.Context) error {
	if len(tx.overlays) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// Lock every collection the transaction touched, written or merely
	// consulted, in name order so concurrent transactions cannot deadlock.
	locked := make(map[string]*Collection, len(tx.overlays)+len(tx.reads))
	for name, o := range tx.overlays {
		locked[name] = o.col
	}
	for name := range tx.reads {
		if _, written := locked[name]; !written {
			locked[name] = tx.eng.collections[name]
		}
	}
	lockNames := make([]string, 0, len(locked))
	for name := range locked {
		lockNames = append(lockNames, name)
	}
	sort.Strings(lockNames)

	for _, name := range lockNames {
		locked[name].mu.Lock()
	}
	defer func() {
		for i := len(lockNames) - 1; i >= 0; i-- {
			locked[lockNames[i]].mu.Unlock()
		}
	}()

	// Verify before swapping anything: a live commit that landed after an
	// overlay was forked, or after a constraint check read a collection,
	// invalidates the whole transaction.
	for _, name := range lockNames {
		current := locked[name].cell.Version()
		conflicted := false
		if o, written := tx.overlays[name]; written && current != o.baseVersion {
			conflicted = true
		}
		if v, read := tx.reads[name]; read && current != v {
			conflicted = true
		}
		if conflicted {
			tx.eng.metrics.Increment(MetricTransactionConflict)
			return WithContext(ErrConcurrency, map[string]interface{}{
				"collection": name,
				"reason":     "collection changed while transaction was staged",
			})
		}
	}

	names := make([]string, 0, len(tx.overlays))
	for name := range tx.overlays {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		o := tx.overlays[name]
		if !o.col.cell.replace(o.entities, o.baseVersion) {
			// Unreachable while the collection locks are held; kept as a
			// hard failure rather than a silent partial commit.
			return WithContext(ErrTransaction, map[string]interface{}{
				"collection": name,
			})
		}
		o.col.indexes = o.indexes
		if o.search != nil {
			o.col.search = o.search
		}
	}

	tx.eng.metrics.Increment(MetricTransactionSuccess)
	for _, fn := range tx.after {
		fn()
	}
	for _, change := range tx.changes {
		tx.eng.notifier.Notify(change)
	}
	return nil
}

// queueAfter defers after-hook work until the transaction has committed;
// a discarded transaction must not observe its own staged mutations.
func (tc *TxCollection) queueAfter(ctx context.Context, op Operation, e Entity) {
	col := tc.col
	tc.tx.after = append(tc.tx.after, func() {
		switch op {
		case OpCreate:
			runAfterHooks(ctx, col.engine.registry.GlobalHooks.AfterCreate, e, col.logger, col.metrics, col.name)
			runAfterHooks(ctx, col.cfg.Hooks.AfterCreate, e, col.logger, col.metrics, col.name)
		case OpUpdate:
			runAfterHooks(ctx, col.engine.registry.GlobalHooks.AfterUpdate, e, col.logger, col.metrics, col.name)
			runAfterHooks(ctx, col.cfg.Hooks.AfterUpdate, e, col.logger, col.metrics, col.name)
		case OpDelete:
			runAfterHooks(ctx, col.engine.registry.GlobalHooks.AfterDelete, e, col.logger, col.metrics, col.name)
			runAfterHooks(ctx, col.cfg.Hooks.AfterDelete, e, col.logger, col.metrics, col.name)
		}
		runAfterHooks(ctx, col.engine.registry.GlobalHooks.OnChange, e, col.logger, col.metrics, col.name)
		runAfterHooks(ctx, col.cfg.Hooks.OnChange, e, col.logger, col.metrics, col.name)
	})
}

// FindByID reads an entity through the overlay, so a workflow observes
// its own staged writes.
func (tc *TxCollection) FindByID(ctx context.Context, id string) (Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	o := tc.tx.overlay(tc.col)
	e, ok := o.entities[id]
	if !ok || tc.col.isSoftDeleted(e) {
		return nil, WithContext(ErrNotFound, map[string]interface{}{
			"collection": tc.col.name,
			"id":         id,
		})
	}
	return e.Clone(), nil
}

// Create stages one new entity in the transaction overlay.
func (tc *TxCollection) Create(ctx context.Context, raw interface{}) (Entity, error) {
	e, err := tc.col.prepareCreate(ctx, raw)
	if err != nil {
		return nil, err
	}
	o := tc.tx.overlay(tc.col)
	if err := tc.col.validateCreate(o.entities, e, tc.tx); err != nil {
		return nil, err
	}
	o.entities[e.ID()] = e
	o.indexAdd(e)
	tc.tx.changes = append(tc.tx.changes, Change{Collection: tc.col.name, Op: OpCreate})
	tc.queueAfter(ctx, OpCreate, e)
	return e.Clone(), nil
}

// Update stages a replacement for an existing entity.
func (tc *TxCollection) Update(ctx context.Context, id string, spec map[string]interface{}) (Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	o := tc.tx.overlay(tc.col)
	existing, ok := o.entities[id]
	if !ok {
		return nil, WithContext(ErrNotFound, map[string]interface{}{
			"collection": tc.col.name,
			"id":         id,
		})
	}
	next, err := tc.col.prepareUpdate(ctx, existing, spec)
	if err != nil {
		return nil, err
	}
	if err := tc.col.validateUpdate(o.entities, id, next, tc.tx); err != nil {
		return nil, err
	}
	o.entities[id] = next
	o.indexUpdate(existing, next)
	tc.tx.changes = append(tc.tx.changes, Change{Collection: tc.col.name, Op: OpUpdate})
	tc.queueAfter(ctx, OpUpdate, next)
	return next.Clone(), nil
}

// Delete stages a hard or soft delete, evaluating the cascade policy of
// every relationship pointing at this collection. Cascaded operations go
// through the same staged CRUD surface, so they re-trigger their own
// constraint checks and index maintenance inside the same atomic unit.
func (tc *TxCollection) Delete(ctx context.Context, id string, opts DeleteOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	o := tc.tx.overlay(tc.col)
	e, ok := o.entities[id]
	if !ok {
		return WithContext(ErrNotFound, map[string]interface{}{
			"collection": tc.col.name,
			"id":         id,
		})
	}
	if opts.Soft && tc.col.cfg.SoftDeleteField == "" {
		return WithContext(ErrOperation, map[string]interface{}{
			"collection": tc.col.name,
			"reason":     "collection has no soft-delete field",
		})
	}
	if !tc.tx.markDeleting(tc.col.name, id) {
		return nil
	}

	for _, dep := range dependentsOf(tc.tx.eng.cfg, tc.col.name) {
		depCol, err := tc.tx.eng.Collection(dep.collection)
		if err != nil {
			return err
		}
		depEntities, _ := tc.tx.entitiesOf(dep.collection)
		refs := referencingIDs(depEntities, dep.rel.ForeignKey, id, depCol.cfg.SoftDeleteField)
		if len(refs) == 0 {
			continue
		}

		policy := dep.rel.OnDelete
		if policy == "" {
			policy = CascadeRestrict
		}
		switch policy {
		case CascadeRestrict:
			return WithContext(ErrOperation, map[string]interface{}{
				"collection":  tc.col.name,
				"id":          id,
				"reason":      "deletion restricted by referencing entities",
				"referencing": dep.collection,
				"count":       len(refs),
			})
		case CascadeDelete, CascadeSoftDelete:
			depHandle := &TxCollection{tx: tc.tx, col: depCol}
			for _, refID := range refs {
				// A cascade cycle may have removed the dependent already.
				if current, _ := tc.tx.entitiesOf(dep.collection); current != nil {
					if _, still := current[refID]; !still {
						continue
					}
				}
				if err := depHandle.Delete(ctx, refID, DeleteOptions{Soft: policy == CascadeSoftDelete}); err != nil {
					return err
				}
			}
		case CascadeSetNull:
			depHandle := &TxCollection{tx: tc.tx, col: depCol}
			for _, refID := range refs {
				spec := map[string]interface{}{
					dep.rel.ForeignKey: map[string]interface{}{uopSet: nil},
				}
				if _, err := depHandle.Update(ctx, refID, spec); err != nil {
					return err
				}
			}
		case CascadePreserve:
		}
	}

	if opts.Soft {
		marked := e.Clone()
		setFieldValue(marked, tc.col.cfg.SoftDeleteField, time.Now().UTC().Format(time.RFC3339Nano))
		o.entities[id] = marked
		// Soft-deleted entities stay index-present so they can be
		// restored; default queries filter them out.
		o.indexUpdate(e, marked)
	} else {
		delete(o.entities, id)
		o.indexRemove(e)
	}

	tc.tx.changes = append(tc.tx.changes, Change{Collection: tc.col.name, Op: OpDelete})
	tc.queueAfter(ctx, OpDelete, e)
	return nil
}

func (o *txOverlay) indexAdd(e Entity) {
	for _, idx := range o.indexes {
		idx.Add(e)
	}
	if o.search != nil {
		o.search.Add(e)
	}
}

func (o *txOverlay) indexUpdate(old, new Entity) {
	for _, idx := range o.indexes {
		idx.Update(old, new)
	}
	if o.search != nil {
		o.search.Update(old, new)
	}
}

func (o *txOverlay) indexRemove(e Entity) {
	for _, idx := range o.indexes {
		idx.Remove(e)
	}
	if o.search != nil {
		o.search.Remove(e)
	}
}
