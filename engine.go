package docbase

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Engine owns every configured collection and the shared runtime pieces:
// the plugin registry, the change notifier, logging and metrics, and the
// optional snapshot store the collections load from and persist to.
type Engine struct {
	cfg         Config
	collections map[string]*Collection
	registry    *Registry
	notifier    Notifier
	store       SnapshotStore
	logger      Logger
	metrics     Metrics

	closeOnce sync.Once
}

// Option configures an Engine at Open time.
type Option func(*Engine)

// WithLogger injects a logger. Default is NoOpLogger.
func WithLogger(logger Logger) Option {
	return func(eng *Engine) { eng.logger = logger }
}

// WithMetrics injects a metrics collector. Default is NoOpMetrics.
func WithMetrics(metrics Metrics) Option {
	return func(eng *Engine) { eng.metrics = metrics }
}

// WithNotifier injects the change-notification sink. Default discards.
func WithNotifier(notifier Notifier) Option {
	return func(eng *Engine) { eng.notifier = notifier }
}

// WithRegistry injects a pre-populated plugin registry (custom query
// operators, named id generators, global hooks).
func WithRegistry(registry *Registry) Option {
	return func(eng *Engine) { eng.registry = registry }
}

// WithSnapshotStore injects the persistence backend. Collections load
// their initial state from it at Open and persist to it on Save.
func WithSnapshotStore(store SnapshotStore) Option {
	return func(eng *Engine) { eng.store = store }
}

// Open validates the configuration, builds every collection's state cell
// and index structures, and loads initial state from the snapshot store
// when one is configured. Collections load concurrently; any load failure
// fails Open as a whole.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	eng := &Engine{
		cfg:         cfg,
		collections: make(map[string]*Collection, len(cfg.Collections)),
		registry:    NewRegistry(),
		notifier:    NoOpNotifier{},
		logger:      &NoOpLogger{},
		metrics:     &NoOpMetrics{},
	}
	for _, opt := range opts {
		opt(eng)
	}

	loaded := make([][]Entity, len(cfg.Collections))
	g, gctx := errgroup.WithContext(ctx)
	for i, colCfg := range cfg.Collections {
		i, colCfg := i, colCfg
		g.Go(func() error {
			entities, err := eng.loadCollection(gctx, colCfg)
			if err != nil {
				return err
			}
			loaded[i] = entities
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, colCfg := range cfg.Collections {
		col, err := eng.buildCollection(colCfg, loaded[i])
		if err != nil {
			return nil, err
		}
		eng.collections[colCfg.Name] = col
		if len(loaded[i]) > 0 {
			eng.notifier.Notify(Change{Collection: colCfg.Name, Op: OpReload})
		}
	}

	eng.logger.Info("engine opened", "collections", len(eng.collections))
	return eng, nil
}

// loadCollection fetches a collection's persisted entities. Id presence
// and uniqueness are enforced when the state cell is seeded.
func (eng *Engine) loadCollection(ctx context.Context, cfg CollectionConfig) ([]Entity, error) {
	if eng.store == nil {
		return nil, nil
	}
	entities, err := eng.store.Load(ctx, cfg.Name)
	if err != nil {
		return nil, WithContext(err, map[string]interface{}{
			"collection": cfg.Name,
			"operation":  "load",
		})
	}
	eng.logger.Debug("collection loaded", "collection", cfg.Name, "entities", len(entities))
	return entities, nil
}

func (eng *Engine) buildCollection(cfg CollectionConfig, initial []Entity) (*Collection, error) {
	cell, err := NewStateCell(initial)
	if err != nil {
		return nil, WithContext(err, map[string]interface{}{
			"collection": cfg.Name,
		})
	}
	snap := cell.Snapshot()

	indexes := make([]*IndexMap, 0, len(cfg.Indexes))
	for _, def := range cfg.Indexes {
		indexes = append(indexes, NewIndexMap(def, snap))
	}
	var search *SearchIndex
	if len(cfg.SearchFields) > 0 {
		search = NewSearchIndex(cfg.SearchFields, snap)
	}

	validator := cfg.Validator
	if validator == nil {
		validator = passthroughValidator{}
	}

	return &Collection{
		name:      cfg.Name,
		cfg:       cfg,
		engine:    eng,
		cell:      cell,
		validator: validator,
		indexes:   indexes,
		search:    search,
		logger:    eng.logger,
		metrics:   eng.metrics,
	}, nil
}

// Collection returns the handle for a configured collection.
func (eng *Engine) Collection(name string) (*Collection, error) {
	col, ok := eng.collections[name]
	if !ok {
		return nil, WithContext(ErrUnknownCollection, map[string]interface{}{
			"collection": name,
		})
	}
	return col, nil
}

// Snapshot returns clones of every entity in a collection, including
// soft-deleted ones, in stable id order. This is the persistence view.
func (eng *Engine) Snapshot(name string) ([]Entity, error) {
	col, err := eng.Collection(name)
	if err != nil {
		return nil, err
	}
	snap := col.cell.Snapshot()
	out := make([]Entity, 0, len(snap))
	for _, id := range sortedIDs(snap) {
		out = append(out, snap[id].Clone())
	}
	return out, nil
}

// entitiesOf implements stateView over live cell snapshots.
func (eng *Engine) entitiesOf(name string) (map[string]Entity, bool) {
	col, ok := eng.collections[name]
	if !ok {
		return nil, false
	}
	return col.cell.Snapshot(), true
}

// Save persists one collection's current snapshot to the configured
// snapshot store.
func (eng *Engine) Save(ctx context.Context, name string) error {
	if eng.store == nil {
		return WithContext(ErrInvalidConfig, map[string]interface{}{
			"reason": "no snapshot store configured",
		})
	}
	entities, err := eng.Snapshot(name)
	if err != nil {
		return err
	}
	if err := eng.store.Save(ctx, name, entities); err != nil {
		return WithContext(err, map[string]interface{}{
			"collection": name,
			"operation":  "save",
		})
	}
	eng.logger.Debug("collection saved", "collection", name, "entities", len(entities))
	return nil
}

// SaveAll persists every collection.
func (eng *Engine) SaveAll(ctx context.Context) error {
	names := make([]string, 0, len(eng.collections))
	for name := range eng.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := eng.Save(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

// Close shuts the engine down, draining the notifier if it supports it.
// In-memory state is discarded; call Save first to persist.
func (eng *Engine) Close() {
	eng.closeOnce.Do(func() {
		if closer, ok := eng.notifier.(interface{ Close() }); ok {
			closer.Close()
		}
		eng.logger.Info("engine closed")
	})
}
