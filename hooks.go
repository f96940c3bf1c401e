package docbase

import (
	"context"
	"fmt"
)

// BeforeHook runs before a mutation commits. Hooks chain: each receives
// the previous hook's output and may replace the entity or reject the
// operation by returning an error.
type BeforeHook func(ctx context.Context, e Entity) (Entity, error)

// AfterHook runs after a mutation has committed. It has no error return
// on purpose: after-hook failures must never roll back a committed
// mutation, so the type itself rules propagation out. Panics are recovered
// and logged.
type AfterHook func(ctx context.Context, e Entity)

// CollectionHooks holds the lifecycle hooks of one collection. The same
// shape is used for registry-level global hooks, which run before the
// collection's own.
type CollectionHooks struct {
	BeforeCreate []BeforeHook
	AfterCreate  []AfterHook
	BeforeUpdate []BeforeHook
	AfterUpdate  []AfterHook
	AfterDelete  []AfterHook
	OnChange     []AfterHook
}

// runBeforeHooks chains before-hooks; any error rejects the operation.
func runBeforeHooks(ctx context.Context, hooks []BeforeHook, e Entity) (Entity, error) {
	current := e
	for _, hook := range hooks {
		next, err := hook(ctx, current)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrHookRejected, err)
		}
		if next != nil {
			current = next
		}
	}
	return current, nil
}

// runAfterHooks invokes best-effort hooks, swallowing panics.
func runAfterHooks(ctx context.Context, hooks []AfterHook, e Entity, logger Logger, metrics Metrics, collection string) {
	for _, hook := range hooks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Warn("after-hook panicked",
						"collection", collection,
						"panic", fmt.Sprint(r),
					)
					metrics.Increment(MetricHookSwallowed, "collection", collection)
				}
			}()
			hook(ctx, e)
		}()
	}
}
