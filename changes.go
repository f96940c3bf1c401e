package docbase

import "sync"

// Operation names the kind of committed mutation a change notification
// describes.
type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
	OpReload Operation = "reload"
)

// Change is the abstract notification emitted after every successfully
// committed mutation, including cascaded deletes and each item of a
// batch. External subscriber systems materialize views from this stream.
type Change struct {
	Collection string
	Op         Operation
}

// Notifier is the injected change-notification sink. The engine does not
// interpret delivery failures; delivery must simply never drop a
// notification, because a dropped one desynchronizes externally
// materialized views.
type Notifier interface {
	Notify(change Change)
}

// NoOpNotifier discards notifications. Default when none is injected.
type NoOpNotifier struct{}

func (NoOpNotifier) Notify(change Change) {}

// QueueNotifier delivers notifications to a sink callback through an
// unbounded in-memory queue: Notify never blocks the committing caller
// and never drops, preserving the delivery guarantee even when the sink
// is slow. Delivery order matches commit order.
type QueueNotifier struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []Change
	closed  bool
	done    chan struct{}
	sink    func(Change)
	metrics Metrics
}

// NewQueueNotifier starts a notifier delivering to sink.
func NewQueueNotifier(sink func(Change)) *QueueNotifier {
	n := &QueueNotifier{
		sink:    sink,
		done:    make(chan struct{}),
		metrics: &NoOpMetrics{},
	}
	n.cond = sync.NewCond(&n.mu)
	go n.deliver()
	return n
}

// WithMetrics reports queue depth to the given collector.
func (n *QueueNotifier) WithMetrics(metrics Metrics) *QueueNotifier {
	n.mu.Lock()
	n.metrics = metrics
	n.mu.Unlock()
	return n
}

// Notify enqueues a change. It never blocks and never drops.
func (n *QueueNotifier) Notify(change Change) {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.queue = append(n.queue, change)
	n.metrics.Gauge(MetricNotifyQueue, float64(len(n.queue)))
	n.mu.Unlock()
	n.cond.Signal()
}

func (n *QueueNotifier) deliver() {
	defer close(n.done)
	for {
		n.mu.Lock()
		for len(n.queue) == 0 && !n.closed {
			n.cond.Wait()
		}
		if len(n.queue) == 0 && n.closed {
			n.mu.Unlock()
			return
		}
		change := n.queue[0]
		n.queue = n.queue[1:]
		n.metrics.Gauge(MetricNotifyQueue, float64(len(n.queue)))
		n.mu.Unlock()

		n.sink(change)
	}
}

// Close stops the notifier after draining everything already enqueued.
func (n *QueueNotifier) Close() {
	n.mu.Lock()
	n.closed = true
	n.mu.Unlock()
	n.cond.Signal()
	<-n.done
}
