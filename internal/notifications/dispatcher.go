package notifications

import (
	"context"
	"encoding/json"
	"log/slog"
	"runtime/debug"
	"sync"

	"agora/internal/models"
	"agora/internal/observability"
)

// Listener receives change events. Listeners must not block.
type Listener func(models.ChangeEvent)

// Dispatcher is the change notifier. With Redis every instance publishes to
// the shared channel and delivers what its subscriber receives; without
// Redis events go straight to local listeners. Delivery is best effort and
// never fails the caller.
type Dispatcher struct {
	notifier *Notifier
	logger   *slog.Logger

	mu        sync.RWMutex
	listeners map[uint64]Listener
	nextID    uint64
	wired     bool
}

func NewDispatcher(notifier *Notifier, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		notifier:  notifier,
		logger:    logger,
		listeners: make(map[uint64]Listener),
	}
}

// Start wires the Redis subscriber. Until it succeeds, and whenever Redis
// is not configured, Publish delivers locally.
func (d *Dispatcher) Start(ctx context.Context) error {
	if !d.notifier.Enabled() {
		return nil
	}
	err := d.notifier.StartChangeSubscriber(ctx, func(payload string) {
		var event models.ChangeEvent
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			d.logger.Warn("discarding malformed change event", slog.String("error", err.Error()))
			return
		}
		d.deliver(event)
	})
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.wired = true
	d.mu.Unlock()
	return nil
}

// Publish sends event to every subscriber, here and on other instances.
func (d *Dispatcher) Publish(ctx context.Context, event models.ChangeEvent) {
	d.mu.RLock()
	wired := d.wired
	d.mu.RUnlock()

	kind := string(event.ChangeKind)
	if !wired {
		d.deliver(event)
		observability.ChangeEvents.WithLabelValues(kind, "local").Inc()
		return
	}

	payload, err := json.Marshal(event)
	if err == nil {
		err = d.notifier.PublishChange(ctx, event.TopicID, payload)
	}
	if err != nil {
		d.logger.ErrorContext(ctx, "failed to publish change event, delivering locally",
			slog.String("event_id", event.ID),
			slog.String("change_kind", kind),
			slog.String("error", err.Error()),
		)
		observability.ChangeEvents.WithLabelValues(kind, "local_fallback").Inc()
		d.deliver(event)
		return
	}
	observability.ChangeEvents.WithLabelValues(kind, "published").Inc()
}

// Subscribe registers fn and returns a func that removes it.
func (d *Dispatcher) Subscribe(fn Listener) (unsubscribe func()) {
	d.mu.Lock()
	id := d.nextID
	d.nextID++
	d.listeners[id] = fn
	d.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			delete(d.listeners, id)
			d.mu.Unlock()
		})
	}
}

func (d *Dispatcher) deliver(event models.ChangeEvent) {
	d.mu.RLock()
	listeners := make([]Listener, 0, len(d.listeners))
	for _, fn := range d.listeners {
		listeners = append(listeners, fn)
	}
	d.mu.RUnlock()

	for _, fn := range listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					d.logger.Error("panic in change listener",
						slog.Any("panic", r),
						slog.String("stack", string(debug.Stack())),
					)
				}
			}()
			fn(event)
		}()
	}
}
