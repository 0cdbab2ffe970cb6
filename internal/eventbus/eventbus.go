// Package eventbus dispatches typed events to in-process subscribers.
// Handlers are keyed by the event's Go type and run synchronously on the
// publishing goroutine, in the order they subscribed.
package eventbus

import (
	"context"
	"reflect"
	"slices"
	"sync"
	"sync/atomic"
)

// Handler processes events of type T.
type Handler[T any] func(context.Context, T)

type handler struct {
	fn func(context.Context, any)
}

type Bus struct {
	mu   sync.RWMutex
	subs map[reflect.Type][]*handler
}

func New() *Bus { return &Bus{subs: make(map[reflect.Type][]*handler)} }

func (b *Bus) add(t reflect.Type, fn func(context.Context, any)) (unsubscribe func()) {
	h := &handler{fn: fn}
	b.mu.Lock()
	b.subs[t] = append(b.subs[t], h)
	b.mu.Unlock()

	var once sync.Once
	return func() { once.Do(func() { b.remove(t, h) }) }
}

// remove replaces the handler list instead of editing it, so dispatchers
// holding the old list are unaffected.
func (b *Bus) remove(t reflect.Type, h *handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.subs[t]
	i := slices.Index(list, h)
	if i < 0 {
		return
	}
	list = slices.Delete(slices.Clone(list), i, i+1)
	if len(list) == 0 {
		delete(b.subs, t)
		return
	}
	b.subs[t] = list
}

func (b *Bus) dispatch(ctx context.Context, e any) {
	if b == nil {
		return
	}
	b.mu.RLock()
	list := b.subs[reflect.TypeOf(e)]
	b.mu.RUnlock()
	for _, h := range list {
		h.fn(ctx, e)
	}
}

var global atomic.Pointer[Bus]

// Use installs b as the process-wide bus. nil turns publishing off.
func Use(b *Bus) { global.Store(b) }

// Current returns the process-wide bus, or nil.
func Current() *Bus { return global.Load() }

// On registers h with b.
func On[T any](b *Bus, h Handler[T]) (unsubscribe func()) {
	t := reflect.TypeFor[T]()
	return b.add(t, func(ctx context.Context, v any) { h(ctx, v.(T)) })
}

// Subscribe registers h with the process-wide bus. Without one it is a no-op.
func Subscribe[T any](h Handler[T]) (unsubscribe func()) {
	if b := global.Load(); b != nil {
		return On(b, h)
	}
	return func() {}
}

// Emit sends e through b. A nil bus drops the event.
func Emit[T any](ctx context.Context, b *Bus, e T) { b.dispatch(ctx, e) }

// Publish sends e through the process-wide bus.
func Publish[T any](ctx context.Context, e T) { global.Load().dispatch(ctx, e) }

// Send emits e on b, falling back to the process-wide bus when b is nil.
// Components that accept an optional bus publish through it.
func Send[T any](ctx context.Context, b *Bus, e T) {
	if b == nil {
		b = global.Load()
	}
	b.dispatch(ctx, e)
}
