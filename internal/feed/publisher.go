package feed

import (
	"reflect"
	"sync"

	"go.uber.org/zap"

	"niftyfeed/internal/store"
)

// Callback receives every published snapshot. The slice is a detached copy;
// callbacks may retain it.
type Callback func(snapshot []store.Quote)

type subscriber struct {
	key uintptr
	fn  Callback
}

// Publisher fans reconciled snapshots out to registered callbacks,
// synchronously and in registration order. A misbehaving callback is
// isolated: its panic is recovered and logged, and delivery continues
// with the remaining subscribers.
type Publisher struct {
	mu   sync.Mutex
	subs []subscriber
	log  *zap.Logger
}

func NewPublisher(log *zap.Logger) *Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{log: log}
}

// Register subscribes fn to snapshots. Registering the same function again
// is a no-op.
func (p *Publisher) Register(fn Callback) {
	if fn == nil {
		return
	}
	key := callbackKey(fn)

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range p.subs {
		if s.key == key {
			return
		}
	}
	p.subs = append(p.subs, subscriber{key: key, fn: fn})
}

// Unregister removes a previously registered callback. Unknown callbacks
// are ignored.
func (p *Publisher) Unregister(fn Callback) {
	if fn == nil {
		return
	}
	key := callbackKey(fn)

	p.mu.Lock()
	defer p.mu.Unlock()
	for i, s := range p.subs {
		if s.key == key {
			p.subs = append(p.subs[:i], p.subs[i+1:]...)
			return
		}
	}
}

// Notify delivers the snapshot to every subscriber. Delivery happens
// outside the subscription lock so callbacks may themselves register or
// unregister.
func (p *Publisher) Notify(snapshot []store.Quote) {
	p.mu.Lock()
	subs := make([]subscriber, len(p.subs))
	copy(subs, p.subs)
	p.mu.Unlock()

	for _, s := range subs {
		p.deliver(s, snapshot)
	}
}

func (p *Publisher) deliver(s subscriber, snapshot []store.Quote) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("data callback panicked", zap.Any("panic", r))
		}
	}()
	s.fn(snapshot)
}

// Count reports the number of registered subscribers.
func (p *Publisher) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subs)
}

// callbackKey identifies a callback by its code pointer, which is what
// makes Register idempotent. Distinct instances of one closure body share
// a key; subscribers that need per-instance identity (like per-connection
// streams) should register a single fan-out callback instead.
func callbackKey(fn Callback) uintptr {
	return reflect.ValueOf(fn).Pointer()
}
