package order

import (
	"sync"

	"github.com/google/uuid"

	"binance-broker/internal/core"
)

// Lifecycle event names. EventStatusChange fires on every transition in
// addition to the status-specific event.
const (
	EventStatusChange = "status-change"
	EventPending      = "pending"
	EventExecute      = "execute"
	EventCancel       = "cancel"
	EventExpire       = "expire"
	EventReject       = "reject"
	EventTrade        = "trade"
)

func statusEvent(s core.OrderStatus) string {
	switch s {
	case core.OrderPending:
		return EventPending
	case core.OrderExecuted:
		return EventExecute
	case core.OrderCancelled:
		return EventCancel
	case core.OrderExpired:
		return EventExpire
	case core.OrderRejected:
		return EventReject
	}
	return ""
}

// Event is what listeners receive. Trade is set only for EventTrade.
type Event struct {
	Type   string
	Order  *Order
	Status core.OrderStatus
	Trade  *core.Trade
}

type listener struct {
	id    string
	event string
	fn    func(Event)
}

// emitter is a small per-order event bus. Listeners may remove themselves
// (or any other listener) from inside a callback, so emit iterates over a
// snapshot taken under the lock.
type emitter struct {
	mu        sync.Mutex
	listeners []listener
}

func newEmitter() *emitter {
	return &emitter{}
}

func (e *emitter) on(event string, fn func(Event)) string {
	id := uuid.NewString()
	e.mu.Lock()
	e.listeners = append(e.listeners, listener{id: id, event: event, fn: fn})
	e.mu.Unlock()
	return id
}

func (e *emitter) off(id string) {
	e.mu.Lock()
	for i, l := range e.listeners {
		if l.id == id {
			e.listeners = append(e.listeners[:i:i], e.listeners[i+1:]...)
			break
		}
	}
	e.mu.Unlock()
}

func (e *emitter) emit(ev Event) {
	e.mu.Lock()
	snapshot := make([]listener, 0, len(e.listeners))
	for _, l := range e.listeners {
		if l.event == ev.Type {
			snapshot = append(snapshot, l)
		}
	}
	e.mu.Unlock()
	for _, l := range snapshot {
		l.fn(ev)
	}
}
