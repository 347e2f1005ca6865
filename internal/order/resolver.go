package order

import (
	"context"
	"sync"

	"binance-broker/internal/core"
)

// DefaultResolverEvents are the lifecycle events that settle a resolver
// when the caller does not choose their own set.
var DefaultResolverEvents = []string{
	EventReject,
	EventPending,
	EventCancel,
	EventExpire,
	EventExecute,
}

// Resolver represents an in-flight placement. It settles on the first
// occurrence of any of its configured lifecycle events and then detaches
// every listener it registered. A nil event set means the defaults; an
// empty set settles immediately, handing the caller the live order without
// waiting for any acknowledgement.
type Resolver struct {
	order   *Order
	done    chan struct{}
	settle  sync.Once
	handles []string
}

func NewResolver(o *Order, events []string) *Resolver {
	r := &Resolver{
		order: o,
		done:  make(chan struct{}),
	}
	if events == nil {
		events = DefaultResolverEvents
	}
	if len(events) == 0 {
		r.settled()
		return r
	}
	for _, ev := range events {
		r.handles = append(r.handles, o.On(ev, func(Event) { r.settled() }))
	}
	if matchesAny(o.Status(), events) {
		r.settled()
	}
	return r
}

func (r *Resolver) settled() {
	r.settle.Do(func() {
		for _, h := range r.handles {
			r.order.Off(h)
		}
		close(r.done)
	})
}

// Done is closed once the resolver has settled.
func (r *Resolver) Done() <-chan struct{} {
	return r.done
}

// Order returns the live order regardless of settlement state.
func (r *Resolver) Order() *Order {
	return r.order
}

// Wait blocks until the resolver settles or ctx is cancelled.
func (r *Resolver) Wait(ctx context.Context) (*Order, error) {
	select {
	case <-r.done:
		return r.order, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func matchesAny(status core.OrderStatus, events []string) bool {
	name := statusEvent(status)
	if name == "" {
		return false
	}
	for _, ev := range events {
		if ev == name {
			return true
		}
	}
	return false
}
