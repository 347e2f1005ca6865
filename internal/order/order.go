package order

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"binance-broker/internal/core"
	"binance-broker/internal/exchange"
)

// Exchange is the capability subset the state machine needs from the
// exchange collaborator.
type Exchange interface {
	PlaceOrder(ctx context.Context, req exchange.PlaceRequest) (exchange.PlaceResponse, error)
	CancelOrder(ctx context.Context, symbol, orderID string) error
}

// Order owns one order's lifecycle from submission through terminal state.
// It consumes both the synchronous placement response and the asynchronous
// push stream; every mutation goes through a single transition point so the
// monotonicity and terminal-state invariants hold regardless of which
// source delivers first.
type Order struct {
	conn    Exchange
	mapper  exchange.Mapper
	log     *logrus.Entry
	emitter *emitter

	directives core.OrderDirectives
	clientID   string

	mu        sync.Mutex
	id        string
	status    core.OrderStatus
	rejection core.Rejection
	createdAt time.Time
	updatedAt time.Time
	trades    tradeBook
	stopOut   bool
}

type Params struct {
	Directives    core.OrderDirectives
	ClientOrderID string
	Exchange      Exchange
	Mapper        exchange.Mapper
	Log           *logrus.Entry
}

func New(p Params) *Order {
	log := p.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Order{
		conn:       p.Exchange,
		mapper:     p.Mapper,
		log:        log.WithField("client_order_id", p.ClientOrderID),
		emitter:    newEmitter(),
		directives: p.Directives,
		clientID:   p.ClientOrderID,
		status:     core.OrderRequested,
	}
}

// Submit sends the placement request. It never returns an error: every
// failure is expressed as a REJECTED status with a classified rejection
// reason, so callers have one uniform path (watch the lifecycle events).
func (o *Order) Submit(ctx context.Context) {
	req, err := o.placeRequest()
	if err != nil {
		o.log.WithError(err).Warn("order directives do not translate to wire vocabulary")
		o.reject(core.RejectionUnknown)
		return
	}
	resp, err := o.conn.PlaceOrder(ctx, req)
	if err != nil {
		o.log.WithError(err).Warn("order placement failed")
		o.reject(o.mapper.Rejection(err))
		return
	}
	o.applyPlaceResponse(resp)
}

func (o *Order) placeRequest() (exchange.PlaceRequest, error) {
	d := o.directives
	req := exchange.PlaceRequest{
		Symbol:        d.Symbol,
		Side:          string(d.Side),
		Quantity:      d.Volume,
		ClientOrderID: o.clientID,
	}
	if d.Limit != nil {
		req.Type = "LIMIT"
		req.Price = *d.Limit
	} else {
		req.Type = "MARKET"
	}
	if d.TimeInForce != "" {
		tif, err := o.mapper.TimeInForce(d.TimeInForce)
		if err != nil {
			return exchange.PlaceRequest{}, err
		}
		req.TimeInForce = tif
	}
	return req, nil
}

func (o *Order) applyPlaceResponse(resp exchange.PlaceResponse) {
	o.mu.Lock()
	if o.id == "" && resp.OrderID != "" {
		o.id = resp.OrderID
	}
	ts := resp.TransactTime
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	if o.createdAt.IsZero() {
		o.createdAt = ts
	}
	if ts.After(o.updatedAt) {
		o.updatedAt = ts
	}
	var fired []Event
	for _, fill := range resp.Fills {
		if ev, ok := o.recordFillLocked(fill, ts); ok {
			fired = append(fired, ev)
		}
	}
	fired = append(fired, o.transitionLocked(o.mapper.OrderStatus(resp.Status, resp.Type))...)
	o.mu.Unlock()
	o.fire(fired)
}

func (o *Order) reject(reason core.Rejection) {
	o.mu.Lock()
	now := time.Now().UTC()
	if o.createdAt.IsZero() {
		o.createdAt = now
	}
	if now.After(o.updatedAt) {
		o.updatedAt = now
	}
	if o.rejection == core.RejectionNone {
		o.rejection = reason
	}
	fired := o.transitionLocked(core.OrderRejected)
	o.mu.Unlock()
	o.fire(fired)
}

// ApplyPushUpdate consumes one push event addressed to this order. Events
// whose timestamp is not strictly newer than the current last-update date
// are dropped (the push channel is at-least-once and not globally ordered).
func (o *Order) ApplyPushUpdate(u exchange.OrderUpdate) {
	o.mu.Lock()
	if o.status.IsTerminal() {
		o.log.WithField("status", o.status).Debug("push update dropped: order is terminal")
		o.mu.Unlock()
		return
	}
	ts := u.TransactTime
	if ts.IsZero() {
		ts = u.EventTime
	}
	if ts.IsZero() || !ts.After(o.updatedAt) {
		o.log.WithFields(logrus.Fields{
			"event_time":  ts,
			"last_update": o.updatedAt,
		}).Debug("push update dropped: stale timestamp")
		o.mu.Unlock()
		return
	}
	if o.id == "" && u.OrderID != "" {
		o.id = u.OrderID
	}
	if o.createdAt.IsZero() {
		o.createdAt = ts
	}
	o.updatedAt = ts

	var fired []Event
	if strings.EqualFold(u.ExecutionType, "TRADE") && u.TradeID != "" {
		fill := exchange.Fill{
			TradeID:         u.TradeID,
			Price:           u.LastExecPrice,
			Qty:             u.LastExecQty,
			Commission:      u.Commission,
			CommissionAsset: u.CommissionAsset,
		}
		if ev, ok := o.recordFillLocked(fill, ts); ok {
			fired = append(fired, ev)
		}
	}
	next := o.mapper.OrderStatus(u.Status, u.OrderType)
	if next == core.OrderRejected && o.rejection == core.RejectionNone {
		o.rejection = o.mapper.PushRejection(u.RejectReason)
	}
	fired = append(fired, o.transitionLocked(next)...)
	o.mu.Unlock()
	o.fire(fired)
}

// Cancel requests cancellation of a resting order. It is only effective
// from PENDING; failures are logged and leave the state unchanged, since
// the exchange may legitimately have filled the order already.
func (o *Order) Cancel(ctx context.Context) {
	o.mu.Lock()
	if o.status != core.OrderPending {
		o.mu.Unlock()
		return
	}
	symbol, id := o.directives.Symbol, o.id
	o.mu.Unlock()

	if err := o.conn.CancelOrder(ctx, symbol, id); err != nil {
		o.log.WithError(err).Warn("cancel request failed, state unchanged")
		return
	}
	o.mu.Lock()
	var fired []Event
	if o.status == core.OrderPending {
		now := time.Now().UTC()
		if now.After(o.updatedAt) {
			o.updatedAt = now
		}
		fired = o.transitionLocked(core.OrderCancelled)
	}
	o.mu.Unlock()
	o.fire(fired)
}

// transitionLocked is the single authoritative mutation point for status.
// Callers hold o.mu; returned events must be fired after unlocking.
func (o *Order) transitionLocked(next core.OrderStatus) []Event {
	if o.status.IsTerminal() {
		o.log.WithFields(logrus.Fields{
			"status": o.status,
			"next":   next,
		}).Debug("transition dropped: order is terminal")
		return nil
	}
	if next == o.status {
		return nil
	}
	if !canTransition(o.status, next) {
		o.log.WithFields(logrus.Fields{
			"status": o.status,
			"next":   next,
		}).Warn("transition dropped: not allowed")
		return nil
	}
	o.status = next
	events := []Event{{Type: EventStatusChange, Order: o, Status: next}}
	if name := statusEvent(next); name != "" {
		events = append(events, Event{Type: name, Order: o, Status: next})
	}
	return events
}

func canTransition(from, to core.OrderStatus) bool {
	switch from {
	case core.OrderRequested:
		return to == core.OrderPending || to == core.OrderExecuted || to == core.OrderRejected
	case core.OrderPending:
		return to == core.OrderExecuted || to == core.OrderCancelled ||
			to == core.OrderExpired || to == core.OrderRejected
	}
	return false
}

func (o *Order) recordFillLocked(fill exchange.Fill, at time.Time) (Event, bool) {
	trade := core.Trade{
		ID:              fill.TradeID,
		OrderID:         o.id,
		Symbol:          o.directives.Symbol,
		Side:            o.directives.Side,
		Purpose:         o.directives.Purpose(),
		Price:           fill.Price,
		Volume:          fill.Qty,
		Commission:      fill.Commission,
		CommissionAsset: fill.CommissionAsset,
		ExecutedAt:      at,
	}
	if !o.trades.record(trade) {
		return Event{}, false
	}
	t := trade
	return Event{Type: EventTrade, Order: o, Trade: &t}, true
}

func (o *Order) fire(events []Event) {
	for _, ev := range events {
		o.emitter.emit(ev)
	}
}

// On registers a listener for one event type and returns its handle.
func (o *Order) On(event string, fn func(Event)) string {
	return o.emitter.on(event, fn)
}

// Off removes a listener by handle.
func (o *Order) Off(id string) {
	o.emitter.off(id)
}

func (o *Order) ID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.id
}

func (o *Order) ClientOrderID() string { return o.clientID }

func (o *Order) Symbol() string { return o.directives.Symbol }

func (o *Order) Direction() core.Side { return o.directives.Side }

func (o *Order) Purpose() core.Purpose { return o.directives.Purpose() }

func (o *Order) RequestedVolume() decimal.Decimal { return o.directives.Volume }

// LimitPrice returns the limit price, or nil for market orders.
func (o *Order) LimitPrice() *decimal.Decimal {
	if o.directives.Limit == nil {
		return nil
	}
	p := *o.directives.Limit
	return &p
}

func (o *Order) TimeInForce() core.TimeInForce {
	if o.directives.TimeInForce == "" {
		return core.GoodTillCancel
	}
	return o.directives.TimeInForce
}

func (o *Order) Status() core.OrderStatus {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

func (o *Order) Rejection() core.Rejection {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.rejection
}

func (o *Order) CreatedAt() time.Time {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.createdAt
}

func (o *Order) LastUpdateAt() time.Time {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.updatedAt
}

func (o *Order) IsStopOut() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stopOut
}

// Trades returns a copy of the recorded fills in arrival order.
func (o *Order) Trades() []core.Trade {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.trades.list()
}

// FilledVolume is the sum of recorded fill volumes.
func (o *Order) FilledVolume() decimal.Decimal {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.trades.volume()
}
