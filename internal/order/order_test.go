package order

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"binance-broker/internal/core"
	"binance-broker/internal/exchange"
	"binance-broker/internal/exchange/binance"
)

type fakeExchange struct {
	placeResp exchange.PlaceResponse
	placeErr  error
	cancelErr error

	placed    []exchange.PlaceRequest
	cancelled []string
}

func (f *fakeExchange) PlaceOrder(_ context.Context, req exchange.PlaceRequest) (exchange.PlaceResponse, error) {
	f.placed = append(f.placed, req)
	return f.placeResp, f.placeErr
}

func (f *fakeExchange) CancelOrder(_ context.Context, _, orderID string) error {
	f.cancelled = append(f.cancelled, orderID)
	return f.cancelErr
}

func newTestOrder(conn Exchange, d core.OrderDirectives) *Order {
	return New(Params{
		Directives:    d,
		ClientOrderID: "t-1",
		Exchange:      conn,
		Mapper:        binance.SpotMapper{},
	})
}

func marketBuy(volume string) core.OrderDirectives {
	return core.OrderDirectives{
		Symbol: "BTCUSDT",
		Side:   core.Buy,
		Volume: decimal.RequireFromString(volume),
	}
}

func limitSell(volume, price string) core.OrderDirectives {
	limit := decimal.RequireFromString(price)
	return core.OrderDirectives{
		Symbol: "BTCUSDT",
		Side:   core.Sell,
		Volume: decimal.RequireFromString(volume),
		Limit:  &limit,
	}
}

func collectEvents(o *Order, out *[]string) {
	o.On(EventStatusChange, func(ev Event) {
		*out = append(*out, string(ev.Status))
	})
}

func TestMarketOrderExecutesWithoutPending(t *testing.T) {
	at := time.UnixMilli(1700000000000).UTC()
	conn := &fakeExchange{
		placeResp: exchange.PlaceResponse{
			OrderID:      "42",
			Status:       "FILLED",
			Type:         "MARKET",
			TransactTime: at,
			Fills: []exchange.Fill{
				{TradeID: "900", Price: decimal.RequireFromString("50000"), Qty: decimal.RequireFromString("0.5")},
			},
		},
	}
	o := newTestOrder(conn, marketBuy("0.5"))
	var statuses []string
	collectEvents(o, &statuses)

	o.Submit(context.Background())

	if got := o.Status(); got != core.OrderExecuted {
		t.Fatalf("status = %s, want %s", got, core.OrderExecuted)
	}
	if got := o.ID(); got != "42" {
		t.Fatalf("id = %q, want %q", got, "42")
	}
	for _, s := range statuses {
		if s == string(core.OrderPending) {
			t.Fatal("market order must not pass through the pending state")
		}
	}
	trades := o.Trades()
	if len(trades) != 1 {
		t.Fatalf("trades = %d, want 1", len(trades))
	}
	if trades[0].Purpose != core.PurposeOpen {
		t.Fatalf("purpose = %s, want %s", trades[0].Purpose, core.PurposeOpen)
	}
	if !o.FilledVolume().Equal(decimal.RequireFromString("0.5")) {
		t.Fatalf("filled volume = %s, want 0.5", o.FilledVolume())
	}
	if !o.LastUpdateAt().Equal(at) {
		t.Fatalf("last update = %s, want %s", o.LastUpdateAt(), at)
	}
}

func TestLimitOrderPendsThenFillsFromPush(t *testing.T) {
	at := time.UnixMilli(1700000000000).UTC()
	conn := &fakeExchange{
		placeResp: exchange.PlaceResponse{
			OrderID:      "43",
			Status:       "NEW",
			Type:         "LIMIT",
			TransactTime: at,
		},
	}
	o := newTestOrder(conn, limitSell("1", "51000"))
	var statuses []string
	collectEvents(o, &statuses)

	o.Submit(context.Background())
	if got := o.Status(); got != core.OrderPending {
		t.Fatalf("status after placement = %s, want %s", got, core.OrderPending)
	}
	if len(conn.placed) != 1 || conn.placed[0].Type != "LIMIT" {
		t.Fatalf("placed = %+v, want one LIMIT request", conn.placed)
	}
	if conn.placed[0].TimeInForce != "" {
		t.Fatalf("time in force = %q, want empty when not requested", conn.placed[0].TimeInForce)
	}

	o.ApplyPushUpdate(exchange.OrderUpdate{
		OrderID:       "43",
		OrderType:     "LIMIT",
		Status:        "FILLED",
		ExecutionType: "TRADE",
		TradeID:       "901",
		LastExecPrice: decimal.RequireFromString("51000"),
		LastExecQty:   decimal.RequireFromString("1"),
		TransactTime:  at.Add(time.Second),
	})
	if got := o.Status(); got != core.OrderExecuted {
		t.Fatalf("status after fill = %s, want %s", got, core.OrderExecuted)
	}
	want := []string{string(core.OrderPending), string(core.OrderExecuted)}
	if len(statuses) != len(want) {
		t.Fatalf("status events = %v, want %v", statuses, want)
	}
	for i := range want {
		if statuses[i] != want[i] {
			t.Fatalf("status events = %v, want %v", statuses, want)
		}
	}
	if trades := o.Trades(); len(trades) != 1 || trades[0].ID != "901" {
		t.Fatalf("trades = %+v, want single trade 901", trades)
	}
}

func TestPlacementErrorMapsRejectionReason(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want core.Rejection
	}{
		{"insufficient balance", binance.APIError{Code: -2010, Msg: "Account has insufficient balance"}, core.RejectionNotEnoughMoney},
		{"invalid symbol", binance.APIError{Code: -1121, Msg: "Invalid symbol"}, core.RejectionSymbolNotFound},
		{"transport failure", errors.New("connection reset"), core.RejectionUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := &fakeExchange{placeErr: tt.err}
			o := newTestOrder(conn, marketBuy("0.5"))
			o.Submit(context.Background())
			if got := o.Status(); got != core.OrderRejected {
				t.Fatalf("status = %s, want %s", got, core.OrderRejected)
			}
			if got := o.Rejection(); got != tt.want {
				t.Fatalf("rejection = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestStaleAndDuplicatePushUpdatesDropped(t *testing.T) {
	at := time.UnixMilli(1700000000000).UTC()
	conn := &fakeExchange{
		placeResp: exchange.PlaceResponse{OrderID: "44", Status: "NEW", Type: "LIMIT", TransactTime: at},
	}
	o := newTestOrder(conn, limitSell("1", "51000"))
	o.Submit(context.Background())

	// Same transaction time as the placement response: a replay, dropped.
	o.ApplyPushUpdate(exchange.OrderUpdate{
		OrderID: "44", OrderType: "LIMIT", Status: "CANCELED", TransactTime: at,
	})
	if got := o.Status(); got != core.OrderPending {
		t.Fatalf("status after replay = %s, want %s", got, core.OrderPending)
	}

	// Older than the last update: dropped.
	o.ApplyPushUpdate(exchange.OrderUpdate{
		OrderID: "44", OrderType: "LIMIT", Status: "CANCELED", TransactTime: at.Add(-time.Second),
	})
	if got := o.Status(); got != core.OrderPending {
		t.Fatalf("status after stale update = %s, want %s", got, core.OrderPending)
	}

	// Strictly newer: applied.
	o.ApplyPushUpdate(exchange.OrderUpdate{
		OrderID: "44", OrderType: "LIMIT", Status: "CANCELED", TransactTime: at.Add(time.Second),
	})
	if got := o.Status(); got != core.OrderCancelled {
		t.Fatalf("status after fresh update = %s, want %s", got, core.OrderCancelled)
	}
}

func TestTerminalStateIsImmutable(t *testing.T) {
	at := time.UnixMilli(1700000000000).UTC()
	conn := &fakeExchange{
		placeResp: exchange.PlaceResponse{OrderID: "45", Status: "NEW", Type: "LIMIT", TransactTime: at},
	}
	o := newTestOrder(conn, limitSell("1", "51000"))
	o.Submit(context.Background())

	o.ApplyPushUpdate(exchange.OrderUpdate{
		OrderID: "45", OrderType: "LIMIT", Status: "CANCELED", TransactTime: at.Add(time.Second),
	})
	o.ApplyPushUpdate(exchange.OrderUpdate{
		OrderID: "45", OrderType: "LIMIT", Status: "FILLED", ExecutionType: "TRADE",
		TradeID: "902", TransactTime: at.Add(2 * time.Second),
	})
	if got := o.Status(); got != core.OrderCancelled {
		t.Fatalf("status = %s, want %s", got, core.OrderCancelled)
	}
	if trades := o.Trades(); len(trades) != 0 {
		t.Fatalf("trades after terminal state = %d, want 0", len(trades))
	}
}

func TestDuplicateTradeIDRecordedOnce(t *testing.T) {
	at := time.UnixMilli(1700000000000).UTC()
	conn := &fakeExchange{
		placeResp: exchange.PlaceResponse{
			OrderID:      "46",
			Status:       "FILLED",
			Type:         "MARKET",
			TransactTime: at,
			Fills: []exchange.Fill{
				{TradeID: "903", Price: decimal.RequireFromString("50000"), Qty: decimal.RequireFromString("0.3")},
				{TradeID: "904", Price: decimal.RequireFromString("50001"), Qty: decimal.RequireFromString("0.2")},
			},
		},
	}
	o := newTestOrder(conn, marketBuy("0.5"))
	var trades int
	o.On(EventTrade, func(Event) { trades++ })
	o.Submit(context.Background())

	// The push stream replays the first fill with a newer timestamp.
	o.ApplyPushUpdate(exchange.OrderUpdate{
		OrderID: "46", OrderType: "MARKET", Status: "FILLED", ExecutionType: "TRADE",
		TradeID:       "903",
		LastExecPrice: decimal.RequireFromString("50000"),
		LastExecQty:   decimal.RequireFromString("0.3"),
		TransactTime:  at.Add(time.Second),
	})
	if got := len(o.Trades()); got != 2 {
		t.Fatalf("trades = %d, want 2", got)
	}
	if trades != 2 {
		t.Fatalf("trade events = %d, want 2", trades)
	}
	if !o.FilledVolume().Equal(decimal.RequireFromString("0.5")) {
		t.Fatalf("filled volume = %s, want 0.5", o.FilledVolume())
	}
}

func TestPushBeforeResponseAdoptsOrderID(t *testing.T) {
	at := time.UnixMilli(1700000000000).UTC()
	conn := &fakeExchange{
		placeResp: exchange.PlaceResponse{OrderID: "47", Status: "FILLED", Type: "MARKET", TransactTime: at},
	}
	o := newTestOrder(conn, marketBuy("0.5"))

	// The user stream can deliver before the placement call returns.
	o.ApplyPushUpdate(exchange.OrderUpdate{
		OrderID: "47", OrderType: "MARKET", Status: "FILLED", ExecutionType: "TRADE",
		TradeID:       "905",
		LastExecPrice: decimal.RequireFromString("50000"),
		LastExecQty:   decimal.RequireFromString("0.5"),
		TransactTime:  at,
	})
	if got := o.ID(); got != "47" {
		t.Fatalf("id = %q, want adopted from push", got)
	}
	if got := o.Status(); got != core.OrderExecuted {
		t.Fatalf("status = %s, want %s", got, core.OrderExecuted)
	}

	// The late response must not disturb the already-settled state.
	o.Submit(context.Background())
	if got := o.Status(); got != core.OrderExecuted {
		t.Fatalf("status after late response = %s, want %s", got, core.OrderExecuted)
	}
	if trades := o.Trades(); len(trades) != 1 {
		t.Fatalf("trades = %d, want 1", len(trades))
	}
}

func TestCancelPendingOrder(t *testing.T) {
	at := time.UnixMilli(1700000000000).UTC()
	conn := &fakeExchange{
		placeResp: exchange.PlaceResponse{OrderID: "48", Status: "NEW", Type: "LIMIT", TransactTime: at},
	}
	o := newTestOrder(conn, limitSell("1", "51000"))
	o.Submit(context.Background())

	var cancelled bool
	o.On(EventCancel, func(Event) { cancelled = true })
	o.Cancel(context.Background())

	if got := o.Status(); got != core.OrderCancelled {
		t.Fatalf("status = %s, want %s", got, core.OrderCancelled)
	}
	if !cancelled {
		t.Fatal("cancel event not emitted")
	}
	if len(conn.cancelled) != 1 || conn.cancelled[0] != "48" {
		t.Fatalf("cancelled = %v, want [48]", conn.cancelled)
	}

	// A second cancel is a no-op on a terminal order.
	o.Cancel(context.Background())
	if len(conn.cancelled) != 1 {
		t.Fatalf("cancel calls = %d, want 1", len(conn.cancelled))
	}
}

func TestCancelFailureLeavesStateUnchanged(t *testing.T) {
	at := time.UnixMilli(1700000000000).UTC()
	conn := &fakeExchange{
		placeResp: exchange.PlaceResponse{OrderID: "49", Status: "NEW", Type: "LIMIT", TransactTime: at},
		cancelErr: binance.APIError{Code: -2011, Msg: "Unknown order sent."},
	}
	o := newTestOrder(conn, limitSell("1", "51000"))
	o.Submit(context.Background())

	o.Cancel(context.Background())
	if got := o.Status(); got != core.OrderPending {
		t.Fatalf("status = %s, want %s", got, core.OrderPending)
	}

	// The fill that raced the cancel still lands.
	o.ApplyPushUpdate(exchange.OrderUpdate{
		OrderID: "49", OrderType: "LIMIT", Status: "FILLED", ExecutionType: "TRADE",
		TradeID:       "906",
		LastExecPrice: decimal.RequireFromString("51000"),
		LastExecQty:   decimal.RequireFromString("1"),
		TransactTime:  at.Add(time.Second),
	})
	if got := o.Status(); got != core.OrderExecuted {
		t.Fatalf("status = %s, want %s", got, core.OrderExecuted)
	}
}

func TestCancelIgnoredBeforePending(t *testing.T) {
	conn := &fakeExchange{}
	o := newTestOrder(conn, marketBuy("0.5"))
	o.Cancel(context.Background())
	if len(conn.cancelled) != 0 {
		t.Fatalf("cancel calls = %d, want 0", len(conn.cancelled))
	}
	if got := o.Status(); got != core.OrderRequested {
		t.Fatalf("status = %s, want %s", got, core.OrderRequested)
	}
}

func TestListenerRemovedInsideCallback(t *testing.T) {
	at := time.UnixMilli(1700000000000).UTC()
	conn := &fakeExchange{
		placeResp: exchange.PlaceResponse{OrderID: "50", Status: "NEW", Type: "LIMIT", TransactTime: at},
	}
	o := newTestOrder(conn, limitSell("1", "51000"))

	var fired int
	var handle string
	handle = o.On(EventStatusChange, func(Event) {
		fired++
		o.Off(handle)
	})
	o.Submit(context.Background())
	o.ApplyPushUpdate(exchange.OrderUpdate{
		OrderID: "50", OrderType: "LIMIT", Status: "CANCELED", TransactTime: at.Add(time.Second),
	})
	if fired != 1 {
		t.Fatalf("listener fired %d times, want 1", fired)
	}
}

func TestPushRejectionReasonClassified(t *testing.T) {
	at := time.UnixMilli(1700000000000).UTC()
	cases := []struct {
		name   string
		reason string
		want   core.Rejection
	}{
		{"insufficient balance", "INSUFFICIENT_BALANCE", core.RejectionNotEnoughMoney},
		{"unknown instrument", "UNKNOWN_INSTRUMENT", core.RejectionSymbolNotFound},
		{"none", "NONE", core.RejectionUnknown},
		{"missing", "", core.RejectionUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			conn := &fakeExchange{
				placeResp: exchange.PlaceResponse{OrderID: "61", Status: "NEW", Type: "LIMIT", TransactTime: at},
			}
			o := newTestOrder(conn, limitSell("1", "52000"))
			o.Submit(context.Background())

			o.ApplyPushUpdate(exchange.OrderUpdate{
				OrderID:      "61",
				OrderType:    "LIMIT",
				Status:       "REJECTED",
				RejectReason: tc.reason,
				TransactTime: at.Add(time.Second),
			})
			if got := o.Status(); got != core.OrderRejected {
				t.Fatalf("status = %s, want %s", got, core.OrderRejected)
			}
			if got := o.Rejection(); got != tc.want {
				t.Fatalf("rejection = %s, want %s", got, tc.want)
			}
		})
	}
}
