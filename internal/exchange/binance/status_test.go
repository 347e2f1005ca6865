package binance

import (
	"errors"
	"fmt"
	"testing"

	"binance-broker/internal/core"
)

func TestSpotMapperOrderStatus(t *testing.T) {
	tests := []struct {
		rawStatus string
		rawType   string
		want      core.OrderStatus
	}{
		{"NEW", "LIMIT", core.OrderPending},
		{"NEW", "MARKET", core.OrderRequested},
		{"new", "market", core.OrderRequested},
		{"PARTIALLY_FILLED", "LIMIT", core.OrderExecuted},
		{"FILLED", "MARKET", core.OrderExecuted},
		{"PENDING_CANCEL", "LIMIT", core.OrderCancelled},
		{"CANCELED", "LIMIT", core.OrderCancelled},
		{"EXPIRED", "LIMIT", core.OrderExpired},
		{"REJECTED", "LIMIT", core.OrderRejected},
		{"SOMETHING_NEW", "LIMIT", core.OrderRequested},
	}
	m := SpotMapper{}
	for _, tt := range tests {
		t.Run(tt.rawStatus+"/"+tt.rawType, func(t *testing.T) {
			if got := m.OrderStatus(tt.rawStatus, tt.rawType); got != tt.want {
				t.Fatalf("OrderStatus(%q, %q) = %s, want %s", tt.rawStatus, tt.rawType, got, tt.want)
			}
		})
	}
}

func TestSpotMapperRejection(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want core.Rejection
	}{
		{"insufficient balance", APIError{Code: -2010, Msg: "Account has insufficient balance for requested action."}, core.RejectionNotEnoughMoney},
		{"invalid symbol", APIError{Code: -1121, Msg: "Invalid symbol."}, core.RejectionSymbolNotFound},
		{"other api code", APIError{Code: -1013, Msg: "Filter failure: LOT_SIZE"}, core.RejectionUnknown},
		{"wrapped api error", fmt.Errorf("place order: %w", APIError{Code: -1121, Msg: "Invalid symbol."}), core.RejectionSymbolNotFound},
		{"transport error", errors.New("dial tcp: connection refused"), core.RejectionUnknown},
	}
	m := SpotMapper{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.Rejection(tt.err); got != tt.want {
				t.Fatalf("Rejection(%v) = %s, want %s", tt.err, got, tt.want)
			}
		})
	}
}

func TestSpotMapperPushRejection(t *testing.T) {
	tests := []struct {
		reason string
		want   core.Rejection
	}{
		{"INSUFFICIENT_BALANCE", core.RejectionNotEnoughMoney},
		{"insufficient_balance", core.RejectionNotEnoughMoney},
		{"UNKNOWN_INSTRUMENT", core.RejectionSymbolNotFound},
		{"NONE", core.RejectionUnknown},
		{"DUPLICATE_ORDER", core.RejectionUnknown},
		{"", core.RejectionUnknown},
	}
	m := SpotMapper{}
	for _, tt := range tests {
		if got := m.PushRejection(tt.reason); got != tt.want {
			t.Fatalf("PushRejection(%q) = %s, want %s", tt.reason, got, tt.want)
		}
	}
}

func TestSpotMapperTimeInForce(t *testing.T) {
	m := SpotMapper{}
	for tif, want := range map[core.TimeInForce]string{
		core.GoodTillCancel:    "GTC",
		core.FillOrKill:        "FOK",
		core.ImmediateOrCancel: "IOC",
	} {
		got, err := m.TimeInForce(tif)
		if err != nil {
			t.Fatalf("TimeInForce(%s) error = %v", tif, err)
		}
		if got != want {
			t.Fatalf("TimeInForce(%s) = %q, want %q", tif, got, want)
		}
	}
	if _, err := m.TimeInForce(core.TimeInForce("GTD")); !errors.Is(err, core.ErrUnsupportedTimeInForce) {
		t.Fatalf("TimeInForce(GTD) error = %v, want %v", err, core.ErrUnsupportedTimeInForce)
	}
}

func TestSpotMapperInterval(t *testing.T) {
	m := SpotMapper{}
	got, err := m.Interval(core.TimeframeM15)
	if err != nil {
		t.Fatalf("Interval(M15) error = %v", err)
	}
	if got != "15m" {
		t.Fatalf("Interval(M15) = %q, want 15m", got)
	}
	got, err = m.Interval(core.TimeframeMN1)
	if err != nil {
		t.Fatalf("Interval(MN1) error = %v", err)
	}
	if got != "1M" {
		t.Fatalf("Interval(MN1) = %q, want 1M", got)
	}
	if _, err := m.Interval(core.Timeframe(42)); !errors.Is(err, core.ErrUnsupportedTimeframe) {
		t.Fatalf("Interval(42) error = %v, want %v", err, core.ErrUnsupportedTimeframe)
	}
}
