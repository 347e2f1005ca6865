package core

import (
	"time"

	"github.com/shopspring/decimal"
)

type Side string

type OrderStatus string

type Purpose string

type TimeInForce string

type Rejection string

type TickMovement string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

const (
	OrderRequested OrderStatus = "REQUESTED"
	OrderPending   OrderStatus = "PENDING"
	OrderExecuted  OrderStatus = "EXECUTED"
	OrderCancelled OrderStatus = "CANCELLED"
	OrderRejected  OrderStatus = "REJECTED"
	OrderExpired   OrderStatus = "EXPIRED"
)

const (
	PurposeOpen  Purpose = "OPEN"
	PurposeClose Purpose = "CLOSE"
)

const (
	GoodTillCancel    TimeInForce = "GTC"
	FillOrKill        TimeInForce = "FOK"
	ImmediateOrCancel TimeInForce = "IOC"
)

const (
	RejectionNone           Rejection = ""
	RejectionNotEnoughMoney Rejection = "NOT_ENOUGH_MONEY"
	RejectionSymbolNotFound Rejection = "SYMBOL_NOT_FOUND"
	RejectionUnknown        Rejection = "UNKNOWN"
)

const (
	MovementBid    TickMovement = "BID"
	MovementAsk    TickMovement = "ASK"
	MovementBidAsk TickMovement = "BID_ASK"
)

// IsTerminal reports whether no further transitions are accepted from s.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderExecuted, OrderCancelled, OrderRejected, OrderExpired:
		return true
	}
	return false
}

// Trade is one fill belonging to an order. Trades are immutable facts:
// created once, never mutated or deleted.
type Trade struct {
	ID              string
	OrderID         string
	Symbol          string
	Side            Side
	Purpose         Purpose
	Price           decimal.Decimal
	Volume          decimal.Decimal
	Commission      decimal.Decimal
	CommissionAsset string
	ExecutedAt      time.Time
}

// Tick is a best bid/ask observation with the movement that produced it.
type Tick struct {
	Symbol   string
	Bid      decimal.Decimal
	Ask      decimal.Decimal
	Movement TickMovement
	At       time.Time
}

// Period is one candle of a symbol at a given timeframe.
type Period struct {
	Symbol    string
	Timeframe Timeframe
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    decimal.Decimal
	StartedAt time.Time
}

// Symbol is the tradable-constraints view of an exchange symbol.
type Symbol struct {
	Symbol     string
	BaseAsset  string
	QuoteAsset string
	MinVolume  decimal.Decimal
	MaxVolume  decimal.Decimal
	VolumeStep decimal.Decimal
}

// AssetStatement is the balance of one asset at a point in time.
type AssetStatement struct {
	Asset  string
	Free   decimal.Decimal
	Locked decimal.Decimal
	At     time.Time
}

// ClassifyMovement compares two consecutive best bid/ask pairs. The second
// return value is false when neither side changed, in which case no tick
// event should be emitted.
func ClassifyMovement(prevBid, prevAsk, bid, ask decimal.Decimal) (TickMovement, bool) {
	bidChanged := !bid.Equal(prevBid)
	askChanged := !ask.Equal(prevAsk)
	switch {
	case bidChanged && askChanged:
		return MovementBidAsk, true
	case bidChanged:
		return MovementBid, true
	case askChanged:
		return MovementAsk, true
	}
	return "", false
}
