package exchange

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"binance-broker/internal/core"
)

// PlaceRequest is an order placement in exchange wire vocabulary.
type PlaceRequest struct {
	Symbol        string
	Side          string
	Type          string
	Quantity      decimal.Decimal
	Price         decimal.Decimal
	TimeInForce   string
	ClientOrderID string
}

// Fill is one immediate execution reported by a placement response.
type Fill struct {
	TradeID         string
	Price           decimal.Decimal
	Qty             decimal.Decimal
	Commission      decimal.Decimal
	CommissionAsset string
}

// PlaceResponse is the synchronous result of a placement call.
type PlaceResponse struct {
	OrderID       string
	ClientOrderID string
	Status        string
	Type          string
	TransactTime  time.Time
	Fills         []Fill
}

// OrderUpdate is one push event from the user stream (an executionReport).
// Status and type strings are raw exchange vocabulary; timestamps carry the
// exchange's event/transaction times.
type OrderUpdate struct {
	OrderID         string
	ClientOrderID   string
	Symbol          string
	Side            string
	OrderType       string
	TimeInForce     string
	Status          string
	ExecutionType   string
	RejectReason    string
	Price           decimal.Decimal
	Quantity        decimal.Decimal
	LastExecPrice   decimal.Decimal
	LastExecQty     decimal.Decimal
	Commission      decimal.Decimal
	CommissionAsset string
	TradeID         string
	EventTime       time.Time
	TransactTime    time.Time
}

// AssetBalance is one asset entry of the account info response.
type AssetBalance struct {
	Asset  string
	Free   decimal.Decimal
	Locked decimal.Decimal
}

// SymbolDetail is one symbol entry of the exchange metadata, with the lot
// constraints already extracted from filter metadata.
type SymbolDetail struct {
	Symbol     string
	BaseAsset  string
	QuoteAsset string
	MinQty     decimal.Decimal
	MaxQty     decimal.Decimal
	StepSize   decimal.Decimal
}

// BookTicker is the current best bid/ask of a symbol.
type BookTicker struct {
	Symbol string
	Bid    decimal.Decimal
	Ask    decimal.Decimal
}

// Candle is one kline row. Closed is false for the still-forming candle on
// streamed updates and always true on REST history rows.
type Candle struct {
	Symbol   string
	Interval string
	OpenTime time.Time
	Open     decimal.Decimal
	High     decimal.Decimal
	Low      decimal.Decimal
	Close    decimal.Decimal
	Volume   decimal.Decimal
	Closed   bool
}

// OrderSnapshot is the REST view of an order (open or historical).
type OrderSnapshot struct {
	OrderID       string
	ClientOrderID string
	Symbol        string
	Side          string
	Type          string
	Status        string
	TimeInForce   string
	Price         decimal.Decimal
	OrigQty       decimal.Decimal
	ExecutedQty   decimal.Decimal
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TradeRecord is the REST view of one historical fill.
type TradeRecord struct {
	ID              string
	OrderID         string
	Symbol          string
	Price           decimal.Decimal
	Qty             decimal.Decimal
	Commission      decimal.Decimal
	CommissionAsset string
	IsBuyer         bool
	Time            time.Time
}

// Connection is the exchange collaborator the broker core consumes: REST
// calls plus push-event subscriptions. Stream methods return receive
// channels that close when the underlying connection dies or ctx is
// cancelled; a non-nil error on the error channel precedes closure.
type Connection interface {
	PlaceOrder(ctx context.Context, req PlaceRequest) (PlaceResponse, error)
	CancelOrder(ctx context.Context, symbol, orderID string) error

	UserUpdates(ctx context.Context) (<-chan OrderUpdate, <-chan error, error)

	AccountInfo(ctx context.Context) ([]AssetBalance, error)
	SymbolDetails(ctx context.Context) ([]SymbolDetail, error)
	BookTicker(ctx context.Context, symbol string) (BookTicker, error)
	AllBookTickers(ctx context.Context) (map[string]BookTicker, error)
	AveragePrice(ctx context.Context, symbol string) (decimal.Decimal, error)
	Candles(ctx context.Context, symbol, interval string, limit int) ([]Candle, error)
	OpenOrders(ctx context.Context, symbol string) ([]OrderSnapshot, error)
	AllOrders(ctx context.Context, symbol string) ([]OrderSnapshot, error)
	MyTrades(ctx context.Context, symbol string) ([]TradeRecord, error)

	WatchBookTicker(ctx context.Context, symbol string) (<-chan BookTicker, <-chan error, error)
	WatchCandles(ctx context.Context, symbol, interval string) (<-chan Candle, <-chan error, error)

	Close() error
}

// Mapper translates raw exchange vocabulary into the canonical one. One
// implementation exists per exchange family; the order state machine and
// the account session are generic over it.
type Mapper interface {
	// OrderStatus maps a raw order status plus the raw order type into the
	// canonical status. It never fails: unknown statuses fall back to
	// REQUESTED.
	OrderStatus(rawStatus, rawType string) core.OrderStatus
	// Rejection classifies a placement error into a canonical rejection
	// reason.
	Rejection(err error) core.Rejection
	// PushRejection classifies the reject reason string a push event
	// carries. Unclassifiable reasons map to UNKNOWN.
	PushRejection(rawReason string) core.Rejection
	// TimeInForce maps the canonical time in force to the wire string, or
	// fails for values the exchange does not accept.
	TimeInForce(tif core.TimeInForce) (string, error)
	// Interval maps a timeframe to the wire interval string, or fails for
	// timeframes the exchange does not serve.
	Interval(tf core.Timeframe) (string, error)
}
