package account

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"binance-broker/internal/core"
	"binance-broker/internal/exchange"
)

// OrderRecord is the normalized read view of an exchange-held order.
// LimitPrice is nil for market orders.
type OrderRecord struct {
	ID            string
	ClientOrderID string
	Symbol        string
	Side          core.Side
	Status        core.OrderStatus
	LimitPrice    *decimal.Decimal
	Volume        decimal.Decimal
	FilledVolume  decimal.Decimal
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Balance returns the free balance of the primary asset.
func (s *Session) Balance(ctx context.Context) (decimal.Decimal, error) {
	st, err := s.AssetStatement(ctx, s.primaryAsset)
	if err != nil {
		return decimal.Zero, err
	}
	return st.Free, nil
}

// AssetStatement returns the free/locked balance of one asset. Assets the
// account never touched report as zero.
func (s *Session) AssetStatement(ctx context.Context, asset string) (core.AssetStatement, error) {
	balances, err := s.conn.AccountInfo(ctx)
	if err != nil {
		return core.AssetStatement{}, err
	}
	now := time.Now().UTC()
	for _, b := range balances {
		if b.Asset == asset {
			return core.AssetStatement{Asset: asset, Free: b.Free, Locked: b.Locked, At: now}, nil
		}
	}
	return core.AssetStatement{Asset: asset, At: now}, nil
}

// BalanceSheet returns every asset with a non-zero balance.
func (s *Session) BalanceSheet(ctx context.Context) ([]core.AssetStatement, error) {
	balances, err := s.conn.AccountInfo(ctx)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	sheet := make([]core.AssetStatement, 0, len(balances))
	for _, b := range balances {
		if b.Free.IsZero() && b.Locked.IsZero() {
			continue
		}
		sheet = append(sheet, core.AssetStatement{Asset: b.Asset, Free: b.Free, Locked: b.Locked, At: now})
	}
	return sheet, nil
}

// Equity values the whole balance sheet in the primary asset. Conversion
// uses the mid of the current book ticker, trying the direct pair first
// and the inverse pair second; assets with no conversion path against the
// primary asset are excluded from the total.
func (s *Session) Equity(ctx context.Context) (decimal.Decimal, error) {
	balances, err := s.conn.AccountInfo(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	tickers, err := s.conn.AllBookTickers(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, b := range balances {
		amount := b.Free.Add(b.Locked)
		if amount.IsZero() {
			continue
		}
		if b.Asset == s.primaryAsset {
			total = total.Add(amount)
			continue
		}
		if t, ok := tickers[b.Asset+s.primaryAsset]; ok {
			total = total.Add(amount.Mul(midPrice(t)))
			continue
		}
		if t, ok := tickers[s.primaryAsset+b.Asset]; ok {
			if mid := midPrice(t); !mid.IsZero() {
				total = total.Add(amount.Div(mid))
				continue
			}
		}
		s.log.WithField("asset", b.Asset).Debug("no conversion path to primary asset, excluded from equity")
	}
	return total, nil
}

// Trades returns the canonical trade history of a symbol. The exchange
// reports the account's role per fill; buys open exposure, sells close it.
func (s *Session) Trades(ctx context.Context, symbol string) ([]core.Trade, error) {
	records, err := s.conn.MyTrades(ctx, symbol)
	if err != nil {
		return nil, err
	}
	trades := make([]core.Trade, 0, len(records))
	for _, r := range records {
		side, purpose := core.Sell, core.PurposeClose
		if r.IsBuyer {
			side, purpose = core.Buy, core.PurposeOpen
		}
		trades = append(trades, core.Trade{
			ID:              r.ID,
			OrderID:         r.OrderID,
			Symbol:          r.Symbol,
			Side:            side,
			Purpose:         purpose,
			Price:           r.Price,
			Volume:          r.Qty,
			Commission:      r.Commission,
			CommissionAsset: r.CommissionAsset,
			ExecutedAt:      r.Time,
		})
	}
	return trades, nil
}

// Orders returns the executed orders of a symbol, normalized through the
// status mapper.
func (s *Session) Orders(ctx context.Context, symbol string) ([]OrderRecord, error) {
	snapshots, err := s.conn.AllOrders(ctx, symbol)
	if err != nil {
		return nil, err
	}
	return s.filterRecords(snapshots, core.OrderExecuted), nil
}

// PendingOrders returns the resting orders of a symbol.
func (s *Session) PendingOrders(ctx context.Context, symbol string) ([]OrderRecord, error) {
	snapshots, err := s.conn.OpenOrders(ctx, symbol)
	if err != nil {
		return nil, err
	}
	return s.filterRecords(snapshots, core.OrderPending), nil
}

func (s *Session) filterRecords(snapshots []exchange.OrderSnapshot, want core.OrderStatus) []OrderRecord {
	records := make([]OrderRecord, 0, len(snapshots))
	for _, snap := range snapshots {
		status := s.mapper.OrderStatus(snap.Status, snap.Type)
		if status != want {
			continue
		}
		rec := OrderRecord{
			ID:            snap.OrderID,
			ClientOrderID: snap.ClientOrderID,
			Symbol:        snap.Symbol,
			Side:          core.Side(snap.Side),
			Status:        status,
			Volume:        snap.OrigQty,
			FilledVolume:  snap.ExecutedQty,
			CreatedAt:     snap.CreatedAt,
			UpdatedAt:     snap.UpdatedAt,
		}
		if snap.Type != "MARKET" && !snap.Price.IsZero() {
			price := snap.Price
			rec.LimitPrice = &price
		}
		records = append(records, rec)
	}
	return records
}

// Symbols lists the cached symbol metadata, refreshing it if the cache is
// still cold.
func (s *Session) Symbols(ctx context.Context) ([]core.Symbol, error) {
	s.mu.Lock()
	n := len(s.symbols)
	s.mu.Unlock()
	if n == 0 {
		if err := s.refreshSymbols(ctx); err != nil {
			return nil, err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Symbol, 0, len(s.symbols))
	for _, sym := range s.symbols {
		out = append(out, sym)
	}
	return out, nil
}

// Symbol returns the cached metadata of one symbol.
func (s *Session) Symbol(ctx context.Context, symbol string) (core.Symbol, error) {
	s.mu.Lock()
	n := len(s.symbols)
	s.mu.Unlock()
	if n == 0 {
		if err := s.refreshSymbols(ctx); err != nil {
			return core.Symbol{}, err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sym, ok := s.symbols[symbol]
	if !ok {
		return core.Symbol{}, fmt.Errorf("%w: %q", core.ErrSymbolNotFound, symbol)
	}
	return sym, nil
}

// SymbolBid returns the best bid, preferring the last streamed tick over a
// fresh book-ticker call.
func (s *Session) SymbolBid(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if tick, ok := s.lastTick(symbol); ok {
		return tick.Bid, nil
	}
	ticker, err := s.conn.BookTicker(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}
	return ticker.Bid, nil
}

// SymbolAsk returns the best ask, preferring the last streamed tick over a
// fresh book-ticker call.
func (s *Session) SymbolAsk(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if tick, ok := s.lastTick(symbol); ok {
		return tick.Ask, nil
	}
	ticker, err := s.conn.BookTicker(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}
	return ticker.Ask, nil
}

// AveragePrice returns the exchange's rolling average price for a symbol.
func (s *Session) AveragePrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	return s.conn.AveragePrice(ctx, symbol)
}

// Periods returns up to limit historical candles for a timeframe.
func (s *Session) Periods(ctx context.Context, symbol string, tf core.Timeframe, limit int) ([]core.Period, error) {
	interval, err := s.mapper.Interval(tf)
	if err != nil {
		return nil, err
	}
	candles, err := s.conn.Candles(ctx, symbol, interval, limit)
	if err != nil {
		return nil, err
	}
	periods := make([]core.Period, 0, len(candles))
	for _, c := range candles {
		periods = append(periods, core.Period{
			Symbol:    c.Symbol,
			Timeframe: tf,
			Open:      c.Open,
			High:      c.High,
			Low:       c.Low,
			Close:     c.Close,
			Volume:    c.Volume,
			StartedAt: c.OpenTime,
		})
	}
	return periods, nil
}

func (s *Session) lastTick(symbol string) (core.Tick, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tick, ok := s.lastTicks[symbol]
	return tick, ok
}

func midPrice(t exchange.BookTicker) decimal.Decimal {
	return t.Bid.Add(t.Ask).Div(decimal.NewFromInt(2))
}
