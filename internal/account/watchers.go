package account

import (
	"context"
	"time"

	"binance-broker/internal/core"
)

// WatchTicks streams movement-classified best bid/ask ticks for a symbol.
// Consecutive exchange events with identical bid and ask produce no tick.
// Every emitted tick also refreshes the session's last-tick cache. The
// channels close when the underlying stream dies or ctx is cancelled.
func (s *Session) WatchTicks(ctx context.Context, symbol string) (<-chan core.Tick, <-chan error, error) {
	raw, errs, err := s.conn.WatchBookTicker(ctx, symbol)
	if err != nil {
		return nil, nil, err
	}
	ticks := make(chan core.Tick)
	out := make(chan error, 1)
	go func() {
		defer close(ticks)
		defer close(out)
		prev, havePrev := s.lastTick(symbol)
		for {
			select {
			case bt, ok := <-raw:
				if !ok {
					return
				}
				var movement core.TickMovement
				if havePrev {
					var changed bool
					movement, changed = core.ClassifyMovement(prev.Bid, prev.Ask, bt.Bid, bt.Ask)
					if !changed {
						continue
					}
				} else {
					movement = core.MovementBidAsk
				}
				tick := core.Tick{
					Symbol:   symbol,
					Bid:      bt.Bid,
					Ask:      bt.Ask,
					Movement: movement,
					At:       time.Now().UTC(),
				}
				prev, havePrev = tick, true
				s.mu.Lock()
				s.lastTicks[symbol] = tick
				s.mu.Unlock()
				select {
				case ticks <- tick:
				case <-ctx.Done():
					return
				}
			case err, ok := <-errs:
				if !ok {
					errs = nil
					continue
				}
				if err != nil {
					out <- err
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return ticks, out, nil
}

// WatchPeriods streams closed candles for a symbol and timeframe. The
// still-forming candle updates the exchange pushes are dropped; a period
// is emitted once per candle, when it closes.
func (s *Session) WatchPeriods(ctx context.Context, symbol string, tf core.Timeframe) (<-chan core.Period, <-chan error, error) {
	interval, err := s.mapper.Interval(tf)
	if err != nil {
		return nil, nil, err
	}
	raw, errs, err := s.conn.WatchCandles(ctx, symbol, interval)
	if err != nil {
		return nil, nil, err
	}
	periods := make(chan core.Period)
	out := make(chan error, 1)
	go func() {
		defer close(periods)
		defer close(out)
		for {
			select {
			case c, ok := <-raw:
				if !ok {
					return
				}
				if !c.Closed {
					continue
				}
				period := core.Period{
					Symbol:    c.Symbol,
					Timeframe: tf,
					Open:      c.Open,
					High:      c.High,
					Low:       c.Low,
					Close:     c.Close,
					Volume:    c.Volume,
					StartedAt: c.OpenTime,
				}
				select {
				case periods <- period:
				case <-ctx.Done():
					return
				}
			case err, ok := <-errs:
				if !ok {
					errs = nil
					continue
				}
				if err != nil {
					out <- err
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return periods, out, nil
}
