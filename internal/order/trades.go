package order

import (
	"github.com/shopspring/decimal"

	"binance-broker/internal/core"
)

// tradeBook collects an order's fills, deduplicated by trade id. The push
// stream and the synchronous placement response can both report the same
// fill, so recording is idempotent. Guarded by the owning Order's mutex.
type tradeBook struct {
	seen   map[string]struct{}
	trades []core.Trade
}

// record returns false if a trade with the same id was already recorded.
func (b *tradeBook) record(t core.Trade) bool {
	if t.ID == "" {
		return false
	}
	if b.seen == nil {
		b.seen = make(map[string]struct{})
	}
	if _, dup := b.seen[t.ID]; dup {
		return false
	}
	b.seen[t.ID] = struct{}{}
	b.trades = append(b.trades, t)
	return true
}

func (b *tradeBook) list() []core.Trade {
	out := make([]core.Trade, len(b.trades))
	copy(out, b.trades)
	return out
}

func (b *tradeBook) volume() decimal.Decimal {
	total := decimal.Zero
	for _, t := range b.trades {
		total = total.Add(t.Volume)
	}
	return total
}
