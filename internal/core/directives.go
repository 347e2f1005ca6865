package core

import (
	"github.com/shopspring/decimal"
)

// OrderDirectives is the caller-supplied intent to place an order.
// A nil Limit means market order.
type OrderDirectives struct {
	Symbol      string
	Side        Side
	Volume      decimal.Decimal
	Limit       *decimal.Decimal
	Stop        *decimal.Decimal
	TimeInForce TimeInForce
	PositionID  string

	// ResolverEvents overrides the lifecycle events that settle the
	// resolver returned by place-order. nil means the default set; an
	// explicitly empty slice settles immediately.
	ResolverEvents []string
}

// Validate fast-fails directive combinations the exchange family does not
// support, before any network call.
func (d OrderDirectives) Validate() error {
	if d.Symbol == "" {
		return ErrSymbolRequired
	}
	if d.Side != Buy && d.Side != Sell {
		return ErrDirectionRequired
	}
	if d.Volume.Cmp(decimal.Zero) <= 0 {
		return ErrVolumeRequired
	}
	if d.Limit != nil && d.Limit.Cmp(decimal.Zero) <= 0 {
		return ErrInvalidLimitPrice
	}
	if d.Stop != nil {
		return ErrStopOrdersUnsupported
	}
	if d.PositionID != "" {
		return ErrPositionOrdersUnsupported
	}
	return nil
}

// IsMarket reports whether the directives describe a market order.
func (d OrderDirectives) IsMarket() bool {
	return d.Limit == nil
}

// Purpose derives the canonical purpose from the direction: buys open
// exposure, sells close it.
func (d OrderDirectives) Purpose() Purpose {
	if d.Side == Buy {
		return PurposeOpen
	}
	return PurposeClose
}
