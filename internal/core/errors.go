package core

import "errors"

var (
	// ErrStopOrdersUnsupported indicates the directives request a stop order,
	// which this exchange family does not support.
	ErrStopOrdersUnsupported = errors.New("stop orders not supported")
	// ErrPositionOrdersUnsupported indicates the directives reference a
	// position, which this exchange family does not support.
	ErrPositionOrdersUnsupported = errors.New("position-linked orders not supported")
	// ErrSymbolRequired indicates the directives carry no symbol.
	ErrSymbolRequired = errors.New("symbol required")
	// ErrDirectionRequired indicates the directives carry no valid direction.
	ErrDirectionRequired = errors.New("direction required")
	// ErrVolumeRequired indicates the directives carry no positive volume.
	ErrVolumeRequired = errors.New("positive volume required")
	// ErrInvalidLimitPrice indicates a non-positive limit price.
	ErrInvalidLimitPrice = errors.New("invalid limit price")
	// ErrUnsupportedTimeframe indicates a timeframe with no exchange interval.
	ErrUnsupportedTimeframe = errors.New("unsupported timeframe")
	// ErrUnsupportedTimeInForce indicates a time in force the exchange rejects.
	ErrUnsupportedTimeInForce = errors.New("unsupported time in force")
	// ErrSymbolNotFound indicates the symbol is absent from the metadata cache.
	ErrSymbolNotFound = errors.New("symbol not found")
	// ErrSessionClosed indicates the account session has been logged out.
	ErrSessionClosed = errors.New("session closed")
)
