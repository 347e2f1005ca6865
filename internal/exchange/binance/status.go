package binance

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"binance-broker/internal/core"
	"binance-broker/internal/exchange"
)

// SpotMapper translates Binance spot vocabulary into the canonical one.
// It implements exchange.Mapper.
type SpotMapper struct{}

var _ exchange.Mapper = SpotMapper{}

// OrderStatus maps a raw order status into the canonical status. A resting
// NEW order is PENDING, but market orders skip the resting state, so NEW on
// a market order stays REQUESTED. The exchange conflates partial and full
// fills at the status level; only the trade list distinguishes them.
func (SpotMapper) OrderStatus(rawStatus, rawType string) core.OrderStatus {
	switch strings.ToUpper(rawStatus) {
	case "NEW":
		if strings.ToUpper(rawType) != "MARKET" {
			return core.OrderPending
		}
		return core.OrderRequested
	case "PARTIALLY_FILLED", "FILLED":
		return core.OrderExecuted
	case "PENDING_CANCEL", "CANCELED":
		return core.OrderCancelled
	case "EXPIRED":
		return core.OrderExpired
	case "REJECTED":
		return core.OrderRejected
	}
	logrus.WithFields(logrus.Fields{
		"component": "binance",
		"status":    rawStatus,
		"type":      rawType,
	}).Warn("unknown order status, falling back to REQUESTED")
	return core.OrderRequested
}

// Rejection classifies a placement error into a canonical rejection reason.
func (SpotMapper) Rejection(err error) core.Rejection {
	apiErr, ok := AsAPIError(err)
	if !ok {
		return core.RejectionUnknown
	}
	switch apiErr.Code {
	case apiCodeNewOrderRejected:
		return core.RejectionNotEnoughMoney
	case apiCodeInvalidSymbol:
		return core.RejectionSymbolNotFound
	}
	return core.RejectionUnknown
}

// PushRejection classifies the reject reason carried in an execution
// report's "r" field.
func (SpotMapper) PushRejection(rawReason string) core.Rejection {
	switch strings.ToUpper(rawReason) {
	case "INSUFFICIENT_BALANCE":
		return core.RejectionNotEnoughMoney
	case "UNKNOWN_INSTRUMENT":
		return core.RejectionSymbolNotFound
	}
	return core.RejectionUnknown
}

func (SpotMapper) TimeInForce(tif core.TimeInForce) (string, error) {
	switch tif {
	case core.GoodTillCancel:
		return "GTC", nil
	case core.FillOrKill:
		return "FOK", nil
	case core.ImmediateOrCancel:
		return "IOC", nil
	}
	return "", fmt.Errorf("%w: %q", core.ErrUnsupportedTimeInForce, string(tif))
}

func (SpotMapper) Interval(tf core.Timeframe) (string, error) {
	if interval, ok := intervals[tf]; ok {
		return interval, nil
	}
	return "", fmt.Errorf("%w: %d seconds", core.ErrUnsupportedTimeframe, int64(tf))
}

var intervals = map[core.Timeframe]string{
	core.TimeframeM1:  "1m",
	core.TimeframeM3:  "3m",
	core.TimeframeM5:  "5m",
	core.TimeframeM15: "15m",
	core.TimeframeM30: "30m",
	core.TimeframeH1:  "1h",
	core.TimeframeH2:  "2h",
	core.TimeframeH4:  "4h",
	core.TimeframeH6:  "6h",
	core.TimeframeH12: "12h",
	core.TimeframeD1:  "1d",
	core.TimeframeW1:  "1w",
	core.TimeframeMN1: "1M",
}
