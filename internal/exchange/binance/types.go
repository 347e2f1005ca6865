package binance

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"binance-broker/internal/exchange"
)

type apiError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

type placeOrderResponse struct {
	Symbol        string      `json:"symbol"`
	OrderID       int64       `json:"orderId"`
	ClientOrderID string      `json:"clientOrderId"`
	TransactTime  int64       `json:"transactTime"`
	Price         string      `json:"price"`
	OrigQty       string      `json:"origQty"`
	ExecutedQty   string      `json:"executedQty"`
	Status        string      `json:"status"`
	TimeInForce   string      `json:"timeInForce"`
	Type          string      `json:"type"`
	Side          string      `json:"side"`
	Fills         []fillEntry `json:"fills"`
}

type fillEntry struct {
	Price           string `json:"price"`
	Qty             string `json:"qty"`
	Commission      string `json:"commission"`
	CommissionAsset string `json:"commissionAsset"`
	TradeID         int64  `json:"tradeId"`
}

type orderSnapshotResponse struct {
	Symbol        string `json:"symbol"`
	OrderID       int64  `json:"orderId"`
	ClientOrderID string `json:"clientOrderId"`
	Price         string `json:"price"`
	OrigQty       string `json:"origQty"`
	ExecutedQty   string `json:"executedQty"`
	Status        string `json:"status"`
	TimeInForce   string `json:"timeInForce"`
	Type          string `json:"type"`
	Side          string `json:"side"`
	Time          int64  `json:"time"`
	UpdateTime    int64  `json:"updateTime"`
}

type accountResponse struct {
	Balances []struct {
		Asset  string `json:"asset"`
		Free   string `json:"free"`
		Locked string `json:"locked"`
	} `json:"balances"`
}

type exchangeInfoResponse struct {
	Symbols []symbolInfoResponse `json:"symbols"`
}

type symbolInfoResponse struct {
	Symbol     string `json:"symbol"`
	BaseAsset  string `json:"baseAsset"`
	QuoteAsset string `json:"quoteAsset"`
	Filters    []struct {
		FilterType string `json:"filterType"`
		MinQty     string `json:"minQty"`
		MaxQty     string `json:"maxQty"`
		StepSize   string `json:"stepSize"`
	} `json:"filters"`
}

type bookTickerResponse struct {
	Symbol string `json:"symbol"`
	Bid    string `json:"bidPrice"`
	Ask    string `json:"askPrice"`
}

type avgPriceResponse struct {
	Price string `json:"price"`
}

type myTradeResponse struct {
	ID              int64  `json:"id"`
	OrderID         int64  `json:"orderId"`
	Symbol          string `json:"symbol"`
	Price           string `json:"price"`
	Qty             string `json:"qty"`
	Commission      string `json:"commission"`
	CommissionAsset string `json:"commissionAsset"`
	Time            int64  `json:"time"`
	IsBuyer         bool   `json:"isBuyer"`
}

// executionReport is the user-stream order update in compact wire form.
type executionReport struct {
	EventType       string `json:"e"`
	EventTime       int64  `json:"E"`
	Symbol          string `json:"s"`
	ClientOrderID   string `json:"c"`
	Side            string `json:"S"`
	OrderType       string `json:"o"`
	TimeInForce     string `json:"f"`
	OrderQty        string `json:"q"`
	OrderPrice      string `json:"p"`
	ExecutionType   string `json:"x"`
	OrderStatus     string `json:"X"`
	RejectReason    string `json:"r"`
	OrderID         int64  `json:"i"`
	LastExecQty     string `json:"l"`
	CumulativeQty   string `json:"z"`
	LastExecPrice   string `json:"L"`
	Commission      string `json:"n"`
	CommissionAsset string `json:"N"`
	TransactionTime int64  `json:"T"`
	TradeID         int64  `json:"t"`
}

func (r executionReport) toOrderUpdate() exchange.OrderUpdate {
	u := exchange.OrderUpdate{
		OrderID:         strconv.FormatInt(r.OrderID, 10),
		ClientOrderID:   r.ClientOrderID,
		Symbol:          r.Symbol,
		Side:            r.Side,
		OrderType:       r.OrderType,
		TimeInForce:     r.TimeInForce,
		Status:          r.OrderStatus,
		ExecutionType:   r.ExecutionType,
		RejectReason:    r.RejectReason,
		Price:           parseDecimal(r.OrderPrice),
		Quantity:        parseDecimal(r.OrderQty),
		LastExecPrice:   parseDecimal(r.LastExecPrice),
		LastExecQty:     parseDecimal(r.LastExecQty),
		Commission:      parseDecimal(r.Commission),
		CommissionAsset: r.CommissionAsset,
	}
	if r.TradeID > 0 {
		u.TradeID = strconv.FormatInt(r.TradeID, 10)
	}
	if r.EventTime > 0 {
		u.EventTime = time.UnixMilli(r.EventTime)
	}
	if r.TransactionTime > 0 {
		u.TransactTime = time.UnixMilli(r.TransactionTime)
	}
	return u
}

func parseDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return v
}

func parseKlineRows(body []byte, symbol, interval string) ([]exchange.Candle, error) {
	var rows [][]json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, err
	}
	out := make([]exchange.Candle, 0, len(rows))
	for _, row := range rows {
		if len(row) < 6 {
			continue
		}
		openTime, err := parseRawInt64(row[0])
		if err != nil {
			continue
		}
		out = append(out, exchange.Candle{
			Symbol:   symbol,
			Interval: interval,
			OpenTime: time.UnixMilli(openTime),
			Open:     parseDecimal(parseRawStr(row[1])),
			High:     parseDecimal(parseRawStr(row[2])),
			Low:      parseDecimal(parseRawStr(row[3])),
			Close:    parseDecimal(parseRawStr(row[4])),
			Volume:   parseDecimal(parseRawStr(row[5])),
			Closed:   true,
		})
	}
	return out, nil
}

func parseRawInt64(raw json.RawMessage) (int64, error) {
	var v int64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, err
	}
	return v, nil
}

func parseRawStr(raw json.RawMessage) string {
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return ""
	}
	return v
}
