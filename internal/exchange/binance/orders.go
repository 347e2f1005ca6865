package binance

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"binance-broker/internal/exchange"
)

func (c *Client) PlaceOrder(ctx context.Context, req exchange.PlaceRequest) (exchange.PlaceResponse, error) {
	if req.Symbol == "" {
		return exchange.PlaceResponse{}, errors.New("symbol required")
	}
	if req.Quantity.Cmp(decimal.Zero) <= 0 {
		return exchange.PlaceResponse{}, errors.New("invalid order quantity")
	}
	if req.Type == "LIMIT" && req.Price.Cmp(decimal.Zero) <= 0 {
		return exchange.PlaceResponse{}, errors.New("invalid order price")
	}
	params := url.Values{}
	params.Set("symbol", req.Symbol)
	params.Set("side", req.Side)
	params.Set("type", req.Type)
	params.Set("quantity", req.Quantity.String())
	params.Set("newOrderRespType", "FULL")
	if req.Type == "LIMIT" {
		params.Set("price", req.Price.String())
		tif := req.TimeInForce
		if tif == "" {
			tif = "GTC"
		}
		params.Set("timeInForce", tif)
	} else if req.TimeInForce != "" {
		params.Set("timeInForce", req.TimeInForce)
	}
	if req.ClientOrderID != "" {
		params.Set("newClientOrderId", req.ClientOrderID)
	}

	body, err := c.doRequest(ctx, http.MethodPost, "/api/v3/order", params, AuthSigned)
	if err != nil {
		return exchange.PlaceResponse{}, err
	}
	var resp placeOrderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return exchange.PlaceResponse{}, err
	}
	out := exchange.PlaceResponse{
		OrderID:       strconv.FormatInt(resp.OrderID, 10),
		ClientOrderID: resp.ClientOrderID,
		Status:        resp.Status,
		Type:          resp.Type,
		Fills:         make([]exchange.Fill, 0, len(resp.Fills)),
	}
	if resp.TransactTime > 0 {
		out.TransactTime = time.UnixMilli(resp.TransactTime)
	}
	for _, fill := range resp.Fills {
		out.Fills = append(out.Fills, exchange.Fill{
			TradeID:         strconv.FormatInt(fill.TradeID, 10),
			Price:           parseDecimal(fill.Price),
			Qty:             parseDecimal(fill.Qty),
			Commission:      parseDecimal(fill.Commission),
			CommissionAsset: fill.CommissionAsset,
		})
	}
	return out, nil
}

func (c *Client) CancelOrder(ctx context.Context, symbol, orderID string) error {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("orderId", orderID)
	_, err := c.doRequest(ctx, http.MethodDelete, "/api/v3/order", params, AuthSigned)
	return err
}

func (c *Client) OpenOrders(ctx context.Context, symbol string) ([]exchange.OrderSnapshot, error) {
	params := url.Values{}
	if symbol != "" {
		params.Set("symbol", symbol)
	}
	body, err := c.doRequest(ctx, http.MethodGet, "/api/v3/openOrders", params, AuthSigned)
	if err != nil {
		return nil, err
	}
	return parseOrderSnapshots(body)
}

func (c *Client) AllOrders(ctx context.Context, symbol string) ([]exchange.OrderSnapshot, error) {
	if symbol == "" {
		return nil, errors.New("symbol required")
	}
	params := url.Values{}
	params.Set("symbol", symbol)
	body, err := c.doRequest(ctx, http.MethodGet, "/api/v3/allOrders", params, AuthSigned)
	if err != nil {
		return nil, err
	}
	return parseOrderSnapshots(body)
}

func parseOrderSnapshots(body []byte) ([]exchange.OrderSnapshot, error) {
	var resp []orderSnapshotResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	orders := make([]exchange.OrderSnapshot, 0, len(resp))
	for _, ord := range resp {
		snapshot := exchange.OrderSnapshot{
			OrderID:       strconv.FormatInt(ord.OrderID, 10),
			ClientOrderID: ord.ClientOrderID,
			Symbol:        ord.Symbol,
			Side:          ord.Side,
			Type:          ord.Type,
			Status:        ord.Status,
			TimeInForce:   ord.TimeInForce,
			Price:         parseDecimal(ord.Price),
			OrigQty:       parseDecimal(ord.OrigQty),
			ExecutedQty:   parseDecimal(ord.ExecutedQty),
		}
		if ord.Time > 0 {
			snapshot.CreatedAt = time.UnixMilli(ord.Time)
		}
		if ord.UpdateTime > 0 {
			snapshot.UpdatedAt = time.UnixMilli(ord.UpdateTime)
		}
		orders = append(orders, snapshot)
	}
	return orders, nil
}

func (c *Client) MyTrades(ctx context.Context, symbol string) ([]exchange.TradeRecord, error) {
	if symbol == "" {
		return nil, errors.New("symbol required")
	}
	params := url.Values{}
	params.Set("symbol", symbol)
	body, err := c.doRequest(ctx, http.MethodGet, "/api/v3/myTrades", params, AuthSigned)
	if err != nil {
		return nil, err
	}
	var resp []myTradeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	trades := make([]exchange.TradeRecord, 0, len(resp))
	for _, trade := range resp {
		record := exchange.TradeRecord{
			ID:              strconv.FormatInt(trade.ID, 10),
			OrderID:         strconv.FormatInt(trade.OrderID, 10),
			Symbol:          trade.Symbol,
			Price:           parseDecimal(trade.Price),
			Qty:             parseDecimal(trade.Qty),
			Commission:      parseDecimal(trade.Commission),
			CommissionAsset: trade.CommissionAsset,
			IsBuyer:         trade.IsBuyer,
		}
		if trade.Time > 0 {
			record.Time = time.UnixMilli(trade.Time)
		}
		trades = append(trades, record)
	}
	return trades, nil
}
