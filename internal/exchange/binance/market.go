package binance

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/shopspring/decimal"

	"binance-broker/internal/exchange"
)

func (c *Client) AccountInfo(ctx context.Context) ([]exchange.AssetBalance, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/api/v3/account", url.Values{}, AuthSigned)
	if err != nil {
		return nil, err
	}
	var resp accountResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	balances := make([]exchange.AssetBalance, 0, len(resp.Balances))
	for _, b := range resp.Balances {
		balances = append(balances, exchange.AssetBalance{
			Asset:  b.Asset,
			Free:   parseDecimal(b.Free),
			Locked: parseDecimal(b.Locked),
		})
	}
	return balances, nil
}

func (c *Client) SymbolDetails(ctx context.Context) ([]exchange.SymbolDetail, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/api/v3/exchangeInfo", url.Values{}, AuthNone)
	if err != nil {
		return nil, err
	}
	var resp exchangeInfoResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	details := make([]exchange.SymbolDetail, 0, len(resp.Symbols))
	for _, sym := range resp.Symbols {
		detail := exchange.SymbolDetail{
			Symbol:     sym.Symbol,
			BaseAsset:  sym.BaseAsset,
			QuoteAsset: sym.QuoteAsset,
		}
		for _, f := range sym.Filters {
			if f.FilterType != "LOT_SIZE" {
				continue
			}
			detail.MinQty = parseDecimal(f.MinQty)
			detail.MaxQty = parseDecimal(f.MaxQty)
			detail.StepSize = parseDecimal(f.StepSize)
		}
		details = append(details, detail)
	}
	return details, nil
}

func (c *Client) BookTicker(ctx context.Context, symbol string) (exchange.BookTicker, error) {
	if symbol == "" {
		return exchange.BookTicker{}, errors.New("symbol required")
	}
	params := url.Values{}
	params.Set("symbol", symbol)
	body, err := c.doRequest(ctx, http.MethodGet, "/api/v3/ticker/bookTicker", params, AuthNone)
	if err != nil {
		return exchange.BookTicker{}, err
	}
	var resp bookTickerResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return exchange.BookTicker{}, err
	}
	return exchange.BookTicker{
		Symbol: resp.Symbol,
		Bid:    parseDecimal(resp.Bid),
		Ask:    parseDecimal(resp.Ask),
	}, nil
}

func (c *Client) AllBookTickers(ctx context.Context) (map[string]exchange.BookTicker, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/api/v3/ticker/bookTicker", url.Values{}, AuthNone)
	if err != nil {
		return nil, err
	}
	var resp []bookTickerResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	tickers := make(map[string]exchange.BookTicker, len(resp))
	for _, t := range resp {
		tickers[t.Symbol] = exchange.BookTicker{
			Symbol: t.Symbol,
			Bid:    parseDecimal(t.Bid),
			Ask:    parseDecimal(t.Ask),
		}
	}
	return tickers, nil
}

func (c *Client) AveragePrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if symbol == "" {
		return decimal.Zero, errors.New("symbol required")
	}
	params := url.Values{}
	params.Set("symbol", symbol)
	body, err := c.doRequest(ctx, http.MethodGet, "/api/v3/avgPrice", params, AuthNone)
	if err != nil {
		return decimal.Zero, err
	}
	var resp avgPriceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(resp.Price)
}

func (c *Client) Candles(ctx context.Context, symbol, interval string, limit int) ([]exchange.Candle, error) {
	if symbol == "" {
		return nil, errors.New("symbol required")
	}
	if interval == "" {
		return nil, errors.New("interval required")
	}
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", interval)
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	body, err := c.doRequest(ctx, http.MethodGet, "/api/v3/klines", params, AuthNone)
	if err != nil {
		return nil, err
	}
	return parseKlineRows(body, symbol, interval)
}
