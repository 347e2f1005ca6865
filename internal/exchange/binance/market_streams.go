package binance

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"binance-broker/internal/exchange"
)

type bookTickerEvent struct {
	Symbol string `json:"s"`
	Bid    string `json:"b"`
	Ask    string `json:"a"`
}

type klineEvent struct {
	EventType string `json:"e"`
	Symbol    string `json:"s"`
	Kline     struct {
		StartTime int64  `json:"t"`
		Interval  string `json:"i"`
		Open      string `json:"o"`
		Close     string `json:"c"`
		High      string `json:"h"`
		Low       string `json:"l"`
		Volume    string `json:"v"`
		Final     bool   `json:"x"`
	} `json:"k"`
}

// WatchBookTicker streams best bid/ask updates for one symbol.
func (c *Client) WatchBookTicker(ctx context.Context, symbol string) (<-chan exchange.BookTicker, <-chan error, error) {
	conn, err := c.dialMarketStream(ctx, strings.ToLower(symbol)+"@bookTicker")
	if err != nil {
		return nil, nil, err
	}
	ticks := make(chan exchange.BookTicker)
	errCh := make(chan error, 1)
	go func() {
		defer close(ticks)
		defer conn.Close()
		for {
			_ = conn.SetReadDeadline(time.Now().Add(3 * time.Minute))
			_, data, err := conn.ReadMessage()
			if err != nil {
				select {
				case errCh <- err:
				default:
				}
				return
			}
			var ev bookTickerEvent
			if err := json.Unmarshal(data, &ev); err != nil || ev.Symbol == "" {
				continue
			}
			tick := exchange.BookTicker{
				Symbol: ev.Symbol,
				Bid:    parseDecimal(ev.Bid),
				Ask:    parseDecimal(ev.Ask),
			}
			select {
			case ticks <- tick:
			case <-ctx.Done():
				return
			}
		}
	}()
	go closeOnDone(ctx, conn)
	return ticks, errCh, nil
}

// WatchCandles streams kline updates for one symbol and interval.
func (c *Client) WatchCandles(ctx context.Context, symbol, interval string) (<-chan exchange.Candle, <-chan error, error) {
	if interval == "" {
		return nil, nil, errors.New("interval required")
	}
	conn, err := c.dialMarketStream(ctx, strings.ToLower(symbol)+"@kline_"+interval)
	if err != nil {
		return nil, nil, err
	}
	candles := make(chan exchange.Candle)
	errCh := make(chan error, 1)
	go func() {
		defer close(candles)
		defer conn.Close()
		for {
			_ = conn.SetReadDeadline(time.Now().Add(3 * time.Minute))
			_, data, err := conn.ReadMessage()
			if err != nil {
				select {
				case errCh <- err:
				default:
				}
				return
			}
			var ev klineEvent
			if err := json.Unmarshal(data, &ev); err != nil || ev.EventType != "kline" {
				continue
			}
			candle := exchange.Candle{
				Symbol:   ev.Symbol,
				Interval: ev.Kline.Interval,
				OpenTime: time.UnixMilli(ev.Kline.StartTime),
				Open:     parseDecimal(ev.Kline.Open),
				High:     parseDecimal(ev.Kline.High),
				Low:      parseDecimal(ev.Kline.Low),
				Close:    parseDecimal(ev.Kline.Close),
				Volume:   parseDecimal(ev.Kline.Volume),
				Closed:   ev.Kline.Final,
			}
			select {
			case candles <- candle:
			case <-ctx.Done():
				return
			}
		}
	}()
	go closeOnDone(ctx, conn)
	return candles, errCh, nil
}

func (c *Client) dialMarketStream(ctx context.Context, stream string) (*websocket.Conn, error) {
	if c.marketWSURL == "" {
		return nil, errors.New("market ws base url required")
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.marketWSURL+"/ws/"+stream, nil)
	if err != nil {
		return nil, err
	}
	conn.SetPingHandler(func(appData string) error {
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(5*time.Second))
	})
	return conn, nil
}

func closeOnDone(ctx context.Context, conn *websocket.Conn) {
	<-ctx.Done()
	_ = conn.Close()
}
