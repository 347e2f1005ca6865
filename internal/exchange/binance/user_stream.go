package binance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"binance-broker/internal/exchange"
)

// UserUpdates opens one push-event subscription and delivers every
// executionReport as an exchange.OrderUpdate. The channels close when the
// connection dies or ctx is cancelled; the caller owns reconnecting.
func (c *Client) UserUpdates(ctx context.Context) (<-chan exchange.OrderUpdate, <-chan error, error) {
	conn, err := c.dialUserStream(ctx)
	if err != nil {
		return nil, nil, err
	}

	updates := make(chan exchange.OrderUpdate)
	errCh := make(chan error, 4)
	done := make(chan struct{})

	reportErr := func(err error) {
		if err == nil {
			return
		}
		select {
		case errCh <- err:
		default:
		}
	}

	readTimeout := 45 * time.Second
	if c.keepalive > 0 {
		readTimeout = c.keepalive * 3
		if readTimeout < 30*time.Second {
			readTimeout = 30 * time.Second
		}
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	go func() {
		defer close(done)
		defer close(updates)
		defer conn.Close()

		for {
			_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
			_, data, err := conn.ReadMessage()
			if err != nil {
				reportErr(err)
				return
			}
			if len(data) == 0 || isWSResponse(data) {
				continue
			}
			var report executionReport
			if err := json.Unmarshal(data, &report); err != nil {
				continue
			}
			if report.EventType != "executionReport" {
				continue
			}
			select {
			case updates <- report.toOrderUpdate():
			case <-ctx.Done():
				return
			}
		}
	}()

	if c.keepalive > 0 {
		go func() {
			ticker := time.NewTicker(c.keepalive)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
						reportErr(err)
						_ = conn.Close()
						return
					}
				case <-done:
					return
				case <-ctx.Done():
					_ = conn.Close()
					return
				}
			}
		}()
	}

	return updates, errCh, nil
}

func (c *Client) dialUserStream(ctx context.Context) (*websocket.Conn, error) {
	if c.wsBaseURL == "" {
		return nil, errors.New("ws base url required")
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.wsBaseURL, nil)
	if err != nil {
		return nil, err
	}
	if c.userStreamAuth == "session" {
		if err := c.sessionLogon(ctx, conn); err != nil {
			_ = conn.Close()
			return nil, err
		}
		if _, err := sendWSRequest(ctx, conn, "userDataStream.subscribe", nil); err != nil {
			_ = conn.Close()
			return nil, err
		}
		return conn, nil
	}
	params, err := c.userStreamParams()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if _, err := sendWSRequest(ctx, conn, "userDataStream.subscribe.signature", params); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}

func (c *Client) userStreamParams() (map[string]interface{}, error) {
	if c.apiKey == "" || c.apiSecret == "" {
		return nil, errors.New("api_key/api_secret required")
	}
	if c.userStreamAuth != "signature" {
		return nil, fmt.Errorf("unsupported user stream auth: %s", c.userStreamAuth)
	}
	ts := time.Now().UnixMilli()
	values := url.Values{}
	values.Set("apiKey", c.apiKey)
	values.Set("timestamp", strconv.FormatInt(ts, 10))
	if c.recvWindow > 0 {
		values.Set("recvWindow", strconv.FormatInt(c.recvWindow.Milliseconds(), 10))
	}
	signature := sign(c.apiSecret, values.Encode())
	params := map[string]interface{}{
		"apiKey":    c.apiKey,
		"timestamp": ts,
		"signature": signature,
	}
	if c.recvWindow > 0 {
		params["recvWindow"] = c.recvWindow.Milliseconds()
	}
	return params, nil
}

func (c *Client) sessionLogon(ctx context.Context, conn *websocket.Conn) error {
	if c.apiKey == "" {
		return errors.New("api_key required")
	}
	if c.wsEd25519Key == nil {
		return errors.New("ed25519 key not loaded")
	}
	ts := time.Now().UnixMilli()
	values := url.Values{}
	values.Set("apiKey", c.apiKey)
	values.Set("timestamp", strconv.FormatInt(ts, 10))
	if c.recvWindow > 0 {
		values.Set("recvWindow", strconv.FormatInt(c.recvWindow.Milliseconds(), 10))
	}
	signature := signEd25519(values.Encode(), c.wsEd25519Key)
	params := map[string]interface{}{
		"apiKey":    c.apiKey,
		"timestamp": ts,
		"signature": signature,
	}
	if c.recvWindow > 0 {
		params["recvWindow"] = c.recvWindow.Milliseconds()
	}
	_, err := sendWSRequest(ctx, conn, "session.logon", params)
	return err
}
