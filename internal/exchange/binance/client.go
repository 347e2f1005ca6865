package binance

import (
	"context"
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

type AuthType int

const (
	AuthNone AuthType = iota
	AuthAPIKey
	AuthSigned
)

const (
	defaultRestBaseURL     = "https://api.binance.com"
	defaultWSBaseURL       = "wss://ws-api.binance.com:443/ws-api/v3"
	defaultMarketWSBaseURL = "wss://stream.binance.com:9443"
)

// Client talks to the Binance spot API. It implements exchange.Connection.
type Client struct {
	apiKey         string
	apiSecret      string
	baseURL        string
	wsBaseURL      string
	marketWSURL    string
	userStreamAuth string
	wsEd25519Key   ed25519.PrivateKey

	recvWindow time.Duration
	keepalive  time.Duration
	httpClient *http.Client
	log        *logrus.Entry
}

type Options struct {
	APIKey           string
	APISecret        string
	RestBaseURL      string
	WSBaseURL        string
	MarketWSBaseURL  string
	UserStreamAuth   string
	WSEd25519KeyPath string
	RecvWindowMs     int64
	HTTPTimeoutSec   int64
	KeepaliveSec     int64
	Logger           *logrus.Logger
}

func NewClient(opts Options) (*Client, error) {
	if opts.APIKey == "" || opts.APISecret == "" {
		return nil, errors.New("api_key/api_secret required")
	}
	timeout := 15 * time.Second
	if opts.HTTPTimeoutSec > 0 {
		timeout = time.Duration(opts.HTTPTimeoutSec) * time.Second
	}
	userStreamAuth := strings.ToLower(strings.TrimSpace(opts.UserStreamAuth))
	if userStreamAuth == "" {
		userStreamAuth = "signature"
	}
	baseURL := strings.TrimRight(opts.RestBaseURL, "/")
	if baseURL == "" {
		baseURL = defaultRestBaseURL
	}
	wsBaseURL := strings.TrimRight(opts.WSBaseURL, "/")
	if wsBaseURL == "" {
		wsBaseURL = defaultWSBaseURL
	}
	marketWSURL := strings.TrimRight(opts.MarketWSBaseURL, "/")
	if marketWSURL == "" {
		marketWSURL = defaultMarketWSBaseURL
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	c := &Client{
		apiKey:         opts.APIKey,
		apiSecret:      opts.APISecret,
		baseURL:        baseURL,
		wsBaseURL:      wsBaseURL,
		marketWSURL:    marketWSURL,
		userStreamAuth: userStreamAuth,
		recvWindow:     time.Duration(opts.RecvWindowMs) * time.Millisecond,
		keepalive:      time.Duration(opts.KeepaliveSec) * time.Second,
		httpClient:     &http.Client{Timeout: timeout},
		log:            logger.WithField("component", "binance"),
	}
	if c.userStreamAuth == "session" {
		key, err := loadEd25519PrivateKey(opts.WSEd25519KeyPath)
		if err != nil {
			return nil, err
		}
		c.wsEd25519Key = key
	}
	return c, nil
}

func (c *Client) Name() string { return "binance-spot" }

func (c *Client) Close() error { return nil }

func (c *Client) doRequest(ctx context.Context, method, path string, params url.Values, auth AuthType) ([]byte, error) {
	if params == nil {
		params = url.Values{}
	}
	if auth == AuthSigned {
		params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
		if c.recvWindow > 0 {
			params.Set("recvWindow", strconv.FormatInt(c.recvWindow.Milliseconds(), 10))
		}
		signature := sign(c.apiSecret, params.Encode())
		params.Set("signature", signature)
	}
	var (
		req *http.Request
		err error
	)
	urlStr := c.baseURL + path
	if method == http.MethodGet || method == http.MethodDelete {
		if encoded := params.Encode(); encoded != "" {
			urlStr += "?" + encoded
		}
		req, err = http.NewRequestWithContext(ctx, method, urlStr, nil)
	} else {
		body := params.Encode()
		req, err = http.NewRequestWithContext(ctx, method, urlStr, strings.NewReader(body))
	}
	if err != nil {
		return nil, err
	}
	if method != http.MethodGet && method != http.MethodDelete {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if auth == AuthAPIKey || auth == AuthSigned {
		req.Header.Set("X-MBX-APIKEY", c.apiKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		return nil, parseAPIError(resp.StatusCode, body)
	}
	return body, nil
}

func parseAPIError(status int, body []byte) error {
	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Msg != "" {
		return APIError{Code: apiErr.Code, Msg: apiErr.Msg}
	}
	return fmt.Errorf("binance http error %d: %s", status, strings.TrimSpace(string(body)))
}

func sign(secret, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
