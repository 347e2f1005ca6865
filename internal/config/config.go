package config

import (
	"bytes"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

type Mode string

type UserStreamAuth string

const (
	ModeTestnet Mode = "testnet"
	ModeLive    Mode = "live"
)

const (
	UserStreamAuthSignature UserStreamAuth = "signature"
	UserStreamAuthSession   UserStreamAuth = "session"
)

type Config struct {
	Mode     Mode           `yaml:"mode"`
	Exchange ExchangeConfig `yaml:"exchange"`
	Account  AccountConfig  `yaml:"account"`
	Log      LogConfig      `yaml:"log"`
}

type ExchangeConfig struct {
	APIKey                 string         `yaml:"api_key"`
	APISecret              string         `yaml:"api_secret"`
	RestBaseURL            string         `yaml:"rest_base_url"`
	WSBaseURL              string         `yaml:"ws_base_url"`
	MarketWSBaseURL        string         `yaml:"market_ws_base_url"`
	UserStreamAuth         UserStreamAuth `yaml:"user_stream_auth"`
	WSEd25519KeyPath       string         `yaml:"ws_ed25519_private_key_path"`
	RecvWindowMs           int64          `yaml:"recv_window_ms"`
	HTTPTimeoutSec         int64          `yaml:"http_timeout_sec"`
	UserStreamKeepaliveSec int64          `yaml:"user_stream_keepalive_sec"`
}

type AccountConfig struct {
	PrimaryAsset      string `yaml:"primary_asset"`
	ClientOrderPrefix string `yaml:"client_order_prefix"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return Config{}, fmt.Errorf("config must contain a single YAML document")
		}
		return Config{}, err
	}
	cfg.normalize()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.Mode = Mode(strings.ToLower(strings.TrimSpace(string(c.Mode))))
	c.Exchange.APIKey = expandSecret(strings.TrimSpace(c.Exchange.APIKey))
	c.Exchange.APISecret = expandSecret(strings.TrimSpace(c.Exchange.APISecret))
	c.Exchange.RestBaseURL = strings.TrimSpace(c.Exchange.RestBaseURL)
	c.Exchange.WSBaseURL = strings.TrimSpace(c.Exchange.WSBaseURL)
	c.Exchange.MarketWSBaseURL = strings.TrimSpace(c.Exchange.MarketWSBaseURL)
	c.Exchange.WSEd25519KeyPath = expandSecret(strings.TrimSpace(c.Exchange.WSEd25519KeyPath))
	c.Exchange.UserStreamAuth = UserStreamAuth(strings.ToLower(strings.TrimSpace(string(c.Exchange.UserStreamAuth))))
	c.Account.PrimaryAsset = strings.ToUpper(strings.TrimSpace(c.Account.PrimaryAsset))
	c.Account.ClientOrderPrefix = strings.TrimSpace(c.Account.ClientOrderPrefix)
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
}

func (c *Config) applyDefaults() {
	if c.Mode == "" {
		c.Mode = ModeTestnet
	}
	if c.Exchange.UserStreamAuth == "" {
		c.Exchange.UserStreamAuth = UserStreamAuthSignature
	}
	if c.Exchange.RecvWindowMs == 0 {
		c.Exchange.RecvWindowMs = 5000
	}
	if c.Exchange.HTTPTimeoutSec == 0 {
		c.Exchange.HTTPTimeoutSec = 15
	}
	if c.Exchange.UserStreamKeepaliveSec == 0 {
		c.Exchange.UserStreamKeepaliveSec = 30
	}
	if c.Exchange.RestBaseURL == "" {
		switch c.Mode {
		case ModeTestnet:
			c.Exchange.RestBaseURL = "https://testnet.binance.vision"
		case ModeLive:
			c.Exchange.RestBaseURL = "https://api.binance.com"
		}
	}
	if c.Exchange.WSBaseURL == "" {
		switch c.Mode {
		case ModeTestnet:
			c.Exchange.WSBaseURL = "wss://ws-api.testnet.binance.vision/ws-api/v3"
		case ModeLive:
			c.Exchange.WSBaseURL = "wss://ws-api.binance.com:443/ws-api/v3"
		}
	}
	if c.Exchange.MarketWSBaseURL == "" {
		switch c.Mode {
		case ModeTestnet:
			c.Exchange.MarketWSBaseURL = "wss://stream.testnet.binance.vision"
		case ModeLive:
			c.Exchange.MarketWSBaseURL = "wss://stream.binance.com:9443"
		}
	}
	if c.Account.PrimaryAsset == "" {
		c.Account.PrimaryAsset = "USDT"
	}
	if c.Account.ClientOrderPrefix == "" {
		c.Account.ClientOrderPrefix = "bb"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func (c Config) Validate() error {
	switch c.Mode {
	case ModeTestnet, ModeLive:
	default:
		return fmt.Errorf("mode must be testnet or live")
	}
	if c.Exchange.APIKey == "" || c.Exchange.APISecret == "" {
		return fmt.Errorf("exchange api_key/api_secret are required")
	}
	if c.Exchange.RecvWindowMs < 1 || c.Exchange.RecvWindowMs > 60000 {
		return fmt.Errorf("exchange recv_window_ms must be between 1 and 60000")
	}
	if c.Exchange.HTTPTimeoutSec < 1 || c.Exchange.HTTPTimeoutSec > 120 {
		return fmt.Errorf("exchange http_timeout_sec must be between 1 and 120")
	}
	if c.Exchange.UserStreamKeepaliveSec < 1 || c.Exchange.UserStreamKeepaliveSec > 3600 {
		return fmt.Errorf("exchange user_stream_keepalive_sec must be between 1 and 3600")
	}
	if err := validateURL(c.Exchange.RestBaseURL, "http", "https"); err != nil {
		return fmt.Errorf("exchange rest_base_url %v", err)
	}
	if err := validateURL(c.Exchange.WSBaseURL, "ws", "wss"); err != nil {
		return fmt.Errorf("exchange ws_base_url %v", err)
	}
	if err := validateURL(c.Exchange.MarketWSBaseURL, "ws", "wss"); err != nil {
		return fmt.Errorf("exchange market_ws_base_url %v", err)
	}
	if c.Exchange.UserStreamAuth != UserStreamAuthSignature && c.Exchange.UserStreamAuth != UserStreamAuthSession {
		return fmt.Errorf("exchange user_stream_auth must be signature or session")
	}
	if c.Exchange.UserStreamAuth == UserStreamAuthSession && c.Exchange.WSEd25519KeyPath == "" {
		return fmt.Errorf("exchange ws_ed25519_private_key_path is required for session auth")
	}
	if !isValidAsset(c.Account.PrimaryAsset) {
		return fmt.Errorf("account primary_asset must match [A-Z0-9], length 2..10")
	}
	if !isValidClientOrderPrefix(c.Account.ClientOrderPrefix) {
		return fmt.Errorf("account client_order_prefix must match [A-Za-z0-9_-], length 1..12")
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log level %q is not valid", c.Log.Level)
	}
	return nil
}

// LogLevel returns the parsed logrus level; Validate guarantees it parses.
func (c Config) LogLevel() logrus.Level {
	level, err := logrus.ParseLevel(c.Log.Level)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

// expandSecret resolves a ${NAME} placeholder against the environment, so
// secrets can stay out of the config file.
func expandSecret(v string) string {
	if strings.HasPrefix(v, "${") && strings.HasSuffix(v, "}") {
		return os.Getenv(v[2 : len(v)-1])
	}
	return v
}

func isValidAsset(v string) bool {
	if len(v) < 2 || len(v) > 10 {
		return false
	}
	for _, r := range v {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			continue
		}
		return false
	}
	return true
}

func isValidClientOrderPrefix(v string) bool {
	if len(v) < 1 || len(v) > 12 {
		return false
	}
	for _, r := range v {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			continue
		}
		return false
	}
	return true
}

func validateURL(raw string, schemes ...string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("must be a valid URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("must include scheme and host")
	}
	for _, s := range schemes {
		if parsed.Scheme == s {
			return nil
		}
	}
	return fmt.Errorf("scheme must be %s", strings.Join(schemes, " or "))
}
