package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
exchange:
  api_key: k
  api_secret: s
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mode != ModeTestnet {
		t.Fatalf("mode = %q, want testnet default", cfg.Mode)
	}
	if cfg.Exchange.RestBaseURL != "https://testnet.binance.vision" {
		t.Fatalf("rest_base_url = %q", cfg.Exchange.RestBaseURL)
	}
	if cfg.Exchange.MarketWSBaseURL != "wss://stream.testnet.binance.vision" {
		t.Fatalf("market_ws_base_url = %q", cfg.Exchange.MarketWSBaseURL)
	}
	if cfg.Exchange.UserStreamAuth != UserStreamAuthSignature {
		t.Fatalf("user_stream_auth = %q", cfg.Exchange.UserStreamAuth)
	}
	if cfg.Exchange.RecvWindowMs != 5000 {
		t.Fatalf("recv_window_ms = %d", cfg.Exchange.RecvWindowMs)
	}
	if cfg.Account.PrimaryAsset != "USDT" {
		t.Fatalf("primary_asset = %q", cfg.Account.PrimaryAsset)
	}
	if cfg.Account.ClientOrderPrefix != "bb" {
		t.Fatalf("client_order_prefix = %q", cfg.Account.ClientOrderPrefix)
	}
	if cfg.LogLevel() != logrus.InfoLevel {
		t.Fatalf("log level = %s", cfg.LogLevel())
	}
}

func TestLoadLiveModeURLs(t *testing.T) {
	path := writeConfig(t, `
mode: live
exchange:
  api_key: k
  api_secret: s
account:
  primary_asset: usdt
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Exchange.RestBaseURL != "https://api.binance.com" {
		t.Fatalf("rest_base_url = %q", cfg.Exchange.RestBaseURL)
	}
	if cfg.Account.PrimaryAsset != "USDT" {
		t.Fatalf("primary_asset = %q, want upper-cased", cfg.Account.PrimaryAsset)
	}
}

func TestLoadExpandsSecretPlaceholders(t *testing.T) {
	t.Setenv("TEST_BROKER_KEY", "key-from-env")
	t.Setenv("TEST_BROKER_SECRET", "secret-from-env")
	path := writeConfig(t, `
exchange:
  api_key: ${TEST_BROKER_KEY}
  api_secret: ${TEST_BROKER_SECRET}
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Exchange.APIKey != "key-from-env" || cfg.Exchange.APISecret != "secret-from-env" {
		t.Fatalf("secrets = %q/%q, want env values", cfg.Exchange.APIKey, cfg.Exchange.APISecret)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, `
exchange:
  api_key: k
  api_secret: s
  surprise: true
`)
	if _, err := Load(path); err == nil {
		t.Fatal("want error for unknown field")
	}
}

func TestLoadRejectsMultipleDocuments(t *testing.T) {
	path := writeConfig(t, `
exchange:
  api_key: k
  api_secret: s
---
mode: live
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "single YAML document") {
		t.Fatalf("error = %v, want single-document complaint", err)
	}
}

func TestValidateFailures(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"bad mode", "mode: paper\nexchange:\n  api_key: k\n  api_secret: s\n", "mode must be"},
		{"missing credentials", "mode: live\n", "api_key/api_secret"},
		{"session auth without key", "exchange:\n  api_key: k\n  api_secret: s\n  user_stream_auth: session\n", "ed25519"},
		{"bad recv window", "exchange:\n  api_key: k\n  api_secret: s\n  recv_window_ms: 90000\n", "recv_window_ms"},
		{"bad primary asset", "exchange:\n  api_key: k\n  api_secret: s\naccount:\n  primary_asset: x\n", "primary_asset"},
		{"bad log level", "exchange:\n  api_key: k\n  api_secret: s\nlog:\n  level: shouting\n", "log level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.body)
			_, err := Load(path)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error = %v, want mention of %q", err, tt.want)
			}
		})
	}
}
