package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"binance-broker/internal/account"
	"binance-broker/internal/config"
	"binance-broker/internal/core"
	"binance-broker/internal/exchange/binance"
)

type checkStatus string

const (
	statusPass checkStatus = "PASS"
	statusFail checkStatus = "FAIL"
)

type checkResult struct {
	Name       string      `json:"name"`
	Status     checkStatus `json:"status"`
	DurationMs int64       `json:"duration_ms"`
	Detail     string      `json:"detail,omitempty"`
	Error      string      `json:"error,omitempty"`
}

type report struct {
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Mode       config.Mode   `json:"mode"`
	Symbol     string        `json:"symbol"`
	Checks     []checkResult `json:"checks"`
}

func main() {
	var (
		configPath   string
		symbol       string
		timeoutSec   int
		streamWait   int
		outJSONPath  string
		allowLiveRun bool
		withOrder    bool
	)
	flag.StringVar(&configPath, "config", "config/config.yaml", "config yaml path")
	flag.StringVar(&symbol, "symbol", "BTCUSDT", "symbol the checks run against")
	flag.IntVar(&timeoutSec, "timeout-sec", 120, "total timeout seconds")
	flag.IntVar(&streamWait, "stream-wait-sec", 8, "wait seconds for the user stream check")
	flag.StringVar(&outJSONPath, "out-json", "", "optional output report path")
	flag.BoolVar(&allowLiveRun, "allow-live", false, "allow running checks when mode=live")
	flag.BoolVar(&withOrder, "order", false, "run the order lifecycle round trip")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		fatal(err.Error())
	}
	if cfg.Mode == config.ModeLive && !allowLiveRun {
		fatal("mode=live blocked by default; set -allow-live=true to continue")
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		fatal("symbol is required")
	}
	if timeoutSec < 30 {
		timeoutSec = 30
	}
	if streamWait < 3 {
		streamWait = 3
	}

	logger := logrus.New()
	logger.SetLevel(cfg.LogLevel())

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSec)*time.Second)
	defer cancel()

	client, err := binance.NewClient(binance.Options{
		APIKey:           cfg.Exchange.APIKey,
		APISecret:        cfg.Exchange.APISecret,
		RestBaseURL:      cfg.Exchange.RestBaseURL,
		WSBaseURL:        cfg.Exchange.WSBaseURL,
		MarketWSBaseURL:  cfg.Exchange.MarketWSBaseURL,
		UserStreamAuth:   string(cfg.Exchange.UserStreamAuth),
		WSEd25519KeyPath: cfg.Exchange.WSEd25519KeyPath,
		RecvWindowMs:     cfg.Exchange.RecvWindowMs,
		HTTPTimeoutSec:   cfg.Exchange.HTTPTimeoutSec,
		KeepaliveSec:     cfg.Exchange.UserStreamKeepaliveSec,
		Logger:           logger,
	})
	if err != nil {
		fatal(err.Error())
	}

	session := account.NewSession(account.Params{
		Connection:        client,
		Mapper:            binance.SpotMapper{},
		PrimaryAsset:      cfg.Account.PrimaryAsset,
		ClientOrderPrefix: cfg.Account.ClientOrderPrefix,
		Log:               logrus.NewEntry(logger),
	})
	defer session.Close()

	r := report{
		StartedAt: time.Now().UTC(),
		Mode:      cfg.Mode,
		Symbol:    symbol,
	}

	run := func(name string, fn func() (string, error)) {
		start := time.Now()
		detail, err := fn()
		cr := checkResult{
			Name:       name,
			DurationMs: time.Since(start).Milliseconds(),
			Detail:     detail,
		}
		if err != nil {
			cr.Status = statusFail
			cr.Error = err.Error()
		} else {
			cr.Status = statusPass
		}
		r.Checks = append(r.Checks, cr)
		if cr.Status == statusPass {
			fmt.Printf("[PASS] %s (%dms)", name, cr.DurationMs)
			if cr.Detail != "" {
				fmt.Printf(" - %s", cr.Detail)
			}
			fmt.Println()
		} else {
			fmt.Printf("[FAIL] %s (%dms) - %s\n", name, cr.DurationMs, cr.Error)
		}
	}

	run("session_preload", func() (string, error) {
		if err := session.Preload(ctx); err != nil {
			return "", err
		}
		sym, err := session.Symbol(ctx, symbol)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("symbol=%s base=%s quote=%s minVolume=%s step=%s",
			sym.Symbol, sym.BaseAsset, sym.QuoteAsset, sym.MinVolume.String(), sym.VolumeStep.String()), nil
	})

	run("book_ticker", func() (string, error) {
		bid, err := session.SymbolBid(ctx, symbol)
		if err != nil {
			return "", err
		}
		ask, err := session.SymbolAsk(ctx, symbol)
		if err != nil {
			return "", err
		}
		if bid.IsZero() || ask.IsZero() {
			return "", errors.New("empty book ticker")
		}
		return fmt.Sprintf("bid=%s ask=%s", bid.String(), ask.String()), nil
	})

	run("balance_sheet", func() (string, error) {
		sheet, err := session.BalanceSheet(ctx)
		if err != nil {
			return "", err
		}
		equity, err := session.Equity(ctx)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("assets=%d equity=%s %s", len(sheet), equity.String(), cfg.Account.PrimaryAsset), nil
	})

	run("user_stream_subscribe", func() (string, error) {
		cctx, ccancel := context.WithTimeout(ctx, time.Duration(streamWait)*time.Second)
		defer ccancel()
		updates, errs, err := client.UserUpdates(cctx)
		if err != nil {
			return "", err
		}
		count := 0
		for {
			select {
			case <-cctx.Done():
				if errors.Is(cctx.Err(), context.DeadlineExceeded) {
					return fmt.Sprintf("no stream errors during %ds window events=%d", streamWait, count), nil
				}
				return "", cctx.Err()
			case _, ok := <-updates:
				if !ok {
					return "", errors.New("update channel closed unexpectedly")
				}
				count++
			case err, ok := <-errs:
				if ok && err != nil {
					return "", err
				}
			}
		}
	})

	if withOrder {
		run("order_lifecycle_round_trip", func() (string, error) {
			return runOrderRoundTrip(ctx, session, symbol)
		})
	}

	r.FinishedAt = time.Now().UTC()
	printSummary(r)

	if outJSONPath != "" {
		if err := writeReport(outJSONPath, r); err != nil {
			fatal(err.Error())
		}
		fmt.Printf("report written: %s\n", outJSONPath)
	}

	for _, c := range r.Checks {
		if c.Status == statusFail {
			os.Exit(1)
		}
	}
}

// runOrderRoundTrip places a tiny limit buy far below market so it rests,
// waits for the resolver to settle on the pending acknowledgement and then
// cancels it.
func runOrderRoundTrip(ctx context.Context, session *account.Session, symbol string) (string, error) {
	sym, err := session.Symbol(ctx, symbol)
	if err != nil {
		return "", err
	}
	bid, err := session.SymbolBid(ctx, symbol)
	if err != nil {
		return "", err
	}
	if bid.IsZero() {
		return "", errors.New("missing bid price")
	}
	price := bid.Mul(decimal.RequireFromString("0.5")).RoundDown(2)
	volume := sym.MinVolume
	if sym.VolumeStep.IsZero() || volume.IsZero() {
		return "", errors.New("symbol has no lot constraints")
	}

	resolver, err := session.PlaceOrder(ctx, core.OrderDirectives{
		Symbol: symbol,
		Side:   core.Buy,
		Volume: volume,
		Limit:  &price,
	})
	if err != nil {
		return "", err
	}
	ord, err := resolver.Wait(ctx)
	if err != nil {
		return "", err
	}
	status := ord.Status()
	if status == core.OrderRejected {
		return "", fmt.Errorf("order rejected: %s", ord.Rejection())
	}
	if status == core.OrderPending {
		ord.Cancel(ctx)
	}
	return fmt.Sprintf("id=%s clientId=%s price=%s volume=%s status=%s",
		ord.ID(), ord.ClientOrderID(), price.String(), volume.String(), ord.Status()), nil
}

func printSummary(r report) {
	pass := 0
	fail := 0
	for _, c := range r.Checks {
		if c.Status == statusPass {
			pass++
		} else {
			fail++
		}
	}
	fmt.Printf("\nsummary mode=%s symbol=%s pass=%d fail=%d duration=%s\n",
		r.Mode,
		r.Symbol,
		pass,
		fail,
		r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String(),
	)
}

func writeReport(path string, r report) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, strings.TrimSpace(msg))
	os.Exit(1)
}
