package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"binance-broker/internal/account"
	"binance-broker/internal/config"
	"binance-broker/internal/core"
	"binance-broker/internal/exchange/binance"
)

var timeframes = map[string]core.Timeframe{
	"1m":  core.TimeframeM1,
	"3m":  core.TimeframeM3,
	"5m":  core.TimeframeM5,
	"15m": core.TimeframeM15,
	"30m": core.TimeframeM30,
	"1h":  core.TimeframeH1,
	"2h":  core.TimeframeH2,
	"4h":  core.TimeframeH4,
	"6h":  core.TimeframeH6,
	"12h": core.TimeframeH12,
	"1d":  core.TimeframeD1,
	"1w":  core.TimeframeW1,
	"1M":  core.TimeframeMN1,
}

func main() {
	var (
		configPath  string
		symbol      string
		timeframe   string
		withPeriods bool
	)
	flag.StringVar(&configPath, "config", "config/config.yaml", "config yaml path")
	flag.StringVar(&symbol, "symbol", "BTCUSDT", "symbol to watch")
	flag.StringVar(&timeframe, "timeframe", "1m", "period timeframe, e.g. 1m/5m/1h")
	flag.BoolVar(&withPeriods, "periods", true, "also stream closed candles")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		fatal(err.Error())
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		fatal("symbol is required")
	}
	tf, ok := timeframes[strings.TrimSpace(timeframe)]
	if !ok {
		fatal(fmt.Sprintf("unknown timeframe %q", timeframe))
	}

	logger := logrus.New()
	logger.SetLevel(cfg.LogLevel())

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticks, tickErrs, err := session.WatchTicks(ctx, symbol)
	if err != nil {
		fatal(err.Error())
	}
	var (
		periods    <-chan core.Period
		periodErrs <-chan error
	)
	if withPeriods {
		periods, periodErrs, err = session.WatchPeriods(ctx, symbol, tf)
		if err != nil {
			fatal(err.Error())
		}
	}

	fmt.Printf("watching symbol=%s timeframe=%s\n", symbol, timeframe)
	for {
		select {
		case tick, ok := <-ticks:
			if !ok {
				fmt.Println("tick stream closed")
				return
			}
			fmt.Printf("%s tick symbol=%s movement=%s bid=%s ask=%s\n",
				tick.At.Format(time.RFC3339), tick.Symbol, tick.Movement, tick.Bid.String(), tick.Ask.String())
		case period, ok := <-periods:
			if !ok {
				periods = nil
				continue
			}
			fmt.Printf("%s period symbol=%s open=%s high=%s low=%s close=%s volume=%s\n",
				period.StartedAt.Format(time.RFC3339), period.Symbol,
				period.Open.String(), period.High.String(), period.Low.String(),
				period.Close.String(), period.Volume.String())
		case err, ok := <-tickErrs:
			if ok && err != nil {
				fatal(err.Error())
			}
		case err, ok := <-periodErrs:
			if ok && err != nil {
				fatal(err.Error())
			}
		case <-ctx.Done():
			fmt.Println("stopped")
			return
		}
	}
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, strings.TrimSpace(msg))
	os.Exit(1)
}
