// Package main fetches the market feeds once and prints the global summary
// and the top assets, or the bot's reply for a message.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"crypto-price-bot/internal/catalog"
	"crypto-price-bot/internal/config"
	"crypto-price-bot/internal/domain"
	"crypto-price-bot/internal/logging"
	"crypto-price-bot/internal/marketdata"
	"crypto-price-bot/internal/resolver"
	"crypto-price-bot/internal/slack"
	"crypto-price-bot/internal/storage/memory"
)

func main() {
	top := flag.Int("top", 10, "Number of assets to list")
	query := flag.String("query", "", "Print the bot reply for this message text instead of the table")
	baseURL := flag.String("market-data-url", "", "Market data API base URL (overrides MARKET_DATA_URL)")
	timeout := flag.Duration("timeout", 30*time.Second, "Overall timeout")
	flag.Parse()

	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *baseURL != "" {
		cfg.MarketDataURL = *baseURL
	}

	logger, err := logging.New(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	fetcher := marketdata.NewHTTPClient(
		marketdata.WithTimeout(cfg.HTTPTimeout),
		marketdata.WithMaxRetries(cfg.FetchRetries),
		marketdata.WithLogger(logger),
	)
	cache := marketdata.NewCache(memory.NewCacheStore(), fetcher, cfg.CacheTTL, logger)
	cat := catalog.New(cache, cfg.MarketDataURL, logger)

	if *query != "" {
		assets, err := resolver.New(cat).Resolve(ctx, *query)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if len(assets) == 0 {
			fmt.Println("no tickers matched")
			return
		}
		fmt.Println(slack.FormatAssets(assets))
		return
	}

	if err := cat.Refresh(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	printSummary(os.Stdout, cat.Snapshot())
	printAssets(os.Stdout, cat.Assets(), *top)
}

func printSummary(w io.Writer, s domain.Snapshot) {
	fmt.Fprintf(w, "Total market cap:   $%s\n", decimal.NewFromFloat(s.TotalMarketCapUSD).StringFixed(0))
	fmt.Fprintf(w, "24h volume:         $%s\n", decimal.NewFromFloat(s.Total24hVolumeUSD).StringFixed(0))
	fmt.Fprintf(w, "BTC dominance:      %.2f%%\n", s.BitcoinPercentageOfMarketCap)
	fmt.Fprintf(w, "Active currencies:  %d\n", s.ActiveCurrencies)
	fmt.Fprintf(w, "Active assets:      %d\n", s.ActiveAssets)
	fmt.Fprintf(w, "Active markets:     %d\n", s.ActiveMarkets)
	if s.LastUpdated > 0 {
		fmt.Fprintf(w, "Last updated:       %s\n", time.Unix(s.LastUpdated, 0).UTC().Format(time.RFC3339))
	}
	fmt.Fprintln(w)
}

func printAssets(w io.Writer, assets []domain.AssetRecord, top int) {
	if top > 0 && len(assets) > top {
		assets = assets[:top]
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "RANK\tSYMBOL\tNAME\tPRICE USD\t1H %\t24H %\t7D %\t")
	for _, a := range assets {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%.2f\t%.2f\t%.2f\t\n",
			a.Rank, a.Symbol, a.Name, a.PriceUSD.StringFixed(2),
			a.PercentChange1h, a.PercentChange24h, a.PercentChange7d)
	}
	tw.Flush()
}
