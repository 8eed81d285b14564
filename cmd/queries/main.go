// Package main prints the price queries a workspace asked the bot.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"crypto-price-bot/internal/config"
	"crypto-price-bot/internal/domain"
	chstore "crypto-price-bot/internal/storage/clickhouse"
)

func main() {
	team := flag.String("team", "", "Slack team id")
	since := flag.Duration("since", 24*time.Hour, "Look-back window")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string (overrides CLICKHOUSE_DSN)")
	flag.Parse()

	if *team == "" {
		fmt.Fprintln(os.Stderr, "Error: --team is required")
		os.Exit(1)
	}

	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *clickhouseDSN != "" {
		cfg.ClickhouseDSN = *clickhouseDSN
	}
	if cfg.ClickhouseDSN == "" {
		fmt.Fprintln(os.Stderr, "Error: --clickhouse-dsn or CLICKHOUSE_DSN is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	conn, err := chstore.NewConn(ctx, cfg.ClickhouseDSN)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	end := time.Now()
	queries, err := chstore.NewPriceQueryStore(conn).GetByTeam(ctx, *team, end.Add(-*since).UnixMilli(), end.UnixMilli())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	printQueries(os.Stdout, queries)
}

func printQueries(w io.Writer, queries []*domain.PriceQuery) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tCHANNEL\tUSER\tSYMBOLS\tDELIVERED\tTEXT")
	for _, q := range queries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\t%s\n",
			time.UnixMilli(q.CreatedAt).UTC().Format(time.RFC3339),
			q.Channel, q.User, strings.Join(q.Symbols, ","), q.Delivered, q.Text)
	}
	tw.Flush()
	fmt.Fprintf(w, "%d queries\n", len(queries))
}
