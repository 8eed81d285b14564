// Package main runs the price bot: the HTTP endpoints for install, OAuth and
// the Events API, plus the optional Socket Mode receiver.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"crypto-price-bot/internal/catalog"
	"crypto-price-bot/internal/config"
	"crypto-price-bot/internal/logging"
	"crypto-price-bot/internal/marketdata"
	"crypto-price-bot/internal/observability"
	"crypto-price-bot/internal/resolver"
	"crypto-price-bot/internal/server"
	"crypto-price-bot/internal/slack"
)

func main() {
	configPath := flag.String("config", "", "Optional config file (yaml, json or toml)")
	envFile := flag.String("env-file", ".env", "Environment file loaded before reading config")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of Postgres and Redis")
	migrate := flag.Bool("migrate", false, "Apply database migrations on startup")
	addr := flag.String("addr", "", "HTTP listen address (overrides HTTP_ADDR)")

	flag.Parse()

	if err := config.LoadDotEnv(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "env: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *useMemory {
		cfg.UseMemory = true
	}
	if *migrate {
		cfg.RunMigrations = true
	}
	if *addr != "" {
		cfg.HTTPAddr = *addr
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	observability.MarkStart()

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	fetcher := marketdata.NewHTTPClient(
		marketdata.WithTimeout(cfg.HTTPTimeout),
		marketdata.WithMaxRetries(cfg.FetchRetries),
		marketdata.WithRateLimit(cfg.FetchRate),
		marketdata.WithLogger(logger),
	)
	cache := marketdata.NewCache(st.cache, fetcher, cfg.CacheTTL, logger)
	cat := catalog.New(cache, cfg.MarketDataURL, logger)

	api := slack.NewClient(
		slack.WithAPIURL(cfg.SlackAPIURL),
		slack.WithTimeout(cfg.HTTPTimeout),
	)
	auth := slack.NewAuthorizationManager(slack.AuthConfig{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Scope:        cfg.Scope,
		RedirectURI:  cfg.OAuthRedirect,
		AuthorizeURL: cfg.SlackOAuthURL,
	}, api, st.teams, logger)
	delivery := slack.NewDelivery(slack.DeliveryConfig{
		BotName:   cfg.BotName,
		IconEmoji: cfg.BotIcon,
	}, auth, api, logger)

	var opts []slack.DispatcherOption
	if st.queries != nil {
		opts = append(opts, slack.WithQueryLog(st.queries))
	}
	dispatcher := slack.NewDispatcher(slack.DispatcherConfig{
		VerificationToken: cfg.VerificationToken,
		NoRetryHeader:     cfg.NoRetryHeader,
	}, resolver.New(cat), delivery, logger, opts...)

	srv := server.New(server.Config{Addr: cfg.HTTPAddr, BotName: cfg.BotName}, auth, dispatcher, cat, logger)
	for name, check := range st.checks {
		srv.AddHealthCheck(name, check)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})
	if cfg.AppToken != "" {
		sm := slack.NewSocketMode(cfg.AppToken, api, dispatcher, nil, logger)
		g.Go(func() error {
			return sm.Run(gctx)
		})
	}

	// Warm the catalog; a failure here is retried by the first price message.
	g.Go(func() error {
		if err := cat.Refresh(gctx); err != nil {
			logger.Warn("initial catalog refresh failed", zap.Error(err))
		}
		return nil
	})

	logger.Info("price bot started",
		zap.String("addr", cfg.HTTPAddr),
		zap.Bool("memory", cfg.UseMemory),
		zap.Bool("socket_mode", cfg.AppToken != ""))

	return g.Wait()
}
