// Package config loads service settings from the environment, an optional
// .env file and an optional config file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all service settings. Keys map to upper-case environment
// variables of the same name (client_id -> CLIENT_ID).
type Config struct {
	Debug    bool   `mapstructure:"debug"`
	HTTPAddr string `mapstructure:"http_addr"`

	// Slack app credentials and bot presentation.
	ClientID          string `mapstructure:"client_id"`
	ClientSecret      string `mapstructure:"client_secret"`
	VerificationToken string `mapstructure:"verification_token"`
	Scope             string `mapstructure:"slack_api_scope"`
	BotName           string `mapstructure:"slack_bot_name"`
	BotIcon           string `mapstructure:"slack_bot_icon"`
	OAuthRedirect     string `mapstructure:"slack_bot_oauth_redir"`
	AppToken          string `mapstructure:"slack_app_token"`
	SlackAPIURL       string `mapstructure:"slack_api_url"`
	SlackOAuthURL     string `mapstructure:"slack_oauth_url"`
	NoRetryHeader     bool   `mapstructure:"slack_no_retry"`

	// Market data feed.
	MarketDataURL string        `mapstructure:"market_data_url"`
	CacheTTL      time.Duration `mapstructure:"cache_ttl"`
	HTTPTimeout   time.Duration `mapstructure:"http_timeout"`
	FetchRetries  int           `mapstructure:"fetch_retries"`
	FetchRate     float64       `mapstructure:"fetch_rate"`

	// Storage.
	RedisURL      string `mapstructure:"redis_url"`
	DatabaseURL   string `mapstructure:"database_url"`
	ClickhouseDSN string `mapstructure:"clickhouse_dsn"`
	UseMemory     bool   `mapstructure:"use_memory"`
	RunMigrations bool   `mapstructure:"run_migrations"`
}

// Defaults.
const (
	DefaultHTTPAddr      = ":8000"
	DefaultScope         = "bot"
	DefaultBotName       = "cryptoprice"
	DefaultBotIcon       = ":moneybag:"
	DefaultSlackAPIURL   = "https://slack.com/api/"
	DefaultSlackOAuthURL = "https://slack.com/oauth/authorize"
	DefaultMarketDataURL = "https://api.coinmarketcap.com/v1/"
	DefaultCacheTTL      = 600 * time.Second
	DefaultHTTPTimeout   = 10 * time.Second
	DefaultFetchRetries  = 2
	DefaultFetchRate     = 5.0
	DefaultRedisURL      = "redis://127.0.0.1:6379/0"
)

var keys = []string{
	"debug", "http_addr",
	"client_id", "client_secret", "verification_token",
	"slack_api_scope", "slack_bot_name", "slack_bot_icon", "slack_bot_oauth_redir",
	"slack_app_token", "slack_api_url", "slack_oauth_url", "slack_no_retry",
	"market_data_url", "cache_ttl", "http_timeout", "fetch_retries", "fetch_rate",
	"redis_url", "database_url", "clickhouse_dsn", "use_memory", "run_migrations",
}

// LoadDotEnv loads the given .env files (default ".env") into the process
// environment. Missing files are ignored; existing variables win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads settings from the environment and, when path is non-empty, from
// the config file at path. Environment variables override the file.
func Load(path string) (*Config, error) {
	v := viper.New()

	defaults := map[string]interface{}{
		"http_addr":       DefaultHTTPAddr,
		"slack_api_scope": DefaultScope,
		"slack_bot_name":  DefaultBotName,
		"slack_bot_icon":  DefaultBotIcon,
		"slack_api_url":   DefaultSlackAPIURL,
		"slack_oauth_url": DefaultSlackOAuthURL,
		"market_data_url": DefaultMarketDataURL,
		"cache_ttl":       DefaultCacheTTL,
		"http_timeout":    DefaultHTTPTimeout,
		"fetch_retries":   DefaultFetchRetries,
		"fetch_rate":      DefaultFetchRate,
		"redis_url":       DefaultRedisURL,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if !v.IsSet("slack_no_retry") {
		cfg.NoRetryHeader = cfg.Debug
	}

	return &cfg, nil
}

// Validate checks the settings the bot service needs to run.
func (c *Config) Validate() error {
	if c.ClientID == "" || c.ClientSecret == "" {
		return errors.New("CLIENT_ID and CLIENT_SECRET are required")
	}
	if c.VerificationToken == "" {
		return errors.New("VERIFICATION_TOKEN is required")
	}
	// A bare integer such as CACHE_TTL=600 decodes as nanoseconds.
	if c.CacheTTL < time.Second {
		return fmt.Errorf("cache_ttl %s is below 1s; durations need a unit, e.g. 600s", c.CacheTTL)
	}
	if c.HTTPTimeout < time.Second {
		return fmt.Errorf("http_timeout %s is below 1s; durations need a unit, e.g. 10s", c.HTTPTimeout)
	}
	if c.FetchRetries < 0 {
		return errors.New("invalid fetch_retries")
	}
	if c.FetchRate <= 0 {
		return errors.New("invalid fetch_rate")
	}
	if err := validateURL(c.MarketDataURL, "http"); err != nil {
		return fmt.Errorf("market_data_url: %w", err)
	}
	if err := validateURL(c.SlackAPIURL, "http"); err != nil {
		return fmt.Errorf("slack_api_url: %w", err)
	}
	if c.OAuthRedirect != "" {
		if err := validateURL(c.OAuthRedirect, "http"); err != nil {
			return fmt.Errorf("slack_bot_oauth_redir: %w", err)
		}
	}
	if !c.UseMemory {
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required unless use_memory is set")
		}
		if err := validateURL(c.RedisURL, "redis"); err != nil {
			return fmt.Errorf("redis_url: %w", err)
		}
	}
	return nil
}

func validateURL(rawURL, protocol string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, protocol) || parsed.Host == "" {
		return errors.New("invalid URL protocol")
	}
	return nil
}
