// Package server exposes the bot over HTTP: install page, OAuth callback,
// Events API endpoint, and the health, status and metrics endpoints.
package server

import (
	"context"
	"crypto/subtle"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"crypto-price-bot/internal/catalog"
	"crypto-price-bot/internal/observability"
	"crypto-price-bot/internal/slack"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// Default server settings.
const (
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
	DefaultMaxBodyBytes    = 1 << 20
	DefaultBotName         = "cryptoprice"

	stateCookie    = "oauth_state"
	stateCookieTTL = 10 * time.Minute
)

// Authorizer runs the OAuth install flow.
type Authorizer interface {
	Authorize(ctx context.Context, code, redirectURI string) (string, error)
	RedirectURI(scheme, host string) string
	InstallURL(state, redirectURI string) string
}

// EventHandler answers Events API request bodies.
type EventHandler interface {
	Handle(ctx context.Context, body []byte) slack.Reply
}

// IndexSource exposes the current catalog index for /status.
type IndexSource interface {
	Current() *catalog.Index
}

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Config holds HTTP server settings.
type Config struct {
	Addr            string
	BotName         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	MaxBodyBytes    int64
}

// Server routes HTTP requests to the bot components.
type Server struct {
	cfg     Config
	auth    Authorizer
	events  EventHandler
	index   IndexSource
	router  *mux.Router
	logger  *zap.Logger
	started time.Time

	checksMu sync.RWMutex
	checks   map[string]HealthCheck
}

// New creates a Server. index may be nil.
func New(cfg Config, auth Authorizer, events EventHandler, index IndexSource, logger *zap.Logger) *Server {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.BotName == "" {
		cfg.BotName = DefaultBotName
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		cfg:     cfg,
		auth:    auth,
		events:  events,
		index:   index,
		logger:  logger.Named("http"),
		started: time.Now(),
		checks:  make(map[string]HealthCheck),
	}
	s.router = s.routes()
	return s
}

// AddHealthCheck registers a dependency check reported by /status.
func (s *Server) AddHealthCheck(name string, check HealthCheck) {
	s.checksMu.Lock()
	defer s.checksMu.Unlock()
	s.checks[name] = check
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.metricsMiddleware, s.loggingMiddleware)

	r.HandleFunc("/", s.handleInstall).Methods(http.MethodGet)
	r.HandleFunc("/listening", s.handleListening).Methods(http.MethodPost)
	r.HandleFunc("/thanks", s.handleThanks).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	r.Handle("/metrics", observability.Handler()).Methods(http.MethodGet)

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", s.cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleInstall(w http.ResponseWriter, r *http.Request) {
	state, err := slack.NewState()
	if err != nil {
		s.logger.Error("state generation failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	scheme := requestScheme(r)
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   int(stateCookieTTL / time.Second),
		HttpOnly: true,
		Secure:   scheme == "https",
		SameSite: http.SameSiteLaxMode,
	})

	redirect := s.auth.RedirectURI(scheme, r.Host)
	s.render(w, "install.html", map[string]string{
		"BotName":    s.cfg.BotName,
		"InstallURL": s.auth.InstallURL(state, redirect),
	})
}

func (s *Server) handleListening(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		slack.Reply{Status: http.StatusBadRequest, Body: map[string]string{"error": "unreadable request body"}}.Write(w)
		return
	}
	s.events.Handle(r.Context(), body).Write(w)
}

func (s *Server) handleThanks(w http.ResponseWriter, r *http.Request) {
	if err := checkState(r); err != nil {
		s.logger.Warn("oauth callback rejected", zap.Error(err))
		http.Error(w, "Unable to authenticate!: "+err.Error(), http.StatusBadRequest)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Value: "", Path: "/", MaxAge: -1})

	code := r.URL.Query().Get("code")
	redirect := s.auth.RedirectURI(requestScheme(r), r.Host)

	teamName, err := s.auth.Authorize(r.Context(), code, redirect)
	if err != nil {
		s.logger.Error("oauth callback failed", zap.Error(err))
		http.Error(w, "Unable to authenticate!: "+err.Error(), http.StatusInternalServerError)
		return
	}

	s.render(w, "thanks.html", map[string]string{
		"BotName":  s.cfg.BotName,
		"TeamName": teamName,
	})
}

// checkState matches the state query parameter against the nonce cookie set
// by the install page.
func checkState(r *http.Request) error {
	state := r.URL.Query().Get("state")
	if state == "" {
		return errors.New("missing state")
	}
	c, err := r.Cookie(stateCookie)
	if err != nil || c.Value == "" {
		return errors.New("missing state cookie")
	}
	if subtle.ConstantTimeCompare([]byte(state), []byte(c.Value)) != 1 {
		return errors.New("state mismatch")
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// StatusResponse is the JSON response for /status.
type StatusResponse struct {
	Status         string            `json:"status"`
	Uptime         string            `json:"uptime"`
	Started        time.Time         `json:"started"`
	CatalogAssets  int               `json:"catalog_assets"`
	CatalogFetched *time.Time        `json:"catalog_fetched_at,omitempty"`
	TotalMarketCap float64           `json:"total_market_cap_usd"`
	Dependencies   map[string]string `json:"dependencies"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Status:       "running",
		Uptime:       time.Since(s.started).Round(time.Second).String(),
		Started:      s.started,
		Dependencies: make(map[string]string),
	}

	if s.index != nil {
		ix := s.index.Current()
		resp.CatalogAssets = ix.Len()
		resp.TotalMarketCap = ix.Snapshot.TotalMarketCapUSD
		if !ix.FetchedAt.IsZero() {
			fetched := ix.FetchedAt
			resp.CatalogFetched = &fetched
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	s.checksMu.RLock()
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := s.checks[name](ctx); err != nil {
			resp.Dependencies[name] = "down: " + err.Error()
			resp.Status = "degraded"
			continue
		}
		resp.Dependencies[name] = "up"
	}
	s.checksMu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) render(w http.ResponseWriter, name string, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pages.ExecuteTemplate(w, name, data); err != nil {
		s.logger.Error("render failed", zap.String("template", name), zap.Error(err))
	}
}

// requestScheme honours X-Forwarded-Proto from a TLS-terminating proxy.
func requestScheme(r *http.Request) string {
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		return proto
	}
	if r.TLS != nil {
		return "https"
	}
	return "http"
}
