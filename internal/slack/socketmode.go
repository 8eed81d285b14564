package slack

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"crypto-price-bot/internal/observability"
)

// Socket Mode envelope types.
const (
	envelopeHello      = "hello"
	envelopeDisconnect = "disconnect"
	envelopeEventsAPI  = "events_api"
)

var errDisconnectRequested = errors.New("server requested disconnect")

// SocketModeConfig configures the Socket Mode connection.
type SocketModeConfig struct {
	// ReconnectDelay is the initial delay before reconnecting.
	ReconnectDelay time.Duration
	// MaxReconnectDelay caps the exponential reconnect delay.
	MaxReconnectDelay time.Duration
	// PingInterval is the interval between client ping frames.
	PingInterval time.Duration
	// ReadTimeout is the maximum silence tolerated on the socket.
	ReadTimeout time.Duration
	// WriteTimeout bounds each acknowledgement write.
	WriteTimeout time.Duration
}

// DefaultSocketModeConfig returns default Socket Mode configuration.
func DefaultSocketModeConfig() SocketModeConfig {
	return SocketModeConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       90 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// ConnectionOpener obtains a fresh websocket URL.
type ConnectionOpener interface {
	OpenConnection(ctx context.Context, appToken string) (string, error)
}

// EventHandler handles an authenticated event.
type EventHandler interface {
	DispatchEvent(ctx context.Context, cb *EventCallback) Reply
}

type envelope struct {
	EnvelopeID string          `json:"envelope_id"`
	Type       string          `json:"type"`
	Reason     string          `json:"reason,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

type ack struct {
	EnvelopeID string `json:"envelope_id"`
}

// SocketMode receives events over a Socket Mode websocket instead of the
// public HTTP endpoint.
type SocketMode struct {
	appToken string
	opener   ConnectionOpener
	handler  EventHandler
	config   SocketModeConfig
	dialer   websocket.Dialer
	logger   *zap.Logger
}

// NewSocketMode creates a Socket Mode receiver. A nil config uses defaults.
func NewSocketMode(appToken string, opener ConnectionOpener, handler EventHandler, config *SocketModeConfig, logger *zap.Logger) *SocketMode {
	cfg := DefaultSocketModeConfig()
	if config != nil {
		def := cfg
		cfg = *config
		if cfg.ReconnectDelay <= 0 {
			cfg.ReconnectDelay = def.ReconnectDelay
		}
		if cfg.MaxReconnectDelay <= 0 {
			cfg.MaxReconnectDelay = def.MaxReconnectDelay
		}
		if cfg.PingInterval <= 0 {
			cfg.PingInterval = def.PingInterval
		}
		if cfg.ReadTimeout <= 0 {
			cfg.ReadTimeout = def.ReadTimeout
		}
		if cfg.WriteTimeout <= 0 {
			cfg.WriteTimeout = def.WriteTimeout
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SocketMode{
		appToken: appToken,
		opener:   opener,
		handler:  handler,
		config:   cfg,
		dialer:   websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		logger:   logger.Named("socketmode"),
	}
}

// Run connects and serves events until ctx is cancelled, reconnecting with
// exponential backoff. It returns nil on cancellation.
func (s *SocketMode) Run(ctx context.Context) error {
	delay := s.config.ReconnectDelay

	for {
		greeted, err := s.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if greeted {
			delay = s.config.ReconnectDelay
		}
		s.logger.Warn("socket session ended", zap.Error(err), zap.Duration("retry_in", delay))
		observability.RecordSocketReconnect()

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}

		delay *= 2
		if delay > s.config.MaxReconnectDelay {
			delay = s.config.MaxReconnectDelay
		}
	}
}

// session runs one connection. greeted reports whether a hello was received.
func (s *SocketMode) session(ctx context.Context) (greeted bool, err error) {
	wsURL, err := s.opener.OpenConnection(ctx, s.appToken)
	if err != nil {
		return false, fmt.Errorf("open connection: %w", err)
	}

	conn, _, err := s.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return false, fmt.Errorf("websocket dial: %w", err)
	}

	sessCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		conn.Close()
		wg.Wait()
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.pingLoop(sessCtx, conn)
	}()

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
	})

	for {
		conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			return greeted, fmt.Errorf("read: %w", err)
		}

		var env envelope
		if err := json.Unmarshal(message, &env); err != nil {
			s.logger.Warn("undecodable envelope", zap.Error(err))
			continue
		}

		if env.EnvelopeID != "" {
			conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
			if err := conn.WriteJSON(ack{EnvelopeID: env.EnvelopeID}); err != nil {
				return greeted, fmt.Errorf("write ack: %w", err)
			}
		}

		switch env.Type {
		case envelopeHello:
			greeted = true
			s.logger.Info("socket connected")
		case envelopeDisconnect:
			return greeted, fmt.Errorf("%w: %s", errDisconnectRequested, env.Reason)
		case envelopeEventsAPI:
			s.dispatch(sessCtx, env)
		default:
			s.logger.Debug("ignored envelope", zap.String("type", env.Type))
		}
	}
}

func (s *SocketMode) dispatch(ctx context.Context, env envelope) {
	var cb EventCallback
	if err := json.Unmarshal(env.Payload, &cb); err != nil {
		s.logger.Warn("undecodable event payload", zap.String("envelope_id", env.EnvelopeID), zap.Error(err))
		return
	}
	reply := s.handler.DispatchEvent(ctx, &cb)
	s.logger.Debug("event handled",
		zap.String("envelope_id", env.EnvelopeID),
		zap.Int("status", reply.Status))
}

// pingLoop keeps the connection alive and closes it when ctx ends, which
// unblocks the reader.
func (s *SocketMode) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.Close()
			return
		case <-ticker.C:
			deadline := time.Now().Add(s.config.WriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}
