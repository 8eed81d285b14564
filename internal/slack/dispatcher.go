package slack

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"crypto-price-bot/internal/domain"
	"crypto-price-bot/internal/observability"
	"crypto-price-bot/internal/storage"
)

// Reply texts.
const (
	msgInvalidToken = "Invalid Slack verification token"
	msgNoEvent      = "[NO EVENT IN SLACK REQUEST] These are not the droids you're looking for."
)

// Reply is the transport-neutral answer to an inbound event. A string Body
// is sent as text/plain, anything else as JSON.
type Reply struct {
	Status  int
	Body    interface{}
	NoRetry bool
}

// Write renders the reply onto w.
func (r Reply) Write(w http.ResponseWriter) {
	if r.NoRetry {
		w.Header().Set("X-Slack-No-Retry", "1")
	}
	if text, ok := r.Body.(string); ok {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(r.Status)
		_, _ = w.Write([]byte(text))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(r.Status)
	_ = json.NewEncoder(w).Encode(r.Body)
}

// TickerResolver resolves the assets named in message text.
type TickerResolver interface {
	Resolve(ctx context.Context, text string) ([]domain.AssetRecord, error)
}

// Deliverer posts resolved assets to a channel.
type Deliverer interface {
	Deliver(ctx context.Context, teamID, channel string, assets []domain.AssetRecord) (*PostMessageResponse, error)
}

// DispatcherConfig holds the verification settings.
type DispatcherConfig struct {
	VerificationToken string
	// NoRetryHeader adds X-Slack-No-Retry: 1 to rejection replies.
	NoRetryHeader bool
}

// DispatcherOption configures Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithQueryLog records every handled price message in store.
func WithQueryLog(store storage.PriceQueryStore) DispatcherOption {
	return func(d *Dispatcher) {
		d.queries = store
	}
}

// Dispatcher verifies inbound events and routes them by type.
type Dispatcher struct {
	cfg       DispatcherConfig
	resolver  TickerResolver
	deliverer Deliverer
	queries   storage.PriceQueryStore
	now       func() time.Time
	logger    *zap.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(cfg DispatcherConfig, resolver TickerResolver, deliverer Deliverer, logger *zap.Logger, opts ...DispatcherOption) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dispatcher{
		cfg:       cfg,
		resolver:  resolver,
		deliverer: deliverer,
		now:       time.Now,
		logger:    logger.Named("dispatcher"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Handle processes a raw Events API request body: challenge echo, token
// verification, then dispatch.
func (d *Dispatcher) Handle(ctx context.Context, body []byte) Reply {
	var cb EventCallback
	if err := json.Unmarshal(body, &cb); err != nil {
		d.logger.Debug("malformed event body", zap.Error(err))
		return d.record("", Reply{Status: http.StatusBadRequest, Body: map[string]string{"error": "malformed request body"}})
	}

	if cb.Challenge != nil {
		return d.record("url_verification", Reply{Status: http.StatusOK, Body: map[string]json.RawMessage{"challenge": cb.Challenge}})
	}

	if err := d.verify(cb.Token); err != nil {
		d.logger.Warn("rejected event", zap.String("team_id", cb.TeamID), zap.Error(err))
		return d.record("", Reply{Status: http.StatusForbidden, Body: msgInvalidToken, NoRetry: d.cfg.NoRetryHeader})
	}

	return d.DispatchEvent(ctx, &cb)
}

// DispatchEvent routes an already-authenticated event. Socket Mode payloads
// enter here directly.
func (d *Dispatcher) DispatchEvent(ctx context.Context, cb *EventCallback) Reply {
	if cb.Event == nil {
		return d.record("", Reply{Status: http.StatusNotFound, Body: msgNoEvent, NoRetry: d.cfg.NoRetryHeader})
	}

	ev := cb.Event
	if ev.Type == EventTypeMessage && strings.Contains(strings.ToLower(ev.Text), "price") {
		return d.record(ev.Type, d.handlePrice(ctx, cb.TeamID, ev))
	}

	return d.record(ev.Type, Reply{
		Status: http.StatusOK,
		Body:   map[string]string{"message": fmt.Sprintf("no handler for event type %s", ev.Type)},
	})
}

func (d *Dispatcher) verify(token string) error {
	if d.cfg.VerificationToken == "" ||
		subtle.ConstantTimeCompare([]byte(token), []byte(d.cfg.VerificationToken)) != 1 {
		return ErrVerificationMismatch
	}
	return nil
}

func (d *Dispatcher) handlePrice(ctx context.Context, teamID string, ev *InnerEvent) Reply {
	log := d.logger.With(
		zap.String("team_id", teamID),
		zap.String("channel", ev.Channel),
		zap.String("user", ev.User))

	assets, err := d.resolver.Resolve(ctx, ev.Text)
	if err != nil {
		log.Error("ticker resolution failed", zap.Error(err))
		return Reply{Status: http.StatusInternalServerError, Body: map[string]string{"error": err.Error()}, NoRetry: d.cfg.NoRetryHeader}
	}
	observability.RecordTickersResolved(len(assets))

	if len(assets) == 0 {
		d.logQuery(ctx, teamID, ev, assets, false)
		return Reply{Status: http.StatusOK, Body: map[string]string{"message": "no tickers matched"}}
	}

	delivered := true
	if _, err := d.deliverer.Deliver(ctx, teamID, ev.Channel, assets); err != nil {
		log.Error("reply not delivered", zap.Error(err))
		delivered = false
	}
	d.logQuery(ctx, teamID, ev, assets, delivered)

	return Reply{Status: http.StatusOK, Body: map[string]string{}}
}

func (d *Dispatcher) logQuery(ctx context.Context, teamID string, ev *InnerEvent, assets []domain.AssetRecord, delivered bool) {
	if d.queries == nil {
		return
	}

	symbols := make([]string, len(assets))
	for i, a := range assets {
		symbols[i] = a.Symbol
	}

	q := &domain.PriceQuery{
		ID:        uuid.NewString(),
		TeamID:    teamID,
		Channel:   ev.Channel,
		User:      ev.User,
		Text:      ev.Text,
		Symbols:   symbols,
		Delivered: delivered,
		CreatedAt: d.now().UnixMilli(),
	}
	if err := d.queries.Insert(ctx, q); err != nil {
		d.logger.Warn("price query not recorded", zap.String("id", q.ID), zap.Error(err))
	}
}

// Event types outside this set share the "other" metric label so that
// client-supplied strings cannot grow the label space.
var metricEventTypes = map[string]bool{
	"":                 true,
	EventTypeMessage:   true,
	"url_verification": true,
}

func (d *Dispatcher) record(eventType string, r Reply) Reply {
	if !metricEventTypes[eventType] {
		eventType = "other"
	}
	observability.RecordEvent(eventType, r.Status)
	return r
}
