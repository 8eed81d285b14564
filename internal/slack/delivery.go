package slack

import (
	"context"

	"go.uber.org/zap"

	"crypto-price-bot/internal/domain"
	"crypto-price-bot/internal/observability"
)

// Defaults for the bot's presentation.
const (
	DefaultBotName   = "cryptoprice"
	DefaultIconEmoji = ":moneybag:"
)

// TeamLookup returns a team's stored credentials.
type TeamLookup interface {
	GetTeam(ctx context.Context, teamID string) (*domain.Team, error)
}

// MessagePoster posts a chat message with a bearer token.
type MessagePoster interface {
	PostMessage(ctx context.Context, token string, msg PostMessageRequest) (*PostMessageResponse, error)
}

// DeliveryConfig controls how replies are presented.
type DeliveryConfig struct {
	BotName   string
	IconEmoji string
	AsUser    bool
}

// Delivery formats resolved assets and posts them with the team's bot token.
type Delivery struct {
	cfg    DeliveryConfig
	teams  TeamLookup
	poster MessagePoster
	logger *zap.Logger
}

// NewDelivery creates a Delivery.
func NewDelivery(cfg DeliveryConfig, teams TeamLookup, poster MessagePoster, logger *zap.Logger) *Delivery {
	if cfg.BotName == "" {
		cfg.BotName = DefaultBotName
	}
	if cfg.IconEmoji == "" {
		cfg.IconEmoji = DefaultIconEmoji
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Delivery{
		cfg:    cfg,
		teams:  teams,
		poster: poster,
		logger: logger.Named("delivery"),
	}
}

// Deliver posts the formatted assets to channel. A missing team or a failed
// post is returned as *DeliveryError; nothing is retried.
func (d *Delivery) Deliver(ctx context.Context, teamID, channel string, assets []domain.AssetRecord) (*PostMessageResponse, error) {
	team, err := d.teams.GetTeam(ctx, teamID)
	if err != nil {
		observability.RecordDelivery(err)
		return nil, &DeliveryError{TeamID: teamID, Channel: channel, Err: err}
	}

	msg := PostMessageRequest{
		AsUser:    d.cfg.AsUser,
		Channel:   channel,
		Username:  d.cfg.BotName,
		IconEmoji: d.cfg.IconEmoji,
		Text:      FormatAssets(assets),
	}

	resp, err := d.poster.PostMessage(ctx, team.BotAccessToken, msg)
	observability.RecordDelivery(err)
	if err != nil {
		return nil, &DeliveryError{TeamID: teamID, Channel: channel, Err: err}
	}

	d.logger.Debug("reply posted",
		zap.String("team_id", teamID),
		zap.String("channel", channel),
		zap.String("ts", resp.TS),
		zap.Int("assets", len(assets)))
	return resp, nil
}
