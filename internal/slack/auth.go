package slack

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/mr-tron/base58"
	"go.uber.org/zap"

	"crypto-price-bot/internal/domain"
	"crypto-price-bot/internal/observability"
	"crypto-price-bot/internal/storage"
)

// DefaultAuthorizeURL is the page a workspace admin is sent to for installing the bot.
const DefaultAuthorizeURL = "https://slack.com/oauth/authorize"

// AuthConfig holds the app credentials used by AuthorizationManager.
type AuthConfig struct {
	ClientID     string
	ClientSecret string
	Scope        string
	// RedirectURI, when set, is used verbatim instead of deriving one from the request.
	RedirectURI  string
	AuthorizeURL string
}

// OAuthExchanger performs the oauth.access call.
type OAuthExchanger interface {
	OAuthAccess(ctx context.Context, clientID, clientSecret, code, redirectURI string) (*OAuthResponse, error)
}

// AuthorizationManager exchanges OAuth codes for tokens and persists one Team
// per workspace. Safe for concurrent use.
type AuthorizationManager struct {
	cfg    AuthConfig
	api    OAuthExchanger
	teams  storage.TeamStore
	logger *zap.Logger
}

// NewAuthorizationManager creates an AuthorizationManager.
func NewAuthorizationManager(cfg AuthConfig, api OAuthExchanger, teams storage.TeamStore, logger *zap.Logger) *AuthorizationManager {
	if cfg.AuthorizeURL == "" {
		cfg.AuthorizeURL = DefaultAuthorizeURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthorizationManager{
		cfg:    cfg,
		api:    api,
		teams:  teams,
		logger: logger.Named("auth"),
	}
}

// Authorize exchanges code for tokens and upserts the team, returning its
// name. Exchange failures are *OAuthExchangeError and leave stored teams untouched.
func (m *AuthorizationManager) Authorize(ctx context.Context, code, redirectURI string) (string, error) {
	team, err := m.exchange(ctx, code, redirectURI)
	observability.RecordOAuthExchange(err)
	if err != nil {
		m.logger.Warn("oauth exchange failed", zap.Error(err))
		return "", err
	}

	if err := m.teams.Upsert(ctx, team); err != nil {
		return "", fmt.Errorf("save team %s: %w", team.SlackID, err)
	}

	m.logger.Info("team authorized",
		zap.String("team_id", team.SlackID),
		zap.String("team_name", team.Name))
	return team.Name, nil
}

func (m *AuthorizationManager) exchange(ctx context.Context, code, redirectURI string) (*domain.Team, error) {
	if strings.TrimSpace(code) == "" {
		return nil, &OAuthExchangeError{Reason: "missing code"}
	}

	resp, err := m.api.OAuthAccess(ctx, m.cfg.ClientID, m.cfg.ClientSecret, code, redirectURI)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			reason := apiErr.Code
			if apiErr.Err != nil {
				reason = apiErr.Err.Error()
			}
			return nil, &OAuthExchangeError{StatusCode: apiErr.StatusCode, Reason: reason, Err: err}
		}
		return nil, &OAuthExchangeError{Reason: err.Error(), Err: err}
	}
	if resp.TeamID == "" {
		return nil, &OAuthExchangeError{Reason: "response missing team_id"}
	}

	return &domain.Team{
		SlackID:        resp.TeamID,
		Name:           resp.TeamName,
		AccessToken:    resp.AccessToken,
		BotAccessToken: resp.Bot.BotAccessToken,
		BotUserID:      resp.Bot.BotUserID,
		Scope:          resp.Scope,
		Auth:           resp.Raw,
	}, nil
}

// GetTeam returns the stored team. A team that never authorized yields an
// error matching ErrTeamNotFound.
func (m *AuthorizationManager) GetTeam(ctx context.Context, teamID string) (*domain.Team, error) {
	team, err := m.teams.GetByID(ctx, teamID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrTeamNotFound, teamID)
		}
		return nil, fmt.Errorf("get team %s: %w", teamID, err)
	}
	return team, nil
}

// RedirectURI returns the configured redirect or scheme://host/thanks.
func (m *AuthorizationManager) RedirectURI(scheme, host string) string {
	if m.cfg.RedirectURI != "" {
		return m.cfg.RedirectURI
	}
	if scheme == "" {
		scheme = "http"
	}
	return (&url.URL{Scheme: scheme, Host: host, Path: "/thanks"}).String()
}

// InstallURL returns the authorize page URL that starts the OAuth flow.
func (m *AuthorizationManager) InstallURL(state, redirectURI string) string {
	q := url.Values{
		"client_id":    {m.cfg.ClientID},
		"scope":        {m.cfg.Scope},
		"redirect_uri": {redirectURI},
	}
	if state != "" {
		q.Set("state", state)
	}
	return m.cfg.AuthorizeURL + "?" + q.Encode()
}

// NewState returns a random base58 nonce for the OAuth state parameter.
func NewState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	return base58.Encode(b), nil
}
