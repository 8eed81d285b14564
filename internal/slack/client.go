// Package slack talks to Slack: OAuth install, inbound events, Socket Mode
// and message delivery.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Default configuration values.
const (
	DefaultAPIURL  = "https://slack.com/api/"
	DefaultTimeout = 10 * time.Second

	maxResponseSize = 1 << 20
)

// Client calls the Slack Web API methods the bot needs.
type Client struct {
	apiURL string
	client *http.Client
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// WithAPIURL overrides the Web API base URL.
func WithAPIURL(apiURL string) ClientOption {
	return func(c *Client) {
		if !strings.HasSuffix(apiURL, "/") {
			apiURL += "/"
		}
		c.apiURL = apiURL
	}
}

// NewClient creates a Web API client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		apiURL: DefaultAPIURL,
		client: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OAuthResponse is the result of oauth.access.
type OAuthResponse struct {
	OK          bool   `json:"ok"`
	Error       string `json:"error,omitempty"`
	AccessToken string `json:"access_token"`
	Scope       string `json:"scope"`
	UserID      string `json:"user_id"`
	TeamName    string `json:"team_name"`
	TeamID      string `json:"team_id"`
	Bot         struct {
		BotUserID      string `json:"bot_user_id"`
		BotAccessToken string `json:"bot_access_token"`
	} `json:"bot"`

	// Raw is the response body as received.
	Raw json.RawMessage `json:"-"`
}

// PostMessageRequest is the body of chat.postMessage.
type PostMessageRequest struct {
	AsUser    bool   `json:"as_user"`
	Channel   string `json:"channel"`
	Username  string `json:"username"`
	IconEmoji string `json:"icon_emoji"`
	Text      string `json:"text"`
}

// PostMessageResponse is the result of chat.postMessage.
type PostMessageResponse struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
	Channel string `json:"channel"`
	TS      string `json:"ts"`
}

type connectionsOpenResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	URL   string `json:"url"`
}

// OAuthAccess exchanges a one-time code for tokens. Failures are *APIError.
func (c *Client) OAuthAccess(ctx context.Context, clientID, clientSecret, code, redirectURI string) (*OAuthResponse, error) {
	form := url.Values{
		"client_id":     {clientID},
		"client_secret": {clientSecret},
		"code":          {code},
		"redirect_uri":  {redirectURI},
	}
	req, err := c.newRequest(ctx, "oauth.access", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var resp OAuthResponse
	body, err := c.do(req, "oauth.access", &resp)
	if err != nil {
		return nil, err
	}
	if !resp.OK || resp.Error != "" {
		return nil, &APIError{Method: "oauth.access", StatusCode: http.StatusOK, Code: errorCode(resp.Error)}
	}
	resp.Raw = body
	return &resp, nil
}

// PostMessage posts msg with token as the bearer credential. Failures are *APIError.
func (c *Client) PostMessage(ctx context.Context, token string, msg PostMessageRequest) (*PostMessageResponse, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal message: %w", err)
	}
	req, err := c.newRequest(ctx, "chat.postMessage", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+token)

	var resp PostMessageResponse
	if _, err := c.do(req, "chat.postMessage", &resp); err != nil {
		return nil, err
	}
	if !resp.OK {
		return nil, &APIError{Method: "chat.postMessage", StatusCode: http.StatusOK, Code: errorCode(resp.Error)}
	}
	return &resp, nil
}

// OpenConnection requests a Socket Mode websocket URL using an app-level token.
func (c *Client) OpenConnection(ctx context.Context, appToken string) (string, error) {
	req, err := c.newRequest(ctx, "apps.connections.open", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+appToken)

	var resp connectionsOpenResponse
	if _, err := c.do(req, "apps.connections.open", &resp); err != nil {
		return "", err
	}
	if !resp.OK || resp.URL == "" {
		return "", &APIError{Method: "apps.connections.open", StatusCode: http.StatusOK, Code: errorCode(resp.Error)}
	}
	return resp.URL, nil
}

func (c *Client) newRequest(ctx context.Context, method string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+method, body)
	if err != nil {
		return nil, &APIError{Method: method, Err: fmt.Errorf("create request: %w", err)}
	}
	return req, nil
}

// do sends req and decodes a 2xx body into out. It returns the raw body.
func (c *Client) do(req *http.Request, method string, out interface{}) ([]byte, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &APIError{Method: method, Err: fmt.Errorf("http request: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &APIError{Method: method, StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{Method: method, StatusCode: resp.StatusCode, Code: truncate(strings.TrimSpace(string(body)), 200)}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return nil, &APIError{Method: method, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return body, nil
}

func errorCode(code string) string {
	if code == "" {
		return "not ok"
	}
	return code
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
