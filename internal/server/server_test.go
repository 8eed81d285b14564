package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crypto-price-bot/internal/catalog"
	"crypto-price-bot/internal/domain"
	"crypto-price-bot/internal/slack"
)

type stubAuth struct {
	team     string
	err      error
	codes    []string
	redirect string
}

func (a *stubAuth) Authorize(_ context.Context, code, redirectURI string) (string, error) {
	a.codes = append(a.codes, code)
	a.redirect = redirectURI
	return a.team, a.err
}

func (a *stubAuth) RedirectURI(scheme, host string) string {
	return scheme + "://" + host + "/thanks"
}

func (a *stubAuth) InstallURL(state, redirectURI string) string {
	return "https://slack.example/oauth?state=" + state + "&redirect_uri=" + redirectURI
}

type stubEvents struct {
	body  []byte
	reply slack.Reply
}

func (e *stubEvents) Handle(_ context.Context, body []byte) slack.Reply {
	e.body = body
	return e.reply
}

type stubIndex struct{ ix *catalog.Index }

func (s stubIndex) Current() *catalog.Index { return s.ix }

func newTestServer(auth *stubAuth, events *stubEvents) *Server {
	ix := catalog.NewIndex(
		domain.Snapshot{TotalMarketCapUSD: 1e12},
		[]domain.AssetRecord{{ID: "bitcoin", Symbol: "BTC"}},
		time.Unix(1700000000, 0))
	return New(Config{Addr: ":0"}, auth, events, stubIndex{ix}, nil)
}

func TestInstallPage(t *testing.T) {
	s := newTestServer(&stubAuth{}, &stubEvents{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = "bot.example"
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	body := rec.Body.String()
	assert.Contains(t, body, "Add to Slack")
	assert.Contains(t, body, "https://slack.example/oauth?state=")
	assert.Contains(t, body, "http://bot.example/thanks")

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, stateCookie, c.Name)
	assert.NotEmpty(t, c.Value)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	assert.Contains(t, body, "state="+c.Value)
}

func TestListening_PassesBodyAndWritesReply(t *testing.T) {
	events := &stubEvents{reply: slack.Reply{Status: http.StatusForbidden, Body: "Invalid Slack verification token", NoRetry: true}}
	s := newTestServer(&stubAuth{}, events)

	payload := `{"token":"x","event":{"type":"message"}}`
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/listening", strings.NewReader(payload)))

	assert.Equal(t, payload, string(events.body))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-Slack-No-Retry"))
	assert.Equal(t, "Invalid Slack verification token", rec.Body.String())
}

func TestListening_GetNotAllowed(t *testing.T) {
	s := newTestServer(&stubAuth{}, &stubEvents{})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/listening", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestThanks_Authorized(t *testing.T) {
	auth := &stubAuth{team: "Acme"}
	s := newTestServer(auth, &stubEvents{})

	req := httptest.NewRequest(http.MethodGet, "/thanks?code=abc&state=s1", nil)
	req.AddCookie(&http.Cookie{Name: stateCookie, Value: "s1"})
	req.Host = "bot.example"
	req.Header.Set("X-Forwarded-Proto", "https")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Acme")
	assert.Equal(t, []string{"abc"}, auth.codes)
	assert.Equal(t, "https://bot.example/thanks", auth.redirect)
}

func TestThanks_ExchangeFailure(t *testing.T) {
	auth := &stubAuth{err: &slack.OAuthExchangeError{Reason: "invalid_code"}}
	s := newTestServer(auth, &stubEvents{})

	req := httptest.NewRequest(http.MethodGet, "/thanks?code=bad&state=s1", nil)
	req.AddCookie(&http.Cookie{Name: stateCookie, Value: "s1"})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "Unable to authenticate!: "))
	assert.Contains(t, rec.Body.String(), "invalid_code")
}

func TestThanks_RejectsBadState(t *testing.T) {
	tests := []struct {
		name   string
		target string
		cookie string
		want   string
	}{
		{"missing state", "/thanks?code=abc", "s1", "missing state"},
		{"missing cookie", "/thanks?code=abc&state=s1", "", "missing state cookie"},
		{"mismatched state", "/thanks?code=abc&state=attacker", "s1", "state mismatch"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth := &stubAuth{team: "Acme"}
			s := newTestServer(auth, &stubEvents{})

			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: stateCookie, Value: tt.cookie})
			}
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.True(t, strings.HasPrefix(rec.Body.String(), "Unable to authenticate!: "))
			assert.Contains(t, rec.Body.String(), tt.want)
			assert.Empty(t, auth.codes, "code must not be exchanged")
		})
	}
}

func TestInstallThenThanks_StateRoundTrip(t *testing.T) {
	auth := &stubAuth{team: "Acme"}
	s := newTestServer(auth, &stubEvents{})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)

	req := httptest.NewRequest(http.MethodGet, "/thanks?code=abc&state="+cookies[0].Value, nil)
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"abc"}, auth.codes)
}

func TestHealth(t *testing.T) {
	s := newTestServer(&stubAuth{}, &stubEvents{})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestStatus_ReportsCatalogAndDependencies(t *testing.T) {
	s := newTestServer(&stubAuth{}, &stubEvents{})
	s.AddHealthCheck("postgres", func(context.Context) error { return nil })
	s.AddHealthCheck("redis", func(context.Context) error { return errors.New("connection refused") })

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, 1, resp.CatalogAssets)
	assert.Equal(t, 1e12, resp.TotalMarketCap)
	require.NotNil(t, resp.CatalogFetched)
	assert.Equal(t, "up", resp.Dependencies["postgres"])
	assert.Equal(t, "down: connection refused", resp.Dependencies["redis"])
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(&stubAuth{}, &stubEvents{})
	s.Handler().ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `crypto_price_bot_http_requests_total{code="200",method="GET",route="/health"}`)
}

func TestRun_ShutsDownOnCancel(t *testing.T) {
	s := New(Config{Addr: "127.0.0.1:0"}, &stubAuth{}, &stubEvents{}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
}

func TestServerEndToEnd(t *testing.T) {
	events := &stubEvents{reply: slack.Reply{Status: http.StatusOK, Body: map[string]string{"challenge": "c"}}}
	ts := httptest.NewServer(newTestServer(&stubAuth{}, events).Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/listening", "application/json", strings.NewReader(`{"challenge":"c"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"challenge":"c"}`, string(body))
}
