package slack

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type staticOpener struct {
	url   string
	err   error
	mu    sync.Mutex
	calls int
}

func (o *staticOpener) OpenConnection(context.Context, string) (string, error) {
	o.mu.Lock()
	o.calls++
	o.mu.Unlock()
	return o.url, o.err
}

func (o *staticOpener) callCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.calls
}

type chanHandler chan *EventCallback

func (h chanHandler) DispatchEvent(_ context.Context, cb *EventCallback) Reply {
	h <- cb
	return Reply{Status: http.StatusOK}
}

func fastSocketConfig() *SocketModeConfig {
	return &SocketModeConfig{
		ReconnectDelay:    10 * time.Millisecond,
		MaxReconnectDelay: 50 * time.Millisecond,
		PingInterval:      time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      time.Second,
	}
}

func TestSocketMode_AcksAndDispatches(t *testing.T) {
	acks := make(chan string, 4)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		conn.WriteJSON(map[string]string{"type": "hello"})
		conn.WriteMessage(websocket.TextMessage, []byte(`{"envelope_id":"env-1","type":"events_api","payload":{"team_id":"T1","event":{"type":"message","channel":"C1","text":"btc price"}}}`))

		for {
			var a ack
			if err := conn.ReadJSON(&a); err != nil {
				return
			}
			acks <- a.EnvelopeID
		}
	}))
	defer server.Close()

	opener := &staticOpener{url: "ws" + strings.TrimPrefix(server.URL, "http")}
	events := make(chanHandler, 1)
	sm := NewSocketMode("xapp-1", opener, events, fastSocketConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sm.Run(ctx) }()

	select {
	case id := <-acks:
		assert.Equal(t, "env-1", id)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for ack")
	}

	select {
	case cb := <-events:
		assert.Equal(t, "T1", cb.TeamID)
		require.NotNil(t, cb.Event)
		assert.Equal(t, "btc price", cb.Event.Text)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for event")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestSocketMode_ReconnectsAfterDisconnect(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteJSON(map[string]string{"type": "disconnect", "reason": "refresh_requested"})
	}))
	defer server.Close()

	opener := &staticOpener{url: "ws" + strings.TrimPrefix(server.URL, "http")}
	sm := NewSocketMode("xapp-1", opener, make(chanHandler, 1), fastSocketConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sm.Run(ctx) }()

	require.Eventually(t, func() bool { return opener.callCount() >= 3 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

func TestSocketMode_OpenFailureRetries(t *testing.T) {
	opener := &staticOpener{err: errors.New("invalid_auth")}
	sm := NewSocketMode("xapp-1", opener, make(chanHandler, 1), fastSocketConfig(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	assert.NoError(t, sm.Run(ctx))
	assert.GreaterOrEqual(t, opener.callCount(), 2)
}

func TestSocketMode_DefaultConfig(t *testing.T) {
	sm := NewSocketMode("xapp-1", &staticOpener{}, make(chanHandler, 1), nil, nil)
	assert.Equal(t, DefaultSocketModeConfig(), sm.config)
}

func TestSocketMode_ZeroConfigUsesDefaults(t *testing.T) {
	sm := NewSocketMode("xapp-1", &staticOpener{}, make(chanHandler, 1), &SocketModeConfig{}, nil)
	assert.Equal(t, DefaultSocketModeConfig(), sm.config)

	sm = NewSocketMode("xapp-1", &staticOpener{}, make(chanHandler, 1), &SocketModeConfig{
		ReconnectDelay: -time.Second,
		PingInterval:   5 * time.Second,
	}, nil)
	def := DefaultSocketModeConfig()
	assert.Equal(t, def.ReconnectDelay, sm.config.ReconnectDelay)
	assert.Equal(t, 5*time.Second, sm.config.PingInterval)
	assert.Equal(t, def.ReadTimeout, sm.config.ReadTimeout)
}
