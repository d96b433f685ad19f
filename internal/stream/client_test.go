package stream

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.PingInterval = 50 * time.Millisecond
	cfg.PongTimeout = 50 * time.Millisecond
	cfg.ReconnectDelay = 10 * time.Millisecond
	cfg.MaxReconnectDelay = 50 * time.Millisecond
	cfg.MaxReconnectAttempts = 3
	return &cfg
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestClient_SubscribesAndDeliversEvents(t *testing.T) {
	subscribed := make(chan string, 4)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		// Expect both subscription requests.
		for i := 0; i < 2; i++ {
			var req map[string]string
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			require.NoError(t, json.Unmarshal(raw, &req))
			subscribed <- req["method"]
		}

		conn.WriteJSON(map[string]any{
			"txType": "create",
			"mint":   "MintAddr1111111111111111111111111111111111",
			"symbol": "TT",
		})
		conn.WriteJSON(map[string]any{
			"txType": "migrate",
			"mint":   "MintAddr1111111111111111111111111111111111",
			"pool":   "Pool11111111111111111111111111111111111111",
		})

		// Keep the connection open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	client := NewClient(Options{
		Endpoint: wsURL(server),
		Config:   testConfig(),
		Logger:   log.New(testWriter{t}, "[stream] ", 0),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Run(ctx)

	methods := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case m := <-subscribed:
			methods[m] = true
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for subscriptions")
		}
	}
	assert.True(t, methods["subscribeNewToken"])
	assert.True(t, methods["subscribeMigration"])

	select {
	case ev := <-client.NewTokens():
		assert.Equal(t, "MintAddr1111111111111111111111111111111111", ev.Mint)
		assert.Equal(t, "TT", ev.Symbol)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for newToken event")
	}

	select {
	case ev := <-client.Migrations():
		assert.Equal(t, "Pool11111111111111111111111111111111111111", ev.PoolAddress)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for migration event")
	}
}

func TestClient_MalformedMessageKeepsConnectionAlive(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		for i := 0; i < 2; i++ {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}

		conn.WriteMessage(websocket.TextMessage, []byte(`{broken json`))
		conn.WriteJSON(map[string]any{
			"txType": "buy",
			"mint":   "MintAddr1111111111111111111111111111111111",
		})

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	client := NewClient(Options{
		Endpoint: wsURL(server),
		Config:   testConfig(),
		Logger:   log.New(testWriter{t}, "[stream] ", 0),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Run(ctx)

	// The swap after the malformed payload still arrives.
	select {
	case ev := <-client.Swaps():
		assert.Equal(t, "buy", ev.Side)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for swap after malformed message")
	}
}

func TestClient_ResubscribesAfterReconnect(t *testing.T) {
	var connects atomic.Int32
	subscriptions := make(chan string, 8)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)

		n := connects.Add(1)

		for i := 0; i < 2; i++ {
			var req map[string]string
			_, raw, err := conn.ReadMessage()
			if err != nil {
				conn.Close()
				return
			}
			require.NoError(t, json.Unmarshal(raw, &req))
			subscriptions <- req["method"]
		}

		if n == 1 {
			// Drop the first connection right after subscribing.
			conn.Close()
			return
		}

		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	client := NewClient(Options{
		Endpoint: wsURL(server),
		Config:   testConfig(),
		Logger:   log.New(testWriter{t}, "[stream] ", 0),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Run(ctx)

	// Two connections, two subscriptions each.
	var got []string
	for i := 0; i < 4; i++ {
		select {
		case m := <-subscriptions:
			got = append(got, m)
		case <-time.After(3 * time.Second):
			t.Fatalf("timed out; got %d subscription requests: %v", len(got), got)
		}
	}
	assert.GreaterOrEqual(t, connects.Load(), int32(2))
}

func TestClient_GivesUpAfterMaxAttempts(t *testing.T) {
	// Point at a server that is already gone.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	endpoint := wsURL(server)
	server.Close()

	client := NewClient(Options{
		Endpoint: endpoint,
		Config:   testConfig(),
		Logger:   log.New(testWriter{t}, "[stream] ", 0),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := client.Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGiveUp)

	// Event channels are closed on terminal exit.
	_, open := <-client.NewTokens()
	assert.False(t, open)
}

// testWriter routes client logs through the test log.
type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimSpace(string(p)))
	return len(p), nil
}
