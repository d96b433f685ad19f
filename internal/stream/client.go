// Package stream maintains the single upstream WebSocket connection and
// turns raw feed payloads into typed domain events.
package stream

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Shillz96/solsim-sub011/internal/domain"
	"github.com/Shillz96/solsim-sub011/internal/observability"
)

// ErrGiveUp is the terminal error after exhausting reconnect attempts.
var ErrGiveUp = errors.New("stream: giving up after repeated connect failures")

// Config configures stream client behavior.
type Config struct {
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// PongTimeout is how long to wait for a pong before the socket is
	// treated as half-open and forcibly terminated.
	PongTimeout time.Duration
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// MaxReconnectAttempts is the number of consecutive failed connects
	// tolerated before giving up.
	MaxReconnectAttempts int
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// HandshakeTimeout is timeout for the connection handshake.
	HandshakeTimeout time.Duration
}

// DefaultConfig returns default stream configuration.
func DefaultConfig() Config {
	return Config{
		PingInterval:         30 * time.Second,
		PongTimeout:          10 * time.Second,
		ReconnectDelay:       1 * time.Second,
		MaxReconnectDelay:    60 * time.Second,
		MaxReconnectAttempts: 10,
		WriteTimeout:         10 * time.Second,
		HandshakeTimeout:     10 * time.Second,
	}
}

// subscription payloads re-issued after every (re)connect.
var subscribeRequests = []map[string]string{
	{"method": "subscribeNewToken"},
	{"method": "subscribeMigration"},
}

// Client owns exactly one live connection to the upstream event source.
type Client struct {
	endpoint string
	config   Config
	logger   *log.Logger
	metrics  *observability.Metrics

	conn   *websocket.Conn
	connMu sync.Mutex

	lastPong atomic.Int64 // Unix nano of last pong received

	newTokens  chan *domain.NewTokenEvent
	migrations chan *domain.MigrationEvent
	swaps      chan *domain.SwapEvent
	newPools   chan *domain.NewPoolEvent
}

// Options contains configuration for creating a Client.
type Options struct {
	Endpoint string
	Config   *Config
	Logger   *log.Logger
	Metrics  *observability.Metrics
}

// NewClient creates a stream client. The connection is established by Run.
func NewClient(opts Options) *Client {
	cfg := DefaultConfig()
	if opts.Config != nil {
		cfg = *opts.Config
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Client{
		endpoint:   opts.Endpoint,
		config:     cfg,
		logger:     logger,
		metrics:    opts.Metrics,
		newTokens:  make(chan *domain.NewTokenEvent, 1024),
		migrations: make(chan *domain.MigrationEvent, 256),
		swaps:      make(chan *domain.SwapEvent, 4096),
		newPools:   make(chan *domain.NewPoolEvent, 256),
	}
}

// NewTokens returns the channel of normalized token creation events.
func (c *Client) NewTokens() <-chan *domain.NewTokenEvent { return c.newTokens }

// Migrations returns the channel of normalized migration events.
func (c *Client) Migrations() <-chan *domain.MigrationEvent { return c.migrations }

// Swaps returns the channel of normalized trade events.
func (c *Client) Swaps() <-chan *domain.SwapEvent { return c.swaps }

// NewPools returns the channel of normalized pool creation events.
func (c *Client) NewPools() <-chan *domain.NewPoolEvent { return c.newPools }

// Run connects and consumes the feed until ctx is cancelled or reconnects
// are exhausted. On exhaustion it returns ErrGiveUp; the host process
// decides whether that is fatal. Event channels are closed on return.
func (c *Client) Run(ctx context.Context) error {
	defer func() {
		close(c.newTokens)
		close(c.migrations)
		close(c.swaps)
		close(c.newPools)
	}()

	delay := c.config.ReconnectDelay
	failures := 0

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := c.connect(ctx); err != nil {
			failures++
			if c.metrics != nil {
				c.metrics.StreamReconnects.Inc()
			}
			if failures >= c.config.MaxReconnectAttempts {
				c.logger.Printf("connect failed %d times, giving up: %v", failures, err)
				return fmt.Errorf("%w: last error: %v", ErrGiveUp, err)
			}

			c.logger.Printf("connect failed (attempt %d/%d), retrying in %s: %v",
				failures, c.config.MaxReconnectAttempts, delay, err)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}

			delay *= 2
			if delay > c.config.MaxReconnectDelay {
				delay = c.config.MaxReconnectDelay
			}
			continue
		}

		// Connected and subscribed.
		failures = 0
		delay = c.config.ReconnectDelay

		err := c.consume(ctx)
		c.closeConn()

		if ctx.Err() != nil {
			return ctx.Err()
		}

		c.logger.Printf("connection lost, reconnecting: %v", err)
	}
}

// connect dials the endpoint and re-issues all subscription requests.
// Subscriptions do not survive a reconnect upstream, so this must happen
// on every connect.
func (c *Client) connect(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: c.config.HandshakeTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	c.lastPong.Store(time.Now().UnixNano())
	conn.SetPongHandler(func(string) error {
		c.lastPong.Store(time.Now().UnixNano())
		return nil
	})

	for _, req := range subscribeRequests {
		conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
		if err := conn.WriteJSON(req); err != nil {
			conn.Close()
			return fmt.Errorf("write subscribe %v: %w", req, err)
		}
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()

	c.logger.Printf("connected to %s, subscriptions issued", c.endpoint)
	return nil
}

// consume reads messages until the connection dies. Runs the heartbeat
// alongside; either one failing tears the connection down.
func (c *Client) consume(ctx context.Context) error {
	hbCtx, cancelHB := context.WithCancel(ctx)
	defer cancelHB()

	go c.heartbeat(hbCtx)

	for {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()
		if conn == nil {
			return errors.New("connection closed")
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read message: %w", err)
		}

		c.dispatch(ctx, raw)
	}
}

// dispatch decodes one payload and routes it to the matching channel.
// Malformed or unrecognized payloads are logged and dropped; a single bad
// message never costs the connection.
func (c *Client) dispatch(ctx context.Context, raw []byte) {
	msg, err := DecodeMessage(raw, time.Now().UnixMilli())
	if err != nil {
		if c.metrics != nil {
			c.metrics.StreamMessagesDropped.Inc()
		}
		c.logger.Printf("dropping message: %v", err)
		return
	}

	if c.metrics != nil {
		c.metrics.StreamMessagesReceived.Inc()
	}

	switch msg.Kind {
	case KindInfo:
		// Subscription acks and feed chatter.
	case KindNewToken:
		send(ctx, c.newTokens, msg.NewToken)
	case KindMigration:
		send(ctx, c.migrations, msg.Migration)
	case KindSwap:
		send(ctx, c.swaps, msg.Swap)
	case KindNewPool:
		send(ctx, c.newPools, msg.NewPool)
	}
}

// send blocks rather than dropping events; the channel buffers absorb
// bursts.
func send[T any](ctx context.Context, ch chan *T, ev *T) {
	select {
	case ch <- ev:
	case <-ctx.Done():
	}
}

// heartbeat pings on an interval and forcibly terminates the socket when
// a pong does not arrive in time. This is what detects half-open sockets
// a remote peer closed silently.
func (c *Client) heartbeat(ctx context.Context) {
	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.connMu.Lock()
			conn := c.conn
			c.connMu.Unlock()
			if conn == nil {
				return
			}

			pingAt := time.Now()
			conn.SetWriteDeadline(pingAt.Add(c.config.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Printf("ping failed, terminating connection: %v", err)
				c.closeConn()
				return
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(c.config.PongTimeout):
			}

			if c.lastPong.Load() < pingAt.UnixNano() {
				c.logger.Printf("no pong within %s, terminating connection", c.config.PongTimeout)
				c.closeConn()
				return
			}
		}
	}
}

// closeConn forcibly closes the current connection, if any.
func (c *Client) closeConn() {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}
