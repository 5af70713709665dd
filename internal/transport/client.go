// Package transport maintains the websocket push channel to the node. Inbound
// frames go to a handler; the live connection is installed in the store as
// the command sender and removed again when it drops.
package transport

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kinofiles/kinosync/internal/constants"
	"github.com/kinofiles/kinosync/internal/core"
	khttp "github.com/kinofiles/kinosync/internal/http"
	"github.com/kinofiles/kinosync/internal/logging"
	"github.com/kinofiles/kinosync/internal/metrics"
	"github.com/kinofiles/kinosync/internal/state"
)

// Handler receives every inbound frame.
type Handler func(frameType core.FrameType, payload []byte)

// Options configures a Client.
type Options struct {
	URL     string // ws:// or wss://
	Header  nethttp.Header
	Proxy   khttp.ProxyFunc
	Store   *state.Store
	Handler Handler
	Logger  *logging.Logger

	// MaxAttempts stops Run after that many consecutive failed dials.
	// Zero retries forever.
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// Client is a reconnecting push-channel client.
type Client struct {
	opts   Options
	dialer *websocket.Dialer
	logger *logging.Logger

	readyOnce sync.Once
	ready     chan struct{}
}

// New creates a Client. Call Run to connect.
func New(opts Options) (*Client, error) {
	if opts.URL == "" {
		return nil, errors.New("push channel URL is empty")
	}
	if opts.Store == nil {
		return nil, errors.New("push channel requires a store")
	}
	if opts.Handler == nil {
		return nil, errors.New("push channel requires a frame handler")
	}
	if opts.InitialDelay <= 0 {
		opts.InitialDelay = constants.ReconnectInitialDelay
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = constants.ReconnectMaxDelay
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	return &Client{
		opts: opts,
		dialer: &websocket.Dialer{
			Proxy:            opts.Proxy,
			HandshakeTimeout: constants.HandshakeTimeout,
		},
		logger: logger,
		ready:  make(chan struct{}),
	}, nil
}

// Ready is closed once the first connection is up.
func (c *Client) Ready() <-chan struct{} {
	return c.ready
}

// Run connects and keeps the push channel up until ctx is cancelled, which
// returns nil. Lost connections are redialled with exponential backoff and
// full jitter. With MaxAttempts set, Run gives up after that many
// consecutive failed dials and returns the last dial error.
func (c *Client) Run(ctx context.Context) error {
	failures := 0
	for {
		ws, err := c.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			failures++
			if c.opts.MaxAttempts > 0 && failures >= c.opts.MaxAttempts {
				return fmt.Errorf("push channel unavailable after %d attempts: %w", failures, err)
			}
			delay := khttp.CalculateBackoff(failures, c.opts.InitialDelay, c.opts.MaxDelay)
			c.logger.Warn().Err(err).
				Str("kind", khttp.ErrorTypeName(khttp.ClassifyError(err))).
				Dur("retry_in", delay).
				Msg("Push channel dial failed")
			if !sleep(ctx, delay) {
				return nil
			}
			metrics.RecordReconnect()
			continue
		}

		failures = 0
		err = c.serve(ctx, ws)
		if ctx.Err() != nil {
			return nil
		}
		c.logger.Warn().Err(err).Msg("Push channel lost, reconnecting")
		metrics.RecordReconnect()
		if !sleep(ctx, khttp.CalculateBackoff(1, c.opts.InitialDelay, c.opts.MaxDelay)) {
			return nil
		}
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	ws, resp, err := c.dialer.DialContext(ctx, c.opts.URL, c.opts.Header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w (status %d)", err, resp.StatusCode)
		}
		return nil, err
	}
	return ws, nil
}

// serve runs one connection until it fails or ctx ends.
func (c *Client) serve(ctx context.Context, ws *websocket.Conn) error {
	conn := newConn(ws)
	c.opts.Store.SetTransport(conn)
	metrics.SetTransportConnected(true)
	c.logger.Info().Str("url", c.opts.URL).Msg("Push channel connected")
	c.readyOnce.Do(func() { close(c.ready) })

	done := make(chan struct{})
	defer func() {
		close(done)
		conn.close()
		c.opts.Store.SetTransport(nil)
		metrics.SetTransportConnected(false)
	}()

	ws.SetReadLimit(constants.MaxFrameSize)
	_ = ws.SetReadDeadline(time.Now().Add(constants.PongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(constants.PongWait))
	})

	go c.keepalive(ctx, conn, done)

	for {
		mt, data, err := ws.ReadMessage()
		if err != nil {
			return err
		}
		_ = ws.SetReadDeadline(time.Now().Add(constants.PongWait))

		switch mt {
		case websocket.TextMessage:
			c.opts.Handler(core.TextFrame, data)
		case websocket.BinaryMessage:
			c.opts.Handler(core.BinaryFrame, data)
		}
	}
}

// keepalive pings the node and closes the connection when ctx ends.
func (c *Client) keepalive(ctx context.Context, conn *Conn, done <-chan struct{}) {
	ticker := time.NewTicker(constants.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			conn.goingAway()
			return
		case <-ticker.C:
			if err := conn.ping(); err != nil {
				c.logger.Debug().Err(err).Msg("Ping failed")
				conn.close()
				return
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
