// Package wschannel implements the Channel port over a websocket
// connection to the media host. It owns reconnection: after a
// successful first connect, dropped connections are redialed with
// capped exponential backoff until Close.
package wschannel

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/nowdeck/nowdeck/internal/ports"
	"github.com/nowdeck/nowdeck/pkg/nowplay"
)

// Options configures the websocket channel.
type Options struct {
	URL              string
	HandshakeTimeout time.Duration
	ReconnectMin     time.Duration
	ReconnectMax     time.Duration
}

// Client is a websocket adapter implementing the Channel port.
type Client struct {
	log       *zap.Logger
	url       string
	handshake time.Duration
	backMin   time.Duration
	backMax   time.Duration

	mu           sync.Mutex
	conn         *websocket.Conn
	handlers     map[string]ports.Handler
	onConnect    func()
	onDisconnect func()

	closed    chan struct{}
	closeOnce sync.Once
}

// NewClient creates a websocket channel for the given endpoint.
func NewClient(log *zap.Logger, opts Options) (*Client, error) {
	u, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid server url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	if opts.HandshakeTimeout == 0 {
		opts.HandshakeTimeout = 10 * time.Second
	}
	if opts.ReconnectMin == 0 {
		opts.ReconnectMin = time.Second
	}
	if opts.ReconnectMax == 0 {
		opts.ReconnectMax = 30 * time.Second
	}

	return &Client{
		log:       log,
		url:       opts.URL,
		handshake: opts.HandshakeTimeout,
		backMin:   opts.ReconnectMin,
		backMax:   opts.ReconnectMax,
		handlers:  map[string]ports.Handler{},
		closed:    make(chan struct{}),
	}, nil
}

// On registers the handler for a named inbound event. One handler per
// event; a second registration replaces the first.
func (c *Client) On(event string, handler ports.Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[event] = handler
}

// OnConnect registers the callback fired on every (re)connect.
func (c *Client) OnConnect(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onConnect = fn
}

// OnDisconnect registers the callback fired when the connection drops.
func (c *Client) OnDisconnect(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onDisconnect = fn
}

// Connect dials the host. The first dial fails fast so callers see a
// bad endpoint immediately; later drops reconnect in the background.
func (c *Client) Connect(ctx context.Context) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}
	c.attach(conn)
	return nil
}

// Emit encodes and sends one event frame.
func (c *Client) Emit(event string, payload any) error {
	raw, err := nowplay.Encode(event, payload)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("emit %s: not connected", event)
	}
	return c.conn.WriteMessage(websocket.TextMessage, raw)
}

// Close shuts the connection down and stops reconnecting. Idempotent.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		c.mu.Lock()
		if c.conn != nil {
			err = c.conn.Close()
			c.conn = nil
		}
		c.mu.Unlock()
	})
	return err
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: c.handshake}
	conn, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial %s: %w", c.url, err)
	}
	return conn, nil
}

func (c *Client) attach(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	onConnect := c.onConnect
	c.mu.Unlock()

	go c.readLoop(conn)
	if onConnect != nil {
		onConnect()
	}
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			c.log.Debug("websocket read error", zap.Error(err))
			c.dropped(conn)
			return
		}
		select {
		case <-c.closed:
			return
		default:
		}
		c.dispatch(message)
	}
}

func (c *Client) dropped(conn *websocket.Conn) {
	_ = conn.Close()

	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	onDisconnect := c.onDisconnect
	c.mu.Unlock()

	select {
	case <-c.closed:
		return
	default:
	}

	if onDisconnect != nil {
		onDisconnect()
	}
	go c.reconnectLoop()
}

func (c *Client) reconnectLoop() {
	backoff := c.backMin
	for {
		select {
		case <-c.closed:
			return
		case <-time.After(backoff):
		}

		conn, err := c.dial(context.Background())
		if err == nil {
			select {
			case <-c.closed:
				_ = conn.Close()
			default:
				c.attach(conn)
			}
			return
		}

		c.log.Debug("reconnect failed", zap.Error(err), zap.Duration("backoff", backoff))
		backoff *= 2
		if backoff > c.backMax {
			backoff = c.backMax
		}
	}
}

func (c *Client) dispatch(message []byte) {
	env, err := nowplay.Decode(message)
	if err != nil {
		c.log.Warn("dropping malformed frame", zap.Error(err))
		return
	}

	c.mu.Lock()
	handler := c.handlers[env.Event]
	c.mu.Unlock()

	if handler == nil {
		c.log.Debug("no handler for event", zap.String("event", env.Event))
		return
	}
	handler(env.Data)
}
