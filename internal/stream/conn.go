// Package stream owns the lifecycle of the persistent event-stream
// connection: dial, keepalive, bounded reconnect, and opaque message
// dispatch onto a broker. It knows nothing about event semantics beyond
// the connection-confirmation frame.
package stream

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"

	"marketpulse/internal/protocol"
	"marketpulse/internal/pubsub"
)

// Status is the connection lifecycle state.
type Status string

const (
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
	StatusError        Status = "error"
)

// NotificationKind discriminates broker payloads.
type NotificationKind string

const (
	KindMessage NotificationKind = "message"
	KindStatus  NotificationKind = "status"
	KindError   NotificationKind = "error"
)

// Notification is what the connection publishes for consumers: inbound wire
// messages, status transitions, and transport errors.
type Notification struct {
	Kind    NotificationKind
	Message *protocol.Message
	Status  Status
	Err     error
}

const (
	defaultKeepalive      = 30 * time.Second
	defaultReconnectDelay = 3 * time.Second
	defaultMaxReconnects  = 5
)

// Config describes one logical connection.
type Config struct {
	BaseURL   string
	SessionID string
	Token     string

	KeepaliveInterval time.Duration
	ReconnectDelay    time.Duration
	MaxReconnects     int
}

func (c *Config) applyDefaults() {
	if c.KeepaliveInterval <= 0 {
		c.KeepaliveInterval = defaultKeepalive
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = defaultReconnectDelay
	}
	if c.MaxReconnects <= 0 {
		c.MaxReconnects = defaultMaxReconnects
	}
}

// Conn maintains one logical connection per session id. All waiting is
// expressed through the injected Scheduler; the keepalive timer and the
// reconnect timer are mutually exclusive and both cleared on every
// transition.
type Conn struct {
	cfg    Config
	logger *log.Logger
	sched  Scheduler
	dialer *websocket.Dialer
	broker *pubsub.Broker[Notification]

	onDisconnect func()

	mu        sync.Mutex
	ws        *websocket.Conn
	status    Status
	connID    string
	attempts  int
	closing   bool
	policy    backoff.BackOff
	keepalive Timer
	reconnect Timer
}

type ConnOption func(*Conn)

func WithScheduler(s Scheduler) ConnOption {
	return func(c *Conn) { c.sched = s }
}

func WithDialer(d *websocket.Dialer) ConnOption {
	return func(c *Conn) { c.dialer = d }
}

func WithLogger(l *log.Logger) ConnOption {
	return func(c *Conn) { c.logger = l }
}

// WithOnDisconnect registers a hook invoked exactly once per explicit
// Disconnect call.
func WithOnDisconnect(fn func()) ConnOption {
	return func(c *Conn) { c.onDisconnect = fn }
}

func NewConn(cfg Config, opts ...ConnOption) *Conn {
	cfg.applyDefaults()
	c := &Conn{
		cfg:    cfg,
		logger: log.New(io.Discard, "", 0),
		sched:  WallClock(),
		dialer: websocket.DefaultDialer,
		broker: pubsub.NewBroker[Notification](),
		status: StatusDisconnected,
		policy: backoff.NewConstantBackOff(cfg.ReconnectDelay),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Events subscribes to the connection's notification feed.
func (c *Conn) Events(ctx context.Context) <-chan Notification {
	return c.broker.Subscribe(ctx)
}

// Connect opens the socket if it is not already open or opening. A dial
// failure is reported to the caller and also enters the bounded reconnect
// path, mirroring the error-then-close sequence of a failed socket open.
// An explicit Connect starts a fresh reconnect budget; timer-driven
// attempts do not.
func (c *Conn) Connect() error {
	return c.connect(true)
}

func (c *Conn) connect(manual bool) error {
	c.mu.Lock()
	if c.status == StatusConnected || c.status == StatusConnecting {
		c.mu.Unlock()
		return nil
	}
	c.closing = false
	c.clearTimersLocked()
	if manual {
		c.attempts = 0
		c.policy.Reset()
	}
	c.setStatusLocked(StatusConnecting)
	urlStr, err := StreamURL(c.cfg.BaseURL, c.cfg.SessionID, c.cfg.Token)
	if err != nil {
		c.setStatusLocked(StatusError)
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()

	ws, resp, err := c.dialer.Dial(urlStr, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closing {
		if ws != nil {
			ws.Close()
		}
		return nil
	}
	if err != nil {
		dialErr := fmt.Errorf("dial event stream: %w", err)
		c.logger.Printf("stream: %v", dialErr)
		c.broker.Publish(Notification{Kind: KindError, Err: dialErr})
		c.setStatusLocked(StatusDisconnected)
		c.scheduleReconnectLocked()
		return dialErr
	}

	c.ws = ws
	c.attempts = 0
	c.policy.Reset()
	c.setStatusLocked(StatusConnected)
	c.startKeepaliveLocked()
	go c.readLoop(ws)
	return nil
}

// Send serializes and transmits only while connected; otherwise the payload
// is logged and dropped. At-most-once, no queuing.
func (c *Conn) Send(msg *protocol.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != StatusConnected || c.ws == nil {
		c.logger.Printf("stream: dropping %s send while %s", msg.Type, c.status)
		return nil
	}
	return c.ws.WriteJSON(msg)
}

// Disconnect cancels all timers, closes the socket, and leaves the
// connection permanently down until the next Connect. A scheduled
// reconnect that has not fired yet will not fire after this returns.
func (c *Conn) Disconnect() {
	c.mu.Lock()
	if c.status == StatusDisconnected && c.ws == nil && c.reconnect == nil {
		c.mu.Unlock()
		return
	}
	c.closing = true
	c.clearTimersLocked()
	if c.ws != nil {
		_ = c.ws.Close()
		c.ws = nil
	}
	c.connID = ""
	c.attempts = 0
	c.setStatusLocked(StatusDisconnected)
	cb := c.onDisconnect
	c.mu.Unlock()

	if cb != nil {
		cb()
	}
}

// Close tears the connection down and shuts the notification broker.
func (c *Conn) Close() {
	c.Disconnect()
	c.broker.Shutdown()
}

func (c *Conn) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// ConnectionID returns the server-assigned id, empty until the connected
// frame arrives.
func (c *Conn) ConnectionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connID
}

// Attempts reports consumed reconnect attempts since the last successful
// open.
func (c *Conn) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

func (c *Conn) setStatusLocked(s Status) {
	if c.status == s {
		return
	}
	c.status = s
	c.broker.Publish(Notification{Kind: KindStatus, Status: s})
}

func (c *Conn) clearTimersLocked() {
	if c.keepalive != nil {
		c.keepalive.Stop()
		c.keepalive = nil
	}
	if c.reconnect != nil {
		c.reconnect.Stop()
		c.reconnect = nil
	}
}

func (c *Conn) startKeepaliveLocked() {
	interval := c.cfg.KeepaliveInterval
	var tick func()
	tick = func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.status != StatusConnected || c.ws == nil {
			return
		}
		ping, err := protocol.NewMessage(protocol.MsgPing, nil)
		if err == nil {
			if werr := c.ws.WriteJSON(ping); werr != nil {
				c.logger.Printf("stream: keepalive write failed: %v", werr)
			}
		}
		c.keepalive = c.sched.AfterFunc(interval, tick)
	}
	c.keepalive = c.sched.AfterFunc(interval, tick)
}

// scheduleReconnectLocked arms exactly one reconnect attempt, or gives up
// once the bound is exhausted.
func (c *Conn) scheduleReconnectLocked() {
	if c.closing || c.reconnect != nil {
		return
	}
	if c.attempts >= c.cfg.MaxReconnects {
		c.logger.Printf("stream: reconnect attempts exhausted after %d tries", c.attempts)
		return
	}
	c.attempts++
	delay := c.policy.NextBackOff()
	if delay == backoff.Stop {
		delay = c.cfg.ReconnectDelay
	}
	c.reconnect = c.sched.AfterFunc(delay, func() {
		c.mu.Lock()
		c.reconnect = nil
		if c.closing || c.status == StatusConnected {
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()
		_ = c.connect(false)
	})
}

func (c *Conn) readLoop(ws *websocket.Conn) {
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			c.handleClose(ws, err)
			return
		}
		msg, perr := protocol.ParseMessage(data)
		if perr != nil {
			c.logger.Printf("stream: dropping malformed frame: %v", perr)
			continue
		}
		if msg.Type == protocol.MsgConnected {
			var d protocol.ConnectedData
			if msg.ExtractData(&d) == nil {
				id := d.ConnectionID
				if id == "" {
					id = msg.ConnectionID
				}
				c.mu.Lock()
				c.connID = id
				c.mu.Unlock()
			}
		}
		c.broker.Publish(Notification{Kind: KindMessage, Message: msg})
	}
}

// handleClose runs when the read loop exits. Reconnection is driven only
// from here, never from error notifications alone.
func (c *Conn) handleClose(ws *websocket.Conn, cause error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ws != ws {
		// A newer connection superseded this loop, or Disconnect already
		// detached it.
		return
	}
	c.ws = nil
	c.clearTimersLocked()
	if c.closing {
		return
	}
	if cause != nil && !websocket.IsCloseError(cause, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		c.broker.Publish(Notification{Kind: KindError, Err: cause})
	}
	c.setStatusLocked(StatusDisconnected)
	c.scheduleReconnectLocked()
}
