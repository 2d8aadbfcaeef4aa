// Package wsclient implements the shared notification connection used by
// consumer applications: one websocket session per process, announced
// identity, periodic liveness pings, and exponential-backoff reconnection.
// Multiple UI components share the session through Subscribe.
package wsclient

import (
	"encoding/json"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lapar/orderbell/internal/pkg/constants"
	"github.com/lapar/orderbell/internal/pkg/logger"
	"github.com/lapar/orderbell/internal/pkg/models"
)

// State describes the connection state of the session.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

// String returns the state name as shown in connection badges.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Config holds the session configuration.
type Config struct {
	// URL is the websocket endpoint, e.g. ws://host:port/ws
	URL string

	// Identity is announced on every successful connect.
	Identity models.Identity

	// Token, when set, is attached to the authenticate frame so the
	// server can verify the asserted identity.
	Token string

	// Header is sent with the upgrade request (cookies, tracing).
	Header http.Header

	PingInterval     time.Duration
	HandshakeTimeout time.Duration

	// Reconnect backoff: delay = min(MaxDelay, BaseDelay * 2^attempt)
	// plus up to 1s of jitter, for at most MaxAttempts attempts.
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int
}

func (cfg *Config) applyDefaults() {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 30 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 10
	}
}

// Subscriber is one consumer of the shared session. All callbacks are
// optional and are invoked synchronously from the session's goroutines,
// in subscription order.
type Subscriber struct {
	OnConnect    func()
	OnDisconnect func()
	OnMessage    func(frameType string, payload []byte)
}

type subscription struct {
	Subscriber
	removed bool
}

// Client is the session manager. Construct it once at application root
// and pass it to the components that need it.
type Client struct {
	cfg Config
	log *logger.ZapLogger

	mu       sync.Mutex
	state    State
	conn     *websocket.Conn
	subs     []*subscription
	attempts int
	closing  bool

	// gen invalidates goroutines and timers belonging to a previous
	// connection; every teardown bumps it.
	gen uint64

	writeMu   sync.Mutex
	pingStop  chan struct{}
	reconnect *time.Timer
}

// New creates a session manager. Connect must be called to open the
// connection.
func New(cfg Config, log *logger.ZapLogger) *Client {
	cfg.applyDefaults()
	return &Client{cfg: cfg, log: log}
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect opens the connection. It is a no-op while a connect is
// already in flight. Calling Connect explicitly re-arms reconnection
// after the attempt cap was reached.
func (c *Client) Connect() error {
	c.mu.Lock()
	c.closing = false
	c.attempts = 0
	if c.reconnect != nil {
		c.reconnect.Stop()
		c.reconnect = nil
	}
	c.mu.Unlock()
	return c.connect()
}

// connect performs one dial attempt. Used by both Connect and the
// reconnect timer; it does not reset the attempt counter on entry so
// backoff keeps growing across automatic retries.
func (c *Client) connect() error {
	c.mu.Lock()
	if c.state == StateConnecting {
		c.mu.Unlock()
		return nil
	}
	c.teardownLocked()
	c.state = StateConnecting
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}
	conn, _, err := dialer.Dial(c.cfg.URL, c.cfg.Header)

	c.mu.Lock()
	if gen != c.gen || c.closing {
		// A newer Connect or a Disconnect superseded this attempt.
		if c.closing {
			c.state = StateDisconnected
		}
		c.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return nil
	}
	if err != nil {
		c.state = StateDisconnected
		c.log.Warn("websocket connect failed",
			logger.String("url", c.cfg.URL),
			logger.Err(err))
		c.scheduleReconnectLocked()
		c.mu.Unlock()
		return err
	}

	c.conn = conn
	c.state = StateConnected
	c.attempts = 0
	c.pingStop = make(chan struct{})
	stop := c.pingStop
	subs := c.snapshotLocked()
	c.mu.Unlock()

	c.writeJSON(conn, c.authenticateFrame())

	for _, s := range subs {
		if s.OnConnect != nil {
			s.OnConnect()
		}
	}

	go c.pingLoop(conn, gen, stop)
	go c.readLoop(conn, gen)
	return nil
}

// Disconnect sends a best-effort disconnect notice and closes with a
// normal status code. No reconnect is scheduled afterwards.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.closing = true
	if c.reconnect != nil {
		c.reconnect.Stop()
		c.reconnect = nil
	}
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return
	}
	c.writeJSON(conn, models.ClientFrame{Type: constants.TypeClientDisconnect})
	deadline := time.Now().Add(time.Second)
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	conn.Close()
}

// Subscribe registers a consumer and returns its unsubscribe function.
// The returned function is safe to call more than once. A subscriber
// joining while already connected gets its OnConnect invoked before
// Subscribe returns, so it does not miss the connected signal.
func (c *Client) Subscribe(sub Subscriber) (unsubscribe func()) {
	s := &subscription{Subscriber: sub}

	c.mu.Lock()
	c.subs = append(c.subs, s)
	connected := c.state == StateConnected
	c.mu.Unlock()

	if connected && s.OnConnect != nil {
		s.OnConnect()
	}

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if s.removed {
			return
		}
		s.removed = true
		for i, have := range c.subs {
			if have == s {
				c.subs = append(c.subs[:i], c.subs[i+1:]...)
				break
			}
		}
	}
}

func (c *Client) authenticateFrame() models.ClientFrame {
	return models.ClientFrame{
		Type:         constants.TypeAuthenticate,
		Token:        c.cfg.Token,
		UserID:       c.cfg.Identity.UserID,
		UserType:     c.cfg.Identity.UserType,
		RestaurantID: c.cfg.Identity.RestaurantID,
	}
}

// readLoop drains inbound frames until the connection dies, then drives
// the close handling for its generation.
func (c *Client) readLoop(conn *websocket.Conn, gen uint64) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			clean := websocket.IsCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway)
			c.handleClose(gen, clean)
			return
		}
		c.dispatch(data)
	}
}

// dispatch decodes one inbound frame and fans it out to subscribers.
// Pongs are liveness plumbing and are never surfaced.
func (c *Client) dispatch(data []byte) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		c.log.Warn("dropping malformed server frame", logger.Err(err))
		return
	}
	if head.Type == constants.TypePong {
		return
	}

	c.mu.Lock()
	subs := c.snapshotLocked()
	c.mu.Unlock()

	for _, s := range subs {
		if s.OnMessage != nil {
			s.OnMessage(head.Type, data)
		}
	}
}

func (c *Client) pingLoop(conn *websocket.Conn, gen uint64, stop chan struct{}) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.mu.Lock()
			live := c.gen == gen && c.state == StateConnected
			c.mu.Unlock()
			if !live {
				return
			}
			frame := models.ClientFrame{
				Type:      constants.TypePing,
				Timestamp: time.Now().UnixMilli(),
			}
			if err := c.writeJSON(conn, frame); err != nil {
				c.log.Debug("liveness ping failed", logger.Err(err))
			}
		}
	}
}

// handleClose runs once per dead connection. A stale generation means a
// newer connection already replaced this one and there is nothing to do.
func (c *Client) handleClose(gen uint64, clean bool) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.teardownLocked()
	c.state = StateDisconnected
	c.gen++
	subs := c.snapshotLocked()
	if !clean {
		c.scheduleReconnectLocked()
	}
	c.mu.Unlock()

	for _, s := range subs {
		if s.OnDisconnect != nil {
			s.OnDisconnect()
		}
	}
}

// scheduleReconnectLocked arms the backoff timer for the next attempt.
// Beyond the attempt cap the session stays offline until an explicit
// Connect call re-arms it. Caller holds c.mu.
func (c *Client) scheduleReconnectLocked() {
	if c.closing {
		return
	}
	if c.attempts >= c.cfg.MaxAttempts {
		c.log.Warn("reconnect attempts exhausted, staying offline",
			logger.Int("attempts", c.attempts))
		return
	}
	delay := reconnectDelay(c.attempts, c.cfg.BaseDelay, c.cfg.MaxDelay)
	c.attempts++
	c.log.Info("scheduling reconnect",
		logger.Int("attempt", c.attempts),
		logger.Duration("delay", delay))
	c.reconnect = time.AfterFunc(delay, func() {
		c.connect()
	})
}

// reconnectDelay computes the backoff delay for the given zero-based
// attempt number: min(maxDelay, baseDelay * 2^attempt) plus up to one
// second of jitter.
func reconnectDelay(attempt int, baseDelay, maxDelay time.Duration) time.Duration {
	delay := baseDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= maxDelay {
			delay = maxDelay
			break
		}
	}
	if delay > maxDelay {
		delay = maxDelay
	}
	return delay + time.Duration(rand.Int63n(int64(time.Second)))
}

// teardownLocked closes the current connection and stops its ping loop.
// Caller holds c.mu.
func (c *Client) teardownLocked() {
	if c.pingStop != nil {
		close(c.pingStop)
		c.pingStop = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

func (c *Client) snapshotLocked() []*subscription {
	subs := make([]*subscription, len(c.subs))
	copy(subs, c.subs)
	return subs
}

func (c *Client) writeJSON(conn *websocket.Conn, v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteJSON(v)
}
