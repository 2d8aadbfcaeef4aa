package wsclient

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lapar/orderbell/internal/pkg/constants"
	"github.com/lapar/orderbell/internal/pkg/logger"
	"github.com/lapar/orderbell/internal/pkg/models"
)

func newTestLogger() *logger.ZapLogger {
	return &logger.ZapLogger{Logger: zap.NewNop()}
}

func i64(v int64) *int64 { return &v }

func ut(v models.UserType) *models.UserType { return &v }

// notifyServer is a websocket echo point for exercising the session
// manager. Each accepted connection is handed to onConn on its own
// goroutine.
type notifyServer struct {
	srv      *httptest.Server
	upgrades int64
}

func newNotifyServer(t *testing.T, onConn func(conn *websocket.Conn)) *notifyServer {
	t.Helper()
	ns := &notifyServer{}
	upgrader := websocket.Upgrader{}
	ns.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		atomic.AddInt64(&ns.upgrades, 1)
		onConn(conn)
	}))
	t.Cleanup(ns.srv.Close)
	return ns
}

func (ns *notifyServer) wsURL() string {
	return "ws" + strings.TrimPrefix(ns.srv.URL, "http")
}

func (ns *notifyServer) upgradeCount() int64 {
	return atomic.LoadInt64(&ns.upgrades)
}

func testConfig(url string) Config {
	return Config{
		URL: url,
		Identity: models.Identity{
			UserID:       i64(42),
			UserType:     ut(models.UserTypeCustomer),
			RestaurantID: nil,
		},
		PingInterval: time.Minute,
		BaseDelay:    5 * time.Millisecond,
		MaxDelay:     20 * time.Millisecond,
		MaxAttempts:  10,
	}
}

func TestConnectAnnouncesIdentity(t *testing.T) {
	frames := make(chan models.ClientFrame, 1)
	ns := newNotifyServer(t, func(conn *websocket.Conn) {
		var frame models.ClientFrame
		if err := conn.ReadJSON(&frame); err == nil {
			frames <- frame
		}
	})

	cfg := testConfig(ns.wsURL())
	cfg.Token = "session-token"
	c := New(cfg, newTestLogger())
	defer c.Disconnect()

	require.NoError(t, c.Connect())
	assert.Equal(t, StateConnected, c.State())

	select {
	case frame := <-frames:
		assert.Equal(t, constants.TypeAuthenticate, frame.Type)
		assert.Equal(t, "session-token", frame.Token)
		require.NotNil(t, frame.UserID)
		assert.Equal(t, int64(42), *frame.UserID)
		require.NotNil(t, frame.UserType)
		assert.Equal(t, models.UserTypeCustomer, *frame.UserType)
		assert.Nil(t, frame.RestaurantID)
	case <-time.After(2 * time.Second):
		t.Fatal("server never received the authenticate frame")
	}
}

func TestPongIsNeverForwarded(t *testing.T) {
	ns := newNotifyServer(t, func(conn *websocket.Conn) {
		var frame models.ClientFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}
		conn.WriteJSON(models.ServerFrame{Type: constants.TypePong})
		conn.WriteJSON(models.Notification{
			ID:      "n-1",
			Type:    constants.EventNewOrder,
			Title:   "New order",
			Message: "Order #101",
		})
	})

	c := New(testConfig(ns.wsURL()), newTestLogger())
	defer c.Disconnect()

	received := make(chan string, 4)
	c.Subscribe(Subscriber{
		OnMessage: func(frameType string, payload []byte) {
			received <- frameType
		},
	})

	require.NoError(t, c.Connect())

	select {
	case frameType := <-received:
		// The pong was sent first; the first frame a subscriber sees
		// must be the notification behind it.
		assert.Equal(t, constants.EventNewOrder, frameType)
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber never received the notification")
	}

	select {
	case frameType := <-received:
		t.Fatalf("unexpected extra frame forwarded: %s", frameType)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestLateSubscriberGetsConnectSignal(t *testing.T) {
	ns := newNotifyServer(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	c := New(testConfig(ns.wsURL()), newTestLogger())
	defer c.Disconnect()
	require.NoError(t, c.Connect())

	connected := false
	c.Subscribe(Subscriber{
		OnConnect: func() { connected = true },
	})

	// The callback runs synchronously inside Subscribe.
	assert.True(t, connected)
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	c := New(testConfig("ws://unused"), newTestLogger())

	var first, second []string
	unsubFirst := c.Subscribe(Subscriber{
		OnMessage: func(frameType string, payload []byte) {
			first = append(first, frameType)
		},
	})
	c.Subscribe(Subscriber{
		OnMessage: func(frameType string, payload []byte) {
			second = append(second, frameType)
		},
	})

	unsubFirst()
	assert.NotPanics(t, unsubFirst)

	c.dispatch([]byte(`{"type":"new_order","id":"n-1"}`))

	assert.Empty(t, first)
	assert.Equal(t, []string{constants.EventNewOrder}, second)
}

func TestCleanDisconnectSuppressesReconnect(t *testing.T) {
	disconnectNotices := make(chan string, 1)
	ns := newNotifyServer(t, func(conn *websocket.Conn) {
		for {
			var frame models.ClientFrame
			if err := conn.ReadJSON(&frame); err != nil {
				return
			}
			if frame.Type == constants.TypeClientDisconnect {
				disconnectNotices <- frame.Type
			}
		}
	})

	c := New(testConfig(ns.wsURL()), newTestLogger())
	require.NoError(t, c.Connect())

	c.Disconnect()

	select {
	case <-disconnectNotices:
	case <-time.After(2 * time.Second):
		t.Fatal("server never received the disconnect notice")
	}

	// Give any wrongly-armed backoff timer room to fire; the backoff
	// base in testConfig is milliseconds but jitter can add up to 1s.
	time.Sleep(1200 * time.Millisecond)
	assert.Equal(t, int64(1), ns.upgradeCount())
	assert.Equal(t, StateDisconnected, c.State())

	c.mu.Lock()
	assert.Nil(t, c.reconnect)
	c.mu.Unlock()
}

func TestAbnormalCloseTriggersReconnect(t *testing.T) {
	var ns *notifyServer
	ns = newNotifyServer(t, func(conn *websocket.Conn) {
		var frame models.ClientFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}
		if ns.upgradeCount() == 1 {
			// Drop the first connection without a close handshake.
			conn.Close()
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	c := New(testConfig(ns.wsURL()), newTestLogger())
	defer c.Disconnect()

	disconnected := make(chan struct{}, 4)
	c.Subscribe(Subscriber{
		OnDisconnect: func() { disconnected <- struct{}{} },
	})

	require.NoError(t, c.Connect())

	select {
	case <-disconnected:
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber was not told about the dropped connection")
	}

	require.Eventually(t, func() bool {
		return ns.upgradeCount() >= 2 && c.State() == StateConnected
	}, 5*time.Second, 20*time.Millisecond, "session never reconnected")
}

func TestReconnectDelayGrowsToCap(t *testing.T) {
	base := time.Second
	max := 30 * time.Second

	prevFloor := time.Duration(0)
	for attempt := 0; attempt < 10; attempt++ {
		floor := base << uint(attempt)
		if floor > max {
			floor = max
		}

		delay := reconnectDelay(attempt, base, max)
		assert.GreaterOrEqual(t, delay, floor, "attempt %d", attempt)
		assert.Less(t, delay, floor+time.Second, "attempt %d", attempt)

		assert.GreaterOrEqual(t, floor, prevFloor, "attempt %d", attempt)
		prevFloor = floor
	}
}

func TestNoReconnectBeyondAttemptCap(t *testing.T) {
	cfg := testConfig("ws://unused")
	cfg.MaxAttempts = 3
	c := New(cfg, newTestLogger())

	c.mu.Lock()
	c.attempts = 3
	c.scheduleReconnectLocked()
	armed := c.reconnect != nil
	c.mu.Unlock()

	assert.False(t, armed, "an attempt beyond the cap must not be scheduled")
}

func TestExplicitConnectResetsAttemptCounter(t *testing.T) {
	ns := newNotifyServer(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	c := New(testConfig(ns.wsURL()), newTestLogger())
	defer c.Disconnect()

	c.mu.Lock()
	c.attempts = 10
	c.mu.Unlock()

	require.NoError(t, c.Connect())

	c.mu.Lock()
	attempts := c.attempts
	c.mu.Unlock()
	assert.Equal(t, 0, attempts)
}
