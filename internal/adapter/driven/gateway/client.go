// Package gateway implements the SessionClient port over a persistent
// WebSocket connection to a bot-style gateway. The gateway authenticates the
// upgrade request with the token and then reports session health with JSON
// frames.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/ericfisherdev/tokenlink/internal/domain/port/driven"
)

const (
	writeDeadline = 5 * time.Second
	pingInterval  = 30 * time.Second
	handshakeWait = 10 * time.Second
)

// Frame ops sent by the gateway.
const (
	OpReady = "ready"
	OpError = "error"
)

// Frame is the JSON envelope of every text message from the gateway.
type Frame struct {
	Op      string `json:"op"`
	Message string `json:"message,omitempty"`
}

// Compile-time interface satisfaction check.
var _ driven.SessionClient = (*Client)(nil)

// Client implements driven.SessionClient. At most one connection is live;
// a new Connect closes the previous one without reporting it as dropped.
type Client struct {
	url    string
	dialer *websocket.Dialer
	clock  clockwork.Clock
	logger *slog.Logger

	mu      sync.Mutex
	current *connection
}

// NewClient creates a gateway Client for the ws:// or wss:// url.
func NewClient(url string, clock clockwork.Clock, logger *slog.Logger) *Client {
	return &Client{
		url: url,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeWait,
		},
		clock:  clock,
		logger: logger,
	}
}

// Connect dials the gateway with the token in the Authorization header. A
// rejected handshake is returned as an error; readiness arrives later as a
// ready frame. Frames of the new connection go to listener only, and may
// arrive before Connect returns.
func (c *Client) Connect(ctx context.Context, token string, listener driven.SessionListener) error {
	header := http.Header{}
	header.Set("Authorization", "Bot "+token)

	ws, resp, err := c.dialer.DialContext(ctx, c.url, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial gateway: %w (status %d)", err, resp.StatusCode)
		}
		return fmt.Errorf("dial gateway: %w", err)
	}

	conn := &connection{
		ws:     ws,
		clock:  c.clock,
		logger: c.logger,
		done:   make(chan struct{}),
	}

	c.mu.Lock()
	previous := c.current
	c.current = conn
	c.mu.Unlock()

	if previous != nil {
		previous.close()
	}

	c.logger.Info("gateway connected", "url", c.url)

	conn.wg.Add(2)
	go conn.readLoop(listener)
	go conn.pingLoop()
	return nil
}

// Close shuts down the live connection, if any, without emitting a
// disconnect event.
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.current
	c.current = nil
	c.mu.Unlock()

	if conn != nil {
		conn.close()
	}
	return nil
}

// connection owns one WebSocket and the goroutines serving it.
type connection struct {
	ws     *websocket.Conn
	clock  clockwork.Clock
	logger *slog.Logger

	closing  atomic.Bool
	done     chan struct{}
	stopOnce sync.Once
	writeMu  sync.Mutex
	wg       sync.WaitGroup
}

func (cn *connection) readLoop(listener driven.SessionListener) {
	defer cn.wg.Done()
	defer cn.stop()

	for {
		_, data, err := cn.ws.ReadMessage()
		if err != nil {
			if cn.closing.Load() {
				return
			}
			cn.logger.Warn("gateway connection lost", "error", err)
			if listener != nil {
				listener.OnSessionDisconnected()
			}
			return
		}

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			cn.logger.Warn("ignoring malformed gateway frame", "error", err)
			continue
		}
		if listener == nil {
			continue
		}

		switch frame.Op {
		case OpReady:
			listener.OnSessionReady()
		case OpError:
			listener.OnSessionError(errors.New(frame.Message))
		default:
			cn.logger.Debug("ignoring gateway frame", "op", frame.Op)
		}
	}
}

func (cn *connection) pingLoop() {
	defer cn.wg.Done()

	ticker := cn.clock.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-cn.done:
			return
		case <-ticker.Chan():
			if err := cn.write(websocket.PingMessage, nil); err != nil {
				cn.logger.Debug("gateway ping failed", "error", err)
				return
			}
		}
	}
}

func (cn *connection) write(messageType int, data []byte) error {
	cn.writeMu.Lock()
	defer cn.writeMu.Unlock()
	return cn.ws.WriteControl(messageType, data, time.Now().Add(writeDeadline))
}

// stop ends the ping loop. The read loop calls it when the socket fails.
func (cn *connection) stop() {
	cn.stopOnce.Do(func() { close(cn.done) })
}

// close sends a close frame, tears the socket down and waits for both loops.
func (cn *connection) close() {
	cn.closing.Store(true)
	cn.stop()
	_ = cn.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client closing"))
	_ = cn.ws.Close()
	cn.wg.Wait()
}
