package relay

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const ( // ping pong (2-way heartbeat) to keep the connection alive
	WriteWait      = 10 * time.Second    // max time to write a message to the peer
	PongWait       = 60 * time.Second    // max time to wait for pong from peer
	PingPeriod     = (PongWait * 9) / 10 // send protocol pings before pong wait expires
	MaxMessageSize = 64 * 1024           // maximum frame size allowed from peer
	SendBufferSize = 64                  // outbound queue per connection
)

const (
	stateOpen int32 = iota
	stateClosing
	stateClosed
)

var (
	ErrPeerClosed     = errors.New("connection is closed")
	ErrSendBufferFull = errors.New("send buffer full")
)

// Client owns exactly one WebSocket connection. All writes go through the
// buffered send channel and a single write pump, so Send never blocks and
// never races another writer on the conn.
type Client struct {
	ID      string
	conn    *websocket.Conn
	send    chan []byte
	limiter *rate.Limiter // inbound message rate limit
	logger  *slog.Logger

	state     atomic.Int32
	closeOnce sync.Once
	done      chan struct{}

	mu  sync.Mutex
	key string // normalized wallet address once registered, empty before
}

func NewClient(conn *websocket.Conn, msgRate rate.Limit, burst int) *Client {
	return &Client{
		ID:      uuid.NewString(),
		conn:    conn,
		send:    make(chan []byte, SendBufferSize),
		limiter: rate.NewLimiter(msgRate, burst),
		logger:  slog.Default(),
		done:    make(chan struct{}),
	}
}

// Key returns the identity this connection registered under, or "".
func (c *Client) Key() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.key
}

// BindKey records the registered identity on the connection.
func (c *Client) BindKey(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.key = key
}

// IsOpen reports whether the connection still accepts sends.
func (c *Client) IsOpen() bool {
	return c.state.Load() == stateOpen
}

// Send queues data for the write pump. Fire-and-forget: a closed connection
// or a full buffer is reported to the caller and nothing is retried.
func (c *Client) Send(data []byte) error {
	if !c.IsOpen() {
		return ErrPeerClosed
	}
	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrPeerClosed
	default:
		return ErrSendBufferFull
	}
}

// Close tears the connection down. Safe to call from any goroutine and more
// than once; closing the conn also unblocks the read pump.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.state.Store(stateClosing)
		close(c.done)
		c.conn.Close()
		c.state.Store(stateClosed)
	})
}

// WritePump drains the send channel onto the wire and keeps the protocol
// level heartbeat going. One per connection, started by the handler.
func (c *Client) WritePump() {
	ticker := time.NewTicker(PingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Warn("write_failed",
					"client_id", c.ID,
					"error", err.Error(),
				)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(WriteWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// ReadPump is the inbound half of the connection lifecycle: parse each frame
// as an envelope and hand it to the router. Malformed input is logged and
// discarded, never answered and never fatal.
func (c *Client) ReadPump(router *Router) {
	defer c.Close()

	c.conn.SetReadLimit(MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(PongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			clean := websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			)
			if !clean && c.IsOpen() {
				c.logger.Warn("client_read_error",
					"client_id", c.ID,
					"error", err.Error(),
				)
			}
			router.Disconnect(c, clean)
			return
		}

		if !c.limiter.Allow() {
			c.logger.Warn("rate_limit_exceeded",
				"client_id", c.ID,
			)
			if data, err := json.Marshal(ErrorEnvelope{Type: TypeError, Message: "rate limit exceeded"}); err == nil {
				c.Send(data)
			}
			continue
		}

		env, err := ParseEnvelope(data)
		if err != nil {
			c.logger.Warn("invalid_envelope_received",
				"client_id", c.ID,
				"error", err.Error(),
			)
			continue
		}
		router.Route(env, c)
	}
}
