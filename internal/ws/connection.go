// Package ws is the connection gateway: it admits websocket sessions,
// verifies identity, tracks room membership and routes events between
// clients, the lock manager and the broadcast throttler.
package ws

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/iliyamo/order-collab/internal/model"
)

// transport is the subset of *websocket.Conn a connection needs. Tests
// substitute an in-memory implementation.
type transport interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Connection is one live authenticated session. Unauthenticated sockets never
// become a Connection: the handshake verifies the credential first and closes
// on failure. Outbound delivery runs through a single writer goroutine fed by
// a buffered queue, which is what preserves per-connection event order.
type Connection struct {
	ID        string
	Principal model.Principal

	sock         transport
	out          chan model.Envelope
	done         chan struct{}
	closeOnce    sync.Once
	writeTimeout time.Duration
	log          *slog.Logger

	mu         sync.Mutex
	rooms      map[string]struct{}
	lastActive time.Time

	// inbound event budget (token bucket)
	tokens     int
	burst      int
	refill     time.Duration
	lastRefill time.Time
}

// ConnOptions carries per-connection tunables from config.
type ConnOptions struct {
	QueueSize    int
	WriteTimeout time.Duration
	EventBurst   int
	EventRefill  time.Duration
}

func newConnection(sock transport, p model.Principal, opt ConnOptions, log *slog.Logger) *Connection {
	if opt.QueueSize <= 0 {
		opt.QueueSize = 1024
	}
	if opt.WriteTimeout <= 0 {
		opt.WriteTimeout = 5 * time.Second
	}
	if opt.EventBurst <= 0 {
		opt.EventBurst = 20
	}
	if opt.EventRefill <= 0 {
		opt.EventRefill = time.Second
	}
	c := &Connection{
		ID:           uuid.NewString(),
		Principal:    p,
		sock:         sock,
		out:          make(chan model.Envelope, opt.QueueSize),
		done:         make(chan struct{}),
		writeTimeout: opt.WriteTimeout,
		rooms:        make(map[string]struct{}),
		lastActive:   time.Now(),
		tokens:       opt.EventBurst,
		burst:        opt.EventBurst,
		refill:       opt.EventRefill,
		lastRefill:   time.Now(),
	}
	c.log = log.With("conn_id", c.ID, "user_id", p.UserID)
	return c
}

// Send queues an envelope for delivery. It never blocks: when the queue is
// full the message is dropped for this connection only, which keeps one slow
// consumer from stalling a broadcast fan-out. Order of accepted messages is
// preserved by the writer goroutine.
func (c *Connection) Send(event string, payload any) {
	env, err := model.NewEnvelope(event, payload)
	if err != nil {
		c.log.Warn("drop unmarshalable payload", "event", event, "error", err)
		return
	}
	select {
	case <-c.done:
	case c.out <- env:
	default:
		c.log.Warn("send queue full, dropping message", "event", event)
	}
}

// SendError emits an error event with the given code.
func (c *Connection) SendError(code, message string) {
	c.Send(model.EventError, model.ErrorPayload{Code: code, Message: message})
}

// writePump serializes all socket writes. Runs until Close or a write error.
func (c *Connection) writePump() {
	for {
		select {
		case <-c.done:
			return
		case env := <-c.out:
			data, err := json.Marshal(env)
			if err != nil {
				continue
			}
			c.sock.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.sock.WriteMessage(websocket.TextMessage, data); err != nil {
				c.log.Debug("write failed", "error", err)
				c.Close()
				return
			}
		}
	}
}

// Close tears the session down. Safe to call more than once.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.sock.Close()
	})
}

// touch records inbound activity.
func (c *Connection) touch() {
	c.mu.Lock()
	c.lastActive = time.Now()
	c.mu.Unlock()
}

// LastActive reports the time of the most recent inbound message.
func (c *Connection) LastActive() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActive
}

// allowEvent charges one token from the inbound bucket, refilling one token
// per refill interval up to the burst size. Returns false when the budget is
// exhausted.
func (c *Connection) allowEvent(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.refill > 0 {
		intervals := int(now.Sub(c.lastRefill) / c.refill)
		if intervals > 0 {
			c.tokens += intervals
			if c.tokens > c.burst {
				c.tokens = c.burst
			}
			c.lastRefill = c.lastRefill.Add(time.Duration(intervals) * c.refill)
		}
	}
	if c.tokens <= 0 {
		return false
	}
	c.tokens--
	return true
}
