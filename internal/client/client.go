package client

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/iliyamo/order-collab/internal/model"
)

// Options configures a dashboard client.
type Options struct {
	URL       string // ws:// or wss:// endpoint of the gateway
	Token     string // bearer credential, sent on the handshake
	UserID    string // own identity; the only room this client may join
	Reconnect Config
	Logger    *slog.Logger
}

// Client maintains a dashboard session: it dials with the bearer credential,
// joins the caller's own room after every (re)connection, and fans inbound
// events out to registered handlers. All resilience lives in the embedded
// Reconnector.
type Client struct {
	opt Options
	log *slog.Logger
	rec *Reconnector

	mu       sync.Mutex
	handlers map[string]func(data json.RawMessage)
	current  Transport
}

func New(opt Options) *Client {
	if opt.Logger == nil {
		opt.Logger = slog.Default()
	}
	if opt.Reconnect == (Config{}) {
		opt.Reconnect = DefaultConfig()
	}
	c := &Client{
		opt:      opt,
		log:      opt.Logger,
		handlers: make(map[string]func(data json.RawMessage)),
	}
	c.rec = NewReconnector(opt.Reconnect, c.dialWS)
	c.rec.OnConnect(c.joined)
	c.rec.OnMessage(c.route)
	return c
}

// On registers a handler for a server event (metrics:update, order:locked,
// ...). Must be called before Run.
func (c *Client) On(event string, fn func(data json.RawMessage)) {
	c.mu.Lock()
	c.handlers[event] = fn
	c.mu.Unlock()
}

// Run blocks, keeping the session alive until Close or ctx cancellation.
func (c *Client) Run(ctx context.Context) error { return c.rec.Run(ctx) }

// Close disconnects for good. No reconnection follows.
func (c *Client) Close() { c.rec.Close() }

// State exposes the reconnection snapshot for UIs.
func (c *Client) State() State { return c.rec.State() }

// OnState forwards state transitions to the caller.
func (c *Client) OnState(fn func(State)) { c.rec.OnState(fn) }

// dialWS opens the websocket with the credential in the Authorization
// header.
func (c *Client) dialWS(ctx context.Context) (Transport, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.opt.Token)
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.opt.URL, header)
	if err != nil {
		return nil, err
	}
	c.log.Debug("websocket connected", "url", c.opt.URL)
	return &wsTransport{conn: conn}, nil
}

// joined runs after every successful connection: remember the transport and
// (re-)join our own dashboard room, mirroring how subscriptions are restored
// after a reconnect.
func (c *Client) joined(t Transport) {
	c.mu.Lock()
	c.current = t
	c.mu.Unlock()

	env, err := model.NewEnvelope(model.EventDashboardJoin, model.JoinPayload{UserID: c.opt.UserID})
	if err != nil {
		return
	}
	data, _ := json.Marshal(env)
	if err := t.WriteMessage(data); err != nil {
		c.log.Warn("join send failed", "error", err)
	}
}

// route decodes one inbound frame and hands it to the registered handler.
// Unknown events are logged and dropped; a client bug must not kill the
// session.
func (c *Client) route(data []byte) {
	var env model.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.log.Warn("malformed frame", "error", err)
		return
	}
	c.mu.Lock()
	fn := c.handlers[env.Event]
	c.mu.Unlock()
	if fn == nil {
		c.log.Debug("unhandled event", "event", env.Event)
		return
	}
	fn(env.Data)
}

// wsTransport adapts a gorilla connection to the Transport interface.
type wsTransport struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (t *wsTransport) ReadMessage() ([]byte, error) {
	_, data, err := t.conn.ReadMessage()
	return data, err
}

func (t *wsTransport) WriteMessage(data []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	t.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

func (t *wsTransport) Ping() error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return t.conn.WriteControl(websocket.PingMessage, []byte("keepalive"), time.Now().Add(time.Second))
}

func (t *wsTransport) Close() error {
	t.writeMu.Lock()
	t.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	t.writeMu.Unlock()
	return t.conn.Close()
}
