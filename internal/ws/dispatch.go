package ws

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/iliyamo/order-collab/internal/model"
)

// handlerFunc processes one inbound event for a connection. Handlers run on
// the connection's read goroutine, so one client's events are handled in
// order while other connections proceed independently.
type handlerFunc func(c *Connection, data json.RawMessage)

// Dispatcher maps event names to handlers. The rate-limit and envelope
// checks run uniformly before any handler, so individual handlers never
// repeat those guards. Protocol errors are scoped to the offending request:
// the connection stays open.
type Dispatcher struct {
	hub      *Hub
	log      *slog.Logger
	handlers map[string]handlerFunc
	now      func() time.Time
}

func NewDispatcher(hub *Hub, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	d := &Dispatcher{hub: hub, log: log, now: time.Now}
	d.handlers = map[string]handlerFunc{
		model.EventDashboardJoin: d.handleJoin,
	}
	return d
}

// Dispatch routes one raw inbound frame.
func (d *Dispatcher) Dispatch(c *Connection, raw []byte) {
	c.touch()
	if !c.allowEvent(d.now()) {
		c.SendError(model.CodeRateLimit, "too many events, slow down")
		return
	}
	var env model.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.SendError(model.CodeInvalidEvent, "malformed event")
		return
	}
	h, ok := d.handlers[env.Event]
	if !ok {
		c.SendError(model.CodeInvalidEvent, "unknown event: "+env.Event)
		return
	}
	h(c, env.Data)
}

// handleJoin admits the caller into its own dashboard room. A principal may
// only ever join the room derived from its own identity; the check runs on
// every join, not just the first. Re-joining re-acknowledges success.
func (d *Dispatcher) handleJoin(c *Connection, data json.RawMessage) {
	var p model.JoinPayload
	if err := json.Unmarshal(data, &p); err != nil || p.UserID == "" {
		c.SendError(model.CodeInvalidEvent, "malformed event")
		return
	}
	if p.UserID != c.Principal.UserID {
		c.SendError(model.CodeInvalidEvent, "cannot join room for different user")
		return
	}
	room := model.DashboardRoom(p.UserID)
	d.hub.Join(c, room)
	c.Send(model.EventDashboardJoined, model.JoinedPayload{
		Room:      room,
		Timestamp: d.now().UTC().Format(time.RFC3339),
	})
	d.log.Debug("dashboard join", "room", room, "members", d.hub.RoomLen(room))
}
