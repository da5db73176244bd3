package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/order-collab/internal/auth"
	"github.com/iliyamo/order-collab/internal/model"
)

const maxMessageSize = 64 * 1024

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The dashboard SPA is served from a different origin than this service.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Gateway wires the handshake path: upgrade, authenticate, admit, pump.
type Gateway struct {
	hub      *Hub
	dispatch *Dispatcher
	verifier *auth.Verifier
	opt      ConnOptions
	log      *slog.Logger
}

func NewGateway(hub *Hub, dispatch *Dispatcher, verifier *auth.Verifier, opt ConnOptions, log *slog.Logger) *Gateway {
	if log == nil {
		log = slog.Default()
	}
	return &Gateway{hub: hub, dispatch: dispatch, verifier: verifier, opt: opt, log: log}
}

// Handle is the Echo handler for the websocket endpoint. The credential may
// arrive as a "token" query parameter (handshake auth field) or as an
// Authorization bearer header. Verification failures all emit one
// error{AUTH_FAILED} frame and close the socket; no Connection record is ever
// created for an unauthenticated session.
func (g *Gateway) Handle(c echo.Context) error {
	sock, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		return nil
	}

	credential := c.QueryParam("token")
	if credential == "" {
		credential = c.Request().Header.Get("Authorization")
	}
	principal, err := g.verifier.VerifyBearer(credential)
	if err != nil {
		g.reject(sock, err.Error())
		return nil
	}

	conn := newConnection(sock, principal, g.opt, g.log)
	g.hub.Add(conn)
	go conn.writePump()
	conn.Send(model.EventConnectionStatus, model.StatusPayload{
		Status:  "connected",
		Message: "authenticated as " + principal.UserID,
	})

	sock.SetReadLimit(maxMessageSize)
	g.readLoop(conn, sock)
	g.hub.Remove(conn)
	return nil
}

// readLoop pumps inbound frames into the dispatcher until the transport
// fails or the client disconnects. Any in-flight lock or throttle work keeps
// running; its results are simply broadcast to whoever remains connected.
func (g *Gateway) readLoop(conn *Connection, sock *websocket.Conn) {
	for {
		_, data, err := sock.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				g.log.Debug("read failed", "conn_id", conn.ID, "error", err)
			}
			return
		}
		g.dispatch.Dispatch(conn, data)
	}
}

// reject emits a single AUTH_FAILED frame directly on the raw socket and
// closes it. The write bypasses the connection machinery because no
// Connection exists for a failed handshake.
func (g *Gateway) reject(sock *websocket.Conn, message string) {
	env, _ := model.NewEnvelope(model.EventError, model.ErrorPayload{
		Code:    model.CodeAuthFailed,
		Message: message,
	})
	data, _ := json.Marshal(env)
	sock.SetWriteDeadline(time.Now().Add(5 * time.Second))
	sock.WriteMessage(websocket.TextMessage, data)
	sock.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, model.CodeAuthFailed),
		time.Now().Add(time.Second))
	sock.Close()
	g.log.Info("handshake rejected", "reason", message)
}
