package router // package router defines how HTTP routes are registered for the service

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/iliyamo/order-collab/internal/auth"
	"github.com/iliyamo/order-collab/internal/handler"    // handlers that implement the HTTP surface
	"github.com/iliyamo/order-collab/internal/middleware" // middleware for JWT authentication and role enforcement
	"github.com/iliyamo/order-collab/internal/ws"
)

// RegisterRoutes wires the whole HTTP surface of the collaboration service:
// a health check for load balancers, the websocket gateway endpoint, and the
// lock endpoints consumed by the order-edit screens.
//
// The websocket endpoint performs its own authentication during the
// handshake (the credential may arrive as a query token), so it is not
// wrapped in the JWT middleware. The lock group is: only authenticated staff
// may take or drop edit locks.
func RegisterRoutes(e *echo.Echo, gw *ws.Gateway, locks *handler.LockHandler, v *auth.Verifier) {
	// Health endpoint used by load balancers and monitoring.
	e.GET("/healthz", handler.Health)

	// Persistent bidirectional channel for dashboard clients.
	e.GET("/ws", gw.Handle)

	// Lock endpoints for the surrounding CRUD application.
	g := e.Group("/v1")
	g.Use(middleware.JWTAuth(v))
	g.Use(middleware.RequireRole("OWNER", "STAFF"))
	g.POST("/orders/:id/lock", locks.Acquire)
	g.DELETE("/orders/:id/lock", locks.Release)
	g.GET("/orders/:id/lock", locks.Current)
}
