package model

import (
	"encoding/json"
	"time"
)

// Event names exchanged over the websocket channel. Client-to-server events
// are dispatched through the gateway's handler table; server-to-client events
// are produced by the hub, the lock manager and the throttler.
const (
	// client -> server
	EventDashboardJoin = "dashboard:join"

	// server -> client
	EventConnectionStatus = "connection:status"
	EventDashboardJoined  = "dashboard:joined"
	EventMetricsUpdate    = "metrics:update"
	EventOrderLocked      = "order:locked"
	EventOrderUnlocked    = "order:unlocked"
	EventError            = "error"
)

// Error codes carried in the error event payload.
const (
	CodeAuthFailed   = "AUTH_FAILED"
	CodeInvalidEvent = "INVALID_EVENT"
	CodeRateLimit    = "RATE_LIMIT"
	CodeServerError  = "SERVER_ERROR"
)

// Envelope is the frame every websocket message travels in. Data holds the
// event-specific payload and stays raw until the dispatcher knows which
// handler wants it.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope marshals payload into an Envelope. Marshal errors are returned
// to the caller; payload types in this package cannot fail to marshal.
func NewEnvelope(event string, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Event: event, Data: data}, nil
}

// Principal is the authenticated identity bound to a connection. It is
// produced by the auth verifier before a Connection record exists; the
// gateway never tracks an unauthenticated session.
type Principal struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// DashboardRoom derives the broadcast room address for a principal. Rooms are
// not persisted anywhere; the name is recomputed from identity wherever it is
// needed.
func DashboardRoom(userID string) string { return "dashboard:" + userID }

// ErrorPayload is the payload of the error event.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// StatusPayload is the payload of connection:status, sent once after a
// successful handshake.
type StatusPayload struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// JoinPayload is the client payload of dashboard:join.
type JoinPayload struct {
	UserID string `json:"userId"`
}

// JoinedPayload acknowledges a room join.
type JoinedPayload struct {
	Room      string `json:"room"`
	Timestamp string `json:"timestamp"`
}

// MetricsDelta maps metric names to their newest values. Merging two deltas
// is last-writer-wins per field.
type MetricsDelta map[string]float64

// Merge folds other into d, overwriting fields present in both.
func (d MetricsDelta) Merge(other MetricsDelta) {
	for k, v := range other {
		d[k] = v
	}
}

// MetricsPayload is the payload of metrics:update. It contains only fields
// that were part of at least one submitted delta during the window.
type MetricsPayload struct {
	Metrics   MetricsDelta `json:"metrics"`
	Timestamp string       `json:"timestamp"`
}

// NewMetricsPayload stamps a merged delta with the flush time.
func NewMetricsPayload(metrics MetricsDelta, at time.Time) MetricsPayload {
	return MetricsPayload{Metrics: metrics, Timestamp: at.UTC().Format(time.RFC3339)}
}
