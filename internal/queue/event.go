// Package queue defines message payloads exchanged over the message broker
// and the background consumer that feeds them into the broadcast throttler.
package queue

import "github.com/iliyamo/order-collab/internal/model"

// MetricsChangedEvent is published by the CRUD service whenever an
// operational metric moves (orders placed, revenue, low-stock count, ...).
// Metrics carries only the fields that changed; the throttler merges
// successive events before anything reaches a dashboard.
type MetricsChangedEvent struct {
	UserID    string             `json:"user_id"`
	Metrics   model.MetricsDelta `json:"metrics"`
	ChangedAt string             `json:"changed_at"`
}
