package model // package model defines the shared domain types of the collaboration service

import "time"

// OrderLock records exclusive, time-bounded edit access to a single order.
// The authoritative copy lives in the shared lock store under the key
// "lock:<order_id>"; everything held in process memory is advisory. A lock
// disappears either through an explicit release or through store-side TTL
// expiry, in which case no unlock event is emitted (the next successful
// acquire is the only signal observers receive).
type OrderLock struct {
	OrderID          string    `json:"order_id"`
	LockedByUserID   string    `json:"locked_by_user_id"`
	LockedByUserName string    `json:"locked_by_user_name"`
	LockedAt         time.Time `json:"locked_at"`
}

// LockedPayload is the wire form of the order:locked broadcast. LockedAt is
// serialized as ISO-8601 so non-Go dashboard clients can parse it directly.
type LockedPayload struct {
	OrderID          string `json:"order_id"`
	LockedByUserID   string `json:"locked_by_user_id"`
	LockedByUserName string `json:"locked_by_user_name"`
	LockedAt         string `json:"locked_at"`
}

// UnlockedPayload is the wire form of the order:unlocked broadcast. It
// deliberately carries only the order identifier: any viewer may observe an
// unlock regardless of who held the lock, so no holder metadata is exposed.
type UnlockedPayload struct {
	OrderID string `json:"order_id"`
}

// LockedPayloadFrom converts a lock into its broadcast representation.
func LockedPayloadFrom(l OrderLock) LockedPayload {
	return LockedPayload{
		OrderID:          l.OrderID,
		LockedByUserID:   l.LockedByUserID,
		LockedByUserName: l.LockedByUserName,
		LockedAt:         l.LockedAt.UTC().Format(time.RFC3339),
	}
}
