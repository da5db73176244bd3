package lock

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/iliyamo/order-collab/internal/model"
)

// Broadcaster is how the manager announces lock transitions. The gateway hub
// satisfies it; tests plug in a recorder. Lock events go to every connection
// because any viewer of the order list needs current lock state, not just
// members of one room.
type Broadcaster interface {
	BroadcastAll(event string, payload any)
}

// Result is the outcome of an Acquire call. Exactly one of Granted/Conflict
// applies: on success Lock is the caller's (possibly re-acquired) lock, on
// conflict it describes the current holder so the UI can render
// "locked by X".
type Result struct {
	Granted bool
	Lock    model.OrderLock
}

// Manager implements acquire/release semantics for order locks on top of an
// atomic Store. It is safe for concurrent use from any number of goroutines
// and processes; all coordination happens in the store.
type Manager struct {
	store     Store
	broadcast Broadcaster
	ttl       time.Duration
	now       func() time.Time
}

func NewManager(store Store, b Broadcaster, ttl time.Duration) *Manager {
	return &Manager{store: store, broadcast: b, ttl: ttl, now: time.Now}
}

// SetClock replaces the time source used for lockedAt stamps. Test hook.
func (m *Manager) SetClock(now func() time.Time) { m.now = now }

func lockKey(orderID string) string { return "lock:" + orderID }

// Acquire attempts to take the edit lock on an order. First acquirer wins;
// the holder re-acquiring its own unexpired lock is reported as granted and
// re-broadcast. Every grant emits order:locked to all connections before
// returning.
func (m *Manager) Acquire(ctx context.Context, orderID, userID, userName string) (Result, error) {
	l := model.OrderLock{
		OrderID:          orderID,
		LockedByUserID:   userID,
		LockedByUserName: userName,
		LockedAt:         m.now().UTC(),
	}
	raw, err := json.Marshal(model.LockedPayloadFrom(l))
	if err != nil {
		return Result{}, fmt.Errorf("marshal lock: %w", err)
	}

	// Bounded retry: when the losing Get below finds the key already expired,
	// one more SetIfAbsent settles it.
	for attempt := 0; attempt < 2; attempt++ {
		ok, err := m.store.SetIfAbsent(ctx, lockKey(orderID), string(raw), m.ttl)
		if err != nil {
			return Result{}, fmt.Errorf("lock store: %w", err)
		}
		if ok {
			m.broadcast.BroadcastAll(model.EventOrderLocked, model.LockedPayloadFrom(l))
			return Result{Granted: true, Lock: l}, nil
		}

		existing, found, err := m.store.Get(ctx, lockKey(orderID))
		if err != nil {
			return Result{}, fmt.Errorf("lock store: %w", err)
		}
		if !found {
			// Expired between the SetIfAbsent and the Get; try again.
			continue
		}
		held, err := decodeLock(existing)
		if err != nil {
			return Result{}, fmt.Errorf("decode held lock: %w", err)
		}
		if held.LockedByUserID == userID {
			// Re-acquire by the current holder. The broadcast is
			// unconditional so late joiners converge on the lock state.
			m.broadcast.BroadcastAll(model.EventOrderLocked, model.LockedPayloadFrom(held))
			return Result{Granted: true, Lock: held}, nil
		}
		return Result{Granted: false, Lock: held}, nil
	}
	return Result{}, fmt.Errorf("lock store: unable to settle acquire for order %s", orderID)
}

// Release drops the caller's lock on an order. Releasing a lock that does not
// exist, or that a different user holds, is a silent no-op: the method
// reports released=false and no error, and nothing is broadcast. A successful
// release emits order:unlocked to all connections.
func (m *Manager) Release(ctx context.Context, orderID, userID string) (bool, error) {
	ok, err := m.store.DeleteIfHolder(ctx, lockKey(orderID), userID)
	if err != nil {
		return false, fmt.Errorf("lock store: %w", err)
	}
	if !ok {
		return false, nil
	}
	m.broadcast.BroadcastAll(model.EventOrderUnlocked, model.UnlockedPayload{OrderID: orderID})
	return true, nil
}

// Current returns the unexpired lock on an order, if any. Observers use it to
// resync after a silent TTL expiry, which emits no unlock event.
func (m *Manager) Current(ctx context.Context, orderID string) (model.OrderLock, bool, error) {
	v, found, err := m.store.Get(ctx, lockKey(orderID))
	if err != nil {
		return model.OrderLock{}, false, fmt.Errorf("lock store: %w", err)
	}
	if !found {
		return model.OrderLock{}, false, nil
	}
	l, err := decodeLock(v)
	if err != nil {
		return model.OrderLock{}, false, fmt.Errorf("decode held lock: %w", err)
	}
	return l, true, nil
}

func decodeLock(raw string) (model.OrderLock, error) {
	var p model.LockedPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return model.OrderLock{}, err
	}
	at, err := time.Parse(time.RFC3339, p.LockedAt)
	if err != nil {
		return model.OrderLock{}, err
	}
	return model.OrderLock{
		OrderID:          p.OrderID,
		LockedByUserID:   p.LockedByUserID,
		LockedByUserName: p.LockedByUserName,
		LockedAt:         at,
	}, nil
}
