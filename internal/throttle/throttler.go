// Package throttle coalesces rapid metric changes so a burst of updates
// reaches each dashboard room as a single message per window instead of one
// message per change.
package throttle

import (
	"sync"
	"time"

	"github.com/iliyamo/order-collab/internal/model"
)

// RoomBroadcaster delivers an event to every member of one room. The gateway
// hub satisfies it.
type RoomBroadcaster interface {
	BroadcastRoom(room, event string, payload any)
}

// Throttler buffers metric deltas per user and flushes the field-wise merge
// at most once per window. The buffer is ephemeral: nothing is persisted, and
// a quiet room sends nothing. Isolation between rooms falls out of keying
// both the buffer and the target room by user id.
type Throttler struct {
	window    time.Duration
	broadcast RoomBroadcaster

	mu      sync.Mutex
	pending map[string]model.MetricsDelta // userID -> merged delta awaiting flush

	now      func() time.Time
	schedule func(d time.Duration, f func())
}

func New(window time.Duration, b RoomBroadcaster) *Throttler {
	return &Throttler{
		window:    window,
		broadcast: b,
		pending:   make(map[string]model.MetricsDelta),
		now:       time.Now,
		schedule:  func(d time.Duration, f func()) { time.AfterFunc(d, f) },
	}
}

// SetClock and SetScheduler replace the time sources. Test hooks; production
// code never calls them.
func (t *Throttler) SetClock(now func() time.Time) { t.now = now }
func (t *Throttler) SetScheduler(schedule func(d time.Duration, f func())) {
	t.schedule = schedule
}

// Submit merges delta into the pending buffer for the user's room and
// schedules a flush if none is outstanding. Later submits within the same
// window only fold into the buffer; the steady-state rate under continuous
// submission is one broadcast per window per room.
func (t *Throttler) Submit(userID string, delta model.MetricsDelta) {
	if len(delta) == 0 {
		return
	}
	t.mu.Lock()
	buf, waiting := t.pending[userID]
	if !waiting {
		buf = make(model.MetricsDelta, len(delta))
		t.pending[userID] = buf
	}
	buf.Merge(delta)
	t.mu.Unlock()

	if !waiting {
		t.schedule(t.window, func() { t.flush(userID) })
	}
}

// flush takes whatever accumulated for the user and broadcasts it. The
// pending entry is removed before broadcasting so a submit racing with the
// flush starts a fresh window rather than losing data.
func (t *Throttler) flush(userID string) {
	t.mu.Lock()
	buf, ok := t.pending[userID]
	delete(t.pending, userID)
	t.mu.Unlock()
	if !ok || len(buf) == 0 {
		return
	}
	payload := model.NewMetricsPayload(buf, t.now())
	t.broadcast.BroadcastRoom(model.DashboardRoom(userID), model.EventMetricsUpdate, payload)
}
