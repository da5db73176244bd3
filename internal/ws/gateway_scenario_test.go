package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/order-collab/internal/lock"
	"github.com/iliyamo/order-collab/internal/model"
	"github.com/iliyamo/order-collab/internal/throttle"
)

// TestLockLifecycleReachesAllViewers replays the whole collaboration flow:
// Alice locks order-1, everyone sees it; she releases, everyone sees that;
// Bob can then take the lock.
func TestLockLifecycleReachesAllViewers(t *testing.T) {
	hub := NewHub(slog.Default())
	_, sockA := admit(t, hub, "alice", testOpts())
	_, sockB := admit(t, hub, "bob", testOpts())

	mgr := lock.NewManager(lock.NewMemoryStore(), hub, time.Minute)
	ctx := context.Background()

	res, err := mgr.Acquire(ctx, "order-1", "alice", "Alice")
	require.NoError(t, err)
	require.True(t, res.Granted)

	for _, sock := range []*fakeSock{sockA, sockB} {
		env := sock.nextEnvelope(t)
		require.Equal(t, model.EventOrderLocked, env.Event)
		var p model.LockedPayload
		require.NoError(t, json.Unmarshal(env.Data, &p))
		assert.Equal(t, "order-1", p.OrderID)
		assert.Equal(t, "alice", p.LockedByUserID)
		assert.Equal(t, "Alice", p.LockedByUserName)
	}

	released, err := mgr.Release(ctx, "order-1", "alice")
	require.NoError(t, err)
	require.True(t, released)

	for _, sock := range []*fakeSock{sockA, sockB} {
		env := sock.nextEnvelope(t)
		require.Equal(t, model.EventOrderUnlocked, env.Event)
		var p model.UnlockedPayload
		require.NoError(t, json.Unmarshal(env.Data, &p))
		assert.Equal(t, "order-1", p.OrderID)
	}

	res, err = mgr.Acquire(ctx, "order-1", "bob", "Bob")
	require.NoError(t, err)
	assert.True(t, res.Granted, "bob acquires after alice released")

	for _, sock := range []*fakeSock{sockA, sockB} {
		env := sock.nextEnvelope(t)
		require.Equal(t, model.EventOrderLocked, env.Event)
		var p model.LockedPayload
		require.NoError(t, json.Unmarshal(env.Data, &p))
		assert.Equal(t, "bob", p.LockedByUserID)
	}
}

// TestThrottledMetricsLandInOneRoom runs the throttler against a real hub:
// a burst of deltas for Alice arrives as one merged update in her room and
// nothing leaks to Bob.
func TestThrottledMetricsLandInOneRoom(t *testing.T) {
	hub := NewHub(slog.Default())
	connA, sockA := admit(t, hub, "alice", testOpts())
	connB, sockB := admit(t, hub, "bob", testOpts())
	hub.Join(connA, model.DashboardRoom("alice"))
	hub.Join(connB, model.DashboardRoom("bob"))

	var pending []func()
	th := throttle.New(time.Second, hub)
	th.SetScheduler(func(_ time.Duration, f func()) { pending = append(pending, f) })

	th.Submit("alice", model.MetricsDelta{"orders_today": 1})
	th.Submit("alice", model.MetricsDelta{"orders_today": 2, "revenue": 50})
	require.Len(t, pending, 1, "a burst schedules a single flush")
	pending[0]()

	env := sockA.nextEnvelope(t)
	require.Equal(t, model.EventMetricsUpdate, env.Event)
	var p model.MetricsPayload
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.Equal(t, model.MetricsDelta{"orders_today": 2, "revenue": 50}, p.Metrics)

	sockB.expectNoFrame(t)
}
