package ws

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/order-collab/internal/model"
)

// fakeSock is an in-memory transport capturing everything the writer pump
// sends.
type fakeSock struct {
	frames chan []byte
	closed chan struct{}
	once   sync.Once
}

func newFakeSock() *fakeSock {
	return &fakeSock{frames: make(chan []byte, 64), closed: make(chan struct{})}
}

func (s *fakeSock) ReadMessage() (int, []byte, error) {
	<-s.closed
	return 0, nil, errors.New("closed")
}

func (s *fakeSock) WriteMessage(_ int, data []byte) error {
	select {
	case s.frames <- data:
		return nil
	case <-s.closed:
		return errors.New("closed")
	}
}

func (s *fakeSock) SetWriteDeadline(time.Time) error { return nil }

func (s *fakeSock) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

// nextEnvelope waits for the next frame written to the sock.
func (s *fakeSock) nextEnvelope(t *testing.T) model.Envelope {
	t.Helper()
	select {
	case data := <-s.frames:
		var env model.Envelope
		require.NoError(t, json.Unmarshal(data, &env))
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("no frame received")
		return model.Envelope{}
	}
}

func (s *fakeSock) expectNoFrame(t *testing.T) {
	t.Helper()
	select {
	case data := <-s.frames:
		t.Fatalf("unexpected frame: %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func testOpts() ConnOptions {
	return ConnOptions{QueueSize: 64, WriteTimeout: time.Second, EventBurst: 100, EventRefill: time.Second}
}

// admit builds an authenticated connection on a fake transport and registers
// it with the hub.
func admit(t *testing.T, hub *Hub, userID string, opt ConnOptions) (*Connection, *fakeSock) {
	t.Helper()
	sock := newFakeSock()
	conn := newConnection(sock, model.Principal{UserID: userID, Role: "OWNER"}, opt, slog.Default())
	hub.Add(conn)
	go conn.writePump()
	t.Cleanup(conn.Close)
	return conn, sock
}

func TestBroadcastAllReachesEveryConnection(t *testing.T) {
	hub := NewHub(slog.Default())
	_, sockA := admit(t, hub, "alice", testOpts())
	_, sockB := admit(t, hub, "bob", testOpts())

	hub.BroadcastAll(model.EventOrderUnlocked, model.UnlockedPayload{OrderID: "order-1"})

	for _, s := range []*fakeSock{sockA, sockB} {
		env := s.nextEnvelope(t)
		assert.Equal(t, model.EventOrderUnlocked, env.Event)
	}
}

func TestBroadcastWithZeroConnections(t *testing.T) {
	hub := NewHub(slog.Default())
	// Neither call may panic or error with an empty audience.
	hub.BroadcastAll(model.EventOrderLocked, model.LockedPayload{OrderID: "order-1"})
	hub.BroadcastRoom("dashboard:nobody", model.EventMetricsUpdate, model.MetricsPayload{})
	assert.Zero(t, hub.Len())
}

func TestBroadcastRoomOnlyReachesMembers(t *testing.T) {
	hub := NewHub(slog.Default())
	connA, sockA := admit(t, hub, "alice", testOpts())
	_, sockB := admit(t, hub, "bob", testOpts())

	hub.Join(connA, model.DashboardRoom("alice"))
	hub.BroadcastRoom(model.DashboardRoom("alice"), model.EventMetricsUpdate,
		model.NewMetricsPayload(model.MetricsDelta{"orders_today": 4}, time.Now()))

	env := sockA.nextEnvelope(t)
	assert.Equal(t, model.EventMetricsUpdate, env.Event)
	sockB.expectNoFrame(t)
}

func TestPerConnectionDeliveryOrder(t *testing.T) {
	hub := NewHub(slog.Default())
	_, sock := admit(t, hub, "alice", testOpts())

	for i := 0; i < 10; i++ {
		hub.BroadcastAll(model.EventOrderUnlocked, model.UnlockedPayload{OrderID: orderID(i)})
	}
	for i := 0; i < 10; i++ {
		env := sock.nextEnvelope(t)
		var p model.UnlockedPayload
		require.NoError(t, json.Unmarshal(env.Data, &p))
		assert.Equal(t, orderID(i), p.OrderID, "events must arrive in broadcast order")
	}
}

func orderID(i int) string { return "order-" + string(rune('0'+i)) }

func TestRemoveDropsMemberships(t *testing.T) {
	hub := NewHub(slog.Default())
	conn, _ := admit(t, hub, "alice", testOpts())
	hub.Join(conn, model.DashboardRoom("alice"))
	require.Equal(t, 1, hub.RoomLen(model.DashboardRoom("alice")))

	hub.Remove(conn)
	assert.Zero(t, hub.Len())
	assert.Zero(t, hub.RoomLen(model.DashboardRoom("alice")))
}

func TestJoinIsIdempotent(t *testing.T) {
	hub := NewHub(slog.Default())
	conn, _ := admit(t, hub, "alice", testOpts())

	room := model.DashboardRoom("alice")
	hub.Join(conn, room)
	hub.Join(conn, room)
	assert.Equal(t, 1, hub.RoomLen(room))
}
