// Package client is the Go dashboard client for the collaboration gateway:
// a websocket session wrapped in an explicit reconnection state machine.
package client

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Status is the connection lifecycle state visible to callers.
type Status string

const (
	StatusConnected    Status = "connected"
	StatusReconnecting Status = "reconnecting"
	StatusDisconnected Status = "disconnected"
)

// State is a snapshot of the reconnection machine. Attempt counts retries in
// the current outage and resets to zero only on a confirmed successful
// connection.
type State struct {
	Status    Status
	Attempt   int
	LastError error
}

// Transport is one live session toward the gateway. The gorilla-backed
// implementation lives in client.go; tests use an in-memory one.
type Transport interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Ping() error
	Close() error
}

// DialFunc establishes a new Transport. Injected so the backoff sequence is
// testable without a network.
type DialFunc func(ctx context.Context) (Transport, error)

// Config carries the reconnection tunables.
type Config struct {
	BaseDelay   time.Duration // first retry delay
	MaxDelay    time.Duration // backoff cap
	MaxAttempts int           // retries before giving up for good
	Heartbeat   time.Duration // ping interval while connected
}

// DefaultConfig matches the dashboard frontend: 2 s base, 60 s cap, 10
// attempts, 30 s heartbeat.
func DefaultConfig() Config {
	return Config{
		BaseDelay:   2 * time.Second,
		MaxDelay:    60 * time.Second,
		MaxAttempts: 10,
		Heartbeat:   30 * time.Second,
	}
}

// Delay returns the retry delay for a given attempt number:
// min(base * 2^attempt, cap). The shift is guarded so large attempt numbers
// cannot overflow past the cap.
func (c Config) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := c.BaseDelay
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= c.MaxDelay {
			return c.MaxDelay
		}
	}
	if d > c.MaxDelay {
		return c.MaxDelay
	}
	return d
}

// ErrMaxAttempts is returned by Run when the retry ceiling is reached. The
// machine is then terminally Disconnected; callers surface this distinctly
// rather than retrying blindly.
var ErrMaxAttempts = errors.New("reconnect: max attempts reached")

// Reconnector keeps a logical connection alive across transient failures.
// An explicit Close (user-initiated disconnect) never triggers reconnection;
// only dial failures and transport-initiated disconnects do.
type Reconnector struct {
	cfg  Config
	dial DialFunc

	// after is the timer source; tests swap it for a virtual clock.
	after func(d time.Duration) <-chan time.Time

	onState   func(State)
	onMessage func(data []byte)
	onConnect func(t Transport)

	mu    sync.Mutex
	state State

	stop     chan struct{}
	stopOnce sync.Once
}

func NewReconnector(cfg Config, dial DialFunc) *Reconnector {
	return &Reconnector{
		cfg:   cfg,
		dial:  dial,
		after: func(d time.Duration) <-chan time.Time { return time.After(d) },
		state: State{Status: StatusDisconnected},
		stop:  make(chan struct{}),
	}
}

// SetTimer replaces the timer source. Test hook.
func (r *Reconnector) SetTimer(after func(d time.Duration) <-chan time.Time) { r.after = after }

// OnState registers an observer invoked on every transition.
func (r *Reconnector) OnState(fn func(State)) { r.onState = fn }

// OnMessage registers the inbound message handler.
func (r *Reconnector) OnMessage(fn func(data []byte)) { r.onMessage = fn }

// OnConnect registers a hook invoked after each successful (re)connection,
// before any message is read. Used to re-join rooms.
func (r *Reconnector) OnConnect(fn func(t Transport)) { r.onConnect = fn }

// State returns the current snapshot.
func (r *Reconnector) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Close is the user-initiated disconnect. The machine goes to Disconnected
// and Run returns without any retry.
func (r *Reconnector) Close() {
	r.stopOnce.Do(func() { close(r.stop) })
}

func (r *Reconnector) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
	if r.onState != nil {
		r.onState(s)
	}
}

// Run drives the state machine until an explicit Close, context
// cancellation, or the attempt ceiling. It returns nil on explicit
// disconnect and ErrMaxAttempts when the machine gives up.
func (r *Reconnector) Run(ctx context.Context) error {
	attempt := 0
	for {
		if ctx.Err() != nil || r.isStopped() {
			r.setState(State{Status: StatusDisconnected, Attempt: attempt})
			return ctx.Err()
		}

		t, err := r.dial(ctx)
		if err == nil {
			attempt = 0
			r.setState(State{Status: StatusConnected})
			if r.onConnect != nil {
				r.onConnect(t)
			}
			err = r.serve(ctx, t)
			if err == nil {
				// Explicit disconnect or context cancellation: terminal.
				r.setState(State{Status: StatusDisconnected})
				return ctx.Err()
			}
		}

		if r.isStopped() || ctx.Err() != nil {
			r.setState(State{Status: StatusDisconnected, LastError: err})
			return ctx.Err()
		}
		if attempt >= r.cfg.MaxAttempts {
			r.setState(State{Status: StatusDisconnected, Attempt: attempt, LastError: err})
			return ErrMaxAttempts
		}
		r.setState(State{Status: StatusReconnecting, Attempt: attempt, LastError: err})

		select {
		case <-ctx.Done():
			r.setState(State{Status: StatusDisconnected, Attempt: attempt, LastError: err})
			return ctx.Err()
		case <-r.stop:
			r.setState(State{Status: StatusDisconnected, Attempt: attempt, LastError: err})
			return nil
		case <-r.after(r.cfg.Delay(attempt)):
		}
		attempt++
	}
}

// serve pumps one live transport: a reader goroutine plus the heartbeat
// timer. Returns nil when the shutdown was user- or context-initiated, and
// the transport error otherwise. The heartbeat stops with the session either
// way.
func (r *Reconnector) serve(ctx context.Context, t Transport) error {
	readErr := make(chan error, 1)
	go func() {
		for {
			data, err := t.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			if r.onMessage != nil {
				r.onMessage(data)
			}
		}
	}()

	hb := r.after(r.cfg.Heartbeat)
	for {
		select {
		case <-ctx.Done():
			t.Close()
			return nil
		case <-r.stop:
			t.Close()
			return nil
		case err := <-readErr:
			t.Close()
			return err
		case <-hb:
			if err := t.Ping(); err != nil {
				t.Close()
				return err
			}
			hb = r.after(r.cfg.Heartbeat)
		}
	}
}

func (r *Reconnector) isStopped() bool {
	select {
	case <-r.stop:
		return true
	default:
		return false
	}
}
