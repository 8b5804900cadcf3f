// Package ws implements the WebSocket transport state machine: a
// persistent connection with reconnect-with-backoff, heartbeat, and a
// correlation table that routes inbound messages back to the caller
// that sent the matching id — the hardest transport in the fabric
// (spec.md §4.5/§C5).
//
// It generalizes the teacher's transport.ClientTransport (recvLoop +
// sync.Map pending table + heartbeatLoop + a sending mutex) from a
// custom TCP frame to JSON-over-WebSocket, and resolves spec.md §9's
// open question by keying the correlation table on a channel per id
// (so a streaming response can deliver multiple items and close on
// stream.done) instead of a single-item future.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/faberic/fabric"
)

// conn is the subset of *websocket.Conn the transport needs; abstracted
// so tests can substitute a fake without a real socket. *websocket.Conn
// satisfies this interface structurally.
type conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	Close() error
	SetReadDeadline(time.Time) error
	SetPongHandler(func(string) error)
}

// Dialer opens a new connection to url. The default uses
// gorilla/websocket; tests inject a fake.
type Dialer func(ctx context.Context, url string) (conn, error)

func defaultDialer(ctx context.Context, url string) (conn, error) {
	c, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Config tunes the reconnect/heartbeat behavior.
type Config struct {
	URL               string
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	Multiplier        float64
	MaxAttempts       int // 0 means unlimited
	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
	ConnectionTimeout time.Duration
	Dialer            Dialer
	Logger            *zap.Logger
}

func (c Config) withDefaults() Config {
	if c.InitialDelay == 0 {
		c.InitialDelay = 200 * time.Millisecond
	}
	if c.MaxDelay == 0 {
		c.MaxDelay = 30 * time.Second
	}
	if c.Multiplier == 0 {
		c.Multiplier = 2
	}
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = 30 * time.Second
	}
	if c.HeartbeatTimeout == 0 {
		c.HeartbeatTimeout = 10 * time.Second
	}
	if c.ConnectionTimeout == 0 {
		c.ConnectionTimeout = 10 * time.Second
	}
	if c.Dialer == nil {
		c.Dialer = defaultDialer
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

type pendingEntry struct {
	ch       chan *fabric.ResponseItem
	finished chan struct{}
	once     sync.Once
}

func newPendingEntry() *pendingEntry {
	return &pendingEntry{ch: make(chan *fabric.ResponseItem, 16), finished: make(chan struct{})}
}

// finish closes the entry's channel and signals any ctx-watcher
// goroutine that it no longer needs to wait. Safe to call more than
// once (e.g. both the recvLoop and a ctx-cancellation race can try).
func (e *pendingEntry) finish() {
	e.once.Do(func() { close(e.finished); close(e.ch) })
}

// Transport implements transport.Transport over a single persistent
// WebSocket connection, reconnecting automatically on failure.
type Transport struct {
	cfg Config

	mu       sync.Mutex
	c        conn
	st       stateBox
	attempt  int
	gate     chan struct{} // closed exactly when connected; replaced on every transition away from connected
	writeMu  sync.Mutex
	pending  sync.Map // id -> *pendingEntry
	closeCh  chan struct{}
	closedMu sync.Once

	heartbeatCancel context.CancelFunc
	pendingPingID   string
	pongDeadline    *time.Time
}

// New constructs a Transport and starts connecting in the background.
func New(cfg Config) *Transport {
	cfg = cfg.withDefaults()
	t := &Transport{cfg: cfg, gate: make(chan struct{}), closeCh: make(chan struct{})}
	t.st.Store(connecting)
	go t.connectLoop()
	return t
}

func (t *Transport) Name() string { return "websocket" }

// Send waits for a connection (up to ConnectionTimeout), writes the
// envelope as a request frame, and returns a channel of response items
// correlated by env.ID. On any failure it yields a single error item
// rather than returning a Go error, per spec.md §4.2.
func (t *Transport) Send(ctx context.Context, env *fabric.Envelope) (<-chan *fabric.ResponseItem, error) {
	id := env.ID
	if id == "" {
		id = uuid.NewString()
	}

	waitCtx, cancel := context.WithTimeout(ctx, t.cfg.ConnectionTimeout)
	defer cancel()
	if err := t.waitConnected(waitCtx); err != nil {
		return oneItem(&fabric.ResponseItem{ID: id, Status: fabric.Err(fabric.CodeAborted, err.Error(), false)}), nil
	}

	entry := newPendingEntry()
	t.pending.Store(id, entry)

	payload := wireMessage{ID: id, Type: typeRequest, Method: &env.Method, Payload: env.Payload, Metadata: env.Metadata}
	data, err := json.Marshal(payload)
	if err != nil {
		t.pending.Delete(id)
		return oneItem(&fabric.ResponseItem{ID: id, Status: fabric.Err(fabric.CodeExecutionError, err.Error(), false)}), nil
	}

	if err := t.writeMessage(data); err != nil {
		t.pending.Delete(id)
		return oneItem(&fabric.ResponseItem{ID: id, Status: fabric.Err(fabric.CodeExecutionError, err.Error(), true)}), nil
	}

	// Watch for external cancellation (ctx or env.Cancel) so a caller
	// that gives up doesn't leak a correlation-table entry forever.
	go t.watchCancellation(ctx, env, id, entry)

	return entry.ch, nil
}

func (t *Transport) watchCancellation(ctx context.Context, env *fabric.Envelope, id string, entry *pendingEntry) {
	var cancelDone <-chan struct{}
	if env.Cancel != nil {
		cancelDone = env.Cancel.Done()
	}
	select {
	case <-ctx.Done():
	case <-cancelDone:
	case <-entry.finished:
		return
	}
	if _, ok := t.pending.LoadAndDelete(id); ok {
		select {
		case entry.ch <- &fabric.ResponseItem{ID: id, Status: fabric.Err(fabric.CodeAborted, "cancelled", false)}:
		default:
		}
		entry.finish()
	}
}

func oneItem(item *fabric.ResponseItem) <-chan *fabric.ResponseItem {
	ch := make(chan *fabric.ResponseItem, 1)
	ch <- item
	close(ch)
	return ch
}

// Close performs the DISCONNECTING -> DISCONNECTED transition: it stops
// reconnect attempts, closes the socket, cancels the heartbeat, and
// rejects every outstanding correlated request with a terminal error.
func (t *Transport) Close() error {
	t.closedMu.Do(func() { close(t.closeCh) })
	t.st.Store(disconnecting)

	t.mu.Lock()
	if t.heartbeatCancel != nil {
		t.heartbeatCancel()
	}
	c := t.c
	t.mu.Unlock()
	if c != nil {
		c.Close()
	}

	t.rejectAllPending(fabric.Err(fabric.CodeAborted, "transport closed", false))
	t.st.Store(disconnected)
	return nil
}

func (t *Transport) rejectAllPending(status fabric.Status) {
	t.pending.Range(func(key, value any) bool {
		id := key.(string)
		entry := value.(*pendingEntry)
		select {
		case entry.ch <- &fabric.ResponseItem{ID: id, Status: status}:
		default:
		}
		entry.finish()
		t.pending.Delete(id)
		return true
	})
}

// waitConnected blocks until the transport reaches CONNECTED, ctx is
// done, or the transport has given up reconnecting (disconnected with
// attempts exhausted).
func (t *Transport) waitConnected(ctx context.Context) error {
	for {
		t.mu.Lock()
		s := t.st.Load()
		gate := t.gate
		attempt := t.attempt
		t.mu.Unlock()

		if s == connected {
			return nil
		}
		if s == disconnected && t.cfg.MaxAttempts > 0 && attempt >= t.cfg.MaxAttempts {
			return errors.New("websocket: max reconnect attempts exhausted")
		}
		select {
		case <-gate:
			continue
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (t *Transport) writeMessage(data []byte) error {
	t.mu.Lock()
	c := t.c
	t.mu.Unlock()
	if c == nil {
		return errors.New("websocket: not connected")
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return c.WriteMessage(websocket.TextMessage, data)
}

// connectLoop owns the DISCONNECTED/CONNECTING/RECONNECTING dance: dial,
// and on failure or eventual disconnect, back off and retry.
func (t *Transport) connectLoop() {
	for {
		select {
		case <-t.closeCh:
			return
		default:
		}

		dialCtx, cancel := context.WithTimeout(context.Background(), t.cfg.ConnectionTimeout)
		c, err := t.cfg.Dialer(dialCtx, t.cfg.URL)
		cancel()
		if err != nil {
			if !t.scheduleReconnect() {
				return
			}
			continue
		}

		t.onConnected(c)
		t.readLoop(c) // blocks until the connection dies
		t.onDisconnected()

		if !t.scheduleReconnect() {
			return
		}
	}
}

func (t *Transport) onConnected(c conn) {
	t.mu.Lock()
	t.c = c
	t.attempt = 0
	t.st.Store(connected)
	close(t.gate)
	t.gate = make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	t.heartbeatCancel = cancel
	t.mu.Unlock()

	go t.heartbeatLoop(ctx, c)
}

func (t *Transport) onDisconnected() {
	t.mu.Lock()
	t.c = nil
	if t.heartbeatCancel != nil {
		t.heartbeatCancel()
	}
	if t.st.Load() != disconnecting {
		select {
		case <-t.closeCh:
			// Close owns the final state; don't overwrite it.
		default:
			t.st.Store(reconnecting)
		}
	}
	t.mu.Unlock()

	// Requests are not auto-resent: reject everything outstanding
	// rather than hold it across a reconnect (spec.md §8 scenario 6's
	// chosen reference behavior).
	t.rejectAllPending(fabric.Err(fabric.CodeExecutionError, "connection lost", true))
}

// scheduleReconnect waits out the backoff delay for the current
// attempt, then increments it. Returns false if the transport has been
// closed or attempts are exhausted.
func (t *Transport) scheduleReconnect() bool {
	select {
	case <-t.closeCh:
		return false
	default:
	}

	t.mu.Lock()
	attempt := t.attempt
	maxAttempts := t.cfg.MaxAttempts
	t.mu.Unlock()

	if maxAttempts > 0 && attempt >= maxAttempts {
		t.st.Store(disconnected)
		return false
	}

	delay := time.Duration(math.Min(
		float64(t.cfg.MaxDelay),
		float64(t.cfg.InitialDelay)*math.Pow(t.cfg.Multiplier, float64(attempt)),
	))

	t.mu.Lock()
	t.attempt++
	t.st.Store(reconnecting)
	t.mu.Unlock()

	select {
	case <-time.After(delay):
		return true
	case <-t.closeCh:
		return false
	}
}

// readLoop reads frames until the connection errors, dispatching each
// to the correlation table or the heartbeat pong handler.
func (t *Transport) readLoop(c conn) {
	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			return
		}
		var msg wireMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.cfg.Logger.Warn("websocket: malformed frame", zap.Error(err))
			continue
		}
		t.dispatch(msg)
	}
}

func (t *Transport) dispatch(msg wireMessage) {
	switch msg.Type {
	case typePong:
		t.mu.Lock()
		if msg.ID == t.pendingPingID {
			t.pongDeadline = nil
		}
		t.mu.Unlock()
	case typePing:
		pong := wireMessage{ID: msg.ID, Type: typePong}
		if data, err := json.Marshal(pong); err == nil {
			t.writeMessage(data)
		}
	default:
		v, ok := t.pending.Load(msg.ID)
		if !ok {
			return
		}
		entry := v.(*pendingEntry)
		item := toResponseItem(msg)
		select {
		case entry.ch <- item:
		default:
		}
		if msg.Stream == nil || msg.Stream.Done {
			t.pending.Delete(msg.ID)
			entry.finish()
		}
	}
}

func toResponseItem(msg wireMessage) *fabric.ResponseItem {
	if msg.Type == typeError || msg.Error != nil {
		e := msg.Error
		if e == nil {
			e = &wireError{Message: "unknown error"}
		}
		return &fabric.ResponseItem{ID: msg.ID, Status: fabric.Err(e.Code, e.Message, e.Retryable), Metadata: msg.Metadata}
	}
	code := any(nil)
	if msg.Status != nil {
		code = msg.Status.Code
	}
	return &fabric.ResponseItem{ID: msg.ID, Status: fabric.Ok(code), Payload: msg.Payload, Metadata: msg.Metadata}
}

// heartbeatLoop sends a ping at cfg.HeartbeatInterval and closes the
// connection if a pong doesn't arrive within cfg.HeartbeatTimeout,
// which triggers the normal reconnect path.
func (t *Transport) heartbeatLoop(ctx context.Context, c conn) {
	ticker := time.NewTicker(t.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			id := uuid.NewString()
			t.mu.Lock()
			t.pendingPingID = id
			deadline := time.Now().Add(t.cfg.HeartbeatTimeout)
			t.pongDeadline = &deadline
			t.mu.Unlock()

			ping := wireMessage{ID: id, Type: typePing}
			data, _ := json.Marshal(ping)
			if err := t.writeMessage(data); err != nil {
				c.Close()
				return
			}

			time.AfterFunc(t.cfg.HeartbeatTimeout, func() {
				t.mu.Lock()
				missed := t.pendingPingID == id && t.pongDeadline != nil
				t.mu.Unlock()
				if missed {
					c.Close() // triggers reconnect via readLoop's error return
				}
			})
		}
	}
}
