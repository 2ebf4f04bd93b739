package parley

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Default timing for broker sessions.
const (
	DefaultCallTimeout    = 30 * time.Second
	DefaultConnectTimeout = 10 * time.Second

	pingInterval = 30 * time.Second
	pongWait     = 90 * time.Second
)

// Handler processes one inbound event. The data is the event's raw JSON
// payload. A non-nil return value is serialized and sent back to the broker
// as the event's acknowledgement (when the broker asked for one).
type Handler func(data json.RawMessage) any

// Transport is the event-stream session to the broker: request/response
// calls correlated by the transport, fire-and-forget emits, and inbound
// dispatch to registered handlers.
//
// Handlers registered with On run inline on the receive loop and must be
// short. Handlers registered with OnWorker run on a fresh goroutine per
// event and are acknowledged immediately; use them for work that may block
// (message receipt that triggers an LLM call, notification relay).
type Transport interface {
	// Connect opens the session and starts the receive loop. Connecting an
	// already-open session is a no-op.
	Connect(ctx context.Context) error
	// Call sends an event and blocks until the broker acknowledges it or the
	// timeout elapses. A zero or negative timeout means DefaultCallTimeout.
	Call(ctx context.Context, event string, payload any, timeout time.Duration) (json.RawMessage, error)
	// Emit sends an event without waiting for an acknowledgement.
	Emit(event string, payload any) error
	// On registers an inline handler for an inbound event.
	On(event string, h Handler)
	// OnWorker registers a handler that runs on its own goroutine per event.
	OnWorker(event string, h Handler)
	// Connected reports whether the session is currently open.
	Connected() bool
	// Wait blocks until the current session ends.
	Wait()
	// Close tears the session down.
	Close() error
}

// frame is the wire envelope. Calls carry a correlation ID; the reply comes
// back as an "ack" frame with the same ID. Pushes from the broker may carry
// an ID too, in which case the handler's return value is acked back.
type frame struct {
	Event string          `json:"event"`
	ID    uint64          `json:"id,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

const ackEvent = "ack"

// SocketClient is the gorilla/websocket implementation of Transport.
// One SocketClient owns at most one live connection; a dropped connection
// is not redialed automatically; callers invoke Connect again. Handlers
// persist across reconnects.
type SocketClient struct {
	baseURL     string
	memberName  string
	memberID    string
	callTimeout time.Duration
	dialer      *websocket.Dialer
	logger      *slog.Logger

	mu   sync.Mutex
	conn *websocket.Conn
	done chan struct{} // closed when the read loop for the current conn exits

	handlerMu sync.RWMutex
	handlers  map[string]registeredHandler

	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[uint64]chan json.RawMessage
	nextID    atomic.Uint64
}

type registeredHandler struct {
	fn     Handler
	worker bool
}

// SocketOption configures a SocketClient.
type SocketOption func(*SocketClient)

// SocketCallTimeout sets the default timeout for Call (default 30s).
func SocketCallTimeout(d time.Duration) SocketOption {
	return func(s *SocketClient) { s.callTimeout = d }
}

// SocketLogger sets the structured logger. If not set, a no-op logger is used.
func SocketLogger(l *slog.Logger) SocketOption {
	return func(s *SocketClient) { s.logger = l }
}

// NewSocketClient creates a transport for the broker at baseURL
// (e.g. "http://localhost:3000"). The member identity is carried once, in
// the auth frame sent at socket open.
func NewSocketClient(baseURL, memberName, memberID string, opts ...SocketOption) *SocketClient {
	s := &SocketClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		memberName:  memberName,
		memberID:    memberID,
		callTimeout: DefaultCallTimeout,
		dialer:      websocket.DefaultDialer,
		handlers:    make(map[string]registeredHandler),
		pending:     make(map[uint64]chan json.RawMessage),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = nopLogger
	}
	return s
}

// wsURL converts the HTTP base URL to the websocket endpoint.
func (s *SocketClient) wsURL() (string, error) {
	u, err := url.Parse(s.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/chat"
	return u.String(), nil
}

// Connect dials the broker, sends the auth frame, and starts the receive
// loop. It does not wait for the login response push; Client.Login does.
// Calling Connect on an already-open session is a no-op.
func (s *SocketClient) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		return nil
	}

	target, err := s.wsURL()
	if err != nil {
		return err
	}
	conn, _, err := s.dialer.DialContext(ctx, target, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", target, err)
	}

	auth := map[string]string{"member_name": s.memberName, "member_id": s.memberID}
	if err := s.writeFrame(conn, frame{Event: "auth", Data: mustMarshal(auth)}); err != nil {
		conn.Close()
		return fmt.Errorf("send auth: %w", err)
	}

	done := make(chan struct{})
	s.conn = conn
	s.done = done

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go s.readLoop(conn, done)
	go s.pingLoop(conn, done)
	return nil
}

// Connected reports whether the session is currently open.
func (s *SocketClient) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// On registers an inline handler. Registering twice for the same event
// replaces the previous handler.
func (s *SocketClient) On(event string, h Handler) {
	s.handlerMu.Lock()
	defer s.handlerMu.Unlock()
	s.handlers[event] = registeredHandler{fn: h}
}

// OnWorker registers a handler dispatched on a fresh goroutine per event.
// The broker's delivery is acknowledged with true before the handler runs,
// so slow handlers never stall the receive loop.
func (s *SocketClient) OnWorker(event string, h Handler) {
	s.handlerMu.Lock()
	defer s.handlerMu.Unlock()
	s.handlers[event] = registeredHandler{fn: h, worker: true}
}

// Call sends an event and waits for the correlated acknowledgement.
func (s *SocketClient) Call(ctx context.Context, event string, payload any, timeout time.Duration) (json.RawMessage, error) {
	s.mu.Lock()
	conn, done := s.conn, s.done
	s.mu.Unlock()
	if conn == nil {
		return nil, ErrNotConnected
	}
	if timeout <= 0 {
		timeout = s.callTimeout
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", event, err)
	}

	id := s.nextID.Add(1)
	reply := make(chan json.RawMessage, 1)
	s.pendingMu.Lock()
	s.pending[id] = reply
	s.pendingMu.Unlock()
	defer func() {
		s.pendingMu.Lock()
		delete(s.pending, id)
		s.pendingMu.Unlock()
	}()

	if err := s.writeFrame(conn, frame{Event: event, ID: id, Data: data}); err != nil {
		return nil, fmt.Errorf("write %s: %w", event, err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case r := <-reply:
		return r, nil
	case <-timer.C:
		return nil, fmt.Errorf("%s: %w", event, ErrCallTimeout)
	case <-done:
		return nil, ErrNotConnected
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Emit sends an event without an acknowledgement.
func (s *SocketClient) Emit(event string, payload any) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", event, err)
	}
	return s.writeFrame(conn, frame{Event: event, Data: data})
}

// Wait blocks until the current session ends. Returns immediately when no
// session is open.
func (s *SocketClient) Wait() {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Close tears the session down. The receive loop observes the closed
// connection and runs the normal disconnect path.
func (s *SocketClient) Close() error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

func (s *SocketClient) writeFrame(conn *websocket.Conn, f frame) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return conn.WriteJSON(f)
}

func (s *SocketClient) pingLoop(conn *websocket.Conn, done chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			s.writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			s.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// readLoop is the single receive loop for one connection. Every inbound
// frame is dispatched here; handler mode decides inline vs worker execution.
func (s *SocketClient) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer s.teardown(conn, done)
	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("session closed", "member_id", s.memberID, "error", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		if f.Event == ackEvent {
			s.pendingMu.Lock()
			reply, ok := s.pending[f.ID]
			s.pendingMu.Unlock()
			if ok {
				reply <- f.Data
			}
			continue
		}
		s.dispatch(conn, f)
	}
}

func (s *SocketClient) dispatch(conn *websocket.Conn, f frame) {
	s.handlerMu.RLock()
	h, ok := s.handlers[f.Event]
	s.handlerMu.RUnlock()
	if !ok {
		s.logger.Warn("no handler for event", "event", f.Event)
		return
	}

	if h.worker {
		// Ack delivery first so the broker never waits on a slow handler.
		if f.ID != 0 {
			s.ack(conn, f.ID, true)
		}
		go h.fn(f.Data)
		return
	}

	ret := h.fn(f.Data)
	if f.ID != 0 && ret != nil {
		s.ack(conn, f.ID, ret)
	}
}

func (s *SocketClient) ack(conn *websocket.Conn, id uint64, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Warn("marshal ack", "error", err)
		return
	}
	if err := s.writeFrame(conn, frame{Event: ackEvent, ID: id, Data: data}); err != nil {
		s.logger.Warn("write ack", "error", err)
	}
}

// teardown runs exactly once per connection, when its read loop exits.
// Pending calls fail with ErrNotConnected (via the closed done channel) and
// the disconnect handler, if any, runs inline.
func (s *SocketClient) teardown(conn *websocket.Conn, done chan struct{}) {
	conn.Close()

	s.mu.Lock()
	if s.conn == conn {
		s.conn = nil
	}
	s.mu.Unlock()

	close(done)

	s.handlerMu.RLock()
	h, ok := s.handlers[EventDisconnect]
	s.handlerMu.RUnlock()
	if ok {
		h.fn(nil)
	}
}

func mustMarshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}

// compile-time check
var _ Transport = (*SocketClient)(nil)
