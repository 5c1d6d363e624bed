// Package socket owns the realtime connection to the marketplace backend:
// one authenticated websocket per Manager, booking room membership, and the
// relay that hands server-pushed events to subscribers.
package socket

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"mechanicapp/protocol"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ErrNotConnected is returned by commands that need an open connection.
var ErrNotConnected = errors.New("socket: not connected")

// Conn is the subset of *websocket.Conn the manager relies on.
type Conn interface {
	ReadJSON(v interface{}) error
	WriteJSON(v interface{}) error
	Close() error
}

// Dialer opens a realtime connection.
type Dialer interface {
	Dial(ctx context.Context, endpoint string, header http.Header) (Conn, error)
}

// WebsocketDialer dials with gorilla/websocket.
type WebsocketDialer struct {
	Dialer *websocket.Dialer
}

func (d WebsocketDialer) Dial(ctx context.Context, endpoint string, header http.Header) (Conn, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, resp, err := dialer.DialContext(ctx, endpoint, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", endpoint, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}
	return conn, nil
}

// Credentials supplies the bearer token used at handshake time.
type Credentials interface {
	Token() string
}

// Endpoint derives the websocket URL from the HTTP API origin: http becomes
// ws, https becomes wss, the host is kept and path replaces any API path.
func Endpoint(apiURL, path string) (string, error) {
	u, err := url.Parse(apiURL)
	if err != nil {
		return "", fmt.Errorf("api url: %w", err)
	}
	var scheme string
	switch u.Scheme {
	case "https":
		scheme = "wss"
	case "http":
		scheme = "ws"
	default:
		return "", fmt.Errorf("api url %q: unsupported scheme %q", apiURL, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("api url %q: missing host", apiURL)
	}
	ws := url.URL{Scheme: scheme, Host: u.Host, Path: path}
	return ws.String(), nil
}

// Manager keeps at most one live connection. It is constructed by the
// application root and shared by every screen.
type Manager struct {
	apiURL string
	path   string
	creds  Credentials
	dialer Dialer
	log    *zap.Logger

	mu   sync.Mutex
	conn *Connection
	dial *dialCall
}

// dialCall is a handshake in flight. conn and err are set before done is
// closed.
type dialCall struct {
	done      chan struct{}
	cancel    context.CancelFunc
	abandoned bool
	conn      *Connection
	err       error
}

func NewManager(apiURL, path string, creds Credentials, dialer Dialer, log *zap.Logger) *Manager {
	if dialer == nil {
		dialer = WebsocketDialer{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{apiURL: apiURL, path: path, creds: creds, dialer: dialer, log: log}
}

// Connect returns the live connection, dialing one if needed. Without a
// credential, or when Disconnect abandons the dial, it returns a nil
// connection and a nil error. Concurrent callers share a single dial; the
// lock is not held during the handshake.
func (m *Manager) Connect(ctx context.Context) (*Connection, error) {
	m.mu.Lock()
	if m.conn != nil && m.conn.Connected() {
		conn := m.conn
		m.mu.Unlock()
		return conn, nil
	}
	if call := m.dial; call != nil {
		m.mu.Unlock()
		select {
		case <-call.done:
			return call.conn, call.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	token := m.creds.Token()
	if token == "" {
		m.mu.Unlock()
		return nil, nil
	}
	endpoint, err := Endpoint(m.apiURL, m.path)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	dialCtx, cancel := context.WithCancel(ctx)
	call := &dialCall{done: make(chan struct{}), cancel: cancel}
	m.dial = call
	m.mu.Unlock()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	raw, err := m.dialer.Dial(dialCtx, endpoint, header)
	cancel()

	m.mu.Lock()
	if m.dial == call {
		m.dial = nil
	}
	switch {
	case call.abandoned:
		// Disconnect ran during the handshake.
		if raw != nil {
			raw.Close()
		}
	case err != nil:
		call.err = err
	default:
		m.conn = newConnection(raw, m.log)
		call.conn = m.conn
		m.log.Debug("realtime connected", zap.String("endpoint", endpoint))
	}
	close(call.done)
	m.mu.Unlock()
	return call.conn, call.err
}

// Disconnect closes the live connection, if any, and abandons a dial in
// progress.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	conn := m.conn
	m.conn = nil
	if m.dial != nil {
		m.dial.abandoned = true
		m.dial.cancel()
		m.dial = nil
	}
	m.mu.Unlock()

	if conn != nil {
		conn.Close()
		m.log.Debug("realtime disconnected")
	}
}

// Current returns the live connection or nil.
func (m *Manager) Current() *Connection {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn == nil || !m.conn.Connected() {
		return nil
	}
	return m.conn
}

// Connected reports whether a live connection exists.
func (m *Manager) Connected() bool {
	return m.Current() != nil
}

// JoinRoom subscribes the connection to bookingID's events. Without a
// connection it does nothing.
func (m *Manager) JoinRoom(bookingID string) error {
	c := m.Current()
	if c == nil {
		return nil
	}
	return c.emit(protocol.EventJoinBooking, protocol.RoomCommand{BookingID: bookingID})
}

// LeaveRoom is the inverse of JoinRoom.
func (m *Manager) LeaveRoom(bookingID string) error {
	c := m.Current()
	if c == nil {
		return nil
	}
	return c.emit(protocol.EventLeaveBooking, protocol.RoomCommand{BookingID: bookingID})
}

// SendMessage transmits a chat message without waiting for acknowledgement.
func (m *Manager) SendMessage(bookingID, content, clientKey string) error {
	c := m.Current()
	if c == nil {
		return ErrNotConnected
	}
	return c.emit(protocol.EventSendMessage, protocol.SendMessage{
		BookingID: bookingID,
		Content:   content,
		ClientKey: clientKey,
	})
}

func noop() {}

// OnMessage subscribes cb to new chat messages matching filter. Without a
// connection nothing is registered and the returned func does nothing.
func (m *Manager) OnMessage(filter Filter, cb func(MessageEvent)) (unsubscribe func()) {
	c := m.Current()
	if c == nil {
		return noop
	}
	return c.relay.onMessage(filter, cb)
}

// OnQuoteEvent subscribes cb to all four quote lifecycle events matching
// filter. The returned func detaches all of them.
func (m *Manager) OnQuoteEvent(filter Filter, cb func(QuoteEvent)) (unsubscribe func()) {
	c := m.Current()
	if c == nil {
		return noop
	}
	return c.relay.onQuote(filter, cb)
}
