package socket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"mechanicapp/protocol"
)

type staticToken string

func (s staticToken) Token() string { return string(s) }

type fakeConn struct {
	in     chan protocol.Envelope
	closed chan struct{}
	once   sync.Once

	mu      sync.Mutex
	written []protocol.Envelope
}

func newFakeConn() *fakeConn {
	return &fakeConn{in: make(chan protocol.Envelope, 16), closed: make(chan struct{})}
}

func (f *fakeConn) ReadJSON(v interface{}) error {
	select {
	case env := <-f.in:
		raw, _ := json.Marshal(env)
		return json.Unmarshal(raw, v)
	case <-f.closed:
		return errors.New("use of closed connection")
	}
}

func (f *fakeConn) WriteJSON(v interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.written = append(f.written, v.(protocol.Envelope))
	return nil
}

func (f *fakeConn) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeConn) push(t *testing.T, event string, data interface{}) {
	t.Helper()
	env, err := protocol.Encode(event, data)
	if err != nil {
		t.Fatal(err)
	}
	f.in <- env
}

func (f *fakeConn) writes() []protocol.Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]protocol.Envelope(nil), f.written...)
}

type fakeDialer struct {
	mu       sync.Mutex
	dials    int
	endpoint string
	header   http.Header
	conns    []*fakeConn
}

func (d *fakeDialer) Dial(_ context.Context, endpoint string, header http.Header) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	time.Sleep(5 * time.Millisecond) // widen the race window for concurrent Connect calls
	d.dials++
	d.endpoint = endpoint
	d.header = header
	c := newFakeConn()
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *fakeDialer) last() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conns[len(d.conns)-1]
}

func connected(t *testing.T) (*Manager, *fakeDialer) {
	t.Helper()
	d := &fakeDialer{}
	m := NewManager("https://api.example.com/v1", "/ws", staticToken("tok"), d, nil)
	c, err := m.Connect(context.Background())
	if err != nil || c == nil {
		t.Fatalf("connect: %v %v", c, err)
	}
	t.Cleanup(m.Disconnect)
	return m, d
}

func TestEndpoint(t *testing.T) {
	tests := []struct {
		api  string
		want string
		err  bool
	}{
		{"https://mechanic.internalops.pro", "wss://mechanic.internalops.pro/ws", false},
		{"http://localhost:4000", "ws://localhost:4000/ws", false},
		{"http://10.0.2.2:4000/api/v1", "ws://10.0.2.2:4000/ws", false},
		{"ftp://example.com", "", true},
		{"localhost:4000", "", true},
		{"http://", "", true},
	}
	for _, tc := range tests {
		t.Run(tc.api, func(t *testing.T) {
			got, err := Endpoint(tc.api, "/ws")
			if tc.err {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil || got != tc.want {
				t.Fatalf("expected %q, got %q (%v)", tc.want, got, err)
			}
		})
	}
}

func TestConnectWithoutCredential(t *testing.T) {
	d := &fakeDialer{}
	m := NewManager("https://api.example.com", "/ws", staticToken(""), d, nil)
	c, err := m.Connect(context.Background())
	if c != nil || err != nil {
		t.Fatalf("expected absent handle, got %v %v", c, err)
	}
	if d.dials != 0 {
		t.Fatalf("expected no dial, got %d", d.dials)
	}
}

func TestConnectCarriesCredential(t *testing.T) {
	_, d := connected(t)
	if d.endpoint != "wss://api.example.com/ws" {
		t.Fatalf("unexpected endpoint %q", d.endpoint)
	}
	if got := d.header.Get("Authorization"); got != "Bearer tok" {
		t.Fatalf("unexpected authorization %q", got)
	}
}

func TestConnectConcurrentDialsOnce(t *testing.T) {
	d := &fakeDialer{}
	m := NewManager("http://localhost:4000", "/ws", staticToken("tok"), d, nil)
	t.Cleanup(m.Disconnect)

	var wg sync.WaitGroup
	conns := make([]*Connection, 8)
	for i := range conns {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conns[i], _ = m.Connect(context.Background())
		}(i)
	}
	wg.Wait()

	if d.dials != 1 {
		t.Fatalf("expected a single dial, got %d", d.dials)
	}
	for _, c := range conns {
		if c != conns[0] {
			t.Fatal("expected every caller to share one connection")
		}
	}
}

// blockingDialer holds every handshake until release is closed or the dial
// context ends.
type blockingDialer struct {
	started chan struct{}
	release chan struct{}
	conn    *fakeConn
}

func newBlockingDialer() *blockingDialer {
	return &blockingDialer{started: make(chan struct{}, 1), release: make(chan struct{}), conn: newFakeConn()}
}

func (d *blockingDialer) Dial(ctx context.Context, _ string, _ http.Header) (Conn, error) {
	d.started <- struct{}{}
	select {
	case <-d.release:
		return d.conn, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestCommandsDoNotWaitForDial(t *testing.T) {
	d := newBlockingDialer()
	m := NewManager("http://localhost:4000", "/ws", staticToken("tok"), d, nil)
	t.Cleanup(m.Disconnect)

	go m.Connect(context.Background())
	<-d.started

	done := make(chan error, 1)
	go func() {
		if err := m.JoinRoom("B1"); err != nil {
			done <- err
			return
		}
		m.OnMessage(Filter{}, func(MessageEvent) {})()
		done <- m.SendMessage("B1", "hi", "")
	}()
	select {
	case err := <-done:
		if !errors.Is(err, ErrNotConnected) {
			t.Fatalf("expected ErrNotConnected while dialing, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("commands blocked behind an in-progress dial")
	}
	close(d.release)
}

func TestConnectWaitersShareDial(t *testing.T) {
	d := newBlockingDialer()
	m := NewManager("http://localhost:4000", "/ws", staticToken("tok"), d, nil)
	t.Cleanup(m.Disconnect)

	results := make(chan *Connection, 2)
	for i := 0; i < 2; i++ {
		go func() {
			c, _ := m.Connect(context.Background())
			results <- c
		}()
	}
	<-d.started
	close(d.release)

	first, second := receive(t, results), receive(t, results)
	if first == nil || first != second {
		t.Fatalf("expected one shared connection, got %p and %p", first, second)
	}
	if len(d.started) != 0 {
		t.Fatal("expected a single dial")
	}
}

func TestDisconnectAbandonsDial(t *testing.T) {
	d := newBlockingDialer()
	m := NewManager("http://localhost:4000", "/ws", staticToken("tok"), d, nil)

	result := make(chan *Connection, 1)
	go func() {
		c, _ := m.Connect(context.Background())
		result <- c
	}()
	<-d.started

	disconnected := make(chan struct{})
	go func() {
		m.Disconnect()
		close(disconnected)
	}()
	select {
	case <-disconnected:
	case <-time.After(time.Second):
		t.Fatal("Disconnect blocked behind an in-progress dial")
	}
	if c := receive(t, result); c != nil {
		t.Fatalf("expected abandoned dial to yield no connection, got %v", c)
	}
	if m.Connected() {
		t.Fatal("expected no connection after Disconnect")
	}
}

func TestDisconnect(t *testing.T) {
	m := NewManager("http://localhost:4000", "/ws", staticToken("tok"), &fakeDialer{}, nil)
	m.Disconnect() // no connection yet

	c, _ := m.Connect(context.Background())
	m.Disconnect()
	if c.Connected() || m.Connected() {
		t.Fatal("expected connection torn down")
	}
	m.Disconnect()

	again, _ := m.Connect(context.Background())
	if again == c {
		t.Fatal("expected a fresh connection after disconnect")
	}
	m.Disconnect()
}

func TestRoomsWhileDisconnected(t *testing.T) {
	d := &fakeDialer{}
	m := NewManager("http://localhost:4000", "/ws", staticToken("tok"), d, nil)
	for _, id := range []string{"B1", "", "booking-with-dashes"} {
		if err := m.JoinRoom(id); err != nil {
			t.Fatalf("join %q: %v", id, err)
		}
		if err := m.LeaveRoom(id); err != nil {
			t.Fatalf("leave %q: %v", id, err)
		}
	}
	if d.dials != 0 {
		t.Fatal("room commands must not dial")
	}
	if err := m.SendMessage("B1", "hi", ""); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestRoomCommands(t *testing.T) {
	m, d := connected(t)
	if err := m.JoinRoom("B1"); err != nil {
		t.Fatal(err)
	}
	if err := m.SendMessage("B1", "hello", "key-1"); err != nil {
		t.Fatal(err)
	}
	if err := m.LeaveRoom("B1"); err != nil {
		t.Fatal(err)
	}

	got := d.last().writes()
	want := []string{protocol.EventJoinBooking, protocol.EventSendMessage, protocol.EventLeaveBooking}
	if len(got) != len(want) {
		t.Fatalf("expected %d writes, got %d", len(want), len(got))
	}
	for i, env := range got {
		if env.Event != want[i] {
			t.Fatalf("write %d: expected %s, got %s", i, want[i], env.Event)
		}
	}
	var send protocol.SendMessage
	json.Unmarshal(got[1].Data, &send)
	if send.BookingID != "B1" || send.Content != "hello" || send.ClientKey != "key-1" {
		t.Fatalf("unexpected send payload %+v", send)
	}
}

func TestSubscribeWithoutConnection(t *testing.T) {
	m := NewManager("http://localhost:4000", "/ws", staticToken("tok"), &fakeDialer{}, nil)
	m.OnMessage(Filter{}, func(MessageEvent) { t.Fatal("unexpected delivery") })()
	m.OnQuoteEvent(Filter{}, func(QuoteEvent) { t.Fatal("unexpected delivery") })()
}

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	var zero T
	return zero
}

func TestQuoteEventNormalization(t *testing.T) {
	m, d := connected(t)
	events := make(chan QuoteEvent, 4)
	m.OnQuoteEvent(Filter{}, func(e QuoteEvent) { events <- e })

	conn := d.last()
	for _, name := range protocol.QuoteEvents {
		// The tag comes from the channel, not from any event field in the payload.
		conn.push(t, name, map[string]interface{}{
			"bookingId": "B2",
			"event":     "quote:updated",
			"quote":     map[string]interface{}{"id": "q1", "status": "PENDING", "proposedPrice": 5000},
		})
	}
	for _, name := range protocol.QuoteEvents {
		e := receive(t, events)
		if e.Event != name {
			t.Fatalf("expected %s, got %s", name, e.Event)
		}
		if e.BookingID != "B2" || e.Quote == nil || e.Quote.ID != "q1" {
			t.Fatalf("unexpected event %+v", e)
		}
	}

	conn.push(t, protocol.EventQuoteRejected, map[string]string{"bookingId": "B2"})
	if e := receive(t, events); e.Quote != nil {
		t.Fatalf("expected absent quote, got %+v", e.Quote)
	}
}

func TestUnsubscribeIsolation(t *testing.T) {
	m, d := connected(t)

	first := make(chan MessageEvent, 4)
	second := make(chan MessageEvent, 4)
	quotes := make(chan QuoteEvent, 4)
	stopFirst := m.OnMessage(Filter{}, func(e MessageEvent) { first <- e })
	m.OnMessage(Filter{}, func(e MessageEvent) { second <- e })
	stopQuotes := m.OnQuoteEvent(Filter{}, func(e QuoteEvent) { quotes <- e })

	conn := d.last()
	msg := protocol.NewMessage{BookingID: "B1", Message: protocol.Message{ID: "m1", Content: "hi", SenderID: "u2"}}
	conn.push(t, protocol.EventNewMessage, msg)
	receive(t, first)
	receive(t, second)

	stopFirst()
	stopFirst() // second call is harmless
	stopQuotes()
	conn.push(t, protocol.EventNewMessage, msg)
	for _, name := range protocol.QuoteEvents {
		conn.push(t, name, map[string]string{"bookingId": "B1"})
	}
	conn.push(t, protocol.EventNewMessage, msg)
	receive(t, second)
	receive(t, second)

	if len(first) != 0 {
		t.Fatal("unsubscribed message handler still called")
	}
	if len(quotes) != 0 {
		t.Fatal("unsubscribed quote handler still called")
	}
}

func TestFilterByBooking(t *testing.T) {
	m, d := connected(t)
	scoped := make(chan MessageEvent, 4)
	all := make(chan MessageEvent, 4)
	m.OnMessage(ForBooking("B1"), func(e MessageEvent) { scoped <- e })
	m.OnMessage(Filter{}, func(e MessageEvent) { all <- e })

	conn := d.last()
	conn.push(t, protocol.EventNewMessage, protocol.NewMessage{BookingID: "B9", Message: protocol.Message{ID: "x"}})
	conn.push(t, protocol.EventNewMessage, protocol.NewMessage{BookingID: "B1", Message: protocol.Message{ID: "y"}})

	if e := receive(t, all); e.BookingID != "B9" {
		t.Fatalf("unexpected first event %+v", e)
	}
	if e := receive(t, all); e.BookingID != "B1" {
		t.Fatalf("unexpected second event %+v", e)
	}
	if e := receive(t, scoped); e.Message.ID != "y" {
		t.Fatalf("scoped subscriber got %+v", e)
	}
	if len(scoped) != 0 {
		t.Fatal("scoped subscriber received another booking's event")
	}
}

func TestSubscriptionsEndWithConnection(t *testing.T) {
	m, d := connected(t)
	events := make(chan MessageEvent, 1)
	m.OnMessage(Filter{}, func(e MessageEvent) { events <- e })
	old := d.last()

	m.Disconnect()
	if _, err := m.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	select {
	case old.in <- protocol.Envelope{Event: protocol.EventNewMessage, Data: json.RawMessage(`{"bookingId":"B1"}`)}:
	default:
	}
	d.last().push(t, protocol.EventNewMessage, protocol.NewMessage{BookingID: "B1"})

	select {
	case e := <-events:
		t.Fatalf("subscriber survived disconnect: %+v", e)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestConnectionLossAllowsRedial(t *testing.T) {
	m, d := connected(t)
	first := d.last()
	first.Close()

	deadline := time.Now().Add(time.Second)
	for m.Connected() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if m.Connected() {
		t.Fatal("expected connection marked lost")
	}
	if _, err := m.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	if d.dials != 2 {
		t.Fatalf("expected redial, got %d dials", d.dials)
	}
}
