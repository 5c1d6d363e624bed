package room

import (
	"testing"
	"time"
)

func recv(t *testing.T, c *Client) string {
	t.Helper()
	select {
	case frame := <-c.Send:
		return string(frame)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for frame")
		return ""
	}
}

func TestBroadcastReachesMembersOnly(t *testing.T) {
	m := NewManager(nil, nil)
	defer m.Close()

	a, b, outsider := NewClient("A"), NewClient("B"), NewClient("C")
	r := m.GetRoom("B1")
	r.Join(a)
	r.Join(b)
	m.GetRoom("B2").Join(outsider)

	r.Broadcast([]byte("hello"))
	if got := recv(t, a); got != "hello" {
		t.Fatalf("a got %q", got)
	}
	if got := recv(t, b); got != "hello" {
		t.Fatalf("b got %q", got)
	}
	if r.Len() != 2 {
		t.Fatalf("expected 2 members, got %d", r.Len())
	}
	select {
	case f := <-outsider.Send:
		t.Fatalf("outsider received %q", f)
	default:
	}
}

func TestLeaveStopsDelivery(t *testing.T) {
	m := NewManager(nil, nil)
	defer m.Close()

	a := NewClient("A")
	r := m.GetRoom("B1")
	r.Join(a)
	r.Leave(a)
	r.Broadcast([]byte("late"))
	if r.Len() != 0 {
		t.Fatalf("expected empty room, got %d", r.Len())
	}
	select {
	case f := <-a.Send:
		t.Fatalf("unexpected frame %q", f)
	default:
	}
}

func TestGetRoomIsShared(t *testing.T) {
	m := NewManager(nil, nil)
	defer m.Close()
	if m.GetRoom("B1") != m.GetRoom("B1") {
		t.Fatal("expected the same room")
	}
	if _, ok := m.Lookup("B9"); ok {
		t.Fatal("expected no room for unknown booking")
	}
}

func TestSlowClientDoesNotBlockRoom(t *testing.T) {
	m := NewManager(nil, nil)
	defer m.Close()

	slow, fast := NewClient("S"), NewClient("F")
	r := m.GetRoom("B1")
	r.Join(slow)
	r.Join(fast)
	for i := 0; i < sendBuffer+10; i++ {
		r.Broadcast([]byte("x"))
		<-fast.Send
	}
	if len(slow.Send) != sendBuffer {
		t.Fatalf("expected slow client buffer full, got %d", len(slow.Send))
	}
}

func TestClosedManagerDoesNotBlock(t *testing.T) {
	m := NewManager(nil, nil)
	r := m.GetRoom("B1")
	m.Close()

	done := make(chan struct{})
	go func() {
		c := NewClient("A")
		r.Join(c)
		r.Broadcast([]byte("x"))
		m.GetRoom("B2").Join(c)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("operations on a closed manager blocked")
	}
}

func TestLeaveWaitsForStoppedRoom(t *testing.T) {
	m := NewManager(nil, nil)
	c := NewClient("A")
	r := m.GetRoom("B1")
	r.Join(c)
	m.Close()

	left := make(chan struct{})
	go func() {
		r.Leave(c)
		close(left)
	}()
	select {
	case <-left:
	case <-time.After(time.Second):
		t.Fatal("Leave blocked on a stopped room")
	}
	select {
	case <-r.done:
	default:
		t.Fatal("Leave returned before Run exited")
	}
	// Run is gone, so closing the queue cannot race a delivery.
	c.Close()
	r.Broadcast([]byte("late"))
}
