package chat

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"mechanicapp/client/model"
)

type sent struct {
	bookingID, content, key string
}

type fakeSender struct {
	mu      sync.Mutex
	sent    []sent
	err     error
	block   chan struct{}
	entered chan struct{}
}

func (f *fakeSender) SendMessage(bookingID, content, key string) error {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sent{bookingID, content, key})
	return f.err
}

func user(id string) func() string { return func() string { return id } }

func TestSendRejectsBlank(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\t "} {
		s := &fakeSender{}
		c := NewComposer(s, user("u1"), nil)
		called := false
		err := c.Send("B1", text, nil, func([]model.Message) { called = true })
		if !errors.Is(err, ErrEmpty) {
			t.Fatalf("%q: expected ErrEmpty, got %v", text, err)
		}
		if called || len(s.sent) != 0 {
			t.Fatalf("%q: blank text must not transmit or append", text)
		}
	}
}

func TestSendAppendsOptimisticEntry(t *testing.T) {
	s := &fakeSender{}
	c := NewComposer(s, user("u1"), nil)
	c.now = func() time.Time { return time.UnixMilli(1700000000123) }

	existing := []model.Message{{ID: "m1", Content: "earlier", SenderID: "u2"}}
	var got []model.Message
	if err := c.Send("B1", "  hello  ", existing, func(m []model.Message) { got = m }); err != nil {
		t.Fatalf("send: %v", err)
	}

	if len(got) != 2 || got[0].ID != "m1" {
		t.Fatalf("expected existing list plus one entry, got %+v", got)
	}
	m := got[1]
	if m.ID != "temp-1700000000123" || !m.Optimistic() {
		t.Fatalf("unexpected temp id %q", m.ID)
	}
	if m.Content != "hello" || m.SenderID != "u1" {
		t.Fatalf("unexpected message %+v", m)
	}
	if len(s.sent) != 1 || s.sent[0].content != "hello" || s.sent[0].key != m.ClientKey {
		t.Fatalf("unexpected transmit %+v", s.sent)
	}
	if len(existing) != 1 {
		t.Fatal("caller's slice must not be modified")
	}
}

func TestSendSwallowsTransmitFailure(t *testing.T) {
	s := &fakeSender{err: errors.New("socket: not connected")}
	c := NewComposer(s, user("u1"), nil)
	var got []model.Message
	if err := c.Send("B1", "hello", nil, func(m []model.Message) { got = m }); err != nil {
		t.Fatalf("transmit failure should be swallowed, got %v", err)
	}
	if len(got) != 1 || !strings.HasPrefix(got[0].ID, "temp-") {
		t.Fatalf("expected optimistic entry despite failure, got %+v", got)
	}
}

func TestSendSingleFlight(t *testing.T) {
	s := &fakeSender{block: make(chan struct{}), entered: make(chan struct{}, 1)}
	c := NewComposer(s, user("u1"), nil)

	done := make(chan error, 1)
	go func() { done <- c.Send("B1", "first", nil, func([]model.Message) {}) }()
	<-s.entered

	if err := c.Send("B1", "second", nil, func([]model.Message) { t.Fatal("second send appended") }); !errors.Is(err, ErrInFlight) {
		t.Fatalf("expected ErrInFlight, got %v", err)
	}
	close(s.block)
	if err := <-done; err != nil {
		t.Fatalf("first send: %v", err)
	}
	s.entered = nil

	other := NewComposer(s, user("u1"), nil)
	if err := other.Send("B1", "third", nil, func([]model.Message) {}); err != nil {
		t.Fatalf("separate composer should send: %v", err)
	}
	if len(s.sent) != 2 {
		t.Fatalf("expected 2 transmits, got %d", len(s.sent))
	}
}

func TestMerge(t *testing.T) {
	authoritative := []model.Message{
		{ID: "m1", Content: "hi"},
		{ID: "m2", Content: "hello", ClientKey: "k1"},
	}
	current := []model.Message{
		{ID: "m1", Content: "hi"},
		{ID: "temp-1", Content: "hello", ClientKey: "k1"},
		{ID: "temp-2", Content: "still sending", ClientKey: "k2"},
	}

	replaced := Merge(authoritative, current, false)
	if len(replaced) != 2 || replaced[1].ID != "m2" {
		t.Fatalf("expected authoritative list only, got %+v", replaced)
	}

	kept := Merge(authoritative, current, true)
	if len(kept) != 3 {
		t.Fatalf("expected echoed entry dropped and pending kept, got %+v", kept)
	}
	if kept[2].ID != "temp-2" {
		t.Fatalf("expected pending entry last, got %+v", kept[2])
	}
}
