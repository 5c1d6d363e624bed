package socket

import (
	"encoding/json"
	"slices"
	"sync"

	"mechanicapp/client/model"
	"mechanicapp/protocol"

	"go.uber.org/zap"
)

// Filter scopes a subscription. An empty BookingID matches every booking.
type Filter struct {
	BookingID string
}

func (f Filter) match(bookingID string) bool {
	return f.BookingID == "" || f.BookingID == bookingID
}

// ForBooking is the filter for a single booking.
func ForBooking(id string) Filter {
	return Filter{BookingID: id}
}

// MessageEvent is a chat message pushed by the server.
type MessageEvent struct {
	BookingID string
	Message   model.Message
}

// QuoteEvent is the normalized form of every quote:* event. Event is the
// name of the channel it arrived on.
type QuoteEvent struct {
	BookingID string
	Event     string
	Quote     *model.Quote
}

type subscription struct {
	events map[string]bool
	filter Filter
	handle func(event string, data json.RawMessage)
}

type relay struct {
	log *zap.Logger

	mu   sync.RWMutex
	next uint64
	subs map[uint64]subscription
}

func newRelay(log *zap.Logger) *relay {
	return &relay{log: log, subs: make(map[uint64]subscription)}
}

func (r *relay) add(s subscription) func() {
	r.mu.Lock()
	r.next++
	id := r.next
	r.subs[id] = s
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.subs, id)
		r.mu.Unlock()
	}
}

// dispatch runs matching handlers on the read goroutine, in subscription
// order. Handlers must not block.
func (r *relay) dispatch(env protocol.Envelope) {
	var head struct {
		BookingID string `json:"bookingId"`
	}
	if err := json.Unmarshal(env.Data, &head); err != nil {
		r.log.Warn("drop malformed event", zap.String("event", env.Event), zap.Error(err))
		return
	}

	r.mu.RLock()
	ids := make([]uint64, 0, len(r.subs))
	for id, s := range r.subs {
		if s.events[env.Event] && s.filter.match(head.BookingID) {
			ids = append(ids, id)
		}
	}
	r.mu.RUnlock()
	slices.Sort(ids)

	for _, id := range ids {
		r.mu.RLock()
		s, ok := r.subs[id]
		r.mu.RUnlock()
		if !ok {
			continue // unsubscribed by an earlier handler
		}
		s.handle(env.Event, env.Data)
	}
}

func (r *relay) onMessage(filter Filter, cb func(MessageEvent)) func() {
	return r.add(subscription{
		events: map[string]bool{protocol.EventNewMessage: true},
		filter: filter,
		handle: func(event string, data json.RawMessage) {
			var p protocol.NewMessage
			if err := json.Unmarshal(data, &p); err != nil {
				r.log.Warn("decode new_message", zap.Error(err))
				return
			}
			cb(MessageEvent{
				BookingID: p.BookingID,
				Message: model.Message{
					ID:        p.Message.ID,
					Content:   p.Message.Content,
					SenderID:  p.Message.SenderID,
					CreatedAt: p.Message.CreatedAt,
					ClientKey: p.Message.ClientKey,
				},
			})
		},
	})
}

func (r *relay) onQuote(filter Filter, cb func(QuoteEvent)) func() {
	events := make(map[string]bool, len(protocol.QuoteEvents))
	for _, e := range protocol.QuoteEvents {
		events[e] = true
	}
	return r.add(subscription{
		events: events,
		filter: filter,
		handle: func(event string, data json.RawMessage) {
			var p protocol.QuotePayload
			if err := json.Unmarshal(data, &p); err != nil {
				r.log.Warn("decode quote event", zap.String("event", event), zap.Error(err))
				return
			}
			ev := QuoteEvent{BookingID: p.BookingID, Event: event}
			if len(p.Quote) > 0 && string(p.Quote) != "null" {
				var q model.Quote
				if err := json.Unmarshal(p.Quote, &q); err == nil {
					ev.Quote = &q
				}
			}
			cb(ev)
		},
	})
}
