package protocol

import (
	"encoding/json"
	"time"
)

// Client to server events
const (
	EventJoinBooking  = "join_booking"
	EventLeaveBooking = "leave_booking"
	EventSendMessage  = "send_message"
)

// Server to client events
const (
	EventNewMessage    = "new_message"
	EventQuoteCreated  = "quote:created"
	EventQuoteUpdated  = "quote:updated"
	EventQuoteRejected = "quote:rejected"
	EventQuoteAccepted = "quote:accepted"
	EventError         = "error"
)

// QuoteEvents lists every quote lifecycle channel.
var QuoteEvents = []string{
	EventQuoteCreated,
	EventQuoteUpdated,
	EventQuoteRejected,
	EventQuoteAccepted,
}

// IsQuoteEvent reports whether event is one of the quote lifecycle channels.
func IsQuoteEvent(event string) bool {
	for _, e := range QuoteEvents {
		if e == event {
			return true
		}
	}
	return false
}

// Envelope is the frame exchanged over the realtime connection.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// RoomCommand joins or leaves a booking room.
type RoomCommand struct {
	BookingID string `json:"bookingId"`
}

// SendMessage is the chat payload sent by a client.
type SendMessage struct {
	BookingID string `json:"bookingId"`
	Content   string `json:"content"`
	ClientKey string `json:"clientKey,omitempty"`
}

// Message is a chat message as pushed by the server.
type Message struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	SenderID  string    `json:"senderId"`
	CreatedAt time.Time `json:"createdAt"`
	ClientKey string    `json:"clientKey,omitempty"`
}

// NewMessage is the payload of a new_message event.
type NewMessage struct {
	BookingID string  `json:"bookingId"`
	Message   Message `json:"message"`
}

// QuotePayload is the payload of every quote:* event. Quote is left raw so
// the relay does not need to understand the quote schema.
type QuotePayload struct {
	BookingID string          `json:"bookingId"`
	Event     string          `json:"event,omitempty"`
	Quote     json.RawMessage `json:"quote,omitempty"`
}

// ErrorPayload is sent when the server rejects a command.
type ErrorPayload struct {
	Message string `json:"message"`
}

// Encode wraps data into an envelope for event.
func Encode(event string, data interface{}) (Envelope, error) {
	if data == nil {
		return Envelope{Event: event}, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Event: event, Data: raw}, nil
}
