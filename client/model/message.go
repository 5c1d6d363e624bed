package model

import (
	"strings"
	"time"
)

// TempIDPrefix marks ids assigned locally to messages the server has not
// confirmed yet.
const TempIDPrefix = "temp-"

// Message is a chat message attached to a booking.
type Message struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	SenderID  string    `json:"senderId"`
	CreatedAt time.Time `json:"createdAt"`
	ClientKey string    `json:"clientKey,omitempty"` // idempotency key echoed by the server, when supported
}

// Optimistic reports whether the message was authored locally and not yet
// replaced by the server's record.
func (m Message) Optimistic() bool {
	return strings.HasPrefix(m.ID, TempIDPrefix)
}

// Clarification is a question a mechanic asks before quoting.
type Clarification struct {
	ID        string    `json:"id"`
	Question  string    `json:"question"`
	Answer    *string   `json:"answer,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
