// Package chat composes booking chat messages with optimistic local echo.
package chat

import (
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"mechanicapp/client/model"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrEmpty    = errors.New("chat: empty message")
	ErrInFlight = errors.New("chat: send already in flight")
)

// Sender transmits a message over the realtime connection.
type Sender interface {
	SendMessage(bookingID, content, clientKey string) error
}

// Composer sends messages for one open screen. It never owns the message
// list: the caller passes the current list in and receives the new one
// through onChange.
type Composer struct {
	sender Sender
	userID func() string
	now    func() time.Time
	log    *zap.Logger

	mu      sync.Mutex
	sending bool
}

func NewComposer(sender Sender, userID func() string, log *zap.Logger) *Composer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Composer{sender: sender, userID: userID, now: time.Now, log: log}
}

// Send transmits text and appends an optimistic copy to messages. Empty or
// whitespace text, or a send already in flight on this composer, is
// rejected without transmitting. Transmit failures are logged and the
// optimistic entry is appended regardless.
func (c *Composer) Send(bookingID, text string, messages []model.Message, onChange func([]model.Message)) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmpty
	}

	c.mu.Lock()
	if c.sending {
		c.mu.Unlock()
		return ErrInFlight
	}
	c.sending = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.sending = false
		c.mu.Unlock()
	}()

	key := uuid.NewString()
	if err := c.sender.SendMessage(bookingID, text, key); err != nil {
		c.log.Warn("chat transmit failed", zap.String("booking", bookingID), zap.Error(err))
	}

	now := c.now()
	msg := model.Message{
		ID:        model.TempIDPrefix + strconv.FormatInt(now.UnixMilli(), 10),
		Content:   text,
		SenderID:  c.userID(),
		CreatedAt: now.UTC(),
		ClientKey: key,
	}
	next := make([]model.Message, 0, len(messages)+1)
	next = append(next, messages...)
	next = append(next, msg)
	onChange(next)
	return nil
}

// Merge computes the list shown after an authoritative reload. Without
// keepPending the authoritative list replaces everything. With keepPending
// (the backend echoes clientKey) optimistic entries the server has not
// echoed yet are kept after the authoritative ones; echoed ones are dropped.
func Merge(authoritative, current []model.Message, keepPending bool) []model.Message {
	out := make([]model.Message, 0, len(authoritative))
	out = append(out, authoritative...)
	if !keepPending {
		return out
	}

	echoed := make(map[string]bool, len(authoritative))
	for _, m := range authoritative {
		if m.ClientKey != "" {
			echoed[m.ClientKey] = true
		}
	}
	for _, m := range current {
		if !m.Optimistic() || m.ClientKey == "" || echoed[m.ClientKey] {
			continue
		}
		out = append(out, m)
	}
	return out
}
