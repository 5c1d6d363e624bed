package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"mechanicapp/protocol"
	"mechanicapp/server/metrics"
	"mechanicapp/server/room"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const maxContentLength = 2000

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Authenticator resolves the caller of a handshake request to a user id.
type Authenticator interface {
	Authenticate(r *http.Request) (string, error)
}

type Config struct {
	// MessagesPerSecond bounds send_message per connection; zero disables
	// the limit.
	MessagesPerSecond float64
	Metrics           *metrics.Metrics
	Now               func() time.Time
}

func (c *Config) defaults() {
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Metrics == nil {
		c.Metrics = metrics.New()
	}
}

func validateSend(msg *protocol.SendMessage) string {
	if strings.TrimSpace(msg.BookingID) == "" {
		return "bookingId is required"
	}
	content := strings.TrimSpace(msg.Content)
	if content == "" {
		return "content must not be empty"
	}
	if utf8.RuneCountInString(content) > maxContentLength {
		return "content is too long"
	}
	return ""
}

func isDecodeError(err error) bool {
	var syntax *json.SyntaxError
	var typ *json.UnmarshalTypeError
	return errors.As(err, &syntax) || errors.As(err, &typ)
}

// session is the state of one accepted socket.
type session struct {
	client  *room.Client
	rooms   *room.Manager
	joined  map[string]*room.Room
	limiter *rate.Limiter
	now     func() time.Time
	metrics *metrics.Metrics
	log     *zap.Logger
}

func (s *session) reply(event string, data interface{}) {
	env, err := protocol.Encode(event, data)
	if err != nil {
		s.log.Error("encode reply", zap.String("event", event), zap.Error(err))
		return
	}
	frame, _ := json.Marshal(env)
	if !s.client.Deliver(frame) {
		s.log.Warn("reply dropped", zap.String("event", event))
	}
}

// reject reports a refused command to the client.
func (s *session) reject(reason, message string) {
	s.metrics.Rejected.WithLabelValues(reason).Inc()
	s.reply(protocol.EventError, protocol.ErrorPayload{Message: message})
}

func (s *session) handle(env protocol.Envelope) {
	switch env.Event {
	case protocol.EventJoinBooking, protocol.EventLeaveBooking:
		var cmd protocol.RoomCommand
		if err := json.Unmarshal(env.Data, &cmd); err != nil || cmd.BookingID == "" {
			s.reject("invalid", "bookingId is required")
			return
		}
		if env.Event == protocol.EventJoinBooking {
			s.join(cmd.BookingID)
		} else {
			s.leave(cmd.BookingID)
		}
	case protocol.EventSendMessage:
		var msg protocol.SendMessage
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			s.reject("invalid", "Invalid JSON format")
			return
		}
		s.send(msg)
	default:
		s.reject("unknown_event", "unknown event "+env.Event)
	}
}

func (s *session) join(bookingID string) {
	if _, ok := s.joined[bookingID]; ok {
		return
	}
	r := s.rooms.GetRoom(bookingID)
	r.Join(s.client)
	s.joined[bookingID] = r
	s.log.Debug("joined booking", zap.String("booking", bookingID))
}

func (s *session) leave(bookingID string) {
	r, ok := s.joined[bookingID]
	if !ok {
		return
	}
	r.Leave(s.client)
	delete(s.joined, bookingID)
	s.log.Debug("left booking", zap.String("booking", bookingID))
}

func (s *session) leaveAll() {
	for id := range s.joined {
		s.leave(id)
	}
}

func (s *session) send(msg protocol.SendMessage) {
	if errStr := validateSend(&msg); errStr != "" {
		s.reject("invalid", errStr)
		return
	}
	r, ok := s.joined[msg.BookingID]
	if !ok {
		s.reject("not_joined", "join the booking before sending messages")
		return
	}
	if s.limiter != nil && !s.limiter.Allow() {
		s.log.Warn("rate limit exceeded")
		s.reject("rate_limited", "Rate limit exceeded. Try again later.")
		return
	}

	env, err := protocol.Encode(protocol.EventNewMessage, protocol.NewMessage{
		BookingID: msg.BookingID,
		Message: protocol.Message{
			ID:        uuid.NewString(),
			Content:   strings.TrimSpace(msg.Content),
			SenderID:  s.client.UserID,
			CreatedAt: s.now().UTC(),
			ClientKey: msg.ClientKey,
		},
	})
	if err != nil {
		s.log.Error("encode message", zap.Error(err))
		return
	}
	frame, _ := json.Marshal(env)
	s.metrics.Messages.Inc()
	r.Broadcast(frame)
}

// HandleWebSocket authenticates the handshake, upgrades it and serves the
// booking room protocol until the client goes away.
func HandleWebSocket(rooms *room.Manager, authn Authenticator, cfg Config, log *zap.Logger) http.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	cfg.defaults()
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := authn.Authenticate(r)
		if err != nil {
			log.Debug("handshake rejected", zap.Error(err))
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn("upgrade error", zap.Error(err))
			return
		}

		s := &session{
			client:  room.NewClient(userID),
			rooms:   rooms,
			joined:  make(map[string]*room.Room),
			now:     cfg.Now,
			metrics: cfg.Metrics,
			log:     log.With(zap.String("user", userID)),
		}
		if cfg.MessagesPerSecond > 0 {
			burst := int(cfg.MessagesPerSecond)
			if burst < 1 {
				burst = 1
			}
			s.limiter = rate.NewLimiter(rate.Limit(cfg.MessagesPerSecond), burst)
		}

		written := make(chan struct{})
		go func() {
			defer close(written)
			for frame := range s.client.Send {
				if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
					s.log.Debug("write error", zap.Error(err))
					break
				}
			}
			// Unblock the reader when the writer fails first.
			conn.Close()
		}()

		s.metrics.Connections.Inc()
		s.log.Info("client connected")
		defer func() {
			s.leaveAll()
			s.client.Close()
			<-written
			s.metrics.Connections.Dec()
			s.log.Info("client disconnected")
		}()

		for {
			var env protocol.Envelope
			if err := conn.ReadJSON(&env); err != nil {
				if isDecodeError(err) {
					s.reject("invalid", "Invalid JSON format")
					continue
				}
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					s.log.Debug("read error", zap.Error(err))
				}
				return
			}
			s.handle(env)
		}
	}
}
