package room

import (
	"sync"

	"go.uber.org/zap"
)

const sendBuffer = 64

// Counter is incremented for every frame dropped on a full client queue.
type Counter interface {
	Inc()
}

// Client is one authenticated socket. Frames for it are queued on Send and
// written by the connection's writer goroutine.
type Client struct {
	UserID string
	Send   chan []byte

	closeOnce sync.Once
}

func NewClient(userID string) *Client {
	return &Client{UserID: userID, Send: make(chan []byte, sendBuffer)}
}

// Deliver queues frame without blocking and reports whether it was queued.
func (c *Client) Deliver(frame []byte) bool {
	select {
	case c.Send <- frame:
		return true
	default:
		return false
	}
}

// Close ends the writer. It must only be called once the client has left
// every room.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.Send) })
}

type delivery struct {
	frame []byte
	done  chan struct{}
}

// Room is a booking's set of connected clients. Membership changes and
// broadcasts are serialised through Run.
type Room struct {
	ID         string
	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan delivery
	size       chan chan int
	quit       chan struct{}
	done       chan struct{}
	log        *zap.Logger
	dropped    Counter
}

func NewRoom(id string, log *zap.Logger, dropped Counter) *Room {
	return &Room{
		ID:         id,
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan delivery),
		size:       make(chan chan int),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		log:        log,
		dropped:    dropped,
	}
}

// Run serves the room until it is stopped. No frame is delivered after it
// returns.
func (r *Room) Run() {
	defer close(r.done)
	for {
		select {
		case c := <-r.register:
			r.clients[c] = struct{}{}
		case c := <-r.unregister:
			delete(r.clients, c)
		case d := <-r.broadcast:
			for c := range r.clients {
				if !c.Deliver(d.frame) {
					if r.dropped != nil {
						r.dropped.Inc()
					}
					r.log.Warn("dropping frame for slow client",
						zap.String("booking", r.ID), zap.String("user", c.UserID))
				}
			}
			close(d.done)
		case reply := <-r.size:
			reply <- len(r.clients)
		case <-r.quit:
			return
		}
	}
}

func (r *Room) Join(c *Client) {
	select {
	case r.register <- c:
	case <-r.quit:
	}
}

// Leave removes c from the room. When the room is stopping it waits for Run
// to exit, so c may be closed once Leave returns.
func (r *Room) Leave(c *Client) {
	select {
	case r.unregister <- c:
	case <-r.done:
	}
}

// Broadcast queues frame for every client currently in the room. It
// returns once the frame is queued, so frames a caller sends afterwards
// arrive after it.
func (r *Room) Broadcast(frame []byte) {
	d := delivery{frame: frame, done: make(chan struct{})}
	select {
	case r.broadcast <- d:
		<-d.done
	case <-r.quit:
	}
}

// Len returns the number of clients in the room.
func (r *Room) Len() int {
	reply := make(chan int, 1)
	select {
	case r.size <- reply:
		return <-reply
	case <-r.quit:
		return 0
	}
}

func (r *Room) stop() {
	close(r.quit)
}

// Manager manages the rooms of every booking
type Manager struct {
	rooms   map[string]*Room
	mu      sync.Mutex
	closed  bool
	log     *zap.Logger
	dropped Counter
}

// NewManager creates an empty manager. dropped may be nil.
func NewManager(log *zap.Logger, dropped Counter) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{rooms: make(map[string]*Room), log: log, dropped: dropped}
}

// GetRoom returns the room for bookingID, starting it on first use.
func (m *Manager) GetRoom(bookingID string) *Room {
	m.mu.Lock()
	defer m.mu.Unlock()

	if room, ok := m.rooms[bookingID]; ok {
		return room
	}

	room := NewRoom(bookingID, m.log, m.dropped)
	if m.closed {
		room.stop()
		close(room.done)
		return room
	}
	m.rooms[bookingID] = room
	go room.Run()
	return room
}

// Lookup returns the room for bookingID if it has been started.
func (m *Manager) Lookup(bookingID string) (*Room, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[bookingID]
	return room, ok
}

// Count returns the number of started rooms.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rooms)
}

// Close stops every room.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	for id, room := range m.rooms {
		room.stop()
		delete(m.rooms, id)
	}
}
