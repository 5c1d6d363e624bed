package socket

import (
	"encoding/json"
	"sync"

	"mechanicapp/protocol"

	"go.uber.org/zap"
)

// Connection is one dialed websocket plus the subscribers attached to it.
// Subscribers do not survive a disconnect.
type Connection struct {
	conn  Conn
	relay *relay
	log   *zap.Logger

	writeMu   sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
}

func newConnection(conn Conn, log *zap.Logger) *Connection {
	c := &Connection{
		conn:  conn,
		relay: newRelay(log),
		log:   log,
		done:  make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// Connected reports whether the connection has not been closed.
func (c *Connection) Connected() bool {
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

// Done is closed once the connection ends.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// Close ends the connection. It is safe to call more than once.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

func (c *Connection) emit(event string, data interface{}) error {
	env, err := protocol.Encode(event, data)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if !c.Connected() {
		return ErrNotConnected
	}
	return c.conn.WriteJSON(env)
}

func (c *Connection) readLoop() {
	defer c.Close()
	for {
		var env protocol.Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			if c.Connected() {
				c.log.Info("realtime connection lost", zap.Error(err))
			}
			return
		}
		if env.Event == protocol.EventError {
			var p protocol.ErrorPayload
			_ = json.Unmarshal(env.Data, &p)
			c.log.Warn("realtime server error", zap.String("message", p.Message))
			continue
		}
		c.relay.dispatch(env)
	}
}
