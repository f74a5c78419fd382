// Package realtime carries engine deliveries over websockets: one Connection per client, a Hub
// that resolves recipient ids to connections, and a Server that runs the read loop.
package realtime

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// DefaultSendBuffer is how many outbound messages may queue before a client counts as stuck.
	DefaultSendBuffer = 128
)

var (
	ErrConnectionClosed = errors.New("realtime: connection closed")
	ErrBufferFull       = errors.New("realtime: send buffer full")
)

// Connection wraps a websocket and serializes outbound writes through a buffered channel. Send is
// safe for concurrent use.
type Connection struct {
	ID string

	ws     *websocket.Conn
	send   chan []byte
	once   sync.Once
	closed chan struct{}

	// set once, before closed is closed
	closeCode   int
	closeReason string
}

func NewConnection(ws *websocket.Conn, buffer int) *Connection {
	if buffer <= 0 {
		buffer = DefaultSendBuffer
	}
	return &Connection{
		ID:     uuid.NewString(),
		ws:     ws,
		send:   make(chan []byte, buffer),
		closed: make(chan struct{}),
	}
}

// Start launches the write loop. It must be called exactly once.
func (c *Connection) Start() {
	go c.writeLoop()
}

// Send queues payload. A client too slow to drain its buffer is disconnected rather than allowed
// to hold up the rest of the room.
func (c *Connection) Send(payload []byte) error {
	select {
	case <-c.closed:
		return ErrConnectionClosed
	default:
	}
	select {
	case <-c.closed:
		return ErrConnectionClosed
	case c.send <- payload:
		return nil
	default:
		c.Close(websocket.ClosePolicyViolation, "send buffer full")
		return ErrBufferFull
	}
}

// Done is closed once the connection has been closed.
func (c *Connection) Done() <-chan struct{} {
	return c.closed
}

// Close marks the connection closed and returns immediately. The close frame is written and the
// socket released by the write loop, so Close is safe to call while holding locks.
func (c *Connection) Close(code int, reason string) {
	c.once.Do(func() {
		c.closeCode = code
		c.closeReason = reason
		close(c.closed)
	})
}

func (c *Connection) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer c.shutdown()

	for {
		select {
		case <-c.closed:
			return
		case msg := <-c.send:
			if err := c.write(websocket.TextMessage, msg); err != nil {
				c.Close(websocket.CloseAbnormalClosure, "write failed")
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				c.Close(websocket.CloseAbnormalClosure, "ping failed")
				return
			}
		}
	}
}

// shutdown runs on the write goroutine after the loop exits.
func (c *Connection) shutdown() {
	if c.closeCode != websocket.CloseAbnormalClosure {
		deadline := time.Now().Add(writeWait)
		_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(c.closeCode, c.closeReason), deadline)
	}
	_ = c.ws.Close()
}

func (c *Connection) write(messageType int, payload []byte) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(messageType, payload)
}
