package chat

import (
	"sync"
	"time"

	"RProject/logger"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 5 * time.Second
	pongWait       = 75 * time.Second
	pingPeriod     = 25 * time.Second
	sendQueueDepth = 256
)

// Conn is one live websocket connection with its identity bound at
// handshake. All outbound traffic goes through the Send queue; a full queue
// drops the frame (no backpressure, clients resync via the history fetch).
type Conn struct {
	ID     string
	UserID string

	sock *websocket.Conn
	Send chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

func newConn(id, userID string, sock *websocket.Conn) *Conn {
	return &Conn{
		ID:     id,
		UserID: userID,
		sock:   sock,
		Send:   make(chan []byte, sendQueueDepth),
		done:   make(chan struct{}),
	}
}

// enqueue is non-blocking; a slow consumer loses the frame.
func (c *Conn) enqueue(payload []byte) {
	select {
	case c.Send <- payload:
	default:
		logger.Debugf("[ws] send queue full, drop frame conn=%s user=%s", c.ID, c.UserID)
	}
}

func (c *Conn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.sock.Close()
	})
}

// writePump owns all writes to the socket: queued frames plus transport
// pings. Exits when the queue is closed, the conn is closed, or a write
// fails; the read loop notices via the dropped socket.
func (c *Conn) writePump() {
	t := time.NewTicker(pingPeriod)
	defer t.Stop()
	for {
		select {
		case <-c.done:
			return
		case payload := <-c.Send:
			_ = c.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.sock.WriteMessage(websocket.TextMessage, payload); err != nil {
				logger.Debugf("[ws] write err conn=%s err=%v", c.ID, err)
				c.close()
				return
			}
		case <-t.C:
			_ = c.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.sock.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		}
	}
}
