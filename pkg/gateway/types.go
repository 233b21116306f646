package gateway

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// sendBufferSize bounds the per-client outbound queue. Events beyond it
// are dropped rather than stalling the broadcaster.
const sendBufferSize = 64

// EventMessage represents a server-initiated event
type EventMessage struct {
	Type      string      `json:"type"`
	Event     string      `json:"event"`
	Data      interface{} `json:"data"`
	Seq       int64       `json:"seq"`
	Timestamp int64       `json:"timestamp"`
}

// ClientInfo represents information about a connected client
type ClientInfo struct {
	ID           string    `json:"id"`
	ConnectedAt  time.Time `json:"connectedAt"`
	LastActivity time.Time `json:"lastActivity"`
	IPAddress    string    `json:"ipAddress"`
	Dropped      int64     `json:"dropped"`
}

// Client represents a connected WebSocket subscriber
type Client struct {
	ID          string
	ConnectedAt time.Time
	IPAddress   string

	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	mu           sync.Mutex
	lastActivity time.Time
	dropped      int64
}

func newClient(id string, conn *websocket.Conn, remoteAddr string) *Client {
	now := time.Now()
	return &Client{
		ID:           id,
		ConnectedAt:  now,
		IPAddress:    remoteAddr,
		conn:         conn,
		send:         make(chan []byte, sendBufferSize),
		done:         make(chan struct{}),
		lastActivity: now,
	}
}

// enqueue hands a frame to the client's writer without blocking
func (c *Client) enqueue(frame []byte) bool {
	select {
	case c.send <- frame:
		return true
	default:
		c.mu.Lock()
		c.dropped++
		c.mu.Unlock()
		return false
	}
}

func (c *Client) touch() {
	c.mu.Lock()
	c.lastActivity = time.Now()
	c.mu.Unlock()
}

// close signals the writer to flush and shut the connection down
func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// writePump drains the send queue onto the connection. It owns the
// connection's lifetime: the socket closes when the pump exits.
func (c *Client) writePump() {
	defer c.conn.Close()

	for {
		select {
		case <-c.done:
			// Flush whatever is already queued before closing
			for {
				select {
				case frame := <-c.send:
					if c.conn.WriteMessage(websocket.TextMessage, frame) != nil {
						return
					}
				default:
					return
				}
			}
		case frame := <-c.send:
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		}
	}
}

func (c *Client) info() ClientInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	return ClientInfo{
		ID:           c.ID,
		ConnectedAt:  c.ConnectedAt,
		LastActivity: c.lastActivity,
		IPAddress:    c.IPAddress,
		Dropped:      c.dropped,
	}
}
