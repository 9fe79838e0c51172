package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	// writeWait is how long a single write may block before the
	// connection is considered dead.
	writeWait = 10 * time.Second

	// sendBuffer is the per-client outbound queue depth. A client that
	// cannot drain this many messages is dropped rather than allowed to
	// block the hub.
	sendBuffer = 64
)

// TextMessage is the frame type for UTF-8 payloads, re-exported for
// callers writing on a raw Conn.
const TextMessage = websocket.TextMessage

// Conn is the subset of the WebSocket connection the client uses.
// Tests substitute in-memory implementations.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

type gorillaConn struct {
	ws *websocket.Conn
}

func (g *gorillaConn) ReadMessage() (int, []byte, error) {
	return g.ws.ReadMessage()
}

func (g *gorillaConn) WriteMessage(messageType int, data []byte) error {
	g.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return g.ws.WriteMessage(messageType, data)
}

func (g *gorillaConn) Close() error {
	return g.ws.Close()
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browsers connect from the clinic front-end on a different origin;
	// the handshake message carries the real credential.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Upgrade switches an echo request to the WebSocket protocol.
func Upgrade(c echo.Context) (Conn, error) {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return nil, err
	}
	return &gorillaConn{ws: conn}, nil
}

// Client is one WebSocket connection bound to a clinic. Until the
// handshake message is processed the client is unauthenticated and the
// hubs refuse every other operation.
type Client struct {
	ID       uuid.UUID
	ClinicID int64

	Send chan []byte

	conn Conn

	mu     sync.Mutex
	userID int64
	authed bool
	closed bool
}

// NewClient wraps an upgraded connection. The client ID is the UUID
// handed back to the browser right after the upgrade.
func NewClient(clinicID int64, conn Conn) *Client {
	return &Client{
		ID:       uuid.New(),
		ClinicID: clinicID,
		Send:     make(chan []byte, sendBuffer),
		conn:     conn,
	}
}

// Bind marks the handshake as completed for the given user.
func (c *Client) Bind(userID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.userID = userID
	c.authed = true
}

// Authenticated reports whether the handshake has completed.
func (c *Client) Authenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authed
}

// UserID returns the user bound at handshake time, zero before that.
func (c *Client) UserID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

// ReadMessage blocks for the next text frame from the peer.
func (c *Client) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

// Push marshals the message onto the outbound queue. The send never
// blocks; a full queue means the client is too slow and the message is
// dropped. Pushing to a closed client is a no-op: the dispatcher may
// still hold queued frames for a client whose read loop already
// unregistered it.
func (c *Client) Push(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.Send <- data:
	default:
	}
}

// WritePump drains the outbound queue onto the wire. It returns when
// the queue is closed or a write fails, closing the connection either
// way. Run it in its own goroutine per client.
func (c *Client) WritePump() {
	defer c.conn.Close()
	for data := range c.Send {
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// Close shuts the outbound queue, letting WritePump finish and close
// the connection. Safe to call more than once, and concurrent Push
// calls see the closed flag under the same lock.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.Send)
}
