package server

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/elicit-dev/elicit/internal/logging"
)

// ErrClientClosed indicates a send on a torn-down connection.
var ErrClientClosed = errors.New("client connection closed")

// wsClient wraps one live-session WebSocket connection. Sends are serialized;
// events originating from timer goroutines and from the request loop share
// the same socket.
type wsClient struct {
	ConnID      string
	ConnectedAt time.Time

	socket *websocket.Conn
	mu     sync.Mutex
	closed bool
	log    *logging.Logger
}

func newWSClient(conn *websocket.Conn, log *logging.Logger) *wsClient {
	return &wsClient{
		ConnID:      uuid.New().String(),
		ConnectedAt: time.Now(),
		socket:      conn,
		log:         log,
	}
}

// Send sends a frame to the client. Thread-safe.
func (c *wsClient) Send(frame Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClientClosed
	}
	return c.socket.WriteJSON(frame)
}

// SendEvent sends a named event with payload.
func (c *wsClient) SendEvent(event string, payload any, seq int64) error {
	f, err := NewEvent(event, payload, seq)
	if err != nil {
		return err
	}
	return c.Send(f)
}

// Respond sends a success response for the given request ID.
func (c *wsClient) Respond(reqID string, payload any) error {
	f, err := NewResponse(reqID, payload)
	if err != nil {
		return err
	}
	return c.Send(f)
}

// RespondError sends an error response for the given request ID.
func (c *wsClient) RespondError(reqID string, errShape ErrorShape) error {
	return c.Send(NewErrorResponse(reqID, errShape))
}

// ReadFrame reads the next frame from the WebSocket.
func (c *wsClient) ReadFrame() (Frame, error) {
	_, msg, err := c.socket.ReadMessage()
	if err != nil {
		return Frame{}, err
	}
	var f Frame
	if err := json.Unmarshal(msg, &f); err != nil {
		return Frame{}, err
	}
	return f, nil
}

// Close closes the WebSocket connection.
func (c *wsClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.socket.Close()
}
