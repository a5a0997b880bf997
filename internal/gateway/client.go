package gateway

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/soyeahso/notebridge/internal/logging"
)

const (
	writeTimeout = 5 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = pongWait * 9 / 10

	// sendQueue is how many frames may wait for a widget before it is
	// considered stalled and dropped.
	sendQueue = 64
)

// ErrSlowClient is returned when a widget's send queue is full.
var ErrSlowClient = errors.New("client send queue full")

// Client is an authenticated widget connection. Frames are written by a
// single pump goroutine; Send only enqueues.
type Client struct {
	ConnID      string
	Info        ClientInfo
	ConnectedAt time.Time

	conn *websocket.Conn
	out  chan Frame
	done chan struct{}
	once sync.Once
	log  *logging.Logger
}

// NewClient wraps an authenticated connection and starts its write pump.
func NewClient(conn *websocket.Conn, info ClientInfo, log *logging.Logger) *Client {
	c := newClient(info, log)
	c.conn = conn

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go c.writePump()
	return c
}

func newClient(info ClientInfo, log *logging.Logger) *Client {
	id := uuid.New().String()
	return &Client{
		ConnID:      id,
		Info:        info,
		ConnectedAt: time.Now(),
		out:         make(chan Frame, sendQueue),
		done:        make(chan struct{}),
		log:         log.With("connId", id),
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case f := <-c.out:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteJSON(f); err != nil {
				c.log.Debug().Err(err).Msg("write failed")
				c.Close()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				c.log.Debug().Err(err).Msg("ping failed")
				c.Close()
				return
			}
		}
	}
}

// Send queues a frame for the widget. It never blocks.
func (c *Client) Send(frame Frame) error {
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}
	select {
	case c.out <- frame:
		return nil
	default:
		return ErrSlowClient
	}
}

// SendEvent queues a named event.
func (c *Client) SendEvent(event string, payload any, seq int64) error {
	f, err := NewEvent(event, payload, seq)
	if err != nil {
		return err
	}
	return c.Send(f)
}

// Respond queues a success response for the given request ID.
func (c *Client) Respond(reqID string, payload any) error {
	f, err := NewResponse(reqID, payload)
	if err != nil {
		return err
	}
	return c.Send(f)
}

// RespondError queues an error response for the given request ID.
func (c *Client) RespondError(reqID string, errShape ErrorShape) error {
	return c.Send(NewErrorResponse(reqID, errShape))
}

// ReadFrame reads the next frame from the widget.
func (c *Client) ReadFrame() (Frame, error) {
	_, msg, err := c.conn.ReadMessage()
	if err != nil {
		return Frame{}, err
	}
	var f Frame
	if err := json.Unmarshal(msg, &f); err != nil {
		return Frame{}, err
	}
	return f, nil
}

// Done is closed once the client is closed.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close stops the write pump and closes the connection. Frames still queued
// are dropped.
func (c *Client) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		if c.conn == nil {
			return
		}
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
			time.Now().Add(writeTimeout))
		err = c.conn.Close()
	})
	return err
}

// ClientRegistry tracks connected widgets.
type ClientRegistry struct {
	mu      sync.RWMutex
	clients map[string]*Client // connID → Client
	log     *logging.Logger
}

// NewClientRegistry creates an empty client registry.
func NewClientRegistry(log *logging.Logger) *ClientRegistry {
	return &ClientRegistry{
		clients: make(map[string]*Client),
		log:     log,
	}
}

// Add registers a connected client.
func (r *ClientRegistry) Add(c *Client) {
	r.Register(c, nil)
}

// Register runs greet and then adds c, holding off broadcasts throughout,
// so whatever greet queues reaches c before any event. c is not added when
// greet fails.
func (r *ClientRegistry) Register(c *Client, greet func() error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if greet != nil {
		if err := greet(); err != nil {
			return err
		}
	}
	r.clients[c.ConnID] = c
	r.log.Info().Str("connId", c.ConnID).Str("client", c.Info.ID).Msg("client connected")
	return nil
}

// Remove unregisters a client by connection ID.
func (r *ClientRegistry) Remove(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.clients[connID]; !ok {
		return
	}
	delete(r.clients, connID)
	r.log.Info().Str("connId", connID).Msg("client disconnected")
}

// Count returns the number of connected clients.
func (r *ClientRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Broadcast queues an event for every connected client. A stalled client
// is disconnected rather than allowed to fall behind.
func (r *ClientRegistry) Broadcast(event string, payload any, seq int64) {
	frame, err := NewEvent(event, payload, seq)
	if err != nil {
		r.log.Error().Err(err).Str("event", event).Msg("encoding event")
		return
	}

	var stalled []*Client
	r.mu.RLock()
	for _, c := range r.clients {
		switch err := c.Send(frame); {
		case errors.Is(err, ErrSlowClient):
			stalled = append(stalled, c)
		case err != nil:
			r.log.Debug().Err(err).Str("connId", c.ConnID).Msg("broadcast skipped")
		}
	}
	r.mu.RUnlock()

	for _, c := range stalled {
		r.log.Warn().Str("connId", c.ConnID).Str("event", event).Msg("dropping stalled client")
		c.Close()
	}
}

// CloseAll closes all connected clients.
func (r *ClientRegistry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, c := range r.clients {
		c.Close()
		delete(r.clients, id)
	}
}
