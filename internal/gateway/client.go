package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/relaygate/relaygate/pkg/protocol"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Client is one connected WebSocket session: a single goroutine reads
// RequestFrames off the wire and dispatches them through the server's
// MethodRouter, while SendEvent/writes to the connection are serialized
// through a dedicated send loop (gorilla/websocket connections are not
// safe for concurrent writers).
type Client struct {
	id   string
	conn *websocket.Conn
	srv  *Server

	send chan []byte

	mu         sync.RWMutex
	scopes     map[protocol.Scope]bool
	userID     string
	authed     bool
	closeOnce  sync.Once
}

// NewClient wraps an upgraded WebSocket connection. The client isn't
// authorized for anything until it completes the "connect" handshake.
func NewClient(conn *websocket.Conn, s *Server) *Client {
	return &Client{
		id:     uuid.NewString(),
		conn:   conn,
		srv:    s,
		send:   make(chan []byte, 64),
		scopes: make(map[protocol.Scope]bool),
	}
}

// ID returns the client's connection ID (distinct from its UserID).
func (c *Client) ID() string { return c.id }

// UserID returns the external user ID the client authenticated as, once
// connect has succeeded.
func (c *Client) UserID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID
}

// HasScope reports whether the connect handshake granted scope to this
// client.
func (c *Client) HasScope(scope protocol.Scope) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.scopes[scope]
}

func (c *Client) authorize(userID string, scopes []protocol.Scope) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.authed = true
	c.userID = userID
	c.scopes = make(map[protocol.Scope]bool, len(scopes))
	for _, sc := range scopes {
		c.scopes[sc] = true
	}
}

func (c *Client) isAuthed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.authed
}

// SendEvent pushes an EventFrame to the client asynchronously. It drops the
// event (logging a warning) rather than blocking if the client's send
// buffer is full, so one slow reader cannot stall the whole event bus.
func (c *Client) SendEvent(event protocol.EventFrame) {
	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("gateway: marshal event failed", "error", err)
		return
	}
	select {
	case c.send <- data:
	default:
		slog.Warn("gateway: client send buffer full, dropping event", "client", c.id, "event", event.Name)
	}
}

func (c *Client) sendResponse(resp *protocol.ResponseFrame) {
	data, err := json.Marshal(resp)
	if err != nil {
		slog.Error("gateway: marshal response failed", "error", err)
		return
	}
	select {
	case c.send <- data:
	default:
		slog.Warn("gateway: client send buffer full, dropping response", "client", c.id, "reqID", resp.ID)
	}
}

// Run drives the client's read and write loops until ctx is cancelled or
// the connection errors out. It blocks until both loops finish.
func (c *Client) Run(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.writeLoop(runCtx)
	}()

	c.readLoop(runCtx, cancel)
	wg.Wait()
}

func (c *Client) readLoop(ctx context.Context, cancel context.CancelFunc) {
	defer cancel()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("gateway: client read error", "client", c.id, "error", err)
			}
			return
		}

		var req protocol.RequestFrame
		if err := json.Unmarshal(raw, &req); err != nil {
			c.sendResponse(protocol.NewErrorResponse("", protocol.ErrCodeInvalidParams, "malformed request frame"))
			continue
		}

		go c.handleRequest(ctx, req)
	}
}

func (c *Client) handleRequest(ctx context.Context, req protocol.RequestFrame) {
	if req.Method != protocol.MethodConnect && !c.isAuthed() {
		c.sendResponse(protocol.NewErrorResponse(req.ID, protocol.ErrCodeUnauthorized, "connect must be the first call"))
		return
	}
	if c.srv.rateLimiter != nil && !c.srv.rateLimiter.Allow(c.id) {
		c.sendResponse(protocol.NewErrorResponse(req.ID, protocol.ErrCodeRateLimited, "rate limit exceeded"))
		return
	}

	resp := c.srv.router.Dispatch(ctx, c, req)
	c.sendResponse(resp)
}

func (c *Client) writeLoop(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Close closes the underlying connection and releases the client's rate
// limiter bucket.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		if c.srv.rateLimiter != nil {
			c.srv.rateLimiter.Forget(c.id)
		}
		c.conn.Close()
	})
}
