// Package bridge exposes an execution's event stream over WebSocket: it
// upgrades an HTTP request to a socket and pumps structured events to
// it, with one goroutine reading control frames (ping/close) off the
// connection while another drains a per-client send channel and writes
// events as JSON.
package bridge

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nexusflow/agentflow/events"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// Server upgrades HTTP requests to WebSocket connections and streams one
// execution's events to each connected client. It subscribes lazily: a
// client that connects before its subscribe feed has delivered anything
// simply waits for the next event.
type Server struct {
	subscribe func(ctx context.Context, executionID string) (<-chan events.Event, func() error)
	terminal  func(ctx context.Context, executionID string) (events.Event, bool)
	upgrader  websocket.Upgrader
}

// NewServer builds a Server that streams events for whatever executionID
// a client requests, using subscribe to open the underlying feed (see
// events.Subscribe for the Redis-backed implementation). terminal may be
// nil; when set, it is consulted before subscribing so a client that
// connects after an execution has already finished gets a synthetic
// execution_completed event instead of waiting on a feed nothing will
// ever publish to again.
func NewServer(subscribe func(ctx context.Context, executionID string) (<-chan events.Event, func() error), terminal func(ctx context.Context, executionID string) (events.Event, bool)) *Server {
	return &Server{
		subscribe: subscribe,
		terminal:  terminal,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Handler upgrades the connection and streams events for the execution
// named by the "execution_id" query parameter until the client
// disconnects or the feed closes.
func (s *Server) Handler(w http.ResponseWriter, r *http.Request) {
	executionID := r.URL.Query().Get("execution_id")
	if executionID == "" {
		http.Error(w, "execution_id query parameter is required", http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("bridge: upgrade failed: %v", err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if s.terminal != nil {
		if ev, done := s.terminal(ctx, executionID); done {
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteJSON(ev)
			conn.WriteMessage(websocket.CloseMessage, []byte{})
			conn.Close()
			return
		}
	}

	feed, closeFeed := s.subscribe(ctx, executionID)

	client := &client{conn: conn, feed: feed}
	go client.readPump(cancel)
	client.writePump(closeFeed, cancel)
}

// client pumps one execution's events to one WebSocket connection.
type client struct {
	conn *websocket.Conn
	feed <-chan events.Event
}

// readPump only watches for the client closing the connection; agentflow
// never accepts commands over this socket.
func (c *client) readPump(cancel context.CancelFunc) {
	defer cancel()
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump(closeFeed func() error, cancel context.CancelFunc) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		cancel()
		_ = closeFeed()
		c.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.feed:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(ev); err != nil {
				return
			}
			if ev.Type == events.ExecutionCompleted {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
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
