package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/focuserd/internal/infrastructure/config"
	"github.com/nerrad567/focuserd/internal/infrastructure/logging"
)

// Frame types on the status stream.
const (
	FrameEvent = "event"
	FramePing  = "ping"
	FramePong  = "pong"
	FrameError = "error"

	// StreamStatus is the event type of periodic status snapshots. Every
	// other event type is a lifecycle event.
	StreamStatus = "status"

	// streamQueueSize is the per-client outbound frame buffer. Frames are
	// dropped for a client that falls this far behind.
	streamQueueSize = 64
)

// Frame is one message on the status stream.
type Frame struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

func newFrame(kind, eventType string, payload any) Frame {
	return Frame{
		Type:      kind,
		EventType: eventType,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// The stream is read-only; any origin may watch it.
		return true
	},
}

// Hub fans status snapshots and lifecycle events out to every connected
// stream client.
type Hub struct {
	cfg    config.WebSocketConfig
	logger *logging.Logger

	mu      sync.Mutex
	clients map[*streamClient]struct{}
	closed  bool
}

// streamClient is one websocket connection. queue is never closed; done
// signals the writer to stop.
type streamClient struct {
	conn  *websocket.Conn
	queue chan []byte
	done  chan struct{}
	once  sync.Once
}

func (c *streamClient) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// offer queues data without blocking.
func (c *streamClient) offer(data []byte) {
	select {
	case c.queue <- data:
	default:
	}
}

// NewHub creates a hub using cfg for keepalive timing.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*streamClient]struct{}),
	}
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	h.closed = true
	clients := h.clients
	h.clients = make(map[*streamClient]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.close()
	}
}

// Broadcast sends a frame of eventType to every client.
func (h *Hub) Broadcast(eventType string, payload any) {
	data, err := json.Marshal(newFrame(FrameEvent, eventType, payload))
	if err != nil {
		h.logger.Error("failed to marshal stream frame", "event_type", eventType, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.offer(data)
	}
}

// PublishStatus broadcasts a status snapshot.
func (h *Hub) PublishStatus(status any) error {
	h.Broadcast(StreamStatus, status)
	return nil
}

// PublishEvent broadcasts a lifecycle event.
func (h *Hub) PublishEvent(kind string, payload any) error {
	h.Broadcast(kind, payload)
	return nil
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// attach registers conn with initial as its first frame. It returns nil
// once the hub has shut down.
func (h *Hub) attach(conn *websocket.Conn, initial Frame) *streamClient {
	c := &streamClient{
		conn:  conn,
		queue: make(chan []byte, streamQueueSize),
		done:  make(chan struct{}),
	}
	if data, err := json.Marshal(initial); err == nil {
		c.offer(data)
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		c.close()
		return nil
	}
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug("stream client connected", "clients", n)
	return c
}

func (h *Hub) detach(c *streamClient) {
	h.mu.Lock()
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	c.close()
	h.logger.Debug("stream client disconnected", "clients", n)
}

// handleWebSocket upgrades the connection and sends the current status
// straight away so clients need not wait for the next tick.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := s.hub.attach(conn, newFrame(FrameEvent, StreamStatus, s.focuser.ReportStatus()))
	if c == nil {
		return
	}
	go s.hub.write(c)
	go s.hub.read(c)
}

// read answers pings until the client goes away. The stream is otherwise
// one-way.
func (h *Hub) read(c *streamClient) {
	defer h.detach(c)

	idle := time.Duration(h.cfg.PingInterval+h.cfg.PongTimeout) * time.Second
	c.conn.SetReadLimit(int64(h.cfg.MaxMessageSize))
	//nolint:errcheck // Best-effort deadline on connection setup
	c.conn.SetReadDeadline(time.Now().Add(idle))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(idle))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read error", "error", err)
			}
			return
		}
		//nolint:errcheck // Best-effort deadline reset
		c.conn.SetReadDeadline(time.Now().Add(idle))

		reply := h.reply(data)
		if out, err := json.Marshal(reply); err == nil {
			c.offer(out)
		}
	}
}

func (h *Hub) reply(data []byte) Frame {
	var in Frame
	if err := json.Unmarshal(data, &in); err != nil {
		return Frame{Type: FrameError, Payload: map[string]string{"message": "invalid JSON message"}}
	}
	if in.Type != FramePing {
		return Frame{Type: FrameError, ID: in.ID, Payload: map[string]string{"message": "unsupported message type: " + in.Type}}
	}
	return Frame{Type: FramePong, ID: in.ID, Timestamp: time.Now().UTC().Format(time.RFC3339)}
}

// write drains the client's queue and keeps the connection alive with
// protocol pings.
func (h *Hub) write(c *streamClient) {
	ping := time.NewTicker(time.Duration(h.cfg.PingInterval) * time.Second)
	defer ping.Stop()
	defer c.close()

	timeout := time.Duration(h.cfg.PongTimeout) * time.Second
	for {
		kind, data := websocket.TextMessage, []byte(nil)
		select {
		case <-c.done:
			return
		case data = <-c.queue:
		case <-ping.C:
			kind = websocket.PingMessage
		}

		//nolint:errcheck // Best-effort deadline; write error caught below
		c.conn.SetWriteDeadline(time.Now().Add(timeout))
		if err := c.conn.WriteMessage(kind, data); err != nil {
			return
		}
	}
}
