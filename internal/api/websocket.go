package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/homeatlas/atlas-core/internal/auth"
	"github.com/homeatlas/atlas-core/internal/infrastructure/config"
	"github.com/homeatlas/atlas-core/internal/infrastructure/logging"
	"github.com/homeatlas/atlas-core/internal/layout"
	"github.com/homeatlas/atlas-core/internal/syncer"
)

// Keepalive message types handled locally, outside the sync protocol.
const (
	wsTypePing = "ping"
	wsTypePong = "pong"
)

// wsSendBufferSize is the per-client outbound message buffer size.
const wsSendBufferSize = 256

// anonymousAuthor is recorded for edits from sessionless connections.
// Those connections are viewers and never reach the commit path, but
// the author field must not be empty.
const anonymousAuthor = "anonymous"

// Hub manages WebSocket connections and broadcasts sync protocol
// messages. It satisfies the coordinator's Broadcaster interface.
type Hub struct {
	cfg     config.WebSocketConfig
	logger  *logging.Logger
	clients map[*WSClient]struct{}
	mu      sync.RWMutex
}

// WSClient represents a connected WebSocket client.
type WSClient struct {
	hub    *Hub
	server *Server
	conn   *websocket.Conn
	send   chan []byte
	// Identity propagated from the WebSocket ticket. session is nil
	// for anonymous viewers.
	session *auth.Session
}

// canEdit reports whether the client may mutate the layout.
func (c *WSClient) canEdit() bool {
	return c.session != nil && c.session.Role.CanEdit()
}

// authorID returns the session ID recorded as the author of commits.
func (c *WSClient) authorID() string {
	if c.session == nil {
		return anonymousAuthor
	}
	return c.session.ID
}

// upgrader configures the WebSocket upgrader.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Origin checking is handled by CORS middleware
		return true
	},
}

// NewHub creates a new WebSocket hub.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*WSClient]struct{}),
	}
}

// Run starts the hub's main loop. It blocks until the context is cancelled.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// Register adds a client to the hub.
func (h *Hub) Register(client *WSClient) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "clients", h.ClientCount())
}

// Unregister removes a client from the hub.
// Only the goroutine that successfully removes the client from the map
// closes the send channel, preventing double-close panics during shutdown.
func (h *Hub) Unregister(client *WSClient) {
	h.mu.Lock()
	_, existed := h.clients[client]
	delete(h.clients, client)
	h.mu.Unlock()

	if existed {
		close(client.send)
	}
	h.logger.Debug("websocket client disconnected", "clients", h.ClientCount())
}

// Broadcast sends a sync protocol message to every connected client.
// Lock ordering: the client list is snapshotted under the hub lock,
// which is released before any send.
func (h *Hub) Broadcast(msgType string, payload any) {
	data, err := syncer.Encode(msgType, "", payload)
	if err != nil {
		h.logger.Error("failed to marshal broadcast message", "type", msgType, "error", err)
		return
	}

	h.mu.RLock()
	clients := make([]*WSClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		client.trySend(data)
	}
	if len(clients) > 0 {
		h.logger.Debug("broadcast sent", "type", msgType, "recipients", len(clients))
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// closeAll disconnects all clients and closes their send channels
// so writePump goroutines can exit cleanly.
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.send)
		if client.conn != nil {
			client.conn.Close()
		}
		delete(h.clients, client)
	}
}

// handleWebSocket upgrades the HTTP connection to a WebSocket connection.
// Authentication is via ticket query parameter (obtained from POST /auth/ws-ticket).
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ticket := r.URL.Query().Get("ticket")
	if ticket == "" {
		writeUnauthorized(w, "ticket query parameter is required")
		return
	}
	entry, ok := s.validateTicket(ticket)
	if !ok {
		writeUnauthorized(w, "invalid or expired ticket")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := &WSClient{
		hub:     s.hub,
		server:  s,
		conn:    conn,
		send:    make(chan []byte, wsSendBufferSize),
		session: entry.session,
	}

	s.hub.Register(client)

	// Start read/write pumps
	go client.writePump(s.wsCfg)
	go client.readPump(s.wsCfg)

	// A fresh client always starts from a full snapshot.
	client.sendMessage("", syncer.MsgFullSync, s.coordinator.FullSync())
}

// readPump reads messages from the WebSocket connection.
func (c *WSClient) readPump(cfg config.WebSocketConfig) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	pingInterval := time.Duration(cfg.PingInterval) * time.Second
	pongWait := time.Duration(cfg.PongTimeout) * time.Second
	//nolint:errcheck // Best-effort deadline on connection setup
	c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "error", err)
			} else {
				c.hub.logger.Debug("websocket closed", "error", err)
			}
			return
		}
		// Any client message resets the read deadline (keeps connection alive
		// even if browser doesn't respond to protocol-level pings).
		//nolint:errcheck // Best-effort deadline reset
		c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
		c.handleMessage(message)
	}
}

// writePump writes messages to the WebSocket connection.
func (c *WSClient) writePump(cfg config.WebSocketConfig) {
	pingInterval := time.Duration(cfg.PingInterval) * time.Second
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	pongWait := time.Duration(cfg.PongTimeout) * time.Second

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				// Hub closed the channel
				//nolint:errcheck // Best-effort close message
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			//nolint:errcheck // Best-effort deadline; write error caught below
			c.conn.SetWriteDeadline(time.Now().Add(pongWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // Best-effort deadline; ping error caught below
			c.conn.SetWriteDeadline(time.Now().Add(pongWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage processes an incoming WebSocket message.
func (c *WSClient) handleMessage(data []byte) {
	var msg syncer.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError("", "protocol", "invalid JSON message")
		return
	}

	switch msg.Type {
	case syncer.MsgHello:
		c.handleHello(msg)
	case syncer.MsgEditRequest:
		c.handleEditRequest(msg)
	case syncer.MsgDeviceCommand:
		c.handleDeviceCommand(msg)
	case wsTypePing:
		c.sendMessage(msg.ID, wsTypePong, nil)
	default:
		c.sendError(msg.ID, "protocol", "unknown message type: "+msg.Type)
	}
}

// handleHello replies with a full snapshot. Clients send hello after
// connecting or after a stale_reject to rebase their local state.
func (c *WSClient) handleHello(msg syncer.Message) {
	c.sendMessage(msg.ID, syncer.MsgFullSync, c.server.coordinator.FullSync())
}

// handleEditRequest submits one edit through the coordinator. A stale
// base version produces a stale_reject carrying both versions so the
// client knows how far behind it is.
func (c *WSClient) handleEditRequest(msg syncer.Message) {
	if !c.canEdit() {
		c.sendError(msg.ID, "forbidden", "editor role required")
		return
	}

	var req syncer.EditRequestPayload
	if err := msg.Decode(&req); err != nil {
		c.sendError(msg.ID, "protocol", "invalid edit_request payload")
		return
	}

	_, err := c.server.coordinator.SubmitEdit(context.Background(), c.authorID(), req)
	if err == nil {
		// The committed diff reaches this client through the broadcast.
		return
	}

	switch {
	case errors.Is(err, syncer.ErrStaleVersion):
		c.sendMessage(msg.ID, syncer.MsgStaleReject, syncer.StaleRejectPayload{
			BaseVersion:    req.BaseVersion,
			CurrentVersion: c.server.coordinator.Version(),
		})
	case errors.Is(err, layout.ErrInvalidGeometry),
		errors.Is(err, layout.ErrInvalidDevice),
		errors.Is(err, layout.ErrInvalidOperation),
		errors.Is(err, layout.ErrUnknownEntity),
		errors.Is(err, layout.ErrDuplicateEntity):
		c.sendError(msg.ID, "validation", err.Error())
	case errors.Is(err, syncer.ErrStorage):
		c.hub.logger.Error("edit persistence failed", "error", err)
		c.sendError(msg.ID, "storage", "edit could not be persisted")
	default:
		c.sendError(msg.ID, "internal", err.Error())
	}
}

// handleDeviceCommand forwards a device command to the bridge.
func (c *WSClient) handleDeviceCommand(msg syncer.Message) {
	if !c.canEdit() {
		c.sendError(msg.ID, "forbidden", "editor role required")
		return
	}

	var cmd syncer.DeviceCommandPayload
	if err := msg.Decode(&cmd); err != nil {
		c.sendError(msg.ID, "protocol", "invalid device_command payload")
		return
	}

	if err := c.server.coordinator.PushCommand(context.Background(), cmd); err != nil {
		switch {
		case errors.Is(err, syncer.ErrNoBridge):
			c.sendError(msg.ID, "bridge", "no device bridge configured")
		case errors.Is(err, layout.ErrUnknownEntity):
			c.sendError(msg.ID, "validation", "unknown device: "+cmd.DeviceID)
		case errors.Is(err, layout.ErrInvalidCommand):
			c.sendError(msg.ID, "validation", err.Error())
		default:
			c.sendError(msg.ID, "bridge", err.Error())
		}
	}
}

// trySend attempts to send data to the client's send channel.
// It silently handles closed channels (client disconnected during broadcast)
// and full buffers (slow client).
func (c *WSClient) trySend(data []byte) {
	defer func() {
		recover() //nolint:errcheck // Absorb send-on-closed-channel panic
	}()

	select {
	case c.send <- data:
	default:
		// Client buffer full, skip
	}
}

// sendMessage sends a protocol message to this client only.
// Routes through trySend to safely handle closed channels during shutdown.
func (c *WSClient) sendMessage(id, msgType string, payload any) {
	data, err := syncer.Encode(msgType, id, payload)
	if err != nil {
		return
	}
	c.trySend(data)
}

// sendError sends an error message to the client.
func (c *WSClient) sendError(id, kind, message string) {
	c.sendMessage(id, syncer.MsgError, syncer.ErrorPayload{Kind: kind, Message: message})
}
