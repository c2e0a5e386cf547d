package handlers

import (
	"time"

	"github.com/gofiber/contrib/websocket"
	fiber "github.com/gofiber/fiber/v2"

	"github.com/celestiaorg/jobscheduler/internal/events"
	"github.com/celestiaorg/jobscheduler/internal/logger"
)

// DefaultHeartbeatInterval is how often an idle stream receives a ServerHeartbeat
const DefaultHeartbeatInterval = 30 * time.Second

// StreamHandler serves the websocket feed of job status updates
type StreamHandler struct {
	broadcaster *events.Broadcaster
	heartbeat   time.Duration
}

// NewStreamHandler creates a stream handler. A non-positive heartbeat uses
// DefaultHeartbeatInterval.
func NewStreamHandler(b *events.Broadcaster, heartbeat time.Duration) *StreamHandler {
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeatInterval
	}
	return &StreamHandler{broadcaster: b, heartbeat: heartbeat}
}

// Upgrade rejects plain HTTP requests to the stream endpoint
func (h *StreamHandler) Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// Stream returns the websocket handler
func (h *StreamHandler) Stream() fiber.Handler {
	return websocket.New(h.serve)
}

// serve forwards every broadcast message to one connection until either side
// goes away. Client frames are read only to notice the disconnect.
func (h *StreamHandler) serve(conn *websocket.Conn) {
	sub := h.broadcaster.Subscribe()
	defer sub.Close()

	remote := conn.RemoteAddr().String()
	logger.Infof("Stream client %s connected", remote)
	defer logger.Infof("Stream client %s disconnected", remote)

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	// the conn is released back to its pool once serve returns, so the
	// reader has to be done with it first
	defer func() {
		_ = conn.Close()
		<-gone
	}()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-gone:
			return
		case msg, ok := <-sub.C():
			if !ok {
				return
			}
			if err := writeMessage(conn, msg); err != nil {
				logger.Debugf("Stream client %s write failed: %v", remote, err)
				return
			}
		case <-ticker.C:
			if err := writeMessage(conn, events.ServerHeartbeat{}); err != nil {
				logger.Debugf("Stream client %s write failed: %v", remote, err)
				return
			}
		}
	}
}

func writeMessage(conn *websocket.Conn, msg events.Message) error {
	data, err := events.Encode(msg)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}
