package handlers

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/tea-analyzer/client/internal/hub"
	"github.com/tea-analyzer/client/internal/transport"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second

	// ssePingPeriod matches the production backend's keepalive cadence.
	ssePingPeriod = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Dev stub only; accept any origin.
		return true
	},
}

// StreamHandler serves the WebSocket and SSE endpoints plus the SSE
// companion POST endpoints.
type StreamHandler struct {
	registry *hub.Registry
}

// NewStreamHandler creates a StreamHandler.
func NewStreamHandler(registry *hub.Registry) *StreamHandler {
	return &StreamHandler{registry: registry}
}

// RegisterRoutes registers the stream routes.
func (h *StreamHandler) RegisterRoutes(r gin.IRouter) {
	r.GET("/ws/:agent/:connectionId", h.WebSocket)
	r.GET("/sse/:agent/:connectionId", h.SSE)
	r.POST("/sse/:agent/:connectionId/text", h.post(transport.MessageTypeText))
	r.POST("/sse/:agent/:connectionId/mode", h.post(transport.MessageTypeMode))
	r.POST("/sse/:agent/:connectionId/video", h.post(transport.MessageTypeVideo))
}

// lookup resolves the connection for a stream request.
func (h *StreamHandler) lookup(c *gin.Context) *hub.Connection {
	agent := c.Param("agent")
	conn := h.registry.Get(c.Param("connectionId"))
	if conn == nil {
		sendError(c, http.StatusNotFound, "UNKNOWN_CONNECTION", "Unknown connection id. Create a connection first")
		return nil
	}
	if conn.Agent != agent {
		sendError(c, http.StatusBadRequest, "AGENT_MISMATCH", "agent does not match this connection")
		return nil
	}
	return conn
}

// WebSocket handles GET /ws/{agent}/{connectionId}.
func (h *StreamHandler) WebSocket(c *gin.Context) {
	conn := h.lookup(c)
	if conn == nil {
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("devserver: ws upgrade failed: %v", err)
		return
	}

	sub := conn.Subscribe()
	done := make(chan struct{})

	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		defer ws.Close()
		for {
			select {
			case msg, ok := <-sub:
				ws.SetWriteDeadline(time.Now().Add(writeWait))
				if !ok {
					ws.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if err := ws.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
					return
				}
			case <-ticker.C:
				ws.SetWriteDeadline(time.Now().Add(writeWait))
				if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("devserver: ws read error: %v", err)
			}
			break
		}

		var env transport.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.Printf("devserver: bad ws envelope: %v", err)
			continue
		}
		conn.Publish(analysisReply(conn.Agent, env.Type, env.Data))
	}

	close(done)
	conn.Unsubscribe(sub)
}

// SSE handles GET /sse/{agent}/{connectionId}. The stream opens with a
// ready event and keeps alive with pings every 5 seconds of silence.
func (h *StreamHandler) SSE(c *gin.Context) {
	conn := h.lookup(c)
	if conn == nil {
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	sub := conn.Subscribe()
	defer conn.Unsubscribe(sub)

	sse.Encode(c.Writer, sse.Event{Event: "ready", Data: "ok"})
	c.Writer.Flush()

	ticker := time.NewTicker(ssePingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-sub:
			if !ok {
				return
			}
			sse.Encode(c.Writer, sse.Event{Data: msg})
			c.Writer.Flush()
		case <-ticker.C:
			sse.Encode(c.Writer, sse.Event{Event: "ping", Data: "keepalive"})
			c.Writer.Flush()
		case <-c.Request.Context().Done():
			return
		}
	}
}

// streamMessage is the body of the companion POST endpoints.
type streamMessage struct {
	Data     string `json:"data"`
	Language string `json:"language"`
}

// post returns the handler for one companion endpoint kind.
func (h *StreamHandler) post(kind transport.MessageType) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn := h.lookup(c)
		if conn == nil {
			return
		}

		var msg streamMessage
		if err := c.ShouldBindJSON(&msg); err != nil {
			sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body: "+err.Error())
			return
		}

		conn.Publish(analysisReply(conn.Agent, kind, msg.Data))
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// analysisReply fabricates a deterministic reply for the dev stub.
func analysisReply(agent string, kind transport.MessageType, data string) string {
	switch kind {
	case transport.MessageTypeMode:
		return fmt.Sprintf("mode changed to %q", data)
	case transport.MessageTypeVideo:
		return fmt.Sprintf("frame received (%d bytes); the tool in view looks well maintained", len(data))
	default:
		return fmt.Sprintf("%s agent received: %s", agent, data)
	}
}
