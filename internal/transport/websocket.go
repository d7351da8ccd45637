package transport

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tea-analyzer/client/internal/model"
)

const inboundBuffer = 64

// WebSocketChannel is the full-duplex channel: one socket per connection,
// JSON envelopes in both directions.
type WebSocketChannel struct {
	url      string
	language string

	mu          sync.Mutex
	conn        *websocket.Conn
	closeReason string
	drained     bool

	state    atomic.Int32
	busy     atomic.Bool
	messages chan Inbound
}

// NewWebSocket creates a channel for the given ws:// or wss:// URL.
// The language is attached to outbound text envelopes.
func NewWebSocket(url, language string) *WebSocketChannel {
	c := &WebSocketChannel{
		url:      url,
		language: language,
		messages: make(chan Inbound, inboundBuffer),
	}
	c.state.Store(int32(StateIdle))
	return c
}

// Connect dials the socket and starts the read loop. A dial failure
// leaves the channel closed; reconnection is a new caller action on a
// fresh channel, never automatic.
func (c *WebSocketChannel) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if State(c.state.Load()) != StateIdle {
		return model.ErrChannelClosed
	}
	c.state.Store(int32(StateConnecting))

	log.Printf("ws: connecting %s", c.url)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		c.closeReason = err.Error()
		c.state.Store(int32(StateClosed))
		c.closeMessagesLocked()
		return err
	}

	c.conn = conn
	c.state.Store(int32(StateOpen))
	log.Printf("ws: opened %s", c.url)

	go c.readLoop(conn)
	return nil
}

// readLoop pumps inbound messages until the socket errors or closes.
func (c *WebSocketChannel) readLoop(conn *websocket.Conn) {
	defer func() {
		c.mu.Lock()
		c.closeMessagesLocked()
		c.mu.Unlock()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			reason := err.Error()
			if ce, ok := err.(*websocket.CloseError); ok {
				switch ce.Code {
				case websocket.CloseNormalClosure:
					log.Printf("ws: closed normally")
				case websocket.CloseInternalServerErr:
					// 1011 is the backend's resource-limit close.
					log.Printf("ws: closed by backend resource limit (1011): %s", ce.Text)
				default:
					log.Printf("ws: closed: code %d, reason %q", ce.Code, ce.Text)
				}
			} else if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("ws: error: %v", err)
			}
			c.transitionClosed(reason)
			return
		}

		select {
		case c.messages <- Inbound{Event: "message", Data: string(data)}:
		default:
			log.Printf("ws: inbound buffer full, dropping message")
		}
	}
}

func (c *WebSocketChannel) transitionClosed(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if State(c.state.Load()) == StateClosed {
		return
	}
	c.closeReason = reason
	c.state.Store(int32(StateClosed))
}

// closeMessagesLocked closes the inbound stream exactly once.
func (c *WebSocketChannel) closeMessagesLocked() {
	if !c.drained {
		c.drained = true
		close(c.messages)
	}
}

// Disconnect closes the socket with a normal closure. Safe to call on an
// already closed channel.
func (c *WebSocketChannel) Disconnect() error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil || State(c.state.Load()) == StateClosed {
		c.transitionClosed("disconnected")
		c.mu.Lock()
		c.closeMessagesLocked()
		c.mu.Unlock()
		return nil
	}

	deadline := time.Now().Add(time.Second)
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "user disconnect"), deadline)
	err := conn.Close()
	c.transitionClosed("user disconnect")
	log.Printf("ws: disconnected by user")
	return err
}

// SendText sends a text envelope.
func (c *WebSocketChannel) SendText(ctx context.Context, text string) error {
	return c.writeEnvelope(Envelope{Type: MessageTypeText, Data: text, Language: c.language})
}

// SendMode sends a mode-change envelope.
func (c *WebSocketChannel) SendMode(ctx context.Context, mode string) error {
	return c.writeEnvelope(Envelope{Type: MessageTypeMode, Data: mode})
}

// SendFrame sends one base64 JPEG video frame. A concurrent frame send is
// rejected with ErrChannelBusy.
func (c *WebSocketChannel) SendFrame(ctx context.Context, frame string) error {
	if !c.busy.CompareAndSwap(false, true) {
		return model.ErrChannelBusy
	}
	defer c.busy.Store(false)

	return c.writeEnvelope(Envelope{
		Type:      MessageTypeVideo,
		Data:      frame,
		Mode:      "webcam",
		Timestamp: time.Now().UnixMilli(),
	})
}

// writeEnvelope serializes writes; gorilla permits one concurrent writer.
func (c *WebSocketChannel) writeEnvelope(env Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if State(c.state.Load()) != StateOpen || c.conn == nil {
		return model.ErrChannelClosed
	}
	return c.conn.WriteJSON(env)
}

// Messages returns the inbound message stream.
func (c *WebSocketChannel) Messages() <-chan Inbound {
	return c.messages
}

// State returns the current channel state.
func (c *WebSocketChannel) State() State {
	return State(c.state.Load())
}

// CloseReason reports why the channel closed, if it has.
func (c *WebSocketChannel) CloseReason() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeReason
}
