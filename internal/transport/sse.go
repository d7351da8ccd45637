package transport

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tea-analyzer/client/internal/backend"
	"github.com/tea-analyzer/client/internal/model"
)

// SSEChannel pairs a one-way Server-Sent Events stream for inbound
// messages with per-message HTTP POSTs for outbound ones. The backend
// signals a live stream with a "ready" event; the channel then sends the
// language-preference message once.
type SSEChannel struct {
	api          *backend.Client
	agent        string
	connectionID string
	language     string

	// The stream client has no timeout; the event stream stays open for
	// the life of the channel. Outbound POSTs go through api instead.
	streamClient *http.Client

	mu          sync.Mutex
	cancel      context.CancelFunc
	closeReason string
	drained     bool

	state    atomic.Int32
	busy     atomic.Bool
	messages chan Inbound
}

// NewSSE creates a channel for (agent, connectionID) on the given backend.
func NewSSE(api *backend.Client, agent, connectionID, language string) *SSEChannel {
	c := &SSEChannel{
		api:          api,
		agent:        agent,
		connectionID: connectionID,
		language:     language,
		streamClient: &http.Client{},
		messages:     make(chan Inbound, inboundBuffer),
	}
	c.state.Store(int32(StateIdle))
	return c
}

// Connect opens the event stream and starts the read loop. The stream
// lives on a context derived in here so Disconnect can tear it down; the
// caller's ctx only bounds the initial request.
func (c *SSEChannel) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if State(c.state.Load()) != StateIdle {
		return model.ErrChannelClosed
	}
	c.state.Store(int32(StateConnecting))

	streamCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	url := c.api.SSEStreamURL(c.agent, c.connectionID)
	log.Printf("sse: connecting %s", url)

	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, url, nil)
	if err != nil {
		cancel()
		c.failLocked(err.Error())
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.streamClient.Do(req)
	if err != nil {
		cancel()
		c.failLocked(err.Error())
		return err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		reason := fmt.Sprintf("stream rejected with status %d", resp.StatusCode)
		c.failLocked(reason)
		return fmt.Errorf("sse: %s", reason)
	}

	c.state.Store(int32(StateOpen))
	log.Printf("sse: opened %s", url)

	go c.readLoop(resp)
	return nil
}

func (c *SSEChannel) failLocked(reason string) {
	c.closeReason = reason
	c.state.Store(int32(StateClosed))
	if !c.drained {
		c.drained = true
		close(c.messages)
	}
}

// readLoop parses the event stream until it errors or is cancelled.
func (c *SSEChannel) readLoop(resp *http.Response) {
	defer resp.Body.Close()
	defer func() {
		c.mu.Lock()
		if !c.drained {
			c.drained = true
			close(c.messages)
		}
		c.mu.Unlock()
	}()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	event := ""
	var data []string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			c.dispatch(event, strings.Join(data, "\n"))
			event = ""
			data = nil
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		case strings.HasPrefix(line, ":"):
			// comment/keepalive line
		}
	}

	if err := scanner.Err(); err != nil {
		log.Printf("sse: stream error: %v", err)
		c.transitionClosed(err.Error())
	} else {
		log.Printf("sse: stream ended")
		c.transitionClosed("stream ended")
	}
}

// dispatch routes one parsed server event.
func (c *SSEChannel) dispatch(event, data string) {
	switch event {
	case "ready":
		log.Printf("sse: ready")
		c.sendLanguagePreference()
		c.deliver(Inbound{Event: "ready", Data: data})
	case "ping":
		// keepalive, not surfaced to callers
	default:
		c.deliver(Inbound{Event: "message", Data: data})
	}
}

func (c *SSEChannel) deliver(msg Inbound) {
	select {
	case c.messages <- msg:
	default:
		log.Printf("sse: inbound buffer full, dropping message")
	}
}

// sendLanguagePreference tells the backend which language to answer in.
// Failures are logged only; the stream is already live.
func (c *SSEChannel) sendLanguagePreference() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	msg := LanguageInitMessage(c.language)
	if err := c.api.SendStreamMessage(ctx, c.agent, c.connectionID, backend.KindText, msg, c.language); err != nil {
		log.Printf("sse: failed to send language preference: %v", err)
		return
	}
	log.Printf("sse: language preference sent: %s", msg)
}

func (c *SSEChannel) transitionClosed(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if State(c.state.Load()) == StateClosed {
		return
	}
	c.closeReason = reason
	c.state.Store(int32(StateClosed))
}

// Disconnect cancels the event stream. In-flight outbound POSTs are not
// aborted; their completions after close are harmless.
func (c *SSEChannel) Disconnect() error {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.transitionClosed("user disconnect")

	c.mu.Lock()
	if !c.drained {
		c.drained = true
		close(c.messages)
	}
	c.mu.Unlock()

	log.Printf("sse: closed")
	return nil
}

// SendText posts a text message for this connection.
func (c *SSEChannel) SendText(ctx context.Context, text string) error {
	if State(c.state.Load()) != StateOpen {
		return model.ErrChannelClosed
	}
	return c.api.SendStreamMessage(ctx, c.agent, c.connectionID, backend.KindText, text, c.language)
}

// SendMode posts a mode change for this connection.
func (c *SSEChannel) SendMode(ctx context.Context, mode string) error {
	if State(c.state.Load()) != StateOpen {
		return model.ErrChannelClosed
	}
	return c.api.SendStreamMessage(ctx, c.agent, c.connectionID, backend.KindMode, mode, c.language)
}

// SendFrame posts one base64 JPEG frame. A concurrent frame send is
// rejected with ErrChannelBusy.
func (c *SSEChannel) SendFrame(ctx context.Context, frame string) error {
	if State(c.state.Load()) != StateOpen {
		return model.ErrChannelClosed
	}
	if !c.busy.CompareAndSwap(false, true) {
		return model.ErrChannelBusy
	}
	defer c.busy.Store(false)

	return c.api.SendStreamMessage(ctx, c.agent, c.connectionID, backend.KindVideo, frame, c.language)
}

// Messages returns the inbound message stream.
func (c *SSEChannel) Messages() <-chan Inbound {
	return c.messages
}

// State returns the current channel state.
func (c *SSEChannel) State() State {
	return State(c.state.Load())
}

// CloseReason reports why the channel closed, if it has.
func (c *SSEChannel) CloseReason() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeReason
}
