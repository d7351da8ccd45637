// Package transport provides the live channels between the client and an
// analysis connection: a full-duplex WebSocket channel and an SSE stream
// paired with companion HTTP POSTs. Both satisfy the same Channel
// contract so callers never depend on which transport is active.
package transport

import "context"

// State is the lifecycle state of a channel. Transitions happen only on
// explicit caller action or a terminal transport error; a closed channel
// never reopens itself.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// MessageType tags an outbound message envelope.
type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeMode  MessageType = "mode"
	MessageTypeVideo MessageType = "video"
)

// Envelope is the JSON message format on the WebSocket channel.
type Envelope struct {
	Type      MessageType `json:"type"`
	Data      string      `json:"data"`
	Mode      string      `json:"mode,omitempty"`
	Timestamp int64       `json:"timestamp,omitempty"`
	Language  string      `json:"language,omitempty"`
}

// Inbound is one message received from the backend on either channel.
type Inbound struct {
	// Event distinguishes stream lifecycle events ("ready") from analysis
	// payloads ("message").
	Event string
	Data  string
}

// Channel is a live session channel to the backend.
//
// SendFrame takes a raw base64 JPEG payload (no data-URL prefix). A frame
// send while a previous one is in flight returns ErrChannelBusy; frames
// are dropped rather than queued. Messages is closed when the channel
// reaches StateClosed.
type Channel interface {
	Connect(ctx context.Context) error
	Disconnect() error
	SendText(ctx context.Context, text string) error
	SendMode(ctx context.Context, mode string) error
	SendFrame(ctx context.Context, frame string) error
	Messages() <-chan Inbound
	State() State
}

// LanguageInitMessage returns the preference message sent to the backend
// once a stream is live, asking for answers in the configured language.
func LanguageInitMessage(language string) string {
	switch language {
	case "en":
		return "Please answer in English"
	case "es":
		return "Por favor responde en español"
	default:
		return "日本語で答えてください"
	}
}
