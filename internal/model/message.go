package model

import "time"

// ChatRole identifies the author of a chat message.
type ChatRole string

const (
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
	RoleSystem    ChatRole = "system"
)

// ChatMessage is one entry of the in-memory analysis transcript.
// Messages are ephemeral; they leave the process only when the
// transcript is summarized through the backend.
type ChatMessage struct {
	ID        string    `json:"id"`
	Role      ChatRole  `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	PhotoURL  string    `json:"photoUrl,omitempty"`
	PhotoID   string    `json:"photoId,omitempty"`
}
