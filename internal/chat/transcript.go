// Package chat keeps the in-memory analysis transcript and turns it into
// summarization requests against the backend.
package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tea-analyzer/client/internal/backend"
	"github.com/tea-analyzer/client/internal/model"
)

// DefaultTranscriptCapacity bounds how many messages a transcript retains.
const DefaultTranscriptCapacity = 200

// Transcript is the ephemeral message log of one analysis session.
// Nothing is persisted; the transcript only leaves the process through
// Summarize.
type Transcript struct {
	ring *messageRing
}

// NewTranscript creates a transcript. capacity <= 0 selects the default.
func NewTranscript(capacity int) *Transcript {
	if capacity <= 0 {
		capacity = DefaultTranscriptCapacity
	}
	return &Transcript{ring: newMessageRing(capacity)}
}

// Append records a message and returns it with its assigned id.
func (t *Transcript) Append(role model.ChatRole, content string) model.ChatMessage {
	msg := model.ChatMessage{
		ID:        uuid.New().String(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
	t.ring.append(msg)
	return msg
}

// AppendPhoto records a message that references a captured photo.
func (t *Transcript) AppendPhoto(role model.ChatRole, content, photoURL, photoID string) model.ChatMessage {
	msg := model.ChatMessage{
		ID:        uuid.New().String(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
		PhotoURL:  photoURL,
		PhotoID:   photoID,
	}
	t.ring.append(msg)
	return msg
}

// Messages returns a copy of the retained messages, oldest first.
func (t *Transcript) Messages() []model.ChatMessage {
	return t.ring.all()
}

// Len returns the number of retained messages.
func (t *Transcript) Len() int {
	return t.ring.length()
}

// Clear drops the transcript.
func (t *Transcript) Clear() {
	t.ring.clear()
}

// BuildSummaryPrompt renders the transcript as the summarization prompt
// carried in the metadata hint.
func BuildSummaryPrompt(messages []model.ChatMessage) string {
	var b strings.Builder
	b.WriteString("Summarize the following tea-tool analysis conversation. ")
	b.WriteString("Describe the analyzed tools, the key findings, and any advice given.\n\n")
	for _, msg := range messages {
		fmt.Fprintf(&b, "[%s] %s\n", msg.Role, msg.Content)
		if msg.PhotoURL != "" {
			fmt.Fprintf(&b, "[%s] (photo: %s)\n", msg.Role, msg.PhotoURL)
		}
	}
	return b.String()
}

// Summarize sends the transcript to the backend's metadata endpoint. The
// endpoint doubles as the summarizer: the full prompt rides in the hint.
func (t *Transcript) Summarize(ctx context.Context, api *backend.Client, sessionID string) (model.MetadataResponse, error) {
	messages := t.Messages()
	if len(messages) == 0 {
		return model.MetadataResponse{}, fmt.Errorf("transcript is empty")
	}
	return api.GenerateMetadata(ctx, sessionID, BuildSummaryPrompt(messages))
}
