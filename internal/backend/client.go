// Package backend is the HTTP client for the remote analysis service.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tea-analyzer/client/internal/model"
)

// Error codes the backend reports in structured error bodies.
const (
	CodeRateLimited       = "RATE_LIMITED"
	CodeResourceExhausted = "RESOURCE_EXHAUSTED"
)

// Message kinds accepted by the stream companion POST endpoints.
const (
	KindText  = "text"
	KindMode  = "mode"
	KindVideo = "video"
)

// APIError is a classified error response from the backend.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("backend error %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("backend error %d: %s", e.Status, e.Message)
}

// Unwrap maps the structured code (with an HTTP status fallback for rate
// limiting) onto the package sentinel errors so callers can use errors.Is.
func (e *APIError) Unwrap() error {
	switch {
	case e.Code == CodeResourceExhausted:
		return model.ErrResourceExhausted
	case e.Code == CodeRateLimited, e.Status == http.StatusTooManyRequests:
		return model.ErrRateLimited
	}
	return nil
}

// errorBody is the backend's error envelope.
type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Detail string `json:"detail"`
}

// Client talks to the analysis backend over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a Client for the given base URL, e.g. "http://localhost:8080".
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// BaseURL returns the configured backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// CreateConnection requests a new live connection for the agent.
// A session id may be passed to bind the connection to an existing session.
func (c *Client) CreateConnection(ctx context.Context, agent string, req model.CreateConnectionRequest) (model.Connection, error) {
	var conn model.Connection
	if agent == "" {
		return conn, model.ErrAgentRequired
	}
	if req.UserID == "" {
		return conn, model.ErrUserRequired
	}

	err := c.postJSON(ctx, "/connections/"+agent, req, &conn)
	if err != nil {
		return model.Connection{}, err
	}
	return conn, nil
}

// GenerateMetadata asks the backend to generate metadata for a session.
// The hint carries a free-form prompt; chat summarization rides on it.
func (c *Client) GenerateMetadata(ctx context.Context, sessionID, hint string) (model.MetadataResponse, error) {
	var resp model.MetadataResponse
	err := c.postJSON(ctx, "/sessions/"+sessionID+"/metadata", model.MetadataRequest{Hint: hint}, &resp)
	if err != nil {
		return model.MetadataResponse{}, err
	}
	return resp, nil
}

// SendStreamMessage posts one outbound message for an SSE-attached
// connection. kind selects the companion endpoint suffix.
func (c *Client) SendStreamMessage(ctx context.Context, agent, connectionID, kind, data, language string) error {
	body := map[string]string{"data": data}
	if language != "" {
		body["language"] = language
	}
	return c.postJSON(ctx, fmt.Sprintf("/sse/%s/%s/%s", agent, connectionID, kind), body, nil)
}

// SSEStreamURL returns the event stream URL for a connection.
func (c *Client) SSEStreamURL(agent, connectionID string) string {
	return fmt.Sprintf("%s/sse/%s/%s", c.baseURL, agent, connectionID)
}

// WebSocketURL returns the WebSocket URL for a connection.
func (c *Client) WebSocketURL(agent, connectionID string) string {
	base := c.baseURL
	if strings.HasPrefix(base, "https") {
		base = "wss" + strings.TrimPrefix(base, "https")
	} else if strings.HasPrefix(base, "http") {
		base = "ws" + strings.TrimPrefix(base, "http")
	}
	return fmt.Sprintf("%s/ws/%s/%s", base, agent, connectionID)
}

// postJSON sends a JSON POST and decodes the response into out when given.
func (c *Client) postJSON(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return classify(resp)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return nil
}

// classify reads a non-2xx response into an APIError. The structured code
// in the body is authoritative; the HTTP status is kept for fallback
// classification and diagnostics.
func classify(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	apiErr := &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(raw))}

	var body errorBody
	if err := json.Unmarshal(raw, &body); err == nil {
		if body.Error.Code != "" {
			apiErr.Code = body.Error.Code
			apiErr.Message = body.Error.Message
		} else if body.Detail != "" {
			apiErr.Message = body.Detail
		}
	}

	return apiErr
}
