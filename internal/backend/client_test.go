package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tea-analyzer/client/internal/model"
)

func TestClient_CreateConnection(t *testing.T) {
	t.Run("success decodes the pair", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				t.Errorf("Expected POST, got %s", r.Method)
			}
			if r.URL.Path != "/connections/analyze" {
				t.Errorf("Unexpected path %s", r.URL.Path)
			}
			var req model.CreateConnectionRequest
			json.NewDecoder(r.Body).Decode(&req)
			if req.UserID != "u1" {
				t.Errorf("Expected user u1, got %s", req.UserID)
			}
			json.NewEncoder(w).Encode(model.Connection{ConnectionID: "c1", SessionID: "s1"})
		}))
		defer server.Close()

		client := New(server.URL)
		conn, err := client.CreateConnection(context.Background(), "analyze", model.CreateConnectionRequest{UserID: "u1"})
		if err != nil {
			t.Fatalf("CreateConnection failed: %v", err)
		}
		if conn.ConnectionID != "c1" || conn.SessionID != "s1" {
			t.Errorf("Unexpected connection %+v", conn)
		}
	})

	t.Run("validates inputs before any request", func(t *testing.T) {
		client := New("http://unreachable.invalid")
		ctx := context.Background()

		if _, err := client.CreateConnection(ctx, "", model.CreateConnectionRequest{UserID: "u1"}); !errors.Is(err, model.ErrAgentRequired) {
			t.Errorf("Expected ErrAgentRequired, got %v", err)
		}
		if _, err := client.CreateConnection(ctx, "analyze", model.CreateConnectionRequest{}); !errors.Is(err, model.ErrUserRequired) {
			t.Errorf("Expected ErrUserRequired, got %v", err)
		}
	})
}

func TestClient_ErrorClassification(t *testing.T) {
	serve := func(status int, body string) *httptest.Server {
		return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			w.Write([]byte(body))
		}))
	}

	tests := []struct {
		name     string
		status   int
		body     string
		sentinel error
		code     string
	}{
		{
			name:     "structured resource exhausted",
			status:   http.StatusServiceUnavailable,
			body:     `{"error":{"code":"RESOURCE_EXHAUSTED","message":"session limit reached"}}`,
			sentinel: model.ErrResourceExhausted,
			code:     CodeResourceExhausted,
		},
		{
			name:     "structured rate limited",
			status:   http.StatusTooManyRequests,
			body:     `{"error":{"code":"RATE_LIMITED","message":"slow down"}}`,
			sentinel: model.ErrRateLimited,
			code:     CodeRateLimited,
		},
		{
			name:     "status 429 without a code still classifies",
			status:   http.StatusTooManyRequests,
			body:     `Too Many Requests`,
			sentinel: model.ErrRateLimited,
		},
		{
			name:   "plain 500 carries no sentinel",
			status: http.StatusInternalServerError,
			body:   `{"detail":"boom"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := serve(tt.status, tt.body)
			defer server.Close()

			client := New(server.URL)
			_, err := client.CreateConnection(context.Background(), "analyze", model.CreateConnectionRequest{UserID: "u1"})
			if err == nil {
				t.Fatal("Expected an error")
			}

			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("Expected APIError, got %T", err)
			}
			if apiErr.Status != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, apiErr.Status)
			}
			if apiErr.Code != tt.code {
				t.Errorf("Expected code %q, got %q", tt.code, apiErr.Code)
			}

			if tt.sentinel != nil {
				if !errors.Is(err, tt.sentinel) {
					t.Errorf("Expected errors.Is(%v), got %v", tt.sentinel, err)
				}
			} else {
				if errors.Is(err, model.ErrRateLimited) || errors.Is(err, model.ErrResourceExhausted) {
					t.Errorf("Expected no sentinel classification, got %v", err)
				}
			}
		})
	}

	t.Run("message text never drives classification", func(t *testing.T) {
		// Wording that used to be substring matched must not classify
		// without the structured code or status.
		server := serve(http.StatusInternalServerError, `{"detail":"Could not create another session, limit reached"}`)
		defer server.Close()

		client := New(server.URL)
		_, err := client.CreateConnection(context.Background(), "analyze", model.CreateConnectionRequest{UserID: "u1"})
		if errors.Is(err, model.ErrResourceExhausted) {
			t.Errorf("Message text classified as resource exhaustion: %v", err)
		}
	})
}

func TestClient_GenerateMetadata(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sessions/s1/metadata" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		var req model.MetadataRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Hint != "summarize this" {
			t.Errorf("Expected hint, got %q", req.Hint)
		}
		json.NewEncoder(w).Encode(model.MetadataResponse{
			Metadata: map[string]interface{}{"summary": "a short summary"},
		})
	}))
	defer server.Close()

	client := New(server.URL)
	resp, err := client.GenerateMetadata(context.Background(), "s1", "summarize this")
	if err != nil {
		t.Fatalf("GenerateMetadata failed: %v", err)
	}
	if resp.Metadata["summary"] != "a short summary" {
		t.Errorf("Unexpected metadata %+v", resp.Metadata)
	}
}

func TestClient_SendStreamMessage(t *testing.T) {
	var gotPath string
	var gotBody map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotBody = nil
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := New(server.URL)
	if err := client.SendStreamMessage(context.Background(), "analyze", "c1", KindText, "hello", "ja"); err != nil {
		t.Fatalf("SendStreamMessage failed: %v", err)
	}
	if gotPath != "/sse/analyze/c1/text" {
		t.Errorf("Unexpected path %s", gotPath)
	}
	if gotBody["data"] != "hello" || gotBody["language"] != "ja" {
		t.Errorf("Unexpected body %v", gotBody)
	}

	// Language is omitted when unset.
	if err := client.SendStreamMessage(context.Background(), "analyze", "c1", KindVideo, "AAAA", ""); err != nil {
		t.Fatalf("SendStreamMessage failed: %v", err)
	}
	if gotPath != "/sse/analyze/c1/video" {
		t.Errorf("Unexpected path %s", gotPath)
	}
	if _, ok := gotBody["language"]; ok {
		t.Error("Expected language omitted")
	}
}

func TestClient_URLs(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"http://localhost:8080", "ws://localhost:8080/ws/analyze/c1"},
		{"https://tea.example.com", "wss://tea.example.com/ws/analyze/c1"},
		{"http://localhost:8080/", "ws://localhost:8080/ws/analyze/c1"},
	}
	for _, tt := range tests {
		client := New(tt.base)
		if got := client.WebSocketURL("analyze", "c1"); got != tt.want {
			t.Errorf("WebSocketURL(%s): expected %s, got %s", tt.base, tt.want, got)
		}
	}

	client := New("http://localhost:8080")
	if got := client.SSEStreamURL("analyze", "c1"); got != "http://localhost:8080/sse/analyze/c1" {
		t.Errorf("Unexpected SSE URL %s", got)
	}
}
