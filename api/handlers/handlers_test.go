package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tea-analyzer/client/internal/hub"
	"github.com/tea-analyzer/client/internal/model"
)

func newTestRouter(registry *hub.Registry, cfg ConnectionHandlerConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewConnectionHandler(registry, cfg).RegisterRoutes(router)
	NewStreamHandler(registry).RegisterRoutes(router)
	NewMetadataHandler().RegisterRoutes(router)
	return router
}

func postJSON(router *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode error body %q: %v", w.Body.String(), err)
	}
	return resp
}

func TestConnectionHandler_Create(t *testing.T) {
	t.Run("creates a connection", func(t *testing.T) {
		registry := hub.NewRegistry()
		router := newTestRouter(registry, ConnectionHandlerConfig{})

		w := postJSON(router, "/connections/analyze", model.CreateConnectionRequest{UserID: "u1"})
		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
		}

		var conn model.Connection
		json.Unmarshal(w.Body.Bytes(), &conn)
		if conn.ConnectionID == "" || conn.SessionID == "" {
			t.Errorf("Expected issued ids, got %+v", conn)
		}
		if registry.Get(conn.ConnectionID) == nil {
			t.Error("Connection not registered")
		}
	})

	t.Run("binds to a given session id", func(t *testing.T) {
		router := newTestRouter(hub.NewRegistry(), ConnectionHandlerConfig{})

		w := postJSON(router, "/connections/analyze", model.CreateConnectionRequest{UserID: "u1", SessionID: "keep-me"})
		var conn model.Connection
		json.Unmarshal(w.Body.Bytes(), &conn)
		if conn.SessionID != "keep-me" {
			t.Errorf("Expected session keep-me, got %s", conn.SessionID)
		}
	})

	t.Run("unknown agent", func(t *testing.T) {
		router := newTestRouter(hub.NewRegistry(), ConnectionHandlerConfig{})

		w := postJSON(router, "/connections/translate", model.CreateConnectionRequest{UserID: "u1"})
		if w.Code != http.StatusNotFound {
			t.Fatalf("Expected 404, got %d", w.Code)
		}
		if resp := decodeError(t, w); resp.Error.Code != "UNKNOWN_AGENT" {
			t.Errorf("Expected UNKNOWN_AGENT, got %s", resp.Error.Code)
		}
	})

	t.Run("invalid body", func(t *testing.T) {
		router := newTestRouter(hub.NewRegistry(), ConnectionHandlerConfig{})

		req := httptest.NewRequest(http.MethodPost, "/connections/analyze", strings.NewReader("{not json"))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("Expected 400, got %d", w.Code)
		}
		if resp := decodeError(t, w); resp.Error.Code != "VALIDATION_ERROR" {
			t.Errorf("Expected VALIDATION_ERROR, got %s", resp.Error.Code)
		}
	})

	t.Run("session cap returns RESOURCE_EXHAUSTED", func(t *testing.T) {
		router := newTestRouter(hub.NewRegistry(), ConnectionHandlerConfig{MaxSessionsPerUser: 2})

		for i := 0; i < 2; i++ {
			if w := postJSON(router, "/connections/analyze", model.CreateConnectionRequest{UserID: "u1"}); w.Code != http.StatusOK {
				t.Fatalf("Creation %d failed: %d", i, w.Code)
			}
		}

		w := postJSON(router, "/connections/analyze", model.CreateConnectionRequest{UserID: "u1"})
		if w.Code != http.StatusServiceUnavailable {
			t.Fatalf("Expected 503, got %d", w.Code)
		}
		if resp := decodeError(t, w); resp.Error.Code != "RESOURCE_EXHAUSTED" {
			t.Errorf("Expected RESOURCE_EXHAUSTED, got %s", resp.Error.Code)
		}

		// Other users are unaffected.
		if w := postJSON(router, "/connections/analyze", model.CreateConnectionRequest{UserID: "u2"}); w.Code != http.StatusOK {
			t.Errorf("Expected other user allowed, got %d", w.Code)
		}
	})

	t.Run("rate cap returns RATE_LIMITED", func(t *testing.T) {
		router := newTestRouter(hub.NewRegistry(), ConnectionHandlerConfig{
			RateWindow: time.Minute,
			RateMax:    2,
		})

		for i := 0; i < 2; i++ {
			if w := postJSON(router, "/connections/analyze", model.CreateConnectionRequest{UserID: "u1"}); w.Code != http.StatusOK {
				t.Fatalf("Creation %d failed: %d", i, w.Code)
			}
		}

		w := postJSON(router, "/connections/analyze", model.CreateConnectionRequest{UserID: "u1"})
		if w.Code != http.StatusTooManyRequests {
			t.Fatalf("Expected 429, got %d", w.Code)
		}
		if resp := decodeError(t, w); resp.Error.Code != "RATE_LIMITED" {
			t.Errorf("Expected RATE_LIMITED, got %s", resp.Error.Code)
		}
	})
}

func TestStreamHandler_Post(t *testing.T) {
	registry := hub.NewRegistry()
	router := newTestRouter(registry, ConnectionHandlerConfig{})
	conn := registry.Create("analyze", "u1", "")
	sub := conn.Subscribe()

	t.Run("text post publishes a reply", func(t *testing.T) {
		w := postJSON(router, "/sse/analyze/"+conn.ID+"/text", map[string]string{"data": "hello", "language": "ja"})
		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
		}

		select {
		case msg := <-sub:
			if !strings.Contains(msg, "hello") {
				t.Errorf("Reply does not echo the input: %q", msg)
			}
		case <-time.After(time.Second):
			t.Fatal("No reply published")
		}
	})

	t.Run("video post acknowledges the frame", func(t *testing.T) {
		w := postJSON(router, "/sse/analyze/"+conn.ID+"/video", map[string]string{"data": "AAAA"})
		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", w.Code)
		}
		select {
		case msg := <-sub:
			if !strings.Contains(msg, "frame received") {
				t.Errorf("Unexpected video reply %q", msg)
			}
		case <-time.After(time.Second):
			t.Fatal("No reply published")
		}
	})

	t.Run("unknown connection", func(t *testing.T) {
		w := postJSON(router, "/sse/analyze/missing/text", map[string]string{"data": "x"})
		if w.Code != http.StatusNotFound {
			t.Fatalf("Expected 404, got %d", w.Code)
		}
		if resp := decodeError(t, w); resp.Error.Code != "UNKNOWN_CONNECTION" {
			t.Errorf("Expected UNKNOWN_CONNECTION, got %s", resp.Error.Code)
		}
	})

	t.Run("agent mismatch", func(t *testing.T) {
		w := postJSON(router, "/sse/summary/"+conn.ID+"/text", map[string]string{"data": "x"})
		if w.Code != http.StatusBadRequest {
			t.Fatalf("Expected 400, got %d", w.Code)
		}
		if resp := decodeError(t, w); resp.Error.Code != "AGENT_MISMATCH" {
			t.Errorf("Expected AGENT_MISMATCH, got %s", resp.Error.Code)
		}
	})
}

func TestMetadataHandler_Generate(t *testing.T) {
	router := newTestRouter(hub.NewRegistry(), ConnectionHandlerConfig{})

	t.Run("with a hint", func(t *testing.T) {
		w := postJSON(router, "/sessions/s1/metadata", model.MetadataRequest{Hint: "summarize the chat"})
		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", w.Code)
		}

		var resp model.MetadataResponse
		json.Unmarshal(w.Body.Bytes(), &resp)
		if resp.Metadata["session_id"] != "s1" {
			t.Errorf("Unexpected session id %v", resp.Metadata["session_id"])
		}
		summary, _ := resp.Metadata["summary"].(string)
		if !strings.Contains(summary, "s1") {
			t.Errorf("Summary does not mention the session: %q", summary)
		}
	})

	t.Run("without a hint", func(t *testing.T) {
		w := postJSON(router, "/sessions/s2/metadata", model.MetadataRequest{})
		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", w.Code)
		}
		var resp model.MetadataResponse
		json.Unmarshal(w.Body.Bytes(), &resp)
		summary, _ := resp.Metadata["summary"].(string)
		if !strings.Contains(summary, "No activity") {
			t.Errorf("Unexpected summary %q", summary)
		}
	})
}
