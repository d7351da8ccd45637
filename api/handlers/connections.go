// Package handlers provides the HTTP handlers of the stub analysis
// backend used for local development and integration tests.
package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tea-analyzer/client/internal/hub"
	"github.com/tea-analyzer/client/internal/model"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error details. The code is the structured signal
// clients classify on.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// sendError sends an error response with the appropriate status code.
func sendError(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// knownAgents are the agent keys this stub serves.
var knownAgents = map[string]bool{
	model.AgentAnalyze: true,
	model.AgentSummary: true,
}

// ConnectionHandler handles connection creation.
type ConnectionHandler struct {
	registry           *hub.Registry
	maxSessionsPerUser int

	// Fixed-window creation cap, so clients exercise the 429 path.
	rateWindow  time.Duration
	rateMax     int
	mu          sync.Mutex
	windowStart time.Time
	windowCount int
}

// ConnectionHandlerConfig configures the handler. Zero values disable the
// rate cap and default the session cap to 10.
type ConnectionHandlerConfig struct {
	MaxSessionsPerUser int
	RateWindow         time.Duration
	RateMax            int
}

// NewConnectionHandler creates a ConnectionHandler.
func NewConnectionHandler(registry *hub.Registry, cfg ConnectionHandlerConfig) *ConnectionHandler {
	if cfg.MaxSessionsPerUser == 0 {
		cfg.MaxSessionsPerUser = 10
	}
	return &ConnectionHandler{
		registry:           registry,
		maxSessionsPerUser: cfg.MaxSessionsPerUser,
		rateWindow:         cfg.RateWindow,
		rateMax:            cfg.RateMax,
	}
}

// RegisterRoutes registers the connection routes.
func (h *ConnectionHandler) RegisterRoutes(r gin.IRouter) {
	r.POST("/connections/:agent", h.Create)
}

// Create handles POST /connections/{agent}.
func (h *ConnectionHandler) Create(c *gin.Context) {
	agent := c.Param("agent")
	if !knownAgents[agent] {
		sendError(c, http.StatusNotFound, "UNKNOWN_AGENT", "unknown agent: "+agent)
		return
	}

	var req model.CreateConnectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body: "+err.Error())
		return
	}

	if h.rateExceeded() {
		sendError(c, http.StatusTooManyRequests, "RATE_LIMITED", "Too many connection requests")
		return
	}

	if h.registry.CountByUser(req.UserID) >= h.maxSessionsPerUser {
		sendError(c, http.StatusServiceUnavailable, "RESOURCE_EXHAUSTED", "Maximum concurrent sessions reached for user")
		return
	}

	conn := h.registry.Create(agent, req.UserID, req.SessionID)
	c.JSON(http.StatusOK, model.Connection{
		ConnectionID: conn.ID,
		SessionID:    conn.SessionID,
	})
}

// rateExceeded counts this request against the fixed window.
func (h *ConnectionHandler) rateExceeded() bool {
	if h.rateMax <= 0 {
		return false
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	now := time.Now()
	if now.Sub(h.windowStart) > h.rateWindow {
		h.windowStart = now
		h.windowCount = 0
	}
	h.windowCount++
	return h.windowCount > h.rateMax
}
