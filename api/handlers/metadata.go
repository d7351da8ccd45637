package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tea-analyzer/client/internal/model"
)

// MetadataHandler serves session metadata generation. The endpoint
// doubles as the summarizer: clients pass a full prompt in the hint.
type MetadataHandler struct{}

// NewMetadataHandler creates a MetadataHandler.
func NewMetadataHandler() *MetadataHandler {
	return &MetadataHandler{}
}

// RegisterRoutes registers the metadata route.
func (h *MetadataHandler) RegisterRoutes(r gin.IRouter) {
	r.POST("/sessions/:sessionId/metadata", h.Generate)
}

// Generate handles POST /sessions/{sessionId}/metadata.
func (h *MetadataHandler) Generate(c *gin.Context) {
	sessionID := c.Param("sessionId")

	var req model.MetadataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body: "+err.Error())
		return
	}

	summary := "No activity recorded for this session."
	if req.Hint != "" {
		summary = fmt.Sprintf("Stub summary for session %s (prompt length %d characters).", sessionID, len(req.Hint))
	}

	c.JSON(http.StatusOK, model.MetadataResponse{
		Metadata: map[string]interface{}{
			"session_id":   sessionID,
			"summary":      summary,
			"generated_at": time.Now().Format(time.RFC3339),
		},
	})
}
