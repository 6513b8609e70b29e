package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/briahnloo/content-generator-stitching/internal/middleware"
)

// isOwnerRequest returns true when the authenticated API key is configured
// as the owner override (required for destructive pipeline operations).
func (h *Handler) isOwnerRequest(c *gin.Context) bool {
	apiKey := middleware.GetAPIKey(c)
	return middleware.IsOwnerAPIKey(apiKey, h.OwnerAPIKeyID, h.OwnerAPIKeyPrefix)
}
