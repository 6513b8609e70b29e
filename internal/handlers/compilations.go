// compilations.go handles the review surface: the operator lists rendered
// compilations, watches them, and approves or rejects. Approval is what
// clears a compilation for upload routing.
package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/briahnloo/content-generator-stitching/internal/models"
)

// ListCompilations returns all compilations, newest first.
// GET /api/v1/compilations?status=review
func (h *Handler) ListCompilations(c *gin.Context) {
	var comps []models.Compilation
	var err error

	if status := c.Query("status"); status != "" {
		comps, err = h.DB.GetCompilationsByStatus(c.Request.Context(), models.CompilationStatus(status), 0)
	} else {
		comps, err = h.DB.ListCompilations(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "database_error",
			Message: "Failed to list compilations",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	// Ensure we return an empty array, not null
	if comps == nil {
		comps = []models.Compilation{}
	}

	c.JSON(http.StatusOK, comps)
}

// GetCompilation retrieves a single compilation with its member items.
// GET /api/v1/compilations/:id
func (h *Handler) GetCompilation(c *gin.Context) {
	id := c.Param("id")

	comp, err := h.DB.GetCompilation(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:   "not_found",
			Message: "Compilation not found",
			Code:    http.StatusNotFound,
		})
		return
	}

	items, err := h.DB.GetItemsForCompilation(c.Request.Context(), id)
	if err != nil {
		items = nil
	}
	if items == nil {
		items = []models.Item{}
	}

	c.JSON(http.StatusOK, gin.H{
		"compilation": comp,
		"items":       items,
	})
}

// ApproveCompilation promotes a compilation from REVIEW to APPROVED.
// POST /api/v1/compilations/:id/approve
func (h *Handler) ApproveCompilation(c *gin.Context) {
	h.transitionCompilation(c, models.CompilationReview, models.CompilationApproved, "approve")
}

// RejectCompilation marks a compilation REJECTED. Allowed from REVIEW
// (failed review) and from APPROVED (revoked approval, as long as no
// upload has gone out — uploaded compilations are immutable).
// POST /api/v1/compilations/:id/reject
func (h *Handler) RejectCompilation(c *gin.Context) {
	id := c.Param("id")

	comp, err := h.DB.GetCompilation(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:   "not_found",
			Message: "Compilation not found",
			Code:    http.StatusNotFound,
		})
		return
	}

	if comp.Status != models.CompilationReview && comp.Status != models.CompilationApproved {
		c.JSON(http.StatusConflict, models.ErrorResponse{
			Error:   "invalid_transition",
			Message: "Cannot reject a compilation with status " + string(comp.Status),
			Code:    http.StatusConflict,
		})
		return
	}

	comp.Status = models.CompilationRejected
	comp.AutoApproved = false
	if err := h.DB.UpdateCompilation(c.Request.Context(), comp); err != nil {
		log.Printf("❌ Failed to reject compilation %s: %v", id, err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "database_error",
			Message: "Failed to update compilation",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	c.JSON(http.StatusOK, comp)
}

// UngroupCompilation dissolves a compilation and returns its members to
// the CLASSIFIED pool. Only PENDING and REJECTED compilations qualify.
// POST /api/v1/compilations/:id/ungroup
func (h *Handler) UngroupCompilation(c *gin.Context) {
	id := c.Param("id")

	ok, err := h.Grouper.Ungroup(c.Request.Context(), id)
	if err != nil {
		log.Printf("❌ Failed to ungroup compilation %s: %v", id, err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "database_error",
			Message: "Failed to ungroup compilation",
			Code:    http.StatusInternalServerError,
		})
		return
	}
	if !ok {
		c.JSON(http.StatusConflict, models.ErrorResponse{
			Error:   "invalid_transition",
			Message: "Compilation not found or not in an ungroupable state",
			Code:    http.StatusConflict,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Compilation ungrouped"})
}

// RequeueRender sends a compilation back to PENDING so the next render run
// picks it up again. Useful after fixing whatever made the render fail, or
// to re-render a rejected cut with different clips still attached.
// POST /api/v1/compilations/:id/render
func (h *Handler) RequeueRender(c *gin.Context) {
	id := c.Param("id")

	comp, err := h.DB.GetCompilation(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:   "not_found",
			Message: "Compilation not found",
			Code:    http.StatusNotFound,
		})
		return
	}

	switch comp.Status {
	case models.CompilationPending, models.CompilationReview, models.CompilationRejected:
		// Re-renderable
	default:
		c.JSON(http.StatusConflict, models.ErrorResponse{
			Error:   "invalid_transition",
			Message: "Cannot re-render a compilation with status " + string(comp.Status),
			Code:    http.StatusConflict,
		})
		return
	}

	comp.Status = models.CompilationPending
	comp.OutputPath = ""
	comp.Error = ""
	if err := h.DB.UpdateCompilation(c.Request.Context(), comp); err != nil {
		log.Printf("❌ Failed to re-queue compilation %s: %v", id, err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "database_error",
			Message: "Failed to update compilation",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	c.JSON(http.StatusOK, comp)
}

// transitionCompilation performs a guarded single-step status change.
func (h *Handler) transitionCompilation(c *gin.Context, from, to models.CompilationStatus, verb string) {
	id := c.Param("id")

	comp, err := h.DB.GetCompilation(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:   "not_found",
			Message: "Compilation not found",
			Code:    http.StatusNotFound,
		})
		return
	}

	if comp.Status != from {
		c.JSON(http.StatusConflict, models.ErrorResponse{
			Error:   "invalid_transition",
			Message: "Cannot " + verb + " a compilation with status " + string(comp.Status),
			Code:    http.StatusConflict,
		})
		return
	}

	comp.Status = to
	if err := h.DB.UpdateCompilation(c.Request.Context(), comp); err != nil {
		log.Printf("❌ Failed to %s compilation %s: %v", verb, id, err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "database_error",
			Message: "Failed to update compilation",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	c.JSON(http.StatusOK, comp)
}
