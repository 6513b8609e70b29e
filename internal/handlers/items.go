// items.go handles item and upload browsing endpoints for the dashboard.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/briahnloo/content-generator-stitching/internal/models"
)

// ListItems returns items, optionally filtered by lifecycle status.
// GET /api/v1/items?status=classified&limit=50
func (h *Handler) ListItems(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))

	var items []models.Item
	var err error

	if status := c.Query("status"); status != "" {
		items, err = h.DB.GetItemsByStatus(c.Request.Context(), models.ItemStatus(status), limit)
	} else {
		items, err = h.DB.ListRecentItems(c.Request.Context(), limit)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "database_error",
			Message: "Failed to list items",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	if items == nil {
		items = []models.Item{}
	}

	c.JSON(http.StatusOK, items)
}

// GetItem retrieves a single item by ID.
// GET /api/v1/items/:id
func (h *Handler) GetItem(c *gin.Context) {
	item, err := h.DB.GetItem(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:   "not_found",
			Message: "Item not found",
			Code:    http.StatusNotFound,
		})
		return
	}

	c.JSON(http.StatusOK, item)
}

// ListUploads returns upload jobs, optionally filtered by status.
// GET /api/v1/uploads?status=failed&limit=50
func (h *Handler) ListUploads(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))

	var uploads []models.Upload
	var err error

	if status := c.Query("status"); status != "" {
		uploads, err = h.DB.GetUploadsByStatus(c.Request.Context(), models.UploadStatus(status), limit)
	} else {
		uploads, err = h.DB.ListUploads(c.Request.Context(), limit)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "database_error",
			Message: "Failed to list uploads",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	if uploads == nil {
		uploads = []models.Upload{}
	}

	c.JSON(http.StatusOK, uploads)
}

// ListCompilationUploads returns every upload for one compilation.
// GET /api/v1/compilations/:id/uploads
func (h *Handler) ListCompilationUploads(c *gin.Context) {
	uploads, err := h.DB.GetUploadsForCompilation(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "database_error",
			Message: "Failed to list uploads",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	if uploads == nil {
		uploads = []models.Upload{}
	}

	c.JSON(http.StatusOK, uploads)
}
