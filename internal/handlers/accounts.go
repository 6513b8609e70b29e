// accounts.go handles upload account management endpoints.
package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/briahnloo/content-generator-stitching/internal/models"
)

// CreateAccount registers a new upload destination.
// POST /api/v1/accounts
//
// Request body:
//
//	{"platform": "youtube", "name": "Fails Channel", "strategy": "fails", "daily_limit": 3}
func (h *Handler) CreateAccount(c *gin.Context) {
	var req models.CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "platform and name are required",
			Code:    http.StatusBadRequest,
		})
		return
	}

	account, err := h.Accounts.CreateAccount(c.Request.Context(), req)
	if err != nil {
		log.Printf("❌ Failed to create account: %v", err)
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "create_failed",
			Message: err.Error(),
			Code:    http.StatusBadRequest,
		})
		return
	}

	c.JSON(http.StatusCreated, account)
}

// ListAccounts returns all upload accounts.
// GET /api/v1/accounts
func (h *Handler) ListAccounts(c *gin.Context) {
	accts, err := h.DB.ListAccounts(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "database_error",
			Message: "Failed to list accounts",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	if accts == nil {
		accts = []models.Account{}
	}

	c.JSON(http.StatusOK, accts)
}

// GetAccount retrieves a single account.
// GET /api/v1/accounts/:id
func (h *Handler) GetAccount(c *gin.Context) {
	account, err := h.DB.GetAccount(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:   "not_found",
			Message: "Account not found",
			Code:    http.StatusNotFound,
		})
		return
	}

	c.JSON(http.StatusOK, account)
}

// UpdateAccount applies a partial update to an account.
// PATCH /api/v1/accounts/:id
func (h *Handler) UpdateAccount(c *gin.Context) {
	var req models.UpdateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid update payload: " + err.Error(),
			Code:    http.StatusBadRequest,
		})
		return
	}

	account, err := h.Accounts.UpdateAccount(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:   "not_found",
			Message: "Account not found",
			Code:    http.StatusNotFound,
		})
		return
	}

	c.JSON(http.StatusOK, account)
}

// DeleteAccount removes an account and its routing rules.
// DELETE /api/v1/accounts/:id
func (h *Handler) DeleteAccount(c *gin.Context) {
	if err := h.DB.DeleteAccount(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:   "not_found",
			Message: "Account not found",
			Code:    http.StatusNotFound,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Account deleted"})
}

// SetAccountCredentials stores an encrypted credential blob for an account.
// The raw credentials are never written to a log or returned by any endpoint.
// PUT /api/v1/accounts/:id/credentials
func (h *Handler) SetAccountCredentials(c *gin.Context) {
	var req models.SetCredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "credentials object is required",
			Code:    http.StatusBadRequest,
		})
		return
	}

	if err := h.Accounts.SetCredentials(c.Request.Context(), c.Param("id"), req.Credentials); err != nil {
		log.Printf("❌ Failed to store credentials for account %s: %v", c.Param("id"), err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "credentials_error",
			Message: "Failed to store credentials",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Credentials stored"})
}

// ActivateAccount re-enables a deactivated account.
// POST /api/v1/accounts/:id/activate
func (h *Handler) ActivateAccount(c *gin.Context) {
	h.setAccountActive(c, true)
}

// DeactivateAccount takes an account out of the routing pool.
// POST /api/v1/accounts/:id/deactivate
func (h *Handler) DeactivateAccount(c *gin.Context) {
	h.setAccountActive(c, false)
}

func (h *Handler) setAccountActive(c *gin.Context, active bool) {
	id := c.Param("id")

	var err error
	if active {
		err = h.Accounts.Activate(c.Request.Context(), id)
	} else {
		err = h.Accounts.Deactivate(c.Request.Context(), id)
	}
	if err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:   "not_found",
			Message: "Account not found",
			Code:    http.StatusNotFound,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"active": active})
}

// CreateRoutingRule adds a (category -> account) routing preference.
// POST /api/v1/accounts/:id/rules
func (h *Handler) CreateRoutingRule(c *gin.Context) {
	var req models.CreateRoutingRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "category is required",
			Code:    http.StatusBadRequest,
		})
		return
	}

	rule, err := h.Accounts.AddRoutingRule(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		log.Printf("❌ Failed to create routing rule: %v", err)
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "create_failed",
			Message: err.Error(),
			Code:    http.StatusBadRequest,
		})
		return
	}

	c.JSON(http.StatusCreated, rule)
}

// ListRoutingRules returns all routing rules.
// GET /api/v1/rules
func (h *Handler) ListRoutingRules(c *gin.Context) {
	rules, err := h.DB.ListRoutingRules(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "database_error",
			Message: "Failed to list routing rules",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	if rules == nil {
		rules = []models.RoutingRule{}
	}

	c.JSON(http.StatusOK, rules)
}

// DeleteRoutingRule removes one routing rule.
// DELETE /api/v1/rules/:id
func (h *Handler) DeleteRoutingRule(c *gin.Context) {
	if err := h.DB.DeleteRoutingRule(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:   "not_found",
			Message: "Routing rule not found",
			Code:    http.StatusNotFound,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Routing rule deleted"})
}
