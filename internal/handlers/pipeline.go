// pipeline.go exposes the pipeline stage triggers. An external scheduler
// (cron, GitHub Actions, whatever fires HTTP) hits these endpoints; the
// actual work runs in the background via the worker pool.
package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/briahnloo/content-generator-stitching/internal/models"
	"github.com/briahnloo/content-generator-stitching/internal/services/worker"
)

// submitJob queues one background job and writes the 202/503 response.
// Every stage trigger funnels through here so queue-full handling is uniform.
func (h *Handler) submitJob(c *gin.Context, jobType worker.JobType, payload interface{}) {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			c.JSON(http.StatusInternalServerError, models.ErrorResponse{
				Error:   "encode_error",
				Message: "Failed to encode job payload",
				Code:    http.StatusInternalServerError,
			})
			return
		}
		raw = b
	}

	job := worker.Job{
		ID:        uuid.NewString()[:12],
		Type:      jobType,
		Payload:   raw,
		CreatedAt: time.Now(),
	}

	if err := h.Worker.Submit(job); err != nil {
		log.Printf("⚠️  Failed to queue %s job: %v", jobType, err)
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{
			Error:   "queue_full",
			Message: "Job queue is full, try again later",
			Code:    http.StatusServiceUnavailable,
		})
		return
	}

	// Return 202 Accepted — the work is happening in the background.
	// The scheduler can poll GET /pipeline/stats to watch progress.
	c.JSON(http.StatusAccepted, gin.H{
		"job_id": job.ID,
		"type":   string(jobType),
	})
}

// TriggerDownload fetches media for DISCOVERED items.
// POST /api/v1/pipeline/download
func (h *Handler) TriggerDownload(c *gin.Context) {
	var req models.ClassifyRequest
	_ = c.ShouldBindJSON(&req) // Empty body is fine — zero limit means "all"
	h.submitJob(c, worker.JobDownload, worker.LimitPayload{Limit: req.Limit})
}

// TriggerClassify runs the acceptance-gate sweep over DOWNLOADED items.
// POST /api/v1/pipeline/classify
func (h *Handler) TriggerClassify(c *gin.Context) {
	var req models.ClassifyRequest
	_ = c.ShouldBindJSON(&req)
	h.submitJob(c, worker.JobClassify, worker.LimitPayload{Limit: req.Limit})
}

// TriggerGroup creates compilations from CLASSIFIED items.
// POST /api/v1/pipeline/group
func (h *Handler) TriggerGroup(c *gin.Context) {
	var req models.GroupRequest
	_ = c.ShouldBindJSON(&req)
	h.submitJob(c, worker.JobGroup, worker.GroupPayload{
		MaxCompilations:     req.MaxCompilations,
		ClipsPerCompilation: req.ClipsPer,
	})
}

// TriggerGroupMega creates mega-compilations from source compilations.
// POST /api/v1/pipeline/group/mega
func (h *Handler) TriggerGroupMega(c *gin.Context) {
	var req models.MegaGroupRequest
	_ = c.ShouldBindJSON(&req)
	h.submitJob(c, worker.JobGroupMega, worker.MegaPayload{
		CompilationType: req.CompilationType,
		NumSources:      req.NumSources,
		MaxCompilations: req.MaxCompilations,
	})
}

// TriggerRender renders PENDING compilations and promotes auto-approved ones.
// POST /api/v1/pipeline/render
func (h *Handler) TriggerRender(c *gin.Context) {
	var req models.ClassifyRequest
	_ = c.ShouldBindJSON(&req)
	h.submitJob(c, worker.JobRender, worker.LimitPayload{Limit: req.Limit})
}

// TriggerRoute queues uploads for APPROVED compilations.
// POST /api/v1/pipeline/route
func (h *Handler) TriggerRoute(c *gin.Context) {
	var req models.ClassifyRequest
	_ = c.ShouldBindJSON(&req)
	h.submitJob(c, worker.JobRoute, worker.LimitPayload{Limit: req.Limit})
}

// TriggerDispatch takes the next eligible upload and publishes it.
// POST /api/v1/pipeline/dispatch
func (h *Handler) TriggerDispatch(c *gin.Context) {
	h.submitJob(c, worker.JobDispatch, nil)
}

// TriggerRetryUploads re-queues failed uploads under the retry ceiling.
// POST /api/v1/pipeline/uploads/retry
func (h *Handler) TriggerRetryUploads(c *gin.Context) {
	h.submitJob(c, worker.JobRetryUploads, nil)
}

// ResetDailyCounts zeroes every account's daily upload counter.
// POST /api/v1/pipeline/accounts/reset-daily
//
// Meant to be hit once per day at midnight by the external scheduler.
// Runs synchronously — it's a single UPDATE. When an owner key is
// configured, only the owner may trigger it.
func (h *Handler) ResetDailyCounts(c *gin.Context) {
	if (h.OwnerAPIKeyID != "" || h.OwnerAPIKeyPrefix != "") && !h.isOwnerRequest(c) {
		c.JSON(http.StatusForbidden, models.ErrorResponse{
			Error:   "forbidden",
			Message: "Only the owner key may reset daily upload counts",
			Code:    http.StatusForbidden,
		})
		return
	}

	n, err := h.Accounts.ResetDailyLimits(c.Request.Context())
	if err != nil {
		log.Printf("❌ Failed to reset daily upload counts: %v", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "database_error",
			Message: "Failed to reset daily upload counts",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"accounts_reset": n})
}

// PipelineStats returns item/compilation/upload counts by status.
// GET /api/v1/pipeline/stats
func (h *Handler) PipelineStats(c *gin.Context) {
	stats, err := h.DB.GetPipelineStats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "database_error",
			Message: "Failed to compute pipeline stats",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	c.JSON(http.StatusOK, stats)
}
