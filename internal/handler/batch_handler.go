package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/MincaAI/MVP-underwriting-sub000/internal/model"
	"github.com/MincaAI/MVP-underwriting-sub000/internal/repository"
	"github.com/MincaAI/MVP-underwriting-sub000/internal/service"
	"github.com/MincaAI/MVP-underwriting-sub000/pkg/log"
	"github.com/gin-gonic/gin"
)

// maxBatchQueries bounds one submission; larger fleets go in several runs.
const maxBatchQueries = 10000

// BatchHandler serves the batch codification API.
type BatchHandler struct {
	batchService service.BatchService
}

// NewBatchHandler creates a new BatchHandler instance.
func NewBatchHandler(batchService service.BatchService) *BatchHandler {
	return &BatchHandler{batchService: batchService}
}

// SubmitBatchRequest is the body of POST /batch.
type SubmitBatchRequest struct {
	Queries []model.VehicleQuery `json:"queries" binding:"required"`
}

// Submit starts a batch run over the submitted fleet and returns its ID.
func (h *BatchHandler) Submit(c *gin.Context) {
	var req SubmitBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if len(req.Queries) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "queries must not be empty"})
		return
	}
	if len(req.Queries) > maxBatchQueries {
		c.JSON(http.StatusBadRequest, gin.H{"error": "too many queries in one batch, limit is " + strconv.Itoa(maxBatchQueries)})
		return
	}

	run, err := h.batchService.Submit(c.Request.Context(), req.Queries)
	if err != nil {
		log.Error("Submit: failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"code":    http.StatusAccepted,
		"message": "batch run started",
		"data":    run,
	})
}

// GetRun returns the status and counters of one batch run.
func (h *BatchHandler) GetRun(c *gin.Context) {
	runID := c.Param("runId")
	run, err := h.batchService.GetRun(runID)
	if err != nil {
		if errors.Is(err, repository.ErrRunNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		log.Error("GetRun: failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load batch run"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "batch run loaded",
		"data":    run,
	})
}

// GetResults returns the per-query results of one batch run.
func (h *BatchHandler) GetResults(c *gin.Context) {
	runID := c.Param("runId")
	results, err := h.batchService.GetResults(runID)
	if err != nil {
		if errors.Is(err, repository.ErrRunNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		log.Error("GetResults: failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load batch results"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "batch results loaded",
		"data":    results,
	})
}

// Cancel requests cooperative cancellation of a running batch.
func (h *BatchHandler) Cancel(c *gin.Context) {
	runID := c.Param("runId")
	if err := h.batchService.Cancel(c.Request.Context(), runID); err != nil {
		if errors.Is(err, repository.ErrRunNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		log.Error("Cancel: failed", err)
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "batch cancellation requested",
		"data":    gin.H{"runId": runID},
	})
}

// ListRuns returns the most recent batch runs.
func (h *BatchHandler) ListRuns(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return
	}

	runs, err := h.batchService.ListRecent(limit)
	if err != nil {
		log.Error("ListRuns: failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list batch runs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "batch runs listed",
		"data":    runs,
	})
}
