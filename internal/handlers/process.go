package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"slideflow/internal/repository"
)

type processRequest struct {
	SetID      string `json:"setId" binding:"required"`
	BatchStart int    `json:"batchStart"`
}

// ProcessBatch is the chain-trigger entry point: it runs one link
// synchronously and reports whether more slices remain. The continuation,
// if any, has already been enqueued by the controller before this returns.
func (h HandlerSet) ProcessBatch(c *gin.Context) {
	var req processRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.BatchStart < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "batchStart_negative"})
		return
	}

	result, err := h.controller.RunLink(c.Request.Context(), req.SetID, req.BatchStart)
	if err != nil {
		if errors.Is(err, repository.ErrSetNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "set_not_found"})
			return
		}
		// The controller already contained the failure on the set.
		c.JSON(http.StatusInternalServerError, gin.H{"error": "batch_failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"processed": result.Processed,
		"hasMore":   result.HasMore,
	})
}
