package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Harsh-BH/threatrelay/internal/domain"
	"github.com/Harsh-BH/threatrelay/internal/usecase"
)

// CallbackHandler receives results pushed back by workers and answers status checks.
type CallbackHandler struct {
	callbackUC *usecase.ReceiveCallbackUsecase
	statusUC   *usecase.CheckStatusUsecase
	logger     *zap.Logger
}

// NewCallbackHandler creates a new CallbackHandler.
func NewCallbackHandler(callbackUC *usecase.ReceiveCallbackUsecase, statusUC *usecase.CheckStatusUsecase, logger *zap.Logger) *CallbackHandler {
	return &CallbackHandler{
		callbackUC: callbackUC,
		statusUC:   statusUC,
		logger:     logger,
	}
}

// Callback handles POST /api/v1/callback
func (h *CallbackHandler) Callback(c *gin.Context) {
	var req domain.CallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bodyError(c, fmt.Errorf("%w: %w", domain.ErrMalformedBody, err))
		return
	}

	if _, err := h.callbackUC.Execute(c.Request.Context(), &req); err != nil {
		switch {
		case errors.Is(err, domain.ErrMissingJobID):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing jobId"})
		case errors.Is(err, domain.ErrValidation):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			h.logger.Error("Callback failed", zap.Error(err), zap.String("job_id", req.JobID))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Result stored successfully",
	})
}

// CheckStatus handles GET /api/v1/check-status?jobId=
func (h *CallbackHandler) CheckStatus(c *gin.Context) {
	resp, err := h.statusUC.Execute(c.Request.Context(), c.Query("jobId"))
	if err != nil {
		if errors.Is(err, domain.ErrMissingJobID) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing jobId"})
			return
		}
		h.logger.Error("Status check failed", zap.Error(err), zap.String("job_id", c.Query("jobId")))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if resp.Status == domain.JobStatusProcessing {
		c.JSON(http.StatusAccepted, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}
