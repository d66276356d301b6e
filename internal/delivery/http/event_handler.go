package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Harsh-BH/threatrelay/internal/usecase"
)

// EventHandler serves the local event feed.
type EventHandler struct {
	recordUC *usecase.RecordEventUsecase
	listUC   *usecase.ListEventsUsecase
	logger   *zap.Logger
}

// NewEventHandler creates a new EventHandler.
func NewEventHandler(recordUC *usecase.RecordEventUsecase, listUC *usecase.ListEventsUsecase, logger *zap.Logger) *EventHandler {
	return &EventHandler{
		recordUC: recordUC,
		listUC:   listUC,
		logger:   logger,
	}
}

// List handles GET /api/v1/events
func (h *EventHandler) List(c *gin.Context) {
	limit := 0
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		limit = n
	}

	events, err := h.listUC.Execute(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("List events failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load events"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"events":  events,
		"count":   len(events),
	})
}

// Record handles POST /api/v1/events
func (h *EventHandler) Record(c *gin.Context) {
	body, err := readJSONObject(c)
	if err != nil {
		bodyError(c, err)
		return
	}

	event, err := h.recordUC.Execute(c.Request.Context(), body)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store event"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Phishing event stored",
		"eventId": event.ID,
	})
}
