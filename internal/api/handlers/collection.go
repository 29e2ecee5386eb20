package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pokedan/cardwatch/backend/internal/collection"
	"github.com/pokedan/cardwatch/backend/internal/models"
)

// CollectionHandler serves the latest collection snapshot and its history.
type CollectionHandler struct {
	service *collection.Service
}

// NewCollectionHandler creates a new collection handler.
func NewCollectionHandler(service *collection.Service) *CollectionHandler {
	return &CollectionHandler{service: service}
}

// GetCollection returns the latest snapshot. Before the first successful run
// there is nothing to show; that is distinguishable from an empty collection.
func (h *CollectionHandler) GetCollection(c *gin.Context) {
	snapshot := h.service.Latest()
	if snapshot == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no snapshot available yet, trigger a refresh"})
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

// RefreshCollection runs the pipeline synchronously and returns the new
// snapshot. Fatal pipeline conditions surface here as a gateway error.
func (h *CollectionHandler) RefreshCollection(c *gin.Context) {
	snapshot, err := h.service.Refresh(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

// GetHistory returns persisted snapshot totals for a period.
func (h *CollectionHandler) GetHistory(c *gin.Context) {
	period := c.DefaultQuery("period", "month")

	records, err := h.service.History(period)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load snapshot history"})
		return
	}
	if records == nil {
		records = []models.SnapshotRecord{}
	}

	c.JSON(http.StatusOK, models.SnapshotHistoryResponse{
		Snapshots: records,
		Period:    period,
	})
}
