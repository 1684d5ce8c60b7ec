package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nandanugg/marah/module/geofence/domain"
	"github.com/nandanugg/marah/module/geofence/internal/repository/database"
)

type positionHistory interface {
	GetLatest(ctx context.Context, entityID string) (*domain.TrackedPosition, error)
	GetHistory(ctx context.Context, query *domain.HistoryQuery) ([]domain.TrackedPosition, error)
	GetAllEntities(ctx context.Context) ([]domain.Entity, error)
}

type positionResponse struct {
	EntityID  string  `json:"entity_id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Speed     float64 `json:"speed"`
	Timestamp int64   `json:"timestamp"`
}

type EntityHandler struct {
	history positionHistory
}

func NewEntityHandler(history positionHistory) *EntityHandler {
	return &EntityHandler{history: history}
}

func (h *EntityHandler) Register(r *gin.RouterGroup) {
	r.GET("/entities", h.GetAllEntities)
	r.GET("/entities/:entity_id/position", h.GetLatestPosition)
	r.GET("/entities/:entity_id/history", h.GetHistory)
}

func (h *EntityHandler) GetAllEntities(c *gin.Context) {
	entities, err := h.history.GetAllEntities(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch entities"})
		return
	}
	if entities == nil {
		entities = []domain.Entity{}
	}
	c.JSON(http.StatusOK, entities)
}

func (h *EntityHandler) GetLatestPosition(c *gin.Context) {
	p, err := h.history.GetLatest(c.Request.Context(), c.Param("entity_id"))
	if errors.Is(err, database.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "entity not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch position"})
		return
	}
	c.JSON(http.StatusOK, toPositionResponse(p))
}

func (h *EntityHandler) GetHistory(c *gin.Context) {
	start, err := strconv.ParseInt(c.Query("start"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start parameter"})
		return
	}

	end, err := strconv.ParseInt(c.Query("end"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end parameter"})
		return
	}
	if end < start {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end must not be before start"})
		return
	}

	query := &domain.HistoryQuery{
		EntityID: c.Param("entity_id"),
		Start:    time.Unix(start, 0),
		End:      time.Unix(end, 0),
	}

	positions, err := h.history.GetHistory(c.Request.Context(), query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch history"})
		return
	}

	results := make([]positionResponse, len(positions))
	for i := range positions {
		results[i] = toPositionResponse(&positions[i])
	}
	c.JSON(http.StatusOK, results)
}

func toPositionResponse(p *domain.TrackedPosition) positionResponse {
	return positionResponse{
		EntityID:  p.EntityID,
		Latitude:  p.Point.Latitude,
		Longitude: p.Point.Longitude,
		Speed:     p.Speed,
		Timestamp: p.Timestamp.Unix(),
	}
}
