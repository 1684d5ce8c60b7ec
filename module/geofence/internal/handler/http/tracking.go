package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/nandanugg/marah/module/geofence/domain"
	"github.com/nandanugg/marah/module/geofence/service"
)

type sessionTracker interface {
	Sessions() []domain.Session
	Stop(entityID string) bool
	SetActivePage(page string)
	ActivePage() string
}

type simulationFeed interface {
	Start() error
	Stop()
	Running() bool
}

type smartAlerts interface {
	Run(ctx context.Context) ([]domain.Decision, error)
}

type activePageRequest struct {
	ActivePage string `json:"active_page"`
}

type simulationResponse struct {
	Running bool `json:"running"`
}

type TrackingHandler struct {
	tracker    sessionTracker
	simulation simulationFeed
	alerts     smartAlerts
}

// NewTrackingHandler wires the tracking routes. simulation and alerts may be
// nil, in which case their routes answer 503.
func NewTrackingHandler(tracker sessionTracker, simulation simulationFeed, alerts smartAlerts) *TrackingHandler {
	return &TrackingHandler{tracker: tracker, simulation: simulation, alerts: alerts}
}

func (h *TrackingHandler) Register(r *gin.RouterGroup) {
	r.GET("/tracking/sessions", h.ListSessions)
	r.DELETE("/tracking/sessions/:entity_id", h.StopSession)
	r.GET("/tracking/page", h.GetActivePage)
	r.PUT("/tracking/page", h.SetActivePage)
	r.GET("/tracking/simulation", h.SimulationStatus)
	r.POST("/tracking/simulation/start", h.StartSimulation)
	r.POST("/tracking/simulation/stop", h.StopSimulation)
	r.POST("/alerts/smart", h.RunSmartAlerts)
}

func (h *TrackingHandler) ListSessions(c *gin.Context) {
	c.JSON(http.StatusOK, h.tracker.Sessions())
}

func (h *TrackingHandler) StopSession(c *gin.Context) {
	if !h.tracker.Stop(c.Param("entity_id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *TrackingHandler) GetActivePage(c *gin.Context) {
	c.JSON(http.StatusOK, activePageRequest{ActivePage: h.tracker.ActivePage()})
}

func (h *TrackingHandler) SetActivePage(c *gin.Context) {
	var req activePageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	h.tracker.SetActivePage(req.ActivePage)
	c.JSON(http.StatusOK, req)
}

func (h *TrackingHandler) SimulationStatus(c *gin.Context) {
	if h.simulation == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "simulation disabled"})
		return
	}
	c.JSON(http.StatusOK, simulationResponse{Running: h.simulation.Running()})
}

func (h *TrackingHandler) StartSimulation(c *gin.Context) {
	if h.simulation == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "simulation disabled"})
		return
	}
	if err := h.simulation.Start(); err != nil {
		log.Error().Err(err).Msg("Start simulation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start simulation"})
		return
	}
	c.JSON(http.StatusOK, simulationResponse{Running: true})
}

func (h *TrackingHandler) StopSimulation(c *gin.Context) {
	if h.simulation == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "simulation disabled"})
		return
	}
	h.simulation.Stop()
	c.JSON(http.StatusOK, simulationResponse{Running: false})
}

func (h *TrackingHandler) RunSmartAlerts(c *gin.Context) {
	if h.alerts == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "smart alerts disabled"})
		return
	}
	decisions, err := h.alerts.Run(c.Request.Context())
	if errors.Is(err, service.ErrRateLimited) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
		return
	}
	if err != nil && decisions == nil {
		log.Error().Err(err).Msg("Smart alerts failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to generate alerts"})
		return
	}
	if err != nil {
		log.Warn().Err(err).Msg("Some smart alerts were not delivered")
	}
	c.JSON(http.StatusOK, decisions)
}
