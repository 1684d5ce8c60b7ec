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

type settingsService interface {
	Get() domain.AppSettings
	Update(ctx context.Context, next domain.AppSettings) (domain.AppSettings, error)
}

type SettingsHandler struct {
	settings settingsService
}

func NewSettingsHandler(settings settingsService) *SettingsHandler {
	return &SettingsHandler{settings: settings}
}

func (h *SettingsHandler) Register(r *gin.RouterGroup) {
	r.GET("/settings", h.GetSettings)
	r.PUT("/settings", h.UpdateSettings)
}

func (h *SettingsHandler) GetSettings(c *gin.Context) {
	c.JSON(http.StatusOK, h.settings.Get())
}

func (h *SettingsHandler) UpdateSettings(c *gin.Context) {
	next := h.settings.Get()
	if err := c.ShouldBindJSON(&next); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	saved, err := h.settings.Update(c.Request.Context(), next)
	if errors.Is(err, service.ErrInvalidSettings) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		// the new settings are live even though they were not stored
		log.Error().Err(err).Msg("Save settings failed")
		c.JSON(http.StatusAccepted, saved)
		return
	}
	c.JSON(http.StatusOK, saved)
}
