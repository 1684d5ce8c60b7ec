package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nandanugg/marah/module/geofence/domain"
	"github.com/nandanugg/marah/module/geofence/export"
	"github.com/nandanugg/marah/module/geofence/geometry"
	"github.com/nandanugg/marah/module/geofence/service"
)

type fenceRegistry interface {
	List() []domain.Fence
	Create(kind domain.ShapeKind, center *domain.GeoPoint) (domain.Fence, error)
	Update(id string, changes domain.FenceChanges) (domain.Fence, bool, error)
	Delete(id string) bool
	Select(id string) bool
	Deselect()
	Selected() (domain.Fence, bool)
}

type containmentEvaluator interface {
	Evaluate(p domain.GeoPoint, fences []domain.Fence) service.Result
}

type fenceResponse struct {
	ID       string            `json:"id"`
	Type     domain.ShapeKind  `json:"type"`
	Center   domain.GeoPoint   `json:"center"`
	Radius   float64           `json:"radius,omitempty"`
	Width    float64           `json:"width,omitempty"`
	Height   float64           `json:"height,omitempty"`
	Rotation float64           `json:"rotation"`
	Corners  []domain.GeoPoint `json:"corners,omitempty"`
	Selected bool              `json:"selected"`
}

type createFenceRequest struct {
	Type   domain.ShapeKind `json:"type" binding:"required"`
	Center *domain.GeoPoint `json:"center"`
}

type updateFenceRequest struct {
	Center   *domain.GeoPoint `json:"center"`
	Radius   *float64         `json:"radius"`
	Width    *float64         `json:"width"`
	Height   *float64         `json:"height"`
	Rotation *float64         `json:"rotation"`
	// Snap rounds radius, width and height the way the size sliders do.
	Snap bool `json:"snap"`
}

type evaluateRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type evaluateResponse struct {
	IsSafe bool     `json:"is_safe"`
	Inside []string `json:"inside"`
}

type FenceHandler struct {
	registry  fenceRegistry
	evaluator containmentEvaluator
}

func NewFenceHandler(registry fenceRegistry, evaluator containmentEvaluator) *FenceHandler {
	return &FenceHandler{registry: registry, evaluator: evaluator}
}

func (h *FenceHandler) Register(r *gin.RouterGroup) {
	r.GET("/fences", h.ListFences)
	r.GET("/fences.kml", h.ExportKML)
	r.POST("/fences", h.CreateFence)
	r.PATCH("/fences/:id", h.UpdateFence)
	r.DELETE("/fences/:id", h.DeleteFence)
	r.POST("/fences/:id/select", h.SelectFence)
	r.GET("/selection", h.GetSelection)
	r.DELETE("/selection", h.ClearSelection)
	r.POST("/evaluate", h.Evaluate)
}

func (h *FenceHandler) ListFences(c *gin.Context) {
	selectedID := h.selectedID()
	fences := h.registry.List()
	results := make([]fenceResponse, len(fences))
	for i, f := range fences {
		results[i] = toFenceResponse(f, f.ID == selectedID)
	}
	c.JSON(http.StatusOK, results)
}

func (h *FenceHandler) ExportKML(c *gin.Context) {
	c.Header("Content-Type", "application/vnd.google-earth.kml+xml")
	c.Header("Content-Disposition", `attachment; filename="fences.kml"`)
	c.Status(http.StatusOK)
	if err := export.WriteKML(c.Writer, "Marah fences", h.registry.List()); err != nil {
		_ = c.Error(err)
	}
}

func (h *FenceHandler) CreateFence(c *gin.Context) {
	var req createFenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Center != nil && !validPoint(*req.Center) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid center"})
		return
	}

	f, err := h.registry.Create(req.Type, req.Center)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, toFenceResponse(f, true))
}

func (h *FenceHandler) UpdateFence(c *gin.Context) {
	var req updateFenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Center != nil && !validPoint(*req.Center) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid center"})
		return
	}

	changes := domain.FenceChanges{
		Center:   req.Center,
		Radius:   snapped(req.Radius, req.Snap),
		Width:    snapped(req.Width, req.Snap),
		Height:   snapped(req.Height, req.Snap),
		Rotation: req.Rotation,
	}

	f, found, err := h.registry.Update(c.Param("id"), changes)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "fence not found"})
		return
	}
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrInvalidFence) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, toFenceResponse(f, f.ID == h.selectedID()))
}

func (h *FenceHandler) DeleteFence(c *gin.Context) {
	if !h.registry.Delete(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "fence not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *FenceHandler) SelectFence(c *gin.Context) {
	if !h.registry.Select(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "fence not found"})
		return
	}
	f, _ := h.registry.Selected()
	c.JSON(http.StatusOK, toFenceResponse(f, true))
}

func (h *FenceHandler) GetSelection(c *gin.Context) {
	f, ok := h.registry.Selected()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no fence selected"})
		return
	}
	c.JSON(http.StatusOK, toFenceResponse(f, true))
}

func (h *FenceHandler) ClearSelection(c *gin.Context) {
	h.registry.Deselect()
	c.Status(http.StatusNoContent)
}

func (h *FenceHandler) Evaluate(c *gin.Context) {
	var req evaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	p := domain.GeoPoint{Latitude: req.Latitude, Longitude: req.Longitude}
	if !validPoint(p) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid position"})
		return
	}

	res := h.evaluator.Evaluate(p, h.registry.List())
	inside := res.Inside
	if inside == nil {
		inside = []string{}
	}
	c.JSON(http.StatusOK, evaluateResponse{IsSafe: res.IsSafe, Inside: inside})
}

func (h *FenceHandler) selectedID() string {
	if f, ok := h.registry.Selected(); ok {
		return f.ID
	}
	return ""
}

func snapped(v *float64, snap bool) *float64 {
	if v == nil || !snap {
		return v
	}
	s := service.Snap(*v)
	return &s
}

func validPoint(p domain.GeoPoint) bool {
	return p.Latitude >= -90 && p.Latitude <= 90 && p.Longitude >= -180 && p.Longitude <= 180
}

func toFenceResponse(f domain.Fence, selected bool) fenceResponse {
	resp := fenceResponse{
		ID:       f.ID,
		Type:     f.Shape.Kind(),
		Center:   f.Center,
		Selected: selected,
	}
	switch s := f.Shape.(type) {
	case domain.Circle:
		resp.Radius = s.RadiusMeters
	case domain.Rectangle:
		resp.Width = s.WidthMeters
		resp.Height = s.HeightMeters
		resp.Rotation = s.RotationDegrees
		corners := geometry.RotatedRectangleCorners(f.Center, s.WidthMeters, s.HeightMeters, s.RotationDegrees)
		resp.Corners = corners[:]
	}
	return resp
}
