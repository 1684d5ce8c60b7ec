package config

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestHealth_SoftFailureStaysHealthy(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := &HealthChecker{checks: []healthCheck{
		{name: "postgres", run: func(context.Context) error { return nil }},
		{name: "fence_store", run: func(context.Context) error { return errors.New("disk full") }, soft: true},
	}}
	r := gin.New()
	h.Register(r)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/healthz", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		Status       string                       `json:"status"`
		Dependencies map[string]map[string]string `json:"dependencies"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Status != "healthy" || resp.Dependencies["fence_store"]["status"] != "degraded" {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestHealth_HardFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := &HealthChecker{checks: []healthCheck{
		{name: "mqtt", run: func(context.Context) error { return errors.New("not connected") }},
	}}
	r := gin.New()
	h.Register(r)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/healthz", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}
