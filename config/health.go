package config

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gin-gonic/gin"
	amqp "github.com/rabbitmq/amqp091-go"
)

type healthCheck struct {
	name string
	run  func(ctx context.Context) error
	// soft failures are reported without failing the whole check
	soft bool
}

type HealthChecker struct {
	checks []healthCheck
}

// NewHealthChecker reports on the service's connections. persist returns the
// outcome of the last fence write and may be nil.
func NewHealthChecker(db *sql.DB, amqpConn *amqp.Connection, mqttClient mqtt.Client, persist func() error) *HealthChecker {
	checks := []healthCheck{
		{name: "postgres", run: db.PingContext},
		{name: "rabbitmq", run: func(context.Context) error {
			if amqpConn.IsClosed() {
				return errors.New("connection closed")
			}
			return nil
		}},
		{name: "mqtt", run: func(context.Context) error {
			if !mqttClient.IsConnected() {
				return errors.New("not connected")
			}
			return nil
		}},
	}
	if persist != nil {
		checks = append(checks, healthCheck{
			name: "fence_store",
			run:  func(context.Context) error { return persist() },
			soft: true,
		})
	}
	return &HealthChecker{checks: checks}
}

func (h *HealthChecker) Register(r *gin.Engine) {
	r.GET("/healthz", h.Handle)
}

func (h *HealthChecker) Handle(c *gin.Context) {
	status := http.StatusOK
	deps := gin.H{}

	for _, check := range h.checks {
		err := check.run(c.Request.Context())
		switch {
		case err == nil:
			deps[check.name] = gin.H{"status": "up"}
		case check.soft:
			deps[check.name] = gin.H{"status": "degraded", "error": err.Error()}
		default:
			deps[check.name] = gin.H{"status": "down", "error": err.Error()}
			status = http.StatusServiceUnavailable
		}
	}

	overall := "healthy"
	if status != http.StatusOK {
		overall = "unhealthy"
	}
	c.JSON(status, gin.H{
		"status":       overall,
		"dependencies": deps,
	})
}
