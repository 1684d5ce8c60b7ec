package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/nandanugg/marah/module/geofence/domain"
	"github.com/nandanugg/marah/module/geofence/internal/repository/publisher"
)

var _ publisher.NotificationPublisher = (*NotificationPublisher)(nil)

const (
	ExchangeName = "marah.events"
	QueueName    = "smart_alerts"
)

// channel is the part of *amqp.Channel the publisher uses.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type NotificationPublisher struct {
	ch channel
}

// Declare sets up the fanout exchange and the alerts queue bound to it.
func Declare(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(ExchangeName, "fanout", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	if _, err := ch.QueueDeclare(QueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(QueueName, "", ExchangeName, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

func NewNotificationPublisher(conn *amqp.Connection) (*NotificationPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}
	if err := Declare(ch); err != nil {
		return nil, err
	}
	return &NotificationPublisher{ch: ch}, nil
}

// Message is the wire form of a notification on the alerts queue.
type Message struct {
	EntityID      string           `json:"entity_id"`
	Severity      string           `json:"severity"`
	Category      string           `json:"category"`
	SourceContext string           `json:"source_context"`
	Intensity     domain.Intensity `json:"intensity"`
	Sound         bool             `json:"sound"`
	Latitude      float64          `json:"latitude"`
	Longitude     float64          `json:"longitude"`
	Timestamp     int64            `json:"timestamp"`
}

func (p *NotificationPublisher) PublishNotification(ctx context.Context, n *domain.Notification) error {
	msg := Message{
		EntityID:      n.EntityID,
		Severity:      n.Decision.Candidate.Severity.String(),
		Category:      string(n.Decision.Candidate.Category),
		SourceContext: n.Decision.Candidate.SourceContext,
		Intensity:     n.Decision.Intensity,
		Sound:         n.Sound,
		Latitude:      n.Point.Latitude,
		Longitude:     n.Point.Longitude,
		Timestamp:     n.Timestamp.Unix(),
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	return p.ch.PublishWithContext(ctx, ExchangeName, "", false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
}
