// Package fcm pushes notifications to the mobile app through Firebase Cloud
// Messaging.
package fcm

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"

	firebase "firebase.google.com/go"
	"firebase.google.com/go/messaging"
	"google.golang.org/api/option"

	"github.com/nandanugg/marah/module/geofence/domain"
	"github.com/nandanugg/marah/module/geofence/internal/repository/publisher"
)

var _ publisher.NotificationPublisher = (*NotificationPublisher)(nil)

const DefaultTopic = "marah-alerts"

type sender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

type NotificationPublisher struct {
	client sender
	topic  string
}

// NewNotificationPublisher connects with base64 encoded service account
// credentials and sends to topic.
func NewNotificationPublisher(ctx context.Context, encodedCreds, topic string) (*NotificationPublisher, error) {
	creds, err := base64.StdEncoding.DecodeString(encodedCreds)
	if err != nil {
		return nil, fmt.Errorf("decode firebase credentials: %w", err)
	}
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsJSON(creds))
	if err != nil {
		return nil, fmt.Errorf("firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase messaging: %w", err)
	}
	if topic == "" {
		topic = DefaultTopic
	}
	return &NotificationPublisher{client: client, topic: topic}, nil
}

func (p *NotificationPublisher) PublishNotification(ctx context.Context, n *domain.Notification) error {
	if _, err := p.client.Send(ctx, p.message(n)); err != nil {
		return fmt.Errorf("fcm send: %w", err)
	}
	return nil
}

func (p *NotificationPublisher) message(n *domain.Notification) *messaging.Message {
	c := n.Decision.Candidate
	msg := &messaging.Message{
		Topic: p.topic,
		Notification: &messaging.Notification{
			Title: title(c),
			Body:  c.SourceContext,
		},
		Data: map[string]string{
			"entity_id": n.EntityID,
			"severity":  c.Severity.String(),
			"category":  string(c.Category),
			"intensity": string(n.Decision.Intensity),
			"latitude":  strconv.FormatFloat(n.Point.Latitude, 'f', -1, 64),
			"longitude": strconv.FormatFloat(n.Point.Longitude, 'f', -1, 64),
			"timestamp": strconv.FormatInt(n.Timestamp.Unix(), 10),
		},
		Android: &messaging.AndroidConfig{
			Priority:     "normal",
			Notification: &messaging.AndroidNotification{},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{Aps: &messaging.Aps{}},
		},
	}

	switch n.Decision.Intensity {
	case domain.IntensityLoud, domain.IntensityAlarm:
		msg.Android.Priority = "high"
	}
	if n.Sound {
		msg.Android.Notification.Sound = "default"
		msg.APNS.Payload.Aps.Sound = "default"
	}
	return msg
}

func title(c domain.AlertCandidate) string {
	if c.Category == domain.CategoryGPS && c.Severity == domain.SeverityCritical {
		return "Animal left the safe zone"
	}
	return fmt.Sprintf("%s alert (%s)", c.Category, c.Severity)
}
