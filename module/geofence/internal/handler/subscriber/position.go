package subscriber

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/nandanugg/marah/module/geofence/domain"
)

const TopicPattern = "/marah/tracker/+/position"

type positionHandler interface {
	HandlePosition(ctx context.Context, pos domain.TrackedPosition) (domain.Tick, error)
}

// PositionMessage is what collars publish on TopicPattern.
type PositionMessage struct {
	DeviceID  string  `json:"device_id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Speed     float64 `json:"speed"`
	Timestamp int64   `json:"timestamp"`
}

type PositionSubscriber struct {
	client  mqtt.Client
	tracker positionHandler
}

func NewPositionSubscriber(client mqtt.Client, tracker positionHandler) *PositionSubscriber {
	return &PositionSubscriber{client: client, tracker: tracker}
}

func (s *PositionSubscriber) Start() error {
	token := s.client.Subscribe(TopicPattern, 1, s.handleMessage)
	token.Wait()
	return token.Error()
}

func (s *PositionSubscriber) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	var raw PositionMessage
	if err := json.Unmarshal(msg.Payload(), &raw); err != nil {
		log.Warn().Err(err).Str("topic", msg.Topic()).Msg("Invalid position message")
		return
	}

	if err := validatePositionMessage(&raw); err != nil {
		log.Warn().Err(err).Str("topic", msg.Topic()).Msg("Position validation failed")
		return
	}

	pos := domain.TrackedPosition{
		EntityID:  raw.DeviceID,
		Point:     domain.GeoPoint{Latitude: raw.Latitude, Longitude: raw.Longitude},
		Speed:     raw.Speed,
		Timestamp: time.Unix(raw.Timestamp, 0),
	}

	tick, err := s.tracker.HandlePosition(context.Background(), pos)
	if err != nil {
		log.Error().Err(err).Str("device", raw.DeviceID).Msg("Handle position failed")
		return
	}
	log.Debug().
		Str("device", raw.DeviceID).
		Bool("safe", tick.IsSafe).
		Str("mode", string(tick.Mode)).
		Msg("Position evaluated")
}

func validatePositionMessage(msg *PositionMessage) error {
	if msg.DeviceID == "" {
		return fmt.Errorf("device_id: required")
	}
	if msg.Latitude < -90 || msg.Latitude > 90 {
		return fmt.Errorf("latitude: must be between -90 and 90")
	}
	if msg.Longitude < -180 || msg.Longitude > 180 {
		return fmt.Errorf("longitude: must be between -180 and 180")
	}
	if msg.Speed < 0 {
		return fmt.Errorf("speed: must not be negative")
	}
	if msg.Timestamp <= 0 {
		return fmt.Errorf("timestamp: must be positive")
	}
	return nil
}
