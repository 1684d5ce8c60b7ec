package domain

import "time"

type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type TrackedPosition struct {
	EntityID  string    `json:"entity_id"`
	Point     GeoPoint  `json:"point"`
	Speed     float64   `json:"speed"`
	Timestamp time.Time `json:"timestamp"`
}

type HistoryQuery struct {
	EntityID string
	Start    time.Time
	End      time.Time
}

type Entity struct {
	EntityID string `json:"entity_id"`
}
