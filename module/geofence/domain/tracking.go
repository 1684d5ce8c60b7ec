package domain

import "time"

type SystemMode string

const (
	ModeIdle      SystemMode = "idle"
	ModeFollowing SystemMode = "following"
	ModeAlert     SystemMode = "alert"
)

type Session struct {
	EntityID  string          `json:"entity_id"`
	Mode      SystemMode      `json:"mode"`
	IsSafe    bool            `json:"is_safe"`
	Last      TrackedPosition `json:"last_position"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Tick is the outcome of evaluating one position.
type Tick struct {
	Position TrackedPosition
	IsSafe   bool
	Mode     SystemMode
	Decision *Decision
}

// Snapshot summarises the monitor's state for the advisor.
type Snapshot struct {
	FenceCount int       `json:"fence_count"`
	Sessions   []Session `json:"sessions"`
	Timestamp  time.Time `json:"timestamp"`
}
