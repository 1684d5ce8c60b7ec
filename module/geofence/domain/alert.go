package domain

import (
	"strings"
	"sync"
	"time"
)

type Severity int

const (
	SeverityUnknown Severity = iota
	SeverityLow
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

var severityNames = map[Severity]string{
	SeverityUnknown:  "unknown",
	SeverityLow:      "low",
	SeverityMedium:   "medium",
	SeverityHigh:     "high",
	SeverityCritical: "critical",
}

func (s Severity) String() string {
	if n, ok := severityNames[s]; ok {
		return n
	}
	return "unknown"
}

func ParseSeverity(v string) Severity {
	v = strings.ToLower(strings.TrimSpace(v))
	for s, n := range severityNames {
		if n == v {
			return s
		}
	}
	return SeverityUnknown
}

func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Severity) UnmarshalText(b []byte) error {
	*s = ParseSeverity(string(b))
	return nil
}

type Category string

const (
	CategoryGPS    Category = "GPS"
	CategoryHealth Category = "Health"
	CategoryAdmin  Category = "Admin"
)

type AlertCandidate struct {
	Severity      Severity `json:"severity"`
	Category      Category `json:"category"`
	SourceContext string   `json:"source_context"`
}

type Intensity string

const (
	IntensitySilent Intensity = "silent"
	IntensitySoft   Intensity = "soft"
	IntensityLoud   Intensity = "loud"
	IntensityAlarm  Intensity = "alarm"
)

type SuppressReason string

const (
	ReasonNone       SuppressReason = ""
	ReasonSameScreen SuppressReason = "same_screen"
	ReasonNightMode  SuppressReason = "night_mode"
	ReasonCooldown   SuppressReason = "anti_spam"
	ReasonSilent     SuppressReason = "silent"
)

type Decision struct {
	Candidate AlertCandidate `json:"candidate"`
	Emit      bool           `json:"emit"`
	Intensity Intensity      `json:"intensity,omitempty"`
	Reason    SuppressReason `json:"reason,omitempty"`
}

// PolicyState records when each category last produced a notification.
// One instance lives for the whole process.
type PolicyState struct {
	mu   sync.Mutex
	last map[Category]time.Time
}

func NewPolicyState() *PolicyState {
	return &PolicyState{last: make(map[Category]time.Time)}
}

func (s *PolicyState) LastEmitted(c Category) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.last[c]
	return t, ok
}

func (s *PolicyState) MarkEmitted(c Category, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		s.last = make(map[Category]time.Time)
	}
	s.last[c] = at
}

// Notification is an emitted decision handed to whatever plays the cue.
type Notification struct {
	EntityID  string
	Decision  Decision
	Sound     bool
	Point     GeoPoint
	Timestamp time.Time
}
