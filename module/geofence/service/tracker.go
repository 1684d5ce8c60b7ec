package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/nandanugg/marah/module/geofence/domain"
)

const (
	breachContext = "geofence_breach"

	defaultIOTimeout = 5 * time.Second
)

type fenceLister interface {
	List() []domain.Fence
}

type alertPolicy interface {
	ShouldEmit(c domain.AlertCandidate, actx AlertContext, state *domain.PolicyState) domain.Decision
}

type notificationPublisher interface {
	PublishNotification(ctx context.Context, n *domain.Notification) error
}

type positionRecorder interface {
	Insert(ctx context.Context, pos *domain.TrackedPosition) error
}

type TrackerDeps struct {
	Fences    fenceLister
	Evaluator *Evaluator
	Policy    alertPolicy
	State     *domain.PolicyState
	Publisher notificationPublisher
	// History and SoundEnabled are optional.
	History      positionRecorder
	SoundEnabled func() bool
	Now          func() time.Time
	// IOTimeout bounds each history write and publish.
	IOTimeout time.Duration
}

// Tracker runs the idle/following/alert state machine for every tracked
// entity. Evaluation and policy decisions are serialized. History writes
// and publishing run after the lock is released.
type Tracker struct {
	mu         sync.Mutex
	deps       TrackerDeps
	sessions   map[string]*domain.Session
	activePage string
}

func NewTracker(deps TrackerDeps) *Tracker {
	if deps.Evaluator == nil {
		deps.Evaluator = NewEvaluator(ContainPolygon)
	}
	if deps.State == nil {
		deps.State = domain.NewPolicyState()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.IOTimeout <= 0 {
		deps.IOTimeout = defaultIOTimeout
	}
	return &Tracker{
		deps:     deps,
		sessions: make(map[string]*domain.Session),
	}
}

// HandlePosition evaluates pos against the current fences and moves the
// entity to following or alert. Every breach raises a critical GPS alert.
// The mode change stands even if publishing the alert fails.
func (t *Tracker) HandlePosition(ctx context.Context, pos domain.TrackedPosition) (domain.Tick, error) {
	tick, n := t.evaluate(pos)

	if t.deps.History != nil {
		hctx, cancel := context.WithTimeout(ctx, t.deps.IOTimeout)
		if err := t.deps.History.Insert(hctx, &pos); err != nil {
			log.Warn().Err(err).Str("entity", pos.EntityID).Msg("Record position failed")
		}
		cancel()
	}

	return tick, t.publish(ctx, n)
}

func (t *Tracker) evaluate(pos domain.TrackedPosition) (domain.Tick, *domain.Notification) {
	t.mu.Lock()
	defer t.mu.Unlock()

	res := t.deps.Evaluator.Evaluate(pos.Point, t.deps.Fences.List())

	mode := domain.ModeFollowing
	if !res.IsSafe {
		mode = domain.ModeAlert
	}

	s, ok := t.sessions[pos.EntityID]
	if !ok {
		s = &domain.Session{EntityID: pos.EntityID, Mode: domain.ModeIdle}
		t.sessions[pos.EntityID] = s
	}
	if s.Mode != mode {
		log.Info().
			Str("entity", pos.EntityID).
			Str("from", string(s.Mode)).
			Str("to", string(mode)).
			Msg("Tracking mode changed")
	}
	s.Mode = mode
	s.IsSafe = res.IsSafe
	s.Last = pos
	s.UpdatedAt = t.deps.Now()

	tick := domain.Tick{Position: pos, IsSafe: res.IsSafe, Mode: mode}
	if res.IsSafe {
		return tick, nil
	}

	candidate := domain.AlertCandidate{
		Severity:      domain.SeverityCritical,
		Category:      domain.CategoryGPS,
		SourceContext: breachContext,
	}
	d, n := t.decideLocked(pos.EntityID, pos.Point, candidate)
	tick.Decision = &d
	return tick, n
}

// Notify routes an alert that did not come from a position through the
// same policy and publisher.
func (t *Tracker) Notify(ctx context.Context, entityID string, c domain.AlertCandidate) (domain.Decision, error) {
	t.mu.Lock()
	var at domain.GeoPoint
	if s, ok := t.sessions[entityID]; ok {
		at = s.Last.Point
	}
	d, n := t.decideLocked(entityID, at, c)
	t.mu.Unlock()

	return d, t.publish(ctx, n)
}

// decideLocked applies the policy and, when the alert is emitted, builds the
// notification to publish. The caller must hold t.mu.
func (t *Tracker) decideLocked(entityID string, at domain.GeoPoint, c domain.AlertCandidate) (domain.Decision, *domain.Notification) {
	now := t.deps.Now()
	d := t.deps.Policy.ShouldEmit(c, AlertContext{ActivePage: t.activePage, Now: now}, t.deps.State)
	if !d.Emit {
		log.Debug().
			Str("entity", entityID).
			Str("category", string(c.Category)).
			Str("reason", string(d.Reason)).
			Msg("Alert suppressed")
		return d, nil
	}
	if t.deps.Publisher == nil {
		return d, nil
	}

	sound := true
	if t.deps.SoundEnabled != nil {
		sound = t.deps.SoundEnabled()
	}
	return d, &domain.Notification{
		EntityID:  entityID,
		Decision:  d,
		Sound:     sound,
		Point:     at,
		Timestamp: now,
	}
}

func (t *Tracker) publish(ctx context.Context, n *domain.Notification) error {
	if n == nil {
		return nil
	}
	pctx, cancel := context.WithTimeout(ctx, t.deps.IOTimeout)
	defer cancel()
	if err := t.deps.Publisher.PublishNotification(pctx, n); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

// Stop ends tracking for an entity and returns it to idle.
func (t *Tracker) Stop(entityID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sessions[entityID]
	if !ok {
		return false
	}
	s.Mode = domain.ModeIdle
	s.UpdatedAt = t.deps.Now()
	return true
}

func (t *Tracker) Session(entityID string) (domain.Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sessions[entityID]
	if !ok {
		return domain.Session{}, false
	}
	return *s, true
}

func (t *Tracker) Sessions() []domain.Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]domain.Session, 0, len(t.sessions))
	for _, s := range t.sessions {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntityID < out[j].EntityID })
	return out
}

// SetActivePage records which screen the user is looking at.
func (t *Tracker) SetActivePage(page string) {
	t.mu.Lock()
	t.activePage = page
	t.mu.Unlock()
}

func (t *Tracker) ActivePage() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.activePage
}
