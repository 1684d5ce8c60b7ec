// Package simulation drives the tracker with a synthetic random walk when no
// collar is online.
package simulation

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/nandanugg/marah/module/geofence/domain"
	"github.com/nandanugg/marah/module/geofence/geometry"
)

const (
	EntityID        = "simulation"
	DefaultInterval = 2 * time.Second
	// maxStepDegrees is the largest move per tick on each axis.
	maxStepDegrees = 0.00005
)

type positionHandler interface {
	HandlePosition(ctx context.Context, pos domain.TrackedPosition) (domain.Tick, error)
	Stop(entityID string) bool
}

type Feed struct {
	mu       sync.Mutex
	handler  positionHandler
	interval time.Duration
	pos      domain.GeoPoint
	rnd      *rand.Rand
	now      func() time.Time
	cron     *cron.Cron
}

func NewFeed(handler positionHandler, start domain.GeoPoint, interval time.Duration) *Feed {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Feed{
		handler:  handler,
		interval: interval,
		pos:      start,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
		now:      time.Now,
	}
}

// Start schedules a tick every interval. Ticks never overlap: a slow tick
// delays the next one. Starting a running feed is a no-op.
func (f *Feed) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cron != nil {
		return nil
	}

	logger := cronLogger{}
	c := cron.New(cron.WithChain(cron.Recover(logger), cron.DelayIfStillRunning(logger)), cron.WithLogger(logger))
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", f.interval), func() {
		if _, err := f.Step(context.Background()); err != nil {
			log.Warn().Err(err).Msg("Simulation tick failed")
		}
	}); err != nil {
		return fmt.Errorf("schedule simulation: %w", err)
	}
	c.Start()
	f.cron = c

	log.Info().Dur("interval", f.interval).Msg("Simulation started")
	return nil
}

// Stop cancels future ticks, waits for a running tick to finish and returns
// the simulated entity to idle.
func (f *Feed) Stop() {
	f.mu.Lock()
	c := f.cron
	f.cron = nil
	f.mu.Unlock()
	if c == nil {
		return
	}

	<-c.Stop().Done()
	f.handler.Stop(EntityID)
	log.Info().Msg("Simulation stopped")
}

func (f *Feed) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cron != nil
}

// Step advances the walk by one tick and hands the new position to the tracker.
func (f *Feed) Step(ctx context.Context) (domain.Tick, error) {
	f.mu.Lock()
	prev := f.pos
	next := domain.GeoPoint{
		Latitude:  prev.Latitude + (f.rnd.Float64()-0.5)*2*maxStepDegrees,
		Longitude: prev.Longitude + (f.rnd.Float64()-0.5)*2*maxStepDegrees,
	}
	f.pos = next
	f.mu.Unlock()

	return f.handler.HandlePosition(ctx, domain.TrackedPosition{
		EntityID:  EntityID,
		Point:     next,
		Speed:     geometry.HaversineDistanceMeters(prev, next) / f.interval.Seconds(),
		Timestamp: f.now(),
	})
}

func (f *Feed) Position() domain.GeoPoint {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pos
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	log.Debug().Fields(keysAndValues).Msg(msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
