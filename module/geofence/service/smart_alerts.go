package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/nandanugg/marah/module/geofence/domain"
)

// AdvisorEntity is the entity id used for alerts raised by the advisor.
const AdvisorEntity = "advisor"

var ErrRateLimited = errors.New("smart alerts rate limited")

type alertSource interface {
	GenerateAlerts(ctx context.Context, snap domain.Snapshot) ([]domain.AlertCandidate, error)
}

type alertNotifier interface {
	Notify(ctx context.Context, entityID string, c domain.AlertCandidate) (domain.Decision, error)
	Sessions() []domain.Session
}

// SmartAlertService asks the advisor for alerts and runs each one through
// the alert policy.
type SmartAlertService struct {
	source   alertSource
	notifier alertNotifier
	fences   fenceLister
	limiter  *rate.Limiter
	now      func() time.Time
}

// NewSmartAlertService builds the service. A nil limiter allows every run.
func NewSmartAlertService(source alertSource, notifier alertNotifier, fences fenceLister, limiter *rate.Limiter) *SmartAlertService {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 0)
	}
	return &SmartAlertService{source: source, notifier: notifier, fences: fences, limiter: limiter, now: time.Now}
}

func (s *SmartAlertService) Run(ctx context.Context) ([]domain.Decision, error) {
	if !s.limiter.Allow() {
		return nil, ErrRateLimited
	}

	snap := domain.Snapshot{
		FenceCount: len(s.fences.List()),
		Sessions:   s.notifier.Sessions(),
		Timestamp:  s.now(),
	}

	candidates, err := s.source.GenerateAlerts(ctx, snap)
	if err != nil {
		return nil, fmt.Errorf("generate alerts: %w", err)
	}

	decisions := make([]domain.Decision, 0, len(candidates))
	var errs []error
	for _, c := range candidates {
		d, err := s.notifier.Notify(ctx, AdvisorEntity, c)
		if err != nil {
			errs = append(errs, err)
		}
		decisions = append(decisions, d)
	}
	log.Info().Int("candidates", len(candidates)).Msg("Smart alerts evaluated")
	return decisions, errors.Join(errs...)
}
