package geofence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gin-gonic/gin"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/nandanugg/marah/module/geofence/domain"
	handler "github.com/nandanugg/marah/module/geofence/internal/handler/http"
	"github.com/nandanugg/marah/module/geofence/internal/handler/subscriber"
	"github.com/nandanugg/marah/module/geofence/internal/repository/advisor/openai"
	"github.com/nandanugg/marah/module/geofence/internal/repository/database/postgres"
	"github.com/nandanugg/marah/module/geofence/internal/repository/publisher"
	"github.com/nandanugg/marah/module/geofence/internal/repository/publisher/fcm"
	"github.com/nandanugg/marah/module/geofence/internal/repository/publisher/rabbitmq"
	"github.com/nandanugg/marah/module/geofence/service"
	"github.com/nandanugg/marah/module/geofence/simulation"
)

type Options struct {
	// Center is where new fences and the simulated entity start.
	Center          domain.GeoPoint
	RectContainment service.RectangleContainment
	Policy          service.PolicyConfig
	// SimInterval of zero disables the simulation feed.
	SimInterval time.Duration
	// OpenAIKey empty disables smart alerts.
	OpenAIKey   string
	OpenAIModel string
	// SmartAlertInterval is the minimum spacing of advisor calls.
	SmartAlertInterval time.Duration
	// FirebaseCredentials empty disables push notifications.
	FirebaseCredentials string
	FCMTopic            string
}

type Module struct {
	Registry *service.FenceRegistry
	Tracker  *service.Tracker
	Settings *service.SettingsService
	Feed     *simulation.Feed

	handlers   []interface{ Register(*gin.RouterGroup) }
	subscriber *subscriber.PositionSubscriber
}

// Migrate creates the tables the module stores its state in.
func Migrate(ctx context.Context, db *sql.DB) error {
	return postgres.Migrate(ctx, db)
}

func Build(ctx context.Context, db *sql.DB, amqpConn *amqp.Connection, mqttClient mqtt.Client, opts Options) (*Module, error) {
	store := postgres.NewKVStore(db)
	positions := postgres.NewPositionRepo(db)

	queue, err := rabbitmq.NewNotificationPublisher(amqpConn)
	if err != nil {
		return nil, fmt.Errorf("notification publisher: %w", err)
	}
	notifier := publisher.Fanout{queue}
	if opts.FirebaseCredentials != "" {
		push, err := fcm.NewNotificationPublisher(ctx, opts.FirebaseCredentials, opts.FCMTopic)
		if err != nil {
			return nil, fmt.Errorf("push publisher: %w", err)
		}
		notifier = append(notifier, push)
	}

	policy := service.NewAlertPolicy(opts.Policy)
	settings := service.NewSettingsService(store, policy)
	registry := service.NewFenceRegistry(store, opts.Center)
	evaluator := service.NewEvaluator(opts.RectContainment)

	tracker := service.NewTracker(service.TrackerDeps{
		Fences:       registry,
		Evaluator:    evaluator,
		Policy:       policy,
		State:        domain.NewPolicyState(),
		Publisher:    notifier,
		History:      positions,
		SoundEnabled: settings.SoundEnabled,
	})

	m := &Module{
		Registry:   registry,
		Tracker:    tracker,
		Settings:   settings,
		subscriber: subscriber.NewPositionSubscriber(mqttClient, tracker),
	}

	// nil interface values keep the disabled routes answering 503
	var feed interface {
		Start() error
		Stop()
		Running() bool
	}
	if opts.SimInterval > 0 {
		m.Feed = simulation.NewFeed(tracker, opts.Center, opts.SimInterval)
		feed = m.Feed
	}

	var alerts interface {
		Run(ctx context.Context) ([]domain.Decision, error)
	}
	if opts.OpenAIKey != "" {
		source := openai.NewAlertSource(opts.OpenAIKey, opts.OpenAIModel)
		var limiter *rate.Limiter
		if opts.SmartAlertInterval > 0 {
			limiter = rate.NewLimiter(rate.Every(opts.SmartAlertInterval), 1)
		}
		alerts = service.NewSmartAlertService(source, tracker, registry, limiter)
	}

	m.handlers = []interface{ Register(*gin.RouterGroup) }{
		handler.NewFenceHandler(registry, evaluator),
		handler.NewTrackingHandler(tracker, feed, alerts),
		handler.NewSettingsHandler(settings),
		handler.NewEntityHandler(positions),
	}
	return m, nil
}

// Load restores fences and settings. A store that cannot be read leaves the
// defaults in place and is only logged.
func (m *Module) Load(ctx context.Context) {
	if err := m.Registry.Load(ctx); err != nil {
		log.Warn().Err(err).Msg("Starting with no fences")
	}
	if err := m.Settings.Load(ctx); err != nil {
		log.Warn().Err(err).Msg("Starting with default settings")
	}
	log.Info().Int("fences", len(m.Registry.List())).Msg("Geofence state loaded")
}

func (m *Module) RegisterRoutes(r *gin.RouterGroup) {
	for _, h := range m.handlers {
		h.Register(r)
	}
}

func (m *Module) StartSubscribers() error {
	return m.subscriber.Start()
}

// Run persists fence edits until ctx is done.
func (m *Module) Run(ctx context.Context) {
	m.Registry.Run(ctx)
}

func (m *Module) Shutdown() {
	if m.Feed != nil && m.Feed.Running() {
		m.Feed.Stop()
	}
}

// PersistError reports the last failed fence write, if any.
func (m *Module) PersistError() error {
	err := m.Registry.PersistError()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
