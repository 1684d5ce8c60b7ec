package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/nandanugg/marah/config"
	"github.com/nandanugg/marah/module/geofence"
	"github.com/nandanugg/marah/module/geofence/domain"
	"github.com/nandanugg/marah/module/geofence/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		if config.IsHelp(err) {
			os.Exit(0)
		}
		os.Exit(1)
	}
	cfg.Logger.Setup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	policy := service.DefaultPolicyConfig()
	if cfg.PolicyFile != "" {
		policy, err = service.LoadPolicyFile(cfg.PolicyFile, policy)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load alert policy")
		}
	}
	rect, err := service.ParseRectangleContainment(cfg.RectContainment)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid rectangle containment")
	}

	db, err := config.NewPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("Postgres unavailable")
	}
	defer func() { _ = db.Close() }()

	if err := geofence.Migrate(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("Migration failed")
	}

	amqpConn, err := config.NewRabbitMQ(cfg.RabbitMQURL)
	if err != nil {
		log.Fatal().Err(err).Msg("RabbitMQ unavailable")
	}
	defer func() { _ = amqpConn.Close() }()

	// subscriptions are restored on every reconnect once the module exists
	var module atomic.Pointer[geofence.Module]
	mqttClient, err := config.NewMQTT(cfg.MQTTBroker, cfg.MQTTClientID, func(mqtt.Client) {
		if m := module.Load(); m != nil {
			if err := m.StartSubscribers(); err != nil {
				log.Error().Err(err).Msg("Resubscribe failed")
			}
		}
	})
	if err != nil {
		log.Fatal().Err(err).Msg("MQTT unavailable")
	}
	defer mqttClient.Disconnect(250)

	simInterval := cfg.SimInterval
	if cfg.DisableSim {
		simInterval = 0
	}
	geo, err := geofence.Build(ctx, db, amqpConn, mqttClient, geofence.Options{
		Center:          domain.GeoPoint{Latitude: cfg.CenterLat, Longitude: cfg.CenterLng},
		RectContainment: rect,
		Policy:          policy,
		SimInterval:     simInterval,
		OpenAIKey:       cfg.OpenAIKey,
		OpenAIModel:     cfg.OpenAIModel,

		SmartAlertInterval:  cfg.SmartEvery,
		FirebaseCredentials: cfg.FirebaseCredentials,
		FCMTopic:            cfg.FCMTopic,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Geofence module")
	}
	geo.Load(ctx)
	module.Store(geo)

	if err := geo.StartSubscribers(); err != nil {
		log.Fatal().Err(err).Msg("Start subscribers")
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		geo.Run(ctx)
	}()

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	config.NewHealthChecker(db, amqpConn, mqttClient, geo.PersistError).Register(r)
	geo.RegisterRoutes(&r.RouterGroup)

	srv := &http.Server{Addr: ":" + cfg.HTTPPort, Handler: r}
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Web server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP shutdown")
	}
	geo.Shutdown()
	wg.Wait()
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Str("ip", c.ClientIP()).
			Dur("duration", time.Since(start)).
			Msg("Request processed")
	}
}
