package main

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/nandanugg/marah/config"
)

type Options struct {
	Logger config.Logger `group:"Logger options"`

	Broker    string        `short:"b" long:"broker"   env:"MQTT_BROKER" description:"MQTT broker address" default:"tcp://localhost:1883"`
	Interval  time.Duration `short:"i" long:"interval" description:"Time between positions"               default:"2s"`
	Devices   int           `short:"n" long:"devices"  description:"Number of simulated collars"          default:"5"`
	CenterLat float64       `long:"center-lat" env:"MAP_CENTER_LAT" description:"Herd center latitude"  default:"34.7593"`
	CenterLng float64       `long:"center-lng" env:"MAP_CENTER_LNG" description:"Herd center longitude" default:"3.5881"`
	Roam      float64       `long:"roam"    description:"Typical distance from the center in meters"   default:"40"`
	Stray     float64       `long:"stray"   description:"Chance that a position lands far outside"     default:"0.1"`
}

type positionMessage struct {
	DeviceID  string  `json:"device_id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Speed     float64 `json:"speed"`
	Timestamp int64   `json:"timestamp"`
}

func main() {
	_ = godotenv.Load()

	var opts Options
	if _, err := flags.NewParser(&opts, flags.Default).Parse(); err != nil {
		if config.IsHelp(err) {
			os.Exit(0)
		}
		os.Exit(1)
	}
	opts.Logger.Setup()

	if opts.Interval <= 0 || opts.Devices <= 0 {
		log.Fatal().Msg("interval and devices must be positive")
	}

	client := mqtt.NewClient(mqtt.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID("marah-collar-simulator"))
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.Fatal().Err(token.Error()).Msg("MQTT connect")
	}
	defer client.Disconnect(250)

	devices := make([]string, opts.Devices)
	for i := range devices {
		devices[i] = "collar-" + uuid.NewString()[:8]
	}
	log.Info().Str("broker", opts.Broker).Dur("interval", opts.Interval).Strs("devices", devices).Msg("Publishing positions")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-sig:
			log.Info().Msg("Shutting down")
			return
		case <-ticker.C:
		}

		id := devices[rand.Intn(len(devices))]
		dist := rand.Float64() * opts.Roam
		if rand.Float64() < opts.Stray {
			dist = opts.Roam * (5 + rand.Float64()*5)
		}
		lat, lng := around(opts.CenterLat, opts.CenterLng, dist, rand.Float64()*2*math.Pi)

		payload, err := json.Marshal(positionMessage{
			DeviceID:  id,
			Latitude:  lat,
			Longitude: lng,
			Speed:     rand.Float64() * 1.5,
			Timestamp: time.Now().Unix(),
		})
		if err != nil {
			log.Error().Err(err).Msg("Marshal position")
			continue
		}

		topic := fmt.Sprintf("/marah/tracker/%s/position", id)
		token := client.Publish(topic, 1, false, payload)
		token.Wait()
		if err := token.Error(); err != nil {
			log.Error().Err(err).Str("topic", topic).Msg("Publish failed")
			continue
		}
		log.Debug().Str("topic", topic).RawJSON("payload", payload).Msg("Published")
	}
}

// around returns the point dist meters from the center along bearing.
func around(lat, lng, dist, bearing float64) (float64, float64) {
	north := dist * math.Cos(bearing)
	east := dist * math.Sin(bearing)
	return lat + north/111320, lng + east/(40075000*math.Cos(lat*math.Pi/180)/360)
}
