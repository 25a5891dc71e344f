// Command sample-sim publishes random signal samples to an MQTT broker for
// exercising the ingestion bridge locally.
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/ynon123/geosamples/internal/logging"
)

type samplePayload struct {
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	SignalStrength float64 `json:"signal_strength"`
	Timestamp      string  `json:"timestamp"`
}

// metersPerDegree is the length of one degree of latitude.
const metersPerDegree = 111_320.0

func main() {
	brokerAddr := flag.String("broker", "tcp://localhost:1883", "MQTT broker address, e.g. tcp://localhost:1883")
	deviceID := flag.String("device-id", "sim-device-1", "Device identifier used in the topic")
	topicFmt := flag.String("topic", "samples/%s/ingest", "Topic format; %s is replaced by the device id")
	centerLat := flag.Float64("lat", 31.7683, "Center latitude")
	centerLon := flag.Float64("lon", 35.2137, "Center longitude")
	radius := flag.Float64("radius", 500, "Maximum distance from the center in meters")
	batch := flag.Int("batch", 1, "Samples per message (>1 publishes a JSON array)")
	interval := flag.Duration("interval", 2*time.Second, "Interval between messages")
	baseSignal := flag.Float64("base-signal", -70, "Baseline signal strength (dBm)")
	jitter := flag.Float64("signal-jitter", 8, "Maximum random deviation from the baseline")
	qos := flag.Int("qos", 1, "MQTT QoS (0, 1 or 2)")
	logFormat := flag.String("log-format", "console", "json or console")

	flag.Parse()

	logger := logging.New(logging.Config{Level: "info", Format: *logFormat})

	if err := checkFlags(*batch, *qos, *radius); err != nil {
		logger.Fatal().Err(err).Msg("invalid flags")
	}

	clientID := fmt.Sprintf("%s-simulator-%d", *deviceID, time.Now().UnixNano())
	opts := mqtt.NewClientOptions().AddBroker(*brokerAddr).SetClientID(clientID)
	opts = opts.SetOrderMatters(false)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		logger.Fatal().Err(token.Error()).Msg("failed to connect to broker")
	}
	logger.Info().Str("broker", *brokerAddr).Str("client_id", clientID).Msg("connected to MQTT broker")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	topic := fmt.Sprintf(*topicFmt, *deviceID)
	publish := func() {
		samples := make([]samplePayload, *batch)
		for i := range samples {
			lat, lon := randomPoint(*centerLat, *centerLon, *radius)
			samples[i] = samplePayload{
				Latitude:       lat,
				Longitude:      lon,
				SignalStrength: randomSignal(*baseSignal, *jitter),
				Timestamp:      time.Now().UTC().Format(time.RFC3339Nano),
			}
		}

		var (
			data []byte
			err  error
		)
		if len(samples) == 1 {
			data, err = json.Marshal(samples[0])
		} else {
			data, err = json.Marshal(samples)
		}
		if err != nil {
			logger.Error().Err(err).Msg("failed to encode payload")
			return
		}

		token := client.Publish(topic, byte(*qos), false, data)
		token.Wait()
		if err := token.Error(); err != nil {
			logger.Error().Err(err).Msg("publish error")
			return
		}
		logEvent(logger.Info(), samples).Str("topic", topic).Msg("published")
	}

	publish()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("received shutdown signal, disconnecting")
			client.Disconnect(250)
			return
		case <-ticker.C:
			publish()
		}
	}
}

func checkFlags(batch, qos int, radius float64) error {
	switch {
	case batch < 1:
		return fmt.Errorf("batch must be >= 1, got %d", batch)
	case qos < 0 || qos > 2:
		return fmt.Errorf("qos must be 0, 1 or 2, got %d", qos)
	case radius < 0:
		return fmt.Errorf("radius must be >= 0, got %v", radius)
	}
	return nil
}

func logEvent(e *zerolog.Event, samples []samplePayload) *zerolog.Event {
	return e.Int("count", len(samples)).
		Float64("lat", samples[0].Latitude).
		Float64("lon", samples[0].Longitude).
		Float64("signal", samples[0].SignalStrength)
}

// randomPoint returns a uniformly distributed point within radius meters of
// the center, using an equirectangular approximation.
func randomPoint(lat, lon, radius float64) (float64, float64) {
	r := radius * math.Sqrt(rand.Float64())
	theta := rand.Float64() * 2 * math.Pi

	dLat := r * math.Sin(theta) / metersPerDegree
	dLon := r * math.Cos(theta) / (metersPerDegree * math.Cos(lat*math.Pi/180))

	return clamp(lat+dLat, -90, 90), clamp(lon+dLon, -180, 180)
}

func randomSignal(base, jitter float64) float64 {
	if jitter <= 0 {
		return base
	}
	return math.Round((base+(rand.Float64()*2-1)*jitter)*10) / 10
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
