// Package ingest bridges an MQTT broker into the samples service. Each
// message carries the same JSON accepted by POST /samples (one object or an
// array) and is stored as one transaction.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/ynon123/geosamples/internal/config"
	"github.com/ynon123/geosamples/internal/logging"
	"github.com/ynon123/geosamples/internal/metrics"
	"github.com/ynon123/geosamples/internal/payload"
	"github.com/ynon123/geosamples/internal/service"
)

const (
	connectTimeout    = 10 * time.Second
	disconnectQuiesce = 250 // ms
)

// Ingester stores a batch of samples atomically.
type Ingester interface {
	Ingest(ctx context.Context, items []service.SampleCreate) (int, error)
}

// Subscriber consumes sample messages from an MQTT topic.
type Subscriber struct {
	cfg     config.MQTTConfig
	svc     Ingester
	logger  zerolog.Logger
	timeout time.Duration

	mu     sync.Mutex
	client mqtt.Client
	ctx    context.Context
}

// NewSubscriber creates a Subscriber. timeout bounds the store call made for
// each message.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewSubscriber(cfg config.MQTTConfig, svc Ingester, logger zerolog.Logger, timeout time.Duration) *Subscriber {
	return &Subscriber{
		cfg:     cfg,
		svc:     svc,
		logger:  logger.With().Str("component", "mqtt_ingest").Logger(),
		timeout: timeout,
	}
}

// Start connects to the broker and subscribes. The subscription is renewed
// on every reconnect. Message handling stops when ctx is cancelled or Stop
// is called.
func (s *Subscriber) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		return errors.New("ingest: subscriber already started")
	}
	s.ctx = ctx

	opts := mqtt.NewClientOptions().
		AddBroker(s.cfg.BrokerURL).
		SetClientID(s.cfg.ClientID).
		SetOrderMatters(false).
		SetAutoReconnect(true).
		SetCleanSession(true).
		SetConnectTimeout(connectTimeout)

	opts.SetOnConnectHandler(func(c mqtt.Client) {
		token := c.Subscribe(s.cfg.Topic, byte(s.cfg.QoS), s.handle)
		go func() {
			token.Wait()
			if err := token.Error(); err != nil {
				s.logger.Error().Err(err).Str("topic", s.cfg.Topic).Msg("subscribe failed")
				return
			}
			s.logger.Info().Str("topic", s.cfg.Topic).Int("qos", s.cfg.QoS).Msg("subscribed")
		}()
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		s.logger.Warn().Err(err).Msg("broker connection lost")
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("ingest: connect to %s: timed out", s.cfg.BrokerURL)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("ingest: connect to %s: %w", s.cfg.BrokerURL, err)
	}

	s.client = client
	s.logger.Info().Str("broker", s.cfg.BrokerURL).Str("client_id", s.cfg.ClientID).Msg("connected to broker")
	return nil
}

// Stop disconnects from the broker. It is safe to call on a Subscriber that
// was never started.
func (s *Subscriber) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil {
		return
	}
	s.client.Disconnect(disconnectQuiesce)
	s.client = nil
	s.logger.Info().Msg("disconnected from broker")
}

func (s *Subscriber) handle(_ mqtt.Client, msg mqtt.Message) {
	base := s.ctx
	if base == nil {
		base = context.Background()
	}
	if base.Err() != nil {
		return
	}

	ctx, cancel := context.WithTimeout(base, s.timeout)
	defer cancel()

	logger := s.logger.With().Str("topic", msg.Topic()).Logger()
	ctx = logging.ContextWithRequestID(ctx, logger, logging.NewRequestID())

	n, err := s.process(ctx, msg.Payload())
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Int("bytes", len(msg.Payload())).Msg("message rejected")
		return
	}
	zerolog.Ctx(ctx).Debug().Int("inserted", n).Msg("message stored")
}

// process decodes, validates and stores one message body.
func (s *Subscriber) process(ctx context.Context, body []byte) (int, error) {
	items, err := payload.DecodeSamples(body)
	if err != nil {
		return 0, err
	}
	if err := payload.ValidateSamples(items); err != nil {
		return 0, err
	}

	n, err := s.svc.Ingest(ctx, payload.ToCreates(items))
	if err != nil {
		return 0, err
	}

	metrics.RecordIngested("mqtt", n)
	return n, nil
}
