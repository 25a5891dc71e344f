package ingest

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/ynon123/geosamples/internal/config"
	"github.com/ynon123/geosamples/internal/metrics"
	"github.com/ynon123/geosamples/internal/service"
)

type fakeIngester struct {
	got         [][]service.SampleCreate
	err         error
	hasDeadline bool
}

func (f *fakeIngester) Ingest(ctx context.Context, items []service.SampleCreate) (int, error) {
	_, f.hasDeadline = ctx.Deadline()
	f.got = append(f.got, items)
	if f.err != nil {
		return 0, f.err
	}
	return len(items), nil
}

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

func newTestSubscriber(svc Ingester, buf *bytes.Buffer) *Subscriber {
	cfg := config.MQTTConfig{BrokerURL: "tcp://localhost:1883", Topic: "samples/+/ingest", ClientID: "test", QoS: 1}
	return NewSubscriber(cfg, svc, zerolog.New(buf), time.Second)
}

const sample = `{"latitude":31.78,"longitude":35.22,"signal_strength":-70.5,"timestamp":"2026-02-04T12:00:00"}`

func TestProcess(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		ingestErr error
		wantN     int
		wantErr   string
		wantCalls int
	}{
		{"single", sample, nil, 1, "", 1},
		{"array", "[" + sample + "," + sample + "]", nil, 2, "", 1},
		{"empty", "  ", nil, 0, "request body is empty", 0},
		{"garbage", "not json", nil, 0, "invalid sample", 0},
		{"invalid item", `[` + sample + `,{"latitude":200,"longitude":0,"signal_strength":0,"timestamp":"2026-02-04T12:00:00Z"}]`, nil, 0, "item 1: latitude", 0},
		{"store error", sample, errors.New("storage: InsertSamples: boom"), 0, "boom", 1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := &fakeIngester{err: tc.ingestErr}
			s := newTestSubscriber(svc, &bytes.Buffer{})

			n, err := s.process(context.Background(), []byte(tc.body))
			if tc.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
					t.Fatalf("err = %v, want it to contain %q", err, tc.wantErr)
				}
			} else if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if n != tc.wantN {
				t.Errorf("n = %d, want %d", n, tc.wantN)
			}
			if len(svc.got) != tc.wantCalls {
				t.Errorf("Ingest called %d times, want %d", len(svc.got), tc.wantCalls)
			}
		})
	}
}

func TestProcess_RecordsMetric(t *testing.T) {
	counter := metrics.SamplesIngested.WithLabelValues("mqtt")
	before := testutil.ToFloat64(counter)

	s := newTestSubscriber(&fakeIngester{}, &bytes.Buffer{})
	if _, err := s.process(context.Background(), []byte("["+sample+","+sample+"]")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := testutil.ToFloat64(counter) - before; got != 2 {
		t.Errorf("mqtt ingested delta = %v, want 2", got)
	}
}

func TestHandle_LogsAndBoundsContext(t *testing.T) {
	var buf bytes.Buffer
	svc := &fakeIngester{}
	s := newTestSubscriber(svc, &buf)

	s.handle(nil, fakeMessage{topic: "samples/dev-1/ingest", payload: []byte(`{"latitude":1}`)})
	if len(svc.got) != 0 {
		t.Fatal("invalid message reached the service")
	}
	line := buf.String()
	for _, want := range []string{`"message rejected"`, `"topic":"samples/dev-1/ingest"`, `"request_id":"`} {
		if !strings.Contains(line, want) {
			t.Errorf("log %s missing %s", line, want)
		}
	}

	s.handle(nil, fakeMessage{topic: "samples/dev-1/ingest", payload: []byte(sample)})
	if len(svc.got) != 1 {
		t.Fatalf("Ingest called %d times, want 1", len(svc.got))
	}
	if !svc.hasDeadline {
		t.Error("store call had no deadline")
	}
}

func TestHandle_StoppedContext(t *testing.T) {
	svc := &fakeIngester{}
	s := newTestSubscriber(svc, &bytes.Buffer{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.ctx = ctx

	s.handle(nil, fakeMessage{topic: "samples/x/ingest", payload: []byte(sample)})
	if len(svc.got) != 0 {
		t.Error("message handled after shutdown")
	}
}

func TestStop_NotStarted(t *testing.T) {
	s := newTestSubscriber(&fakeIngester{}, &bytes.Buffer{})
	s.Stop()
}
