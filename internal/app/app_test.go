package app

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ynon123/geosamples/internal/config"
	"github.com/ynon123/geosamples/internal/geo"
	"github.com/ynon123/geosamples/internal/handler"
	"github.com/ynon123/geosamples/internal/service"
	"github.com/ynon123/geosamples/internal/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubRepo struct {
	samples []storage.Sample
}

func (r *stubRepo) InsertSamples(_ context.Context, in []storage.NewSample) (int, error) {
	for _, s := range in {
		r.samples = append(r.samples, storage.Sample{
			ID: uuid.New(), Latitude: s.Latitude, Longitude: s.Longitude,
			SignalStrength: s.SignalStrength, Timestamp: s.Timestamp,
		})
	}
	return len(in), nil
}

func (r *stubRepo) ListSamples(context.Context, storage.TimeRange, storage.Page) ([]storage.Sample, error) {
	return r.samples, nil
}

func (r *stubRepo) FilterSamples(context.Context, geo.Ring, storage.TimeRange, storage.Page) ([]storage.Sample, error) {
	return r.samples, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Port: 8080, RequestTimeout: time.Second},
	}
}

func buildTestEngine(logs *bytes.Buffer) *gin.Engine {
	svc := service.NewSamplesService(&stubRepo{})
	return NewRouter(testConfig(), zerolog.New(logs), handler.New(svc, nil))
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRouter_Routes(t *testing.T) {
	r := buildTestEngine(&bytes.Buffer{})

	tests := []struct {
		method string
		path   string
		body   string
		want   int
	}{
		{http.MethodGet, "/health", "", http.StatusOK},
		{http.MethodGet, "/ready", "", http.StatusOK},
		{http.MethodGet, "/samples", "", http.StatusOK},
		{http.MethodPost, "/samples", `{"latitude":1,"longitude":2,"signal_strength":-50,"timestamp":"2026-02-04T12:00:00Z"}`, http.StatusCreated},
		{http.MethodPost, "/samples/filter", `{}`, http.StatusOK},
		{http.MethodGet, "/nope", "", http.StatusNotFound},
	}

	for _, tc := range tests {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, strings.NewReader(tc.body))
			w := serve(r, req)
			if w.Code != tc.want {
				t.Errorf("status = %d, want %d: %s", w.Code, tc.want, w.Body.String())
			}
			if w.Header().Get("X-Request-ID") == "" {
				t.Error("missing X-Request-ID header")
			}
		})
	}
}

func TestRouter_Metrics(t *testing.T) {
	r := buildTestEngine(&bytes.Buffer{})
	serve(r, httptest.NewRequest(http.MethodGet, "/health", nil))

	w := serve(r, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "geosamples_http_requests_total") {
		t.Error("metrics output missing geosamples_http_requests_total")
	}
}

func TestRouter_AccessLogCarriesRequestID(t *testing.T) {
	var logs bytes.Buffer
	r := buildTestEngine(&logs)

	req := httptest.NewRequest(http.MethodGet, "/samples", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	serve(r, req)

	if !strings.Contains(logs.String(), `"request_id":"abc-123"`) {
		t.Errorf("logs missing request id: %s", logs.String())
	}
	if !strings.Contains(logs.String(), `"list_samples"`) {
		t.Errorf("service log line missing: %s", logs.String())
	}
}

func TestWithCORS(t *testing.T) {
	r := buildTestEngine(&bytes.Buffer{})

	if h := withCORS(nil, r); h != http.Handler(r) {
		t.Error("withCORS without origins should return the router unchanged")
	}

	h := withCORS([]string{"http://app.example"}, r)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://app.example")
	w := serve(h, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://app.example" {
		t.Errorf("Allow-Origin = %q, want http://app.example", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = serve(h, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Allow-Origin = %q for disallowed origin, want empty", got)
	}
}

func TestDBError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := error(&DBError{Op: "ping", Err: cause})

	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}
	if !strings.Contains(err.Error(), `"ping"`) {
		t.Errorf("Error() = %q, want it to name the op", err.Error())
	}
}

func TestConnect_InvalidDSN(t *testing.T) {
	_, err := connect(context.Background(), config.DatabaseConfig{URL: "postgres://u:p@localhost:notaport/db", MaxConns: 1})
	var dbErr *DBError
	if !errors.As(err, &dbErr) || dbErr.Op != "parse_dsn" {
		t.Errorf("err = %v, want DBError parse_dsn", err)
	}
}
