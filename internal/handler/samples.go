package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ynon123/geosamples/internal/metrics"
	"github.com/ynon123/geosamples/internal/payload"
	"github.com/ynon123/geosamples/internal/service"
	"github.com/ynon123/geosamples/internal/storage"
	"github.com/ynon123/geosamples/internal/timeutil"
)

type sampleJSON struct {
	ID             uuid.UUID          `json:"id"`
	Latitude       float64            `json:"latitude"`
	Longitude      float64            `json:"longitude"`
	SignalStrength float64            `json:"signal_strength"`
	Timestamp      timeutil.Timestamp `json:"timestamp"`
}

func toSampleJSON(samples []storage.Sample) []sampleJSON {
	out := make([]sampleJSON, len(samples))
	for i, s := range samples {
		out[i] = sampleJSON{
			ID:             s.ID,
			Latitude:       s.Latitude,
			Longitude:      s.Longitude,
			SignalStrength: s.SignalStrength,
			Timestamp:      timeutil.Timestamp{Time: s.Timestamp},
		}
	}
	return out
}

// ListSamples handles GET /samples
//
// Query params:
//   - limit     (optional) int       1..5000, default 200
//   - offset    (optional) int       >= 0, default 0
//   - from_time (optional) ISO-8601  inclusive lower bound
//   - to_time   (optional) ISO-8601  inclusive upper bound
//
// Timestamps without an offset are read as UTC.
//
// Response 200:
//
//	[{"id":"…","latitude":31.77,"longitude":35.21,"signal_strength":-70,"timestamp":"2024-01-01T12:00:00Z"}]
//
// Response 400: invalid query parameters.
// Response 500: storage error.
func (h *Handler) ListSamples(c *gin.Context) {
	limit, ok := parseIntQuery(c, "limit", payload.DefaultListLimit)
	if !ok {
		return
	}

	offset, ok := parseIntQuery(c, "offset", 0)
	if !ok {
		return
	}

	from, ok := parseTimeQuery(c, "from_time")
	if !ok {
		return
	}

	to, ok := parseTimeQuery(c, "to_time")
	if !ok {
		return
	}

	samples, err := h.samples.List(c.Request.Context(), service.ListParams{
		Limit:  limit,
		Offset: offset,
		From:   from,
		To:     to,
	})
	if err != nil {
		writeError(c, err, "failed to list samples")
		return
	}

	c.JSON(http.StatusOK, toSampleJSON(samples))
}

// IngestSamples handles POST /samples
//
// Body: one sample object or an array of them.
//
//	{"latitude":31.77,"longitude":35.21,"signal_strength":-70,"timestamp":"2024-01-01T12:00:00"}
//
// All items are inserted in a single transaction; if any item is invalid or
// the insert fails, nothing is stored.
//
// Response 201: {"inserted":N}
// Response 400: malformed body or invalid item.
// Response 500: storage error.
func (h *Handler) IngestSamples(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read request body"})
		return
	}

	items, err := payload.DecodeSamples(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := payload.ValidateSamples(items); err != nil {
		writeError(c, err, "invalid samples")
		return
	}

	n, err := h.samples.Ingest(c.Request.Context(), payload.ToCreates(items))
	if err != nil {
		writeError(c, err, "failed to store samples")
		return
	}

	metrics.RecordIngested("http", n)

	c.JSON(http.StatusCreated, gin.H{"inserted": n})
}

// FilterSamples handles POST /samples/filter
//
// Body (all fields optional):
//
//	{
//	  "polygon": {"type":"Polygon","coordinates":[[[lon,lat],…,[lon,lat]]]},
//	  "from_time": "2024-01-01T00:00:00Z",
//	  "to_time":   "2024-01-02T00:00:00Z",
//	  "limit": 1000,
//	  "offset": 0
//	}
//
// Only the outer ring of the polygon is used. Points on the ring boundary
// are not contained.
//
// Response 200: list of samples, most recent first.
// Response 400: malformed polygon, to_time before from_time, bad paging.
// Response 500: storage error.
func (h *Handler) FilterSamples(c *gin.Context) {
	var req payload.FilterIn
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	if err := payload.Validate(&req); err != nil {
		writeError(c, err, "invalid filter")
		return
	}

	samples, err := h.samples.Filter(c.Request.Context(), service.FilterParams{
		Polygon: req.Polygon,
		From:    req.FromTime.Ptr(),
		To:      req.ToTime.Ptr(),
		Limit:   req.LimitOrDefault(),
		Offset:  req.OffsetOrDefault(),
	})
	if err != nil {
		writeError(c, err, "failed to filter samples")
		return
	}

	c.JSON(http.StatusOK, toSampleJSON(samples))
}

// writeError maps service and validation errors to 400 with their message.
// Anything else is logged and reported as a 500 carrying only msg.
func writeError(c *gin.Context, err error, msg string) {
	var verr *service.ValidationError
	var ferr *payload.FieldError

	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Message})
	case errors.As(err, &ferr):
		c.JSON(http.StatusBadRequest, gin.H{"error": ferr.Error()})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "request timed out"})
	default:
		zerolog.Ctx(c.Request.Context()).Error().Err(err).Msg(msg)
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
	}
}

func parseIntQuery(c *gin.Context, name string, def int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be a valid integer"})
		return 0, false
	}
	return v, true
}

func parseTimeQuery(c *gin.Context, name string) (*time.Time, bool) {
	t, err := timeutil.ParseOptional(c.Query(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be an ISO-8601 timestamp"})
		return nil, false
	}
	return t, true
}
