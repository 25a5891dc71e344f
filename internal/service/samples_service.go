package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ynon123/geosamples/internal/geo"
	"github.com/ynon123/geosamples/internal/storage"
	"github.com/ynon123/geosamples/internal/timeutil"
)

// MaxLimit is the largest page any query may request.
const MaxLimit = 5000

// ValidationError is returned when input is rejected before any store call.
// Message is the human-readable rule that was violated.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// SampleCreate is one already-validated sample to ingest.
type SampleCreate struct {
	Latitude       float64
	Longitude      float64
	SignalStrength float64
	Timestamp      time.Time
}

// ListParams selects a page of samples by time range.
type ListParams struct {
	Limit  int
	Offset int
	From   *time.Time
	To     *time.Time
}

// FilterParams selects a page of samples by optional polygon and time range.
type FilterParams struct {
	Polygon *geo.Polygon
	From    *time.Time
	To      *time.Time
	Limit   int
	Offset  int
}

// SamplesService orchestrates sample ingestion and querying. Inputs are
// normalized and validated here so the repository only ever sees UTC times,
// well-formed rings and in-range pages.
type SamplesService struct {
	repo storage.SamplesRepository
}

// NewSamplesService creates a SamplesService backed by repo.
func NewSamplesService(repo storage.SamplesRepository) *SamplesService {
	return &SamplesService{repo: repo}
}

// List returns samples within the optional time bounds, most recent first.
func (s *SamplesService) List(ctx context.Context, p ListParams) ([]storage.Sample, error) {
	page, err := checkPage(p.Limit, p.Offset)
	if err != nil {
		return nil, err
	}

	tr := storage.TimeRange{From: timeutil.ToUTC(p.From), To: timeutil.ToUTC(p.To)}

	samples, err := s.repo.ListSamples(ctx, tr, page)
	if err != nil {
		return nil, fmt.Errorf("service: List: %w", err)
	}

	zerolog.Ctx(ctx).Info().
		Int("result", len(samples)).
		Int("limit", page.Limit).
		Int("offset", page.Offset).
		Msg("list_samples")

	return samples, nil
}

// Ingest normalizes every timestamp to UTC and inserts all items as one unit
// of work. It returns the number inserted; on any error nothing is committed.
func (s *SamplesService) Ingest(ctx context.Context, items []SampleCreate) (int, error) {
	batch := make([]storage.NewSample, 0, len(items))
	for i, it := range items {
		if it.Timestamp.IsZero() {
			return 0, &ValidationError{
				Field:   "timestamp",
				Message: fmt.Sprintf("item %d: timestamp is required", i),
			}
		}
		batch = append(batch, storage.NewSample{
			Latitude:       it.Latitude,
			Longitude:      it.Longitude,
			SignalStrength: it.SignalStrength,
			Timestamp:      it.Timestamp.UTC(),
		})
	}

	n, err := s.repo.InsertSamples(ctx, batch)
	if err != nil {
		return 0, fmt.Errorf("service: Ingest: %w", err)
	}

	zerolog.Ctx(ctx).Info().Int("inserted", n).Msg("ingest_samples")

	return n, nil
}

// Filter returns samples contained by the optional polygon and within the
// optional time bounds, most recent first.
//
// Errors:
//   - *ValidationError when the polygon is malformed, to_time precedes
//     from_time, or the page is out of range. No query is executed.
//   - Wrapped repository errors otherwise.
func (s *SamplesService) Filter(ctx context.Context, p FilterParams) ([]storage.Sample, error) {
	page, err := checkPage(p.Limit, p.Offset)
	if err != nil {
		return nil, err
	}

	tr := storage.TimeRange{From: timeutil.ToUTC(p.From), To: timeutil.ToUTC(p.To)}
	if tr.From != nil && tr.To != nil && tr.To.Before(*tr.From) {
		return nil, &ValidationError{Field: "to_time", Message: "to_time must be >= from_time"}
	}

	var ring geo.Ring
	if p.Polygon != nil {
		ring, err = geo.ValidatePolygon(p.Polygon)
		if err != nil {
			return nil, &ValidationError{Field: "polygon", Message: err.Error()}
		}
	}

	samples, err := s.repo.FilterSamples(ctx, ring, tr, page)
	if err != nil {
		return nil, fmt.Errorf("service: Filter: %w", err)
	}

	zerolog.Ctx(ctx).Info().
		Int("result", len(samples)).
		Int("limit", page.Limit).
		Int("offset", page.Offset).
		Bool("polygon", ring != nil).
		Msg("filter_samples")

	return samples, nil
}

func checkPage(limit, offset int) (storage.Page, error) {
	if limit < 1 || limit > MaxLimit {
		return storage.Page{}, &ValidationError{
			Field:   "limit",
			Message: fmt.Sprintf("limit must be between 1 and %d", MaxLimit),
		}
	}
	if offset < 0 {
		return storage.Page{}, &ValidationError{Field: "offset", Message: "offset must be >= 0"}
	}
	return storage.Page{Limit: limit, Offset: offset}, nil
}
