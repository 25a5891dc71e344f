// Package storage provides PostgreSQL/PostGIS-backed repository implementations.
package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ynon123/geosamples/internal/geo"
)

// Sample is a persisted signal-strength measurement as returned to callers.
// The stored point geometry is never surfaced.
type Sample struct {
	ID             uuid.UUID
	Latitude       float64
	Longitude      float64
	SignalStrength float64
	Timestamp      time.Time
}

// NewSample is a sample about to be inserted. ID and geometry are assigned
// by the database.
type NewSample struct {
	Latitude       float64
	Longitude      float64
	SignalStrength float64
	Timestamp      time.Time // must already be UTC
}

// TimeRange bounds sample timestamps inclusively. Nil bounds are open.
type TimeRange struct {
	From *time.Time
	To   *time.Time
}

// Page selects a window of results after ordering.
type Page struct {
	Limit  int
	Offset int
}

// SamplesRepository defines persistence operations on the samples table.
//
// Result sets are ordered by timestamp descending (most recent first), with
// id as a tie-breaker so that pagination is stable.
type SamplesRepository interface {
	// InsertSamples writes all samples in a single transaction and returns
	// how many were inserted. Either every sample is committed or none is.
	InsertSamples(ctx context.Context, samples []NewSample) (int, error)

	// ListSamples returns samples whose timestamp falls within tr.
	ListSamples(ctx context.Context, tr TimeRange, page Page) ([]Sample, error)

	// FilterSamples returns samples within tr whose point lies within ring.
	// A nil ring applies no spatial predicate.
	FilterSamples(ctx context.Context, ring geo.Ring, tr TimeRange, page Page) ([]Sample, error)
}
