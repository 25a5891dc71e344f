package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ynon123/geosamples/internal/geo"
	"github.com/ynon123/geosamples/internal/metrics"
)

// queryTimeout is applied to every database query.
const queryTimeout = 5 * time.Second

// pgSamplesRepository is the pgx-backed implementation of SamplesRepository.
type pgSamplesRepository struct {
	pool *pgxpool.Pool
}

// NewSamplesRepository creates a SamplesRepository backed by the given connection pool.
func NewSamplesRepository(pool *pgxpool.Pool) SamplesRepository {
	return &pgSamplesRepository{pool: pool}
}

// InsertSamples queues every insert in one batch inside one transaction.
// The geom column is generated by the database from (longitude, latitude).
func (r *pgSamplesRepository) InsertSamples(ctx context.Context, samples []NewSample) (n int, err error) {
	if len(samples) == 0 {
		return 0, nil
	}

	start := time.Now()
	defer func() { metrics.RecordDBQuery("insert_samples", time.Since(start), err) }()

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("storage: InsertSamples: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	for _, s := range samples {
		batch.Queue(insertSampleSQL, s.Latitude, s.Longitude, s.SignalStrength, s.Timestamp.UTC())
	}

	results := tx.SendBatch(ctx, batch)
	for i := range samples {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return 0, fmt.Errorf("storage: InsertSamples: item %d: %w", i, err)
		}
	}
	if err := results.Close(); err != nil {
		return 0, fmt.Errorf("storage: InsertSamples: close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("storage: InsertSamples: commit: %w", err)
	}

	return len(samples), nil
}

// ListSamples returns samples within tr, most recent first.
func (r *pgSamplesRepository) ListSamples(ctx context.Context, tr TimeRange, page Page) (out []Sample, err error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("list_samples", time.Since(start), err) }()

	sql, args := buildSamplesQuery("", tr, page)
	out, err = r.query(ctx, sql, args)
	if err != nil {
		return nil, fmt.Errorf("storage: ListSamples: %w", err)
	}
	return out, nil
}

// FilterSamples returns samples within tr contained by ring, most recent first.
func (r *pgSamplesRepository) FilterSamples(ctx context.Context, ring geo.Ring, tr TimeRange, page Page) (out []Sample, err error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("filter_samples", time.Since(start), err) }()

	var polygon string
	if ring != nil {
		raw, err := ring.GeoJSON()
		if err != nil {
			return nil, fmt.Errorf("storage: FilterSamples: encode polygon: %w", err)
		}
		polygon = string(raw)
	}

	sql, args := buildSamplesQuery(polygon, tr, page)
	out, err = r.query(ctx, sql, args)
	if err != nil {
		return nil, fmt.Errorf("storage: FilterSamples: %w", err)
	}
	return out, nil
}

func (r *pgSamplesRepository) query(ctx context.Context, sql string, args []any) ([]Sample, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	samples := make([]Sample, 0)
	for rows.Next() {
		var s Sample
		if err := rows.Scan(&s.ID, &s.Latitude, &s.Longitude, &s.SignalStrength, &s.Timestamp); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		s.Timestamp = s.Timestamp.UTC()
		samples = append(samples, s)
	}

	return samples, rows.Err()
}
