package storage

import (
	"fmt"
	"strings"

	"github.com/ynon123/geosamples/internal/geo"
)

const insertSampleSQL = `
	INSERT INTO samples (latitude, longitude, signal_strength, timestamp)
	VALUES ($1, $2, $3, $4)`

const selectSamplesSQL = `SELECT id, latitude, longitude, signal_strength, timestamp FROM samples`

// samplesQuery accumulates predicates and positional arguments for a
// SELECT over the samples table.
type samplesQuery struct {
	where []string
	args  []any
}

func (q *samplesQuery) arg(v any) string {
	q.args = append(q.args, v)
	return fmt.Sprintf("$%d", len(q.args))
}

// buildSamplesQuery renders the SELECT for the given filters.
//
// polygonGeoJSON, when non-empty, adds a containment predicate evaluated by
// PostGIS (ST_Within: points on the ring boundary are excluded). Time bounds
// are inclusive. Ordering is applied before LIMIT/OFFSET.
func buildSamplesQuery(polygonGeoJSON string, tr TimeRange, page Page) (string, []any) {
	q := &samplesQuery{}

	if polygonGeoJSON != "" {
		q.where = append(q.where, fmt.Sprintf(
			"ST_Within(geom, ST_SetSRID(ST_GeomFromGeoJSON(%s::text), %d))",
			q.arg(polygonGeoJSON), geo.SRID,
		))
	}
	if tr.From != nil {
		q.where = append(q.where, "timestamp >= "+q.arg(tr.From.UTC()))
	}
	if tr.To != nil {
		q.where = append(q.where, "timestamp <= "+q.arg(tr.To.UTC()))
	}

	var sb strings.Builder
	sb.WriteString(selectSamplesSQL)
	if len(q.where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(q.where, " AND "))
	}
	sb.WriteString(" ORDER BY timestamp DESC, id DESC")
	sb.WriteString(" LIMIT " + q.arg(page.Limit))
	sb.WriteString(" OFFSET " + q.arg(page.Offset))

	return sb.String(), q.args
}
