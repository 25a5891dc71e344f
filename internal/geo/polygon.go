// Package geo validates client-supplied polygon geometry before it is used
// in spatial predicates.
//
// Only single-ring polygons are supported. The validator checks structure,
// coordinate bounds and ring closure; it does not check self-intersection,
// winding order or area.
package geo

import (
	"fmt"

	"github.com/goccy/go-json"
)

// SRID is the spatial reference used for every stored and queried geometry (WGS84).
const SRID = 4326

// MinRingPoints is the smallest closed ring: a triangle plus its closing point.
const MinRingPoints = 4

// Polygon is a GeoJSON-like polygon as received from clients. Coordinates are
// rings of [lon, lat] pairs; only the first ring is used.
type Polygon struct {
	Type        string        `json:"type"`
	Coordinates [][][]float64 `json:"coordinates"`
}

// Point is a single (longitude, latitude) vertex.
type Point struct {
	Lon float64
	Lat float64
}

// Ring is a validated, closed sequence of vertices.
type Ring []Point

// PolygonError reports the first polygon rule that was violated.
type PolygonError struct {
	Reason string
}

func (e *PolygonError) Error() string { return e.Reason }

func invalid(format string, args ...any) *PolygonError {
	return &PolygonError{Reason: fmt.Sprintf(format, args...)}
}

// ValidatePolygon checks p and returns its outer ring.
// The returned error is always a *PolygonError.
func ValidatePolygon(p *Polygon) (Ring, error) {
	if p == nil {
		return nil, invalid("polygon is required")
	}
	if p.Type != "Polygon" {
		return nil, invalid("polygon type must be %q, got %q", "Polygon", p.Type)
	}
	if len(p.Coordinates) == 0 {
		return nil, invalid("coordinates must be a non-empty list")
	}

	raw := p.Coordinates[0]
	if len(raw) < MinRingPoints {
		return nil, invalid("polygon ring must have at least %d points (including closing point)", MinRingPoints)
	}

	ring := make(Ring, 0, len(raw))
	for i, pair := range raw {
		if len(pair) != 2 {
			return nil, invalid("polygon point %d must be [lon, lat]", i)
		}
		lon, lat := pair[0], pair[1]
		if lon < -180 || lon > 180 {
			return nil, invalid("polygon lon out of range (-180..180) at point %d: %v", i, lon)
		}
		if lat < -90 || lat > 90 {
			return nil, invalid("polygon lat out of range (-90..90) at point %d: %v", i, lat)
		}
		ring = append(ring, Point{Lon: lon, Lat: lat})
	}

	if ring[0] != ring[len(ring)-1] {
		return nil, invalid("polygon ring must be closed (first point must equal last point)")
	}

	return ring, nil
}

// GeoJSON encodes the ring as a GeoJSON Polygon geometry, suitable for
// PostGIS ST_GeomFromGeoJSON.
func (r Ring) GeoJSON() ([]byte, error) {
	coords := make([][2]float64, len(r))
	for i, p := range r {
		coords[i] = [2]float64{p.Lon, p.Lat}
	}
	return json.Marshal(struct {
		Type        string         `json:"type"`
		Coordinates [][][2]float64 `json:"coordinates"`
	}{
		Type:        "Polygon",
		Coordinates: [][][2]float64{coords},
	})
}
