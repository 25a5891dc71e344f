package main

import (
	"math"
	"testing"
)

func TestRandomPoint_WithinRadius(t *testing.T) {
	const lat, lon, radius = 31.7683, 35.2137, 500.0

	for i := 0; i < 1000; i++ {
		pLat, pLon := randomPoint(lat, lon, radius)
		dy := (pLat - lat) * metersPerDegree
		dx := (pLon - lon) * metersPerDegree * math.Cos(lat*math.Pi/180)
		if d := math.Hypot(dx, dy); d > radius+1e-6 {
			t.Fatalf("point %d is %.2fm from center, want <= %.0fm", i, d, radius)
		}
	}
}

func TestRandomPoint_Clamped(t *testing.T) {
	pLat, pLon := randomPoint(89.9999, 179.9999, 5000)
	if pLat < -90 || pLat > 90 || pLon < -180 || pLon > 180 {
		t.Errorf("point (%v, %v) out of range", pLat, pLon)
	}
}

func TestRandomSignal(t *testing.T) {
	if got := randomSignal(-70, 0); got != -70 {
		t.Errorf("no jitter: got %v, want -70", got)
	}
	for i := 0; i < 1000; i++ {
		if got := randomSignal(-70, 8); got < -78.05 || got > -61.95 {
			t.Fatalf("signal %v outside -70±8", got)
		}
	}
}

func TestCheckFlags(t *testing.T) {
	tests := []struct {
		name    string
		batch   int
		qos     int
		radius  float64
		wantErr bool
	}{
		{"defaults", 1, 1, 500, false},
		{"array batch", 10, 0, 0, false},
		{"zero batch", 0, 1, 500, true},
		{"negative batch", -2, 1, 500, true},
		{"qos too high", 1, 3, 500, true},
		{"negative radius", 1, 1, -1, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := checkFlags(tc.batch, tc.qos, tc.radius)
			if (err != nil) != tc.wantErr {
				t.Errorf("checkFlags(%d, %d, %v) err = %v, wantErr %v", tc.batch, tc.qos, tc.radius, err, tc.wantErr)
			}
		})
	}
}
