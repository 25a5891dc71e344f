// Package timeutil canonicalizes timestamps to UTC.
//
// Values that carry an offset are converted to the same instant in UTC.
// Values without an offset ("naive" wall-clock strings) are taken to already
// be UTC and are never reinterpreted in the server's local zone.
package timeutil

import (
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// offsetLayouts carry an explicit zone designator.
var offsetLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
}

// naiveLayouts have no zone designator; time.Parse yields UTC for these.
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ToUTC returns the same instant expressed in UTC, or nil for nil input.
func ToUTC(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// Parse reads an ISO-8601 timestamp. Naive values are treated as UTC.
// The result is always in UTC.
func Parse(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("timeutil: empty timestamp")
	}

	for _, layout := range offsetLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("timeutil: %q is not an ISO-8601 timestamp", s)
}

// ParseOptional parses s when non-empty and returns nil otherwise.
func ParseOptional(s string) (*time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	t, err := Parse(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Timestamp is a JSON string timestamp accepting both offset-aware and naive
// ISO-8601 values. It always holds a UTC time once decoded.
type Timestamp struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("timeutil: timestamp must be a string: %w", err)
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Time.UTC().Format(time.RFC3339Nano))
}

// Ptr returns the wrapped time as a pointer, or nil for a nil Timestamp.
func (t *Timestamp) Ptr() *time.Time {
	if t == nil {
		return nil
	}
	v := t.Time
	return &v
}
