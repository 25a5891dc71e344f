// Package payload defines the wire shapes accepted by the sample endpoints
// and the validation rules applied to them before they reach the service
// layer. It is shared by the HTTP handlers and the MQTT ingest bridge.
package payload

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/ynon123/geosamples/internal/geo"
	"github.com/ynon123/geosamples/internal/service"
	"github.com/ynon123/geosamples/internal/timeutil"
)

const (
	// DefaultListLimit is the page size of GET /samples.
	DefaultListLimit = 200

	// DefaultFilterLimit is the page size of POST /samples/filter.
	DefaultFilterLimit = 1000
)

// SampleIn is one sample in a POST /samples body. All fields are required;
// pointers distinguish a missing field from a legitimate zero value.
type SampleIn struct {
	Latitude       *float64            `json:"latitude" validate:"required,min=-90,max=90"`
	Longitude      *float64            `json:"longitude" validate:"required,min=-180,max=180"`
	SignalStrength *float64            `json:"signal_strength" validate:"required"`
	Timestamp      *timeutil.Timestamp `json:"timestamp" validate:"required"`
}

// FilterIn is the body of POST /samples/filter.
type FilterIn struct {
	Polygon  *geo.Polygon        `json:"polygon"`
	FromTime *timeutil.Timestamp `json:"from_time"`
	ToTime   *timeutil.Timestamp `json:"to_time"`
	Limit    *int                `json:"limit" validate:"omitempty,min=1,max=5000"`
	Offset   *int                `json:"offset" validate:"omitempty,min=0"`
}

// LimitOrDefault returns the requested limit or DefaultFilterLimit.
func (f *FilterIn) LimitOrDefault() int {
	if f.Limit == nil {
		return DefaultFilterLimit
	}
	return *f.Limit
}

// OffsetOrDefault returns the requested offset or 0.
func (f *FilterIn) OffsetOrDefault() int {
	if f.Offset == nil {
		return 0
	}
	return *f.Offset
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validator returns the shared validator. Field errors are reported using
// JSON field names.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// FieldError describes a single rejected field.
type FieldError struct {
	Index   int // position in a batch; -1 for non-batch payloads
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("item %d: %s: %s", e.Index, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks v against its struct tags. It returns nil or a
// *FieldError describing the first violation.
func Validate(v any) error {
	return validateAt(-1, v)
}

func validateAt(index int, v any) error {
	err := Validator().Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}

	fe := verrs[0]
	return &FieldError{Index: index, Field: fe.Field(), Message: describe(fe)}
}

// describe turns a validator tag failure into a human-readable reason.
func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "field required"
	case "min":
		return "must be >= " + fe.Param()
	case "max":
		return "must be <= " + fe.Param()
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}

// DecodeSamples decodes a body holding either a single sample object or an
// array of them, and returns the samples as a slice.
func DecodeSamples(body []byte) ([]SampleIn, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, errors.New("request body is empty")
	}

	if trimmed[0] == '[' {
		var items []SampleIn
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("invalid sample list: %w", err)
		}
		return items, nil
	}

	var item SampleIn
	if err := json.Unmarshal(trimmed, &item); err != nil {
		return nil, fmt.Errorf("invalid sample: %w", err)
	}
	return []SampleIn{item}, nil
}

// ValidateSamples validates every item, failing on the first invalid one.
func ValidateSamples(items []SampleIn) error {
	for i := range items {
		if err := validateAt(i, &items[i]); err != nil {
			return err
		}
	}
	return nil
}

// ToCreates converts validated samples into service input.
// Callers must run ValidateSamples first.
func ToCreates(items []SampleIn) []service.SampleCreate {
	out := make([]service.SampleCreate, len(items))
	for i, it := range items {
		out[i] = service.SampleCreate{
			Latitude:       *it.Latitude,
			Longitude:      *it.Longitude,
			SignalStrength: *it.SignalStrength,
			Timestamp:      it.Timestamp.Time,
		}
	}
	return out
}
