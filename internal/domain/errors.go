package domain

import (
	"errors"
	"strings"
)

// ErrInvalidInput is matched by every validation failure returned from this package.
var ErrInvalidInput = errors.New("invalid input")

// Wire names of the reading fields, used in FieldError.Field.
const (
	FieldDryBulbTemperature = "dry_bulb_temperature"
	FieldRelativeHumidity   = "relative_humidity"
	FieldWindSpeed          = "wind_speed"
)

// FieldError describes why a single input field was rejected.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// InvalidInputError lists every field that failed validation.
type InvalidInputError struct {
	Fields []FieldError
}

func (e *InvalidInputError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Reason)
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

// Is reports whether target is ErrInvalidInput.
func (e *InvalidInputError) Is(target error) bool {
	return target == ErrInvalidInput
}

// HasField reports whether the named field is among the failures.
func (e *InvalidInputError) HasField(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}
