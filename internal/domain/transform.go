package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ParseRawEvent deserializes a RawEvent's value into a ReadingEvent.
// Missing numeric fields are reported as an *InvalidInputError. When the
// payload carries no observed_at, the message timestamp is used.
func ParseRawEvent(raw RawEvent) (ReadingEvent, error) {
	var rec RawReading
	if err := json.Unmarshal(raw.Value, &rec); err != nil {
		return ReadingEvent{}, fmt.Errorf("parse raw event: %w", err)
	}

	var missing []FieldError
	for _, f := range []struct {
		name  string
		value *float64
	}{
		{FieldDryBulbTemperature, rec.DryBulbTemperature},
		{FieldRelativeHumidity, rec.RelativeHumidity},
		{FieldWindSpeed, rec.WindSpeed},
	} {
		if f.value == nil {
			missing = append(missing, FieldError{Field: f.name, Reason: "is required"})
		}
	}
	if len(missing) > 0 {
		return ReadingEvent{}, fmt.Errorf("parse raw event: %w", &InvalidInputError{Fields: missing})
	}

	observedAt, err := parseObservedAt(rec.ObservedAt, raw.Timestamp)
	if err != nil {
		return ReadingEvent{}, fmt.Errorf("parse raw event: %w", err)
	}

	return ReadingEvent{
		StationID:          strings.TrimSpace(rec.StationID),
		ObservedAt:         observedAt,
		DryBulbTemperature: *rec.DryBulbTemperature,
		RelativeHumidity:   *rec.RelativeHumidity,
		WindSpeed:          *rec.WindSpeed,

		RawPayload: raw.Value,
	}, nil
}

// parseObservedAt parses an RFC 3339 timestamp, falling back to the message
// timestamp when the field is empty.
func parseObservedAt(value string, fallback time.Time) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		if fallback.IsZero() {
			return time.Time{}, nil
		}
		return fallback.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("observed_at: %w", err)
	}
	return t.UTC(), nil
}

// EnrichReadingEvent computes the apparent temperature for a parsed event,
// assigns its deterministic ID and comfort band, and stamps ProcessedAt.
func EnrichReadingEvent(event ReadingEvent) (ReadingEvent, error) {
	at, err := event.Reading().ApparentTemperature()
	if err != nil {
		return ReadingEvent{}, err
	}
	event.ApparentTemperature = at
	event.Comfort = ComfortBand(at)
	event.ID = generateID(event.StationID, event.ObservedAt, event.Reading())
	event.ProcessedAt = clock.Now()
	return event, nil
}

// SerializeReadingEvent marshals an enriched event into an OutputEvent keyed by its ID.
func SerializeReadingEvent(event ReadingEvent) (OutputEvent, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return OutputEvent{}, fmt.Errorf("serialize reading event: %w", err)
	}
	return OutputEvent{
		Key:   []byte(event.ID),
		Value: data,
		Headers: map[string]string{
			"station_id":   event.StationID,
			"processed_at": event.ProcessedAt.Format(time.RFC3339),
		},
	}, nil
}

// ComfortBand labels an apparent temperature (°C) for display:
//   - <0 freezing, <10 cold, <18 cool, <24 comfortable
//   - <30 warm, <38 hot, else extreme
func ComfortBand(apparentC float64) string {
	switch {
	case apparentC < 0:
		return "freezing"
	case apparentC < 10:
		return "cold"
	case apparentC < 18:
		return "cool"
	case apparentC < 24:
		return "comfortable"
	case apparentC < 30:
		return "warm"
	case apparentC < 38:
		return "hot"
	default:
		return "extreme"
	}
}

// generateID produces a deterministic ID from the station, observation time,
// and inputs. Reprocessing the same reading yields the same ID, which lets
// downstream consumers upsert idempotently.
func generateID(stationID string, observedAt time.Time, r Reading) string {
	input := fmt.Sprintf("%s|%s|%g|%g|%g",
		stationID, observedAt.UTC().Format(time.RFC3339),
		r.DryBulbTemperature, r.RelativeHumidity, r.WindSpeed)
	hash := sha256.Sum256([]byte(input))
	short := hex.EncodeToString(hash[:8])
	if stationID == "" {
		return short
	}
	return stationID + "-" + short
}
