package domain

import (
	"context"
	"time"
)

// RawReading is the JSON body of a source topic message.
// Numeric fields are pointers so an absent field is reported rather than read as zero.
type RawReading struct {
	StationID          string   `json:"station_id"`
	ObservedAt         string   `json:"observed_at,omitempty"` // RFC 3339
	DryBulbTemperature *float64 `json:"dry_bulb_temperature"`
	RelativeHumidity   *float64 `json:"relative_humidity"`
	WindSpeed          *float64 `json:"wind_speed"`
}

// RawEvent represents an unprocessed message from the source topic.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// ReadingEvent is a reading enriched with its apparent temperature.
type ReadingEvent struct {
	ID                  string    `json:"id"`
	StationID           string    `json:"station_id"`
	ObservedAt          time.Time `json:"observed_at"`
	DryBulbTemperature  float64   `json:"dry_bulb_temperature"`
	RelativeHumidity    float64   `json:"relative_humidity"`
	WindSpeed           float64   `json:"wind_speed"`
	ApparentTemperature float64   `json:"apparent_temperature"`
	Comfort             string    `json:"comfort,omitempty"`

	RawPayload  []byte    `json:"-"`
	ProcessedAt time.Time `json:"processed_at"`
}

// Reading returns the engine inputs carried by the event.
func (e ReadingEvent) Reading() Reading {
	return Reading{
		DryBulbTemperature: e.DryBulbTemperature,
		RelativeHumidity:   e.RelativeHumidity,
		WindSpeed:          e.WindSpeed,
	}
}

// OutputEvent is the serialized form destined for the sink topic.
type OutputEvent struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}
