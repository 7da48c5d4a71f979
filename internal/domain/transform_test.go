package domain

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testStation = "YSSY"

func TestParseRawEvent(t *testing.T) {
	msgTime := time.Date(2024, 1, 15, 3, 0, 0, 0, time.UTC)

	t.Run("full reading", func(t *testing.T) {
		data := []byte(`{"station_id":"YSSY","observed_at":"2024-01-15T04:30:00+11:00","dry_bulb_temperature":30,"relative_humidity":50,"wind_speed":0}`)
		result, err := ParseRawEvent(RawEvent{Value: data, Timestamp: msgTime})

		require.NoError(t, err)
		assert.Equal(t, testStation, result.StationID)
		assert.Equal(t, time.Date(2024, 1, 14, 17, 30, 0, 0, time.UTC), result.ObservedAt)
		assert.InDelta(t, 30.0, result.DryBulbTemperature, 0)
		assert.InDelta(t, 50.0, result.RelativeHumidity, 0)
		assert.InDelta(t, 0.0, result.WindSpeed, 0)
		assert.Equal(t, data, result.RawPayload)
		assert.Empty(t, result.ID)
		assert.True(t, result.ProcessedAt.IsZero())
	})

	t.Run("observed_at falls back to message time", func(t *testing.T) {
		data := []byte(`{"station_id":"YSSY","dry_bulb_temperature":12.5,"relative_humidity":80,"wind_speed":4}`)
		result, err := ParseRawEvent(RawEvent{Value: data, Timestamp: msgTime})

		require.NoError(t, err)
		assert.Equal(t, msgTime, result.ObservedAt)
	})

	t.Run("zero values are present, not missing", func(t *testing.T) {
		data := []byte(`{"dry_bulb_temperature":0,"relative_humidity":0,"wind_speed":0}`)
		_, err := ParseRawEvent(RawEvent{Value: data})
		require.NoError(t, err)
	})

	t.Run("missing fields", func(t *testing.T) {
		data := []byte(`{"station_id":"YSSY","dry_bulb_temperature":20}`)
		_, err := ParseRawEvent(RawEvent{Value: data})

		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidInput)
		assert.Contains(t, err.Error(), FieldRelativeHumidity)
		assert.Contains(t, err.Error(), FieldWindSpeed)
		assert.NotContains(t, err.Error(), FieldDryBulbTemperature)
	})

	t.Run("bad observed_at", func(t *testing.T) {
		data := []byte(`{"observed_at":"yesterday","dry_bulb_temperature":20,"relative_humidity":50,"wind_speed":1}`)
		_, err := ParseRawEvent(RawEvent{Value: data})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "observed_at")
	})

	t.Run("invalid JSON", func(t *testing.T) {
		_, err := ParseRawEvent(RawEvent{Value: []byte("{invalid json")})
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrInvalidInput)
	})
}

func TestEnrichReadingEvent(t *testing.T) {
	fixedTime := time.Date(2024, 1, 15, 6, 0, 0, 0, time.UTC)
	SetClock(clockwork.NewFakeClockAt(fixedTime))
	t.Cleanup(func() { SetClock(nil) })

	observed := time.Date(2024, 1, 15, 5, 0, 0, 0, time.UTC)

	t.Run("computes apparent temperature", func(t *testing.T) {
		event, err := EnrichReadingEvent(ReadingEvent{
			StationID:          testStation,
			ObservedAt:         observed,
			DryBulbTemperature: 30,
			RelativeHumidity:   50,
			WindSpeed:          0,
		})

		require.NoError(t, err)
		assert.InDelta(t, 32.94, event.ApparentTemperature, 0.1)
		assert.Equal(t, "hot", event.Comfort)
		assert.Equal(t, fixedTime, event.ProcessedAt)
		assert.True(t, strings.HasPrefix(event.ID, testStation+"-"))
	})

	t.Run("rejects invalid reading", func(t *testing.T) {
		_, err := EnrichReadingEvent(ReadingEvent{
			StationID:          testStation,
			DryBulbTemperature: 20,
			RelativeHumidity:   120,
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("deterministic ID", func(t *testing.T) {
		in := ReadingEvent{StationID: testStation, ObservedAt: observed, DryBulbTemperature: 10, RelativeHumidity: 80, WindSpeed: 10}
		a, err := EnrichReadingEvent(in)
		require.NoError(t, err)
		b, err := EnrichReadingEvent(in)
		require.NoError(t, err)
		assert.Equal(t, a.ID, b.ID)

		in.WindSpeed = 11
		c, err := EnrichReadingEvent(in)
		require.NoError(t, err)
		assert.NotEqual(t, a.ID, c.ID)
	})

	t.Run("ID without station", func(t *testing.T) {
		event, err := EnrichReadingEvent(ReadingEvent{DryBulbTemperature: 20, RelativeHumidity: 0})
		require.NoError(t, err)
		assert.Len(t, event.ID, 16)
	})
}

func TestSerializeReadingEvent(t *testing.T) {
	processed := time.Date(2024, 1, 15, 6, 0, 0, 0, time.UTC)
	event := ReadingEvent{
		ID:                  "YSSY-abc",
		StationID:           testStation,
		DryBulbTemperature:  20,
		ApparentTemperature: 16,
		Comfort:             "cool",
		RawPayload:          []byte("raw"),
		ProcessedAt:         processed,
	}

	out, err := SerializeReadingEvent(event)
	require.NoError(t, err)

	assert.Equal(t, []byte("YSSY-abc"), out.Key)
	assert.Equal(t, testStation, out.Headers["station_id"])
	assert.Equal(t, "2024-01-15T06:00:00Z", out.Headers["processed_at"])

	var body map[string]any
	require.NoError(t, json.Unmarshal(out.Value, &body))
	assert.InDelta(t, 16.0, body["apparent_temperature"], 0)
	assert.Equal(t, "cool", body["comfort"])
	assert.NotContains(t, body, "RawPayload")
}

func TestComfortBand(t *testing.T) {
	tests := []struct {
		at   float64
		want string
	}{
		{-5, "freezing"},
		{0, "cold"},
		{9.99, "cold"},
		{10, "cool"},
		{18, "comfortable"},
		{24, "warm"},
		{30, "hot"},
		{38, "extreme"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ComfortBand(tt.at), "at=%g", tt.at)
	}
}
