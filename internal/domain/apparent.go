package domain

import "math"

const (
	// Saturation vapor pressure curve: 6.105 * exp(17.27*T / (237.7+T)) hPa.
	svpBase     = 6.105
	svpSlope    = 17.27
	svpTempBias = 237.7

	humidityCoeff = 0.33
	windCoeff     = 0.70
	offsetC       = 4.00

	minHumidity = 0.0
	maxHumidity = 100.0
)

// Reading is a single dry-bulb temperature (°C), relative humidity (%), and
// wind speed (m/s) observation.
type Reading struct {
	DryBulbTemperature float64 `json:"dry_bulb_temperature"`
	RelativeHumidity   float64 `json:"relative_humidity"`
	WindSpeed          float64 `json:"wind_speed"`
}

// Validate checks every field and returns an *InvalidInputError listing all
// failures, or nil.
func (r Reading) Validate() error {
	var fields []FieldError

	switch {
	case !isFinite(r.DryBulbTemperature):
		fields = append(fields, FieldError{Field: FieldDryBulbTemperature, Reason: "must be a finite number"})
	case r.DryBulbTemperature <= -svpTempBias:
		fields = append(fields, FieldError{Field: FieldDryBulbTemperature, Reason: "must be above -237.7"})
	}

	switch {
	case !isFinite(r.RelativeHumidity):
		fields = append(fields, FieldError{Field: FieldRelativeHumidity, Reason: "must be a finite number"})
	case r.RelativeHumidity < minHumidity || r.RelativeHumidity > maxHumidity:
		fields = append(fields, FieldError{Field: FieldRelativeHumidity, Reason: "must be between 0 and 100"})
	}

	switch {
	case !isFinite(r.WindSpeed):
		fields = append(fields, FieldError{Field: FieldWindSpeed, Reason: "must be a finite number"})
	case r.WindSpeed < 0:
		fields = append(fields, FieldError{Field: FieldWindSpeed, Reason: "must not be negative"})
	}

	if len(fields) > 0 {
		return &InvalidInputError{Fields: fields}
	}
	return nil
}

// ApparentTemperature validates the reading and returns its apparent temperature in °C.
func (r Reading) ApparentTemperature() (float64, error) {
	if err := r.Validate(); err != nil {
		return 0, err
	}
	e := vaporPressure(r.DryBulbTemperature, r.RelativeHumidity)
	return r.DryBulbTemperature + humidityCoeff*e - windCoeff*r.WindSpeed - offsetC, nil
}

// ComputeApparentTemperature returns the feels-like temperature in °C for a
// dry-bulb temperature (°C), relative humidity (%), and wind speed (m/s).
// The result is not rounded.
//
// Any finite temperature above -237.7 °C is accepted. At -237.7 the saturation
// curve divides by zero and just below it the exponential overflows, so those
// temperatures fail with [ErrInvalidInput] on dry_bulb_temperature.
func ComputeApparentTemperature(dryBulbTempC, relativeHumidityPct, windSpeedMs float64) (float64, error) {
	return Reading{
		DryBulbTemperature: dryBulbTempC,
		RelativeHumidity:   relativeHumidityPct,
		WindSpeed:          windSpeedMs,
	}.ApparentTemperature()
}

// vaporPressure returns the water vapor pressure in hPa. Callers must have
// validated t > -237.7 and rh in [0, 100].
func vaporPressure(t, rh float64) float64 {
	// The ratio is taken first so very large t cannot overflow to Inf/Inf.
	return (rh / 100) * svpBase * math.Exp(svpSlope*(t/(svpTempBias+t)))
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
