// Package domain computes apparent ("feels-like") temperature from station
// weather readings.
//
// # Model
//
// Apparent temperature combines the dry-bulb air temperature with the
// perceived heating effect of humidity and the perceived cooling effect of
// wind:
//
//	e  = (RH / 100) * 6.105 * exp(17.27 * T / (237.7 + T))   [hPa]
//	AT = T + 0.33 * e - 0.70 * W - 4.00                       [°C]
//
// where T is dry-bulb temperature in °C, RH is relative humidity in percent,
// and W is wind speed in m/s. e is the water vapor pressure derived from the
// saturation curve scaled by relative humidity; it is internal to a single
// computation and never exposed.
//
// The result is returned unrounded. Display precision belongs to the caller.
//
// # Input domain
//
//	T:  any finite value above -237.7 (the pole of the saturation curve).
//	    Values outside the typical -50..+60 range are accepted.
//	RH: finite, 0..100 inclusive.
//	W:  finite, >= 0.
//
// Validation is wholesale: every failing field is reported in a single
// [InvalidInputError] before any arithmetic happens. All validation failures
// match [ErrInvalidInput] with errors.Is.
//
// # Properties
//
// For a fixed T and W, AT never decreases as RH grows. For a fixed T and RH,
// AT never increases as W grows. The formula has no branches, so AT is
// continuous in every input. [ComputeApparentTemperature] holds no state and
// is safe for concurrent use.
//
// # Reading events
//
// The streaming pipeline wraps readings in [RawEvent] and [ReadingEvent].
// Event IDs are deterministic SHA-256 hashes of station|observed_at|T|RH|W so
// replaying a source topic yields identical IDs downstream. See [generateID].
package domain
