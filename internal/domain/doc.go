// Package domain models weather observation series and the fire risk predictions
// computed from them.
//
// # Weather Series
//
// A [WeatherSeries] is the only input the risk model accepts. It is built from raw
// records by [NewWeatherSeries], which rejects anything it cannot use as-is:
//
//	empty input                         -> ValidationError{Index: -1}
//	missing timestamp/temperature/...   -> ValidationError{Field: "<json name>", Reason: "missing"}
//	NaN or infinite value               -> ValidationError{Reason: "not a finite number"}
//	value outside its physical domain   -> ValidationError{Reason: "below minimum ..." / "above maximum ..."}
//	duplicate or decreasing timestamp   -> ValidationError{Field: "timestamp"}
//
// Records are never reordered, deduplicated or interpolated; the caller supplies
// clean, sorted data.
//
// Units:
//
//	temperature  degrees Celsius, [-90, 60]
//	humidity     relative humidity in percent, [0, 100]
//	wind_speed   metres per second, >= 0
//
// Humidity is in percent, as in the MET Norway Locationforecast relative_humidity
// field and the historical CSV exports.
//
// # Fingerprints
//
// [FingerprintOf] hashes the content of a series, not its identity. The canonical
// encoding is:
//
//	"frcm/weather-series/v2"
//	uint64 observation count                   (big-endian)
//	per observation:
//	  int64 Unix seconds (UTC)                 (big-endian)
//	  uint64 nanosecond within the second      (big-endian)
//	  float64 bits of temperature, humidity,
//	  wind speed, with -0 written as +0       (big-endian)
//
// Two series with the same instants and values collide regardless of the time zone
// their timestamps were parsed in. The digest is SHA-256.
//
// # Danger Levels
//
// TTF (time to flashover) is bucketed into four user-facing levels by
// [DangerLevelFromTTF]:
//
//	TTF > 60   LOW
//	TTF > 30   MODERATE
//	TTF > 15   HIGH
//	otherwise  VERY_HIGH
package domain
