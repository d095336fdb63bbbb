package domain

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
)

const fingerprintTag = "frcm/weather-series/v2"

// Fingerprint is the SHA-256 digest of a series' canonical encoding.
type Fingerprint [sha256.Size]byte

// FingerprintOf hashes the content of a weather series.
func FingerprintOf(s WeatherSeries) Fingerprint {
	return sha256.Sum256(canonicalEncoding(s))
}

func canonicalEncoding(s WeatherSeries) []byte {
	// tag + count + 5 words per observation
	buf := make([]byte, 0, len(fingerprintTag)+8+len(s.obs)*40)
	buf = append(buf, fingerprintTag...)
	buf = binary.BigEndian.AppendUint64(buf, uint64(len(s.obs)))
	for _, o := range s.obs {
		// UnixNano overflows outside 1678..2262; seconds and nanoseconds do not.
		ts := o.Timestamp.UTC()
		buf = binary.BigEndian.AppendUint64(buf, uint64(ts.Unix()))
		buf = binary.BigEndian.AppendUint64(buf, uint64(ts.Nanosecond()))
		buf = binary.BigEndian.AppendUint64(buf, canonicalBits(o.Temperature))
		buf = binary.BigEndian.AppendUint64(buf, canonicalBits(o.Humidity))
		buf = binary.BigEndian.AppendUint64(buf, canonicalBits(o.WindSpeed))
	}
	return buf
}

func canonicalBits(v float64) uint64 {
	if v == 0 {
		return 0
	}
	return math.Float64bits(v)
}

// String returns the lowercase hex form of the fingerprint.
func (f Fingerprint) String() string { return hex.EncodeToString(f[:]) }

// Short returns the first 16 hex characters, for log lines.
func (f Fingerprint) Short() string { return f.String()[:16] }

// IsZero reports whether f is the zero fingerprint.
func (f Fingerprint) IsZero() bool { return f == Fingerprint{} }

// ParseFingerprint parses a 64-character hex fingerprint.
func ParseFingerprint(s string) (Fingerprint, error) {
	var f Fingerprint
	if len(s) != hex.EncodedLen(len(f)) {
		return f, fmt.Errorf("parse fingerprint: want %d hex characters, got %d", hex.EncodedLen(len(f)), len(s))
	}
	if _, err := hex.Decode(f[:], []byte(s)); err != nil {
		return Fingerprint{}, fmt.Errorf("parse fingerprint: %w", err)
	}
	return f, nil
}

// MarshalText implements encoding.TextMarshaler.
func (f Fingerprint) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Fingerprint) UnmarshalText(b []byte) error {
	parsed, err := ParseFingerprint(string(b))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}
