package util

import (
	"math"
	"strconv"
	"time"
)

// EpochSeconds converts a vendor timestamp to unix seconds. Values above 1e10
// are treated as milliseconds.
func EpochSeconds(v float64) (int64, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0, false
	}
	if v > 1e10 {
		return int64(v / 1000), true
	}
	return int64(v), true
}

// MinuteFloor aligns unix seconds down to the start of the minute.
func MinuteFloor(sec int64) int64 {
	return sec - sec%60
}

// UnixMs returns t as unix milliseconds.
func UnixMs(t time.Time) int64 {
	return t.UnixNano() / int64(time.Millisecond)
}

// ParseTime tries RFC3339, RFC3339Nano, and unix seconds or milliseconds. Returns (t, true) if any worked.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		if sec, ok := EpochSeconds(f); ok {
			return time.Unix(sec, 0), true
		}
	}
	return time.Time{}, false
}
