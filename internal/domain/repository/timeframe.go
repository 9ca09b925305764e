package repository

import (
	"fmt"
	"strings"
)

// Timeframe represents bar resolution buckets.
type Timeframe string

const (
	TF5m  Timeframe = "5m"
	TF10m Timeframe = "10m"
	TF15m Timeframe = "15m"
	TF30m Timeframe = "30m"
	TF1h  Timeframe = "1h"
	TF4h  Timeframe = "4h"
	TF1d  Timeframe = "1d"
)

// CachedTimeframes returns the resolutions maintained by the bar cache, finest first.
func CachedTimeframes() []Timeframe {
	return []Timeframe{TF10m, TF30m, TF1h, TF4h, TF1d}
}

// Minutes returns the bucket width in minutes, or 0 for an unknown value.
func (tf Timeframe) Minutes() int {
	switch tf {
	case TF5m:
		return 5
	case TF10m:
		return 10
	case TF15m:
		return 15
	case TF30m:
		return 30
	case TF1h:
		return 60
	case TF4h:
		return 240
	case TF1d:
		return 1440
	default:
		return 0
	}
}

// IsCached returns true if tf is kept in the bar cache.
func (tf Timeframe) IsCached() bool {
	switch tf {
	case TF10m, TF30m, TF1h, TF4h, TF1d:
		return true
	default:
		return false
	}
}

// Cached maps analytics-only resolutions onto the nearest finer cached one.
func (tf Timeframe) Cached() Timeframe {
	switch tf {
	case TF5m, TF15m:
		return TF10m
	}
	if tf.IsCached() {
		return tf
	}
	return TF10m
}

// ParseTimeframe accepts the canonical names plus bare minute counts ("60", "1440").
func ParseTimeframe(s string) (Timeframe, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	switch v {
	case "5", "5m":
		return TF5m, nil
	case "10", "10m":
		return TF10m, nil
	case "15", "15m":
		return TF15m, nil
	case "30", "30m":
		return TF30m, nil
	case "60", "1h", "60m":
		return TF1h, nil
	case "240", "4h", "240m":
		return TF4h, nil
	case "1440", "1d", "d":
		return TF1d, nil
	}
	return "", fmt.Errorf("unsupported timeframe %q", s)
}

// SessionMode selects which wall-clock hours produce intraday bars.
type SessionMode string

const (
	ModeRTH SessionMode = "rth"
	ModeETH SessionMode = "eth"
)

// SessionModes lists every mode the ingestor folds into.
func SessionModes() []SessionMode { return []SessionMode{ModeRTH, ModeETH} }

// ParseSessionMode returns the mode for s; empty defaults to RTH.
func ParseSessionMode(s string) (SessionMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "rth":
		return ModeRTH, nil
	case "eth":
		return ModeETH, nil
	}
	return "", fmt.Errorf("unsupported session mode %q", s)
}

// SeriesKey identifies one cached bar sequence.
type SeriesKey struct {
	Symbol string
	Mode   SessionMode
	TF     Timeframe
}

// NewSeriesKey normalizes the symbol to upper case.
func NewSeriesKey(symbol string, mode SessionMode, tf Timeframe) SeriesKey {
	return SeriesKey{Symbol: strings.ToUpper(strings.TrimSpace(symbol)), Mode: mode, TF: tf}
}

func (k SeriesKey) String() string {
	return fmt.Sprintf("%s:%s:%s", k.Symbol, k.Mode, k.TF)
}
