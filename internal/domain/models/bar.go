package models

import "math"

// Bar is an OHLCV record whose Time is the start of its bucket (unix seconds).
type Bar struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// Valid reports whether the bar is finite and internally consistent.
func (b Bar) Valid() bool {
	for _, v := range [...]float64{b.Open, b.High, b.Low, b.Close, b.Volume} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	if b.Time <= 0 || b.Volume < 0 || b.Low > b.High {
		return false
	}
	return b.Low <= math.Min(b.Open, b.Close) && math.Max(b.Open, b.Close) <= b.High
}

// Range is high minus low.
func (b Bar) Range() float64 { return b.High - b.Low }

const (
	SourceAggregate = "am"
	SourceTick      = "tick"
)

// MinuteBar is a sealed 1-minute bar tagged with its symbol and origin.
type MinuteBar struct {
	Symbol string `json:"symbol"`
	Source string `json:"source"`
	Bar
}
