package engines

import (
	"math"

	"ZoneDesk/internal/domain/models"
)

// trueRange of b given the previous close; the first bar uses its own range.
func trueRange(prev *models.Bar, b models.Bar) float64 {
	tr := b.High - b.Low
	if prev != nil {
		tr = math.Max(tr, math.Max(math.Abs(b.High-prev.Close), math.Abs(b.Low-prev.Close)))
	}
	return tr
}

// meanTrueRange averages the true range of the last n bars.
func meanTrueRange(bars []models.Bar, n int) (float64, bool) {
	if n <= 0 || len(bars) < n {
		return 0, false
	}
	start := len(bars) - n
	var sum float64
	for i := start; i < len(bars); i++ {
		var prev *models.Bar
		if i > 0 {
			prev = &bars[i-1]
		}
		sum += trueRange(prev, bars[i])
	}
	return sum / float64(n), true
}

// ATR is the simple average true range over n bars, or over all bars when fewer exist.
func ATR(bars []models.Bar, n int) float64 {
	if len(bars) == 0 {
		return 0
	}
	if len(bars) < n {
		n = len(bars)
	}
	v, _ := meanTrueRange(bars, n)
	return v
}

func meanVolume(bars []models.Bar) float64 {
	if len(bars) == 0 {
		return 0
	}
	var sum float64
	for _, b := range bars {
		sum += b.Volume
	}
	return sum / float64(len(bars))
}

func lastN(bars []models.Bar, n int) []models.Bar {
	if n <= 0 || len(bars) <= n {
		return bars
	}
	return bars[len(bars)-n:]
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// touches reports whether bar b traded inside [lo, hi].
func touches(b models.Bar, lo, hi float64) bool {
	return b.Low <= hi && b.High >= lo
}
