package engines

import (
	"context"
	"errors"
	"fmt"
	"math"

	"ZoneDesk/internal/domain/models"
	drepo "ZoneDesk/internal/domain/repository"
	"ZoneDesk/internal/domain/service"
)

// ErrInsufficientBars means the lookback window cannot anchor a swing.
var ErrInsufficientBars = errors.New("insufficient bars")

const (
	DirectionUp   = "up"
	DirectionDown = "down"

	near50Fraction = 0.05
)

var degreeLookback = map[string]int{
	"primary":      250,
	"intermediate": 150,
	"minor":        80,
	"minute":       40,
}

// LookbackForDegree returns the number of bars scanned for the swing anchors.
func LookbackForDegree(degree string) int {
	if n, ok := degreeLookback[degree]; ok {
		return n
	}
	return degreeLookback["minor"]
}

type FibEngine struct {
	bars service.BarSource
}

func NewFibEngine(bars service.BarSource) *FibEngine { return &FibEngine{bars: bars} }

var _ service.FibSource = (*FibEngine)(nil)

func (e *FibEngine) FibLevels(ctx context.Context, q service.FibQuery) (models.FibResult, error) {
	key := drepo.NewSeriesKey(q.Symbol, q.Mode, q.TF.Cached())
	bars, err := e.bars.Snapshot(ctx, key, LookbackForDegree(q.Degree))
	if err != nil {
		return models.FibResult{}, fmt.Errorf("fib bars: %w", err)
	}
	res, err := ComputeFib(bars)
	if err != nil {
		return models.FibResult{}, err
	}
	res.Symbol = key.Symbol
	res.TF = string(q.TF)
	res.Degree = q.Degree
	res.Wave = q.Wave
	return res, nil
}

// ComputeFib anchors the swing on the window's extreme low and high and
// prices the retracement against the last close. A low printed before the
// high is an up-swing that retraces down from the high.
func ComputeFib(bars []models.Bar) (models.FibResult, error) {
	if len(bars) < 2 {
		return models.FibResult{}, ErrInsufficientBars
	}
	lowIdx, highIdx := 0, 0
	for i, b := range bars {
		if b.Low < bars[lowIdx].Low {
			lowIdx = i
		}
		if b.High > bars[highIdx].High {
			highIdx = i
		}
	}
	lo, hi := bars[lowIdx].Low, bars[highIdx].High
	span := hi - lo
	if !(span > 0) {
		return models.FibResult{}, fmt.Errorf("%w: flat window", ErrInsufficientBars)
	}
	price := bars[len(bars)-1].Close

	res := models.FibResult{
		Price:          price,
		AnchorLow:      lo,
		AnchorHigh:     hi,
		AnchorLowTime:  bars[lowIdx].Time,
		AnchorHighTime: bars[highIdx].Time,
	}
	level := func(r float64) float64 { return hi - r*span }
	res.Direction = DirectionUp
	if lowIdx > highIdx {
		res.Direction = DirectionDown
		level = func(r float64) float64 { return lo + r*span }
	}
	res.Levels = models.FibLevels{
		R382: level(0.382),
		R500: level(0.5),
		R618: level(0.618),
		R740: level(0.74),
		R786: level(0.786),
	}

	bandLo := math.Min(res.Levels.R382, res.Levels.R618)
	bandHi := math.Max(res.Levels.R382, res.Levels.R618)
	res.Signals.InRetraceZone = price >= bandLo && price <= bandHi
	res.Signals.Near50 = math.Abs(price-res.Levels.R500) <= near50Fraction*span
	if res.Direction == DirectionUp {
		res.Signals.Invalidated = price < res.Levels.R740
	} else {
		res.Signals.Invalidated = price > res.Levels.R740
	}
	return res, nil
}
