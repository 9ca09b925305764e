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

// ErrMissingZoneRange is returned when zoneLo/zoneHi do not describe a band.
var ErrMissingZoneRange = errors.New("MISSING_ZONE_RANGE")

const (
	volumeLookback   = 40
	volumeAvgLen     = 20
	volumeATRLen     = 14
	quietTRLen       = 8
	pullbackBars     = 5
	reversalBars     = 3
	divergenceBars   = 10
	contractionRatio = 0.8
	expansionRatio   = 1.2
	absorptionRatio  = 1.5
	volumeScoreMax   = 15
)

type VolumeEngine struct {
	bars service.BarSource
}

func NewVolumeEngine(bars service.BarSource) *VolumeEngine { return &VolumeEngine{bars: bars} }

var _ service.VolumeSource = (*VolumeEngine)(nil)

func (e *VolumeEngine) VolumeBehavior(ctx context.Context, q service.VolumeQuery) (models.VolumeBehavior, error) {
	if !(q.ZoneLo < q.ZoneHi) {
		return models.VolumeBehavior{}, ErrMissingZoneRange
	}
	key := drepo.NewSeriesKey(q.Symbol, q.Mode, q.TF.Cached())
	bars, err := e.bars.Snapshot(ctx, key, volumeLookback)
	if err != nil {
		return models.VolumeBehavior{}, fmt.Errorf("volume bars: %w", err)
	}
	vb := ComputeVolume(bars, q.ZoneLo, q.ZoneHi, q.Side)
	vb.Symbol = key.Symbol
	vb.TF = string(q.TF)
	return vb, nil
}

// ComputeVolume scores participation around the last touch of [lo, hi].
// An empty side is inferred from where the last close sits relative to the band's mid.
func ComputeVolume(bars []models.Bar, lo, hi float64, side string) models.VolumeBehavior {
	vb := models.VolumeBehavior{TouchIndex: -1, TouchBarsAgo: -1, ReasonCodes: []string{}}
	bars = lastN(bars, volumeLookback)
	if len(bars) == 0 {
		vb.ReasonCodes = append(vb.ReasonCodes, "NO_BARS")
		return vb
	}

	avg := meanVolume(lastN(bars, volumeAvgLen))
	atr := ATR(bars, volumeATRLen)
	diag := &models.VolumeDiagnostics{ATR: atr, AvgVolume: avg, Bars: len(bars)}
	if tr8, ok := meanTrueRange(bars, quietTRLen); ok {
		diag.AvgTR8 = &tr8
	}
	vb.Diagnostics = diag

	last := bars[len(bars)-1]
	mid := (lo + hi) / 2
	if side == "" {
		side = string(models.BiasShort)
		if last.Close >= mid {
			side = string(models.BiasLong)
		}
	}
	long := side == string(models.BiasLong)

	touch := -1
	for i := len(bars) - 1; i >= 0; i-- {
		if touches(bars[i], lo, hi) {
			touch = i
			break
		}
	}
	if touch < 0 {
		vb.ReasonCodes = append(vb.ReasonCodes, "NO_TOUCH")
		return vb
	}
	vb.TouchIndex = touch
	vb.TouchBarsAgo = len(bars) - 1 - touch

	ratio := func(v float64) float64 {
		if avg <= 0 {
			return 0
		}
		return v / avg
	}
	from := max(0, touch-pullbackBars+1)
	vb.PullbackVolRatio = ratio(meanVolume(bars[from : touch+1]))
	after := bars[touch+1:]
	if len(after) > reversalBars {
		after = after[:reversalBars]
	}
	if len(after) > 0 {
		vb.ReversalVolRatio = ratio(meanVolume(after))
	}

	f := &vb.Flags
	f.PullbackContraction = vb.PullbackVolRatio > 0 && vb.PullbackVolRatio < contractionRatio
	f.ReversalExpansion = vb.ReversalVolRatio > expansionRatio

	tb := bars[touch]
	heavy := avg > 0 && tb.Volume > absorptionRatio*avg && tb.Range() < atr
	f.AbsorptionDetected = heavy && long
	f.DistributionDetected = heavy && !long

	k := displacementK * atr
	for _, b := range bars[touch:] {
		if b.Volume <= avg {
			continue
		}
		if long && b.Low < lo-k && b.Close >= lo {
			f.LiquidityTrap = true
		}
		if !long && b.High > hi+k && b.Close <= hi {
			f.LiquidityTrap = true
		}
	}

	if f.ReversalExpansion {
		if long {
			f.InitiativeMoveConfirmed = last.Close > hi && last.Close-hi >= k
		} else {
			f.InitiativeMoveConfirmed = last.Close < lo && lo-last.Close >= k
		}
	}

	if len(bars) > divergenceBars {
		window := bars[len(bars)-1-divergenceBars : len(bars)-1]
		hiPrev, loPrev := window[0].High, window[0].Low
		for _, b := range window[1:] {
			hiPrev = math.Max(hiPrev, b.High)
			loPrev = math.Min(loPrev, b.Low)
		}
		newExtreme := last.High > hiPrev || last.Low < loPrev
		f.VolumeDivergence = newExtreme && avg > 0 && last.Volume < contractionRatio*avg
	}

	var score float64
	if f.PullbackContraction {
		score += 4
	}
	if f.ReversalExpansion {
		score += 4
	}
	if f.AbsorptionDetected || f.DistributionDetected {
		score += 3
	}
	if f.InitiativeMoveConfirmed {
		score += 3
	}
	if f.VolumeDivergence {
		score++
	}
	if f.LiquidityTrap {
		score -= 5
		vb.ReasonCodes = append(vb.ReasonCodes, "LIQUIDITY_TRAP")
	}
	vb.VolumeScore = clamp(score, 0, volumeScoreMax)
	vb.VolumeConfirmed = vb.VolumeScore >= 8 && !f.LiquidityTrap && (f.ReversalExpansion || f.InitiativeMoveConfirmed)
	return vb
}
