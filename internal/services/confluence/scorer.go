package confluence

import (
	"math"
	"slices"

	"ZoneDesk/internal/domain/models"
)

// Weights blend the four engine scores into the total.
type Weights struct {
	Zone     float64 `yaml:"zone"`
	Fib      float64 `yaml:"fib"`
	Reaction float64 `yaml:"reaction"`
	Volume   float64 `yaml:"volume"`
}

var DefaultWeights = Weights{Zone: 0.60, Fib: 0.15, Reaction: 0.10, Volume: 0.15}

// Request identifies what is being scored; it is echoed into the result.
type Request struct {
	Symbol     string
	TF         string
	Degree     string
	Wave       string
	StrategyID string
}

// Inputs are the producer responses for one scoring pass.
type Inputs struct {
	Request
	Zones          models.ZoneContext
	Fib            models.FibResult
	Reaction       models.ReactionState
	Volume         models.VolumeBehavior
	VolumeDegraded bool
}

const (
	goldenFloor     = 70
	weakZoneE1      = 50
	weakZoneCap     = 55
	fibMax          = 20
	reactionMax     = 15
	volumeMax       = 15
	trapVolumeCap   = 3
	reactionTrimMax = 3
)

type Scorer struct {
	weights Weights
}

func NewScorer(w Weights) *Scorer {
	if w == (Weights{}) {
		w = DefaultWeights
	}
	return &Scorer{weights: w}
}

// Score with DefaultWeights.
func Score(in Inputs) models.ConfluenceResult {
	return NewScorer(DefaultWeights).Score(in)
}

// Score is pure: identical inputs yield identical results.
func (s *Scorer) Score(in Inputs) models.ConfluenceResult {
	mode := DeriveMode(in.StrategyID, in.TF)
	res := models.ConfluenceResult{
		OK:          true,
		Symbol:      in.Symbol,
		TF:          in.TF,
		Degree:      in.Degree,
		Wave:        in.Wave,
		StrategyID:  in.StrategyID,
		Mode:        mode,
		Price:       in.Zones.Price,
		ReasonCodes: []string{},
		Location:    models.LocationNotInZone,
		Scores:      models.ConfluenceScores{Label: labelFor(0)},
		Compression: models.CompressionDetail{State: StateNone},
	}
	res.Flags.Engine4Degraded = in.VolumeDegraded
	res.Flags.VolumeConfirmed = in.Volume.VolumeConfirmed
	res.Flags.LiquidityTrap = in.Volume.Flags.LiquidityTrap

	exec, ok := selectExecution(in.Zones, mode, in.Reaction.Stage)
	if !ok {
		return invalid(res, ReasonNoZone)
	}
	golden := goldenContainer(in.Zones, exec)
	res.ExecutionZone = exec.envelope()
	res.Bias = biasOf(exec.zone)
	res.Targets = targetsFor(exec.zone, res.Bias)
	res.Location = locationOf(exec, golden != nil, res.Bias)
	res.Flags.NearestShelfScalpRef = exec.ref == ReasonNearestShelf
	res.Flags.GoldenIgnition = golden != nil

	if in.Fib.Signals.Invalidated {
		return invalid(res, ReasonFibInvalid)
	}
	if exec.tier == models.TierInstitutional && exec.zone.Facts.Exited() {
		return invalid(res, ReasonZoneExited)
	}

	e1 := zoneScore(exec.zone, golden)
	e2 := fibScore(in.Fib.Signals)
	e3 := reactionScore(mode, in.Reaction)
	e4 := volumeScore(in.Volume)
	comp := Compression(exec.tier, exec.zone, in.Volume)

	w := s.weights
	total := w.Zone*e1 + w.Fib*(e2/fibMax*100) + w.Reaction*(e3/reactionMax*100) + w.Volume*(e4/volumeMax*100)
	if golden == nil && e1 < weakZoneE1 {
		total = math.Min(total, weakZoneCap)
	}
	total = clamp(total+comp.Score, 0, 100)

	res.Scores = models.ConfluenceScores{
		Engine1:     round2(e1),
		Engine2:     round2(e2),
		Engine3:     round2(e3),
		Engine4:     round2(e4),
		Compression: round2(comp.Score),
		Total:       round2(total),
		Label:       labelFor(round2(total)),
	}
	res.Compression = comp
	res.Flags.CompressionActive = comp.Active

	if exec.ref != "" {
		res.ReasonCodes = append(res.ReasonCodes, exec.ref)
	}
	if in.Volume.Flags.LiquidityTrap {
		res.ReasonCodes = append(res.ReasonCodes, ReasonLiquidityTrap)
	}
	if in.VolumeDegraded {
		res.ReasonCodes = append(res.ReasonCodes, models.ReasonEngine4Unavailable)
	}
	res.TradeReady = res.Bias != models.BiasNone && res.Scores.Total >= 70 && in.Reaction.Stage.Fired()
	return res
}

// invalid keeps the zone-derived fields already set and zeroes the scores.
func invalid(res models.ConfluenceResult, code string) models.ConfluenceResult {
	res.Invalid = true
	res.TradeReady = false
	res.ReasonCodes = []string{code}
	res.Scores = models.ConfluenceScores{Label: labelFor(0)}
	return res
}

func zoneScore(z *models.Zone, golden *models.Zone) float64 {
	base := z.Strength
	if z.Readiness != nil {
		base = *z.Readiness
	}
	base = clamp(base, 0, 100)
	if golden != nil {
		base = math.Max(base, math.Max(clamp(golden.Strength, 0, 100), goldenFloor))
	}
	return base
}

func fibScore(sig models.FibSignals) float64 {
	var s float64
	if sig.InRetraceZone {
		s += 10
	}
	if sig.Near50 {
		s += 10
	}
	return s
}

var scalpStage = map[models.ReactionStage]float64{
	models.StageArmed:     6,
	models.StageTriggered: 12,
	models.StageConfirmed: 15,
}

func reactionScore(mode models.StrategyMode, r models.ReactionState) float64 {
	if r.StructureState == models.StructureFailure || slices.Contains(r.ReasonCodes, models.ReasonNotInZone) {
		return 0
	}
	if mode == models.ModeScalp {
		s := scalpStage[r.Stage] + clamp(r.ReactionScore-5, 0, reactionTrimMax)
		return clamp(s, 0, reactionMax)
	}
	return clamp(r.ReactionScore*1.5, 0, reactionMax)
}

func volumeScore(v models.VolumeBehavior) float64 {
	s := clamp(v.VolumeScore, 0, volumeMax)
	if v.Flags.LiquidityTrap {
		s = math.Min(s, trapVolumeCap)
	}
	return s
}

func labelFor(total float64) string {
	switch {
	case total >= 90:
		return "A+"
	case total >= 80:
		return "A"
	case total >= 70:
		return "B"
	case total >= 60:
		return "C"
	}
	return "IGNORE"
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
