package confluence

import (
	"math"
	"reflect"
	"testing"

	"ZoneDesk/internal/domain/models"
)

func ptr(v float64) *float64 { return &v }

func baseInputs() Inputs {
	return Inputs{
		Request:  Request{Symbol: "SPY", TF: "1h", Degree: "minor", Wave: "W1"},
		Reaction: models.ReactionState{Stage: models.StageIdle, StructureState: models.StructureHold},
	}
}

func TestDeriveMode(t *testing.T) {
	cases := []struct {
		id, tf string
		want   models.StrategyMode
	}{
		{"spy_intraday_scalp_v2", "4h", models.ModeScalp},
		{"x_minor_swing", "5m", models.ModeSwing},
		{"INTERMEDIATE_LONG", "10m", models.ModeLong},
		{"", "15m", models.ModeScalp},
		{"", "30m", models.ModeSwing},
		{"", "4h", models.ModeLong},
		{"", "1d", models.ModeSwing},
	}
	for _, c := range cases {
		if got := DeriveMode(c.id, c.tf); got != c.want {
			t.Fatalf("DeriveMode(%q,%q)=%s want %s", c.id, c.tf, got, c.want)
		}
	}
}

func TestScoreNoZone(t *testing.T) {
	in := baseInputs()
	in.Zones = models.ZoneContext{Price: 471}
	in.Fib.Signals.Invalidated = true

	res := Score(in)
	if !res.Invalid || !reflect.DeepEqual(res.ReasonCodes, []string{ReasonNoZone}) {
		t.Fatalf("no zone must win over fib invalidation: %+v", res)
	}
	if res.Scores.Total != 0 || res.Scores.Label != "IGNORE" || res.Bias != models.BiasNone || res.Targets != nil {
		t.Fatalf("envelope: %+v", res)
	}
}

func TestScoreFibInvalidation(t *testing.T) {
	in := baseInputs()
	in.Zones = models.ZoneContext{
		Price:  471,
		Active: models.TierZones{Shelf: &models.Zone{Type: models.ZoneTypeAccumulation, Lo: 470, Hi: 472, Strength: 60}},
	}
	in.Fib.Signals.Invalidated = true

	res := Score(in)
	if !res.Invalid || !reflect.DeepEqual(res.ReasonCodes, []string{ReasonFibInvalid}) {
		t.Fatalf("reason: %+v", res.ReasonCodes)
	}
	if res.Bias != models.BiasLong || res.Targets == nil || res.Targets.EntryTarget != 471 {
		t.Fatalf("bias/targets: %v %+v", res.Bias, res.Targets)
	}
	if *res.Targets.ExitTarget != 472 || res.Location != models.LocationAccumulationShelf {
		t.Fatalf("exit/location: %+v %s", res.Targets, res.Location)
	}
}

func TestScoreGoldenIgnitionFloor(t *testing.T) {
	in := baseInputs()
	in.Zones = models.ZoneContext{
		Price: 100,
		Active: models.TierZones{
			Negotiated:    &models.Zone{Lo: 99, Hi: 101, Readiness: ptr(55), Strength: 40},
			Institutional: &models.Zone{Lo: 95, Hi: 105, Strength: 80},
		},
	}
	res := Score(in)
	if res.Invalid || !res.Flags.GoldenIgnition || res.Location != models.LocationGoldenRule {
		t.Fatalf("golden ignition: %+v", res)
	}
	if res.Scores.Engine1 < 80 {
		t.Fatalf("engine1 want >= 80 got %v", res.Scores.Engine1)
	}
}

func TestScoreWeakZoneCap(t *testing.T) {
	in := baseInputs()
	in.Zones = models.ZoneContext{
		Price:  100,
		Active: models.TierZones{Shelf: &models.Zone{Type: models.ZoneTypeDistribution, Lo: 99, Hi: 101, Strength: 40}},
	}
	in.Fib.Signals = models.FibSignals{InRetraceZone: true, Near50: true}
	in.Reaction = models.ReactionState{Stage: models.StageConfirmed, ReactionScore: 10, StructureState: models.StructureHold}
	in.Volume = models.VolumeBehavior{VolumeScore: 15, VolumeConfirmed: true}

	res := Score(in)
	// 0.6*40 + 15 + 10 + 15 = 64, capped at 55
	if res.Scores.Total != 55 || res.Scores.Label != "IGNORE" {
		t.Fatalf("weak zone cap: %+v", res.Scores)
	}
	if res.Bias != models.BiasShort || *res.Targets.ExitTarget != 99 {
		t.Fatalf("short targets: %+v", res.Targets)
	}
}

func TestScoreEngineTerms(t *testing.T) {
	in := baseInputs()
	in.TF = "10m"
	in.Zones = models.ZoneContext{
		Price:  100,
		Active: models.TierZones{Shelf: &models.Zone{Type: models.ZoneTypeAccumulation, Lo: 99, Hi: 101, Strength: 90}},
	}
	in.Fib.Signals = models.FibSignals{InRetraceZone: true}
	in.Reaction = models.ReactionState{Stage: models.StageTriggered, ReactionScore: 7, StructureState: models.StructureHold}
	in.Volume = models.VolumeBehavior{VolumeScore: 12, Flags: models.VolumeFlags{LiquidityTrap: true}}

	res := Score(in)
	if res.Mode != models.ModeScalp {
		t.Fatalf("mode %s", res.Mode)
	}
	s := res.Scores
	if s.Engine1 != 90 || s.Engine2 != 10 || s.Engine3 != 14 || s.Engine4 != 3 {
		t.Fatalf("engine scores: %+v", s)
	}
	// 54 + 7.5 + 9.33 + 3 = 73.83
	if s.Total != 73.83 || s.Label != "B" {
		t.Fatalf("total: %+v", s)
	}
	if !res.TradeReady || !res.Flags.LiquidityTrap || res.ReasonCodes[0] != ReasonLiquidityTrap {
		t.Fatalf("flags: %+v %v", res.Flags, res.ReasonCodes)
	}
}

func TestScoreReactionZeroedOutsideZone(t *testing.T) {
	in := baseInputs()
	in.Zones = models.ZoneContext{Price: 100, Active: models.TierZones{Shelf: &models.Zone{Lo: 99, Hi: 101, Strength: 80}}}
	in.Reaction = models.ReactionState{Stage: models.StageConfirmed, ReactionScore: 9, ReasonCodes: []string{models.ReasonNotInZone}}
	if e3 := Score(in).Scores.Engine3; e3 != 0 {
		t.Fatalf("NOT_IN_ZONE must zero engine3, got %v", e3)
	}
	in.Reaction = models.ReactionState{Stage: models.StageArmed, ReactionScore: 4, StructureState: models.StructureFailure}
	if e3 := Score(in).Scores.Engine3; e3 != 0 {
		t.Fatalf("structure failure must zero engine3, got %v", e3)
	}
}

func TestScoreScalpNearestShelf(t *testing.T) {
	shelf := &models.Zone{ID: "s1", Type: models.ZoneTypeAccumulation, Lo: 95, Hi: 96, Strength: 60}
	in := baseInputs()
	in.StrategyID = "spy_intraday_scalp"
	in.Zones = models.ZoneContext{Price: 98, Nearest: models.TierZones{Shelf: shelf}}

	in.Reaction.Stage = models.StageArmed
	if res := Score(in); !res.Invalid || res.ReasonCodes[0] != ReasonNoZone {
		t.Fatalf("armed scalp without active zone must be gated: %+v", res)
	}

	in.Reaction.Stage = models.StageTriggered
	res := Score(in)
	if res.Invalid || !res.Flags.NearestShelfScalpRef || res.Location != models.LocationTriggeredOutsideZone {
		t.Fatalf("nearest shelf reference: %+v", res)
	}
	if res.ExecutionZone == nil || res.ExecutionZone.Ref != ReasonNearestShelf || res.ExecutionZone.ID != "s1" {
		t.Fatalf("execution zone: %+v", res.ExecutionZone)
	}

	in.StrategyID = "minor_swing"
	if res := Score(in); !res.Invalid {
		t.Fatalf("swing never uses the nearest shelf: %+v", res)
	}
}

func TestScoreExitedInstitutional(t *testing.T) {
	in := baseInputs()
	in.Zones = models.ZoneContext{
		Price: 100,
		Active: models.TierZones{Institutional: &models.Zone{Lo: 95, Hi: 105, Strength: 80,
			Facts: &models.ZoneFacts{ExitSide1h: "above", ExitBars1h: 2}}},
	}
	res := Score(in)
	if !res.Invalid || res.ReasonCodes[0] != ReasonZoneExited {
		t.Fatalf("exited zone: %+v", res)
	}
	in.Zones.Active.Institutional.Facts = &models.ZoneFacts{DistinctExitCount: 1}
	if res := Score(in); res.Invalid {
		t.Fatalf("single exit is not terminal: %+v", res)
	}
}

func TestScoreDeterministic(t *testing.T) {
	in := baseInputs()
	in.Zones = models.ZoneContext{
		Price: 100,
		Active: models.TierZones{
			Negotiated:    &models.Zone{Lo: 99.8, Hi: 100.2, Strength: 65},
			Institutional: &models.Zone{Lo: 95, Hi: 105, Strength: 70},
		},
	}
	in.Volume = models.VolumeBehavior{VolumeScore: 9, Diagnostics: &models.VolumeDiagnostics{ATR: 1, AvgTR8: ptr(0.5)}}
	in.VolumeDegraded = true
	a, b := Score(in), Score(in)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("scores differ:\n%+v\n%+v", a, b)
	}
	if !a.Flags.Engine4Degraded || a.ReasonCodes[len(a.ReasonCodes)-1] != models.ReasonEngine4Unavailable {
		t.Fatalf("degraded marker: %+v", a)
	}
}

func TestCompressionTiers(t *testing.T) {
	vol := models.VolumeBehavior{Diagnostics: &models.VolumeDiagnostics{ATR: 2, AvgTR8: ptr(1.5)}}

	d := Compression(models.TierNegotiated, &models.Zone{Lo: 100, Hi: 101}, vol)
	if d.Ratio != 0.5 || d.Squeeze != 20 || d.Quiet != 10 || d.State != StateCoiling || !d.Active {
		t.Fatalf("tight negotiated: %+v", d)
	}

	d = Compression(models.TierNegotiated, &models.Zone{Lo: 100, Hi: 101.8}, vol)
	// ratio 0.9: squeeze 20*(0.3/0.6) = 10
	if math.Abs(d.Squeeze-10) > 1e-9 || d.State != StateCompressing || d.Active {
		t.Fatalf("compressing: %+v", d)
	}

	d = Compression(models.TierInstitutional, &models.Zone{Lo: 100, Hi: 103}, vol)
	if d.Squeeze != 0 || d.Quiet != 0 || d.State != StateNone {
		t.Fatalf("wide zone never earns quiet points: %+v", d)
	}

	noisy := models.VolumeBehavior{Diagnostics: &models.VolumeDiagnostics{ATR: 2}, Flags: models.VolumeFlags{InitiativeMoveConfirmed: true}}
	d = Compression(models.TierInstitutional, &models.Zone{Lo: 100, Hi: 101}, noisy)
	if d.QuietSource != QuietFromProxy || d.Quiet != 0 || d.Squeeze != 7 || d.State != StateCompressing {
		t.Fatalf("proxy quiet: %+v", d)
	}

	if d := Compression(models.TierShelf, &models.Zone{Lo: 100, Hi: 101}, vol); d.State != StateNone || d.Score != 0 {
		t.Fatalf("shelves never coil: %+v", d)
	}
}

func TestLocationLabels(t *testing.T) {
	active := func(tier models.ZoneTier) execution { return execution{tier: tier, active: true} }
	cases := []struct {
		name   string
		e      execution
		golden bool
		bias   models.Bias
		want   models.Location
	}{
		{"golden", active(models.TierNegotiated), true, models.BiasLong, models.LocationGoldenRule},
		{"negotiated long", active(models.TierNegotiated), false, models.BiasLong, models.LocationAccumulationShelf},
		{"negotiated short", active(models.TierNegotiated), false, models.BiasShort, models.LocationDistributionShelf},
		{"institutional", active(models.TierInstitutional), false, models.BiasNone, models.LocationInstitutional},
		{"untyped shelf", active(models.TierShelf), false, models.BiasNone, models.LocationNotInZone},
		{"nearest shelf ref", execution{tier: models.TierShelf}, false, models.BiasLong, models.LocationTriggeredOutsideZone},
	}
	allowed := map[models.Location]bool{
		models.LocationGoldenRule: true, models.LocationInstitutional: true,
		models.LocationAccumulationShelf: true, models.LocationDistributionShelf: true,
		models.LocationNotInZone: true, models.LocationTriggeredOutsideZone: true,
	}
	for _, c := range cases {
		got := locationOf(c.e, c.golden, c.bias)
		if got != c.want || !allowed[got] {
			t.Fatalf("%s: got %s want %s", c.name, got, c.want)
		}
	}
}
