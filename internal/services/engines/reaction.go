package engines

import (
	"context"
	"fmt"
	"math"

	"ZoneDesk/internal/domain/models"
	drepo "ZoneDesk/internal/domain/repository"
	"ZoneDesk/internal/domain/service"
)

const (
	reactionBars     = 60
	reactionATRLen   = 14
	displacementK    = 0.5
	failureBuffer    = 0.25
	reactionScoreMax = 10
)

var stageScore = map[models.ReactionStage]float64{
	models.StageIdle:      0,
	models.StageArmed:     4,
	models.StageTriggered: 7,
	models.StageConfirmed: 9,
	models.StageFailure:   0,
}

// ReactionEngine runs the zone reaction state machine over recent bars.
type ReactionEngine struct {
	bars  service.BarSource
	zones service.ZoneContextSource
}

func NewReactionEngine(bars service.BarSource, zones service.ZoneContextSource) *ReactionEngine {
	return &ReactionEngine{bars: bars, zones: zones}
}

var _ service.ReactionSource = (*ReactionEngine)(nil)

func (e *ReactionEngine) Reaction(ctx context.Context, q service.ReactionQuery) (models.ReactionState, error) {
	zc, err := e.zones.ZoneContext(ctx, service.ZoneQuery{Symbol: q.Symbol, TF: q.TF, Mode: q.Mode})
	if err != nil {
		return models.ReactionState{}, fmt.Errorf("reaction zones: %w", err)
	}
	key := drepo.NewSeriesKey(q.Symbol, q.Mode, q.TF.Cached())
	bars, err := e.bars.Snapshot(ctx, key, reactionBars)
	if err != nil {
		return models.ReactionState{}, fmt.Errorf("reaction bars: %w", err)
	}

	st := ComputeReaction(bars, zc.Candidate(), zc.Price)
	st.Symbol = key.Symbol
	st.TF = string(q.TF)
	return st, nil
}

// ComputeReaction walks bars oldest to newest:
//
//	IDLE -> ARMED       a bar trades into the zone
//	ARMED -> TRIGGERED  a close clears the zone by k*ATR in the reaction direction
//	TRIGGERED -> CONFIRMED  a later close exceeds the trigger bar's extreme
//	any -> FAILURE      a close breaks the far edge by 0.25*ATR
//
// A new touch after FAILURE re-arms.
func ComputeReaction(bars []models.Bar, zone *models.Zone, price float64) models.ReactionState {
	st := models.ReactionState{
		Stage:          models.StageIdle,
		StructureState: models.StructureHold,
		ReasonCodes:    []string{},
	}
	if zone == nil || !(zone.Lo < zone.Hi) {
		st.ReasonCodes = append(st.ReasonCodes, models.ReasonNoZone)
		return st
	}
	st.ZoneID = zone.ID
	atr := ATR(bars, reactionATRLen)
	k := displacementK * atr
	buf := failureBuffer * atr

	dir := zoneDirection(zone)
	var trigger models.Bar
	for i, b := range bars {
		if st.Stage == models.StageIdle || st.Stage == models.StageFailure {
			if touches(b, zone.Lo, zone.Hi) {
				st.Stage = models.StageArmed
				if zoneDirection(zone) == "" {
					dir = approachDirection(bars, i, zone)
				}
			}
			continue
		}

		if failed(b, zone, dir, buf) {
			st.Stage = models.StageFailure
			continue
		}
		switch st.Stage {
		case models.StageArmed:
			if (dir == DirectionUp && b.Close >= zone.Hi+k) || (dir == DirectionDown && b.Close <= zone.Lo-k) {
				st.Stage = models.StageTriggered
				trigger = b
			}
		case models.StageTriggered:
			if (dir == DirectionUp && b.Close > trigger.High) || (dir == DirectionDown && b.Close < trigger.Low) {
				st.Stage = models.StageConfirmed
			}
		}
	}

	st.Armed = st.Stage != models.StageIdle && st.Stage != models.StageFailure
	if st.Stage == models.StageFailure {
		st.StructureState = models.StructureFailure
	}
	switch dir {
	case DirectionUp:
		st.Direction = string(models.BiasLong)
	case DirectionDown:
		st.Direction = string(models.BiasShort)
	}

	score := stageScore[st.Stage]
	if st.Stage != models.StageIdle && st.Stage != models.StageFailure && zone.Contains(price) {
		score++
	}
	st.ReactionScore = math.Min(score, reactionScoreMax)
	if !zone.Contains(price) {
		st.ReasonCodes = append(st.ReasonCodes, models.ReasonNotInZone)
	}
	return st
}

func zoneDirection(z *models.Zone) string {
	switch z.Type {
	case models.ZoneTypeAccumulation:
		return DirectionUp
	case models.ZoneTypeDistribution:
		return DirectionDown
	}
	return ""
}

// approachDirection: coming down into a zone is a support test (up), coming up is resistance (down).
func approachDirection(bars []models.Bar, touch int, z *models.Zone) string {
	if touch == 0 {
		if bars[0].Close >= z.Mid() {
			return DirectionUp
		}
		return DirectionDown
	}
	if bars[touch-1].Close >= z.Mid() {
		return DirectionUp
	}
	return DirectionDown
}

func failed(b models.Bar, z *models.Zone, dir string, buf float64) bool {
	switch dir {
	case DirectionUp:
		return b.Close < z.Lo-buf
	case DirectionDown:
		return b.Close > z.Hi+buf
	}
	return false
}
