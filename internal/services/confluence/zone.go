package confluence

import (
	"ZoneDesk/internal/domain/models"
)

const (
	ReasonNoZone        = "NO_ZONE_NO_TRADE"
	ReasonFibInvalid    = "FIB_INVALIDATION_74"
	ReasonZoneExited    = "ZONE_ARCHIVED_OR_EXITED"
	ReasonNearestShelf  = "NEAREST_SHELF_SCALP_REF"
	ReasonLiquidityTrap = "LIQUIDITY_TRAP"
)

// execution is the zone the scorer trades against.
type execution struct {
	tier   models.ZoneTier
	zone   *models.Zone
	active bool
	ref    string
}

// selectExecution applies tier precedence over active zones. Without an
// active zone a scalp may reference the nearest shelf once the reaction has fired.
func selectExecution(zc models.ZoneContext, mode models.StrategyMode, stage models.ReactionStage) (execution, bool) {
	if tier, z, ok := zc.ActiveByPrecedence(); ok {
		return execution{tier: tier, zone: z, active: true}, true
	}
	if mode == models.ModeScalp && zc.Nearest.Shelf != nil && stage.Fired() {
		return execution{tier: models.TierShelf, zone: zc.Nearest.Shelf, ref: ReasonNearestShelf}, true
	}
	return execution{}, false
}

func (e execution) envelope() *models.ExecutionZone {
	return &models.ExecutionZone{Tier: e.tier.String(), Ref: e.ref, Zone: *e.zone}
}

// goldenContainer returns the active institutional zone enclosing a negotiated execution zone.
func goldenContainer(zc models.ZoneContext, e execution) *models.Zone {
	if e.tier != models.TierNegotiated || !e.active {
		return nil
	}
	inst := zc.Active.Institutional
	if inst.Contains(zc.Price) && inst.Encloses(e.zone) {
		return inst
	}
	return nil
}

func biasOf(z *models.Zone) models.Bias {
	switch z.Type {
	case models.ZoneTypeAccumulation:
		return models.BiasLong
	case models.ZoneTypeDistribution:
		return models.BiasShort
	}
	return models.BiasNone
}

func targetsFor(z *models.Zone, bias models.Bias) *models.Targets {
	t := &models.Targets{EntryTarget: z.Mid(), ExitTargetHi: z.Hi, ExitTargetLo: z.Lo}
	switch bias {
	case models.BiasLong:
		hi := z.Hi
		t.ExitTarget = &hi
	case models.BiasShort:
		lo := z.Lo
		t.ExitTarget = &lo
	}
	return t
}

// locationOf labels the execution zone. A negotiated zone outside an
// institutional container is reported by its side like a shelf; a zone with no
// side has no tradable location.
func locationOf(e execution, golden bool, bias models.Bias) models.Location {
	if !e.active {
		return models.LocationTriggeredOutsideZone
	}
	if golden {
		return models.LocationGoldenRule
	}
	if e.tier == models.TierInstitutional {
		return models.LocationInstitutional
	}
	switch bias {
	case models.BiasLong:
		return models.LocationAccumulationShelf
	case models.BiasShort:
		return models.LocationDistributionShelf
	}
	return models.LocationNotInZone
}
