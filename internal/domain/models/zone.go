package models

import "math"

// ZoneTier is the structural family a zone belongs to. Precedence follows declaration order.
type ZoneTier int

const (
	TierNegotiated ZoneTier = iota
	TierShelf
	TierInstitutional
)

func (t ZoneTier) String() string {
	switch t {
	case TierNegotiated:
		return "NEGOTIATED"
	case TierShelf:
		return "SHELF"
	case TierInstitutional:
		return "INSTITUTIONAL"
	default:
		return "UNKNOWN"
	}
}

// ZonePrecedence lists tiers from strongest to weakest claim on the execution zone.
var ZonePrecedence = [...]ZoneTier{TierNegotiated, TierShelf, TierInstitutional}

const (
	ZoneTypeAccumulation  = "accumulation"
	ZoneTypeDistribution  = "distribution"
	ZoneTypeInstitutional = "institutional"
	ZoneTypeNegotiated    = "negotiated"
	ZoneTypeShelf         = "shelf"
)

// ZoneFacts are the sticky structure facts recorded for institutional zones.
type ZoneFacts struct {
	Archived          bool   `json:"archived"`
	DistinctExitCount int    `json:"distinctExitCount"`
	ExitSide1h        string `json:"exitSide1h,omitempty"`
	ExitBars1h        int    `json:"exitBars1h"`
}

// Exited reports archival or a confirmed exit.
func (f *ZoneFacts) Exited() bool {
	if f == nil {
		return false
	}
	return f.Archived || f.DistinctExitCount >= 2 || (f.ExitSide1h != "" && f.ExitBars1h > 0)
}

// Zone is a price band of interest.
type Zone struct {
	ID        string     `json:"id,omitempty"`
	Type      string     `json:"type,omitempty"`
	Lo        float64    `json:"lo"`
	Hi        float64    `json:"hi"`
	Strength  float64    `json:"strength"`
	Readiness *float64   `json:"readiness,omitempty"`
	Facts     *ZoneFacts `json:"facts,omitempty"`
}

// Contains is inclusive on both edges; a degenerate band (lo >= hi) contains nothing.
func (z *Zone) Contains(price float64) bool {
	if z == nil || !(z.Lo < z.Hi) {
		return false
	}
	return z.Lo <= price && price <= z.Hi
}

// Encloses reports whether inner lies fully inside z.
func (z *Zone) Encloses(inner *Zone) bool {
	if z == nil || inner == nil {
		return false
	}
	return z.Lo <= inner.Lo && inner.Hi <= z.Hi
}

func (z *Zone) Width() float64 { return math.Abs(z.Hi - z.Lo) }

func (z *Zone) Mid() float64 { return (z.Lo + z.Hi) / 2 }

// Distance from price to the nearest edge; 0 when inside.
func (z *Zone) Distance(price float64) float64 {
	switch {
	case price < z.Lo:
		return z.Lo - price
	case price > z.Hi:
		return price - z.Hi
	default:
		return 0
	}
}

// TierZones holds at most one zone per tier.
type TierZones struct {
	Negotiated    *Zone `json:"negotiated"`
	Shelf         *Zone `json:"shelf"`
	Institutional *Zone `json:"institutional"`
}

func (t TierZones) Get(tier ZoneTier) *Zone {
	switch tier {
	case TierNegotiated:
		return t.Negotiated
	case TierShelf:
		return t.Shelf
	case TierInstitutional:
		return t.Institutional
	}
	return nil
}

func (t *TierZones) Set(tier ZoneTier, z *Zone) {
	switch tier {
	case TierNegotiated:
		t.Negotiated = z
	case TierShelf:
		t.Shelf = z
	case TierInstitutional:
		t.Institutional = z
	}
}

// ZoneContext is the zone picture around the current price.
type ZoneContext struct {
	Symbol  string    `json:"symbol"`
	TF      string    `json:"tf"`
	Price   float64   `json:"price"`
	AsOf    int64     `json:"asOf"`
	Active  TierZones `json:"active"`
	Nearest TierZones `json:"nearest"`
}

// ActiveByPrecedence returns the first active zone that actually contains the price.
func (c ZoneContext) ActiveByPrecedence() (ZoneTier, *Zone, bool) {
	for _, tier := range ZonePrecedence {
		if z := c.Active.Get(tier); z.Contains(c.Price) {
			return tier, z, true
		}
	}
	return 0, nil, false
}

// Candidate is the active zone by precedence, else the nearest shelf.
func (c ZoneContext) Candidate() *Zone {
	if _, z, ok := c.ActiveByPrecedence(); ok {
		return z
	}
	return c.Nearest.Shelf
}
