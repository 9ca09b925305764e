package models

// Requests for stream and analytics HTTP endpoints. Defined in domain for consistency and reuse.

type SnapshotRequest struct {
	Symbol string `query:"symbol" json:"symbol" default:"SPY" validate:"required,max=12"`
	TF     string `query:"tf" json:"tf" default:"10m" validate:"oneof=10m 30m 1h 4h 1d"`
	Mode   string `query:"mode" json:"mode" default:"rth" validate:"oneof=rth eth"`
	Limit  int    `query:"limit" json:"limit" default:"1500" validate:"gte=1,lte=50000"`
}

type StreamRequest struct {
	Symbol string `query:"symbol" json:"symbol" default:"SPY" validate:"required,max=12"`
	TF     string `query:"tf" json:"tf" default:"10m" validate:"oneof=10m 30m 1h 4h 1d"`
	Mode   string `query:"mode" json:"mode" default:"rth" validate:"oneof=rth eth"`
}

type ConfluenceRequest struct {
	Symbol     string `query:"symbol" json:"symbol" default:"SPY" validate:"required,max=12"`
	TF         string `query:"tf" json:"tf" default:"1h" validate:"oneof=5m 10m 15m 30m 1h 4h 1d"`
	Degree     string `query:"degree" json:"degree" default:"minor" validate:"oneof=primary intermediate minor minute"`
	Wave       string `query:"wave" json:"wave" default:"W1" validate:"oneof=W1 W4"`
	StrategyID string `query:"strategyId" json:"strategyId" validate:"max=128"`
	Mode       string `query:"mode" json:"mode" default:"rth" validate:"oneof=rth eth"`
}

type ZoneContextRequest struct {
	Symbol string `query:"symbol" json:"symbol" default:"SPY" validate:"required,max=12"`
	TF     string `query:"tf" json:"tf" default:"1h" validate:"oneof=5m 10m 15m 30m 1h 4h 1d"`
	Mode   string `query:"mode" json:"mode" default:"rth" validate:"oneof=rth eth"`
}

type FibRequest struct {
	Symbol string `query:"symbol" json:"symbol" default:"SPY" validate:"required,max=12"`
	TF     string `query:"tf" json:"tf" default:"1h" validate:"oneof=5m 10m 15m 30m 1h 4h 1d"`
	Degree string `query:"degree" json:"degree" default:"minor" validate:"oneof=primary intermediate minor minute"`
	Wave   string `query:"wave" json:"wave" default:"W1" validate:"oneof=W1 W4"`
	Mode   string `query:"mode" json:"mode" default:"rth" validate:"oneof=rth eth"`
}

type ReactionRequest struct {
	Symbol     string `query:"symbol" json:"symbol" default:"SPY" validate:"required,max=12"`
	TF         string `query:"tf" json:"tf" default:"1h" validate:"oneof=5m 10m 15m 30m 1h 4h 1d"`
	StrategyID string `query:"strategyId" json:"strategyId" validate:"max=128"`
	Mode       string `query:"mode" json:"mode" default:"rth" validate:"oneof=rth eth"`
}

// VolumeRequest keeps the zone bounds as strings so a missing range maps to MISSING_ZONE_RANGE
// instead of a bind error.
type VolumeRequest struct {
	Symbol string `query:"symbol" json:"symbol" default:"SPY" validate:"required,max=12"`
	TF     string `query:"tf" json:"tf" default:"1h" validate:"oneof=5m 10m 15m 30m 1h 4h 1d"`
	Mode   string `query:"mode" json:"mode" default:"rth" validate:"oneof=rth eth"`
	Side   string `query:"side" json:"side" validate:"omitempty,oneof=long short"`
	ZoneLo string `query:"zoneLo" json:"zoneLo"`
	ZoneHi string `query:"zoneHi" json:"zoneHi"`
}
