package models

// FibLevels are retracement prices for one anchored swing.
type FibLevels struct {
	R382 float64 `json:"r382"`
	R500 float64 `json:"r500"`
	R618 float64 `json:"r618"`
	R740 float64 `json:"r740"`
	R786 float64 `json:"r786"`
}

type FibSignals struct {
	InRetraceZone bool `json:"inRetraceZone"`
	Near50        bool `json:"near50"`
	Invalidated   bool `json:"invalidated"`
}

type FibResult struct {
	Symbol         string     `json:"symbol"`
	TF             string     `json:"tf"`
	Degree         string     `json:"degree"`
	Wave           string     `json:"wave"`
	Price          float64    `json:"price"`
	Direction      string     `json:"direction"`
	AnchorLow      float64    `json:"anchorLow"`
	AnchorHigh     float64    `json:"anchorHigh"`
	AnchorLowTime  int64      `json:"anchorLowTime"`
	AnchorHighTime int64      `json:"anchorHighTime"`
	Levels         FibLevels  `json:"levels"`
	Signals        FibSignals `json:"signals"`
}

type ReactionStage string

const (
	StageIdle      ReactionStage = "IDLE"
	StageArmed     ReactionStage = "ARMED"
	StageTriggered ReactionStage = "TRIGGERED"
	StageConfirmed ReactionStage = "CONFIRMED"
	StageFailure   ReactionStage = "FAILURE"
)

// Fired reports TRIGGERED or CONFIRMED.
func (s ReactionStage) Fired() bool {
	return s == StageTriggered || s == StageConfirmed
}

type StructureState string

const (
	StructureHold    StructureState = "HOLD"
	StructureFailure StructureState = "FAILURE"
)

type ReactionState struct {
	Symbol         string         `json:"symbol"`
	TF             string         `json:"tf"`
	Stage          ReactionStage  `json:"stage"`
	Armed          bool           `json:"armed"`
	StructureState StructureState `json:"structureState"`
	ReactionScore  float64        `json:"reactionScore"`
	Direction      string         `json:"direction,omitempty"`
	ZoneID         string         `json:"zoneId,omitempty"`
	ReasonCodes    []string       `json:"reasonCodes"`
}

type VolumeFlags struct {
	PullbackContraction     bool `json:"pullbackContraction"`
	ReversalExpansion       bool `json:"reversalExpansion"`
	AbsorptionDetected      bool `json:"absorptionDetected"`
	DistributionDetected    bool `json:"distributionDetected"`
	LiquidityTrap           bool `json:"liquidityTrap"`
	InitiativeMoveConfirmed bool `json:"initiativeMoveConfirmed"`
	VolumeDivergence        bool `json:"volumeDivergence"`
}

type VolumeDiagnostics struct {
	ATR       float64  `json:"atr"`
	AvgTR8    *float64 `json:"avgTr8,omitempty"`
	AvgVolume float64  `json:"avgVolume"`
	Bars      int      `json:"bars"`
}

type VolumeBehavior struct {
	Symbol           string             `json:"symbol,omitempty"`
	TF               string             `json:"tf,omitempty"`
	Flags            VolumeFlags        `json:"flags"`
	PullbackVolRatio float64            `json:"pullbackVolRatio"`
	ReversalVolRatio float64            `json:"reversalVolRatio"`
	TouchIndex       int                `json:"touchIndex"`
	TouchBarsAgo     int                `json:"touchBarsAgo"`
	VolumeScore      float64            `json:"volumeScore"`
	VolumeConfirmed  bool               `json:"volumeConfirmed"`
	ReasonCodes      []string           `json:"reasonCodes"`
	Diagnostics      *VolumeDiagnostics `json:"diagnostics,omitempty"`
}

const (
	ReasonEngine4Unavailable = "ENGINE4_UNAVAILABLE"
	ReasonNoZoneRange        = "NO_ZONE_RANGE"
	ReasonNotInZone          = "NOT_IN_ZONE"
	ReasonNoZone             = "NO_ZONE"
)

// DegradedVolume is the zero result substituted when volume behavior cannot be obtained.
func DegradedVolume(code string) VolumeBehavior {
	return VolumeBehavior{TouchIndex: -1, TouchBarsAgo: -1, ReasonCodes: []string{code}}
}
