package models

import "encoding/json"

type StrategyMode string

const (
	ModeScalp StrategyMode = "scalp"
	ModeSwing StrategyMode = "swing"
	ModeLong  StrategyMode = "long"
)

type Location string

const (
	LocationGoldenRule           Location = "GOLDEN_RULE"
	LocationInstitutional        Location = "INSTITUTIONAL"
	LocationAccumulationShelf    Location = "ACCUMULATION_SHELF"
	LocationDistributionShelf    Location = "DISTRIBUTION_SHELF"
	LocationNotInZone            Location = "NOT_IN_ZONE"
	LocationTriggeredOutsideZone Location = "TRIGGERED_OUTSIDE_ZONE"
)

// Bias is long, short, or empty; empty encodes as JSON null.
type Bias string

const (
	BiasNone  Bias = ""
	BiasLong  Bias = "long"
	BiasShort Bias = "short"
)

func (b Bias) MarshalJSON() ([]byte, error) {
	if b == BiasNone {
		return []byte("null"), nil
	}
	return json.Marshal(string(b))
}

func (b *Bias) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*b = BiasNone
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*b = Bias(s)
	return nil
}

type ConfluenceScores struct {
	Engine1     float64 `json:"engine1"`
	Engine2     float64 `json:"engine2"`
	Engine3     float64 `json:"engine3"`
	Engine4     float64 `json:"engine4"`
	Compression float64 `json:"compression"`
	Total       float64 `json:"total"`
	Label       string  `json:"label"`
}

type ConfluenceFlags struct {
	GoldenIgnition       bool `json:"goldenIgnition"`
	CompressionActive    bool `json:"compressionActive"`
	VolumeConfirmed      bool `json:"volumeConfirmed"`
	LiquidityTrap        bool `json:"liquidityTrap"`
	NearestShelfScalpRef bool `json:"nearestShelfScalpRef"`
	Engine4Degraded      bool `json:"engine4Degraded"`
}

type Targets struct {
	EntryTarget  float64  `json:"entryTarget"`
	ExitTarget   *float64 `json:"exitTarget"`
	ExitTargetHi float64  `json:"exitTargetHi"`
	ExitTargetLo float64  `json:"exitTargetLo"`
}

type CompressionDetail struct {
	State       string  `json:"state"`
	Active      bool    `json:"active"`
	Tier        string  `json:"tier,omitempty"`
	Score       float64 `json:"score"`
	Squeeze     float64 `json:"squeeze"`
	Quiet       float64 `json:"quiet"`
	QuietSource string  `json:"quietSource,omitempty"`
	Ratio       float64 `json:"ratio"`
	ZoneWidth   float64 `json:"zoneWidth"`
	ATR         float64 `json:"atr"`
	Threshold   float64 `json:"threshold"`
}

type ExecutionZone struct {
	Tier string `json:"tier"`
	Ref  string `json:"ref,omitempty"`
	Zone
}

// ConfluenceResult is the scorer's decision envelope.
type ConfluenceResult struct {
	OK            bool              `json:"ok"`
	Symbol        string            `json:"symbol"`
	TF            string            `json:"tf"`
	Degree        string            `json:"degree"`
	Wave          string            `json:"wave"`
	StrategyID    string            `json:"strategyId"`
	Mode          StrategyMode      `json:"mode"`
	Price         float64           `json:"price"`
	Invalid       bool              `json:"invalid"`
	ReasonCodes   []string          `json:"reasonCodes"`
	TradeReady    bool              `json:"tradeReady"`
	Bias          Bias              `json:"bias"`
	Location      Location          `json:"location"`
	Scores        ConfluenceScores  `json:"scores"`
	Flags         ConfluenceFlags   `json:"flags"`
	Targets       *Targets          `json:"targets"`
	Compression   CompressionDetail `json:"compression"`
	ExecutionZone *ExecutionZone    `json:"executionZone"`
}
