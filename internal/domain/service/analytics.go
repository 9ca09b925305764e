package service

import (
	"context"

	"ZoneDesk/internal/domain/models"
	"ZoneDesk/internal/domain/repository"
)

type ZoneQuery struct {
	Symbol string
	TF     repository.Timeframe
	Mode   repository.SessionMode
}

type FibQuery struct {
	Symbol string
	TF     repository.Timeframe
	Mode   repository.SessionMode
	Degree string
	Wave   string
}

type ReactionQuery struct {
	Symbol   string
	TF       repository.Timeframe
	Mode     repository.SessionMode
	Strategy models.StrategyMode
}

type VolumeQuery struct {
	Symbol string
	TF     repository.Timeframe
	Mode   repository.SessionMode
	ZoneLo float64
	ZoneHi float64
	Side   string
}

// BarSource returns the most recent bars for a key, backfilling cold keys.
type BarSource interface {
	Snapshot(ctx context.Context, key repository.SeriesKey, limit int) ([]models.Bar, error)
}

// ZoneContextSource resolves active and nearest zones around the current price.
type ZoneContextSource interface {
	ZoneContext(ctx context.Context, q ZoneQuery) (models.ZoneContext, error)
}

// FibSource anchors a swing and reports retracement levels and signals.
type FibSource interface {
	FibLevels(ctx context.Context, q FibQuery) (models.FibResult, error)
}

// ReactionSource reports the reaction-stage state machine for the candidate zone.
type ReactionSource interface {
	Reaction(ctx context.Context, q ReactionQuery) (models.ReactionState, error)
}

// VolumeSource reports volume behavior around a zone range.
type VolumeSource interface {
	VolumeBehavior(ctx context.Context, q VolumeQuery) (models.VolumeBehavior, error)
}
