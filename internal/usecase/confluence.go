package usecase

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"ZoneDesk/internal/domain/models"
	domrepo "ZoneDesk/internal/domain/repository"
	"ZoneDesk/internal/domain/service"
	"ZoneDesk/internal/services/confluence"
	applogger "ZoneDesk/pkg/logger"
)

// ConfluenceUseCase gathers producer outputs and scores them.
type ConfluenceUseCase struct {
	zones    service.ZoneContextSource
	fib      service.FibSource
	reaction service.ReactionSource
	volume   service.VolumeSource
	scorer   *confluence.Scorer
	metrics  domrepo.Metrics
	logger   *applogger.Logger
}

func NewConfluenceUseCase(
	zones service.ZoneContextSource,
	fib service.FibSource,
	reaction service.ReactionSource,
	volume service.VolumeSource,
	scorer *confluence.Scorer,
	metrics domrepo.Metrics,
	logger *applogger.Logger,
) *ConfluenceUseCase {
	return &ConfluenceUseCase{
		zones:    zones,
		fib:      fib,
		reaction: reaction,
		volume:   volume,
		scorer:   scorer,
		metrics:  metrics,
		logger:   logger,
	}
}

type ConfluenceParams struct {
	Symbol     string
	TF         domrepo.Timeframe
	Mode       domrepo.SessionMode
	Degree     string
	Wave       string
	StrategyID string
}

// Score fetches zone context first, since the volume producer needs the
// candidate zone range, then fans out the remaining producers. Volume
// failures degrade; any other producer failure fails the request.
func (uc *ConfluenceUseCase) Score(ctx context.Context, p ConfluenceParams) (models.ConfluenceResult, error) {
	start := time.Now()
	defer func() { uc.metrics.RecordLatency("confluence_score", time.Since(start).Seconds()) }()

	zc, err := uc.zones.ZoneContext(ctx, service.ZoneQuery{Symbol: p.Symbol, TF: p.TF, Mode: p.Mode})
	if err != nil {
		uc.metrics.RecordError("producer_zone_context")
		return models.ConfluenceResult{}, fmt.Errorf("zone context: %w", err)
	}
	mode := confluence.DeriveMode(p.StrategyID, string(p.TF))

	in := confluence.Inputs{
		Request: confluence.Request{
			Symbol:     zc.Symbol,
			TF:         string(p.TF),
			Degree:     p.Degree,
			Wave:       p.Wave,
			StrategyID: p.StrategyID,
		},
		Zones: zc,
	}
	if in.Symbol == "" {
		in.Symbol = p.Symbol
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		fib, err := uc.fib.FibLevels(gctx, service.FibQuery{Symbol: p.Symbol, TF: p.TF, Mode: p.Mode, Degree: p.Degree, Wave: p.Wave})
		if err != nil {
			uc.metrics.RecordError("producer_fib")
			return fmt.Errorf("fib levels: %w", err)
		}
		in.Fib = fib
		return nil
	})
	g.Go(func() error {
		r, err := uc.reaction.Reaction(gctx, service.ReactionQuery{Symbol: p.Symbol, TF: p.TF, Mode: p.Mode, Strategy: mode})
		if err != nil {
			uc.metrics.RecordError("producer_reaction")
			return fmt.Errorf("reaction: %w", err)
		}
		in.Reaction = r
		return nil
	})
	g.Go(func() error {
		in.Volume, in.VolumeDegraded = uc.fetchVolume(gctx, p, zc)
		return nil
	})
	if err := g.Wait(); err != nil {
		return models.ConfluenceResult{}, err
	}
	return uc.scorer.Score(in), nil
}

func (uc *ConfluenceUseCase) fetchVolume(ctx context.Context, p ConfluenceParams, zc models.ZoneContext) (models.VolumeBehavior, bool) {
	z := zc.Candidate()
	if z == nil || !(z.Lo < z.Hi) {
		return models.DegradedVolume(models.ReasonNoZoneRange), false
	}
	side := ""
	switch z.Type {
	case models.ZoneTypeAccumulation:
		side = string(models.BiasLong)
	case models.ZoneTypeDistribution:
		side = string(models.BiasShort)
	}
	vb, err := uc.volume.VolumeBehavior(ctx, service.VolumeQuery{
		Symbol: p.Symbol,
		TF:     p.TF,
		Mode:   p.Mode,
		ZoneLo: z.Lo,
		ZoneHi: z.Hi,
		Side:   side,
	})
	if err != nil {
		uc.metrics.RecordError("producer_volume")
		uc.logger.Warn("confluence: volume producer unavailable, degrading",
			applogger.String("symbol", p.Symbol),
			applogger.String("tf", string(p.TF)),
			applogger.Error(err))
		return models.DegradedVolume(models.ReasonEngine4Unavailable), true
	}
	return vb, false
}
