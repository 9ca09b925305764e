package usecase

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"ZoneDesk/internal/domain/models"
	"ZoneDesk/internal/domain/service"
	"ZoneDesk/internal/services/confluence"
	applogger "ZoneDesk/pkg/logger"
	"ZoneDesk/pkg/metrics"
)

type stubProducers struct {
	zc       models.ZoneContext
	fib      models.FibResult
	fibErr   error
	reaction models.ReactionState
	vol      models.VolumeBehavior
	volErr   error
	volCalls atomic.Int32
	lastVol  service.VolumeQuery
}

func (s *stubProducers) ZoneContext(context.Context, service.ZoneQuery) (models.ZoneContext, error) {
	return s.zc, nil
}

func (s *stubProducers) FibLevels(context.Context, service.FibQuery) (models.FibResult, error) {
	return s.fib, s.fibErr
}

func (s *stubProducers) Reaction(context.Context, service.ReactionQuery) (models.ReactionState, error) {
	return s.reaction, nil
}

func (s *stubProducers) VolumeBehavior(_ context.Context, q service.VolumeQuery) (models.VolumeBehavior, error) {
	s.volCalls.Add(1)
	s.lastVol = q
	return s.vol, s.volErr
}

func newConfluenceUC(s *stubProducers) *ConfluenceUseCase {
	return NewConfluenceUseCase(s, s, s, s, confluence.NewScorer(confluence.DefaultWeights), metrics.Nop{}, applogger.Nop())
}

func shelfContext() models.ZoneContext {
	return models.ZoneContext{
		Symbol: "SPY",
		Price:  471,
		Active: models.TierZones{Shelf: &models.Zone{Type: models.ZoneTypeAccumulation, Lo: 470, Hi: 472, Strength: 80}},
	}
}

func TestConfluenceDegradesVolume(t *testing.T) {
	s := &stubProducers{zc: shelfContext(), volErr: errors.New("connection refused")}
	res, err := newConfluenceUC(s).Score(context.Background(), ConfluenceParams{Symbol: "SPY", TF: "1h", Mode: "rth", Degree: "minor", Wave: "W1"})
	if err != nil {
		t.Fatalf("volume failure must not fail the request: %v", err)
	}
	if !res.Flags.Engine4Degraded || res.Scores.Engine4 != 0 || res.Invalid {
		t.Fatalf("degraded result: %+v", res)
	}
	if s.lastVol.ZoneLo != 470 || s.lastVol.ZoneHi != 472 || s.lastVol.Side != "long" {
		t.Fatalf("volume query: %+v", s.lastVol)
	}
}

func TestConfluenceCoreProducerFails(t *testing.T) {
	s := &stubProducers{zc: shelfContext(), fibErr: errors.New("boom")}
	if _, err := newConfluenceUC(s).Score(context.Background(), ConfluenceParams{Symbol: "SPY", TF: "1h", Mode: "rth"}); err == nil {
		t.Fatalf("fib failure must surface")
	}
}

func TestConfluenceSkipsVolumeWithoutZone(t *testing.T) {
	s := &stubProducers{zc: models.ZoneContext{Symbol: "SPY", Price: 471}}
	res, err := newConfluenceUC(s).Score(context.Background(), ConfluenceParams{Symbol: "SPY", TF: "1h", Mode: "rth"})
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if s.volCalls.Load() != 0 {
		t.Fatalf("volume must not be queried without a zone range")
	}
	if !res.Invalid || res.ReasonCodes[0] != confluence.ReasonNoZone {
		t.Fatalf("no zone gate: %+v", res)
	}
}
