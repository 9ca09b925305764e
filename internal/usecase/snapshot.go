package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ZoneDesk/internal/domain/models"
	drepo "ZoneDesk/internal/domain/repository"
	"ZoneDesk/internal/services/bars"
	applogger "ZoneDesk/pkg/logger"

	"golang.org/x/sync/singleflight"
)

// ErrNoHistory means a cold key could not be seeded and has no live bars.
var ErrNoHistory = errors.New("no bars available")

// SnapshotUseCase serves cached bar tails and seeds cold keys from history.
type SnapshotUseCase struct {
	store    *bars.Store
	history  drepo.HistoricalSource
	metrics  drepo.Metrics
	logger   *applogger.Logger
	timeout  time.Duration
	inflight singleflight.Group
}

type SnapshotOption func(*SnapshotUseCase)

// WithBackfillTimeout bounds one history request.
func WithBackfillTimeout(d time.Duration) SnapshotOption {
	return func(s *SnapshotUseCase) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func NewSnapshotUseCase(store *bars.Store, history drepo.HistoricalSource, metrics drepo.Metrics, logger *applogger.Logger, opts ...SnapshotOption) *SnapshotUseCase {
	s := &SnapshotUseCase{
		store:   store,
		history: history,
		metrics: metrics,
		logger:  logger,
		timeout: 20 * time.Second,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Snapshot returns the last limit bars of key (all when limit <= 0),
// seeding the series from history the first time the key is requested.
func (s *SnapshotUseCase) Snapshot(ctx context.Context, key drepo.SeriesKey, limit int) ([]models.Bar, error) {
	ser := s.store.Series(key)
	if !ser.Seeded() {
		if err := s.backfill(ctx, key); err != nil {
			if ser.Len() == 0 {
				return nil, err
			}
			s.logger.Warn("snapshot: backfill failed, serving live bars",
				applogger.String("key", key.String()),
				applogger.Error(err))
		}
	}
	return ser.Tail(limit), nil
}

// backfill seeds key once; concurrent callers for the same key share one request.
func (s *SnapshotUseCase) backfill(ctx context.Context, key drepo.SeriesKey) error {
	ch := s.inflight.DoChan(key.String(), func() (any, error) {
		ser := s.store.Series(key)
		if ser.Seeded() {
			return ser.Len(), nil
		}
		if s.history == nil {
			return 0, fmt.Errorf("%w: history source not configured", ErrNoHistory)
		}
		// detached so one cancelled subscriber does not fail the shared seed
		bctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()

		start := time.Now()
		minutes, err := s.history.MinuteBars(bctx, key.Symbol, bars.BackfillMinutes(key.TF))
		s.metrics.RecordLatency("history_backfill", time.Since(start).Seconds())
		if err != nil {
			s.metrics.RecordError("history_backfill")
			return 0, fmt.Errorf("backfill %s: %w", key, err)
		}
		if len(minutes) == 0 {
			return 0, fmt.Errorf("backfill %s: %w", key, ErrNoHistory)
		}
		n := ser.Seed(minutes)
		s.logger.Info("snapshot: seeded series",
			applogger.String("key", key.String()),
			applogger.Int("minutes", len(minutes)),
			applogger.Int("bars", n))
		return n, nil
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}
