package usecase

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"ZoneDesk/internal/domain/models"
	drepo "ZoneDesk/internal/domain/repository"
	"ZoneDesk/internal/services/bars"
	applogger "ZoneDesk/pkg/logger"
	"ZoneDesk/pkg/util"
)

// ErrStreamDisabled is returned by Start when no vendor key is configured.
var ErrStreamDisabled = errors.New("market stream disabled")

// UpdatePublisher forwards tail changes toward subscribers.
type UpdatePublisher interface {
	Publish(u bars.Update) error
}

// MinuteArchiver receives sealed minute bars.
type MinuteArchiver interface {
	Process(ctx context.Context, b models.MinuteBar) error
}

// Ingestor consumes the vendor stream, reconciles minute aggregates with
// trade ticks and folds the resulting minute bars into the store.
type Ingestor struct {
	stream  drepo.MarketStream
	store   *bars.Store
	pipe    UpdatePublisher
	archive MinuteArchiver
	metrics drepo.Metrics
	logger  *applogger.Logger

	now        func() time.Time
	freshness  time.Duration
	minBackoff time.Duration
	maxBackoff time.Duration

	mu      sync.Mutex
	lastAM  map[string]time.Time
	rolling map[string]*models.Bar

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

type IngestorOption func(*Ingestor)

func WithClock(now func() time.Time) IngestorOption {
	return func(i *Ingestor) { i.now = now }
}

// WithAggregateFreshness sets how long an AM event suppresses ticks.
func WithAggregateFreshness(d time.Duration) IngestorOption {
	return func(i *Ingestor) {
		if d > 0 {
			i.freshness = d
		}
	}
}

func WithBackoff(min, max time.Duration) IngestorOption {
	return func(i *Ingestor) {
		if min > 0 && max >= min {
			i.minBackoff, i.maxBackoff = min, max
		}
	}
}

func WithArchive(a MinuteArchiver) IngestorOption {
	return func(i *Ingestor) { i.archive = a }
}

func NewIngestor(stream drepo.MarketStream, store *bars.Store, pipe UpdatePublisher, metrics drepo.Metrics, logger *applogger.Logger, opts ...IngestorOption) *Ingestor {
	i := &Ingestor{
		stream:     stream,
		store:      store,
		pipe:       pipe,
		metrics:    metrics,
		logger:     logger,
		now:        time.Now,
		freshness:  120 * time.Second,
		minBackoff: 500 * time.Millisecond,
		maxBackoff: 15 * time.Second,
		lastAM:     make(map[string]time.Time),
		rolling:    make(map[string]*models.Bar),
	}
	for _, o := range opts {
		o(i)
	}
	return i
}

// IsConnected returns true if the market stream is connected.
func (i *Ingestor) IsConnected() bool {
	return i.stream != nil && i.stream.IsConnected()
}

// Start launches the reconnect loop in the background.
func (i *Ingestor) Start(ctx context.Context) error {
	if i.stream == nil {
		return ErrStreamDisabled
	}
	i.runMu.Lock()
	defer i.runMu.Unlock()
	if i.cancel != nil {
		return nil
	}
	rctx, cancel := context.WithCancel(ctx)
	i.cancel = cancel
	i.done = make(chan struct{})
	go func() {
		defer close(i.done)
		i.run(rctx)
	}()
	return nil
}

func (i *Ingestor) run(ctx context.Context) {
	backoff := i.minBackoff
	for {
		opened, err := i.session(ctx)
		if ctx.Err() != nil {
			return
		}
		if opened {
			backoff = i.minBackoff
		}
		i.metrics.RecordError("stream")
		i.metrics.RecordReconnect()
		wait := addJitter(backoff)
		i.logger.Warn("ingestor: stream lost, reconnecting",
			applogger.Error(err),
			applogger.Duration("backoff", wait))

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
		backoff *= 2
		if backoff > i.maxBackoff {
			backoff = i.maxBackoff
		}
	}
}

// session runs one websocket lifetime. opened reports whether the socket was
// established so the caller can reset its backoff.
func (i *Ingestor) session(ctx context.Context) (opened bool, err error) {
	if err := i.stream.Connect(ctx); err != nil {
		return false, err
	}
	defer func() { _ = i.stream.Close() }()
	if err := i.stream.Subscribe(ctx); err != nil {
		return true, err
	}

	events, errs := i.stream.Read(ctx)
	for {
		select {
		case <-ctx.Done():
			return true, ctx.Err()
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil {
				return true, err
			}
		case ev, ok := <-events:
			if !ok {
				return true, errors.New("stream closed")
			}
			i.HandleEvent(ctx, ev)
		}
	}
}

func addJitter(d time.Duration) time.Duration {
	jitter := time.Duration((rand.Float64() - 0.5) * float64(400*time.Millisecond))
	if d+jitter <= 0 {
		return d
	}
	return d + jitter
}

// HandleEvent applies one vendor event.
func (i *Ingestor) HandleEvent(ctx context.Context, ev models.StreamEvent) {
	switch {
	case ev.Aggregate != nil:
		i.handleAggregate(ctx, ev.Aggregate)
	case ev.Trade != nil:
		i.handleTrade(ctx, ev.Trade)
	case ev.Status != nil:
		i.logger.Info("ingestor: vendor status",
			applogger.String("status", ev.Status.Status),
			applogger.String("message", ev.Status.Message))
	}
}

// handleAggregate folds a vendor minute aggregate into every series and drops
// the tick-built minute for the symbol. The fold adds the AM volume on top of
// whatever the series already holds for that bucket. When no AM arrived in the
// previous 120s, ticks for the same minute were folded first, so that minute's
// volume is counted twice in the higher timeframes.
func (i *Ingestor) handleAggregate(ctx context.Context, a *models.Aggregate) {
	sec, ok := util.EpochSeconds(float64(a.StartMs))
	if !ok || a.Symbol == "" {
		i.metrics.RecordError("ingest_invalid_am")
		return
	}
	b := models.Bar{
		Time:   util.MinuteFloor(sec),
		Open:   a.Open,
		High:   a.High,
		Low:    a.Low,
		Close:  a.Close,
		Volume: a.Volume,
	}
	if !b.Valid() {
		i.metrics.RecordError("ingest_invalid_am")
		return
	}

	i.mu.Lock()
	i.lastAM[a.Symbol] = i.now()
	var sealed *models.Bar
	if r := i.rolling[a.Symbol]; r != nil && r.Time < b.Time {
		sealed = r
	}
	delete(i.rolling, a.Symbol)
	i.mu.Unlock()

	if sealed != nil {
		i.archiveMinute(ctx, a.Symbol, models.SourceTick, *sealed)
	}
	i.archiveMinute(ctx, a.Symbol, models.SourceAggregate, b)
	i.fold(a.Symbol, models.SourceAggregate, b)
	i.metrics.RecordLastPrice(a.Symbol, b.Close)
}

func (i *Ingestor) handleTrade(ctx context.Context, t *models.Trade) {
	if t.Symbol == "" || t.TimestampMs <= 0 || !finitePositive(t.Price) || t.Size < 0 || math.IsNaN(t.Size) || math.IsInf(t.Size, 0) {
		i.metrics.RecordError("ingest_invalid_tick")
		return
	}
	minute := util.MinuteFloor(t.TimestampMs / 1000)

	i.mu.Lock()
	if seen, ok := i.lastAM[t.Symbol]; ok && i.now().Sub(seen) < i.freshness {
		i.mu.Unlock()
		return
	}
	var sealed *models.Bar
	r := i.rolling[t.Symbol]
	switch {
	case r == nil || r.Time < minute:
		sealed = r
		i.rolling[t.Symbol] = &models.Bar{Time: minute, Open: t.Price, High: t.Price, Low: t.Price, Close: t.Price, Volume: t.Size}
	case r.Time == minute:
		r.High = math.Max(r.High, t.Price)
		r.Low = math.Min(r.Low, t.Price)
		r.Close = t.Price
		r.Volume += t.Size
	default:
		// tick for a minute already sealed
		i.mu.Unlock()
		return
	}
	i.mu.Unlock()

	if sealed != nil {
		i.archiveMinute(ctx, t.Symbol, models.SourceTick, *sealed)
	}
	// Coarse bars receive the tick as an increment so volume is counted once.
	inc := models.Bar{Time: minute, Open: t.Price, High: t.Price, Low: t.Price, Close: t.Price, Volume: t.Size}
	i.fold(t.Symbol, models.SourceTick, inc)
	i.metrics.RecordLastPrice(t.Symbol, t.Price)
}

// Rolling returns the tick-built minute bar for symbol, if any.
func (i *Ingestor) Rolling(symbol string) (models.Bar, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if r := i.rolling[symbol]; r != nil {
		return *r, true
	}
	return models.Bar{}, false
}

func (i *Ingestor) fold(symbol, source string, m models.Bar) {
	updates := i.store.FoldMinute(symbol, m)
	i.metrics.RecordBarFolded(symbol, source)
	if i.pipe == nil {
		return
	}
	for _, u := range updates {
		if err := i.pipe.Publish(u); err != nil {
			i.logger.Debug("ingestor: update rejected",
				applogger.String("key", u.Key.String()),
				applogger.Error(err))
		}
	}
}

func (i *Ingestor) archiveMinute(ctx context.Context, symbol, source string, b models.Bar) {
	if i.archive == nil {
		return
	}
	if err := i.archive.Process(ctx, models.MinuteBar{Symbol: symbol, Source: source, Bar: b}); err != nil {
		i.metrics.RecordError("archive_enqueue")
		i.logger.Warn("ingestor: archive enqueue failed", applogger.String("symbol", symbol), applogger.Error(err))
	}
}

// Shutdown stops the reconnect loop and closes the stream.
func (i *Ingestor) Shutdown(ctx context.Context) error {
	i.runMu.Lock()
	cancel, done := i.cancel, i.done
	i.cancel = nil
	i.runMu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	if i.stream != nil {
		return i.stream.Close()
	}
	return nil
}

func finitePositive(v float64) bool {
	return v > 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}
