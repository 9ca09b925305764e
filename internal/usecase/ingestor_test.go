package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ZoneDesk/internal/domain/models"
	drepo "ZoneDesk/internal/domain/repository"
	"ZoneDesk/internal/services/bars"
	applogger "ZoneDesk/pkg/logger"
	"ZoneDesk/pkg/metrics"
)

type capturePipe struct {
	mu      sync.Mutex
	updates []bars.Update
}

func (c *capturePipe) Publish(u bars.Update) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updates = append(c.updates, u)
	return nil
}

type captureArchive struct {
	mu   sync.Mutex
	bars []models.MinuteBar
}

func (c *captureArchive) Process(_ context.Context, b models.MinuteBar) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bars = append(c.bars, b)
	return nil
}

func am(sym string, ts int64, o, h, l, c, v float64) models.StreamEvent {
	return models.StreamEvent{Aggregate: &models.Aggregate{Symbol: sym, StartMs: ts * 1000, Open: o, High: h, Low: l, Close: c, Volume: v}}
}

func tick(sym string, ms int64, p, s float64) models.StreamEvent {
	return models.StreamEvent{Trade: &models.Trade{Symbol: sym, TimestampMs: ms, Price: p, Size: s}}
}

func newTestIngestor(now *time.Time, opts ...IngestorOption) (*Ingestor, *bars.Store, *capturePipe) {
	store := bars.NewStore(bars.NewCalendar())
	pipe := &capturePipe{}
	opts = append(opts, WithClock(func() time.Time { return *now }))
	return NewIngestor(nil, store, pipe, metrics.Nop{}, applogger.Nop(), opts...), store, pipe
}

func TestIngestorAggregatesUpdateOpenBar(t *testing.T) {
	now := time.Unix(nyAt(13, 2), 0)
	ing, store, pipe := newTestIngestor(&now)
	ctx := context.Background()

	ing.HandleEvent(ctx, am("SPY", nyAt(13, 0), 100, 101, 99, 100.5, 1000))
	ing.HandleEvent(ctx, am("SPY", nyAt(13, 1), 100.5, 102, 100, 101.8, 1500))

	ser, ok := store.Lookup(drepo.NewSeriesKey("SPY", drepo.ModeRTH, drepo.TF10m))
	if !ok {
		t.Fatalf("series missing")
	}
	got := ser.Tail(0)
	want := models.Bar{Time: nyAt(13, 0), Open: 100, High: 102, Low: 99, Close: 101.8, Volume: 2500}
	if len(got) != 1 || got[0] != want {
		t.Fatalf("want [%+v] got %+v", want, got)
	}
	if len(pipe.updates) != 20 {
		t.Fatalf("each aggregate should notify 10 keys, got %d updates", len(pipe.updates))
	}
}

func TestIngestorTicksPreMarket(t *testing.T) {
	now := time.Unix(nyAt(8, 30), 0)
	ing, store, _ := newTestIngestor(&now)
	ctx := context.Background()
	base := nyAt(8, 30) * 1000

	ing.HandleEvent(ctx, tick("SPY", base+1000, 99.2, 10))
	ing.HandleEvent(ctx, tick("SPY", base+5000, 99.5, 5))

	roll, ok := ing.Rolling("SPY")
	if !ok || roll.Open != 99.2 || roll.High != 99.5 || roll.Close != 99.5 || roll.Volume != 15 {
		t.Fatalf("rolling bar wrong: %+v", roll)
	}

	eth, _ := store.Lookup(drepo.NewSeriesKey("SPY", drepo.ModeETH, drepo.TF10m))
	got := eth.Tail(0)
	want := models.Bar{Time: nyAt(8, 30), Open: 99.2, High: 99.5, Low: 99.2, Close: 99.5, Volume: 15}
	if len(got) != 1 || got[0] != want {
		t.Fatalf("eth: want [%+v] got %+v", want, got)
	}
	if rth, ok := store.Lookup(drepo.NewSeriesKey("SPY", drepo.ModeRTH, drepo.TF10m)); ok && rth.Len() != 0 {
		t.Fatalf("pre-market tick recorded under rth: %+v", rth.Tail(0))
	}
}

func TestIngestorFreshAggregateSuppressesTicks(t *testing.T) {
	now := time.Unix(nyAt(13, 1), 0)
	ing, store, _ := newTestIngestor(&now)
	ctx := context.Background()
	key := drepo.NewSeriesKey("SPY", drepo.ModeETH, drepo.TF10m)

	ing.HandleEvent(ctx, am("SPY", nyAt(13, 0), 100, 101, 99, 100.5, 1000))
	ing.HandleEvent(ctx, tick("SPY", nyAt(13, 1)*1000+100, 150, 10))
	ser, _ := store.Lookup(key)
	if last, _ := ser.Last(); last.High != 101 || last.Volume != 1000 {
		t.Fatalf("tick within freshness window must be ignored: %+v", last)
	}

	now = now.Add(121 * time.Second)
	ing.HandleEvent(ctx, tick("SPY", nyAt(13, 3)*1000, 102, 10))
	if last, _ := ser.Last(); last.High != 102 || last.Volume != 1010 || last.Close != 102 {
		t.Fatalf("stale aggregate must let ticks through: %+v", last)
	}
}

func TestIngestorArchivesSealedMinutes(t *testing.T) {
	now := time.Unix(nyAt(18, 0), 0)
	arch := &captureArchive{}
	ing, _, _ := newTestIngestor(&now, WithArchive(arch))
	ctx := context.Background()

	ing.HandleEvent(ctx, tick("SPY", nyAt(18, 0)*1000, 10, 1))
	ing.HandleEvent(ctx, tick("SPY", nyAt(18, 0)*1000+500, 11, 1))
	ing.HandleEvent(ctx, tick("SPY", nyAt(18, 1)*1000, 12, 1))
	ing.HandleEvent(ctx, am("SPY", nyAt(18, 2), 12, 13, 11, 12.5, 100))

	if len(arch.bars) != 3 {
		t.Fatalf("want 2 sealed tick minutes and 1 aggregate, got %+v", arch.bars)
	}
	first := arch.bars[0]
	if first.Source != models.SourceTick || first.Time != nyAt(18, 0) || first.High != 11 || first.Volume != 2 {
		t.Fatalf("first sealed minute wrong: %+v", first)
	}
	if arch.bars[2].Source != models.SourceAggregate {
		t.Fatalf("aggregate not archived: %+v", arch.bars[2])
	}
	if _, ok := ing.Rolling("SPY"); ok {
		t.Fatalf("aggregate must clear the rolling bar")
	}
}

func TestIngestorDropsMalformedEvents(t *testing.T) {
	now := time.Unix(nyAt(13, 0), 0)
	ing, store, pipe := newTestIngestor(&now)
	ctx := context.Background()
	ing.HandleEvent(ctx, am("SPY", nyAt(13, 0), 100, 99, 101, 100, 10))
	ing.HandleEvent(ctx, tick("SPY", nyAt(13, 0)*1000, -1, 10))
	ing.HandleEvent(ctx, tick("", nyAt(13, 0)*1000, 1, 10))
	if len(pipe.updates) != 0 || len(store.Keys()) != 0 {
		t.Fatalf("malformed events must not touch the cache")
	}
}

func TestIngestorStartWithoutStream(t *testing.T) {
	now := time.Now()
	ing, _, _ := newTestIngestor(&now)
	if err := ing.Start(context.Background()); !errors.Is(err, ErrStreamDisabled) {
		t.Fatalf("want ErrStreamDisabled got %v", err)
	}
}

// flakyStream fails the first connect, then serves one event and closes.
type flakyStream struct {
	connects  atomic.Int32
	connected atomic.Bool
	event     models.StreamEvent
}

func (f *flakyStream) Connect(context.Context) error {
	if f.connects.Add(1) == 1 {
		return errors.New("dial refused")
	}
	f.connected.Store(true)
	return nil
}

func (f *flakyStream) Subscribe(context.Context) error { return nil }

func (f *flakyStream) Read(ctx context.Context) (<-chan models.StreamEvent, <-chan error) {
	events := make(chan models.StreamEvent, 1)
	errs := make(chan error)
	events <- f.event
	go func() {
		<-ctx.Done()
		close(events)
		close(errs)
	}()
	return events, errs
}

func (f *flakyStream) Close() error      { f.connected.Store(false); return nil }
func (f *flakyStream) IsConnected() bool { return f.connected.Load() }

func TestIngestorReconnectsAfterDialFailure(t *testing.T) {
	stream := &flakyStream{event: am("SPY", nyAt(13, 0), 1, 2, 0.5, 1.5, 10)}
	store := bars.NewStore(bars.NewCalendar())
	ing := NewIngestor(stream, store, nil, metrics.Nop{}, applogger.Nop(), WithBackoff(time.Millisecond, 5*time.Millisecond))

	if err := ing.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	key := drepo.NewSeriesKey("SPY", drepo.ModeETH, drepo.TF10m)
	deadline := time.Now().Add(2 * time.Second)
	for {
		if ser, ok := store.Lookup(key); ok && ser.Len() == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("event not folded after reconnect (connects=%d)", stream.connects.Load())
		}
		time.Sleep(5 * time.Millisecond)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := ing.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if stream.connects.Load() < 2 {
		t.Fatalf("expected a retry, connects=%d", stream.connects.Load())
	}
}
