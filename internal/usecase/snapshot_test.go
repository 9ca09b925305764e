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

var nyLoc = func() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		panic(err)
	}
	return loc
}()

func nyAt(hh, mm int) int64 {
	return time.Date(2024, time.March, 12, hh, mm, 0, 0, nyLoc).Unix()
}

type fakeHistory struct {
	calls atomic.Int32
	delay time.Duration
	bars  []models.Bar
	err   error
	limit int
}

func (f *fakeHistory) MinuteBars(_ context.Context, _ string, limit int) ([]models.Bar, error) {
	f.calls.Add(1)
	f.limit = limit
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.bars, f.err
}

func thirtyMinutes() []models.Bar {
	out := make([]models.Bar, 0, 30)
	for i := 0; i < 30; i++ {
		out = append(out, models.Bar{Time: nyAt(13, i), Open: 100, High: 101, Low: 99, Close: 100.5, Volume: 10})
	}
	return out
}

func TestSnapshotColdSeedsFromHistory(t *testing.T) {
	store := bars.NewStore(bars.NewCalendar())
	hist := &fakeHistory{bars: thirtyMinutes()}
	uc := NewSnapshotUseCase(store, hist, metrics.Nop{}, applogger.Nop())
	key := drepo.NewSeriesKey("SPY", drepo.ModeRTH, drepo.TF10m)

	got, err := uc.Snapshot(context.Background(), key, 3)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	want := []int64{nyAt(13, 0), nyAt(13, 10), nyAt(13, 20)}
	if len(got) != 3 {
		t.Fatalf("want 3 bars got %d", len(got))
	}
	for i, w := range want {
		if got[i].Time != w {
			t.Fatalf("bar %d: want %d got %d", i, w, got[i].Time)
		}
	}
	if hist.limit != bars.BackfillMinutes(drepo.TF10m) {
		t.Fatalf("unexpected backfill window %d", hist.limit)
	}
	ser, _ := store.Lookup(key)
	if ser.Len() != 3 {
		t.Fatalf("cache should hold the seeded bars, got %d", ser.Len())
	}

	if _, err := uc.Snapshot(context.Background(), key, 3); err != nil {
		t.Fatalf("warm snapshot: %v", err)
	}
	if hist.calls.Load() != 1 {
		t.Fatalf("warm key must not refetch, calls=%d", hist.calls.Load())
	}
}

func TestSnapshotConcurrentColdRequestsShareBackfill(t *testing.T) {
	store := bars.NewStore(bars.NewCalendar())
	hist := &fakeHistory{bars: thirtyMinutes(), delay: 50 * time.Millisecond}
	uc := NewSnapshotUseCase(store, hist, metrics.Nop{}, applogger.Nop())
	key := drepo.NewSeriesKey("SPY", drepo.ModeETH, drepo.TF30m)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := uc.Snapshot(context.Background(), key, 0); err != nil {
				t.Errorf("snapshot: %v", err)
			}
		}()
	}
	wg.Wait()
	if hist.calls.Load() != 1 {
		t.Fatalf("want one history call got %d", hist.calls.Load())
	}
}

func TestSnapshotBackfillFailure(t *testing.T) {
	store := bars.NewStore(bars.NewCalendar())
	uc := NewSnapshotUseCase(store, &fakeHistory{err: errors.New("503")}, metrics.Nop{}, applogger.Nop())
	key := drepo.NewSeriesKey("SPY", drepo.ModeRTH, drepo.TF10m)
	if _, err := uc.Snapshot(context.Background(), key, 10); err == nil {
		t.Fatalf("cold key without history must fail")
	}

	store.FoldMinute("SPY", models.Bar{Time: nyAt(13, 0), Open: 1, High: 1, Low: 1, Close: 1, Volume: 1})
	got, err := uc.Snapshot(context.Background(), key, 10)
	if err != nil || len(got) != 1 {
		t.Fatalf("live bars should be served when backfill fails: %v %+v", err, got)
	}
}

func TestSnapshotEmptyHistoryIsError(t *testing.T) {
	uc := NewSnapshotUseCase(bars.NewStore(bars.NewCalendar()), &fakeHistory{}, metrics.Nop{}, applogger.Nop())
	_, err := uc.Snapshot(context.Background(), drepo.NewSeriesKey("SPY", drepo.ModeRTH, drepo.TF1h), 10)
	if !errors.Is(err, ErrNoHistory) {
		t.Fatalf("want ErrNoHistory got %v", err)
	}
}
