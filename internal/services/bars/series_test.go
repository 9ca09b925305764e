package bars

import (
	"sort"
	"testing"
	"time"

	"ZoneDesk/internal/domain/models"
	drepo "ZoneDesk/internal/domain/repository"
)

func minute(ts int64, o, h, l, c, v float64) models.Bar {
	return models.Bar{Time: ts, Open: o, High: h, Low: l, Close: c, Volume: v}
}

func TestStoreFoldMinuteUpdatesOpenBar(t *testing.T) {
	store := NewStore(NewCalendar())
	t0 := ny(t, 2024, time.March, 12, 13, 0)
	store.FoldMinute("spy", minute(t0, 100, 101, 99, 100.5, 1000))
	store.FoldMinute("SPY", minute(t0+60, 100.5, 102, 100, 101.8, 1500))

	ser, ok := store.Lookup(drepo.NewSeriesKey("SPY", drepo.ModeRTH, drepo.TF10m))
	if !ok {
		t.Fatalf("series not created")
	}
	got := ser.Tail(0)
	if len(got) != 1 {
		t.Fatalf("want 1 bar got %d", len(got))
	}
	want := models.Bar{Time: t0, Open: 100, High: 102, Low: 99, Close: 101.8, Volume: 2500}
	if got[0] != want {
		t.Fatalf("want %+v got %+v", want, got[0])
	}
}

func TestFoldMinuteReportsEveryKey(t *testing.T) {
	store := NewStore(NewCalendar())
	ups := store.FoldMinute("SPY", minute(ny(t, 2024, time.March, 12, 13, 0), 1, 1, 1, 1, 1))
	if len(ups) != 10 {
		t.Fatalf("rth bar should touch 5 timeframes x 2 modes, got %d", len(ups))
	}
	ups = store.FoldMinute("SPY", minute(ny(t, 2024, time.March, 12, 18, 0), 1, 1, 1, 1, 1))
	for _, u := range ups {
		if u.Key.Mode == drepo.ModeRTH && u.Key.TF != drepo.TF1d {
			t.Fatalf("after-hours bar leaked into %s", u.Key)
		}
	}
}

func TestFoldDiscardsOlderBucket(t *testing.T) {
	cal := NewCalendar()
	s := NewSeries(drepo.NewSeriesKey("SPY", drepo.ModeETH, drepo.TF10m), cal, 10)
	t0 := ny(t, 2024, time.March, 12, 13, 0)
	s.Fold(minute(t0+600, 5, 6, 4, 5, 10))
	if _, ok := s.Fold(minute(t0, 1, 9, 0.5, 2, 10)); ok {
		t.Fatalf("older bucket must be discarded")
	}
	last, _ := s.Last()
	if last.Time != t0+600 || last.High != 6 {
		t.Fatalf("tail rolled back: %+v", last)
	}
}

func TestFoldReplayKeepsPrices(t *testing.T) {
	s := NewSeries(drepo.NewSeriesKey("SPY", drepo.ModeETH, drepo.TF30m), NewCalendar(), 10)
	m := minute(ny(t, 2024, time.March, 12, 13, 1), 10, 12, 9, 11, 5)
	a, _ := s.Fold(m)
	b, _ := s.Fold(m)
	if a.High != b.High || a.Low != b.Low || a.Close != b.Close {
		t.Fatalf("replay changed prices: %+v vs %+v", a, b)
	}
}

func TestSeriesEvictsOldest(t *testing.T) {
	s := NewSeries(drepo.NewSeriesKey("SPY", drepo.ModeETH, drepo.TF10m), NewCalendar(), 3)
	t0 := ny(t, 2024, time.March, 12, 13, 0)
	for i := int64(0); i < 5; i++ {
		s.Fold(minute(t0+i*600, 1, 2, 0.5, 1.5, 1))
	}
	got := s.Tail(0)
	if len(got) != 3 || got[0].Time != t0+2*600 || got[2].Time != t0+4*600 {
		t.Fatalf("unexpected ring contents %+v", got)
	}
	if tail := s.Tail(2); len(tail) != 2 || tail[1].Time != t0+4*600 {
		t.Fatalf("tail(2) wrong: %+v", tail)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Time <= got[i-1].Time {
			t.Fatalf("times not increasing")
		}
	}
}

func TestSeedMatchesOfflineBucketing(t *testing.T) {
	cal := NewCalendar()
	var mins []models.Bar
	start := ny(t, 2024, time.March, 11, 4, 0)
	price := 500.0
	for day := 0; day < 3; day++ {
		base := start + int64(day)*secondsPerDay
		for i := int64(0); i < 960; i++ {
			price += float64((i%7)-3) * 0.01
			mins = append(mins, minute(base+i*60, price, price+0.05, price-0.05, price+0.01, float64(100+i%13)))
		}
	}

	for _, mode := range drepo.SessionModes() {
		for _, tf := range drepo.CachedTimeframes() {
			s := NewSeries(drepo.NewSeriesKey("SPY", mode, tf), cal, HorizonFor(tf).Bars)
			s.Seed(mins)
			got := s.Tail(0)

			grouped := map[int64]*models.Bar{}
			for _, m := range mins {
				b, ok := cal.Bucket(m.Time, tf, mode)
				if !ok {
					continue
				}
				if g, ok := grouped[b]; ok {
					if m.High > g.High {
						g.High = m.High
					}
					if m.Low < g.Low {
						g.Low = m.Low
					}
					g.Close = m.Close
					g.Volume += m.Volume
					continue
				}
				cp := m
				cp.Time = b
				grouped[b] = &cp
			}
			keys := make([]int64, 0, len(grouped))
			for k := range grouped {
				keys = append(keys, k)
			}
			sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
			if len(keys) != len(got) {
				t.Fatalf("%s/%s: want %d bars got %d", mode, tf, len(keys), len(got))
			}
			for i, k := range keys {
				if *grouped[k] != got[i] {
					t.Fatalf("%s/%s bar %d: want %+v got %+v", mode, tf, i, *grouped[k], got[i])
				}
				if !got[i].Valid() {
					t.Fatalf("invalid bar %+v", got[i])
				}
			}
		}
	}
}

func TestSeedThirtyMinutesIntoTenMinuteBars(t *testing.T) {
	s := NewSeries(drepo.NewSeriesKey("SPY", drepo.ModeRTH, drepo.TF10m), NewCalendar(), 390)
	t0 := ny(t, 2024, time.March, 12, 13, 0)
	var mins []models.Bar
	for i := int64(0); i < 30; i++ {
		mins = append(mins, minute(t0+i*60, 100, 101, 99, 100, 10))
	}
	if n := s.Seed(mins); n != 3 {
		t.Fatalf("want 3 bars got %d", n)
	}
	got := s.Tail(3)
	for i, want := range []int64{t0, t0 + 600, t0 + 1200} {
		if got[i].Time != want || got[i].Volume != 100 {
			t.Fatalf("bar %d: %+v", i, got[i])
		}
	}
	if !s.Seeded() {
		t.Fatalf("series should be marked seeded")
	}
}

func TestSeedKeepsNewerLiveBars(t *testing.T) {
	s := NewSeries(drepo.NewSeriesKey("SPY", drepo.ModeETH, drepo.TF10m), NewCalendar(), 100)
	t0 := ny(t, 2024, time.March, 12, 13, 0)
	s.Fold(minute(t0+1800, 7, 8, 6, 7, 1))
	s.Seed([]models.Bar{minute(t0, 1, 2, 0.5, 1, 1), minute(t0+600, 1, 2, 0.5, 1, 1)})
	got := s.Tail(0)
	if len(got) != 3 || got[2].Time != t0+1800 {
		t.Fatalf("live bar lost after seed: %+v", got)
	}
}

func TestBackfillMinutesCapped(t *testing.T) {
	if got := BackfillMinutes(drepo.TF10m); got != 9600 {
		t.Fatalf("10m: want 9600 got %d", got)
	}
	if got := BackfillMinutes(drepo.TF1d); got != MaxBackfillMinutes {
		t.Fatalf("1d must cap at %d, got %d", MaxBackfillMinutes, got)
	}
}
