package middleware

import (
	"sync"
	"testing"
	"time"

	"ZoneDesk/internal/domain/models"
	domrepo "ZoneDesk/internal/domain/repository"
	"ZoneDesk/internal/services/bars"
	"ZoneDesk/pkg/metrics"
)

type sent struct {
	at  time.Time
	bar models.Bar
}

type recordingSink struct {
	mu   sync.Mutex
	msgs map[domrepo.SeriesKey][]sent
}

func (s *recordingSink) Broadcast(key domrepo.SeriesKey, bar models.Bar) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.msgs == nil {
		s.msgs = map[domrepo.SeriesKey][]sent{}
	}
	s.msgs[key] = append(s.msgs[key], sent{at: time.Now(), bar: bar})
}

func (s *recordingSink) get(key domrepo.SeriesKey) []sent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sent(nil), s.msgs[key]...)
}

func update(key domrepo.SeriesKey, close float64) bars.Update {
	return bars.Update{Key: key, Bar: models.Bar{Time: 1710262800, Open: 100, High: 200, Low: 50, Close: close, Volume: 1}}
}

func TestPipelineCoalescesWithinWindow(t *testing.T) {
	sink := &recordingSink{}
	interval := 100 * time.Millisecond
	p := NewRealtimePipeline(sink, metrics.Nop{}, WithThrottleInterval(interval))
	defer p.Stop()
	key := domrepo.NewSeriesKey("SPY", domrepo.ModeRTH, domrepo.TF10m)

	for i := 0; i < 20; i++ {
		if err := p.Publish(update(key, 100+float64(i))); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}
	time.Sleep(3 * interval)

	got := sink.get(key)
	if len(got) != 2 {
		t.Fatalf("want first update plus one coalesced flush, got %d", len(got))
	}
	if got[0].bar.Close != 100 || got[1].bar.Close != 119 {
		t.Fatalf("flush must carry the latest state: %+v", got)
	}
	if gap := got[1].at.Sub(got[0].at); gap < interval-5*time.Millisecond {
		t.Fatalf("updates closer than the window: %v", gap)
	}
}

func TestPipelineKeysAreIndependent(t *testing.T) {
	sink := &recordingSink{}
	p := NewRealtimePipeline(sink, metrics.Nop{}, WithThrottleInterval(time.Hour))
	defer p.Stop()
	a := domrepo.NewSeriesKey("SPY", domrepo.ModeRTH, domrepo.TF10m)
	b := domrepo.NewSeriesKey("SPY", domrepo.ModeETH, domrepo.TF10m)
	_ = p.Publish(update(a, 101))
	_ = p.Publish(update(b, 101))
	if len(sink.get(a)) != 1 || len(sink.get(b)) != 1 {
		t.Fatalf("each key gets its own window")
	}
}

func TestPipelineRejectsInvalidBars(t *testing.T) {
	p := NewRealtimePipeline(&recordingSink{}, metrics.Nop{})
	key := domrepo.NewSeriesKey("SPY", domrepo.ModeRTH, domrepo.TF10m)
	bad := bars.Update{Key: key, Bar: models.Bar{Time: 1, Open: 5, High: 4, Low: 3, Close: 5}}
	if err := p.Publish(bad); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestPipelineStopDropsPending(t *testing.T) {
	sink := &recordingSink{}
	p := NewRealtimePipeline(sink, metrics.Nop{}, WithThrottleInterval(50*time.Millisecond))
	key := domrepo.NewSeriesKey("SPY", domrepo.ModeRTH, domrepo.TF10m)
	_ = p.Publish(update(key, 101))
	_ = p.Publish(update(key, 102))
	p.Stop()
	time.Sleep(120 * time.Millisecond)
	if n := len(sink.get(key)); n != 1 {
		t.Fatalf("pending update flushed after stop: %d", n)
	}
}
