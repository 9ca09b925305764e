package middleware

import (
	"fmt"
	"sync"
	"time"

	"ZoneDesk/internal/domain/models"
	domrepo "ZoneDesk/internal/domain/repository"
	"ZoneDesk/internal/services/bars"
)

// Sink receives coalesced bar updates.
type Sink interface {
	Broadcast(key domrepo.SeriesKey, bar models.Bar)
}

// keyState tracks the throttle window of one series key.
type keyState struct {
	lastSent time.Time
	pending  *models.Bar
	timer    *time.Timer
}

// RealtimePipeline sits between the ingestor and the stream fan-out.
// It validates tail updates and emits at most one update per key per interval;
// updates inside the window are coalesced and the latest one is flushed when
// the window closes.
type RealtimePipeline struct {
	sink     Sink
	metrics  domrepo.Metrics
	interval time.Duration
	now      func() time.Time

	mu      sync.Mutex
	keys    map[domrepo.SeriesKey]*keyState
	stopped bool
}

type PipelineOption func(*RealtimePipeline)

// WithThrottleInterval sets the minimum spacing between updates for one key.
func WithThrottleInterval(d time.Duration) PipelineOption {
	return func(p *RealtimePipeline) {
		if d > 0 {
			p.interval = d
		}
	}
}

// NewRealtimePipeline creates a new pipeline.
func NewRealtimePipeline(sink Sink, metrics domrepo.Metrics, opts ...PipelineOption) *RealtimePipeline {
	p := &RealtimePipeline{
		sink:     sink,
		metrics:  metrics,
		interval: time.Second,
		now:      time.Now,
		keys:     make(map[domrepo.SeriesKey]*keyState),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish validates an update and forwards it, immediately when the key's
// window is open, otherwise at the end of the window.
func (p *RealtimePipeline) Publish(u bars.Update) error {
	if err := validateUpdate(u); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}

	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	st, ok := p.keys[u.Key]
	if !ok {
		st = &keyState{}
		p.keys[u.Key] = st
	}
	now := p.now()
	if st.timer == nil && (st.lastSent.IsZero() || now.Sub(st.lastSent) >= p.interval) {
		st.lastSent = now
		p.mu.Unlock()
		p.sink.Broadcast(u.Key, u.Bar)
		return nil
	}

	bar := u.Bar
	st.pending = &bar
	if st.timer == nil {
		wait := p.interval - now.Sub(st.lastSent)
		if wait < 0 {
			wait = 0
		}
		key := u.Key
		st.timer = time.AfterFunc(wait, func() { p.flush(key) })
	}
	p.mu.Unlock()
	return nil
}

func (p *RealtimePipeline) flush(key domrepo.SeriesKey) {
	p.mu.Lock()
	st, ok := p.keys[key]
	if !ok || p.stopped {
		p.mu.Unlock()
		return
	}
	pending := st.pending
	st.pending = nil
	st.timer = nil
	if pending == nil {
		p.mu.Unlock()
		return
	}
	st.lastSent = p.now()
	p.mu.Unlock()
	p.sink.Broadcast(key, *pending)
}

// Stop cancels pending flushes; later updates are ignored.
func (p *RealtimePipeline) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped = true
	for _, st := range p.keys {
		if st.timer != nil {
			st.timer.Stop()
			st.timer = nil
		}
		st.pending = nil
	}
}

func validateUpdate(u bars.Update) error {
	if u.Key.Symbol == "" {
		return fmt.Errorf("symbol empty")
	}
	if !u.Key.TF.IsCached() {
		return fmt.Errorf("timeframe %q not cached", u.Key.TF)
	}
	if !u.Bar.Valid() {
		return fmt.Errorf("invalid bar at %d", u.Bar.Time)
	}
	return nil
}
