package bars

import (
	"math"
	"sync"

	"ZoneDesk/internal/domain/models"
	drepo "ZoneDesk/internal/domain/repository"
)

// MaxBackfillMinutes caps a single cold-start history request.
const MaxBackfillMinutes = 50000

// minutesPerSessionDay covers 04:00-20:00 ET; history includes extended hours for both modes.
const minutesPerSessionDay = 960

// Horizon is the retention target for one timeframe.
type Horizon struct {
	TradingDays int
	Bars        int
}

var horizons = map[drepo.Timeframe]Horizon{
	drepo.TF10m: {TradingDays: 10, Bars: 390},
	drepo.TF30m: {TradingDays: 63, Bars: 820},
	drepo.TF1h:  {TradingDays: 126, Bars: 880},
	drepo.TF4h:  {TradingDays: 126, Bars: 250},
	drepo.TF1d:  {TradingDays: 126, Bars: 126},
}

// HorizonFor returns the retention horizon; unknown timeframes get the 10m horizon.
func HorizonFor(tf drepo.Timeframe) Horizon {
	if h, ok := horizons[tf]; ok {
		return h
	}
	return horizons[drepo.TF10m]
}

// BackfillMinutes is the number of 1-minute bars needed to cover tf's horizon.
func BackfillMinutes(tf drepo.Timeframe) int {
	n := HorizonFor(tf).TradingDays * minutesPerSessionDay
	if n > MaxBackfillMinutes {
		return MaxBackfillMinutes
	}
	return n
}

// ring is a fixed-capacity FIFO of bars; the newest bar may be mutated in place.
type ring struct {
	buf  []models.Bar
	head int
	size int
}

func newRing(capacity int) ring {
	if capacity < 1 {
		capacity = 1
	}
	return ring{buf: make([]models.Bar, capacity)}
}

func (r *ring) push(b models.Bar) {
	if r.size < len(r.buf) {
		r.buf[(r.head+r.size)%len(r.buf)] = b
		r.size++
		return
	}
	r.buf[r.head] = b
	r.head = (r.head + 1) % len(r.buf)
}

func (r *ring) last() *models.Bar {
	if r.size == 0 {
		return nil
	}
	return &r.buf[(r.head+r.size-1)%len(r.buf)]
}

func (r *ring) tail(n int) []models.Bar {
	if n <= 0 || n > r.size {
		n = r.size
	}
	out := make([]models.Bar, n)
	first := r.size - n
	for i := 0; i < n; i++ {
		out[i] = r.buf[(r.head+first+i)%len(r.buf)]
	}
	return out
}

// Series is the bounded bar sequence for one (symbol, mode, timeframe) key.
// The ingestor is the single writer; handlers read copies through Tail.
type Series struct {
	mu     sync.RWMutex
	key    drepo.SeriesKey
	cal    *Calendar
	bars   ring
	seeded bool
}

func NewSeries(key drepo.SeriesKey, cal *Calendar, capacity int) *Series {
	return &Series{key: key, cal: cal, bars: newRing(capacity)}
}

func (s *Series) Key() drepo.SeriesKey { return s.key }

// Fold applies a 1-minute bar. It returns the resulting tail bar and true when
// the tail was created or updated; rejected and stale bars return false.
func (s *Series) Fold(m models.Bar) (models.Bar, bool) {
	bucket, ok := s.cal.Bucket(m.Time, s.key.TF, s.key.Mode)
	if !ok {
		return models.Bar{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return foldInto(&s.bars, bucket, m)
}

func foldInto(r *ring, bucket int64, m models.Bar) (models.Bar, bool) {
	last := r.last()
	switch {
	case last == nil || last.Time < bucket:
		r.push(models.Bar{Time: bucket, Open: m.Open, High: m.High, Low: m.Low, Close: m.Close, Volume: m.Volume})
		return *r.last(), true
	case last.Time == bucket:
		last.High = math.Max(last.High, m.High)
		last.Low = math.Min(last.Low, m.Low)
		last.Close = m.Close
		last.Volume += m.Volume
		return *last, true
	default:
		return models.Bar{}, false
	}
}

// Seed rebuilds the series from a chronological 1-minute history. Live bars
// newer than the last seeded bucket are kept on top.
func (s *Series) Seed(minutes []models.Bar) int {
	fresh := newRing(len(s.bars.buf))
	for _, m := range minutes {
		bucket, ok := s.cal.Bucket(m.Time, s.key.TF, s.key.Mode)
		if !ok {
			continue
		}
		foldInto(&fresh, bucket, m)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var cutoff int64
	if last := fresh.last(); last != nil {
		cutoff = last.Time
	}
	for _, b := range s.bars.tail(0) {
		if b.Time > cutoff {
			fresh.push(b)
		}
	}
	s.bars = fresh
	s.seeded = true
	return s.bars.size
}

// Tail returns a copy of the last n bars (all when n <= 0 or fewer exist).
func (s *Series) Tail(n int) []models.Bar {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bars.tail(n)
}

// Last returns the newest bar.
func (s *Series) Last() (models.Bar, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if b := s.bars.last(); b != nil {
		return *b, true
	}
	return models.Bar{}, false
}

func (s *Series) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bars.size
}

func (s *Series) Capacity() int { return len(s.bars.buf) }

// Seeded reports whether history has been folded in.
func (s *Series) Seeded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seeded
}
