package bars

import (
	"sort"
	"sync"

	"ZoneDesk/internal/domain/models"
	drepo "ZoneDesk/internal/domain/repository"
)

// Update is a tail change for one series.
type Update struct {
	Key drepo.SeriesKey
	Bar models.Bar
}

// Store is the process-wide registry of bar series.
type Store struct {
	mu     sync.RWMutex
	cal    *Calendar
	series map[drepo.SeriesKey]*Series
}

func NewStore(cal *Calendar) *Store {
	return &Store{cal: cal, series: make(map[drepo.SeriesKey]*Series)}
}

func (s *Store) Calendar() *Calendar { return s.cal }

// Series returns the series for key, creating an empty one on first use.
func (s *Store) Series(key drepo.SeriesKey) *Series {
	s.mu.RLock()
	ser, ok := s.series[key]
	s.mu.RUnlock()
	if ok {
		return ser
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if ser, ok = s.series[key]; ok {
		return ser
	}
	ser = NewSeries(key, s.cal, HorizonFor(key.TF).Bars)
	s.series[key] = ser
	return ser
}

// Lookup returns an existing series without creating one.
func (s *Store) Lookup(key drepo.SeriesKey) (*Series, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ser, ok := s.series[key]
	return ser, ok
}

// FoldMinute folds a 1-minute bar into every cached timeframe under both
// session modes and returns the tail changes.
func (s *Store) FoldMinute(symbol string, m models.Bar) []Update {
	tfs := drepo.CachedTimeframes()
	modes := drepo.SessionModes()
	updates := make([]Update, 0, len(tfs)*len(modes))
	for _, mode := range modes {
		for _, tf := range tfs {
			key := drepo.NewSeriesKey(symbol, mode, tf)
			if b, ok := s.Series(key).Fold(m); ok {
				updates = append(updates, Update{Key: key, Bar: b})
			}
		}
	}
	return updates
}

// Keys lists every known key in a stable order.
func (s *Store) Keys() []drepo.SeriesKey {
	s.mu.RLock()
	keys := make([]drepo.SeriesKey, 0, len(s.series))
	for k := range s.series {
		keys = append(keys, k)
	}
	s.mu.RUnlock()
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}
