package usecase

import (
	"sync"

	"ZoneDesk/internal/domain/models"
	drepo "ZoneDesk/internal/domain/repository"
	applogger "ZoneDesk/pkg/logger"
)

const defaultSubscriberBuffer = 64

// StreamHub is the SSE subscriber registry keyed by series.
// A subscriber whose buffer is full is dropped and its channel closed.
type StreamHub struct {
	mu      sync.Mutex
	subs    map[drepo.SeriesKey]map[uint64]chan models.Bar
	nextID  uint64
	buffer  int
	closed  bool
	metrics drepo.Metrics
	logger  *applogger.Logger
}

type HubOption func(*StreamHub)

func WithSubscriberBuffer(n int) HubOption {
	return func(h *StreamHub) {
		if n > 0 {
			h.buffer = n
		}
	}
}

func NewStreamHub(metrics drepo.Metrics, logger *applogger.Logger, opts ...HubOption) *StreamHub {
	h := &StreamHub{
		subs:    make(map[drepo.SeriesKey]map[uint64]chan models.Bar),
		buffer:  defaultSubscriberBuffer,
		metrics: metrics,
		logger:  logger,
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Register adds a subscriber for key. The channel is closed on Unregister,
// on drop, or when the hub closes.
func (h *StreamHub) Register(key drepo.SeriesKey) (uint64, <-chan models.Bar) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := make(chan models.Bar, h.buffer)
	if h.closed {
		close(ch)
		return 0, ch
	}
	h.nextID++
	id := h.nextID
	set, ok := h.subs[key]
	if !ok {
		set = make(map[uint64]chan models.Bar)
		h.subs[key] = set
	}
	set[id] = ch
	h.metrics.SetSubscribers(h.countLocked())
	h.logger.Debug("stream: subscriber registered", applogger.String("key", key.String()), applogger.Uint64("id", id))
	return id, ch
}

func (h *StreamHub) Unregister(key drepo.SeriesKey, id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(key, id)
}

func (h *StreamHub) removeLocked(key drepo.SeriesKey, id uint64) {
	set, ok := h.subs[key]
	if !ok {
		return
	}
	ch, ok := set[id]
	if !ok {
		return
	}
	close(ch)
	delete(set, id)
	if len(set) == 0 {
		delete(h.subs, key)
	}
	h.metrics.SetSubscribers(h.countLocked())
}

// Broadcast delivers bar to every subscriber of key without blocking.
func (h *StreamHub) Broadcast(key drepo.SeriesKey, bar models.Bar) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subs[key] {
		select {
		case ch <- bar:
		default:
			h.logger.Warn("stream: dropping slow subscriber", applogger.String("key", key.String()), applogger.Uint64("id", id))
			h.metrics.RecordError("sse_slow_subscriber")
			h.removeLocked(key, id)
		}
	}
}

// Count returns the number of subscribers of key.
func (h *StreamHub) Count(key drepo.SeriesKey) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[key])
}

// Total returns the number of subscribers across keys.
func (h *StreamHub) Total() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.countLocked()
}

func (h *StreamHub) countLocked() int {
	n := 0
	for _, set := range h.subs {
		n += len(set)
	}
	return n
}

// Close closes every subscriber channel so handlers return.
func (h *StreamHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for key, set := range h.subs {
		for id := range set {
			h.removeLocked(key, id)
		}
	}
}
