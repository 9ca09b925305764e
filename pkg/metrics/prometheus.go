package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	messagesSent *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	lastPrice    *prometheus.GaugeVec
	latency      *prometheus.HistogramVec
	barsFolded   *prometheus.CounterVec
	reconnects   prometheus.Counter
	subscribers  prometheus.Gauge
}

// New creates a new Prometheus metrics recorder registered on the default registry.
func New() *Recorder {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers the recorder's collectors on reg.
func NewWith(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		messagesSent: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zonedesk_archived_bars_total",
				Help: "Total number of minute bars handed to the archival backend",
			},
			[]string{"backend", "symbol"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zonedesk_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastPrice: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "zonedesk_last_price",
				Help: "Last recorded price for a symbol",
			},
			[]string{"symbol"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "zonedesk_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		barsFolded: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zonedesk_minute_bars_folded_total",
				Help: "Minute bars folded into the bar cache by source",
			},
			[]string{"symbol", "source"},
		),
		reconnects: f.NewCounter(prometheus.CounterOpts{
			Name: "zonedesk_ws_reconnects_total",
			Help: "Vendor websocket reconnect attempts",
		}),
		subscribers: f.NewGauge(prometheus.GaugeOpts{
			Name: "zonedesk_sse_subscribers",
			Help: "Currently registered SSE subscribers",
		}),
	}
}

// RecordMessageSent records a bar sent to an archival backend.
func (r *Recorder) RecordMessageSent(backend, symbol string) {
	r.messagesSent.WithLabelValues(backend, symbol).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastPrice records the last price for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

func (r *Recorder) RecordBarFolded(symbol, source string) {
	r.barsFolded.WithLabelValues(symbol, source).Inc()
}

func (r *Recorder) RecordReconnect() { r.reconnects.Inc() }

func (r *Recorder) SetSubscribers(n int) { r.subscribers.Set(float64(n)) }

// Nop discards every observation.
type Nop struct{}

func (Nop) RecordMessageSent(string, string)  {}
func (Nop) RecordError(string)                {}
func (Nop) RecordLastPrice(string, float64)   {}
func (Nop) RecordLatency(string, float64)     {}
func (Nop) RecordBarFolded(string, string)    {}
func (Nop) RecordReconnect()                  {}
func (Nop) SetSubscribers(int)                {}
