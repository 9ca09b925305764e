package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ZoneDesk/internal/domain/models"
	drepo "ZoneDesk/internal/domain/repository"
	applogger "ZoneDesk/pkg/logger"
)

const (
	BackendNone       = "none"
	BackendKafka      = "kafka"
	BackendClickHouse = "clickhouse"
)

// BarProcessor batches sealed minute bars and routes them to the configured backend.
type BarProcessor struct {
	pub     drepo.Publisher
	store   drepo.Storage
	metrics drepo.Metrics
	logger  *applogger.Logger
	backend string
	batchSz int
	batchTO time.Duration
	maxBuf  int

	mu      sync.Mutex
	buf     []models.MinuteBar
	flushCh chan struct{}
	stopCh  chan struct{}
	doneCh  chan struct{}
	started bool
}

// NewBarProcessor creates a new BarProcessor instance.
func NewBarProcessor(
	pub drepo.Publisher,
	store drepo.Storage,
	metrics drepo.Metrics,
	logger *applogger.Logger,
	backend string,
	batchSz int,
	batchTO time.Duration,
) *BarProcessor {
	if batchSz <= 0 {
		batchSz = 100
	}
	if batchTO <= 0 {
		batchTO = time.Second
	}
	return &BarProcessor{
		pub:     pub,
		store:   store,
		metrics: metrics,
		logger:  logger,
		backend: backend,
		batchSz: batchSz,
		batchTO: batchTO,
		maxBuf:  batchSz * 50,
		flushCh: make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Enabled reports whether bars are archived at all.
func (p *BarProcessor) Enabled() bool {
	return p.backend == BackendKafka || p.backend == BackendClickHouse
}

// Process enqueues one sealed minute bar. The oldest bars are dropped when
// the backend falls too far behind.
func (p *BarProcessor) Process(_ context.Context, b models.MinuteBar) error {
	if !p.Enabled() {
		return nil
	}
	if b.Symbol == "" || !b.Valid() {
		return fmt.Errorf("invalid minute bar %s@%d", b.Symbol, b.Time)
	}
	p.mu.Lock()
	p.buf = append(p.buf, b)
	if over := len(p.buf) - p.maxBuf; over > 0 {
		p.buf = p.buf[over:]
		p.metrics.RecordError("archive_buffer_drop")
	}
	full := len(p.buf) >= p.batchSz
	p.mu.Unlock()
	if full {
		select {
		case p.flushCh <- struct{}{}:
		default:
		}
	}
	return nil
}

// Start runs the flush loop until Close.
func (p *BarProcessor) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started || !p.Enabled() {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		defer close(p.doneCh)
		ticker := time.NewTicker(p.batchTO)
		defer ticker.Stop()
		for {
			select {
			case <-p.stopCh:
				p.flush(context.WithoutCancel(ctx))
				return
			case <-ticker.C:
				p.flush(ctx)
			case <-p.flushCh:
				p.flush(ctx)
			}
		}
	}()
}

func (p *BarProcessor) flush(ctx context.Context) {
	p.mu.Lock()
	if len(p.buf) == 0 {
		p.mu.Unlock()
		return
	}
	batch := p.buf
	p.buf = nil
	p.mu.Unlock()

	if err := p.ProcessBatch(ctx, batch); err != nil {
		p.logger.Error("archive: batch failed",
			applogger.String("backend", p.backend),
			applogger.Int("bars", len(batch)),
			applogger.Error(err))
	}
}

// ProcessBatch writes bars to the backend synchronously.
func (p *BarProcessor) ProcessBatch(ctx context.Context, bars []models.MinuteBar) error {
	if len(bars) == 0 {
		return nil
	}

	start := time.Now()
	var err error

	switch p.backend {
	case BackendKafka:
		err = p.pub.PublishBatch(ctx, bars)
	case BackendClickHouse:
		err = p.store.StoreBatch(ctx, bars)
	default:
		err = fmt.Errorf("unknown backend: %s", p.backend)
	}

	if err != nil {
		p.metrics.RecordError("process_batch")
		return fmt.Errorf("process batch: %w", err)
	}

	for _, b := range bars {
		p.metrics.RecordMessageSent(p.backend, b.Symbol)
	}
	p.metrics.RecordLatency("process_batch", time.Since(start).Seconds())

	return nil
}

// Close flushes pending bars and closes underlying resources if available.
func (p *BarProcessor) Close() {
	p.mu.Lock()
	started := p.started
	p.started = false
	p.mu.Unlock()
	if started {
		close(p.stopCh)
		<-p.doneCh
	}
	if p.pub != nil {
		_ = p.pub.Close()
	}
	if p.store != nil {
		_ = p.store.Close()
	}
}
