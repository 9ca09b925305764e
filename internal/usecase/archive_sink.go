package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ZoneDesk/internal/domain/models"
	domrepo "ZoneDesk/internal/domain/repository"
	pkgkafka "ZoneDesk/pkg/kafka"
)

// ArchiveSink consumes published minute bars and writes them to storage.
type ArchiveSink struct {
	topic   string
	storage domrepo.Storage
	metrics domrepo.Metrics
}

func NewArchiveSink(topic string, storage domrepo.Storage, metrics domrepo.Metrics) *ArchiveSink {
	return &ArchiveSink{topic: topic, storage: storage, metrics: metrics}
}

func (h *ArchiveSink) Topic() string { return h.topic }

// Handle expects the JSON written by repository.KafkaBarPublisher.
func (h *ArchiveSink) Handle(ctx context.Context, b []byte) error {
	var m models.MinuteBar
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return fmt.Errorf("decode minute bar: %w", err)
	}
	if m.Symbol == "" || !m.Valid() {
		// poison rows would retry forever
		h.metrics.RecordError("consumer_invalid_bar")
		return nil
	}
	// end-to-end lag from bar close to archive
	h.metrics.RecordLatency("archive_lag_seconds", time.Since(time.Unix(m.Time+60, 0)).Seconds())

	start := time.Now()
	err := h.storage.StoreBatch(ctx, []models.MinuteBar{m})
	h.metrics.RecordLatency("ch_insert_seconds", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("consumer_store")
		return err
	}
	h.metrics.RecordMessageSent("clickhouse", m.Symbol)
	return nil
}

var _ pkgkafka.MessageHandler = (*ArchiveSink)(nil)
