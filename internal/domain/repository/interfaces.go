package repository

import (
	"context"
	"time"

	"ZoneDesk/internal/domain/models"
)

// MarketStream is a live vendor feed of minute aggregates and trade ticks.
type MarketStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan models.StreamEvent, <-chan error)
	Close() error
	IsConnected() bool
}

// HistoricalSource returns chronological 1-minute bars for cold-start backfill.
type HistoricalSource interface {
	MinuteBars(ctx context.Context, symbol string, limit int) ([]models.Bar, error)
}

type Publisher interface {
	Publish(ctx context.Context, b models.MinuteBar) error
	PublishBatch(ctx context.Context, bars []models.MinuteBar) error
	Close() error
}

type Storage interface {
	Init(ctx context.Context) error // ensure tables, health checks
	StoreBatch(ctx context.Context, bars []models.MinuteBar) error
	Query(ctx context.Context, symbol string, from, to time.Time, limit int) ([]models.Bar, error)
	Health(ctx context.Context) error // ping
	Close() error
}

type Metrics interface {
	RecordMessageSent(backend, symbol string)
	RecordError(kind string)
	RecordLastPrice(symbol string, price float64)
	RecordLatency(op string, seconds float64)
	RecordBarFolded(symbol, source string)
	RecordReconnect()
	SetSubscribers(n int)
}
