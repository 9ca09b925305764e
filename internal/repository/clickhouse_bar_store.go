package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"ZoneDesk/internal/domain/models"
	domrepo "ZoneDesk/internal/domain/repository"
	applogger "ZoneDesk/pkg/logger"
)

// DefaultBarTable holds sealed 1-minute bars.
const DefaultBarTable = "bars_1m"

// BarTableDDL returns the idempotent schema for table. Replays of the same
// minute collapse on merge.
func BarTableDDL(table string) []string {
	return []string{fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    ts      DateTime('UTC'),
    symbol  LowCardinality(String),
    source  LowCardinality(String),
    open    Float64,
    high    Float64,
    low     Float64,
    close   Float64,
    volume  Float64,
    ingested_at DateTime64(3, 'UTC') DEFAULT now64(3)
) ENGINE = ReplacingMergeTree(ingested_at)
ORDER BY (symbol, ts)`, table)}
}

// ClickHouseBarStore archives minute bars and serves them back as history.
type ClickHouseBarStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

var (
	_ domrepo.Storage          = (*ClickHouseBarStore)(nil)
	_ domrepo.HistoricalSource = (*ClickHouseBarStore)(nil)
)

func NewClickHouseBarStore(db *sql.DB, table string, l *applogger.Logger) *ClickHouseBarStore {
	if table == "" {
		table = DefaultBarTable
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &ClickHouseBarStore{db: db, table: table, l: l}
}

func (s *ClickHouseBarStore) Init(ctx context.Context) error {
	for _, stmt := range BarTableDDL(s.table) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init %s: %w", s.table, err)
		}
	}
	return nil
}

const insertChunk = 2000

// StoreBatch inserts bars with multi-row VALUES, chunked.
func (s *ClickHouseBarStore) StoreBatch(ctx context.Context, bars []models.MinuteBar) error {
	for start := 0; start < len(bars); start += insertChunk {
		end := min(start+insertChunk, len(bars))
		q, args := buildInsert(s.table, bars[start:end])
		if q == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			s.l.Error("clickhouse insert bars",
				applogger.String("table", s.table),
				applogger.Int("rows", len(args)/8),
				applogger.Error(err))
			return fmt.Errorf("store bars: %w", err)
		}
	}
	return nil
}

func buildInsert(table string, bars []models.MinuteBar) (string, []interface{}) {
	values := make([]string, 0, len(bars))
	args := make([]interface{}, 0, len(bars)*8)
	for _, b := range bars {
		if b.Symbol == "" || !b.Valid() {
			continue
		}
		values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args,
			time.Unix(b.Time, 0).UTC(),
			b.Symbol,
			b.Source,
			b.Open,
			b.High,
			b.Low,
			b.Close,
			b.Volume,
		)
	}
	if len(values) == 0 {
		return "", nil
	}
	q := fmt.Sprintf("INSERT INTO %s (ts, symbol, source, open, high, low, close, volume) VALUES %s",
		table, strings.Join(values, ","))
	return q, args
}

// Query returns ascending bars in [from, to], at most limit of the newest.
func (s *ClickHouseBarStore) Query(ctx context.Context, symbol string, from, to time.Time, limit int) ([]models.Bar, error) {
	q := fmt.Sprintf(`SELECT ts, open, high, low, close, volume FROM %s FINAL
        WHERE symbol = ? AND ts >= ? AND ts <= ? ORDER BY ts DESC LIMIT ?`, s.table)
	return s.scan(ctx, q, symbol, from.UTC(), to.UTC(), limit)
}

// MinuteBars returns the newest limit bars in ascending order.
func (s *ClickHouseBarStore) MinuteBars(ctx context.Context, symbol string, limit int) ([]models.Bar, error) {
	q := fmt.Sprintf(`SELECT ts, open, high, low, close, volume FROM %s FINAL
        WHERE symbol = ? ORDER BY ts DESC LIMIT ?`, s.table)
	return s.scan(ctx, q, strings.ToUpper(symbol), limit)
}

func (s *ClickHouseBarStore) scan(ctx context.Context, q string, args ...interface{}) ([]models.Bar, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query bars: %w", err)
	}
	defer rows.Close()

	var out []models.Bar
	for rows.Next() {
		var b models.Bar
		var ts time.Time
		if err := rows.Scan(&ts, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		b.Time = ts.Unix()
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	reverse(out)
	return out, nil
}

func reverse(bars []models.Bar) {
	for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
		bars[i], bars[j] = bars[j], bars[i]
	}
}

func (s *ClickHouseBarStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseBarStore) Close() error {
	return nil // pool owned by pkg/clickhouse.Client
}
