package repository

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"ZoneDesk/internal/domain/models"
	pkgkafka "ZoneDesk/pkg/kafka"
)

func mb(sym string, ts int64) models.MinuteBar {
	return models.MinuteBar{Symbol: sym, Source: models.SourceAggregate, Bar: models.Bar{Time: ts, Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10}}
}

func TestBuildInsertSkipsInvalidRows(t *testing.T) {
	bad := mb("SPY", 120)
	bad.Low = 3
	q, args := buildInsert("bars_1m", []models.MinuteBar{mb("SPY", 60), bad, mb("", 180)})
	if strings.Count(q, "(?, ?, ?, ?, ?, ?, ?, ?)") != 1 {
		t.Fatalf("want one row in %q", q)
	}
	if len(args) != 8 || args[1] != "SPY" || args[2] != models.SourceAggregate {
		t.Fatalf("unexpected args %v", args)
	}
	if q, _ := buildInsert("bars_1m", []models.MinuteBar{bad}); q != "" {
		t.Fatalf("all-invalid batch should produce no statement")
	}
}

func TestBarTableDDL(t *testing.T) {
	ddl := BarTableDDL("x")[0]
	if !strings.Contains(ddl, "CREATE TABLE IF NOT EXISTS x") || !strings.Contains(ddl, "ReplacingMergeTree") {
		t.Fatalf("unexpected ddl %s", ddl)
	}
}

type fakeWriter struct {
	topic string
	msgs  []pkgkafka.Message
}

func (f *fakeWriter) Publish(_ context.Context, topic string, key []byte, value interface{}) error {
	f.topic = topic
	f.msgs = append(f.msgs, pkgkafka.Message{Key: key, Value: value})
	return nil
}

func (f *fakeWriter) PublishBatch(_ context.Context, topic string, m []pkgkafka.Message) error {
	f.topic = topic
	f.msgs = append(f.msgs, m...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestKafkaBarPublisherKeysBySymbol(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaBarPublisher{producer: w, topic: "bars.1m"}
	if err := p.PublishBatch(context.Background(), []models.MinuteBar{mb("SPY", 60), mb("QQQ", 60)}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if w.topic != "bars.1m" || len(w.msgs) != 2 || string(w.msgs[1].Key) != "QQQ" {
		t.Fatalf("unexpected messages %+v", w.msgs)
	}
	raw, _ := json.Marshal(w.msgs[0].Value)
	var back map[string]any
	_ = json.Unmarshal(raw, &back)
	if back["symbol"] != "SPY" || back["time"].(float64) != 60 || back["close"].(float64) != 1.5 {
		t.Fatalf("payload should flatten the bar: %s", raw)
	}
}
