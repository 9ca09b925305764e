package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

const (
	BackendNone       = "none"
	BackendKafka      = "kafka"
	BackendClickHouse = "clickhouse"
)

type Config struct {
	Environment string           `yaml:"environment" default:"development"`
	Server      ServerConfig     `yaml:"server"`
	Log         LogConfig        `yaml:"log"`
	Metrics     MetricsConfig    `yaml:"metrics"`
	Backend     BackendConfig    `yaml:"backend"`
	Kafka       KafkaConfig      `yaml:"kafka"`
	ClickHouse  ClickHouseConfig `yaml:"clickhouse"`
	Polygon     PolygonConfig    `yaml:"polygon"`
	History     HistoryConfig    `yaml:"history"`
	Stream      StreamConfig     `yaml:"stream"`
	Zones       ZonesConfig      `yaml:"zones"`
	Analytics   AnalyticsConfig  `yaml:"analytics"`
}

type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout"` // zero keeps SSE streams open
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	CORSOrigin      string        `yaml:"cors_origin" default:"http://localhost:5173"`
}

type LogConfig struct {
	Level  string `yaml:"level" default:"info"`
	Format string `yaml:"format" default:"console"`
	Output string `yaml:"output" default:"stdout"`
}

type MetricsConfig struct {
	Disabled bool   `yaml:"disabled"`
	Path     string `yaml:"path" default:"/metrics"`
}

type BackendConfig struct {
	Type         string        `yaml:"type" default:"none"`
	BatchSize    int           `yaml:"batch_size" default:"100"`
	BatchTimeout time.Duration `yaml:"batch_timeout" default:"2s"`
}

type KafkaConfig struct {
	Brokers      []string        `yaml:"brokers"`
	Topic        string          `yaml:"topic" default:"bars.1m"`
	RequiredAcks int             `yaml:"required_acks" default:"-1"`
	Compression  string          `yaml:"compression" default:"snappy"`
	Producer     KafkaProducer   `yaml:"producer"`
	Consumer     KafkaConsumer   `yaml:"consumer"`
	Sink         KafkaSinkConfig `yaml:"sink"`
}

type KafkaProducer struct {
	MaxAttempts  int           `yaml:"max_attempts" default:"5"`
	Linger       time.Duration `yaml:"linger" default:"10ms"`
	BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
	BatchSize    int           `yaml:"batch_size" default:"100"`
	WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
	ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
	Async        bool          `yaml:"async"`
}

type KafkaConsumer struct {
	GroupID    string        `yaml:"group_id" default:"zonedesk-archive"`
	Workers    int           `yaml:"workers" default:"2"`
	BufferSize int           `yaml:"buffer_size" default:"256"`
	RetryMax   int           `yaml:"retry_max" default:"3"`
	BackoffMin time.Duration `yaml:"backoff_min" default:"100ms"`
	BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
	DLQTopic   string        `yaml:"dlq_topic"`
	MinBytes   int           `yaml:"min_bytes" default:"1"`
	MaxBytes   int           `yaml:"max_bytes" default:"10485760"`
}

// KafkaSinkConfig runs an in-process consumer that drains the bar topic into ClickHouse.
type KafkaSinkConfig struct {
	Enabled bool `yaml:"enabled"`
}

type ClickHouseConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port" default:"9000"`
	Database         string        `yaml:"database" default:"default"`
	User             string        `yaml:"user" default:"default"`
	Password         string        `yaml:"password"`
	Table            string        `yaml:"table" default:"bars_1m"`
	UseHTTP          bool          `yaml:"use_http"`
	AsyncInsert      bool          `yaml:"async_insert"`
	WaitForAsync     bool          `yaml:"wait_for_async_insert"`
	DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
	ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
	WriteTimeout     time.Duration `yaml:"write_timeout" default:"10s"`
	MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
}

// Enabled reports whether a ClickHouse host is configured.
func (c ClickHouseConfig) Enabled() bool { return c.Host != "" }

type PolygonConfig struct {
	APIKey             string        `yaml:"api_key"`
	WebSocketURL       string        `yaml:"websocket_url" default:"wss://socket.polygon.io/stocks"`
	Symbols            []string      `yaml:"symbols" default:"[\"SPY\",\"QQQ\"]"`
	PingInterval       time.Duration `yaml:"ping_interval" default:"30s"`
	AggregateFreshness time.Duration `yaml:"aggregate_freshness" default:"120s"`
	BackoffMin         time.Duration `yaml:"backoff_min" default:"500ms"`
	BackoffMax         time.Duration `yaml:"backoff_max" default:"15s"`
}

type HistoryConfig struct {
	BaseURL         string        `yaml:"base_url"`
	Timeout         time.Duration `yaml:"timeout" default:"15s"`
	BackfillTimeout time.Duration `yaml:"backfill_timeout" default:"20s"`
}

type StreamConfig struct {
	ThrottleInterval  time.Duration `yaml:"throttle_interval" default:"1s"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval" default:"15s"`
	SubscriberBuffer  int           `yaml:"subscriber_buffer" default:"64"`
}

type ZonesConfig struct {
	Dir string `yaml:"dir" default:"data/zones"`
}

type AnalyticsConfig struct {
	Engine4BaseURL string        `yaml:"engine4_base_url"`
	Timeout        time.Duration `yaml:"timeout" default:"5s"`
	CacheTTL       time.Duration `yaml:"cache_ttl" default:"5s"`
	RateLimit      RateLimit     `yaml:"rate_limit"`
	Weights        WeightsConfig `yaml:"weights"`
	Redis          RedisConfig   `yaml:"redis"`
}

type RateLimit struct {
	Capacity     float64 `yaml:"capacity" default:"20"`
	RefillPerSec float64 `yaml:"refill_per_sec" default:"5"`
}

type WeightsConfig struct {
	Zone     float64 `yaml:"zone" default:"0.60"`
	Fib      float64 `yaml:"fib" default:"0.15"`
	Reaction float64 `yaml:"reaction" default:"0.10"`
	Volume   float64 `yaml:"volume" default:"0.15"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr" default:"localhost:6379"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Load reads a YAML file and fills unset fields with defaults. A missing file yields defaults only.
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(b, &c); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML, applies environment overrides and validates.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := c.ApplyEnv(nil); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

type envOverrides struct {
	PolygonAPIKey  string   `env:"POLYGON_API_KEY"`
	PolygonAPI     string   `env:"POLYGON_API"`
	PolyAPIKey     string   `env:"POLY_API_KEY"`
	HistBase       string   `env:"HIST_BASE"`
	Backend1Base   string   `env:"BACKEND1_BASE"`
	StreamSymbols  []string `env:"STREAM_SYMBOLS" envSeparator:","`
	Engine4BaseURL string   `env:"ENGINE4_BASE_URL"`
	Port           int      `env:"PORT"`
	Backend        string   `env:"BACKEND"`
	KafkaBrokers   []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic     string   `env:"KAFKA_TOPIC"`
	RedisAddr      string   `env:"REDIS_ADDR"`
	LogLevel       string   `env:"LOG_LEVEL"`
	ZonesDir       string   `env:"ZONES_DIR"`
}

// ApplyEnv overrides config from environ; nil reads the process environment.
func (c *Config) ApplyEnv(environ map[string]string) error {
	var o envOverrides
	if err := env.ParseWithOptions(&o, env.Options{Environment: environ}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	if key := firstNonEmpty(o.PolygonAPIKey, o.PolygonAPI, o.PolyAPIKey); key != "" {
		c.Polygon.APIKey = key
	}
	if base := firstNonEmpty(o.HistBase, o.Backend1Base); base != "" {
		c.History.BaseURL = base
	}
	if syms := cleanSymbols(o.StreamSymbols); len(syms) > 0 {
		c.Polygon.Symbols = syms
	}
	if o.Engine4BaseURL != "" {
		c.Analytics.Engine4BaseURL = o.Engine4BaseURL
	}
	if o.Port > 0 {
		c.Server.Port = o.Port
	}
	if o.Backend != "" {
		c.Backend.Type = o.Backend
	}
	if len(o.KafkaBrokers) > 0 {
		c.Kafka.Brokers = o.KafkaBrokers
	}
	if o.KafkaTopic != "" {
		c.Kafka.Topic = o.KafkaTopic
	}
	if o.RedisAddr != "" {
		c.Analytics.Redis.Addr = o.RedisAddr
		c.Analytics.Redis.Enabled = true
	}
	if o.LogLevel != "" {
		c.Log.Level = o.LogLevel
	}
	if o.ZonesDir != "" {
		c.Zones.Dir = o.ZonesDir
	}

	c.Polygon.Symbols = cleanSymbols(c.Polygon.Symbols)
	if c.Analytics.Engine4BaseURL == "" {
		c.Analytics.Engine4BaseURL = fmt.Sprintf("http://127.0.0.1:%d", c.Server.Port)
	}
	return nil
}

// Validate rejects settings the process cannot start with. A missing vendor key
// or a malformed peer URL is not an error; see Warnings.
func (c *Config) Validate() error {
	switch c.Backend.Type {
	case BackendNone, BackendKafka, BackendClickHouse:
	default:
		return fmt.Errorf("backend.type must be one of none, kafka, clickhouse; got %q", c.Backend.Type)
	}
	if c.Backend.Type == BackendKafka || c.Kafka.Sink.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka.brokers is required for the kafka backend")
		}
	}
	if c.Kafka.Sink.Enabled && !c.ClickHouse.Enabled() {
		return fmt.Errorf("kafka.sink requires clickhouse.host")
	}
	if c.Backend.Type == BackendClickHouse && !c.ClickHouse.Enabled() {
		return fmt.Errorf("clickhouse.host is required for the clickhouse backend")
	}
	if len(c.Polygon.Symbols) == 0 {
		return fmt.Errorf("polygon.symbols cannot be empty")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	return nil
}

// Warnings lists settings that disable a single feature without stopping the
// process. A malformed peer URL fails only the requests that use it.
func (c *Config) Warnings() []string {
	var out []string
	if c.Polygon.APIKey == "" {
		out = append(out, "polygon api key missing: live ingest disabled")
	}
	for _, p := range []struct{ name, raw string }{
		{"history.base_url", c.History.BaseURL},
		{"analytics.engine4_base_url", c.Analytics.Engine4BaseURL},
	} {
		if p.raw == "" {
			continue
		}
		if u, err := url.Parse(p.raw); err != nil || u.Scheme == "" || u.Host == "" {
			out = append(out, fmt.Sprintf("%s is not an absolute url: %q", p.name, p.raw))
		}
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func cleanSymbols(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
