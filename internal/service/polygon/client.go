package polygon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"ZoneDesk/internal/domain/models"
	drepo "ZoneDesk/internal/domain/repository"
	applogger "ZoneDesk/pkg/logger"

	"github.com/gorilla/websocket"
)

// DefaultURL is the real-time stocks cluster.
const DefaultURL = "wss://socket.polygon.io/stocks"

// ErrAuthFailed is returned from Read when the vendor rejects the key.
var ErrAuthFailed = errors.New("polygon: auth failed")

// Client implements a MarketStream backed by the Polygon stocks websocket.
type Client struct {
	apiKey       string
	websocketURL string
	symbols      []string
	pingInterval time.Duration
	dialer       *websocket.Dialer
	logger       *applogger.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
}

type Option func(*Client)

func WithPingInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.pingInterval = d
		}
	}
}

func WithDialer(d *websocket.Dialer) Option { return func(c *Client) { c.dialer = d } }

func WithLogger(l *applogger.Logger) Option { return func(c *Client) { c.logger = l } }

// New creates a new Polygon MarketStream.
func New(apiKey, websocketURL string, symbols []string, opts ...Option) drepo.MarketStream {
	if websocketURL == "" {
		websocketURL = DefaultURL
	}
	c := &Client{
		apiKey:       apiKey,
		websocketURL: websocketURL,
		symbols:      symbols,
		pingInterval: 30 * time.Second,
		dialer:       websocket.DefaultDialer,
		logger:       applogger.Nop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type controlMessage struct {
	Action string `json:"action"`
	Params string `json:"params"`
}

// Connect dials the socket and sends the auth message.
func (c *Client) Connect(ctx context.Context) error {
	conn, _, err := c.dialer.DialContext(ctx, c.websocketURL, nil)
	if err != nil {
		return fmt.Errorf("polygon connect: %w", err)
	}
	if err := conn.WriteJSON(controlMessage{Action: "auth", Params: c.apiKey}); err != nil {
		_ = conn.Close()
		return fmt.Errorf("polygon auth: %w", err)
	}
	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()
	c.logger.Info("polygon: connected", applogger.String("url", c.websocketURL))
	return nil
}

// Subscribe subscribes to minute aggregates and trades for every hot symbol.
func (c *Client) Subscribe(ctx context.Context) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("polygon not connected")
	}
	params := SubscriptionParams(c.symbols)
	if params == "" {
		return fmt.Errorf("polygon: no symbols to subscribe")
	}
	if err := c.write(controlMessage{Action: "subscribe", Params: params}); err != nil {
		return fmt.Errorf("subscribe %s: %w", params, err)
	}
	c.logger.Info("polygon: subscribed", applogger.String("params", params))
	return nil
}

// SubscriptionParams builds "AM.SPY,T.SPY,AM.QQQ,T.QQQ".
func SubscriptionParams(symbols []string) string {
	parts := make([]string, 0, len(symbols)*2)
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		parts = append(parts, "AM."+s, "T."+s)
	}
	return strings.Join(parts, ",")
}

func (c *Client) write(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("polygon conn nil")
	}
	return c.conn.WriteJSON(v)
}

// Read streams parsed events until the socket fails or ctx is done.
// An auth_failed status closes the socket and reports ErrAuthFailed.
func (c *Client) Read(ctx context.Context) (<-chan models.StreamEvent, <-chan error) {
	events := make(chan models.StreamEvent, 1024)
	errs := make(chan error, 1)

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	done := make(chan struct{})

	// ping loop
	go func() {
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				_ = c.Close()
				return
			case <-done:
				return
			case <-ticker.C:
				c.mu.Lock()
				if c.conn != nil {
					_ = c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
				}
				c.mu.Unlock()
			}
		}
	}()

	// read loop
	go func() {
		defer close(events)
		defer close(errs)
		defer close(done)
		if conn == nil {
			errs <- fmt.Errorf("polygon conn nil")
			return
		}
		for {
			_, b, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				errs <- fmt.Errorf("polygon read: %w", err)
				return
			}
			evs, err := ParseFrame(b)
			if err != nil {
				// malformed frames are dropped
				continue
			}
			for _, ev := range evs {
				if ev.Status != nil && ev.Status.Status == "auth_failed" {
					c.logger.Error("polygon: auth failed", applogger.String("message", ev.Status.Message))
					_ = c.Close()
					errs <- ErrAuthFailed
					return
				}
				select {
				case events <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return events, errs
}

// Close closes the WS connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

// IsConnected indicates status.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

type wireEvent struct {
	Ev      string   `json:"ev"`
	Sym     string   `json:"sym"`
	Status  string   `json:"status"`
	Message string   `json:"message"`
	O       *float64 `json:"o"`
	H       *float64 `json:"h"`
	L       *float64 `json:"l"`
	C       *float64 `json:"c"`
	V       *float64 `json:"v"`
	S       *float64 `json:"s"`
	P       *float64 `json:"p"`
	T       *float64 `json:"t"`
}

// ParseFrame decodes a vendor frame, either a JSON array or a single object.
// Events with missing fields are skipped; unknown event types are ignored.
func ParseFrame(b []byte) ([]models.StreamEvent, error) {
	b = []byte(strings.TrimSpace(string(b)))
	if len(b) == 0 {
		return nil, fmt.Errorf("empty frame")
	}
	var raw []wireEvent
	if b[0] == '[' {
		if err := json.Unmarshal(b, &raw); err != nil {
			return nil, fmt.Errorf("decode frame: %w", err)
		}
	} else {
		var one wireEvent
		if err := json.Unmarshal(b, &one); err != nil {
			return nil, fmt.Errorf("decode frame: %w", err)
		}
		raw = []wireEvent{one}
	}

	out := make([]models.StreamEvent, 0, len(raw))
	for _, w := range raw {
		switch w.Ev {
		case "status":
			out = append(out, models.StreamEvent{Status: &models.StreamStatus{Status: w.Status, Message: w.Message}})
		case "AM":
			if w.Sym == "" || w.S == nil || w.O == nil || w.H == nil || w.L == nil || w.C == nil || w.V == nil {
				continue
			}
			out = append(out, models.StreamEvent{Aggregate: &models.Aggregate{
				Symbol:  strings.ToUpper(w.Sym),
				StartMs: int64(*w.S),
				Open:    *w.O,
				High:    *w.H,
				Low:     *w.L,
				Close:   *w.C,
				Volume:  *w.V,
			}})
		case "T":
			if w.Sym == "" || w.T == nil || w.P == nil {
				continue
			}
			size := 0.0
			if w.S != nil {
				size = *w.S
			}
			out = append(out, models.StreamEvent{Trade: &models.Trade{
				Symbol:      strings.ToUpper(w.Sym),
				TimestampMs: int64(*w.T),
				Price:       *w.P,
				Size:        size,
			}})
		}
	}
	return out, nil
}
