package history

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ZoneDesk/internal/domain/models"
	drepo "ZoneDesk/internal/domain/repository"
	xhttp "ZoneDesk/pkg/http"
	applogger "ZoneDesk/pkg/logger"
)

// ErrNoBaseURL means no historical REST base was configured.
var ErrNoBaseURL = errors.New("history: base url not configured")

// Client fetches 1-minute bars from the historical REST service.
type Client struct {
	baseURL string
	http    *xhttp.Client
	logger  *applogger.Logger
}

type Option func(*Client)

func WithHTTPClient(c *xhttp.Client) Option { return func(h *Client) { h.http = c } }

func WithLogger(l *applogger.Logger) Option { return func(h *Client) { h.logger = l } }

func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    xhttp.NewClient(xhttp.WithTimeout(timeout)),
		logger:  applogger.Nop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

var _ drepo.HistoricalSource = (*Client)(nil)

// MinuteBars requests GET <base>/api/v1/ohlc?symbol=SYM&timeframe=1m&limit=N&sort=asc.
func (c *Client) MinuteBars(ctx context.Context, symbol string, limit int) ([]models.Bar, error) {
	if c.baseURL == "" {
		return nil, ErrNoBaseURL
	}
	start := time.Now()
	var body []byte
	err := c.http.GetJSON(ctx, c.baseURL+"/api/v1/ohlc", url.Values{
		"symbol":    {strings.ToUpper(symbol)},
		"timeframe": {"1m"},
		"limit":     {strconv.Itoa(limit)},
		"sort":      {"asc"},
	}, &body)
	if err != nil {
		return nil, fmt.Errorf("history %s: %w", symbol, err)
	}
	bars, err := Normalize(body)
	if err != nil {
		return nil, fmt.Errorf("history %s: %w", symbol, err)
	}
	if limit > 0 && len(bars) > limit {
		bars = bars[len(bars)-limit:]
	}
	c.logger.Debug("history: fetched minute bars",
		applogger.String("symbol", symbol),
		applogger.Int("bars", len(bars)),
		applogger.Duration("took", time.Since(start)))
	return bars, nil
}

// Fallback tries each source in order and returns the first non-empty result.
type Fallback struct {
	sources []drepo.HistoricalSource
	logger  *applogger.Logger
}

func NewFallback(logger *applogger.Logger, sources ...drepo.HistoricalSource) *Fallback {
	if logger == nil {
		logger = applogger.Nop()
	}
	out := make([]drepo.HistoricalSource, 0, len(sources))
	for _, s := range sources {
		if s != nil {
			out = append(out, s)
		}
	}
	return &Fallback{sources: out, logger: logger}
}

func (f *Fallback) MinuteBars(ctx context.Context, symbol string, limit int) ([]models.Bar, error) {
	var errs []error
	for i, src := range f.sources {
		bars, err := src.MinuteBars(ctx, symbol, limit)
		if err != nil {
			f.logger.Warn("history: source failed",
				applogger.Int("source", i),
				applogger.String("symbol", symbol),
				applogger.Error(err))
			errs = append(errs, err)
			continue
		}
		if len(bars) > 0 {
			return bars, nil
		}
	}
	if len(errs) == 0 {
		return nil, nil
	}
	return nil, errors.Join(errs...)
}
