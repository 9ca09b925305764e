package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	models "ZoneDesk/internal/domain/models"
	domrepo "ZoneDesk/internal/domain/repository"
	domsvc "ZoneDesk/internal/domain/service"
	"ZoneDesk/internal/service/metrics"
	xhttp "ZoneDesk/pkg/http"
	xlogger "ZoneDesk/pkg/logger"

	"github.com/labstack/echo/v4"
)

const (
	RouteSnapshot  = "/stream/snapshot"
	RouteAggregate = "/stream/agg"

	defaultHeartbeat = 15 * time.Second
	// streamSnapshotLimit bounds the first SSE message.
	streamSnapshotLimit = 1500
)

// Subscriptions is the subscriber registry the SSE endpoint attaches to.
type Subscriptions interface {
	Register(key domrepo.SeriesKey) (uint64, <-chan models.Bar)
	Unregister(key domrepo.SeriesKey, id uint64)
}

// StreamHandler serves bar snapshots and the live SSE aggregate stream.
type StreamHandler struct {
	logger    *xlogger.Logger
	snapshots domsvc.BarSource
	hub       Subscriptions
	heartbeat time.Duration
}

type StreamOption func(*StreamHandler)

// WithHeartbeat sets the SSE ping interval.
func WithHeartbeat(d time.Duration) StreamOption {
	return func(h *StreamHandler) {
		if d > 0 {
			h.heartbeat = d
		}
	}
}

func NewStreamHandler(logger *xlogger.Logger, snapshots domsvc.BarSource, hub Subscriptions, opts ...StreamOption) *StreamHandler {
	metrics.Register()
	h := &StreamHandler{logger: logger, snapshots: snapshots, hub: hub, heartbeat: defaultHeartbeat}
	for _, o := range opts {
		o(h)
	}
	return h
}

func (h *StreamHandler) RegisterRoutes(e *echo.Echo) {
	e.GET(RouteSnapshot, h.Snapshot)
	e.GET(RouteAggregate, h.Aggregate)
}

func (h *StreamHandler) Snapshot(c echo.Context) error {
	start := time.Now()
	defer func() { metrics.EndpointLatency.WithLabelValues("snapshot").Observe(time.Since(start).Seconds()) }()

	req := &models.SnapshotRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	key, err := streamKey(req.Symbol, req.Mode, req.TF)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}

	bars, err := h.snapshots.Snapshot(c.Request().Context(), key, req.Limit)
	if err != nil {
		metrics.EndpointErrors.WithLabelValues("snapshot").Inc()
		h.logger.Warn("snapshot failed", xlogger.String("key", key.String()), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.BadGatewayError(xhttp.CodeSnapshotError, err))
	}
	return xhttp.SuccessResponse(c, snapshotMessage(key, bars))
}

// Aggregate streams one snapshot event, then bar events as the hub relays
// them, with a ping comment every heartbeat. The subscriber is removed when
// the client goes away or the hub closes its channel.
func (h *StreamHandler) Aggregate(c echo.Context) error {
	req := &models.StreamRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	key, err := streamKey(req.Symbol, req.Mode, req.TF)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	ctx := c.Request().Context()

	id, updates := h.hub.Register(key)
	defer h.hub.Unregister(key, id)

	bars, err := h.snapshots.Snapshot(ctx, key, streamSnapshotLimit)
	if err != nil {
		// the stream still opens; live bars fill the chart
		h.logger.Warn("stream snapshot unavailable", xlogger.String("key", key.String()), xlogger.Error(err))
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream; charset=utf-8")
	res.Header().Set(echo.HeaderCacheControl, "no-store, no-transform")
	res.Header().Set(echo.HeaderConnection, "keep-alive")
	res.Header().Set("X-Accel-Buffering", "no")
	res.WriteHeader(http.StatusOK)

	if err := writeEvent(res, snapshotMessage(key, bars)); err != nil {
		return nil
	}
	h.logger.Debug("sse subscriber open", xlogger.String("key", key.String()), xlogger.Uint64("id", id))
	defer h.logger.Debug("sse subscriber closed", xlogger.String("key", key.String()), xlogger.Uint64("id", id))

	ping := time.NewTicker(h.heartbeat)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case bar, ok := <-updates:
			if !ok {
				return nil
			}
			msg := models.BarMessage{
				OK:     true,
				Type:   models.MessageBar,
				Symbol: key.Symbol,
				TF:     string(key.TF),
				Mode:   string(key.Mode),
				Bar:    bar,
			}
			if err := writeEvent(res, msg); err != nil {
				return nil
			}
		case t := <-ping.C:
			if _, err := fmt.Fprintf(res, ":ping %d\n\n", t.UnixMilli()); err != nil {
				return nil
			}
			res.Flush()
		}
	}
}

func writeEvent(res *echo.Response, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(res, "data: %s\n\n", b); err != nil {
		return err
	}
	res.Flush()
	return nil
}

func snapshotMessage(key domrepo.SeriesKey, bars []models.Bar) models.SnapshotMessage {
	if bars == nil {
		bars = []models.Bar{}
	}
	return models.SnapshotMessage{
		OK:     true,
		Type:   models.MessageSnapshot,
		Symbol: key.Symbol,
		TF:     string(key.TF),
		Mode:   string(key.Mode),
		Bars:   bars,
	}
}

func streamKey(symbol, mode, tf string) (domrepo.SeriesKey, error) {
	m, err := domrepo.ParseSessionMode(mode)
	if err != nil {
		return domrepo.SeriesKey{}, xhttp.BadRequestError("BAD_MODE", err.Error())
	}
	t, err := domrepo.ParseTimeframe(tf)
	if err != nil || !t.IsCached() {
		return domrepo.SeriesKey{}, xhttp.BadRequestError("BAD_TF", "tf must be one of 10m, 30m, 1h, 4h, 1d").WithParam("tf", tf)
	}
	return domrepo.NewSeriesKey(symbol, m, t), nil
}
