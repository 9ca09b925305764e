package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	models "ZoneDesk/internal/domain/models"
	domrepo "ZoneDesk/internal/domain/repository"
	domsvc "ZoneDesk/internal/domain/service"
	"ZoneDesk/internal/service/metrics"
	"ZoneDesk/internal/service/ratelimit"
	"ZoneDesk/internal/services/confluence"
	"ZoneDesk/internal/services/engines"
	"ZoneDesk/internal/usecase"
	xhttp "ZoneDesk/pkg/http"
	xlogger "ZoneDesk/pkg/logger"

	"github.com/labstack/echo/v4"
)

const codeMissingZoneRange = "MISSING_ZONE_RANGE"

// ConfluenceScorer produces the decision envelope for one request.
type ConfluenceScorer interface {
	Score(ctx context.Context, p usecase.ConfluenceParams) (models.ConfluenceResult, error)
}

// AnalyticsHandler serves the producer endpoints and the confluence score.
type AnalyticsHandler struct {
	logger   *xlogger.Logger
	zones    domsvc.ZoneContextSource
	fib      domsvc.FibSource
	reaction domsvc.ReactionSource
	volume   domsvc.VolumeSource
	scorer   ConfluenceScorer

	cache    ResponseCache
	cacheTTL time.Duration
	rl       *ratelimit.Limiter
	rlCap    float64
	rlRefill float64
}

type AnalyticsOption func(*AnalyticsHandler)

// ResponseCache stores rendered response bodies with a TTL.
type ResponseCache interface {
	GetBytes(key string) (b []byte, ok bool, err error)
	SetBytes(key string, value []byte, ttl time.Duration) error
}

// WithResponseCache caches confluence bodies for ttl.
func WithResponseCache(c ResponseCache, ttl time.Duration) AnalyticsOption {
	return func(h *AnalyticsHandler) {
		h.cache = c
		h.cacheTTL = ttl
	}
}

// WithRateLimit enables a per-client token bucket on the confluence endpoint.
func WithRateLimit(capacity, refillPerSec float64) AnalyticsOption {
	return func(h *AnalyticsHandler) {
		if capacity > 0 && refillPerSec > 0 {
			h.rl = ratelimit.New()
			h.rlCap = capacity
			h.rlRefill = refillPerSec
		}
	}
}

func NewAnalyticsHandler(
	logger *xlogger.Logger,
	zones domsvc.ZoneContextSource,
	fib domsvc.FibSource,
	reaction domsvc.ReactionSource,
	volume domsvc.VolumeSource,
	scorer ConfluenceScorer,
	opts ...AnalyticsOption,
) *AnalyticsHandler {
	metrics.Register()
	h := &AnalyticsHandler{
		logger:   logger,
		zones:    zones,
		fib:      fib,
		reaction: reaction,
		volume:   volume,
		scorer:   scorer,
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

func (h *AnalyticsHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/v1")
	g.GET("/zone-context", h.ZoneContext)
	g.GET("/fib-levels", h.FibLevels)
	g.GET("/reaction", h.Reaction)
	g.GET("/volume-behavior", h.VolumeBehavior)
	g.GET("/confluence-score", h.ConfluenceScore)
}

func (h *AnalyticsHandler) ZoneContext(c echo.Context) error {
	defer observe("zone_context", time.Now())
	req := &models.ZoneContextRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	tf, mode, err := analyticsKey(req.TF, req.Mode)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	res, err := h.zones.ZoneContext(c.Request().Context(), domsvc.ZoneQuery{Symbol: upper(req.Symbol), TF: tf, Mode: mode})
	if err != nil {
		return h.producerError(c, "zone_context", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *AnalyticsHandler) FibLevels(c echo.Context) error {
	defer observe("fib_levels", time.Now())
	req := &models.FibRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	tf, mode, err := analyticsKey(req.TF, req.Mode)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	res, err := h.fib.FibLevels(c.Request().Context(), domsvc.FibQuery{
		Symbol: upper(req.Symbol),
		TF:     tf,
		Mode:   mode,
		Degree: req.Degree,
		Wave:   req.Wave,
	})
	if err != nil {
		return h.producerError(c, "fib_levels", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *AnalyticsHandler) Reaction(c echo.Context) error {
	defer observe("reaction", time.Now())
	req := &models.ReactionRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	tf, mode, err := analyticsKey(req.TF, req.Mode)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	res, err := h.reaction.Reaction(c.Request().Context(), domsvc.ReactionQuery{
		Symbol:   upper(req.Symbol),
		TF:       tf,
		Mode:     mode,
		Strategy: confluence.DeriveMode(req.StrategyID, string(tf)),
	})
	if err != nil {
		return h.producerError(c, "reaction", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *AnalyticsHandler) VolumeBehavior(c echo.Context) error {
	defer observe("volume_behavior", time.Now())
	req := &models.VolumeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	lo, okLo := xhttp.ParseFinite(req.ZoneLo)
	hi, okHi := xhttp.ParseFinite(req.ZoneHi)
	if !okLo || !okHi {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(codeMissingZoneRange, ""))
	}
	tf, mode, err := analyticsKey(req.TF, req.Mode)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	res, err := h.volume.VolumeBehavior(c.Request().Context(), domsvc.VolumeQuery{
		Symbol: upper(req.Symbol),
		TF:     tf,
		Mode:   mode,
		ZoneLo: lo,
		ZoneHi: hi,
		Side:   req.Side,
	})
	if err != nil {
		return h.producerError(c, "volume_behavior", err)
	}
	return xhttp.SuccessResponse(c, res)
}

// ConfluenceScore is rate limited per client and served from the response
// cache when a body for the same parameters is still fresh.
func (h *AnalyticsHandler) ConfluenceScore(c echo.Context) error {
	const endpoint = "confluence_score"
	defer observe(endpoint, time.Now())

	req := &models.ConfluenceRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	tf, mode, err := analyticsKey(req.TF, req.Mode)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	if h.rl != nil && !h.rl.Allow(c.RealIP()+":"+endpoint, h.rlCap, h.rlRefill) {
		h.logger.Warn("confluence rate limited", xlogger.String("remote", c.RealIP()))
		return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError())
	}

	p := usecase.ConfluenceParams{
		Symbol:     upper(req.Symbol),
		TF:         tf,
		Mode:       mode,
		Degree:     req.Degree,
		Wave:       req.Wave,
		StrategyID: req.StrategyID,
	}
	cacheKey := strings.Join([]string{"confluence", p.Symbol, string(tf), string(mode), p.Degree, p.Wave, p.StrategyID}, ":")
	if h.cache != nil {
		if b, ok, err := h.cache.GetBytes(cacheKey); err != nil {
			h.logger.Warn("confluence cache_get_error", xlogger.Error(err))
		} else if ok {
			metrics.CacheHits.WithLabelValues(endpoint).Inc()
			return xhttp.RawJSONResponse(c, b)
		}
	}

	res, err := h.scorer.Score(c.Request().Context(), p)
	if err != nil {
		metrics.EndpointErrors.WithLabelValues(endpoint).Inc()
		h.logger.Error("confluence score failed", xlogger.String("symbol", p.Symbol), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError(err))
	}
	b, err := json.Marshal(res)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.InternalError(err))
	}
	if h.cache != nil && h.cacheTTL > 0 {
		if err := h.cache.SetBytes(cacheKey, b, h.cacheTTL); err != nil {
			h.logger.Warn("confluence cache_set_error", xlogger.Error(err))
		}
	}
	return xhttp.RawJSONResponse(c, b)
}

func (h *AnalyticsHandler) producerError(c echo.Context, endpoint string, err error) error {
	metrics.EndpointErrors.WithLabelValues(endpoint).Inc()
	switch {
	case errors.Is(err, engines.ErrMissingZoneRange):
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(codeMissingZoneRange, ""))
	case errors.Is(err, engines.ErrInsufficientBars), errors.Is(err, engines.ErrNoPrice), errors.Is(err, usecase.ErrNoHistory):
		h.logger.Warn("producer has no data", xlogger.String("endpoint", endpoint), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.NewAppError("no_data", "", err.Error(), http.StatusUnprocessableEntity))
	}
	h.logger.Error("producer failed", xlogger.String("endpoint", endpoint), xlogger.Error(err))
	return xhttp.AppErrorResponse(c, xhttp.InternalError(err))
}

func observe(endpoint string, start time.Time) {
	metrics.EndpointLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

func analyticsKey(tf, mode string) (domrepo.Timeframe, domrepo.SessionMode, error) {
	t, err := domrepo.ParseTimeframe(tf)
	if err != nil {
		return "", "", xhttp.BadRequestError("BAD_TF", err.Error())
	}
	m, err := domrepo.ParseSessionMode(mode)
	if err != nil {
		return "", "", xhttp.BadRequestError("BAD_MODE", err.Error())
	}
	return t, m, nil
}

func upper(s string) string { return strings.ToUpper(strings.TrimSpace(s)) }
