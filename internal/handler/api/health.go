package api

import (
	models "ZoneDesk/internal/domain/models"
	xhttp "ZoneDesk/pkg/http"

	"github.com/labstack/echo/v4"
)

// LiveStatus reports the vendor websocket state.
type LiveStatus interface {
	IsConnected() bool
}

// SubscriberCounter reports open SSE subscribers.
type SubscriberCounter interface {
	Total() int
}

type HealthHandler struct {
	live    LiveStatus
	subs    SubscriberCounter
	symbols []string
}

func NewHealthHandler(live LiveStatus, subs SubscriberCounter, symbols []string) *HealthHandler {
	return &HealthHandler{live: live, subs: subs, symbols: symbols}
}

func (h *HealthHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)
}

// Health always answers ok; a disconnected websocket is reported, not fatal.
func (h *HealthHandler) Health(c echo.Context) error {
	res := models.Health{OK: true, Symbols: h.symbols}
	if res.Symbols == nil {
		res.Symbols = []string{}
	}
	if h.live != nil {
		res.WSConnected = h.live.IsConnected()
	}
	if h.subs != nil {
		res.Subscribers = h.subs.Total()
	}
	return xhttp.SuccessResponse(c, res)
}
