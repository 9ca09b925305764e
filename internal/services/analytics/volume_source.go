package analytics

import (
	"context"
	"strconv"

	"ZoneDesk/internal/domain/models"
	domsvc "ZoneDesk/internal/domain/service"
)

const volumeBehaviorPath = "/api/v1/volume-behavior"

// HTTPVolumeSource reaches the volume behavior producer over HTTP.
type HTTPVolumeSource struct {
	base     *HTTPServiceBase
	attempts int
}

func NewHTTPVolumeSource(base *HTTPServiceBase) *HTTPVolumeSource {
	return &HTTPVolumeSource{base: base, attempts: 2}
}

func (s *HTTPVolumeSource) VolumeBehavior(ctx context.Context, q domsvc.VolumeQuery) (models.VolumeBehavior, error) {
	query := map[string][]string{
		"symbol": {q.Symbol},
		"tf":     {string(q.TF)},
		"mode":   {string(q.Mode)},
		"zoneLo": {strconv.FormatFloat(q.ZoneLo, 'f', -1, 64)},
		"zoneHi": {strconv.FormatFloat(q.ZoneHi, 'f', -1, 64)},
	}
	if q.Side != "" {
		query["side"] = []string{q.Side}
	}
	var vb models.VolumeBehavior
	if err := s.base.GetJSONWithRetry(ctx, volumeBehaviorPath, query, &vb, s.attempts); err != nil {
		return models.VolumeBehavior{}, err
	}
	if vb.ReasonCodes == nil {
		vb.ReasonCodes = []string{}
	}
	return vb, nil
}

var _ domsvc.VolumeSource = (*HTTPVolumeSource)(nil)
