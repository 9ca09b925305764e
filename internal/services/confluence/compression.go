package confluence

import (
	"ZoneDesk/internal/domain/models"
)

const (
	StateNone        = "NONE"
	StateCompressing = "COMPRESSING"
	StateCoiling     = "COILING"

	QuietFromTR    = "avgTr8"
	QuietFromProxy = "not_igniting"
)

type coilTier struct {
	name      string
	squeeze   float64
	quiet     float64
	threshold float64
}

var coilTiers = map[models.ZoneTier]coilTier{
	models.TierNegotiated:    {name: "NEGOTIATED", squeeze: 20, quiet: 10, threshold: 18},
	models.TierInstitutional: {name: "INSTITUTIONAL", squeeze: 7, quiet: 3, threshold: 6},
}

const (
	squeezeFull  = 0.60
	squeezeZero  = 1.20
	coilRatio    = 0.80
	compressMax  = 1.10
	quietTRRatio = 0.80
)

// Compression scores how tight the execution zone is relative to ATR.
// Shelves never coil.
func Compression(tier models.ZoneTier, z *models.Zone, vol models.VolumeBehavior) models.CompressionDetail {
	d := models.CompressionDetail{State: StateNone}
	ct, ok := coilTiers[tier]
	if !ok || z == nil {
		return d
	}
	d.Tier = ct.name
	d.Threshold = ct.threshold
	d.ZoneWidth = z.Width()
	if vol.Diagnostics == nil || !(vol.Diagnostics.ATR > 0) {
		return d
	}
	atr := vol.Diagnostics.ATR
	d.ATR = atr
	d.Ratio = d.ZoneWidth / atr

	switch {
	case d.Ratio <= squeezeFull:
		d.Squeeze = ct.squeeze
	case d.Ratio < squeezeZero:
		d.Squeeze = ct.squeeze * (squeezeZero - d.Ratio) / (squeezeZero - squeezeFull)
	}

	var quiet bool
	if tr8 := vol.Diagnostics.AvgTR8; tr8 != nil {
		d.QuietSource = QuietFromTR
		quiet = *tr8 <= quietTRRatio*atr
	} else {
		d.QuietSource = QuietFromProxy
		quiet = !vol.Flags.InitiativeMoveConfirmed && !vol.Flags.LiquidityTrap
	}
	if quiet && d.Squeeze > 0 {
		d.Quiet = ct.quiet
	}
	d.Score = d.Squeeze + d.Quiet

	switch {
	case d.Ratio <= coilRatio && d.Quiet > 0 && d.Squeeze > 0:
		d.State = StateCoiling
	case d.Ratio <= compressMax && d.Squeeze > 0:
		d.State = StateCompressing
	}
	d.Active = d.State == StateCoiling && d.Score >= d.Threshold
	return d
}
