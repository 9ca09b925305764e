package confluence

import (
	"strings"

	"ZoneDesk/internal/domain/models"
)

// DeriveMode maps a strategy id onto a trading mode, falling back to the
// timeframe when the id carries no known marker.
func DeriveMode(strategyID, tf string) models.StrategyMode {
	id := strings.ToLower(strategyID)
	switch {
	case strings.Contains(id, "intraday_scalp"):
		return models.ModeScalp
	case strings.Contains(id, "minor_swing"):
		return models.ModeSwing
	case strings.Contains(id, "intermediate_long"):
		return models.ModeLong
	}
	switch strings.ToLower(tf) {
	case "5m", "10m", "15m":
		return models.ModeScalp
	case "30m", "1h":
		return models.ModeSwing
	case "4h":
		return models.ModeLong
	}
	return models.ModeSwing
}
