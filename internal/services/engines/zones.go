package engines

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"ZoneDesk/internal/domain/models"
	drepo "ZoneDesk/internal/domain/repository"
	"ZoneDesk/internal/domain/service"
)

// ErrNoPrice means no bar exists to price the zone context.
var ErrNoPrice = errors.New("no price available")

// ZoneArtifact is the per-symbol file written by the shelf/structure jobs.
type ZoneArtifact struct {
	Negotiated    []models.Zone `json:"negotiated"`
	Shelves       []models.Zone `json:"shelves"`
	Institutional []models.Zone `json:"institutional"`
}

func (a ZoneArtifact) tier(t models.ZoneTier) []models.Zone {
	switch t {
	case models.TierNegotiated:
		return a.Negotiated
	case models.TierShelf:
		return a.Shelves
	default:
		return a.Institutional
	}
}

type cachedArtifact struct {
	modTime  time.Time
	artifact ZoneArtifact
}

// ZoneContextEngine serves zone context from JSON artifacts under dir.
// Files are re-read only when their modification time changes.
type ZoneContextEngine struct {
	dir  string
	bars service.BarSource

	mu    sync.Mutex
	cache map[string]cachedArtifact
}

func NewZoneContextEngine(dir string, bars service.BarSource) *ZoneContextEngine {
	return &ZoneContextEngine{dir: dir, bars: bars, cache: make(map[string]cachedArtifact)}
}

var _ service.ZoneContextSource = (*ZoneContextEngine)(nil)

func (e *ZoneContextEngine) ZoneContext(ctx context.Context, q service.ZoneQuery) (models.ZoneContext, error) {
	key := drepo.NewSeriesKey(q.Symbol, q.Mode, q.TF.Cached())
	bars, err := e.bars.Snapshot(ctx, key, 1)
	if err != nil {
		return models.ZoneContext{}, fmt.Errorf("zone context price: %w", err)
	}
	if len(bars) == 0 {
		return models.ZoneContext{}, ErrNoPrice
	}
	last := bars[len(bars)-1]

	art, err := e.load(key.Symbol)
	if err != nil {
		return models.ZoneContext{}, err
	}
	zc := BuildZoneContext(art, last.Close)
	zc.Symbol = key.Symbol
	zc.TF = string(q.TF)
	zc.AsOf = last.Time
	return zc, nil
}

// BuildZoneContext picks, per tier, the strongest zone containing price as
// active and the zone with the closest edge among the rest as nearest.
func BuildZoneContext(art ZoneArtifact, price float64) models.ZoneContext {
	zc := models.ZoneContext{Price: price}
	for _, tier := range models.ZonePrecedence {
		var active, nearest *models.Zone
		for i := range art.tier(tier) {
			z := normalizeZone(art.tier(tier)[i], tier)
			if z.Contains(price) {
				if active == nil || z.Strength > active.Strength {
					active = z
				}
				continue
			}
			if !(z.Lo < z.Hi) {
				continue
			}
			if nearest == nil || z.Distance(price) < nearest.Distance(price) {
				nearest = z
			}
		}
		zc.Active.Set(tier, active)
		zc.Nearest.Set(tier, nearest)
	}
	return zc
}

func normalizeZone(z models.Zone, tier models.ZoneTier) *models.Zone {
	if z.Lo > z.Hi {
		z.Lo, z.Hi = z.Hi, z.Lo
	}
	if z.Type == "" {
		switch tier {
		case models.TierNegotiated:
			z.Type = models.ZoneTypeNegotiated
		case models.TierShelf:
			z.Type = models.ZoneTypeShelf
		case models.TierInstitutional:
			z.Type = models.ZoneTypeInstitutional
		}
	}
	z.Type = strings.ToLower(z.Type)
	return &z
}

// load reads <dir>/<SYMBOL>.json; a missing file is an empty artifact.
func (e *ZoneContextEngine) load(symbol string) (ZoneArtifact, error) {
	path := filepath.Join(e.dir, strings.ToUpper(symbol)+".json")
	st, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ZoneArtifact{}, nil
		}
		return ZoneArtifact{}, fmt.Errorf("stat zones: %w", err)
	}

	e.mu.Lock()
	c, ok := e.cache[path]
	e.mu.Unlock()
	if ok && c.modTime.Equal(st.ModTime()) {
		return c.artifact, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return ZoneArtifact{}, fmt.Errorf("read zones: %w", err)
	}
	var art ZoneArtifact
	if err := json.Unmarshal(raw, &art); err != nil {
		return ZoneArtifact{}, fmt.Errorf("decode zones %s: %w", filepath.Base(path), err)
	}
	e.mu.Lock()
	e.cache[path] = cachedArtifact{modTime: st.ModTime(), artifact: art}
	e.mu.Unlock()
	return art, nil
}
