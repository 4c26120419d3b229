package price

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"stock-dashboard/internal/logger"
	"stock-dashboard/internal/symbols"
	"stock-dashboard/internal/trace"
	"stock-dashboard/internal/types"
	"stock-dashboard/internal/worker"
)

// ErrUnsupportedTimeframe is returned for timeframes other than "day".
// This is the only error GetSeries surfaces; source failures degrade.
var ErrUnsupportedTimeframe = errors.New("unsupported timeframe")

// DomesticSource is the authoritative, date-ranged price API for local
// market codes (tier 1).
type DomesticSource interface {
	Daily(ctx context.Context, code, startDate, endDate string) ([]types.PricePoint, error)
}

// GlobalSource is the generic multi-market historical-series provider
// (tier 2: fallback for domestic codes, primary for everything else).
type GlobalSource interface {
	Daily(ctx context.Context, symbol, startDate, endDate string) ([]types.PricePoint, error)
}

// Engine resolves a price series through tiered source fallback. Source
// calls run on the shared worker pool so concurrent requests do not
// serialize behind each other's blocking fetches.
type Engine struct {
	cache    *symbols.Cache
	pool     *worker.Pool
	domestic DomesticSource
	global   GlobalSource
}

func NewEngine(cache *symbols.Cache, pool *worker.Pool, domestic DomesticSource, global GlobalSource) *Engine {
	return &Engine{
		cache:    cache,
		pool:     pool,
		domestic: domestic,
		global:   global,
	}
}

// GetSeries fetches the daily close series for a code. Dates are ISO and
// optional; each tier applies its own default window. Source failures are
// absorbed: the worst outcome is a named, empty "(No Data)" series.
func (e *Engine) GetSeries(ctx context.Context, code, timeframe, startDate, endDate string) (types.PriceSeries, error) {
	ctx, span := trace.StartSpan(ctx, "price-series")
	defer span.End()

	if timeframe != "day" {
		return types.PriceSeries{}, fmt.Errorf("%w: %s", ErrUnsupportedTimeframe, timeframe)
	}

	// A failed master-list load only costs us the display name.
	if err := e.cache.Ensure(ctx); err != nil {
		logger.Warn(ctx, "Symbol cache unavailable, using code as name", "code", code)
	}

	name := code
	if n, ok := e.cache.NameByCode(code); ok {
		name = n
	}

	if isDomesticCode(code) {
		if points := e.domesticTier(ctx, code, startDate, endDate); len(points) > 0 {
			return types.PriceSeries{Name: name, Points: points}, nil
		}
		logger.Warn(ctx, "Domestic price source empty, falling back", "code", code)
	}

	if points := e.globalTier(ctx, code, startDate, endDate); len(points) > 0 {
		return types.PriceSeries{Name: name, Points: points}, nil
	}

	logger.Warn(ctx, "All price tiers empty", "code", code)
	return types.PriceSeries{Name: name + " (No Data)", Points: []types.PricePoint{}}, nil
}

// isDomesticCode reports whether the code is a six-digit local market code.
func isDomesticCode(code string) bool {
	if len(code) != 6 {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func (e *Engine) domesticTier(ctx context.Context, code, startDate, endDate string) []types.PricePoint {
	if startDate == "" {
		startDate = time.Now().AddDate(0, 0, -365).Format("2006-01-02")
	}
	if endDate == "" {
		endDate = time.Now().Format("2006-01-02")
	}

	var rows []types.PricePoint
	err := e.pool.Do(ctx, func() error {
		var fetchErr error
		rows, fetchErr = e.domestic.Daily(ctx, code, startDate, endDate)
		return fetchErr
	})
	if err != nil {
		logger.ErrorWithErr(ctx, "Domestic price source failed", err, "code", code)
		return nil
	}

	return sortAscending(rows)
}

func (e *Engine) globalTier(ctx context.Context, code, startDate, endDate string) []types.PricePoint {
	if startDate == "" {
		startDate = "2023-01-01"
	}
	if endDate == "" {
		endDate = time.Now().Format("2006-01-02")
	}

	var rows []types.PricePoint
	err := e.pool.Do(ctx, func() error {
		var fetchErr error
		rows, fetchErr = e.global.Daily(ctx, code, startDate, endDate)
		return fetchErr
	})
	if err != nil {
		logger.ErrorWithErr(ctx, "Global price source failed", err, "code", code)
		return nil
	}

	normalized := make([]types.PricePoint, 0, len(rows))
	for _, row := range rows {
		if math.IsNaN(row.Close) {
			continue
		}
		row.Close = normalizeClose(row.Close)
		normalized = append(normalized, row)
	}

	return sortAscending(normalized)
}

// normalizeClose applies the series normalization heuristic: fractional
// values round to 2 decimals, integral values with magnitude above 5000
// stay whole, everything else rounds to 2 decimals. The 5000 threshold is
// kept as-is from the upstream behavior.
func normalizeClose(v float64) float64 {
	if v != math.Trunc(v) {
		return math.Round(v*100) / 100
	}
	if math.Abs(v) > 5000 {
		return math.Trunc(v)
	}
	return math.Round(v*100) / 100
}

// sortAscending orders points by date and drops duplicate dates, keeping
// the first occurrence.
func sortAscending(points []types.PricePoint) []types.PricePoint {
	if len(points) == 0 {
		return nil
	}

	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Date < points[j].Date
	})

	out := points[:1]
	for _, p := range points[1:] {
		if p.Date == out[len(out)-1].Date {
			continue
		}
		out = append(out, p)
	}
	return out
}
