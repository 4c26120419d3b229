package price

import (
	"context"
	"fmt"
	"time"

	finance "github.com/piquette/finance-go"
	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/shopspring/decimal"

	"stock-dashboard/internal/types"
)

// ChartSource streams daily bars from the global quote provider's chart
// API. It serves any symbol the provider knows, which makes it both the
// domestic fallback and the primary path for foreign tickers.
type ChartSource struct{}

func NewChartSource() *ChartSource {
	return &ChartSource{}
}

func (s *ChartSource) Daily(ctx context.Context, symbol, startDate, endDate string) ([]types.PricePoint, error) {
	start, err := time.Parse("2006-01-02", startDate)
	if err != nil {
		return nil, fmt.Errorf("chart: bad start date %q: %w", startDate, err)
	}
	end, err := time.Parse("2006-01-02", endDate)
	if err != nil {
		return nil, fmt.Errorf("chart: bad end date %q: %w", endDate, err)
	}

	params := &chart.Params{
		Params:   finance.Params{Context: &ctx},
		Symbol:   symbol,
		Start:    datetime.New(&start),
		End:      datetime.New(&end),
		Interval: datetime.OneDay,
	}

	iter := chart.Get(params)

	var points []types.PricePoint
	for iter.Next() {
		bar := iter.Bar()
		// Holiday rows come back zero-filled, not absent.
		if bar.Close.Equal(decimal.Zero) {
			continue
		}
		close, _ := bar.Close.Float64()
		points = append(points, types.PricePoint{
			Date:  time.Unix(int64(bar.Timestamp), 0).UTC().Format("2006-01-02"),
			Close: close,
		})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("chart: %w: %v", types.ErrSourceUnavailable, err)
	}
	return points, nil
}
