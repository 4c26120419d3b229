package price

import (
	"context"

	finance "github.com/piquette/finance-go"
	"github.com/piquette/finance-go/quote"

	"stock-dashboard/internal/logger"
	"stock-dashboard/internal/trace"
	"stock-dashboard/internal/types"
	"stock-dashboard/internal/worker"
)

// marketQuotes maps dashboard metric keys to provider tickers. Order here
// is the canonical dashboard order.
var marketQuotes = []struct {
	key    string
	label  string
	symbol string
}{
	{"kospi", "KOSPI", "^KS11"},
	{"kosdaq", "KOSDAQ", "^KQ11"},
	{"sp500", "S&P 500", "^GSPC"},
	{"nasdaq", "NASDAQ", "^IXIC"},
	{"usd_krw", "USD/KRW", "KRW=X"},
	{"bitcoin", "Bitcoin", "BTC-USD"},
}

// QuoteFunc fetches one real-time quote. Injected so tests can stub the
// provider out.
type QuoteFunc func(symbol string) (*finance.Quote, error)

// MarketSource assembles the dashboard's index/asset snapshot. A metric
// whose quote fails is dropped from the snapshot, never an error.
type MarketSource struct {
	pool  *worker.Pool
	quote QuoteFunc
}

func NewMarketSource(pool *worker.Pool) *MarketSource {
	return &MarketSource{pool: pool, quote: quote.Get}
}

// NewMarketSourceWithQuote substitutes the quote provider.
func NewMarketSourceWithQuote(pool *worker.Pool, fn QuoteFunc) *MarketSource {
	return &MarketSource{pool: pool, quote: fn}
}

func (s *MarketSource) Snapshot(ctx context.Context) types.MarketSnapshot {
	ctx, span := trace.StartSpan(ctx, "market-snapshot")
	defer span.End()

	metrics := make([]types.MarketMetric, 0, len(marketQuotes))
	for _, mq := range marketQuotes {
		var q *finance.Quote
		err := s.pool.Do(ctx, func() error {
			var quoteErr error
			q, quoteErr = s.quote(mq.symbol)
			return quoteErr
		})
		if err != nil || q == nil {
			logger.Warn(ctx, "Market quote unavailable", "symbol", mq.symbol)
			continue
		}

		metrics = append(metrics, types.MarketMetric{
			Key:    mq.key,
			Label:  mq.label,
			Value:  q.RegularMarketPrice,
			Change: q.RegularMarketChangePercent,
		})
	}

	return types.MarketSnapshot{Metrics: metrics}
}
