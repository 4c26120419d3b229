package search

import (
	"context"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"stock-dashboard/internal/api"
	"stock-dashboard/internal/logger"
	"stock-dashboard/internal/store"
	"stock-dashboard/internal/symbols"
	"stock-dashboard/internal/trace"
	"stock-dashboard/internal/types"
	"stock-dashboard/internal/worker"
)

// Instrument types kept from the remote provider; everything else
// (currencies, futures, indices) is noise for the dashboard.
var keptQuoteTypes = map[string]bool{
	"EQUITY":     true,
	"ETF":        true,
	"MUTUALFUND": true,
}

// Aggregator merges local symbol-cache matches with a remote fuzzy-search
// provider, scores both passes, and returns a ranked, capped result list.
// Remote failures are absorbed; an empty list is a valid outcome.
type Aggregator struct {
	cache        *symbols.Cache
	client       *api.Client
	pool         *worker.Pool
	searchURL    string
	maxResults   int
	remoteQuotes int
}

func NewAggregator(cache *symbols.Cache, client *api.Client, pool *worker.Pool, cfg *store.Config) *Aggregator {
	return &Aggregator{
		cache:        cache,
		client:       client,
		pool:         pool,
		searchURL:    cfg.Sources.YahooSearchURL,
		maxResults:   cfg.Search.MaxResults,
		remoteQuotes: cfg.Search.RemoteQuotes,
	}
}

// Search runs the local and remote passes for a free-text query.
func (a *Aggregator) Search(ctx context.Context, query string) []types.SearchResult {
	ctx, span := trace.StartSpan(ctx, "symbol-search")
	defer span.End()

	query = strings.TrimSpace(query)
	if query == "" {
		return []types.SearchResult{}
	}

	// May block on the first call while the master list loads. A failed
	// load just means no local hits this time.
	if err := a.cache.Ensure(ctx); err != nil {
		logger.ErrorWithErr(ctx, "Symbol cache load failed, local pass skipped", err, "query", query)
	}

	results := a.localPass(query)
	results = append(results, a.remotePass(ctx, query, results)...)

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > a.maxResults {
		results = results[:a.maxResults]
	}

	logger.Info(ctx, "Symbol search completed", "query", query, "results", len(results))
	return results
}

// localPass matches the query against cached names. Exact name matches rank
// above substring hits.
func (a *Aggregator) localPass(query string) []types.SearchResult {
	var results []types.SearchResult
	for _, rec := range a.cache.SearchByName(query) {
		score := 5
		if query == rec.Name {
			score = 10
		}
		results = append(results, types.SearchResult{
			Symbol:   rec.Code,
			Code:     rec.Code,
			Name:     rec.Name,
			Type:     "Equity",
			Exchange: "KRX",
			Score:    score,
		})
	}
	return results
}

type quoteRow struct {
	Symbol    string `json:"symbol"`
	ShortName string `json:"shortname"`
	LongName  string `json:"longname"`
	Exchange  string `json:"exchange"`
	QuoteType string `json:"quoteType"`
}

type searchResponse struct {
	Quotes []quoteRow `json:"quotes"`
}

// remotePass queries the fuzzy-search provider. Any failure is logged and
// treated as zero remote results.
func (a *Aggregator) remotePass(ctx context.Context, query string, local []types.SearchResult) []types.SearchResult {
	params := url.Values{}
	params.Set("q", query)
	params.Set("quotesCount", strconv.Itoa(a.remoteQuotes))
	params.Set("newsCount", "0")
	params.Set("enableFuzzyQuery", "false")
	params.Set("quotesQueryId", "tss_match_phrase_query")

	var resp *api.Response
	err := a.pool.Do(ctx, func() error {
		var fetchErr error
		resp, fetchErr = a.client.GET(ctx, a.searchURL+"?"+params.Encode(), api.YahooFinanceHeaders())
		return fetchErr
	})
	if err != nil {
		logger.ErrorWithErr(ctx, "Remote symbol search failed", err, "query", query)
		return nil
	}

	var parsed searchResponse
	if err := resp.ParseJSON(&parsed); err != nil {
		logger.ErrorWithErr(ctx, "Remote symbol search returned malformed payload", err, "query", query)
		return nil
	}

	seen := make(map[string]bool, len(local))
	for _, r := range local {
		seen[r.Code] = true
	}

	var results []types.SearchResult
	for _, q := range parsed.Quotes {
		if q.Symbol == "" || !keptQuoteTypes[q.QuoteType] {
			continue
		}
		if seen[q.Symbol] {
			continue
		}

		name := q.ShortName
		if name == "" {
			name = q.LongName
		}
		if name == "" {
			name = q.Symbol
		}

		exch := q.Exchange
		if exch == "" {
			exch = "Unknown"
		}

		score := 3
		if strings.EqualFold(q.Symbol, query) {
			score = 8
		}

		results = append(results, types.SearchResult{
			Symbol:   q.Symbol,
			Code:     q.Symbol,
			Name:     name,
			Type:     q.QuoteType,
			Exchange: exch,
			Score:    score,
		})
	}
	return results
}
