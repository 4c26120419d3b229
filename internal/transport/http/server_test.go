package transporthttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	finance "github.com/piquette/finance-go"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/transform"

	"stock-dashboard/internal/ai"
	"stock-dashboard/internal/api"
	"stock-dashboard/internal/financials"
	"stock-dashboard/internal/issues"
	"stock-dashboard/internal/price"
	"stock-dashboard/internal/reports"
	"stock-dashboard/internal/search"
	"stock-dashboard/internal/store"
	"stock-dashboard/internal/symbols"
	"stock-dashboard/internal/types"
	"stock-dashboard/internal/worker"
)

type stubPriceSource struct {
	points []types.PricePoint
	err    error
}

func (s *stubPriceSource) Daily(ctx context.Context, code, startDate, endDate string) ([]types.PricePoint, error) {
	return s.points, s.err
}

type stubProvider struct {
	out string
	err error
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) Generate(ctx context.Context, req ai.Request) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	return p.out, nil
}

func masterListServer(t *testing.T) *httptest.Server {
	t.Helper()
	html := `<html><body><table>
		<tr><th>회사명</th><th>종목코드</th></tr>
		<tr><td>삼성전자</td><td>005930</td></tr>
		<tr><td>카카오</td><td>035720</td></tr>
	</table></body></html>`
	encoded, _, err := transform.String(korean.EUCKR.NewEncoder(), html)
	if err != nil {
		t.Fatalf("encoding master list: %v", err)
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=euc-kr")
		fmt.Fprint(w, encoded)
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestServer(t *testing.T, provider ai.Provider) *Server {
	t.Helper()

	cfg := store.Default()
	cfg.Sources.SymbolMasterURL = masterListServer(t).URL
	// Remote search degrades to local-only against a dead endpoint.
	cfg.Sources.YahooSearchURL = "http://127.0.0.1:1/search"

	reportServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><table><tbody><tr>
			<td>2024-01-15</td>
			<td>기업</td>
			<td><a href="/analysis/view?id=1">삼성전자(005930) 실적 개선 기대</a></td>
			<td>김철수</td>
			<td>한국증권</td>
			<td><a href="/down/pdf?id=1">PDF</a></td>
		</tr></tbody></table></body></html>`)
	}))
	t.Cleanup(reportServer.Close)
	cfg.Sources.HankyungURL = reportServer.URL

	issueServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<script>window.__NUXT__=(function(b){return {}}({issn:356,is_str:"남북경협",source:1}));</script>`)
	}))
	t.Cleanup(issueServer.Close)
	cfg.Sources.IssueURL = issueServer.URL

	pool := worker.New(4)
	t.Cleanup(pool.Close)

	client := api.NewClient()
	cache := symbols.NewCache(client, cfg.Sources.SymbolMasterURL, pool)

	engine := price.NewEngine(cache, pool,
		&stubPriceSource{points: []types.PricePoint{
			{Date: "2024-01-02", Close: 70500},
			{Date: "2024-01-03", Close: 71000},
		}},
		&stubPriceSource{err: errors.New("unused")},
	)

	market := price.NewMarketSourceWithQuote(pool, func(symbol string) (*finance.Quote, error) {
		return &finance.Quote{Symbol: symbol, RegularMarketPrice: 2600, RegularMarketChangePercent: 0.01}, nil
	})

	return NewServer(
		search.NewAggregator(cache, client, pool, cfg),
		engine,
		market,
		reports.NewService(cfg, pool),
		ai.NewGenerator(cfg, pool, provider),
		financials.NewProvider(),
		issues.NewClient(client, cfg.Sources.IssueURL, pool),
		10*time.Second,
	)
}

func do(t *testing.T, srv *Server, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t, &stubProvider{out: "ok"})
	rec := do(t, srv, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
}

func TestSearchEndpoint(t *testing.T) {
	srv := newTestServer(t, &stubProvider{out: "ok"})
	rec := do(t, srv, http.MethodGet, "/api/search?q=삼성전자", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var results []types.SearchResult
	if err := json.Unmarshal(rec.Body.Bytes(), &results); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(results) != 1 || results[0].Code != "005930" || results[0].Score != 10 {
		t.Fatalf("got results %+v", results)
	}
}

func TestPriceEndpoint(t *testing.T) {
	srv := newTestServer(t, &stubProvider{out: "ok"})
	rec := do(t, srv, http.MethodGet, "/api/stock/005930/price", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var series types.PriceSeries
	if err := json.Unmarshal(rec.Body.Bytes(), &series); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if series.Name != "삼성전자" {
		t.Errorf("got name %q, want resolved company name", series.Name)
	}
	if len(series.Points) != 2 {
		t.Errorf("got %d points, want 2", len(series.Points))
	}
}

func TestPriceEndpointRejectsTimeframe(t *testing.T) {
	srv := newTestServer(t, &stubProvider{out: "ok"})
	rec := do(t, srv, http.MethodGet, "/api/stock/005930/price?timeframe=week", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestReportsEndpoint(t *testing.T) {
	srv := newTestServer(t, &stubProvider{out: "ok"})
	rec := do(t, srv, http.MethodGet, "/api/reports", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var items []types.ReportItem
	if err := json.Unmarshal(rec.Body.Bytes(), &items); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(items) != 1 || items[0].StockCode != "005930" {
		t.Fatalf("got items %+v", items)
	}
}

func TestDashboardFallbackBriefing(t *testing.T) {
	srv := newTestServer(t, &stubProvider{err: types.ErrCredentialsMissing})
	rec := do(t, srv, http.MethodGet, "/api/dashboard", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var payload struct {
		Indices  []types.MarketMetric `json:"indices"`
		Briefing types.Briefing       `json:"briefing"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(payload.Indices) == 0 {
		t.Fatalf("expected index metrics")
	}
	if len(payload.Briefing.Items) != len(payload.Indices) {
		t.Errorf("briefing should cover every metric, got %d items for %d metrics",
			len(payload.Briefing.Items), len(payload.Indices))
	}
}

func TestChatEndpoint(t *testing.T) {
	srv := newTestServer(t, &stubProvider{out: "매수 관점이 유효합니다."})
	rec := do(t, srv, http.MethodPost, "/api/chat", map[string]any{
		"message": "삼성전자 어때?",
		"history": []types.ChatMessage{},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var payload map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload["response"] != "매수 관점이 유효합니다." {
		t.Errorf("got response %q", payload["response"])
	}
}

func TestChatEndpointRequiresMessage(t *testing.T) {
	srv := newTestServer(t, &stubProvider{out: "ok"})
	rec := do(t, srv, http.MethodPost, "/api/chat", map[string]any{"message": ""})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestAnalyzeEndpoint(t *testing.T) {
	srv := newTestServer(t, &stubProvider{out: "매수"})
	rec := do(t, srv, http.MethodPost, "/api/analyze", map[string]string{
		"stock_code": "005930",
		"stock_name": "삼성전자",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var payload map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload["analysis"] != "매수" {
		t.Errorf("got analysis %q", payload["analysis"])
	}
}

func TestIssueListEndpoint(t *testing.T) {
	srv := newTestServer(t, &stubProvider{out: "ok"})
	rec := do(t, srv, http.MethodGet, "/api/issue/ai", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var list types.IssueList
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(list.Issues) != 1 || list.Issues[0].Keyword != "남북경협" {
		t.Fatalf("got list %+v", list)
	}
}
