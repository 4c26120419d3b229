package transporthttp

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"stock-dashboard/internal/ai"
	"stock-dashboard/internal/financials"
	"stock-dashboard/internal/issues"
	"stock-dashboard/internal/logger"
	"stock-dashboard/internal/price"
	"stock-dashboard/internal/reports"
	"stock-dashboard/internal/search"
	"stock-dashboard/internal/types"
)

// Server is the thin API boundary over the aggregation services. It holds
// no state of its own; every handler delegates and serializes.
type Server struct {
	search     *search.Aggregator
	prices     *price.Engine
	market     *price.MarketSource
	reports    *reports.Service
	generator  *ai.Generator
	financials *financials.Provider
	issues     *issues.Client
	timeout    time.Duration
}

func NewServer(
	searchAgg *search.Aggregator,
	prices *price.Engine,
	market *price.MarketSource,
	reportSvc *reports.Service,
	generator *ai.Generator,
	finProvider *financials.Provider,
	issueClient *issues.Client,
	timeout time.Duration,
) *Server {
	return &Server{
		search:     searchAgg,
		prices:     prices,
		market:     market,
		reports:    reportSvc,
		generator:  generator,
		financials: finProvider,
		issues:     issueClient,
		timeout:    timeout,
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.health)
	mux.HandleFunc("GET /api/search", s.handleSearch)
	mux.HandleFunc("GET /api/stock/{code}/price", s.handlePrice)
	mux.HandleFunc("GET /api/stock/{code}/financials", s.handleFinancials)
	mux.HandleFunc("GET /api/reports", s.handleReports)
	mux.HandleFunc("GET /api/dashboard", s.handleDashboard)
	mux.HandleFunc("POST /api/analyze", s.handleAnalyze)
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("GET /api/issue/ai", s.handleIssueList)
	mux.HandleFunc("GET /api/issue/ai/{id}", s.handleIssueDetail)
	return allowAllCORS(mux)
}

// allowAllCORS mirrors the permissive policy used for local network
// sharing of the dashboard.
func allowAllCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), s.timeout)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.requestContext(r)
	defer cancel()

	results := s.search.Search(ctx, r.URL.Query().Get("q"))
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.requestContext(r)
	defer cancel()

	q := r.URL.Query()
	timeframe := q.Get("timeframe")
	if timeframe == "" {
		timeframe = "day"
	}

	series, err := s.prices.GetSeries(ctx, r.PathValue("code"), timeframe, q.Get("start_date"), q.Get("end_date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, series)
}

func (s *Server) handleFinancials(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.requestContext(r)
	defer cancel()

	snapshot, err := s.financials.Snapshot(ctx, r.PathValue("code"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.requestContext(r)
	defer cancel()

	q := r.URL.Query()
	source := q.Get("source")
	if source == "" {
		source = "hankyung"
	}

	items := s.reports.Fetch(ctx, source, q.Get("start_date"), q.Get("end_date"))
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.requestContext(r)
	defer cancel()

	snapshot := s.market.Snapshot(ctx)
	briefing := s.generator.Briefing(ctx, snapshot)

	writeJSON(w, http.StatusOK, map[string]any{
		"indices":  snapshot.Metrics,
		"briefing": briefing,
	})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.requestContext(r)
	defer cancel()

	var payload struct {
		StockCode string `json:"stock_code"`
		StockName string `json:"stock_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.StockCode == "" {
		writeError(w, http.StatusBadRequest, "stock_code and stock_name are required")
		return
	}

	series, err := s.prices.GetSeries(ctx, payload.StockCode, "day", "", "")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	snapshot, err := s.financials.Snapshot(ctx, payload.StockCode)
	if err != nil {
		logger.ErrorWithErr(ctx, "Financials unavailable for analysis", err, "code", payload.StockCode)
		snapshot = nil
	}

	analysis := s.generator.Analyze(ctx, payload.StockName, series, snapshot)
	writeJSON(w, http.StatusOK, map[string]string{"analysis": analysis})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.requestContext(r)
	defer cancel()

	var payload struct {
		Message string              `json:"message"`
		History []types.ChatMessage `json:"history"`
		Context types.ChatContext   `json:"context"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	response := s.generator.Chat(ctx, payload.Message, payload.History, payload.Context)
	writeJSON(w, http.StatusOK, map[string]string{"response": response})
}

func (s *Server) handleIssueList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.requestContext(r)
	defer cancel()

	list, err := s.issues.List(ctx)
	if err != nil {
		logger.ErrorWithErr(ctx, "Issue list unavailable", err)
		writeJSON(w, http.StatusOK, types.IssueList{Issues: []types.Issue{}})
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleIssueDetail(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.requestContext(r)
	defer cancel()

	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "issue id must be numeric")
		return
	}

	detail, detailErr := s.issues.Detail(ctx, id)
	if detailErr != nil {
		logger.ErrorWithErr(ctx, "Issue detail unavailable", detailErr, "id", id)
		writeJSON(w, http.StatusOK, types.IssueDetail{})
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
