package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"stock-dashboard/internal/logger"
	"stock-dashboard/internal/store"
	"stock-dashboard/internal/trace"
	"stock-dashboard/internal/types"
	"stock-dashboard/internal/worker"
)

const (
	chatHistoryLimit  = 10
	chatContextPrices = 5

	chatApology         = "죄송합니다. 현재 AI 서비스에 연결할 수 없습니다. 잠시 후 다시 시도해 주세요."
	analysisUnavailable = "AI API Key not configured. Please add OPENAI_API_KEY or GEMINI_API_KEY to .env file."
)

// Generator runs the three generation tasks over an ordered provider
// chain. A provider that errors, lacks credentials, or (for JSON tasks)
// returns unparseable output is skipped; the briefing task bottoms out in
// a deterministic offline summary, the text tasks in fixed strings.
type Generator struct {
	providers   []Provider
	pool        *worker.Pool
	maxTokens   int
	temperature float32
}

// NewGenerator builds a generator from config. Explicit providers replace
// the configured chain, which the tests use to inject fakes.
func NewGenerator(cfg *store.Config, pool *worker.Pool, providers ...Provider) *Generator {
	if len(providers) == 0 {
		providers = BuildChain(cfg)
	}
	return &Generator{
		providers:   providers,
		pool:        pool,
		maxTokens:   cfg.LLM.MaxTokens,
		temperature: cfg.LLM.Temperature,
	}
}

// callProvider runs one provider call on the shared worker pool so slow
// generative APIs cannot saturate request goroutines.
func (g *Generator) callProvider(ctx context.Context, p Provider, req Request) (string, error) {
	var out string
	err := g.pool.Do(ctx, func() error {
		var genErr error
		out, genErr = p.Generate(ctx, req)
		return genErr
	})
	return out, err
}

func (g *Generator) generate(ctx context.Context, req Request) (string, error) {
	req.MaxTokens = g.maxTokens
	req.Temperature = g.temperature

	var lastErr error
	for _, p := range g.providers {
		out, err := g.callProvider(ctx, p, req)
		if err != nil {
			logger.Warn(ctx, "Provider failed, trying next", "provider", p.Name(), "error", err.Error())
			lastErr = err
			continue
		}
		return out, nil
	}
	if lastErr == nil {
		lastErr = types.ErrExhausted
	}
	return "", fmt.Errorf("provider chain: %w", lastErr)
}

// Briefing summarizes a market snapshot. Provider output must be the
// briefing JSON object, optionally fenced; anything else fails that
// provider. With the chain exhausted the deterministic fallback answers.
func (g *Generator) Briefing(ctx context.Context, snapshot types.MarketSnapshot) types.Briefing {
	ctx, span := trace.StartSpan(ctx, "briefing-generate")
	defer span.End()

	req := Request{
		System:      "You are a financial market analyst. Respond ONLY with compact JSON matching the requested schema. Output field values in Korean.",
		Messages:    []types.ChatMessage{{Role: "user", Content: briefingPrompt(snapshot)}},
		MaxTokens:   g.maxTokens,
		Temperature: g.temperature,
	}

	var lastErr error
	for _, p := range g.providers {
		out, err := g.callProvider(ctx, p, req)
		if err != nil {
			logger.Warn(ctx, "Briefing provider failed", "provider", p.Name(), "error", err.Error())
			lastErr = err
			continue
		}

		var briefing types.Briefing
		if err := json.Unmarshal([]byte(stripFences(out)), &briefing); err != nil {
			logger.Warn(ctx, "Briefing response not valid JSON", "provider", p.Name(), "error", err.Error())
			lastErr = err
			continue
		}
		return briefing
	}

	if lastErr != nil {
		logger.Warn(ctx, "All briefing providers failed, using deterministic fallback")
	}
	return fallbackBriefing(snapshot)
}

func briefingPrompt(snapshot types.MarketSnapshot) string {
	var b strings.Builder
	b.WriteString("Summarize today's market using these metrics:\n")
	for _, m := range snapshot.Metrics {
		label := m.Label
		if label == "" {
			label = m.Key
		}
		fmt.Fprintf(&b, "- %s (%s): %.2f (%s)\n", label, m.Key, m.Value, formatChange(m.Change))
	}
	b.WriteString(`Respond with JSON: {"summary_title": string, "summary_content": string, "items": [{"id": metric key, "title": string, "status": "up"|"down"|"flat", "interpretation": string}]}`)
	return b.String()
}

// Chat answers a user message against the dashboard context. History is
// truncated to the most recent turns before it reaches a provider.
func (g *Generator) Chat(ctx context.Context, message string, history []types.ChatMessage, chatCtx types.ChatContext) string {
	ctx, span := trace.StartSpan(ctx, "chat-generate")
	defer span.End()

	if len(history) > chatHistoryLimit {
		history = history[len(history)-chatHistoryLimit:]
	}

	messages := make([]types.ChatMessage, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, types.ChatMessage{Role: "user", Content: message})

	out, err := g.generate(ctx, Request{
		System:   chatPreamble(chatCtx),
		Messages: messages,
	})
	if err != nil {
		logger.ErrorWithErr(ctx, "Chat generation failed", err)
		return chatApology
	}
	return out
}

// chatPreamble rebuilds the system prompt from the current dashboard
// state on every call.
func chatPreamble(chatCtx types.ChatContext) string {
	var b strings.Builder
	b.WriteString("당신은 주식 대시보드의 투자 도우미입니다. 한국어로 간결하고 정확하게 답변하세요.\n")

	if chatCtx.StockName == "" && chatCtx.StockCode == "" {
		b.WriteString("현재 선택된 종목은 없습니다. 일반적인 시장 질문에 답변하세요.")
		return b.String()
	}

	fmt.Fprintf(&b, "현재 조회 중인 종목: %s (%s)\n", chatCtx.StockName, chatCtx.StockCode)

	prices := chatCtx.RecentPrices
	if len(prices) > chatContextPrices {
		prices = prices[len(prices)-chatContextPrices:]
	}
	if len(prices) > 0 {
		b.WriteString("최근 종가:\n")
		for _, p := range prices {
			fmt.Fprintf(&b, "- %s: %.2f\n", p.Date, p.Close)
		}
	}

	if chatCtx.Financials != nil {
		fin, _ := json.Marshal(chatCtx.Financials)
		fmt.Fprintf(&b, "재무 정보: %s\n", fin)
	}
	if chatCtx.LastAnalysis != "" {
		fmt.Fprintf(&b, "이전 AI 분석: %s\n", chatCtx.LastAnalysis)
	}
	return b.String()
}

// Analyze produces a single-shot investment note for one stock.
func (g *Generator) Analyze(ctx context.Context, stockName string, series types.PriceSeries, financials *types.FinancialSnapshot) string {
	ctx, span := trace.StartSpan(ctx, "analysis-generate")
	defer span.End()

	lastClose := "Unknown"
	if len(series.Points) > 0 {
		lastClose = fmt.Sprintf("%.2f", series.Points[len(series.Points)-1].Close)
	}

	finText := "제공되지 않음"
	if financials != nil {
		if fin, err := json.Marshal(financials); err == nil {
			finText = string(fin)
		}
	}

	prompt := fmt.Sprintf(`Analyze the investment value of %s based on the following data:

Recent Price Trend: %s KRW (Last close)
Financials: %s

Provide a concise investment outlook (Buy/Sell/Hold) and key reasons.
Output in Korean.`, stockName, lastClose, finText)

	out, err := g.generate(ctx, Request{
		Messages: []types.ChatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		logger.ErrorWithErr(ctx, "Analysis generation failed", err)
		return analysisUnavailable
	}
	return out
}

// stripFences removes optional leading/trailing markdown code fences.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx >= 0 {
			s = s[idx+1:]
		} else {
			s = strings.TrimPrefix(s, "```")
		}
	}
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "```") {
		s = strings.TrimSuffix(s, "```")
	}
	return strings.TrimSpace(s)
}
