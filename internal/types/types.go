package types

// SymbolRecord is one entry of the market master list. Immutable once loaded.
type SymbolRecord struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type SearchResult struct {
	Symbol   string `json:"symbol"`
	Code     string `json:"code"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Exchange string `json:"exch"`
	Score    int    `json:"score"`
}

// PricePoint is a single daily close. Date is ISO (YYYY-MM-DD).
type PricePoint struct {
	Date  string  `json:"date"`
	Close float64 `json:"close"`
}

type PriceSeries struct {
	Name   string       `json:"name"`
	Points []PricePoint `json:"data"`
}

type Sentiment string

const (
	SentimentPositive Sentiment = "Positive"
	SentimentNeutral  Sentiment = "Neutral"
	SentimentNegative Sentiment = "Negative"
)

type ReportItem struct {
	StockName string    `json:"stock_name"`
	StockCode string    `json:"stock_code"`
	Title     string    `json:"title"`
	Brokerage string    `json:"brokerage"`
	Author    string    `json:"author"`
	Category  string    `json:"category"`
	Date      string    `json:"date"`
	Link      string    `json:"link"`
	PDFLink   string    `json:"pdf_link"`
	Sentiment Sentiment `json:"sentiment"`
}

// MarketMetric is one index/asset row of a dashboard snapshot.
type MarketMetric struct {
	Key    string  `json:"key"`
	Label  string  `json:"label"`
	Value  float64 `json:"value"`
	Change float64 `json:"change"`
}

type MarketSnapshot struct {
	Metrics []MarketMetric `json:"metrics"`
}

type BriefingItem struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	Status         string `json:"status"`
	Interpretation string `json:"interpretation"`
}

type Briefing struct {
	SummaryTitle   string         `json:"summary_title"`
	SummaryContent string         `json:"summary_content"`
	Items          []BriefingItem `json:"items"`
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatContext carries the dashboard state the chat preamble is rebuilt from.
type ChatContext struct {
	StockName    string             `json:"stockName,omitempty"`
	StockCode    string             `json:"stockCode,omitempty"`
	RecentPrices []PricePoint       `json:"stockData,omitempty"`
	Financials   *FinancialSnapshot `json:"financials,omitempty"`
	LastAnalysis string             `json:"analysis,omitempty"`
}

type FinancialSnapshot struct {
	Revenue         string  `json:"revenue"`
	OperatingProfit string  `json:"operating_profit"`
	NetIncome       string  `json:"net_income"`
	PER             float64 `json:"per"`
	PBR             float64 `json:"pbr"`
}

type Issue struct {
	ID      int    `json:"id"`
	Keyword string `json:"keyword"`
	Rank    int    `json:"rank"`
}

type IssueList struct {
	Issues     []Issue `json:"issues"`
	TotalCount int     `json:"total_count"`
}

type IssueDetail struct {
	Headline      string   `json:"headline"`
	Summary       string   `json:"summary"`
	RelatedStocks []string `json:"related_stocks"`
	ChartImageURL string   `json:"chart_image_url"`
}
