package ai

import (
	"fmt"
	"math"

	"stock-dashboard/internal/types"
)

// canonicalKeys fixes the display order of dashboard metrics; keys outside
// this list are appended after it in snapshot order.
var canonicalKeys = []string{"kospi", "kosdaq", "sp500", "nasdaq", "usd_krw", "bitcoin"}

// volatileKey always derives its status from the sign of the change; a
// sub-threshold move in this asset is still a move worth showing.
const volatileKey = "bitcoin"

// flatThreshold is the absolute daily-change percentage below which a
// metric reads as unchanged.
const flatThreshold = 0.05

const fallbackInterpretation = "AI 해석을 사용할 수 없어 수치 기반으로 자동 생성된 항목입니다."

// fallbackBriefing builds a briefing from the snapshot alone, with no
// generative provider involved. It is the terminal element of the
// provider chain and cannot fail.
func fallbackBriefing(snapshot types.MarketSnapshot) types.Briefing {
	byKey := make(map[string]types.MarketMetric, len(snapshot.Metrics))
	for _, m := range snapshot.Metrics {
		byKey[m.Key] = m
	}

	items := make([]types.BriefingItem, 0, len(snapshot.Metrics))
	seen := make(map[string]bool, len(snapshot.Metrics))
	for _, key := range canonicalKeys {
		if m, ok := byKey[key]; ok {
			items = append(items, fallbackItem(m))
			seen[key] = true
		}
	}
	for _, m := range snapshot.Metrics {
		if !seen[m.Key] {
			items = append(items, fallbackItem(m))
		}
	}

	return types.Briefing{
		SummaryTitle:   "오늘의 시장 요약",
		SummaryContent: "AI 분석 없이 시장 지표 수치만으로 자동 생성된 브리핑입니다.",
		Items:          items,
	}
}

func fallbackItem(m types.MarketMetric) types.BriefingItem {
	title := m.Label
	if title == "" {
		title = m.Key
	}
	return types.BriefingItem{
		ID:             m.Key,
		Title:          title,
		Status:         metricStatus(m),
		Interpretation: fallbackInterpretation,
	}
}

func metricStatus(m types.MarketMetric) string {
	if m.Key != volatileKey && math.Abs(m.Change) < flatThreshold {
		return "flat"
	}
	switch {
	case m.Change > 0:
		return "up"
	case m.Change < 0:
		return "down"
	default:
		return "flat"
	}
}

func formatChange(change float64) string {
	return fmt.Sprintf("%+.2f%%", change)
}
