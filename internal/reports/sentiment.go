package reports

import (
	"strings"

	"stock-dashboard/internal/types"
)

var positiveKeywords = []string{
	"성장", "최대", "개선", "상향", "호조", "기대", "매수", "확대",
	"상회", "부합", "증설", "서프라이즈", "견조", "도약", "유망", "저평가", "강세", "회복", "반등",
}

var negativeKeywords = []string{
	"하향", "우려", "축소", "감소", "부진", "적자", "둔화", "불확실",
	"하회", "아쉽", "부담", "리스크", "약세", "쇼크", "지연",
}

// AnalyzeSentiment scores a report title by keyword lexicon: each positive
// keyword present adds one, each negative keyword subtracts one, and the
// sign of the total decides the label.
func AnalyzeSentiment(title string) types.Sentiment {
	score := 0
	for _, kw := range positiveKeywords {
		if strings.Contains(title, kw) {
			score++
		}
	}
	for _, kw := range negativeKeywords {
		if strings.Contains(title, kw) {
			score--
		}
	}

	switch {
	case score > 0:
		return types.SentimentPositive
	case score < 0:
		return types.SentimentNegative
	default:
		return types.SentimentNeutral
	}
}
