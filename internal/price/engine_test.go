package price

import (
	"context"
	"errors"
	"math"
	"testing"

	"stock-dashboard/internal/api"
	"stock-dashboard/internal/symbols"
	"stock-dashboard/internal/types"
	"stock-dashboard/internal/worker"
)

type stubSource struct {
	points []types.PricePoint
	err    error
	calls  int
}

func (s *stubSource) Daily(ctx context.Context, code, startDate, endDate string) ([]types.PricePoint, error) {
	s.calls++
	return s.points, s.err
}

func newTestEngine(t *testing.T, domestic, global *stubSource) *Engine {
	t.Helper()
	pool := worker.New(2)
	t.Cleanup(pool.Close)
	// Unreachable master list: name resolution falls back to the code.
	cache := symbols.NewCache(api.NewClient(), "http://127.0.0.1:1/master", pool)
	return NewEngine(cache, pool, domestic, global)
}

func TestGetSeriesUsesDomesticTierFirst(t *testing.T) {
	domestic := &stubSource{points: []types.PricePoint{
		{Date: "2024-01-03", Close: 71000},
		{Date: "2024-01-02", Close: 70500},
	}}
	global := &stubSource{points: []types.PricePoint{{Date: "2024-01-02", Close: 99}}}
	engine := newTestEngine(t, domestic, global)

	series, err := engine.GetSeries(context.Background(), "005930", "day", "", "")
	if err != nil {
		t.Fatalf("GetSeries returned error: %v", err)
	}
	if global.calls != 0 {
		t.Errorf("global tier called %d times, want 0", global.calls)
	}
	if len(series.Points) != 2 {
		t.Fatalf("got %d points, want 2", len(series.Points))
	}
	if series.Points[0].Date != "2024-01-02" || series.Points[1].Date != "2024-01-03" {
		t.Errorf("points not sorted ascending: %+v", series.Points)
	}
}

func TestGetSeriesFallsBackToGlobalTier(t *testing.T) {
	domestic := &stubSource{err: errors.New("portal down")}
	global := &stubSource{points: []types.PricePoint{
		{Date: "2024-01-02", Close: 70500},
		{Date: "2024-01-03", Close: 71000},
	}}
	engine := newTestEngine(t, domestic, global)

	series, err := engine.GetSeries(context.Background(), "005930", "day", "", "")
	if err != nil {
		t.Fatalf("GetSeries returned error: %v", err)
	}
	if domestic.calls != 1 {
		t.Errorf("domestic tier called %d times, want 1", domestic.calls)
	}
	if len(series.Points) != 2 {
		t.Fatalf("got %d points, want 2", len(series.Points))
	}
	if series.Points[0].Close != 70500 {
		t.Errorf("got close %v, want 70500", series.Points[0].Close)
	}
}

func TestGetSeriesForeignCodeSkipsDomesticTier(t *testing.T) {
	domestic := &stubSource{points: []types.PricePoint{{Date: "2024-01-02", Close: 1}}}
	global := &stubSource{points: []types.PricePoint{{Date: "2024-01-02", Close: 189.842}}}
	engine := newTestEngine(t, domestic, global)

	series, err := engine.GetSeries(context.Background(), "AAPL", "day", "", "")
	if err != nil {
		t.Fatalf("GetSeries returned error: %v", err)
	}
	if domestic.calls != 0 {
		t.Errorf("domestic tier called %d times, want 0", domestic.calls)
	}
	if series.Points[0].Close != 189.84 {
		t.Errorf("got close %v, want 189.84", series.Points[0].Close)
	}
}

func TestGetSeriesBothTiersEmpty(t *testing.T) {
	domestic := &stubSource{err: errors.New("portal down")}
	global := &stubSource{err: errors.New("provider down")}
	engine := newTestEngine(t, domestic, global)

	series, err := engine.GetSeries(context.Background(), "999999", "day", "", "")
	if err != nil {
		t.Fatalf("GetSeries returned error: %v", err)
	}
	if series.Name != "999999 (No Data)" {
		t.Errorf("got name %q, want %q", series.Name, "999999 (No Data)")
	}
	if series.Points == nil || len(series.Points) != 0 {
		t.Errorf("got points %v, want empty non-nil slice", series.Points)
	}
}

func TestGetSeriesRejectsUnknownTimeframe(t *testing.T) {
	engine := newTestEngine(t, &stubSource{}, &stubSource{})

	_, err := engine.GetSeries(context.Background(), "005930", "week", "", "")
	if !errors.Is(err, ErrUnsupportedTimeframe) {
		t.Fatalf("got error %v, want ErrUnsupportedTimeframe", err)
	}
}

func TestGetSeriesSkipsNaNCloses(t *testing.T) {
	global := &stubSource{points: []types.PricePoint{
		{Date: "2024-01-02", Close: math.NaN()},
		{Date: "2024-01-03", Close: 101.5},
	}}
	engine := newTestEngine(t, &stubSource{}, global)

	series, err := engine.GetSeries(context.Background(), "AAPL", "day", "", "")
	if err != nil {
		t.Fatalf("GetSeries returned error: %v", err)
	}
	if len(series.Points) != 1 || series.Points[0].Date != "2024-01-03" {
		t.Errorf("got points %+v, want only the 2024-01-03 row", series.Points)
	}
}

func TestGetSeriesDropsDuplicateDates(t *testing.T) {
	domestic := &stubSource{points: []types.PricePoint{
		{Date: "2024-01-02", Close: 70500},
		{Date: "2024-01-02", Close: 70600},
		{Date: "2024-01-03", Close: 71000},
	}}
	engine := newTestEngine(t, domestic, &stubSource{})

	series, err := engine.GetSeries(context.Background(), "005930", "day", "", "")
	if err != nil {
		t.Fatalf("GetSeries returned error: %v", err)
	}
	if len(series.Points) != 2 {
		t.Fatalf("got %d points, want duplicate date dropped: %+v", len(series.Points), series.Points)
	}
	// The first occurrence of a repeated date wins.
	if series.Points[0].Close != 70500 {
		t.Errorf("got close %v, want 70500", series.Points[0].Close)
	}
	if series.Points[1].Date != "2024-01-03" {
		t.Errorf("got second date %q, want 2024-01-03", series.Points[1].Date)
	}
}

func TestNormalizeClose(t *testing.T) {
	cases := []struct {
		in   float64
		want float64
	}{
		{123.456, 123.46},
		{74000, 74000},
		{123.4, 123.4},
		{4999, 4999},
		{-6000, -6000},
	}
	for _, tc := range cases {
		if got := normalizeClose(tc.in); got != tc.want {
			t.Errorf("normalizeClose(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestIsDomesticCode(t *testing.T) {
	cases := []struct {
		code string
		want bool
	}{
		{"005930", true},
		{"035720", true},
		{"AAPL", false},
		{"00593", false},
		{"0059300", false},
		{"00593A", false},
	}
	for _, tc := range cases {
		if got := isDomesticCode(tc.code); got != tc.want {
			t.Errorf("isDomesticCode(%q) = %v, want %v", tc.code, got, tc.want)
		}
	}
}
