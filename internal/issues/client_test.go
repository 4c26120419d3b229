package issues

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"stock-dashboard/internal/api"
	"stock-dashboard/internal/types"
	"stock-dashboard/internal/worker"
)

func newTestClient(t *testing.T, serverURL string) *Client {
	t.Helper()
	pool := worker.New(2)
	t.Cleanup(pool.Close)
	return NewClient(api.NewClient(), serverURL, pool)
}

func issuePage(entries ...string) string {
	return `<html><body><script>window.__NUXT__=(function(a,b){return {data:[{list:[` +
		strings.Join(entries, ",") + `]}]}}("x","y"));</script></body></html>`
}

func TestListExtractsRankedIssues(t *testing.T) {
	page := issuePage(
		`{issn:356,is_str:"남북경협",source:b}`,
		`{issn:412,is_str:"2차전지",source:a}`,
		`{issn:356,is_str:"남북경협",source:b}`,
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	list, err := client.List(context.Background())
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}

	if len(list.Issues) != 2 {
		t.Fatalf("got %d issues, want 2 after dedup", len(list.Issues))
	}
	if list.TotalCount != 2 {
		t.Errorf("got total %d, want 2", list.TotalCount)
	}
	first := list.Issues[0]
	if first.ID != 356 || first.Keyword != "남북경협" || first.Rank != 1 {
		t.Errorf("got first issue %+v", first)
	}
	if list.Issues[1].Rank != 2 {
		t.Errorf("ranks should follow appearance order, got %+v", list.Issues[1])
	}
}

func TestListCapsAtTwenty(t *testing.T) {
	entries := make([]string, 25)
	for i := range entries {
		entries[i] = fmt.Sprintf(`{issn:%d,is_str:"keyword-%d"`, i+1, i+1)
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, issuePage(entries...))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	list, err := client.List(context.Background())
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(list.Issues) != 20 {
		t.Errorf("got %d issues, want 20", len(list.Issues))
	}
	if list.TotalCount != 25 {
		t.Errorf("got total %d, want 25", list.TotalCount)
	}
}

func TestListNoMatchesIsEmptyNotError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body>nothing here</body></html>")
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	list, err := client.List(context.Background())
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(list.Issues) != 0 || list.TotalCount != 0 {
		t.Errorf("got %+v, want empty list", list)
	}
}

func TestListServerErrorIsSourceUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.List(context.Background())
	if !errors.Is(err, types.ErrSourceUnavailable) {
		t.Fatalf("got error %v, want ErrSourceUnavailable", err)
	}
}

func TestDetailExtractsHeadlineAndStocks(t *testing.T) {
	page := `<html><body>
		<script>window.__NUXT__=(function(){return {d:{hl_str:\"반도체 \\\"슈퍼사이클\\\" 진입\",hl_cont:\"수요 회복세가 뚜렷하다\"}}}());</script>
		<table><tr><td class="stock">삼성전자</td><td class="stock">SK하이닉스</td></tr></table>
	</body></html>`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("issn") != "356" {
			t.Errorf("got issn %q, want 356", r.URL.Query().Get("issn"))
		}
		fmt.Fprint(w, page)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	detail, err := client.Detail(context.Background(), 356)
	if err != nil {
		t.Fatalf("Detail returned error: %v", err)
	}
	if !strings.Contains(detail.Headline, "반도체") {
		t.Errorf("got headline %q", detail.Headline)
	}
	if !strings.Contains(detail.Summary, "수요 회복세") {
		t.Errorf("got summary %q", detail.Summary)
	}
	if len(detail.RelatedStocks) != 2 || detail.RelatedStocks[0] != "삼성전자" {
		t.Errorf("got related stocks %v", detail.RelatedStocks)
	}
}
