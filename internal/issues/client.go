package issues

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"stock-dashboard/internal/api"
	"stock-dashboard/internal/trace"
	"stock-dashboard/internal/types"
	"stock-dashboard/internal/worker"
)

const maxIssues = 20

// The issue page ships its data inside a minified window.__NUXT__ script.
// Evaluating that JS is not an option, so typed records are pulled out
// with regexes; per-row misses are dropped, never fatal.
var (
	issuePattern    = regexp.MustCompile(`\{issn:(\d+),is_str:"(.*?)"`)
	headlinePattern = regexp.MustCompile(`hl_str:\\?"(.*?)\\?"`)
	summaryPattern  = regexp.MustCompile(`hl_cont:\\?"(.*?)\\?"`)
)

// Client captures the AI issue board of an external analysis portal.
type Client struct {
	client  *api.Client
	baseURL string
	pool    *worker.Pool
}

func NewClient(client *api.Client, baseURL string, pool *worker.Pool) *Client {
	return &Client{client: client, baseURL: baseURL, pool: pool}
}

// fetch runs one page request on the shared worker pool.
func (c *Client) fetch(ctx context.Context, url string) (*api.Response, error) {
	var resp *api.Response
	err := c.pool.Do(ctx, func() error {
		var fetchErr error
		resp, fetchErr = c.client.GET(ctx, url, api.BrowserHeaders())
		return fetchErr
	})
	return resp, err
}

// List returns the ranked issue keywords, deduplicated by id and capped
// at the top entries. Rank is assigned by appearance order.
func (c *Client) List(ctx context.Context) (types.IssueList, error) {
	ctx, span := trace.StartSpan(ctx, "issue-list")
	defer span.End()

	resp, err := c.fetch(ctx, c.baseURL)
	if err != nil {
		return types.IssueList{}, fmt.Errorf("issue list: %w: %v", types.ErrSourceUnavailable, err)
	}
	if resp.StatusCode != 200 {
		return types.IssueList{}, fmt.Errorf("issue list: %w: status %d", types.ErrSourceUnavailable, resp.StatusCode)
	}

	matches := issuePattern.FindAllStringSubmatch(string(resp.Body), -1)

	issues := []types.Issue{}
	seen := make(map[int]bool)
	for _, m := range matches {
		id, err := strconv.Atoi(m[1])
		if err != nil || seen[id] {
			continue
		}
		seen[id] = true
		issues = append(issues, types.Issue{
			ID:      id,
			Keyword: m[2],
			Rank:    len(issues) + 1,
		})
	}

	total := len(issues)
	if len(issues) > maxIssues {
		issues = issues[:maxIssues]
	}

	return types.IssueList{Issues: issues, TotalCount: total}, nil
}

// Detail fetches one issue's headline, summary and related stock names.
func (c *Client) Detail(ctx context.Context, id int) (types.IssueDetail, error) {
	ctx, span := trace.StartSpan(ctx, "issue-detail")
	defer span.End()

	url := fmt.Sprintf("%s/detail?issn=%d", c.baseURL, id)
	resp, err := c.fetch(ctx, url)
	if err != nil {
		return types.IssueDetail{}, fmt.Errorf("issue detail: %w: %v", types.ErrSourceUnavailable, err)
	}
	if resp.StatusCode != 200 {
		return types.IssueDetail{}, fmt.Errorf("issue detail: %w: status %d", types.ErrSourceUnavailable, resp.StatusCode)
	}

	body := string(resp.Body)
	detail := types.IssueDetail{}
	if m := headlinePattern.FindStringSubmatch(body); m != nil {
		detail.Headline = unescapeNuxt(m[1])
	}
	if m := summaryPattern.FindStringSubmatch(body); m != nil {
		detail.Summary = unescapeNuxt(m[1])
	}
	detail.RelatedStocks = relatedStocks(resp.Body)

	return detail, nil
}

// relatedStocks reads stock names from the static markup, best effort.
func relatedStocks(body []byte) []string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil
	}

	var stocks []string
	doc.Find(".stock_item, .related_stock, td.stock").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := strings.TrimSpace(sel.Text())
		if text != "" && len(text) < 50 {
			stocks = append(stocks, text)
		}
		return len(stocks) < 5
	})
	return stocks
}

func unescapeNuxt(s string) string {
	r := strings.NewReplacer(`\"`, `"`, `\/`, `/`, `<`, "<", `>`, ">")
	return r.Replace(s)
}
