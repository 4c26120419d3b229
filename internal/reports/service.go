package reports

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"stock-dashboard/internal/logger"
	"stock-dashboard/internal/store"
	"stock-dashboard/internal/trace"
	"stock-dashboard/internal/types"
	"stock-dashboard/internal/worker"
)

const scraperUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Listing titles lead with "회사명(종목코드) 제목"; rows that do not match
// fall back to the listing category as the stock name.
var titlePattern = regexp.MustCompile(`^(.+?)\((\d+)\)\s+(.+)`)

// Service scrapes dated research-report listings from two portals. All
// network and parse failures degrade to whatever was collected so far.
type Service struct {
	hankyungURL string
	naverURL    string
	pool        *worker.Pool
	timeout     time.Duration
	maxPages    int
	pageSize    int
}

func NewService(cfg *store.Config, pool *worker.Pool) *Service {
	return &Service{
		hankyungURL: cfg.Sources.HankyungURL,
		naverURL:    cfg.Sources.NaverURL,
		pool:        pool,
		timeout:     time.Duration(cfg.HTTP.TimeoutSeconds) * time.Second,
		maxPages:    cfg.Reports.MaxPages,
		pageSize:    cfg.Reports.PageSize,
	}
}

// Fetch returns reports from the selected source. Without a start date only
// the newest listing page is read; with one, pagination walks until a row
// falls before the window, a page parses empty, or the page cap is hit.
func (s *Service) Fetch(ctx context.Context, source, startDate, endDate string) []types.ReportItem {
	ctx, span := trace.StartSpan(ctx, "report-fetch")
	defer span.End()

	if source == "naver" {
		return s.fetchNaver(ctx, startDate, endDate)
	}
	return s.fetchHankyung(ctx, startDate, endDate)
}

func (s *Service) fetchHankyung(ctx context.Context, startDate, endDate string) []types.ReportItem {
	maxPages := s.maxPages
	if startDate == "" {
		maxPages = 1
	}

	all := []types.ReportItem{}
	for page := 1; page <= maxPages; page++ {
		items, olderReached, err := s.scrapeHankyungPage(ctx, page, startDate, endDate)
		all = append(all, items...)
		if err != nil {
			logger.ErrorWithErr(ctx, "Hankyung page fetch failed", err, "page", page)
			break
		}
		if olderReached {
			logger.Info(ctx, "Reached rows older than window, stopping", "source", "hankyung", "page", page)
			break
		}
		if len(items) == 0 {
			break
		}
		logger.Info(ctx, "Scraped report page", "source", "hankyung", "page", page, "items", len(items))
	}
	return all
}

func (s *Service) scrapeHankyungPage(ctx context.Context, page int, startDate, endDate string) ([]types.ReportItem, bool, error) {
	c := colly.NewCollector(colly.MaxDepth(1))
	c.SetRequestTimeout(s.timeout)
	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("User-Agent", scraperUserAgent)
	})

	items := []types.ReportItem{}
	olderReached := false

	c.OnHTML("table tbody tr", func(e *colly.HTMLElement) {
		if olderReached {
			return
		}
		cells := e.DOM.Find("td")
		if cells.Length() < 6 {
			return
		}

		date := strings.TrimSpace(cells.Eq(0).Text())
		if endDate != "" && date > endDate {
			return
		}
		if startDate != "" && date < startDate {
			olderReached = true
			return
		}

		category := strings.TrimSpace(cells.Eq(1).Text())

		titleAnchor := cells.Eq(2).Find("a").First()
		if titleAnchor.Length() == 0 {
			return
		}
		fullTitle := strings.TrimSpace(titleAnchor.Text())
		link := ""
		if href, ok := titleAnchor.Attr("href"); ok {
			link = e.Request.AbsoluteURL(href)
		}

		stockName, stockCode, title := category, "", fullTitle
		if m := titlePattern.FindStringSubmatch(fullTitle); m != nil {
			stockName = strings.TrimSpace(m[1])
			stockCode = m[2]
			title = strings.TrimSpace(m[3])
		}

		pdfLink := ""
		if href, ok := cells.Eq(5).Find("a").First().Attr("href"); ok {
			pdfLink = e.Request.AbsoluteURL(href)
		}

		items = append(items, types.ReportItem{
			StockName: stockName,
			StockCode: stockCode,
			Title:     title,
			Brokerage: strings.TrimSpace(cells.Eq(4).Text()),
			Author:    strings.TrimSpace(cells.Eq(3).Text()),
			Category:  category,
			Date:      date,
			Link:      link,
			PDFLink:   pdfLink,
			Sentiment: AnalyzeSentiment(title),
		})
	})

	params := url.Values{}
	params.Set("now_page", strconv.Itoa(page))
	params.Set("pagenum", strconv.Itoa(s.pageSize))
	if startDate != "" {
		params.Set("sdate", startDate)
	}
	if endDate != "" {
		params.Set("edate", endDate)
	}

	// The scrape blocks on the portal, so it runs on the shared worker pool.
	err := s.pool.Do(ctx, func() error {
		if err := c.Visit(s.hankyungURL + "?" + params.Encode()); err != nil {
			return fmt.Errorf("hankyung: %w: %v", types.ErrSourceUnavailable, err)
		}
		c.Wait()
		return nil
	})

	return items, olderReached, err
}

func (s *Service) fetchNaver(ctx context.Context, startDate, endDate string) []types.ReportItem {
	maxPages := s.maxPages
	if startDate == "" {
		maxPages = 1
	}

	// The listing renders dates as YY.MM.DD, compared against the window
	// in YYYY.MM.DD form.
	startDot := strings.ReplaceAll(startDate, "-", ".")
	endDot := strings.ReplaceAll(endDate, "-", ".")

	all := []types.ReportItem{}
	for page := 1; page <= maxPages; page++ {
		items, olderReached, err := s.scrapeNaverPage(ctx, page, startDot, endDot)
		all = append(all, items...)
		if err != nil {
			logger.ErrorWithErr(ctx, "Naver page fetch failed", err, "page", page)
			break
		}
		if olderReached {
			logger.Info(ctx, "Reached rows older than window, stopping", "source", "naver", "page", page)
			break
		}
		if len(items) == 0 {
			break
		}
		logger.Info(ctx, "Scraped report page", "source", "naver", "page", page, "items", len(items))
	}
	return all
}

func (s *Service) scrapeNaverPage(ctx context.Context, page int, startDot, endDot string) ([]types.ReportItem, bool, error) {
	// The portal serves EUC-KR; charset detection converts before parsing.
	c := colly.NewCollector(colly.MaxDepth(1), colly.DetectCharset())
	c.SetRequestTimeout(s.timeout)
	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("User-Agent", scraperUserAgent)
	})

	items := []types.ReportItem{}
	olderReached := false

	c.OnHTML("table tr", func(e *colly.HTMLElement) {
		if olderReached {
			return
		}
		cells := e.DOM.Find("td")
		if cells.Length() < 5 {
			return
		}

		rawDate := strings.TrimSpace(cells.Eq(4).Text())
		date := rawDate
		if len(rawDate) == 8 {
			date = "20" + rawDate
		}
		if endDot != "" && date > endDot {
			return
		}
		if startDot != "" && date < startDot {
			olderReached = true
			return
		}

		titleCell := cells.Eq(1)
		titleAnchor := titleCell.Find("a").First()
		title := strings.TrimSpace(titleCell.Text())
		link := ""
		if titleAnchor.Length() > 0 {
			title = strings.TrimSpace(titleAnchor.Text())
			if href, ok := titleAnchor.Attr("href"); ok {
				link = e.Request.AbsoluteURL(href)
			}
		}

		pdfLink := ""
		if href, ok := cells.Eq(3).Find("a").First().Attr("href"); ok {
			pdfLink = href
		}

		items = append(items, types.ReportItem{
			StockName: strings.TrimSpace(cells.Eq(0).Text()),
			StockCode: "",
			Title:     title,
			Brokerage: strings.TrimSpace(cells.Eq(2).Text()),
			Author:    "",
			Category:  "기업",
			Date:      date,
			Link:      link,
			PDFLink:   pdfLink,
			Sentiment: AnalyzeSentiment(title),
		})
	})

	err := s.pool.Do(ctx, func() error {
		if err := c.Visit(fmt.Sprintf("%s?page=%d", s.naverURL, page)); err != nil {
			return fmt.Errorf("naver: %w: %v", types.ErrSourceUnavailable, err)
		}
		c.Wait()
		return nil
	})

	return items, olderReached, err
}
