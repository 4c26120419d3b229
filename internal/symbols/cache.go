package symbols

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/transform"

	"stock-dashboard/internal/api"
	"stock-dashboard/internal/logger"
	"stock-dashboard/internal/types"
	"stock-dashboard/internal/worker"
)

// Cache holds the market-code/name mapping loaded from the exchange master
// list. The load is lazy and single-flighted: concurrent first callers share
// one fetch instead of racing. On failure the cache stays unloaded and the
// next caller retries the full load; negative results are not remembered.
type Cache struct {
	client *api.Client
	url    string
	pool   *worker.Pool

	mu         sync.RWMutex
	loaded     bool
	records    []types.SymbolRecord
	nameToCode map[string]string
	codeToName map[string]string
}

func NewCache(client *api.Client, url string, pool *worker.Pool) *Cache {
	return &Cache{
		client: client,
		url:    url,
		pool:   pool,
	}
}

// Ensure loads the master list if it has not been loaded yet. Safe for
// concurrent use; only one caller performs the fetch.
func (c *Cache) Ensure(ctx context.Context) error {
	c.mu.RLock()
	loaded := c.loaded
	c.mu.RUnlock()
	if loaded {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded {
		return nil
	}
	return c.loadLocked(ctx)
}

// Reload discards the current mapping and fetches the master list again.
func (c *Cache) Reload(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loaded = false
	c.records = nil
	c.nameToCode = nil
	c.codeToName = nil
	return c.loadLocked(ctx)
}

func (c *Cache) loadLocked(ctx context.Context) error {
	timer := logger.StartOperation(ctx, "symbol-master-load", "url", c.url)
	ctx = timer.GetContext()

	logger.Info(ctx, "Loading symbol master list", "url", c.url)

	// The master-list download blocks on a slow upstream, so it runs on
	// the shared worker pool like every other source fetch.
	var resp *api.Response
	err := c.pool.Do(ctx, func() error {
		var fetchErr error
		resp, fetchErr = c.client.GET(ctx, c.url, api.BrowserHeaders())
		return fetchErr
	})
	if err != nil {
		err = fmt.Errorf("%w: %v", types.ErrSourceUnavailable, err)
		timer.EndWithError(err)
		return err
	}

	records, err := parseMasterList(resp.Body)
	if err != nil {
		timer.EndWithError(err)
		return err
	}

	nameToCode := make(map[string]string, len(records))
	codeToName := make(map[string]string, len(records))
	for _, rec := range records {
		nameToCode[rec.Name] = rec.Code
		codeToName[rec.Code] = rec.Name
	}

	c.records = records
	c.nameToCode = nameToCode
	c.codeToName = codeToName
	c.loaded = true

	timer.End("symbols", len(codeToName))
	logger.Info(ctx, "Symbol master list loaded", "symbols", len(codeToName))
	return nil
}

// parseMasterList decodes the EUC-KR listing download and extracts the
// (company name, code) columns of its table, in listing order.
func parseMasterList(body []byte) ([]types.SymbolRecord, error) {
	decoded := transform.NewReader(bytes.NewReader(body), korean.EUCKR.NewDecoder())

	doc, err := goquery.NewDocumentFromReader(decoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrMalformedResponse, err)
	}

	var records []types.SymbolRecord
	seen := make(map[string]bool)

	doc.Find("table tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 2 {
			return
		}

		name := strings.TrimSpace(cells.Eq(0).Text())
		code := padCode(strings.TrimSpace(cells.Eq(1).Text()))
		if name == "" || code == "" || seen[code] {
			return
		}

		seen[code] = true
		records = append(records, types.SymbolRecord{Code: code, Name: name})
	})

	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no rows in master list", types.ErrMalformedResponse)
	}

	return records, nil
}

// padCode left-pads a numeric listing code to six digits. Non-numeric input
// is rejected.
func padCode(raw string) string {
	if raw == "" || len(raw) > 6 {
		return ""
	}
	for _, r := range raw {
		if r < '0' || r > '9' {
			return ""
		}
	}
	return strings.Repeat("0", 6-len(raw)) + raw
}

// Loaded reports whether the master list has been loaded.
func (c *Cache) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

// NameByCode returns the display name for a market code.
func (c *Cache) NameByCode(code string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	name, ok := c.codeToName[code]
	return name, ok
}

// SearchByName returns every record whose name contains the query,
// case-insensitively, in master-list order.
func (c *Cache) SearchByName(query string) []types.SymbolRecord {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	var matches []types.SymbolRecord
	for _, rec := range c.records {
		if strings.Contains(strings.ToLower(rec.Name), q) {
			matches = append(matches, rec)
		}
	}
	return matches
}

// Size returns the number of cached symbols.
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.codeToName)
}
