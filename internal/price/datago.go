package price

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	"stock-dashboard/internal/api"
	"stock-dashboard/internal/types"
)

// serviceKeyEnv is the environment variable holding the public data
// portal credential. Keys issued by the portal are sometimes already
// percent-encoded, so the client decodes before re-encoding.
const serviceKeyEnv = "DATA_GO_KR_API_KEY"

// DataPortalClient fetches daily closes from the government public data
// portal's stock price endpoint. It is the tier-1 source for domestic codes.
// The portal drops requests under load, so fetches retry with backoff.
type DataPortalClient struct {
	client  *api.Client
	baseURL string
	retry   *api.RetryConfig
}

func NewDataPortalClient(client *api.Client, baseURL string) *DataPortalClient {
	return &DataPortalClient{
		client:  client,
		baseURL: baseURL,
		retry:   api.DefaultRetryConfig(),
	}
}

type dataPortalEnvelope struct {
	Response struct {
		Body struct {
			Items json.RawMessage `json:"items"`
		} `json:"body"`
	} `json:"response"`
}

type dataPortalItems struct {
	Item []struct {
		BaseDate string `json:"basDt"`
		Close    string `json:"clpr"`
	} `json:"item"`
}

// Daily returns close prices for the given ISO date window, oldest first
// ordering left to the caller.
func (c *DataPortalClient) Daily(ctx context.Context, code, startDate, endDate string) ([]types.PricePoint, error) {
	key := os.Getenv(serviceKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("data portal: %w", types.ErrCredentialsMissing)
	}
	if decoded, err := url.QueryUnescape(key); err == nil {
		key = decoded
	}

	params := url.Values{}
	params.Set("serviceKey", key)
	params.Set("numOfRows", "1000")
	params.Set("pageNo", "1")
	params.Set("resultType", "json")
	params.Set("likeSrtnCd", code)
	params.Set("beginBasDt", compactDate(startDate))
	params.Set("endBasDt", compactDate(endDate))

	req := api.NewRequest(http.MethodGet, c.baseURL+"?"+params.Encode()).WithContext(ctx)
	resp, err := c.client.DoWithRetry(req, c.retry)
	if err != nil {
		return nil, fmt.Errorf("data portal: %w: %v", types.ErrSourceUnavailable, err)
	}
	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("data portal: %w: status %d", types.ErrSourceUnavailable, resp.StatusCode)
	}

	var envelope dataPortalEnvelope
	if err := resp.ParseJSON(&envelope); err != nil {
		return nil, fmt.Errorf("data portal: %w: %v", types.ErrMalformedResponse, err)
	}

	// The portal serializes an empty result set as "" instead of an
	// object, so the items payload is decoded separately.
	var items dataPortalItems
	if len(envelope.Response.Body.Items) == 0 || json.Unmarshal(envelope.Response.Body.Items, &items) != nil {
		return nil, nil
	}

	points := make([]types.PricePoint, 0, len(items.Item))
	for _, item := range items.Item {
		close, err := strconv.ParseFloat(strings.ReplaceAll(item.Close, ",", ""), 64)
		if err != nil {
			continue
		}
		points = append(points, types.PricePoint{
			Date:  isoDate(item.BaseDate),
			Close: close,
		})
	}
	return points, nil
}

// compactDate turns an ISO date into the portal's YYYYMMDD form.
func compactDate(iso string) string {
	return strings.ReplaceAll(iso, "-", "")
}

// isoDate turns a YYYYMMDD date into ISO form; anything else passes through.
func isoDate(compact string) string {
	if len(compact) != 8 {
		return compact
	}
	return compact[:4] + "-" + compact[4:6] + "-" + compact[6:]
}
