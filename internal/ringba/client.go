package ringba

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ignite/payout-sync/internal/pkg/httpretry"
)

// Client is the Ringba insights API client
type Client struct {
	baseURL    string
	apiToken   string
	accountID  string
	reportTZ   string
	reportLoc  *time.Location
	httpClient httpretry.HTTPDoer
}

// NewClient creates a new Ringba API client
func NewClient(config Config) *Client {
	loc, err := time.LoadLocation(config.ReportTimezone)
	if err != nil {
		loc = time.UTC
	}
	return &Client{
		baseURL:   config.BaseURL,
		apiToken:  config.APIToken,
		accountID: config.AccountID,
		reportTZ:  config.ReportTimezone,
		reportLoc: loc,
		httpClient: httpretry.NewRetryClient(&http.Client{
			Timeout: 30 * time.Second,
		}, 3),
	}
}

// SetHTTPClient sets a custom HTTP client (useful for testing)
func (c *Client) SetHTTPClient(client httpretry.HTTPDoer) {
	c.httpClient = client
}

// doRequest performs an authenticated request to the Ringba API
func (c *Client) doRequest(ctx context.Context, method, endpoint string, body interface{}) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	reqURL := fmt.Sprintf("%s%s", c.baseURL, endpoint)

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Token "+c.apiToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}

// FetchPayouts retrieves aggregated payout rows for the [startUTC, endUTC)
// range, grouped by the given dimensions. It issues a single aggregation
// request; the API pre-aggregates, capped at 1000 results per group.
// Every returned record carries the bucket's reporting date, derived from
// startUTC's calendar date in the report time zone. Duplicate grouping keys
// within one response are summed.
func (c *Client) FetchPayouts(ctx context.Context, startUTC, endUTC time.Time, groupBy []Dimension) ([]PayoutRecord, error) {
	groupCols := make([]groupByColumn, len(groupBy))
	for i, dim := range groupBy {
		groupCols[i] = groupByColumn{Column: string(dim), DisplayName: dim.DisplayName()}
	}

	request := insightsRequest{
		ReportStart:    startUTC.UTC().Format("2006-01-02T15:04:05Z"),
		ReportEnd:      endUTC.UTC().Format("2006-01-02T15:04:05Z"),
		GroupByColumns: groupCols,
		ValueColumns: []valueColumn{
			{Column: "payoutAmount"},
			{Column: "completedCalls"},
			{Column: "payoutCount"},
		},
		OrderByColumns: []orderByColumn{
			{Column: "payoutAmount", Direction: "desc"},
		},
		FormatTimespans:    true,
		FormatPercentages:  true,
		GenerateRollups:    true,
		MaxResultsPerGroup: 1000,
		Filters:            []interface{}{},
		FormatTimeZone:     c.reportTZ,
	}

	endpoint := fmt.Sprintf("/v2/%s/insights", c.accountID)
	respBody, err := c.doRequest(ctx, http.MethodPost, endpoint, request)
	if err != nil {
		return nil, err
	}

	bucketDate := startUTC.In(c.reportLoc).Format("2006-01-02")
	records, err := parseInsightsResponse(respBody, bucketDate)
	if err != nil {
		return nil, err
	}

	return MergeByKey(records), nil
}

// HealthCheck performs a small query against the API to verify credentials
func (c *Client) HealthCheck(ctx context.Context) error {
	now := time.Now().UTC()
	_, err := c.FetchPayouts(ctx, now.Add(-time.Hour), now, []Dimension{DimensionPublisher})
	return err
}
