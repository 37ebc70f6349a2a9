// Package sheets implements the tabular store adapter over the Google
// Sheets v4 values API. Rows are addressed by 1-based position only; row 1
// is the header. The API offers no transactions, so callers must tolerate
// partial state between calls.
package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/oauth2/google"

	"github.com/ignite/payout-sync/internal/pkg/httpretry"
)

const spreadsheetsScope = "https://www.googleapis.com/auth/spreadsheets"

// Config holds Google Sheets client configuration
type Config struct {
	SpreadsheetID      string
	Worksheet          string
	ServiceAccountJSON string
	Timeout            time.Duration
}

// Client talks to one worksheet of one spreadsheet.
type Client struct {
	baseURL       string
	spreadsheetID string
	worksheet     string
	httpClient    httpretry.HTTPDoer

	// numeric sheet ID (gid), resolved lazily for deleteDimension calls
	mu       sync.Mutex
	sheetID  int64
	resolved bool
}

// NewClient creates a client authorized by a service-account JWT built
// from the service account JSON credential.
func NewClient(cfg Config) (*Client, error) {
	jwtCfg, err := google.JWTConfigFromJSON([]byte(cfg.ServiceAccountJSON), spreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse service account JSON: %w", err)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	ctx := context.Background()
	base := jwtCfg.Client(ctx)
	base.Timeout = timeout

	return &Client{
		baseURL:       "https://sheets.googleapis.com",
		spreadsheetID: cfg.SpreadsheetID,
		worksheet:     cfg.Worksheet,
		httpClient:    httpretry.NewRetryClient(base, 3),
	}, nil
}

// NewClientWithHTTP creates an unauthenticated client against a custom
// base URL. Used by tests.
func NewClientWithHTTP(baseURL, spreadsheetID, worksheet string, httpClient httpretry.HTTPDoer) *Client {
	return &Client{
		baseURL:       baseURL,
		spreadsheetID: spreadsheetID,
		worksheet:     worksheet,
		httpClient:    httpClient,
	}
}

func (c *Client) doRequest(ctx context.Context, method, endpoint string, body interface{}) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

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
		return nil, fmt.Errorf("sheets API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}

// rangeEndpoint builds a /values/{range} endpoint for this worksheet.
// The worksheet title is single-quoted so names with spaces work.
func (c *Client) rangeEndpoint(a1 string, suffix string) string {
	rng := url.PathEscape(fmt.Sprintf("'%s'!%s", c.worksheet, a1))
	return fmt.Sprintf("/v4/spreadsheets/%s/values/%s%s", c.spreadsheetID, rng, suffix)
}

// ReadAll returns every row of the worksheet in order. Row 1 is the
// header and may be absent on a fresh sheet.
func (c *Client) ReadAll(ctx context.Context) ([][]string, error) {
	endpoint := c.rangeEndpoint("A1:ZZ", "?majorDimension=ROWS")
	respBody, err := c.doRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var response struct {
		Values [][]interface{} `json:"values"`
	}
	if err := json.Unmarshal(respBody, &response); err != nil {
		return nil, fmt.Errorf("failed to parse values response: %w", err)
	}

	rows := make([][]string, len(response.Values))
	for i, raw := range response.Values {
		row := make([]string, len(raw))
		for j, cell := range raw {
			if cell == nil {
				continue
			}
			row[j] = fmt.Sprint(cell)
		}
		rows[i] = row
	}
	return rows, nil
}

// WriteHeader overwrites row 1 with the given column names.
func (c *Client) WriteHeader(ctx context.Context, names []string) error {
	return c.updateRange(ctx, "1:1", [][]string{names})
}

// OverwriteRange overwrites len(rows) rows starting at startRow (1-indexed).
func (c *Client) OverwriteRange(ctx context.Context, startRow int, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}
	a1 := fmt.Sprintf("%d:%d", startRow, startRow+len(rows)-1)
	return c.updateRange(ctx, a1, rows)
}

// AppendAfterLast appends rows after the last populated row.
func (c *Client) AppendAfterLast(ctx context.Context, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}
	endpoint := c.rangeEndpoint("A1", ":append?valueInputOption=RAW&insertDataOption=INSERT_ROWS")
	body := map[string]interface{}{"values": rows}
	_, err := c.doRequest(ctx, http.MethodPost, endpoint, body)
	return err
}

// DeleteRow removes the row at the given 1-indexed position. Positions of
// later rows shift up by one, so batch deletions must run in descending
// position order.
func (c *Client) DeleteRow(ctx context.Context, position int) error {
	if position < 1 {
		return fmt.Errorf("invalid row position %d", position)
	}
	sheetID, err := c.resolveSheetID(ctx)
	if err != nil {
		return err
	}

	body := map[string]interface{}{
		"requests": []map[string]interface{}{
			{
				"deleteDimension": map[string]interface{}{
					"range": map[string]interface{}{
						"sheetId":    sheetID,
						"dimension":  "ROWS",
						"startIndex": position - 1,
						"endIndex":   position,
					},
				},
			},
		},
	}
	endpoint := fmt.Sprintf("/v4/spreadsheets/%s:batchUpdate", c.spreadsheetID)
	_, err = c.doRequest(ctx, http.MethodPost, endpoint, body)
	return err
}

// PatchCell writes a single cell at (row, col), both 1-indexed.
func (c *Client) PatchCell(ctx context.Context, row, col int, value string) error {
	a1 := fmt.Sprintf("%s%d", columnLetter(col), row)
	return c.updateRange(ctx, a1, [][]string{{value}})
}

func (c *Client) updateRange(ctx context.Context, a1 string, rows [][]string) error {
	endpoint := c.rangeEndpoint(a1, "?valueInputOption=RAW")
	body := map[string]interface{}{"values": rows}
	_, err := c.doRequest(ctx, http.MethodPut, endpoint, body)
	return err
}

// EnsureWorksheet resolves the worksheet, creating it when missing.
// Called once at startup so later operations hit an existing sheet.
func (c *Client) EnsureWorksheet(ctx context.Context) error {
	_, err := c.resolveSheetID(ctx)
	return err
}

// resolveSheetID looks up the worksheet's numeric gid by title, creating
// the worksheet if it does not exist. The result is cached.
func (c *Client) resolveSheetID(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.resolved {
		return c.sheetID, nil
	}

	endpoint := fmt.Sprintf("/v4/spreadsheets/%s?fields=sheets.properties", c.spreadsheetID)
	respBody, err := c.doRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, err
	}

	var meta struct {
		Sheets []struct {
			Properties struct {
				SheetID int64  `json:"sheetId"`
				Title   string `json:"title"`
			} `json:"properties"`
		} `json:"sheets"`
	}
	if err := json.Unmarshal(respBody, &meta); err != nil {
		return 0, fmt.Errorf("failed to parse spreadsheet metadata: %w", err)
	}

	for _, sheet := range meta.Sheets {
		if sheet.Properties.Title == c.worksheet {
			c.sheetID = sheet.Properties.SheetID
			c.resolved = true
			return c.sheetID, nil
		}
	}

	// Worksheet missing — create it
	body := map[string]interface{}{
		"requests": []map[string]interface{}{
			{
				"addSheet": map[string]interface{}{
					"properties": map[string]interface{}{
						"title": c.worksheet,
						"gridProperties": map[string]interface{}{
							"rowCount":    1000,
							"columnCount": 26,
						},
					},
				},
			},
		},
	}
	endpoint = fmt.Sprintf("/v4/spreadsheets/%s:batchUpdate", c.spreadsheetID)
	respBody, err = c.doRequest(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return 0, fmt.Errorf("failed to create worksheet %q: %w", c.worksheet, err)
	}

	var created struct {
		Replies []struct {
			AddSheet struct {
				Properties struct {
					SheetID int64 `json:"sheetId"`
				} `json:"properties"`
			} `json:"addSheet"`
		} `json:"replies"`
	}
	if err := json.Unmarshal(respBody, &created); err != nil || len(created.Replies) == 0 {
		return 0, fmt.Errorf("unexpected addSheet reply for worksheet %q", c.worksheet)
	}

	c.sheetID = created.Replies[0].AddSheet.Properties.SheetID
	c.resolved = true
	return c.sheetID, nil
}

// columnLetter converts a 1-indexed column number to its A1 letter form
// (1 → A, 27 → AA).
func columnLetter(col int) string {
	var letters []byte
	for col > 0 {
		col--
		letters = append([]byte{byte('A' + col%26)}, letters...)
		col /= 26
	}
	return string(letters)
}
