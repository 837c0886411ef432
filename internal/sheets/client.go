// Implements sheetdb.Store on top of the Google Sheets v4 REST API.

// Package sheets stores item rows in a Google Sheets spreadsheet.
package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/oauth2/google"
	"golang.org/x/time/rate"

	"github.com/maruel/imladris/internal/sheetdb"
)

const (
	// BaseURL is the Sheets API base URL.
	BaseURL = "https://sheets.googleapis.com/v4"
	// Scope grants read and write access to spreadsheets.
	Scope = "https://www.googleapis.com/auth/spreadsheets"
	// DefaultRatePerMin is the default per-user Sheets API quota.
	DefaultRatePerMin = 60
)

// Config locates the data range inside a spreadsheet.
type Config struct {
	// SpreadsheetID is the ID found in the spreadsheet URL.
	SpreadsheetID string
	// SheetID is the numeric ID of the sheet holding the rows. Row deletion
	// addresses sheets by ID; 0 is the first sheet.
	SheetID int64
	// SheetName is the title of the sheet. Empty means the first sheet.
	SheetName string
	// FirstRow is the 1-based row number of the first data row.
	FirstRow int
	// RatePerMin limits API requests per minute. 0 means DefaultRatePerMin.
	RatePerMin int
}

// APIError is an error returned by the Sheets API.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("sheets: %s: %s (%d)", e.Status, e.Message, e.Code)
}

// Client is a rate-limited Sheets API client implementing sheetdb.Store.
type Client struct {
	cfg        Config
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	prefix     string
	lastColumn string
	dataRange  string
}

var _ sheetdb.Store = (*Client)(nil)

// NewServiceAccountClient creates a client authenticated with a Google
// service account JSON key.
func NewServiceAccountClient(ctx context.Context, key []byte, cfg Config) (*Client, error) {
	jwtCfg, err := google.JWTConfigFromJSON(key, Scope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse service account key: %w", err)
	}
	hc := jwtCfg.Client(ctx)
	hc.Timeout = 30 * time.Second
	return NewClient(hc, cfg), nil
}

// NewClient creates a client sending requests with hc, which must add the
// authorization.
func NewClient(hc *http.Client, cfg Config) *Client {
	if cfg.FirstRow <= 0 {
		cfg.FirstRow = sheetdb.DefaultFirstRow
	}
	if cfg.RatePerMin <= 0 {
		cfg.RatePerMin = DefaultRatePerMin
	}
	c := &Client{
		cfg:        cfg,
		baseURL:    BaseURL,
		httpClient: hc,
		limiter:    rate.NewLimiter(rate.Limit(float64(cfg.RatePerMin)/60), max(1, cfg.RatePerMin/10)),
		prefix:     sheetPrefix(cfg.SheetName),
		lastColumn: ColumnLetter(sheetdb.Width),
	}
	c.dataRange = c.prefix + "A" + strconv.Itoa(cfg.FirstRow) + ":" + c.lastColumn
	return c
}

// WithBaseURL returns a copy of c sending requests to baseURL.
func (c *Client) WithBaseURL(baseURL string) *Client {
	c2 := *c
	c2.baseURL = baseURL
	return &c2
}

// DataRange returns the A1 notation of the managed range.
func (c *Client) DataRange() string {
	return c.dataRange
}

// do performs a rate-limited request against the spreadsheet and decodes the
// JSON response into out when not nil.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	u := c.baseURL + "/spreadsheets/" + url.PathEscape(c.cfg.SpreadsheetID) + path
	req, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error APIError `json:"error"`
		}
		if err := json.Unmarshal(respBody, &apiErr); err != nil || apiErr.Error.Message == "" {
			return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
		}
		return &apiErr.Error
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

type valueRange struct {
	Range          string  `json:"range,omitempty"`
	MajorDimension string  `json:"majorDimension,omitempty"`
	Values         [][]any `json:"values"`
}

// FetchAll implements sheetdb.Store.
//
// The API omits trailing empty cells, so rows are padded back to the
// schema width.
func (c *Client) FetchAll(ctx context.Context) (*sheetdb.Sheet, error) {
	var vr valueRange
	if err := c.do(ctx, http.MethodGet, "/values/"+url.PathEscape(c.dataRange)+"?majorDimension=ROWS", nil, &vr); err != nil {
		return nil, err
	}
	sheet := &sheetdb.Sheet{FirstRow: c.cfg.FirstRow, Rows: make([]sheetdb.Row, 0, len(vr.Values))}
	for _, values := range vr.Values {
		row := make(sheetdb.Row, len(values))
		for i, v := range values {
			row[i] = cellString(v)
		}
		sheet.Rows = append(sheet.Rows, row.Pad())
	}
	return sheet, nil
}

// Append implements sheetdb.Store.
func (c *Client) Append(ctx context.Context, row sheetdb.Row) error {
	if len(row) > sheetdb.Width {
		return fmt.Errorf("%w: only %d columns are supported, got %d", sheetdb.ErrRowWidth, sheetdb.Width, len(row))
	}
	var resp struct {
		Updates struct {
			UpdatedRange string `json:"updatedRange"`
			UpdatedCells int    `json:"updatedCells"`
		} `json:"updates"`
	}
	path := "/values/" + url.PathEscape(c.dataRange) + ":append?valueInputOption=RAW"
	if err := c.do(ctx, http.MethodPost, path, &valueRange{Values: [][]any{cells(row)}}, &resp); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Appended row", "range", resp.Updates.UpdatedRange, "cells", resp.Updates.UpdatedCells)
	return nil
}

// BatchUpdate implements sheetdb.Store.
func (c *Client) BatchUpdate(ctx context.Context, positions []int, rows []sheetdb.Row) error {
	if len(positions) != len(rows) {
		return sheetdb.ErrLengthMismatch
	}
	data := make([]valueRange, 0, len(rows))
	for i, pos := range positions {
		if !rows[i].FullWidth() {
			slog.WarnContext(ctx, "Skipping row with wrong number of columns", "row", pos, "cells", len(rows[i]))
			continue
		}
		data = append(data, valueRange{
			Range:  rowRange(c.prefix, pos, c.lastColumn),
			Values: [][]any{cells(rows[i])},
		})
	}
	if len(data) == 0 {
		return nil
	}
	req := struct {
		ValueInputOption string       `json:"valueInputOption"`
		Data             []valueRange `json:"data"`
	}{"RAW", data}
	var resp struct {
		TotalUpdatedRows  int `json:"totalUpdatedRows"`
		TotalUpdatedCells int `json:"totalUpdatedCells"`
	}
	if err := c.do(ctx, http.MethodPost, "/values:batchUpdate", &req, &resp); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Updated rows", "rows", resp.TotalUpdatedRows, "cells", resp.TotalUpdatedCells)
	return nil
}

type dimensionRange struct {
	SheetID    int64  `json:"sheetId"`
	Dimension  string `json:"dimension"`
	StartIndex int    `json:"startIndex"`
	EndIndex   int    `json:"endIndex"`
}

type deleteDimension struct {
	Range dimensionRange `json:"range"`
}

type request struct {
	DeleteDimension *deleteDimension `json:"deleteDimension,omitempty"`
}

// DeleteRows implements sheetdb.Store.
func (c *Client) DeleteRows(ctx context.Context, positions []int) error {
	if len(positions) == 0 {
		slog.WarnContext(ctx, "No rows to delete")
		return nil
	}
	order := sheetdb.DeletionOrder(positions)
	reqs := make([]request, 0, len(order))
	for _, pos := range order {
		reqs = append(reqs, request{DeleteDimension: &deleteDimension{Range: dimensionRange{
			SheetID:    c.cfg.SheetID,
			Dimension:  "ROWS",
			StartIndex: pos - 1,
			EndIndex:   pos,
		}}})
	}
	body := struct {
		Requests []request `json:"requests"`
	}{reqs}
	if err := c.do(ctx, http.MethodPost, ":batchUpdate", &body, nil); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Deleted rows", "rows", order)
	return nil
}

// cells converts a row to JSON values.
func cells(row sheetdb.Row) []any {
	out := make([]any, len(row))
	for i, v := range row {
		out[i] = v
	}
	return out
}

// cellString converts a JSON cell value to its string form.
func cellString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}
