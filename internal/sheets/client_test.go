package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"

	"github.com/maruel/imladris/internal/sheetdb"
)

func TestColumnLetter(t *testing.T) {
	cases := map[int]string{0: "", -3: "", 1: "A", 6: "F", 26: "Z", 27: "AA", 52: "AZ", 53: "BA", 702: "ZZ", 703: "AAA"}
	for n, want := range cases {
		if got := ColumnLetter(n); got != want {
			t.Errorf("ColumnLetter(%d) = %q, want %q", n, got, want)
		}
	}
}

// fakeSheets records the requests it receives.
type fakeSheets struct {
	t        *testing.T
	values   [][]any
	appended [][]any
	updated  []string
	deleted  []int
	status   int
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if f.status != 0 {
		w.WriteHeader(f.status)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"The caller does not have permission","status":"PERMISSION_DENIED"}}`))
		return
	}
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/spreadsheets/sid/values/A2:F":
		_ = json.NewEncoder(w).Encode(map[string]any{"range": "Sheet1!A2:F", "majorDimension": "ROWS", "values": f.values})
	case r.Method == http.MethodPost && r.URL.Path == "/spreadsheets/sid/values/A2:F:append":
		if got := r.URL.Query().Get("valueInputOption"); got != "RAW" {
			f.t.Errorf("valueInputOption = %q", got)
		}
		var body valueRange
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			f.t.Error(err)
		}
		f.appended = append(f.appended, body.Values...)
		_, _ = w.Write([]byte(`{"updates":{"updatedRange":"Sheet1!A9:F9","updatedCells":6}}`))
	case r.Method == http.MethodPost && r.URL.Path == "/spreadsheets/sid/values:batchUpdate":
		var body struct {
			ValueInputOption string       `json:"valueInputOption"`
			Data             []valueRange `json:"data"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			f.t.Error(err)
		}
		for _, d := range body.Data {
			f.updated = append(f.updated, d.Range)
		}
		_, _ = w.Write([]byte(`{"totalUpdatedRows":1,"totalUpdatedCells":6}`))
	case r.Method == http.MethodPost && r.URL.Path == "/spreadsheets/sid:batchUpdate":
		var body struct {
			Requests []request `json:"requests"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			f.t.Error(err)
		}
		for _, req := range body.Requests {
			rg := req.DeleteDimension.Range
			if rg.Dimension != "ROWS" || rg.EndIndex != rg.StartIndex+1 || rg.SheetID != 7 {
				f.t.Errorf("unexpected range %+v", rg)
			}
			f.deleted = append(f.deleted, rg.EndIndex)
		}
		_, _ = w.Write([]byte(`{"replies":[]}`))
	default:
		f.t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestClient(t *testing.T, f *fakeSheets) *Client {
	f.t = t
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return NewClient(srv.Client(), Config{SpreadsheetID: "sid", SheetID: 7, RatePerMin: 6000}).WithBaseURL(srv.URL)
}

func TestClient(t *testing.T) {
	ctx := context.Background()

	t.Run("FetchAll", func(t *testing.T) {
		f := &fakeSheets{values: [][]any{
			{"1", "google.com", "link", "Google", "search", "desc"},
			{"2", "x.com", "image"},
			{},
			{"3", "y.com", "link", "", 42.0, true},
		}}
		c := newTestClient(t, f)
		sheet, err := c.FetchAll(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if sheet.FirstRow != 2 || len(sheet.Rows) != 4 {
			t.Fatalf("FetchAll() = %d rows from %d", len(sheet.Rows), sheet.FirstRow)
		}
		for i, r := range sheet.Rows {
			if len(r) != sheetdb.Width {
				t.Errorf("row %d has %d cells, want padded to %d", i, len(r), sheetdb.Width)
			}
		}
		if got := sheet.Rows[3]; got[4] != "42" || got[5] != "true" {
			t.Errorf("row 3 = %q", got)
		}
		if _, err := sheetdb.Decode(sheet.Rows[1]); err != nil {
			t.Errorf("Decode(padded row) error = %v", err)
		}
	})

	t.Run("Append", func(t *testing.T) {
		f := &fakeSheets{}
		c := newTestClient(t, f)
		if err := c.Append(ctx, sheetdb.Row{"1", "a", "link", "a", "", "", "extra"}); !errors.Is(err, sheetdb.ErrRowWidth) {
			t.Errorf("Append(wide) error = %v, want ErrRowWidth", err)
		}
		if err := c.Append(ctx, sheetdb.Row{"1", "a", "link", "a", "", ""}); err != nil {
			t.Fatal(err)
		}
		if len(f.appended) != 1 || f.appended[0][0] != "1" {
			t.Errorf("appended = %v", f.appended)
		}
	})

	t.Run("BatchUpdate", func(t *testing.T) {
		f := &fakeSheets{}
		c := newTestClient(t, f)
		if err := c.BatchUpdate(ctx, []int{1}, nil); !errors.Is(err, sheetdb.ErrLengthMismatch) {
			t.Errorf("error = %v, want ErrLengthMismatch", err)
		}
		rows := []sheetdb.Row{
			{"1", "a", "link", "Boomer", "", ""},
			{"2", "b", "link", "Boomer"},
			{"3", "c", "link", "Boomer", "", ""},
		}
		if err := c.BatchUpdate(ctx, []int{2, 5, 9}, rows); err != nil {
			t.Fatal(err)
		}
		if want := []string{"A2:F2", "A9:F9"}; !slices.Equal(f.updated, want) {
			t.Errorf("updated = %v, want %v", f.updated, want)
		}
	})

	t.Run("DeleteRows", func(t *testing.T) {
		f := &fakeSheets{}
		c := newTestClient(t, f)
		if err := c.DeleteRows(ctx, nil); err != nil {
			t.Fatal(err)
		}
		if err := c.DeleteRows(ctx, []int{3, 7, 9}); err != nil {
			t.Fatal(err)
		}
		if want := []int{9, 7, 3}; !slices.Equal(f.deleted, want) {
			t.Errorf("deleted = %v, want %v", f.deleted, want)
		}
	})

	t.Run("APIError", func(t *testing.T) {
		f := &fakeSheets{status: http.StatusForbidden}
		c := newTestClient(t, f)
		_, err := c.FetchAll(ctx)
		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("error = %v, want *APIError", err)
		}
		if apiErr.Code != 403 || apiErr.Status != "PERMISSION_DENIED" {
			t.Errorf("error = %+v", apiErr)
		}
	})
}

func TestDataRange(t *testing.T) {
	c := NewClient(http.DefaultClient, Config{SpreadsheetID: "sid", SheetName: "Bob's items", FirstRow: 3})
	if got, want := c.DataRange(), "'Bob''s items'!A3:F"; got != want {
		t.Errorf("DataRange() = %q, want %q", got, want)
	}
}
