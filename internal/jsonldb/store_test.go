package jsonldb

import (
	"path/filepath"
	"slices"
	"testing"

	"github.com/maruel/imladris/internal/sheetdb"
)

func TestStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db", "items.jsonl")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	ctx := t.Context()
	for _, id := range []string{"a", "b", "c", "d"} {
		if err := s.Append(ctx, sheetdb.Row{id, "https://" + id, "link", id, "", ""}); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}
	if err := s.Append(ctx, make(sheetdb.Row, sheetdb.Width+1)); err == nil {
		t.Error("Append accepted a row wider than the schema")
	}

	// Position 3 is "b".
	if err := s.BatchUpdate(ctx, []int{3, 4}, []sheetdb.Row{
		{"b", "https://b", "image", "B", "x", ""},
		{"c", "short"},
	}); err != nil {
		t.Fatalf("BatchUpdate failed: %v", err)
	}
	if err := s.DeleteRows(ctx, []int{2, 5}); err != nil {
		t.Fatalf("DeleteRows failed: %v", err)
	}

	// Test persistence (re-load)
	s2, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed on reload: %v", err)
	}
	sheet, err := s2.FetchAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if sheet.FirstRow != sheetdb.DefaultFirstRow {
		t.Errorf("FirstRow = %d, want %d", sheet.FirstRow, sheetdb.DefaultFirstRow)
	}
	var ids []string
	for _, r := range sheet.Rows {
		ids = append(ids, r[0])
	}
	if want := []string{"b", "c"}; !slices.Equal(ids, want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}
	if got := sheet.Rows[0][2]; got != "image" {
		t.Errorf("updated Type = %q, want %q", got, "image")
	}
	if got := sheet.Rows[1][1]; got != "https://c" {
		t.Errorf("malformed update was written: Link = %q", got)
	}
}

func TestStore_WideRowSkipped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "items.jsonl")
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	ctx := t.Context()
	orig := sheetdb.Row{"a", "https://a", "link", "a", "", ""}
	if err := s.Append(ctx, orig); err != nil {
		t.Fatal(err)
	}
	if err := s.BatchUpdate(ctx, []int{2}, []sheetdb.Row{append(orig.Clone(), "extra")}); err != nil {
		t.Fatalf("BatchUpdate failed: %v", err)
	}
	s2, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	sheet, err := s2.FetchAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got := sheet.Rows[0]; !slices.Equal(got, orig) {
		t.Errorf("stored = %q, want %q", got, orig)
	}
}

func TestStore_LengthMismatch(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "items.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.BatchUpdate(t.Context(), []int{2}, nil); err != sheetdb.ErrLengthMismatch {
		t.Errorf("err = %v, want %v", err, sheetdb.ErrLengthMismatch)
	}
}
