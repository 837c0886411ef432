package sheetdb

import (
	"context"
	"fmt"
	"slices"
	"testing"
	"time"
)

func row(id string, tags string) Row {
	return Row{id, "https://" + id + ".example", "link", id, tags, ""}
}

func TestBuild(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1700000000, 0)

	t.Run("UniqueIDs", func(t *testing.T) {
		sheet := &Sheet{FirstRow: DefaultFirstRow}
		for i := range 20 {
			sheet.Rows = append(sheet.Rows, row(fmt.Sprintf("id%d", i), fmt.Sprintf("t%d,all", i%3)))
		}
		s := Build(ctx, sheet, now)
		if s.Len() != 20 {
			t.Fatalf("Len() = %d, want 20", s.Len())
		}
		if !s.BuiltAt().Equal(now) {
			t.Errorf("BuiltAt() = %v, want %v", s.BuiltAt(), now)
		}
		for pos, it := range s.Items() {
			got, ok := s.Position(it.ID)
			if !ok || got != pos {
				t.Errorf("Position(%q) = %d, %v, want %d", it.ID, got, ok, pos)
			}
			if s.Get(it.ID) != it {
				t.Errorf("Get(%q) does not round-trip", it.ID)
			}
		}
		for _, tag := range s.Tags() {
			positions := s.TagPositions(tag)
			if !slices.IsSorted(positions) {
				t.Errorf("TagPositions(%q) = %v, not sorted", tag, positions)
			}
			for _, pos := range positions {
				if !s.At(pos).HasTag(tag) {
					t.Errorf("item %d indexed under %q but not tagged", pos, tag)
				}
			}
		}
		if got := len(s.Tagged("all")); got != 20 {
			t.Errorf("Tagged(all) = %d items, want 20", got)
		}
	})

	t.Run("SkipsRowsWithoutID", func(t *testing.T) {
		sheet := &Sheet{FirstRow: DefaultFirstRow, Rows: []Row{
			row("a", ""),
			{"", "link.com", "link", "", "", ""},
			row("b", "x"),
			{"c", "short"},
		}}
		s := Build(ctx, sheet, now)
		if s.Len() != 2 {
			t.Fatalf("Len() = %d, want 2", s.Len())
		}
		if pos, _ := s.Position("b"); pos != 1 {
			t.Errorf("Position(b) = %d, want 1", pos)
		}
		if s.Get("c") != nil {
			t.Error("short row was indexed")
		}
		if got := s.TagPositions("x"); !slices.Equal(got, []int{1}) {
			t.Errorf("TagPositions(x) = %v, want [1]", got)
		}
	})

	t.Run("DuplicateID", func(t *testing.T) {
		sheet := &Sheet{FirstRow: DefaultFirstRow, Rows: []Row{
			row("a", ""), row("b", ""), row("X", "first"), row("c", ""), row("d", ""), row("X", "second"),
		}}
		s := Build(ctx, sheet, now)
		if s.Len() != 6 {
			t.Fatalf("Len() = %d, want 6", s.Len())
		}
		if pos, _ := s.Position("X"); pos != 5 {
			t.Errorf("Position(X) = %d, want 5", pos)
		}
		if s.At(2).ID != "X" || s.At(5).ID != "X" {
			t.Error("both duplicates must be kept")
		}
		if got := s.Get("X"); got == nil || got.Tags[0] != "second" {
			t.Errorf("Get(X) = %+v, want last occurrence", got)
		}
	})

	t.Run("Empty", func(t *testing.T) {
		s := Build(ctx, nil, now)
		if s.Len() != 0 || s.Get("a") != nil || len(s.Tags()) != 0 {
			t.Errorf("empty snapshot = %+v", s)
		}
		if s.At(-1) != nil || s.At(0) != nil {
			t.Error("At out of range must return nil")
		}
	})
}
