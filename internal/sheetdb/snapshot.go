// Builds the immutable in-memory index over the fetched rows.

package sheetdb

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"slices"
	"time"
)

// Snapshot is an immutable view of all decoded items with an id index and a
// tag index.
//
// Positions are 0-based indexes into the item list and are unrelated to
// remote row numbers.
type Snapshot struct {
	items   []*Item
	ids     map[string]int
	tags    map[string][]int
	builtAt time.Time
}

// Build decodes every row of sheet and indexes the resulting items.
//
// Rows that fail to decode are skipped with a warning and do not consume a
// position. When an id appears more than once, the id index points at the
// last occurrence while both items stay in the list.
func Build(ctx context.Context, sheet *Sheet, builtAt time.Time) *Snapshot {
	s := &Snapshot{
		ids:     make(map[string]int),
		tags:    make(map[string][]int),
		builtAt: builtAt,
	}
	if sheet == nil {
		return s
	}
	s.items = make([]*Item, 0, len(sheet.Rows))
	for i, row := range sheet.Rows {
		it, err := Decode(row)
		if err != nil {
			if errors.Is(err, ErrMissingID) {
				slog.WarnContext(ctx, "Skipping row without id", "row", sheet.Position(i))
			} else {
				slog.WarnContext(ctx, "Skipping invalid row", "row", sheet.Position(i), "err", err)
			}
			continue
		}
		pos := len(s.items)
		s.items = append(s.items, it)
		if _, ok := s.ids[it.ID]; ok {
			slog.WarnContext(ctx, "Duplicate id", "id", it.ID, "row", sheet.Position(i))
		}
		s.ids[it.ID] = pos
		for _, tag := range it.Tags {
			s.tags[tag] = append(s.tags[tag], pos)
		}
	}
	return s
}

// Len returns the number of items.
func (s *Snapshot) Len() int {
	return len(s.items)
}

// BuiltAt returns when the snapshot was built.
func (s *Snapshot) BuiltAt() time.Time {
	return s.builtAt
}

// At returns the item at position pos, or nil if out of range.
func (s *Snapshot) At(pos int) *Item {
	if pos < 0 || pos >= len(s.items) {
		return nil
	}
	return s.items[pos]
}

// Items iterates over all items in source order.
func (s *Snapshot) Items() iter.Seq2[int, *Item] {
	return func(yield func(int, *Item) bool) {
		for i, it := range s.items {
			if !yield(i, it) {
				return
			}
		}
	}
}

// Position returns the position indexed for id.
func (s *Snapshot) Position(id string) (int, bool) {
	pos, ok := s.ids[id]
	return pos, ok
}

// Get returns the item indexed for id, or nil.
func (s *Snapshot) Get(id string) *Item {
	pos, ok := s.ids[id]
	if !ok {
		return nil
	}
	it := s.At(pos)
	if it == nil {
		slog.Error("Internal index is invalid", "id", id, "pos", pos, "len", len(s.items))
	}
	return it
}

// Tagged returns the items carrying tag, in source order.
func (s *Snapshot) Tagged(tag string) []*Item {
	positions := s.tags[tag]
	out := make([]*Item, 0, len(positions))
	for _, pos := range positions {
		if it := s.At(pos); it != nil {
			out = append(out, it)
		}
	}
	return out
}

// TagPositions returns the positions indexed for tag.
func (s *Snapshot) TagPositions(tag string) []int {
	return slices.Clone(s.tags[tag])
}

// Tags returns all indexed tags, sorted.
func (s *Snapshot) Tags() []string {
	out := make([]string, 0, len(s.tags))
	for tag := range s.tags {
		out = append(out, tag)
	}
	slices.Sort(out)
	return out
}
