package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/maruel/imladris/internal/imgur"
	"github.com/maruel/imladris/internal/sheetdb"
)

// ImageHost stores image content and returns a public link.
type ImageHost interface {
	Upload(ctx context.Context, kind, data string) (*imgur.Image, error)
	Delete(ctx context.Context, deleteHash string) error
}

// ErrNoImageHost is returned by AddImage when no image host is configured.
var ErrNoImageHost = errors.New("no image host configured")

// Match is a live row selected by Filter.
type Match struct {
	// Position is the 1-based remote row number.
	Position int
	Row      sheetdb.Row
}

// UpdateResult summarizes an Update.
type UpdateResult struct {
	Matched int
	Updated []int
	// Skipped lists the positions whose mutated row had the wrong width.
	Skipped []int
}

// Listing is a list of items read from one snapshot.
type Listing struct {
	Items []*sheetdb.Item
	// BuiltAt is when the snapshot the items come from was built.
	BuiltAt time.Time
}

// Image is an item stored for an uploaded image.
type Image struct {
	*sheetdb.Item
	DeleteHash string `json:"deletehash"`
}

// ItemService answers queries from the cached snapshot and performs writes
// directly against the store.
type ItemService struct {
	store  sheetdb.Store
	cache  *Cache
	images ImageHost
	newID  sheetdb.IDGenerator
}

// NewItemService creates a new item service. images may be nil.
func NewItemService(store sheetdb.Store, cache *Cache, images ImageHost, newID sheetdb.IDGenerator) *ItemService {
	return &ItemService{store: store, cache: cache, images: images, newID: newID}
}

// Cache returns the cache backing read queries.
func (s *ItemService) Cache() *Cache {
	return s.cache
}

func (s *ItemService) snapshot(ctx context.Context, force bool) (*sheetdb.Snapshot, error) {
	_, err := s.cache.EnsureFresh(ctx, force)
	snap := s.cache.Snapshot()
	if err != nil {
		if snap == nil || ctx.Err() != nil {
			return nil, err
		}
		slog.WarnContext(ctx, "Serving previous snapshot", "err", err, "built", snap.BuiltAt())
	}
	return snap, nil
}

// GetByID returns the item with the given id.
func (s *ItemService) GetByID(ctx context.Context, id string, force bool) (*sheetdb.Item, error) {
	snap, err := s.snapshot(ctx, force)
	if err != nil {
		return nil, err
	}
	it := snap.Get(id)
	if it == nil {
		return nil, fmt.Errorf("%w: %q", sheetdb.ErrNotFound, id)
	}
	return it, nil
}

// ItemsByTag returns the items carrying tag in source order. Tags are
// compared lowercased.
func (s *ItemService) ItemsByTag(ctx context.Context, tag string, force bool) (*Listing, error) {
	snap, err := s.snapshot(ctx, force)
	if err != nil {
		return nil, err
	}
	return &Listing{Items: snap.Tagged(strings.ToLower(tag)), BuiltAt: snap.BuiltAt()}, nil
}

// Tags returns every known tag, sorted.
func (s *ItemService) Tags(ctx context.Context, force bool) ([]string, error) {
	snap, err := s.snapshot(ctx, force)
	if err != nil {
		return nil, err
	}
	return snap.Tags(), nil
}

// List returns all items in source order.
func (s *ItemService) List(ctx context.Context, force bool) (*Listing, error) {
	snap, err := s.snapshot(ctx, force)
	if err != nil {
		return nil, err
	}
	out := make([]*sheetdb.Item, 0, snap.Len())
	for _, it := range snap.Items() {
		out = append(out, it)
	}
	return &Listing{Items: out, BuiltAt: snap.BuiltAt()}, nil
}

// Filter fetches the live rows and returns those whose cell in column
// satisfies pred, in source order. Rows too short to hold the column are
// ignored.
//
// The cache is not consulted, so positions are current as of the fetch.
func (s *ItemService) Filter(ctx context.Context, column string, pred sheetdb.Predicate, firstOnly bool) ([]Match, error) {
	col, err := sheetdb.ColumnIndex(column)
	if err != nil {
		return nil, err
	}
	sheet, err := s.store.FetchAll(ctx)
	if err != nil {
		return nil, err
	}
	var out []Match
	for i, row := range sheet.Rows {
		v, ok := row.At(col)
		if !ok || !pred(v) {
			continue
		}
		out = append(out, Match{Position: sheet.Position(i), Row: row})
		if firstOnly {
			break
		}
	}
	return out, nil
}

// Update rewrites the matching rows with the output of mutate.
//
// mutate receives a copy of each row. Results that are not exactly one cell
// per column are skipped with a warning; the others are written in a single
// batch.
func (s *ItemService) Update(ctx context.Context, column string, pred sheetdb.Predicate, mutate sheetdb.Mutator, firstOnly bool) (*UpdateResult, error) {
	matches, err := s.Filter(ctx, column, pred, firstOnly)
	if err != nil {
		return nil, err
	}
	res := &UpdateResult{Matched: len(matches)}
	var rows []sheetdb.Row
	for _, m := range matches {
		row := mutate(m.Row.Clone())
		if !row.FullWidth() {
			slog.WarnContext(ctx, "Skipping update with wrong width", "row", m.Position, "cells", len(row), "want", sheetdb.Width)
			res.Skipped = append(res.Skipped, m.Position)
			continue
		}
		res.Updated = append(res.Updated, m.Position)
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return res, nil
	}
	if err := s.store.BatchUpdate(ctx, res.Updated, rows); err != nil {
		return nil, err
	}
	s.cache.Invalidate()
	slog.InfoContext(ctx, "Updated rows", "rows", res.Updated)
	return res, nil
}

// Delete removes the matching rows and returns their positions, highest
// first.
func (s *ItemService) Delete(ctx context.Context, column string, pred sheetdb.Predicate, firstOnly bool) ([]int, error) {
	matches, err := s.Filter(ctx, column, pred, firstOnly)
	if err != nil {
		return nil, err
	}
	positions := make([]int, len(matches))
	for i, m := range matches {
		positions[i] = m.Position
	}
	positions = sheetdb.DeletionOrder(positions)
	if len(positions) == 0 {
		return positions, nil
	}
	if err := s.store.DeleteRows(ctx, positions); err != nil {
		return nil, err
	}
	s.cache.Invalidate()
	slog.InfoContext(ctx, "Deleted rows", "rows", positions)
	return positions, nil
}

// DeleteByID removes the first row with the given id.
func (s *ItemService) DeleteByID(ctx context.Context, id string) ([]int, error) {
	positions, err := s.Delete(ctx, string(sheetdb.ColID), sheetdb.Equals(id), true)
	if err != nil {
		return nil, err
	}
	if len(positions) == 0 {
		return nil, fmt.Errorf("%w: %q", sheetdb.ErrNotFound, id)
	}
	return positions, nil
}

// AddItem assigns an id to n and appends it.
func (s *ItemService) AddItem(ctx context.Context, n *sheetdb.NewItem) (*sheetdb.Item, error) {
	it, row, err := sheetdb.Encode(s.newID, n)
	if err != nil {
		return nil, err
	}
	if err := s.store.Append(ctx, row); err != nil {
		return nil, err
	}
	s.cache.Invalidate()
	slog.InfoContext(ctx, "Added item", "id", it.ID, "type", it.Kind)
	return it, nil
}

// AddImage uploads data to the image host and stores the hosted link as an
// image item. n.Link and n.Kind are ignored.
//
// When the item cannot be stored, the uploaded image is deleted.
func (s *ItemService) AddImage(ctx context.Context, kind, data string, n *sheetdb.NewItem) (*Image, error) {
	if s.images == nil {
		return nil, ErrNoImageHost
	}
	img, err := s.images.Upload(ctx, kind, data)
	if err != nil {
		return nil, err
	}
	item := sheetdb.NewItem{Link: img.Link, Kind: string(sheetdb.KindImage)}
	if n != nil {
		item.Name = n.Name
		item.Tags = n.Tags
		item.Description = n.Description
	}
	it, err := s.AddItem(ctx, &item)
	if err != nil {
		if img.DeleteHash != "" {
			if err2 := s.images.Delete(context.WithoutCancel(ctx), img.DeleteHash); err2 != nil {
				slog.ErrorContext(ctx, "Failed to delete orphaned image", "link", img.Link, "err", err2)
			}
		}
		return nil, err
	}
	return &Image{Item: it, DeleteHash: img.DeleteHash}, nil
}
