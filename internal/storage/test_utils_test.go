package storage

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/maruel/imladris/internal/imgur"
	"github.com/maruel/imladris/internal/sheetdb"
)

var errFetch = errors.New("fetch failed")

// fakeStore wraps a MemoryStore, counts fetches and records the calls
// reaching the store.
type fakeStore struct {
	*sheetdb.MemoryStore

	fetches atomic.Int32
	// gate, when set, blocks FetchAll until it is closed.
	gate chan struct{}
	// fail makes FetchAll return errFetch.
	fail atomic.Bool

	mu      sync.Mutex
	deleted []int
	updated []int
}

func newFakeStore(rows ...sheetdb.Row) *fakeStore {
	return &fakeStore{MemoryStore: sheetdb.NewMemoryStore(rows...)}
}

func (f *fakeStore) FetchAll(ctx context.Context) (*sheetdb.Sheet, error) {
	f.fetches.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	if f.fail.Load() {
		return nil, errFetch
	}
	return f.MemoryStore.FetchAll(ctx)
}

func (f *fakeStore) BatchUpdate(ctx context.Context, positions []int, rows []sheetdb.Row) error {
	f.mu.Lock()
	f.updated = append(f.updated, positions...)
	f.mu.Unlock()
	return f.MemoryStore.BatchUpdate(ctx, positions, rows)
}

func (f *fakeStore) DeleteRows(ctx context.Context, positions []int) error {
	f.mu.Lock()
	f.deleted = append(f.deleted, positions...)
	f.mu.Unlock()
	return f.MemoryStore.DeleteRows(ctx, positions)
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// seqID returns an IDGenerator yielding "id1", "id2", ...
func seqID() sheetdb.IDGenerator {
	var n atomic.Int32
	return func() string {
		return "id" + strconv.Itoa(int(n.Add(1)))
	}
}

// fakeImages is an in-memory ImageHost.
type fakeImages struct {
	mu      sync.Mutex
	uploads int
	deleted []string
	err     error
}

func (f *fakeImages) Upload(ctx context.Context, kind, data string) (*imgur.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.uploads++
	n := strconv.Itoa(f.uploads)
	return &imgur.Image{ID: "img" + n, Link: "https://i.imgur.com/img" + n + ".png", DeleteHash: "hash" + n}, nil
}

func (f *fakeImages) Delete(ctx context.Context, deleteHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, deleteHash)
	return nil
}

// failingAppend rejects every append.
type failingAppend struct {
	*fakeStore
}

func (failingAppend) Append(ctx context.Context, row sheetdb.Row) error {
	return errors.New("append failed")
}

func item(id, kind, tags string) sheetdb.Row {
	return sheetdb.Row{id, "https://example.com/" + id, kind, "name " + id, tags, ""}
}
