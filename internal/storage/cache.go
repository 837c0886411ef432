package storage

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"golang.org/x/sync/singleflight"

	"github.com/maruel/imladris/internal/sheetdb"
)

// DefaultCacheTTL is how long a snapshot is served before it is rebuilt.
const DefaultCacheTTL = 30 * time.Second

// CacheOptions configures a Cache. The zero value is valid.
type CacheOptions struct {
	// TTL defaults to DefaultCacheTTL.
	TTL time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
	// Meter defaults to the global meter provider.
	Meter metric.Meter
}

// Cache owns the current snapshot of the item sheet and decides when it
// must be rebuilt from the Store.
//
// The snapshot is replaced atomically and never modified, so readers need
// no lock. Concurrent rebuild requests share a single fetch.
type Cache struct {
	store sheetdb.Store
	ttl   time.Duration
	now   func() time.Time

	group singleflight.Group
	snap  atomic.Pointer[sheetdb.Snapshot]
	stale atomic.Bool

	metrics cacheMetrics
}

// NewCache initializes a new cache over store. Nothing is fetched until the
// first refresh.
func NewCache(store sheetdb.Store, opts *CacheOptions) *Cache {
	if opts == nil {
		opts = &CacheOptions{}
	}
	c := &Cache{store: store, ttl: opts.TTL, now: opts.Now}
	if c.ttl <= 0 {
		c.ttl = DefaultCacheTTL
	}
	if c.now == nil {
		c.now = time.Now
	}
	meter := opts.Meter
	if meter == nil {
		meter = otel.Meter("github.com/maruel/imladris/internal/storage")
	}
	m, err := newCacheMetrics(meter)
	if err != nil {
		slog.Warn("Failed to create cache metrics", "err", err)
		m, _ = newCacheMetrics(noop.NewMeterProvider().Meter(""))
	}
	c.metrics = m
	return c
}

// TTL returns the validity window of a snapshot.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Snapshot returns the current snapshot, or nil before the first successful
// rebuild.
func (c *Cache) Snapshot() *sheetdb.Snapshot {
	return c.snap.Load()
}

// Invalidate marks the current snapshot as stale. It keeps being served
// until the next refresh replaces it.
func (c *Cache) Invalidate() {
	c.stale.Store(true)
}

// Stale reports whether the next refresh will rebuild the snapshot.
func (c *Cache) Stale() bool {
	return c.needsRebuild(false)
}

func (c *Cache) needsRebuild(force bool) bool {
	if force || c.stale.Load() {
		return true
	}
	s := c.snap.Load()
	if s == nil {
		return true
	}
	return !c.now().Before(s.BuiltAt().Add(c.ttl))
}

// Refresh starts a rebuild when forced, when there is no snapshot yet, when
// the cache was invalidated or when the snapshot is at least TTL old.
//
// It returns true when the current snapshot is fresh; done is then already
// closed. Otherwise it returns false and done receives the result of the
// rebuild once the new snapshot is visible. A rebuild already in flight is
// joined rather than duplicated. Cancelling ctx stops waiting but does not
// abort the shared rebuild.
func (c *Cache) Refresh(ctx context.Context, force bool) (fresh bool, done <-chan error) {
	if !c.needsRebuild(force) {
		c.metrics.hits.Add(ctx, 1)
		ch := make(chan error)
		close(ch)
		return true, ch
	}
	res := c.group.DoChan("rebuild", func() (any, error) {
		return nil, c.rebuild(context.WithoutCancel(ctx))
	})
	ch := make(chan error, 1)
	go func() {
		defer close(ch)
		select {
		case r := <-res:
			ch <- r.Err
		case <-ctx.Done():
			ch <- ctx.Err()
		}
	}()
	return false, ch
}

// EnsureFresh is the blocking form of Refresh.
func (c *Cache) EnsureFresh(ctx context.Context, force bool) (fresh bool, err error) {
	fresh, done := c.Refresh(ctx, force)
	return fresh, <-done
}

// rebuild fetches every row and replaces the snapshot. On failure the
// previous snapshot stays in place.
func (c *Cache) rebuild(ctx context.Context) error {
	start := c.now()
	wasStale := c.stale.Swap(false)
	slog.InfoContext(ctx, "Reindexing items")
	sheet, err := c.store.FetchAll(ctx)
	if err != nil {
		if wasStale {
			c.stale.Store(true)
		}
		c.metrics.failures.Add(ctx, 1)
		slog.ErrorContext(ctx, "Failed to fetch items", "err", err)
		return errors.Join(ErrRebuild, err)
	}
	snap := sheetdb.Build(ctx, sheet, start)
	c.snap.Store(snap)
	elapsed := c.now().Sub(start)
	c.metrics.rebuilds.Add(ctx, 1)
	c.metrics.duration.Record(ctx, float64(elapsed.Microseconds())/1000)
	c.metrics.items.Record(ctx, int64(snap.Len()))
	slog.InfoContext(ctx, "Reindexed items", "items", snap.Len(), "rows", len(sheet.Rows), "tags", len(snap.Tags()), "dur", elapsed)
	return nil
}

// ErrRebuild wraps errors of a failed rebuild.
var ErrRebuild = errors.New("failed to rebuild item cache")

type cacheMetrics struct {
	hits     metric.Int64Counter
	rebuilds metric.Int64Counter
	failures metric.Int64Counter
	duration metric.Float64Histogram
	items    metric.Int64Gauge
}

func newCacheMetrics(meter metric.Meter) (cacheMetrics, error) {
	var m cacheMetrics
	var err, errs error
	m.hits, err = meter.Int64Counter("imladris.cache.hits",
		metric.WithDescription("Refreshes served by a fresh snapshot"))
	errs = errors.Join(errs, err)
	m.rebuilds, err = meter.Int64Counter("imladris.cache.rebuilds",
		metric.WithDescription("Successful snapshot rebuilds"))
	errs = errors.Join(errs, err)
	m.failures, err = meter.Int64Counter("imladris.cache.rebuild_failures",
		metric.WithDescription("Snapshot rebuilds that failed to fetch rows"))
	errs = errors.Join(errs, err)
	m.duration, err = meter.Float64Histogram("imladris.cache.rebuild.duration",
		metric.WithDescription("Time to fetch and index all rows"),
		metric.WithUnit("ms"))
	errs = errors.Join(errs, err)
	m.items, err = meter.Int64Gauge("imladris.cache.items",
		metric.WithDescription("Items in the current snapshot"))
	errs = errors.Join(errs, err)
	return m, errs
}
