package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestCache_TTL(t *testing.T) {
	clock := newFakeClock()
	store := newFakeStore(item("a", "link", "x"))
	c := NewCache(store, &CacheOptions{TTL: time.Minute, Now: clock.Now})

	if c.Snapshot() != nil {
		t.Fatal("expected no snapshot before the first refresh")
	}
	if !c.Stale() {
		t.Error("Stale() = false before the first refresh, want true")
	}
	fresh, err := c.EnsureFresh(t.Context(), false)
	if err != nil {
		t.Fatal(err)
	}
	if fresh {
		t.Error("first refresh reported fresh")
	}
	if got := c.Snapshot().Len(); got != 1 {
		t.Errorf("Len() = %d, want 1", got)
	}
	if !c.Snapshot().BuiltAt().Equal(clock.Now()) {
		t.Errorf("BuiltAt() = %v, want %v", c.Snapshot().BuiltAt(), clock.Now())
	}

	clock.Advance(time.Minute - time.Nanosecond)
	fresh, err = c.EnsureFresh(t.Context(), false)
	if err != nil {
		t.Fatal(err)
	}
	if !fresh {
		t.Error("snapshot younger than TTL was rebuilt")
	}
	if got := store.fetches.Load(); got != 1 {
		t.Errorf("fetches = %d, want 1", got)
	}

	// A snapshot exactly TTL old is stale.
	clock.Advance(time.Nanosecond)
	fresh, err = c.EnsureFresh(t.Context(), false)
	if err != nil {
		t.Fatal(err)
	}
	if fresh {
		t.Error("snapshot TTL old was served as fresh")
	}
	if got := store.fetches.Load(); got != 2 {
		t.Errorf("fetches = %d, want 2", got)
	}
}

func TestCache_Force(t *testing.T) {
	clock := newFakeClock()
	store := newFakeStore(item("a", "link", ""))
	c := NewCache(store, &CacheOptions{Now: clock.Now})
	if _, err := c.EnsureFresh(t.Context(), false); err != nil {
		t.Fatal(err)
	}
	if err := store.Append(t.Context(), item("b", "link", "")); err != nil {
		t.Fatal(err)
	}
	if fresh, _ := c.EnsureFresh(t.Context(), false); !fresh {
		t.Error("expected cached snapshot")
	}
	if got := c.Snapshot().Len(); got != 1 {
		t.Errorf("Len() = %d, want 1", got)
	}
	if fresh, err := c.EnsureFresh(t.Context(), true); err != nil || fresh {
		t.Fatalf("EnsureFresh(force) = %v, %v", fresh, err)
	}
	if got := c.Snapshot().Len(); got != 2 {
		t.Errorf("Len() = %d, want 2", got)
	}
}

func TestCache_Invalidate(t *testing.T) {
	store := newFakeStore(item("a", "link", ""))
	c := NewCache(store, nil)
	if _, err := c.EnsureFresh(t.Context(), false); err != nil {
		t.Fatal(err)
	}
	old := c.Snapshot()
	c.Invalidate()
	if c.Snapshot() != old {
		t.Error("Invalidate() dropped the snapshot")
	}
	if !c.Stale() {
		t.Error("Stale() = false after Invalidate()")
	}
	if fresh, err := c.EnsureFresh(t.Context(), false); err != nil || fresh {
		t.Fatalf("EnsureFresh() = %v, %v", fresh, err)
	}
	if c.Snapshot() == old {
		t.Error("snapshot was not replaced")
	}
	if c.Stale() {
		t.Error("Stale() = true after rebuild")
	}
}

func TestCache_Coalesce(t *testing.T) {
	store := newFakeStore(item("a", "link", ""))
	store.gate = make(chan struct{})
	c := NewCache(store, nil)

	var dones []<-chan error
	for range 5 {
		fresh, done := c.Refresh(t.Context(), false)
		if fresh {
			t.Fatal("Refresh() reported fresh without a snapshot")
		}
		dones = append(dones, done)
	}
	close(store.gate)
	for i, done := range dones {
		if err := <-done; err != nil {
			t.Errorf("waiter %d: %v", i, err)
		}
	}
	if got := store.fetches.Load(); got != 1 {
		t.Errorf("fetches = %d, want 1", got)
	}
	if c.Snapshot() == nil {
		t.Fatal("no snapshot after rebuild")
	}
}

func TestCache_WaiterCancel(t *testing.T) {
	store := newFakeStore(item("a", "link", ""))
	store.gate = make(chan struct{})
	c := NewCache(store, nil)

	ctx, cancel := context.WithCancel(t.Context())
	_, done := c.Refresh(ctx, false)
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want %v", err, context.Canceled)
	}
	close(store.gate)
	// The shared rebuild is not aborted by the cancelled waiter.
	if _, err := c.EnsureFresh(t.Context(), false); err != nil {
		t.Fatal(err)
	}
	if got := c.Snapshot().Len(); got != 1 {
		t.Errorf("Len() = %d, want 1", got)
	}
}

func TestCache_FailedRebuild(t *testing.T) {
	store := newFakeStore(item("a", "link", ""))
	c := NewCache(store, nil)
	t.Run("NoSnapshot", func(t *testing.T) {
		store.fail.Store(true)
		_, err := c.EnsureFresh(t.Context(), false)
		if !errors.Is(err, errFetch) || !errors.Is(err, ErrRebuild) {
			t.Errorf("err = %v, want %v", err, errFetch)
		}
		if c.Snapshot() != nil {
			t.Error("snapshot created by a failed rebuild")
		}
	})
	t.Run("KeepsPrevious", func(t *testing.T) {
		store.fail.Store(false)
		if _, err := c.EnsureFresh(t.Context(), false); err != nil {
			t.Fatal(err)
		}
		old := c.Snapshot()
		c.Invalidate()
		store.fail.Store(true)
		if _, err := c.EnsureFresh(t.Context(), false); !errors.Is(err, errFetch) {
			t.Errorf("err = %v, want %v", err, errFetch)
		}
		if c.Snapshot() != old {
			t.Error("failed rebuild replaced the snapshot")
		}
		if !c.Stale() {
			t.Error("failed rebuild cleared the stale flag")
		}
	})
}

func TestCache_Metrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	store := newFakeStore(item("a", "link", ""), item("b", "image", ""))
	c := NewCache(store, &CacheOptions{Meter: mp.Meter("test")})
	for range 3 {
		if _, err := c.EnsureFresh(t.Context(), false); err != nil {
			t.Fatal(err)
		}
	}
	store.fail.Store(true)
	_, _ = c.EnsureFresh(t.Context(), true)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(t.Context(), &rm); err != nil {
		t.Fatal(err)
	}
	want := map[string]int64{
		"imladris.cache.hits":             2,
		"imladris.cache.rebuilds":         1,
		"imladris.cache.rebuild_failures": 1,
		"imladris.cache.items":            2,
	}
	got := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch d := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range d.DataPoints {
					got[m.Name] += dp.Value
				}
			case metricdata.Gauge[int64]:
				for _, dp := range d.DataPoints {
					got[m.Name] = dp.Value
				}
			}
		}
	}
	for name, v := range want {
		if got[name] != v {
			t.Errorf("%s = %d, want %d", name, got[name], v)
		}
	}
}
