package weather

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/campcaster/campcaster/internal/catalog"
	"github.com/campcaster/campcaster/internal/geo"
	"github.com/campcaster/campcaster/internal/models"
	"github.com/campcaster/campcaster/internal/store"
)

// fakeFetcher counts calls and can block until released, to exercise the
// in-flight dedup path.
type fakeFetcher struct {
	calls   atomic.Int64
	err     error
	days    []models.DayForecast
	release chan struct{} // when non-nil, FetchDaily blocks on it
}

func (f *fakeFetcher) FetchDaily(ctx context.Context, point geo.Point) (models.WeatherRecord, error) {
	f.calls.Add(1)
	if f.release != nil {
		<-f.release
	}
	if f.err != nil {
		return models.WeatherRecord{}, f.err
	}
	return models.WeatherRecord{Days: f.days, FetchedAt: time.Now()}, nil
}

func testDays() []models.DayForecast {
	return []models.DayForecast{
		{Date: "2026-09-05", MinTempC: 8, MaxTempC: 21, RainProbPct: 20, RainSumMM: 1},
		{Date: "2026-09-06", MinTempC: 12, MaxTempC: 36, RainProbPct: 10, RainSumMM: 0},
	}
}

func siteIn(id, lga string) models.Site {
	return models.Site{ID: id, Name: id, LGA: lga, Lat: -36.9, Lng: 147.0}
}

func TestEnsureCachesPerKey(t *testing.T) {
	f := &fakeFetcher{days: testDays()}
	c := NewCoordinator(f, nil, nil)

	site := siteIn("s1", "Alpine Shire")
	c.Ensure(context.Background(), site, true)
	c.Ensure(context.Background(), site, true)

	if got := f.calls.Load(); got != 1 {
		t.Fatalf("fetcher called %d times, want 1", got)
	}
	if _, ok := c.Record("Alpine Shire"); !ok {
		t.Fatal("expected record for Alpine Shire")
	}
}

func TestEnsureSharesRegionKey(t *testing.T) {
	f := &fakeFetcher{days: testDays()}
	c := NewCoordinator(f, nil, nil)

	// Region A has two sites, region B has one: exactly two fetches.
	c.Ensure(context.Background(), siteIn("a1", "Alpine Shire"), true)
	c.Ensure(context.Background(), siteIn("a2", "Alpine Shire"), true)
	c.Ensure(context.Background(), siteIn("b1", "East Gippsland Shire"), true)

	if got := f.calls.Load(); got != 2 {
		t.Fatalf("fetcher called %d times, want 2 (one per region key)", got)
	}
}

func TestEnsureInFlightDedup(t *testing.T) {
	f := &fakeFetcher{days: testDays(), release: make(chan struct{})}
	c := NewCoordinator(f, nil, nil)
	site := siteIn("s1", "Alpine Shire")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.Ensure(context.Background(), site, true)
	}()

	// Wait until the fetch is marked in flight, then call again.
	deadline := time.After(2 * time.Second)
	for !c.Pending(site) {
		select {
		case <-deadline:
			t.Fatal("fetch never became pending")
		default:
			time.Sleep(time.Millisecond)
		}
	}
	c.Ensure(context.Background(), site, true) // must no-op, not block

	close(f.release)
	wg.Wait()

	if got := f.calls.Load(); got != 1 {
		t.Fatalf("fetcher called %d times, want 1", got)
	}
}

func TestEnsureRecordsErrors(t *testing.T) {
	f := &fakeFetcher{err: errors.New("provider down")}
	c := NewCoordinator(f, nil, nil)
	site := siteIn("s1", "Alpine Shire")

	c.Ensure(context.Background(), site, true)

	if _, ok := c.Record("Alpine Shire"); ok {
		t.Fatal("failed fetch must not populate the cache")
	}
	msg, ok := c.ErrorFor(site)
	if !ok || msg != "provider down" {
		t.Fatalf("error = %q ok=%v, want recorded provider error", msg, ok)
	}

	// Errors do not stick: a later successful fetch clears them.
	f.err = nil
	f.days = testDays()
	c.Ensure(context.Background(), site, true)
	if _, ok := c.ErrorFor(site); ok {
		t.Fatal("error should clear after successful fetch")
	}
}

func TestEnsureNoCoordinates(t *testing.T) {
	f := &fakeFetcher{days: testDays()}
	c := NewCoordinator(f, nil, nil)

	site := catalogSiteNoCoords("lost")
	c.Ensure(context.Background(), site, true)

	if got := f.calls.Load(); got != 0 {
		t.Fatalf("fetcher called %d times for a site with no forecast point", got)
	}
	if _, ok := c.ErrorFor(site); !ok {
		t.Fatal("expected a recorded error for missing coordinates")
	}
}

func TestEnsureUsesPersistentCache(t *testing.T) {
	f := &fakeFetcher{days: testDays()}
	persisted := store.NewMemory()
	persisted.Put("Alpine Shire", models.WeatherRecord{Days: testDays(), FetchedAt: time.Now()})

	c := NewCoordinator(f, persisted, nil)
	c.Ensure(context.Background(), siteIn("s1", "Alpine Shire"), true)

	if got := f.calls.Load(); got != 0 {
		t.Fatalf("fetcher called %d times despite persistent cache hit", got)
	}
	if _, ok := c.Record("Alpine Shire"); !ok {
		t.Fatal("expected record adopted from persistent cache")
	}
}

func TestEnsureBypassesCacheWhenDisallowed(t *testing.T) {
	f := &fakeFetcher{days: testDays()}
	persisted := store.NewMemory()
	persisted.Put("Alpine Shire", models.WeatherRecord{Days: testDays(), FetchedAt: time.Now()})

	c := NewCoordinator(f, persisted, nil)
	c.Ensure(context.Background(), siteIn("s1", "Alpine Shire"), false)

	if got := f.calls.Load(); got != 1 {
		t.Fatalf("fetcher called %d times, want 1 (allowCache=false must refetch)", got)
	}
}

func TestEnsureBypassSharesRegionFetch(t *testing.T) {
	f := &fakeFetcher{days: testDays()}
	c := NewCoordinator(f, nil, nil)

	// After a date change the wave bypasses the persistent cache, but sites
	// sharing a region key must still share one fetch.
	c.Ensure(context.Background(), siteIn("a1", "Alpine Shire"), false)
	c.Ensure(context.Background(), siteIn("a2", "Alpine Shire"), false)

	if got := f.calls.Load(); got != 1 {
		t.Fatalf("fetcher called %d times for one region key, want 1", got)
	}
}

// blockingCache stalls Get until released, signalling when a read starts.
type blockingCache struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingCache) Get(key string, ttl time.Duration) (models.WeatherRecord, bool, error) {
	close(b.entered)
	<-b.release
	return models.WeatherRecord{}, false, nil
}

func (b *blockingCache) Put(key string, rec models.WeatherRecord) error { return nil }
func (b *blockingCache) Clear() error                                   { return nil }

func TestSlowPersistentCacheDoesNotBlockReaders(t *testing.T) {
	f := &fakeFetcher{days: testDays()}
	cache := &blockingCache{entered: make(chan struct{}), release: make(chan struct{})}
	c := NewCoordinator(f, cache, nil)
	site := siteIn("s1", "Alpine Shire")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.Ensure(context.Background(), site, true)
	}()

	select {
	case <-cache.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("cache read never started")
	}

	// The disk read is still stalled; readers must not queue behind it.
	done := make(chan struct{})
	go func() {
		c.SummaryFor(site, "2026-09-05")
		c.Record("Alpine Shire")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("readers blocked behind the persistent cache read")
	}

	close(cache.release)
	wg.Wait()
}

func TestEnsureSkipsExpiredPersistentEntry(t *testing.T) {
	f := &fakeFetcher{days: testDays()}
	persisted := store.NewMemory()
	persisted.Put("Alpine Shire", models.WeatherRecord{Days: testDays(), FetchedAt: time.Now().Add(-13 * time.Hour)})

	c := NewCoordinator(f, persisted, nil)
	c.Ensure(context.Background(), siteIn("s1", "Alpine Shire"), true)

	if got := f.calls.Load(); got != 1 {
		t.Fatalf("fetcher called %d times, want 1 (expired entry must refetch)", got)
	}
}

func TestEnsureWritesPersistentCache(t *testing.T) {
	f := &fakeFetcher{days: testDays()}
	persisted := store.NewMemory()
	c := NewCoordinator(f, persisted, nil)

	c.Ensure(context.Background(), siteIn("s1", "Alpine Shire"), true)

	if _, ok, _ := persisted.Get("Alpine Shire", CacheTTL); !ok {
		t.Fatal("successful fetch should be written through to the persistent cache")
	}
}

func TestEnsurePrefersRegionCentroid(t *testing.T) {
	var gotPoint geo.Point
	f := &pointCapturingFetcher{days: testDays(), captured: &gotPoint}
	centroids := map[string]catalog.Centroid{
		"Alpine Shire": {Lat: -36.5, Lng: 147.2},
	}
	c := NewCoordinator(f, nil, centroids)

	c.Ensure(context.Background(), siteIn("s1", "Alpine Shire"), true)

	if gotPoint.Lat != -36.5 || gotPoint.Lng != 147.2 {
		t.Fatalf("fetched point %+v, want region centroid", gotPoint)
	}
}

func TestSummaryFor(t *testing.T) {
	f := &fakeFetcher{days: testDays()}
	c := NewCoordinator(f, nil, nil)
	site := siteIn("s1", "Alpine Shire")
	c.Ensure(context.Background(), site, true)

	if s := c.SummaryFor(site, ""); s != nil {
		t.Error("no selected date should yield no summary")
	}
	if s := c.SummaryFor(site, "2030-01-01"); s != nil {
		t.Error("date outside the record should yield no summary")
	}
	if s := c.SummaryFor(siteIn("x", "Unfetched Shire"), "2026-09-05"); s != nil {
		t.Error("uncached key should yield no summary")
	}

	s := c.SummaryFor(site, "2026-09-06")
	if s == nil {
		t.Fatal("expected summary")
	}
	if !s.TooHot {
		t.Error("36.0 max should be too hot")
	}
	if s.Rainy {
		t.Error("10% / 0mm should not be rainy")
	}
}

func TestSummaryThresholds(t *testing.T) {
	tests := []struct {
		name    string
		day     models.DayForecast
		tooHot  bool
		rainy   bool
	}{
		{"hot dry day", models.DayForecast{MaxTempC: 36, RainProbPct: 10, RainSumMM: 0}, true, false},
		{"exactly at heat threshold", models.DayForecast{MaxTempC: 33}, true, false},
		{"just under heat threshold", models.DayForecast{MaxTempC: 32.9}, false, false},
		{"rainy by probability", models.DayForecast{MaxTempC: 20, RainProbPct: 30}, false, true},
		{"rainy by accumulation", models.DayForecast{MaxTempC: 20, RainSumMM: 4}, false, true},
		{"mild day", models.DayForecast{MaxTempC: 25, RainProbPct: 29, RainSumMM: 3.9}, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := models.Summarize(tt.day)
			if s.TooHot != tt.tooHot || s.Rainy != tt.rainy {
				t.Errorf("Summarize(%+v) = tooHot=%v rainy=%v, want %v/%v",
					tt.day, s.TooHot, s.Rainy, tt.tooHot, tt.rainy)
			}
		})
	}
}

func TestResetClearsEverything(t *testing.T) {
	f := &fakeFetcher{days: testDays()}
	c := NewCoordinator(f, nil, nil)
	okSite := siteIn("s1", "Alpine Shire")
	badSite := catalogSiteNoCoords("lost")

	c.Ensure(context.Background(), okSite, true)
	c.Ensure(context.Background(), badSite, true)
	c.Reset()

	if _, ok := c.Record("Alpine Shire"); ok {
		t.Error("records should clear on reset")
	}
	if _, ok := c.ErrorFor(badSite); ok {
		t.Error("errors should clear on reset")
	}
	if len(c.Keys()) != 0 {
		t.Error("no keys should remain after reset")
	}

	// After a reset the same key fetches again.
	c.Ensure(context.Background(), okSite, true)
	if got := f.calls.Load(); got != 2 {
		t.Fatalf("fetcher called %d times, want 2", got)
	}
}

func TestResetDiscardsInFlightResult(t *testing.T) {
	f := &fakeFetcher{days: testDays(), release: make(chan struct{})}
	c := NewCoordinator(f, nil, nil)
	site := siteIn("s1", "Alpine Shire")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.Ensure(context.Background(), site, true)
	}()

	deadline := time.After(2 * time.Second)
	for !c.Pending(site) {
		select {
		case <-deadline:
			t.Fatal("fetch never became pending")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	c.Reset()
	close(f.release)
	wg.Wait()

	if _, ok := c.Record("Alpine Shire"); ok {
		t.Fatal("result of a fetch started before the reset must be discarded")
	}
}

// pointCapturingFetcher records the point it was asked to fetch.
type pointCapturingFetcher struct {
	days     []models.DayForecast
	captured *geo.Point
}

func (f *pointCapturingFetcher) FetchDaily(ctx context.Context, point geo.Point) (models.WeatherRecord, error) {
	*f.captured = point
	return models.WeatherRecord{Days: f.days, FetchedAt: time.Now()}, nil
}

func catalogSiteNoCoords(id string) models.Site {
	sites, err := catalog.Parse([]byte(`[{"id": "` + id + `", "name": "Lost Flat", "parkName": "Nowhere"}]`))
	if err != nil {
		panic(err)
	}
	return sites[0]
}
