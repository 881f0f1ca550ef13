package weather

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/campcaster/campcaster/internal/catalog"
	"github.com/campcaster/campcaster/internal/metrics"
	"github.com/campcaster/campcaster/internal/models"
	"github.com/campcaster/campcaster/internal/store"
)

// CacheTTL is how long a forecast record stays trusted, in memory and in the
// persistent cache.
const CacheTTL = 12 * time.Hour

// Coordinator owns the per-region-key forecast cache. A key is always in
// exactly one state: absent, in flight, or holding a complete record. Fetch
// failures are recorded as per-key error strings, never propagated to
// callers.
type Coordinator struct {
	fetcher   Fetcher
	cache     store.WeatherCache // best-effort, may be nil
	centroids map[string]catalog.Centroid
	ttl       time.Duration

	mu       sync.Mutex
	records  map[string]models.WeatherRecord
	errors   map[string]string
	inFlight map[string]struct{}
	gen      uint64 // bumped on Reset; stale fetch results are discarded

	flight singleflight.Group
}

func NewCoordinator(fetcher Fetcher, cache store.WeatherCache, centroids map[string]catalog.Centroid) *Coordinator {
	return &Coordinator{
		fetcher:   fetcher,
		cache:     cache,
		centroids: centroids,
		ttl:       CacheTTL,
		records:   make(map[string]models.WeatherRecord),
		errors:    make(map[string]string),
		inFlight:  make(map[string]struct{}),
	}
}

// Ensure makes the forecast for a site's weather key present in the cache,
// unless it already is. It is idempotent and safe to call concurrently for
// the same or different sites: a key with a resolved record or a fetch
// already in flight is a no-op, so a region key is fetched at most once per
// wave. allowCache gates only the persistent tier. Blocks until its own
// fetch completes; never returns an error — failures become observable
// per-key state.
func (c *Coordinator) Ensure(ctx context.Context, site models.Site, allowCache bool) {
	key := site.WeatherKey()

	c.mu.Lock()
	// A memory record always short-circuits: records only ever hold fetches
	// from the current generation, so one fetch serves every site sharing
	// the key even when the persistent cache is bypassed.
	if _, exists := c.records[key]; exists {
		c.mu.Unlock()
		metrics.WeatherCacheHitsTotal.WithLabelValues("memory").Inc()
		return
	}
	if _, busy := c.inFlight[key]; busy {
		c.mu.Unlock()
		return
	}
	gen := c.gen
	c.mu.Unlock()

	if allowCache && c.cache != nil {
		// Disk read happens outside the lock so readers stay unblocked.
		rec, ok, err := c.cache.Get(key, c.ttl)
		if err != nil {
			log.Printf("weather: persistent cache read for %q: %v", key, err)
		}
		if ok {
			c.mu.Lock()
			if _, exists := c.records[key]; gen == c.gen && !exists {
				c.records[key] = rec
				delete(c.errors, key)
				metrics.WeatherCacheHitsTotal.WithLabelValues("persistent").Inc()
			}
			c.mu.Unlock()
			return
		}
	}

	point, hasPoint := catalog.ForecastPoint(site, c.centroids)

	// Re-validate: another caller may have resolved the key, or a reset may
	// have superseded this call, while the lock was released.
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	if _, exists := c.records[key]; exists {
		c.mu.Unlock()
		return
	}
	if _, busy := c.inFlight[key]; busy {
		c.mu.Unlock()
		return
	}
	if !hasPoint {
		c.errors[key] = "no coordinates for forecast"
		c.mu.Unlock()
		return
	}
	c.inFlight[key] = struct{}{}
	c.mu.Unlock()

	// singleflight collapses callers that raced past the in-flight check.
	// The generation prefix keeps a post-reset fetch from joining a
	// superseded call for the same key.
	flightKey := fmt.Sprintf("%d/%s", gen, key)
	c.flight.Do(flightKey, func() (interface{}, error) {
		rec, err := c.fetcher.FetchDaily(ctx, point)

		c.mu.Lock()
		if gen != c.gen {
			// The cache was reset (date change) while this fetch was out;
			// its result belongs to a superseded context.
			c.mu.Unlock()
			return nil, nil
		}
		delete(c.inFlight, key)
		if err != nil {
			c.errors[key] = err.Error()
			c.mu.Unlock()
			return nil, nil
		}
		c.records[key] = rec
		delete(c.errors, key)
		c.mu.Unlock()

		// Write-through is best effort and stays off the lock like the read.
		if c.cache != nil {
			if perr := c.cache.Put(key, rec); perr != nil {
				log.Printf("weather: persistent cache write for %q: %v", key, perr)
			}
		}
		return nil, nil
	})
}

// Record returns the cached forecast for a weather key.
func (c *Coordinator) Record(key string) (models.WeatherRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.records[key]
	return rec, ok
}

// SummaryFor returns the risk summary for a site on the selected date, or nil
// when no date is selected, no record is cached for the site's key, or the
// record does not cover that date.
func (c *Coordinator) SummaryFor(site models.Site, selectedDate string) *models.WeatherSummary {
	if selectedDate == "" {
		return nil
	}
	c.mu.Lock()
	rec, ok := c.records[site.WeatherKey()]
	c.mu.Unlock()
	if !ok {
		return nil
	}
	day, ok := rec.Day(selectedDate)
	if !ok {
		return nil
	}
	s := models.Summarize(day)
	return &s
}

// ErrorFor returns the recorded fetch error for a site's key, if any.
func (c *Coordinator) ErrorFor(site models.Site) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	msg, ok := c.errors[site.WeatherKey()]
	return msg, ok
}

// Pending reports whether a fetch for the site's key is in flight.
func (c *Coordinator) Pending(site models.Site) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.inFlight[site.WeatherKey()]
	return ok
}

// Reset drops every cached record, error, and loading flag. Called when the
// selected date changes: weather keys are region-scoped and the TTL is
// wall-clock, so entries would otherwise leak across dates. In-flight fetch
// results from before the reset are discarded at merge time.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = make(map[string]models.WeatherRecord)
	c.errors = make(map[string]string)
	c.inFlight = make(map[string]struct{})
	c.gen++
}

// Keys returns the weather keys currently cached, for observability.
func (c *Coordinator) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.records))
	for k := range c.records {
		keys = append(keys, k)
	}
	return keys
}
