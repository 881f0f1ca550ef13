package engine

import (
	"context"
	"log"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/campcaster/campcaster/internal/geo"
	"github.com/campcaster/campcaster/internal/models"
)

// WeatherFetchCap bounds how many of the visible sites get a forecast fetch
// per wave. Sites beyond the cap stay pending until narrowing filters bring
// them inside it.
const WeatherFetchCap = 30

// waveConcurrency bounds simultaneous provider requests within one wave.
const waveConcurrency = 8

// WeatherCoordinator is the weather dependency of the engine.
type WeatherCoordinator interface {
	WeatherSource
	Ensure(ctx context.Context, site models.Site, allowCache bool)
	Reset()
	ErrorFor(site models.Site) (string, bool)
	Pending(site models.Site) bool
}

// AvailabilityReconciler is the availability dependency of the engine.
type AvailabilityReconciler interface {
	AvailabilitySource
	Refresh(ctx context.Context, date string, sites []models.Site)
	BookingURLFor(site models.Site, selectedDate string) string
}

// Engine owns the selected date and filter state and drives weather and
// availability fetches from them. All mutating entry points are serialized.
type Engine struct {
	sites   []models.Site
	weather WeatherCoordinator
	avail   AvailabilityReconciler
	origin  geo.Point

	mu           sync.Mutex
	selectedDate string
	filters      FilterState
}

func New(sites []models.Site, w WeatherCoordinator, a AvailabilityReconciler, origin geo.Point) *Engine {
	return &Engine{
		sites:   sites,
		weather: w,
		avail:   a,
		origin:  origin,
		filters: DefaultFilters(),
	}
}

// Site looks up a catalog site by ID.
func (e *Engine) Site(id string) (models.Site, bool) {
	for _, s := range e.sites {
		if s.ID == id {
			return s, true
		}
	}
	return models.Site{}, false
}

// SelectedDate returns the currently selected date, "" when none.
func (e *Engine) SelectedDate() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selectedDate
}

// Filters returns the current filter state.
func (e *Engine) Filters() FilterState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.filters
}

// SetDate moves the selected-date state machine and triggers whatever
// fetches the transition requires. It blocks until the triggered wave has
// settled.
func (e *Engine) SetDate(ctx context.Context, date string) {
	e.mu.Lock()
	prev := e.selectedDate
	if date == prev {
		e.mu.Unlock()
		return
	}
	e.selectedDate = date
	e.mu.Unlock()

	switch {
	case date == "":
		// Date cleared: availability state empties; weather stays cached
		// but no longer feeds any predicate.
		e.avail.Refresh(ctx, "", e.sites)
	case prev == "":
		e.avail.Refresh(ctx, date, e.sites)
		e.fetchWave(ctx, true)
	default:
		// Date changed: region-keyed weather entries would leak across
		// dates, so the cache is cleared outright and the wave bypasses it.
		e.weather.Reset()
		e.avail.Refresh(ctx, date, e.sites)
		e.fetchWave(ctx, false)
	}
}

// SetFilters replaces the filter state. While a date is selected, sites newly
// entering the capped window get weather fetches; already-resolved keys are
// untouched.
func (e *Engine) SetFilters(ctx context.Context, filters FilterState) {
	e.mu.Lock()
	e.filters = filters
	dateSelected := e.selectedDate != ""
	e.mu.Unlock()

	if dateSelected {
		e.fetchWave(ctx, true)
	}
}

// Visible recomputes the full visible set from current state.
func (e *Engine) Visible() []models.Site {
	e.mu.Lock()
	filters := e.filters
	date := e.selectedDate
	e.mu.Unlock()
	return VisibleSites(e.sites, filters, date, e.weather, e.avail, e.origin)
}

// fetchWave ensures weather for the first WeatherFetchCap currently visible
// sites, in catalog order. Resolution order is unordered; each result merges
// into the shared cache per key.
func (e *Engine) fetchWave(ctx context.Context, allowCache bool) {
	visible := e.Visible()
	if len(visible) > WeatherFetchCap {
		visible = visible[:WeatherFetchCap]
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(waveConcurrency)
	for _, site := range visible {
		site := site
		g.Go(func() error {
			e.weather.Ensure(ctx, site, allowCache)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Printf("engine: fetch wave: %v", err)
	}
}

// WeatherState labels where a site's forecast is in its lifecycle.
type WeatherState string

const (
	WeatherNone    WeatherState = "none"    // no date selected
	WeatherReady   WeatherState = "ready"   // summary resolved
	WeatherPending WeatherState = "pending" // in flight or outside the capped window
	WeatherError   WeatherState = "error"   // fetch failed for the site's key
)

// SiteView is the per-site summary the result list renders from.
type SiteView struct {
	Site         models.Site               `json:"site"`
	Weather      *models.WeatherSummary    `json:"weather,omitempty"`
	WeatherState WeatherState              `json:"weatherState"`
	WeatherError string                    `json:"weatherError,omitempty"`
	DriveMinutes *int                      `json:"driveMinutes,omitempty"`
	DriveLabel   string                    `json:"driveLabel,omitempty"`
	Availability models.AvailabilityStatus `json:"availability"`
	BookingURL   string                    `json:"bookingUrl,omitempty"`
}

// Snapshot returns the visible set fused with live per-site state.
func (e *Engine) Snapshot() []SiteView {
	e.mu.Lock()
	date := e.selectedDate
	e.mu.Unlock()

	visible := e.Visible()
	views := make([]SiteView, 0, len(visible))
	for _, site := range visible {
		v := SiteView{
			Site:         site,
			Availability: e.avail.StatusFor(site.ID, date),
			BookingURL:   e.avail.BookingURLFor(site, date),
			WeatherState: WeatherNone,
		}

		if site.HasCoordinates() {
			minutes := geo.DriveMinutes(geo.DistanceKm(e.origin, geo.Point{Lat: site.Lat, Lng: site.Lng}))
			v.DriveMinutes = &minutes
			v.DriveLabel = geo.FormatDuration(minutes)
		}

		if date != "" {
			switch {
			case e.weather.Pending(site):
				v.WeatherState = WeatherPending
			default:
				if summary := e.weather.SummaryFor(site, date); summary != nil {
					v.Weather = summary
					v.WeatherState = WeatherReady
				} else if msg, failed := e.weather.ErrorFor(site); failed {
					v.WeatherState = WeatherError
					v.WeatherError = msg
				} else {
					v.WeatherState = WeatherPending
				}
			}
		}

		views = append(views, v)
	}
	return views
}
