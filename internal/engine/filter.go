// Package engine combines the static catalog with live weather and
// availability state into the visible result set, and decides which fetches
// each state change requires.
package engine

import (
	"strings"

	"github.com/campcaster/campcaster/internal/geo"
	"github.com/campcaster/campcaster/internal/metrics"
	"github.com/campcaster/campcaster/internal/models"
)

// FilterState holds the user's filter predicates. It is passed by value on
// every recomputation; the engine keeps no derived filter state around.
type FilterState struct {
	RequiredFacilities []string                    `json:"requiredFacilities"`
	AllowedStatuses    []models.AvailabilityStatus `json:"allowedStatuses"`
	TolerateHeat       bool                        `json:"tolerateHeat"`
	TolerateRain       bool                        `json:"tolerateRain"`
	MaxDriveMinutes    int                         `json:"maxDriveMinutes"`
	Query              string                      `json:"query"`
}

// DefaultFilters is the fully-permissive filter state.
func DefaultFilters() FilterState {
	return FilterState{TolerateHeat: true, TolerateRain: true}
}

// weatherFiltered reports whether the tolerances actually constrain anything.
func (f FilterState) weatherFiltered() bool {
	return !f.TolerateHeat || !f.TolerateRain
}

func (f FilterState) statusAllowed(status models.AvailabilityStatus) bool {
	for _, s := range f.AllowedStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// WeatherSource resolves a site's weather summary for a date, nil when
// unresolved.
type WeatherSource interface {
	SummaryFor(site models.Site, selectedDate string) *models.WeatherSummary
}

// AvailabilitySource resolves a site's booking status for a date.
type AvailabilitySource interface {
	StatusFor(siteID, selectedDate string) models.AvailabilityStatus
}

// VisibleSites evaluates every filter predicate against every site and
// returns the surviving sites in catalog order. The function always
// recomputes the full set from current state; it never patches a previous
// result.
func VisibleSites(
	sites []models.Site,
	filters FilterState,
	selectedDate string,
	ws WeatherSource,
	as AvailabilitySource,
	origin geo.Point,
) []models.Site {
	metrics.FilterEvaluationsTotal.Inc()

	visible := make([]models.Site, 0, len(sites))
	for _, site := range sites {
		if siteVisible(site, filters, selectedDate, ws, as, origin) {
			visible = append(visible, site)
		}
	}
	return visible
}

// siteVisible evaluates the predicates in a fixed order, short-circuiting on
// the first failure.
func siteVisible(
	site models.Site,
	filters FilterState,
	selectedDate string,
	ws WeatherSource,
	as AvailabilitySource,
	origin geo.Point,
) bool {
	// 1. Every required facility must be known present. False, absent, and
	// unknown all fail.
	for _, key := range filters.RequiredFacilities {
		flag := site.Facilities.Flag(key)
		if flag == nil || !*flag {
			return false
		}
	}

	// 2. Weather tolerances fail closed: no resolved summary means excluded.
	if filters.weatherFiltered() && selectedDate != "" {
		summary := ws.SummaryFor(site, selectedDate)
		if summary == nil {
			return false
		}
		if summary.TooHot && !filters.TolerateHeat {
			return false
		}
		if summary.Rainy && !filters.TolerateRain {
			return false
		}
	}

	// 3. Drive time from the fixed origin.
	if filters.MaxDriveMinutes > 0 {
		if !site.HasCoordinates() {
			return false
		}
		minutes := geo.DriveMinutes(geo.DistanceKm(origin, geo.Point{Lat: site.Lat, Lng: site.Lng}))
		if minutes > filters.MaxDriveMinutes {
			return false
		}
	}

	// 4. Availability allow-set, against the snapshot for the selected date.
	if len(filters.AllowedStatuses) > 0 && selectedDate != "" {
		if !filters.statusAllowed(as.StatusFor(site.ID, selectedDate)) {
			return false
		}
	}

	// 5. Free-text query against name and park name.
	if q := strings.TrimSpace(filters.Query); q != "" {
		q = strings.ToLower(q)
		if !strings.Contains(strings.ToLower(site.Name), q) &&
			!strings.Contains(strings.ToLower(site.ParkName), q) {
			return false
		}
	}

	return true
}
