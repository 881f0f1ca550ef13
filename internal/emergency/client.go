// Package emergency surfaces active VicEmergency warnings and incidents near
// campground sites, so a planned trip can be checked against fires, floods,
// and other hazards before booking.
package emergency

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/sync/singleflight"

	"github.com/campcaster/campcaster/internal/geo"
	"github.com/campcaster/campcaster/internal/htmlutil"
	"github.com/campcaster/campcaster/internal/httputil"
	"github.com/campcaster/campcaster/internal/metrics"
)

const (
	DefaultFeedURL = "https://emergency.vic.gov.au/public/events-geojson.json"

	// DefaultRadiusKM bounds the vicinity searched around a site. 25km
	// covers the site's park and its access roads.
	DefaultRadiusKM = 25.0

	// The statewide feed changes on the order of minutes; one fetch serves
	// every site queried within the window.
	feedTTL = 2 * time.Minute
)

// Severity orders alerts most urgent first.
const (
	SeverityEmergency = iota
	SeverityWatchAct
	SeverityAdvice
	SeverityCommunity
	SeverityUnknown
)

// Alert is a single active event with its distance from the queried site.
type Alert struct {
	ID          string    `json:"id"`
	Category    string    `json:"category"`
	SubCategory string    `json:"subCategory,omitempty"`
	Name        string    `json:"name"`
	Status      string    `json:"status,omitempty"`
	Location    string    `json:"location,omitempty"`
	DistanceKm  float64   `json:"distanceKm"`
	Severity    int       `json:"severity"`
	Created     time.Time `json:"created,omitzero"`
	Updated     time.Time `json:"updated,omitzero"`
	Headline    string    `json:"headline,omitempty"`
	Body        string    `json:"body,omitempty"`
	URL         string    `json:"url"`
	Lat         float64   `json:"lat"`
	Lng         float64   `json:"lng"`
}

// SeverityName returns a human-readable severity label.
func (a Alert) SeverityName() string {
	switch a.Severity {
	case SeverityEmergency:
		return "Emergency Warning"
	case SeverityWatchAct:
		return "Watch and Act"
	case SeverityAdvice:
		return "Advice"
	case SeverityCommunity:
		return "Community Information"
	default:
		return "Alert"
	}
}

// IsUrgent reports whether the alert is Emergency or Watch and Act level.
func (a Alert) IsUrgent() bool {
	return a.Severity <= SeverityWatchAct
}

// Client fetches the statewide VicEmergency feed and answers per-site
// vicinity queries against a short-lived cached copy.
type Client struct {
	feedURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker

	mu        sync.Mutex
	events    []Alert
	lastFetch time.Time

	flight singleflight.Group
}

func NewClient(feedURL string) *Client {
	if feedURL == "" {
		feedURL = DefaultFeedURL
	}
	return &Client{
		feedURL: feedURL,
		client:  httputil.NewClient(),
		breaker: httputil.NewBreaker("vicemergency"),
	}
}

// Near returns active alerts within radiusKM of the point, most urgent first,
// nearest first within a severity. The statewide feed is refetched at most
// once per cache window regardless of how many sites are queried.
func (c *Client) Near(ctx context.Context, point geo.Point, radiusKM float64) ([]Alert, error) {
	if radiusKM <= 0 {
		radiusKM = DefaultRadiusKM
	}

	events, err := c.statewide(ctx)
	if err != nil {
		return nil, err
	}

	var alerts []Alert
	for _, ev := range events {
		dist := geo.DistanceKm(point, geo.Point{Lat: ev.Lat, Lng: ev.Lng})
		if dist > radiusKM {
			continue
		}
		ev.DistanceKm = dist
		alerts = append(alerts, ev)
	}

	sort.Slice(alerts, func(i, j int) bool {
		if alerts[i].Severity != alerts[j].Severity {
			return alerts[i].Severity < alerts[j].Severity
		}
		return alerts[i].DistanceKm < alerts[j].DistanceKm
	})
	return alerts, nil
}

// statewide returns the cached event list, refetching when stale. Callers
// racing on a stale cache collapse into a single feed fetch.
func (c *Client) statewide(ctx context.Context) ([]Alert, error) {
	if events, ok := c.cached(); ok {
		return events, nil
	}

	v, err, _ := c.flight.Do("feed", func() (interface{}, error) {
		// A caller that joined late may find the cache already refreshed.
		if events, ok := c.cached(); ok {
			return events, nil
		}

		body, err := httputil.Fetch(ctx, c.client, c.breaker, c.feedURL)
		if err != nil {
			metrics.AlertFetchesTotal.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("fetch events: %w", err)
		}

		var doc geoJSON
		if err := json.Unmarshal(body, &doc); err != nil {
			metrics.AlertFetchesTotal.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("parse events: %w", err)
		}
		metrics.AlertFetchesTotal.WithLabelValues("ok").Inc()

		events := collect(doc.Features)

		c.mu.Lock()
		c.events = events
		c.lastFetch = time.Now()
		c.mu.Unlock()
		return events, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Alert), nil
}

func (c *Client) cached() ([]Alert, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.events != nil && time.Since(c.lastFetch) < feedTTL {
		return c.events, true
	}
	return nil, false
}

// collect turns feed features into alerts, dropping non-events and features
// without a usable position, and deduplicating by event ID.
func collect(features []feature) []Alert {
	events := make([]Alert, 0, len(features))
	seen := make(map[string]bool, len(features))

	for _, f := range features {
		if f.Properties.FeedType != "warning" && f.Properties.FeedType != "incident" {
			continue
		}

		id := string(f.Properties.ID)
		if id == "" {
			id = string(f.Properties.SourceID)
		}
		if id == "" || seen[id] {
			continue
		}

		lat, lng, ok := firstPoint(f.Geometry)
		if !ok {
			continue
		}
		seen[id] = true

		ev := Alert{
			ID:          id,
			Category:    f.Properties.Category1,
			SubCategory: f.Properties.Category2,
			Name:        f.Properties.Name,
			Status:      f.Properties.Status,
			Location:    f.Properties.Location,
			Severity:    parseSeverity(f.Properties.Name, f.Properties.SourceTitle),
			Headline:    f.Properties.WebHeadline,
			Body:        htmlutil.ToText(f.Properties.WebBody),
			URL:         detailURL(id),
			Lat:         lat,
			Lng:         lng,
		}
		if ev.Headline == "" {
			ev.Headline = f.Properties.Text
		}
		if t, err := time.Parse(time.RFC3339, f.Properties.Created); err == nil {
			ev.Created = t
		}
		if t, err := time.Parse(time.RFC3339, f.Properties.Updated); err == nil {
			ev.Updated = t
		}
		events = append(events, ev)
	}
	return events
}

func parseSeverity(name, sourceTitle string) int {
	check := strings.ToLower(name + " " + sourceTitle)
	switch {
	case strings.Contains(check, "emergency"):
		return SeverityEmergency
	case strings.Contains(check, "watch") && strings.Contains(check, "act"):
		return SeverityWatchAct
	case strings.Contains(check, "warning"):
		return SeverityWatchAct
	case strings.Contains(check, "advice"):
		return SeverityAdvice
	case strings.Contains(check, "community"):
		return SeverityCommunity
	default:
		return SeverityUnknown
	}
}

func detailURL(id string) string {
	return fmt.Sprintf("https://emergency.vic.gov.au/respond/#!/warning/%s/moreinfo", id)
}

// firstPoint extracts the first usable coordinate pair from a geometry.
// GeoJSON orders coordinates [lon, lat].
func firstPoint(g *geometry) (lat, lng float64, ok bool) {
	if g == nil {
		return 0, 0, false
	}
	switch g.Type {
	case "Point":
		if len(g.Coordinates) >= 2 {
			return g.Coordinates[1], g.Coordinates[0], true
		}
	case "GeometryCollection":
		for i := range g.Geometries {
			if lat, lng, ok := firstPoint(&g.Geometries[i]); ok {
				return lat, lng, ok
			}
		}
	default:
		// Polygons collapse to their first vertex during decoding.
		if len(g.Coordinates) >= 2 {
			return g.Coordinates[1], g.Coordinates[0], true
		}
	}
	return 0, 0, false
}
