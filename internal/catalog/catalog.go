// Package catalog loads the static site catalog and the region-centroid
// document. Both are generated offline and consumed here as opaque read-only
// JSON; a catalog that fails to load is fatal to the session.
package catalog

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/campcaster/campcaster/internal/geo"
	"github.com/campcaster/campcaster/internal/models"
)

// rawSite mirrors the sites.json schema. Coordinates are pointers so a
// missing value is distinguishable from a real 0.
type rawSite struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	ParkName      string            `json:"parkName"`
	Lat           *float64          `json:"lat"`
	Lng           *float64          `json:"lng"`
	LGA           *string           `json:"lga"`
	TourismRegion *string           `json:"tourismRegion"`
	Facilities    models.Facilities `json:"facilities"`
	SourceURL     *string           `json:"sourceUrl"`
	LandscapeTags []string          `json:"landscapeTags"`
	AnimalsFauna  []string          `json:"animalsFauna"`
}

// Centroid is a region-level forecast point.
type Centroid struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Load reads and validates the site catalog. Any parse error, missing ID, or
// duplicate ID rejects the whole document; no partial catalog is accepted.
func Load(path string) ([]models.Site, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes a catalog document.
func Parse(data []byte) ([]models.Site, error) {
	var raw []rawSite
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	sites := make([]models.Site, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for i, r := range raw {
		if r.ID == "" {
			return nil, fmt.Errorf("catalog entry %d has no id", i)
		}
		if _, dup := seen[r.ID]; dup {
			return nil, fmt.Errorf("duplicate site id %q", r.ID)
		}
		seen[r.ID] = struct{}{}

		s := models.Site{
			ID:            r.ID,
			Name:          r.Name,
			ParkName:      r.ParkName,
			Lat:           math.NaN(),
			Lng:           math.NaN(),
			Facilities:    r.Facilities,
			LandscapeTags: r.LandscapeTags,
			AnimalsFauna:  r.AnimalsFauna,
		}
		// A site keeps both coordinates or neither.
		if r.Lat != nil && r.Lng != nil &&
			!math.IsNaN(*r.Lat) && !math.IsInf(*r.Lat, 0) &&
			!math.IsNaN(*r.Lng) && !math.IsInf(*r.Lng, 0) {
			s.Lat = *r.Lat
			s.Lng = *r.Lng
		}
		if r.LGA != nil {
			s.LGA = *r.LGA
		}
		if r.TourismRegion != nil {
			s.TourismRegion = *r.TourismRegion
		}
		if r.SourceURL != nil {
			s.SourceURL = *r.SourceURL
		}
		sites = append(sites, s)
	}
	return sites, nil
}

// LoadCentroids reads the region-label to centroid mapping. A missing file is
// not an error; forecasts then fall back to per-site coordinates.
func LoadCentroids(path string) (map[string]Centroid, error) {
	if path == "" {
		return map[string]Centroid{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]Centroid{}, nil
		}
		return nil, fmt.Errorf("read centroids: %w", err)
	}
	var centroids map[string]Centroid
	if err := json.Unmarshal(data, &centroids); err != nil {
		return nil, fmt.Errorf("parse centroids: %w", err)
	}
	return centroids, nil
}

// ForecastPoint picks the coordinates to request a forecast for: the region
// centroid when the site's weather key has one, else the site's own position.
// ok is false when neither is usable.
func ForecastPoint(site models.Site, centroids map[string]Centroid) (geo.Point, bool) {
	if c, found := centroids[site.WeatherKey()]; found {
		return geo.Point{Lat: c.Lat, Lng: c.Lng}, true
	}
	if site.HasCoordinates() {
		return geo.Point{Lat: site.Lat, Lng: site.Lng}, true
	}
	return geo.Point{}, false
}
