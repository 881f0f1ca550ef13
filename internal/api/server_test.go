package api_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/campcaster/campcaster/internal/api"
	"github.com/campcaster/campcaster/internal/availability"
	"github.com/campcaster/campcaster/internal/catalog"
	"github.com/campcaster/campcaster/internal/emergency"
	"github.com/campcaster/campcaster/internal/engine"
	"github.com/campcaster/campcaster/internal/firedanger"
	"github.com/campcaster/campcaster/internal/geo"
	"github.com/campcaster/campcaster/internal/models"
	"github.com/campcaster/campcaster/internal/weather"
)

type fixedForecasts struct{}

func (fixedForecasts) FetchDaily(ctx context.Context, point geo.Point) (models.WeatherRecord, error) {
	return models.WeatherRecord{
		Days: []models.DayForecast{
			{Date: "2026-09-05", MinTempC: 8, MaxTempC: 21, RainProbPct: 10, RainSumMM: 0},
		},
		FetchedAt: time.Now(),
	}, nil
}

type fixedFeed struct{}

func (fixedFeed) FetchEntries(ctx context.Context, date string) ([]models.AvailabilityEntry, error) {
	return []models.AvailabilityEntry{
		{Alias: "wye-river-campground", IsBookable: true, IsBookableAndAvailable: true},
	}, nil
}

func setupServer(t *testing.T) *api.Server {
	t.Helper()
	sites := []models.Site{
		{ID: "wye", Name: "Wye River Campground", ParkName: "Great Otway National Park",
			LGA: "Colac Otway Shire", Lat: -38.6334, Lng: 143.8910},
		{ID: "tidal", Name: "Tidal River", ParkName: "Wilsons Promontory National Park",
			Lat: -39.0306, Lng: 146.3239},
	}
	coord := weather.NewCoordinator(fixedForecasts{}, nil, nil)
	recon := availability.NewReconciler(fixedFeed{})
	eng := engine.New(sites, coord, recon, geo.Point{Lat: -37.8136, Lng: 144.9631})
	return api.NewServer(eng, coord, stubAlerts{}, stubDanger{}, "8080")
}

type stubAlerts struct{}

func (stubAlerts) Near(ctx context.Context, point geo.Point, radiusKM float64) ([]emergency.Alert, error) {
	return []emergency.Alert{
		{ID: "88123", Category: "Fire", Name: "Watch and Act", DistanceKm: 4.2, Severity: emergency.SeverityWatchAct},
	}, nil
}

type stubDanger struct{}

func (stubDanger) Ratings(ctx context.Context, district string) ([]firedanger.DayRating, error) {
	return []firedanger.DayRating{
		{Date: "2026-09-05", Rating: firedanger.RatingModerate, District: "South West"},
	}, nil
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()
	srv := setupServer(t)

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Errorf("unexpected body: %s", w.Body.String())
	}
}

func TestSitesEndpoint(t *testing.T) {
	t.Parallel()
	srv := setupServer(t)

	req := httptest.NewRequest("GET", "/api/sites", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp struct {
		Date  string `json:"date"`
		Count int    `json:"count"`
		Sites []struct {
			Site struct {
				ID string `json:"id"`
			} `json:"site"`
			Availability string `json:"availability"`
		} `json:"sites"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 2 || len(resp.Sites) != 2 {
		t.Fatalf("count = %d, want 2", resp.Count)
	}
	if resp.Sites[0].Site.ID != "wye" {
		t.Errorf("first site = %q, want catalog order", resp.Sites[0].Site.ID)
	}
	if resp.Sites[0].Availability != "unknown" {
		t.Errorf("availability = %q, want unknown before a date is selected", resp.Sites[0].Availability)
	}
}

func TestSitesEncodesCoordinatelessSite(t *testing.T) {
	t.Parallel()

	// Catalog sites without lat/lng stay visible; internally their
	// coordinates are NaN, which must never leak into the JSON response.
	catalogJSON := `[
		{"id": "wye", "name": "Wye River Campground", "lat": -38.6334, "lng": 143.8910},
		{"id": "lost", "name": "Lost Hut Camp", "parkName": "Alpine National Park"}
	]`
	sites, err := catalog.Parse([]byte(catalogJSON))
	if err != nil {
		t.Fatalf("parse catalog: %v", err)
	}
	coord := weather.NewCoordinator(fixedForecasts{}, nil, nil)
	recon := availability.NewReconciler(fixedFeed{})
	eng := engine.New(sites, coord, recon, geo.Point{Lat: -37.8136, Lng: 144.9631})
	srv := api.NewServer(eng, coord, stubAlerts{}, stubDanger{}, "8080")

	req := httptest.NewRequest("GET", "/api/sites", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if w.Body.Len() == 0 {
		t.Fatal("empty body for a catalog with a coordinate-less site")
	}

	var resp struct {
		Sites []struct {
			Site struct {
				ID  string   `json:"id"`
				Lat *float64 `json:"lat"`
				Lng *float64 `json:"lng"`
			} `json:"site"`
		} `json:"sites"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Sites) != 2 {
		t.Fatalf("got %d sites, want both catalog sites visible", len(resp.Sites))
	}
	if resp.Sites[0].Site.ID != "wye" || resp.Sites[0].Site.Lat == nil {
		t.Errorf("wye should keep its coordinates: %+v", resp.Sites[0].Site)
	}
	if resp.Sites[1].Site.ID != "lost" {
		t.Fatalf("second site = %q, want lost", resp.Sites[1].Site.ID)
	}
	if resp.Sites[1].Site.Lat != nil || resp.Sites[1].Site.Lng != nil {
		t.Errorf("coordinate-less site should omit lat/lng: %+v", resp.Sites[1].Site)
	}
}

func TestDateRoundTrip(t *testing.T) {
	t.Parallel()
	srv := setupServer(t)

	req := httptest.NewRequest("POST", "/api/date", strings.NewReader(`{"date": "2026-09-05"}`))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != 200 {
		t.Fatalf("set date: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	req = httptest.NewRequest("GET", "/api/sites", nil)
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	var resp struct {
		Date  string `json:"date"`
		Sites []struct {
			Availability string `json:"availability"`
			WeatherState string `json:"weatherState"`
			BookingURL   string `json:"bookingUrl"`
		} `json:"sites"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Date != "2026-09-05" {
		t.Errorf("date = %q", resp.Date)
	}
	if resp.Sites[0].Availability != "available" {
		t.Errorf("wye availability = %q, want available", resp.Sites[0].Availability)
	}
	if resp.Sites[0].WeatherState != "ready" {
		t.Errorf("wye weather state = %q, want ready", resp.Sites[0].WeatherState)
	}
	if resp.Sites[0].BookingURL != "https://bookings.parks.vic.gov.au/wye-river-campground" {
		t.Errorf("booking url = %q", resp.Sites[0].BookingURL)
	}
}

func TestDateValidation(t *testing.T) {
	t.Parallel()
	srv := setupServer(t)

	for _, body := range []string{`{"date": "05/09/2026"}`, `{"date": "not-a-date"}`, `not json`} {
		req := httptest.NewRequest("POST", "/api/date", strings.NewReader(body))
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, req)
		if w.Code != 400 {
			t.Errorf("body %q: expected 400, got %d", body, w.Code)
		}
	}

	req := httptest.NewRequest("GET", "/api/date", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != 405 {
		t.Errorf("GET: expected 405, got %d", w.Code)
	}
}

func TestFiltersEndpoint(t *testing.T) {
	t.Parallel()
	srv := setupServer(t)

	body := `{"requiredFacilities": ["toilets"], "tolerateHeat": true, "tolerateRain": true, "query": "wye"}`
	req := httptest.NewRequest("POST", "/api/filters", strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	tests := []struct {
		name string
		body string
	}{
		{"unknown facility", `{"requiredFacilities": ["wifi"], "tolerateHeat": true, "tolerateRain": true}`},
		{"unknown status", `{"allowedStatuses": ["maybe"], "tolerateHeat": true, "tolerateRain": true}`},
		{"negative drive time", `{"maxDriveMinutes": -5, "tolerateHeat": true, "tolerateRain": true}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/filters", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			srv.Handler().ServeHTTP(w, req)
			if w.Code != 400 {
				t.Errorf("expected 400, got %d", w.Code)
			}
		})
	}
}

func TestAlertsEndpoint(t *testing.T) {
	t.Parallel()
	srv := setupServer(t)

	req := httptest.NewRequest("GET", "/api/alerts?id=wye", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		SiteID string `json:"siteId"`
		Alerts []struct {
			ID string `json:"id"`
		} `json:"alerts"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.SiteID != "wye" || len(resp.Alerts) != 1 || resp.Alerts[0].ID != "88123" {
		t.Errorf("unexpected response: %+v", resp)
	}

	req = httptest.NewRequest("GET", "/api/alerts?id=nowhere", nil)
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != 404 {
		t.Errorf("unknown site: expected 404, got %d", w.Code)
	}

	req = httptest.NewRequest("GET", "/api/alerts?id=wye&radius=-3", nil)
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != 400 {
		t.Errorf("bad radius: expected 400, got %d", w.Code)
	}
}

func TestFireDangerEndpoint(t *testing.T) {
	t.Parallel()
	srv := setupServer(t)

	req := httptest.NewRequest("GET", "/api/firedanger?district=south-west", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"MODERATE"`) {
		t.Errorf("unexpected body: %s", w.Body.String())
	}

	req = httptest.NewRequest("GET", "/api/firedanger?district=tasmania", nil)
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != 404 {
		t.Errorf("unknown district: expected 404, got %d", w.Code)
	}

	req = httptest.NewRequest("GET", "/api/firedanger", nil)
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != 400 {
		t.Errorf("missing district: expected 400, got %d", w.Code)
	}
}

func TestWeatherEndpoint(t *testing.T) {
	t.Parallel()
	srv := setupServer(t)

	req := httptest.NewRequest("POST", "/api/date", strings.NewReader(`{"date": "2026-09-05"}`))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	req = httptest.NewRequest("GET", "/api/weather?key=Colac+Otway+Shire", nil)
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"2026-09-05"`) {
		t.Errorf("unexpected body: %s", w.Body.String())
	}

	req = httptest.NewRequest("GET", "/api/weather?key=nowhere", nil)
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != 404 {
		t.Errorf("unknown key: expected 404, got %d", w.Code)
	}

	req = httptest.NewRequest("GET", "/api/weather", nil)
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != 400 {
		t.Errorf("missing key: expected 400, got %d", w.Code)
	}
}
