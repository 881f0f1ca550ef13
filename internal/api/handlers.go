package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/campcaster/campcaster/internal/emergency"
	"github.com/campcaster/campcaster/internal/engine"
	"github.com/campcaster/campcaster/internal/firedanger"
	"github.com/campcaster/campcaster/internal/geo"
	"github.com/campcaster/campcaster/internal/models"
)

// writeJSON marshals before touching the response so an encoding failure
// surfaces as a 500 instead of a half-written 200.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("api: encode response: %v", err)
		http.Error(w, `{"error":"internal encoding failure"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "ok",
		"selectedDate": s.engine.SelectedDate(),
		"weatherKeys":  len(s.weather.Keys()),
	})
}

type sitesResponse struct {
	Date    string             `json:"date"`
	Filters engine.FilterState `json:"filters"`
	Count   int                `json:"count"`
	Sites   []engine.SiteView  `json:"sites"`
}

func (s *Server) handleSites(w http.ResponseWriter, r *http.Request) {
	views := s.engine.Snapshot()
	writeJSON(w, http.StatusOK, sitesResponse{
		Date:    s.engine.SelectedDate(),
		Filters: s.engine.Filters(),
		Count:   len(views),
		Sites:   views,
	})
}

type dateRequest struct {
	Date string `json:"date"`
}

func (s *Server) handleDate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	var req dateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Date != "" {
		if _, err := time.Parse("2006-01-02", req.Date); err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
	}

	s.engine.SetDate(r.Context(), req.Date)
	writeJSON(w, http.StatusOK, map[string]string{"date": s.engine.SelectedDate()})
}

func (s *Server) handleFilters(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	filters := engine.DefaultFilters()
	if err := json.NewDecoder(r.Body).Decode(&filters); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	for _, key := range filters.RequiredFacilities {
		if !knownFacility(key) {
			writeError(w, http.StatusBadRequest, "unknown facility: "+key)
			return
		}
	}
	for _, st := range filters.AllowedStatuses {
		if !st.Valid() {
			writeError(w, http.StatusBadRequest, "unknown availability status: "+string(st))
			return
		}
	}
	if filters.MaxDriveMinutes < 0 {
		writeError(w, http.StatusBadRequest, "maxDriveMinutes must not be negative")
		return
	}

	s.engine.SetFilters(r.Context(), filters)
	writeJSON(w, http.StatusOK, s.engine.Filters())
}

func knownFacility(key string) bool {
	for _, k := range models.FacilityKeys {
		if k == key {
			return true
		}
	}
	return false
}

type weatherResponse struct {
	Key  string               `json:"key"`
	Days []models.DayForecast `json:"days"`
}

type alertsResponse struct {
	SiteID   string            `json:"siteId"`
	RadiusKm float64           `json:"radiusKm"`
	Alerts   []emergency.Alert `json:"alerts"`
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	if s.alerts == nil {
		writeError(w, http.StatusServiceUnavailable, "alerts not configured")
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "id parameter required")
		return
	}
	site, ok := s.engine.Site(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown site")
		return
	}
	if !site.HasCoordinates() {
		writeError(w, http.StatusUnprocessableEntity, "site has no coordinates")
		return
	}

	radius := emergency.DefaultRadiusKM
	if raw := r.URL.Query().Get("radius"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "radius must be a positive number of km")
			return
		}
		radius = parsed
	}

	alerts, err := s.alerts.Near(r.Context(), geo.Point{Lat: site.Lat, Lng: site.Lng}, radius)
	if err != nil {
		writeError(w, http.StatusBadGateway, "alert feed unavailable")
		return
	}
	if alerts == nil {
		alerts = []emergency.Alert{}
	}
	writeJSON(w, http.StatusOK, alertsResponse{SiteID: site.ID, RadiusKm: radius, Alerts: alerts})
}

type fireDangerResponse struct {
	District string                 `json:"district"`
	Days     []firedanger.DayRating `json:"days"`
}

func (s *Server) handleFireDanger(w http.ResponseWriter, r *http.Request) {
	if s.danger == nil {
		writeError(w, http.StatusServiceUnavailable, "fire danger not configured")
		return
	}

	district := r.URL.Query().Get("district")
	if district == "" {
		writeError(w, http.StatusBadRequest, "district parameter required")
		return
	}
	if _, known := firedanger.Districts[district]; !known {
		writeError(w, http.StatusNotFound, "unknown fire district")
		return
	}

	days, err := s.danger.Ratings(r.Context(), district)
	if err != nil {
		writeError(w, http.StatusBadGateway, "fire danger feed unavailable")
		return
	}
	if days == nil {
		days = []firedanger.DayRating{}
	}
	writeJSON(w, http.StatusOK, fireDangerResponse{District: district, Days: days})
}

func (s *Server) handleWeather(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		writeError(w, http.StatusBadRequest, "key parameter required")
		return
	}

	rec, ok := s.weather.Record(key)
	if !ok {
		writeError(w, http.StatusNotFound, "no forecast cached for key")
		return
	}
	writeJSON(w, http.StatusOK, weatherResponse{Key: key, Days: rec.Days})
}
