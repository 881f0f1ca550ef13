package models

import (
	"encoding/json"
	"math"
	"time"
)

// Facilities holds the scraped facility flags for a site. Each flag is
// tri-state: true, false, or nil when the scrape found no evidence either way.
type Facilities struct {
	DogFriendly        *bool    `json:"dogFriendly"`
	Toilets            *bool    `json:"toilets"`
	ToiletsType        *string  `json:"toiletsType"`
	Showers            *bool    `json:"showers"`
	BBQ                *bool    `json:"bbq"`
	FirePits           *bool    `json:"firePits"`
	PicnicTables       *bool    `json:"picnicTables"`
	DrinkingWater      *bool    `json:"drinkingWater"`
	VehicleAccess      *bool    `json:"vehicleAccess"`
	AccessibilityNotes *string  `json:"accessibilityNotes"`
	DogPolicy          []string `json:"dogPolicy"`
}

// FacilityKeys lists the filterable facility flags in display order.
var FacilityKeys = []string{
	"toilets", "showers", "bbq", "firePits", "picnicTables",
	"drinkingWater", "vehicleAccess", "dogFriendly",
}

// Flag returns the named facility flag, or nil for unknown facility keys.
func (f Facilities) Flag(key string) *bool {
	switch key {
	case "dogFriendly":
		return f.DogFriendly
	case "toilets":
		return f.Toilets
	case "showers":
		return f.Showers
	case "bbq":
		return f.BBQ
	case "firePits":
		return f.FirePits
	case "picnicTables":
		return f.PicnicTables
	case "drinkingWater":
		return f.DrinkingWater
	case "vehicleAccess":
		return f.VehicleAccess
	default:
		return nil
	}
}

// Site is one campground from the static catalog. The catalog is loaded once
// at startup and never mutated.
type Site struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	ParkName      string     `json:"parkName"`
	Lat           float64    `json:"lat"`
	Lng           float64    `json:"lng"`
	LGA           string     `json:"lga"`
	TourismRegion string     `json:"tourismRegion"`
	Facilities    Facilities `json:"facilities"`
	SourceURL     string     `json:"sourceUrl"`
	LandscapeTags []string   `json:"landscapeTags"`
	AnimalsFauna  []string   `json:"animalsFauna"`
}

// HasCoordinates reports whether the site has a usable lat/lng pair. Sites
// without one stay in the catalog but are excluded from geo-dependent
// features.
func (s Site) HasCoordinates() bool {
	return !math.IsNaN(s.Lat) && !math.IsInf(s.Lat, 0) &&
		!math.IsNaN(s.Lng) && !math.IsInf(s.Lng, 0)
}

// MarshalJSON omits lat/lng for sites without coordinates. Missing
// coordinates are NaN internally, which encoding/json cannot represent.
func (s Site) MarshalJSON() ([]byte, error) {
	type plain Site
	view := struct {
		plain
		Lat *float64 `json:"lat,omitempty"`
		Lng *float64 `json:"lng,omitempty"`
	}{plain: plain(s)}
	if s.HasCoordinates() {
		view.Lat = &s.Lat
		view.Lng = &s.Lng
	}
	return json.Marshal(view)
}

// WeatherKey is the grouping key under which sites share one forecast: the
// local-government-area label when the catalog has one, else the site's own ID.
func (s Site) WeatherKey() string {
	if s.LGA != "" {
		return s.LGA
	}
	return s.ID
}

// DayForecast is one day of a daily forecast.
type DayForecast struct {
	Date        string  `json:"date"` // YYYY-MM-DD in the forecast timezone
	MinTempC    float64 `json:"minTempC"`
	MaxTempC    float64 `json:"maxTempC"`
	RainProbPct float64 `json:"rainProbPct"`
	RainSumMM   float64 `json:"rainSumMM"`
}

// WeatherRecord is a complete forecast for one weather key. A record is
// either absent from the cache or complete, never partially populated.
type WeatherRecord struct {
	Days      []DayForecast `json:"days"`
	FetchedAt time.Time     `json:"fetchedAt"`
}

// Day returns the forecast entry for a calendar date, if present.
func (r WeatherRecord) Day(date string) (DayForecast, bool) {
	for _, d := range r.Days {
		if d.Date == date {
			return d, true
		}
	}
	return DayForecast{}, false
}

// Weather-risk thresholds. These two rules are the whole weather policy.
const (
	TooHotTempC  = 33.0
	RainyProbPct = 30.0
	RainySumMM   = 4.0
)

// ForecastDays is the fixed forecast horizon requested from the provider.
const ForecastDays = 14

// WeatherSummary is the per-day risk summary shown on a site card.
type WeatherSummary struct {
	Date        string  `json:"date"`
	MinTempC    float64 `json:"minTempC"`
	MaxTempC    float64 `json:"maxTempC"`
	RainProbPct float64 `json:"rainProbPct"`
	RainSumMM   float64 `json:"rainSumMM"`
	TooHot      bool    `json:"tooHot"`
	Rainy       bool    `json:"rainy"`
}

// Summarize derives the risk summary for one forecast day.
func Summarize(d DayForecast) WeatherSummary {
	return WeatherSummary{
		Date:        d.Date,
		MinTempC:    d.MinTempC,
		MaxTempC:    d.MaxTempC,
		RainProbPct: d.RainProbPct,
		RainSumMM:   d.RainSumMM,
		TooHot:      d.MaxTempC >= TooHotTempC,
		Rainy:       d.RainProbPct >= RainyProbPct || d.RainSumMM >= RainySumMM,
	}
}

// AvailabilityStatus classifies a site's bookability on the selected date.
type AvailabilityStatus string

const (
	StatusAvailable  AvailabilityStatus = "available"
	StatusBookedOut  AvailabilityStatus = "booked_out"
	StatusUnbookable AvailabilityStatus = "unbookable"
	StatusUnknown    AvailabilityStatus = "unknown"
)

// Valid reports whether s is one of the four defined statuses.
func (s AvailabilityStatus) Valid() bool {
	switch s {
	case StatusAvailable, StatusBookedOut, StatusUnbookable, StatusUnknown:
		return true
	}
	return false
}

// AvailabilityEntry is one operator row from the third-party availability
// feed. Alias and operator name are free text and only ever matched fuzzily.
type AvailabilityEntry struct {
	Alias                  string `json:"alias"`
	OperatorName           string `json:"operatorName"`
	IsBookable             bool   `json:"isBookable"`
	IsBookableAndAvailable bool   `json:"isBookableAndAvailable"`
}

// Status classifies the entry from its two booking flags.
func (e AvailabilityEntry) Status() AvailabilityStatus {
	switch {
	case e.IsBookableAndAvailable:
		return StatusAvailable
	case e.IsBookable:
		return StatusBookedOut
	default:
		return StatusUnbookable
	}
}
