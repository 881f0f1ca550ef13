// Package weather fetches and caches 14-day daily forecasts, one record per
// region key, so sites sharing a local-government area share one fetch.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"github.com/campcaster/campcaster/internal/geo"
	"github.com/campcaster/campcaster/internal/httputil"
	"github.com/campcaster/campcaster/internal/metrics"
	"github.com/campcaster/campcaster/internal/models"
)

const (
	DefaultBaseURL = "https://api.open-meteo.com/v1/forecast"
	forecastTimeZ  = "Australia/Melbourne"
	dailyMetrics   = "temperature_2m_max,temperature_2m_min,precipitation_probability_max,precipitation_sum"
)

// Fetcher is the forecast-provider dependency of the Coordinator,
// substitutable in tests.
type Fetcher interface {
	FetchDaily(ctx context.Context, point geo.Point) (models.WeatherRecord, error)
}

// Client fetches daily forecasts from the Open-Meteo API.
type Client struct {
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		client:  httputil.NewClient(),
		breaker: httputil.NewBreaker("open-meteo"),
	}
}

type dailyResponse struct {
	Daily struct {
		Time          []string  `json:"time"`
		TempMax       []float64 `json:"temperature_2m_max"`
		TempMin       []float64 `json:"temperature_2m_min"`
		PrecipProbMax []float64 `json:"precipitation_probability_max"`
		PrecipSum     []float64 `json:"precipitation_sum"`
	} `json:"daily"`
}

// FetchDaily requests the fixed 14-day daily forecast for a point. A response
// missing any of the four metric arrays, or with mismatched array lengths, is
// an error; the caller never sees a partial record.
func (c *Client) FetchDaily(ctx context.Context, point geo.Point) (models.WeatherRecord, error) {
	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(point.Lat, 'f', 4, 64))
	params.Set("longitude", strconv.FormatFloat(point.Lng, 'f', 4, 64))
	params.Set("daily", dailyMetrics)
	params.Set("forecast_days", strconv.Itoa(models.ForecastDays))
	params.Set("timezone", forecastTimeZ)

	start := time.Now()
	body, err := httputil.Fetch(ctx, c.client, c.breaker, c.baseURL+"?"+params.Encode())
	metrics.WeatherFetchLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.WeatherFetchesTotal.WithLabelValues("error").Inc()
		return models.WeatherRecord{}, fmt.Errorf("fetch forecast: %w", err)
	}

	var resp dailyResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		metrics.WeatherFetchesTotal.WithLabelValues("error").Inc()
		return models.WeatherRecord{}, fmt.Errorf("parse forecast: %w", err)
	}

	d := resp.Daily
	n := len(d.Time)
	if n == 0 {
		metrics.WeatherFetchesTotal.WithLabelValues("error").Inc()
		return models.WeatherRecord{}, fmt.Errorf("forecast response has no days")
	}
	if len(d.TempMax) != n || len(d.TempMin) != n || len(d.PrecipProbMax) != n || len(d.PrecipSum) != n {
		metrics.WeatherFetchesTotal.WithLabelValues("error").Inc()
		return models.WeatherRecord{}, fmt.Errorf("forecast response arrays inconsistent")
	}

	days := make([]models.DayForecast, n)
	for i := 0; i < n; i++ {
		days[i] = models.DayForecast{
			Date:        d.Time[i],
			MinTempC:    d.TempMin[i],
			MaxTempC:    d.TempMax[i],
			RainProbPct: d.PrecipProbMax[i],
			RainSumMM:   d.PrecipSum[i],
		}
	}

	metrics.WeatherFetchesTotal.WithLabelValues("ok").Inc()
	return models.WeatherRecord{Days: days, FetchedAt: time.Now()}, nil
}
