// Package api exposes the engine over HTTP. The rendering layer consumes
// these JSON contracts; no HTML is served here.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/campcaster/campcaster/internal/emergency"
	"github.com/campcaster/campcaster/internal/engine"
	"github.com/campcaster/campcaster/internal/firedanger"
	"github.com/campcaster/campcaster/internal/geo"
	"github.com/campcaster/campcaster/internal/weather"
)

// AlertSource answers vicinity queries against the VicEmergency feed.
type AlertSource interface {
	Near(ctx context.Context, point geo.Point, radiusKM float64) ([]emergency.Alert, error)
}

// FireDangerSource answers per-district fire danger queries.
type FireDangerSource interface {
	Ratings(ctx context.Context, district string) ([]firedanger.DayRating, error)
}

type Server struct {
	engine  *engine.Engine
	weather *weather.Coordinator
	alerts  AlertSource
	danger  FireDangerSource
	port    string
}

func NewServer(eng *engine.Engine, coord *weather.Coordinator, alerts AlertSource, danger FireDangerSource, port string) *Server {
	return &Server{
		engine:  eng,
		weather: coord,
		alerts:  alerts,
		danger:  danger,
		port:    port,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/api/sites", s.handleSites)
	mux.HandleFunc("/api/date", s.handleDate)
	mux.HandleFunc("/api/filters", s.handleFilters)
	mux.HandleFunc("/api/weather", s.handleWeather)
	mux.HandleFunc("/api/alerts", s.handleAlerts)
	mux.HandleFunc("/api/firedanger", s.handleFireDanger)
	return mux
}

func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:    ":" + s.port,
		Handler: s.Handler(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
