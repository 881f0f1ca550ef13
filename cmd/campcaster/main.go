package main

import (
	"context"
	"database/sql"
	"log"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"
	_ "modernc.org/sqlite"

	"github.com/campcaster/campcaster/internal/api"
	"github.com/campcaster/campcaster/internal/availability"
	"github.com/campcaster/campcaster/internal/catalog"
	"github.com/campcaster/campcaster/internal/emergency"
	"github.com/campcaster/campcaster/internal/engine"
	"github.com/campcaster/campcaster/internal/firedanger"
	"github.com/campcaster/campcaster/internal/geo"
	"github.com/campcaster/campcaster/internal/store"
	"github.com/campcaster/campcaster/internal/weather"
)

type cli struct {
	Sites     string `help:"Path to the site catalog JSON." default:"data/sites.json" env:"CAMPCASTER_SITES"`
	Centroids string `help:"Path to the region centroid JSON. Missing file is tolerated." default:"data/centroids.json" env:"CAMPCASTER_CENTROIDS"`
	DB        string `help:"Path to the SQLite weather cache." default:"data/campcaster.db" env:"CAMPCASTER_DB"`
	Port      string `help:"HTTP server port." default:"8080" env:"PORT"`

	OriginLat float64 `help:"Trip origin latitude (default Melbourne CBD)." default:"-37.8136"`
	OriginLng float64 `help:"Trip origin longitude (default Melbourne CBD)." default:"144.9631"`

	WeatherURL      string `help:"Forecast provider base URL." default:"" env:"CAMPCASTER_WEATHER_URL"`
	AvailabilityURL string `help:"Booking platform listing base URL." default:"" env:"CAMPCASTER_AVAILABILITY_URL"`
	CategoryID      int    `help:"Booking platform listing category." default:"29"`
	AlertsURL       string `help:"VicEmergency events feed URL." default:"" env:"CAMPCASTER_ALERTS_URL"`
	FireDangerURL   string `help:"CFA fire danger RSS base URL." default:"" env:"CAMPCASTER_FIREDANGER_URL"`
}

func main() {
	var flags cli
	kong.Parse(&flags,
		kong.Name("campcaster"),
		kong.Description("Trip-planning engine for Victorian campgrounds."),
		kong.Configuration(kongdotenv.ENVFileReader, ".env"),
	)

	sites, err := catalog.Load(flags.Sites)
	if err != nil {
		log.Fatalf("load catalog: %v", err)
	}
	log.Printf("catalog loaded: %d sites", len(sites))

	centroids, err := catalog.LoadCentroids(flags.Centroids)
	if err != nil {
		log.Fatalf("load centroids: %v", err)
	}
	if len(centroids) > 0 {
		log.Printf("centroids loaded: %d regions", len(centroids))
	}

	db, err := sql.Open("sqlite", flags.DB)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")

	st := store.New(db)
	if err := st.Migrate(); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	log.Println("database migrated")

	coord := weather.NewCoordinator(weather.NewClient(flags.WeatherURL), st, centroids)
	recon := availability.NewReconciler(availability.NewClient(flags.AvailabilityURL, flags.CategoryID))
	eng := engine.New(sites, coord, recon, geo.Point{Lat: flags.OriginLat, Lng: flags.OriginLng})
	alerts := emergency.NewClient(flags.AlertsURL)
	danger := firedanger.NewService(flags.FireDangerURL)
	server := api.NewServer(eng, coord, alerts, danger, flags.Port)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Printf("starting server on :%s", flags.Port)
	if err := server.Run(ctx); err != nil {
		log.Fatalf("server: %v", err)
	}
}
