// Package store persists the cross-session weather cache. The cache is
// best-effort: callers treat every error here as a cache miss, never as a
// reason to fail a fetch.
package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/campcaster/campcaster/internal/models"
)

// WeatherCache is the injected persistence capability for the weather
// coordinator. Implementations must be safe for concurrent use.
type WeatherCache interface {
	// Get returns the cached record for a key if one exists and is younger
	// than ttl. Corrupt or expired entries are misses.
	Get(key string, ttl time.Duration) (models.WeatherRecord, bool, error)
	Put(key string, rec models.WeatherRecord) error
	Clear() error
}

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Migrate() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS weather_cache (
    key TEXT PRIMARY KEY,
    fetched_at INTEGER NOT NULL,
    payload TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_weather_cache_fetched ON weather_cache(fetched_at);
`)
	return err
}

func (s *Store) Get(key string, ttl time.Duration) (models.WeatherRecord, bool, error) {
	var fetchedAtMs int64
	var payload string
	err := s.db.QueryRow(
		`SELECT fetched_at, payload FROM weather_cache WHERE key = ?`, key,
	).Scan(&fetchedAtMs, &payload)
	if err == sql.ErrNoRows {
		return models.WeatherRecord{}, false, nil
	}
	if err != nil {
		return models.WeatherRecord{}, false, err
	}

	fetchedAt := time.UnixMilli(fetchedAtMs)
	if time.Since(fetchedAt) >= ttl {
		return models.WeatherRecord{}, false, nil
	}

	var days []models.DayForecast
	if err := json.Unmarshal([]byte(payload), &days); err != nil {
		// Corrupt cache contents are a miss, not a failure.
		return models.WeatherRecord{}, false, nil
	}
	return models.WeatherRecord{Days: days, FetchedAt: fetchedAt}, true, nil
}

func (s *Store) Put(key string, rec models.WeatherRecord) error {
	payload, err := json.Marshal(rec.Days)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO weather_cache (key, fetched_at, payload)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			fetched_at = excluded.fetched_at,
			payload = excluded.payload
	`, key, rec.FetchedAt.UnixMilli(), string(payload))
	return err
}

func (s *Store) Clear() error {
	_, err := s.db.Exec(`DELETE FROM weather_cache`)
	return err
}
