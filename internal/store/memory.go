package store

import (
	"sync"
	"time"

	"github.com/campcaster/campcaster/internal/models"
)

// Memory is a concurrency-safe in-memory WeatherCache, used in tests and when
// no database path is configured.
type Memory struct {
	mu      sync.RWMutex
	records map[string]models.WeatherRecord
}

func NewMemory() *Memory {
	return &Memory{records: make(map[string]models.WeatherRecord)}
}

func (m *Memory) Get(key string, ttl time.Duration) (models.WeatherRecord, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[key]
	if !ok || time.Since(rec.FetchedAt) >= ttl {
		return models.WeatherRecord{}, false, nil
	}
	return rec, true, nil
}

func (m *Memory) Put(key string, rec models.WeatherRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[key] = rec
	return nil
}

func (m *Memory) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = make(map[string]models.WeatherRecord)
	return nil
}
