// Package availability maintains the per-date booking snapshot. The
// third-party feed is keyed by free-text operator names, so entries are
// reconciled against catalog sites by slug and token matching.
package availability

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/sony/gobreaker"

	"github.com/campcaster/campcaster/internal/httputil"
	"github.com/campcaster/campcaster/internal/models"
)

const (
	// DefaultBaseURL is the booking platform's operator listing endpoint.
	DefaultBaseURL = "https://webapi.bookeasy.com.au/api/listing"

	// DefaultCategoryID is the accommodation catalog queried on the booking
	// platform.
	DefaultCategoryID = 29
)

// Fetcher is the feed dependency of the Reconciler, substitutable in tests.
type Fetcher interface {
	FetchEntries(ctx context.Context, date string) ([]models.AvailabilityEntry, error)
}

// Client fetches the operator listing for a date from the booking platform.
type Client struct {
	baseURL    string
	categoryID int
	client     *http.Client
	breaker    *gobreaker.CircuitBreaker
}

func NewClient(baseURL string, categoryID int) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if categoryID == 0 {
		categoryID = DefaultCategoryID
	}
	return &Client{
		baseURL:    baseURL,
		categoryID: categoryID,
		client:     httputil.NewClient(),
		breaker:    httputil.NewBreaker("availability"),
	}
}

// listingResponse distinguishes an absent data field from an empty listing:
// the former is a malformed response and fails the whole refresh.
type listingResponse struct {
	Data json.RawMessage `json:"data"`
}

// FetchEntries returns the full operator listing for a date.
func (c *Client) FetchEntries(ctx context.Context, date string) ([]models.AvailabilityEntry, error) {
	params := url.Values{}
	params.Set("date", date)
	params.Set("categoryId", strconv.Itoa(c.categoryID))

	body, err := httputil.Fetch(ctx, c.client, c.breaker, c.baseURL+"?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("fetch availability: %w", err)
	}

	var resp listingResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse availability: %w", err)
	}
	if resp.Data == nil {
		return nil, fmt.Errorf("availability response has no data field")
	}

	var entries []models.AvailabilityEntry
	if err := json.Unmarshal(resp.Data, &entries); err != nil {
		return nil, fmt.Errorf("parse availability entries: %w", err)
	}
	return entries, nil
}
