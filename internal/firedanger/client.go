// Package firedanger fetches CFA fire danger ratings and Total Fire Ban
// declarations per fire district, so summer trips can be checked before a
// site is booked.
package firedanger

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/campcaster/campcaster/internal/htmlutil"
	"github.com/campcaster/campcaster/internal/httputil"
	"github.com/campcaster/campcaster/internal/metrics"
)

// Rating is a CFA fire danger rating level.
type Rating string

const (
	RatingNone         Rating = "NO RATING"
	RatingModerate     Rating = "MODERATE"
	RatingHigh         Rating = "HIGH"
	RatingExtreme      Rating = "EXTREME"
	RatingCatastrophic Rating = "CATASTROPHIC"
)

// Severity returns a numeric rank for sorting, higher is more dangerous.
func (r Rating) Severity() int {
	switch r {
	case RatingCatastrophic:
		return 4
	case RatingExtreme:
		return 3
	case RatingHigh:
		return 2
	case RatingModerate:
		return 1
	default:
		return 0
	}
}

// District identifies one of the nine CFA fire districts.
type District struct {
	Name string
	feed string
}

// Districts maps URL slugs to CFA fire districts. Every Victorian campground
// falls in exactly one district.
var Districts = map[string]District{
	"mallee":                   {Name: "Mallee", feed: "mallee"},
	"wimmera":                  {Name: "Wimmera", feed: "wimmera"},
	"south-west":               {Name: "South West", feed: "southwest"},
	"northern-country":         {Name: "Northern Country", feed: "northerncountry"},
	"north-central":            {Name: "North Central", feed: "northcentral"},
	"central":                  {Name: "Central", feed: "central"},
	"north-east":               {Name: "North East", feed: "northeast"},
	"west-and-south-gippsland": {Name: "West and South Gippsland", feed: "westandsouthgippsland"},
	"east-gippsland":           {Name: "East Gippsland", feed: "eastgippsland"},
}

// Slugs returns the known district slugs in sorted order.
func Slugs() []string {
	slugs := make([]string, 0, len(Districts))
	for slug := range Districts {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)
	return slugs
}

// DayRating is the fire danger outlook for one day in one district.
type DayRating struct {
	Date         string `json:"date"`
	Rating       Rating `json:"rating"`
	TotalFireBan bool   `json:"totalFireBan"`
	District     string `json:"district"`
}

const ratingsTTL = 30 * time.Minute

// Service fetches district RSS feeds on demand and caches per-district
// ratings. CFA publishes one feed per district.
type Service struct {
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker

	mu     sync.Mutex
	cached map[string]cachedRatings
}

type cachedRatings struct {
	ratings   []DayRating
	fetchedAt time.Time
}

const DefaultBaseURL = "https://www.cfa.vic.gov.au/cfa/rssfeed"

func NewService(baseURL string) *Service {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Service{
		baseURL: baseURL,
		client:  httputil.NewClient(),
		breaker: httputil.NewBreaker("cfa-firedanger"),
		cached:  make(map[string]cachedRatings),
	}
}

// Ratings returns the current outlook for a district slug, refetching the
// district feed when the cached copy is stale.
func (s *Service) Ratings(ctx context.Context, slug string) ([]DayRating, error) {
	district, ok := Districts[slug]
	if !ok {
		return nil, fmt.Errorf("unknown fire district %q", slug)
	}

	s.mu.Lock()
	if c, found := s.cached[slug]; found && time.Since(c.fetchedAt) < ratingsTTL {
		s.mu.Unlock()
		return c.ratings, nil
	}
	s.mu.Unlock()

	feedURL := fmt.Sprintf("%s/%s-firedistrict_rss.xml", s.baseURL, district.feed)
	body, err := httputil.Fetch(ctx, s.client, s.breaker, feedURL)
	if err != nil {
		metrics.FireDangerFetchesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("fetch fire danger feed: %w", err)
	}

	var doc rssDocument
	if err := xml.Unmarshal(body, &doc); err != nil {
		metrics.FireDangerFetchesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("parse fire danger feed: %w", err)
	}
	metrics.FireDangerFetchesTotal.WithLabelValues("ok").Inc()

	ratings := parseItems(district.Name, doc.Channel.Items)

	s.mu.Lock()
	s.cached[slug] = cachedRatings{ratings: ratings, fetchedAt: time.Now()}
	s.mu.Unlock()
	return ratings, nil
}

type rssDocument struct {
	XMLName xml.Name   `xml:"rss"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title string    `xml:"title"`
	Items []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Description string `xml:"description"`
}

var tfbPattern = regexp.MustCompile(`declared a day of Total Fire Ban`)

// parseItems extracts per-day ratings from feed items. Items whose title is
// not a date, such as the municipality restrictions summary, are skipped.
func parseItems(districtName string, items []rssItem) []DayRating {
	ratingPattern := regexp.MustCompile(
		regexp.QuoteMeta(districtName) + `:\s*(NO RATING|MODERATE|HIGH|EXTREME|CATASTROPHIC)`)

	var ratings []DayRating
	for _, item := range items {
		date, ok := parseItemDate(item.Title)
		if !ok {
			continue
		}

		day := DayRating{
			Date:     date.Format("2006-01-02"),
			Rating:   RatingNone,
			District: districtName,
		}
		desc := htmlutil.ToText(item.Description)
		if m := ratingPattern.FindStringSubmatch(desc); len(m) > 1 {
			day.Rating = Rating(m[1])
		}
		day.TotalFireBan = tfbPattern.MatchString(desc)

		ratings = append(ratings, day)
	}
	return ratings
}

// parseItemDate parses item titles like "Sunday, 25 January 2026".
func parseItemDate(title string) (time.Time, bool) {
	for _, format := range []string{"Monday, 2 January 2006", "Monday, 02 January 2006"} {
		if t, err := time.Parse(format, title); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
