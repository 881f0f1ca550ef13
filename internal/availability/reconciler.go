package availability

import (
	"context"
	"log"
	"sync"

	"github.com/campcaster/campcaster/internal/catalog"
	"github.com/campcaster/campcaster/internal/match"
	"github.com/campcaster/campcaster/internal/metrics"
	"github.com/campcaster/campcaster/internal/models"
)

// snapshot is the full reconciled availability result for one calendar date.
// It is built off to the side and swapped in whole; readers never see a mix
// of two dates.
type snapshot struct {
	date     string
	statuses map[string]models.AvailabilityStatus
	booking  map[string]string // site ID -> alias-derived booking URL
}

// Reconciler fetches the operator listing for the selected date and matches
// it against the catalog.
type Reconciler struct {
	fetcher Fetcher

	mu       sync.Mutex
	snap     snapshot
	want     string // date of the most recent Refresh call; stale results are discarded
	fetching string // date with a fetch currently in flight
}

func NewReconciler(fetcher Fetcher) *Reconciler {
	return &Reconciler{fetcher: fetcher}
}

// Refresh replaces the whole snapshot for a date. An empty date clears all
// availability state. A fetch or parse failure also clears it: a partial or
// stale snapshot is never left visible. Results that arrive after the wanted
// date has moved on are discarded.
func (r *Reconciler) Refresh(ctx context.Context, date string, sites []models.Site) {
	r.mu.Lock()
	if date == "" {
		r.want = ""
		r.snap = snapshot{}
		r.mu.Unlock()
		return
	}
	if r.want == date && r.snap.date == date {
		r.mu.Unlock()
		return
	}
	if r.fetching == date {
		// At most one fetch per date.
		r.mu.Unlock()
		return
	}
	r.want = date
	r.fetching = date
	r.mu.Unlock()

	entries, err := r.fetcher.FetchEntries(ctx, date)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fetching == date {
		r.fetching = ""
	}
	if r.want != date {
		// Selected date changed while the fetch was out.
		return
	}
	if err != nil {
		log.Printf("availability: refresh for %s: %v", date, err)
		metrics.AvailabilityRefreshesTotal.WithLabelValues("error").Inc()
		r.snap = snapshot{}
		r.want = ""
		return
	}

	r.snap = reconcile(date, entries, sites)
	metrics.AvailabilityRefreshesTotal.WithLabelValues("ok").Inc()
}

// StatusFor returns the site's status on the selected date. A missing or
// date-mismatched snapshot is unknown for every site, never shown as live.
func (r *Reconciler) StatusFor(siteID, selectedDate string) models.AvailabilityStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	if selectedDate == "" || r.snap.date != selectedDate {
		return models.StatusUnknown
	}
	if status, ok := r.snap.statuses[siteID]; ok {
		return status
	}
	return models.StatusUnknown
}

// BookingURLFor returns the booking link for a site: the matched feed alias
// when the snapshot has one, else the link derived from the catalog source
// URL.
func (r *Reconciler) BookingURLFor(site models.Site, selectedDate string) string {
	r.mu.Lock()
	if selectedDate != "" && r.snap.date == selectedDate {
		if u, ok := r.snap.booking[site.ID]; ok && u != "" {
			r.mu.Unlock()
			return u
		}
	}
	r.mu.Unlock()
	return catalog.BookingURL(site.SourceURL)
}

// SnapshotDate returns the date the current snapshot corresponds to, "" when
// none is held.
func (r *Reconciler) SnapshotDate() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snap.date
}

// indexed is one feed entry with its precomputed match forms.
type indexed struct {
	entry  models.AvailabilityEntry
	tokens map[string]struct{}
}

// reconcile matches every catalog site against the feed entries and builds a
// complete snapshot. Sites with no matching entry are unbookable: the feed
// covers all bookable operators, so absence means no booking proxy exists,
// which is distinct from the no-date-selected unknown.
func reconcile(date string, entries []models.AvailabilityEntry, sites []models.Site) snapshot {
	// Exact-identity index. Both the alias and the operator name slug point
	// at the entry; alias slugs win collisions.
	slugIndex := make(map[string]models.AvailabilityEntry)
	for _, e := range entries {
		if s := match.Slugify(e.OperatorName); s != "" {
			if _, taken := slugIndex[s]; !taken {
				slugIndex[s] = e
			}
		}
	}
	for _, e := range entries {
		if s := match.Slugify(e.Alias); s != "" {
			slugIndex[s] = e
		}
	}

	// Fuzzy index: one token set per entry, from the alias when present.
	tokenIndex := make([]indexed, 0, len(entries))
	for _, e := range entries {
		name := e.Alias
		if name == "" {
			name = e.OperatorName
		}
		tokens := match.Tokenize(name)
		if len(tokens) == 0 {
			continue
		}
		tokenIndex = append(tokenIndex, indexed{entry: e, tokens: tokens})
	}

	snap := snapshot{
		date:     date,
		statuses: make(map[string]models.AvailabilityStatus, len(sites)),
		booking:  make(map[string]string),
	}

	for _, site := range sites {
		entry, method := matchSite(site, slugIndex, tokenIndex)
		metrics.AvailabilityMatchesTotal.WithLabelValues(method).Inc()
		if method == "none" {
			snap.statuses[site.ID] = models.StatusUnbookable
			continue
		}
		snap.statuses[site.ID] = entry.Status()
		if u := catalog.AliasBookingURL(entry.Alias); u != "" {
			snap.booking[site.ID] = u
		}
	}
	return snap
}

// matchSite finds the feed entry for a site. An exact slug match on the site
// name short-circuits; otherwise the entry whose token set partially matches
// the site's in either direction with the most tokens wins.
func matchSite(site models.Site, slugIndex map[string]models.AvailabilityEntry, tokenIndex []indexed) (models.AvailabilityEntry, string) {
	if e, ok := slugIndex[match.Slugify(site.Name)]; ok {
		return e, "slug"
	}

	siteTokens := match.Tokenize(site.Name)
	if len(siteTokens) == 0 {
		return models.AvailabilityEntry{}, "none"
	}

	var best *indexed
	for i := range tokenIndex {
		cand := &tokenIndex[i]
		if !match.Overlaps(cand.tokens, siteTokens) {
			continue
		}
		if best == nil || len(cand.tokens) > len(best.tokens) {
			best = cand
		}
	}
	if best == nil {
		return models.AvailabilityEntry{}, "none"
	}
	return best.entry, "token"
}
