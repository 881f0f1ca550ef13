package catalog

import "strings"

const bookingBaseURL = "https://bookings.parks.vic.gov.au/"

// genericSlug is the placeholder final path segment on park pages that do not
// identify a bookable product.
const genericSlug = "camping"

// BookingURL derives a booking link from a site's source URL by taking the
// final non-empty path segment. Returns "" when no link can be derived.
func BookingURL(sourceURL string) string {
	if sourceURL == "" {
		return ""
	}
	trimmed := strings.TrimRight(sourceURL, "/")
	idx := strings.LastIndex(trimmed, "/")
	if idx < 0 {
		return ""
	}
	slug := trimmed[idx+1:]
	if slug == "" || slug == genericSlug {
		return ""
	}
	return bookingBaseURL + slug
}

// AliasBookingURL composes a booking link from an availability-feed alias.
// The alias, when matched, is higher confidence than the source-URL
// derivation and takes precedence.
func AliasBookingURL(alias string) string {
	if alias == "" {
		return ""
	}
	return bookingBaseURL + alias
}
