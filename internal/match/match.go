// Package match implements the name normalization used to reconcile the
// third-party availability feed (keyed by free-text operator names) against
// catalog site names.
package match

import (
	"sort"
	"strings"
)

// Stopwords are generic camping words that carry no identity and are dropped
// during tokenization.
var stopwords = map[string]struct{}{
	"campground": {},
	"camping":    {},
	"camp":       {},
	"area":       {},
	"national":   {},
	"state":      {},
	"regional":   {},
	"park":       {},
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
}

// Slugify lowercases a name and collapses every run of non-alphanumeric
// characters to a single hyphen, trimming leading and trailing hyphens.
func Slugify(s string) string {
	s = strings.ToLower(s)
	var b strings.Builder
	pendingHyphen := false
	for _, r := range s {
		if isAlnum(r) {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
		} else {
			pendingHyphen = true
		}
	}
	return b.String()
}

// Tokenize normalizes a name into its identifying word set: lowercase,
// separators replaced by spaces, the phrase "camping area" and generic
// stopwords removed.
func Tokenize(s string) map[string]struct{} {
	s = strings.ToLower(s)
	replacer := strings.NewReplacer("-", " ", "_", " ", ",", " ", "/", " ", "(", " ", ")", " ")
	s = replacer.Replace(s)
	s = strings.ReplaceAll(s, "camping area", " ")

	tokens := make(map[string]struct{})
	for _, tok := range strings.Fields(s) {
		if _, stop := stopwords[tok]; stop {
			continue
		}
		tokens[tok] = struct{}{}
	}
	return tokens
}

// TokenKey renders a token set as a stable string, for indexing and logging.
func TokenKey(tokens map[string]struct{}) string {
	keys := make([]string, 0, len(tokens))
	for t := range tokens {
		keys = append(keys, t)
	}
	sort.Strings(keys)
	return strings.Join(keys, " ")
}

// IsSubset reports whether every token in a is present in b.
func IsSubset(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		return false
	}
	for t := range a {
		if _, ok := b[t]; !ok {
			return false
		}
	}
	return true
}

// Overlaps reports whether a is a subset of b or b is a subset of a. The
// availability reconciler accepts a partial match in either direction.
func Overlaps(a, b map[string]struct{}) bool {
	return IsSubset(a, b) || IsSubset(b, a)
}
