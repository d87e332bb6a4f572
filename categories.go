package trendengine

import (
	"fmt"
	"strings"
	"time"
)

// Categories is the closed set of topics a trend can be filed under. The
// categories endpoint serves this list so admin picklists stay in sync.
var Categories = []string{
	"Arts & Entertainment",
	"Autos & Vehicles",
	"Beauty & Fitness",
	"Books & Literature",
	"Business & Industrial",
	"Computers & Electronics",
	"Finance",
	"Food & Drink",
	"Games",
	"Health",
	"Hobbies & Leisure",
	"Home & Garden",
	"Internet & Telecom",
	"Jobs & Education",
	"Law & Government",
	"News",
	"Online Communities",
	"People & Society",
	"Pets & Animals",
	"Real Estate",
	"Science",
	"Shopping",
	"Sports",
	"Travel & Transportation",
}

var categorySet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(Categories))
	for _, c := range Categories {
		m[c] = struct{}{}
	}
	return m
}()

// IsCategory reports whether c is one of Categories (exact match).
func IsCategory(c string) bool {
	_, ok := categorySet[c]
	return ok
}

// TimestampLayout is the stored form of a trend timestamp.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// NormalizeTimestamp parses s in one of the accepted layouts and returns it
// in UTC as TimestampLayout.
func NormalizeTimestamp(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("timestamp is required")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Format(TimestampLayout), nil
		}
	}
	return "", fmt.Errorf("invalid timestamp %q", s)
}

// validSlug reports whether s is already in Slugify form.
func validSlug(s string) bool {
	return s != "" && Slugify(s) == s
}

// validate checks the constraints every stored trend satisfies and
// normalizes the timestamp in place.
func validate(t *Trend) error {
	if !validSlug(t.Slug) {
		return invalid("slug", "must contain only lowercase letters, digits and single hyphens")
	}
	if strings.TrimSpace(t.Title) == "" {
		return invalid("title", "is required")
	}
	if strings.TrimSpace(t.Teaser) == "" {
		return invalid("teaser", "is required")
	}
	if !IsCategory(t.Category) {
		return invalid("category", fmt.Sprintf("%q is not a valid category", t.Category))
	}
	ts, err := NormalizeTimestamp(t.Timestamp)
	if err != nil {
		return invalid("timestamp", err.Error())
	}
	t.Timestamp = ts
	return nil
}
