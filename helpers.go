package trendengine

import (
	"encoding/json"
	"net/url"
	"path"
	"strings"

	"github.com/eringen/trendengine/markdown"
)

// Slugify converts a title to a URL-safe slug.
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	prev := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			prev = false
		default:
			if !prev && b.Len() > 0 {
				b.WriteByte('-')
				prev = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// BuildURL joins a base URL with path segments, ensuring a trailing slash.
func BuildURL(base string, pathSegments ...string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	u.Path = path.Join(u.Path, path.Join(pathSegments...))
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u.String()
}

// TrendURL is the canonical public URL of the trend with slug.
func TrendURL(base, slug string) string {
	return BuildURL(base, "trends", slug)
}

// AbsoluteURL resolves a site-relative path such as an upload URL against
// base. Absolute URLs are returned unchanged.
func AbsoluteURL(base, ref string) string {
	if ref == "" || strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(ref, "/")
}

// FilterEmpty trims every value and drops the blank ones.
func FilterEmpty(vals []string) []string {
	var out []string
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// PathEscape escapes a string for use in a URL path.
func PathEscape(s string) string {
	return url.PathEscape(s)
}

// CategorySection is a group of trends shown under one category heading.
type CategorySection struct {
	Category string
	Trends   []Trend
}

// GroupByCategory groups trends by category, in the order categories first
// appear in trends. skip is left out of every group.
func GroupByCategory(trends []Trend, skip string) []CategorySection {
	var sections []CategorySection
	index := make(map[string]int)
	for _, t := range trends {
		if t.Slug == skip {
			continue
		}
		i, ok := index[t.Category]
		if !ok {
			i = len(sections)
			index[t.Category] = i
			sections = append(sections, CategorySection{Category: t.Category})
		}
		sections[i].Trends = append(sections[i].Trends, t)
	}
	return sections
}

// WebsiteJsonLD returns a JSON-LD string for a WebSite schema using SiteConfig.
func WebsiteJsonLD(cfg SiteConfig) string {
	data := map[string]interface{}{
		"@context":    "https://schema.org",
		"@type":       "WebSite",
		"name":        cfg.Name,
		"url":         BuildURL(cfg.URL),
		"description": cfg.Description,
	}
	if cfg.Author != "" {
		data["author"] = map[string]string{
			"@type": "Organization",
			"name":  cfg.Author,
		}
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// NewsArticleJsonLD returns a JSON-LD string for a NewsArticle schema.
func NewsArticleJsonLD(t Trend, cfg SiteConfig) string {
	pageURL := TrendURL(cfg.URL, t.Slug)
	data := map[string]interface{}{
		"@context":       "https://schema.org",
		"@type":          "NewsArticle",
		"headline":       t.Title,
		"description":    markdown.Plain(t.Teaser),
		"image":          []string{AbsoluteURL(cfg.URL, t.Image)},
		"datePublished":  t.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		"dateModified":   t.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
		"articleSection": t.Category,
		"url":            pageURL,
		"mainEntityOfPage": map[string]string{
			"@type": "WebPage",
			"@id":   pageURL,
		},
	}
	if cfg.Name != "" {
		data["publisher"] = map[string]string{
			"@type": "Organization",
			"name":  cfg.Name,
		}
	}
	if len(t.RelatedTopics) > 0 {
		data["keywords"] = strings.Join(t.RelatedTopics, ", ")
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "{}"
	}
	return string(b)
}
