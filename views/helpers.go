package views

import (
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/a-h/templ"

	"github.com/eringen/trendengine"
)

// CategoryClass returns CSS classes for a category pill, with active variant.
func CategoryClass(active bool) string {
	base := "inline-flex items-center rounded border border-ink px-2.5 py-1 text-[11px] font-semibold uppercase tracking-[0.12em] transition"
	if active {
		base += " bg-ink text-white"
	}
	return base
}

// CategoryHref links to the home page filtered to one category.
func CategoryHref(category string) string {
	return "/?category=" + url.QueryEscape(category)
}

// TrendHref is the site-relative link to a trend page.
func TrendHref(slug string) string {
	return "/trends/" + trendengine.PathEscape(slug) + "/"
}

// FormatTimestamp renders a stored trend timestamp for display, or the raw
// value if it does not parse.
func FormatTimestamp(ts string) string {
	t, err := time.Parse(trendengine.TimestampLayout, ts)
	if err != nil {
		return ts
	}
	return t.Format("Jan 2, 2006 15:04 UTC")
}

// html writes HTML fragments and stops at the first write error.
type html struct {
	w   io.Writer
	err error
}

func (h *html) raw(s string) {
	if h.err == nil {
		_, h.err = io.WriteString(h.w, s)
	}
}

func (h *html) text(s string) {
	h.raw(templ.EscapeString(s))
}

func (h *html) rawf(format string, args ...any) {
	h.raw(fmt.Sprintf(format, args...))
}

// attr escapes s for use inside a double quoted attribute.
func attr(s string) string {
	return templ.EscapeString(s)
}

func jsonLD(s string) string {
	return strings.ReplaceAll(s, "</", `<\/`)
}
