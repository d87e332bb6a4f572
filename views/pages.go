package views

import (
	"context"
	"io"
	"net/url"

	"github.com/a-h/templ"

	"github.com/eringen/trendengine"
	"github.com/eringen/trendengine/markdown"
)

// Funcs returns the view set used by the bundled server.
func Funcs() trendengine.ViewFuncs {
	return trendengine.ViewFuncs{
		Home:        Home,
		Trend:       Trend,
		NotFound:    NotFound,
		ServerError: ServerError,
	}
}

func trendCard(h *html, t trendengine.Trend, large bool) {
	class := "trend-card"
	if large {
		class += " trend-card-hero"
	}
	href := attr(TrendHref(t.Slug))
	h.rawf(`<article class="%s"><a href="%s">`, class, href)
	if src := markdown.SafeURL(t.Image); src != "" {
		h.rawf(`<img src="%s" alt="%s" loading="lazy">`, src, attr(t.Title))
	}
	h.raw(`</a><div class="trend-meta">`)
	h.rawf(`<a class="%s" href="%s">`, CategoryClass(false), attr(CategoryHref(t.Category)))
	h.text(t.Category)
	h.raw("</a>")
	if t.Spike != "" {
		h.raw(`<span class="spike">`)
		h.text(t.Spike)
		h.raw("</span>")
	}
	h.rawf(`<time datetime="%s">`, attr(t.Timestamp))
	h.text(FormatTimestamp(t.Timestamp))
	h.raw("</time></div>")
	if large {
		h.raw("<h1>")
	} else {
		h.raw("<h2>")
	}
	h.rawf(`<a href="%s">`, href)
	h.text(t.Title)
	h.raw("</a>")
	if large {
		h.raw("</h1>")
	} else {
		h.raw("</h2>")
	}
	h.raw(`<p class="teaser">`)
	h.raw(markdown.Inline(t.Teaser))
	h.raw("</p></article>")
}

// Home renders the hero trend followed by the latest trends per category.
func Home(p trendengine.HomePage) templ.Component {
	body := templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		h := &html{w: w}
		if p.Hero != nil {
			h.raw(`<section class="hero">`)
			trendCard(h, *p.Hero, true)
			h.raw("</section>")
		}
		if len(p.Sections) == 0 && p.Hero == nil {
			h.raw(`<p class="empty">No trends yet.</p>`)
		}
		for _, s := range p.Sections {
			h.rawf(`<section class="category" id="%s"><h2 class="category-title">`, attr(trendengine.Slugify(s.Category)))
			h.text(s.Category)
			h.raw(`</h2><div class="trend-grid">`)
			for _, t := range s.Trends {
				trendCard(h, t, false)
			}
			h.raw("</div></section>")
		}
		return h.err
	})
	return Layout(p.Site, p.Meta, p.JSONLD, body)
}

// Trend renders a full article page.
func Trend(p trendengine.TrendPage) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}
		t := p.Trend
		h.raw(`<article class="trend">`)
		trendHeader(h, t)
		if h.err != nil {
			return h.err
		}
		if p.Body != nil {
			if err := p.Body.Render(ctx, w); err != nil {
				return err
			}
		}
		related(h, "Related topics", t.RelatedTopics)
		related(h, "Related searches", t.RelatedQueries)
		h.raw("</article>")
		if len(p.Related) > 0 {
			h.rawf(`<aside class="more"><h2>More in %s</h2><div class="trend-grid">`, templ.EscapeString(t.Category))
			for _, r := range p.Related {
				trendCard(h, r, false)
			}
			h.raw("</div></aside>")
		}
		return h.err
	})
	return Layout(p.Site, p.Meta, p.JSONLD, body)
}

func trendHeader(h *html, t trendengine.Trend) {
	h.raw(`<header><div class="trend-meta">`)
	h.rawf(`<a class="%s" href="%s">`, CategoryClass(true), attr(CategoryHref(t.Category)))
	h.text(t.Category)
	h.raw("</a>")
	if t.Spike != "" {
		h.raw(`<span class="spike">`)
		h.text(t.Spike)
		h.raw("</span>")
	}
	h.rawf(`<time datetime="%s">`, attr(t.Timestamp))
	h.text(FormatTimestamp(t.Timestamp))
	h.raw("</time></div><h1>")
	h.text(t.Title)
	h.raw(`</h1><p class="teaser">`)
	h.raw(markdown.Inline(t.Teaser))
	h.raw("</p>")
	if src := markdown.SafeURL(t.Image); src != "" {
		h.rawf(`<img class="trend-hero" src="%s" alt="%s">`, src, attr(t.Title))
	}
	h.raw("</header>")
}

func related(h *html, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	h.rawf(`<section class="related"><h3>%s</h3><ul>`, heading)
	for _, item := range items {
		h.rawf(`<li><a href="https://www.google.com/search?q=%s" rel="nofollow noopener" target="_blank">`,
			attr(url.QueryEscape(item)))
		h.text(item)
		h.raw("</a></li>")
	}
	h.raw("</ul></section>")
}

func message(title, text string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		h := &html{w: w}
		h.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"><title>`)
		h.text(title)
		h.raw(`</title><link rel="stylesheet" href="/public/styles.css"></head><body><main class="message"><h1>`)
		h.text(title)
		h.raw("</h1><p>")
		h.text(text)
		h.raw(`</p><a href="/">Back to the front page</a></main></body></html>`)
		return h.err
	})
}

func NotFound() templ.Component {
	return message("Page not found", "The trend you are looking for does not exist or was removed.")
}

func ServerError() templ.Component {
	return message("Something went wrong", "Please try again in a moment.")
}
