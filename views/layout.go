package views

import (
	"context"
	"io"

	"github.com/a-h/templ"

	"github.com/eringen/trendengine"
)

// Layout wraps body in the shared document shell with SEO and OpenGraph
// metadata.
func Layout(site trendengine.SiteConfig, meta trendengine.PageMeta, ld string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}
		title := meta.Title
		if title == "" {
			title = site.Name
		}
		h.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		h.raw(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		h.raw("<title>")
		h.text(title)
		h.raw("</title>")
		if meta.Description != "" {
			h.rawf(`<meta name="description" content="%s">`, attr(meta.Description))
			h.rawf(`<meta property="og:description" content="%s">`, attr(meta.Description))
		}
		if meta.URL != "" {
			h.rawf(`<link rel="canonical" href="%s">`, attr(meta.URL))
			h.rawf(`<meta property="og:url" content="%s">`, attr(meta.URL))
		}
		h.rawf(`<meta property="og:title" content="%s">`, attr(title))
		h.rawf(`<meta property="og:site_name" content="%s">`, attr(site.Name))
		if meta.OGType != "" {
			h.rawf(`<meta property="og:type" content="%s">`, attr(meta.OGType))
		}
		if meta.Image != "" {
			h.rawf(`<meta property="og:image" content="%s">`, attr(meta.Image))
			h.raw(`<meta name="twitter:card" content="summary_large_image">`)
		}
		h.rawf(`<link rel="alternate" type="application/rss+xml" title="%s" href="/feed.xml">`, attr(site.Name))
		h.raw(`<link rel="icon" href="/favicon.svg"><link rel="stylesheet" href="/public/styles.css">`)
		if ld != "" {
			h.raw(`<script type="application/ld+json">`)
			h.raw(jsonLD(ld))
			h.raw("</script>")
		}
		h.raw(`</head><body class="bg-paper text-ink"><header class="site-header"><a href="/" class="site-title">`)
		h.text(site.Name)
		h.raw(`</a><nav class="categories">`)
		for _, c := range trendengine.Categories {
			h.rawf(`<a class="%s" href="%s">`, CategoryClass(false), attr(CategoryHref(c)))
			h.text(c)
			h.raw("</a>")
		}
		h.raw(`</nav></header><main>`)
		if h.err != nil {
			return h.err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		h.raw(`</main><footer class="site-footer">`)
		if site.Author != "" {
			h.raw("&copy; ")
			h.text(site.Author)
			h.raw(" &middot; ")
		}
		h.raw(`<a href="/feed.xml">RSS</a></footer></body></html>`)
		return h.err
	})
}
