package content

import (
	"context"
	"io"
	"strings"

	"github.com/a-h/templ"

	"github.com/eringen/trendengine/markdown"
)

// Render returns a component that writes c as article HTML. Paragraph text
// goes through the inline markup renderer; every URL is checked with
// markdown.SafeURL and dropped when unsafe.
func Render(c Content, fallbackAlt string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		if len(c) == 0 {
			b.WriteString(`<p class="empty">No content available for this trend.</p>`)
		}
		for _, blk := range c {
			writeBlock(&b, blk, fallbackAlt)
		}
		_, err := io.WriteString(w, b.String())
		return err
	})
}

func writeBlock(b *strings.Builder, blk Block, fallbackAlt string) {
	b.WriteString(`<div class="block block-` + string(blk.Kind()) + `">`)
	if h := strings.TrimSpace(blk.Heading()); h != "" {
		b.WriteString("<h2>" + templ.EscapeString(h) + "</h2>")
	}
	switch v := blk.(type) {
	case Paragraph:
		if src := markdown.SafeURL(v.Image); src != "" {
			alt := v.Title
			if alt == "" {
				alt = "Paragraph Image"
			}
			writeImg(b, src, alt)
		}
		b.WriteString("<p>" + markdown.Text(v.Text) + "</p>")
	case Image:
		src := markdown.SafeURL(v.Src)
		if src == "" {
			break
		}
		alt := v.Caption
		if alt == "" {
			alt = fallbackAlt
		}
		b.WriteString("<figure>")
		writeImg(b, src, alt)
		if v.Caption != "" {
			b.WriteString("<figcaption>" + templ.EscapeString(v.Caption) + "</figcaption>")
		}
		b.WriteString("</figure>")
	case Video:
		src := markdown.SafeURL(v.URL)
		if src == "" {
			break
		}
		title := v.Caption
		if title == "" {
			title = "Video"
		}
		b.WriteString(`<div class="video-wrapper"><iframe src="` + src + `" title="` + templ.EscapeString(title) + `" allowfullscreen></iframe>`)
		if v.Caption != "" {
			b.WriteString(`<p class="caption">` + templ.EscapeString(v.Caption) + "</p>")
		}
		b.WriteString("</div>")
	case XEmbed:
		href := markdown.SafeURL(v.URL)
		if href == "" {
			break
		}
		b.WriteString(`<blockquote class="x-embed"><p>[X Post: <a href="` + href + `" rel="nofollow">` + href + "</a>]</p></blockquote>")
	}
	b.WriteString("</div>")
}

func writeImg(b *strings.Builder, src, alt string) {
	b.WriteString(`<img src="` + src + `" alt="` + templ.EscapeString(alt) + `" width="1000" height="500" loading="lazy"/>`)
}
