package content

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// CleanText converts HTML pasted into paragraph text to the inline markup the
// renderer understands: anchors become [text](href), <br> becomes a newline
// and every other tag is dropped, keeping its text. Text without tags is
// returned unchanged.
func CleanText(s string) string {
	if !strings.Contains(s, "<") {
		return s
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<body>" + s + "</body>"))
	if err != nil {
		return s
	}
	body := doc.Find("body")
	body.Find("br").Each(func(_ int, br *goquery.Selection) {
		br.ReplaceWithHtml("\n")
	})
	body.Find("a").Each(func(_ int, a *goquery.Selection) {
		text := strings.TrimSpace(a.Text())
		href, _ := a.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || text == "" {
			a.ReplaceWithHtml(escapeText(text))
			return
		}
		a.ReplaceWithHtml(escapeText("[" + text + "](" + href + ")"))
	})
	return body.Text()
}

var textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func escapeText(s string) string {
	return textEscaper.Replace(s)
}
