package trendengine

import (
	"encoding/xml"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/eringen/trendengine/markdown"
)

const feedItemCount = 50

type rssXML struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	LastBuildDate string    `xml:"lastBuildDate,omitempty"`
	Items         []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	Category    string `xml:"category,omitempty"`
	PubDate     string `xml:"pubDate"`
	GUID        string `xml:"guid"`
}

func (a *App) handleFeed(c echo.Context) error {
	page, err := a.Cache.List(c.Request().Context(), ListQuery{Limit: feedItemCount})
	if err != nil {
		return err
	}
	return a.renderRSS(c, page.Items)
}

// pubDate prefers the editorial timestamp and falls back to creation time.
func pubDate(t Trend) string {
	if ts, err := time.Parse(TimestampLayout, t.Timestamp); err == nil {
		return ts.Format(time.RFC1123Z)
	}
	return t.CreatedAt.UTC().Format(time.RFC1123Z)
}

func (a *App) renderRSS(c echo.Context, trends []Trend) error {
	base := a.Config.URL
	items := make([]rssItem, 0, len(trends))
	for _, t := range trends {
		link := TrendURL(base, t.Slug)
		items = append(items, rssItem{
			Title:       t.Title,
			Link:        link,
			Description: markdown.Plain(t.Teaser),
			Category:    t.Category,
			PubDate:     pubDate(t),
			GUID:        link,
		})
	}
	feed := rssXML{
		Version: "2.0",
		Channel: rssChannel{
			Title:       a.Config.Name,
			Link:        BuildURL(base),
			Description: a.Config.Description,
			Items:       items,
		},
	}
	if len(trends) > 0 {
		feed.Channel.LastBuildDate = trends[0].UpdatedAt.UTC().Format(time.RFC1123Z)
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/rss+xml; charset=utf-8")
	c.Response().WriteHeader(http.StatusOK)
	c.Response().Write([]byte(xml.Header))
	return xml.NewEncoder(c.Response()).Encode(feed)
}
