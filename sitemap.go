package trendengine

import (
	"encoding/xml"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

type sitemapURLSet struct {
	XMLName    xml.Name     `xml:"urlset"`
	XMLNS      string       `xml:"xmlns,attr"`
	XMLNSImage string       `xml:"xmlns:image,attr"`
	URLs       []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc        string         `xml:"loc"`
	LastMod    string         `xml:"lastmod,omitempty"`
	ChangeFreq string         `xml:"changefreq,omitempty"`
	Images     []sitemapImage `xml:"image:image,omitempty"`
}

type sitemapImage struct {
	Loc   string `xml:"image:loc"`
	Title string `xml:"image:title,omitempty"`
}

func (a *App) handleSitemap(c echo.Context) error {
	trends, err := a.Cache.All(c.Request().Context())
	if err != nil {
		return err
	}
	return a.renderSitemap(c, trends)
}

func (a *App) renderSitemap(c echo.Context, trends []Trend) error {
	base := a.Config.URL
	urls := []sitemapURL{
		{Loc: BuildURL(base), ChangeFreq: "hourly"},
	}
	for _, t := range trends {
		u := sitemapURL{
			Loc:        TrendURL(base, t.Slug),
			LastMod:    t.UpdatedAt.UTC().Format(time.RFC3339),
			ChangeFreq: "daily",
		}
		if img := AbsoluteURL(base, t.Image); img != "" {
			u.Images = append(u.Images, sitemapImage{Loc: img, Title: t.Title})
		}
		urls = append(urls, u)
	}
	sitemap := sitemapURLSet{
		XMLNS:      "http://www.sitemaps.org/schemas/sitemap/0.9",
		XMLNSImage: "http://www.google.com/schemas/sitemap-image/1.1",
		URLs:       urls,
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/xml; charset=utf-8")
	c.Response().WriteHeader(http.StatusOK)
	c.Response().Write([]byte(xml.Header))
	return xml.NewEncoder(c.Response()).Encode(sitemap)
}
