package trendengine

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/eringen/trendengine/content"
	"github.com/eringen/trendengine/markdown"
)

const (
	homeTrendCount    = 30
	relatedTrendCount = 3
)

// HomePage is the data behind the landing page.
type HomePage struct {
	Site     SiteConfig
	Meta     PageMeta
	Hero     *Trend
	Latest   []Trend
	Sections []CategorySection
	JSONLD   string
}

// TrendPage is the data behind a single article page.
type TrendPage struct {
	Site    SiteConfig
	Meta    PageMeta
	Trend   Trend
	Body    templ.Component
	Related []Trend
	JSONLD  string
}

// ViewFuncs holds the templ components the pages are rendered with. Nil
// entries fall back to plain built-in components.
type ViewFuncs struct {
	Home        func(page HomePage) templ.Component
	Trend       func(page TrendPage) templ.Component
	NotFound    func() templ.Component
	ServerError func() templ.Component
}

func (v ViewFuncs) withDefaults() ViewFuncs {
	if v.Home == nil {
		v.Home = plainHome
	}
	if v.Trend == nil {
		v.Trend = plainTrend
	}
	if v.NotFound == nil {
		v.NotFound = func() templ.Component { return templ.Raw("<h1>Page not found</h1>") }
	}
	if v.ServerError == nil {
		v.ServerError = func() templ.Component { return templ.Raw("<h1>Something went wrong</h1>") }
	}
	return v
}

func plainHome(p HomePage) templ.Component {
	html := "<h1>" + templ.EscapeString(p.Site.Name) + "</h1><ul>"
	for _, t := range p.Latest {
		html += `<li><a href="/trends/` + PathEscape(t.Slug) + `/">` + templ.EscapeString(t.Title) + "</a></li>"
	}
	return templ.Raw(html + "</ul>")
}

func plainTrend(p TrendPage) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := w.Write([]byte("<article><h1>" + templ.EscapeString(p.Trend.Title) + "</h1>")); err != nil {
			return err
		}
		if err := p.Body.Render(ctx, w); err != nil {
			return err
		}
		_, err := w.Write([]byte("</article>"))
		return err
	})
}

// handleHome renders the hero and the latest trends grouped by category. A
// failing store is logged and the page renders without trends.
func (a *App) handleHome(c echo.Context) error {
	ctx := c.Request().Context()
	page := HomePage{
		Site: a.Config,
		Meta: PageMeta{
			Title:       a.Config.Name,
			Description: a.Config.Description,
			URL:         BuildURL(a.Config.URL),
			OGType:      "website",
		},
		JSONLD: WebsiteJsonLD(a.Config),
	}

	if hero, err := a.Cache.Hero(ctx); err == nil {
		page.Hero = &hero
		page.Meta.Image = AbsoluteURL(a.Config.URL, hero.Image)
	} else if !errors.Is(err, ErrNotFound) {
		a.Log.Error("load hero trend", zap.Error(err))
	}

	latest, err := a.Cache.List(ctx, ListQuery{Limit: homeTrendCount, Category: c.QueryParam("category")})
	if err != nil {
		a.Log.Error("load latest trends", zap.Error(err))
	}
	page.Latest = latest.Items
	heroSlug := ""
	if page.Hero != nil {
		heroSlug = page.Hero.Slug
	}
	page.Sections = GroupByCategory(page.Latest, heroSlug)
	return Render(c, a.Views.Home(page))
}

func (a *App) handleTrendPage(c echo.Context) error {
	ctx := c.Request().Context()
	t, err := a.Cache.Get(ctx, c.Param("slug"))
	if errors.Is(err, ErrNotFound) {
		return RenderStatus(c, http.StatusNotFound, a.Views.NotFound())
	}
	if err != nil {
		return err
	}
	related, err := a.Cache.Related(ctx, t, relatedTrendCount)
	if err != nil {
		a.Log.Error("load related trends", zap.String("slug", t.Slug), zap.Error(err))
		related = nil
	}
	return Render(c, a.Views.Trend(TrendPage{
		Site: a.Config,
		Meta: PageMeta{
			Title:       t.Title + " | " + a.Config.Name,
			Description: markdown.Plain(t.Teaser),
			URL:         TrendURL(a.Config.URL, t.Slug),
			OGType:      "article",
			Image:       AbsoluteURL(a.Config.URL, t.Image),
		},
		Trend:   t,
		Body:    content.Render(t.Content, t.Title),
		Related: related,
		JSONLD:  NewsArticleJsonLD(t, a.Config),
	}))
}

func (a *App) handleRobots(c echo.Context) error {
	path := filepath.Join(a.Config.StaticDir, "robots.txt")
	if _, err := os.Stat(path); err == nil {
		return c.File(path)
	}
	body := "User-agent: *\nAllow: /\nDisallow: /api/\n\nSitemap: " + a.Config.URL + "/sitemap.xml\n"
	return c.String(http.StatusOK, body)
}

func (a *App) handleFavicon(c echo.Context) error {
	return c.File(filepath.Join(a.Config.StaticDir, "favicon.svg"))
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	if strings.HasPrefix(c.Request().URL.Path, "/api/") {
		_ = a.writeError(c, err)
		return
	}
	he, ok := err.(*echo.HTTPError)
	if ok && he.Code == http.StatusNotFound {
		_ = RenderStatus(c, http.StatusNotFound, a.Views.NotFound())
		return
	}
	code := http.StatusInternalServerError
	if ok {
		code = he.Code
	}
	if code >= 500 {
		a.Log.Error("server error", zap.String("uri", c.Request().RequestURI), zap.Error(err))
		_ = RenderStatus(c, code, a.Views.ServerError())
		return
	}
	a.Echo.DefaultHTTPErrorHandler(err, c)
}
