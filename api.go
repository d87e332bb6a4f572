package trendengine

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

type pagination struct {
	CurrentPage int `json:"currentPage"`
	TotalPages  int `json:"totalPages"`
	TotalTrends int `json:"totalTrends"`
}

type listResponse struct {
	Data       []Trend    `json:"data"`
	Pagination pagination `json:"pagination"`
}

type dataResponse struct {
	Data any `json:"data"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// queryInt parses a positive integer query parameter; anything else yields 0
// so the listing falls back to its default.
func queryInt(c echo.Context, name string) int {
	n, err := strconv.Atoi(strings.TrimSpace(c.QueryParam(name)))
	if err != nil || n < 1 {
		return 0
	}
	return n
}

func (a *App) handleListTrends(c echo.Context) error {
	page, err := a.Cache.List(c.Request().Context(), ListQuery{
		Page:     queryInt(c, "page"),
		Limit:    queryInt(c, "limit"),
		Category: strings.TrimSpace(c.QueryParam("category")),
	})
	if err != nil {
		return a.writeError(c, err)
	}
	return c.JSON(http.StatusOK, listResponse{
		Data: page.Items,
		Pagination: pagination{
			CurrentPage: page.Page,
			TotalPages:  page.TotalPages,
			TotalTrends: page.Total,
		},
	})
}

func (a *App) handleGetTrend(c echo.Context) error {
	t, err := a.Cache.Get(c.Request().Context(), c.Param("slug"))
	if err != nil {
		return a.writeError(c, err)
	}
	return c.JSON(http.StatusOK, dataResponse{Data: t})
}

func (a *App) handleCategories(c echo.Context) error {
	return c.JSON(http.StatusOK, dataResponse{Data: Categories})
}

func (a *App) handleCreateTrend(c echo.Context) error {
	sub, err := parseSubmission(c.Request())
	if err != nil {
		return a.writeError(c, err)
	}
	if sub.Slug == "" && sub.Patch.Title != nil {
		sub.Slug = Slugify(*sub.Patch.Title)
	}
	t, err := a.Writer.Create(c.Request().Context(), sub)
	if err != nil {
		return a.writeError(c, err)
	}
	return c.JSON(http.StatusCreated, dataResponse{Data: t})
}

func (a *App) handleUpdateTrend(c echo.Context) error {
	sub, err := parseSubmission(c.Request())
	if err != nil {
		return a.writeError(c, err)
	}
	slug := c.Param("slug")
	if sub.Slug != "" && sub.Slug != slug {
		return a.writeError(c, invalid("slug", "cannot be changed"))
	}
	t, err := a.Writer.Update(c.Request().Context(), slug, sub)
	if err != nil {
		return a.writeError(c, err)
	}
	return c.JSON(http.StatusOK, dataResponse{Data: t})
}

func (a *App) handleDeleteTrend(c echo.Context) error {
	if err := a.Writer.Delete(c.Request().Context(), c.Param("slug")); err != nil {
		return a.writeError(c, err)
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "Trend deleted successfully"})
}
