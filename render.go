package trendengine

import (
	"errors"
	"net/http"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Render writes a templ component as an HTTP 200 HTML response.
func Render(c echo.Context, cmp templ.Component) error {
	return RenderStatus(c, http.StatusOK, cmp)
}

// RenderStatus writes a templ component with a specific HTTP status code.
func RenderStatus(c echo.Context, code int, cmp templ.Component) error {
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(code)
	return cmp.Render(c.Request().Context(), c.Response().Writer)
}

// errorBody is the JSON shape of every API error.
type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// writeError maps err onto a status code and a JSON body. Unexpected errors
// are logged with their cause and answered with a generic message.
func (a *App) writeError(c echo.Context, err error) error {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		return c.JSON(http.StatusBadRequest, errorBody{Error: "Validation failed", Details: ve.Error()})
	case errors.Is(err, ErrNotFound):
		return c.JSON(http.StatusNotFound, errorBody{Error: "Trend not found"})
	case errors.Is(err, ErrDuplicateSlug):
		return c.JSON(http.StatusConflict, errorBody{Error: "Slug already exists", Details: err.Error()})
	case errors.Is(err, ErrVersionConflict):
		return c.JSON(http.StatusConflict, errorBody{Error: "Version conflict", Details: "the trend was changed by another request; reload and try again"})
	}
	var he *echo.HTTPError
	if errors.As(err, &he) && he.Code < http.StatusInternalServerError {
		return c.JSON(he.Code, errorBody{Error: http.StatusText(he.Code)})
	}
	a.Log.Error("request failed",
		zap.String("method", c.Request().Method),
		zap.String("uri", c.Request().RequestURI),
		zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
		zap.Error(err))
	return c.JSON(http.StatusInternalServerError, errorBody{Error: "Internal server error", Details: "the request could not be completed"})
}
