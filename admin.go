package trendengine

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

func (a *App) handleLogin(c echo.Context) error {
	ip := c.RealIP()
	if !a.loginLimiter.Check(ip) {
		return c.JSON(http.StatusTooManyRequests, errorBody{Error: "Too many login attempts. Try again later."})
	}
	user := c.FormValue("username")
	pass := c.FormValue("password")
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(a.Config.AdminUsername)) == 1
	passOK := a.Config.AdminPassword != "" &&
		subtle.ConstantTimeCompare([]byte(pass), []byte(a.Config.AdminPassword)) == 1
	if !userOK || !passOK {
		a.loginLimiter.Record(ip)
		a.Log.Warn("admin login failed", zap.String("remote_ip", ip))
		return c.JSON(http.StatusUnauthorized, errorBody{Error: "Invalid credentials"})
	}
	if err := setAdminSession(c); err != nil {
		return a.writeError(c, err)
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "Logged in"})
}

func (a *App) handleLogout(c echo.Context) error {
	if err := clearAdminSession(c); err != nil {
		return a.writeError(c, err)
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "Logged out"})
}

func (a *App) handleSession(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"authenticated": IsAdmin(c),
		"csrfToken":     CsrfToken(c),
	})
}
