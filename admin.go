package spacetraveling

import (
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/eringen/spacetraveling/views"
)

func (a *App) handleAdmin(c echo.Context) error {
	if !IsAdmin(c) {
		return Render(c, views.AdminLogin(a.site(), false, CsrfToken(c)))
	}
	return a.renderAdminDashboard(c, c.QueryParam("msg"))
}

func (a *App) handleAdminLogin(c echo.Context) error {
	ip := c.RealIP()
	if !a.loginLimiter.Check(ip) {
		return c.String(http.StatusTooManyRequests, "Too many login attempts. Try again later.")
	}
	pass := c.FormValue("password")
	if subtle.ConstantTimeCompare([]byte(pass), []byte(a.Config.AdminPassword)) == 1 {
		if err := setAdminSession(c); err != nil {
			return err
		}
		return c.Redirect(http.StatusSeeOther, "/admin/")
	}
	a.loginLimiter.Record(ip)
	return RenderStatus(c, http.StatusUnauthorized, views.AdminLogin(a.site(), true, CsrfToken(c)))
}

func handleAdminLogout(c echo.Context) error {
	if err := clearAdminSession(c); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/admin/")
}

// handleAdminRevalidate drops one cached page, or all of them when no key
// is posted.
func (a *App) handleAdminRevalidate(c echo.Context) error {
	if !IsAdmin(c) {
		return c.Redirect(http.StatusSeeOther, "/admin/")
	}
	key := strings.TrimSpace(c.FormValue("key"))
	if err := a.Revalidate(key); err != nil {
		return err
	}
	msg := "Todas as páginas serão revalidadas."
	if key != "" {
		msg = key + " será revalidada."
	}
	return c.Redirect(http.StatusSeeOther, "/admin/?msg="+url.QueryEscape(msg))
}

func (a *App) renderAdminDashboard(c echo.Context, msg string) error {
	entries, err := a.Cache.Entries()
	if err != nil {
		return err
	}
	return Render(c, views.AdminDashboard(a.site(), entries, msg, CsrfToken(c)))
}

// webhookPayload is the part of the CMS webhook body we read. The secret may
// also be sent in the X-Webhook-Secret header.
type webhookPayload struct {
	Type   string `json:"type"`
	Secret string `json:"secret"`
}

// handleRevalidateWebhook is called by the CMS on publish. It drops every
// cached page and refreshes the content ref.
func (a *App) handleRevalidateWebhook(c echo.Context) error {
	if a.Config.WebhookSecret == "" {
		return echo.ErrNotFound
	}
	var payload webhookPayload
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, 64<<10))
	if err != nil {
		return err
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &payload); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		}
	}
	secret := c.Request().Header.Get("X-Webhook-Secret")
	if secret == "" {
		secret = payload.Secret
	}
	if subtle.ConstantTimeCompare([]byte(secret), []byte(a.Config.WebhookSecret)) != 1 {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid secret"})
	}
	if err := a.Revalidate(""); err != nil {
		return err
	}
	c.Logger().Infof("revalidated all pages (webhook %q)", payload.Type)
	return c.JSON(http.StatusOK, map[string]bool{"revalidated": true})
}
