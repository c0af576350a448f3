package spacetraveling

import (
	"errors"
	"net/http"
	"strings"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"

	"github.com/eringen/spacetraveling/prismic"
	"github.com/eringen/spacetraveling/views"
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

func (a *App) handleHome(c echo.Context) error {
	st, err := a.Home(c.Request().Context())
	if err != nil {
		return err
	}
	return Render(c, views.Home(a.site(), st))
}

// handleMore returns the next listing page as an HTML fragment. Failures
// render a retry control for the same cursor instead of an error page.
func (a *App) handleMore(c echo.Context) error {
	cursor := strings.TrimSpace(c.QueryParam("page"))
	if cursor == "" {
		return c.String(http.StatusBadRequest, "missing page cursor")
	}
	if !a.moreLimiter.Allow(c.RealIP()) {
		c.Response().Header().Set("Cache-Control", "no-store")
		return RenderStatus(c, http.StatusTooManyRequests, views.LoadMoreError(cursor))
	}
	st, err := a.More(c.Request().Context(), cursor)
	if err != nil {
		if errors.Is(err, prismic.ErrForeignCursor) {
			return c.String(http.StatusBadRequest, "invalid page cursor")
		}
		c.Logger().Errorf("load more %s: %v", cursor, err)
		c.Response().Header().Set("Cache-Control", "no-store")
		return RenderStatus(c, http.StatusBadGateway, views.LoadMoreError(cursor))
	}
	return Render(c, views.MorePosts(st))
}

func (a *App) handlePost(c echo.Context) error {
	slug := c.Param("slug")
	d, err := a.Post(c.Request().Context(), slug)
	if err != nil {
		if errors.Is(err, prismic.ErrNotFound) {
			return RenderStatus(c, http.StatusNotFound, views.NotFound(a.site()))
		}
		return err
	}
	return Render(c, views.Post(a.site(), d))
}

func (a *App) handleSitemap(c echo.Context) error {
	posts, err := a.AllPosts(c.Request().Context())
	if err != nil {
		return err
	}
	return a.renderSitemap(c, posts)
}

func (a *App) handleFeed(c echo.Context) error {
	posts, err := a.AllPosts(c.Request().Context())
	if err != nil {
		return err
	}
	return a.renderRSS(c, posts)
}

func (a *App) handleRobots(c echo.Context) error {
	body := "User-agent: *\nDisallow: /admin/\nDisallow: /api/\nDisallow: /posts/more/\n\nSitemap: " +
		strings.TrimRight(a.Config.URL, "/") + "/sitemap.xml\n"
	return c.String(http.StatusOK, body)
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	he, ok := err.(*echo.HTTPError)
	if ok && he.Code == http.StatusNotFound {
		_ = RenderStatus(c, http.StatusNotFound, views.NotFound(a.site()))
		return
	}
	code := http.StatusInternalServerError
	if ok {
		code = he.Code
	}
	if code >= 500 {
		c.Logger().Errorf("server error: %v", err)
		_ = RenderStatus(c, code, views.ServerError(a.site()))
		return
	}
	a.Echo.DefaultHTTPErrorHandler(err, c)
}

