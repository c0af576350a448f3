// Package spacetraveling is a blog whose posts live in a headless CMS. It
// renders a paginated listing with "load more", post pages with an estimated
// reading time, RSS and sitemap, and keeps every page cached and revalidated
// in the background.
package spacetraveling

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	mcpserver "github.com/eringen/spacetraveling/mcp"
	"github.com/eringen/spacetraveling/prismic"
	"github.com/eringen/spacetraveling/views"
)

// Version is reported by the CLI and the MCP server. It is set at build time
// via ldflags.
var Version = "dev"

// App is the central application. It wires together the content client,
// store, cache, handlers and middleware.
type App struct {
	Config SiteConfig
	Echo   *echo.Echo
	Client *prismic.Client
	Store  *Store
	Cache  *PageCache

	loginLimiter *Limiter
	moreLimiter  *Limiter
	banners      singleflight.Group
	mcpServer    *server.MCPServer
	logger       *zap.Logger
	httpClient   *http.Client
	customRoutes []func(*App)
	staticDir    string
	skipPrewarm  bool
	prewarmWG    sync.WaitGroup
	opened       bool
	initialized  bool

	// ctx scopes background work; Close cancels it.
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates an App with the given configuration.
func New(cfg SiteConfig, opts ...Option) *App {
	cfg.setDefaults()

	a := &App{
		Config:    cfg,
		Echo:      echo.New(),
		staticDir: "public",
		logger:    zap.NewNop(),
	}
	a.ctx, a.cancel = context.WithCancel(context.Background())

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// WithLogger sets the structured logger used by the MCP server.
func WithLogger(l *zap.Logger) Option {
	return func(a *App) {
		a.logger = l
	}
}

// Open connects the content client, store and cache. It is enough to serve
// MCP over stdio; Init builds on it for the web app.
func (a *App) Open() error {
	if a.opened {
		return nil
	}
	if a.Config.APIEndpoint == "" {
		return fmt.Errorf("spacetraveling: APIEndpoint is required")
	}

	client, err := prismic.New(prismic.Config{
		APIEndpoint: a.Config.APIEndpoint,
		AccessToken: a.Config.AccessToken,
		HTTPClient:  a.httpClient,
		RefTTL:      a.Config.Revalidate,
	})
	if err != nil {
		return fmt.Errorf("spacetraveling: init content client: %w", err)
	}
	a.Client = client

	store, err := NewStore(a.Config.DatabasePath)
	if err != nil {
		return fmt.Errorf("spacetraveling: init store: %w", err)
	}
	a.Store = store

	a.Cache = NewPageCache(a.Store, a.Config.Revalidate, a.Echo.Logger)
	a.opened = true
	return nil
}

// Init validates the config and sets up middleware and routes without
// listening, so the app can also be driven through Echo.ServeHTTP.
func (a *App) Init() error {
	if a.initialized {
		return nil
	}
	if a.Config.AdminPassword == "" {
		return fmt.Errorf("spacetraveling: AdminPassword is required")
	}
	if a.Config.SessionSecret == "" {
		return fmt.Errorf("spacetraveling: SessionSecret is required")
	}
	if err := a.Open(); err != nil {
		return err
	}

	a.loginLimiter = NewLimiter(5, time.Minute)
	a.moreLimiter = NewLimiter(60, time.Minute)

	a.setupMiddleware()
	a.setupRoutes()

	for _, fn := range a.customRoutes {
		fn(a)
	}
	a.initialized = true
	return nil
}

// Start initializes the app, pre-warms the cache in the background and
// starts the server.
func (a *App) Start() error {
	if err := a.Init(); err != nil {
		return err
	}

	if !a.skipPrewarm {
		a.startPrewarm()
	}

	if err := a.Echo.Start(a.Config.Addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// startPrewarm runs Prewarm in the background. Close cancels it and waits
// for it before the store is closed.
func (a *App) startPrewarm() {
	a.prewarmWG.Add(1)
	go func() {
		defer a.prewarmWG.Done()
		ctx, cancel := context.WithTimeout(a.ctx, 5*time.Minute)
		defer cancel()
		if err := a.Prewarm(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.Echo.Logger.Warnf("prewarm: %v", err)
		}
	}()
}

// MCPServer returns the MCP server backed by this app's content, creating it
// on first use. Open must have been called.
func (a *App) MCPServer() *server.MCPServer {
	if a.mcpServer == nil {
		a.mcpServer = mcpserver.NewServer(a.logger, a, Version)
	}
	return a.mcpServer
}

func (a *App) site() views.Site {
	return views.Site{
		Name:        a.Config.Name,
		URL:         a.Config.URL,
		Description: a.Config.Description,
		Author:      a.Config.Author,
	}
}

func (a *App) setupRoutes() {
	e := a.Echo

	// Embedded assets first; anything else under /public/ comes from the
	// static dir.
	embeddedFS, _ := fs.Sub(EmbeddedAssets, "embedded")
	embeddedHandler := http.FileServer(http.FS(embeddedFS))
	e.GET("/public/loadmore.js", echo.WrapHandler(http.StripPrefix("/public/", embeddedHandler)))
	e.GET("/public/styles.css", echo.WrapHandler(http.StripPrefix("/public/", embeddedHandler)))
	e.Static("/public", a.staticDir)
	e.GET("/robots.txt", a.handleRobots)

	// Public routes
	e.GET("/sitemap.xml", a.handleSitemap)
	e.GET("/feed.xml", a.handleFeed)
	e.GET("/", a.handleHome)
	e.GET("/posts/more/", a.handleMore)
	e.GET("/post/:slug/", a.handlePost)
	e.GET("/banner/:slug/", a.handleBanner)

	// CMS webhook
	e.POST("/api/revalidate", a.handleRevalidateWebhook)

	// Admin routes
	e.GET("/admin/", a.handleAdmin)
	e.POST("/admin/login/", a.handleAdminLogin)
	e.POST("/admin/logout/", handleAdminLogout)
	e.POST("/admin/revalidate/", a.handleAdminRevalidate)

	if a.Config.MCPEnabled {
		h := mcpserver.NewHTTPServer(a.MCPServer(), "/mcp")
		e.Any("/mcp", echo.WrapHandler(h))
	}
}

// Close cleans up resources. Call this when the app is shutting down.
func (a *App) Close() error {
	a.cancel()
	a.prewarmWG.Wait()
	if a.Cache != nil {
		a.Cache.Wait()
	}
	if a.loginLimiter != nil {
		a.loginLimiter.Close()
	}
	if a.moreLimiter != nil {
		a.moreLimiter.Close()
	}
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}
