package spacetraveling

import (
	"net/http"
	"time"
)

// SiteConfig holds all configuration for a spacetraveling site.
type SiteConfig struct {
	Name        string // Site name (default "spacetraveling")
	URL         string // Canonical URL (default "http://localhost:3000")
	Description string // Site description for RSS and meta tags
	Author      string // Publisher name for JSON-LD

	Addr         string // Listen address (default ":3000")
	DatabasePath string // SQLite path (default "data/spacetraveling.db")

	APIEndpoint  string // Required: content API endpoint, e.g. https://repo.cdn.prismic.io/api/v2
	AccessToken  string // Content API token, if the repository is private
	DocumentType string // Custom type holding posts (default "posts")
	PageSize     int    // Summaries per listing page (default 3)

	Revalidate time.Duration // Age after which a cached page is refreshed (default 1h)

	AdminPassword string // Required: admin login password
	SessionSecret string // Required: session encryption secret
	CookieSecure  bool   // Set true for HTTPS
	WebhookSecret string // Shared secret for POST /api/revalidate; empty disables the webhook

	MCPEnabled bool // Mount the MCP endpoint at /mcp
}

func (c *SiteConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "spacetraveling"
	}
	if c.URL == "" {
		c.URL = "http://localhost:3000"
	}
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "data/spacetraveling.db"
	}
	if c.DocumentType == "" {
		c.DocumentType = "posts"
	}
	if c.PageSize <= 0 {
		c.PageSize = 3
	}
	if c.Revalidate == 0 {
		c.Revalidate = time.Hour
	}
}

// Option configures additional App behavior.
type Option func(*App)

// WithCustomRoutes registers additional routes on the Echo instance.
// The callback receives the App after the built-in routes are set up.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// WithStaticDir sets a directory served under /public/ after the embedded
// assets (default "public").
func WithStaticDir(dir string) Option {
	return func(a *App) {
		a.staticDir = dir
	}
}

// WithHTTPClient sets the client used for the content API and banner images.
func WithHTTPClient(c *http.Client) Option {
	return func(a *App) {
		a.httpClient = c
	}
}

// WithoutPrewarm skips loading every known post when the app starts.
func WithoutPrewarm() Option {
	return func(a *App) {
		a.skipPrewarm = true
	}
}
