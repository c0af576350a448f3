package views

import "time"

// Site holds site-wide settings every page needs. Handlers build it once
// from the application config.
type Site struct {
	Name        string
	URL         string
	Description string
	Author      string
}

// PageMeta carries per-page OpenGraph and SEO metadata into the <head>.
type PageMeta struct {
	Title       string
	Description string
	URL         string // canonical + og:url
	OGType      string // "website" or "article"
	Image       string
	JSONLD      string
}

// CacheEntry is one cached page as listed on the admin dashboard.
type CacheEntry struct {
	Key       string
	FetchedAt time.Time
	Stale     bool
}
