package spacetraveling

import "embed"

// EmbeddedAssets contains static assets shipped with the app:
// loadmore.js and styles.css
//
//go:embed embedded/*
var EmbeddedAssets embed.FS
