package views

import (
	"encoding/json"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/eringen/spacetraveling/post"
)

// BuildURL joins path segments onto a base URL, ensuring a trailing slash.
func BuildURL(base string, pathSegments ...string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	u.Path = path.Join(u.Path, path.Join(pathSegments...))
	if len(pathSegments) > 0 && !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u.String()
}

// MoreURL is the fragment endpoint that continues the listing from cursor.
func MoreURL(cursor string) string {
	return "/posts/more/?page=" + url.QueryEscape(cursor)
}

// BannerURL is the local, resized banner for a post.
func BannerURL(uid string) string {
	return "/banner/" + url.PathEscape(uid) + "/"
}

// WebsiteJsonLD produces a Schema.org WebSite JSON-LD block.
func WebsiteJsonLD(site Site) string {
	data := map[string]interface{}{
		"@context": "https://schema.org",
		"@type":    "WebSite",
		"name":     site.Name,
		"url":      BuildURL(site.URL),
	}
	if site.Description != "" {
		data["description"] = site.Description
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// BlogPostingJsonLD produces a Schema.org BlogPosting JSON-LD block for a post.
func BlogPostingJsonLD(site Site, d post.Detail) string {
	postURL := BuildURL(site.URL, "post", d.UID)
	data := map[string]interface{}{
		"@context":      "https://schema.org",
		"@type":         "BlogPosting",
		"headline":      d.Title,
		"datePublished": d.PublishedAt.Format("2006-01-02"),
		"url":           postURL,
		"timeRequired":  "PT" + strconv.Itoa(d.ReadingTime()) + "M",
		"author": map[string]string{
			"@type": "Person",
			"name":  d.Author,
		},
		"publisher": map[string]string{
			"@type": "Organization",
			"name":  site.Name,
		},
		"mainEntityOfPage": map[string]string{
			"@type": "WebPage",
			"@id":   postURL,
		},
	}
	if d.Subtitle != "" {
		data["description"] = d.Subtitle
	}
	if d.BannerURL != "" {
		data["image"] = BuildURL(site.URL, "banner", d.UID)
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "{}"
	}
	return string(b)
}
