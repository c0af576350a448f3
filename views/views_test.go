package views

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/a-h/templ"

	"github.com/eringen/spacetraveling/feed"
	"github.com/eringen/spacetraveling/post"
	"github.com/eringen/spacetraveling/richtext"
)

var site = Site{Name: "spacetraveling", URL: "https://blog.example.com", Description: "Um blog"}

func render(t *testing.T, c templ.Component) string {
	t.Helper()
	var buf bytes.Buffer
	if err := c.Render(context.Background(), &buf); err != nil {
		t.Fatalf("render: %v", err)
	}
	return buf.String()
}

func summary(uid string) post.Summary {
	ts := time.Date(2021, 3, 10, 0, 0, 0, 0, time.UTC)
	return post.Summary{UID: uid, PublishedAt: ts, Date: post.FormatDate(ts), Title: "Title " + uid, Subtitle: "Sub " + uid, Author: "Autor"}
}

func TestLoadMoreButton(t *testing.T) {
	if got := render(t, LoadMoreButton("")); got != "" {
		t.Errorf("LoadMoreButton(\"\") = %q, want empty", got)
	}
	got := render(t, LoadMoreButton("https://x.cdn.prismic.io/api/v2/documents/search?page=2&pageSize=3"))
	if !strings.Contains(got, LoadMoreLabel) {
		t.Errorf("button missing label: %s", got)
	}
	want := `data-next="/posts/more/?page=https%3A%2F%2Fx.cdn.prismic.io%2Fapi%2Fv2%2Fdocuments%2Fsearch%3Fpage%3D2%26pageSize%3D3"`
	if !strings.Contains(got, want) {
		t.Errorf("button = %s\nwant attribute %s", got, want)
	}
}

func TestHomeRendersPostsInOrder(t *testing.T) {
	st := feed.State{Posts: []post.Summary{summary("a"), summary("b")}, NextPage: "next"}
	got := render(t, Home(site, st))

	ia := strings.Index(got, `href="/post/a/"`)
	ib := strings.Index(got, `href="/post/b/"`)
	if ia < 0 || ib < 0 || ia > ib {
		t.Fatalf("posts missing or out of order: a=%d b=%d", ia, ib)
	}
	for _, want := range []string{"10 Mar 2021", "Sub a", LoadMoreLabel, `"@type":"WebSite"`} {
		if !strings.Contains(got, want) {
			t.Errorf("home missing %q", want)
		}
	}
}

func TestHomeWithoutNextPageHasNoButton(t *testing.T) {
	got := render(t, Home(site, feed.State{Posts: []post.Summary{summary("a")}}))
	if strings.Contains(got, LoadMoreLabel) {
		t.Error("exhausted listing should not render the load more button")
	}
}

func TestPostItemsEscapes(t *testing.T) {
	s := summary("x")
	s.Title = `<script>alert(1)</script>`
	got := render(t, PostItems([]post.Summary{s}))
	if strings.Contains(got, "<script>") {
		t.Errorf("title not escaped: %s", got)
	}
}

func TestMorePostsFragment(t *testing.T) {
	got := render(t, MorePosts(feed.State{Posts: []post.Summary{summary("d")}}))
	if strings.Contains(got, "<html") {
		t.Error("fragment should not include the layout")
	}
	if !strings.Contains(got, "Title d") {
		t.Errorf("fragment missing post: %s", got)
	}
}

func TestLoadMoreErrorKeepsCursor(t *testing.T) {
	got := render(t, LoadMoreError("c2"))
	if !strings.Contains(got, RetryLabel) || !strings.Contains(got, `data-next="/posts/more/?page=c2"`) {
		t.Errorf("retry fragment = %s", got)
	}
}

func TestPostPage(t *testing.T) {
	d := post.Detail{
		Summary:   summary("hooks"),
		BannerURL: "https://images.example.com/hooks.png",
		Content: []post.Section{
			{Heading: "Intro", Body: []richtext.Block{{Type: "paragraph", Text: strings.Repeat("palavra ", 250)}}},
			{Body: []richtext.Block{{Type: "paragraph", Text: "fim"}}},
		},
	}
	got := render(t, Post(site, d))
	for _, want := range []string{
		"<h1>Title hooks</h1>",
		`src="/banner/hooks/"`,
		"2 min",
		"<h2>Intro</h2>",
		"<p>fim</p>",
		`<link rel="canonical" href="https://blog.example.com/post/hooks/">`,
		`"@type":"BlogPosting"`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("post page missing %q", want)
		}
	}
}

func TestAdminDashboard(t *testing.T) {
	entries := []CacheEntry{{Key: "post:hooks", FetchedAt: time.Date(2021, 3, 10, 0, 0, 0, 0, time.UTC), Stale: true}}
	got := render(t, AdminDashboard(site, entries, "ok", "tok"))
	for _, want := range []string{"post:hooks", "expirada", `value="tok"`, "2021-03-10T00:00:00Z"} {
		if !strings.Contains(got, want) {
			t.Errorf("dashboard missing %q", want)
		}
	}
}

func TestBuildURL(t *testing.T) {
	tests := []struct {
		base string
		segs []string
		want string
	}{
		{"https://blog.example.com", nil, "https://blog.example.com"},
		{"https://blog.example.com", []string{"post", "a"}, "https://blog.example.com/post/a/"},
		{"https://blog.example.com/", []string{"banner", "b"}, "https://blog.example.com/banner/b/"},
	}
	for _, tt := range tests {
		if got := BuildURL(tt.base, tt.segs...); got != tt.want {
			t.Errorf("BuildURL(%q, %v) = %q, want %q", tt.base, tt.segs, got, tt.want)
		}
	}
}
