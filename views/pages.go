package views

import (
	"context"
	"io"
	"strconv"
	"time"

	"github.com/a-h/templ"

	"github.com/eringen/spacetraveling/feed"
	"github.com/eringen/spacetraveling/post"
	"github.com/eringen/spacetraveling/richtext"
)

// LoadMoreLabel is the call to action shown while more posts remain.
const LoadMoreLabel = "Carregar mais posts"

// RetryLabel is shown when loading the next page failed.
const RetryLabel = "Tentar novamente"

// writer accumulates the first write error so components can emit markup
// without checking every call.
type writer struct {
	w   io.Writer
	err error
}

func (w *writer) raw(s string) {
	if w.err != nil {
		return
	}
	_, w.err = io.WriteString(w.w, s)
}

func (w *writer) text(s string) {
	w.raw(templ.EscapeString(s))
}

func (w *writer) attr(name, value string) {
	w.raw(" " + name + `="` + templ.EscapeString(value) + `"`)
}

func (w *writer) component(ctx context.Context, c templ.Component) {
	if w.err != nil {
		return
	}
	w.err = c.Render(ctx, w.w)
}

func component(fn func(ctx context.Context, w *writer)) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, out io.Writer) error {
		w := &writer{w: out}
		fn(ctx, w)
		return w.err
	})
}

// Layout wraps body in the document shell with SEO metadata.
func Layout(site Site, meta PageMeta, body templ.Component) templ.Component {
	return component(func(ctx context.Context, w *writer) {
		title := site.Name
		if meta.Title != "" {
			title = meta.Title + " | " + site.Name
		}
		desc := meta.Description
		if desc == "" {
			desc = site.Description
		}
		ogType := meta.OGType
		if ogType == "" {
			ogType = "website"
		}
		w.raw(`<!DOCTYPE html><html lang="pt-BR"><head><meta charset="utf-8">`)
		w.raw(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		w.raw("<title>")
		w.text(title)
		w.raw("</title>")
		if desc != "" {
			w.raw(`<meta name="description"`)
			w.attr("content", desc)
			w.raw(">")
		}
		if meta.URL != "" {
			w.raw(`<link rel="canonical"`)
			w.attr("href", meta.URL)
			w.raw(">")
			w.raw(`<meta property="og:url"`)
			w.attr("content", meta.URL)
			w.raw(">")
		}
		w.raw(`<meta property="og:title"`)
		w.attr("content", title)
		w.raw(">")
		w.raw(`<meta property="og:type"`)
		w.attr("content", ogType)
		w.raw(">")
		if meta.Image != "" {
			w.raw(`<meta property="og:image"`)
			w.attr("content", meta.Image)
			w.raw(">")
		}
		w.raw(`<link rel="alternate" type="application/rss+xml" href="/feed.xml"`)
		w.attr("title", site.Name)
		w.raw(">")
		w.raw(`<link rel="stylesheet" href="/public/styles.css">`)
		if meta.JSONLD != "" {
			// JSON-LD is produced by json.Marshal, which escapes <, > and &.
			w.raw(`<script type="application/ld+json">` + meta.JSONLD + `</script>`)
		}
		w.raw(`<script src="/public/loadmore.js" defer></script>`)
		w.raw(`</head><body>`)
		w.raw(`<header class="site-header"><a href="/" class="logo">`)
		w.text(site.Name)
		w.raw(`</a></header><main>`)
		w.component(ctx, body)
		w.raw(`</main></body></html>`)
	})
}

// Home renders the listing page from the first page of summaries.
func Home(site Site, st feed.State) templ.Component {
	body := component(func(ctx context.Context, w *writer) {
		w.raw(`<div class="posts" id="posts">`)
		w.component(ctx, PostItems(st.Posts))
		w.component(ctx, LoadMoreButton(st.NextPage))
		w.raw(`</div>`)
	})
	return Layout(site, PageMeta{
		URL:    BuildURL(site.URL),
		OGType: "website",
		JSONLD: WebsiteJsonLD(site),
	}, body)
}

// PostItems renders one entry per summary, in order.
func PostItems(posts []post.Summary) templ.Component {
	return component(func(ctx context.Context, w *writer) {
		for _, p := range posts {
			w.raw(`<a class="post-item"`)
			w.attr("href", p.Link())
			w.raw("><strong>")
			w.text(p.Title)
			w.raw("</strong><p>")
			w.text(p.Subtitle)
			w.raw(`</p><ul class="info"><li><time`)
			w.attr("datetime", p.PublishedAt.Format(time.RFC3339))
			w.raw(">")
			w.text(p.Date)
			w.raw("</time></li><li>")
			w.text(p.Author)
			w.raw("</li></ul></a>")
		}
	})
}

// LoadMoreButton renders the "load more" control for cursor, or nothing when
// the listing is exhausted.
func LoadMoreButton(next string) templ.Component {
	return component(func(ctx context.Context, w *writer) {
		if next == "" {
			return
		}
		w.raw(`<a class="load-more"`)
		w.attr("href", MoreURL(next))
		w.attr("data-next", MoreURL(next))
		w.raw(">")
		w.text(LoadMoreLabel)
		w.raw("</a>")
	})
}

// MorePosts is the fragment returned for a continuation page: the new
// summaries followed by the next button, if any.
func MorePosts(st feed.State) templ.Component {
	return component(func(ctx context.Context, w *writer) {
		w.component(ctx, PostItems(st.Posts))
		w.component(ctx, LoadMoreButton(st.NextPage))
	})
}

// LoadMoreError replaces the button after a failed fetch. The cursor is kept
// so the reader can retry the same page.
func LoadMoreError(cursor string) templ.Component {
	return component(func(ctx context.Context, w *writer) {
		w.raw(`<div class="load-more-error" role="alert"><p>Não foi possível carregar mais posts.</p>`)
		w.raw(`<a class="load-more"`)
		w.attr("href", MoreURL(cursor))
		w.attr("data-next", MoreURL(cursor))
		w.raw(">")
		w.text(RetryLabel)
		w.raw("</a></div>")
	})
}

// Post renders the detail page.
func Post(site Site, d post.Detail) templ.Component {
	body := component(func(ctx context.Context, w *writer) {
		if d.BannerURL != "" {
			w.raw(`<img class="banner" fetchpriority="high"`)
			w.attr("src", BannerURL(d.UID))
			w.attr("alt", d.Title)
			w.raw(">")
		}
		w.raw(`<article class="post"><h1>`)
		w.text(d.Title)
		w.raw(`</h1><ul class="info"><li><time`)
		w.attr("datetime", d.PublishedAt.Format(time.RFC3339))
		w.raw(">")
		w.text(d.Date)
		w.raw("</time></li><li>")
		w.text(d.Author)
		w.raw("</li><li>")
		w.text(strconv.Itoa(d.ReadingTime()) + " min")
		w.raw("</li></ul>")
		for _, s := range d.Content {
			w.raw(`<section class="content">`)
			if s.Heading != "" {
				w.raw("<h2>")
				w.text(s.Heading)
				w.raw("</h2>")
			}
			w.raw(`<div class="body">`)
			w.component(ctx, richtext.HTML(s.Body))
			w.raw("</div></section>")
		}
		w.raw("</article>")
	})
	meta := PageMeta{
		Title:       d.Title,
		Description: d.Subtitle,
		URL:         BuildURL(site.URL, "post", d.UID),
		OGType:      "article",
		JSONLD:      BlogPostingJsonLD(site, d),
	}
	if d.BannerURL != "" {
		meta.Image = BuildURL(site.URL, "banner", d.UID)
	}
	return Layout(site, meta, body)
}

// NotFound is the 404 page.
func NotFound(site Site) templ.Component {
	return Layout(site, PageMeta{Title: "Página não encontrada"}, component(func(ctx context.Context, w *writer) {
		w.raw(`<section class="error"><h1>404</h1><p>Esse post não existe.</p><a href="/">Voltar para o início</a></section>`)
	}))
}

// ServerError is the 5xx page.
func ServerError(site Site) templ.Component {
	return Layout(site, PageMeta{Title: "Erro"}, component(func(ctx context.Context, w *writer) {
		w.raw(`<section class="error"><h1>500</h1><p>Algo deu errado. Tente novamente em instantes.</p></section>`)
	}))
}
