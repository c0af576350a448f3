package spacetraveling

import (
	"context"
	"fmt"

	"github.com/eringen/spacetraveling/feed"
	"github.com/eringen/spacetraveling/post"
	"github.com/eringen/spacetraveling/prismic"
)

// Cache keys. Admin and webhook revalidation address pages by these.
const (
	keyHome     = "home"
	keyAllPosts = "posts:all"
)

func postKey(uid string) string {
	return "post:" + uid
}

// feedPageSize is used when walking every post for RSS and the sitemap.
const feedPageSize = 100

// Home returns the first listing page.
func (a *App) Home(ctx context.Context) (feed.State, error) {
	return cached(ctx, a.Cache, keyHome, func(ctx context.Context) (feed.State, error) {
		resp, err := a.Client.QueryByType(ctx, a.Config.DocumentType, prismic.QueryOptions{PageSize: a.Config.PageSize, Orderings: prismic.NewestFirst})
		if err != nil {
			return feed.State{}, fmt.Errorf("home: %w", err)
		}
		return feed.Initialize(*resp)
	})
}

// More follows a listing cursor. Continuation pages are not cached; the
// cursor pins the content ref, so each one is a point-in-time view.
func (a *App) More(ctx context.Context, cursor string) (feed.State, error) {
	return feed.Resume(a.Client, cursor).LoadMore(ctx)
}

// Post returns a post's detail. Unknown uids are looked up on demand and
// are not cached when the CMS has no such post.
func (a *App) Post(ctx context.Context, uid string) (post.Detail, error) {
	return cached(ctx, a.Cache, postKey(uid), func(ctx context.Context) (post.Detail, error) {
		doc, err := a.Client.GetByUID(ctx, a.Config.DocumentType, uid)
		if err != nil {
			return post.Detail{}, err
		}
		return post.NewDetail(*doc)
	})
}

// AllPosts returns every post summary, following cursors until the listing
// is exhausted.
func (a *App) AllPosts(ctx context.Context) ([]post.Summary, error) {
	st, err := cached(ctx, a.Cache, keyAllPosts, func(ctx context.Context) (feed.State, error) {
		resp, err := a.Client.QueryByType(ctx, a.Config.DocumentType, prismic.QueryOptions{PageSize: feedPageSize, Orderings: prismic.NewestFirst})
		if err != nil {
			return feed.State{}, fmt.Errorf("all posts: %w", err)
		}
		st, err := feed.Initialize(*resp)
		if err != nil {
			return feed.State{}, err
		}
		agg := feed.New(a.Client, st)
		for st.HasMore() {
			if st, err = agg.LoadMore(ctx); err != nil {
				return feed.State{}, err
			}
		}
		return st, nil
	})
	return st.Posts, err
}

// ListPosts serves the MCP listPosts tool.
func (a *App) ListPosts(ctx context.Context, cursor string) (feed.State, error) {
	if cursor == "" {
		return a.Home(ctx)
	}
	return a.More(ctx, cursor)
}

// GetPost serves the MCP getPost tool.
func (a *App) GetPost(ctx context.Context, uid string) (post.Detail, error) {
	return a.Post(ctx, uid)
}

// Prewarm loads the listing and every known post into the cache, so the
// first visitors are served from it.
func (a *App) Prewarm(ctx context.Context) error {
	if _, err := a.Home(ctx); err != nil {
		return err
	}
	uids, err := a.Client.ListAllUIDsByType(ctx, a.Config.DocumentType)
	if err != nil {
		return fmt.Errorf("list uids: %w", err)
	}
	warmed := 0
	for _, uid := range uids {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := a.Post(ctx, uid); err != nil {
			a.Echo.Logger.Warnf("prewarm %s: %v", uid, err)
			continue
		}
		warmed++
	}
	a.Echo.Logger.Infof("prewarmed %d of %d posts", warmed, len(uids))
	return nil
}

// Revalidate drops cached pages so the next request fetches them again.
// An empty key drops everything. The content ref is refreshed as well so
// newly published documents become visible.
func (a *App) Revalidate(key string) error {
	a.Client.Refresh()
	if key == "" {
		return a.Cache.InvalidateAll()
	}
	return a.Cache.Invalidate(key)
}
