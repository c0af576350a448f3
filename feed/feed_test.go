package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/spacetraveling/post"
	"github.com/eringen/spacetraveling/prismic"
	"github.com/eringen/spacetraveling/prismic/prismictest"
)

var day = time.Date(2021, 3, 10, 0, 0, 0, 0, time.UTC)

func docs(uids ...string) []prismic.Document {
	out := make([]prismic.Document, 0, len(uids))
	for _, uid := range uids {
		out = append(out, prismictest.Post(uid, "Title "+uid, "Sub "+uid, "Autor "+uid, day))
	}
	return out
}

// stubFetcher answers cursors from a map and can block until released.
type stubFetcher struct {
	pages   map[string]*prismic.Response
	err     error
	release chan struct{}
	calls   int
	mu      sync.Mutex
}

func (f *stubFetcher) FetchPage(ctx context.Context, cursor string) (*prismic.Response, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	resp, ok := f.pages[cursor]
	if !ok {
		return nil, fmt.Errorf("unknown cursor %q", cursor)
	}
	return resp, nil
}

func TestInitializePreservesOrderAndFields(t *testing.T) {
	for n := 0; n <= 4; n++ {
		uids := []string{"a", "b", "c", "d"}[:n]
		page := prismic.Response{Results: docs(uids...), NextPage: "cursor-2"}

		st, err := Initialize(page)
		require.NoError(t, err)
		require.Len(t, st.Posts, n)
		assert.Equal(t, "cursor-2", st.NextPage)
		for i, uid := range uids {
			assert.Equal(t, uid, st.Posts[i].UID)
			assert.Equal(t, "Title "+uid, st.Posts[i].Title)
			assert.Equal(t, "Sub "+uid, st.Posts[i].Subtitle)
			assert.Equal(t, "Autor "+uid, st.Posts[i].Author)
			assert.Equal(t, "10 Mar 2021", st.Posts[i].Date)
		}
	}
}

func TestInitializeIsIdempotent(t *testing.T) {
	page := prismic.Response{Results: docs("a", "b"), NextPage: "n"}
	first, err := Initialize(page)
	require.NoError(t, err)
	second, err := Initialize(page)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestInitializeEmptyKeepsCursor(t *testing.T) {
	st, err := Initialize(prismic.Response{NextPage: "n"})
	require.NoError(t, err)
	assert.Empty(t, st.Posts)
	assert.Equal(t, "n", st.NextPage)
}

func TestInitializeRejectsMalformed(t *testing.T) {
	bad := prismic.Document{UID: "x", Type: "posts", FirstPublicationDate: "2021-03-10T00:00:00Z", Data: []byte(`{"subtitle":"s"}`)}
	_, err := Initialize(prismic.Response{Results: []prismic.Document{bad}})
	assert.ErrorIs(t, err, post.ErrMalformed)
}

func TestLoadMoreWithoutCursorIsNoop(t *testing.T) {
	f := &stubFetcher{}
	st, err := Initialize(prismic.Response{Results: docs("a")})
	require.NoError(t, err)
	agg := New(f, st)

	got, err := agg.LoadMore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, st, got)
	assert.Equal(t, 0, f.calls)
}

func TestLoadMoreAppends(t *testing.T) {
	f := &stubFetcher{pages: map[string]*prismic.Response{
		"p2": {Results: docs("d", "e", "f"), NextPage: "p3"},
		"p3": {Results: docs("g")},
	}}
	st, err := Initialize(prismic.Response{Results: docs("a", "b", "c"), NextPage: "p2"})
	require.NoError(t, err)
	agg := New(f, st)

	got, err := agg.LoadMore(context.Background())
	require.NoError(t, err)
	require.Len(t, got.Posts, 6)
	assert.Equal(t, st.Posts, got.Posts[:3])
	assert.Equal(t, "d", got.Posts[3].UID)
	assert.Equal(t, "p3", got.NextPage)

	got, err = agg.LoadMore(context.Background())
	require.NoError(t, err)
	require.Len(t, got.Posts, 7)
	assert.False(t, got.HasMore())

	_, err = agg.LoadMore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, f.calls)
}

func TestLoadMoreFailureLeavesStateUnchanged(t *testing.T) {
	f := &stubFetcher{err: errors.New("network down")}
	st, err := Initialize(prismic.Response{Results: docs("a"), NextPage: "p2"})
	require.NoError(t, err)
	agg := New(f, st)

	got, err := agg.LoadMore(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "network down")
	assert.Equal(t, st, got)
	assert.Equal(t, st, agg.State())
	assert.False(t, agg.Fetching())
}

func TestLoadMoreMalformedPageLeavesStateUnchanged(t *testing.T) {
	bad := prismic.Document{UID: "x", Type: "posts", FirstPublicationDate: "2021-03-10T00:00:00Z", Data: []byte(`{}`)}
	f := &stubFetcher{pages: map[string]*prismic.Response{"p2": {Results: []prismic.Document{bad}}}}
	st := State{Posts: []post.Summary{{UID: "a"}}, NextPage: "p2"}
	agg := New(f, st)

	_, err := agg.LoadMore(context.Background())
	assert.ErrorIs(t, err, post.ErrMalformed)
	assert.Equal(t, st, agg.State())
}

func TestLoadMoreRejectsConcurrentCall(t *testing.T) {
	f := &stubFetcher{
		pages:   map[string]*prismic.Response{"p2": {Results: docs("b")}},
		release: make(chan struct{}),
	}
	agg := New(f, State{Posts: []post.Summary{{UID: "a"}}, NextPage: "p2"})

	done := make(chan error, 1)
	go func() {
		_, err := agg.LoadMore(context.Background())
		done <- err
	}()
	require.Eventually(t, agg.Fetching, time.Second, time.Millisecond)

	st, err := agg.LoadMore(context.Background())
	assert.ErrorIs(t, err, ErrFetchInProgress)
	assert.Len(t, st.Posts, 1)

	close(f.release)
	require.NoError(t, <-done)
	assert.Len(t, agg.State().Posts, 2)
	assert.Equal(t, 1, f.calls)
}

func TestLoadMoreDiscardsResultAfterReset(t *testing.T) {
	f := &stubFetcher{
		pages:   map[string]*prismic.Response{"p2": {Results: docs("b"), NextPage: "p3"}},
		release: make(chan struct{}),
	}
	agg := New(f, State{Posts: []post.Summary{{UID: "a"}}, NextPage: "p2"})

	done := make(chan error, 1)
	go func() {
		_, err := agg.LoadMore(context.Background())
		done <- err
	}()
	require.Eventually(t, agg.Fetching, time.Second, time.Millisecond)

	fresh := State{Posts: []post.Summary{{UID: "z"}}}
	agg.Reset(fresh)
	close(f.release)

	assert.ErrorIs(t, <-done, ErrStale)
	assert.Equal(t, fresh, agg.State())
}

func TestLoadMoreCancelledContext(t *testing.T) {
	f := &stubFetcher{
		pages:   map[string]*prismic.Response{"p2": {Results: docs("b")}},
		release: make(chan struct{}),
	}
	st := State{Posts: []post.Summary{{UID: "a"}}, NextPage: "p2"}
	agg := New(f, st)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := agg.LoadMore(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, st, agg.State())
}

func TestLoadMoreAgainstContentAPI(t *testing.T) {
	srv := prismictest.NewServer(t, docs("a", "b", "c", "d", "e")...)
	client, err := prismic.New(prismic.Config{APIEndpoint: srv.Endpoint()})
	require.NoError(t, err)

	first, err := client.QueryByType(context.Background(), "posts", prismic.QueryOptions{PageSize: 3})
	require.NoError(t, err)
	st, err := Initialize(*first)
	require.NoError(t, err)
	require.True(t, st.HasMore())

	agg := New(client, st)
	got, err := agg.LoadMore(context.Background())
	require.NoError(t, err)
	uids := make([]string, 0, len(got.Posts))
	for _, p := range got.Posts {
		uids = append(uids, p.UID)
	}
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, uids)
	assert.False(t, got.HasMore())

	srv.SetFailing(true)
	agg.Reset(st)
	_, err = agg.LoadMore(context.Background())
	require.Error(t, err)
	assert.Equal(t, st, agg.State())
}

func TestResume(t *testing.T) {
	f := &stubFetcher{pages: map[string]*prismic.Response{"p2": {Results: docs("d"), NextPage: "p3"}}}
	got, err := Resume(f, "p2").LoadMore(context.Background())
	require.NoError(t, err)
	require.Len(t, got.Posts, 1)
	assert.Equal(t, "p3", got.NextPage)
}
