// Package feed accumulates pages of post summaries as a reader asks for more.
//
// A State is built once from the first page (Initialize) and then grown by an
// Aggregator, one continuation page at a time, until the content API reports
// there is nothing left.
package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/eringen/spacetraveling/post"
	"github.com/eringen/spacetraveling/prismic"
)

var (
	// ErrFetchInProgress is returned by LoadMore while another call is pending.
	ErrFetchInProgress = errors.New("feed: a page is already being fetched")
	// ErrStale is returned when a fetch finished after the aggregator was
	// reset or its context was cancelled; the result was discarded.
	ErrStale = errors.New("feed: fetch result discarded")
)

// State is the accumulated list plus the cursor for the next page.
// NextPage is empty once every page has been loaded.
type State struct {
	Posts    []post.Summary `json:"posts"`
	NextPage string         `json:"next_page"`
}

// HasMore reports whether another page can be fetched.
func (s State) HasMore() bool {
	return s.NextPage != ""
}

// PageFetcher follows an opaque continuation cursor. *prismic.Client
// implements it.
type PageFetcher interface {
	FetchPage(ctx context.Context, cursor string) (*prismic.Response, error)
}

// Initialize normalizes the first page. It holds no state, so equal inputs
// give equal outputs.
func Initialize(page prismic.Response) (State, error) {
	posts, err := normalize(page.Results)
	if err != nil {
		return State{}, err
	}
	return State{Posts: posts, NextPage: page.NextPage}, nil
}

func normalize(docs []prismic.Document) ([]post.Summary, error) {
	posts := make([]post.Summary, 0, len(docs))
	for _, d := range docs {
		s, err := post.NewSummary(d)
		if err != nil {
			return nil, err
		}
		posts = append(posts, s)
	}
	return posts, nil
}

// Aggregator owns a State and grows it with LoadMore. It allows one fetch at
// a time; methods are safe to call from multiple goroutines.
type Aggregator struct {
	fetcher PageFetcher

	mu         sync.Mutex
	state      State
	fetching   bool
	generation uint64
}

// New returns an Aggregator starting from st.
func New(fetcher PageFetcher, st State) *Aggregator {
	return &Aggregator{fetcher: fetcher, state: cloneState(st)}
}

// Resume returns an Aggregator with no posts that will continue from cursor.
func Resume(fetcher PageFetcher, cursor string) *Aggregator {
	return New(fetcher, State{NextPage: cursor})
}

// State returns a copy of the current state.
func (a *Aggregator) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return cloneState(a.state)
}

// Fetching reports whether a LoadMore is outstanding.
func (a *Aggregator) Fetching() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.fetching
}

// Reset replaces the state. A LoadMore still in flight will discard its result.
func (a *Aggregator) Reset(st State) {
	a.mu.Lock()
	a.state = cloneState(st)
	a.generation++
	a.mu.Unlock()
}

// LoadMore fetches the next page and appends it.
//
// With no cursor left it returns the current state and a nil error without
// doing any I/O. On failure the state is left untouched and the error is
// returned for the caller to present or retry.
func (a *Aggregator) LoadMore(ctx context.Context) (State, error) {
	a.mu.Lock()
	if !a.state.HasMore() {
		st := cloneState(a.state)
		a.mu.Unlock()
		return st, nil
	}
	if a.fetching {
		st := cloneState(a.state)
		a.mu.Unlock()
		return st, ErrFetchInProgress
	}
	a.fetching = true
	gen := a.generation
	cursor := a.state.NextPage
	a.mu.Unlock()

	resp, err := a.fetcher.FetchPage(ctx, cursor)
	var posts []post.Summary
	if err == nil {
		posts, err = normalize(resp.Results)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.fetching = false
	if err != nil {
		return cloneState(a.state), fmt.Errorf("feed: load %s: %w", cursor, err)
	}
	if gen != a.generation || ctx.Err() != nil {
		return cloneState(a.state), ErrStale
	}
	a.state.Posts = append(a.state.Posts, posts...)
	a.state.NextPage = resp.NextPage
	return cloneState(a.state), nil
}

func cloneState(st State) State {
	if st.Posts == nil {
		return st
	}
	posts := make([]post.Summary, len(st.Posts))
	copy(posts, st.Posts)
	return State{Posts: posts, NextPage: st.NextPage}
}
