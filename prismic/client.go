// Package prismic is a small client for a Prismic-style headless CMS REST API.
// It covers the handful of calls the blog needs: typed queries, lookups by
// uid, uid enumeration and following opaque next_page cursors.
package prismic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

var (
	// ErrNotFound is returned when no document matches a lookup.
	ErrNotFound = errors.New("prismic: document not found")
	// ErrForeignCursor is returned when a cursor points outside the API host.
	ErrForeignCursor = errors.New("prismic: cursor does not belong to the configured endpoint")
	// ErrNoMasterRef is returned when the API root advertises no master ref.
	ErrNoMasterRef = errors.New("prismic: no master ref")
)

// APIError carries a non-2xx response from the API.
type APIError struct {
	Status int
	URL    string
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("prismic: %s returned %d: %s", e.URL, e.Status, e.Body)
}

// Is lets errors.Is(err, ErrNotFound) match 404 responses.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.Status == http.StatusNotFound
}

// Config is everything the client needs; nothing is read from the environment.
type Config struct {
	APIEndpoint string // e.g. https://my-repo.cdn.prismic.io/api/v2
	AccessToken string
	HTTPClient  *http.Client
	// RefTTL bounds how long the master ref is reused. Zero keeps it until
	// Refresh is called.
	RefTTL time.Duration
}

// Client talks to the content API. It is safe for concurrent use.
type Client struct {
	endpoint   *url.URL
	token      string
	httpClient *http.Client
	refTTL     time.Duration

	mu    sync.Mutex
	ref   string
	refAt time.Time
}

// New validates cfg and returns a Client.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIEndpoint) == "" {
		return nil, fmt.Errorf("prismic: APIEndpoint is required")
	}
	u, err := url.Parse(strings.TrimRight(cfg.APIEndpoint, "/"))
	if err != nil {
		return nil, fmt.Errorf("prismic: parse endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("prismic: endpoint must be http(s), got %q", cfg.APIEndpoint)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		endpoint:   u,
		token:      cfg.AccessToken,
		httpClient: httpClient,
		refTTL:     cfg.RefTTL,
	}, nil
}

// Ref returns the master ref, fetching it from the API root on first use.
func (c *Client) Ref(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ref != "" && (c.refTTL <= 0 || time.Since(c.refAt) < c.refTTL) {
		return c.ref, nil
	}
	u := *c.endpoint
	if c.token != "" {
		q := u.Query()
		q.Set("access_token", c.token)
		u.RawQuery = q.Encode()
	}
	var info apiInfo
	if err := c.getJSON(ctx, u.String(), &info); err != nil {
		return "", fmt.Errorf("prismic: fetch api root: %w", err)
	}
	for _, r := range info.Refs {
		if r.IsMasterRef {
			c.ref = r.Ref
			c.refAt = time.Now()
			return c.ref, nil
		}
	}
	return "", ErrNoMasterRef
}

// Refresh forgets the cached master ref so the next call picks up new
// publications.
func (c *Client) Refresh() {
	c.mu.Lock()
	c.ref = ""
	c.mu.Unlock()
}

// QueryByType returns one page of documents of the given custom type.
func (c *Client) QueryByType(ctx context.Context, typeTag string, opts QueryOptions) (*Response, error) {
	return c.search(ctx, fmt.Sprintf(`[[at(document.type,"%s")]]`, typeTag), opts)
}

// GetByUID returns the document of typeTag with the given uid.
func (c *Client) GetByUID(ctx context.Context, typeTag, uid string) (*Document, error) {
	if uid == "" || strings.ContainsAny(uid, "\"[]\\") {
		return nil, ErrNotFound
	}
	q := fmt.Sprintf(`[[at(my.%s.uid,"%s")]]`, typeTag, uid)
	resp, err := c.search(ctx, q, QueryOptions{PageSize: 1})
	if err != nil {
		return nil, err
	}
	if len(resp.Results) == 0 {
		return nil, ErrNotFound
	}
	doc := resp.Results[0]
	return &doc, nil
}

// ListAllUIDsByType walks every page of typeTag and returns the uids in API
// order. Documents without a uid are skipped.
func (c *Client) ListAllUIDsByType(ctx context.Context, typeTag string) ([]string, error) {
	var uids []string
	for page := 1; ; page++ {
		resp, err := c.QueryByType(ctx, typeTag, QueryOptions{PageSize: 100, Page: page})
		if err != nil {
			return nil, err
		}
		for _, d := range resp.Results {
			if d.UID != "" {
				uids = append(uids, d.UID)
			}
		}
		if !resp.HasNext() || len(resp.Results) == 0 {
			return uids, nil
		}
	}
}

// FetchPage follows a next_page cursor. Only cursors on the configured
// endpoint host are followed.
func (c *Client) FetchPage(ctx context.Context, cursor string) (*Response, error) {
	u, err := url.Parse(cursor)
	if err != nil {
		return nil, fmt.Errorf("prismic: parse cursor: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || !strings.EqualFold(u.Host, c.endpoint.Host) {
		return nil, ErrForeignCursor
	}
	if c.token != "" {
		q := u.Query()
		if q.Get("access_token") == "" {
			q.Set("access_token", c.token)
			u.RawQuery = q.Encode()
		}
	}
	var resp Response
	if err := c.getJSON(ctx, u.String(), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) search(ctx context.Context, predicate string, opts QueryOptions) (*Response, error) {
	ref, err := c.Ref(ctx)
	if err != nil {
		return nil, err
	}
	u := c.endpoint.JoinPath("documents", "search")
	q := url.Values{}
	q.Set("ref", ref)
	q.Set("q", predicate)
	if opts.PageSize > 0 {
		q.Set("pageSize", strconv.Itoa(opts.PageSize))
	}
	if opts.Page > 0 {
		q.Set("page", strconv.Itoa(opts.Page))
	}
	if opts.Orderings != "" {
		q.Set("orderings", opts.Orderings)
	}
	if c.token != "" {
		q.Set("access_token", c.token)
	}
	u.RawQuery = q.Encode()

	var resp Response
	if err := c.getJSON(ctx, u.String(), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) getJSON(ctx context.Context, rawURL string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("prismic: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("prismic: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &APIError{Status: resp.StatusCode, URL: redact(req.URL), Body: strings.TrimSpace(string(body))}
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("prismic: decode response: %w", err)
	}
	return nil
}

// redact strips the access token before a URL ends up in an error message.
func redact(u *url.URL) string {
	cp := *u
	q := cp.Query()
	if q.Has("access_token") {
		q.Set("access_token", "REDACTED")
		cp.RawQuery = q.Encode()
	}
	return cp.String()
}
