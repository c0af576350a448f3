// Package prismictest provides an in-memory content API for tests.
package prismictest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/eringen/spacetraveling/prismic"
)

const masterRef = "master-ref-1"

var (
	reType = regexp.MustCompile(`at\(document\.type,"([^"]*)"\)`)
	reUID  = regexp.MustCompile(`at\(my\.([^.]+)\.uid,"([^"]*)"\)`)
)

// Server serves /api/v2 and /api/v2/documents/search from a document list.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	docs     []prismic.Document
	failing  bool
	searches int
}

// NewServer starts a server holding docs. It is closed when t finishes.
func NewServer(t testing.TB, docs ...prismic.Document) *Server {
	t.Helper()
	s := &Server{docs: docs}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2", s.handleRoot)
	mux.HandleFunc("/api/v2/documents/search", s.handleSearch)
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// Endpoint is the API endpoint to pass to prismic.Config.
func (s *Server) Endpoint() string {
	return s.URL + "/api/v2"
}

// SetFailing makes every search answer 500 while on.
func (s *Server) SetFailing(on bool) {
	s.mu.Lock()
	s.failing = on
	s.mu.Unlock()
}

// SetDocuments replaces the served documents.
func (s *Server) SetDocuments(docs ...prismic.Document) {
	s.mu.Lock()
	s.docs = docs
	s.mu.Unlock()
}

// Searches returns how many search requests were served.
func (s *Server) Searches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.searches
}

// PageURL returns the search URL for a given page of typeTag, the same shape
// the server emits as next_page.
func (s *Server) PageURL(typeTag string, page, pageSize int) string {
	return s.pageURL(typeTag, page, pageSize, "")
}

func (s *Server) pageURL(typeTag string, page, pageSize int, orderings string) string {
	q := url.Values{}
	q.Set("ref", masterRef)
	q.Set("q", `[[at(document.type,"`+typeTag+`")]]`)
	q.Set("page", strconv.Itoa(page))
	q.Set("pageSize", strconv.Itoa(pageSize))
	if orderings != "" {
		q.Set("orderings", orderings)
	}
	return s.Endpoint() + "/documents/search?" + q.Encode()
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"refs": []map[string]any{
			{"id": "master", "ref": masterRef, "label": "Master", "isMasterRef": true},
		},
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.searches++
	failing := s.failing
	docs := append([]prismic.Document(nil), s.docs...)
	s.mu.Unlock()

	if failing {
		http.Error(w, "upstream unavailable", http.StatusInternalServerError)
		return
	}
	q := r.URL.Query()
	if q.Get("ref") != masterRef {
		http.Error(w, "unknown ref", http.StatusBadRequest)
		return
	}

	var typeTag string
	var matched []prismic.Document
	pred := q.Get("q")
	if m := reUID.FindStringSubmatch(pred); m != nil {
		for _, d := range docs {
			if d.Type == m[1] && d.UID == m[2] {
				matched = append(matched, d)
			}
		}
	} else if m := reType.FindStringSubmatch(pred); m != nil {
		typeTag = m[1]
		for _, d := range docs {
			if d.Type == typeTag {
				matched = append(matched, d)
			}
		}
	}

	// prismic.NewestFirst is the only ordering understood; documents
	// otherwise keep their insertion order.
	orderings := q.Get("orderings")
	if orderings == prismic.NewestFirst {
		// Timestamps share one layout and zone, so they sort as strings.
		sort.SliceStable(matched, func(i, j int) bool {
			return matched[i].FirstPublicationDate > matched[j].FirstPublicationDate
		})
	}

	pageSize := atoiDefault(q.Get("pageSize"), 20)
	page := atoiDefault(q.Get("page"), 1)
	start := (page - 1) * pageSize
	end := start + pageSize
	if start > len(matched) {
		start = len(matched)
	}
	if end > len(matched) {
		end = len(matched)
	}
	totalPages := (len(matched) + pageSize - 1) / pageSize

	resp := prismic.Response{
		Page:             page,
		ResultsPerPage:   pageSize,
		ResultsSize:      end - start,
		TotalResultsSize: len(matched),
		TotalPages:       totalPages,
		Results:          matched[start:end],
	}
	if end < len(matched) && typeTag != "" {
		resp.NextPage = s.pageURL(typeTag, page+1, pageSize, orderings)
	}
	if page > 1 && typeTag != "" {
		resp.PrevPage = s.pageURL(typeTag, page-1, pageSize, orderings)
	}
	writeJSON(w, resp)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func atoiDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// Post builds a "posts" document. Content sections are passed through as-is.
func Post(uid, title, subtitle, author string, published time.Time, content ...map[string]any) prismic.Document {
	data := map[string]any{
		"title":    title,
		"subtitle": subtitle,
		"author":   author,
		"banner":   map[string]any{"url": "https://images.example.com/" + uid + ".png"},
		"content":  content,
	}
	if content == nil {
		data["content"] = []map[string]any{}
	}
	raw, _ := json.Marshal(data)
	return prismic.Document{
		ID:                   "id-" + uid,
		UID:                  uid,
		Type:                 "posts",
		FirstPublicationDate: published.UTC().Format("2006-01-02T15:04:05-0700"),
		Data:                 raw,
	}
}

// Section builds a content section with one paragraph per text.
func Section(heading string, texts ...string) map[string]any {
	body := make([]map[string]any, 0, len(texts))
	for _, t := range texts {
		body = append(body, map[string]any{"type": "paragraph", "text": t, "spans": []any{}})
	}
	return map[string]any{"heading": heading, "body": body}
}
