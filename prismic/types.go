package prismic

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Response is one page of a document search. NextPage is empty when there
// are no further pages, whatever shape the API used to say so.
type Response struct {
	Page             int
	ResultsPerPage   int
	ResultsSize      int
	TotalResultsSize int
	TotalPages       int
	NextPage         string
	PrevPage         string
	Results          []Document
}

// HasNext reports whether a continuation cursor is available.
func (r *Response) HasNext() bool {
	return r.NextPage != ""
}

type responseWire struct {
	Page             int        `json:"page"`
	ResultsPerPage   int        `json:"results_per_page"`
	ResultsSize      int        `json:"results_size"`
	TotalResultsSize int        `json:"total_results_size"`
	TotalPages       int        `json:"total_pages"`
	NextPage         *string    `json:"next_page"`
	PrevPage         *string    `json:"prev_page"`
	Results          []Document `json:"results"`
}

// UnmarshalJSON folds null, missing and empty cursors into "".
func (r *Response) UnmarshalJSON(b []byte) error {
	var w responseWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*r = Response{
		Page:             w.Page,
		ResultsPerPage:   w.ResultsPerPage,
		ResultsSize:      w.ResultsSize,
		TotalResultsSize: w.TotalResultsSize,
		TotalPages:       w.TotalPages,
		NextPage:         normalizeCursor(w.NextPage),
		PrevPage:         normalizeCursor(w.PrevPage),
		Results:          w.Results,
	}
	return nil
}

// MarshalJSON writes the wire shape, with null for absent cursors.
func (r Response) MarshalJSON() ([]byte, error) {
	w := responseWire{
		Page:             r.Page,
		ResultsPerPage:   r.ResultsPerPage,
		ResultsSize:      r.ResultsSize,
		TotalResultsSize: r.TotalResultsSize,
		TotalPages:       r.TotalPages,
		Results:          r.Results,
	}
	if r.NextPage != "" {
		w.NextPage = &r.NextPage
	}
	if r.PrevPage != "" {
		w.PrevPage = &r.PrevPage
	}
	if w.Results == nil {
		w.Results = []Document{}
	}
	return json.Marshal(w)
}

func normalizeCursor(p *string) string {
	if p == nil {
		return ""
	}
	s := strings.TrimSpace(*p)
	if s == "null" || s == "undefined" {
		return ""
	}
	return s
}

// Document is a CMS document in wire form. Data is left raw so callers can
// decode the custom type they expect.
type Document struct {
	ID                   string          `json:"id"`
	UID                  string          `json:"uid"`
	Type                 string          `json:"type"`
	Lang                 string          `json:"lang,omitempty"`
	Tags                 []string        `json:"tags,omitempty"`
	FirstPublicationDate string          `json:"first_publication_date"`
	LastPublicationDate  string          `json:"last_publication_date,omitempty"`
	Data                 json.RawMessage `json:"data"`
}

// Published returns the parsed first publication date.
func (d Document) Published() (time.Time, error) {
	return ParseTime(d.FirstPublicationDate)
}

// timeLayouts covers the API's own format ("+0000" offsets) and RFC 3339.
var timeLayouts = []string{
	"2006-01-02T15:04:05-0700",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02",
}

// ParseTime parses a timestamp as emitted by the content API.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("prismic: empty timestamp")
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("prismic: unrecognized timestamp %q", s)
}

// QueryOptions tunes a search request. Zero values fall back to API defaults.
type QueryOptions struct {
	PageSize  int
	Page      int
	Orderings string // e.g. NewestFirst
}

// NewestFirst orders documents by first publication, most recent first.
const NewestFirst = "[document.first_publication_date desc]"

type apiInfo struct {
	Refs []struct {
		ID          string `json:"id"`
		Ref         string `json:"ref"`
		Label       string `json:"label"`
		IsMasterRef bool   `json:"isMasterRef"`
	} `json:"refs"`
}
