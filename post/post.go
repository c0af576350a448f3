// Package post turns raw CMS documents into the display records the blog
// renders, and holds the small amount of logic that goes with them.
package post

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/eringen/spacetraveling/prismic"
	"github.com/eringen/spacetraveling/richtext"
)

// Summary is what the listing page shows for one post.
type Summary struct {
	UID         string    `json:"uid"`
	PublishedAt time.Time `json:"first_publication_date"`
	Date        string    `json:"date"`
	Title       string    `json:"title"`
	Subtitle    string    `json:"subtitle"`
	Author      string    `json:"author"`
}

// Link is the site-relative URL of the post page.
func (s Summary) Link() string {
	return "/post/" + s.UID + "/"
}

// Section is a headed run of rich-text blocks.
type Section struct {
	Heading string           `json:"heading"`
	Body    []richtext.Block `json:"body"`
}

// Detail is a full post.
type Detail struct {
	Summary
	BannerURL string    `json:"banner_url"`
	Content   []Section `json:"content"`
}

// ReadingTime estimates the minutes needed to read the post.
func (d Detail) ReadingTime() int {
	return ReadingTime(d.Content)
}

// ErrMalformed matches any MalformedError.
var ErrMalformed = errors.New("malformed content")

// MalformedError reports a CMS document missing data the blog needs.
type MalformedError struct {
	UID   string
	Field string
	Err   error
}

func (e *MalformedError) Error() string {
	msg := fmt.Sprintf("post %q: malformed content: field %s", e.UID, e.Field)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedError) Unwrap() error { return e.Err }

func (e *MalformedError) Is(target error) bool { return target == ErrMalformed }

// RawPost is the data block of a document as listed on the home page.
type RawPost struct {
	Title    Text `json:"title" validate:"required"`
	Subtitle Text `json:"subtitle" validate:"required"`
	Author   Text `json:"author" validate:"required"`
}

// RawPostDetail is the data block of a document as shown on its own page.
type RawPostDetail struct {
	Title    Text `json:"title" validate:"required"`
	Subtitle Text `json:"subtitle"`
	Author   Text `json:"author" validate:"required"`
	Banner   struct {
		URL string `json:"url"`
	} `json:"banner"`
	Content []rawSection `json:"content"`
}

type rawSection struct {
	Heading Text             `json:"heading"`
	Body    []richtext.Block `json:"body"`
}

// Text is a string field that may arrive either as plain key text or as a
// structured-text array; the latter is flattened to its plain text.
type Text string

func (t *Text) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*t = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*t = Text(s)
		return nil
	}
	var blocks []richtext.Block
	if err := json.Unmarshal(b, &blocks); err != nil {
		return fmt.Errorf("text field: %w", err)
	}
	*t = Text(richtext.PlainText(blocks))
	return nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// NewSummary normalizes a listed document.
func NewSummary(doc prismic.Document) (Summary, error) {
	published, err := header(doc)
	if err != nil {
		return Summary{}, err
	}
	var raw RawPost
	if err := decode(doc, &raw); err != nil {
		return Summary{}, err
	}
	return Summary{
		UID:         doc.UID,
		PublishedAt: published,
		Date:        FormatDate(published),
		Title:       string(raw.Title),
		Subtitle:    string(raw.Subtitle),
		Author:      string(raw.Author),
	}, nil
}

// NewDetail normalizes a document fetched for its own page.
func NewDetail(doc prismic.Document) (Detail, error) {
	published, err := header(doc)
	if err != nil {
		return Detail{}, err
	}
	var raw RawPostDetail
	if err := decode(doc, &raw); err != nil {
		return Detail{}, err
	}
	content := make([]Section, 0, len(raw.Content))
	for _, s := range raw.Content {
		content = append(content, Section{Heading: string(s.Heading), Body: s.Body})
	}
	return Detail{
		Summary: Summary{
			UID:         doc.UID,
			PublishedAt: published,
			Date:        FormatDate(published),
			Title:       string(raw.Title),
			Subtitle:    string(raw.Subtitle),
			Author:      string(raw.Author),
		},
		BannerURL: raw.Banner.URL,
		Content:   content,
	}, nil
}

func header(doc prismic.Document) (time.Time, error) {
	if doc.UID == "" {
		return time.Time{}, &MalformedError{UID: doc.ID, Field: "uid"}
	}
	published, err := doc.Published()
	if err != nil {
		return time.Time{}, &MalformedError{UID: doc.UID, Field: "first_publication_date", Err: err}
	}
	return published, nil
}

func decode(doc prismic.Document, dst any) error {
	if len(doc.Data) == 0 {
		return &MalformedError{UID: doc.UID, Field: "data"}
	}
	if err := json.Unmarshal(doc.Data, dst); err != nil {
		return &MalformedError{UID: doc.UID, Field: "data", Err: err}
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return &MalformedError{UID: doc.UID, Field: "data." + verrs[0].Field()}
		}
		return &MalformedError{UID: doc.UID, Field: "data", Err: err}
	}
	return nil
}
