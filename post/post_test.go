package post

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/spacetraveling/prismic"
	"github.com/eringen/spacetraveling/richtext"
)

func doc(uid, date, data string) prismic.Document {
	return prismic.Document{ID: "id-" + uid, UID: uid, Type: "posts", FirstPublicationDate: date, Data: json.RawMessage(data)}
}

func TestFormatDate(t *testing.T) {
	tests := []struct {
		in   time.Time
		want string
	}{
		{time.Date(2021, 3, 10, 0, 0, 0, 0, time.UTC), "10 Mar 2021"},
		{time.Date(2021, 2, 1, 12, 0, 0, 0, time.UTC), "01 Fev 2021"},
		{time.Date(2020, 12, 25, 23, 59, 0, 0, time.UTC), "25 Dez 2020"},
		{time.Date(2022, 8, 7, 0, 0, 0, 0, time.UTC), "07 Ago 2022"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDate(tt.in))
	}
}

func TestFormatDateUsesTimestampOffset(t *testing.T) {
	ts, err := prismic.ParseTime("2021-03-10T00:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, "10 Mar 2021", FormatDate(ts))

	ts, err = prismic.ParseTime("2021-03-10T23:30:00-0300")
	require.NoError(t, err)
	assert.Equal(t, "10 Mar 2021", FormatDate(ts))
}

func words(n int) string {
	return strings.TrimSpace(strings.Repeat("palavra ", n))
}

func TestReadingTime(t *testing.T) {
	block := func(text string) richtext.Block { return richtext.Block{Type: "paragraph", Text: text} }
	tests := []struct {
		name    string
		content []Section
		want    int
	}{
		{"empty", nil, 0},
		{"three words", []Section{{Body: []richtext.Block{block("um dois tres")}}}, 1},
		{"exactly 400", []Section{{Body: []richtext.Block{block(words(200)), block(words(200))}}}, 2},
		{"401 with heading", []Section{{Heading: "titulo", Body: []richtext.Block{block(words(400))}}}, 3},
		{"empty text is zero words", []Section{{Body: []richtext.Block{block(""), block("   ")}}}, 0},
		{"heading only", []Section{{Heading: "um dois"}}, 1},
		{"multiple sections", []Section{
			{Heading: "a b", Body: []richtext.Block{block(words(99))}},
			{Heading: "", Body: []richtext.Block{block(words(100))}},
		}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ReadingTime(tt.content))
		})
	}
}

func TestWordCountCollapsesWhitespace(t *testing.T) {
	assert.Equal(t, 0, WordCount(""))
	assert.Equal(t, 3, WordCount("  um\tdois\n tres  "))
}

func TestNewSummary(t *testing.T) {
	d := doc("primeiro-post", "2021-03-10T00:00:00+0000", `{"title":"Como usar Hooks","subtitle":"Pensando em sincronização","author":"Joseph Oliveira","content":[]}`)
	s, err := NewSummary(d)
	require.NoError(t, err)
	assert.Equal(t, "primeiro-post", s.UID)
	assert.Equal(t, "10 Mar 2021", s.Date)
	assert.Equal(t, "Como usar Hooks", s.Title)
	assert.Equal(t, "Pensando em sincronização", s.Subtitle)
	assert.Equal(t, "Joseph Oliveira", s.Author)
	assert.Equal(t, "/post/primeiro-post/", s.Link())
}

func TestNewSummaryMalformed(t *testing.T) {
	tests := []struct {
		name  string
		doc   prismic.Document
		field string
	}{
		{"missing uid", doc("", "2021-03-10T00:00:00Z", `{"title":"t","subtitle":"s","author":"a"}`), "uid"},
		{"bad date", doc("x", "ontem", `{"title":"t","subtitle":"s","author":"a"}`), "first_publication_date"},
		{"no data", doc("x", "2021-03-10T00:00:00Z", ``), "data"},
		{"missing title", doc("x", "2021-03-10T00:00:00Z", `{"subtitle":"s","author":"a"}`), "data.title"},
		{"missing author", doc("x", "2021-03-10T00:00:00Z", `{"title":"t","subtitle":"s"}`), "data.author"},
		{"bad json", doc("x", "2021-03-10T00:00:00Z", `{"title":1}`), "data"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSummary(tt.doc)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformed))
			var me *MalformedError
			require.True(t, errors.As(err, &me))
			assert.Equal(t, tt.field, me.Field)
		})
	}
}

func TestNewDetail(t *testing.T) {
	data := `{
		"title": "Como usar Hooks",
		"subtitle": "",
		"author": "Joseph Oliveira",
		"banner": {"url": "https://images.example.com/banner.png"},
		"content": [
			{"heading": "Proin et varius", "body": [{"type": "paragraph", "text": "um dois tres", "spans": [{"start": 0, "end": 2, "type": "strong"}]}]},
			{"heading": null, "body": [{"type": "list-item", "text": "quatro", "spans": []}]}
		]
	}`
	d, err := NewDetail(doc("hooks", "2021-03-25T19:25:28+0000", data))
	require.NoError(t, err)
	assert.Equal(t, "Como usar Hooks", d.Title)
	assert.Equal(t, "https://images.example.com/banner.png", d.BannerURL)
	require.Len(t, d.Content, 2)
	assert.Equal(t, "Proin et varius", d.Content[0].Heading)
	assert.Equal(t, "", d.Content[1].Heading)
	assert.Equal(t, "strong", d.Content[0].Body[0].Spans[0].Type)
	assert.Equal(t, "25 Mar 2021", d.Date)
	assert.Equal(t, 1, d.ReadingTime())
}

func TestTextAcceptsStructuredText(t *testing.T) {
	data := `{"title":[{"type":"heading1","text":"Titulo rico","spans":[]}],"subtitle":"s","author":"a"}`
	s, err := NewSummary(doc("rico", "2021-03-10T00:00:00Z", data))
	require.NoError(t, err)
	assert.Equal(t, "Titulo rico", s.Title)
}
