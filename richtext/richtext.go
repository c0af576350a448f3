// Package richtext renders CMS structured text (blocks with offset-based spans)
// as HTML, either as a string or a templ.Component.
package richtext

import (
	"bytes"
	"context"
	"html"
	"io"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/a-h/templ"
)

// Block is one structured-text element, e.g. a paragraph or a list item.
type Block struct {
	Type       string      `json:"type"`
	Text       string      `json:"text"`
	Spans      []Span      `json:"spans,omitempty"`
	URL        string      `json:"url,omitempty"`
	Alt        string      `json:"alt,omitempty"`
	Dimensions *Dimensions `json:"dimensions,omitempty"`
}

// Dimensions of an image block.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Span marks up Text[Start:End]. Offsets count UTF-16 code units.
type Span struct {
	Start int       `json:"start"`
	End   int       `json:"end"`
	Type  string    `json:"type"`
	Data  *SpanData `json:"data,omitempty"`
}

// SpanData holds hyperlink targets and label names.
type SpanData struct {
	LinkType string `json:"link_type,omitempty"`
	URL      string `json:"url,omitempty"`
	Target   string `json:"target,omitempty"`
	Label    string `json:"label,omitempty"`
}

// HTML returns a templ.Component that renders blocks.
func HTML(blocks []Block) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var buf bytes.Buffer
		Render(&buf, blocks)
		_, err := w.Write(buf.Bytes())
		return err
	})
}

// AsHTML returns the HTML for blocks.
func AsHTML(blocks []Block) string {
	var buf bytes.Buffer
	Render(&buf, blocks)
	return buf.String()
}

// PlainText joins block texts with newlines.
func PlainText(blocks []Block) string {
	parts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		if b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// Render writes the HTML for blocks to buf. Consecutive list items are
// grouped into a single list.
func Render(buf *bytes.Buffer, blocks []Block) {
	imageCount := 0
	inList := false
	inOrderedList := false

	flushList := func() {
		if inList {
			buf.WriteString("</ul>")
			inList = false
		}
	}
	flushOrderedList := func() {
		if inOrderedList {
			buf.WriteString("</ol>")
			inOrderedList = false
		}
	}

	for _, b := range blocks {
		switch b.Type {
		case "list-item":
			flushOrderedList()
			if !inList {
				buf.WriteString("<ul>")
				inList = true
			}
			buf.WriteString("<li>")
			buf.WriteString(FormatSpans(b.Text, b.Spans))
			buf.WriteString("</li>")
			continue
		case "o-list-item":
			flushList()
			if !inOrderedList {
				buf.WriteString("<ol>")
				inOrderedList = true
			}
			buf.WriteString("<li>")
			buf.WriteString(FormatSpans(b.Text, b.Spans))
			buf.WriteString("</li>")
			continue
		}

		flushList()
		flushOrderedList()

		switch b.Type {
		case "heading1", "heading2", "heading3", "heading4", "heading5", "heading6":
			tag := "h" + b.Type[len("heading"):]
			buf.WriteString("<" + tag + ">")
			buf.WriteString(FormatSpans(b.Text, b.Spans))
			buf.WriteString("</" + tag + ">")
		case "preformatted":
			buf.WriteString("<pre>")
			buf.WriteString(html.EscapeString(b.Text))
			buf.WriteString("</pre>")
		case "image":
			src := SafeURL(b.URL)
			if src == "" {
				continue
			}
			imageCount++
			loadAttr := `loading="lazy"`
			if imageCount == 1 {
				loadAttr = `fetchpriority="high"`
			}
			buf.WriteString(`<p class="block-img"><img ` + loadAttr + ` src="` + src + `" alt="` + html.EscapeString(b.Alt) + `"`)
			if b.Dimensions != nil && b.Dimensions.Width > 0 && b.Dimensions.Height > 0 {
				buf.WriteString(` width="` + strconv.Itoa(b.Dimensions.Width) + `" height="` + strconv.Itoa(b.Dimensions.Height) + `"`)
			}
			buf.WriteString(` decoding="async"/></p>`)
		default:
			buf.WriteString("<p>")
			buf.WriteString(FormatSpans(b.Text, b.Spans))
			buf.WriteString("</p>")
		}
	}
	flushList()
	flushOrderedList()
}

// FormatSpans escapes text and wraps the span ranges in tags. Overlapping
// spans are closed and reopened so the output always nests.
func FormatSpans(text string, spans []Span) string {
	if len(spans) == 0 {
		return strings.ReplaceAll(html.EscapeString(text), "\n", "<br/>")
	}
	units := utf16.Encode([]rune(text))
	n := len(units)

	valid := make([]Span, 0, len(spans))
	for _, s := range spans {
		if s.Start < 0 || s.End > n {
			continue
		}
		// Offsets inside a surrogate pair widen to cover the whole code point.
		if splitsPair(units, s.Start) {
			s.Start--
		}
		if splitsPair(units, s.End) {
			s.End++
		}
		if s.Start >= s.End || openTag(s) == "" {
			continue
		}
		valid = append(valid, s)
	}
	// Longer spans open first so shorter ones nest inside them.
	sort.SliceStable(valid, func(i, j int) bool {
		if valid[i].Start != valid[j].Start {
			return valid[i].Start < valid[j].Start
		}
		return valid[i].End > valid[j].End
	})

	var out strings.Builder
	var stack []Span
	next := 0
	for pos := 0; pos <= n; pos++ {
		// Close everything ending here, reopening spans that continue.
		for {
			idx := -1
			for i, s := range stack {
				if s.End == pos {
					idx = i
					break
				}
			}
			if idx < 0 {
				break
			}
			var reopen []Span
			for len(stack) > idx {
				top := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				out.WriteString(closeTag(top))
				if top.End != pos {
					reopen = append(reopen, top)
				}
			}
			for i := len(reopen) - 1; i >= 0; i-- {
				out.WriteString(openTag(reopen[i]))
				stack = append(stack, reopen[i])
			}
		}
		for next < len(valid) && valid[next].Start == pos {
			out.WriteString(openTag(valid[next]))
			stack = append(stack, valid[next])
			next++
		}
		if pos == n {
			break
		}
		// Keep surrogate pairs together.
		end := pos + 1
		if splitsPair(units, end) {
			end++
		}
		chunk := string(utf16.Decode(units[pos:end]))
		if chunk == "\n" {
			out.WriteString("<br/>")
		} else {
			out.WriteString(html.EscapeString(chunk))
		}
		pos = end - 1
	}
	return out.String()
}

// splitsPair reports whether offset i falls between the two halves of a
// surrogate pair.
func splitsPair(units []uint16, i int) bool {
	if i <= 0 || i >= len(units) {
		return false
	}
	hi, lo := units[i-1], units[i]
	return hi >= 0xD800 && hi < 0xDC00 && lo >= 0xDC00 && lo < 0xE000
}

func openTag(s Span) string {
	switch s.Type {
	case "strong":
		return "<strong>"
	case "em":
		return "<em>"
	case "label":
		if s.Data == nil || s.Data.Label == "" {
			return "<span>"
		}
		return `<span class="` + html.EscapeString(s.Data.Label) + `">`
	case "hyperlink":
		if s.Data == nil {
			return ""
		}
		href := SafeURL(s.Data.URL)
		if href == "" {
			return ""
		}
		attrs := ""
		if s.Data.Target == "_blank" {
			attrs = ` target="_blank" rel="noopener noreferrer"`
		}
		return `<a href="` + href + `"` + attrs + `>`
	}
	return ""
}

func closeTag(s Span) string {
	switch s.Type {
	case "strong":
		return "</strong>"
	case "em":
		return "</em>"
	case "label":
		return "</span>"
	case "hyperlink":
		return "</a>"
	}
	return ""
}

// SafeURL validates and escapes a URL for use in an HTML attribute. Anything
// other than relative, http(s), mailto and tel URLs yields "".
func SafeURL(raw string) string {
	val := strings.TrimSpace(raw)
	if val == "" {
		return ""
	}
	if strings.HasPrefix(val, "/") || strings.HasPrefix(val, "#") {
		return html.EscapeString(val)
	}
	parsed, err := url.Parse(val)
	if err != nil || parsed.Scheme == "" {
		return ""
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https", "mailto", "tel":
		return html.EscapeString(val)
	default:
		return ""
	}
}
