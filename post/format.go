package post

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// WordsPerMinute is the assumed reading speed.
const WordsPerMinute = 200

var monthAbbr = func() [12]string {
	names := [12]string{"jan", "fev", "mar", "abr", "mai", "jun", "jul", "ago", "set", "out", "nov", "dez"}
	title := cases.Title(language.BrazilianPortuguese)
	for i, n := range names {
		names[i] = title.String(n)
	}
	return names
}()

// FormatDate renders t as "10 Mar 2021" with Brazilian Portuguese month
// abbreviations, in t's own location.
func FormatDate(t time.Time) string {
	return fmt.Sprintf("%02d %s %04d", t.Day(), monthAbbr[t.Month()-1], t.Year())
}

// WordCount counts whitespace-delimited words. Empty text counts as zero.
func WordCount(s string) int {
	return len(strings.Fields(s))
}

// ReadingTime returns ceil(words/WordsPerMinute) over every heading and
// body block in content.
func ReadingTime(content []Section) int {
	words := 0
	for _, s := range content {
		if s.Heading != "" {
			words += WordCount(s.Heading)
		}
		for _, b := range s.Body {
			words += WordCount(b.Text)
		}
	}
	return (words + WordsPerMinute - 1) / WordsPerMinute
}
