package fragments

import "strings"

// Span is the [Start, End) range of one field value inside Source.Text.
type Span struct {
	Start, End int
}

// Source is the text token offsets point into. Spans holds one entry per
// field value; without spans nothing outside the tokens is rendered.
type Source struct {
	Text  string
	Spans []Span
}

// Single wraps a one-valued field.
func Single(text string) Source {
	return Source{Text: text, Spans: []Span{{Start: 0, End: len(text)}}}
}

// Joined concatenates values with sep and records where each one lies.
func Joined(values []string, sep string) Source {
	spans := make([]Span, 0, len(values))
	base := 0
	for _, v := range values {
		spans = append(spans, Span{Start: base, End: base + len(v)})
		base += len(v) + len(sep)
	}
	return Source{Text: strings.Join(values, sep), Spans: spans}
}

func (s Source) span(value int) (Span, bool) {
	if s.Text == "" || value < 0 || value >= len(s.Spans) {
		return Span{}, false
	}
	sp := s.Spans[value]
	return sp, fits(sp.Start, sp.End, s.Text)
}
