// Package fragments renders fragment lists into highlighted text.
package fragments

import (
	"slices"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/internal/highlight/formatter"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/internal/highlight/fraglist"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/internal/highlight/phrase"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/internal/highlight/tokensource"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/internal/indexer/tokenizer"
)

// Options control fragment selection for one field.
type Options struct {
	NumberOfFragments int
	FragmentSize      int
	ScoreOrdered      bool
	Encoder           Encoder
}

// Renderer writes fragments for one field of one document. The formatter it
// wraps records every term it highlights, so a Renderer must not outlive
// the pass that created it.
type Renderer struct {
	opts      Options
	formatter *formatter.Formatter
}

func NewRenderer(opts Options, f *formatter.Formatter) *Renderer {
	if opts.Encoder == nil {
		opts.Encoder = defaultEncoder{}
	}
	return &Renderer{opts: opts, formatter: f}
}

// window is a run of tokens [lo, hi] inside one field value.
type window struct {
	lo, hi     int
	start, end int
	value      int
	score      float64
	matches    []fraglist.PhraseMatch
}

// Render turns list into at most NumberOfFragments strings. Fragments are
// widened with neighbouring tokens of the same field value up to
// FragmentSize and overlapping fragments are merged. A fragment that holds
// the first or last token of its value also takes in the value text before
// or after it when that fits. Text comes from src when the offsets fit
// inside it and from the token text otherwise.
func (r *Renderer) Render(list *fraglist.FieldFragList, tokens []tokensource.Token, src Source) []string {
	if list == nil || len(list.Fragments) == 0 || len(tokens) == 0 {
		return nil
	}
	windows := make([]window, 0, len(list.Fragments))
	for _, frag := range list.Fragments {
		for _, part := range byValue(frag, tokens) {
			w, ok := locate(part, tokens)
			if !ok {
				continue
			}
			r.expand(&w, tokens)
			windows = append(windows, w)
		}
	}
	windows = merge(windows, tokens)
	for i := range windows {
		r.reach(&windows[i], tokens, src)
	}

	if r.opts.ScoreOrdered {
		windows = topN(windows, r.opts.NumberOfFragments)
	} else if n := r.opts.NumberOfFragments; n > 0 && len(windows) > n {
		windows = windows[:n]
	}

	out := make([]string, 0, len(windows))
	for _, w := range windows {
		out = append(out, r.write(w, tokens, src.Text))
	}
	return out
}

// Whole highlights every match across the entire field as one fragment.
// Values are rendered one by one and joined with a single space.
func (r *Renderer) Whole(matches []fraglist.PhraseMatch, tokens []tokensource.Token, src Source) string {
	if covers(src, tokens) {
		parts := make([]string, 0, len(src.Spans))
		for _, sp := range src.Spans {
			if sp.Start == sp.End {
				continue
			}
			parts = append(parts, r.slice(window{start: sp.Start, end: sp.End, matches: matches}, src.Text))
		}
		return strings.Join(parts, " ")
	}
	if len(tokens) == 0 {
		return r.opts.Encoder.Encode(src.Text)
	}
	var parts []string
	for lo := 0; lo < len(tokens); {
		hi := lo
		for hi+1 < len(tokens) && tokens[hi+1].ValueIndex() == tokens[lo].ValueIndex() {
			hi++
		}
		parts = append(parts, r.joinTokens(window{lo: lo, hi: hi, matches: matches}, tokens))
		lo = hi + 1
	}
	return strings.Join(parts, " ")
}

// Plain fragments analyzed-on-the-fly field values. Each value is analyzed
// on its own and no fragment spans two values. Each fragment is a
// FragmentSize window around its matches; windows without a match are not
// returned.
func (r *Renderer) Plain(values []string, m *phrase.Matcher) []string {
	src := Joined(values, " ")
	var tokens []tokensource.Token
	for v, value := range values {
		base := src.Spans[v].Start
		for _, t := range tokenizer.Tokenize(value) {
			tokens = append(tokens, tokensource.Token{
				Text:              t.Term,
				Start:             base + t.Start,
				End:               base + t.End,
				PositionIncrement: v*tokensource.SentenceGap + t.Position,
			})
		}
	}
	matches := m.Match(tokens)
	if len(matches) == 0 {
		return nil
	}
	if r.opts.NumberOfFragments == 0 {
		return []string{r.Whole(matches, tokens, src)}
	}
	list := fraglist.SimpleBuilder{}.Build(matches, r.opts.FragmentSize)
	return r.Render(list, tokens, src)
}

// covers reports whether src has value spans and every token lies inside
// its text.
func covers(src Source, tokens []tokensource.Token) bool {
	if len(src.Spans) == 0 || src.Text == "" {
		return false
	}
	for _, sp := range src.Spans {
		if !fits(sp.Start, sp.End, src.Text) {
			return false
		}
	}
	for _, t := range tokens {
		if !fits(t.Start, t.End, src.Text) {
			return false
		}
	}
	return true
}

// byValue splits frag so that no part holds matches of two field values.
// A part never starts before the first token of its value.
func byValue(frag fraglist.Fragment, tokens []tokensource.Token) []fraglist.Fragment {
	if len(frag.Matches) == 0 {
		return []fraglist.Fragment{frag}
	}
	var parts []fraglist.Fragment
	last := -1
	for _, m := range frag.Matches {
		i := sort.Search(len(tokens), func(i int) bool { return tokens[i].End > m.Start })
		if i == len(tokens) {
			i--
		}
		value := tokens[i].ValueIndex()
		if len(parts) == 0 || value != last {
			first := i
			for first > 0 && tokens[first-1].ValueIndex() == value {
				first--
			}
			start := max(frag.Start, tokens[first].Start)
			if len(parts) > 0 {
				start = max(start, m.Start)
			}
			parts = append(parts, fraglist.Fragment{Start: start, End: frag.End})
			last = value
		}
		p := &parts[len(parts)-1]
		p.Matches = append(p.Matches, m)
	}
	return parts
}

func locate(frag fraglist.Fragment, tokens []tokensource.Token) (window, bool) {
	lo := sort.Search(len(tokens), func(i int) bool { return tokens[i].End > frag.Start })
	if lo == len(tokens) || tokens[lo].Start >= frag.End {
		return window{}, false
	}
	value := tokens[lo].ValueIndex()
	hi := lo
	for hi+1 < len(tokens) && tokens[hi+1].Start < frag.End && tokens[hi+1].ValueIndex() == value {
		hi++
	}
	w := window{lo: lo, hi: hi, value: value, matches: slices.Clone(frag.Matches)}
	w.bounds(tokens)
	return w, true
}

func (w *window) bounds(tokens []tokensource.Token) {
	w.start, w.end = tokens[w.lo].Start, tokens[w.hi].End
	w.score = 0
	for _, m := range w.matches {
		w.start = min(w.start, m.Start)
		w.end = max(w.end, m.End)
		w.score += m.Weight
	}
}

func (r *Renderer) expand(w *window, tokens []tokensource.Token) {
	size := r.opts.FragmentSize
	if size <= 0 {
		return
	}
	for {
		grew := false
		if w.hi+1 < len(tokens) && tokens[w.hi+1].ValueIndex() == w.value &&
			tokens[w.hi+1].End-w.start <= size {
			w.hi++
			w.end = max(w.end, tokens[w.hi].End)
			grew = true
		}
		if w.lo > 0 && tokens[w.lo-1].ValueIndex() == w.value &&
			w.end-tokens[w.lo-1].Start <= size {
			w.lo--
			w.start = min(w.start, tokens[w.lo].Start)
			grew = true
		}
		if !grew {
			return
		}
	}
}

// reach extends w to the edges of its value when w already holds the
// value's first or last token and the result stays within FragmentSize.
func (r *Renderer) reach(w *window, tokens []tokensource.Token, src Source) {
	size := r.opts.FragmentSize
	sp, ok := src.span(w.value)
	if size <= 0 || !ok || w.start < sp.Start || w.end > sp.End {
		return
	}
	if (w.lo == 0 || tokens[w.lo-1].ValueIndex() != w.value) && w.end-sp.Start <= size {
		w.start = sp.Start
	}
	if (w.hi == len(tokens)-1 || tokens[w.hi+1].ValueIndex() != w.value) && sp.End-w.start <= size {
		w.end = sp.End
	}
}

func merge(windows []window, tokens []tokensource.Token) []window {
	if len(windows) < 2 {
		return windows
	}
	slices.SortStableFunc(windows, func(a, b window) int { return a.lo - b.lo })
	out := windows[:1]
	for _, w := range windows[1:] {
		last := &out[len(out)-1]
		if w.value == last.value && w.lo <= last.hi {
			last.hi = max(last.hi, w.hi)
			last.matches = append(last.matches, w.matches...)
			last.bounds(tokens)
			continue
		}
		out = append(out, w)
	}
	return out
}

func fits(start, end int, source string) bool {
	return start >= 0 && start <= end && end <= len(source)
}

func (r *Renderer) write(w window, tokens []tokensource.Token, source string) string {
	if source != "" && fits(w.start, w.end, source) {
		return r.slice(w, source)
	}
	return r.joinTokens(w, tokens)
}

func (r *Renderer) slice(w window, source string) string {
	matches := slices.Clone(w.matches)
	slices.SortStableFunc(matches, func(a, b fraglist.PhraseMatch) int { return a.Start - b.Start })

	enc := r.opts.Encoder
	var sb strings.Builder
	cursor := w.start
	for _, m := range matches {
		if m.Start < cursor || m.End > w.end || !fits(m.Start, m.End, source) {
			continue
		}
		sb.WriteString(enc.Encode(source[cursor:m.Start]))
		sb.WriteString(r.formatter.Format(enc.Encode(source[m.Start:m.End]), m.Weight))
		cursor = m.End
	}
	sb.WriteString(enc.Encode(source[cursor:w.end]))
	return sb.String()
}

func (r *Renderer) joinTokens(w window, tokens []tokensource.Token) string {
	enc := r.opts.Encoder
	parts := make([]string, 0, w.hi-w.lo+1)
	for i := w.lo; i <= w.hi; i++ {
		tok := tokens[i]
		text := enc.Encode(tok.Text)
		if weight := coveringWeight(tok, w.matches); weight != 0 {
			text = r.formatter.Format(text, weight)
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, " ")
}

func coveringWeight(tok tokensource.Token, matches []fraglist.PhraseMatch) float64 {
	for _, m := range matches {
		if m.Start <= tok.Start && tok.End <= m.End {
			return m.Weight
		}
	}
	return 0
}
