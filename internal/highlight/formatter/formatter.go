// Package formatter wraps matched spans in markup and records which terms
// were actually highlighted during one highlighting pass.
package formatter

import "strings"

const (
	DefaultPreTag  = "<B>"
	DefaultPostTag = "</B>"
)

// Formatter is scoped to one document pass. It is not safe for concurrent
// use and must not be shared between documents.
type Formatter struct {
	preTag  string
	postTag string
	record  *HitWords
}

func New(preTag, postTag string) *Formatter {
	return &Formatter{
		preTag:  preTag,
		postTag: postTag,
		record:  NewHitWords(),
	}
}

func NewDefault() *Formatter {
	return New(DefaultPreTag, DefaultPostTag)
}

// Format wraps text in the delimiters and records it. A score of zero or
// less is not a match: text comes back unchanged and nothing is recorded.
func (f *Formatter) Format(text string, score float64) string {
	if score <= 0 {
		return text
	}
	var sb strings.Builder
	sb.Grow(len(f.preTag) + len(text) + len(f.postTag))
	sb.WriteString(f.preTag)
	sb.WriteString(text)
	sb.WriteString(f.postTag)
	f.record.Add(text)
	return sb.String()
}

// Terms returns the highlighted terms, one spelling per case-insensitive
// entry, in first-seen order.
func (f *Formatter) Terms() []string {
	return f.record.Values()
}

// Record exposes the accumulated hit words.
func (f *Formatter) Record() *HitWords {
	return f.record
}

// Reset clears the record for a new pass.
func (f *Formatter) Reset() {
	f.record = NewHitWords()
}

// HitWords is a set of strings compared case-insensitively. The first
// spelling seen for a word is the one kept.
type HitWords struct {
	seen   map[string]int
	values []string
}

func NewHitWords() *HitWords {
	return &HitWords{seen: make(map[string]int)}
}

// Add inserts word unless a case variant is already present.
func (h *HitWords) Add(word string) bool {
	key := strings.ToLower(word)
	if _, ok := h.seen[key]; ok {
		return false
	}
	h.seen[key] = len(h.values)
	h.values = append(h.values, word)
	return true
}

// Merge adds every word of other.
func (h *HitWords) Merge(other *HitWords) {
	if other == nil {
		return
	}
	for _, w := range other.values {
		h.Add(w)
	}
}

func (h *HitWords) Contains(word string) bool {
	_, ok := h.seen[strings.ToLower(word)]
	return ok
}

func (h *HitWords) Len() int {
	return len(h.values)
}

func (h *HitWords) Values() []string {
	out := make([]string, len(h.values))
	copy(out, h.values)
	return out
}
