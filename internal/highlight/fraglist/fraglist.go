// Package fraglist groups matched phrase spans into addressable fragments.
package fraglist

import "slices"

// PhraseMatch is one matched span produced by phrase matching.
type PhraseMatch struct {
	Start  int      `json:"start"`
	End    int      `json:"end"`
	Weight float64  `json:"weight"`
	Terms  []string `json:"terms,omitempty"`
}

// Fragment is a highlightable [Start, End) span and the matches inside it.
type Fragment struct {
	Start   int           `json:"start"`
	End     int           `json:"end"`
	Matches []PhraseMatch `json:"matches"`
}

// Score is the summed weight of the fragment's matches.
func (f Fragment) Score() float64 {
	var total float64
	for _, m := range f.Matches {
		total += m.Weight
	}
	return total
}

// FieldFragList is the ordered fragment list of one field of one document.
type FieldFragList struct {
	FragCharSize int        `json:"frag_char_size"`
	Fragments    []Fragment `json:"fragments"`
}

func (l *FieldFragList) Add(start, end int, matches []PhraseMatch) {
	l.Fragments = append(l.Fragments, Fragment{Start: start, End: end, Matches: matches})
}

// Builder turns phrase matches into a fragment list.
type Builder interface {
	Build(matches []PhraseMatch, fragCharSize int) *FieldFragList
}

// TermBuilder emits one fragment per match, spanning exactly that match, in
// input order. The size hint is recorded but otherwise ignored and
// overlapping matches are not merged.
type TermBuilder struct{}

func (TermBuilder) Build(matches []PhraseMatch, fragCharSize int) *FieldFragList {
	list := &FieldFragList{
		FragCharSize: fragCharSize,
		Fragments:    make([]Fragment, 0, len(matches)),
	}
	for _, m := range matches {
		list.Add(m.Start, m.End, []PhraseMatch{m})
	}
	return list
}

const (
	DefaultMargin  = 6
	minFragCharMul = 3
)

// SimpleBuilder windows matches into fragments of about fragCharSize
// characters, starting each window Margin characters before its first
// match. Matches that do not fit the window start the next fragment.
type SimpleBuilder struct {
	Margin int
}

func (b SimpleBuilder) Build(matches []PhraseMatch, fragCharSize int) *FieldFragList {
	margin := b.Margin
	if margin <= 0 {
		margin = DefaultMargin
	}
	if minSize := margin * minFragCharMul; fragCharSize < minSize {
		fragCharSize = minSize
	}
	list := &FieldFragList{FragCharSize: fragCharSize}

	sorted := slices.Clone(matches)
	slices.SortStableFunc(sorted, func(a, c PhraseMatch) int { return a.Start - c.Start })

	for i := 0; i < len(sorted); {
		first := sorted[i]
		start := max(first.Start-margin, 0)
		end := start + fragCharSize
		if first.End > end {
			end = first.End
		}
		group := []PhraseMatch{first}
		i++
		for i < len(sorted) && sorted[i].End <= end {
			group = append(group, sorted[i])
			i++
		}
		list.Add(start, end, group)
	}
	return list
}

// ForPolicy returns the builder registered under name. Unknown names get
// the per-term policy.
func ForPolicy(name string) Builder {
	switch name {
	case "simple":
		return SimpleBuilder{}
	default:
		return TermBuilder{}
	}
}
