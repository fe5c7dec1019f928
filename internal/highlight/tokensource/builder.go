package tokensource

// Builder records token occurrences into a PositionVector, grouping them by
// term in first-seen order the way a term vector writer does.
type Builder struct {
	field string
	index map[string]int
	terms []TermEntry
}

func NewBuilder(field string) *Builder {
	return &Builder{
		field: field,
		index: make(map[string]int),
	}
}

// Add records one occurrence of term.
func (b *Builder) Add(term string, start, end, position int) {
	i, ok := b.index[term]
	if !ok {
		i = len(b.terms)
		b.index[term] = i
		b.terms = append(b.terms, TermEntry{
			Term:      term,
			Offsets:   make([]Offset, 0, 1),
			Positions: make([]int, 0, 1),
		})
	}
	b.terms[i].Offsets = append(b.terms[i].Offsets, Offset{Start: start, End: end})
	b.terms[i].Positions = append(b.terms[i].Positions, position)
}

// Vector returns the recorded vector. The builder must not be reused.
func (b *Builder) Vector() *PositionVector {
	return &PositionVector{Field: b.field, Terms: b.terms}
}
