package query

import "encoding/json"

// FlatTerm is one literal term relevant to highlighting.
type FlatTerm struct {
	Field string  `json:"field"`
	Text  string  `json:"text"`
	Boost float64 `json:"boost"`
}

type termKey struct {
	field string
	text  string
}

// FlatTermSet is the flattened form of a query: literal terms deduplicated
// by (field, text). Once built it is read-only and may be shared between
// documents evaluated against the same dictionary generation.
type FlatTermSet struct {
	terms      []FlatTerm
	index      map[termKey]int
	fieldMatch bool
}

// NewFlatTermSet returns an empty set. With fieldMatch unset, ForField
// ignores the field a term came from.
func NewFlatTermSet(fieldMatch bool) *FlatTermSet {
	return &FlatTermSet{
		index:      make(map[termKey]int),
		fieldMatch: fieldMatch,
	}
}

// Add inserts t unless a term with the same field and text is present. It
// reports whether t was inserted.
func (s *FlatTermSet) Add(t FlatTerm) bool {
	key := termKey{field: t.Field, text: t.Text}
	if _, ok := s.index[key]; ok {
		return false
	}
	if t.Boost == 0 {
		t.Boost = 1
	}
	s.index[key] = len(s.terms)
	s.terms = append(s.terms, t)
	return true
}

func (s *FlatTermSet) Contains(field, text string) bool {
	_, ok := s.index[termKey{field: field, text: text}]
	return ok
}

func (s *FlatTermSet) Len() int {
	return len(s.terms)
}

func (s *FlatTermSet) FieldMatch() bool {
	return s.fieldMatch
}

// Terms returns a copy of the terms in insertion order.
func (s *FlatTermSet) Terms() []FlatTerm {
	out := make([]FlatTerm, len(s.terms))
	copy(out, s.terms)
	return out
}

// ForField returns the terms that may highlight field.
func (s *FlatTermSet) ForField(field string) []FlatTerm {
	if !s.fieldMatch {
		return s.Terms()
	}
	out := make([]FlatTerm, 0, len(s.terms))
	for _, t := range s.terms {
		if t.Field == field {
			out = append(out, t)
		}
	}
	return out
}

type flatTermSetJSON struct {
	FieldMatch bool       `json:"field_match"`
	Terms      []FlatTerm `json:"terms"`
}

func (s *FlatTermSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(flatTermSetJSON{FieldMatch: s.fieldMatch, Terms: s.terms})
}

func (s *FlatTermSet) UnmarshalJSON(data []byte) error {
	var raw flatTermSetJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = *NewFlatTermSet(raw.FieldMatch)
	for _, t := range raw.Terms {
		s.Add(t)
	}
	return nil
}
