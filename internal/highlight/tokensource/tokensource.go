// Package tokensource rebuilds the original token order of a field from its
// stored term position vector. Vectors are grouped by term, so the reading
// order is recovered from the stored offsets with a single stable sort.
package tokensource

import (
	"slices"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/pkg/errors"
)

// SentenceGap is the positional distance the indexer places between the
// values of a multivalued field. The quotient position/SentenceGap is the
// value index, and each value boundary biases stored offsets by one
// character. Indexing and reconstruction must agree on this constant.
const SentenceGap = 100000

// Offset is a [Start, End) byte range in the field text.
type Offset struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// TermEntry describes every occurrence of one term. Offsets[i] and
// Positions[i] describe the same occurrence. A nil Offsets slice means the
// field was indexed without offsets.
type TermEntry struct {
	Term      string   `json:"term"`
	Offsets   []Offset `json:"offsets"`
	Positions []int    `json:"positions"`
}

// PositionVector is the per-document, per-field term vector.
type PositionVector struct {
	Field string      `json:"field"`
	Terms []TermEntry `json:"terms"`
}

// Token is one reconstructed occurrence. PositionIncrement carries the raw
// stored position; it is metadata, not an ordering key.
type Token struct {
	Text              string `json:"text"`
	Start             int    `json:"start"`
	End               int    `json:"end"`
	PositionIncrement int    `json:"position_increment"`
}

// ValueIndex returns the index of the field value the token belongs to.
func (t Token) ValueIndex() int {
	return t.PositionIncrement / SentenceGap
}

// Reconstruct returns the tokens of pv sorted by start offset, then end
// offset. With shiftSentenceBoundaries set, each occurrence's offsets are
// corrected by position/SentenceGap. The call fails with an ErrInput error,
// and no tokens, if any term lacks offsets.
func Reconstruct(pv *PositionVector, shiftSentenceBoundaries bool) ([]Token, error) {
	if pv == nil {
		return nil, nil
	}
	total := 0
	for _, entry := range pv.Terms {
		if entry.Offsets == nil {
			return nil, apperrors.Input("field %q, term %q: missing offset data", pv.Field, entry.Term)
		}
		if len(entry.Positions) != len(entry.Offsets) {
			return nil, apperrors.Input("field %q, term %q: %d offsets but %d positions",
				pv.Field, entry.Term, len(entry.Offsets), len(entry.Positions))
		}
		total += len(entry.Offsets)
	}

	tokens := make([]Token, 0, total)
	for _, entry := range pv.Terms {
		for i, off := range entry.Offsets {
			pos := entry.Positions[i]
			correction := 0
			if shiftSentenceBoundaries {
				correction = pos / SentenceGap
			}
			tokens = append(tokens, Token{
				Text:              entry.Term,
				Start:             off.Start - correction,
				End:               off.End - correction,
				PositionIncrement: pos,
			})
		}
	}
	slices.SortStableFunc(tokens, compareOffsets)
	return tokens, nil
}

func compareOffsets(a, b Token) int {
	if a.Start != b.Start {
		return a.Start - b.Start
	}
	return a.End - b.End
}

// Excerpt joins token text with single spaces.
func Excerpt(tokens []Token) string {
	var sb strings.Builder
	for _, tok := range tokens {
		sb.WriteString(tok.Text)
		sb.WriteByte(' ')
	}
	return strings.TrimSpace(sb.String())
}
