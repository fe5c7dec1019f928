package tokensource

import "iter"

// Stream yields reconstructed tokens one at a time. It is single-pass and
// cannot be rewound.
type Stream struct {
	tokens []Token
	next   int
}

// NewStream reconstructs pv eagerly and returns a Stream over the result.
func NewStream(pv *PositionVector, shiftSentenceBoundaries bool) (*Stream, error) {
	tokens, err := Reconstruct(pv, shiftSentenceBoundaries)
	if err != nil {
		return nil, err
	}
	return &Stream{tokens: tokens}, nil
}

// Next returns the next token, or false once the stream is exhausted.
func (s *Stream) Next() (Token, bool) {
	if s.next >= len(s.tokens) {
		return Token{}, false
	}
	tok := s.tokens[s.next]
	s.next++
	return tok, true
}

// All drains the remaining tokens as an iterator.
func (s *Stream) All() iter.Seq[Token] {
	return func(yield func(Token) bool) {
		for {
			tok, ok := s.Next()
			if !ok || !yield(tok) {
				return
			}
		}
	}
}
