package query

import (
	"context"
	"errors"

	apperrors "github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/pkg/errors"
)

// Dictionary is read access to the live term dictionary.
type Dictionary interface {
	// Expand returns the dictionary terms of field matching pattern.
	Expand(ctx context.Context, field, pattern string) ([]string, error)
	// Generation identifies the current dictionary snapshot. Anything
	// derived from the dictionary is valid only for one generation.
	Generation(ctx context.Context) (int64, error)
}

// Flattener reduces composite queries to their literal terms.
type Flattener struct {
	dict       Dictionary
	fieldMatch bool
}

func NewFlattener(dict Dictionary, fieldMatch bool) *Flattener {
	return &Flattener{dict: dict, fieldMatch: fieldMatch}
}

// Flatten returns every literal term reachable from q, each exactly once.
// Dictionary failures while rewriting multi-phrase nodes are returned as
// ErrIndexRead errors and are not retried.
func (f *Flattener) Flatten(ctx context.Context, q Query) (*FlatTermSet, error) {
	out := NewFlatTermSet(f.fieldMatch)
	if err := f.flatten(ctx, q, 1, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (f *Flattener) flatten(ctx context.Context, q Query, boost float64, out *FlatTermSet) error {
	switch n := q.(type) {
	case *MultiPhraseQuery:
		rewritten, err := n.Rewrite(ctx, f.dict)
		if err != nil {
			return err
		}
		return f.flatten(ctx, rewritten, boost, out)
	case *SpanWildcardQuery:
		for _, term := range n.Terms {
			out.Add(FlatTerm{Field: n.Field, Text: term, Boost: boost * effectiveBoost(n.Boost)})
		}
		return nil
	case *SpanNearQuery:
		for _, clause := range n.Clauses {
			if err := f.flatten(ctx, clause, boost, out); err != nil {
				return err
			}
		}
		return nil
	default:
		return f.flattenDefault(ctx, q, boost, out)
	}
}

// flattenDefault decomposes the general query types: boolean combinations,
// boost and scoring wrappers, phrases and plain terms. Unknown or
// term-less queries contribute nothing.
func (f *Flattener) flattenDefault(ctx context.Context, q Query, boost float64, out *FlatTermSet) error {
	switch n := q.(type) {
	case *TermQuery:
		if n.Text != "" {
			out.Add(FlatTerm{Field: n.Field, Text: n.Text, Boost: boost * effectiveBoost(n.Boost)})
		}
	case *PhraseQuery:
		for _, term := range n.Terms {
			if term != "" {
				out.Add(FlatTerm{Field: n.Field, Text: term, Boost: boost * effectiveBoost(n.Boost)})
			}
		}
	case *BooleanQuery:
		for _, group := range [][]Query{n.Must, n.Filter, n.Should} {
			for _, clause := range group {
				if err := f.flatten(ctx, clause, boost, out); err != nil {
					return err
				}
			}
		}
	case *DisjunctionMaxQuery:
		for _, d := range n.Disjuncts {
			if err := f.flatten(ctx, d, boost, out); err != nil {
				return err
			}
		}
	case *BoostQuery:
		if n.Query != nil {
			return f.flatten(ctx, n.Query, boost*effectiveBoost(n.Boost), out)
		}
	case *ConstantScoreQuery:
		if n.Query != nil {
			return f.flatten(ctx, n.Query, boost, out)
		}
	case *FunctionScoreQuery:
		if n.Query != nil {
			return f.flatten(ctx, n.Query, boost, out)
		}
	}
	return nil
}

// Rewrite binds the multi-phrase slots to dictionary terms. Wildcard slot
// entries are expanded; literal entries are kept. The result is a span-near
// over one disjunction per slot.
func (q *MultiPhraseQuery) Rewrite(ctx context.Context, dict Dictionary) (Query, error) {
	if dict == nil {
		return nil, apperrors.IndexRead(errors.New("no term dictionary"), "rewriting %s", q)
	}
	clauses := make([]Query, 0, len(q.Slots))
	for _, slot := range q.Slots {
		alternatives := &BooleanQuery{}
		for _, entry := range slot {
			if !IsWildcard(entry) {
				alternatives.Should = append(alternatives.Should, &TermQuery{Field: q.Field, Text: entry, Boost: q.Boost})
				continue
			}
			terms, err := dict.Expand(ctx, q.Field, entry)
			if err != nil {
				return nil, apperrors.IndexRead(err, "expanding %q in %s", entry, q)
			}
			for _, term := range terms {
				alternatives.Should = append(alternatives.Should, &TermQuery{Field: q.Field, Text: term, Boost: q.Boost})
			}
		}
		clauses = append(clauses, alternatives)
	}
	return &SpanNearQuery{Clauses: clauses, Slop: q.Slop, InOrder: true}, nil
}
