package query

import (
	"context"
	"errors"

	apperrors "github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/pkg/errors"
)

// Resolve returns a copy of q in which every span-wildcard node carries its
// dictionary expansion. Nodes that already hold terms are left alone. The
// input tree is not modified.
func Resolve(ctx context.Context, q Query, dict Dictionary) (Query, error) {
	switch n := q.(type) {
	case *SpanWildcardQuery:
		if n.Terms != nil {
			return n, nil
		}
		if dict == nil {
			return nil, apperrors.IndexRead(errors.New("no term dictionary"), "resolving %s", n)
		}
		terms, err := dict.Expand(ctx, n.Field, n.Pattern)
		if err != nil {
			return nil, apperrors.IndexRead(err, "resolving %s", n)
		}
		if terms == nil {
			terms = []string{}
		}
		resolved := *n
		resolved.Terms = terms
		return &resolved, nil
	case *SpanNearQuery:
		clauses, err := resolveAll(ctx, n.Clauses, dict)
		if err != nil {
			return nil, err
		}
		return &SpanNearQuery{Clauses: clauses, Slop: n.Slop, InOrder: n.InOrder}, nil
	case *BooleanQuery:
		out := &BooleanQuery{}
		var err error
		if out.Must, err = resolveAll(ctx, n.Must, dict); err != nil {
			return nil, err
		}
		if out.Should, err = resolveAll(ctx, n.Should, dict); err != nil {
			return nil, err
		}
		if out.Filter, err = resolveAll(ctx, n.Filter, dict); err != nil {
			return nil, err
		}
		out.MustNot = n.MustNot
		return out, nil
	case *DisjunctionMaxQuery:
		disjuncts, err := resolveAll(ctx, n.Disjuncts, dict)
		if err != nil {
			return nil, err
		}
		return &DisjunctionMaxQuery{Disjuncts: disjuncts}, nil
	case *BoostQuery:
		inner, err := Resolve(ctx, n.Query, dict)
		if err != nil {
			return nil, err
		}
		return &BoostQuery{Query: inner, Boost: n.Boost}, nil
	case *ConstantScoreQuery:
		inner, err := Resolve(ctx, n.Query, dict)
		if err != nil {
			return nil, err
		}
		return &ConstantScoreQuery{Query: inner}, nil
	case *FunctionScoreQuery:
		inner, err := Resolve(ctx, n.Query, dict)
		if err != nil {
			return nil, err
		}
		return &FunctionScoreQuery{Query: inner}, nil
	default:
		return q, nil
	}
}

func resolveAll(ctx context.Context, qs []Query, dict Dictionary) ([]Query, error) {
	if qs == nil {
		return nil, nil
	}
	out := make([]Query, len(qs))
	for i, q := range qs {
		r, err := Resolve(ctx, q, dict)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}
