// Package query models the composite queries the highlighter understands and
// flattens them into the literal terms that drive highlighting.
package query

import (
	"fmt"
	"strconv"
	"strings"
)

// Query is a node of a composite query tree. The set of node types is closed;
// the flattener dispatches on it with a type switch.
type Query interface {
	fmt.Stringer
	queryNode()
}

// TermQuery matches a single analyzed term.
type TermQuery struct {
	Field string
	Text  string
	Boost float64
}

// PhraseQuery matches Terms in sequence, allowing Slop moved positions.
type PhraseQuery struct {
	Field string
	Terms []string
	Slop  int
	Boost float64
}

// MultiPhraseQuery is a phrase whose slots may each hold several alternative
// terms or wildcard patterns. It can only be flattened after rewriting
// against the term dictionary.
type MultiPhraseQuery struct {
	Field string
	Slots [][]string
	Slop  int
	Boost float64
}

// SpanWildcardQuery matches every dictionary term of Field that matches
// Pattern. Terms holds the resolved expansion.
type SpanWildcardQuery struct {
	Field   string
	Pattern string
	Terms   []string
	Boost   float64
}

// SpanNearQuery matches Clauses within Slop positions of each other.
type SpanNearQuery struct {
	Clauses []Query
	Slop    int
	InOrder bool
}

type BooleanQuery struct {
	Must    []Query
	Should  []Query
	Filter  []Query
	MustNot []Query
}

// BoostQuery scales the weight of every term below it.
type BoostQuery struct {
	Query Query
	Boost float64
}

type ConstantScoreQuery struct {
	Query Query
}

type FunctionScoreQuery struct {
	Query Query
}

type DisjunctionMaxQuery struct {
	Disjuncts []Query
}

type MatchAllQuery struct{}

func (*TermQuery) queryNode()           {}
func (*PhraseQuery) queryNode()         {}
func (*MultiPhraseQuery) queryNode()    {}
func (*SpanWildcardQuery) queryNode()   {}
func (*SpanNearQuery) queryNode()       {}
func (*BooleanQuery) queryNode()        {}
func (*BoostQuery) queryNode()          {}
func (*ConstantScoreQuery) queryNode()  {}
func (*FunctionScoreQuery) queryNode()  {}
func (*DisjunctionMaxQuery) queryNode() {}
func (*MatchAllQuery) queryNode()       {}

func (q *TermQuery) String() string {
	return q.Field + ":" + q.Text + boostSuffix(q.Boost)
}

func (q *PhraseQuery) String() string {
	s := q.Field + `:"` + strings.Join(q.Terms, " ") + `"`
	if q.Slop != 0 {
		s += "~" + strconv.Itoa(q.Slop)
	}
	return s + boostSuffix(q.Boost)
}

func (q *MultiPhraseQuery) String() string {
	slots := make([]string, len(q.Slots))
	for i, slot := range q.Slots {
		if len(slot) == 1 {
			slots[i] = slot[0]
			continue
		}
		slots[i] = "(" + strings.Join(slot, " ") + ")"
	}
	s := q.Field + `:"` + strings.Join(slots, " ") + `"`
	if q.Slop != 0 {
		s += "~" + strconv.Itoa(q.Slop)
	}
	return s + boostSuffix(q.Boost)
}

func (q *SpanWildcardQuery) String() string {
	return "spanWildcard(" + q.Field + ":" + q.Pattern + ")" + boostSuffix(q.Boost)
}

func (q *SpanNearQuery) String() string {
	return fmt.Sprintf("spanNear([%s], %d, %t)", joinQueries(q.Clauses, ", "), q.Slop, q.InOrder)
}

func (q *BooleanQuery) String() string {
	parts := make([]string, 0, len(q.Must)+len(q.Should)+len(q.Filter)+len(q.MustNot))
	for _, c := range q.Must {
		parts = append(parts, "+"+c.String())
	}
	for _, c := range q.Filter {
		parts = append(parts, "#"+c.String())
	}
	for _, c := range q.Should {
		parts = append(parts, c.String())
	}
	for _, c := range q.MustNot {
		parts = append(parts, "-"+c.String())
	}
	return "(" + strings.Join(parts, " ") + ")"
}

func (q *BoostQuery) String() string {
	return "(" + q.Query.String() + ")" + boostSuffix(q.Boost)
}

func (q *ConstantScoreQuery) String() string {
	return "ConstantScore(" + q.Query.String() + ")"
}

func (q *FunctionScoreQuery) String() string {
	return "function score (" + q.Query.String() + ")"
}

func (q *DisjunctionMaxQuery) String() string {
	return "(" + joinQueries(q.Disjuncts, " | ") + ")"
}

func (q *MatchAllQuery) String() string {
	return "*:*"
}

func boostSuffix(boost float64) string {
	if boost == 0 || boost == 1 {
		return ""
	}
	return "^" + strconv.FormatFloat(boost, 'g', -1, 64)
}

func joinQueries(qs []Query, sep string) string {
	parts := make([]string, len(qs))
	for i, q := range qs {
		parts[i] = q.String()
	}
	return strings.Join(parts, sep)
}

// effectiveBoost treats an unset boost as 1.
func effectiveBoost(b float64) float64 {
	if b == 0 {
		return 1
	}
	return b
}
