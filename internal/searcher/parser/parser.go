// Package parser turns request queries into query trees. Two syntaxes are
// accepted: a JSON query DSL and the plain "a AND b NOT c" form used by the
// q parameter.
package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/internal/highlight/query"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/pkg/errors"
)

const maxDepth = 32

// Parse decodes one DSL node. Every node is an object with exactly one key
// naming its type.
func Parse(data []byte) (query.Query, error) {
	return parseNode(data, 0)
}

func parseNode(data json.RawMessage, depth int) (query.Query, error) {
	if depth > maxDepth {
		return nil, invalid("query nested deeper than %d levels", maxDepth)
	}
	var node map[string]json.RawMessage
	if err := json.Unmarshal(data, &node); err != nil {
		return nil, invalid("query must be an object: %v", err)
	}
	if len(node) != 1 {
		return nil, invalid("query object must have exactly one key, got %d", len(node))
	}
	for kind, body := range node {
		switch kind {
		case "term", "span_term":
			return parseTerm(body)
		case "match":
			return parseMatch(body)
		case "match_phrase":
			return parseMatchPhrase(body)
		case "multi_phrase":
			return parseMultiPhrase(body)
		case "wildcard", "span_wildcard":
			return parseWildcard(body)
		case "span_near":
			return parseSpanNear(body, depth)
		case "bool":
			return parseBool(body, depth)
		case "boost":
			return parseBoost(body, depth)
		case "constant_score":
			return parseWrapped(body, depth, "filter", func(q query.Query) query.Query {
				return &query.ConstantScoreQuery{Query: q}
			})
		case "function_score":
			return parseWrapped(body, depth, "query", func(q query.Query) query.Query {
				return &query.FunctionScoreQuery{Query: q}
			})
		case "dis_max":
			return parseDisMax(body, depth)
		case "match_all":
			return &query.MatchAllQuery{}, nil
		default:
			return nil, invalid("unknown query type %q", kind)
		}
	}
	return nil, invalid("empty query")
}

// fieldBody decodes the {"<field>": <value>} shape shared by the leaf
// queries. The value is either a bare string or an object with a "value" or
// "query" member and optional parameters.
type fieldBody struct {
	Field string
	Text  string
	Boost float64
	Slop  int
	And   bool
}

type leafParams struct {
	Value    *string  `json:"value"`
	Query    *string  `json:"query"`
	Boost    *float64 `json:"boost"`
	Slop     int      `json:"slop"`
	Operator string   `json:"operator"`
}

func decodeField(body json.RawMessage) (fieldBody, error) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(body, &m); err != nil {
		return fieldBody{}, invalid("expected {\"<field>\": ...}: %v", err)
	}
	if len(m) != 1 {
		return fieldBody{}, invalid("expected exactly one field, got %d", len(m))
	}
	var fb fieldBody
	for field, raw := range m {
		fb.Field = field
		raw = bytes.TrimSpace(raw)
		if len(raw) > 0 && raw[0] == '"' {
			if err := json.Unmarshal(raw, &fb.Text); err != nil {
				return fieldBody{}, invalid("field %q: %v", field, err)
			}
			break
		}
		var p leafParams
		if err := strictUnmarshal(raw, &p); err != nil {
			return fieldBody{}, invalid("field %q: %v", field, err)
		}
		switch {
		case p.Value != nil:
			fb.Text = *p.Value
		case p.Query != nil:
			fb.Text = *p.Query
		default:
			return fieldBody{}, invalid("field %q: missing value", field)
		}
		if p.Boost != nil {
			if *p.Boost <= 0 {
				return fieldBody{}, invalid("field %q: boost must be positive", field)
			}
			fb.Boost = *p.Boost
		}
		if p.Slop < 0 {
			return fieldBody{}, invalid("field %q: slop must not be negative", field)
		}
		fb.Slop = p.Slop
		fb.And = strings.EqualFold(p.Operator, "and")
	}
	if fb.Field == "" {
		return fieldBody{}, invalid("field name is empty")
	}
	return fb, nil
}

func parseTerm(body json.RawMessage) (query.Query, error) {
	fb, err := decodeField(body)
	if err != nil {
		return nil, err
	}
	terms := tokenizer.Terms(fb.Text)
	if len(terms) == 1 {
		return &query.TermQuery{Field: fb.Field, Text: terms[0], Boost: fb.Boost}, nil
	}
	return termsQuery(fb.Field, terms, fb.Boost, false), nil
}

func parseMatch(body json.RawMessage) (query.Query, error) {
	fb, err := decodeField(body)
	if err != nil {
		return nil, err
	}
	return termsQuery(fb.Field, tokenizer.Terms(fb.Text), fb.Boost, fb.And), nil
}

// termsQuery builds one clause per analyzed term.
func termsQuery(field string, terms []string, boost float64, and bool) query.Query {
	clauses := make([]query.Query, 0, len(terms))
	for _, t := range terms {
		clauses = append(clauses, &query.TermQuery{Field: field, Text: t})
	}
	b := &query.BooleanQuery{}
	if and {
		b.Must = clauses
	} else {
		b.Should = clauses
	}
	if boost > 0 && boost != 1 {
		return &query.BoostQuery{Query: b, Boost: boost}
	}
	return b
}

func parseMatchPhrase(body json.RawMessage) (query.Query, error) {
	fb, err := decodeField(body)
	if err != nil {
		return nil, err
	}
	terms := tokenizer.Terms(fb.Text)
	if len(terms) == 1 {
		return &query.TermQuery{Field: fb.Field, Text: terms[0], Boost: fb.Boost}, nil
	}
	return &query.PhraseQuery{Field: fb.Field, Terms: terms, Slop: fb.Slop, Boost: fb.Boost}, nil
}

type multiPhraseBody struct {
	Field string     `json:"field"`
	Slots [][]string `json:"slots"`
	Slop  int        `json:"slop"`
	Boost float64    `json:"boost"`
}

func parseMultiPhrase(body json.RawMessage) (query.Query, error) {
	var mp multiPhraseBody
	if err := strictUnmarshal(body, &mp); err != nil {
		return nil, invalid("multi_phrase: %v", err)
	}
	if mp.Field == "" {
		return nil, invalid("multi_phrase: field is required")
	}
	if len(mp.Slots) == 0 {
		return nil, invalid("multi_phrase: at least one slot is required")
	}
	if mp.Slop < 0 || mp.Boost < 0 {
		return nil, invalid("multi_phrase: slop and boost must not be negative")
	}
	slots := make([][]string, 0, len(mp.Slots))
	for i, slot := range mp.Slots {
		var alts []string
		for _, alt := range slot {
			if term := slotTerm(alt); term != "" {
				alts = append(alts, term)
			}
		}
		if len(alts) == 0 {
			return nil, invalid("multi_phrase: slot %d has no usable terms", i)
		}
		slots = append(slots, alts)
	}
	return &query.MultiPhraseQuery{Field: mp.Field, Slots: slots, Slop: mp.Slop, Boost: mp.Boost}, nil
}

// slotTerm analyzes a literal alternative. Patterns are only lower-cased;
// stemming would change what they match.
func slotTerm(alt string) string {
	if query.IsWildcard(alt) {
		return strings.ToLower(strings.TrimSpace(alt))
	}
	return tokenizer.Normalize(strings.TrimSpace(alt))
}

func parseWildcard(body json.RawMessage) (query.Query, error) {
	fb, err := decodeField(body)
	if err != nil {
		return nil, err
	}
	pattern := strings.ToLower(strings.TrimSpace(fb.Text))
	if pattern == "" {
		return nil, invalid("wildcard on %q: empty pattern", fb.Field)
	}
	return &query.SpanWildcardQuery{Field: fb.Field, Pattern: pattern, Boost: fb.Boost}, nil
}

type spanNearBody struct {
	Clauses []json.RawMessage `json:"clauses"`
	Slop    int               `json:"slop"`
	InOrder bool              `json:"in_order"`
}

func parseSpanNear(body json.RawMessage, depth int) (query.Query, error) {
	var sn spanNearBody
	if err := strictUnmarshal(body, &sn); err != nil {
		return nil, invalid("span_near: %v", err)
	}
	if len(sn.Clauses) == 0 {
		return nil, invalid("span_near: clauses are required")
	}
	clauses, err := parseList(sn.Clauses, depth)
	if err != nil {
		return nil, err
	}
	return &query.SpanNearQuery{Clauses: clauses, Slop: sn.Slop, InOrder: sn.InOrder}, nil
}

type boolBody struct {
	Must    clauseList `json:"must"`
	Should  clauseList `json:"should"`
	Filter  clauseList `json:"filter"`
	MustNot clauseList `json:"must_not"`
}

// clauseList accepts either a single clause or an array of clauses.
type clauseList []json.RawMessage

func (c *clauseList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var list []json.RawMessage
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		*c = list
		return nil
	}
	*c = clauseList{json.RawMessage(data)}
	return nil
}

func parseBool(body json.RawMessage, depth int) (query.Query, error) {
	var bb boolBody
	if err := strictUnmarshal(body, &bb); err != nil {
		return nil, invalid("bool: %v", err)
	}
	var (
		b   query.BooleanQuery
		err error
	)
	if b.Must, err = parseList(bb.Must, depth); err != nil {
		return nil, err
	}
	if b.Should, err = parseList(bb.Should, depth); err != nil {
		return nil, err
	}
	if b.Filter, err = parseList(bb.Filter, depth); err != nil {
		return nil, err
	}
	if b.MustNot, err = parseList(bb.MustNot, depth); err != nil {
		return nil, err
	}
	return &b, nil
}

type boostBody struct {
	Query json.RawMessage `json:"query"`
	Boost float64         `json:"boost"`
}

func parseBoost(body json.RawMessage, depth int) (query.Query, error) {
	var bb boostBody
	if err := strictUnmarshal(body, &bb); err != nil {
		return nil, invalid("boost: %v", err)
	}
	if bb.Query == nil {
		return nil, invalid("boost: query is required")
	}
	if bb.Boost <= 0 {
		return nil, invalid("boost: boost must be positive")
	}
	inner, err := parseNode(bb.Query, depth+1)
	if err != nil {
		return nil, err
	}
	return &query.BoostQuery{Query: inner, Boost: bb.Boost}, nil
}

func parseWrapped(body json.RawMessage, depth int, key string, wrap func(query.Query) query.Query) (query.Query, error) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, invalid("expected {\"%s\": ...}: %v", key, err)
	}
	raw, ok := m[key]
	if !ok {
		return nil, invalid("%q is required", key)
	}
	inner, err := parseNode(raw, depth+1)
	if err != nil {
		return nil, err
	}
	return wrap(inner), nil
}

type disMaxBody struct {
	Queries []json.RawMessage `json:"queries"`
}

func parseDisMax(body json.RawMessage, depth int) (query.Query, error) {
	var dm disMaxBody
	if err := json.Unmarshal(body, &dm); err != nil {
		return nil, invalid("dis_max: %v", err)
	}
	disjuncts, err := parseList(dm.Queries, depth)
	if err != nil {
		return nil, err
	}
	return &query.DisjunctionMaxQuery{Disjuncts: disjuncts}, nil
}

func parseList(raws []json.RawMessage, depth int) ([]query.Query, error) {
	if len(raws) == 0 {
		return nil, nil
	}
	out := make([]query.Query, 0, len(raws))
	for _, raw := range raws {
		q, err := parseNode(raw, depth+1)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, nil
}

// ParseSimple parses the q-parameter syntax against each of fields. Words
// are required by default; OR makes the following words optional and NOT
// excludes the next word.
func ParseSimple(text string, fields []string) query.Query {
	var must, should, mustNot []string
	optional, excludeNext := false, false
	for _, word := range strings.Fields(text) {
		switch strings.ToUpper(word) {
		case "AND":
			optional = false
			continue
		case "OR":
			optional = true
			continue
		case "NOT":
			excludeNext = true
			continue
		}
		terms := tokenizer.Terms(word)
		if len(terms) == 0 {
			continue
		}
		switch {
		case excludeNext:
			mustNot = append(mustNot, terms...)
			excludeNext = false
		case optional:
			should = append(should, terms...)
		default:
			must = append(must, terms...)
		}
	}

	fields = append([]string(nil), fields...)
	sort.Strings(fields)
	b := &query.BooleanQuery{}
	for _, field := range fields {
		b.Must = append(b.Must, termClauses(field, must)...)
		b.Should = append(b.Should, termClauses(field, should)...)
		b.MustNot = append(b.MustNot, termClauses(field, mustNot)...)
	}
	return b
}

func termClauses(field string, terms []string) []query.Query {
	out := make([]query.Query, 0, len(terms))
	for _, t := range terms {
		out = append(out, &query.TermQuery{Field: field, Text: t})
	}
	return out
}

func strictUnmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func invalid(format string, args ...any) error {
	return apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "query: %s", fmt.Sprintf(format, args...))
}
