// Package index stores documents together with the term position vectors
// the highlighter reads back.
package index

import (
	"context"

	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/internal/highlight/query"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/internal/highlight/tokensource"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/pkg/config"
)

// Document is a document as submitted for indexing.
type Document struct {
	ID       string              `json:"document_id"`
	Language string              `json:"language,omitempty"`
	Fields   map[string][]string `json:"fields"`
}

// Field is one indexed field of a stored document. Vector is nil when the
// field was not indexed with term vectors; Values is nil when the field is
// not stored.
type Field struct {
	Name   string                      `json:"name"`
	Values []string                    `json:"values,omitempty"`
	Vector *tokensource.PositionVector `json:"vector,omitempty"`
}

// StoredDocument is what the highlighter reads back for one hit.
type StoredDocument struct {
	ID       string            `json:"document_id"`
	Language string            `json:"language,omitempty"`
	Fields   map[string]*Field `json:"fields"`
}

// FieldNames returns the names of the stored fields.
func (d *StoredDocument) FieldNames() []string {
	names := make([]string, 0, len(d.Fields))
	for name := range d.Fields {
		names = append(names, name)
	}
	return names
}

// Store is the read/write surface shared by the in-memory and Postgres
// backends.
type Store interface {
	query.Dictionary
	Put(ctx context.Context, doc *StoredDocument) error
	Get(ctx context.Context, id string) (*StoredDocument, error)
	Delete(ctx context.Context, id string) error
	// DocFreq returns, for each term, the number of documents whose field
	// contains it.
	DocFreq(ctx context.Context, field string, terms []string) (map[string]int64, error)
	DocCount(ctx context.Context) (int64, error)
}

// Mapping says how a field is analyzed.
type Mapping struct {
	TermVector bool
	Store      bool
	// Analyzer is "standard" (stemmed terms) or "snippet" (surface words,
	// nothing dropped).
	Analyzer string
	// Source copies the values of another field.
	Source string
}

// Analyzer turns submitted documents into stored documents according to the
// field mappings.
type Analyzer struct {
	mappings map[string]Mapping
}

func NewAnalyzer(mappings map[string]Mapping) *Analyzer {
	return &Analyzer{mappings: mappings}
}

// Mapping returns the configured mapping of field.
func (a *Analyzer) Mapping(field string) (Mapping, bool) {
	m, ok := a.mappings[field]
	return m, ok
}

// Analyze builds the stored form of doc. Fields without a mapping are kept
// as stored values only.
func (a *Analyzer) Analyze(doc *Document) *StoredDocument {
	out := &StoredDocument{
		ID:       doc.ID,
		Language: doc.Language,
		Fields:   make(map[string]*Field),
	}
	for name, values := range doc.Fields {
		m, ok := a.mappings[name]
		if !ok {
			out.Fields[name] = &Field{Name: name, Values: values}
			continue
		}
		out.Fields[name] = a.field(name, values, m)
	}
	for name, m := range a.mappings {
		if m.Source == "" {
			continue
		}
		values, ok := doc.Fields[m.Source]
		if !ok {
			continue
		}
		out.Fields[name] = a.field(name, values, m)
	}
	return out
}

func (a *Analyzer) field(name string, values []string, m Mapping) *Field {
	f := &Field{Name: name}
	if m.Store || !m.TermVector {
		f.Values = values
	}
	if m.TermVector {
		f.Vector = BuildVector(name, values, m.Analyzer)
	}
	return f
}

// BuildVector records the term vector of a possibly multivalued field. Value
// v gets positions v*SentenceGap+p and offsets biased by v, as if values were
// separated by one character. Reconstruction with sentence-boundary shifting
// then yields offsets into the values concatenated directly; without it,
// offsets index the values joined by a single space.
func BuildVector(field string, values []string, analyzer string) *tokensource.PositionVector {
	b := tokensource.NewBuilder(field)
	base := 0
	for v, value := range values {
		var tokens []tokenizer.Token
		if analyzer == "snippet" {
			tokens = tokenizer.Surface(value)
		} else {
			tokens = tokenizer.Tokenize(value)
		}
		bias := base + v
		for _, tok := range tokens {
			b.Add(tok.Term, tok.Start+bias, tok.End+bias, v*tokensource.SentenceGap+tok.Position)
		}
		base += len(value)
	}
	return b.Vector()
}

// ValueSeparator is what sits between two values in the field text the
// reconstructed offsets point into.
func ValueSeparator(shiftSentenceBoundaries bool) string {
	if shiftSentenceBoundaries {
		return ""
	}
	return " "
}

// MappingsFromConfig converts the configured field mappings.
func MappingsFromConfig(in map[string]config.FieldMapping) map[string]Mapping {
	out := make(map[string]Mapping, len(in))
	for name, m := range in {
		out[name] = Mapping{TermVector: m.TermVector, Store: m.Store, Analyzer: m.Analyzer, Source: m.Source}
	}
	return out
}
