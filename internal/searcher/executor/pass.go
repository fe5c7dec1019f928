package executor

import (
	"context"

	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/internal/highlight/formatter"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/internal/highlight/query"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/internal/indexer/index"
)

// pass holds the state of highlighting one document. It is created when
// the hit starts and dropped when it ends, so formatters and their
// highlighted-term records never leak between documents.
type pass struct {
	doc         *index.StoredDocument
	formatters  map[string]*formatter.Formatter
	termSets    map[bool]*query.FlatTermSet
	hitwords    *formatter.HitWords
	highlight   map[string][]string
	fieldErrors map[string]string
}

func newPass(doc *index.StoredDocument) *pass {
	return &pass{
		doc:         doc,
		formatters:  make(map[string]*formatter.Formatter),
		termSets:    make(map[bool]*query.FlatTermSet, 2),
		hitwords:    formatter.NewHitWords(),
		highlight:   make(map[string][]string),
		fieldErrors: make(map[string]string),
	}
}

func (p *pass) formatter(field, pre, post string) *formatter.Formatter {
	f, ok := p.formatters[field]
	if !ok {
		f = formatter.New(pre, post)
		p.formatters[field] = f
	}
	return f
}

func (p *pass) termSet(ctx context.Context, src *querySource, fieldMatch bool) (*query.FlatTermSet, error) {
	if set, ok := p.termSets[fieldMatch]; ok {
		return set, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	set, err := src.termSet(fieldMatch)
	if err != nil {
		return nil, err
	}
	p.termSets[fieldMatch] = set
	return set, nil
}
