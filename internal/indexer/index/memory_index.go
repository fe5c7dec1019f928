package index

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring"

	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/internal/highlight/query"
	apperrors "github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/pkg/errors"
)

// fieldTerms is the dictionary of one field: every term mapped to the
// bitmap of internal document numbers containing it.
type fieldTerms struct {
	docs   map[string]*roaring.Bitmap
	sorted []string
	dirty  bool
}

// MemoryIndex keeps stored documents and the per-field term dictionary in
// process. Every write bumps the dictionary generation.
type MemoryIndex struct {
	mu         sync.RWMutex
	docs       map[string]*StoredDocument
	docNums    map[string]uint32
	nextNum    uint32
	fields     map[string]*fieldTerms
	size       int64
	generation atomic.Int64
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		docs:    make(map[string]*StoredDocument),
		docNums: make(map[string]uint32),
		fields:  make(map[string]*fieldTerms),
	}
}

// Put stores doc, replacing any earlier version with the same ID.
func (m *MemoryIndex) Put(_ context.Context, doc *StoredDocument) error {
	if doc == nil || doc.ID == "" {
		return apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "document id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if old, exists := m.docs[doc.ID]; exists {
		m.unindex(old)
	}
	num, ok := m.docNums[doc.ID]
	if !ok {
		num = m.nextNum
		m.nextNum++
		m.docNums[doc.ID] = num
	}
	for name, f := range doc.Fields {
		if f.Vector == nil {
			continue
		}
		ft := m.fieldTerms(name)
		for _, entry := range f.Vector.Terms {
			bm, exists := ft.docs[entry.Term]
			if !exists {
				bm = roaring.NewBitmap()
				ft.docs[entry.Term] = bm
				ft.dirty = true
			}
			bm.Add(num)
			m.size += int64(len(entry.Term) + len(entry.Positions)*24)
		}
	}
	m.docs[doc.ID] = doc
	m.generation.Add(1)
	return nil
}

func (m *MemoryIndex) Get(_ context.Context, id string) (*StoredDocument, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, exists := m.docs[id]
	if !exists {
		return nil, apperrors.Newf(apperrors.ErrDocumentNotFound, http.StatusNotFound, "document %s not found", id)
	}
	return doc, nil
}

func (m *MemoryIndex) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, exists := m.docs[id]
	if !exists {
		return apperrors.Newf(apperrors.ErrDocumentNotFound, http.StatusNotFound, "document %s not found", id)
	}
	m.unindex(doc)
	delete(m.docs, id)
	m.generation.Add(1)
	return nil
}

// unindex removes doc from every term bitmap. Callers hold the write lock.
func (m *MemoryIndex) unindex(doc *StoredDocument) {
	num := m.docNums[doc.ID]
	for name, f := range doc.Fields {
		if f.Vector == nil {
			continue
		}
		ft := m.fields[name]
		if ft == nil {
			continue
		}
		for _, entry := range f.Vector.Terms {
			bm, exists := ft.docs[entry.Term]
			if !exists {
				continue
			}
			bm.Remove(num)
			m.size -= int64(len(entry.Term) + len(entry.Positions)*24)
			if bm.IsEmpty() {
				delete(ft.docs, entry.Term)
				ft.dirty = true
			}
		}
	}
}

func (m *MemoryIndex) fieldTerms(name string) *fieldTerms {
	ft, exists := m.fields[name]
	if !exists {
		ft = &fieldTerms{docs: make(map[string]*roaring.Bitmap)}
		m.fields[name] = ft
	}
	return ft
}

// Expand returns the terms of field matching the wildcard pattern, in
// lexical order. The literal prefix of the pattern narrows the scan.
func (m *MemoryIndex) Expand(_ context.Context, field, pattern string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ft, exists := m.fields[field]
	if !exists {
		return nil, nil
	}
	if ft.dirty {
		ft.sorted = ft.sorted[:0]
		for term := range ft.docs {
			ft.sorted = append(ft.sorted, term)
		}
		sort.Strings(ft.sorted)
		ft.dirty = false
	}
	prefix := query.LiteralPrefix(pattern)
	var out []string
	for i := sort.SearchStrings(ft.sorted, prefix); i < len(ft.sorted); i++ {
		term := ft.sorted[i]
		if len(term) < len(prefix) || term[:len(prefix)] != prefix {
			break
		}
		if query.MatchWildcard(pattern, term) {
			out = append(out, term)
		}
	}
	return out, nil
}

func (m *MemoryIndex) Generation(context.Context) (int64, error) {
	return m.generation.Load(), nil
}

func (m *MemoryIndex) DocFreq(_ context.Context, field string, terms []string) (map[string]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]int64, len(terms))
	ft := m.fields[field]
	for _, term := range terms {
		if ft == nil {
			out[term] = 0
			continue
		}
		if bm, exists := ft.docs[term]; exists {
			out[term] = int64(bm.GetCardinality())
		} else {
			out[term] = 0
		}
	}
	return out, nil
}

func (m *MemoryIndex) DocCount(context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.docs)), nil
}

// Size is a rough estimate of the memory held by the dictionary.
func (m *MemoryIndex) Size() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.size
}

func (m *MemoryIndex) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs = make(map[string]*StoredDocument)
	m.docNums = make(map[string]uint32)
	m.nextNum = 0
	m.fields = make(map[string]*fieldTerms)
	m.size = 0
	m.generation.Add(1)
}
