// Package pgstore keeps stored documents and their term position vectors in
// PostgreSQL. It implements index.Store, so the highlighter can run against
// it in place of the in-memory index.
package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/internal/highlight/query"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/internal/highlight/tokensource"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/pkg/resilience"
)

// Schema creates the tables the store needs. Offsets are kept as two
// parallel arrays; a NULL starts array means the term has no offsets.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS documents (
    id         TEXT PRIMARY KEY,
    language   TEXT NOT NULL DEFAULT '',
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`,
	`CREATE TABLE IF NOT EXISTS document_fields (
    document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
    field       TEXT NOT NULL,
    vals        TEXT[],
    has_vector  BOOLEAN NOT NULL DEFAULT FALSE,
    PRIMARY KEY (document_id, field)
)`,
	`CREATE TABLE IF NOT EXISTS term_vectors (
    document_id TEXT NOT NULL,
    field       TEXT NOT NULL,
    term        TEXT NOT NULL,
    starts      INTEGER[],
    ends        INTEGER[],
    positions   INTEGER[] NOT NULL,
    PRIMARY KEY (document_id, field, term),
    FOREIGN KEY (document_id, field) REFERENCES document_fields (document_id, field) ON DELETE CASCADE
)`,
	`CREATE INDEX IF NOT EXISTS term_vectors_field_term ON term_vectors (field, term text_pattern_ops)`,
	`CREATE TABLE IF NOT EXISTS dictionary_generation (
    id         BOOLEAN PRIMARY KEY DEFAULT TRUE CHECK (id),
    generation BIGINT NOT NULL
)`,
	`INSERT INTO dictionary_generation (id, generation) VALUES (TRUE, 0) ON CONFLICT DO NOTHING`,
}

type Store struct {
	db      *postgres.Client
	breaker *resilience.CircuitBreaker
	logger  *slog.Logger
}

// New creates a Store. Reads and writes go through breaker; pass nil to
// use a default breaker.
func New(db *postgres.Client, breaker *resilience.CircuitBreaker) *Store {
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker("postgres-store", BreakerConfig())
	}
	return &Store{
		db:      db,
		breaker: breaker,
		logger:  slog.Default().With("component", "pg-store"),
	}
}

// BreakerConfig counts only dependency failures: a missing document or a
// hit that ran out of time leaves the breaker closed.
func BreakerConfig() resilience.CircuitBreakerConfig {
	return resilience.CircuitBreakerConfig{
		IsFailure: resilience.CallerFault(apperrors.ErrDocumentNotFound),
	}
}

// Migrate creates the schema.
func (s *Store) Migrate(ctx context.Context) error {
	return s.db.Migrate(ctx, Schema...)
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Put replaces every field of doc and bumps the dictionary generation.
func (s *Store) Put(ctx context.Context, doc *index.StoredDocument) error {
	if doc == nil || doc.ID == "" {
		return apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "document id is required")
	}
	err := s.breaker.Execute(func() error {
		return s.db.InTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO documents (id, language, updated_at) VALUES ($1, $2, NOW())
				 ON CONFLICT (id) DO UPDATE SET language = EXCLUDED.language, updated_at = NOW()`,
				doc.ID, doc.Language,
			); err != nil {
				return fmt.Errorf("upserting document: %w", err)
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM document_fields WHERE document_id = $1`, doc.ID); err != nil {
				return fmt.Errorf("clearing fields: %w", err)
			}
			for _, f := range doc.Fields {
				if err := insertField(ctx, tx, doc.ID, f); err != nil {
					return err
				}
			}
			return bumpGeneration(ctx, tx)
		})
	})
	if err != nil {
		return fmt.Errorf("storing document %s: %w", doc.ID, err)
	}
	s.logger.Debug("document stored", "doc_id", doc.ID, "fields", len(doc.Fields))
	return nil
}

func insertField(ctx context.Context, tx *sql.Tx, docID string, f *index.Field) error {
	var vals pq.StringArray
	if f.Values != nil {
		vals = pq.StringArray(f.Values)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO document_fields (document_id, field, vals, has_vector) VALUES ($1, $2, $3, $4)`,
		docID, f.Name, vals, f.Vector != nil,
	); err != nil {
		return fmt.Errorf("inserting field %s: %w", f.Name, err)
	}
	if f.Vector == nil {
		return nil
	}
	for _, entry := range f.Vector.Terms {
		starts, ends := splitOffsets(entry.Offsets)
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO term_vectors (document_id, field, term, starts, ends, positions) VALUES ($1, $2, $3, $4, $5, $6)`,
			docID, f.Name, entry.Term, starts, ends, toInt64Array(entry.Positions),
		); err != nil {
			return fmt.Errorf("inserting term %q of %s: %w", entry.Term, f.Name, err)
		}
	}
	return nil
}

func bumpGeneration(ctx context.Context, tx *sql.Tx) error {
	if _, err := tx.ExecContext(ctx, `UPDATE dictionary_generation SET generation = generation + 1`); err != nil {
		return fmt.Errorf("bumping dictionary generation: %w", err)
	}
	return nil
}

// Get loads a document with all of its fields and vectors.
func (s *Store) Get(ctx context.Context, id string) (*index.StoredDocument, error) {
	var doc *index.StoredDocument
	err := s.breaker.Execute(func() error {
		d, err := s.load(ctx, id)
		if errors.Is(err, sql.ErrNoRows) {
			return apperrors.Newf(apperrors.ErrDocumentNotFound, http.StatusNotFound, "document %s", id)
		}
		doc = d
		return err
	})
	switch {
	case errors.Is(err, apperrors.ErrDocumentNotFound):
		return nil, err
	case err != nil:
		return nil, apperrors.IndexRead(err, "loading document %s", id)
	}
	return doc, nil
}

func (s *Store) load(ctx context.Context, id string) (*index.StoredDocument, error) {
	doc := &index.StoredDocument{ID: id, Fields: make(map[string]*index.Field)}
	if err := s.db.DB.QueryRowContext(ctx, `SELECT language FROM documents WHERE id = $1`, id).Scan(&doc.Language); err != nil {
		return nil, err
	}

	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT field, vals, has_vector FROM document_fields WHERE document_id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("querying fields: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			name      string
			vals      pq.StringArray
			hasVector bool
		)
		if err := rows.Scan(&name, &vals, &hasVector); err != nil {
			return nil, fmt.Errorf("scanning field row: %w", err)
		}
		f := &index.Field{Name: name, Values: []string(vals)}
		if hasVector {
			f.Vector = &tokensource.PositionVector{Field: name, Terms: []tokensource.TermEntry{}}
		}
		doc.Fields[name] = f
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	tvRows, err := s.db.DB.QueryContext(ctx,
		`SELECT field, term, starts, ends, positions FROM term_vectors WHERE document_id = $1 ORDER BY field, term`, id)
	if err != nil {
		return nil, fmt.Errorf("querying term vectors: %w", err)
	}
	defer tvRows.Close()
	for tvRows.Next() {
		var (
			field, term         string
			starts, ends, poses pq.Int64Array
		)
		if err := tvRows.Scan(&field, &term, &starts, &ends, &poses); err != nil {
			return nil, fmt.Errorf("scanning term vector row: %w", err)
		}
		f, ok := doc.Fields[field]
		if !ok || f.Vector == nil {
			continue
		}
		f.Vector.Terms = append(f.Vector.Terms, tokensource.TermEntry{
			Term:      term,
			Offsets:   joinOffsets(starts, ends),
			Positions: toInts(poses),
		})
	}
	return doc, tvRows.Err()
}

func (s *Store) Delete(ctx context.Context, id string) error {
	var affected int64
	err := s.breaker.Execute(func() error {
		return s.db.InTx(ctx, func(tx *sql.Tx) error {
			res, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
			if err != nil {
				return fmt.Errorf("deleting document: %w", err)
			}
			if affected, err = res.RowsAffected(); err != nil || affected == 0 {
				return err
			}
			return bumpGeneration(ctx, tx)
		})
	})
	if err != nil {
		return fmt.Errorf("deleting document %s: %w", id, err)
	}
	if affected == 0 {
		return apperrors.Newf(apperrors.ErrDocumentNotFound, http.StatusNotFound, "document %s", id)
	}
	return nil
}

// Expand lists the dictionary terms of field matching pattern, sorted.
func (s *Store) Expand(ctx context.Context, field, pattern string) ([]string, error) {
	var terms []string
	err := s.breaker.Execute(func() error {
		rows, err := s.db.DB.QueryContext(ctx,
			`SELECT DISTINCT term FROM term_vectors WHERE field = $1 AND term LIKE $2 ESCAPE '\' ORDER BY term`,
			field, likePattern(pattern))
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var term string
			if err := rows.Scan(&term); err != nil {
				return err
			}
			if query.MatchWildcard(pattern, term) {
				terms = append(terms, term)
			}
		}
		return rows.Err()
	})
	if err != nil {
		return nil, apperrors.IndexRead(err, "expanding %q in %s", pattern, field)
	}
	return terms, nil
}

func (s *Store) Generation(ctx context.Context) (int64, error) {
	var gen int64
	err := s.breaker.Execute(func() error {
		return s.db.DB.QueryRowContext(ctx, `SELECT generation FROM dictionary_generation`).Scan(&gen)
	})
	if err != nil {
		return 0, apperrors.IndexRead(err, "reading dictionary generation")
	}
	return gen, nil
}

func (s *Store) DocFreq(ctx context.Context, field string, terms []string) (map[string]int64, error) {
	out := make(map[string]int64, len(terms))
	if len(terms) == 0 {
		return out, nil
	}
	err := s.breaker.Execute(func() error {
		rows, err := s.db.DB.QueryContext(ctx,
			`SELECT term, COUNT(DISTINCT document_id) FROM term_vectors
			 WHERE field = $1 AND term = ANY($2) GROUP BY term`,
			field, pq.Array(terms))
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var (
				term string
				n    int64
			)
			if err := rows.Scan(&term, &n); err != nil {
				return err
			}
			out[term] = n
		}
		return rows.Err()
	})
	if err != nil {
		return nil, apperrors.IndexRead(err, "document frequencies for %s", field)
	}
	return out, nil
}

func (s *Store) DocCount(ctx context.Context) (int64, error) {
	var n int64
	err := s.breaker.Execute(func() error {
		return s.db.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n)
	})
	if err != nil {
		return 0, apperrors.IndexRead(err, "counting documents")
	}
	return n, nil
}

// likePattern translates a wildcard pattern into a LIKE pattern with '\'
// as the escape character.
func likePattern(pattern string) string {
	var sb strings.Builder
	for _, r := range pattern {
		switch r {
		case '\\', '%', '_':
			sb.WriteByte('\\')
			sb.WriteRune(r)
		case '*':
			sb.WriteByte('%')
		case '?':
			sb.WriteByte('_')
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

func splitOffsets(offsets []tokensource.Offset) (starts, ends pq.Int64Array) {
	if offsets == nil {
		return nil, nil
	}
	starts = make(pq.Int64Array, len(offsets))
	ends = make(pq.Int64Array, len(offsets))
	for i, o := range offsets {
		starts[i], ends[i] = int64(o.Start), int64(o.End)
	}
	return starts, ends
}

// joinOffsets is the inverse of splitOffsets. Arrays of different lengths
// are kept as far as they agree; reconstruction rejects the mismatch.
func joinOffsets(starts, ends pq.Int64Array) []tokensource.Offset {
	if starts == nil {
		return nil
	}
	n := min(len(starts), len(ends))
	out := make([]tokensource.Offset, n)
	for i := 0; i < n; i++ {
		out[i] = tokensource.Offset{Start: int(starts[i]), End: int(ends[i])}
	}
	return out
}

func toInt64Array(xs []int) pq.Int64Array {
	out := make(pq.Int64Array, len(xs))
	for i, x := range xs {
		out[i] = int64(x)
	}
	return out
}

func toInts(xs pq.Int64Array) []int {
	out := make([]int, len(xs))
	for i, x := range xs {
		out[i] = int(x)
	}
	return out
}
