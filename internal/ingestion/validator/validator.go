// Package validator checks documents before they enter the ingest pipeline
// and returns per-field error details.
package validator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/internal/indexer/index"
)

const (
	maxIDLength     = 255
	maxFields       = 64
	maxValuesPerDoc = 1000
	// maxValueBytes keeps the token count of one value below the positional
	// gap between values, even for single-letter snippet tokens.
	maxValueBytes = 180000
)

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s:%s", name, e.Fields[name]))
	}
	return strings.Join(parts, "; ")
}

// ValidateDocument checks the id, the field count and every value. Fields
// that are derived from another field may not be submitted directly.
func ValidateDocument(doc *index.Document, analyzer *index.Analyzer) error {
	errs := make(map[string]string)

	id := strings.TrimSpace(doc.ID)
	switch {
	case id == "":
		errs["document_id"] = "document_id is required"
	case len(id) > maxIDLength:
		errs["document_id"] = fmt.Sprintf("document_id must be at most %d characters", maxIDLength)
	}

	if len(doc.Fields) == 0 {
		errs["fields"] = "at least one field is required"
	} else if len(doc.Fields) > maxFields {
		errs["fields"] = fmt.Sprintf("at most %d fields are allowed", maxFields)
	}

	total := 0
	for name, values := range doc.Fields {
		if strings.TrimSpace(name) == "" {
			errs["fields"] = "field names must not be empty"
			continue
		}
		if m, ok := analyzer.Mapping(name); ok && m.Source != "" {
			errs[name] = fmt.Sprintf("derived from %s and cannot be set directly", m.Source)
			continue
		}
		total += len(values)
		for i, v := range values {
			if len(v) > maxValueBytes {
				errs[name] = fmt.Sprintf("value %d exceeds %d bytes", i, maxValueBytes)
				break
			}
		}
	}
	if total > maxValuesPerDoc {
		errs["fields"] = fmt.Sprintf("at most %d values per document", maxValuesPerDoc)
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
