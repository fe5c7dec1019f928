package executor

import (
	"net/http"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/internal/highlight/fragments"
	apperrors "github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/pkg/errors"
)

// fieldOptions is a FieldRequest merged with the configured defaults.
type fieldOptions struct {
	name              string
	numberOfFragments int
	fragmentSize      int
	preTag, postTag   string
	requireFieldMatch bool
	encoder           fragments.Encoder
	scoreOrdered      bool
	fragList          string
}

func (e *Executor) fieldOptions(reqs []FieldRequest) ([]fieldOptions, error) {
	if len(reqs) == 0 {
		reqs = e.defaultFields()
	}
	out := make([]fieldOptions, 0, len(reqs))
	seen := make(map[string]bool, len(reqs))
	for _, r := range reqs {
		if r.Name == "" {
			return nil, invalidField("field name is required")
		}
		if seen[r.Name] {
			continue
		}
		seen[r.Name] = true

		fo := fieldOptions{
			name:              r.Name,
			numberOfFragments: e.cfg.NumberOfFragments,
			fragmentSize:      e.cfg.FragmentSize,
			preTag:            e.cfg.PreTag,
			postTag:           e.cfg.PostTag,
			requireFieldMatch: e.cfg.RequireFieldMatch,
			scoreOrdered:      r.ScoreOrdered,
			fragList:          e.cfg.FragListPolicy,
		}
		if r.NumberOfFragments != nil {
			if *r.NumberOfFragments < 0 {
				return nil, invalidField("%s: number_of_fragments must not be negative", r.Name)
			}
			fo.numberOfFragments = *r.NumberOfFragments
		}
		if r.FragmentSize != nil {
			if *r.FragmentSize < 0 {
				return nil, invalidField("%s: fragment_size must not be negative", r.Name)
			}
			fo.fragmentSize = *r.FragmentSize
		}
		if len(r.PreTags) > 0 {
			fo.preTag = r.PreTags[0]
		}
		if len(r.PostTags) > 0 {
			fo.postTag = r.PostTags[0]
		}
		if r.RequireFieldMatch != nil {
			fo.requireFieldMatch = *r.RequireFieldMatch
		}
		encoder := e.cfg.Encoder
		if r.Encoder != "" {
			if r.Encoder != "default" && r.Encoder != "html" {
				return nil, invalidField("%s: unknown encoder %q", r.Name, r.Encoder)
			}
			encoder = r.Encoder
		}
		fo.encoder = fragments.EncoderFor(encoder)
		if r.FragList != "" {
			if r.FragList != "term" && r.FragList != "simple" {
				return nil, invalidField("%s: unknown frag_list %q", r.Name, r.FragList)
			}
			fo.fragList = r.FragList
		}
		out = append(out, fo)
	}
	return out, nil
}

// defaultFields is every mapped field except the ingress snippet, which is
// reported separately.
func (e *Executor) defaultFields() []FieldRequest {
	names := make([]string, 0, len(e.cfg.Mappings))
	for name := range e.cfg.Mappings {
		if name != e.cfg.IngressField {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	reqs := make([]FieldRequest, len(names))
	for i, name := range names {
		reqs[i] = FieldRequest{Name: name}
	}
	return reqs
}

func invalidField(format string, args ...any) error {
	return apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, format, args...)
}
