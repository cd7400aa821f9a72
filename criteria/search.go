/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package criteria

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/tomoncle/bunrepo/query"
	"github.com/tomoncle/bunrepo/repository"
)

// ErrOperatorNotAccepted is recorded on the query when a request asks for
// an operator outside the accepted list.
var ErrOperatorNotAccepted = errors.New("criteria: operator not accepted")

// ParamNames are the request parameter names Search reads.
type ParamNames struct {
	Search       string `json:"search" yaml:"search"`
	SearchFields string `json:"search_fields" yaml:"search_fields"`
	Filter       string `json:"filter" yaml:"filter"`
	OrderBy      string `json:"order_by" yaml:"order_by"`
	SortedBy     string `json:"sorted_by" yaml:"sorted_by"`
	With         string `json:"with" yaml:"with"`
	SearchJoin   string `json:"search_join" yaml:"search_join"`
}

func DefaultParamNames() ParamNames {
	return ParamNames{
		Search:       "search",
		SearchFields: "searchFields",
		Filter:       "filter",
		OrderBy:      "orderBy",
		SortedBy:     "sortedBy",
		With:         "with",
		SearchJoin:   "searchJoin",
	}
}

// DefaultAcceptedOperators are the operators a request may ask for.
var DefaultAcceptedOperators = []string{"=", "like"}

// SearchCriterion filters, orders and shapes a query from request
// parameters such as ?search=name:john;email:john@x.io&orderBy=id&sortedBy=desc.
type SearchCriterion struct {
	params   url.Values
	names    ParamNames
	accepted map[string]bool
}

type SearchOption func(*SearchCriterion)

// WithParamNames overrides the request parameter names. Empty names keep
// their default.
func WithParamNames(names ParamNames) SearchOption {
	return func(s *SearchCriterion) {
		d := DefaultParamNames()
		s.names = ParamNames{
			Search:       firstNonEmpty(names.Search, d.Search),
			SearchFields: firstNonEmpty(names.SearchFields, d.SearchFields),
			Filter:       firstNonEmpty(names.Filter, d.Filter),
			OrderBy:      firstNonEmpty(names.OrderBy, d.OrderBy),
			SortedBy:     firstNonEmpty(names.SortedBy, d.SortedBy),
			With:         firstNonEmpty(names.With, d.With),
			SearchJoin:   firstNonEmpty(names.SearchJoin, d.SearchJoin),
		}
	}
}

// WithAcceptedOperators replaces the accepted operator list.
func WithAcceptedOperators(ops ...string) SearchOption {
	return func(s *SearchCriterion) {
		s.accepted = acceptedSet(ops)
	}
}

// Search builds a criterion reading params.
func Search(params url.Values, opts ...SearchOption) *SearchCriterion {
	s := &SearchCriterion{
		params:   params,
		names:    DefaultParamNames(),
		accepted: acceptedSet(DefaultAcceptedOperators),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SearchCriterion) CriterionName() string { return "criteria.Search" }

func (s *SearchCriterion) Apply(q *query.Builder, repo repository.Inspector) *query.Builder {
	q = s.applySearch(q, repo.GetFieldsSearchable())

	if field := strings.TrimSpace(s.params.Get(s.names.OrderBy)); field != "" {
		dir := "ASC"
		if strings.EqualFold(strings.TrimSpace(s.params.Get(s.names.SortedBy)), "desc") {
			dir = "DESC"
		}
		q = q.OrderBy(field, dir)
	}
	if filter := splitList(s.params.Get(s.names.Filter)); len(filter) > 0 {
		q = q.Columns(filter...)
	}
	if with := splitList(s.params.Get(s.names.With)); len(with) > 0 {
		q = q.With(with...)
	}
	return q
}

func (s *SearchCriterion) applySearch(q *query.Builder, searchable []repository.SearchField) *query.Builder {
	search := strings.TrimSpace(s.params.Get(s.names.Search))
	if search == "" || len(searchable) == 0 {
		return q
	}
	fields, err := s.searchFields(searchable)
	if err != nil {
		return q.Fail(err)
	}

	byField, global := parseSearch(search)
	conds := make([]query.Condition, 0, len(fields))
	for _, f := range fields {
		value, ok := byField[f.Name]
		if !ok {
			if global == "" {
				continue
			}
			value = global
		}
		op := strings.ToLower(strings.TrimSpace(f.Operator))
		if op == "like" || op == "ilike" {
			value = "%" + value + "%"
		}
		conds = append(conds, query.Compare(f.Name, op, value))
	}
	if len(conds) == 0 {
		return q
	}

	join := "OR"
	if strings.EqualFold(strings.TrimSpace(s.params.Get(s.names.SearchJoin)), "and") {
		join = "AND"
	}
	return q.WhereGroup(join, conds...)
}

// searchFields narrows the searchable fields to those named by the
// searchFields parameter, applying any operator it carries.
func (s *SearchCriterion) searchFields(searchable []repository.SearchField) ([]repository.SearchField, error) {
	requested := splitList(s.params.Get(s.names.SearchFields))
	if len(requested) == 0 {
		return searchable, nil
	}
	allowed := make(map[string]repository.SearchField, len(searchable))
	for _, f := range searchable {
		allowed[f.Name] = f
	}

	out := make([]repository.SearchField, 0, len(requested))
	for _, entry := range requested {
		name, op, hasOp := strings.Cut(entry, ":")
		f, ok := allowed[strings.TrimSpace(name)]
		if !ok {
			continue
		}
		if hasOp {
			op = strings.ToLower(strings.TrimSpace(op))
			if !s.accepted[op] {
				return nil, fmt.Errorf("%w: %q on %s", ErrOperatorNotAccepted, op, f.Name)
			}
			f.Operator = op
		}
		out = append(out, f)
	}
	return out, nil
}

// parseSearch splits "name:john;email:x" into per-field values. A piece
// without a field name becomes the value for every other field.
func parseSearch(search string) (map[string]string, string) {
	byField := map[string]string{}
	if !strings.Contains(search, ":") {
		return byField, search
	}
	var global string
	for _, piece := range strings.Split(search, ";") {
		field, value, ok := strings.Cut(piece, ":")
		if !ok {
			if v := strings.TrimSpace(piece); v != "" {
				global = v
			}
			continue
		}
		field = strings.TrimSpace(field)
		if field != "" {
			byField[field] = strings.TrimSpace(value)
		}
	}
	return byField, global
}

func splitList(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ';' || r == ',' })
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func acceptedSet(ops []string) map[string]bool {
	set := make(map[string]bool, len(ops))
	for _, op := range ops {
		set[strings.ToLower(strings.TrimSpace(op))] = true
	}
	return set
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
