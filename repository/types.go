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

package repository

import (
	"strings"

	"github.com/tomoncle/bunrepo/query"
)

// ModelFactory returns a fresh, zero entity for the repository.
type ModelFactory[T any] func() *T

// ScopeFunc is a one-shot query modifier applied after the criteria.
type ScopeFunc func(q *query.Builder) *query.Builder

// SearchField is a searchable column and the operator used to match it.
type SearchField struct {
	Name     string
	Operator string
}

// ParseSearchFields parses "name" or "name:operator" entries. The operator
// defaults to "=".
func ParseSearchFields(fields ...string) []SearchField {
	out := make([]SearchField, 0, len(fields))
	for _, f := range fields {
		name, op, _ := strings.Cut(strings.TrimSpace(f), ":")
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		op = strings.TrimSpace(op)
		if op == "" {
			op = "="
		}
		out = append(out, SearchField{Name: name, Operator: op})
	}
	return out
}
