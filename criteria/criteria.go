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

// Package criteria holds reusable repository criteria.
package criteria

import (
	"github.com/tomoncle/bunrepo/query"
	"github.com/tomoncle/bunrepo/repository"
)

// Where filters on field with operator.
type Where struct {
	Field    string
	Operator string
	Value    interface{}
}

func (c Where) Apply(q *query.Builder, _ repository.Inspector) *query.Builder {
	return q.Where(c.Field, c.Operator, c.Value)
}

// In keeps rows whose field is one of Values.
type In struct {
	Field  string
	Values []interface{}
}

func (c In) Apply(q *query.Builder, _ repository.Inspector) *query.Builder {
	return q.WhereIn(c.Field, c.Values)
}

// Between keeps rows whose field lies in [Low, High].
type Between struct {
	Field     string
	Low, High interface{}
}

func (c Between) Apply(q *query.Builder, _ repository.Inspector) *query.Builder {
	return q.WhereBetween(c.Field, c.Low, c.High)
}

// Raw adds a bun formatted expression.
type Raw struct {
	Expr string
	Args []interface{}
}

func (c Raw) Apply(q *query.Builder, _ repository.Inspector) *query.Builder {
	return q.WhereRaw(c.Expr, c.Args...)
}

type OrderBy struct {
	Field     string
	Direction string
}

func (c OrderBy) Apply(q *query.Builder, _ repository.Inspector) *query.Builder {
	return q.OrderBy(c.Field, c.Direction)
}

// With eager loads bun relations.
type With struct {
	Relations []string
}

func (c With) Apply(q *query.Builder, _ repository.Inspector) *query.Builder {
	return q.With(c.Relations...)
}

type Limit struct {
	N int
}

func (c Limit) Apply(q *query.Builder, _ repository.Inspector) *query.Builder {
	return q.Limit(c.N)
}

// Trashed selects soft deleted rows: query.OnlyTrashed or query.WithTrashed.
// On models without soft deletes the operation fails with
// repository.ErrUnsupportedCapability.
type Trashed struct {
	Mode query.TrashedMode
}

func (c Trashed) Apply(q *query.Builder, _ repository.Inspector) *query.Builder {
	switch c.Mode {
	case query.OnlyTrashed:
		return q.OnlyTrashed()
	case query.WithTrashed:
		return q.WithTrashed()
	}
	return q
}
