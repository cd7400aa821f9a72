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

package query

import (
	"strings"

	"github.com/uptrace/bun"
)

func applyWhere(q *bun.SelectQuery, conds Conditions, qualifier string) *bun.SelectQuery {
	for _, cond := range conds {
		expr, args := cond.render(qualifier)
		if expr == "" {
			continue
		}
		q = q.Where(expr, args...)
	}
	return q
}

// ApplySelect renders the builder onto a select query. The model must be
// set on q before calling, bun resolves ?TableAlias and relations from it.
func (b *Builder) ApplySelect(q *bun.SelectQuery) *bun.SelectQuery {
	if b == nil {
		return q
	}
	if len(b.columns) > 0 {
		q = q.Column(b.columns...)
	}
	for _, rel := range b.relations {
		q = q.Relation(rel)
	}
	q = applyWhere(q, b.conds, "?TableAlias")
	q = b.applyRelations(q)
	switch b.trashed {
	case OnlyTrashed:
		q = q.WhereDeleted()
	case WithTrashed:
		q = q.WhereAllWithDeleted()
	}
	for _, o := range b.orders {
		if strings.Contains(o.Field, ".") {
			q = q.OrderExpr("? "+o.Direction, bun.Ident(o.Field))
			continue
		}
		q = q.OrderExpr("?TableAlias.? "+o.Direction, bun.Ident(o.Field))
	}
	if b.limit > 0 {
		q = q.Limit(b.limit)
	}
	if b.offset > 0 {
		q = q.Offset(b.offset)
	}
	for _, fn := range b.selects {
		q = fn(q)
	}
	return q
}
