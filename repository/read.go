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
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tomoncle/bunrepo/events"
	"github.com/tomoncle/bunrepo/query"
	"github.com/tomoncle/bunrepo/types"
	"github.com/uptrace/bun"
)

// All returns every row that passes the criteria and the scope.
func (r *Repository[T]) All(ctx context.Context, columns ...string) (_ []*T, err error) {
	defer r.finish("all", time.Now(), &err)
	return r.scanAll(ctx, r.readQuery(query.New().Columns(columns...)))
}

// Get is an alias of All.
func (r *Repository[T]) Get(ctx context.Context, columns ...string) (_ []*T, err error) {
	defer r.finish("get", time.Now(), &err)
	return r.scanAll(ctx, r.readQuery(query.New().Columns(columns...)))
}

// Limit returns at most n rows.
func (r *Repository[T]) Limit(ctx context.Context, n int, columns ...string) (_ []*T, err error) {
	defer r.finish("limit", time.Now(), &err)
	return r.scanAll(ctx, r.readQuery(query.New().Columns(columns...).Limit(n)))
}

// First returns the first matching row, or nil when there is none.
func (r *Repository[T]) First(ctx context.Context, columns ...string) (_ *T, err error) {
	defer r.finish("first", time.Now(), &err)
	entity, err := r.scanOne(ctx, r.readQuery(query.New().Columns(columns...)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return entity, err
}

// Find returns the row with primary key id or ErrEntityNotFound.
func (r *Repository[T]) Find(ctx context.Context, id interface{}, columns ...string) (_ *T, err error) {
	defer r.finish("find", time.Now(), &err)
	entity, err := r.scanOne(ctx, r.readQuery(query.New().Columns(columns...).Where(r.pk(), "=", id)))
	if err != nil {
		return nil, notFound(r.ModelName(), id, err)
	}
	return entity, nil
}

func (r *Repository[T]) FindByField(ctx context.Context, field string, value interface{}, columns ...string) (_ []*T, err error) {
	defer r.finish("findByField", time.Now(), &err)
	return r.scanAll(ctx, r.readQuery(query.New().Columns(columns...).Where(field, "=", value)))
}

// FindWhere applies structured conditions: a scalar value means equality,
// a []interface{}{field, operator, value} carries its own operator.
func (r *Repository[T]) FindWhere(ctx context.Context, where map[string]interface{}, columns ...string) (_ []*T, err error) {
	defer r.finish("findWhere", time.Now(), &err)
	conds, err := query.FromMap(where)
	if err != nil {
		return nil, err
	}
	return r.scanAll(ctx, r.readQuery(query.New().Columns(columns...).Add(conds...)))
}

func (r *Repository[T]) FindWhereIn(ctx context.Context, field string, values []interface{}, columns ...string) (_ []*T, err error) {
	defer r.finish("findWhereIn", time.Now(), &err)
	return r.scanAll(ctx, r.readQuery(query.New().Columns(columns...).WhereIn(field, values)))
}

func (r *Repository[T]) FindWhereNotIn(ctx context.Context, field string, values []interface{}, columns ...string) (_ []*T, err error) {
	defer r.finish("findWhereNotIn", time.Now(), &err)
	return r.scanAll(ctx, r.readQuery(query.New().Columns(columns...).WhereNotIn(field, values)))
}

// FindWhereBetween expects exactly two bounds, both inclusive.
func (r *Repository[T]) FindWhereBetween(ctx context.Context, field string, values []interface{}, columns ...string) (_ []*T, err error) {
	defer r.finish("findWhereBetween", time.Now(), &err)
	between := query.Condition{Kind: query.KindBetween, Field: field, Values: values}
	return r.scanAll(ctx, r.readQuery(query.New().Columns(columns...).Add(between)))
}

// FirstOrNew returns the first row matching attrs, or an unsaved entity
// filled with attrs.
func (r *Repository[T]) FirstOrNew(ctx context.Context, attrs types.Attributes) (_ *T, err error) {
	defer r.finish("firstOrNew", time.Now(), &err)
	entity, err := r.scanOne(ctx, r.readQuery(query.New().Add(equalities(attrs)...)))
	if !errors.Is(err, sql.ErrNoRows) {
		return entity, err
	}
	if entity, err = r.makeModel(); err != nil {
		return nil, err
	}
	if _, err = r.fill(entity, attrs); err != nil {
		return nil, err
	}
	return entity, nil
}

// FirstOrCreate returns the first row matching attrs, inserting one when
// there is none.
func (r *Repository[T]) FirstOrCreate(ctx context.Context, attrs types.Attributes) (*T, error) {
	entity, created, err := r.firstOrCreate(ctx, attrs)
	if err != nil {
		return nil, err
	}
	if created {
		r.emit(ctx, events.ActionCreated, entity)
	}
	return entity, nil
}

func (r *Repository[T]) firstOrCreate(ctx context.Context, attrs types.Attributes) (_ *T, _ bool, err error) {
	defer r.finish("firstOrCreate", time.Now(), &err)
	entity, err := r.scanOne(ctx, r.readQuery(query.New().Add(equalities(attrs)...)))
	if err == nil {
		return entity, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, err
	}
	if entity, err = r.newEntity(ctx, attrs); err != nil {
		return nil, false, err
	}
	return entity, true, nil
}

// Paginate returns page (1 based) of perPage rows along with the total
// count. perPage 0 uses the repository default.
func (r *Repository[T]) Paginate(ctx context.Context, perPage, page int, columns ...string) (_ *types.Pagination[T], err error) {
	defer r.finish("paginate", time.Now(), &err)
	perPage, page = r.pageBounds(perPage, page)
	b := r.readQuery(query.New().Columns(columns...))
	total, err := r.count(ctx, b)
	if err != nil {
		return nil, err
	}
	pagination := types.NewDefaultPagination[T](page, perPage)
	if total == 0 {
		return pagination, nil
	}
	if len(b.Orders()) == 0 {
		b = b.OrderBy(r.pk(), "ASC")
	}
	items, err := r.scanAll(ctx, b.Limit(perPage).Offset((page-1)*perPage))
	if err != nil {
		return nil, err
	}
	pagination.Total = total
	pagination.Items = items
	return pagination, nil
}

// SimplePaginate is Paginate without the count query.
func (r *Repository[T]) SimplePaginate(ctx context.Context, perPage, page int, columns ...string) (_ *types.SimplePagination[T], err error) {
	defer r.finish("simplePaginate", time.Now(), &err)
	perPage, page = r.pageBounds(perPage, page)
	b := r.readQuery(query.New().Columns(columns...))
	if len(b.Orders()) == 0 {
		b = b.OrderBy(r.pk(), "ASC")
	}
	items, err := r.scanAll(ctx, b.Limit(perPage+1).Offset((page-1)*perPage))
	if err != nil {
		return nil, err
	}
	p := &types.SimplePagination[T]{Page: page, PageSize: perPage, Items: items}
	if len(items) > perPage {
		p.HasMore = true
		p.Items = items[:perPage]
	}
	return p, nil
}

func (r *Repository[T]) Count(ctx context.Context) (_ int, err error) {
	defer r.finish("count", time.Now(), &err)
	return r.count(ctx, r.readQuery(nil))
}

// CountWhere counts the rows matching the structured conditions.
func (r *Repository[T]) CountWhere(ctx context.Context, where map[string]interface{}) (_ int, err error) {
	defer r.finish("countWhere", time.Now(), &err)
	conds, err := query.FromMap(where)
	if err != nil {
		return 0, err
	}
	return r.count(ctx, r.readQuery(query.New().Add(conds...)))
}

// GetByCriteria applies c alone, ignoring the criteria stack and the scope.
func (r *Repository[T]) GetByCriteria(ctx context.Context, c Criterion) (_ []*T, err error) {
	defer r.finish("getByCriteria", time.Now(), &err)
	if isNilCriterion(c) {
		return nil, fmt.Errorf("%w: nil", ErrInvalidCriterion)
	}
	b := c.Apply(query.New(), r)
	if b == nil {
		b = query.New()
	}
	return r.scanAll(ctx, r.checkTrashed(b.Merge(r.query)))
}

// NewSelect returns a select on T with the criteria, the scope and the
// chained modifiers applied. The repository state is reset as for any
// other operation; scan the result into your own destination.
func (r *Repository[T]) NewSelect() *bun.SelectQuery {
	defer func() {
		r.resetModel()
		r.ResetScope()
	}()
	b := r.readQuery(nil)
	q := r.db.NewSelect().Model((*T)(nil))
	if err := b.Err(); err != nil {
		return q.Err(err)
	}
	return b.ApplySelect(q)
}

// Pluck returns the values of one column for every matching row.
func Pluck[T any, V any](ctx context.Context, r *Repository[T], column string) (_ []V, err error) {
	defer r.finish("pluck", time.Now(), &err)
	b := r.readQuery(nil)
	if err = b.Err(); err != nil {
		return nil, err
	}
	values := make([]V, 0)
	q := b.ApplySelect(r.db.NewSelect().Model((*T)(nil))).ColumnExpr("?TableAlias.?", bun.Ident(column))
	if err = q.Scan(ctx, &values); err != nil {
		return nil, err
	}
	return values, nil
}

func equalities(attrs types.Attributes) query.Conditions {
	conds := make(query.Conditions, 0, len(attrs))
	for _, k := range attrs.Keys() {
		conds = append(conds, query.Eq(k, attrs[k]))
	}
	return conds
}
