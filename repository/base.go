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
	"errors"
	"fmt"
	"math"
	"reflect"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/tomoncle/bunrepo/database"
	"github.com/tomoncle/bunrepo/events"
	"github.com/tomoncle/bunrepo/metrics"
	"github.com/tomoncle/bunrepo/query"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
)

var (
	defaultLoggerOnce sync.Once
	defaultLogger     database.Logger
)

func repositoryLogger() database.Logger {
	defaultLoggerOnce.Do(func() { defaultLogger = database.NewNamedLogger("REPOSITORY") })
	return defaultLogger
}

// Repository is a generic repository for the bun model T.
type Repository[T any] struct {
	db    *bun.DB
	table *schema.Table

	factory ModelFactory[T]
	// query holds the modifiers chained since the last operation.
	query    *query.Builder
	criteria criteriaStack
	scope    ScopeFunc
	skip     bool

	searchable []SearchField
	sink       events.Sink
	logger     database.Logger
	metrics    metrics.Collector
	validate   *validator.Validate
	perPage    int
}

// New returns a repository for T backed by db. T must be a struct with at
// least one bun primary key.
func New[T any](db *bun.DB, opts ...Option[T]) (*Repository[T], error) {
	if db == nil {
		return nil, errors.New("db cannot be nil")
	}
	typ := reflect.TypeOf((*T)(nil)).Elem()
	if typ.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %s is not a struct", ErrInvalidModelType, typ)
	}
	table := db.Table(typ)
	if len(table.PKs) == 0 {
		return nil, fmt.Errorf("%w: %s has no primary key", ErrInvalidModelType, typ)
	}

	r := &Repository[T]{
		db:      db,
		table:   table,
		factory: func() *T { return new(T) },
		query:   query.New(),
		sink:    events.Nop,
		logger:  repositoryLogger(),
		metrics: metrics.Nop,
		perPage: DefaultPerPage,
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, fmt.Errorf("failed to configure %s repository: %w", table.ModelName, err)
		}
	}
	if _, err := r.makeModel(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Repository[T]) DB() *bun.DB { return r.db }

// Table returns the bun schema of T.
func (r *Repository[T]) Table() *schema.Table { return r.table }

// ModelName is the bun model name of T, e.g. "user".
func (r *Repository[T]) ModelName() string { return r.table.ModelName }

// GetModel returns a fresh entity from the model factory.
func (r *Repository[T]) GetModel() (*T, error) { return r.makeModel() }

func (r *Repository[T]) GetFieldsSearchable() []SearchField {
	return append([]SearchField(nil), r.searchable...)
}

// PushCriteria appends c to the criteria stack.
func (r *Repository[T]) PushCriteria(c Criterion) error {
	if isNilCriterion(c) {
		return fmt.Errorf("%w: nil", ErrInvalidCriterion)
	}
	r.criteria = append(r.criteria, c)
	return nil
}

// PushCriteriaKind pushes a new instance of the criterion registered as kind.
func (r *Repository[T]) PushCriteriaKind(kind Kind) error {
	c, err := ResolveCriterion(kind)
	if err != nil {
		return err
	}
	return r.PushCriteria(c)
}

// PopCriteria removes every stacked criterion of the same kind as c.
func (r *Repository[T]) PopCriteria(c Criterion) *Repository[T] {
	if isNilCriterion(c) {
		return r
	}
	return r.PopCriteriaKind(KindOf(c))
}

// PopCriteriaKind removes every stacked criterion of the given kind.
func (r *Repository[T]) PopCriteriaKind(kind Kind) *Repository[T] {
	r.criteria = r.criteria.without(kind)
	return r
}

// GetCriteria returns the stacked criteria in application order.
func (r *Repository[T]) GetCriteria() []Criterion {
	return append([]Criterion(nil), r.criteria...)
}

func (r *Repository[T]) ResetCriteria() *Repository[T] {
	r.criteria = nil
	return r
}

// SkipCriteria disables the criteria stack until called with false.
func (r *Repository[T]) SkipCriteria(skip bool) *Repository[T] {
	r.skip = skip
	return r
}

// ScopeQuery sets the scope for the next operation, replacing any other.
func (r *Repository[T]) ScopeQuery(fn ScopeFunc) *Repository[T] {
	r.scope = fn
	return r
}

func (r *Repository[T]) ResetScope() *Repository[T] {
	r.scope = nil
	return r
}

// OrderBy orders the result of the next read.
func (r *Repository[T]) OrderBy(field, direction string) *Repository[T] {
	r.query = r.query.OrderBy(field, direction)
	return r
}

// With eager loads bun relations on the next read.
func (r *Repository[T]) With(relations ...string) *Repository[T] {
	r.query = r.query.With(relations...)
	return r
}

// Has keeps rows with op count related rows on the next read.
func (r *Repository[T]) Has(relation, op string, count int) *Repository[T] {
	r.query = r.query.Has(relation, op, count)
	return r
}

// WhereHas keeps rows with a related row matching fn on the next read.
func (r *Repository[T]) WhereHas(relation string, fn func(*query.Builder) *query.Builder) *Repository[T] {
	r.query = r.query.WhereHas(relation, fn)
	return r
}

func (r *Repository[T]) DoesntHave(relation string) *Repository[T] {
	r.query = r.query.DoesntHave(relation)
	return r
}

// WithCount selects <relation>_count on the next read, see query.Builder.WithCount.
func (r *Repository[T]) WithCount(relations ...string) *Repository[T] {
	r.query = r.query.WithCount(relations...)
	return r
}

// OnlyTrashed restricts the next operation to soft deleted rows.
func (r *Repository[T]) OnlyTrashed() error {
	if err := r.requireSoftDeletes("onlyTrashed"); err != nil {
		return err
	}
	r.query = r.query.OnlyTrashed()
	return nil
}

// WithTrashed includes soft deleted rows in the next operation.
func (r *Repository[T]) WithTrashed() error {
	if err := r.requireSoftDeletes("withTrashed"); err != nil {
		return err
	}
	r.query = r.query.WithTrashed()
	return nil
}

func (r *Repository[T]) softDeletable() bool {
	_, ok := any(new(T)).(SoftDeletable)
	return ok && r.table.SoftDeleteField != nil
}

func (r *Repository[T]) requireSoftDeletes(op string) error {
	if !r.softDeletable() {
		return fmt.Errorf("%w: %s on %s requires soft deletes", ErrUnsupportedCapability, op, r.ModelName())
	}
	return nil
}

func (r *Repository[T]) makeModel() (*T, error) {
	m := r.factory()
	if m == nil {
		return nil, fmt.Errorf("%w: factory for %s returned nil", ErrInvalidModelType, r.ModelName())
	}
	return m, nil
}

// resetModel drops the modifiers chained since the last operation.
func (r *Repository[T]) resetModel() {
	r.query = query.New()
}

func (r *Repository[T]) applyCriteria(b *query.Builder) *query.Builder {
	if r.skip {
		return b
	}
	return r.criteria.apply(b, r)
}

func (r *Repository[T]) applyScope(b *query.Builder) *query.Builder {
	if r.scope == nil {
		return b
	}
	if next := r.scope(b); next != nil {
		return next
	}
	return b
}

// readQuery is criteria, then scope, then chained modifiers, then extra.
func (r *Repository[T]) readQuery(extra *query.Builder) *query.Builder {
	return r.checkTrashed(r.applyScope(r.applyCriteria(query.New())).Merge(r.query).Merge(extra))
}

// writeQuery is readQuery without the criteria stack.
func (r *Repository[T]) writeQuery(extra *query.Builder) *query.Builder {
	return r.checkTrashed(r.applyScope(query.New()).Merge(r.query).Merge(extra))
}

// checkTrashed fails b when a criterion or the scope asked for trashed
// rows of a model without soft deletes.
func (r *Repository[T]) checkTrashed(b *query.Builder) *query.Builder {
	if b.Trashed() == query.WithoutTrashed || r.softDeletable() {
		return b
	}
	return b.Fail(fmt.Errorf("%w: trashed rows of %s require soft deletes", ErrUnsupportedCapability, r.ModelName()))
}

// finish runs after every operation, whatever its outcome. A panic is
// observed as a failure and then resumed.
func (r *Repository[T]) finish(op string, start time.Time, errp *error) {
	r.resetModel()
	r.ResetScope()

	var err error
	if errp != nil {
		err = *errp
	}
	p := recover()
	if p != nil {
		err = fmt.Errorf("panic in %s: %v", op, p)
	}
	r.metrics.Observe(r.ModelName(), op, time.Since(start), err)
	if err != nil {
		r.logger.Debug("repository operation failed", "model", r.ModelName(), "operation", op, "error", err)
	}
	if p != nil {
		panic(p)
	}
}

// emit dispatches a copy of entity so that later changes by the caller do
// not reach recorded events. The copy is shallow.
func (r *Repository[T]) emit(ctx context.Context, action events.Action, entity *T) {
	snapshot := *entity
	r.sink.Dispatch(ctx, events.New(action, r, &snapshot))
}

func (r *Repository[T]) pk() string {
	return r.table.PKs[0].Name
}

func (r *Repository[T]) scanOne(ctx context.Context, b *query.Builder) (*T, error) {
	if err := b.Err(); err != nil {
		return nil, err
	}
	entity, err := r.makeModel()
	if err != nil {
		return nil, err
	}
	if len(b.Orders()) == 0 {
		b = b.OrderBy(r.pk(), "ASC")
	}
	if err := b.Limit(1).ApplySelect(r.db.NewSelect().Model(entity)).Scan(ctx); err != nil {
		return nil, err
	}
	return entity, nil
}

func (r *Repository[T]) scanAll(ctx context.Context, b *query.Builder) ([]*T, error) {
	if err := b.Err(); err != nil {
		return nil, err
	}
	entities := make([]*T, 0)
	if err := b.ApplySelect(r.db.NewSelect().Model(&entities)).Scan(ctx); err != nil {
		return nil, err
	}
	return entities, nil
}

func (r *Repository[T]) count(ctx context.Context, b *query.Builder) (int, error) {
	if err := b.Err(); err != nil {
		return 0, err
	}
	return b.ApplySelect(r.db.NewSelect().Model((*T)(nil))).Count(ctx)
}

func (r *Repository[T]) pageSize(perPage int) int {
	if perPage < 1 {
		perPage = r.perPage
	}
	if perPage > MaxPerPage {
		return MaxPerPage
	}
	return perPage
}

// pageBounds normalizes perPage and page so that the offset fits an int32.
func (r *Repository[T]) pageBounds(perPage, page int) (int, int) {
	perPage = r.pageSize(perPage)
	if page < 1 {
		page = 1
	}
	if last := math.MaxInt32/perPage + 1; page > last {
		page = last
	}
	return perPage, page
}
