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
	"time"

	"github.com/tomoncle/bunrepo/events"
	"github.com/tomoncle/bunrepo/query"
	"github.com/tomoncle/bunrepo/types"
)

// Create inserts a new entity filled from attrs.
func (r *Repository[T]) Create(ctx context.Context, attrs types.Attributes) (*T, error) {
	entity, err := r.create(ctx, attrs)
	if err != nil {
		return nil, err
	}
	r.emit(ctx, events.ActionCreated, entity)
	return entity, nil
}

func (r *Repository[T]) create(ctx context.Context, attrs types.Attributes) (_ *T, err error) {
	defer r.finish("create", time.Now(), &err)
	return r.newEntity(ctx, attrs)
}

// Update sets attrs on the entity with primary key id. Primary key
// attributes are ignored.
func (r *Repository[T]) Update(ctx context.Context, id interface{}, attrs types.Attributes) (*T, error) {
	entity, err := r.update(ctx, id, attrs)
	if err != nil {
		return nil, err
	}
	r.emit(ctx, events.ActionUpdated, entity)
	return entity, nil
}

func (r *Repository[T]) update(ctx context.Context, id interface{}, attrs types.Attributes) (_ *T, err error) {
	defer r.finish("update", time.Now(), &err)
	entity, err := r.scanOne(ctx, r.writeQuery(query.New().Where(r.pk(), "=", id)))
	if err != nil {
		return nil, notFound(r.ModelName(), id, err)
	}
	if err = r.saveChanges(ctx, entity, attrs); err != nil {
		return nil, err
	}
	return entity, nil
}

// UpdateOrCreate updates the first row matching attrs with values, or
// inserts a row holding both.
func (r *Repository[T]) UpdateOrCreate(ctx context.Context, attrs, values types.Attributes) (*T, error) {
	entity, action, err := r.updateOrCreate(ctx, attrs, values)
	if err != nil {
		return nil, err
	}
	r.emit(ctx, action, entity)
	return entity, nil
}

func (r *Repository[T]) updateOrCreate(ctx context.Context, attrs, values types.Attributes) (_ *T, _ events.Action, err error) {
	defer r.finish("updateOrCreate", time.Now(), &err)
	entity, err := r.scanOne(ctx, r.writeQuery(query.New().Add(equalities(attrs)...)))
	switch {
	case err == nil:
		if err = r.saveChanges(ctx, entity, values); err != nil {
			return nil, "", err
		}
		return entity, events.ActionUpdated, nil
	case errors.Is(err, sql.ErrNoRows):
		if entity, err = r.newEntity(ctx, attrs.Merge(values)); err != nil {
			return nil, "", err
		}
		return entity, events.ActionCreated, nil
	default:
		return nil, "", err
	}
}

// Delete removes the entity with primary key id. Soft deletable entities
// are only marked as deleted.
func (r *Repository[T]) Delete(ctx context.Context, id interface{}) error {
	snapshot, err := r.delete(ctx, "delete", id, false)
	if err != nil {
		return err
	}
	r.emit(ctx, events.ActionDeleted, snapshot)
	return nil
}

// ForceDelete permanently removes a soft deletable entity, trashed or not.
func (r *Repository[T]) ForceDelete(ctx context.Context, id interface{}) error {
	snapshot, err := r.delete(ctx, "forceDelete", id, true)
	if err != nil {
		return err
	}
	r.emit(ctx, events.ActionDeleted, snapshot)
	return nil
}

func (r *Repository[T]) delete(ctx context.Context, op string, id interface{}, force bool) (_ *T, err error) {
	defer r.finish(op, time.Now(), &err)
	b := r.writeQuery(query.New().Where(r.pk(), "=", id))
	if force {
		if err = r.requireSoftDeletes(op); err != nil {
			return nil, err
		}
		b = b.WithTrashed()
	}
	entity, err := r.scanOne(ctx, b)
	if err != nil {
		return nil, notFound(r.ModelName(), id, err)
	}
	snapshot := *entity

	q := r.db.NewDelete().Model(entity).WherePK()
	if force {
		q = q.ForceDelete()
	}
	if _, err = q.Exec(ctx); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// DeleteWhere deletes the rows matching the structured conditions and the
// scope. The criteria stack is not applied. It returns the number of
// deleted rows and emits one event per row.
func (r *Repository[T]) DeleteWhere(ctx context.Context, where map[string]interface{}) (int, error) {
	snapshots, err := r.deleteWhere(ctx, where)
	if err != nil {
		return 0, err
	}
	for _, s := range snapshots {
		r.emit(ctx, events.ActionDeleted, s)
	}
	return len(snapshots), nil
}

func (r *Repository[T]) deleteWhere(ctx context.Context, where map[string]interface{}) (_ []*T, err error) {
	defer r.finish("deleteWhere", time.Now(), &err)
	conds, err := query.FromMap(where)
	if err != nil {
		return nil, err
	}
	rows, err := r.scanAll(ctx, r.writeQuery(query.New().Add(conds...)))
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	snapshots := make([]*T, len(rows))
	for i, row := range rows {
		s := *row
		snapshots[i] = &s
	}
	if _, err = r.db.NewDelete().Model(&rows).WherePK().Exec(ctx); err != nil {
		return nil, err
	}
	return snapshots, nil
}

func (r *Repository[T]) newEntity(ctx context.Context, attrs types.Attributes) (*T, error) {
	entity, err := r.makeModel()
	if err != nil {
		return nil, err
	}
	if _, err := r.fill(entity, attrs); err != nil {
		return nil, err
	}
	if err := r.validateEntity(ctx, entity); err != nil {
		return nil, err
	}
	if _, err := r.db.NewInsert().Model(entity).Exec(ctx); err != nil {
		return nil, err
	}
	return entity, nil
}

// saveChanges fills attrs into a persisted entity and updates those
// columns only.
func (r *Repository[T]) saveChanges(ctx context.Context, entity *T, attrs types.Attributes) error {
	columns, err := r.fill(entity, r.withoutPK(attrs))
	if err != nil || len(columns) == 0 {
		return err
	}
	if err := r.validateEntity(ctx, entity); err != nil {
		return err
	}
	_, err = r.db.NewUpdate().Model(entity).Column(columns...).WherePK().Exec(ctx)
	return err
}

func (r *Repository[T]) validateEntity(ctx context.Context, entity *T) error {
	if r.validate == nil {
		return nil
	}
	return r.validate.StructCtx(ctx, entity)
}
