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
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomoncle/bunrepo/events"
	"github.com/tomoncle/bunrepo/query"
	"github.com/tomoncle/bunrepo/types"
)

func TestPaginate(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	seedUsers(t, db, 5)
	repo := newUserRepo(t, db)

	page, err := repo.Paginate(ctx, 3, 1)
	require.NoError(t, err)
	assert.Len(t, page.Items, 3)
	assert.Equal(t, 5, page.Total)
	assert.Equal(t, 2, page.LastPage())
	assert.Equal(t, []int64{1, 2, 3}, ids(page.Items))

	page, err = repo.Paginate(ctx, 3, 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{4, 5}, ids(page.Items))
	assert.False(t, page.HasMorePages())

	page, err = repo.Paginate(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultPerPage, page.PageSize)
	assert.Equal(t, 1, page.Page)
	assert.Len(t, page.Items, 5)
}

func TestPaginateEmptyAndFiltered(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := newUserRepo(t, db)

	page, err := repo.Paginate(ctx, 3, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, page.Total)
	assert.Empty(t, page.Items)

	seedUsers(t, db, 5)
	page, err = repo.ScopeQuery(func(q *query.Builder) *query.Builder {
		return q.Where("age", ">", 22)
	}).OrderBy("age", "desc").Paginate(ctx, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, []int64{5, 4}, ids(page.Items))
}

func TestPageSizeIsClamped(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	seedUsers(t, db, 3)
	repo := newUserRepo(t, db)

	simple, err := repo.SimplePaginate(ctx, math.MaxInt, math.MaxInt)
	require.NoError(t, err)
	assert.Equal(t, MaxPerPage, simple.PageSize)
	assert.Empty(t, simple.Items)
	assert.False(t, simple.HasMore)

	page, err := repo.Paginate(ctx, math.MaxInt, 1)
	require.NoError(t, err)
	assert.Equal(t, MaxPerPage, page.PageSize)
	assert.Len(t, page.Items, 3)
}

func TestSimplePaginate(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	seedUsers(t, db, 5)
	repo := newUserRepo(t, db)

	page, err := repo.SimplePaginate(ctx, 3, 1)
	require.NoError(t, err)
	assert.True(t, page.HasMore)
	assert.Len(t, page.Items, 3)

	page, err = repo.SimplePaginate(ctx, 3, 2)
	require.NoError(t, err)
	assert.False(t, page.HasMore)
	assert.Equal(t, []int64{4, 5}, ids(page.Items))
}

func TestGetByCriteria(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	seedUsers(t, db, 3)
	repo := newUserRepo(t, db)

	require.NoError(t, repo.PushCriteria(idCriterion{ID: 2}))
	users, err := repo.GetByCriteria(ctx, idCriterion{ID: 2})
	require.NoError(t, err)
	require.NotEmpty(t, users)
	assert.Equal(t, int64(2), users[0].ID)

	// the stack is bypassed
	users, err = repo.GetByCriteria(ctx, idCriterion{ID: 3})
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, ids(users))

	_, err = repo.GetByCriteria(ctx, nil)
	require.ErrorIs(t, err, ErrInvalidCriterion)
}

func TestFindWhereVariants(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	seedUsers(t, db, 4)
	repo := newUserRepo(t, db)

	users, err := repo.FindWhereBetween(ctx, "id", []interface{}{1, 2})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{1, 2}, ids(users))

	users, err = repo.FindWhereNotIn(ctx, "id", []interface{}{1, 2})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{3, 4}, ids(users))

	users, err = repo.FindWhereIn(ctx, "id", []interface{}{2, 4})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{2, 4}, ids(users))

	users, err = repo.FindWhereIn(ctx, "id", nil)
	require.NoError(t, err)
	assert.Empty(t, users)

	users, err = repo.FindWhere(ctx, map[string]interface{}{
		"name": "user3",
		"age":  []interface{}{"age", ">", 20},
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, ids(users))

	users, err = repo.FindByField(ctx, "email", "user4@example.com")
	require.NoError(t, err)
	assert.Equal(t, []int64{4}, ids(users))

	_, err = repo.FindWhereBetween(ctx, "id", []interface{}{1})
	require.ErrorIs(t, err, query.ErrInvalidCondition)

	_, err = repo.FindWhere(ctx, map[string]interface{}{"age": []interface{}{"age", "~", 1}})
	require.ErrorIs(t, err, query.ErrInvalidOperator)
}

func TestFindAndFirst(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := newUserRepo(t, db)

	first, err := repo.First(ctx)
	require.NoError(t, err)
	assert.Nil(t, first)

	seedUsers(t, db, 3)

	first, err = repo.OrderBy("id", "desc").First(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), first.ID)

	u, err := repo.Find(ctx, 2, "id", "name")
	require.NoError(t, err)
	assert.Equal(t, "user2", u.Name)
	assert.Empty(t, u.Email)

	_, err = repo.Find(ctx, 42)
	require.ErrorIs(t, err, ErrEntityNotFound)

	limited, err := repo.Limit(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	all, err := repo.Get(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestCount(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	seedUsers(t, db, 4)
	repo := newUserRepo(t, db)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	n, err = repo.CountWhere(ctx, map[string]interface{}{"age": []interface{}{"age", ">=", 23}})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, repo.PushCriteria(idCriterion{ID: 1}))
	n, err = repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestNoResidualFilterBetweenCalls(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	seedUsers(t, db, 3)
	repo := newUserRepo(t, db)

	_, err := repo.Find(ctx, 1)
	require.NoError(t, err)
	users, err := repo.All(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 3)

	repo.ScopeQuery(func(q *query.Builder) *query.Builder { return q.Where("name", "=", "user1") })
	users, err = repo.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids(users))

	users, err = repo.All(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 3)

	// a failing operation resets as well
	repo.ScopeQuery(func(q *query.Builder) *query.Builder { return q.Where("name", "=", "user1") }).OrderBy("age", "desc")
	_, err = repo.Find(ctx, 3)
	require.ErrorIs(t, err, ErrEntityNotFound)
	assert.Nil(t, repo.scope)
	assert.True(t, repo.query.IsZero())

	users, err = repo.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, ids(users))

	repo.ScopeQuery(func(q *query.Builder) *query.Builder { return q.Where("name", "bogus", 1) })
	_, err = repo.All(ctx)
	require.ErrorIs(t, err, query.ErrInvalidOperator)
	assert.Nil(t, repo.scope)
}

func TestFirstOrNewAndFirstOrCreate(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	seedUsers(t, db, 1)
	rec := events.NewRecorder()
	repo := newUserRepo(t, db, WithEventSink[User](rec))

	u, err := repo.FirstOrNew(ctx, types.Attributes{"name": "user1"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), u.ID)

	u, err = repo.FirstOrNew(ctx, types.Attributes{"name": "ghost", "age": 9})
	require.NoError(t, err)
	assert.Zero(t, u.ID)
	assert.Equal(t, 9, u.Age)

	u, err = repo.FirstOrCreate(ctx, types.Attributes{"name": "user1"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), u.ID)
	assert.Empty(t, rec.Events())

	u, err = repo.FirstOrCreate(ctx, types.Attributes{"name": "carol", "email": "carol@example.com"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), u.ID)
	require.Len(t, rec.Events(), 1)
	assert.Equal(t, events.ActionCreated, rec.Events()[0].Action())
}

func TestPluck(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	seedUsers(t, db, 3)
	repo := newUserRepo(t, db)

	names, err := Pluck[User, string](ctx, repo.OrderBy("id", "asc"), "name")
	require.NoError(t, err)
	assert.Equal(t, []string{"user1", "user2", "user3"}, names)

	require.NoError(t, repo.PushCriteria(idCriterion{ID: 2}))
	ages, err := Pluck[User, int](ctx, repo, "age")
	require.NoError(t, err)
	assert.Equal(t, []int{22}, ages)
}

func TestNewSelectEscapeHatch(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	seedUsers(t, db, 3)
	repo := newUserRepo(t, db, WithCriteria[User](idCriterion{ID: 3}))

	var users []User
	require.NoError(t, repo.NewSelect().Scan(ctx, &users))
	require.Len(t, users, 1)
	assert.Equal(t, int64(3), users[0].ID)

	repo.ScopeQuery(func(q *query.Builder) *query.Builder { return q.Where("id", "?", 1) })
	err := repo.NewSelect().Scan(ctx, &users)
	require.ErrorIs(t, err, query.ErrInvalidOperator)
	assert.Nil(t, repo.scope)
}
