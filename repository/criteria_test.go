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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomoncle/bunrepo/query"
)

type noPK struct {
	Name string `bun:"name"`
}

func TestNewRejectsInvalidModels(t *testing.T) {
	db := newTestDB(t)

	_, err := New[int](db)
	require.ErrorIs(t, err, ErrInvalidModelType)

	_, err = New[noPK](db)
	require.ErrorIs(t, err, ErrInvalidModelType)

	_, err = New[User](db, WithModelFactory[User](func() *User { return nil }))
	require.ErrorIs(t, err, ErrInvalidModelType)

	_, err = New[User](db, WithModelFactory[User](nil))
	require.Error(t, err)

	_, err = New[User](nil)
	require.Error(t, err)

	_, err = New[User](db, WithPerPage[User](0))
	require.Error(t, err)
}

func TestPushAndPopCriteria(t *testing.T) {
	repo := newUserRepo(t, newTestDB(t))

	named := Named("adults", func(q *query.Builder, _ Inspector) *query.Builder {
		return q.Where("age", ">=", 18)
	})
	require.NoError(t, repo.PushCriteria(idCriterion{ID: 2}))
	require.NoError(t, repo.PushCriteria(named))
	require.NoError(t, repo.PushCriteria(&idCriterion{ID: 3}))

	require.ErrorIs(t, repo.PushCriteria(nil), ErrInvalidCriterion)
	require.ErrorIs(t, repo.PushCriteria((*idCriterion)(nil)), ErrInvalidCriterion)
	require.Len(t, repo.GetCriteria(), 3)

	// value and pointer instances share a kind
	repo.PopCriteria(idCriterion{})
	require.Equal(t, []Criterion{named}, repo.GetCriteria())

	repo.PopCriteriaKind("adults")
	assert.Empty(t, repo.GetCriteria())

	require.NoError(t, repo.PushCriteria(named))
	repo.ResetCriteria()
	assert.Empty(t, repo.GetCriteria())
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindOf(idCriterion{}), KindOf(&idCriterion{ID: 9}))
	assert.True(t, strings.HasSuffix(string(KindOf(idCriterion{})), "repository.idCriterion"))
	assert.Equal(t, Kind("adults"), KindOf(Named("adults", nil)))
}

func TestRegisteredCriterionKinds(t *testing.T) {
	db := newTestDB(t)
	seedUsers(t, db, 3)
	repo := newUserRepo(t, db)

	kind, err := RegisterCriterion(func() Criterion { return idCriterion{ID: 3} })
	require.NoError(t, err)
	assert.Contains(t, RegisteredCriteria(), kind)

	require.NoError(t, repo.PushCriteriaKind(kind))
	users, err := repo.All(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, ids(users))

	require.ErrorIs(t, repo.PushCriteriaKind("missing.Criterion"), ErrInvalidCriterion)

	repo.PopCriteriaKind(kind)
	users, err = repo.All(context.Background())
	require.NoError(t, err)
	assert.Len(t, users, 3)

	_, err = RegisterCriterion(nil)
	require.ErrorIs(t, err, ErrInvalidCriterion)
	_, err = RegisterCriterion(func() Criterion { return nil })
	require.ErrorIs(t, err, ErrInvalidCriterion)
}

func TestApplicationOrder(t *testing.T) {
	repo := newUserRepo(t, newTestDB(t))

	var trace []int
	record := func(name string) Criterion {
		return Named(name, func(q *query.Builder, _ Inspector) *query.Builder {
			trace = append(trace, len(q.Conditions()))
			return q.Where(name, "=", 1)
		})
	}
	require.NoError(t, repo.PushCriteria(record("first")))
	require.NoError(t, repo.PushCriteria(record("second")))
	repo.ScopeQuery(func(q *query.Builder) *query.Builder {
		trace = append(trace, len(q.Conditions()))
		return q.Where("scope", "=", 1)
	})

	b := repo.readQuery(query.New().Where("adhoc", "=", 1))
	assert.Equal(t, []int{0, 1, 2}, trace)

	var fields []string
	for _, c := range b.Conditions() {
		fields = append(fields, c.Field)
	}
	assert.Equal(t, []string{"first", "second", "scope", "adhoc"}, fields)

	w := repo.writeQuery(query.New().Where("adhoc", "=", 1))
	fields = fields[:0]
	for _, c := range w.Conditions() {
		fields = append(fields, c.Field)
	}
	assert.Equal(t, []string{"scope", "adhoc"}, fields)
}

func TestNilCriterionResultIsSkipped(t *testing.T) {
	db := newTestDB(t)
	seedUsers(t, db, 2)
	repo := newUserRepo(t, db)

	require.NoError(t, repo.PushCriteria(Named("noop", func(*query.Builder, Inspector) *query.Builder { return nil })))
	require.NoError(t, repo.PushCriteria(idCriterion{ID: 1}))

	users, err := repo.All(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids(users))
}

func TestSkipCriteria(t *testing.T) {
	db := newTestDB(t)
	seedUsers(t, db, 3)
	repo := newUserRepo(t, db, WithCriteria[User](idCriterion{ID: 1}))

	users, err := repo.All(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids(users))

	users, err = repo.SkipCriteria(true).All(context.Background())
	require.NoError(t, err)
	assert.Len(t, users, 3)

	// skipping persists until turned off
	n, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = repo.SkipCriteria(false).Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestResetScopeIsIdempotent(t *testing.T) {
	repo := newUserRepo(t, newTestDB(t))
	repo.ScopeQuery(func(q *query.Builder) *query.Builder { return q.Where("age", ">", 1) })

	repo.ResetScope()
	assert.Nil(t, repo.scope)
	repo.ResetScope()
	assert.Nil(t, repo.scope)
}

func TestSearchableFields(t *testing.T) {
	repo := newUserRepo(t, newTestDB(t), WithFieldsSearchable[User]("name:like", "email", " "))
	assert.Equal(t, []SearchField{
		{Name: "name", Operator: "like"},
		{Name: "email", Operator: "="},
	}, repo.GetFieldsSearchable())
}
