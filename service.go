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

// Package bunrepo exposes Service, a thin facade handing out a fresh
// repository per call over the global database.
package bunrepo

import (
	"context"
	"errors"
	"net/url"

	"github.com/tomoncle/bunrepo/criteria"
	"github.com/tomoncle/bunrepo/database"
	"github.com/tomoncle/bunrepo/query"
	"github.com/tomoncle/bunrepo/repository"
	"github.com/tomoncle/bunrepo/types"
	"github.com/uptrace/bun"
)

// ErrDatabaseNotInitialized is returned when no database is available.
var ErrDatabaseNotInitialized = errors.New("bunrepo: database not initialized")

type Service[T any] interface {
	// Repository returns a new repository for T configured with the
	// service options. Its criteria and scope are private to the caller.
	Repository() (*repository.Repository[T], error)

	// Get returns a single entity by its identifier.
	Get(ctx context.Context, id any) (*T, error)

	// All returns all entities.
	All(ctx context.Context) ([]*T, error)

	// List returns entities matching the raw filter.
	List(ctx context.Context, filter *types.QueryFilter) ([]*T, error)

	// Query executes a raw query and maps the results to entities.
	Query(ctx context.Context, query string, args ...interface{}) ([]*T, error)

	// Page returns one page of entities matching the request filter and orders.
	Page(ctx context.Context, page *types.PageRequest) (*types.Pagination[T], error)

	// Search returns one page of entities filtered by request parameters.
	Search(ctx context.Context, params url.Values, perPage, page int) (*types.Pagination[T], error)

	// Create inserts an entity built from attrs.
	Create(ctx context.Context, attrs types.Attributes) (*T, error)

	// Update changes the entity with the given identifier.
	Update(ctx context.Context, id any, attrs types.Attributes) (*T, error)

	// Delete removes an entity by its identifier.
	Delete(ctx context.Context, id any) error

	// SelectBuilder returns a bun select query on T.
	SelectBuilder() *bun.SelectQuery
}

type baseService[T any] struct {
	db            func() *bun.DB
	opts          []repository.Option[T]
	searchOptions []criteria.SearchOption
}

// NewService returns a Service over the global database. The options are
// applied to every repository it creates.
func NewService[T any](opts ...repository.Option[T]) Service[T] {
	return &baseService[T]{db: database.GetDB, opts: opts}
}

// NewServiceWithDB returns a Service over db.
func NewServiceWithDB[T any](db *bun.DB, opts ...repository.Option[T]) Service[T] {
	return &baseService[T]{db: func() *bun.DB { return db }, opts: opts}
}

// WithSearchOptions returns a copy of s whose Search uses opts.
func WithSearchOptions[T any](s Service[T], opts ...criteria.SearchOption) Service[T] {
	base, ok := s.(*baseService[T])
	if !ok {
		return s
	}
	c := *base
	c.searchOptions = append(append([]criteria.SearchOption(nil), base.searchOptions...), opts...)
	return &c
}

func (s *baseService[T]) Repository() (*repository.Repository[T], error) {
	db := s.db()
	if db == nil {
		return nil, ErrDatabaseNotInitialized
	}
	return repository.New[T](db, s.opts...)
}

func (s *baseService[T]) Get(ctx context.Context, id any) (*T, error) {
	repo, err := s.Repository()
	if err != nil {
		return nil, err
	}
	return repo.Find(ctx, id)
}

func (s *baseService[T]) All(ctx context.Context) ([]*T, error) {
	repo, err := s.Repository()
	if err != nil {
		return nil, err
	}
	return repo.All(ctx)
}

func (s *baseService[T]) List(ctx context.Context, filter *types.QueryFilter) ([]*T, error) {
	repo, err := s.Repository()
	if err != nil {
		return nil, err
	}
	return applyFilter(repo, filter).All(ctx)
}

func (s *baseService[T]) Query(ctx context.Context, query string, args ...interface{}) ([]*T, error) {
	db := s.db()
	if db == nil {
		return nil, ErrDatabaseNotInitialized
	}
	rows := make([]*T, 0)
	if err := db.NewRaw(query, args...).Scan(ctx, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *baseService[T]) Page(ctx context.Context, page *types.PageRequest) (*types.Pagination[T], error) {
	repo, err := s.Repository()
	if err != nil {
		return nil, err
	}
	if page == nil {
		page = types.NewDefaultPageRequest(1, 0)
	}
	repo = applyFilter(repo, page.GetFilter())
	for _, o := range page.ParsedOrders() {
		repo = repo.OrderBy(o.Field, o.Direction)
	}
	return repo.Paginate(ctx, page.GetPageSize(), page.GetPage())
}

func (s *baseService[T]) Search(ctx context.Context, params url.Values, perPage, page int) (*types.Pagination[T], error) {
	repo, err := s.Repository()
	if err != nil {
		return nil, err
	}
	if err := repo.PushCriteria(criteria.Search(params, s.searchOptions...)); err != nil {
		return nil, err
	}
	return repo.Paginate(ctx, perPage, page)
}

func (s *baseService[T]) Create(ctx context.Context, attrs types.Attributes) (*T, error) {
	repo, err := s.Repository()
	if err != nil {
		return nil, err
	}
	return repo.Create(ctx, attrs)
}

func (s *baseService[T]) Update(ctx context.Context, id any, attrs types.Attributes) (*T, error) {
	repo, err := s.Repository()
	if err != nil {
		return nil, err
	}
	return repo.Update(ctx, id, attrs)
}

func (s *baseService[T]) Delete(ctx context.Context, id any) error {
	repo, err := s.Repository()
	if err != nil {
		return err
	}
	return repo.Delete(ctx, id)
}

// SelectBuilder returns nil when the database is not initialized.
func (s *baseService[T]) SelectBuilder() *bun.SelectQuery {
	repo, err := s.Repository()
	if err != nil {
		return nil
	}
	return repo.NewSelect()
}

func applyFilter[T any](repo *repository.Repository[T], filter *types.QueryFilter) *repository.Repository[T] {
	if filter == nil || filter.Schema == "" {
		return repo
	}
	return repo.ScopeQuery(func(q *query.Builder) *query.Builder {
		return q.WhereRaw(filter.Schema, filter.Args...)
	})
}
