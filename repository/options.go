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
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/tomoncle/bunrepo/database"
	"github.com/tomoncle/bunrepo/events"
	"github.com/tomoncle/bunrepo/metrics"
)

// DefaultPerPage is the page size used when Paginate is called with 0.
const DefaultPerPage = 15

// MaxPerPage caps every page size.
const MaxPerPage = 1000

// Option configures a Repository. A nil collaborator falls back to its
// no-op default.
type Option[T any] func(*Repository[T]) error

// WithModelFactory sets the function producing fresh entities.
func WithModelFactory[T any](factory ModelFactory[T]) Option[T] {
	return func(r *Repository[T]) error {
		if factory == nil {
			return errors.New("model factory cannot be nil")
		}
		r.factory = factory
		return nil
	}
}

// WithEventSink sets where lifecycle events are dispatched.
func WithEventSink[T any](sink events.Sink) Option[T] {
	return func(r *Repository[T]) error {
		if sink == nil {
			sink = events.Nop
		}
		r.sink = sink
		return nil
	}
}

// WithFieldsSearchable declares the searchable columns as "name" or
// "name:operator" entries.
func WithFieldsSearchable[T any](fields ...string) Option[T] {
	return func(r *Repository[T]) error {
		r.searchable = ParseSearchFields(fields...)
		return nil
	}
}

// WithCriteria pushes criteria when the repository is built.
func WithCriteria[T any](criteria ...Criterion) Option[T] {
	return func(r *Repository[T]) error {
		for _, c := range criteria {
			if err := r.PushCriteria(c); err != nil {
				return err
			}
		}
		return nil
	}
}

func WithLogger[T any](logger database.Logger) Option[T] {
	return func(r *Repository[T]) error {
		if logger != nil {
			r.logger = logger
		}
		return nil
	}
}

func WithMetrics[T any](collector metrics.Collector) Option[T] {
	return func(r *Repository[T]) error {
		if collector == nil {
			collector = metrics.Nop
		}
		r.metrics = collector
		return nil
	}
}

// WithValidator validates entities with v before insert and update.
func WithValidator[T any](v *validator.Validate) Option[T] {
	return func(r *Repository[T]) error {
		r.validate = v
		return nil
	}
}

// WithPerPage sets the default page size.
func WithPerPage[T any](n int) Option[T] {
	return func(r *Repository[T]) error {
		if n < 1 {
			return errors.New("per page must be positive")
		}
		r.perPage = n
		return nil
	}
}
