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
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/tomoncle/bunrepo/query"
)

// Inspector is the read-only view of a repository handed to criteria.
type Inspector interface {
	ModelName() string
	GetFieldsSearchable() []SearchField
	GetCriteria() []Criterion
}

// Criterion is a reusable query filter. Apply must not mutate q; it returns
// the builder to use from here on.
type Criterion interface {
	Apply(q *query.Builder, repo Inspector) *query.Builder
}

// CriterionFunc adapts a function to Criterion. All CriterionFunc values
// share one Kind; use Named to give a function its own identity.
type CriterionFunc func(q *query.Builder, repo Inspector) *query.Builder

func (f CriterionFunc) Apply(q *query.Builder, repo Inspector) *query.Builder {
	return f(q, repo)
}

// Kind identifies a criterion type on the stack.
type Kind string

// Named returns a criterion whose Kind is name.
func Named(name string, fn CriterionFunc) Criterion {
	return &namedCriterion{name: name, fn: fn}
}

type namedCriterion struct {
	name string
	fn   CriterionFunc
}

func (c *namedCriterion) Apply(q *query.Builder, repo Inspector) *query.Builder {
	return c.fn(q, repo)
}

func (c *namedCriterion) CriterionName() string { return c.name }

// KindOf returns the identity of c: its CriterionName() when it has one,
// otherwise the package qualified name of its type.
func KindOf(c Criterion) Kind {
	if n, ok := c.(interface{ CriterionName() string }); ok {
		return Kind(n.CriterionName())
	}
	t := reflect.TypeOf(c)
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil {
		return ""
	}
	if t.Name() == "" {
		return Kind(t.String())
	}
	return Kind(t.PkgPath() + "." + t.Name())
}

func isNilCriterion(c Criterion) bool {
	if c == nil {
		return true
	}
	v := reflect.ValueOf(c)
	switch v.Kind() {
	case reflect.Ptr, reflect.Func, reflect.Map, reflect.Slice, reflect.Interface:
		return v.IsNil()
	}
	return false
}

// criteriaStack keeps criteria in push order.
type criteriaStack []Criterion

func (s criteriaStack) without(kind Kind) criteriaStack {
	out := make(criteriaStack, 0, len(s))
	for _, c := range s {
		if KindOf(c) != kind {
			out = append(out, c)
		}
	}
	return out
}

// apply folds q through every criterion in push order. A criterion that
// returns nil leaves the query as it was.
func (s criteriaStack) apply(q *query.Builder, repo Inspector) *query.Builder {
	for _, c := range s {
		if isNilCriterion(c) {
			continue
		}
		if next := c.Apply(q, repo); next != nil {
			q = next
		}
	}
	return q
}

// CriterionConstructor builds a fresh criterion for PushCriteriaKind.
type CriterionConstructor func() Criterion

var (
	criteriaRegistryMu sync.RWMutex
	criteriaRegistry   = map[Kind]CriterionConstructor{}
)

// RegisterCriterion makes the criterion built by ctor pushable by kind and
// returns that kind.
func RegisterCriterion(ctor CriterionConstructor) (Kind, error) {
	if ctor == nil {
		return "", fmt.Errorf("%w: nil constructor", ErrInvalidCriterion)
	}
	c := ctor()
	if isNilCriterion(c) {
		return "", fmt.Errorf("%w: constructor returned nil", ErrInvalidCriterion)
	}
	kind := KindOf(c)

	criteriaRegistryMu.Lock()
	defer criteriaRegistryMu.Unlock()
	criteriaRegistry[kind] = ctor
	return kind, nil
}

// ResolveCriterion builds a criterion registered under kind.
func ResolveCriterion(kind Kind) (Criterion, error) {
	criteriaRegistryMu.RLock()
	ctor, ok := criteriaRegistry[kind]
	criteriaRegistryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidCriterion, kind)
	}
	c := ctor()
	if isNilCriterion(c) {
		return nil, fmt.Errorf("%w: constructor for %q returned nil", ErrInvalidCriterion, kind)
	}
	return c, nil
}

// RegisteredCriteria lists the registered kinds in lexical order.
func RegisteredCriteria() []Kind {
	criteriaRegistryMu.RLock()
	defer criteriaRegistryMu.RUnlock()
	kinds := make([]Kind, 0, len(criteriaRegistry))
	for k := range criteriaRegistry {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
