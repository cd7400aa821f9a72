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
	"fmt"
	"strings"

	"github.com/uptrace/bun"
)

// TrashedMode controls how soft deleted rows are selected.
type TrashedMode int

const (
	WithoutTrashed TrashedMode = iota
	OnlyTrashed
	WithTrashed
)

// Order is a single ORDER BY entry.
type Order struct {
	Field     string
	Direction string // ASC or DESC
}

// Builder accumulates the filter state of one repository operation.
// Builders are immutable: every method returns a modified copy and leaves
// the receiver untouched, so a Builder can be shared freely.
type Builder struct {
	conds     Conditions
	orders    []Order
	relations []string
	columns   []string
	limit     int
	offset    int
	trashed   TrashedMode
	has       []relationFilter
	counts    []string
	selects   []func(*bun.SelectQuery) *bun.SelectQuery
	err       error
}

// New returns an empty builder.
func New() *Builder {
	return &Builder{}
}

func (b *Builder) clone() *Builder {
	c := *b
	c.conds = append(Conditions(nil), b.conds...)
	c.orders = append([]Order(nil), b.orders...)
	c.relations = append([]string(nil), b.relations...)
	c.columns = append([]string(nil), b.columns...)
	c.has = append([]relationFilter(nil), b.has...)
	c.counts = append([]string(nil), b.counts...)
	c.selects = append([]func(*bun.SelectQuery) *bun.SelectQuery(nil), b.selects...)
	return &c
}

// Err returns the first error recorded while building.
func (b *Builder) Err() error { return b.err }

// Conditions returns a copy of the accumulated predicates in application order.
func (b *Builder) Conditions() Conditions { return append(Conditions(nil), b.conds...) }

func (b *Builder) Orders() []Order { return append([]Order(nil), b.orders...) }

func (b *Builder) Relations() []string { return append([]string(nil), b.relations...) }

func (b *Builder) SelectedColumns() []string { return append([]string(nil), b.columns...) }

func (b *Builder) Trashed() TrashedMode { return b.trashed }

// IsZero reports whether the builder carries no state at all.
func (b *Builder) IsZero() bool {
	return len(b.conds) == 0 && len(b.orders) == 0 && len(b.relations) == 0 &&
		len(b.columns) == 0 && b.limit == 0 && b.offset == 0 &&
		b.trashed == WithoutTrashed && len(b.has) == 0 && len(b.counts) == 0 &&
		len(b.selects) == 0 && b.err == nil
}

// Fail records err unless an earlier error is already recorded. Running
// the builder then fails with it.
func (b *Builder) Fail(err error) *Builder {
	if err == nil || b.err != nil {
		return b
	}
	c := b.clone()
	c.err = err
	return c
}

// Add appends already built conditions.
func (b *Builder) Add(conds ...Condition) *Builder {
	c := b.clone()
	for _, cond := range conds {
		if err := cond.validate(); err != nil && c.err == nil {
			c.err = err
		}
		c.conds = append(c.conds, cond)
	}
	return c
}

func (b *Builder) Where(field, op string, value interface{}) *Builder {
	return b.Add(Compare(field, op, value))
}

func (b *Builder) WhereIn(field string, values []interface{}) *Builder {
	return b.Add(In(field, values))
}

func (b *Builder) WhereNotIn(field string, values []interface{}) *Builder {
	return b.Add(NotIn(field, values))
}

func (b *Builder) WhereBetween(field string, low, high interface{}) *Builder {
	return b.Add(Between(field, low, high))
}

func (b *Builder) WhereNull(field string) *Builder {
	return b.Add(Null(field))
}

func (b *Builder) WhereNotNull(field string) *Builder {
	return b.Add(NotNull(field))
}

func (b *Builder) WhereRaw(expr string, args ...interface{}) *Builder {
	return b.Add(Raw(expr, args...))
}

// WhereGroup adds conds joined by sep as a single parenthesized predicate.
func (b *Builder) WhereGroup(sep string, conds ...Condition) *Builder {
	return b.Add(Group(sep, conds...))
}

// OrderBy appends an ORDER BY entry; dir defaults to ASC.
func (b *Builder) OrderBy(field, dir string) *Builder {
	c := b.clone()
	d := strings.ToUpper(strings.TrimSpace(dir))
	switch d {
	case "":
		d = "ASC"
	case "ASC", "DESC":
	default:
		if c.err == nil {
			c.err = fmt.Errorf("%w: order direction %q", ErrInvalidCondition, dir)
		}
	}
	c.orders = append(c.orders, Order{Field: field, Direction: d})
	return c
}

// With eager loads the named bun relations on reads.
func (b *Builder) With(relations ...string) *Builder {
	c := b.clone()
	c.relations = append(c.relations, relations...)
	return c
}

// Columns restricts the selected columns. "*" or no columns selects all.
func (b *Builder) Columns(columns ...string) *Builder {
	c := b.clone()
	for _, col := range columns {
		if col == "*" || col == "" {
			continue
		}
		c.columns = append(c.columns, col)
	}
	return c
}

func (b *Builder) Limit(n int) *Builder {
	c := b.clone()
	c.limit = n
	return c
}

func (b *Builder) Offset(n int) *Builder {
	c := b.clone()
	c.offset = n
	return c
}

func (b *Builder) OnlyTrashed() *Builder {
	c := b.clone()
	c.trashed = OnlyTrashed
	return c
}

func (b *Builder) WithTrashed() *Builder {
	c := b.clone()
	c.trashed = WithTrashed
	return c
}

// SelectFunc registers a raw bun modifier applied to read queries only.
func (b *Builder) SelectFunc(fn func(*bun.SelectQuery) *bun.SelectQuery) *Builder {
	if fn == nil {
		return b
	}
	c := b.clone()
	c.selects = append(c.selects, fn)
	return c
}

// Merge appends the state of other after the state of b.
func (b *Builder) Merge(other *Builder) *Builder {
	if other == nil {
		return b
	}
	c := b.clone()
	c.conds = append(c.conds, other.conds...)
	c.orders = append(c.orders, other.orders...)
	c.relations = append(c.relations, other.relations...)
	c.columns = append(c.columns, other.columns...)
	c.has = append(c.has, other.has...)
	c.counts = append(c.counts, other.counts...)
	c.selects = append(c.selects, other.selects...)
	if other.limit != 0 {
		c.limit = other.limit
	}
	if other.offset != 0 {
		c.offset = other.offset
	}
	if other.trashed != WithoutTrashed {
		c.trashed = other.trashed
	}
	if c.err == nil {
		c.err = other.err
	}
	return c
}

func (b *Builder) String() string {
	var sb strings.Builder
	sb.WriteString("query.Builder{")
	for i, cond := range b.conds {
		if i > 0 {
			sb.WriteString(" AND ")
		}
		expr, args := cond.render("")
		sb.WriteString(fmt.Sprintf("%s %v", expr, args))
	}
	sb.WriteString("}")
	return sb.String()
}
