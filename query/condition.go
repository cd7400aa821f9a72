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
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/uptrace/bun"
)

var (
	ErrInvalidOperator  = errors.New("query: invalid operator")
	ErrInvalidCondition = errors.New("query: invalid condition")
	ErrUnknownRelation  = errors.New("query: unknown relation")
)

// ConditionKind tells how a Condition is rendered.
type ConditionKind int

const (
	KindCompare ConditionKind = iota
	KindIn
	KindNotIn
	KindBetween
	KindNull
	KindNotNull
	KindRaw
	KindGroup
)

// Condition is a single predicate of the WHERE clause.
type Condition struct {
	Kind     ConditionKind
	Field    string
	Operator string
	Value    interface{}
	Values   []interface{}
	Expr     string
	Args     []interface{}
	Sep      string
	Group    []Condition
}

// Conditions is an ordered list of predicates joined with AND.
type Conditions []Condition

var operators = map[string]string{
	"=":         "=",
	"!=":        "!=",
	"<>":        "<>",
	"<":         "<",
	"<=":        "<=",
	">":         ">",
	">=":        ">=",
	"like":      "LIKE",
	"not like":  "NOT LIKE",
	"ilike":     "ILIKE",
	"not ilike": "NOT ILIKE",
}

// NormalizeOperator returns the SQL spelling of op, or false if op is not supported.
func NormalizeOperator(op string) (string, bool) {
	sqlOp, ok := operators[strings.ToLower(strings.Join(strings.Fields(op), " "))]
	return sqlOp, ok
}

// Compare builds a field/operator/value predicate.
func Compare(field, op string, value interface{}) Condition {
	return Condition{Kind: KindCompare, Field: field, Operator: op, Value: value}
}

// Eq builds an equality predicate.
func Eq(field string, value interface{}) Condition {
	return Compare(field, "=", value)
}

func In(field string, values []interface{}) Condition {
	return Condition{Kind: KindIn, Field: field, Values: values}
}

func NotIn(field string, values []interface{}) Condition {
	return Condition{Kind: KindNotIn, Field: field, Values: values}
}

func Between(field string, low, high interface{}) Condition {
	return Condition{Kind: KindBetween, Field: field, Values: []interface{}{low, high}}
}

func Null(field string) Condition {
	return Condition{Kind: KindNull, Field: field}
}

func NotNull(field string) Condition {
	return Condition{Kind: KindNotNull, Field: field}
}

// Raw builds a predicate from a bun formatted expression, e.g. "lower(?) = ?".
func Raw(expr string, args ...interface{}) Condition {
	return Condition{Kind: KindRaw, Expr: expr, Args: args}
}

// Group joins the given predicates with sep ("AND" or "OR") inside parentheses.
func Group(sep string, conds ...Condition) Condition {
	return Condition{Kind: KindGroup, Sep: sep, Group: conds}
}

// FromMap converts structured conditions into Conditions. A scalar value
// means equality; a three element []interface{}{field, operator, value}
// carries an explicit operator. Keys are visited in sorted order.
func FromMap(where map[string]interface{}) (Conditions, error) {
	keys := make([]string, 0, len(where))
	for k := range where {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	conds := make(Conditions, 0, len(keys))
	for _, key := range keys {
		switch v := where[key].(type) {
		case []interface{}:
			if len(v) != 3 {
				return nil, fmt.Errorf("%w: %q expects [field, operator, value], got %d elements", ErrInvalidCondition, key, len(v))
			}
			field, ok := v[0].(string)
			if !ok {
				return nil, fmt.Errorf("%w: %q field must be a string", ErrInvalidCondition, key)
			}
			op, ok := v[1].(string)
			if !ok {
				return nil, fmt.Errorf("%w: %q operator must be a string", ErrInvalidCondition, key)
			}
			conds = append(conds, Compare(field, op, v[2]))
		default:
			conds = append(conds, Eq(key, v))
		}
	}
	return conds, nil
}

func (c Condition) validate() error {
	switch c.Kind {
	case KindCompare:
		if c.Field == "" {
			return fmt.Errorf("%w: empty field", ErrInvalidCondition)
		}
		if _, ok := NormalizeOperator(c.Operator); !ok {
			return fmt.Errorf("%w: %q", ErrInvalidOperator, c.Operator)
		}
	case KindIn, KindNotIn, KindNull, KindNotNull:
		if c.Field == "" {
			return fmt.Errorf("%w: empty field", ErrInvalidCondition)
		}
	case KindBetween:
		if c.Field == "" || len(c.Values) != 2 {
			return fmt.Errorf("%w: between expects a field and two bounds", ErrInvalidCondition)
		}
	case KindRaw:
		if strings.TrimSpace(c.Expr) == "" {
			return fmt.Errorf("%w: empty expression", ErrInvalidCondition)
		}
	case KindGroup:
		sep := strings.ToUpper(strings.TrimSpace(c.Sep))
		if sep != "AND" && sep != "OR" {
			return fmt.Errorf("%w: group separator %q", ErrInvalidCondition, c.Sep)
		}
		for _, sub := range c.Group {
			if err := sub.validate(); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("%w: unknown kind %d", ErrInvalidCondition, c.Kind)
	}
	return nil
}

// render returns a bun formatted expression and its arguments. Plain
// field names are prefixed with qualifier unless it is empty.
func (c Condition) render(qualifier string) (string, []interface{}) {
	ident := func(field string) (string, interface{}) {
		if qualifier != "" && !strings.Contains(field, ".") {
			return qualifier + ".?", bun.Ident(field)
		}
		return "?", bun.Ident(field)
	}

	switch c.Kind {
	case KindCompare:
		op, _ := NormalizeOperator(c.Operator)
		placeholder, id := ident(c.Field)
		if c.Value == nil && (op == "=" || op == "!=" || op == "<>") {
			if op == "=" {
				return placeholder + " IS NULL", []interface{}{id}
			}
			return placeholder + " IS NOT NULL", []interface{}{id}
		}
		return placeholder + " " + op + " ?", []interface{}{id, c.Value}
	case KindIn, KindNotIn:
		placeholder, id := ident(c.Field)
		if len(c.Values) == 0 {
			// IN () is not valid SQL on every dialect.
			if c.Kind == KindIn {
				return "1 = 0", nil
			}
			return "1 = 1", nil
		}
		op := " IN (?)"
		if c.Kind == KindNotIn {
			op = " NOT IN (?)"
		}
		return placeholder + op, []interface{}{id, bun.In(c.Values)}
	case KindBetween:
		placeholder, id := ident(c.Field)
		return placeholder + " BETWEEN ? AND ?", []interface{}{id, c.Values[0], c.Values[1]}
	case KindNull:
		placeholder, id := ident(c.Field)
		return placeholder + " IS NULL", []interface{}{id}
	case KindNotNull:
		placeholder, id := ident(c.Field)
		return placeholder + " IS NOT NULL", []interface{}{id}
	case KindRaw:
		return c.Expr, c.Args
	case KindGroup:
		if len(c.Group) == 0 {
			return "1 = 1", nil
		}
		sep := " " + strings.ToUpper(strings.TrimSpace(c.Sep)) + " "
		parts := make([]string, 0, len(c.Group))
		var args []interface{}
		for _, sub := range c.Group {
			expr, subArgs := sub.render(qualifier)
			parts = append(parts, "("+expr+")")
			args = append(args, subArgs...)
		}
		return "(" + strings.Join(parts, sep) + ")", args
	}
	return "", nil
}
