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

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
)

// relationFilter keeps rows whose number of related rows satisfies op count.
type relationFilter struct {
	relation  string
	op        string
	count     int
	constrain func(*Builder) *Builder
}

// Has keeps rows with op count related rows, e.g. Has("Posts", ">=", 2).
// Relations are named as for With: the Go field name or its bun name.
func (b *Builder) Has(relation, op string, count int) *Builder {
	return b.addRelationFilter(relationFilter{relation: relation, op: op, count: count})
}

// WhereHas keeps rows with at least one related row matching the
// conditions fn adds. Plain field names in fn refer to the related table.
func (b *Builder) WhereHas(relation string, fn func(*Builder) *Builder) *Builder {
	return b.addRelationFilter(relationFilter{relation: relation, op: ">=", count: 1, constrain: fn})
}

// DoesntHave keeps rows without related rows.
func (b *Builder) DoesntHave(relation string) *Builder {
	return b.Has(relation, "<", 1)
}

// WithCount selects the number of related rows as <relation>_count for
// each relation. The model scans it through a scanonly field:
//
//	PostsCount int `bun:"posts_count,scanonly"`
func (b *Builder) WithCount(relations ...string) *Builder {
	c := b.clone()
	c.counts = append(c.counts, relations...)
	return c
}

func (b *Builder) addRelationFilter(f relationFilter) *Builder {
	c := b.clone()
	if c.err == nil {
		op, ok := NormalizeOperator(f.op)
		switch {
		case f.relation == "":
			c.err = fmt.Errorf("%w: empty relation", ErrInvalidCondition)
		case !ok || op == "LIKE" || op == "NOT LIKE" || op == "ILIKE" || op == "NOT ILIKE":
			c.err = fmt.Errorf("%w: %q on relation count", ErrInvalidOperator, f.op)
		case f.count < 0:
			c.err = fmt.Errorf("%w: negative relation count %d", ErrInvalidCondition, f.count)
		}
	}
	c.has = append(c.has, f)
	return c
}

func (b *Builder) applyRelations(q *bun.SelectQuery) *bun.SelectQuery {
	if len(b.has) == 0 && len(b.counts) == 0 {
		return q
	}
	tm, ok := q.GetModel().(bun.TableModel)
	if !ok {
		return q.Err(fmt.Errorf("%w: relation filters need a model", ErrInvalidCondition))
	}
	table := tm.Table()

	for _, f := range b.has {
		rel, err := LookupRelation(table, f.relation)
		if err != nil {
			return q.Err(err)
		}
		sub, err := relatedQuery(q.DB(), table, rel, f.constrain)
		if err != nil {
			return q.Err(err)
		}
		op, _ := NormalizeOperator(f.op)
		switch {
		case op == ">=" && f.count == 1:
			q = q.Where("EXISTS (?)", sub.ColumnExpr("1"))
		case op == "<" && f.count == 1:
			q = q.Where("NOT EXISTS (?)", sub.ColumnExpr("1"))
		default:
			q = q.Where("(?) "+op+" ?", sub.ColumnExpr("count(*)"), f.count)
		}
	}

	if len(b.counts) > 0 && len(b.columns) == 0 {
		q = q.ColumnExpr("?TableAlias.*")
	}
	for _, name := range b.counts {
		rel, err := LookupRelation(table, name)
		if err != nil {
			return q.Err(err)
		}
		sub, _ := relatedQuery(q.DB(), table, rel, nil)
		q = q.ColumnExpr("(?) AS ?", sub.ColumnExpr("count(*)"), bun.Ident(rel.Field.Name+"_count"))
	}
	return q
}

// LookupRelation finds a relation of table by Go field name or bun name.
func LookupRelation(table *schema.Table, name string) (*schema.Relation, error) {
	if rel, ok := table.Relations[name]; ok {
		return rel, nil
	}
	for _, rel := range table.Relations {
		if rel.Field.Name == name {
			return rel, nil
		}
	}
	return nil, fmt.Errorf("%w: %s has no relation %q", ErrUnknownRelation, table.TypeName, name)
}

// relatedQuery selects the rows of relation that belong to the current
// row of base. Soft deleted related rows are left out.
func relatedQuery(db *bun.DB, base *schema.Table, rel *schema.Relation, constrain func(*Builder) *Builder) (*bun.SelectQuery, error) {
	join := rel.JoinTable
	alias := join.SQLAlias
	if alias == base.SQLAlias {
		alias = schema.Safe(db.Formatter().AppendIdent(nil, join.ModelName+"_related"))
	}

	sub := db.NewSelect().TableExpr("? AS ?", join.SQLName, alias)
	if rel.Type == schema.ManyToManyRelation {
		m2m := rel.M2MTable
		sub = sub.Join("JOIN ? AS ?", m2m.SQLName, m2m.SQLAlias)
		for i, pk := range rel.JoinPKs {
			sub = sub.JoinOn("?.? = ?.?", m2m.SQLAlias, rel.M2MJoinPKs[i].SQLName, alias, pk.SQLName)
		}
		for i, pk := range rel.BasePKs {
			sub = sub.Where("?.? = ?.?", m2m.SQLAlias, rel.M2MBasePKs[i].SQLName, base.SQLAlias, pk.SQLName)
		}
	} else {
		for i, pk := range rel.JoinPKs {
			sub = sub.Where("?.? = ?.?", alias, pk.SQLName, base.SQLAlias, rel.BasePKs[i].SQLName)
		}
		if rel.PolymorphicField != nil {
			sub = sub.Where("?.? = ?", alias, rel.PolymorphicField.SQLName, rel.PolymorphicValue)
		}
	}
	if join.SoftDeleteField != nil {
		sub = sub.Where("?.? IS NULL", alias, join.SoftDeleteField.SQLName)
	}

	if constrain != nil {
		cb := constrain(New())
		if cb != nil {
			if err := cb.Err(); err != nil {
				return nil, err
			}
			sub = applyWhere(sub, cb.conds, string(alias))
		}
	}
	return sub, nil
}
