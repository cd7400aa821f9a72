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
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tomoncle/bunrepo/query"
	"github.com/tomoncle/bunrepo/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID    int64  `bun:"id,pk,autoincrement"`
	Name  string `bun:"name" validate:"required"`
	Email string `bun:"email"`
	Age   int    `bun:"age"`
}

type Post struct {
	bun.BaseModel `bun:"table:posts,alias:p"`

	ID     int64  `bun:"id,pk,autoincrement"`
	Title  string `bun:"title"`
	UserID int64  `bun:"user_id"`
	Author *User  `bun:"rel:belongs-to,join:user_id=id"`
	SoftDeletes
}

// idCriterion limits a query to one primary key.
type idCriterion struct {
	ID int64
}

func (c idCriterion) Apply(q *query.Builder, _ Inspector) *query.Builder {
	return q.Where("id", "=", c.ID)
}

type observation struct {
	model, operation string
	err              error
}

type fakeCollector struct {
	observed []observation
}

func (f *fakeCollector) Observe(model, operation string, _ time.Duration, err error) {
	f.observed = append(f.observed, observation{model, operation, err})
}

var dbSeq atomic.Int64

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:repo%d?mode=memory&cache=shared", dbSeq.Add(1))
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	for _, model := range []interface{}{(*User)(nil), (*Post)(nil)} {
		_, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx)
		require.NoError(t, err)
	}
	return db
}

func newUserRepo(t *testing.T, db *bun.DB, opts ...Option[User]) *Repository[User] {
	t.Helper()
	repo, err := New[User](db, opts...)
	require.NoError(t, err)
	return repo
}

// seedUsers inserts n users with ids 1..n.
func seedUsers(t *testing.T, db *bun.DB, n int) {
	t.Helper()
	repo := newUserRepo(t, db)
	for i := 1; i <= n; i++ {
		_, err := repo.Create(context.Background(), types.Attributes{
			"name":  fmt.Sprintf("user%d", i),
			"email": fmt.Sprintf("user%d@example.com", i),
			"age":   20 + i,
		})
		require.NoError(t, err)
	}
}

func ids(users []*User) []int64 {
	out := make([]int64, 0, len(users))
	for _, u := range users {
		out = append(out, u.ID)
	}
	return out
}
