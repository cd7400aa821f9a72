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

package database

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

type widget struct {
	bun.BaseModel `bun:"table:widgets,alias:w"`

	ID   int64  `bun:"id,pk,autoincrement"`
	Name string `bun:"name,notnull,unique"`
}

type recordingLogger struct {
	warnings []string
}

func (l *recordingLogger) SetLevel(LogLevel) {}
func (l *recordingLogger) Debug(string, ...interface{}) {}
func (l *recordingLogger) Info(string, ...interface{}) {}
func (l *recordingLogger) Error(string, ...interface{}) {}
func (l *recordingLogger) Warn(msg string, _ ...interface{}) { l.warnings = append(l.warnings, msg) }

var dbSeq atomic.Int64

func sqliteConfig() *ConnectionConfig {
	cfg := DefaultConnectionConfig()
	cfg.Type = "sqlite"
	cfg.DBName = fmt.Sprintf("file:database%d?mode=memory&cache=shared", dbSeq.Add(1))
	cfg.MaxOpenConns = 1
	cfg.HealthCheckInterval = 0
	cfg.SlowQueryTime = 0
	return cfg
}

func TestDSN(t *testing.T) {
	cfg := &ConnectionConfig{Type: "postgres", Username: "u", Password: "p", Host: "h", Port: 5432, DBName: "d", ConnectTimeout: 3 * time.Second}
	driver, dsn, err := cfg.DSN()
	require.NoError(t, err)
	assert.Equal(t, "postgres", driver)
	assert.Equal(t, "postgres://u:p@h:5432/d?sslmode=disable&connect_timeout=3", dsn)

	cfg = &ConnectionConfig{Type: "mysql", Username: "u", Password: "p", Host: "h", Port: 3306, DBName: "d"}
	driver, dsn, err = cfg.DSN()
	require.NoError(t, err)
	assert.Equal(t, "mysql", driver)
	assert.Contains(t, dsn, "u:p@tcp(h:3306)/d?charset=utf8mb4")

	cfg = &ConnectionConfig{Type: "sqlite", DBName: "app"}
	_, dsn, err = cfg.DSN()
	require.NoError(t, err)
	assert.Equal(t, "app.db", dsn)

	cfg.DBName = ":memory:"
	_, dsn, _ = cfg.DSN()
	assert.Equal(t, ":memory:", dsn)

	_, _, err = (&ConnectionConfig{Type: "oracle"}).DSN()
	require.Error(t, err)
}

func TestManagerLifecycle(t *testing.T) {
	ctx := context.Background()
	m := NewDatabaseManager(sqliteConfig())
	require.Error(t, m.Ping(ctx))
	assert.False(t, m.HealthCheck(ctx).Healthy)

	require.NoError(t, m.Connect(ctx))
	require.NoError(t, m.Connect(ctx))
	require.NotNil(t, m.GetDB())
	require.NotNil(t, m.GetSQLDB())
	require.NoError(t, m.Ping(ctx))

	status := m.HealthCheck(ctx)
	assert.True(t, status.Healthy)
	assert.True(t, status.Connected)
	assert.Equal(t, 1, status.MaxOpenConns)
	assert.Equal(t, 1, m.GetStats().MaxOpenConns)

	require.NoError(t, m.Reconnect(ctx))
	require.NoError(t, m.Ping(ctx))

	require.NoError(t, m.Disconnect())
	assert.Nil(t, m.GetDB())
	assert.Equal(t, &DBStats{}, m.GetStats())
	require.NoError(t, m.Disconnect())
}

func TestFactoryRejectsUnknownType(t *testing.T) {
	_, err := NewDatabaseFactory().CreateFromConfig(&ConnectionConfig{Type: "oracle"})
	require.ErrorContains(t, err, "unsupported database type")

	_, err = NewDatabaseFactory().CreateFromConfig(nil)
	require.Error(t, err)

	f := NewDatabaseFactory()
	assert.Nil(t, f.GetDB())
	assert.False(t, f.GetHealthStatus(context.Background()).Healthy)
	require.Error(t, f.InitializeDatabase(context.Background(), false))
}

func TestFactoryEnvOverrides(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("DB_MAX_OPEN_CONNS", "7")
	t.Setenv("DB_SLOW_QUERY_TIME", "150ms")
	t.Setenv("DB_ENABLE_QUERY_LOG", "true")

	cfg := &ConnectionConfig{Type: "postgres", Host: "localhost", Port: 5432}
	_, err := NewDatabaseFactory().CreateFromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, "db.internal", cfg.Host)
	assert.Equal(t, 6543, cfg.Port)
	assert.Equal(t, 7, cfg.MaxOpenConns)
	assert.Equal(t, 150*time.Millisecond, cfg.SlowQueryTime)
	assert.True(t, cfg.EnableQueryLog)
}

func TestMigrationsCreateRegisteredTablesOnce(t *testing.T) {
	ctx := context.Background()
	RegisterModel((*widget)(nil), 10)

	f := NewDatabaseFactory()
	_, err := f.CreateFromConfig(sqliteConfig())
	require.NoError(t, err)
	require.NoError(t, f.InitializeDatabase(ctx, true))
	defer func() { _ = f.Close() }()

	db := f.GetDB()
	_, err = db.NewInsert().Model(&widget{Name: "a"}).Exec(ctx)
	require.NoError(t, err)

	mm := NewMigrationManager(db, nil)
	require.NoError(t, mm.RunMigrations(ctx))
	applied, err := mm.GetAppliedMigrations(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, applied)
	assert.Equal(t, "001", applied[0].Version)

	n, err := db.NewSelect().Model((*widget)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = db.NewInsert().Model(&widget{Name: "a"}).Exec(ctx)
	require.Error(t, err)
	assert.True(t, IsDuplicateKey(err))
}

func TestModelRegistryOrder(t *testing.T) {
	r := &modelRegistry{}
	r.register("c", 2)
	r.register("a", 1)
	r.register("b", 1)
	assert.Equal(t, []interface{}{"a", "b", "c"}, r.instances())
}

func TestIsSqlError(t *testing.T) {
	is, kind := IsSqlError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})
	assert.True(t, is)
	assert.Equal(t, DuplicateKeyErr, kind)

	is, kind = IsSqlError(fmt.Errorf("insert: %w", &pq.Error{Code: "23503"}))
	assert.True(t, is)
	assert.Equal(t, ForeignKeyViolationErr, kind)

	is, kind = IsSqlError(errors.New("SQL logic error: no such table: users (1)"))
	assert.True(t, is)
	assert.Equal(t, NoTableErr, kind)
	assert.Equal(t, "no table", kind.String())

	is, _ = IsSqlError(errors.New("boom"))
	assert.False(t, is)
	is, _ = IsSqlError(nil)
	assert.False(t, is)
}

func TestQueryHookPrintsFailures(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	cfg := sqliteConfig()
	m := NewDatabaseManager(cfg)
	require.NoError(t, m.Connect(ctx))
	defer func() { _ = m.Disconnect() }()

	db := m.GetDB()
	db.AddQueryHook(NewQueryHook(WithQueryHookEnv(""), WithQueryHookWriter(&buf)))

	_, err := db.NewSelect().ColumnExpr("1").Exec(ctx)
	require.NoError(t, err)
	assert.Empty(t, buf.String())

	_, err = db.NewSelect().Table("missing_table").Exec(ctx)
	require.Error(t, err)
	assert.Contains(t, buf.String(), "missing_table")

	buf.Reset()
	SetQueryLogSilent(true)
	_, _ = db.NewSelect().Table("missing_table").Exec(ctx)
	SetQueryLogSilent(false)
	assert.Empty(t, buf.String())
}

func TestSlowQueryHook(t *testing.T) {
	logger := &recordingLogger{}
	h := NewSlowQueryHook(time.Millisecond, logger)

	h.AfterQuery(context.Background(), &bun.QueryEvent{StartTime: time.Now().Add(-time.Second), Query: "SELECT 1"})
	h.AfterQuery(context.Background(), &bun.QueryEvent{StartTime: time.Now()})
	h.AfterQuery(context.Background(), &bun.QueryEvent{StartTime: time.Now().Add(-time.Second), Err: errors.New("x")})
	assert.Len(t, logger.warnings, 1)
}

func TestInitDBGlobals(t *testing.T) {
	ctx := context.Background()
	assert.False(t, GetHealthStatus(ctx).Healthy)

	db, err := InitDB(ctx, &Config{ConnectionConfig: *sqliteConfig()})
	require.NoError(t, err)
	defer func() { _ = CloseDB() }()

	assert.Same(t, db, GetDB())
	assert.True(t, GetHealthStatus(ctx).Healthy)
	assert.Equal(t, 1, GetDatabaseStats().MaxOpenConns)
	require.NoError(t, RunMigrations(ctx))

	require.NoError(t, CloseDB())
	assert.Nil(t, GetDB())
	require.Error(t, RunMigrations(ctx))
}

func TestDefaultLogger(t *testing.T) {
	l := NewNamedLogger("DB-TEST")
	l.SetLevel(LogLevelError)
	l.Info("ignored", "k", "v", "dangling")
	assert.Equal(t, "WARN", LogLevelWarn.String())
	assert.NotNil(t, GetLogger())
}
