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
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/uptrace/bun"
)

// Migration is an applied migration record.
type Migration struct {
	bun.BaseModel `bun:"table:bunrepo_migrations"`

	Version     string    `bun:"version,pk"`
	Name        string    `bun:"name"`
	AppliedAt   time.Time `bun:"applied_at"`
	Description string    `bun:"description"`
}

// MigrationFunc is a migration step executed within a transaction.
type MigrationFunc func(ctx context.Context, db bun.IDB) error

// MigrationItem describes a single migration version.
type MigrationItem struct {
	Version     string
	Name        string
	Description string
	Up          MigrationFunc
}

var (
	migrationsMu sync.RWMutex
	migrations   []MigrationItem
)

// RegisterMigration adds item to the migrations run after the registered
// model tables are created. Versions must be unique and sort after "001".
func RegisterMigration(item MigrationItem) {
	migrationsMu.Lock()
	defer migrationsMu.Unlock()
	migrations = append(migrations, item)
}

// MigrationManager applies migrations once each, recording them in the
// bunrepo_migrations table.
type MigrationManager struct {
	db     *bun.DB
	logger Logger
	silent bool
}

func NewMigrationManager(db *bun.DB, logger Logger) *MigrationManager {
	if logger == nil {
		logger = GetLogger()
	}
	return &MigrationManager{db: db, logger: logger, silent: true}
}

// SetSilent controls whether the color query hook is muted while
// migrations run. It is muted by default.
func (mm *MigrationManager) SetSilent(silent bool) {
	mm.silent = silent
}

// RunMigrations creates the tracking table and runs every pending
// migration in ascending version order.
func (mm *MigrationManager) RunMigrations(ctx context.Context) error {
	if mm.db == nil {
		return fmt.Errorf("database not initialized")
	}
	if mm.silent {
		SetQueryLogSilent(true)
		defer SetQueryLogSilent(false)
	}

	if _, err := mm.db.NewCreateTable().Model((*Migration)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	items := mm.allMigrations()
	sort.SliceStable(items, func(i, j int) bool { return items[i].Version < items[j].Version })
	for _, item := range items {
		if err := mm.runMigration(ctx, item); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", item.Version, err)
		}
	}
	mm.logger.Info("Database migrations completed", "count", len(items))
	return nil
}

func (mm *MigrationManager) allMigrations() []MigrationItem {
	migrationsMu.RLock()
	defer migrationsMu.RUnlock()
	items := []MigrationItem{{
		Version:     "001",
		Name:        "create_model_tables",
		Description: "Create tables of the registered models",
		Up:          createModelTables,
	}}
	return append(items, migrations...)
}

func (mm *MigrationManager) runMigration(ctx context.Context, item MigrationItem) error {
	if item.Up == nil {
		return fmt.Errorf("migration %s has no up step", item.Version)
	}
	exists, err := mm.db.NewSelect().
		Model((*Migration)(nil)).
		Where("version = ?", item.Version).
		Exists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	return mm.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := item.Up(ctx, tx); err != nil {
			return err
		}
		_, err := tx.NewInsert().Model(&Migration{
			Version:     item.Version,
			Name:        item.Name,
			AppliedAt:   time.Now(),
			Description: item.Description,
		}).Exec(ctx)
		if err != nil {
			return err
		}
		mm.logger.Info("Migration executed", "version", item.Version, "name", item.Name)
		return nil
	})
}

// createModelTables creates a table per registered model; existing tables
// are left alone. Later models register through RegisterModel and need a
// migration of their own once "001" has been applied.
func createModelTables(ctx context.Context, db bun.IDB) error {
	for _, model := range RegisteredModels() {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("failed to create table %T: %w", model, err)
		}
	}
	return nil
}

// GetAppliedMigrations returns the applied migrations ordered by version.
func (mm *MigrationManager) GetAppliedMigrations(ctx context.Context) ([]Migration, error) {
	var applied []Migration
	err := mm.db.NewSelect().Model(&applied).Order("version ASC").Scan(ctx)
	return applied, err
}
