package migrations

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "migrate.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db
}

func TestMigratorLifecycle(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	m := NewMigrator(db)

	require.NoError(t, m.Migrate(ctx))
	// Applying twice is a no-op.
	require.NoError(t, m.Migrate(ctx))

	statuses, err := m.Status(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, len(schema))
	for _, status := range statuses {
		assert.True(t, status.Applied, "migration %d should be applied", status.Version)
		assert.False(t, status.AppliedAt.IsZero())
	}
	assert.True(t, db.Migrator().HasIndex("transfer_entries", "idx_transfer_entries_outcome"))

	// The index goes first, then the history tables.
	require.NoError(t, m.Rollback(ctx))
	assert.False(t, db.Migrator().HasIndex("transfer_entries", "idx_transfer_entries_outcome"))
	assert.True(t, db.Migrator().HasTable("transfer_records"))

	require.NoError(t, m.Rollback(ctx))
	assert.False(t, db.Migrator().HasTable("transfer_records"))
	assert.True(t, db.Migrator().HasTable("config_sets"))

	statuses, err = m.Status(ctx)
	require.NoError(t, err)
	assert.True(t, statuses[0].Applied)
	assert.False(t, statuses[1].Applied)
	assert.False(t, statuses[2].Applied)

	// Re-applying restores what was rolled back.
	require.NoError(t, m.Migrate(ctx))
	assert.True(t, db.Migrator().HasTable("transfer_records"))
}

func TestMigratorRejectsNewerSchema(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, NewMigrator(db).Migrate(ctx))

	older := newMigrator(db, schema[:1])
	err := older.Migrate(ctx)
	assert.ErrorIs(t, err, ErrSchemaTooNew)
}

func TestMigratorSortsByVersion(t *testing.T) {
	m := newMigrator(nil, []Migration{schema[2], schema[0], schema[1]})
	for i, migration := range m.migrations {
		assert.Equal(t, i+1, migration.Version)
	}
}

func TestRollbackWithoutMigrations(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	m := NewMigrator(db)

	// Status creates the version table on an empty database.
	statuses, err := m.Status(ctx)
	require.NoError(t, err)
	for _, status := range statuses {
		assert.False(t, status.Applied)
	}
	assert.Error(t, m.Rollback(ctx))
}
