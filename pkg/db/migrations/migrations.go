package migrations

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/mwantia/goremote/pkg/db/models"
	"gorm.io/gorm"
)

// ErrSchemaTooNew is returned when the database carries schema versions this
// build does not know, e.g. after a downgrade.
var ErrSchemaTooNew = errors.New("database schema is newer than this build")

// Migration is one versioned schema step. Down reverts Up.
type Migration struct {
	Version     int
	Description string
	Up          func(*gorm.DB) error
	Down        func(*gorm.DB) error
}

// MigrationStatus reports whether a migration has been applied, and when.
type MigrationStatus struct {
	Version     int
	Description string
	Applied     bool
	AppliedAt   time.Time
}

type schemaVersion struct {
	Version     int    `gorm:"primaryKey;autoIncrement:false"`
	Description string `gorm:"type:text"`
	AppliedAt   time.Time
}

func (schemaVersion) TableName() string {
	return "schema_versions"
}

// Migrator applies the goremote schema in version order.
type Migrator struct {
	db         *gorm.DB
	migrations []Migration
}

func NewMigrator(db *gorm.DB) *Migrator {
	return newMigrator(db, schema)
}

func newMigrator(db *gorm.DB, migrations []Migration) *Migrator {
	sorted := append([]Migration(nil), migrations...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Version < sorted[j].Version
	})
	return &Migrator{db: db, migrations: sorted}
}

// Migrate applies every pending migration, each in its own transaction.
func (m *Migrator) Migrate(ctx context.Context) error {
	applied, err := m.applied(ctx)
	if err != nil {
		return err
	}

	for version := range applied {
		if m.find(version) == nil {
			return fmt.Errorf("%w: unknown version %d", ErrSchemaTooNew, version)
		}
	}

	for _, migration := range m.migrations {
		if _, ok := applied[migration.Version]; ok {
			continue
		}
		if err := m.apply(ctx, migration); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", migration.Version, migration.Description, err)
		}
	}
	return nil
}

// Rollback reverts the most recently applied migration.
func (m *Migrator) Rollback(ctx context.Context) error {
	var last schemaVersion
	if err := m.db.WithContext(ctx).Order("version DESC").First(&last).Error; err != nil {
		return fmt.Errorf("no migrations to rollback: %w", err)
	}

	migration := m.find(last.Version)
	if migration == nil {
		return fmt.Errorf("%w: unknown version %d", ErrSchemaTooNew, last.Version)
	}

	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := migration.Down(tx); err != nil {
			return fmt.Errorf("rollback of %d failed: %w", last.Version, err)
		}
		return tx.Delete(&last).Error
	})
}

func (m *Migrator) Status(ctx context.Context) ([]MigrationStatus, error) {
	applied, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}

	statuses := make([]MigrationStatus, 0, len(m.migrations))
	for _, migration := range m.migrations {
		status := MigrationStatus{
			Version:     migration.Version,
			Description: migration.Description,
		}
		if row, ok := applied[migration.Version]; ok {
			status.Applied = true
			status.AppliedAt = row.AppliedAt
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func (m *Migrator) applied(ctx context.Context) (map[int]schemaVersion, error) {
	if err := m.db.WithContext(ctx).AutoMigrate(&schemaVersion{}); err != nil {
		return nil, fmt.Errorf("failed to create schema version table: %w", err)
	}

	var rows []schemaVersion
	if err := m.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query schema versions: %w", err)
	}

	applied := make(map[int]schemaVersion, len(rows))
	for _, row := range rows {
		applied[row.Version] = row
	}
	return applied, nil
}

func (m *Migrator) apply(ctx context.Context, migration Migration) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := migration.Up(tx); err != nil {
			return err
		}
		return tx.Create(&schemaVersion{
			Version:     migration.Version,
			Description: migration.Description,
			AppliedAt:   time.Now(),
		}).Error
	})
}

func (m *Migrator) find(version int) *Migration {
	for i := range m.migrations {
		if m.migrations[i].Version == version {
			return &m.migrations[i]
		}
	}
	return nil
}

var schema = []Migration{
	{
		Version:     1,
		Description: "Connection profiles",
		Up: func(db *gorm.DB) error {
			return db.AutoMigrate(&models.ConfigSet{}, &models.ConfigProperty{})
		},
		Down: func(db *gorm.DB) error {
			return db.Migrator().DropTable(&models.ConfigProperty{}, &models.ConfigSet{})
		},
	},
	{
		Version:     2,
		Description: "Transfer history",
		Up: func(db *gorm.DB) error {
			return db.AutoMigrate(&models.TransferRecord{}, &models.TransferEntry{})
		},
		Down: func(db *gorm.DB) error {
			return db.Migrator().DropTable(&models.TransferEntry{}, &models.TransferRecord{})
		},
	},
	{
		// transfer entries are read per record ordered by outcome
		Version:     3,
		Description: "Transfer entry outcome index",
		Up: func(db *gorm.DB) error {
			return db.Exec("CREATE INDEX IF NOT EXISTS idx_transfer_entries_outcome ON transfer_entries (record_id, outcome)").Error
		},
		Down: func(db *gorm.DB) error {
			return db.Exec("DROP INDEX IF EXISTS idx_transfer_entries_outcome").Error
		},
	},
}
