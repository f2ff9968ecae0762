package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/mwantia/goremote/pkg/db/migrations"
	"github.com/mwantia/goremote/pkg/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SQLiteStore implements MetadataStore using SQLite
type SQLiteStore struct {
	db   *gorm.DB
	path string
}

// DB returns the underlying GORM database instance
func (s *SQLiteStore) DB() *gorm.DB {
	return s.db
}

// SQLiteConfig holds SQLite-specific configuration
type SQLiteConfig struct {
	Path         string
	MaxOpenConns int
	LogLevel     logger.LogLevel
}

// NewSQLiteStore creates a new SQLite-backed metadata store
func NewSQLiteStore(cfg SQLiteConfig) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	// Default to silent logging
	if cfg.LogLevel == 0 {
		cfg.LogLevel = logger.Silent
	}

	db, err := gorm.Open(sqlite.Open(cfg.Path), &gorm.Config{
		Logger: logger.Default.LogMode(cfg.LogLevel),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	return &SQLiteStore{
		db:   db,
		path: cfg.Path,
	}, nil
}

// Connect initializes the database connection
func (s *SQLiteStore) Connect(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxOpenConns(1) // SQLite only supports 1 writer
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return sqlDB.PingContext(ctx)
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	return sqlDB.Close()
}

// Migrate runs database migrations
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	return migrations.NewMigrator(s.db).Migrate(ctx)
}

// Health checks database connectivity
func (s *SQLiteStore) Health(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Configuration operations

func (s *SQLiteStore) ListConfigSets(ctx context.Context) ([]models.ConfigSet, error) {
	var sets []models.ConfigSet
	err := s.db.WithContext(ctx).Preload("Properties").Order("name").Find(&sets).Error
	return sets, err
}

func (s *SQLiteStore) GetConfigSet(ctx context.Context, name string) (*models.ConfigSet, error) {
	var set models.ConfigSet
	err := s.db.WithContext(ctx).Preload("Properties").Where("name = ?", name).First(&set).Error
	if err != nil {
		return nil, err
	}
	return &set, nil
}

// SaveConfigSet creates or updates the set by name and replaces all of its properties.
func (s *SQLiteStore) SaveConfigSet(ctx context.Context, set *models.ConfigSet) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.ConfigSet
		err := tx.Where("name = ?", set.Name).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			set.ID = 0
		case err != nil:
			return err
		default:
			set.ID = existing.ID
			set.CreatedAt = existing.CreatedAt
		}

		properties := set.Properties
		set.Properties = nil
		if err := tx.Save(set).Error; err != nil {
			return err
		}

		if err := tx.Where("config_set_id = ?", set.ID).Delete(&models.ConfigProperty{}).Error; err != nil {
			return err
		}
		for i := range properties {
			properties[i].ID = 0
			properties[i].ConfigSetID = set.ID
		}
		if len(properties) > 0 {
			if err := tx.Create(&properties).Error; err != nil {
				return err
			}
		}
		set.Properties = properties
		return nil
	})
}

// DeleteConfigSet purges the set and its properties.
func (s *SQLiteStore) DeleteConfigSet(ctx context.Context, name string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var set models.ConfigSet
		err := tx.Where("name = ?", name).First(&set).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := tx.Where("config_set_id = ?", set.ID).Delete(&models.ConfigProperty{}).Error; err != nil {
			return err
		}
		return tx.Delete(&set).Error
	})
}

func (s *SQLiteStore) CurrentConfigSet(ctx context.Context) (string, error) {
	var set models.ConfigSet
	err := s.db.WithContext(ctx).Where("is_current = ?", true).First(&set).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return set.Name, nil
}

func (s *SQLiteStore) SetCurrentConfigSet(ctx context.Context, name string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.ConfigSet{}).Where("is_current = ?", true).Update("is_current", false).Error; err != nil {
			return err
		}
		result := tx.Model(&models.ConfigSet{}).Where("name = ?", name).Update("is_current", true)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("config set '%s' not found: %w", name, gorm.ErrRecordNotFound)
		}
		return nil
	})
}

// Transfer history operations

func (s *SQLiteStore) CreateTransferRecord(ctx context.Context, record *models.TransferRecord) error {
	return s.db.WithContext(ctx).Create(record).Error
}

func (s *SQLiteStore) GetTransferRecord(ctx context.Context, id string) (*models.TransferRecord, error) {
	var record models.TransferRecord
	// Failures sort ahead of transferred entries.
	err := s.db.WithContext(ctx).
		Preload("Entries", func(db *gorm.DB) *gorm.DB {
			return db.Order("outcome, path")
		}).
		Where("id = ?", id).First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *SQLiteStore) ListTransferRecords(ctx context.Context, limit int) ([]models.TransferRecord, error) {
	var records []models.TransferRecord
	query := s.db.WithContext(ctx).Order("started_at DESC")

	if limit > 0 {
		query = query.Limit(limit)
	}

	err := query.Find(&records).Error
	return records, err
}
