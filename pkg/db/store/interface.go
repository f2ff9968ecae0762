package store

import (
	"context"

	"github.com/mwantia/goremote/pkg/db/models"
)

// MetadataStore defines the interface for database operations
type MetadataStore interface {
	// Lifecycle
	Connect(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error
	Health(ctx context.Context) error

	// Configuration operations
	ListConfigSets(ctx context.Context) ([]models.ConfigSet, error)
	GetConfigSet(ctx context.Context, name string) (*models.ConfigSet, error)
	SaveConfigSet(ctx context.Context, set *models.ConfigSet) error
	DeleteConfigSet(ctx context.Context, name string) error
	CurrentConfigSet(ctx context.Context) (string, error)
	SetCurrentConfigSet(ctx context.Context, name string) error

	// Transfer history operations
	CreateTransferRecord(ctx context.Context, record *models.TransferRecord) error
	GetTransferRecord(ctx context.Context, id string) (*models.TransferRecord, error)
	ListTransferRecords(ctx context.Context, limit int) ([]models.TransferRecord, error)
}
