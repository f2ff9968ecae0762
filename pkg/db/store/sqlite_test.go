package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/mwantia/goremote/pkg/db/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	st, err := NewSQLiteStore(SQLiteConfig{Path: filepath.Join(t.TempDir(), "goremote.db")})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, st.Connect(ctx))
	require.NoError(t, st.Migrate(ctx))
	t.Cleanup(func() { st.Close() })

	return st
}

func TestSQLiteStoreConfigSets(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	require.NoError(t, st.SaveConfigSet(ctx, &models.ConfigSet{
		Name:  "staging",
		Label: "Staging Server",
		Properties: []models.ConfigProperty{
			{Key: "host", Value: "staging.example.com"},
			{Key: "port", Value: "21"},
		},
	}))

	// Saving again replaces the properties instead of appending.
	require.NoError(t, st.SaveConfigSet(ctx, &models.ConfigSet{
		Name: "staging",
		Properties: []models.ConfigProperty{
			{Key: "host", Value: "staging2.example.com"},
		},
	}))

	set, err := st.GetConfigSet(ctx, "staging")
	require.NoError(t, err)
	require.Len(t, set.Properties, 1)
	assert.Equal(t, "staging2.example.com", set.Properties[0].Value)

	require.NoError(t, st.SaveConfigSet(ctx, &models.ConfigSet{Name: ""}))
	sets, err := st.ListConfigSets(ctx)
	require.NoError(t, err)
	assert.Len(t, sets, 2)

	require.NoError(t, st.DeleteConfigSet(ctx, "staging"))
	_, err = st.GetConfigSet(ctx, "staging")
	assert.Error(t, err)

	// Purging an unknown set is not an error.
	assert.NoError(t, st.DeleteConfigSet(ctx, "missing"))
}

func TestSQLiteStoreCurrentConfigSet(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	current, err := st.CurrentConfigSet(ctx)
	require.NoError(t, err)
	assert.Equal(t, "", current)

	require.NoError(t, st.SaveConfigSet(ctx, &models.ConfigSet{Name: "a"}))
	require.NoError(t, st.SaveConfigSet(ctx, &models.ConfigSet{Name: "b"}))

	require.NoError(t, st.SetCurrentConfigSet(ctx, "a"))
	require.NoError(t, st.SetCurrentConfigSet(ctx, "b"))

	current, err = st.CurrentConfigSet(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b", current)

	assert.Error(t, st.SetCurrentConfigSet(ctx, "missing"))
}

func TestSQLiteStoreTransferRecords(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	now := time.Now().UTC()
	require.NoError(t, st.CreateTransferRecord(ctx, &models.TransferRecord{
		ID:          "first",
		Operation:   "upload",
		StartedAt:   now.Add(-time.Minute),
		Transferred: 2,
		Entries: []models.TransferEntry{
			{Path: "index.php", Outcome: "transferred"},
			{Path: "lib", Outcome: "failed", Reason: "permission denied"},
		},
	}))
	require.NoError(t, st.CreateTransferRecord(ctx, &models.TransferRecord{
		ID:        "second",
		Operation: "delete",
		StartedAt: now,
		Failed:    1,
		Entries: []models.TransferEntry{
			{Path: "cache", Outcome: "failed", Reason: "folder not empty"},
		},
	}))

	records, err := st.ListTransferRecords(ctx, 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "second", records[0].ID)

	record, err := st.GetTransferRecord(ctx, "first")
	require.NoError(t, err)
	require.Len(t, record.Entries, 2)
	assert.Equal(t, "lib", record.Entries[0].Path)
	assert.Equal(t, "index.php", record.Entries[1].Path)
}
