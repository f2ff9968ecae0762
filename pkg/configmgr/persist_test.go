package configmgr

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/mwantia/goremote/pkg/db/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreProvider_RoundTrip(t *testing.T) {
	ctx := context.Background()
	st, err := store.NewSQLiteStore(store.SQLiteConfig{Path: filepath.Join(t.TempDir(), "goremote.db")})
	require.NoError(t, err)
	require.NoError(t, st.Connect(ctx))
	require.NoError(t, st.Migrate(ctx))
	t.Cleanup(func() { st.Close() })

	provider := NewStoreProvider(st, []string{"host", "password"}, "password")
	m, err := NewManager(ctx, provider)
	require.NoError(t, err)

	staging, err := m.CreateNew("staging", "Staging")
	require.NoError(t, err)
	require.NoError(t, staging.SetValue("host", "staging.example.com"))
	require.NoError(t, staging.SetValue("password", "secret"))
	_, err = m.CreateNew("old", "")
	require.NoError(t, err)
	require.NoError(t, m.MarkAsCurrentConfiguration("staging"))
	require.NoError(t, provider.Persist(ctx, m))

	stored, err := st.GetConfigSet(ctx, "staging")
	require.NoError(t, err)
	assert.Equal(t, "Staging", stored.Label)
	values := map[string]string{}
	for _, prop := range stored.Properties {
		values[prop.Key] = prop.Value
	}
	assert.Equal(t, "frperg", values["password"])

	require.NoError(t, m.Configuration("old").Delete())
	require.NoError(t, provider.Persist(ctx, m))
	assert.NotContains(t, m.ConfigurationNames(), "old")

	reloaded, err := NewManager(ctx, provider)
	require.NoError(t, err)
	assert.Equal(t, []string{"", "staging"}, reloaded.ConfigurationNames())
	assert.Equal(t, "staging", reloaded.Current().Name())
	assert.Equal(t, "secret", reloaded.Current().Value("password"))
	assert.Equal(t, "Staging", reloaded.Current().DisplayName())
}
