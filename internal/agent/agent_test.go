package agent

import (
	"bytes"
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"

	pkgsftp "github.com/pkg/sftp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwantia/goremote/internal/config"
	"github.com/mwantia/goremote/pkg/configmgr"
	"github.com/mwantia/goremote/pkg/log"
	"github.com/mwantia/goremote/pkg/remote"
	"github.com/mwantia/goremote/pkg/remote/sftp"
)

// pipeFactory serves every profile from one in-memory sftp server.
type pipeFactory struct {
	client *pkgsftp.Client
}

func (pipeFactory) Type() string { return sftp.Type }

func (f pipeFactory) NewProvider(remote.Settings) (remote.Provider, error) {
	return sftp.NewFromClient(f.client), nil
}

func newPipeFactory(t *testing.T) pipeFactory {
	t.Helper()

	serverConn, clientConn := net.Pipe()
	server := pkgsftp.NewRequestServer(serverConn, pkgsftp.InMemHandler())
	go server.Serve()
	t.Cleanup(func() { server.Close() })

	client, err := pkgsftp.NewClientPipe(clientConn, clientConn)
	require.NoError(t, err)
	return pipeFactory{client: client}
}

func newTestAgent(t *testing.T, dbPath string, factories ...remote.ProviderFactory) (*GoRemoteAgent, *bytes.Buffer) {
	t.Helper()

	cfg := config.GetDefault()
	cfg.Metadata.SQLite.Path = dbPath

	buf := &bytes.Buffer{}
	logger := log.NewLoggerServiceWithWriter("test", config.LogConfig{Level: "debug"}, buf)
	gra := NewAgentWithLogger(&cfg, logger, factories...)
	require.NoError(t, gra.Setup(context.Background()))
	return gra, buf
}

func createProfile(t *testing.T, gra *GoRemoteAgent, local string) *configmgr.Configuration {
	t.Helper()

	profile, err := gra.Manager().CreateNew("prod", "Production")
	require.NoError(t, err)
	for key, value := range map[string]string{
		remote.SettingType:             sftp.Type,
		remote.SettingHost:             "sftp.example.com",
		remote.SettingUser:             "deploy",
		remote.SettingPassword:         "secret",
		remote.SettingLocalDirectory:   local,
		remote.SettingInitialDirectory: "/www",
	} {
		require.NoError(t, profile.SetValue(key, value))
	}
	return profile
}

func TestAgentUploadRecordsHistory(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "goremote.db")
	gra, logs := newTestAgent(t, dbPath, newPipeFactory(t))
	t.Cleanup(func() { gra.Close(ctx) })

	local := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(local, "index.php"), []byte("<?php"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(local, ".env"), []byte("SECRET=1"), 0o600))

	profile := createProfile(t, gra, local)
	require.NoError(t, gra.Manager().MarkAsCurrentConfiguration(configmgr.DefaultName))
	assert.Contains(t, logs.String(), "Current profile changed from 'prod' to '<default>'")
	require.NoError(t, gra.Manager().MarkAsCurrentConfiguration("prod"))

	current, err := gra.Profile("")
	require.NoError(t, err)
	assert.Equal(t, "prod", current.Name())

	client, err := gra.NewClient(ctx, profile, ClientOptions{})
	require.NoError(t, err)

	info, err := gra.Run(ctx, client, profile.Name(), remote.OperationUpload)
	require.NoError(t, err)
	assert.False(t, info.HasAnyFailure(), info.Summary())

	records, err := gra.Store().ListTransferRecords(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "upload", records[0].Operation)
	assert.Equal(t, "prod", records[0].Profile)
	assert.Equal(t, len(info.TransferredFiles()), records[0].Transferred)
	assert.NotEmpty(t, records[0].ID)

	record, err := gra.Store().GetTransferRecord(ctx, records[0].ID)
	require.NoError(t, err)
	var paths []string
	for _, e := range record.Entries {
		paths = append(paths, e.Path)
	}
	assert.Contains(t, paths, "index.php")
	assert.NotContains(t, paths, ".env", "dotfiles are hidden by default")

	tracker := newChangeTracker()
	gra.uploadChanges(ctx, client, profile.Name(), tracker, []string{"index.php"})
	assert.Contains(t, tracker.digests, "index.php")

	gra.uploadChanges(ctx, client, profile.Name(), tracker, []string{"index.php"})
	assert.Contains(t, logs.String(), "without content changes")

	records, err = gra.Store().ListTransferRecords(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestAgentPersistProfiles(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "goremote.db")

	gra, _ := newTestAgent(t, dbPath)
	createProfile(t, gra, t.TempDir())
	require.NoError(t, gra.Manager().MarkAsCurrentConfiguration("prod"))
	require.NoError(t, gra.Persist(ctx))
	require.NoError(t, gra.Close(ctx))

	reopened, _ := newTestAgent(t, dbPath)
	t.Cleanup(func() { reopened.Close(ctx) })

	current, err := reopened.Profile("")
	require.NoError(t, err)
	assert.Equal(t, "prod", current.Name())
	assert.Equal(t, "Production", current.DisplayName())
	assert.Equal(t, "secret", current.Value(remote.SettingPassword))
	assert.True(t, current.IsValid(), current.ErrorMessage())
}

func TestAgentRejectsInvalidProfiles(t *testing.T) {
	ctx := context.Background()
	gra, _ := newTestAgent(t, filepath.Join(t.TempDir(), "goremote.db"))
	t.Cleanup(func() { gra.Close(ctx) })

	_, err := gra.NewClient(ctx, gra.Manager().Default(), ClientOptions{})
	assert.ErrorIs(t, err, remote.ErrUnknownProtocol)

	profile, err := gra.Manager().CreateNew("broken", "")
	require.NoError(t, err)
	require.NoError(t, profile.SetValue(remote.SettingType, "ftp"))
	require.NoError(t, profile.SetValue(remote.SettingHost, "ftp.example.com"))

	_, err = gra.NewClient(ctx, profile, ClientOptions{})
	assert.ErrorContains(t, err, remote.SettingLocalDirectory)

	gra.Manager().Validate(gra.validateProfile)
	assert.False(t, profile.IsValid())

	_, err = gra.Profile("missing")
	assert.ErrorIs(t, err, configmgr.ErrUnknownConfig)

	assert.Equal(t, []string{"ftp", "sftp"}, gra.ProtocolTypes())
}

func TestParseDuration(t *testing.T) {
	assert.Equal(t, defaultInterval, parseDuration("", defaultInterval))
	assert.Equal(t, defaultInterval, parseDuration("-1s", defaultInterval))
	assert.Equal(t, "30s", parseDuration("30s", defaultInterval).String())
}

type lifecycleStore struct {
	connectErr error
	migrateErr error
	closed     int
}

func (s *lifecycleStore) Connect(context.Context) error { return s.connectErr }
func (s *lifecycleStore) Migrate(context.Context) error { return s.migrateErr }
func (s *lifecycleStore) Close() error {
	s.closed++
	return nil
}

func TestInitStoreClosesOnFailure(t *testing.T) {
	ctx := context.Background()

	st := &lifecycleStore{connectErr: errors.New("database is locked")}
	err := initStore(ctx, st)
	require.ErrorContains(t, err, "failed to connect metadata store")
	assert.Equal(t, 1, st.closed)

	st = &lifecycleStore{migrateErr: errors.New("no such table")}
	err = initStore(ctx, st)
	require.ErrorContains(t, err, "failed to migrate metadata store")
	assert.Equal(t, 1, st.closed)

	st = &lifecycleStore{}
	require.NoError(t, initStore(ctx, st))
	assert.Zero(t, st.closed)
}

func TestSetupFailsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := config.GetDefault()
	cfg.Metadata.SQLite.Path = filepath.Join(t.TempDir(), "goremote.db")
	gra := NewAgentWithLogger(&cfg, log.NewLoggerServiceWithWriter("test", config.LogConfig{}, &bytes.Buffer{}))

	assert.Error(t, gra.Setup(ctx))
	assert.Nil(t, gra.Store())
	assert.Nil(t, gra.Manager())
}
