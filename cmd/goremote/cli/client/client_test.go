package client

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwantia/goremote/pkg/configmgr"
	"github.com/mwantia/goremote/pkg/localfs"
	"github.com/mwantia/goremote/pkg/remote"
)

type emptyProvider struct{}

func (emptyProvider) ConfigProperties() []string { return remote.SettingKeys() }

func (emptyProvider) Configs(context.Context) (map[string]map[string]string, error) {
	return nil, nil
}

func (emptyProvider) ActiveConfig(context.Context) (string, error) { return "", nil }

func localFiles(t *testing.T, names ...string) []*remote.TransferFile {
	t.Helper()

	base := t.TempDir()
	c := remote.NewClient(nil, localfs.New(), remote.Options{BaseLocalDirectory: base})

	files := make([]*remote.TransferFile, 0, len(names))
	for _, name := range names {
		full := filepath.Join(base, name)
		if filepath.Ext(name) == "" {
			require.NoError(t, os.MkdirAll(full, 0o755))
		} else {
			require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
			require.NoError(t, os.WriteFile(full, []byte(name), 0o644))
		}
		f, err := c.LocalFile(name)
		require.NoError(t, err)
		files = append(files, f)
	}
	return files
}

func TestPrintTransferInfo(t *testing.T) {
	files := localFiles(t, "index.php", "lib/util.php", "cache")

	info := remote.NewTransferInfo()
	info.AddTransferredFile(files[0])
	info.AddFailedFile(files[1], "550 Permission denied")
	info.AddIgnoredFile(files[2], "not a regular file or directory")

	var buf bytes.Buffer
	printTransferInfo(&buf, info)

	out := buf.String()
	assert.Contains(t, out, "1 transferred, 1 failed, 0 partially failed, 1 ignored")
	assert.Contains(t, out, "Failed:")
	assert.Contains(t, out, "lib/util.php")
	assert.Contains(t, out, "550 Permission denied")
	assert.Contains(t, out, "Ignored:")
	assert.NotContains(t, out, "Partially failed:")
}

func TestPrintListing(t *testing.T) {
	files := localFiles(t, "index.php", "lib")

	var buf bytes.Buffer
	printListing(&buf, files, false, false)
	assert.Equal(t, "index.php\nlib/\n", buf.String())

	buf.Reset()
	printListing(&buf, files, true, true)
	assert.Contains(t, buf.String(), "file")
	assert.Contains(t, buf.String(), "9 B")
	assert.Contains(t, buf.String(), "directory")
}

func TestProgressMonitor(t *testing.T) {
	files := localFiles(t, "a.txt", "b.txt", "c.txt")

	var buf bytes.Buffer
	m := newProgressMonitor(&buf)

	m.OperationStart(remote.OperationUpload, 1)
	m.AddUnits(remote.OperationUpload, 2)
	assert.Equal(t, 3, m.bar.GetMax())

	for _, f := range files {
		m.OperationProcess(remote.OperationUpload, f)
	}
	m.OperationFinish(remote.OperationUpload, remote.NewTransferInfo())
	assert.Nil(t, m.bar)

	// Calls outside of a batch are ignored.
	m.OperationProcess(remote.OperationUpload, files[0])
	m.AddUnits(remote.OperationUpload, 1)
}

func TestConflictResolver(t *testing.T) {
	assert.Equal(t, remote.ResolutionOverwrite, newConflictResolver(true, false).Resolve("a.txt"))
	assert.Equal(t, remote.ResolutionSkip, newConflictResolver(false, false).Resolve("a.txt"))
}

func TestApplySettings(t *testing.T) {
	m, err := configmgr.NewManager(context.Background(), emptyProvider{})
	require.NoError(t, err)
	profile, err := m.CreateNew("prod", "")
	require.NoError(t, err)

	require.NoError(t, applySettings(profile, []string{
		"type=sftp",
		"HOST = example.com",
		"label=Production",
	}))
	assert.Equal(t, "sftp", profile.Value(remote.SettingType))
	assert.Equal(t, "example.com", profile.Value(remote.SettingHost))
	assert.Equal(t, "Production", profile.DisplayName())

	require.NoError(t, applySettings(profile, []string{"host="}))
	assert.Empty(t, profile.Value(remote.SettingHost))

	assert.ErrorContains(t, applySettings(profile, []string{"colour=blue"}), "unknown setting")

	var buf bytes.Buffer
	require.NoError(t, applySettings(profile, []string{"password=secret"}))
	printProfile(&buf, profile, false)
	assert.Contains(t, buf.String(), "********")
	assert.NotContains(t, buf.String(), "secret")
}
