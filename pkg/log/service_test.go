package log

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mwantia/goremote/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	assert.Equal(t, Debug, Parse("debug"))
	assert.Equal(t, Warn, Parse(" WARNING "))
	assert.Equal(t, Error, Parse("Error"))
	assert.Equal(t, Info, Parse("bogus"))
	assert.Equal(t, "FATAL", Fatal.String())
}

func TestLoggerServiceLevelFilter(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewLoggerServiceWithWriter("test", config.LogConfig{Level: "warn"}, buf)

	logger.Info("hidden %d", 1)
	logger.Warn("visible %d", 2)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "visible 2")
	assert.Contains(t, out, "[test]")
}

func TestLoggerServiceNamedJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewLoggerServiceWithWriter("goremote", config.LogConfig{Level: "debug", JSON: true}, buf)

	logger.Named("remote").Debug("cd %s", "/var/www")

	var entry logEntry
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &entry))
	assert.Equal(t, "DEBUG", entry.Level)
	assert.Equal(t, "goremote/remote", entry.Service)
	assert.Equal(t, "cd /var/www", entry.Message)
}

func TestLoggerServiceKeepsPercentWithoutArgs(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewLoggerServiceWithWriter("", config.LogConfig{}, buf)

	logger.Info("100% done")
	assert.Contains(t, buf.String(), "100% done")
}

func TestLoggerServiceLevelOverrides(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewLoggerServiceWithWriter("goremote", config.LogConfig{
		Level:  "info",
		Levels: map[string]string{"remote": "debug", "goremote/agent": "error"},
	}, buf)

	logger.Debug("root debug")
	logger.Named("remote").Debug("remote debug")
	logger.Named("agent").Warn("agent warn")
	logger.Named("remote").Named("ftp").Debug("inherited debug")

	out := buf.String()
	assert.NotContains(t, out, "root debug")
	assert.Contains(t, out, "[goremote/remote] remote debug")
	assert.NotContains(t, out, "agent warn")
	assert.Contains(t, out, "[goremote/remote/ftp] inherited debug")
}

func TestLoggerServiceSharesSink(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewLoggerServiceWithWriter("a", config.LogConfig{}, buf)
	child := logger.Named("b")

	logger.Info("one")
	child.Info("two")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "[a] one")
	assert.Contains(t, lines[1], "[a/b] two")
	assert.NotContains(t, buf.String(), "\033[", "writer output is never colored")
}

func TestLoggerServiceCloseFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "goremote.log")
	logger := NewLoggerService("goremote", config.LogConfig{File: file, NoTerminal: true})

	logger.Named("remote").Warn("stored")

	closer, ok := logger.(interface{ Close() error })
	require.True(t, ok)
	require.NoError(t, closer.Close())
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[goremote/remote] stored")
}
