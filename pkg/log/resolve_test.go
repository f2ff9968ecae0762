package log

import (
	"context"
	"testing"

	"github.com/mwantia/fabric/pkg/container"
	"github.com/stretchr/testify/assert"
)

func TestParseLoggerTag(t *testing.T) {
	name, ok := parseLoggerTag("logger: remote ")
	assert.True(t, ok)
	assert.Equal(t, "remote", name)

	name, ok = parseLoggerTag("LOGGER")
	assert.True(t, ok)
	assert.Empty(t, name)

	for _, value := range []string{"loggers", "inject", ""} {
		_, ok = parseLoggerTag(value)
		assert.False(t, ok, value)
	}
}

func TestResolveWithoutLogger(t *testing.T) {
	sc := container.NewServiceContainer()

	_, err := Resolve(context.Background(), sc, "logger:remote")
	assert.Error(t, err)

	_, err = Resolve(context.Background(), sc, "inject")
	assert.Error(t, err)
}
