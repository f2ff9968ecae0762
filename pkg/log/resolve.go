package log

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/mwantia/fabric/pkg/container"
)

const loggerTag = "logger"

// Resolve returns the LoggerService registered in sc. A tag of the form
// "logger:<name>" yields the named child logger.
func Resolve(ctx context.Context, sc *container.ServiceContainer, tag string) (LoggerService, error) {
	name, ok := parseLoggerTag(tag)
	if !ok {
		return nil, fmt.Errorf("'%s' is not a logger tag", tag)
	}

	found, resolved := sc.ResolveByType(ctx, reflect.TypeOf((*LoggerService)(nil)).Elem())
	if !found {
		return nil, fmt.Errorf("no LoggerService registered")
	}
	logger, ok := resolved.(LoggerService)
	if !ok {
		return nil, fmt.Errorf("resolved %T is not a LoggerService", resolved)
	}

	if name != "" {
		return logger.Named(name), nil
	}
	return logger, nil
}

// parseLoggerTag matches "logger" and "logger:<name>" case-insensitively.
func parseLoggerTag(value string) (string, bool) {
	prefix, name, hasName := strings.Cut(value, ":")
	if !strings.EqualFold(strings.TrimSpace(prefix), loggerTag) {
		return "", false
	}
	if !hasName {
		return "", true
	}
	return strings.TrimSpace(name), true
}
