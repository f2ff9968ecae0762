package log

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mwantia/goremote/internal/config"
	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"
)

type LoggerService interface {
	Debug(msg string, args ...any)

	Info(msg string, args ...any)

	Warn(msg string, args ...any)

	Error(msg string, args ...any)

	Fatal(msg string, args ...any)

	Named(name string) LoggerService
}

// LoggerServiceImpl writes printf-style log lines. Loggers derived with
// Named share one sink.
type LoggerServiceImpl struct {
	LoggerService

	cfg   config.LogConfig
	name  string
	level LogLevel
	sink  *sink
}

// sink serializes writes to the terminal and the log file. Only the
// terminal receives color codes.
type sink struct {
	mutex    sync.Mutex
	terminal io.Writer
	color    bool
	file     io.Writer
	closer   io.Closer
}

type logEntry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Service   string `json:"service,omitempty"`
	Message   string `json:"message"`
}

func NewLoggerService(name string, cfg config.LogConfig) LoggerService {
	return newLoggerService(name, cfg, newSink(cfg))
}

// NewLoggerServiceWithWriter logs uncolored lines to w only, ignoring the
// terminal and file settings.
func NewLoggerServiceWithWriter(name string, cfg config.LogConfig, w io.Writer) LoggerService {
	return newLoggerService(name, cfg, &sink{file: w})
}

func newLoggerService(name string, cfg config.LogConfig, s *sink) *LoggerServiceImpl {
	if cfg.TimeFormat == "" {
		cfg.TimeFormat = time.RFC3339
	}
	return &LoggerServiceImpl{
		cfg:   cfg,
		name:  name,
		level: levelFor(cfg, Parse(cfg.Level), name),
		sink:  s,
	}
}

func newSink(cfg config.LogConfig) *sink {
	s := &sink{}
	if !cfg.NoTerminal || cfg.File == "" {
		s.terminal = os.Stdout
		s.color = !cfg.NoColor && term.IsTerminal(int(os.Stdout.Fd()))
	}
	if cfg.File != "" {
		rotating := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.Rotation.MaxSize,
			MaxBackups: cfg.Rotation.MaxBackups,
			MaxAge:     cfg.Rotation.MaxAge,
			Compress:   cfg.Rotation.Compress,
		}
		s.file = rotating
		s.closer = rotating
	}
	return s
}

// levelFor applies a log.levels override for the full logger name, or for
// its last segment, on top of the inherited level.
func levelFor(cfg config.LogConfig, inherited LogLevel, name string) LogLevel {
	if name == "" || len(cfg.Levels) == 0 {
		return inherited
	}
	if value, ok := cfg.Levels[name]; ok {
		return Parse(value)
	}
	if i := strings.LastIndex(name, "/"); i >= 0 {
		if value, ok := cfg.Levels[name[i+1:]]; ok {
			return Parse(value)
		}
	}
	return inherited
}

func (s *sink) write(level LogLevel, line string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.terminal != nil {
		if s.color {
			fmt.Fprintf(s.terminal, "%s%s\033[0m\n", Color(level), line)
		} else {
			fmt.Fprintln(s.terminal, line)
		}
	}
	if s.file != nil {
		fmt.Fprintln(s.file, line)
	}
}

func (impl *LoggerServiceImpl) format(level LogLevel, msg string) string {
	timestamp := time.Now().Format(impl.cfg.TimeFormat)

	if impl.cfg.JSON {
		data, _ := json.Marshal(logEntry{
			Timestamp: timestamp,
			Level:     level.String(),
			Service:   impl.name,
			Message:   msg,
		})
		return string(data)
	}

	if impl.name != "" {
		return fmt.Sprintf("[%s] %-5s [%s] %s", timestamp, level, impl.name, msg)
	}
	return fmt.Sprintf("[%s] %-5s %s", timestamp, level, msg)
}

func (impl *LoggerServiceImpl) log(level LogLevel, msg string, args ...any) {
	if level < impl.level {
		return
	}
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}

	impl.sink.write(level, impl.format(level, msg))

	if level == Fatal {
		os.Exit(1)
	}
}

func (impl *LoggerServiceImpl) Debug(msg string, args ...any) {
	impl.log(Debug, msg, args...)
}

func (impl *LoggerServiceImpl) Info(msg string, args ...any) {
	impl.log(Info, msg, args...)
}

func (impl *LoggerServiceImpl) Warn(msg string, args ...any) {
	impl.log(Warn, msg, args...)
}

func (impl *LoggerServiceImpl) Error(msg string, args ...any) {
	impl.log(Error, msg, args...)
}

func (impl *LoggerServiceImpl) Fatal(msg string, args ...any) {
	impl.log(Fatal, msg, args...)
}

// Named returns a child logger called "<parent>/<name>".
func (impl *LoggerServiceImpl) Named(name string) LoggerService {
	full := name
	if impl.name != "" {
		full = impl.name + "/" + name
	}
	return &LoggerServiceImpl{
		cfg:   impl.cfg,
		name:  full,
		level: levelFor(impl.cfg, impl.level, full),
		sink:  impl.sink,
	}
}

// Close releases the rotating log file, if one was configured. Children
// share the file, so it is closed once for the whole tree.
func (impl *LoggerServiceImpl) Close() error {
	impl.sink.mutex.Lock()
	defer impl.sink.mutex.Unlock()

	if impl.sink.closer == nil {
		return nil
	}
	err := impl.sink.closer.Close()
	impl.sink.closer = nil
	return err
}
