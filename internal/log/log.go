package log

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

var (
	mu     sync.RWMutex
	logger = newLogger(os.Stderr, LevelInfo, "json")
)

// Init replaces the process-wide logger. format is "json" (default) or
// "console" for human-readable output.
func Init(level Level, format string) {
	SetOutput(os.Stderr, level, format)
}

// SetOutput is Init with an explicit writer; tests use it to capture lines.
func SetOutput(w io.Writer, level Level, format string) {
	l := newLogger(w, level, format)
	mu.Lock()
	logger = l
	mu.Unlock()
}

func SetLevel(l Level) {
	mu.Lock()
	logger = logger.Level(parseLevel(l))
	mu.Unlock()
}

func newLogger(w io.Writer, level Level, format string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	out := w
	if strings.EqualFold(format, "console") {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).Level(parseLevel(level)).With().Timestamp().Logger()
}

func parseLevel(l Level) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(string(l)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

func current() *zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	l := logger
	return &l
}

func Debug(msg string, kv ...any) {
	current().Debug().Fields(kv).Msg(msg)
}

func Info(msg string, kv ...any) {
	current().Info().Fields(kv).Msg(msg)
}

func Warn(msg string, kv ...any) {
	current().Warn().Fields(kv).Msg(msg)
}

// Error logs msg at error level with err attached. kv is a flat list of
// key, value pairs; a trailing odd key is dropped.
func Error(msg string, err error, kv ...any) {
	current().Error().Err(err).Fields(kv).Msg(msg)
}
