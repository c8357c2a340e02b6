// Package log is the process-wide structured logger. Call sites use the
// key/value convention: log.Info("msg", "key", value, ...).
package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	mu   sync.RWMutex
	root = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		With().Timestamp().Logger().Level(zerolog.InfoLevel)
)

// Setup replaces the root logger. Format is "console" or "json".
func Setup(w io.Writer, level, format string) error {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	var out io.Writer
	switch format {
	case "", "console":
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	case "json":
		out = w
	default:
		return fmt.Errorf("unknown log format %q", format)
	}
	mu.Lock()
	root = zerolog.New(out).With().Timestamp().Logger().Level(lvl)
	mu.Unlock()
	return nil
}

// Root returns the underlying zerolog logger.
func Root() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return root
}

func Debug(msg string, ctx ...interface{}) { write(zerolog.DebugLevel, msg, ctx) }
func Info(msg string, ctx ...interface{})  { write(zerolog.InfoLevel, msg, ctx) }
func Warn(msg string, ctx ...interface{})  { write(zerolog.WarnLevel, msg, ctx) }
func Error(msg string, ctx ...interface{}) { write(zerolog.ErrorLevel, msg, ctx) }

// Fatal logs and terminates the process.
func Fatal(msg string, ctx ...interface{}) {
	write(zerolog.FatalLevel, msg, ctx)
	os.Exit(1)
}

func write(level zerolog.Level, msg string, ctx []interface{}) {
	l := Root()
	ev := l.WithLevel(level)
	if ev == nil {
		return
	}
	for i := 0; i < len(ctx); i += 2 {
		key, ok := ctx[i].(string)
		if !ok {
			key = fmt.Sprint(ctx[i])
		}
		if i+1 == len(ctx) {
			ev = ev.Interface(key, nil)
			break
		}
		switch v := ctx[i+1].(type) {
		case error:
			ev = ev.AnErr(key, v)
		case fmt.Stringer:
			ev = ev.Stringer(key, v)
		case string:
			ev = ev.Str(key, v)
		case uint64:
			ev = ev.Uint64(key, v)
		case int:
			ev = ev.Int(key, v)
		case bool:
			ev = ev.Bool(key, v)
		default:
			ev = ev.Interface(key, v)
		}
	}
	ev.Msg(msg)
}
