// Package logging adapts zerolog to the key/value Logger interfaces used by
// the bootloader and transport packages.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// DefaultLevel is used when no level is configured.
const DefaultLevel = zerolog.InfoLevel

// Logger implements bootloader.Logger and transport.Logger on top of a
// zerolog.Logger.
type Logger struct {
	zl zerolog.Logger
}

// New returns a human-readable logger writing to w at the named level
// ("debug", "info", "error", ...). Colour is used only when w is a terminal.
//
// Example:
//
//	logger, err := logging.New(os.Stderr, "debug")
//	mgr := bootloader.NewManager(conn, bootloader.WithLogger(logger))
func New(w io.Writer, level string) (*Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	if w == nil {
		w = os.Stderr
	}
	cw := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.TimeOnly,
		NoColor:    !isTerminal(w),
	}
	return Wrap(zerolog.New(cw).Level(lvl).With().Timestamp().Logger()), nil
}

// NewJSON returns a logger writing one JSON object per line to w.
func NewJSON(w io.Writer, level string) (*Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	if w == nil {
		w = os.Stderr
	}
	return Wrap(zerolog.New(w).Level(lvl).With().Timestamp().Logger()), nil
}

// Wrap adapts an existing zerolog.Logger.
func Wrap(zl zerolog.Logger) *Logger {
	return &Logger{zl: zl}
}

// ParseLevel parses a zerolog level name; the empty string is DefaultLevel.
func ParseLevel(level string) (zerolog.Level, error) {
	if strings.TrimSpace(level) == "" {
		return DefaultLevel, nil
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return lvl, nil
}

// Zerolog returns the underlying logger.
func (l *Logger) Zerolog() zerolog.Logger {
	return l.zl
}

// With returns a child logger that adds keysAndValues to every entry.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	ctx := l.zl.With()
	for i := 0; i < len(keysAndValues); i += 2 {
		key, val := pair(keysAndValues, i)
		ctx = ctx.Interface(key, val)
	}
	return &Logger{zl: ctx.Logger()}
}

func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	write(l.zl.Debug(), msg, keysAndValues)
}

func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	write(l.zl.Info(), msg, keysAndValues)
}

func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	write(l.zl.Warn(), msg, keysAndValues)
}

func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	write(l.zl.Error(), msg, keysAndValues)
}

// write adds the pairs to e and sends it. e is nil when the level is
// disabled, which zerolog treats as a no-op.
func write(e *zerolog.Event, msg string, keysAndValues []interface{}) {
	if e == nil {
		return
	}
	for i := 0; i < len(keysAndValues); i += 2 {
		key, val := pair(keysAndValues, i)
		switch v := val.(type) {
		case error:
			e = e.AnErr(key, v)
		case string:
			e = e.Str(key, v)
		case fmt.Stringer:
			e = e.Stringer(key, v)
		default:
			e = e.Interface(key, v)
		}
	}
	e.Msg(msg)
}

// pair returns the key and value at i. A trailing key without a value is
// logged under "extra".
func pair(kv []interface{}, i int) (string, interface{}) {
	if i+1 >= len(kv) {
		return "extra", kv[i]
	}
	key, ok := kv[i].(string)
	if !ok {
		key = fmt.Sprint(kv[i])
	}
	return key, kv[i+1]
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
