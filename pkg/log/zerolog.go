package log

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ZerologAdapter implements Logger on top of zerolog.
type ZerologAdapter struct {
	logger zerolog.Logger
}

// NewZerologAdapter writes console output at info level to stderr.
func NewZerologAdapter() *ZerologAdapter {
	return NewZerologAdapterWithOptions(os.Stderr, "info", false)
}

// NewZerologAdapterWithOptions creates an adapter writing to out at the given
// level. When jsonOutput is false, a human-friendly console writer is used.
// Unknown levels fall back to info.
func NewZerologAdapterWithOptions(out io.Writer, level string, jsonOutput bool) *ZerologAdapter {
	if !jsonOutput {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return &ZerologAdapter{logger: zerolog.New(out).Level(lvl).With().Timestamp().Logger()}
}

// NewZerologAdapterWithLogger wraps an existing zerolog.Logger.
func NewZerologAdapterWithLogger(logger zerolog.Logger) *ZerologAdapter {
	return &ZerologAdapter{logger: logger}
}

func (z *ZerologAdapter) Debug(msg string, fields ...Field) { emit(z.logger.Debug(), msg, fields) }
func (z *ZerologAdapter) Info(msg string, fields ...Field)  { emit(z.logger.Info(), msg, fields) }
func (z *ZerologAdapter) Warn(msg string, fields ...Field)  { emit(z.logger.Warn(), msg, fields) }
func (z *ZerologAdapter) Error(msg string, fields ...Field) { emit(z.logger.Error(), msg, fields) }

// With returns an adapter whose entries always carry fields.
func (z *ZerologAdapter) With(fields ...Field) Logger {
	ctx := z.logger.With()
	for _, f := range fields {
		switch v := f.Value.(type) {
		case string:
			ctx = ctx.Str(f.Key, v)
		case int:
			ctx = ctx.Int(f.Key, v)
		case bool:
			ctx = ctx.Bool(f.Key, v)
		case time.Duration:
			ctx = ctx.Dur(f.Key, v)
		case error:
			ctx = ctx.AnErr(f.Key, v)
		case nil:
		default:
			ctx = ctx.Interface(f.Key, v)
		}
	}
	return &ZerologAdapter{logger: ctx.Logger()}
}

// Logger returns the underlying zerolog.Logger.
func (z *ZerologAdapter) Logger() zerolog.Logger {
	return z.logger
}

// emit is a no-op when the level is disabled (event is nil).
func emit(event *zerolog.Event, msg string, fields []Field) {
	if event == nil {
		return
	}
	for _, f := range fields {
		switch v := f.Value.(type) {
		case string:
			event.Str(f.Key, v)
		case int:
			event.Int(f.Key, v)
		case int64:
			event.Int64(f.Key, v)
		case bool:
			event.Bool(f.Key, v)
		case time.Duration:
			event.Dur(f.Key, v)
		case time.Time:
			event.Time(f.Key, v)
		case error:
			event.AnErr(f.Key, v)
		case nil:
		default:
			event.Interface(f.Key, v)
		}
	}
	event.Msg(msg)
}
