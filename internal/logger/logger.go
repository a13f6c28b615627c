// Package logger builds zerolog loggers and carries them through contexts.
//
// Library code logs through zerolog.Ctx(ctx), so nothing is emitted unless
// the caller attaches a logger with Attach or zerolog.Logger.WithContext.
package logger

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type Config struct {
	Level     string
	Console   bool
	Component string
}

func Build(cfg Config, out io.Writer) zerolog.Logger {
	if out == nil {
		out = os.Stdout
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.TimestampFieldName = "timestamp"
	zerolog.LevelFieldName = "level"
	zerolog.MessageFieldName = "msg"

	if cfg.Console {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	base := zerolog.New(out).Level(ParseLevel(cfg.Level))
	ctx := base.With().Timestamp()
	if cfg.Component != "" {
		ctx = ctx.Str("component", cfg.Component)
	}
	return ctx.Logger()
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// Attach returns ctx carrying l.
func Attach(ctx context.Context, l zerolog.Logger) context.Context {
	return l.WithContext(ctx)
}

// WithOperation returns ctx whose logger tags every event with the operation
// name and a fresh operation id. Without an attached logger ctx is returned as is.
func WithOperation(ctx context.Context, op string) context.Context {
	l := zerolog.Ctx(ctx)
	if l.GetLevel() == zerolog.Disabled {
		return ctx
	}
	child := l.With().Str("op", op).Str("op_id", NewID()).Logger()
	return child.WithContext(ctx)
}

// FromContext returns the logger attached to ctx, or a discarding logger.
func FromContext(ctx context.Context) *zerolog.Logger {
	l := zerolog.Ctx(ctx)
	if l == nil {
		nop := zerolog.Nop()
		return &nop
	}
	return l
}

func NewID() string {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
