// Package observability provides structured logging and formatted CLI output.
package observability

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/jonathan/benchscope/internal/config"
)

// Log field names shared across components
const (
	FieldComponent = "component"
	FieldRunID     = "run_id"
	FieldURL       = "url"
	FieldSource    = "source"
)

// NewLogger builds the process logger. Console output is used when cfg.Pretty
// is set, JSON lines otherwise. An unknown level falls back to info.
func NewLogger(cfg config.LogConfig, out io.Writer) zerolog.Logger {
	if out == nil {
		out = os.Stderr
	}

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// Component returns a child logger tagged with the component name
func Component(logger zerolog.Logger, name string) zerolog.Logger {
	return logger.With().Str(FieldComponent, name).Logger()
}
