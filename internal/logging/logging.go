package logging

import (
	"io"
	stdlog "log"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	FieldService    = "service"
	FieldComponent  = "component"
	FieldConnection = "conn_id"
	FieldIdentity   = "identity_id"
	FieldRoom       = "room_id"
	FieldEvent      = "event"
)

type Config struct {
	Level   string
	Pretty  bool
	Service string
}

// New builds the process logger and routes the standard library logger
// through it, so net/http and friends end up in the same stream.
func New(cfg Config) zerolog.Logger {
	return newLogger(cfg, os.Stdout)
}

func newLogger(cfg Config, out io.Writer) zerolog.Logger {
	w := out
	if cfg.Pretty {
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}

	logger := zerolog.New(w).Level(parseLevel(cfg.Level)).With().Timestamp().Logger()
	if cfg.Service != "" {
		logger = logger.With().Str(FieldService, cfg.Service).Logger()
	}

	stdlog.SetFlags(0)
	stdlog.SetOutput(logger.With().Str("source", "stdlog").Logger())

	return logger
}

// Component returns a child logger tagged with the component name.
func Component(l zerolog.Logger, name string) zerolog.Logger {
	return l.With().Str(FieldComponent, name).Logger()
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}
