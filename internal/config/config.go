package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/samber/lo"
)

type Config struct {
	APIAddr   string `env:"API_ADDR,default=:5000"`
	LogLevel  string `env:"LOG_LEVEL,default=info"`
	LogPretty bool   `env:"LOG_PRETTY,default=false"`

	DefaultRoom  string `env:"DEFAULT_ROOM,default=general"`
	DefaultRooms string `env:"DEFAULT_ROOMS,default=general|random|tech|gaming"`

	HistoryCap    int `env:"HISTORY_CAP,default=500"`
	SnapshotSize  int `env:"SNAPSHOT_SIZE,default=50"`
	SearchLimit   int `env:"SEARCH_LIMIT,default=50"`
	PreviewLength int `env:"PREVIEW_LENGTH,default=50"`
	PageLimitMax  int `env:"PAGE_LIMIT_MAX,default=100"`

	OutboxSize     int    `env:"OUTBOX_SIZE,default=256"`
	MaxFrameBytes  int64  `env:"MAX_FRAME_BYTES,default=1048576"`
	AllowedOrigins string `env:"ALLOWED_ORIGINS"`

	ArchiveDB    string `env:"ARCHIVE_DB"`
	ArchiveQueue int    `env:"ARCHIVE_QUEUE,default=1024"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=5s"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.DefaultRoom) == "" {
		return fmt.Errorf("DEFAULT_ROOM is required")
	}
	if c.HistoryCap <= 0 {
		return fmt.Errorf("HISTORY_CAP must be greater than 0")
	}
	if c.SnapshotSize <= 0 || c.SnapshotSize > c.HistoryCap {
		return fmt.Errorf("SNAPSHOT_SIZE must be in (0, HISTORY_CAP]")
	}
	if c.SearchLimit <= 0 {
		return fmt.Errorf("SEARCH_LIMIT must be greater than 0")
	}
	if c.PreviewLength <= 0 {
		return fmt.Errorf("PREVIEW_LENGTH must be greater than 0")
	}
	if c.PageLimitMax <= 0 {
		return fmt.Errorf("PAGE_LIMIT_MAX must be greater than 0")
	}
	if c.OutboxSize <= 0 {
		return fmt.Errorf("OUTBOX_SIZE must be greater than 0")
	}
	if c.MaxFrameBytes <= 0 {
		return fmt.Errorf("MAX_FRAME_BYTES must be greater than 0")
	}
	if c.ArchiveDB != "" && c.ArchiveQueue <= 0 {
		return fmt.Errorf("ARCHIVE_QUEUE must be greater than 0")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT must be greater than 0")
	}
	return nil
}

// Rooms returns the public rooms created at start, default room first.
func (c *Config) Rooms() []string {
	return lo.Uniq(append([]string{c.DefaultRoom}, splitList(c.DefaultRooms)...))
}

// Origins returns the allowed WebSocket origins; empty means any.
func (c *Config) Origins() []string {
	return splitList(c.AllowedOrigins)
}

func splitList(s string) []string {
	return lo.Compact(lo.Map(strings.FieldsFunc(s, isListSep), func(item string, _ int) string {
		return strings.TrimSpace(item)
	}))
}

func isListSep(r rune) bool {
	return r == '|' || r == ','
}
